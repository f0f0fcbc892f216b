package settlement

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/domain"
)

func sampleInstructions() Instructions {
	return Instructions{
		MinProfit: big.NewInt(1e17),
		Targets: []common.Address{
			common.HexToAddress("0x1111111111111111111111111111111111111111"),
			common.HexToAddress("0x2222222222222222222222222222222222222222"),
		},
		Payloads: [][]byte{
			{0xde, 0xad, 0xbe, 0xef},
			{0xca, 0xfe},
		},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	ins := sampleInstructions()

	blob, err := EncodeInstructions(ins)
	require.NoError(t, err)
	require.NotEmpty(t, blob)
	assert.Equal(t, CodecVersion, blob[0])

	got, err := DecodeInstructions(blob)
	require.NoError(t, err)
	assert.Equal(t, ins.MinProfit, got.MinProfit)
	assert.Equal(t, ins.Targets, got.Targets)
	assert.Equal(t, ins.Payloads, got.Payloads)

	// Re-encoding the decoded form reproduces the blob byte for byte.
	again, err := EncodeInstructions(got)
	require.NoError(t, err)
	assert.Equal(t, blob, again)
}

func TestCodecEmptyInstructionList(t *testing.T) {
	ins := Instructions{MinProfit: new(big.Int), Targets: []common.Address{}, Payloads: [][]byte{}}

	blob, err := EncodeInstructions(ins)
	require.NoError(t, err)

	got, err := DecodeInstructions(blob)
	require.NoError(t, err)
	assert.Empty(t, got.Targets)
	assert.Empty(t, got.Payloads)
}

func TestEncodeRejectsMismatchedLengths(t *testing.T) {
	_, err := EncodeInstructions(Instructions{
		MinProfit: big.NewInt(1),
		Targets:   []common.Address{{}},
		Payloads:  [][]byte{},
	})
	require.Error(t, err)
}

func TestEncodeRejectsNilMinProfit(t *testing.T) {
	_, err := EncodeInstructions(Instructions{Targets: []common.Address{}, Payloads: [][]byte{}})
	require.Error(t, err)

	_, err = EncodeInstructions(Instructions{MinProfit: big.NewInt(-1), Targets: []common.Address{}, Payloads: [][]byte{}})
	require.Error(t, err)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	cases := map[string][]byte{
		"empty":         nil,
		"wrong version": {0x02, 0x00},
		"truncated":     {CodecVersion, 0x01, 0x02, 0x03},
	}
	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeInstructions(blob)
			require.ErrorIs(t, err, domain.ErrBadInstructionBlob)
		})
	}
}

func TestDecodeRejectsCorruptedTail(t *testing.T) {
	blob, err := EncodeInstructions(sampleInstructions())
	require.NoError(t, err)

	_, err = DecodeInstructions(blob[:len(blob)-7])
	require.ErrorIs(t, err, domain.ErrBadInstructionBlob)
}
