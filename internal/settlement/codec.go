// Package settlement models the on-chain settlement contract: the versioned
// instruction-blob codec shared by both sides of the wire, the atomic
// callback state machine, and the binding to the deployed contract.
package settlement

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/domain"
)

// CodecVersion tags the instruction-blob wire format. The decoder rejects
// any other version so a deployed contract and a newer bot cannot silently
// misread each other.
const CodecVersion byte = 1

// Instructions is the decoded form of the instruction blob: the one channel
// from off-chain evaluation to on-chain settlement logic. Targets and
// Payloads are equal-length ordered sequences; order matters because later
// trades consume balances produced by earlier ones.
type Instructions struct {
	MinProfit *big.Int
	Targets   []common.Address
	Payloads  [][]byte
}

var instructionArgs = func() abi.Arguments {
	uint256Ty, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	addrSliceTy, err := abi.NewType("address[]", "", nil)
	if err != nil {
		panic(err)
	}
	bytesSliceTy, err := abi.NewType("bytes[]", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{
		{Name: "minProfit", Type: uint256Ty},
		{Name: "targets", Type: addrSliceTy},
		{Name: "payloads", Type: bytesSliceTy},
	}
}()

// EncodeInstructions serializes ins as a 1-byte version tag followed by the
// canonical ABI encoding of (uint256, address[], bytes[]). The encoding is
// deterministic, so Encode(Decode(blob)) == blob for any well-formed blob.
func EncodeInstructions(ins Instructions) ([]byte, error) {
	if ins.MinProfit == nil || ins.MinProfit.Sign() < 0 {
		return nil, fmt.Errorf("settlement: encode: minProfit must be a non-negative integer")
	}
	if len(ins.Targets) != len(ins.Payloads) {
		return nil, fmt.Errorf("settlement: encode: %d targets but %d payloads", len(ins.Targets), len(ins.Payloads))
	}

	packed, err := instructionArgs.Pack(ins.MinProfit, ins.Targets, ins.Payloads)
	if err != nil {
		return nil, fmt.Errorf("settlement: encode: %w", err)
	}

	blob := make([]byte, 0, 1+len(packed))
	blob = append(blob, CodecVersion)
	return append(blob, packed...), nil
}

// DecodeInstructions deserializes an instruction blob. Every failure mode is
// a typed error wrapping domain.ErrBadInstructionBlob rather than a panic.
func DecodeInstructions(blob []byte) (Instructions, error) {
	if len(blob) == 0 {
		return Instructions{}, fmt.Errorf("settlement: %w: empty blob", domain.ErrBadInstructionBlob)
	}
	if blob[0] != CodecVersion {
		return Instructions{}, fmt.Errorf("settlement: %w: unsupported version %d", domain.ErrBadInstructionBlob, blob[0])
	}

	vals, err := instructionArgs.Unpack(blob[1:])
	if err != nil {
		return Instructions{}, fmt.Errorf("settlement: %w: %v", domain.ErrBadInstructionBlob, err)
	}

	minProfit, ok := vals[0].(*big.Int)
	if !ok {
		return Instructions{}, fmt.Errorf("settlement: %w: minProfit has wrong type", domain.ErrBadInstructionBlob)
	}
	targets, ok := vals[1].([]common.Address)
	if !ok {
		return Instructions{}, fmt.Errorf("settlement: %w: targets has wrong type", domain.ErrBadInstructionBlob)
	}
	payloads, ok := vals[2].([][]byte)
	if !ok {
		return Instructions{}, fmt.Errorf("settlement: %w: payloads has wrong type", domain.ErrBadInstructionBlob)
	}

	if len(targets) != len(payloads) {
		return Instructions{}, fmt.Errorf("settlement: %w: %d targets but %d payloads", domain.ErrBadInstructionBlob, len(targets), len(payloads))
	}

	return Instructions{
		MinProfit: minProfit,
		Targets:   targets,
		Payloads:  payloads,
	}, nil
}
