package report

import (
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/domain"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/settlement"
)

var asset = common.HexToAddress("0x0a")

func testOpportunity() *domain.Opportunity {
	return &domain.Opportunity{
		ID:       "opp-1",
		Pair:     domain.Pair{TokenA: asset},
		Notional: big.NewInt(1000),
	}
}

func executedLog(t *testing.T, amount, premium, profit *big.Int) *types.Log {
	t.Helper()
	event := settlement.ContractABI().Events["ArbitrageExecuted"]
	data, err := event.Inputs.NonIndexed().Pack(amount, premium, profit)
	require.NoError(t, err)
	return &types.Log{
		Topics: []common.Hash{event.ID, common.BytesToHash(asset.Bytes())},
		Data:   data,
	}
}

func receipt(status uint64, logs ...*types.Log) *types.Receipt {
	return &types.Receipt{
		Status:      status,
		TxHash:      common.HexToHash("0xbeef"),
		GasUsed:     180000,
		BlockNumber: big.NewInt(42),
		Logs:        logs,
	}
}

func newInterpreter() *Interpreter {
	return NewInterpreter(big.NewInt(100), slog.New(slog.DiscardHandler))
}

func TestInterpretReverted(t *testing.T) {
	out := newInterpreter().Interpret(testOpportunity(), receipt(types.ReceiptStatusFailed))

	assert.Equal(t, domain.OutcomeFailed, out.Status)
	assert.Equal(t, "transaction reverted", out.Reason)
	assert.Nil(t, out.Profit)
	assert.Equal(t, "opp-1", out.OpportunityID)
	assert.Equal(t, uint64(42), out.BlockNumber)
}

func TestInterpretProfit(t *testing.T) {
	log := executedLog(t, big.NewInt(1000), big.NewInt(9), big.NewInt(500))
	out := newInterpreter().Interpret(testOpportunity(), receipt(types.ReceiptStatusSuccessful, log))

	assert.Equal(t, domain.OutcomeProfit, out.Status)
	assert.Equal(t, big.NewInt(500), out.Profit)
	assert.True(t, out.Profitable())
	assert.Equal(t, uint64(180000), out.GasUsed)
}

func TestInterpretRetainedSurplus(t *testing.T) {
	log := executedLog(t, big.NewInt(1000), big.NewInt(9), big.NewInt(99))
	out := newInterpreter().Interpret(testOpportunity(), receipt(types.ReceiptStatusSuccessful, log))

	assert.Equal(t, domain.OutcomeCompleted, out.Status)
	assert.Equal(t, big.NewInt(99), out.Profit)
	assert.False(t, out.Profitable())
}

func TestInterpretMissingEvent(t *testing.T) {
	out := newInterpreter().Interpret(testOpportunity(), receipt(types.ReceiptStatusSuccessful))

	assert.Equal(t, domain.OutcomeCompleted, out.Status)
	assert.Nil(t, out.Profit)
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "0", FormatUnits(nil, 18))
	assert.Equal(t, "0.591", FormatUnits(big.NewInt(591e15), 18))
	assert.Equal(t, "10", FormatUnits(new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18)), 18))
}
