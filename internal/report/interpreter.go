// Package report turns mined receipts into reportable outcomes and formats
// chain-native amounts for humans.
package report

import (
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/domain"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/settlement"
)

// Interpreter decodes settlement receipts. The threshold mirrors the
// contract's distribution floor so a completed-but-retained session is
// classified correctly even when the summary event is missing.
type Interpreter struct {
	minProfit *big.Int
	logger    *slog.Logger
}

// NewInterpreter constructs an Interpreter with the distribution floor.
func NewInterpreter(minProfit *big.Int, logger *slog.Logger) *Interpreter {
	return &Interpreter{
		minProfit: minProfit,
		logger:    logger.With(slog.String("component", "report")),
	}
}

// Interpret classifies one receipt. A reverted transaction is a failed
// outcome; a successful one is classified by the contract's summary event,
// profit above the floor meaning surplus was forwarded to the operator.
func (i *Interpreter) Interpret(opp *domain.Opportunity, receipt *types.Receipt) domain.Outcome {
	out := domain.Outcome{
		ID:            uuid.NewString(),
		OpportunityID: opp.ID,
		Asset:         opp.Pair.TokenA.Hex(),
		Amount:        new(big.Int).Set(opp.Notional),
		TxHash:        receipt.TxHash.Hex(),
		GasUsed:       receipt.GasUsed,
		SettledAt:     time.Now().UTC(),
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		out.Status = domain.OutcomeFailed
		out.Reason = "transaction reverted"
		return out
	}

	for _, log := range receipt.Logs {
		ev, ok, err := settlement.ParseArbitrageExecuted(*log)
		if err != nil {
			i.logger.Warn("unparseable settlement log",
				slog.String("tx", out.TxHash),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !ok {
			continue
		}
		out.Profit = ev.Profit
		if ev.Profit != nil && ev.Profit.Cmp(i.minProfit) >= 0 {
			out.Status = domain.OutcomeProfit
		} else {
			out.Status = domain.OutcomeCompleted
		}
		return out
	}

	// Mined without the summary event: the trade went through but nothing
	// was distributed.
	out.Status = domain.OutcomeCompleted
	return out
}

// FormatUnits renders a base-unit amount as a decimal string at the given
// precision. Display only.
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}
