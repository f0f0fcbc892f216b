// Package evaluator turns a pair of venue quotes into an arbitrage
// opportunity when the divergence and projected profit clear their
// thresholds. All arithmetic is exact big.Int; nothing here touches the
// chain.
package evaluator

import (
	"log/slog"
	"math/big"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/domain"
)

const bpsDenominator = 10000

// Config holds the evaluation thresholds. MinProfit is expressed in the
// smallest unit of the counter token.
type Config struct {
	MinDivergenceBps int64
	LoanFeeBps       int64
	MinProfit        *big.Int
}

// Evaluator applies the thresholds to quote pairs.
type Evaluator struct {
	cfg    Config
	logger *slog.Logger
}

// New constructs an Evaluator.
func New(cfg Config, logger *slog.Logger) *Evaluator {
	return &Evaluator{cfg: cfg, logger: logger.With(slog.String("component", "evaluator"))}
}

// Evaluate compares two same-notional quotes and returns an Opportunity when
// both the divergence and the fee-adjusted profit clear their thresholds, or
// nil when they do not. Invalid quotes always evaluate to nil.
func (e *Evaluator) Evaluate(qa, qb domain.Quote, pair domain.Pair, notional *big.Int) *domain.Opportunity {
	if !qa.Valid() || !qb.Valid() {
		return nil
	}

	low, high := qa, qb
	if low.AmountOut.Cmp(high.AmountOut) > 0 {
		low, high = high, low
	}

	// diffBps = |high - low| * 10000 / high, with high as the reference so
	// divergence never exceeds 10000.
	diff := new(big.Int).Sub(high.AmountOut, low.AmountOut)
	diffBps := new(big.Int).Mul(diff, big.NewInt(bpsDenominator))
	diffBps.Div(diffBps, high.AmountOut)
	bps := diffBps.Int64()

	if bps < e.cfg.MinDivergenceBps {
		return nil
	}

	loanFee := new(big.Int).Mul(notional, big.NewInt(e.cfg.LoanFeeBps))
	loanFee.Div(loanFee, big.NewInt(bpsDenominator))

	profit := new(big.Int).Sub(high.AmountOut, low.AmountOut)
	profit.Sub(profit, loanFee)

	if profit.Cmp(e.cfg.MinProfit) < 0 {
		e.logger.Debug("divergence below profit floor",
			slog.Int64("divergence_bps", bps),
			slog.String("profit", profit.String()),
		)
		return nil
	}

	return &domain.Opportunity{
		ID:              uuid.NewString(),
		Pair:            pair,
		Notional:        new(big.Int).Set(notional),
		BuyVenue:        low.Venue,
		SellVenue:       high.Venue,
		BuyPrice:        new(big.Int).Set(low.AmountOut),
		SellPrice:       new(big.Int).Set(high.AmountOut),
		LoanFee:         loanFee,
		EstimatedProfit: profit,
		DivergenceBps:   bps,
		DetectedAt:      time.Now().UTC(),
	}
}

// Rank sorts opportunities by estimated profit, highest first. The slice is
// sorted in place and returned for convenience.
func Rank(opps []*domain.Opportunity) []*domain.Opportunity {
	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].EstimatedProfit.Cmp(opps[j].EstimatedProfit) > 0
	})
	return opps
}
