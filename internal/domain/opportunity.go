package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Opportunity is a tradeable price divergence derived from a pair of quotes.
// It lives for one evaluation cycle; the orchestrator either acts on it or
// discards it.
//
// Invariant: EstimatedProfit = SellPrice - BuyPrice - LoanFee, and an
// Opportunity is only constructed when EstimatedProfit and DivergenceBps both
// clear their configured thresholds.
type Opportunity struct {
	ID       string
	Pair     Pair
	Notional *big.Int

	// BuyVenue quoted the lower output (the cheap side), SellVenue the
	// higher. BuyPrice and SellPrice are the corresponding quoted outputs.
	BuyVenue  string
	SellVenue string
	BuyPrice  *big.Int
	SellPrice *big.Int

	LoanFee         *big.Int
	EstimatedProfit *big.Int
	DivergenceBps   int64
	GasEstimate     uint64
	DetectedAt      time.Time
}

// DivergencePct returns the divergence as a percentage. Display only; all
// decision arithmetic stays in integer basis points.
func (o Opportunity) DivergencePct() float64 {
	return float64(o.DivergenceBps) / 100
}

// LoanRequest is the one-shot submission handed to the loan gateway for an
// executed opportunity. Params is the encoded instruction blob: the sole
// channel from off-chain evaluation to the on-chain settlement logic.
type LoanRequest struct {
	Asset       common.Address
	Amount      *big.Int
	Params      []byte
	ReferralTag uint16
}
