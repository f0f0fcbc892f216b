package domain

import (
	"math/big"
	"time"
)

// OutcomeStatus classifies how a settlement session ended.
type OutcomeStatus string

const (
	// OutcomeProfit: the session completed and surplus was forwarded to the
	// operator.
	OutcomeProfit OutcomeStatus = "profit"

	// OutcomeCompleted: the session completed but the surplus was below the
	// distribution threshold and stayed in the contract.
	OutcomeCompleted OutcomeStatus = "completed"

	// OutcomeFailed: the transaction reverted; no balance changed anywhere.
	OutcomeFailed OutcomeStatus = "failed"
)

// Outcome is the decoded result of one settlement session, used only for
// reporting. It is never fed back into the evaluation path.
type Outcome struct {
	ID            string        `json:"id"`
	OpportunityID string        `json:"opportunity_id"`
	Status        OutcomeStatus `json:"status"`
	Asset         string        `json:"asset"`
	Amount        *big.Int      `json:"amount"`
	Profit        *big.Int      `json:"profit"` // nil unless Status == OutcomeProfit
	Reason        string        `json:"reason"` // failure reason text, empty on success
	TxHash        string        `json:"tx_hash"`
	GasUsed       uint64        `json:"gas_used"`
	BlockNumber   uint64        `json:"block_number"`
	SettledAt     time.Time     `json:"settled_at"`
}

// Profitable reports whether the outcome forwarded surplus to the operator.
func (o Outcome) Profitable() bool {
	return o.Status == OutcomeProfit && o.Profit != nil && o.Profit.Sign() > 0
}
