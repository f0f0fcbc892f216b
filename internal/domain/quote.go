// Package domain defines the core types, interfaces, and sentinel errors
// shared across the arbitrage bot. It has no dependencies on other internal
// packages so every layer can import it freely.
package domain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Pair identifies the token pair a quote or opportunity refers to. TokenA is
// the borrowed asset; TokenB is the counter token traded against it.
type Pair struct {
	TokenA common.Address
	TokenB common.Address
}

// Quote is a single venue's answer to "how much TokenB do I get for
// AmountIn of TokenA". Quotes are produced fresh each evaluation cycle and
// never persisted.
type Quote struct {
	Venue     string
	AmountIn  *big.Int
	AmountOut *big.Int
	QuotedAt  time.Time
}

// Valid reports whether the quote carries a positive output amount.
func (q Quote) Valid() bool {
	return q.AmountOut != nil && q.AmountOut.Sign() > 0
}

// PriceSource is implemented by the per-venue oracle adapters. Quote returns
// the output amount for a swap of amountIn tokenIn into tokenOut, or an
// error. Calls are read-only from the chain's perspective: even adapters
// backed by non-view quoter functions issue them as dry-run eth_calls and
// never submit a transaction.
type PriceSource interface {
	Venue() string
	Quote(ctx context.Context, tokenIn, tokenOut common.Address, feeTier uint32, amountIn *big.Int) (*big.Int, error)
}

// GasSample is one observation of the network gas price, kept in a bounded
// history buffer for reporting.
type GasSample struct {
	PriceWei  *big.Int  `json:"price_wei"`
	SampledAt time.Time `json:"sampled_at"`
}
