// Package oracle implements the per-venue price adapters and the matching
// trade-instruction producers. Each adapter turns "how much tokenOut for
// amountIn tokenIn" into a venue-specific contract read; each producer
// builds the opaque calldata the settlement contract later replays for
// real.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/chain"
)

// VenueUniswapV3 identifies the Uniswap V3 venue in quotes and opportunities.
const VenueUniswapV3 = "uniswap_v3"

// quoterABI is the Uniswap V3 Quoter fragment. quoteExactInputSingle is
// deliberately non-view on chain; it must only ever be issued as a dry-run
// eth_call, never submitted as a transaction.
const quoterABI = `[
  {"type":"function","name":"quoteExactInputSingle","stateMutability":"nonpayable","inputs":[{"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"fee","type":"uint24"},{"name":"amountIn","type":"uint256"},{"name":"sqrtPriceLimitX96","type":"uint160"}],"outputs":[{"name":"amountOut","type":"uint256"}]}
]`

var parsedQuoterABI = chain.MustParseABI(quoterABI)

// UniswapQuoter adapts the Uniswap V3 Quoter contract to the PriceSource
// interface.
type UniswapQuoter struct {
	contract *bind.BoundContract
	logger   *slog.Logger
}

// NewUniswapQuoter binds the quoter at addr.
func NewUniswapQuoter(addr common.Address, backend bind.ContractBackend, logger *slog.Logger) *UniswapQuoter {
	return &UniswapQuoter{
		contract: bind.NewBoundContract(addr, parsedQuoterABI, backend, backend, backend),
		logger:   logger.With(slog.String("venue", VenueUniswapV3)),
	}
}

// Venue returns the venue identifier.
func (q *UniswapQuoter) Venue() string { return VenueUniswapV3 }

// Quote simulates quoteExactInputSingle via eth_call and returns the quoted
// output amount.
func (q *UniswapQuoter) Quote(ctx context.Context, tokenIn, tokenOut common.Address, feeTier uint32, amountIn *big.Int) (*big.Int, error) {
	var out []interface{}
	err := q.contract.Call(&bind.CallOpts{Context: ctx}, &out, "quoteExactInputSingle",
		tokenIn, tokenOut, big.NewInt(int64(feeTier)), amountIn, new(big.Int))
	if err != nil {
		return nil, fmt.Errorf("oracle: uniswap quote: %w", err)
	}
	amountOut := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)

	q.logger.Debug("quote",
		slog.String("amount_in", amountIn.String()),
		slog.String("amount_out", amountOut.String()),
	)
	return amountOut, nil
}
