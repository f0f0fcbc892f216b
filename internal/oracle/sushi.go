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

// VenueSushiSwap identifies the SushiSwap venue in quotes and opportunities.
const VenueSushiSwap = "sushiswap"

// routerViewABI is the V2 router read fragment used for quoting.
const routerViewABI = `[
  {"type":"function","name":"getAmountsOut","stateMutability":"view","inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],"outputs":[{"name":"amounts","type":"uint256[]"}]}
]`

var parsedRouterViewABI = chain.MustParseABI(routerViewABI)

// SushiQuoter adapts the SushiSwap V2 router's getAmountsOut view to the
// PriceSource interface. The fee tier parameter is ignored; V2 pools have a
// fixed fee baked into the reserve math.
type SushiQuoter struct {
	contract *bind.BoundContract
	logger   *slog.Logger
}

// NewSushiQuoter binds the router at addr.
func NewSushiQuoter(addr common.Address, backend bind.ContractBackend, logger *slog.Logger) *SushiQuoter {
	return &SushiQuoter{
		contract: bind.NewBoundContract(addr, parsedRouterViewABI, backend, backend, backend),
		logger:   logger.With(slog.String("venue", VenueSushiSwap)),
	}
}

// Venue returns the venue identifier.
func (q *SushiQuoter) Venue() string { return VenueSushiSwap }

// Quote calls getAmountsOut over the two-hop path [tokenIn, tokenOut] and
// returns the final amount.
func (q *SushiQuoter) Quote(ctx context.Context, tokenIn, tokenOut common.Address, _ uint32, amountIn *big.Int) (*big.Int, error) {
	var out []interface{}
	err := q.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getAmountsOut",
		amountIn, []common.Address{tokenIn, tokenOut})
	if err != nil {
		return nil, fmt.Errorf("oracle: sushi quote: %w", err)
	}
	amounts := *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int)
	if len(amounts) != 2 {
		return nil, fmt.Errorf("oracle: sushi quote: unexpected path length %d", len(amounts))
	}

	q.logger.Debug("quote",
		slog.String("amount_in", amountIn.String()),
		slog.String("amount_out", amounts[1].String()),
	)
	return amounts[1], nil
}
