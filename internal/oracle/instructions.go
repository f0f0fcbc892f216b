package oracle

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/chain"
)

// InstructionProducer builds the target address and calldata for a single
// swap leg on its venue. The settlement contract replays the payload with a
// raw call, so the calldata must be self-contained.
type InstructionProducer interface {
	Venue() string
	BuildSwap(tokenIn, tokenOut common.Address, amountIn, minOut *big.Int, recipient common.Address, deadline *big.Int) (common.Address, []byte, error)
}

const swapRouterABI = `[
  {"type":"function","name":"exactInputSingle","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[{"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"fee","type":"uint24"},{"name":"recipient","type":"address"},{"name":"deadline","type":"uint256"},{"name":"amountIn","type":"uint256"},{"name":"amountOutMinimum","type":"uint256"},{"name":"sqrtPriceLimitX96","type":"uint160"}]}],"outputs":[{"name":"amountOut","type":"uint256"}]}
]`

var parsedSwapRouterABI = chain.MustParseABI(swapRouterABI)

// exactInputSingleParams mirrors ISwapRouter.ExactInputSingleParams for ABI
// tuple packing.
type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// UniswapProducer builds exactInputSingle calldata against the V3 SwapRouter.
type UniswapProducer struct {
	router  common.Address
	feeTier uint32
}

// NewUniswapProducer configures a producer for the router at addr using the
// given pool fee tier.
func NewUniswapProducer(addr common.Address, feeTier uint32) *UniswapProducer {
	return &UniswapProducer{router: addr, feeTier: feeTier}
}

// Venue returns the venue identifier.
func (p *UniswapProducer) Venue() string { return VenueUniswapV3 }

// BuildSwap packs an exactInputSingle call for the leg.
func (p *UniswapProducer) BuildSwap(tokenIn, tokenOut common.Address, amountIn, minOut *big.Int, recipient common.Address, deadline *big.Int) (common.Address, []byte, error) {
	payload, err := parsedSwapRouterABI.Pack("exactInputSingle", exactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		Fee:               big.NewInt(int64(p.feeTier)),
		Recipient:         recipient,
		Deadline:          deadline,
		AmountIn:          amountIn,
		AmountOutMinimum:  minOut,
		SqrtPriceLimitX96: new(big.Int),
	})
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("oracle: pack uniswap swap: %w", err)
	}
	return p.router, payload, nil
}

const routerSwapABI = `[
  {"type":"function","name":"swapExactTokensForTokens","stateMutability":"nonpayable","inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]}
]`

var parsedRouterSwapABI = chain.MustParseABI(routerSwapABI)

// SushiProducer builds swapExactTokensForTokens calldata against the V2
// router.
type SushiProducer struct {
	router common.Address
}

// NewSushiProducer configures a producer for the router at addr.
func NewSushiProducer(addr common.Address) *SushiProducer {
	return &SushiProducer{router: addr}
}

// Venue returns the venue identifier.
func (p *SushiProducer) Venue() string { return VenueSushiSwap }

// BuildSwap packs a swapExactTokensForTokens call over the direct pair path.
func (p *SushiProducer) BuildSwap(tokenIn, tokenOut common.Address, amountIn, minOut *big.Int, recipient common.Address, deadline *big.Int) (common.Address, []byte, error) {
	payload, err := parsedRouterSwapABI.Pack("swapExactTokensForTokens",
		amountIn, minOut, []common.Address{tokenIn, tokenOut}, recipient, deadline)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("oracle: pack sushi swap: %w", err)
	}
	return p.router, payload, nil
}
