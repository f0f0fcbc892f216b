package evaluator

import (
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/domain"
)

func units(whole int64, frac int64) *big.Int {
	// whole units plus frac hundredths, at 18 decimals.
	v := new(big.Int).Mul(big.NewInt(whole*100+frac), big.NewInt(1e16))
	return v
}

func testEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	return New(Config{
		MinDivergenceBps: 50,
		LoanFeeBps:       9,
		MinProfit:        big.NewInt(1e17),
	}, slog.New(slog.DiscardHandler))
}

func quote(venue string, out *big.Int) domain.Quote {
	return domain.Quote{Venue: venue, AmountOut: out, QuotedAt: time.Now()}
}

func TestEvaluateDetectsDivergence(t *testing.T) {
	e := testEvaluator(t)
	notional := units(10, 0)

	opp := e.Evaluate(
		quote("uniswap_v3", units(10, 0)),
		quote("sushiswap", units(10, 60)),
		domain.Pair{}, notional,
	)
	require.NotNil(t, opp)

	assert.Equal(t, int64(566), opp.DivergenceBps)
	assert.Equal(t, "uniswap_v3", opp.BuyVenue)
	assert.Equal(t, "sushiswap", opp.SellVenue)
	assert.Equal(t, units(10, 0), opp.BuyPrice)
	assert.Equal(t, units(10, 60), opp.SellPrice)

	// fee = 10 * 9bps = 0.009; profit = 0.6 - 0.009 = 0.591
	wantFee := new(big.Int).Mul(big.NewInt(9), big.NewInt(1e15))
	assert.Equal(t, wantFee, opp.LoanFee)
	wantProfit := new(big.Int).Mul(big.NewInt(591), big.NewInt(1e15))
	assert.Equal(t, wantProfit, opp.EstimatedProfit)
	assert.NotEmpty(t, opp.ID)
}

func TestEvaluateOrderInsensitive(t *testing.T) {
	e := testEvaluator(t)
	notional := units(10, 0)

	a := e.Evaluate(quote("uniswap_v3", units(10, 0)), quote("sushiswap", units(10, 60)), domain.Pair{}, notional)
	b := e.Evaluate(quote("sushiswap", units(10, 60)), quote("uniswap_v3", units(10, 0)), domain.Pair{}, notional)
	require.NotNil(t, a)
	require.NotNil(t, b)

	assert.Equal(t, a.BuyVenue, b.BuyVenue)
	assert.Equal(t, a.SellVenue, b.SellVenue)
	assert.Equal(t, a.EstimatedProfit, b.EstimatedProfit)
}

func TestEvaluateBelowDivergenceThreshold(t *testing.T) {
	e := testEvaluator(t)

	// 10.00 vs 10.02 is ~20 bps, under the 50 bps floor.
	opp := e.Evaluate(
		quote("uniswap_v3", units(10, 0)),
		quote("sushiswap", units(10, 2)),
		domain.Pair{}, units(10, 0),
	)
	assert.Nil(t, opp)
}

func TestEvaluateDivergentButUnprofitable(t *testing.T) {
	// Wide divergence on a tiny notional: fee plus floor eat the spread.
	e := New(Config{
		MinDivergenceBps: 50,
		LoanFeeBps:       9,
		MinProfit:        big.NewInt(1e17),
	}, slog.New(slog.DiscardHandler))

	opp := e.Evaluate(
		quote("uniswap_v3", big.NewInt(1e16)),
		quote("sushiswap", big.NewInt(2e16)),
		domain.Pair{}, big.NewInt(1e16),
	)
	assert.Nil(t, opp)
}

func TestEvaluateInvalidQuote(t *testing.T) {
	e := testEvaluator(t)

	assert.Nil(t, e.Evaluate(quote("uniswap_v3", nil), quote("sushiswap", units(10, 60)), domain.Pair{}, units(10, 0)))
	assert.Nil(t, e.Evaluate(quote("uniswap_v3", big.NewInt(0)), quote("sushiswap", units(10, 60)), domain.Pair{}, units(10, 0)))
}

func TestEvaluateEqualQuotes(t *testing.T) {
	e := testEvaluator(t)
	out := units(10, 0)
	assert.Nil(t, e.Evaluate(quote("uniswap_v3", out), quote("sushiswap", out), domain.Pair{}, units(10, 0)))
}

func TestRank(t *testing.T) {
	opps := []*domain.Opportunity{
		{ID: "low", EstimatedProfit: big.NewInt(1)},
		{ID: "high", EstimatedProfit: big.NewInt(100)},
		{ID: "mid", EstimatedProfit: big.NewInt(50)},
	}
	Rank(opps)
	assert.Equal(t, "high", opps[0].ID)
	assert.Equal(t, "mid", opps[1].ID)
	assert.Equal(t, "low", opps[2].ID)
}
