package settlement

import (
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/domain"
)

var (
	selfAddr     = common.HexToAddress("0x5e1f")
	operatorAddr = common.HexToAddress("0x0123")
	poolAddr     = common.HexToAddress("0x9001")
	providerAddr = common.HexToAddress("0x9002")
	assetAddr    = common.HexToAddress("0xa55e")
	routerA      = common.HexToAddress("0x1001")
	routerB      = common.HexToAddress("0x1002")
	strangerAddr = common.HexToAddress("0xbad")
)

// engineFixture wires an Engine over a fresh sim ledger. The executor
// credits the contract with gain on the final instruction, modeling the
// round trip's net effect.
type engineFixture struct {
	ledger *SimLedger
	engine *Engine
	calls  []common.Address
}

func newFixture(t *testing.T, gain *big.Int, failAt int) *engineFixture {
	t.Helper()
	f := &engineFixture{ledger: NewSimLedger()}
	exec := CallFunc(func(target common.Address, payload []byte) error {
		f.calls = append(f.calls, target)
		if failAt > 0 && len(f.calls) == failAt {
			return assert.AnError
		}
		if len(f.calls) == 2 && gain != nil {
			bal := f.ledger.BalanceOf(assetAddr, selfAddr)
			f.ledger.SetBalance(assetAddr, selfAddr, new(big.Int).Add(bal, gain))
		}
		return nil
	})
	f.engine = NewEngine(selfAddr, operatorAddr, poolAddr, providerAddr, f.ledger, exec, slog.New(slog.DiscardHandler))
	return f
}

func blob(t *testing.T, minProfit int64) []byte {
	t.Helper()
	b, err := EncodeInstructions(Instructions{
		MinProfit: big.NewInt(minProfit),
		Targets:   []common.Address{routerA, routerB},
		Payloads:  [][]byte{{0x01}, {0x02}},
	})
	require.NoError(t, err)
	return b
}

func session(t *testing.T, amount, premium, minProfit int64) Session {
	t.Helper()
	return Session{
		Asset:     assetAddr,
		Amount:    big.NewInt(amount),
		Premium:   big.NewInt(premium),
		Initiator: operatorAddr,
		Caller:    poolAddr,
		Params:    blob(t, minProfit),
	}
}

func TestSettleDistributesSurplus(t *testing.T) {
	// Borrow 1000 at premium 9; trades net +100. Debt 1009, surplus 91.
	f := newFixture(t, big.NewInt(100), 0)
	f.ledger.SetBalance(assetAddr, selfAddr, big.NewInt(1000))

	surplus, err := f.engine.Settle(session(t, 1000, 9, 50))
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(91), surplus)
	assert.Equal(t, []common.Address{routerA, routerB}, f.calls)
	assert.Equal(t, big.NewInt(91), f.ledger.BalanceOf(assetAddr, operatorAddr))
	// Principal plus premium stays approved for the pool to pull.
	assert.Equal(t, big.NewInt(1009), f.ledger.Allowance(assetAddr, selfAddr, poolAddr))
	assert.Equal(t, big.NewInt(1009), f.ledger.BalanceOf(assetAddr, selfAddr))
}

func TestSettleRetainsSubThresholdSurplus(t *testing.T) {
	// Surplus 91 is under the 100 floor: kept in the contract, zero returned.
	f := newFixture(t, big.NewInt(100), 0)
	f.ledger.SetBalance(assetAddr, selfAddr, big.NewInt(1000))

	surplus, err := f.engine.Settle(session(t, 1000, 9, 100))
	require.NoError(t, err)

	assert.Zero(t, surplus.Sign())
	assert.Zero(t, f.ledger.BalanceOf(assetAddr, operatorAddr).Sign())
	assert.Equal(t, big.NewInt(1100), f.ledger.BalanceOf(assetAddr, selfAddr))
}

func TestSettleRejectsWrongCaller(t *testing.T) {
	f := newFixture(t, nil, 0)
	s := session(t, 1000, 9, 50)
	s.Caller = strangerAddr

	_, err := f.engine.Settle(s)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Empty(t, f.calls)
}

func TestSettleRejectsWrongInitiator(t *testing.T) {
	f := newFixture(t, nil, 0)
	s := session(t, 1000, 9, 50)
	s.Initiator = strangerAddr

	_, err := f.engine.Settle(s)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Empty(t, f.calls)
}

func TestSettleRejectsBadBlob(t *testing.T) {
	f := newFixture(t, nil, 0)
	s := session(t, 1000, 9, 50)
	s.Params = []byte{0x7f, 0x00}

	_, err := f.engine.Settle(s)
	require.ErrorIs(t, err, domain.ErrBadInstructionBlob)
}

func TestSettleInsufficientRepayment(t *testing.T) {
	// Trades net zero: balance 1000 cannot cover debt 1009.
	f := newFixture(t, nil, 0)
	f.ledger.SetBalance(assetAddr, selfAddr, big.NewInt(1000))

	_, err := f.engine.Settle(session(t, 1000, 9, 50))
	require.ErrorIs(t, err, domain.ErrInsufficientRepayment)
}

func TestSettleAtomicRevertsOnSwapFailure(t *testing.T) {
	f := newFixture(t, big.NewInt(100), 2)
	f.ledger.SetBalance(assetAddr, selfAddr, big.NewInt(1000))

	_, err := f.engine.SettleAtomic(session(t, 1000, 9, 50))
	require.ErrorIs(t, err, domain.ErrSwapFailed)

	// Every balance reverts to its pre-session value.
	assert.Equal(t, big.NewInt(1000), f.ledger.BalanceOf(assetAddr, selfAddr))
	assert.Zero(t, f.ledger.BalanceOf(assetAddr, operatorAddr).Sign())
	assert.Zero(t, f.ledger.Allowance(assetAddr, selfAddr, poolAddr).Sign())
}

func TestSettleAtomicRevertsOnInsolvency(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.ledger.SetBalance(assetAddr, selfAddr, big.NewInt(1000))

	_, err := f.engine.SettleAtomic(session(t, 1000, 9, 50))
	require.ErrorIs(t, err, domain.ErrInsufficientRepayment)
	assert.Equal(t, big.NewInt(1000), f.ledger.BalanceOf(assetAddr, selfAddr))
}

func TestFundRequiresOperator(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.ledger.SetBalance(assetAddr, operatorAddr, big.NewInt(500))
	f.ledger.SetBalance(assetAddr, strangerAddr, big.NewInt(500))

	require.ErrorIs(t, f.engine.Fund(strangerAddr, assetAddr, big.NewInt(100)), domain.ErrUnauthorized)

	require.NoError(t, f.engine.Fund(operatorAddr, assetAddr, big.NewInt(100)))
	assert.Equal(t, big.NewInt(100), f.engine.Balance(assetAddr))
	assert.Equal(t, big.NewInt(400), f.ledger.BalanceOf(assetAddr, operatorAddr))
}

func TestWithdrawTokenSweepsFullBalance(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.ledger.SetBalance(assetAddr, selfAddr, big.NewInt(750))

	_, err := f.engine.WithdrawToken(strangerAddr, assetAddr)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	got, err := f.engine.WithdrawToken(operatorAddr, assetAddr)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(750), got)
	assert.Zero(t, f.engine.Balance(assetAddr).Sign())
	assert.Equal(t, big.NewInt(750), f.ledger.BalanceOf(assetAddr, operatorAddr))
}

func TestWithdrawTokenEmptyBalance(t *testing.T) {
	f := newFixture(t, nil, 0)

	got, err := f.engine.WithdrawToken(operatorAddr, assetAddr)
	require.NoError(t, err)
	assert.Zero(t, got.Sign())
}

func TestEmergencyWithdraw(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.ledger.SetBalance(assetAddr, selfAddr, big.NewInt(300))

	require.ErrorIs(t, f.engine.EmergencyWithdraw(strangerAddr, assetAddr, big.NewInt(100)), domain.ErrUnauthorized)

	require.NoError(t, f.engine.EmergencyWithdraw(operatorAddr, assetAddr, big.NewInt(100)))
	assert.Equal(t, big.NewInt(200), f.engine.Balance(assetAddr))
	assert.Equal(t, big.NewInt(100), f.ledger.BalanceOf(assetAddr, operatorAddr))
}
