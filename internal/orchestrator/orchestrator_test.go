package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/domain"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/evaluator"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/oracle"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/settlement"
)

var (
	tokenA   = common.HexToAddress("0xaa")
	tokenB   = common.HexToAddress("0xbb")
	operator = common.HexToAddress("0x0e")
	poolAddr = common.HexToAddress("0x0f")
	contract = common.HexToAddress("0xcc")
	uniAddr  = common.HexToAddress("0x11")
	sushiUni = common.HexToAddress("0x22")
)

func units18(whole, hundredths int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole*100+hundredths), big.NewInt(1e16))
}

type fakeSource struct {
	venue string
	out   *big.Int
	err   error
}

func (f *fakeSource) Venue() string { return f.venue }

func (f *fakeSource) Quote(context.Context, common.Address, common.Address, uint32, *big.Int) (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}
	return new(big.Int).Set(f.out), nil
}

type fakeChain struct {
	gasPrice *big.Int
	balance  *big.Int
}

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakeChain) BalanceAt(context.Context, common.Address) (*big.Int, error) {
	return new(big.Int).Set(f.balance), nil
}

type fakeBorrower struct {
	calls []domain.LoanRequest
}

func (f *fakeBorrower) Receiver() common.Address { return contract }

func (f *fakeBorrower) Borrow(_ context.Context, req domain.LoanRequest) (*types.Receipt, error) {
	f.calls = append(f.calls, req)
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      common.HexToHash("0x01"),
		BlockNumber: big.NewInt(1),
	}, nil
}

type fakeGuard struct {
	calls int
	err   error
}

func (f *fakeGuard) EnsureFunded(context.Context) error {
	f.calls++
	return f.err
}

type fakeInterpreter struct{}

func (fakeInterpreter) Interpret(opp *domain.Opportunity, receipt *types.Receipt) domain.Outcome {
	return domain.Outcome{
		ID:            "out-1",
		OpportunityID: opp.ID,
		Status:        domain.OutcomeProfit,
		Profit:        new(big.Int).Set(opp.EstimatedProfit),
		TxHash:        receipt.TxHash.Hex(),
		SettledAt:     time.Now().UTC(),
	}
}

type memStore struct {
	outcomes []domain.Outcome
}

func (m *memStore) Create(_ context.Context, o domain.Outcome) error {
	m.outcomes = append(m.outcomes, o)
	return nil
}

func (m *memStore) ListRecent(context.Context, int) ([]domain.Outcome, error) {
	return m.outcomes, nil
}

func (m *memStore) ListBefore(context.Context, time.Time) ([]domain.Outcome, error) {
	return nil, nil
}

func (m *memStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func testPolicy() Policy {
	return Policy{
		Pair:           domain.Pair{TokenA: tokenA, TokenB: tokenB},
		Notional:       units18(10, 0),
		MinProfit:      big.NewInt(1e17),
		FeeTier:        3000,
		PollInterval:   time.Minute,
		GasCeilingWei:  big.NewInt(150e9),
		GasReserve:     big.NewInt(1e16),
		GasSampleLimit: 20,
		TxDeadline:     5 * time.Minute,
	}
}

func testDeps(uni, sushi *fakeSource, borrower *fakeBorrower) Deps {
	return Deps{
		Sources: []domain.PriceSource{uni, sushi},
		Producers: map[string]oracle.InstructionProducer{
			oracle.VenueUniswapV3: oracle.NewUniswapProducer(uniAddr, 3000),
			oracle.VenueSushiSwap: oracle.NewSushiProducer(sushiUni),
		},
		Evaluator: evaluator.New(evaluator.Config{
			MinDivergenceBps: 50,
			LoanFeeBps:       9,
			MinProfit:        big.NewInt(1e17),
		}, slog.New(slog.DiscardHandler)),
		Chain:       &fakeChain{gasPrice: big.NewInt(30e9), balance: big.NewInt(1e18)},
		Loans:       borrower,
		Guard:       &fakeGuard{},
		Interpreter: fakeInterpreter{},
		Operator:    operator,
		Pool:        poolAddr,
	}
}

func newTestOrchestrator(t *testing.T, policy Policy, deps Deps) *Orchestrator {
	t.Helper()
	o, err := New(policy, deps, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return o
}

func TestCycleExecutesOpportunity(t *testing.T) {
	borrower := &fakeBorrower{}
	store := &memStore{}
	deps := testDeps(
		&fakeSource{venue: oracle.VenueUniswapV3, out: units18(10, 0)},
		&fakeSource{venue: oracle.VenueSushiSwap, out: units18(10, 60)},
		borrower,
	)
	deps.Store = store
	o := newTestOrchestrator(t, testPolicy(), deps)

	require.NoError(t, o.runCycle(context.Background()))

	require.Len(t, borrower.calls, 1)
	req := borrower.calls[0]
	assert.Equal(t, tokenA, req.Asset)
	assert.Equal(t, units18(10, 0), req.Amount)

	ins, err := settlement.DecodeInstructions(req.Params)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1e17), ins.MinProfit)
	require.Len(t, ins.Targets, 2)
	// Sell leg targets the high-quote venue's router, buy leg the other.
	assert.Equal(t, sushiUni, ins.Targets[0])
	assert.Equal(t, uniAddr, ins.Targets[1])

	require.Len(t, store.outcomes, 1)
	assert.Equal(t, domain.OutcomeProfit, store.outcomes[0].Status)

	snap := o.SnapshotStatus()
	assert.Equal(t, uint64(1), snap.CyclesRun)
	assert.Equal(t, uint64(1), snap.TradesExecuted)
	assert.Len(t, snap.GasSamples, 1)
}

func TestCycleNoOpportunity(t *testing.T) {
	borrower := &fakeBorrower{}
	deps := testDeps(
		&fakeSource{venue: oracle.VenueUniswapV3, out: units18(10, 0)},
		&fakeSource{venue: oracle.VenueSushiSwap, out: units18(10, 2)},
		borrower,
	)
	o := newTestOrchestrator(t, testPolicy(), deps)

	require.NoError(t, o.runCycle(context.Background()))
	assert.Empty(t, borrower.calls)
}

func TestCycleSkipsOnGasCeiling(t *testing.T) {
	borrower := &fakeBorrower{}
	deps := testDeps(
		&fakeSource{venue: oracle.VenueUniswapV3, out: units18(10, 0)},
		&fakeSource{venue: oracle.VenueSushiSwap, out: units18(10, 60)},
		borrower,
	)
	deps.Chain = &fakeChain{gasPrice: big.NewInt(200e9), balance: big.NewInt(1e18)}
	o := newTestOrchestrator(t, testPolicy(), deps)

	require.NoError(t, o.runCycle(context.Background()))
	assert.Empty(t, borrower.calls)
	assert.Equal(t, uint64(1), o.SnapshotStatus().CyclesSkipped)
}

func TestCycleFailsWithOneVenue(t *testing.T) {
	borrower := &fakeBorrower{}
	deps := testDeps(
		&fakeSource{venue: oracle.VenueUniswapV3, out: units18(10, 0)},
		&fakeSource{venue: oracle.VenueSushiSwap, err: errors.New("rpc timeout")},
		borrower,
	)
	o := newTestOrchestrator(t, testPolicy(), deps)

	err := o.runCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "venues answered")
	assert.Empty(t, borrower.calls)
}

func TestExecuteRejectsConcurrentTrade(t *testing.T) {
	borrower := &fakeBorrower{}
	deps := testDeps(
		&fakeSource{venue: oracle.VenueUniswapV3, out: units18(10, 0)},
		&fakeSource{venue: oracle.VenueSushiSwap, out: units18(10, 60)},
		borrower,
	)
	o := newTestOrchestrator(t, testPolicy(), deps)

	o.inFlight.Store(true)
	err := o.runCycle(context.Background())
	require.ErrorIs(t, err, domain.ErrInFlight)
	assert.Empty(t, borrower.calls)
}

func TestDryRunNeverSubmits(t *testing.T) {
	borrower := &fakeBorrower{}
	deps := testDeps(
		&fakeSource{venue: oracle.VenueUniswapV3, out: units18(10, 0)},
		&fakeSource{venue: oracle.VenueSushiSwap, out: units18(10, 60)},
		borrower,
	)
	policy := testPolicy()
	policy.DryRun = true
	o := newTestOrchestrator(t, policy, deps)

	require.NoError(t, o.runCycle(context.Background()))
	assert.Empty(t, borrower.calls)
}

func TestStartupCheckFailsWithoutGasReserve(t *testing.T) {
	borrower := &fakeBorrower{}
	deps := testDeps(
		&fakeSource{venue: oracle.VenueUniswapV3, out: units18(10, 0)},
		&fakeSource{venue: oracle.VenueSushiSwap, out: units18(10, 60)},
		borrower,
	)
	deps.Chain = &fakeChain{gasPrice: big.NewInt(30e9), balance: big.NewInt(1)}
	o := newTestOrchestrator(t, testPolicy(), deps)

	err := o.startupChecks(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gas reserve")
}

func TestStartupCheckPropagatesFundingError(t *testing.T) {
	borrower := &fakeBorrower{}
	deps := testDeps(
		&fakeSource{venue: oracle.VenueUniswapV3, out: units18(10, 0)},
		&fakeSource{venue: oracle.VenueSushiSwap, out: units18(10, 60)},
		borrower,
	)
	deps.Guard = &fakeGuard{err: domain.ErrInsufficientCapital}
	o := newTestOrchestrator(t, testPolicy(), deps)

	err := o.startupChecks(context.Background())
	require.ErrorIs(t, err, domain.ErrInsufficientCapital)
}

func TestGasSampleBufferBounded(t *testing.T) {
	borrower := &fakeBorrower{}
	deps := testDeps(
		&fakeSource{venue: oracle.VenueUniswapV3, out: units18(10, 0)},
		&fakeSource{venue: oracle.VenueSushiSwap, out: units18(10, 2)},
		borrower,
	)
	policy := testPolicy()
	policy.GasSampleLimit = 3
	o := newTestOrchestrator(t, policy, deps)

	for range 5 {
		require.NoError(t, o.runCycle(context.Background()))
	}
	assert.Len(t, o.SnapshotStatus().GasSamples, 3)
}
