// Package orchestrator runs the bot's core loop: poll both venues, evaluate
// the divergence, and when an opportunity clears every gate, rehearse and
// submit a flash-loan trade. One cycle's failure never stops the loop; only
// startup check failures and context cancellation do.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/domain"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/evaluator"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/oracle"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/settlement"
)

// State names for the loop's lifecycle.
const (
	StateIdle         = "IDLE"
	StateStartupCheck = "STARTUP_CHECK"
	StateScan         = "SCAN"
	StateExecute      = "EXECUTE"
	StateStopped      = "STOPPED"
)

// Borrower submits flash loans.
type Borrower interface {
	Receiver() common.Address
	Borrow(ctx context.Context, req domain.LoanRequest) (*types.Receipt, error)
}

// ChainReader is the read-only chain surface the loop needs.
type ChainReader interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)
}

// Funder verifies and restores the settlement contract's capital buffer.
type Funder interface {
	EnsureFunded(ctx context.Context) error
}

// Interpreter turns a mined receipt into a reportable outcome.
type Interpreter interface {
	Interpret(opp *domain.Opportunity, receipt *types.Receipt) domain.Outcome
}

// Notifier delivers human-facing events.
type Notifier interface {
	Send(ctx context.Context, e domain.Event) error
}

// Policy is the loop's trading configuration, resolved from config into
// chain-native units.
type Policy struct {
	Pair         domain.Pair
	Notional     *big.Int
	MinProfit    *big.Int
	FeeTier      uint32
	ReferralCode uint16

	PollInterval time.Duration
	// SkipDelay is the extra back-off applied after a gas-ceiling skip.
	SkipDelay time.Duration
	// GasCeilingWei: cycles are skipped while the suggested gas price is
	// above it. Nil or zero disables the check.
	GasCeilingWei *big.Int
	// GasReserve is the minimum gas-token balance the operator must hold at
	// startup.
	GasReserve     *big.Int
	GasSampleLimit int
	TxDeadline     time.Duration

	// DryRun evaluates and reports opportunities without ever submitting a
	// transaction (scan mode).
	DryRun bool
}

// Deps bundles the orchestrator's collaborators. Store, Cache, Bus, and
// Notifier may be nil; the loop degrades to log-only reporting.
type Deps struct {
	Sources     []domain.PriceSource
	Producers   map[string]oracle.InstructionProducer
	Evaluator   *evaluator.Evaluator
	Chain       ChainReader
	Loans       Borrower
	Guard       Funder
	Interpreter Interpreter

	Operator common.Address
	Pool     common.Address

	Store    domain.OutcomeStore
	Cache    domain.HistoryCache
	Bus      domain.SignalBus
	Notifier Notifier
}

// Snapshot is a point-in-time view of the loop for the status endpoint.
type Snapshot struct {
	State          string             `json:"state"`
	InFlight       bool               `json:"in_flight"`
	CyclesRun      uint64             `json:"cycles_run"`
	CyclesSkipped  uint64             `json:"cycles_skipped"`
	TradesExecuted uint64             `json:"trades_executed"`
	LastCycleAt    time.Time          `json:"last_cycle_at"`
	LastError      string             `json:"last_error,omitempty"`
	GasSamples     []domain.GasSample `json:"gas_samples"`
}

// Orchestrator drives the scan/execute loop.
type Orchestrator struct {
	policy Policy
	deps   Deps
	logger *slog.Logger

	state    atomic.Value // string
	inFlight atomic.Bool

	mu             sync.Mutex
	gasSamples     []domain.GasSample
	cyclesRun      uint64
	cyclesSkipped  uint64
	tradesExecuted uint64
	lastCycleAt    time.Time
	lastError      string
}

// New constructs an Orchestrator in the IDLE state.
func New(policy Policy, deps Deps, logger *slog.Logger) (*Orchestrator, error) {
	if len(deps.Sources) < 2 {
		return nil, fmt.Errorf("orchestrator: need at least two price sources, have %d", len(deps.Sources))
	}
	if !policy.DryRun {
		if deps.Loans == nil || deps.Interpreter == nil {
			return nil, fmt.Errorf("orchestrator: execution mode requires loan gateway and interpreter")
		}
		for _, src := range deps.Sources {
			if _, ok := deps.Producers[src.Venue()]; !ok {
				return nil, fmt.Errorf("orchestrator: no instruction producer for venue %s", src.Venue())
			}
		}
	}

	o := &Orchestrator{
		policy: policy,
		deps:   deps,
		logger: logger.With(slog.String("component", "orchestrator")),
	}
	o.state.Store(StateIdle)
	return o, nil
}

// State returns the loop's current lifecycle state.
func (o *Orchestrator) State() string {
	return o.state.Load().(string)
}

func (o *Orchestrator) setState(s string) {
	o.state.Store(s)
}

// SnapshotStatus returns a copy of the loop's counters and gas history.
func (o *Orchestrator) SnapshotStatus() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	samples := make([]domain.GasSample, len(o.gasSamples))
	copy(samples, o.gasSamples)
	return Snapshot{
		State:          o.State(),
		InFlight:       o.inFlight.Load(),
		CyclesRun:      o.cyclesRun,
		CyclesSkipped:  o.cyclesSkipped,
		TradesExecuted: o.tradesExecuted,
		LastCycleAt:    o.lastCycleAt,
		LastError:      o.lastError,
		GasSamples:     samples,
	}
}

// Run executes the loop until ctx is cancelled. Startup check failures are
// returned; per-cycle failures are recorded and the loop continues.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.setState(StateStartupCheck)
	if err := o.startupChecks(ctx); err != nil {
		o.setState(StateStopped)
		o.emit(ctx, domain.Event{
			Type:    domain.EventError,
			Title:   "startup check failed",
			Message: err.Error(),
			At:      time.Now().UTC(),
		})
		return err
	}

	o.emit(ctx, domain.Event{
		Type:    domain.EventStartup,
		Title:   "bot started",
		Message: fmt.Sprintf("polling every %s, notional %s", o.policy.PollInterval, o.policy.Notional),
		At:      time.Now().UTC(),
	})

	ticker := time.NewTicker(o.policy.PollInterval)
	defer ticker.Stop()

	for {
		o.setState(StateScan)
		if err := o.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			o.recordError(err)
			o.logger.Error("cycle failed", slog.String("error", err.Error()))
			o.emit(ctx, domain.Event{
				Type:    domain.EventError,
				Title:   "cycle failed",
				Message: err.Error(),
				At:      time.Now().UTC(),
			})
		}

		select {
		case <-ctx.Done():
			o.setState(StateStopped)
			o.logger.Info("loop stopped")
			return nil
		case <-ticker.C:
		}
	}

	o.setState(StateStopped)
	return nil
}

// startupChecks verifies the operator holds the gas reserve and the contract
// holds its working capital before the first cycle. Either failing is fatal.
func (o *Orchestrator) startupChecks(ctx context.Context) error {
	if o.policy.GasReserve != nil && o.policy.GasReserve.Sign() > 0 && !o.policy.DryRun {
		bal, err := o.deps.Chain.BalanceAt(ctx, o.deps.Operator)
		if err != nil {
			return fmt.Errorf("orchestrator: gas reserve check: %w", err)
		}
		if bal.Cmp(o.policy.GasReserve) < 0 {
			return fmt.Errorf("orchestrator: operator holds %s wei, gas reserve requires %s", bal, o.policy.GasReserve)
		}
	}

	if o.deps.Guard != nil && !o.policy.DryRun {
		if err := o.deps.Guard.EnsureFunded(ctx); err != nil {
			return err
		}
	}
	return nil
}

// runCycle performs one poll-evaluate-execute pass.
func (o *Orchestrator) runCycle(ctx context.Context) error {
	o.mu.Lock()
	o.cyclesRun++
	o.lastCycleAt = time.Now().UTC()
	o.mu.Unlock()

	skip, err := o.gasCheck(ctx)
	if err != nil {
		return err
	}
	if skip {
		o.mu.Lock()
		o.cyclesSkipped++
		o.mu.Unlock()
		o.sleep(ctx, o.policy.SkipDelay)
		return nil
	}

	quotes, err := o.fetchQuotes(ctx)
	if err != nil {
		return err
	}

	opp := o.deps.Evaluator.Evaluate(quotes[0], quotes[1], o.policy.Pair, o.policy.Notional)
	if opp == nil {
		o.logger.Debug("no opportunity")
		return nil
	}

	o.logger.Info("opportunity detected",
		slog.String("id", opp.ID),
		slog.Int64("divergence_bps", opp.DivergenceBps),
		slog.String("buy_venue", opp.BuyVenue),
		slog.String("sell_venue", opp.SellVenue),
		slog.String("estimated_profit", opp.EstimatedProfit.String()),
	)
	o.emit(ctx, opportunityEvent(opp))

	if o.policy.DryRun {
		return nil
	}
	return o.execute(ctx, opp)
}

// gasCheck samples the suggested gas price, records it, and reports whether
// the cycle should be skipped for exceeding the ceiling.
func (o *Orchestrator) gasCheck(ctx context.Context) (bool, error) {
	price, err := o.deps.Chain.SuggestGasPrice(ctx)
	if err != nil {
		return false, fmt.Errorf("orchestrator: gas price: %w", err)
	}

	sample := domain.GasSample{PriceWei: price, SampledAt: time.Now().UTC()}
	o.mu.Lock()
	o.gasSamples = append(o.gasSamples, sample)
	if limit := o.policy.GasSampleLimit; limit > 0 && len(o.gasSamples) > limit {
		o.gasSamples = o.gasSamples[len(o.gasSamples)-limit:]
	}
	o.mu.Unlock()

	if o.deps.Cache != nil {
		if err := o.deps.Cache.PushGasSample(ctx, sample); err != nil {
			o.logger.Warn("gas sample cache write failed", slog.String("error", err.Error()))
		}
	}

	if o.policy.GasCeilingWei != nil && o.policy.GasCeilingWei.Sign() > 0 && price.Cmp(o.policy.GasCeilingWei) > 0 {
		o.logger.Info("gas above ceiling, skipping cycle",
			slog.String("price_wei", price.String()),
			slog.String("ceiling_wei", o.policy.GasCeilingWei.String()),
		)
		return true, nil
	}
	return false, nil
}

// fetchQuotes polls every source concurrently. A single source failing is
// tolerated as long as two valid quotes remain; fewer fails the cycle.
func (o *Orchestrator) fetchQuotes(ctx context.Context) ([]domain.Quote, error) {
	results := make([]domain.Quote, len(o.deps.Sources))
	errs := make([]error, len(o.deps.Sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range o.deps.Sources {
		g.Go(func() error {
			out, err := src.Quote(gctx, o.policy.Pair.TokenA, o.policy.Pair.TokenB, o.policy.FeeTier, o.policy.Notional)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = domain.Quote{
				Venue:     src.Venue(),
				AmountIn:  new(big.Int).Set(o.policy.Notional),
				AmountOut: out,
				QuotedAt:  time.Now().UTC(),
			}
			return nil
		})
	}
	_ = g.Wait()

	valid := results[:0:0]
	for i, q := range results {
		if errs[i] != nil {
			o.logger.Warn("quote failed",
				slog.String("venue", o.deps.Sources[i].Venue()),
				slog.String("error", errs[i].Error()),
			)
			continue
		}
		if q.Valid() {
			valid = append(valid, q)
		}
	}
	if len(valid) < 2 {
		return nil, fmt.Errorf("orchestrator: only %d of %d venues answered", len(valid), len(o.deps.Sources))
	}
	return valid, nil
}

// execute rehearses and submits the trade for one opportunity. At most one
// trade is ever in flight; a second call while one is pending returns
// domain.ErrInFlight.
func (o *Orchestrator) execute(ctx context.Context, opp *domain.Opportunity) error {
	if !o.inFlight.CompareAndSwap(false, true) {
		return domain.ErrInFlight
	}
	defer o.inFlight.Store(false)
	o.setState(StateExecute)

	blob, err := o.buildInstructions(opp)
	if err != nil {
		return err
	}
	if err := o.rehearse(opp, blob); err != nil {
		return fmt.Errorf("orchestrator: rehearsal: %w", err)
	}

	if o.deps.Guard != nil {
		if err := o.deps.Guard.EnsureFunded(ctx); err != nil {
			return err
		}
	}

	receipt, err := o.deps.Loans.Borrow(ctx, domain.LoanRequest{
		Asset:       opp.Pair.TokenA,
		Amount:      opp.Notional,
		Params:      blob,
		ReferralTag: o.policy.ReferralCode,
	})
	if err != nil {
		return err
	}

	outcome := o.deps.Interpreter.Interpret(opp, receipt)
	o.record(ctx, outcome)

	o.mu.Lock()
	o.tradesExecuted++
	o.mu.Unlock()

	o.emit(ctx, tradeEvent(outcome))
	return nil
}

// buildInstructions packs the two swap legs and encodes the instruction
// blob. Leg one swaps the borrowed asset into the counter token on the
// high-quote venue; leg two swaps back on the low-quote venue with the
// repayment amount as its slippage floor.
func (o *Orchestrator) buildInstructions(opp *domain.Opportunity) ([]byte, error) {
	sellProducer, ok := o.deps.Producers[opp.SellVenue]
	if !ok {
		return nil, fmt.Errorf("orchestrator: no producer for venue %s", opp.SellVenue)
	}
	buyProducer, ok := o.deps.Producers[opp.BuyVenue]
	if !ok {
		return nil, fmt.Errorf("orchestrator: no producer for venue %s", opp.BuyVenue)
	}

	recipient := o.deps.Loans.Receiver()
	deadline := big.NewInt(time.Now().Add(o.policy.TxDeadline).Unix())
	repayFloor := new(big.Int).Add(opp.Notional, opp.LoanFee)

	sellTarget, sellPayload, err := sellProducer.BuildSwap(
		opp.Pair.TokenA, opp.Pair.TokenB, opp.Notional, opp.SellPrice, recipient, deadline)
	if err != nil {
		return nil, err
	}
	buyTarget, buyPayload, err := buyProducer.BuildSwap(
		opp.Pair.TokenB, opp.Pair.TokenA, opp.SellPrice, repayFloor, recipient, deadline)
	if err != nil {
		return nil, err
	}

	return settlement.EncodeInstructions(settlement.Instructions{
		MinProfit: o.policy.MinProfit,
		Targets:   []common.Address{sellTarget, buyTarget},
		Payloads:  [][]byte{sellPayload, buyPayload},
	})
}

// rehearse replays the full settlement state machine off chain against a
// simulated ledger, applying the quoted amounts as the swap effects. A
// rehearsal failure means the real transaction would revert, so the trade is
// not submitted.
func (o *Orchestrator) rehearse(opp *domain.Opportunity, blob []byte) error {
	self := o.deps.Loans.Receiver()
	asset := opp.Pair.TokenA

	ledger := settlement.NewSimLedger()
	ledger.SetBalance(asset, self, opp.Notional)

	legs := 0
	exec := settlement.CallFunc(func(common.Address, []byte) error {
		legs++
		if legs == 2 {
			// Net asset effect of the round trip at quoted prices.
			gain := new(big.Int).Sub(opp.SellPrice, opp.BuyPrice)
			bal := ledger.BalanceOf(asset, self)
			ledger.SetBalance(asset, self, bal.Add(bal, gain))
		}
		return nil
	})

	engine := settlement.NewEngine(self, o.deps.Operator, o.deps.Pool, o.deps.Pool, ledger, exec, o.logger)
	surplus, err := engine.SettleAtomic(settlement.Session{
		Asset:     asset,
		Amount:    opp.Notional,
		Premium:   opp.LoanFee,
		Initiator: o.deps.Operator,
		Caller:    o.deps.Pool,
		Params:    blob,
	})
	if err != nil {
		return err
	}

	o.logger.Debug("rehearsal passed", slog.String("surplus", surplus.String()))
	return nil
}

// record persists the outcome to every configured sink. Sink failures are
// logged, never fatal.
func (o *Orchestrator) record(ctx context.Context, outcome domain.Outcome) {
	if o.deps.Store != nil {
		if err := o.deps.Store.Create(ctx, outcome); err != nil {
			o.logger.Error("outcome store write failed", slog.String("error", err.Error()))
		}
	}
	if o.deps.Cache != nil {
		if err := o.deps.Cache.PushOutcome(ctx, outcome); err != nil {
			o.logger.Warn("outcome cache write failed", slog.String("error", err.Error()))
		}
	}
}

// emit publishes an event on the signal bus and forwards it to the notifier.
func (o *Orchestrator) emit(ctx context.Context, e domain.Event) {
	if o.deps.Bus != nil {
		payload, err := json.Marshal(e)
		if err == nil {
			if err := o.deps.Bus.Publish(ctx, domain.ChannelFor(e.Type), payload); err != nil {
				o.logger.Warn("bus publish failed", slog.String("error", err.Error()))
			}
		}
	}
	if o.deps.Notifier != nil {
		if err := o.deps.Notifier.Send(ctx, e); err != nil {
			o.logger.Warn("notify failed", slog.String("error", err.Error()))
		}
	}
}

func (o *Orchestrator) recordError(err error) {
	o.mu.Lock()
	o.lastError = err.Error()
	o.mu.Unlock()
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func opportunityEvent(opp *domain.Opportunity) domain.Event {
	return domain.Event{
		Type:    domain.EventOpportunity,
		Title:   "opportunity detected",
		Message: fmt.Sprintf("buy %s / sell %s at %.2f%% divergence", opp.BuyVenue, opp.SellVenue, opp.DivergencePct()),
		Fields: map[string]string{
			"id":               opp.ID,
			"divergence_bps":   fmt.Sprintf("%d", opp.DivergenceBps),
			"estimated_profit": opp.EstimatedProfit.String(),
			"notional":         opp.Notional.String(),
		},
		At: opp.DetectedAt,
	}
}

func tradeEvent(outcome domain.Outcome) domain.Event {
	msg := string(outcome.Status)
	if outcome.Reason != "" {
		msg = fmt.Sprintf("%s: %s", outcome.Status, outcome.Reason)
	}
	fields := map[string]string{
		"opportunity_id": outcome.OpportunityID,
		"tx_hash":        outcome.TxHash,
		"status":         string(outcome.Status),
	}
	if outcome.Profit != nil {
		fields["profit"] = outcome.Profit.String()
	}
	return domain.Event{
		Type:    domain.EventTrade,
		Title:   "trade settled",
		Message: msg,
		Fields:  fields,
		At:      outcome.SettledAt,
	}
}
