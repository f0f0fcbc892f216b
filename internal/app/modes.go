package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/config"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/domain"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/evaluator"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/orchestrator"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/report"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/server"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/server/handler"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/server/ws"
)

// RunMode starts the trading loop and, when configured, the outcome
// archiver. No HTTP surface is exposed; use full mode for that.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting run mode")

	loop, err := a.buildLoop(ctx, deps, false)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(ctx)
	})
	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx)
		})
	}
	return g.Wait()
}

// ScanMode runs the loop in dry-run: quotes are fetched and opportunities
// evaluated and reported, but no transaction is ever submitted. No wallet is
// required.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	loop, err := a.buildLoop(ctx, deps, true)
	if err != nil {
		return err
	}
	return loop.Run(ctx)
}

// ServerMode serves the HTTP and WebSocket API without touching the chain.
// The status endpoint reports stored outcomes and cached gas history from
// whatever run-mode instance shares the same stores.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps, nil)
	return g.Wait()
}

// FullMode runs the trading loop and the HTTP server in one process. The
// status endpoint reports the live loop state.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	loop, err := a.buildLoop(ctx, deps, false)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(ctx)
	})
	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx)
		})
	}
	a.startServer(ctx, g, deps, loop)
	return g.Wait()
}

// buildLoop assembles the orchestrator from configuration and wired
// dependencies. In execution modes it also cross-checks the configured
// flash-loan premium against the pool's on-chain value.
func (a *App) buildLoop(ctx context.Context, deps *Dependencies, dryRun bool) (*orchestrator.Orchestrator, error) {
	policy, err := a.buildPolicy(dryRun)
	if err != nil {
		return nil, err
	}

	odeps := orchestrator.Deps{
		Sources:   deps.Sources,
		Producers: deps.Producers,
		Evaluator: evaluator.New(evaluator.Config{
			MinDivergenceBps: a.cfg.Trading.MinDivergenceBps,
			LoanFeeBps:       a.cfg.Trading.LoanFeeBps,
			MinProfit:        policy.MinProfit,
		}, a.logger),
		Chain: deps.Chain,
		Pool:  common.HexToAddress(a.cfg.Contracts.AavePool),
		Store: deps.OutcomeStore,
		Cache: deps.HistoryCache,
		Bus:   deps.SignalBus,
	}
	if deps.Notifier != nil {
		odeps.Notifier = deps.Notifier
	}

	if !dryRun {
		odeps.Operator = deps.Signer.Address()
		odeps.Loans = deps.LoanGateway
		odeps.Interpreter = report.NewInterpreter(policy.MinProfit, a.logger)
		if deps.Guard != nil {
			odeps.Guard = deps.Guard
		}

		// The configured premium feeds profit estimation; a drift from the
		// pool's live value would make every estimate wrong.
		premium, err := deps.LoanGateway.PremiumBps(ctx)
		if err != nil {
			a.logger.WarnContext(ctx, "could not read pool premium, trusting configured value",
				slog.Int64("configured_bps", a.cfg.Trading.LoanFeeBps),
				slog.String("error", err.Error()),
			)
		} else if premium.Int64() != a.cfg.Trading.LoanFeeBps {
			return nil, fmt.Errorf("app: pool premium is %s bps, config says %d", premium, a.cfg.Trading.LoanFeeBps)
		}
	}

	return orchestrator.New(policy, odeps, a.logger)
}

// buildPolicy resolves the trading configuration into chain-native units.
func (a *App) buildPolicy(dryRun bool) (orchestrator.Policy, error) {
	notional, err := config.BigInt(a.cfg.Trading.Notional)
	if err != nil {
		return orchestrator.Policy{}, fmt.Errorf("app: notional: %w", err)
	}
	minProfit, err := config.BigInt(a.cfg.Trading.MinProfit)
	if err != nil {
		return orchestrator.Policy{}, fmt.Errorf("app: min_profit: %w", err)
	}
	gasReserve, err := config.BigInt(a.cfg.Funding.GasReserveWei)
	if err != nil {
		return orchestrator.Policy{}, fmt.Errorf("app: gas_reserve_wei: %w", err)
	}

	var ceiling *big.Int
	if gwei := a.cfg.Chain.GasCeilingGwei; gwei > 0 {
		ceiling = new(big.Int).Mul(big.NewInt(gwei), big.NewInt(1e9))
	}

	return orchestrator.Policy{
		Pair:         domainPair(a.cfg.Tokens),
		Notional:     notional,
		MinProfit:    minProfit,
		FeeTier:      a.cfg.Trading.UniswapFeeTier,
		ReferralCode: uint16(a.cfg.Trading.ReferralCode),

		PollInterval:   a.cfg.Trading.PollInterval.Duration,
		SkipDelay:      a.cfg.Trading.SkipDelay.Duration,
		GasCeilingWei:  ceiling,
		GasReserve:     gasReserve,
		GasSampleLimit: a.cfg.Trading.GasSampleLimit,
		TxDeadline:     a.cfg.Chain.TxDeadline.Duration,

		DryRun: dryRun,
	}, nil
}

func domainPair(t config.TokensConfig) domain.Pair {
	return domain.Pair{
		TokenA: common.HexToAddress(t.Base),
		TokenB: common.HexToAddress(t.Quote),
	}
}

// startServer registers the HTTP routes and WebSocket hub on the errgroup.
// statusSource may be nil when no loop runs in this process.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, statusSource handler.StatusSource) {
	startedAt := time.Now().UTC()

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: startedAt,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, server.Handlers{
		Health:   handler.NewHealthHandler(a.logger),
		Status:   handler.NewStatusHandler(statusSource, a.cfg.Mode, startedAt, a.logger),
		Outcomes: handler.NewOutcomesHandler(deps.OutcomeStore, deps.HistoryCache, a.logger),
	}, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
