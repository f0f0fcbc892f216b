package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/metuDein/aave-flash-arbitrage-bot/internal/blob/s3"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/cache/redis"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/chain"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/config"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/domain"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/funding"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/loan"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/notify"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/oracle"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/settlement"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/store/postgres"
)

// Dependencies holds every wired component. Fields are nil when the
// operating mode does not need them: server mode carries no chain client,
// scan mode carries no wallet.
type Dependencies struct {
	Chain      *chain.Client
	Signer     *chain.Signer
	BaseToken  *chain.ERC20
	Settlement *settlement.Contract

	LoanGateway *loan.Gateway
	Guard       *funding.Guard
	Sources     []domain.PriceSource
	Producers   map[string]oracle.InstructionProducer

	OutcomeStore domain.OutcomeStore
	HistoryCache domain.HistoryCache
	SignalBus    domain.SignalBus
	Archiver     *s3blob.Archiver
	Notifier     *notify.Notifier
}

func needsChain(mode string) bool {
	switch strings.ToLower(mode) {
	case "run", "scan", "full":
		return true
	}
	return false
}

func needsWallet(mode string) bool {
	switch strings.ToLower(mode) {
	case "run", "full":
		return true
	}
	return false
}

// Wire constructs all dependencies for the given configuration. It returns
// the dependencies, a cleanup function that closes everything in reverse
// order, and an error. On error the partially constructed resources are
// already closed.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()
	deps := &Dependencies{}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// PostgreSQL outcome store.
	pg, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: postgres: %w", err))
	}
	closers = append(closers, pg.Close)
	if cfg.Database.RunMigrations {
		if err := pg.RunMigrations(ctx); err != nil {
			return fail(fmt.Errorf("wire: migrations: %w", err))
		}
	}
	deps.OutcomeStore = postgres.NewOutcomeStore(pg.Pool())

	// Redis history cache and signal bus.
	rdb, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: redis: %w", err))
	}
	closers = append(closers, func() { _ = rdb.Close() })
	deps.HistoryCache = redis.NewHistoryCache(rdb, cfg.Trading.GasSampleLimit)
	deps.SignalBus = redis.NewSignalBus(rdb)

	// S3 outcome archive.
	if cfg.S3.Enabled {
		s3c, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		closers = append(closers, func() { _ = s3c.Close() })
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3c),
			deps.OutcomeStore,
			cfg.S3.RetentionDays,
			cfg.S3.ArchiveInterval.Duration,
			logger,
		)
	}

	// Notification channels.
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	if needsChain(cfg.Mode) {
		client, err := chain.Dial(ctx, cfg.Chain.RPCURL, cfg.Chain.ChainID, logger)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, client.Close)
		deps.Chain = client

		// Per-venue price sources and swap instruction producers.
		backend := client.Backend()
		deps.Sources = []domain.PriceSource{
			oracle.NewUniswapQuoter(common.HexToAddress(cfg.Contracts.UniswapQuoter), backend, logger),
			oracle.NewSushiQuoter(common.HexToAddress(cfg.Contracts.SushiRouter), backend, logger),
		}
		uni := oracle.NewUniswapProducer(common.HexToAddress(cfg.Contracts.UniswapRouter), cfg.Trading.UniswapFeeTier)
		sushi := oracle.NewSushiProducer(common.HexToAddress(cfg.Contracts.SushiRouter))
		deps.Producers = map[string]oracle.InstructionProducer{
			uni.Venue():   uni,
			sushi.Venue(): sushi,
		}
	}

	if needsWallet(cfg.Mode) {
		signer, err := chain.NewSigner(cfg.Wallet.PrivateKey, cfg.Chain.ChainID)
		if err != nil {
			return fail(fmt.Errorf("wire: signer: %w", err))
		}
		deps.Signer = signer

		backend := deps.Chain.Backend()
		deps.BaseToken = chain.NewERC20(common.HexToAddress(cfg.Tokens.Base), backend)
		deps.Settlement = settlement.NewContract(common.HexToAddress(cfg.Contracts.Settlement), backend)

		deps.LoanGateway = loan.NewGateway(
			common.HexToAddress(cfg.Contracts.AavePool),
			deps.Settlement.Address(),
			deps.Chain,
			signer,
			cfg.Chain.TxDeadline.Duration,
			logger,
		)

		minCapital, err := config.BigInt(cfg.Funding.MinWorkingCapital)
		if err != nil {
			return fail(fmt.Errorf("wire: funding: %w", err))
		}
		if minCapital.Sign() > 0 {
			deps.Guard = funding.NewGuard(funding.Config{
				MinBalance: minCapital,
				TopUp:      minCapital,
				TxDeadline: cfg.Chain.TxDeadline.Duration,
			}, deps.BaseToken, deps.Settlement, signer, deps.Chain, logger)
		}
	}

	return deps, cleanup, nil
}
