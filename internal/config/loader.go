package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets (the wallet key above all) at deploy time
// without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "ARBBOT_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "ARBBOT_CHAIN_ID")
	setInt64(&cfg.Chain.GasCeilingGwei, "ARBBOT_CHAIN_GAS_CEILING_GWEI")
	setDuration(&cfg.Chain.TxDeadline, "ARBBOT_CHAIN_TX_DEADLINE")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "ARBBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.OperatorAddress, "ARBBOT_WALLET_OPERATOR_ADDRESS")

	// ── Contracts ──
	setStr(&cfg.Contracts.Settlement, "ARBBOT_CONTRACTS_SETTLEMENT")
	setStr(&cfg.Contracts.AavePool, "ARBBOT_CONTRACTS_AAVE_POOL")
	setStr(&cfg.Contracts.UniswapQuoter, "ARBBOT_CONTRACTS_UNISWAP_QUOTER")
	setStr(&cfg.Contracts.UniswapRouter, "ARBBOT_CONTRACTS_UNISWAP_ROUTER")
	setStr(&cfg.Contracts.SushiRouter, "ARBBOT_CONTRACTS_SUSHI_ROUTER")

	// ── Tokens ──
	setStr(&cfg.Tokens.Base, "ARBBOT_TOKENS_BASE")
	setStr(&cfg.Tokens.Quote, "ARBBOT_TOKENS_QUOTE")
	setInt(&cfg.Tokens.BaseDecimals, "ARBBOT_TOKENS_BASE_DECIMALS")

	// ── Trading ──
	setStr(&cfg.Trading.Notional, "ARBBOT_TRADING_NOTIONAL")
	setStr(&cfg.Trading.MinProfit, "ARBBOT_TRADING_MIN_PROFIT")
	setInt64(&cfg.Trading.MinDivergenceBps, "ARBBOT_TRADING_MIN_DIVERGENCE_BPS")
	setInt64(&cfg.Trading.LoanFeeBps, "ARBBOT_TRADING_LOAN_FEE_BPS")
	setUint32(&cfg.Trading.UniswapFeeTier, "ARBBOT_TRADING_UNISWAP_FEE_TIER")
	setInt(&cfg.Trading.ReferralCode, "ARBBOT_TRADING_REFERRAL_CODE")
	setDuration(&cfg.Trading.PollInterval, "ARBBOT_TRADING_POLL_INTERVAL")
	setDuration(&cfg.Trading.SkipDelay, "ARBBOT_TRADING_SKIP_DELAY")
	setInt(&cfg.Trading.GasSampleLimit, "ARBBOT_TRADING_GAS_SAMPLE_LIMIT")

	// ── Funding ──
	setStr(&cfg.Funding.MinWorkingCapital, "ARBBOT_FUNDING_MIN_WORKING_CAPITAL")
	setStr(&cfg.Funding.GasReserveWei, "ARBBOT_FUNDING_GAS_RESERVE_WEI")

	// ── Database ──
	setStr(&cfg.Database.DSN, "ARBBOT_DATABASE_DSN")
	setStr(&cfg.Database.Host, "ARBBOT_DATABASE_HOST")
	setInt(&cfg.Database.Port, "ARBBOT_DATABASE_PORT")
	setStr(&cfg.Database.Database, "ARBBOT_DATABASE_NAME")
	setStr(&cfg.Database.User, "ARBBOT_DATABASE_USER")
	setStr(&cfg.Database.Password, "ARBBOT_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "ARBBOT_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "ARBBOT_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "ARBBOT_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "ARBBOT_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARBBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ARBBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ARBBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "ARBBOT_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "ARBBOT_S3_RETENTION_DAYS")
	setDuration(&cfg.S3.ArchiveInterval, "ARBBOT_S3_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARBBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARBBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ARBBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ARBBOT_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBBOT_MODE")
	setStr(&cfg.LogLevel, "ARBBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint32(dst *uint32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			*dst = uint32(n)
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
