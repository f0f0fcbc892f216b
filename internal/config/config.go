// Package config defines the top-level configuration for the arbitrage bot
// and provides validation helpers.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ARBBOT_* environment variables.
type Config struct {
	Chain     ChainConfig     `toml:"chain"`
	Wallet    WalletConfig    `toml:"wallet"`
	Contracts ContractsConfig `toml:"contracts"`
	Tokens    TokensConfig    `toml:"tokens"`
	Trading   TradingConfig   `toml:"trading"`
	Funding   FundingConfig   `toml:"funding"`
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// ChainConfig holds RPC endpoint and transaction parameters.
type ChainConfig struct {
	RPCURL string `toml:"rpc_url"`
	// ChainID must match the endpoint's chain; the client verifies it on
	// connect.
	ChainID int64 `toml:"chain_id"`
	// GasCeilingGwei: cycles are skipped while the suggested gas price
	// exceeds this ceiling. Zero disables the check.
	GasCeilingGwei int64 `toml:"gas_ceiling_gwei"`
	// TxDeadline bounds how long a submitted transaction is waited on before
	// the cycle records a failure. Distinct from the RPC dial timeout.
	TxDeadline duration `toml:"tx_deadline"`
}

// WalletConfig holds the operator's signing credentials.
type WalletConfig struct {
	PrivateKey string `toml:"private_key"`
	// OperatorAddress is derived from the private key when empty.
	OperatorAddress string `toml:"operator_address"`
}

// ContractsConfig holds the deployed contract addresses the bot talks to.
type ContractsConfig struct {
	Settlement    string `toml:"settlement"`
	AavePool      string `toml:"aave_pool"`
	UniswapQuoter string `toml:"uniswap_quoter"`
	UniswapRouter string `toml:"uniswap_router"`
	SushiRouter   string `toml:"sushi_router"`
}

// TokensConfig identifies the monitored pair. Base is the borrowed asset.
type TokensConfig struct {
	Base         string `toml:"base"`
	Quote        string `toml:"quote"`
	BaseDecimals int    `toml:"base_decimals"`
}

// TradingConfig holds the evaluation and execution policy. Amounts are
// decimal strings in the asset's base units (wei at 18 decimals) so that no
// precision is lost in TOML.
type TradingConfig struct {
	Notional         string   `toml:"notional"`
	MinProfit        string   `toml:"min_profit"`
	MinDivergenceBps int64    `toml:"min_divergence_bps"`
	LoanFeeBps       int64    `toml:"loan_fee_bps"`
	UniswapFeeTier   uint32   `toml:"uniswap_fee_tier"`
	ReferralCode     int      `toml:"referral_code"`
	PollInterval     duration `toml:"poll_interval"`
	SkipDelay        duration `toml:"skip_delay"`
	GasSampleLimit   int      `toml:"gas_sample_limit"`
}

// FundingConfig holds the working-capital policy enforced at startup.
type FundingConfig struct {
	MinWorkingCapital string `toml:"min_working_capital"`
	// GasReserveWei is the minimum gas-token balance the operator account
	// must hold before the loop starts.
	GasReserveWei string `toml:"gas_reserve_wei"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the outcome
// store.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the history cache and
// signal bus.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds object storage parameters for the outcome archive.
type S3Config struct {
	Enabled         bool     `toml:"enabled"`
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	RetentionDays   int      `toml:"retention_days"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// ServerConfig holds status HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "60s", "5m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// Contract and token addresses have no sensible defaults and must come from
// the TOML file or environment.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:         "http://localhost:8545",
			ChainID:        1,
			GasCeilingGwei: 150,
			TxDeadline:     duration{5 * time.Minute},
		},
		Tokens: TokensConfig{
			BaseDecimals: 18,
		},
		Trading: TradingConfig{
			Notional:         "10000000000000000000", // 10 units at 18 decimals
			MinProfit:        "100000000000000000",   // 0.1 units
			MinDivergenceBps: 50,
			LoanFeeBps:       9, // Aave V3 flash-loan premium
			UniswapFeeTier:   3000,
			ReferralCode:     0,
			PollInterval:     duration{60 * time.Second},
			SkipDelay:        duration{60 * time.Second},
			GasSampleLimit:   20,
		},
		Funding: FundingConfig{
			MinWorkingCapital: "0",
			GasReserveWei:     "50000000000000000", // 0.05 gas token
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:         false,
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "arbbot-archive",
			ForcePathStyle:  true,
			RetentionDays:   90,
			ArchiveInterval: duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"startup", "opportunity", "trade", "error"},
		},
		Mode:     "run",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"run":    true,
	"scan":   true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// BigInt parses a decimal base-unit amount string into a *big.Int. Empty
// strings parse as zero.
func BigInt(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("config: invalid amount %q", s)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("config: amount %q must not be negative", s)
	}
	return n, nil
}

// validAmount reports whether s parses as a non-negative decimal integer.
func validAmount(s string) bool {
	_, err := BigInt(s)
	return err == nil
}

// validAddress reports whether s is a well-formed hex address.
func validAddress(s string) bool {
	return common.IsHexAddress(s)
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: run, scan, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	mode := strings.ToLower(c.Mode)
	needsChain := mode == "run" || mode == "scan" || mode == "full"
	needsWallet := mode == "run" || mode == "full"

	if needsChain {
		if c.Chain.RPCURL == "" {
			errs = append(errs, "chain: rpc_url must not be empty")
		}
		if c.Chain.ChainID <= 0 {
			errs = append(errs, fmt.Sprintf("chain: chain_id must be positive, got %d", c.Chain.ChainID))
		}
		if c.Chain.TxDeadline.Duration <= 0 {
			errs = append(errs, "chain: tx_deadline must be positive")
		}

		if !validAddress(c.Contracts.AavePool) {
			errs = append(errs, "contracts: aave_pool must be a valid address")
		}
		if !validAddress(c.Contracts.UniswapQuoter) {
			errs = append(errs, "contracts: uniswap_quoter must be a valid address")
		}
		if !validAddress(c.Contracts.UniswapRouter) {
			errs = append(errs, "contracts: uniswap_router must be a valid address")
		}
		if !validAddress(c.Contracts.SushiRouter) {
			errs = append(errs, "contracts: sushi_router must be a valid address")
		}
		if !validAddress(c.Tokens.Base) {
			errs = append(errs, "tokens: base must be a valid address")
		}
		if !validAddress(c.Tokens.Quote) {
			errs = append(errs, "tokens: quote must be a valid address")
		}
		if c.Tokens.BaseDecimals <= 0 || c.Tokens.BaseDecimals > 36 {
			errs = append(errs, fmt.Sprintf("tokens: base_decimals must be 1-36, got %d", c.Tokens.BaseDecimals))
		}
	}

	if needsWallet {
		if c.Wallet.PrivateKey == "" {
			errs = append(errs, "wallet: private_key must be set for mode "+c.Mode)
		}
		if !validAddress(c.Contracts.Settlement) {
			errs = append(errs, "contracts: settlement must be a valid address")
		}
	}

	// Trading policy.
	if !validAmount(c.Trading.Notional) {
		errs = append(errs, fmt.Sprintf("trading: notional %q is not a valid amount", c.Trading.Notional))
	}
	if !validAmount(c.Trading.MinProfit) {
		errs = append(errs, fmt.Sprintf("trading: min_profit %q is not a valid amount", c.Trading.MinProfit))
	}
	if c.Trading.MinDivergenceBps <= 0 {
		errs = append(errs, "trading: min_divergence_bps must be > 0")
	}
	if c.Trading.LoanFeeBps < 0 || c.Trading.LoanFeeBps >= 10000 {
		errs = append(errs, fmt.Sprintf("trading: loan_fee_bps must be 0-9999, got %d", c.Trading.LoanFeeBps))
	}
	if c.Trading.PollInterval.Duration <= 0 {
		errs = append(errs, "trading: poll_interval must be positive")
	}
	if c.Trading.GasSampleLimit < 1 {
		errs = append(errs, "trading: gas_sample_limit must be >= 1")
	}

	// Funding policy.
	if !validAmount(c.Funding.MinWorkingCapital) {
		errs = append(errs, fmt.Sprintf("funding: min_working_capital %q is not a valid amount", c.Funding.MinWorkingCapital))
	}
	if !validAmount(c.Funding.GasReserveWei) {
		errs = append(errs, fmt.Sprintf("funding: gas_reserve_wei %q is not a valid amount", c.Funding.GasReserveWei))
	}

	// Database.
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 || c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must be 0..pool_max_conns")
	}

	// Redis.
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 archive.
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.RetentionDays < 1 {
			errs = append(errs, "s3: retention_days must be >= 1 when enabled")
		}
	}

	// Server.
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
