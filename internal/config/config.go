// Package config loads bot configuration from a YAML file with .env overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/azmshoh/sniper-bot/internal/domain"
)

// Config is the full bot configuration.
type Config struct {
	Networks map[string]NetworkConfig `yaml:"networks"`
	Trading  TradingConfig            `yaml:"trading"`
	Watcher  WatcherConfig            `yaml:"watcher"`
	Retry    RetryConfig              `yaml:"retry"`
	Pool     PoolConfig               `yaml:"pool"`
	Storage  StorageConfig            `yaml:"storage"`
	Metrics  MetricsConfig            `yaml:"metrics"`
}

// NetworkConfig describes one chain and its exchanges.
type NetworkConfig struct {
	ChainID      int64                     `yaml:"chain_id"`
	Currency     string                    `yaml:"currency"` // BNB, ETH, MATIC
	MinLiquidity float64                   `yaml:"min_liquidity"`
	Endpoints    []string                  `yaml:"endpoints"`
	WSEndpoint   string                    `yaml:"ws_endpoint"` // optional push discovery
	Exchanges    map[string]ExchangeConfig `yaml:"exchanges"`
}

// ExchangeConfig holds the factory/router addresses of one DEX.
type ExchangeConfig struct {
	Factory      string `yaml:"factory"`
	Router       string `yaml:"router"`
	WrappedToken string `yaml:"wrapped_token"`
}

// TradingConfig controls entry sizing and the exit ladder.
type TradingConfig struct {
	PrivateKey    string `yaml:"-"`              // only via PRIVATE_KEY env
	WalletAddress string `yaml:"wallet_address"` // account the node signs for

	MaxBuyTaxPct  float64 `yaml:"max_buy_tax_pct"`
	MaxSellTaxPct float64 `yaml:"max_sell_tax_pct"`

	// Entry sizing: locked liquidity buys a percentage of the wallet
	// balance, unlocked buys a fixed quote-currency amount.
	BalancePercent   float64 `yaml:"balance_percent"`
	FixedQuoteAmount float64 `yaml:"fixed_quote_amount"`

	StopLossFraction     float64 `yaml:"stop_loss_fraction"`
	TrailingStopFraction float64 `yaml:"trailing_stop_fraction"`

	TimeoutWindowSeconds int     `yaml:"timeout_window_seconds"`
	TimeoutMultiple      float64 `yaml:"timeout_multiple"`

	PollIntervalSeconds int `yaml:"poll_interval_seconds"`

	LadderLocked   []domain.Tier `yaml:"ladder_locked"`
	LadderUnlocked []domain.Tier `yaml:"ladder_unlocked"`

	// StableChecks is the number of consecutive stable liquidity readings
	// required before a candidate is traded.
	StableChecks int `yaml:"stable_checks"`

	Blacklist []string `yaml:"blacklist"`
}

// WatcherConfig controls pair discovery.
type WatcherConfig struct {
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	DedupeWindow        int `yaml:"dedupe_window"`
}

// RetryConfig bounds every logical remote operation.
type RetryConfig struct {
	MaxAttempts  int `yaml:"max_attempts"`
	BackoffMs    int `yaml:"backoff_ms"`
	BackoffMaxMs int `yaml:"backoff_max_ms"`
}

// PoolConfig controls endpoint reliability tracking.
type PoolConfig struct {
	FailureThreshold   int     `yaml:"failure_threshold"`
	CooldownBaseSecond int     `yaml:"cooldown_base_seconds"`
	CooldownMaxSecond  int     `yaml:"cooldown_max_seconds"`
	ScoreGain          float64 `yaml:"score_gain"`
	ScoreDecay         float64 `yaml:"score_decay"`
	RatePerSecond      float64 `yaml:"rate_per_second"`
}

// StorageConfig selects the persistence backends.
type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"` // optional price-sample archive
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the metrics server
}

// Load reads the YAML config at path and applies .env overrides.
// Values from the environment win over the file for the keys they cover.
func Load(path string) (*Config, error) {
	// Load .env if present; missing file is not an error.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PollInterval returns the position price-check interval.
func (c *TradingConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// TimeoutWindow returns the no-multiple timeout window.
func (c *TradingConfig) TimeoutWindow() time.Duration {
	return time.Duration(c.TimeoutWindowSeconds) * time.Second
}

// Ladder returns the take-profit ladder for the given lock status.
func (c *TradingConfig) Ladder(liquidityLocked bool) []domain.Tier {
	if liquidityLocked {
		return c.LadderLocked
	}
	return c.LadderUnlocked
}

// Blacklisted reports whether a token address is configured as untradable.
func (c *TradingConfig) Blacklisted(token string) bool {
	for _, b := range c.Blacklist {
		if strings.EqualFold(b, token) {
			return true
		}
	}
	return false
}

// PollInterval returns the discovery poll interval.
func (c *WatcherConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// Backoff returns the initial retry backoff.
func (c *RetryConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffMs) * time.Millisecond
}

// BackoffMax returns the retry backoff ceiling.
func (c *RetryConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMs) * time.Millisecond
}

// CooldownBase returns the initial endpoint cooldown.
func (c *PoolConfig) CooldownBase() time.Duration {
	return time.Duration(c.CooldownBaseSecond) * time.Second
}

// CooldownMax returns the endpoint cooldown ceiling.
func (c *PoolConfig) CooldownMax() time.Duration {
	return time.Duration(c.CooldownMaxSecond) * time.Second
}

// Validate rejects configurations the orchestrator cannot run with.
func (c *Config) Validate() error {
	if len(c.Networks) == 0 {
		return fmt.Errorf("config: no networks configured")
	}
	for name, n := range c.Networks {
		if len(n.Endpoints) == 0 {
			return fmt.Errorf("config: network %q has no endpoints", name)
		}
		if len(n.Exchanges) == 0 {
			return fmt.Errorf("config: network %q has no exchanges", name)
		}
		for ex, e := range n.Exchanges {
			if e.Factory == "" || e.Router == "" || e.WrappedToken == "" {
				return fmt.Errorf("config: exchange %s/%s missing factory, router or wrapped_token", name, ex)
			}
		}
	}
	if err := validateLadder("ladder_locked", c.Trading.LadderLocked); err != nil {
		return err
	}
	if err := validateLadder("ladder_unlocked", c.Trading.LadderUnlocked); err != nil {
		return err
	}
	if c.Trading.StopLossFraction <= 0 || c.Trading.StopLossFraction >= 1 {
		return fmt.Errorf("config: stop_loss_fraction must be in (0, 1)")
	}
	if c.Trading.TrailingStopFraction <= 0 || c.Trading.TrailingStopFraction >= 1 {
		return fmt.Errorf("config: trailing_stop_fraction must be in (0, 1)")
	}
	return nil
}

func validateLadder(name string, ladder []domain.Tier) error {
	var prev float64
	for i, tier := range ladder {
		if tier.Multiplier <= 1 {
			return fmt.Errorf("config: %s[%d]: multiplier must exceed 1", name, i)
		}
		if tier.Multiplier <= prev {
			return fmt.Errorf("config: %s[%d]: multipliers must be strictly ascending", name, i)
		}
		if tier.SellFraction <= 0 || tier.SellFraction > 1 {
			return fmt.Errorf("config: %s[%d]: sell_fraction must be in (0, 1]", name, i)
		}
		prev = tier.Multiplier
	}
	if n := len(ladder); n > 0 && ladder[n-1].SellFraction != 1 {
		return fmt.Errorf("config: %s: final tier must sell the full remaining quantity", name)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PRIVATE_KEY"); v != "" {
		cfg.Trading.PrivateKey = v
	}
	if v := os.Getenv("WALLET_ADDRESS"); v != "" {
		cfg.Trading.WalletAddress = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}

// setDefaults mirrors the long-standing production constants.
func setDefaults(cfg *Config) {
	if cfg.Trading.MaxBuyTaxPct <= 0 {
		cfg.Trading.MaxBuyTaxPct = 10
	}
	if cfg.Trading.MaxSellTaxPct <= 0 {
		cfg.Trading.MaxSellTaxPct = 10
	}
	if cfg.Trading.BalancePercent <= 0 {
		cfg.Trading.BalancePercent = 10
	}
	if cfg.Trading.FixedQuoteAmount <= 0 {
		cfg.Trading.FixedQuoteAmount = 1
	}
	if cfg.Trading.StopLossFraction <= 0 {
		cfg.Trading.StopLossFraction = 0.20
	}
	if cfg.Trading.TrailingStopFraction <= 0 {
		cfg.Trading.TrailingStopFraction = 0.20
	}
	if cfg.Trading.TimeoutWindowSeconds <= 0 {
		cfg.Trading.TimeoutWindowSeconds = 300
	}
	if cfg.Trading.TimeoutMultiple <= 0 {
		cfg.Trading.TimeoutMultiple = 2
	}
	if cfg.Trading.PollIntervalSeconds <= 0 {
		cfg.Trading.PollIntervalSeconds = 2
	}
	if cfg.Trading.StableChecks <= 0 {
		cfg.Trading.StableChecks = 3
	}
	if len(cfg.Trading.LadderLocked) == 0 {
		cfg.Trading.LadderLocked = []domain.Tier{
			{Multiplier: 3, SellFraction: 0.33},
			{Multiplier: 10, SellFraction: 0.50},
			{Multiplier: 50, SellFraction: 1.00},
		}
	}
	if len(cfg.Trading.LadderUnlocked) == 0 {
		cfg.Trading.LadderUnlocked = []domain.Tier{
			{Multiplier: 2, SellFraction: 0.50},
			{Multiplier: 5, SellFraction: 0.50},
			{Multiplier: 10, SellFraction: 0.50},
			{Multiplier: 20, SellFraction: 1.00},
		}
	}
	if cfg.Watcher.PollIntervalSeconds <= 0 {
		cfg.Watcher.PollIntervalSeconds = 15
	}
	if cfg.Watcher.DedupeWindow <= 0 {
		cfg.Watcher.DedupeWindow = 4096
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BackoffMs <= 0 {
		cfg.Retry.BackoffMs = 500
	}
	if cfg.Retry.BackoffMaxMs <= 0 {
		cfg.Retry.BackoffMaxMs = 10000
	}
	if cfg.Pool.FailureThreshold <= 0 {
		cfg.Pool.FailureThreshold = 3
	}
	if cfg.Pool.CooldownBaseSecond <= 0 {
		cfg.Pool.CooldownBaseSecond = 5
	}
	if cfg.Pool.CooldownMaxSecond <= 0 {
		cfg.Pool.CooldownMaxSecond = 300
	}
	if cfg.Pool.ScoreGain <= 0 {
		cfg.Pool.ScoreGain = 0.2
	}
	if cfg.Pool.ScoreDecay <= 0 {
		cfg.Pool.ScoreDecay = 0.5
	}
	if cfg.Pool.RatePerSecond <= 0 {
		cfg.Pool.RatePerSecond = 10
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
}
