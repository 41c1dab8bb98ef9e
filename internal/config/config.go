// Package config loads the process-wide Config from YAML with environment
// variable overrides: struct tags name the YAML keys, a parallel set of env
// vars overrides them post-parse, and any invalid result is reported as an
// apperr.KindConfig error so main can exit with code 1.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bobdamio/tradeengine/internal/apperr"
	"github.com/bobdamio/tradeengine/internal/application/risk"
)

// Config is the complete startup configuration for the tradeengine process.
type Config struct {
	Symbols      []string      `yaml:"symbols"`
	CycleInterval time.Duration `yaml:"cycle_interval"`

	Timeouts TimeoutConfig `yaml:"timeouts"`
	Risk     RiskConfig    `yaml:"risk"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Advisor  AdvisorConfig  `yaml:"advisor"`
	HTTP     HTTPConfig     `yaml:"http"`
	LogLevel string         `yaml:"log_level"`
}

// TimeoutConfig holds per-stage time limits loaded from YAML and env
// overrides. Nothing outside this package reads them: the orchestrator
// applies no per-stage deadline, so no stage is cut short by these values.
type TimeoutConfig struct {
	Sync     time.Duration `yaml:"sync"`
	Analysis time.Duration `yaml:"analysis"`
	Predict  time.Duration `yaml:"predict"`
	Decision time.Duration `yaml:"decision"`
	Risk     time.Duration `yaml:"risk"`
	Exec     time.Duration `yaml:"exec"`
}

// RiskConfig mirrors risk.Config so operators can override the default
// thresholds from YAML without touching code.
type RiskConfig struct {
	MaxLeverage            float64 `yaml:"max_leverage"`
	MinSLDistancePct       float64 `yaml:"min_sl_distance_pct"`
	MaxSLDistancePct       float64 `yaml:"max_sl_distance_pct"`
	MaxCorrectableSLPct    float64 `yaml:"max_correctable_sl_pct"`
	MaxMarginUtilization   float64 `yaml:"max_margin_utilization"`
	MaxPositionPct         float64 `yaml:"max_position_pct"`
	MaxTotalRiskPct        float64 `yaml:"max_total_risk_pct"`
	StopTradingDrawdownPct float64 `yaml:"stop_trading_drawdown_pct"`
	MaxConsecutiveLosses   int     `yaml:"max_consecutive_losses"`
}

// ToRiskConfig converts the YAML-loaded overrides into risk.Config, filling
// any zero-valued field with the built-in default rather than letting a
// forgotten YAML key silently disable a check.
func (r RiskConfig) ToRiskConfig() risk.Config {
	def := risk.DefaultConfig()
	cfg := def
	if r.MaxLeverage != 0 {
		cfg.MaxLeverage = r.MaxLeverage
	}
	if r.MinSLDistancePct != 0 {
		cfg.MinSLDistancePct = r.MinSLDistancePct
	}
	if r.MaxSLDistancePct != 0 {
		cfg.MaxSLDistancePct = r.MaxSLDistancePct
	}
	if r.MaxCorrectableSLPct != 0 {
		cfg.MaxCorrectableSLPct = r.MaxCorrectableSLPct
	}
	if r.MaxMarginUtilization != 0 {
		cfg.MaxMarginUtilization = r.MaxMarginUtilization
	}
	if r.MaxPositionPct != 0 {
		cfg.MaxPositionPct = r.MaxPositionPct
	}
	if r.MaxTotalRiskPct != 0 {
		cfg.MaxTotalRiskPct = r.MaxTotalRiskPct
	}
	if r.StopTradingDrawdownPct != 0 {
		cfg.StopTradingDrawdownPct = r.StopTradingDrawdownPct
	}
	if r.MaxConsecutiveLosses != 0 {
		cfg.MaxConsecutiveLosses = r.MaxConsecutiveLosses
	}
	return cfg
}

// ExchangeConfig carries the credentials and rate limits for the exchange
// REST client (internal/infrastructure/exchange).
type ExchangeConfig struct {
	APIKey            string  `yaml:"api_key"`
	SecretKey         string  `yaml:"secret_key"`
	Testnet           bool    `yaml:"testnet"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// PostgresConfig is the DSN for the append-only persistence layer.
type PostgresConfig struct {
	DSN            string        `yaml:"dsn"`
	QueryTimeout   time.Duration `yaml:"query_timeout"`
	MaxOpenConns   int           `yaml:"max_open_conns"`
	MaxIdleConns   int           `yaml:"max_idle_conns"`
}

// RedisConfig is the connection info for the position/balance cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AdvisorConfig toggles and configures the optional LLM confidence advisor.
// Enabled gates Config.LLMEnabled: when false, the
// orchestrator never constructs an advisor.LLMAdvisor at all.
type AdvisorConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// HTTPConfig is the read-only status/metrics surface's bind address.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads path, parses it as YAML, applies TRADEENGINE_-prefixed
// environment overrides, and validates the result. Any failure is returned
// as an *apperr.Error with Kind apperr.KindConfig so main.go can map it to
// exit code 1.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.New(apperr.KindConfig, "config", "", fmt.Errorf("read %s: %w", path, err))
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, apperr.New(apperr.KindConfig, "config", "", fmt.Errorf("parse %s: %w", path, err))
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, apperr.New(apperr.KindConfig, "config", "", err)
	}

	return &cfg, nil
}

// Default returns a Config with every ambient timeout/rate-limit field
// populated, so a YAML file only needs to specify what it wants to change.
func Default() Config {
	return Config{
		Symbols:       []string{"BTCUSDT"},
		CycleInterval: 60 * time.Second,
		Timeouts: TimeoutConfig{
			Sync:     10 * time.Second,
			Analysis: 5 * time.Second,
			Predict:  5 * time.Second,
			Decision: 2 * time.Second,
			Risk:     1 * time.Second,
			Exec:     5 * time.Second,
		},
		Exchange: ExchangeConfig{
			Testnet:           true,
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Postgres: PostgresConfig{
			QueryTimeout: 5 * time.Second,
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			DB:   0,
		},
		Advisor: AdvisorConfig{
			Enabled: false,
			Model:   "gpt-4o-mini",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		LogLevel: "info",
	}
}

// applyEnvOverrides lets every secret and deployment-specific value
// (credentials, DSNs, bind addresses) be supplied via environment rather
// than checked into the YAML file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRADEENGINE_SYMBOLS"); v != "" {
		cfg.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("TRADEENGINE_EXCHANGE_API_KEY"); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv("TRADEENGINE_EXCHANGE_SECRET_KEY"); v != "" {
		cfg.Exchange.SecretKey = v
	}
	if v := os.Getenv("TRADEENGINE_POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("TRADEENGINE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("TRADEENGINE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TRADEENGINE_ADVISOR_API_KEY"); v != "" {
		cfg.Advisor.APIKey = v
	}
	if v := os.Getenv("TRADEENGINE_ADVISOR_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Advisor.Enabled = b
		}
	}
	if v := os.Getenv("TRADEENGINE_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
}

// Validate checks the fields required for a safe startup. It never checks
// connectivity: the run and backtest commands ping Postgres and Redis right
// after loading the config and exit with a runtime error if either is
// unreachable, while exchange reachability surfaces as FetchError at cycle
// time.
func (c Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols: at least one symbol is required")
	}
	if c.CycleInterval <= 0 {
		return fmt.Errorf("cycle_interval must be positive, got %s", c.CycleInterval)
	}
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Exchange.RequestsPerSecond <= 0 {
		return fmt.Errorf("exchange.requests_per_second must be positive, got %f", c.Exchange.RequestsPerSecond)
	}
	if c.Exchange.Burst < int(c.Exchange.RequestsPerSecond) {
		return fmt.Errorf("exchange.burst (%d) must be >= requests_per_second (%.0f)", c.Exchange.Burst, c.Exchange.RequestsPerSecond)
	}
	if c.Advisor.Enabled && c.Advisor.APIKey == "" {
		return fmt.Errorf("advisor.api_key is required when advisor.enabled is true")
	}
	if rc := c.Risk.ToRiskConfig(); rc.MaxLeverage <= 0 {
		return fmt.Errorf("risk.max_leverage must be positive")
	}
	return nil
}

// LLMEnabled reports whether the orchestrator should construct an
// advisor.LLMAdvisor for this run.
func (c Config) LLMEnabled() bool { return c.Advisor.Enabled }
