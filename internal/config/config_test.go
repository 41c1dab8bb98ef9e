package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobdamio/tradeengine/internal/apperr"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_ValidConfigPopulatesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
symbols: ["BTCUSDT", "ETHUSDT"]
postgres:
  dsn: "postgres://localhost/tradeengine"
redis:
  addr: "localhost:6379"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Symbols)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Sync)
	assert.Equal(t, 10.0, cfg.Exchange.RequestsPerSecond)
	assert.Equal(t, "gpt-4o-mini", cfg.Advisor.Model)
	assert.False(t, cfg.Advisor.Enabled)
}

func TestLoad_MissingFileIsConfigError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindConfig, appErr.Kind)
}

func TestLoad_MalformedYAMLIsConfigError(t *testing.T) {
	path := writeTempConfig(t, "symbols: [unterminated")

	_, err := Load(path)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrConfig)
}

func TestLoad_NoSymbolsFailsValidation(t *testing.T) {
	path := writeTempConfig(t, `
postgres:
  dsn: "postgres://localhost/tradeengine"
redis:
  addr: "localhost:6379"
`)

	_, err := Load(path)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrConfig)
}

func TestLoad_AdvisorEnabledWithoutAPIKeyFails(t *testing.T) {
	path := writeTempConfig(t, `
symbols: ["BTCUSDT"]
postgres:
  dsn: "postgres://localhost/tradeengine"
redis:
  addr: "localhost:6379"
advisor:
  enabled: true
`)

	_, err := Load(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "advisor.api_key")
}

func TestLoad_EnvOverridesWinOverYAML(t *testing.T) {
	path := writeTempConfig(t, `
symbols: ["BTCUSDT"]
postgres:
  dsn: "postgres://localhost/tradeengine"
redis:
  addr: "localhost:6379"
`)

	t.Setenv("TRADEENGINE_SYMBOLS", "SOLUSDT,AVAXUSDT")
	t.Setenv("TRADEENGINE_REDIS_ADDR", "redis.internal:6379")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"SOLUSDT", "AVAXUSDT"}, cfg.Symbols)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
}

func TestRiskConfig_ToRiskConfig_ZeroFieldsFallBackToSpecDefaults(t *testing.T) {
	var overrides RiskConfig
	overrides.MaxLeverage = 5 // only override one field

	rc := overrides.ToRiskConfig()

	assert.Equal(t, 5.0, rc.MaxLeverage)
	assert.Equal(t, 0.30, rc.MaxPositionPct) // unset field keeps the built-in default
	assert.Equal(t, 5, rc.MaxConsecutiveLosses)
}

func TestConfig_Validate_RejectsBurstBelowRPS(t *testing.T) {
	cfg := Default()
	cfg.Postgres.DSN = "postgres://localhost/tradeengine"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Exchange.RequestsPerSecond = 10
	cfg.Exchange.Burst = 5

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "burst")
}
