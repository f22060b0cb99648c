package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "binance", cfg.Source)
	assert.Equal(t, []string{"BTCUSDT"}, cfg.Symbols)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.Equal(t, 300, cfg.Fetch.BackoffBaseMs)
	assert.Equal(t, 60, cfg.Fetch.RateLimitWaitSec)
	assert.False(t, cfg.Fetch.FailFastOnRateLimit)
	assert.False(t, cfg.Throttle.Enabled)
	assert.Equal(t, 10, cfg.HTTP.RequestTimeoutSec)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.NoError(t, err)
	assert.Equal(t, Default().Source, cfg.Source)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
source: http
symbols: [BTC, ETH]
http:
  endpoint: http://quotes.internal:9000
  path: /v1/price
  symbol_param: coin
fetch:
  max_retries: 5
  backoff_base_ms: 100
  fail_fast_on_rate_limit: true
throttle:
  enabled: true
  rps: 0.5
  burst: 1
coalesce: true
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http", cfg.Source)
	assert.Equal(t, []string{"BTC", "ETH"}, cfg.Symbols)
	assert.Equal(t, "http://quotes.internal:9000", cfg.HTTP.Endpoint)
	assert.Equal(t, "/v1/price", cfg.HTTP.Path)
	assert.Equal(t, "coin", cfg.HTTP.SymbolParam)
	assert.Equal(t, 5, cfg.Fetch.MaxRetries)
	assert.Equal(t, 100, cfg.Fetch.BackoffBaseMs)
	assert.True(t, cfg.Fetch.FailFastOnRateLimit)
	assert.True(t, cfg.Throttle.Enabled)
	assert.Equal(t, 0.5, cfg.Throttle.RPS)
	assert.True(t, cfg.Coalesce)

	// Fields the file omits keep their defaults.
	assert.Equal(t, 60, cfg.Fetch.RateLimitWaitSec)
	assert.Equal(t, 10, cfg.HTTP.RequestTimeoutSec)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`source: [`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SOURCE", "bybit")
	t.Setenv("SYMBOLS", "BTCUSDT, ETHUSDT")
	t.Setenv("HTTP_API_KEY", "sekret")
	t.Setenv("MAX_RETRIES", "0")
	t.Setenv("FAIL_FAST_ON_RATE_LIMIT", "yes")
	t.Setenv("THROTTLE_RPS", "1.5")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "bybit", cfg.Source)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Symbols)
	assert.Equal(t, "sekret", cfg.HTTP.APIKey)
	assert.Equal(t, 0, cfg.Fetch.MaxRetries)
	assert.True(t, cfg.Fetch.FailFastOnRateLimit)
	assert.Equal(t, 1.5, cfg.Throttle.RPS)
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitCSV("a, b,"))
	assert.Empty(t, splitCSV(" ,, "))
}
