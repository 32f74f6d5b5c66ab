package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-connect-go/errs"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeTempConfig(t, `
env: dev
gateway:
  apiKey: foo
  apiSecret: bar
  baseURL: https://testnet.binancefuture.com
  wsEndpoint: wss://stream.binancefuture.com
stream:
  renewInterval: 30m
symbols:
  BTCUSDT:
    tickSize: 0.1
    stepSize: 0.001
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Env != "dev" || cfg.Gateway.APIKey != "foo" {
		t.Fatalf("unexpected cfg values: %+v", cfg)
	}
	assert.Equal(t, "binance", cfg.Exchange)
	assert.Equal(t, 30*time.Minute, cfg.Stream.RenewInterval)
	assert.Equal(t, 5*time.Minute, cfg.Stream.KeepaliveInterval)
	assert.Equal(t, 10*time.Minute, cfg.Stream.StaleAfter)
	assert.Equal(t, 30*time.Second, cfg.Gateway.RecvWindow)
	assert.Equal(t, DefaultTimestampSkew, cfg.Gateway.TimestampSkew)
	assert.Equal(t, "/fapi/v1", cfg.Gateway.BasePath)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.Wait)
	assert.Equal(t, 0.1, cfg.Symbols["BTCUSDT"].TickSize)
}

func TestLoadKeepsExplicitZeroSkew(t *testing.T) {
	path := writeTempConfig(t, `
gateway:
  apiKey: foo
  apiSecret: bar
  timestampSkew: 0s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.Gateway.TimestampSkew)
}

func TestLoadRateLimit(t *testing.T) {
	path := writeTempConfig(t, `
gateway:
  apiKey: foo
  apiSecret: bar
rateLimit:
  disabled: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.RateLimit.Disabled)
	// 数值仍取默认，disabled 单独生效
	assert.Equal(t, 20.0, cfg.RateLimit.RPS)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
env: prod
gateway:
  baseURL: https://fapi.binance.com
`)
	t.Setenv(EnvAPIKey, "env-key")
	t.Setenv(EnvAPISecret, "env-secret")
	cfg, err := LoadWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.APIKey != "env-key" || cfg.Gateway.APISecret != "env-secret" {
		t.Fatalf("env overrides not applied: %+v", cfg.Gateway)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	err := Validate(AppConfig{})
	if err == nil {
		t.Fatalf("expected error for empty config")
	}
	var ce *errs.ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "gateway.apiKey", ce.Field)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := Default()
	base.Gateway.APIKey = "k"
	base.Gateway.APISecret = "s"
	require.NoError(t, Validate(base))

	cases := map[string]func(c *AppConfig){
		"no secret":      func(c *AppConfig) { c.Gateway.APISecret = "" },
		"bad base url":   func(c *AppConfig) { c.Gateway.BaseURL = "fapi.binance.com" },
		"bad ws url":     func(c *AppConfig) { c.Gateway.WSEndpoint = "https://x" },
		"recv window":    func(c *AppConfig) { c.Gateway.RecvWindow = 2 * time.Minute },
		"negative skew":  func(c *AppConfig) { c.Gateway.TimestampSkew = -time.Second },
		"zero attempts":  func(c *AppConfig) { c.Retry.MaxAttempts = 0 },
		"stale too soon": func(c *AppConfig) { c.Stream.StaleAfter = time.Minute },
		"symbol bounds":  func(c *AppConfig) { c.Symbols = map[string]SymbolConfig{"X": {MinQty: 2, MaxQty: 1}} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			var ce *errs.ConfigurationError
			assert.ErrorAs(t, Validate(c), &ce)
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvAPIKey, "k")
	t.Setenv(EnvAPISecret, "s")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "k", cfg.Gateway.APIKey)
	assert.Equal(t, DefaultTimestampSkew, cfg.Gateway.TimestampSkew)
}

func TestExampleConfig(t *testing.T) {
	t.Setenv(EnvAPIKey, "env-key")
	t.Setenv(EnvAPISecret, "env-secret")
	cfg, err := LoadWithEnvOverrides(filepath.Join("..", "configs", "config.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Gateway.APIKey)
	assert.Equal(t, 50*time.Minute, cfg.Stream.RenewInterval)
	assert.Equal(t, 15*time.Second, cfg.Gateway.TimestampSkew)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, []string{"stdout"}, cfg.Log.Outputs)
}
