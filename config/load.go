package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"futures-connect-go/errs"
	"futures-connect-go/infrastructure/logger"
)

// 敏感字段的环境变量覆盖。
const (
	EnvAPIKey    = "FC_GATEWAY_API_KEY"
	EnvAPISecret = "FC_GATEWAY_API_SECRET"
)

// DefaultTimestampSkew 本地时钟相对交易所偏快时的修正量。
const DefaultTimestampSkew = 15 * time.Second

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env       string                  `yaml:"env"`
	Exchange  string                  `yaml:"exchange"` // 日志/指标中的交易所名
	Gateway   GatewayConfig           `yaml:"gateway"`
	Retry     RetryConfig             `yaml:"retry"`
	Stream    StreamConfig            `yaml:"stream"`
	RateLimit RateLimitConfig         `yaml:"rateLimit"`
	Log       logger.Config           `yaml:"log"`
	Metrics   MetricsConfig           `yaml:"metrics"`
	Symbols   map[string]SymbolConfig `yaml:"symbols"`
}

type GatewayConfig struct {
	APIKey        string        `yaml:"apiKey"`
	APISecret     string        `yaml:"apiSecret"`
	BaseURL       string        `yaml:"baseURL"`
	BasePath      string        `yaml:"basePath"`
	WSEndpoint    string        `yaml:"wsEndpoint"`
	RecvWindow    time.Duration `yaml:"recvWindow"`
	TimestampSkew time.Duration `yaml:"timestampSkew"` // 从本地时间扣除的偏移
	HTTPTimeout   time.Duration `yaml:"httpTimeout"`
}

// RetryConfig 查询/撤单的有界重试。
type RetryConfig struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	Wait        time.Duration `yaml:"wait"`
}

// StreamConfig 用户数据流会话参数。
type StreamConfig struct {
	RenewInterval       time.Duration `yaml:"renewInterval"`
	KeepaliveInterval   time.Duration `yaml:"keepaliveInterval"`
	StaleAfter          time.Duration `yaml:"staleAfter"`
	HandshakeTimeout    time.Duration `yaml:"handshakeTimeout"`
	ReconnectMaxBackoff time.Duration `yaml:"reconnectMaxBackoff"`
}

// RateLimitConfig 客户端限流。rps/burst 为 0 时取默认值；disabled 关闭限流。
type RateLimitConfig struct {
	Disabled bool    `yaml:"disabled"`
	RPS      float64 `yaml:"rps"`
	Burst    int     `yaml:"burst"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// SymbolConfig 保存交易对的精度/名义限制（来自 exchangeInfo）。
type SymbolConfig struct {
	TickSize    float64 `yaml:"tickSize"`
	StepSize    float64 `yaml:"stepSize"`
	MinQty      float64 `yaml:"minQty"`
	MaxQty      float64 `yaml:"maxQty"`
	MinNotional float64 `yaml:"minNotional"`
}

// Default 返回全部默认值（不含凭证）。
func Default() AppConfig {
	cfg := AppConfig{}
	ApplyDefaults(&cfg)
	return cfg
}

// ApplyDefaults fills zero values. TimestampSkew 为零是合法配置，不在这里处理。
func ApplyDefaults(cfg *AppConfig) {
	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Exchange == "" {
		cfg.Exchange = "binance"
	}
	g := &cfg.Gateway
	if g.BaseURL == "" {
		g.BaseURL = "https://fapi.binance.com"
	}
	if g.BasePath == "" {
		g.BasePath = "/fapi/v1"
	}
	if g.WSEndpoint == "" {
		g.WSEndpoint = "wss://fstream.binance.com"
	}
	if g.RecvWindow == 0 {
		g.RecvWindow = 30 * time.Second
	}
	if g.HTTPTimeout == 0 {
		g.HTTPTimeout = 10 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.Wait == 0 {
		cfg.Retry.Wait = 100 * time.Millisecond
	}
	s := &cfg.Stream
	if s.RenewInterval == 0 {
		s.RenewInterval = 50 * time.Minute
	}
	if s.KeepaliveInterval == 0 {
		s.KeepaliveInterval = 5 * time.Minute
	}
	if s.StaleAfter == 0 {
		s.StaleAfter = 10 * time.Minute
	}
	if s.HandshakeTimeout == 0 {
		s.HandshakeTimeout = 10 * time.Second
	}
	if s.ReconnectMaxBackoff == 0 {
		s.ReconnectMaxBackoff = time.Minute
	}
	if cfg.RateLimit.RPS == 0 {
		cfg.RateLimit.RPS = 20
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 10
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if len(cfg.Log.Outputs) == 0 {
		cfg.Log.Outputs = []string{"stdout"}
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9101"
	}
}

// Load reads YAML config from path and applies defaults and validation.
func Load(path string) (AppConfig, error) {
	cfg, err := load(path)
	if err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := load(path)
	if err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg, Validate(cfg)
}

func load(path string) (AppConfig, error) {
	// 先放默认偏移，文件里显式写 0 时会被覆盖
	cfg := AppConfig{Gateway: GatewayConfig{TimestampSkew: DefaultTimestampSkew}}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	ApplyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv(EnvAPISecret); v != "" {
		cfg.Gateway.APISecret = v
	}
}

// FromEnv 不读文件，只用默认值加环境变量，供命令行工具在没有配置文件时使用。
func FromEnv() (AppConfig, error) {
	cfg := Default()
	cfg.Gateway.TimestampSkew = DefaultTimestampSkew
	applyEnv(&cfg)
	return cfg, Validate(cfg)
}

// Validate ensures required fields are present. 返回 *errs.ConfigurationError。
func Validate(cfg AppConfig) error {
	invalid := func(field, reason string) error {
		return &errs.ConfigurationError{Field: field, Reason: reason}
	}
	if cfg.Gateway.APIKey == "" {
		return invalid("gateway.apiKey", "required (or env "+EnvAPIKey+")")
	}
	if cfg.Gateway.APISecret == "" {
		return invalid("gateway.apiSecret", "required (or env "+EnvAPISecret+")")
	}
	if !strings.HasPrefix(cfg.Gateway.BaseURL, "http") {
		return invalid("gateway.baseURL", "must be an http(s) url")
	}
	if !strings.HasPrefix(cfg.Gateway.WSEndpoint, "ws") {
		return invalid("gateway.wsEndpoint", "must be a ws(s) url")
	}
	if cfg.Gateway.RecvWindow < 0 || cfg.Gateway.RecvWindow > 60*time.Second {
		return invalid("gateway.recvWindow", "must be within 0..60s")
	}
	if cfg.Gateway.TimestampSkew < 0 {
		return invalid("gateway.timestampSkew", "must be >= 0")
	}
	if cfg.Retry.MaxAttempts < 1 {
		return invalid("retry.maxAttempts", "must be >= 1")
	}
	if cfg.Retry.Wait < 0 {
		return invalid("retry.wait", "must be >= 0")
	}
	if cfg.Stream.RenewInterval <= 0 || cfg.Stream.KeepaliveInterval <= 0 {
		return invalid("stream", "renewInterval/keepaliveInterval must be > 0")
	}
	if cfg.Stream.StaleAfter < cfg.Stream.KeepaliveInterval {
		return invalid("stream.staleAfter", "must be >= keepaliveInterval")
	}
	if cfg.RateLimit.RPS < 0 || cfg.RateLimit.Burst < 0 {
		return invalid("rateLimit", "must be >= 0")
	}
	for sym, sc := range cfg.Symbols {
		if sc.TickSize < 0 || sc.StepSize < 0 {
			return invalid("symbols."+sym, "tickSize/stepSize must be >= 0")
		}
		if sc.MinQty < 0 || sc.MaxQty < 0 || sc.MinNotional < 0 {
			return invalid("symbols."+sym, "qty/notional bounds must be >= 0")
		}
		if sc.MaxQty > 0 && sc.MinQty > sc.MaxQty {
			return invalid("symbols."+sym, "minQty > maxQty")
		}
	}
	return nil
}
