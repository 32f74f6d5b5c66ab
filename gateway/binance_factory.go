package gateway

import (
	"net/http"

	"go.uber.org/zap"

	"futures-connect-go/config"
)

// NewBinanceRESTClient 按配置构建 REST 客户端（不发起请求）。
// httpCli 为 nil 时使用 cfg.HTTPTimeout 的默认客户端；可传入带代理的客户端。
func NewBinanceRESTClient(cfg config.GatewayConfig, rl config.RateLimitConfig, httpCli *http.Client, lg *zap.Logger, m RequestMetrics) *BinanceRESTClient {
	if httpCli == nil {
		httpCli = NewDefaultHTTPClient()
		if cfg.HTTPTimeout > 0 {
			httpCli.Timeout = cfg.HTTPTimeout
		}
	}
	var limiter RateLimiter = unlimited{}
	if !rl.Disabled && rl.RPS > 0 {
		limiter = NewTokenBucketLimiter(rl.RPS, rl.Burst)
	}
	return &BinanceRESTClient{
		BaseURL:       cfg.BaseURL,
		BasePath:      cfg.BasePath,
		APIKey:        cfg.APIKey,
		Secret:        cfg.APISecret,
		HTTPClient:    httpCli,
		RecvWindow:    cfg.RecvWindow,
		TimestampSkew: cfg.TimestampSkew,
		Limiter:       limiter,
		Logger:        lg,
		Metrics:       m,
	}
}
