package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"futures-connect-go/config"
)

func TestNewBinanceRESTClientLimiter(t *testing.T) {
	gw := config.GatewayConfig{BaseURL: "http://127.0.0.1", HTTPTimeout: 3 * time.Second}

	cli := NewBinanceRESTClient(gw, config.RateLimitConfig{RPS: 20, Burst: 10}, nil, nil, nil)
	assert.IsType(t, &TokenBucketLimiter{}, cli.Limiter)
	assert.Equal(t, 3*time.Second, cli.HTTPClient.Timeout)

	cli = NewBinanceRESTClient(gw, config.RateLimitConfig{Disabled: true, RPS: 20, Burst: 10}, nil, nil, nil)
	assert.Equal(t, unlimited{}, cli.Limiter)
}
