package container

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"futures-connect-go/config"
	"futures-connect-go/gateway"
	"futures-connect-go/infrastructure/logger"
	"futures-connect-go/infrastructure/monitor"
	"futures-connect-go/internal/exchange"
	"futures-connect-go/order"
)

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	// 配置
	cfg *config.AppConfig

	// 基础设施
	logger  *logger.Logger
	monitor *monitor.Monitor

	// 交易所网关
	restClient *gateway.BinanceRESTClient
	exchange   *exchange.Exchange
	listener   exchange.EventListener

	// HTTP服务器
	metricsServer *httpServerComponent

	// 生命周期管理
	lifecycle *LifecycleManager
}

// New 加载配置（含环境变量覆盖）并创建Container
func New(configPath string) (*Container, error) {
	cfg, err := config.LoadWithEnvOverrides(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return NewWithConfig(cfg), nil
}

// NewWithConfig 使用已加载的配置创建Container
func NewWithConfig(cfg config.AppConfig) *Container {
	return &Container{cfg: &cfg}
}

// SetListener 设置订单推送的接收者，需在 Build 之前调用
func (c *Container) SetListener(l exchange.EventListener) {
	c.listener = l
}

// Build 构建所有组件
func (c *Container) Build() error {
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}

	c.buildGateway()
	c.buildExchange()

	c.registerLifecycleComponents()
	c.logger.Info("container built successfully", zap.String("exchange", c.cfg.Exchange), zap.String("env", c.cfg.Env))
	return nil
}

func (c *Container) buildInfrastructure() error {
	var err error
	c.logger, err = logger.New(c.cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger failed: %w", err)
	}

	c.monitor = monitor.New(monitor.DefaultConfig())

	c.logger.Debug("infrastructure built")
	return nil
}

func (c *Container) buildGateway() {
	lg := c.logger.With(zap.String("exchange", c.cfg.Exchange))
	c.restClient = gateway.NewBinanceRESTClient(c.cfg.Gateway, c.cfg.RateLimit, nil, lg, c.monitor)
	c.logger.Debug("gateway built", zap.String("baseURL", c.cfg.Gateway.BaseURL))
}

func (c *Container) buildExchange() {
	s := c.cfg.Stream
	c.exchange = exchange.New(c.restClient, exchange.Options{
		Name: c.cfg.Exchange,
		Stream: exchange.StreamConfig{
			WSEndpoint:          c.cfg.Gateway.WSEndpoint,
			RenewInterval:       s.RenewInterval,
			KeepaliveInterval:   s.KeepaliveInterval,
			StaleAfter:          s.StaleAfter,
			HandshakeTimeout:    s.HandshakeTimeout,
			ReconnectMaxBackoff: s.ReconnectMaxBackoff,
		},
		Retry: order.RetryPolicy{
			MaxAttempts: uint(c.cfg.Retry.MaxAttempts),
			Wait:        c.cfg.Retry.Wait,
		},
		Constraints: symbolConstraints(c.cfg.Symbols),
		Listener:    c.listener,
		Logger:      c.logger.Logger,
		Metrics:     c.monitor,
	})
}

func symbolConstraints(symbols map[string]config.SymbolConfig) map[string]order.SymbolConstraints {
	res := make(map[string]order.SymbolConstraints, len(symbols))
	for sym, sc := range symbols {
		res[sym] = order.SymbolConstraints{
			TickSize:    decimal.NewFromFloat(sc.TickSize),
			StepSize:    decimal.NewFromFloat(sc.StepSize),
			MinQty:      decimal.NewFromFloat(sc.MinQty),
			MaxQty:      decimal.NewFromFloat(sc.MaxQty),
			MinNotional: decimal.NewFromFloat(sc.MinNotional),
		}
	}
	return res
}

func (c *Container) registerLifecycleComponents() {
	c.lifecycle = NewLifecycleManager(c.logger.Logger)
	if c.cfg.Metrics.Enabled {
		c.metricsServer = &httpServerComponent{
			name:    "metrics_server",
			handler: c.monitor.Handler(),
			addr:    c.cfg.Metrics.Addr,
			logger:  c.logger.Logger,
		}
		c.lifecycle.Register(c.metricsServer)
	}
	c.lifecycle.Register(&streamComponent{exchange: c.exchange})
}

func (c *Container) Start(ctx context.Context) error {
	c.logger.Info("starting container...")

	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}

	c.logger.Info("container started")
	return nil
}

func (c *Container) Stop() error {
	c.logger.Info("stopping container...")

	err := c.lifecycle.StopAll()
	if err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
	}

	st := c.exchange.Statistics()
	c.logger.Info("container stopped",
		zap.Int64("cancelConfirmed", st.Confirmed),
		zap.Int64("cancelTerminalFallback", st.TerminalFallback),
		zap.Int64("cancelFailed", st.Failed))
	_ = c.logger.Close()
	return err
}

func (c *Container) HealthCheck() error {
	return c.lifecycle.CheckHealth()
}

func (c *Container) Exchange() *exchange.Exchange { return c.exchange }

func (c *Container) Logger() *logger.Logger { return c.logger }

func (c *Container) Monitor() *monitor.Monitor { return c.monitor }

func (c *Container) Config() config.AppConfig { return *c.cfg }
