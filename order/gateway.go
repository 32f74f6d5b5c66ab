package order

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"futures-connect-go/errs"
)

// Exchange 交易所下单接口，由 gateway.BinanceRESTClient 实现。
type Exchange interface {
	PlaceOrder(ctx context.Context, req PlaceRequest) (*Order, error)
	QueryOrder(ctx context.Context, symbol, clientOrderID string) (*Order, error)
	CancelOrder(ctx context.Context, symbol, clientOrderID string) (*Order, error)
}

// Metrics receives retry and reconciliation observations.
type Metrics interface {
	ObserveRetry(op, kind string)
	ObserveCancelOutcome(outcome string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveRetry(string, string)  {}
func (nopMetrics) ObserveCancelOutcome(string) {}

// Gateway 在交易所接口之上提供重试与撤单对账。
type Gateway struct {
	exchange Exchange
	policy   RetryPolicy
	logger   *zap.Logger
	metrics  Metrics
	stats    *reconcileStats

	book        *Book
	constraints map[string]SymbolConstraints
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithRetryPolicy overrides the default 3×100ms policy.
func WithRetryPolicy(p RetryPolicy) GatewayOption {
	return func(g *Gateway) { g.policy = p }
}

// WithLogger sets the logger.
func WithLogger(lg *zap.Logger) GatewayOption {
	return func(g *Gateway) {
		if lg != nil {
			g.logger = lg
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) GatewayOption {
	return func(g *Gateway) {
		if m != nil {
			g.metrics = m
		}
	}
}

// WithBook 记录每次成功调用返回的订单快照。
func WithBook(b *Book) GatewayOption {
	return func(g *Gateway) { g.book = b }
}

// WithConstraints 下单前按交易对检查精度。
func WithConstraints(c map[string]SymbolConstraints) GatewayOption {
	return func(g *Gateway) { g.constraints = c }
}

// NewGateway 创建订单网关。
func NewGateway(ex Exchange, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		exchange: ex,
		policy:   DefaultRetryPolicy(),
		logger:   zap.NewNop(),
		metrics:  nopMetrics{},
		stats:    &reconcileStats{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Place 下单：只尝试一次。下单不是幂等的，重试可能导致重复订单，
// 需要重发时由调用方复用同一个 clientOrderId。
func (g *Gateway) Place(ctx context.Context, req PlaceRequest) (*Order, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	if c, ok := g.constraints[req.Symbol]; ok {
		if err := c.Validate(req.Price, req.Quantity); err != nil {
			return nil, fmt.Errorf("place order %s: %w", req.Symbol, err)
		}
	}
	g.logger.Info("place order",
		zap.String("symbol", req.Symbol),
		zap.String("clientOrderId", req.ClientOrderID),
		zap.String("side", string(req.Side)),
		zap.String("type", string(req.Type)),
		zap.String("qty", req.Quantity.String()),
		zap.String("price", req.Price.String()))
	o, err := g.exchange.PlaceOrder(ctx, req)
	if err != nil {
		g.logger.Warn("place order failed",
			zap.String("clientOrderId", req.ClientOrderID),
			zap.String("kind", errs.Kind(err)),
			zap.Error(err))
		return nil, err
	}
	g.record(o)
	return o, nil
}

// Query 查询订单快照，带有界重试。
func (g *Gateway) Query(ctx context.Context, symbol, clientOrderID string) (*Order, error) {
	g.logger.Info("query order", zap.String("symbol", symbol), zap.String("clientOrderId", clientOrderID))
	o, err := withRetry(ctx, g.policy, "query", g.logger, g.metrics, func(ctx context.Context) (*Order, error) {
		return g.exchange.QueryOrder(ctx, symbol, clientOrderID)
	})
	if err != nil {
		return nil, err
	}
	g.record(o)
	return o, nil
}

// Cancel 撤单。撤单失败但订单已处于终态时视为成功并返回终态快照。
func (g *Gateway) Cancel(ctx context.Context, symbol, clientOrderID string) (*Order, error) {
	res := g.CancelWithOutcome(ctx, symbol, clientOrderID)
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Order, nil
}

func (g *Gateway) cancelOnce(ctx context.Context, symbol, clientOrderID string) (*Order, error) {
	g.logger.Info("cancel order", zap.String("symbol", symbol), zap.String("clientOrderId", clientOrderID))
	o, err := withRetry(ctx, g.policy, "cancel", g.logger, g.metrics, func(ctx context.Context) (*Order, error) {
		return g.exchange.CancelOrder(ctx, symbol, clientOrderID)
	})
	if err != nil {
		return nil, err
	}
	g.record(o)
	return o, nil
}

func (g *Gateway) record(o *Order) {
	if g.book == nil || o == nil {
		return
	}
	if err := o.Validate(); err != nil {
		g.logger.Warn("inconsistent order snapshot", zap.Error(err))
	}
	if !o.Status.Known() {
		g.logger.Warn("unknown order status", zap.String("clientOrderId", o.ClientOrderID), zap.String("status", string(o.Status)))
	}
	g.book.Apply(*o)
}
