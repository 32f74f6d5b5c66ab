package exchange

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"futures-connect-go/gateway"
	"futures-connect-go/order"
)

// RESTClient 门面依赖的 REST 能力，由 gateway.BinanceRESTClient 实现。
type RESTClient interface {
	order.Exchange
	ListenKeyAPI
	Ping(ctx context.Context) error
	ServerTime(ctx context.Context) (int64, error)
}

var _ RESTClient = (*gateway.BinanceRESTClient)(nil)

// Metrics 订单与数据流指标的合集，monitor.Monitor 同时实现两者。
type Metrics interface {
	order.Metrics
	StreamMetrics
}

// Options 构造 Exchange 的参数；零值字段使用默认值。
type Options struct {
	Name        string
	Stream      StreamConfig
	Retry       order.RetryPolicy
	Constraints map[string]order.SymbolConstraints
	Listener    EventListener
	Logger      *zap.Logger
	Metrics     Metrics
}

// Exchange 单个交易所的连接门面：REST 下单查询撤单 + 用户数据流会话。
// 推送和 REST 返回的订单快照都会写入同一个 order.Book。
type Exchange struct {
	name    string
	rest    RESTClient
	orders  *order.Gateway
	book    *order.Book
	session *StreamSession
	logger  *zap.Logger
}

func New(rest RESTClient, opts Options) *Exchange {
	name := opts.Name
	if name == "" {
		name = "binance"
	}
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	lg = lg.With(zap.String("exchange", name))

	var (
		orderMetrics  order.Metrics
		streamMetrics StreamMetrics
	)
	if opts.Metrics != nil {
		orderMetrics, streamMetrics = opts.Metrics, opts.Metrics
	}

	book := order.NewBook()
	gwOpts := []order.GatewayOption{
		order.WithLogger(lg),
		order.WithMetrics(orderMetrics),
		order.WithBook(book),
		order.WithConstraints(opts.Constraints),
	}
	if opts.Retry.MaxAttempts > 0 {
		gwOpts = append(gwOpts, order.WithRetryPolicy(opts.Retry))
	}

	e := &Exchange{
		name:   name,
		rest:   rest,
		orders: order.NewGateway(rest, gwOpts...),
		book:   book,
		logger: lg,
	}
	router := NewEventRouter(&bookListener{book: book, next: opts.Listener}, lg, streamMetrics)
	keys := NewSessionKeyManager(rest, lg, streamMetrics)
	e.session = NewStreamSession(opts.Stream, keys, router, lg, streamMetrics)
	e.session.OnConnected(e.resync)
	return e
}

func (e *Exchange) Name() string { return e.name }

func (e *Exchange) Ping(ctx context.Context) error {
	return e.rest.Ping(ctx)
}

// ServerTime 交易所时间（毫秒）。
func (e *Exchange) ServerTime(ctx context.Context) (int64, error) {
	return e.rest.ServerTime(ctx)
}

func (e *Exchange) PlaceOrder(ctx context.Context, req order.PlaceRequest) (*order.Order, error) {
	return e.orders.Place(ctx, req)
}

func (e *Exchange) QueryOrder(ctx context.Context, symbol, clientOrderID string) (*order.Order, error) {
	return e.orders.Query(ctx, symbol, clientOrderID)
}

// CancelOrder 撤单；订单已是终态时返回终态快照而不是错误。
func (e *Exchange) CancelOrder(ctx context.Context, symbol, clientOrderID string) (*order.Order, error) {
	return e.orders.Cancel(ctx, symbol, clientOrderID)
}

// CancelOrderWithOutcome 同 CancelOrder，但返回对账分支。
func (e *Exchange) CancelOrderWithOutcome(ctx context.Context, symbol, clientOrderID string) order.CancelResult {
	return e.orders.CancelWithOutcome(ctx, symbol, clientOrderID)
}

func (e *Exchange) Start() error {
	if err := e.session.Start(); err != nil {
		return fmt.Errorf("%s: start user stream: %w", e.name, err)
	}
	return nil
}

func (e *Exchange) Connect(ctx context.Context) error {
	if err := e.session.Connect(ctx); err != nil {
		return fmt.Errorf("%s: connect user stream: %w", e.name, err)
	}
	return nil
}

func (e *Exchange) Stop() {
	e.session.Stop()
}

func (e *Exchange) State() SessionSnapshot {
	return e.session.State()
}

// Book 订单快照簿（只读使用）。
func (e *Exchange) Book() *order.Book {
	return e.book
}

func (e *Exchange) Statistics() order.ReconcileStats {
	return e.orders.GetStatistics()
}

// resync 每次（重）连接后用 REST 查询簿中未完结的订单，补上断线期间错过的推送。
func (e *Exchange) resync(ctx context.Context) {
	active := e.book.Active()
	if len(active) == 0 {
		return
	}
	e.logger.Info("resync active orders", zap.Int("count", len(active)))
	for _, o := range active {
		qctx, cancel := context.WithTimeout(ctx, requestTimeout)
		_, err := e.orders.Query(qctx, o.Symbol, o.ClientOrderID)
		cancel()
		if err != nil {
			e.logger.Warn("resync order failed",
				zap.String("symbol", o.Symbol),
				zap.String("clientOrderId", o.ClientOrderID),
				zap.Error(err))
		}
	}
}

// bookListener 先把推送写入 Book，再转给调用方的 listener。
type bookListener struct {
	book *order.Book
	next EventListener
}

func (l *bookListener) OnOrderUpdate(ev *gateway.OrderUpdateEvent) {
	ts := ev.TransactionTime
	if ts == 0 {
		ts = ev.EventTime
	}
	l.book.Apply(ev.Order.Snapshot(ts))
	if l.next != nil {
		l.next.OnOrderUpdate(ev)
	}
}
