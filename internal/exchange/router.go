package exchange

import (
	"encoding/hex"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"futures-connect-go/gateway"
)

// 二进制帧日志最多渲染的字节数
const maxBinaryDump = 256

// EventListener 接收订单推送。
type EventListener interface {
	OnOrderUpdate(ev *gateway.OrderUpdateEvent)
}

// EventListenerFunc 函数适配器。
type EventListenerFunc func(ev *gateway.OrderUpdateEvent)

func (f EventListenerFunc) OnOrderUpdate(ev *gateway.OrderUpdateEvent) { f(ev) }

// EventRouter 解析入站帧并只把 ORDER_TRADE_UPDATE 分发给 listener。
// 解析失败、二进制帧、listener panic 都只记录日志，不向外抛。
type EventRouter struct {
	listener EventListener
	logger   *zap.Logger
	metrics  StreamMetrics
}

func NewEventRouter(l EventListener, lg *zap.Logger, m StreamMetrics) *EventRouter {
	if lg == nil {
		lg = zap.NewNop()
	}
	if m == nil {
		m = nopStreamMetrics{}
	}
	return &EventRouter{listener: l, logger: lg, metrics: m}
}

// Route 处理一条文本帧，返回解析出的事件（失败时为 nil）。
func (r *EventRouter) Route(raw []byte) gateway.Event {
	ev, err := gateway.ParseUserData(raw)
	if err != nil {
		r.metrics.RecordEventDropped("malformed")
		r.logger.Warn("drop malformed user data frame", zap.Int("bytes", len(raw)), zap.Error(err))
		return nil
	}
	r.metrics.RecordEventRouted(ev.EventType())

	switch e := ev.(type) {
	case *gateway.OrderUpdateEvent:
		r.dispatch(e)
	case *gateway.UnknownEvent:
		if e.Type == gateway.EventMarginCall {
			r.logger.Warn("margin call", zap.Int64("eventTime", e.EventTime), zap.ByteString("payload", e.Raw))
			break
		}
		r.logger.Debug("unrouted user data event", zap.String("type", e.Type))
	default:
		r.logger.Debug("user data event", zap.String("type", ev.EventType()))
	}
	return ev
}

func (r *EventRouter) dispatch(e *gateway.OrderUpdateEvent) {
	if r.listener == nil {
		return
	}
	if rec := panics.Try(func() { r.listener.OnOrderUpdate(e) }); rec != nil {
		r.metrics.RecordEventDropped("listener_panic")
		r.logger.Error("order update listener panicked",
			zap.String("clientOrderId", e.Order.ClientOrderID),
			zap.Error(rec.AsError()))
	}
}

// RouteBinary 二进制帧不在协议内，只记录。
func (r *EventRouter) RouteBinary(raw []byte) {
	r.metrics.RecordEventDropped("binary")
	dump := raw
	if len(dump) > maxBinaryDump {
		dump = dump[:maxBinaryDump]
	}
	r.logger.Warn("unexpected binary frame",
		zap.Int("bytes", len(raw)),
		zap.String("hex", hex.EncodeToString(dump)))
}
