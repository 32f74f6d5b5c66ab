package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器。所有方法对 nil 接收者安全。
type Monitor struct {
	registry *prometheus.Registry

	// REST 指标
	restRequests *prometheus.CounterVec
	restErrors   *prometheus.CounterVec
	restLatency  *prometheus.HistogramVec

	// 订单指标
	orderRetries   *prometheus.CounterVec
	cancelOutcomes *prometheus.CounterVec

	// 用户数据流指标
	wsConnections   prometheus.Counter
	wsDisconnects   *prometheus.CounterVec
	wsReconnects    prometheus.Counter
	streamConnected prometheus.Gauge
	lastActivity    prometheus.Gauge
	listenKeyOps    *prometheus.CounterVec
	eventsRouted    *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "fc",
		Subsystem: "binance",
	}
}

// New 创建新的Monitor实例
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()

	// 创建factory
	factory := promauto.With(reg)

	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}

	m := &Monitor{
		registry: reg,

		restRequests: counterVec("rest_requests_total", "REST请求总数", "endpoint", "outcome"),
		restErrors:   counterVec("rest_errors_total", "REST错误总数", "endpoint", "kind"),
		restLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rest_latency_seconds",
				Help:      "REST请求延迟（秒）",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),

		orderRetries:   counterVec("order_retries_total", "查询/撤单重试次数", "op", "kind"),
		cancelOutcomes: counterVec("cancel_outcomes_total", "撤单对账结果", "outcome"),

		wsConnections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "ws_connections_total",
			Help:      "WebSocket连接次数",
		}),
		wsDisconnects: counterVec("ws_disconnects_total", "WebSocket断开次数", "reason"),
		wsReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "ws_reconnects_total",
			Help:      "自动重连次数",
		}),
		streamConnected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stream_connected",
			Help:      "用户数据流是否已连接(1=已连接)",
		}),
		lastActivity: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stream_last_activity_timestamp_seconds",
			Help:      "最近一次收到帧的时间",
		}),
		listenKeyOps:  counterVec("listen_key_ops_total", "listenKey 操作", "op", "outcome"),
		eventsRouted:  counterVec("events_routed_total", "已解析的推送事件", "type"),
		eventsDropped: counterVec("events_dropped_total", "丢弃的推送帧", "reason"),
	}

	return m
}

// ObserveRequest 记录一次 REST 调用；outcome 为 errs.Kind 的结果。
func (m *Monitor) ObserveRequest(endpoint, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.restRequests.WithLabelValues(endpoint, outcome).Inc()
	if outcome != "ok" {
		m.restErrors.WithLabelValues(endpoint, outcome).Inc()
	}
	m.restLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// 订单相关方法
func (m *Monitor) ObserveRetry(op, kind string) {
	if m == nil {
		return
	}
	m.orderRetries.WithLabelValues(op, kind).Inc()
}

func (m *Monitor) ObserveCancelOutcome(outcome string) {
	if m == nil {
		return
	}
	m.cancelOutcomes.WithLabelValues(outcome).Inc()
}

// 用户数据流相关方法
func (m *Monitor) RecordWSConnection() {
	if m == nil {
		return
	}
	m.wsConnections.Inc()
	m.streamConnected.Set(1)
}

func (m *Monitor) RecordWSDisconnect(reason string) {
	if m == nil {
		return
	}
	m.wsDisconnects.WithLabelValues(reason).Inc()
	m.streamConnected.Set(0)
}

func (m *Monitor) RecordReconnect() {
	if m == nil {
		return
	}
	m.wsReconnects.Inc()
}

func (m *Monitor) RecordActivity(at time.Time) {
	if m == nil {
		return
	}
	m.lastActivity.Set(float64(at.UnixNano()) / 1e9)
}

func (m *Monitor) RecordListenKey(op, outcome string) {
	if m == nil {
		return
	}
	m.listenKeyOps.WithLabelValues(op, outcome).Inc()
}

func (m *Monitor) RecordEventRouted(eventType string) {
	if m == nil {
		return
	}
	m.eventsRouted.WithLabelValues(eventType).Inc()
}

func (m *Monitor) RecordEventDropped(reason string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(reason).Inc()
}

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
