package exchange

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"futures-connect-go/gateway"
)

type recordingMetrics struct {
	mu      sync.Mutex
	routed  map[string]int
	dropped map[string]int
	keys    map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{routed: map[string]int{}, dropped: map[string]int{}, keys: map[string]int{}}
}

func (m *recordingMetrics) RecordWSConnection()         {}
func (m *recordingMetrics) RecordWSDisconnect(string)   {}
func (m *recordingMetrics) RecordReconnect()            {}
func (m *recordingMetrics) RecordActivity(time.Time)    {}
func (m *recordingMetrics) ObserveRetry(string, string) {}
func (m *recordingMetrics) ObserveCancelOutcome(string) {}

func (m *recordingMetrics) RecordListenKey(op, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[op+":"+outcome]++
}

func (m *recordingMetrics) RecordEventRouted(eventType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routed[eventType]++
}

func (m *recordingMetrics) RecordEventDropped(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[reason]++
}

func (m *recordingMetrics) droppedCount(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped[reason]
}

func TestRouterDispatchesOnlyOrderUpdates(t *testing.T) {
	var got []*gateway.OrderUpdateEvent
	m := newRecordingMetrics()
	r := NewEventRouter(EventListenerFunc(func(ev *gateway.OrderUpdateEvent) {
		got = append(got, ev)
	}), nil, m)

	ev := r.Route([]byte(orderUpdateFrame))
	require.IsType(t, &gateway.OrderUpdateEvent{}, ev)

	account := r.Route([]byte(`{"e":"ACCOUNT_UPDATE","E":1,"T":1,"a":{"m":"ORDER","B":[],"P":[]}}`))
	assert.IsType(t, &gateway.AccountUpdateEvent{}, account)

	unknown := r.Route([]byte(`{"e":"STRATEGY_UPDATE","E":1}`))
	require.IsType(t, &gateway.UnknownEvent{}, unknown)
	assert.Equal(t, "STRATEGY_UPDATE", unknown.EventType())

	require.Len(t, got, 1)
	assert.Equal(t, "cid-1", got[0].Order.ClientOrderID)
	assert.Equal(t, 1, m.routed[gateway.EventOrderTradeUpdate])
	assert.Equal(t, 1, m.routed["STRATEGY_UPDATE"])
}

func TestRouterWarnsOnMarginCall(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	called := false
	m := newRecordingMetrics()
	r := NewEventRouter(EventListenerFunc(func(*gateway.OrderUpdateEvent) { called = true }), zap.New(core), m)

	ev := r.Route([]byte(`{"e":"MARGIN_CALL","E":1587727187525,"cw":"3.16812045","p":[]}`))
	require.IsType(t, &gateway.UnknownEvent{}, ev)
	assert.False(t, called)
	assert.Equal(t, 1, m.routed[gateway.EventMarginCall])

	warns := logs.FilterMessage("margin call").All()
	require.Len(t, warns, 1)
	assert.Equal(t, zap.WarnLevel, warns[0].Level)
	assert.Equal(t, int64(1587727187525), warns[0].ContextMap()["eventTime"])
}

func TestRouterDropsMalformedFrames(t *testing.T) {
	called := false
	m := newRecordingMetrics()
	r := NewEventRouter(EventListenerFunc(func(*gateway.OrderUpdateEvent) { called = true }), nil, m)

	assert.NotPanics(t, func() {
		assert.Nil(t, r.Route([]byte(`{"e":"ORDER_TRADE_UPDATE","o":`)))
		assert.Nil(t, r.Route([]byte(`not json`)))
	})
	assert.False(t, called)
	assert.Equal(t, 2, m.droppedCount("malformed"))
}

func TestRouterRecoversListenerPanic(t *testing.T) {
	m := newRecordingMetrics()
	r := NewEventRouter(EventListenerFunc(func(*gateway.OrderUpdateEvent) {
		panic("listener bug")
	}), nil, m)

	assert.NotPanics(t, func() { r.Route([]byte(orderUpdateFrame)) })
	assert.Equal(t, 1, m.droppedCount("listener_panic"))
}

func TestRouterBinaryFramesIgnored(t *testing.T) {
	m := newRecordingMetrics()
	r := NewEventRouter(nil, nil, m)
	big := make([]byte, 1024)
	assert.NotPanics(t, func() { r.RouteBinary(big) })
	assert.Equal(t, 1, m.droppedCount("binary"))
}

func TestRouterNilListener(t *testing.T) {
	r := NewEventRouter(nil, nil, nil)
	assert.NotNil(t, r.Route([]byte(orderUpdateFrame)))
}
