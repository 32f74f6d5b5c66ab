package monitor

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorRecordsREST(t *testing.T) {
	m := New(DefaultConfig())
	m.ObserveRequest("GET /order", "ok", 20*time.Millisecond)
	m.ObserveRequest("GET /order", "timeout", time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.restRequests.WithLabelValues("GET /order", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.restErrors.WithLabelValues("GET /order", "timeout")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.restErrors.WithLabelValues("GET /order", "ok")))
}

func TestMonitorRecordsOrderAndStream(t *testing.T) {
	m := New(DefaultConfig())
	m.ObserveRetry("cancel", "transport")
	m.ObserveCancelOutcome("terminal_fallback")
	m.RecordWSConnection()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.streamConnected))
	m.RecordWSDisconnect("closed")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.streamConnected))
	m.RecordReconnect()
	m.RecordListenKey("extend", "ok")
	m.RecordEventRouted("ORDER_TRADE_UPDATE")
	m.RecordEventDropped("malformed")
	now := time.Unix(1700000000, 0)
	m.RecordActivity(now)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.orderRetries.WithLabelValues("cancel", "transport")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cancelOutcomes.WithLabelValues("terminal_fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.wsReconnects))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.lastActivity))
}

func TestNilMonitorIsSafe(t *testing.T) {
	var m *Monitor
	assert.NotPanics(t, func() {
		m.ObserveRequest("GET /ping", "ok", time.Millisecond)
		m.ObserveRetry("query", "transport")
		m.ObserveCancelOutcome("failed")
		m.RecordWSConnection()
		m.RecordWSDisconnect("stop")
		m.RecordReconnect()
		m.RecordActivity(time.Now())
		m.RecordListenKey("acquire", "ok")
		m.RecordEventRouted("x")
		m.RecordEventDropped("binary")
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordWSConnection()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "fc_binance_ws_connections_total 1"))
}
