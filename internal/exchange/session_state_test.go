package exchange

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

func TestSessionStateGenerations(t *testing.T) {
	var st sessionState
	conn := &websocket.Conn{}
	t0 := time.Unix(100, 0)

	st.connecting()
	assert.Equal(t, StateConnecting, st.snapshot().State)
	st.abort()
	assert.Equal(t, StateDisconnected, st.snapshot().State)

	st.connecting()
	gen := st.install("key-1", conn, t0)
	assert.Equal(t, uint64(1), gen)
	snap := st.snapshot()
	assert.Equal(t, StateConnected, snap.State)
	assert.Equal(t, "key-1", snap.ListenKey)
	assert.Equal(t, t0, snap.LastActivity)

	// 过期代号的活动和清理都被忽略
	st.touch(gen+1, t0.Add(time.Minute))
	assert.Equal(t, t0, st.snapshot().LastActivity)
	c, key, ok := st.clear(gen + 1)
	assert.False(t, ok)
	assert.Nil(t, c)
	assert.Empty(t, key)

	st.touch(gen, t0.Add(time.Second))
	_, _, last := st.current()
	assert.Equal(t, t0.Add(time.Second), last)

	c, key, ok = st.clear(gen)
	assert.True(t, ok)
	assert.Same(t, conn, c)
	assert.Equal(t, "key-1", key)
	snap = st.snapshot()
	assert.Equal(t, StateDisconnected, snap.State)
	assert.Empty(t, snap.ListenKey)

	// 已清空后再清理不会重复交出连接
	_, _, ok = st.clear(0)
	assert.False(t, ok)
}

func TestSessionStateAbortKeepsConnected(t *testing.T) {
	var st sessionState
	st.install("key-1", &websocket.Conn{}, time.Now())
	st.abort()
	assert.Equal(t, StateConnected, st.snapshot().State)
}

func TestConnStateString(t *testing.T) {
	assert.Equal(t, "DISCONNECTED", StateDisconnected.String())
	assert.Equal(t, "CONNECTING", StateConnecting.String())
	assert.Equal(t, "CONNECTED", StateConnected.String())
	assert.Equal(t, "UNKNOWN", ConnState(9).String())
}
