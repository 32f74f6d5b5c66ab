package exchange

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-connect-go/errs"
)

func TestSessionKeyManager(t *testing.T) {
	api := &fakeKeys{}
	m := newRecordingMetrics()
	km := NewSessionKeyManager(api, nil, m)
	ctx := context.Background()

	key, err := km.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, "key-1", key)

	require.NoError(t, km.Extend(ctx, key))
	require.NoError(t, km.Release(ctx, key))
	require.NoError(t, km.Release(ctx, ""))

	_, extended, released := api.snapshot()
	assert.Equal(t, []string{"key-1"}, extended)
	assert.Equal(t, []string{"key-1"}, released)
	assert.Equal(t, 1, m.keys["acquire:ok"])
	assert.Equal(t, 1, m.keys["extend:ok"])
	assert.Equal(t, 1, m.keys["release:ok"])
}

func TestSessionKeyManagerFailures(t *testing.T) {
	boom := errs.NewTransportError("listenKey", errors.New("connection reset"))
	api := &fakeKeys{acquireErr: boom, extendErr: boom}
	m := newRecordingMetrics()
	km := NewSessionKeyManager(api, nil, m)

	_, err := km.Acquire(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "acquire listenKey")

	assert.ErrorIs(t, km.Extend(context.Background(), "key-1"), boom)
	assert.Equal(t, 1, m.keys["acquire:transport"])
	assert.Equal(t, 1, m.keys["extend:transport"])
}

func TestMask(t *testing.T) {
	assert.Equal(t, "short", mask("short"))
	assert.Equal(t, "pqia...Vdc4", mask("pqia91ma19a5s61cv6a81va65sdf19v8a65a1a5s61cv6a81va65sdf19v8a65a1Vdc4"))
}
