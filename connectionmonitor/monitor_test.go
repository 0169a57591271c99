package connectionmonitor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	down          atomic.Bool
	failReconnect atomic.Bool
	checks        atomic.Int32
	reconnects    atomic.Int32
}

func (f *fakeClient) CheckConnection(context.Context) error {
	f.checks.Add(1)
	if f.down.Load() {
		return errors.New("dial tcp: connection refused")
	}
	return nil
}

func (f *fakeClient) Reconnect(context.Context) error {
	f.reconnects.Add(1)
	if f.failReconnect.Load() {
		return errors.New("still down")
	}
	f.down.Store(false)
	return nil
}

func newMonitor(client BlockchainClient) *connectionMonitor {
	logger, _ := test.NewNullLogger()
	return NewConnectionMonitor(client, logger, "sepolia",
		WithInterval(5*time.Millisecond), WithRetryInterval(time.Millisecond)).(*connectionMonitor)
}

func TestCheckAndReconnect(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		client := &fakeClient{}
		reconnected, err := newMonitor(client).checkAndReconnect(context.Background())
		assert.NoError(t, err)
		assert.False(t, reconnected)
		assert.Zero(t, client.reconnects.Load())
	})

	t.Run("reconnects", func(t *testing.T) {
		client := &fakeClient{}
		client.down.Store(true)
		reconnected, err := newMonitor(client).checkAndReconnect(context.Background())
		assert.NoError(t, err)
		assert.True(t, reconnected)
		assert.Equal(t, int32(1), client.reconnects.Load())
	})

	t.Run("gives up", func(t *testing.T) {
		client := &fakeClient{}
		client.down.Store(true)
		client.failReconnect.Store(true)
		_, err := newMonitor(client).checkAndReconnect(context.Background())
		assert.Error(t, err)
		assert.Equal(t, int32(maxReconnectAttempts), client.reconnects.Load())
	})
}

func TestMonitorTracksHealth(t *testing.T) {
	client := &fakeClient{}
	client.down.Store(true)
	client.failReconnect.Store(true)

	m := newMonitor(client)
	assert.True(t, m.Healthy())

	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()))

	assert.Eventually(t, func() bool { return !m.Healthy() }, time.Second, 5*time.Millisecond)
	assert.Error(t, m.LastError())
	assert.False(t, m.Status().LastCheck.IsZero())

	// The node comes back on the next redial.
	m.Stop()
	client.failReconnect.Store(false)
	require.NoError(t, m.Start(context.Background()))
	assert.Eventually(t, func() bool { return m.Healthy() }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, m.Status().Reconnects, 1)
	m.Stop()
	m.Stop()
}
