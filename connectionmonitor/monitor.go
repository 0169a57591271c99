// Package connectionmonitor watches the RPC connection of a chain and redials it when the
// node stops answering.
package connectionmonitor

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultHealthCheckInterval = 30 * time.Second
	defaultRetryInterval       = 5 * time.Second
	maxReconnectAttempts       = 3
)

// ConnectionMonitor reports whether a chain's node is reachable.
type ConnectionMonitor interface {
	// Start runs health checks until Stop is called or ctx ends.
	Start(ctx context.Context) error
	// Stop ends the health checks. The monitor can be started again.
	Stop()
	// Healthy reports the result of the last health check.
	Healthy() bool
	// LastError returns the error of the last failed health check, nil when healthy.
	LastError() error
	// Status returns the full state of the monitor.
	Status() Status
}

// BlockchainClient is the connection a monitor checks.
type BlockchainClient interface {
	// CheckConnection returns an error when the node does not answer.
	CheckConnection(ctx context.Context) error
	// Reconnect replaces the connection with a freshly dialed one.
	Reconnect(ctx context.Context) error
}

// Status is a snapshot of the monitor state.
//
// Fields:
// - Healthy: whether the last check passed, true before the first check.
// - LastError: the error of the last failed check.
// - LastCheck: when the last check finished, zero before the first check.
// - Reconnects: the number of successful reconnects.
type Status struct {
	Healthy    bool
	LastError  error
	LastCheck  time.Time
	Reconnects int
}

type connectionMonitor struct {
	client        BlockchainClient
	logger        *logrus.Entry
	interval      time.Duration
	retryInterval time.Duration

	runMutex sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}

	statusMutex sync.RWMutex
	status      Status
}

// Option configures a connection monitor.
type Option func(*connectionMonitor)

// WithInterval overrides the health check interval.
func WithInterval(d time.Duration) Option {
	return func(m *connectionMonitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithRetryInterval overrides the initial pause between reconnection attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(m *connectionMonitor) {
		if d > 0 {
			m.retryInterval = d
		}
	}
}

// NewConnectionMonitor creates a monitor for the connection of chainName. The chain counts as
// healthy until the first failed check.
//
// Parameters:
// - client: the connection to check and redial.
// - logger: the logger.
// - chainName: the chain name used in logs.
// - opts: interval overrides.
//
// Returns:
// - ConnectionMonitor: the monitor, not yet started.
func NewConnectionMonitor(client BlockchainClient, logger *logrus.Logger, chainName string, opts ...Option) ConnectionMonitor {
	m := &connectionMonitor{
		client:        client,
		logger:        logger.WithField("chain", chainName),
		interval:      defaultHealthCheckInterval,
		retryInterval: defaultRetryInterval,
		status:        Status{Healthy: true},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *connectionMonitor) Start(ctx context.Context) error {
	m.runMutex.Lock()
	defer m.runMutex.Unlock()

	if m.cancel != nil {
		return errors.New("connection monitor is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(runCtx, m.done)
	return nil
}

func (m *connectionMonitor) Stop() {
	m.runMutex.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.runMutex.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *connectionMonitor) Status() Status {
	m.statusMutex.RLock()
	defer m.statusMutex.RUnlock()
	return m.status
}

func (m *connectionMonitor) Healthy() bool {
	return m.Status().Healthy
}

func (m *connectionMonitor) LastError() error {
	return m.Status().LastError
}

func (m *connectionMonitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("Connection monitoring stopped")
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// check runs one health check, redialing when it fails, and records the outcome.
func (m *connectionMonitor) check(ctx context.Context) {
	reconnected, err := m.checkAndReconnect(ctx)
	if ctx.Err() != nil {
		return
	}

	m.statusMutex.Lock()
	wasHealthy := m.status.Healthy
	m.status.Healthy = err == nil
	m.status.LastError = err
	m.status.LastCheck = time.Now()
	if reconnected {
		m.status.Reconnects++
	}
	m.statusMutex.Unlock()

	switch {
	case err != nil && wasHealthy:
		m.logger.WithError(err).Error("Chain became unreachable")
	case err != nil:
		m.logger.WithError(err).Debug("Chain still unreachable")
	case !wasHealthy:
		m.logger.Info("Chain reachable again")
	}
}

// checkAndReconnect checks the connection and redials it with backoff when the check fails.
//
// Parameters:
// - ctx: the context bounding the check and the reconnect attempts.
//
// Returns:
// - bool: whether a reconnect was needed and succeeded.
// - error: the last reconnect error when every attempt failed.
func (m *connectionMonitor) checkAndReconnect(ctx context.Context) (bool, error) {
	checkErr := m.client.CheckConnection(ctx)
	if checkErr == nil {
		return false, nil
	}
	m.logger.WithError(checkErr).Warn("Connection check failed, reconnecting")

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.retryInterval
	policy.MaxElapsedTime = 0

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if err := m.client.Reconnect(ctx); err != nil {
			m.logger.WithField("attempt", attempt).WithError(err).Warn("Reconnection attempt failed")
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(policy, maxReconnectAttempts-1), ctx))
	if err != nil {
		return false, errors.Wrapf(err, "reconnect failed after %d attempts", attempt)
	}

	m.logger.WithField("attempt", attempt).Info("Client reconnected")
	return true, nil
}
