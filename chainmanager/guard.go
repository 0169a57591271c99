package chainmanager

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/common/types"
)

const (
	defaultCallTimeout         = 15 * time.Second
	defaultConfirmationTimeout = 5 * time.Minute
	defaultMaxRetries          = 3
	defaultInitialBackoff      = 200 * time.Millisecond
	defaultMaxBackoff          = 5 * time.Second
	breakerConsecutiveFailures = 5
)

// guard applies the per-chain call policy: rate limit, circuit breaker, timeouts and bounded
// retries for reads. Errors leaving the guard are either passed through (not found, invalid
// request, caller cancellation) or wrapped in a *GatewayError.
type guard struct {
	chainID        uint64
	name           string
	logger         *logrus.Logger
	breaker        *gobreaker.CircuitBreaker
	limiter        *rate.Limiter
	callTimeout    time.Duration
	confirmTimeout time.Duration
	maxRetries     uint64
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func newGuard(config *types.ChainConfig, logger *logrus.Logger) *guard {
	g := &guard{
		chainID:        config.ChainID,
		name:           config.Name,
		logger:         logger,
		callTimeout:    config.CallTimeout,
		confirmTimeout: config.ConfirmationTimeout,
		maxRetries:     config.MaxRetries,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
	}
	if g.callTimeout <= 0 {
		g.callTimeout = defaultCallTimeout
	}
	if g.confirmTimeout <= 0 {
		g.confirmTimeout = defaultConfirmationTimeout
	}
	if g.maxRetries == 0 {
		g.maxRetries = defaultMaxRetries
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}
	g.limiter = rate.NewLimiter(limit, 1)

	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"chain": name,
				"from":  from.String(),
				"to":    to.String(),
			}).Warn("Ledger circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isLedgerAnswer(err)
		},
	})
	return g
}

// isLedgerAnswer reports errors that are valid answers from a healthy ledger.
func isLedgerAnswer(err error) bool {
	return errors.Is(err, bridgeerrors.ErrNotFound) || errors.Is(err, bridgeerrors.ErrInvalidRequest)
}

// read runs a read-only ledger call with the call timeout, retrying transient failures with
// exponential backoff.
func (g *guard) read(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = g.initialBackoff
	expo.MaxInterval = g.maxBackoff
	expo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, g.maxRetries), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := g.do(ctx, op, g.callTimeout, fn)
		if err == nil {
			return nil
		}
		if !g.retryable(ctx, err) {
			return backoff.Permanent(err)
		}
		g.logger.WithFields(logrus.Fields{
			"chain":   g.name,
			"op":      op,
			"attempt": attempt,
		}).WithError(err).Warn("Ledger read failed, retrying")
		return err
	}, policy)
	if err != nil && ctx.Err() != nil && !isLedgerAnswer(err) {
		return g.wrap(ctx, ctx, op, ctx.Err())
	}
	return err
}

// submit runs a state-changing ledger call with the confirmation timeout. It is never retried:
// a retry could double-spend.
func (g *guard) submit(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return g.do(ctx, op, g.confirmTimeout, fn)
}

func (g *guard) do(ctx context.Context, op string, timeout time.Duration, fn func(ctx context.Context) error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return g.wrap(ctx, ctx, op, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, fn(callCtx)
	})
	return g.wrap(ctx, callCtx, op, err)
}

func (g *guard) wrap(ctx, callCtx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if isLedgerAnswer(err) {
		return err
	}
	var gwErr *bridgeerrors.GatewayError
	if errors.As(err, &gwErr) {
		return err
	}
	// A broadcast transfer keeps its tx hash whatever ended the wait.
	var subErr *bridgeerrors.SubmittedError
	sent := errors.As(err, &subErr)
	if errors.Is(ctx.Err(), context.Canceled) {
		if sent {
			return errors.Wrapf(err, "ledger %s on chain %d", op, g.chainID)
		}
		return errors.Wrapf(ctx.Err(), "ledger %s on chain %d", op, g.chainID)
	}
	if sent {
		return bridgeerrors.NewGatewayError(g.chainID, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return bridgeerrors.NewGatewayError(g.chainID, op, errors.Wrap(bridgeerrors.ErrTimeout, err.Error()))
	}
	return bridgeerrors.NewGatewayError(g.chainID, op, err)
}

func (g *guard) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || isLedgerAnswer(err) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, bridgeerrors.ErrNotImplemented) || errors.Is(err, bridgeerrors.ErrCapabilityUnsupported) {
		return false
	}
	// A ledger answering with a code we cannot decode answers the same way again.
	return !errors.Is(err, types.ErrUnknownStatusCode)
}
