package chainmanager

import (
	"context"
	"math/big"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/common/types"
)

var _ types.Ledger = (*Chain)(nil)

// Chain implements types.Ledger with thread-safe access to its dependencies. Every component
// is optional, a missing one makes the matching calls return ErrNotImplemented. Calls are
// gated by the declared capabilities and run through the chain's guard.
type Chain struct {
	config *types.ChainConfig // Chain configuration.
	caps   types.Capabilities // Declared bridge capabilities.
	guard  *guard             // Call policy.
	logger *logrus.Logger     // Logger for logging events.
	closer func()             // Releases the chain's resources.

	submitter types.TransferSubmitter // Transfer submitter implementation.
	reader    types.TransactionReader // Transaction reader implementation.
	fees      types.FeeReader         // Fee reader implementation.
	notifier  types.StatusNotifier    // Status notifier implementation.
	health    types.HealthChecker     // Health checker implementation.

	// Mutexes for thread-safe access to dependencies.
	submitterMutex sync.RWMutex
	readerMutex    sync.RWMutex
	feesMutex      sync.RWMutex
	notifierMutex  sync.RWMutex
	healthMutex    sync.RWMutex
	closeOnce      sync.Once
}

// NewChain creates a new Chain instance.
//
// Parameters:
// - config: the chain configuration.
// - caps: the declared capabilities.
// - logger: the logger for logging events.
// - submitter: the transfer submitter implementation.
// - reader: the transaction reader implementation.
// - fees: the fee reader implementation.
// - notifier: the status notifier implementation.
// - health: the health checker implementation.
// - closer: releases the underlying resources, may be nil.
//
// Returns:
// - *Chain: a new Chain instance.
func NewChain(
	config *types.ChainConfig,
	caps types.Capabilities,
	logger *logrus.Logger,
	submitter types.TransferSubmitter,
	reader types.TransactionReader,
	fees types.FeeReader,
	notifier types.StatusNotifier,
	health types.HealthChecker,
	closer func(),
) *Chain {
	return &Chain{
		config:    config,
		caps:      caps,
		guard:     newGuard(config, logger),
		logger:    logger,
		closer:    closer,
		submitter: submitter,
		reader:    reader,
		fees:      fees,
		notifier:  notifier,
		health:    health,
	}
}

// Config returns the chain configuration.
func (c *Chain) Config() *types.ChainConfig {
	return c.config
}

// Capabilities returns the declared capabilities of the chain's bridge contract.
func (c *Chain) Capabilities() types.Capabilities {
	return c.caps
}

func (c *Chain) unsupported(op string) error {
	return errors.Wrapf(bridgeerrors.ErrCapabilityUnsupported, "%s on chain %d (bridge %s)", op, c.config.ChainID, c.caps.Version)
}

// SubmitLock submits a lock through the guard. It is never retried.
//
// Parameters:
// - ctx: the context for managing the request.
// - req: the submission details.
//
// Returns:
// - string: the ledger-assigned transaction id.
// - error: ErrNotImplemented without a submitter, ErrCapabilityUnsupported if the bridge cannot lock,
// or a *GatewayError.
func (c *Chain) SubmitLock(ctx context.Context, req *types.SubmitRequest) (string, error) {
	if !c.caps.Lock {
		return "", c.unsupported("lock")
	}
	return c.submit(ctx, "submitLock", req, func(s types.TransferSubmitter) func(context.Context, *types.SubmitRequest) (string, error) {
		return s.SubmitLock
	})
}

// SubmitBurnAndMint submits a burn through the guard. It is never retried.
func (c *Chain) SubmitBurnAndMint(ctx context.Context, req *types.SubmitRequest) (string, error) {
	if !c.caps.BurnAndMint {
		return "", c.unsupported("burnAndMint")
	}
	return c.submit(ctx, "submitBurnAndMint", req, func(s types.TransferSubmitter) func(context.Context, *types.SubmitRequest) (string, error) {
		return s.SubmitBurnAndMint
	})
}

func (c *Chain) submit(
	ctx context.Context,
	op string,
	req *types.SubmitRequest,
	pick func(types.TransferSubmitter) func(context.Context, *types.SubmitRequest) (string, error),
) (string, error) {
	c.submitterMutex.RLock()
	submitter := c.submitter
	c.submitterMutex.RUnlock()

	if submitter == nil {
		return "", bridgeerrors.ErrNotImplemented
	}

	var id string
	err := c.guard.submit(ctx, op, func(ctx context.Context) error {
		var err error
		id, err = pick(submitter)(ctx, req)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetTransaction reads a transaction with retries. ErrNotFound is passed through unwrapped.
func (c *Chain) GetTransaction(ctx context.Context, id string) (*types.BridgeTransaction, error) {
	if !c.caps.TransactionLookup {
		return nil, c.unsupported("getTransaction")
	}

	c.readerMutex.RLock()
	reader := c.reader
	c.readerMutex.RUnlock()

	if reader == nil {
		return nil, bridgeerrors.ErrNotImplemented
	}

	var tx *types.BridgeTransaction
	err := c.guard.read(ctx, "getTransaction", func(ctx context.Context) error {
		var err error
		tx, err = reader.GetTransaction(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// GetUserTransactions enumerates a user's transaction ids. Chains whose bridge does not declare
// enumeration return ErrCapabilityUnsupported.
func (c *Chain) GetUserTransactions(ctx context.Context, user string) ([]string, error) {
	if !c.caps.UserEnumeration {
		return nil, c.unsupported("getUserTransactions")
	}

	c.readerMutex.RLock()
	reader := c.reader
	c.readerMutex.RUnlock()

	if reader == nil {
		return nil, bridgeerrors.ErrNotImplemented
	}

	var ids []string
	err := c.guard.read(ctx, "getUserTransactions", func(ctx context.Context) error {
		var err error
		ids, err = reader.GetUserTransactions(ctx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// EstimateFee reads the token fee for an amount.
func (c *Chain) EstimateFee(ctx context.Context, token string, amount *big.Int) (*big.Int, error) {
	if !c.caps.FeeEstimation {
		return nil, c.unsupported("estimateFee")
	}

	c.feesMutex.RLock()
	fees := c.fees
	c.feesMutex.RUnlock()

	if fees == nil {
		return nil, bridgeerrors.ErrNotImplemented
	}

	var fee *big.Int
	err := c.guard.read(ctx, "estimateFee", func(ctx context.Context) error {
		var err error
		fee, err = fees.EstimateFee(ctx, token, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fee, nil
}

// CheckFeeRequirements reads the flat fee pre-funding state of a user.
func (c *Chain) CheckFeeRequirements(ctx context.Context, user string) (*types.FeeRequirements, error) {
	if !c.caps.FeeRequirements {
		return nil, c.unsupported("checkFeeRequirements")
	}

	c.feesMutex.RLock()
	fees := c.fees
	c.feesMutex.RUnlock()

	if fees == nil {
		return nil, bridgeerrors.ErrNotImplemented
	}

	var req *types.FeeRequirements
	err := c.guard.read(ctx, "checkFeeRequirements", func(ctx context.Context) error {
		var err error
		req, err = fees.CheckFeeRequirements(ctx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// InitHTTPPolling starts status polling with thread-safe access to the notifier.
//
// Parameters:
// - ctx: context for managing the lifecycle of the polling.
// - eventChan: channel to receive status events.
//
// Returns:
// - error: an error if the notifier is not implemented or if any issue occurs during initialization.
func (c *Chain) InitHTTPPolling(ctx context.Context, eventChan chan types.StatusEvent) error {
	c.notifierMutex.RLock()
	defer c.notifierMutex.RUnlock()

	if c.notifier == nil {
		return bridgeerrors.ErrNotImplemented
	}
	return c.notifier.InitHTTPPolling(ctx, eventChan)
}

// ShutdownListeners stops status polling.
func (c *Chain) ShutdownListeners() {
	c.notifierMutex.RLock()
	defer c.notifierMutex.RUnlock()

	if c.notifier != nil {
		c.notifier.ShutdownListeners()
	}
}

// Healthy reports the connection state. A chain without a health checker is always healthy.
func (c *Chain) Healthy() bool {
	c.healthMutex.RLock()
	defer c.healthMutex.RUnlock()

	if c.health == nil {
		return true
	}
	return c.health.Healthy()
}

// Close releases the chain's resources. It is safe to call more than once.
func (c *Chain) Close() {
	c.closeOnce.Do(func() {
		c.ShutdownListeners()
		if c.closer != nil {
			c.closer()
		}
	})
}
