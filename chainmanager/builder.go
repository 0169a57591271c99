package chainmanager

import (
	"github.com/sirupsen/logrus"

	"github.com/ClipFinance/bridge-coordinator/common/types"
)

// ChainBuilder is a builder pattern implementation for chain configuration.
// It allows setting the components of the chain such as the transfer submitter,
// transaction reader, fee reader and status notifier.
type ChainBuilder struct {
	config    *types.ChainConfig      // Chain configuration.
	caps      types.Capabilities      // Declared capabilities.
	logger    *logrus.Logger          // Logger for the guarded chain.
	submitter types.TransferSubmitter // Transfer submitter implementation.
	reader    types.TransactionReader // Transaction reader implementation.
	fees      types.FeeReader         // Fee reader implementation.
	notifier  types.StatusNotifier    // Status notifier implementation.
	health    types.HealthChecker     // Health checker implementation.
	closer    func()                  // Resource release hook.
}

// NewChainBuilder creates a new chain builder instance.
//
// Parameters:
// - config: the chain configuration.
// - logger: the logger for the built chain.
//
// Returns:
// - *ChainBuilder: a new ChainBuilder instance.
func NewChainBuilder(config *types.ChainConfig, logger *logrus.Logger) *ChainBuilder {
	return &ChainBuilder{
		config: config,
		logger: logger,
	}
}

// WithCapabilities sets the declared capabilities.
func (b *ChainBuilder) WithCapabilities(caps types.Capabilities) *ChainBuilder {
	b.caps = caps
	return b
}

// WithTransferSubmitter sets transfer submitter implementation.
func (b *ChainBuilder) WithTransferSubmitter(submitter types.TransferSubmitter) *ChainBuilder {
	b.submitter = submitter
	return b
}

// WithTransactionReader sets transaction reader implementation.
func (b *ChainBuilder) WithTransactionReader(reader types.TransactionReader) *ChainBuilder {
	b.reader = reader
	return b
}

// WithFeeReader sets fee reader implementation.
func (b *ChainBuilder) WithFeeReader(fees types.FeeReader) *ChainBuilder {
	b.fees = fees
	return b
}

// WithStatusNotifier sets status notifier implementation.
func (b *ChainBuilder) WithStatusNotifier(notifier types.StatusNotifier) *ChainBuilder {
	b.notifier = notifier
	return b
}

// WithHealthChecker sets health checker implementation.
func (b *ChainBuilder) WithHealthChecker(health types.HealthChecker) *ChainBuilder {
	b.health = health
	return b
}

// WithCloser sets the hook releasing the chain's resources.
func (b *ChainBuilder) WithCloser(closer func()) *ChainBuilder {
	b.closer = closer
	return b
}

// Build creates a new chain instance with configured implementations.
//
// Returns:
// - *Chain: a new Chain instance with the configured implementations.
func (b *ChainBuilder) Build() *Chain {
	return NewChain(b.config, b.caps, b.logger, b.submitter, b.reader, b.fees, b.notifier, b.health, b.closer)
}
