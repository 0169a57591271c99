package chainmanager

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/common/types"
)

// ChainFactory creates ledgers from chain configurations.
type ChainFactory interface {
	CreateChain(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger) (types.Ledger, error)
}

type registeredChain struct {
	config types.ChainConfig
	ledger types.Ledger
}

// Registry holds one ledger per chain id. Adding a chain id again with an identical config
// is a no-op, a different config rebuilds the ledger and closes the previous one. The
// network class of a chain never changes after registration.
type Registry struct {
	logger      *logrus.Logger
	chains      map[uint64]*registeredChain
	chainsMutex sync.RWMutex
	// addMutex serializes Add so that two rebuilds of the same chain cannot race.
	addMutex     sync.Mutex
	factory      ChainFactory
	factoryMutex sync.RWMutex
}

// NewChainRegistry creates an empty registry building ledgers with factory.
func NewChainRegistry(factory ChainFactory, logger *logrus.Logger) *Registry {
	return &Registry{
		chains:  make(map[uint64]*registeredChain),
		factory: factory,
		logger:  logger,
	}
}

// Add registers or rebuilds a chain.
//
// Parameters:
// - ctx: the context for the ledger construction.
// - config: the chain configuration.
//
// Returns:
// - error: ErrInvalidConfig for a bad or class-changing config, or the construction error.
func (r *Registry) Add(ctx context.Context, config *types.ChainConfig) error {
	if config == nil || config.ChainID == 0 {
		return errors.Wrap(bridgeerrors.ErrInvalidConfig, "chain id is required")
	}
	if _, ok := types.ParseNetworkClass(string(config.Class)); !ok {
		return errors.Wrapf(bridgeerrors.ErrInvalidConfig, "chain %d: unknown network class %q", config.ChainID, config.Class)
	}

	r.addMutex.Lock()
	defer r.addMutex.Unlock()

	r.chainsMutex.RLock()
	existing := r.chains[config.ChainID]
	r.chainsMutex.RUnlock()

	if existing != nil {
		if existing.config == *config {
			return nil
		}
		if existing.config.Class != config.Class {
			return errors.Wrapf(bridgeerrors.ErrInvalidConfig, "chain %d: network class is immutable (%s)", config.ChainID, existing.config.Class)
		}
	}

	r.factoryMutex.RLock()
	factory := r.factory
	r.factoryMutex.RUnlock()

	if factory == nil {
		return bridgeerrors.ErrFactoryNotProvided
	}

	cfg := *config
	ledger, err := factory.CreateChain(ctx, &cfg, r.logger)
	if err != nil {
		return errors.Wrapf(err, "failed to create chain %d", config.ChainID)
	}

	r.chainsMutex.Lock()
	r.chains[config.ChainID] = &registeredChain{config: cfg, ledger: ledger}
	r.chainsMutex.Unlock()

	if existing != nil {
		existing.ledger.Close()
		r.logger.WithField("chain", config.Name).Info("Chain rebuilt with new configuration")
	} else {
		r.logger.WithField("chain", config.Name).Info("Chain registered")
	}

	return nil
}

// Get returns the ledger of a chain, nil if it is not registered.
func (r *Registry) Get(chainID uint64) types.Ledger {
	r.chainsMutex.RLock()
	defer r.chainsMutex.RUnlock()

	if c := r.chains[chainID]; c != nil {
		return c.ledger
	}
	return nil
}

// Chain returns the metadata of a registered chain.
func (r *Registry) Chain(chainID uint64) (types.Chain, bool) {
	r.chainsMutex.RLock()
	defer r.chainsMutex.RUnlock()

	c := r.chains[chainID]
	if c == nil {
		return types.Chain{}, false
	}
	return c.config.Chain(), true
}

// IDs returns the registered chain ids in ascending order.
func (r *Registry) IDs() []uint64 {
	r.chainsMutex.RLock()
	ids := make([]uint64, 0, len(r.chains))
	for id := range r.chains {
		ids = append(ids, id)
	}
	r.chainsMutex.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Remove unregisters a chain and closes its ledger.
func (r *Registry) Remove(chainID uint64) {
	r.chainsMutex.Lock()
	c := r.chains[chainID]
	delete(r.chains, chainID)
	r.chainsMutex.Unlock()

	if c != nil {
		c.ledger.Close()
	}
}

// Close closes every registered ledger.
func (r *Registry) Close() {
	for _, id := range r.IDs() {
		r.Remove(id)
	}
}
