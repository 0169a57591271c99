// Package chains builds bridge ledgers by chain type.
package chains

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ClipFinance/bridge-coordinator/chainmanager"
	"github.com/ClipFinance/bridge-coordinator/chains/evm"
	"github.com/ClipFinance/bridge-coordinator/chains/solana"
	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	commontypes "github.com/ClipFinance/bridge-coordinator/common/types"
)

// ChainConstructor represents a function that constructs a new ledger.
//
// Parameters:
// - ctx: the context for the connection monitor and dialing.
// - config: the configuration for the chain.
// - logger: the logger for logging purposes.
//
// Returns:
// - commontypes.Ledger: the constructed ledger.
// - error: an error if the construction fails.
type ChainConstructor func(ctx context.Context, config *commontypes.ChainConfig, logger *logrus.Logger) (commontypes.Ledger, error)

// ChainFactory creates ledgers and lets callers plug in constructors per chain type.
type ChainFactory interface {
	chainmanager.ChainFactory

	// RegisterConstructor registers a new constructor for a given chain type, replacing any
	// previous one.
	RegisterConstructor(chainType commontypes.ChainType, constructor ChainConstructor)
}

type chainFactory struct {
	// constructors stores the mapping of chain types to their constructors.
	constructors map[commontypes.ChainType]ChainConstructor
	// constructorsMutex protects access to the constructors map.
	constructorsMutex sync.RWMutex
}

// NewChainFactory creates a factory with the EVM and Solana constructors registered.
//
// Returns:
// - ChainFactory: the new chain factory instance.
func NewChainFactory() ChainFactory {
	factory := &chainFactory{
		constructors: make(map[commontypes.ChainType]ChainConstructor),
	}

	factory.RegisterConstructor(commontypes.EVM, evm.NewEvmChain)
	factory.RegisterConstructor(commontypes.SOLANA, solana.NewSolanaChain)

	return factory
}

func (f *chainFactory) RegisterConstructor(chainType commontypes.ChainType, constructor ChainConstructor) {
	f.constructorsMutex.Lock()
	defer f.constructorsMutex.Unlock()

	f.constructors[chainType] = constructor
}

// CreateChain creates a new ledger based on the configuration.
//
// Parameters:
// - ctx: the context for managing the creation.
// - config: the configuration for the chain.
// - logger: the logger for logging purposes.
//
// Returns:
// - commontypes.Ledger: the created ledger.
// - error: ErrInvalidChainType when no constructor is registered for the chain type.
func (f *chainFactory) CreateChain(ctx context.Context, config *commontypes.ChainConfig, logger *logrus.Logger) (commontypes.Ledger, error) {
	f.constructorsMutex.RLock()
	constructor, exists := f.constructors[config.ChainType]
	f.constructorsMutex.RUnlock()

	if !exists {
		return nil, errors.Wrapf(bridgeerrors.ErrInvalidChainType, "%q", config.ChainType)
	}

	return constructor(ctx, config, logger)
}
