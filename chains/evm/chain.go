package evm

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ClipFinance/bridge-coordinator/chainmanager"
	"github.com/ClipFinance/bridge-coordinator/chains/evm/handler"
	"github.com/ClipFinance/bridge-coordinator/chains/evm/signer"
	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/common/types"
	"github.com/ClipFinance/bridge-coordinator/connectionmonitor"
)

const (
	// TxTypeLegacy represents the legacy transaction type.
	TxTypeLegacy = 0
	// TxTypeEIP1559 represents the EIP-1559 transaction type.
	TxTypeEIP1559 = 2
	// defaultPollInterval is the interval between receipt polls.
	defaultPollInterval = time.Second
)

// evm is the bridge ledger of one EVM chain.
type evm struct {
	config        *types.ChainConfig // Chain configuration.
	logger        *logrus.Logger     // Logger for logging events.
	caps          types.Capabilities // Declared bridge capabilities.
	bridgeAddress common.Address     // Bridge contract address.
	pollInterval  time.Duration      // Receipt polling interval.
	dial          Dialer             // Opens new clients on reconnect.

	// Protected fields with their own mutexes.
	clientMutex sync.RWMutex // Mutex for client.
	client      Client       // Ethereum client.

	signerMutex sync.RWMutex  // Mutex for signer.
	signer      signer.Signer // Signer for signing transactions.

	// sendMutex serializes nonce assignment and broadcast.
	sendMutex sync.Mutex

	// tokenLocks holds one lock per token, taken from the allowance read until the transfer
	// spending it is included.
	tokenLocksMutex sync.Mutex
	tokenLocks      map[common.Address]chan struct{}

	eventHandlerMutex sync.RWMutex          // Mutex for event handler.
	eventHandler      *handler.EventHandler // Status event handler.

	monitorMutex sync.RWMutex                        // Mutex for connection monitor.
	monitor      connectionmonitor.ConnectionMonitor // Connection monitor.
}

// NewEvmChain creates a new EVM bridge ledger wrapped in the chain's call guard.
//
// Parameters:
// - ctx: the context for managing the request.
// - config: the chain configuration.
// - logger: the logger for logging events.
//
// Returns:
// - types.Ledger: a new EVM ledger instance.
// - error: an error if any issue occurs during creation.
func NewEvmChain(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger) (types.Ledger, error) {
	caps, err := types.CapabilitiesForVersion(config.BridgeVersion)
	if err != nil {
		return nil, errors.Wrap(bridgeerrors.ErrInvalidConfig, err.Error())
	}
	if !common.IsHexAddress(config.BridgeAddress) {
		return nil, errors.Wrapf(bridgeerrors.ErrInvalidConfig, "invalid bridge address %q", config.BridgeAddress)
	}

	client, err := dialEthClient(ctx, config.RpcUrl)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create client")
	}

	var s signer.Signer
	if config.PrivateKey != "" {
		s, err = signer.FromHex(config.PrivateKey, config.ChainID)
		if err != nil {
			client.Close()
			return nil, errors.Wrap(err, "failed to create signer")
		}
	}

	chain := newEvm(config, caps, client, s, logger)
	chain.dial = dialEthClient

	if err := chain.initMonitor(ctx); err != nil {
		chain.Close()
		return nil, errors.Wrap(err, "failed to init connection monitor")
	}

	builder := chainmanager.NewChainBuilder(config, logger).
		WithCapabilities(caps).
		WithTransactionReader(chain).
		WithFeeReader(chain).
		WithStatusNotifier(chain).
		WithHealthChecker(chain).
		WithCloser(chain.Close)

	if s != nil {
		builder.WithTransferSubmitter(chain)
	} else {
		logger.WithField("chain", config.Name).Warn("No private key configured, chain is read-only")
	}

	return builder.Build(), nil
}

func newEvm(config *types.ChainConfig, caps types.Capabilities, client Client, s signer.Signer, logger *logrus.Logger) *evm {
	pollInterval := config.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &evm{
		config:        config,
		logger:        logger,
		caps:          caps,
		bridgeAddress: common.HexToAddress(config.BridgeAddress),
		pollInterval:  pollInterval,
		client:        client,
		signer:        s,
	}
}

// Close should be called when the chain is no longer needed.
// It stops the connection monitor and the status poller, then closes the client.
func (e *evm) Close() {
	e.monitorMutex.Lock()
	if e.monitor != nil {
		e.monitor.Stop()
	}
	e.monitorMutex.Unlock()

	e.ShutdownListeners()

	e.clientMutex.Lock()
	if e.client != nil {
		e.client.Close()
		e.client = nil
	}
	e.clientMutex.Unlock()
}

// Healthy reports the state of the connection monitor.
func (e *evm) Healthy() bool {
	e.monitorMutex.RLock()
	defer e.monitorMutex.RUnlock()

	if e.monitor == nil {
		return true
	}
	return e.monitor.Healthy()
}

func (e *evm) getClient() (Client, error) {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()

	if e.client == nil {
		return nil, errors.New("client not initialized")
	}
	return e.client, nil
}

func (e *evm) getSigner() (signer.Signer, error) {
	e.signerMutex.RLock()
	defer e.signerMutex.RUnlock()

	if e.signer == nil {
		return nil, errors.New("signer not initialized")
	}
	return e.signer, nil
}
