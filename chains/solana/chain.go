// Package solana provides the destination-only Solana chain. Transfers may target Solana
// addresses, but no bridge contract is read or written on Solana itself.
package solana

import (
	"context"
	"sync"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ClipFinance/bridge-coordinator/chainmanager"
	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/common/types"
	"github.com/ClipFinance/bridge-coordinator/connectionmonitor"
)

// DestinationOnly is the capability version of chains without a bridge ledger.
const DestinationOnly = "destination-only"

// healthOK is the getHealth answer of a node in sync with the cluster.
const healthOK = "ok"

// Client is the subset of the Solana RPC client used for health checks.
type Client interface {
	GetHealth(ctx context.Context) (string, error)
	Close() error
}

// solana represents a Solana cluster that only receives transfers.
type solana struct {
	config *types.ChainConfig
	logger *logrus.Logger
	dial   func(rpcURL string) Client

	// Protected fields with their own mutexes
	clientMutex sync.RWMutex
	client      Client

	monitorMutex sync.RWMutex
	monitor      connectionmonitor.ConnectionMonitor
}

// NewSolanaChain creates the destination-only Solana chain. It declares no capabilities, so
// every ledger operation on it is rejected by the chain manager.
//
// Parameters:
// - ctx: the context for managing the connection monitor.
// - config: the chain configuration.
// - logger: the logger for logging events.
//
// Returns:
// - types.Ledger: the chain.
// - error: ErrInvalidConfig for a malformed program address, or a monitor start error.
func NewSolanaChain(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger) (types.Ledger, error) {
	if config.BridgeAddress != "" {
		if _, err := solanago.PublicKeyFromBase58(config.BridgeAddress); err != nil {
			return nil, errors.Wrapf(bridgeerrors.ErrInvalidConfig, "invalid program address %q: %v", config.BridgeAddress, err)
		}
	}

	chain := newSolana(config, logger, dialRPC)
	if err := chain.initMonitor(ctx); err != nil {
		chain.Close()
		return nil, errors.Wrap(err, "failed to init connection monitor")
	}

	return chainmanager.NewChainBuilder(config, logger).
		WithCapabilities(types.Capabilities{Version: DestinationOnly}).
		WithHealthChecker(chain).
		WithCloser(chain.Close).
		Build(), nil
}

func dialRPC(rpcURL string) Client {
	return rpc.New(rpcURL)
}

func newSolana(config *types.ChainConfig, logger *logrus.Logger, dial func(string) Client) *solana {
	return &solana{
		config: config,
		logger: logger,
		dial:   dial,
		client: dial(config.RpcUrl),
	}
}

func (s *solana) initMonitor(ctx context.Context) error {
	s.monitorMutex.Lock()
	defer s.monitorMutex.Unlock()

	s.monitor = connectionmonitor.NewConnectionMonitor(s, s.logger, s.config.Name)
	return s.monitor.Start(ctx)
}

// CheckConnection asks the node for its health. A node that lags behind the cluster counts
// as unreachable.
func (s *solana) CheckConnection(ctx context.Context) error {
	s.clientMutex.RLock()
	client := s.client
	s.clientMutex.RUnlock()

	if client == nil {
		return errors.New("client not initialized")
	}

	health, err := client.GetHealth(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get node health")
	}
	if health != healthOK {
		return errors.Errorf("node health is %q", health)
	}
	return nil
}

// Reconnect swaps in a new RPC client for the same endpoint.
func (s *solana) Reconnect(context.Context) error {
	next := s.dial(s.config.RpcUrl)

	s.clientMutex.Lock()
	prev := s.client
	s.client = next
	s.clientMutex.Unlock()

	if prev != nil {
		if err := prev.Close(); err != nil {
			s.logger.WithField("chain", s.config.Name).WithError(err).Debug("Failed to close replaced RPC client")
		}
	}
	return nil
}

// Healthy reports the state of the connection monitor.
func (s *solana) Healthy() bool {
	s.monitorMutex.RLock()
	defer s.monitorMutex.RUnlock()

	if s.monitor == nil {
		return true
	}
	return s.monitor.Healthy()
}

// Close should be called when chain is no longer needed
func (s *solana) Close() {
	s.monitorMutex.Lock()
	if s.monitor != nil {
		s.monitor.Stop()
	}
	s.monitorMutex.Unlock()

	s.clientMutex.Lock()
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.WithField("chain", s.config.Name).WithError(err).Debug("Failed to close RPC client")
		}
		s.client = nil
	}
	s.clientMutex.Unlock()
}
