package evm

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/connectionmonitor"
)

// rpcProbe lets the connection monitor check and redial the RPC endpoint of a ledger.
type rpcProbe struct {
	chain *evm
}

func (e *evm) initMonitor(ctx context.Context) error {
	e.monitorMutex.Lock()
	defer e.monitorMutex.Unlock()

	e.monitor = connectionmonitor.NewConnectionMonitor(&rpcProbe{chain: e}, e.logger, e.config.Name)
	return e.monitor.Start(ctx)
}

// CheckConnection reads the head block of the node.
func (p *rpcProbe) CheckConnection(ctx context.Context) error {
	client, err := p.chain.getClient()
	if err != nil {
		return err
	}

	head, err := client.BlockNumber(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to read head block")
	}
	p.chain.logger.WithFields(logrus.Fields{"chain": p.chain.config.Name, "head": head}).Trace("RPC head")
	return nil
}

// Reconnect dials the configured endpoint again. A node serving another chain is refused,
// the current client stays in place.
func (p *rpcProbe) Reconnect(ctx context.Context) error {
	if p.chain.dial == nil {
		return errors.New("no dialer configured")
	}

	client, err := p.chain.dial(ctx, p.chain.config.RpcUrl)
	if err != nil {
		return errors.Wrap(err, "failed to dial")
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return errors.Wrap(err, "failed to read chain id")
	}
	if !chainID.IsUint64() || chainID.Uint64() != p.chain.config.ChainID {
		client.Close()
		return errors.Wrapf(bridgeerrors.ErrInvalidChainID, "node serves chain %s, expected %d", chainID, p.chain.config.ChainID)
	}

	p.chain.replaceClient(client)
	return nil
}

// replaceClient installs client for calls and status polling and closes the previous one.
func (e *evm) replaceClient(client Client) {
	e.clientMutex.Lock()
	old := e.client
	e.client = client
	e.clientMutex.Unlock()

	e.eventHandlerMutex.RLock()
	if e.eventHandler != nil {
		e.eventHandler.UpdateClient(client)
	}
	e.eventHandlerMutex.RUnlock()

	if old != nil {
		old.Close()
	}
}
