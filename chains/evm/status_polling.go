package evm

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ClipFinance/bridge-coordinator/chains/evm/handler"
	"github.com/ClipFinance/bridge-coordinator/common/types"
)

// InitHTTPPolling starts polling BridgeStatusUpdated logs of the bridge contract. A poller
// already running is replaced.
//
// Parameters:
// - ctx: the context bounding the poller.
// - eventChan: the channel receiving status events.
//
// Returns:
// - error: an error if the client is closed or the poller cannot start.
func (e *evm) InitHTTPPolling(ctx context.Context, eventChan chan types.StatusEvent) error {
	client, err := e.getClient()
	if err != nil {
		return err
	}

	e.eventHandlerMutex.Lock()
	defer e.eventHandlerMutex.Unlock()

	e.stopPollerLocked()

	poller := handler.NewEventHandler(ctx, e.config, e.logger, client, eventChan)
	if err := poller.StartHTTPPolling(); err != nil {
		poller.Stop()
		return errors.Wrap(err, "failed to start HTTP polling")
	}
	e.eventHandler = poller
	return nil
}

// ShutdownListeners stops the status poller. The connection monitor keeps running.
func (e *evm) ShutdownListeners() {
	e.eventHandlerMutex.Lock()
	defer e.eventHandlerMutex.Unlock()

	e.stopPollerLocked()
}

func (e *evm) stopPollerLocked() {
	if e.eventHandler == nil {
		return
	}
	e.eventHandler.Stop()
	e.eventHandler = nil
}
