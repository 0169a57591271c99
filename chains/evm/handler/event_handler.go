package handler

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	commontypes "github.com/ClipFinance/bridge-coordinator/common/types"
)

// Client is the subset of the Ethereum client the handler polls with.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)
}

// EventHandler polls bridge status events with thread-safe access.
type EventHandler struct {
	parent             context.Context              // Context the handler was started with.
	ctx                context.Context              // Context for managing lifecycle.
	cancel             context.CancelFunc           // Cancel function for context.
	chainConfig        *commontypes.ChainConfig     // Chain configuration.
	logger             *logrus.Logger               // Logger for logging events.
	clientMutex        sync.RWMutex                 // Mutex for client.
	client             Client                       // Ethereum client.
	eventChan          chan commontypes.StatusEvent // Channel for status events.
	lastProcessedBlock uint64                       // Last processed block number.
	lastBlockMutex     sync.RWMutex                 // Mutex for last processed block.
	pollingMutex       sync.Mutex                   // Mutex for the polling ticker.
	pollingTicker      *time.Ticker                 // Ticker for polling.
	interval           time.Duration                // Polling interval.
}

// NewEventHandler creates a new event handler instance.
//
// Parameters:
// - ctx: context for managing the lifecycle of the event handler.
// - config: the chain configuration.
// - logger: the logger for logging events.
// - client: the Ethereum client.
// - eventChan: the channel to receive status events.
//
// Returns:
// - *EventHandler: a new EventHandler instance.
func NewEventHandler(
	ctx context.Context,
	config *commontypes.ChainConfig,
	logger *logrus.Logger,
	client Client,
	eventChan chan commontypes.StatusEvent,
) *EventHandler {
	handlerCtx, cancel := context.WithCancel(ctx)

	interval := config.PollInterval
	if interval <= 0 {
		interval = defaultPollingInterval
	}

	return &EventHandler{
		parent:      ctx,
		ctx:         handlerCtx,
		cancel:      cancel,
		chainConfig: config,
		logger:      logger,
		client:      client,
		eventChan:   eventChan,
		interval:    interval,
	}
}

// UpdateClient swaps the Ethereum client and restarts polling from the last processed block.
//
// Parameters:
// - client: the new Ethereum client.
func (h *EventHandler) UpdateClient(client Client) {
	h.clientMutex.Lock()
	h.client = client
	h.clientMutex.Unlock()

	h.pollingMutex.Lock()
	polling := h.pollingTicker != nil
	h.pollingMutex.Unlock()

	if !polling {
		return
	}

	h.Stop()
	h.pollingMutex.Lock()
	h.ctx, h.cancel = context.WithCancel(h.parent)
	h.pollingMutex.Unlock()

	if err := h.StartHTTPPolling(); err != nil {
		h.logger.WithField("chain", h.chainConfig.Name).WithError(err).Error("Failed to restart HTTP polling after client update")
	}
}

// Stop stops the event handler.
func (h *EventHandler) Stop() {
	h.pollingMutex.Lock()
	defer h.pollingMutex.Unlock()

	h.cancel()
	if h.pollingTicker != nil {
		h.pollingTicker.Stop()
		h.pollingTicker = nil
	}
}

func (h *EventHandler) getClient() Client {
	h.clientMutex.RLock()
	defer h.clientMutex.RUnlock()
	return h.client
}
