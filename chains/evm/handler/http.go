package handler

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ClipFinance/bridge-coordinator/chains/evm/generated"
	"github.com/ClipFinance/bridge-coordinator/chains/evm/utils"
	commontypes "github.com/ClipFinance/bridge-coordinator/common/types"
)

const (
	// defaultPollingInterval is the default interval for polling events.
	defaultPollingInterval = 5 * time.Second
	// maxBlockRange is the maximum number of blocks to fetch in a single poll.
	maxBlockRange = uint64(1000)
)

var bridgeABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(generated.BridgeABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// StartHTTPPolling starts polling for BridgeStatusUpdated events.
// It initializes a ticker to poll at regular intervals and processes events in a separate goroutine.
//
// Returns:
// - error: an error if polling is already running.
func (h *EventHandler) StartHTTPPolling() error {
	h.pollingMutex.Lock()
	if h.pollingTicker != nil {
		h.pollingMutex.Unlock()
		return errors.New("polling already started")
	}
	ticker := time.NewTicker(h.interval)
	h.pollingTicker = ticker
	ctx := h.ctx
	h.pollingMutex.Unlock()

	h.logger.WithFields(logrus.Fields{
		"chain":    h.chainConfig.Name,
		"interval": h.interval,
	}).Info("Start polling BridgeStatusUpdated events")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := h.pollEvents(ctx); err != nil {
					h.logger.WithField("chain", h.chainConfig.Name).WithError(err).Error("Error polling events")
				}
			}
		}
	}()

	return nil
}

// pollEvents polls for BridgeStatusUpdated events since the last processed block.
// The first poll only records the current block.
//
// Returns:
// - error: an error if any issue occurs during event polling.
func (h *EventHandler) pollEvents(ctx context.Context) error {
	client := h.getClient()

	currentBlock, err := client.BlockNumber(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get current block number")
	}

	h.lastBlockMutex.RLock()
	fromBlock := h.lastProcessedBlock
	h.lastBlockMutex.RUnlock()

	if fromBlock == 0 {
		h.lastBlockMutex.Lock()
		h.lastProcessedBlock = currentBlock
		h.lastBlockMutex.Unlock()
		return nil
	}

	if currentBlock <= fromBlock {
		return nil
	}

	toBlock := fromBlock + maxBlockRange
	if toBlock > currentBlock {
		toBlock = currentBlock
	}

	if err := h.processBlockRange(ctx, client, fromBlock+1, toBlock); err != nil {
		return errors.Wrap(err, "failed to process block range")
	}

	h.lastBlockMutex.Lock()
	h.lastProcessedBlock = toBlock
	h.lastBlockMutex.Unlock()

	return nil
}

// processBlockRange queries BridgeStatusUpdated logs of the bridge contract in a block range
// and forwards them as status events.
//
// Parameters:
// - ctx: the polling context.
// - client: the client to query.
// - fromBlock: the starting block number.
// - toBlock: the ending block number.
//
// Returns:
// - error: an error if the logs cannot be fetched or the context ends while forwarding.
func (h *EventHandler) processBlockRange(ctx context.Context, client Client, fromBlock, toBlock uint64) error {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{common.HexToAddress(h.chainConfig.BridgeAddress)},
		Topics:    [][]common.Hash{{utils.BridgeStatusUpdatedTopic}},
	}

	logs, err := client.FilterLogs(ctx, query)
	if err != nil {
		return errors.Wrap(err, "failed to get status logs")
	}

	for _, log := range logs {
		event, err := h.decodeStatusLog(log)
		if err != nil {
			h.logger.WithFields(logrus.Fields{
				"chain":  h.chainConfig.Name,
				"txHash": log.TxHash.Hex(),
				"block":  log.BlockNumber,
			}).WithError(err).Error("Failed to process status log")
			continue
		}

		select {
		case h.eventChan <- event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

func (h *EventHandler) decodeStatusLog(log ethtypes.Log) (commontypes.StatusEvent, error) {
	if utils.GetEventType(log) != "BridgeStatusUpdated" || len(log.Topics) != 2 {
		return commontypes.StatusEvent{}, errors.New("not a BridgeStatusUpdated log")
	}

	values, err := bridgeABI.Unpack("BridgeStatusUpdated", log.Data)
	if err != nil {
		return commontypes.StatusEvent{}, errors.Wrap(err, "failed to unpack status")
	}
	code, ok := values[0].(uint8)
	if !ok {
		return commontypes.StatusEvent{}, errors.Errorf("unexpected status type %T", values[0])
	}

	return commontypes.StatusEvent{
		Handle: commontypes.TxHandle{
			ChainID: h.chainConfig.ChainID,
			ID:      hexutil.Encode(log.Topics[1].Bytes()),
		},
		StatusCode:  code,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		ObservedAt:  time.Now().UTC(),
	}, nil
}
