package handler

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClipFinance/bridge-coordinator/chains/evm/utils"
	commontypes "github.com/ClipFinance/bridge-coordinator/common/types"
)

type fakeClient struct {
	block   uint64
	logs    []ethtypes.Log
	queries []ethereum.FilterQuery
}

func (f *fakeClient) BlockNumber(context.Context) (uint64, error) {
	return f.block, nil
}

func (f *fakeClient) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
	f.queries = append(f.queries, q)
	return f.logs, nil
}

func statusLog(t *testing.T, txID common.Hash, code uint8) ethtypes.Log {
	t.Helper()
	data, err := bridgeABI.Events["BridgeStatusUpdated"].Inputs.NonIndexed().Pack(code)
	require.NoError(t, err)
	return ethtypes.Log{
		Topics:      []common.Hash{utils.BridgeStatusUpdatedTopic, txID},
		Data:        data,
		BlockNumber: 105,
	}
}

func TestPollEvents(t *testing.T) {
	logger, _ := test.NewNullLogger()
	txID := common.HexToHash("0xabc")
	client := &fakeClient{block: 100}
	events := make(chan commontypes.StatusEvent, 4)
	cfg := &commontypes.ChainConfig{Name: "sepolia", ChainID: 11155111, BridgeAddress: "0x00000000000000000000000000000000000000b1"}

	h := NewEventHandler(context.Background(), cfg, logger, client, events)
	ctx := context.Background()

	require.NoError(t, h.pollEvents(ctx))
	assert.Empty(t, client.queries, "first poll only records the head")

	client.block = 110
	client.logs = []ethtypes.Log{statusLog(t, txID, 2), {Topics: []common.Hash{{0x01}}}}
	require.NoError(t, h.pollEvents(ctx))

	require.Len(t, client.queries, 1)
	assert.Equal(t, uint64(101), client.queries[0].FromBlock.Uint64())
	assert.Equal(t, uint64(110), client.queries[0].ToBlock.Uint64())
	assert.Equal(t, common.HexToAddress(cfg.BridgeAddress), client.queries[0].Addresses[0])

	require.Len(t, events, 1)
	event := <-events
	assert.Equal(t, commontypes.TxHandle{ChainID: 11155111, ID: txID.Hex()}, event.Handle)
	assert.Equal(t, uint8(2), event.StatusCode)

	client.logs = nil
	require.NoError(t, h.pollEvents(ctx))
	assert.Len(t, client.queries, 1, "no new blocks, no query")
}

func TestStartStop(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := NewEventHandler(context.Background(), &commontypes.ChainConfig{Name: "x"}, logger, &fakeClient{}, nil)
	require.NoError(t, h.StartHTTPPolling())
	assert.Error(t, h.StartHTTPPolling())
	h.Stop()
	h.Stop()
}
