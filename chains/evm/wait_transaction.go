package evm

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// waitReceipt polls for the receipt of a transaction until it is included and WaitNBlocks
// blocks deep. Reverted receipts are returned too, callers check the status.
//
// Parameters:
// - ctx: the context bounding the wait.
// - hash: the transaction hash.
//
// Returns:
// - *ethtypes.Receipt: the receipt.
// - error: the context error if the wait was cut short, or an RPC error.
func (e *evm) waitReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		client, err := e.getClient()
		if err != nil {
			return nil, err
		}

		receipt, err := client.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			confirmed, err := e.isDeepEnough(ctx, client, receipt)
			if err != nil {
				return nil, err
			}
			if confirmed {
				return receipt, nil
			}
		case errors.Is(err, ethereum.NotFound):
		default:
			if ctx.Err() != nil {
				return nil, errors.Wrapf(ctx.Err(), "waiting for receipt of %s", hash.Hex())
			}
			return nil, errors.Wrap(err, "failed to get transaction receipt")
		}

		select {
		case <-ctx.Done():
			e.logger.WithField("txHash", hash.Hex()).Warn("Stopped waiting for receipt")
			return nil, errors.Wrapf(ctx.Err(), "waiting for receipt of %s", hash.Hex())
		case <-ticker.C:
		}
	}
}

func (e *evm) isDeepEnough(ctx context.Context, client Client, receipt *ethtypes.Receipt) (bool, error) {
	if e.config.WaitNBlocks == 0 || receipt.BlockNumber == nil {
		return true, nil
	}
	current, err := client.BlockNumber(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to get current block number")
	}
	return current >= receipt.BlockNumber.Uint64()+e.config.WaitNBlocks, nil
}
