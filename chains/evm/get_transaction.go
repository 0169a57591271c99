package evm

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"github.com/ClipFinance/bridge-coordinator/chains/evm/utils"
	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/common/types"
)

// GetTransaction reads a bridge transaction by its txId. Code 1 is decoded as Locked, the
// tracker refines it by transfer kind.
//
// Parameters:
// - ctx: the context for managing the request.
// - id: the 0x-prefixed bytes32 txId.
//
// Returns:
// - *types.BridgeTransaction: the ledger record, without handle and kind.
// - error: ErrNotFound when the bridge has no record, ErrUnknownStatusCode for unknown status codes.
func (e *evm) GetTransaction(ctx context.Context, id string) (*types.BridgeTransaction, error) {
	txID, err := parseTxID(id)
	if err != nil {
		return nil, err
	}

	out, err := e.callBridge(ctx, "getTransaction", txID)
	if err != nil {
		return nil, err
	}
	if len(out) != 9 {
		return nil, errors.Errorf("unexpected getTransaction output length %d", len(out))
	}

	user, _ := out[0].(common.Address)
	if utils.IsZeroAddress(user) {
		return nil, errors.Wrapf(bridgeerrors.ErrNotFound, "tx %s on chain %d", id, e.config.ChainID)
	}

	token, _ := out[1].(common.Address)
	amount, _ := out[2].(*big.Int)
	fee, _ := out[3].(*big.Int)
	sourceChain, _ := out[4].(*big.Int)
	targetChain, _ := out[5].(*big.Int)
	targetAddress, _ := out[6].(string)
	timestamp, _ := out[7].(*big.Int)
	code, _ := out[8].(uint8)

	status, err := types.StatusFromCode(code, types.KindUnknown)
	if err != nil {
		return nil, errors.Wrapf(err, "tx %s on chain %d", id, e.config.ChainID)
	}

	tx := &types.BridgeTransaction{
		User:          user.Hex(),
		Token:         token.Hex(),
		Amount:        amount,
		Fee:           fee,
		TargetAddress: targetAddress,
		Status:        status,
	}
	if sourceChain != nil {
		tx.SourceChain = sourceChain.Uint64()
	}
	if targetChain != nil {
		tx.TargetChain = targetChain.Uint64()
	}
	if timestamp != nil && timestamp.Sign() > 0 {
		tx.CreatedAt = time.Unix(timestamp.Int64(), 0).UTC()
	}
	return tx, nil
}

// GetUserTransactions returns the txIds of user, most recent first. The contract stores them
// in submission order.
func (e *evm) GetUserTransactions(ctx context.Context, user string) ([]string, error) {
	if !common.IsHexAddress(user) {
		return nil, bridgeerrors.InvalidRequest("invalid user address %q", user)
	}

	out, err := e.callBridge(ctx, "getUserTransactions", common.HexToAddress(user))
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, errors.Errorf("unexpected getUserTransactions output length %d", len(out))
	}

	raw, ok := out[0].([][32]byte)
	if !ok {
		return nil, errors.Errorf("unexpected getUserTransactions output type %T", out[0])
	}

	ids := make([]string, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		ids = append(ids, hexutil.Encode(raw[i][:]))
	}
	return ids, nil
}

// callBridge calls a view method of the bridge contract and unpacks its outputs.
func (e *evm) callBridge(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}

	data, err := bridgeABI.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to pack %s data", method)
	}

	result, err := client.CallContract(ctx, ethereum.CallMsg{
		To:   &e.bridgeAddress,
		Data: data,
	}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to call %s", method)
	}

	if len(result) == 0 {
		return nil, errors.Errorf("empty result from %s call", method)
	}

	out, err := bridgeABI.Unpack(method, result)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to unpack %s result", method)
	}
	return out, nil
}

func parseTxID(id string) ([32]byte, error) {
	var txID [32]byte
	raw, err := hexutil.Decode(id)
	if err != nil || len(raw) != len(txID) {
		return txID, bridgeerrors.InvalidRequest("invalid transaction id %q", id)
	}
	copy(txID[:], raw)
	return txID, nil
}
