package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
)

// ensureAuthorization makes sure the bridge may pull amount of token from owner. When the
// allowance is short it approves exactly amount and waits for the approval to be included
// and effective. Re-running it after a partial failure re-reads the allowance, so an
// approval that did land is not sent again.
//
// Parameters:
// - ctx: the context for managing the request.
// - token: the token contract.
// - owner: the token holder, the configured signer.
// - amount: the amount the bridge will pull.
//
// Returns:
// - error: ErrApprovalFailed if the approval reverted or did not raise the allowance.
func (e *evm) ensureAuthorization(ctx context.Context, token, owner common.Address, amount *big.Int) error {
	allowance, err := e.allowance(ctx, token, owner)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) >= 0 {
		return nil
	}

	logger := e.logger.WithFields(logrus.Fields{
		"chain":     e.config.Name,
		"token":     token.Hex(),
		"allowance": allowance.String(),
		"amount":    amount.String(),
	})
	logger.Info("Allowance too low, approving bridge")

	data, err := erc20ABI.Pack("approve", e.bridgeAddress, amount)
	if err != nil {
		return errors.Wrap(err, "failed to pack approve data")
	}

	tx, err := e.sendContractCall(ctx, token, data)
	if err != nil {
		return errors.Wrap(err, "failed to send approve")
	}

	receipt, err := e.waitReceipt(ctx, tx.Hash())
	if err != nil {
		return errors.Wrapf(err, "approve tx %s not confirmed", tx.Hash().Hex())
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return errors.Wrapf(bridgeerrors.ErrApprovalFailed, "approve tx %s reverted", tx.Hash().Hex())
	}

	allowance, err = e.allowance(ctx, token, owner)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return errors.Wrapf(bridgeerrors.ErrApprovalFailed, "allowance %s still below %s", allowance, amount)
	}

	logger.WithField("txHash", tx.Hash().Hex()).Info("Bridge approved")
	return nil
}

// lockToken waits for the token's allowance lock. Transfers of one token share the signer's
// allowance, so an approval is only valid until the transfer it was sent for is included.
//
// Returns:
// - func(): releases the lock.
// - error: the context error if ctx ends while waiting.
func (e *evm) lockToken(ctx context.Context, token common.Address) (func(), error) {
	e.tokenLocksMutex.Lock()
	if e.tokenLocks == nil {
		e.tokenLocks = make(map[common.Address]chan struct{})
	}
	lock, ok := e.tokenLocks[token]
	if !ok {
		lock = make(chan struct{}, 1)
		e.tokenLocks[token] = lock
	}
	e.tokenLocksMutex.Unlock()

	select {
	case lock <- struct{}{}:
		return func() { <-lock }, nil
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "waiting for allowance of %s", token.Hex())
	}
}

// allowance reads the ERC20 allowance of the bridge contract over owner's tokens.
func (e *evm) allowance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}

	data, err := erc20ABI.Pack("allowance", owner, e.bridgeAddress)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack allowance data")
	}

	result, err := client.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: data,
	}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to call allowance")
	}

	if len(result) == 0 {
		return nil, errors.New("empty result from allowance call")
	}

	return new(big.Int).SetBytes(result), nil
}
