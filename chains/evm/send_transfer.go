package evm

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/common/types"
)

// SubmitLock escrows a native token in the bridge contract.
//
// Parameters:
// - ctx: the context for managing the request.
// - req: the submission details.
//
// Returns:
// - string: the txId read from the BridgeInitiated event of the receipt.
// - error: an error if authorization, submission or confirmation fails.
func (e *evm) SubmitLock(ctx context.Context, req *types.SubmitRequest) (string, error) {
	return e.submitTransfer(ctx, "lockTokens", req)
}

// SubmitBurnAndMint burns a wrapped token through the bridge contract.
//
// Parameters:
// - ctx: the context for managing the request.
// - req: the submission details.
//
// Returns:
// - string: the txId read from the BridgeInitiated event of the receipt.
// - error: an error if authorization, submission or confirmation fails.
func (e *evm) SubmitBurnAndMint(ctx context.Context, req *types.SubmitRequest) (string, error) {
	return e.submitTransfer(ctx, "burnAndBridge", req)
}

// submitTransfer authorizes the bridge, sends the transfer call and waits for its inclusion.
// Approval is confirmed before the transfer is sent.
func (e *evm) submitTransfer(ctx context.Context, method string, req *types.SubmitRequest) (string, error) {
	s, err := e.getSigner()
	if err != nil {
		return "", err
	}

	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return "", bridgeerrors.InvalidRequest("amount must be positive")
	}
	if !common.IsHexAddress(req.Token) {
		return "", bridgeerrors.InvalidRequest("invalid token address %q", req.Token)
	}

	owner := s.Address()
	if req.Sender != "" && !strings.EqualFold(req.Sender, owner.Hex()) {
		return "", bridgeerrors.InvalidRequest("sender %s is not the signer of chain %d", req.Sender, e.config.ChainID)
	}

	token := common.HexToAddress(req.Token)
	logger := e.logger.WithFields(logrus.Fields{
		"chain":  e.config.Name,
		"method": method,
		"token":  token.Hex(),
		"amount": req.Amount.String(),
	})

	unlock, err := e.lockToken(ctx, token)
	if err != nil {
		return "", err
	}
	defer unlock()

	if err := e.ensureAuthorization(ctx, token, owner, req.Amount); err != nil {
		return "", err
	}

	data, err := bridgeABI.Pack(method, token, req.Amount, new(big.Int).SetUint64(req.DestChain), req.DestAddress)
	if err != nil {
		return "", errors.Wrapf(err, "failed to pack %s data", method)
	}

	tx, err := e.sendContractCall(ctx, e.bridgeAddress, data)
	if err != nil {
		return "", errors.Wrapf(err, "failed to send %s", method)
	}
	logger = logger.WithField("txHash", tx.Hash().Hex())
	logger.Info("Transfer sent, waiting for inclusion")

	receipt, err := e.waitReceipt(ctx, tx.Hash())
	if err != nil {
		return "", e.sentButUnconfirmed(tx.Hash(), errors.Wrapf(err, "%s not confirmed", method))
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return "", errors.Wrapf(bridgeerrors.ErrTransactionReverted, "%s tx %s", method, tx.Hash().Hex())
	}

	initiated, err := e.parseBridgeInitiated(receipt)
	if err != nil {
		return "", e.sentButUnconfirmed(tx.Hash(), err)
	}
	if err := validateInitiated(initiated, owner, token, req.Amount); err != nil {
		return "", e.sentButUnconfirmed(tx.Hash(), errors.Wrapf(err, "%s event", method))
	}

	id := hexutil.Encode(initiated.TxID[:])
	logger.WithField("txId", id).Info("Transfer confirmed")
	return id, nil
}

// sentButUnconfirmed reports a transfer that was broadcast but could not be confirmed. It may
// have moved value and must not be sent again.
func (e *evm) sentButUnconfirmed(hash common.Hash, err error) error {
	e.logger.WithFields(logrus.Fields{
		"chain":  e.config.Name,
		"txHash": hash.Hex(),
	}).WithError(err).Error("Transfer sent but not confirmed")
	return &bridgeerrors.SubmittedError{ChainID: e.config.ChainID, TxHash: hash.Hex(), Err: err}
}

// sendContractCall sends a zero-value call to a contract with the next pending nonce.
func (e *evm) sendContractCall(ctx context.Context, to common.Address, data []byte) (*ethtypes.Transaction, error) {
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}
	s, err := e.getSigner()
	if err != nil {
		return nil, err
	}

	e.sendMutex.Lock()
	defer e.sendMutex.Unlock()

	nonce, err := client.PendingNonceAt(ctx, s.Address())
	if err != nil {
		return nil, errors.Wrap(err, "failed to get nonce")
	}

	tx, err := e.prepareTransaction(ctx, nonce, to, big.NewInt(0), data)
	if err != nil {
		return nil, err
	}

	return e.signAndSendTransaction(ctx, tx)
}

// signAndSendTransaction signs and sends the prepared transaction.
//
// Parameters:
// - ctx: the context for managing the request.
// - tx: the prepared transaction to be signed and sent.
//
// Returns:
// - *ethtypes.Transaction: the signed and sent transaction.
// - error: an error if the client or signer is not initialized, or if the signing or sending fails.
func (e *evm) signAndSendTransaction(ctx context.Context, tx *ethtypes.Transaction) (*ethtypes.Transaction, error) {
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}
	s, err := e.getSigner()
	if err != nil {
		return nil, err
	}

	signedTx, err := s.SignTx(tx)
	if err != nil {
		e.logger.WithError(err).Error("Failed to sign transaction")
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	if err = client.SendTransaction(ctx, signedTx); err != nil {
		e.logger.WithError(err).Error("Failed to send transaction")
		return nil, errors.Wrap(err, "failed to send transaction")
	}

	return signedTx, nil
}
