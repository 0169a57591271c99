// Package coordinator accepts bridge transfers and serves their status.
package coordinator

import (
	"context"
	"math/big"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ClipFinance/bridge-coordinator/classifier"
	"github.com/ClipFinance/bridge-coordinator/common/address"
	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/common/types"
	"github.com/ClipFinance/bridge-coordinator/metrics"
	"github.com/ClipFinance/bridge-coordinator/tracker"
)

// Rejection reasons reported to metrics.
const (
	reasonInvalidRequest  = "invalid_request"
	reasonFeeRequirements = "fee_requirements"
	reasonFeeCheck        = "fee_check"
	reasonGateway         = "gateway"
	reasonUnconfirmed     = "unconfirmed"
)

// Gateway is the part of the ledger gateway the coordinator submits through.
type Gateway interface {
	SubmitLock(ctx context.Context, req *types.SubmitRequest) (types.TxHandle, error)
	SubmitBurnAndMint(ctx context.Context, req *types.SubmitRequest) (types.TxHandle, error)
	Chain(chainID uint64) (types.Chain, bool)
}

// FeePolicy quotes fees and checks the flat fee pre-funding.
type FeePolicy interface {
	Quote(ctx context.Context, chainID uint64, token string, amount *big.Int) (*types.FeeQuote, error)
	CheckRequirements(ctx context.Context, chainID uint64, user string) (*types.FeeRequirements, error)
}

// Tracker records accepted transfers and refreshes them from the ledger.
type Tracker interface {
	Record(ctx context.Context, handle types.TxHandle, snapshot *types.BridgeTransaction) error
	Refresh(ctx context.Context, handle types.TxHandle) (*types.BridgeTransaction, error)
	RefreshAll(ctx context.Context, user string) (*tracker.RefreshResult, error)
	Get(handle types.TxHandle) (*types.BridgeTransaction, bool)
}

// Coordinator validates transfer requests, submits them and hands them to the tracker. It
// never reads chains itself and never changes a status.
type Coordinator struct {
	gateway Gateway
	fees    FeePolicy
	tracker Tracker
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// New creates a coordinator.
func New(gateway Gateway, fees FeePolicy, tracker Tracker, logger *logrus.Logger, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		gateway: gateway,
		fees:    fees,
		tracker: tracker,
		logger:  logger,
		metrics: m,
	}
}

// InitiateTransfer validates a transfer, checks the flat fee pre-funding and the token fee,
// submits the lock or burn and records the acknowledged transaction. Nothing is recorded
// unless the ledger acknowledged the submission.
//
// Parameters:
// - ctx: the context for the fee checks and the submission.
// - req: the transfer request.
//
// Returns:
// - types.TxHandle: the handle of the recorded transaction.
// - error: ErrInvalidRequest, a *FeeRequirementsError, or the gateway error of the submission.
func (c *Coordinator) InitiateTransfer(ctx context.Context, req *types.TransferRequest) (types.TxHandle, error) {
	logger := c.logger.WithField("attempt", uuid.NewString())

	submit, err := c.validate(req)
	if err != nil {
		c.metrics.TransferRejected(reasonInvalidRequest)
		logger.WithError(err).Info("Transfer rejected")
		return types.TxHandle{}, err
	}
	logger = logger.WithFields(logrus.Fields{
		"chain":  req.SourceChain,
		"dest":   req.DestChain,
		"user":   req.Sender,
		"token":  req.Token.Symbol,
		"amount": req.Amount.String(),
	})

	requirements, err := c.fees.CheckRequirements(ctx, req.SourceChain, req.Sender)
	if err != nil {
		c.metrics.TransferRejected(reasonFeeCheck)
		logger.WithError(err).Warn("Fee requirements could not be checked")
		return types.TxHandle{}, errors.Wrap(err, "fee requirements")
	}
	if !requirements.Satisfied() {
		c.metrics.TransferRejected(reasonFeeRequirements)
		logger.WithFields(logrus.Fields{
			"hasBalance":   requirements.HasBalance,
			"hasAllowance": requirements.HasAllowance,
		}).Info("Fee requirements not met")
		return types.TxHandle{}, &bridgeerrors.FeeRequirementsError{
			HasBalance:   requirements.HasBalance,
			HasAllowance: requirements.HasAllowance,
		}
	}

	quote, err := c.fees.Quote(ctx, req.SourceChain, req.Token.Address, req.Amount)
	if err != nil {
		c.metrics.TransferRejected(reasonInvalidRequest)
		return types.TxHandle{}, err
	}
	if quote.TokenFee.Cmp(req.Amount) >= 0 {
		c.metrics.TransferRejected(reasonInvalidRequest)
		return types.TxHandle{}, bridgeerrors.InvalidRequest("token fee %s does not leave anything of amount %s", quote.TokenFee, req.Amount)
	}

	kind := classifier.Classify(req.Token, req.SourceChain)
	logger = logger.WithField("kind", kind.String())

	var handle types.TxHandle
	switch kind {
	case types.Lock:
		handle, err = c.gateway.SubmitLock(ctx, submit)
	default:
		handle, err = c.gateway.SubmitBurnAndMint(ctx, submit)
	}
	if err != nil {
		var subErr *bridgeerrors.SubmittedError
		if errors.As(err, &subErr) {
			c.metrics.TransferRejected(reasonUnconfirmed)
			logger.WithField("txHash", subErr.TxHash).WithError(err).Error("Transfer sent but not confirmed")
			return types.TxHandle{}, err
		}
		c.metrics.TransferRejected(reasonGateway)
		logger.WithError(err).Error("Transfer submission failed")
		return types.TxHandle{}, err
	}

	snapshot := &types.BridgeTransaction{
		User:          req.Sender,
		Token:         req.Token.Address,
		Amount:        new(big.Int).Set(req.Amount),
		Fee:           quote.TokenFee,
		SourceChain:   req.SourceChain,
		TargetChain:   req.DestChain,
		TargetAddress: submit.DestAddress,
		Kind:          kind,
	}
	// The ledger already holds the transfer, the record must not be lost to a caller leaving.
	err = c.tracker.Record(context.WithoutCancel(ctx), handle, snapshot)
	if errors.Is(err, bridgeerrors.ErrAlreadyRecorded) {
		logger.WithField("handle", handle.String()).Warn("Submitted transfer was already tracked")
		err = nil
	}
	if err != nil {
		logger.WithField("handle", handle.String()).WithError(err).Error("Submitted transfer could not be recorded")
		return handle, errors.Wrapf(err, "transfer %s submitted", handle)
	}

	c.metrics.TransferInitiated(kind.String())
	logger.WithFields(logrus.Fields{
		"handle":   handle.String(),
		"fee":      quote.TokenFee.String(),
		"fallback": quote.IsFallback(),
	}).Info("Transfer initiated")
	return handle, nil
}

// validate checks the request without any I/O and builds the ledger submission.
func (c *Coordinator) validate(req *types.TransferRequest) (*types.SubmitRequest, error) {
	if req == nil {
		return nil, bridgeerrors.InvalidRequest("empty request")
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, bridgeerrors.InvalidRequest("amount must be positive")
	}
	if req.SourceChain == req.DestChain {
		return nil, bridgeerrors.InvalidRequest("source and destination chain are both %d", req.SourceChain)
	}

	source, ok := c.gateway.Chain(req.SourceChain)
	if !ok {
		return nil, bridgeerrors.InvalidRequest("unknown source chain %d", req.SourceChain)
	}
	dest, ok := c.gateway.Chain(req.DestChain)
	if !ok {
		return nil, bridgeerrors.InvalidRequest("unknown destination chain %d", req.DestChain)
	}
	if source.Class != dest.Class {
		return nil, bridgeerrors.InvalidRequest("cannot bridge from %s network %d to %s network %d",
			source.Class, source.ChainID, dest.Class, dest.ChainID)
	}

	if req.Token.ChainID != req.SourceChain {
		return nil, bridgeerrors.InvalidRequest("token %s is not deployed on chain %d", req.Token.Address, req.SourceChain)
	}
	if req.Token.HomeChainID == 0 {
		return nil, bridgeerrors.InvalidRequest("token %s has no home chain", req.Token.Address)
	}
	if err := address.ValidateForChain(source.Type, req.Token.Address); err != nil {
		return nil, bridgeerrors.InvalidRequest("token address: %v", err)
	}
	if err := address.ValidateForChain(source.Type, req.Sender); err != nil {
		return nil, bridgeerrors.InvalidRequest("sender: %v", err)
	}

	destAddress := req.DestAddress
	if destAddress == "" {
		destAddress = req.Sender
	}
	if err := address.ValidateForChain(dest.Type, destAddress); err != nil {
		return nil, bridgeerrors.InvalidRequest("destination address: %v", err)
	}

	return &types.SubmitRequest{
		ChainID:     req.SourceChain,
		Token:       req.Token.Address,
		Amount:      new(big.Int).Set(req.Amount),
		DestChain:   req.DestChain,
		DestAddress: destAddress,
		Sender:      req.Sender,
	}, nil
}

// RefreshStatus re-reads one transaction from the ledger.
func (c *Coordinator) RefreshStatus(ctx context.Context, handle types.TxHandle) (*types.BridgeTransaction, error) {
	return c.tracker.Refresh(ctx, handle)
}

// Cached returns the last known state of a transaction without reading the ledger.
func (c *Coordinator) Cached(handle types.TxHandle) (*types.BridgeTransaction, bool) {
	return c.tracker.Get(handle)
}

// RefreshAll refreshes every known transaction of user.
func (c *Coordinator) RefreshAll(ctx context.Context, user string) (*tracker.RefreshResult, error) {
	if user == "" {
		return nil, bridgeerrors.InvalidRequest("empty user")
	}
	return c.tracker.RefreshAll(ctx, user)
}

// QuoteFee quotes the flat and token fee of a transfer of amount token from chainID.
func (c *Coordinator) QuoteFee(ctx context.Context, chainID uint64, token string, amount *big.Int) (*types.FeeQuote, error) {
	chain, ok := c.gateway.Chain(chainID)
	if !ok {
		return nil, bridgeerrors.InvalidRequest("unknown chain %d", chainID)
	}
	if err := address.ValidateForChain(chain.Type, token); err != nil {
		return nil, bridgeerrors.InvalidRequest("token address: %v", err)
	}
	return c.fees.Quote(ctx, chainID, token, amount)
}

// CheckFeeRequirements reports whether user pre-funded the flat fee on chainID.
func (c *Coordinator) CheckFeeRequirements(ctx context.Context, chainID uint64, user string) (*types.FeeRequirements, error) {
	chain, ok := c.gateway.Chain(chainID)
	if !ok {
		return nil, bridgeerrors.InvalidRequest("unknown chain %d", chainID)
	}
	if err := address.ValidateForChain(chain.Type, user); err != nil {
		return nil, bridgeerrors.InvalidRequest("user: %v", err)
	}
	return c.fees.CheckRequirements(ctx, chainID, user)
}

// WatchStatus refreshes the transaction named by each status event until ctx ends or events
// is closed. Events only trigger reads, the refreshed state comes from the ledger.
func (c *Coordinator) WatchStatus(ctx context.Context, events <-chan types.StatusEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			logger := c.logger.WithFields(logrus.Fields{
				"handle": event.Handle.String(),
				"code":   event.StatusCode,
				"txHash": event.TxHash,
			})

			tx, err := c.tracker.Refresh(ctx, event.Handle)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.WithError(err).Warn("Failed to refresh transaction after status event")
				continue
			}
			logger.WithField("status", tx.Status).Debug("Transaction refreshed after status event")
		}
	}
}
