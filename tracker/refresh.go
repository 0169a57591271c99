package tracker

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ClipFinance/bridge-coordinator/classifier"
	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/common/types"
)

// Refresh outcomes reported to metrics.
const (
	resultApplied  = "applied"
	resultStale    = "stale"
	resultNotFound = "not_found"
	resultError    = "error"
)

// Refresh re-reads a transaction from the ledger and applies the answer. Unknown handles are
// adopted. A read error leaves the cache untouched and is returned as is, so ErrNotFound right
// after a submission means the ledger has not indexed it yet.
//
// Parameters:
// - ctx: the context bounding the wait for the entry and the ledger read.
// - handle: the transaction handle.
//
// Returns:
// - *types.BridgeTransaction: a copy of the entry after the refresh.
// - error: the ledger error, or the context error while waiting for another refresh.
func (t *Tracker) Refresh(ctx context.Context, handle types.TxHandle) (*types.BridgeTransaction, error) {
	if handle.IsZero() {
		return nil, bridgeerrors.InvalidRequest("empty handle")
	}

	logger := t.logger.WithField("handle", handle.String())

	// An untracked handle gets an entry only once the ledger knows it.
	e, tracked := t.lookup(handle)
	if tracked {
		if err := e.acquire(ctx); err != nil {
			return nil, err
		}
		defer e.release()
	}

	fetched, err := t.ledger.GetTransaction(ctx, handle)
	if err != nil {
		if errors.Is(err, bridgeerrors.ErrNotFound) {
			t.metrics.Refreshed(resultNotFound)
		} else {
			t.metrics.Refreshed(resultError)
			logger.WithError(err).Warn("Failed to refresh transaction")
		}
		return nil, err
	}
	if !fetched.Status.Valid() {
		t.metrics.Refreshed(resultError)
		return nil, errors.Wrapf(types.ErrUnknownStatusCode, "status %q for %s", fetched.Status, handle)
	}

	if !tracked {
		e = t.entry(handle)
		if err := e.acquire(ctx); err != nil {
			return nil, err
		}
		defer e.release()
	}

	cached := e.snapshot()
	next := t.merge(handle, cached, fetched)

	if cached != nil && !cached.Status.CanAdvanceTo(next.Status) {
		t.metrics.Refreshed(resultStale)
		logger.WithFields(logrus.Fields{
			"cached":   cached.Status,
			"reported": next.Status,
		}).Warn("Discarding ledger status behind the cached one")
		return cached, nil
	}

	e.set(next)
	if cached == nil {
		t.index(handle, next.User)
		t.metrics.SetTracked(t.Len())
		logger.WithField("status", next.Status).Info("Transaction adopted from ledger")
	} else if cached.Status != next.Status {
		logger.WithFields(logrus.Fields{
			"from": cached.Status,
			"to":   next.Status,
		}).Info("Transaction status advanced")
	}
	t.metrics.Refreshed(resultApplied)

	if cached == nil || !equal(cached, next) {
		t.persist(ctx, next)
	}
	return next.Clone(), nil
}

// merge applies a ledger read over the cached entry. Fields the ledger leaves empty keep
// their cached value. The kind is never re-derived for a tracked entry.
func (t *Tracker) merge(handle types.TxHandle, cached, fetched *types.BridgeTransaction) *types.BridgeTransaction {
	next := cached.Clone()
	if next == nil {
		next = &types.BridgeTransaction{Kind: t.adoptedKind(handle, fetched)}
	}
	next.Handle = handle

	if fetched.User != "" {
		next.User = fetched.User
	}
	if fetched.Token != "" {
		next.Token = fetched.Token
	}
	if fetched.Amount != nil {
		next.Amount = fetched.Amount
	}
	if fetched.Fee != nil {
		next.Fee = fetched.Fee
	}
	if fetched.SourceChain != 0 {
		next.SourceChain = fetched.SourceChain
	}
	if fetched.TargetChain != 0 {
		next.TargetChain = fetched.TargetChain
	}
	if fetched.TargetAddress != "" {
		next.TargetAddress = fetched.TargetAddress
	}
	if !fetched.CreatedAt.IsZero() {
		next.CreatedAt = fetched.CreatedAt
	}

	next.Status = fetched.Status
	if next.Status == types.StatusLocked && next.Kind == types.BurnAndMint {
		next.Status = types.StatusBurned
	}
	return next.Clone()
}

func (t *Tracker) adoptedKind(handle types.TxHandle, fetched *types.BridgeTransaction) types.TransferKind {
	if t.tokens == nil || fetched.Token == "" {
		return types.KindUnknown
	}
	source := fetched.SourceChain
	if source == 0 {
		source = handle.ChainID
	}
	token, ok := t.tokens.Lookup(source, fetched.Token)
	if !ok {
		return types.KindUnknown
	}
	return classifier.Classify(token, source)
}

func (t *Tracker) persist(ctx context.Context, tx *types.BridgeTransaction) {
	if t.store == nil {
		return
	}
	if err := t.store.Save(context.WithoutCancel(ctx), tx); err != nil {
		t.logger.WithField("handle", tx.Handle.String()).WithError(err).Warn("Failed to persist transaction")
	}
}

func equal(a, b *types.BridgeTransaction) bool {
	return a.Handle == b.Handle &&
		a.User == b.User &&
		a.Token == b.Token &&
		bigEqual(a.Amount, b.Amount) &&
		bigEqual(a.Fee, b.Fee) &&
		a.SourceChain == b.SourceChain &&
		a.TargetChain == b.TargetChain &&
		a.TargetAddress == b.TargetAddress &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		a.Status == b.Status &&
		a.Kind == b.Kind
}
