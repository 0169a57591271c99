package tracker

import (
	"context"
	"math/big"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ClipFinance/bridge-coordinator/common/types"
)

// HandleError is the failed refresh of one handle.
//
// Fields:
// - Handle: the handle that could not be refreshed.
// - Err: the refresh error.
// - Cached: the last cached copy, nil when the handle was never tracked.
type HandleError struct {
	Handle types.TxHandle
	Err    error
	Cached *types.BridgeTransaction
}

// RefreshResult is the outcome of refreshing every transaction of a user.
//
// Fields:
// - Transactions: the refreshed transactions, most recent first.
// - Failures: the handles whose refresh failed, ordered by handle.
// - Complete: false when the ledger enumeration was degraded or failed.
// - Degraded: the chains that could not be enumerated.
// - EnumerationErr: the enumeration error, when the whole enumeration failed.
type RefreshResult struct {
	Transactions   []*types.BridgeTransaction
	Failures       []HandleError
	Complete       bool
	Degraded       []uint64
	EnumerationErr error
}

// RefreshAll refreshes the handles the ledger lists for user together with the handles tracked
// locally for user. A failing handle or a failing enumeration does not stop the others.
//
// Parameters:
// - ctx: the context for the enumeration and every refresh.
// - user: the user address.
//
// Returns:
// - *RefreshResult: the partial or full result.
// - error: only the context error when ctx ended.
func (t *Tracker) RefreshAll(ctx context.Context, user string) (*RefreshResult, error) {
	result := &RefreshResult{Complete: true}
	logger := t.logger.WithField("user", user)

	listed, err := t.ledger.GetUserTransactions(ctx, user)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.WithError(err).Warn("Failed to enumerate user transactions")
		result.Complete = false
		result.EnumerationErr = err
	}

	var handles []types.TxHandle
	seen := make(map[types.TxHandle]bool)
	if listed != nil {
		result.Complete = result.Complete && listed.Complete
		result.Degraded = append(result.Degraded, listed.Degraded...)
		for _, h := range listed.Handles {
			if !seen[h] {
				seen[h] = true
				handles = append(handles, h)
			}
		}
	}
	for _, h := range t.userHandles(user) {
		if !seen[h] {
			seen[h] = true
			handles = append(handles, h)
		}
	}

	txs := make([]*types.BridgeTransaction, len(handles))
	errs := make([]error, len(handles))

	var g errgroup.Group
	g.SetLimit(t.concurrency)
	for i, handle := range handles {
		i, handle := i, handle
		g.Go(func() error {
			txs[i], errs[i] = t.Refresh(ctx, handle)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	for i, handle := range handles {
		if errs[i] != nil {
			cached, _ := t.Get(handle)
			result.Failures = append(result.Failures, HandleError{Handle: handle, Err: errs[i], Cached: cached})
			continue
		}
		// A ledger record belonging to someone else is not listed under user.
		if txs[i].User != "" && !strings.EqualFold(txs[i].User, user) {
			continue
		}
		result.Transactions = append(result.Transactions, txs[i])
	}

	sort.SliceStable(result.Transactions, func(i, j int) bool {
		a, b := result.Transactions[i], result.Transactions[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Handle.String() < b.Handle.String()
	})
	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].Handle.String() < result.Failures[j].Handle.String()
	})

	logger.WithFields(logrus.Fields{
		"refreshed": len(result.Transactions),
		"failed":    len(result.Failures),
		"complete":  result.Complete,
	}).Debug("User transactions refreshed")

	return result, nil
}

func bigEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}
