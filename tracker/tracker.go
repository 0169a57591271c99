// Package tracker caches bridge transactions and advances them from ledger reads.
package tracker

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/common/types"
	"github.com/ClipFinance/bridge-coordinator/metrics"
)

const defaultConcurrency = 8

// Ledger is the part of the gateway the tracker reads from.
type Ledger interface {
	GetTransaction(ctx context.Context, handle types.TxHandle) (*types.BridgeTransaction, error)
	GetUserTransactions(ctx context.Context, user string) (*types.UserTransactions, error)
}

// TokenResolver finds the token of an adopted transaction so its kind can be derived.
type TokenResolver interface {
	Lookup(chainID uint64, address string) (types.Token, bool)
}

// Tracker holds the cached view of bridge transactions. Only ledger responses change an
// entry. Responses that would move an entry backwards are dropped.
type Tracker struct {
	ledger      Ledger
	logger      *logrus.Logger
	tokens      TokenResolver
	store       Store
	metrics     *metrics.Metrics
	concurrency int
	now         func() time.Time

	entriesMutex sync.RWMutex
	entries      map[types.TxHandle]*entry
	// users indexes tracked handles by lowercased user address.
	users   map[string]map[types.TxHandle]struct{}
	tracked int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithStore mirrors every applied change to store.
func WithStore(store Store) Option {
	return func(t *Tracker) {
		t.store = store
	}
}

// WithTokens sets the resolver used to classify adopted transactions.
func WithTokens(tokens TokenResolver) Option {
	return func(t *Tracker) {
		t.tokens = tokens
	}
}

// WithConcurrency bounds the number of ledger reads RefreshAll runs at once.
func WithConcurrency(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.concurrency = n
		}
	}
}

// WithMetrics records refresh outcomes and the tracked count.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// New creates an empty tracker reading from ledger.
func New(ledger Ledger, logger *logrus.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		ledger:      ledger,
		logger:      logger,
		concurrency: defaultConcurrency,
		now:         time.Now,
		entries:     make(map[types.TxHandle]*entry),
		users:       make(map[string]map[types.TxHandle]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record seeds a Pending entry for a submission the ledger acknowledged. It must be called
// once per handle. A handle already adopted from the ledger while the submission was being
// confirmed keeps its ledger state and takes the recorded kind and any field the ledger left
// empty.
//
// Parameters:
// - ctx: the context for the store write.
// - handle: the handle returned by the gateway.
// - snapshot: the request as accepted, kind included.
//
// Returns:
// - error: ErrAlreadyRecorded if the handle was recorded before, ErrInvalidRequest for a zero handle.
func (t *Tracker) Record(ctx context.Context, handle types.TxHandle, snapshot *types.BridgeTransaction) error {
	if handle.IsZero() || snapshot == nil {
		return bridgeerrors.InvalidRequest("record needs a handle and a snapshot")
	}

	tx := snapshot.Clone()
	tx.Handle = handle
	tx.Status = types.StatusPending
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = t.now().UTC()
	}

	e := t.entry(handle)
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release()

	if e.recorded {
		return errors.Wrapf(bridgeerrors.ErrAlreadyRecorded, "%s", handle)
	}

	logger := t.logger.WithFields(logrus.Fields{
		"handle": handle.String(),
		"user":   tx.User,
		"kind":   tx.Kind.String(),
	})

	if adopted := e.snapshot(); adopted != nil {
		tx = claim(adopted, tx)
		e.set(tx)
		if adopted.User == "" {
			t.indexUser(handle, tx.User)
		}
		e.recorded = true
		logger.WithField("status", tx.Status).Info("Transfer recorded over adopted entry")
	} else {
		e.set(tx)
		e.recorded = true
		t.index(handle, tx.User)
		logger.Info("Transfer recorded")
	}

	t.persist(ctx, tx)
	t.metrics.SetTracked(t.Len())
	return nil
}

// claim completes an entry adopted from the ledger with the recorded submission. Ledger
// fields win, the recorded kind replaces the derived one.
func claim(adopted, recorded *types.BridgeTransaction) *types.BridgeTransaction {
	tx := adopted.Clone()
	if tx.User == "" {
		tx.User = recorded.User
	}
	if tx.Token == "" {
		tx.Token = recorded.Token
	}
	if tx.Amount == nil {
		tx.Amount = recorded.Amount
	}
	if tx.Fee == nil {
		tx.Fee = recorded.Fee
	}
	if tx.SourceChain == 0 {
		tx.SourceChain = recorded.SourceChain
	}
	if tx.TargetChain == 0 {
		tx.TargetChain = recorded.TargetChain
	}
	if tx.TargetAddress == "" {
		tx.TargetAddress = recorded.TargetAddress
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = recorded.CreatedAt
	}

	tx.Kind = recorded.Kind
	if tx.Kind == types.BurnAndMint && tx.Status == types.StatusLocked {
		tx.Status = types.StatusBurned
	}
	if tx.Kind == types.Lock && tx.Status == types.StatusBurned {
		tx.Status = types.StatusLocked
	}
	return tx.Clone()
}

// Get returns a copy of the cached transaction. It does not wait for a refresh in flight.
func (t *Tracker) Get(handle types.TxHandle) (*types.BridgeTransaction, bool) {
	e, ok := t.lookup(handle)
	if !ok {
		return nil, false
	}

	tx := e.snapshot()
	return tx, tx != nil
}

// Len returns the number of tracked transactions.
func (t *Tracker) Len() int {
	t.entriesMutex.RLock()
	defer t.entriesMutex.RUnlock()
	return t.tracked
}

// Warm loads the store into the cache. Handles already tracked keep their cached state.
//
// Returns:
// - int: the number of transactions loaded.
// - error: the store error.
func (t *Tracker) Warm(ctx context.Context) (int, error) {
	if t.store == nil {
		return 0, nil
	}

	txs, err := t.store.LoadAll(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to load tracked transactions")
	}

	loaded := 0
	for _, tx := range txs {
		if tx == nil || tx.Handle.IsZero() || !tx.Status.Valid() {
			continue
		}
		e := t.entry(tx.Handle)
		if err := e.acquire(ctx); err != nil {
			return loaded, err
		}
		if e.snapshot() == nil {
			e.set(tx.Clone())
			t.index(tx.Handle, tx.User)
			loaded++
		}
		e.release()
	}

	t.logger.WithField("count", loaded).Info("Tracker warmed from store")
	t.metrics.SetTracked(t.Len())
	return loaded, nil
}

// lookup returns the entry of handle without creating one.
func (t *Tracker) lookup(handle types.TxHandle) (*entry, bool) {
	t.entriesMutex.RLock()
	defer t.entriesMutex.RUnlock()
	e, ok := t.entries[handle]
	return e, ok
}

func (t *Tracker) entry(handle types.TxHandle) *entry {
	t.entriesMutex.RLock()
	e, ok := t.entries[handle]
	t.entriesMutex.RUnlock()
	if ok {
		return e
	}

	t.entriesMutex.Lock()
	defer t.entriesMutex.Unlock()
	if e, ok = t.entries[handle]; !ok {
		e = newEntry()
		t.entries[handle] = e
	}
	return e
}

// index registers a newly tracked handle. It is called once per handle, when its entry first
// gets a transaction.
func (t *Tracker) index(handle types.TxHandle, user string) {
	t.entriesMutex.Lock()
	defer t.entriesMutex.Unlock()

	t.tracked++
	t.indexUserLocked(handle, user)
}

// indexUser adds a tracked handle to the index of user.
func (t *Tracker) indexUser(handle types.TxHandle, user string) {
	t.entriesMutex.Lock()
	defer t.entriesMutex.Unlock()
	t.indexUserLocked(handle, user)
}

func (t *Tracker) indexUserLocked(handle types.TxHandle, user string) {
	key := strings.ToLower(user)
	if key == "" {
		return
	}
	if t.users[key] == nil {
		t.users[key] = make(map[types.TxHandle]struct{})
	}
	t.users[key][handle] = struct{}{}
}

// userHandles returns the tracked handles of user.
func (t *Tracker) userHandles(user string) []types.TxHandle {
	t.entriesMutex.RLock()
	defer t.entriesMutex.RUnlock()

	handles := make([]types.TxHandle, 0, len(t.users[strings.ToLower(user)]))
	for handle := range t.users[strings.ToLower(user)] {
		handles = append(handles, handle)
	}
	return handles
}
