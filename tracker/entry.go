package tracker

import (
	"context"
	"sync"

	"github.com/ClipFinance/bridge-coordinator/common/types"
)

// entry is the cached state of one handle. lock has capacity one and serializes refreshes of
// the handle while letting waiters give up with their context. txMutex guards tx for readers
// that do not take part in a refresh.
type entry struct {
	lock chan struct{}

	txMutex sync.RWMutex
	// tx is nil until the handle is recorded or adopted from the ledger.
	tx *types.BridgeTransaction
	// recorded is set by Record and read only while holding lock.
	recorded bool
}

func newEntry() *entry {
	return &entry{lock: make(chan struct{}, 1)}
}

func (e *entry) acquire(ctx context.Context) error {
	select {
	case e.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *entry) release() {
	<-e.lock
}

func (e *entry) snapshot() *types.BridgeTransaction {
	e.txMutex.RLock()
	defer e.txMutex.RUnlock()
	return e.tx.Clone()
}

func (e *entry) set(tx *types.BridgeTransaction) {
	e.txMutex.Lock()
	e.tx = tx
	e.txMutex.Unlock()
}
