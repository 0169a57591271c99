package tracker

import (
	"context"

	"github.com/ClipFinance/bridge-coordinator/common/types"
)

// Store mirrors tracked transactions outside the process. The ledger stays authoritative, a
// store only shortens the cold start.
type Store interface {
	// Save writes the current snapshot of a transaction, replacing the previous one.
	Save(ctx context.Context, tx *types.BridgeTransaction) error

	// LoadAll returns every stored snapshot.
	LoadAll(ctx context.Context) ([]*types.BridgeTransaction, error)
}
