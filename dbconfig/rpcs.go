package dbconfig

import (
	"context"

	"github.com/pkg/errors"

	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/dbconfig/models"
)

const rpcColumns = `id, chain_id, url, provider, priority, active, created_at, updated_at`

// GetRPCsByChainID returns the RPC endpoints of a chain, preferred endpoint first. Endpoints
// are ordered by priority, then by the most recently added.
func (r *DBConfig) GetRPCsByChainID(ctx context.Context, chainID uint64, activeOnly bool) ([]models.RPC, error) {
	if chainID == 0 {
		return nil, bridgeerrors.ErrInvalidChainID
	}

	filter := ""
	if activeOnly {
		filter = " AND active"
	}
	query := `SELECT ` + rpcColumns + ` FROM rpcs WHERE chain_id = $1` + filter +
		` ORDER BY priority DESC, created_at DESC`

	var rpcs []models.RPC
	if err := r.db.SelectContext(ctx, &rpcs, query, chainID); err != nil {
		return nil, errors.Wrapf(bridgeerrors.ErrDatabaseConnect, "select rpcs of chain %d: %v", chainID, err)
	}
	return rpcs, nil
}
