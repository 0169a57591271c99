package dbconfig

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/dbconfig/models"
)

const chainColumns = `
          id,
          chain_id,
          name,
          chain_type,
          class,
          native_symbol,
          bridge_address,
          bridge_version,
          active,
          created_at,
          updated_at`

// GetChains returns all chains from the database, optionally filtering by active status.
//
// Parameters:
// - ctx: the context for managing the request.
// - activeOnly: a boolean flag to filter only active chains.
//
// Returns:
// - []models.Chain: the chains ordered by chain id.
// - error: ErrDatabaseConnect if the query fails.
func (r *DBConfig) GetChains(ctx context.Context, activeOnly bool) ([]models.Chain, error) {
	query := `SELECT` + chainColumns + ` FROM chains`

	var args []interface{}
	if activeOnly {
		query += " WHERE active = $1"
		args = append(args, true)
	}

	query += " ORDER BY chain_id ASC"

	var chains []models.Chain
	if err := r.db.SelectContext(ctx, &chains, query, args...); err != nil {
		return nil, errors.Wrapf(bridgeerrors.ErrDatabaseConnect, "select chains: %v", err)
	}

	return chains, nil
}

// GetChainByID returns one chain by its chain id.
func (r *DBConfig) GetChainByID(ctx context.Context, chainID uint64) (*models.Chain, error) {
	if chainID == 0 {
		return nil, bridgeerrors.ErrInvalidChainID
	}

	var chain models.Chain
	err := r.db.GetContext(ctx, &chain, `SELECT`+chainColumns+` FROM chains WHERE chain_id = $1`, chainID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, bridgeerrors.ErrChainNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(bridgeerrors.ErrDatabaseConnect, "select chain %d: %v", chainID, err)
	}

	return &chain, nil
}
