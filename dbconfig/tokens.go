package dbconfig

import (
	"context"

	"github.com/pkg/errors"

	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/dbconfig/models"
)

// GetTokens returns the token deployments, optionally filtering by active status.
func (r *DBConfig) GetTokens(ctx context.Context, activeOnly bool) ([]models.Token, error) {
	query := `
       SELECT 
           t.id,
           t.chain_id,
           t.address,
           t.symbol,
           t.decimals,
           t.home_chain_id,
           t.active,
           t.created_at
       FROM tokens t
       JOIN chains c ON c.chain_id = t.chain_id
    `

	var args []interface{}
	if activeOnly {
		query += " WHERE t.active = $1 AND c.active = $1"
		args = append(args, true)
	}

	query += " ORDER BY t.chain_id ASC, t.address ASC"

	var tokens []models.Token
	if err := r.db.SelectContext(ctx, &tokens, query, args...); err != nil {
		return nil, errors.Wrapf(bridgeerrors.ErrDatabaseConnect, "select tokens: %v", err)
	}

	return tokens, nil
}
