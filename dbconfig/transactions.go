package dbconfig

import (
	"context"
	"database/sql"
	"math/big"

	"github.com/pkg/errors"

	"github.com/ClipFinance/bridge-coordinator/common/types"
	"github.com/ClipFinance/bridge-coordinator/dbconfig/models"
	"github.com/ClipFinance/bridge-coordinator/tracker"
)

var _ tracker.Store = (*TransactionStore)(nil)

// TransactionStore mirrors tracked transactions into the bridge_transactions table.
type TransactionStore struct {
	config *DBConfig
}

// TransactionStore returns the transaction mirror backed by this database.
func (r *DBConfig) TransactionStore() *TransactionStore {
	return &TransactionStore{config: r}
}

// Save inserts or updates the snapshot of a transaction.
//
// Parameters:
// - ctx: the context for managing the request.
// - tx: the transaction snapshot.
//
// Returns:
// - error: an error if the database operation fails.
func (s *TransactionStore) Save(ctx context.Context, tx *types.BridgeTransaction) error {
	if tx == nil || tx.Handle.IsZero() {
		return errors.New("cannot store a transaction without handle")
	}
	row := toRow(tx)

	_, err := s.config.db.NamedExecContext(ctx, `
       INSERT INTO bridge_transactions (
           chain_id,
           tx_id,
           user_address,
           token_address,
           amount,
           fee,
           source_chain,
           target_chain,
           target_address,
           status,
           kind,
           created_at,
           updated_at
       ) VALUES (
           :chain_id, :tx_id, :user_address, :token_address, :amount, :fee, :source_chain,
           :target_chain, :target_address, :status, :kind, :created_at, now()
       )
       ON CONFLICT (chain_id, tx_id)
       DO UPDATE SET
           user_address = EXCLUDED.user_address,
           token_address = EXCLUDED.token_address,
           amount = EXCLUDED.amount,
           fee = EXCLUDED.fee,
           source_chain = EXCLUDED.source_chain,
           target_chain = EXCLUDED.target_chain,
           target_address = EXCLUDED.target_address,
           status = EXCLUDED.status,
           kind = EXCLUDED.kind,
           created_at = EXCLUDED.created_at,
           updated_at = now()`, row)
	if err != nil {
		return errors.Wrapf(err, "failed to upsert transaction %s", tx.Handle)
	}
	return nil
}

// LoadAll returns every stored transaction.
func (s *TransactionStore) LoadAll(ctx context.Context) ([]*types.BridgeTransaction, error) {
	var rows []models.BridgeTransaction
	err := s.config.db.SelectContext(ctx, &rows, `
       SELECT
           chain_id,
           tx_id,
           user_address,
           token_address,
           amount::TEXT AS amount,
           fee::TEXT AS fee,
           source_chain,
           target_chain,
           target_address,
           status,
           kind,
           created_at,
           updated_at
       FROM bridge_transactions
       ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to select transactions")
	}

	txs := make([]*types.BridgeTransaction, 0, len(rows))
	for _, row := range rows {
		tx, err := fromRow(row)
		if err != nil {
			return nil, errors.Wrapf(err, "transaction %d:%s", row.ChainID, row.TxID)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func toRow(tx *types.BridgeTransaction) models.BridgeTransaction {
	return models.BridgeTransaction{
		ChainID:       tx.Handle.ChainID,
		TxID:          tx.Handle.ID,
		User:          tx.User,
		Token:         tx.Token,
		Amount:        nullBig(tx.Amount),
		Fee:           nullBig(tx.Fee),
		SourceChain:   tx.SourceChain,
		TargetChain:   tx.TargetChain,
		TargetAddress: tx.TargetAddress,
		Status:        string(tx.Status),
		Kind:          tx.Kind.String(),
		CreatedAt:     tx.CreatedAt,
	}
}

func fromRow(row models.BridgeTransaction) (*types.BridgeTransaction, error) {
	tx := &types.BridgeTransaction{
		Handle:        types.TxHandle{ChainID: row.ChainID, ID: row.TxID},
		User:          row.User,
		Token:         row.Token,
		SourceChain:   row.SourceChain,
		TargetChain:   row.TargetChain,
		TargetAddress: row.TargetAddress,
		Status:        types.BridgeStatus(row.Status),
		CreatedAt:     row.CreatedAt.UTC(),
	}
	if !tx.Status.Valid() {
		return nil, errors.Wrapf(types.ErrUnknownStatusCode, "status %q", row.Status)
	}
	if err := tx.Kind.UnmarshalText([]byte(row.Kind)); err != nil {
		return nil, err
	}

	var err error
	if tx.Amount, err = parseBig(row.Amount); err != nil {
		return nil, errors.Wrap(err, "amount")
	}
	if tx.Fee, err = parseBig(row.Fee); err != nil {
		return nil, errors.Wrap(err, "fee")
	}
	return tx, nil
}

func nullBig(v *big.Int) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: v.String(), Valid: true}
}

func parseBig(v sql.NullString) (*big.Int, error) {
	if !v.Valid {
		return nil, nil
	}
	n, ok := new(big.Int).SetString(v.String, 10)
	if !ok {
		return nil, errors.Errorf("invalid integer %q", v.String)
	}
	return n, nil
}
