package models

import (
	"database/sql"
	"time"
)

// BridgeTransaction is a row of the bridge_transactions table. Amounts are stored as NUMERIC
// and read back as decimal strings.
type BridgeTransaction struct {
	ChainID       uint64         `db:"chain_id"`
	TxID          string         `db:"tx_id"`
	User          string         `db:"user_address"`
	Token         string         `db:"token_address"`
	Amount        sql.NullString `db:"amount"`
	Fee           sql.NullString `db:"fee"`
	SourceChain   uint64         `db:"source_chain"`
	TargetChain   uint64         `db:"target_chain"`
	TargetAddress string         `db:"target_address"`
	Status        string         `db:"status"`
	Kind          string         `db:"kind"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}
