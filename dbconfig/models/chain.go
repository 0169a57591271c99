package models

import (
	"database/sql"
	"time"
)

// Chain is a row of the chains table.
type Chain struct {
	ID            int64          `db:"id"`
	ChainID       uint64         `db:"chain_id"`
	Name          string         `db:"name"`
	Type          string         `db:"chain_type"`
	Class         string         `db:"class"`
	NativeSymbol  string         `db:"native_symbol"`
	BridgeAddress sql.NullString `db:"bridge_address"`
	BridgeVersion sql.NullString `db:"bridge_version"`
	Active        bool           `db:"active"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}
