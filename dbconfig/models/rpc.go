package models

import (
	"database/sql"
	"time"
)

type RPC struct {
	ID        int64          `db:"id"`
	ChainID   uint64         `db:"chain_id"`
	URL       string         `db:"url"`
	Provider  sql.NullString `db:"provider"`
	Priority  int            `db:"priority"`
	Active    bool           `db:"active"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}
