package models

import "time"

// Token is a row of the tokens table.
type Token struct {
	ID          int64     `db:"id"`
	ChainID     uint64    `db:"chain_id"`
	Address     string    `db:"address"`
	Symbol      string    `db:"symbol"`
	Decimals    uint8     `db:"decimals"`
	HomeChainID uint64    `db:"home_chain_id"`
	Active      bool      `db:"active"`
	CreatedAt   time.Time `db:"created_at"`
}
