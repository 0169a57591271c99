package types

import (
	"math/big"
	"time"
)

// BridgeTransaction represents a transfer as recorded by a chain's bridge contract.
//
// Fields:
// - Handle: the ledger-assigned id together with the chain that issued it.
// - User: the address that initiated the transfer.
// - Token: the token address on the source chain.
// - Amount: the transferred amount, scaled by the token decimals.
// - Fee: the token fee charged by the bridge.
// - SourceChain: the chain the value leaves from.
// - TargetChain: the chain the value arrives on.
// - TargetAddress: the recipient on the target chain.
// - CreatedAt: the time the ledger recorded the transfer.
// - Status: the lifecycle status.
// - Kind: the transfer kind derived when the transfer was accepted.
type BridgeTransaction struct {
	Handle        TxHandle     `json:"handle"`
	User          string       `json:"user"`
	Token         string       `json:"token"`
	Amount        *big.Int     `json:"amount"`
	Fee           *big.Int     `json:"fee"`
	SourceChain   uint64       `json:"sourceChain"`
	TargetChain   uint64       `json:"targetChain"`
	TargetAddress string       `json:"targetAddress"`
	CreatedAt     time.Time    `json:"createdAt"`
	Status        BridgeStatus `json:"status"`
	Kind          TransferKind `json:"kind"`
}

// Clone returns a deep copy of the transaction, so callers can never mutate cached state.
func (t *BridgeTransaction) Clone() *BridgeTransaction {
	if t == nil {
		return nil
	}
	c := *t
	if t.Amount != nil {
		c.Amount = new(big.Int).Set(t.Amount)
	}
	if t.Fee != nil {
		c.Fee = new(big.Int).Set(t.Fee)
	}
	return &c
}

// UserTransactions is the result of enumerating a user's transactions across chains.
//
// Fields:
// - Handles: the handles found, most recent first within each chain.
// - Complete: false when at least one chain could not be enumerated.
// - Degraded: the chains whose enumeration failed or is not supported, in ascending order.
// - Failures: the enumeration error per degraded chain.
type UserTransactions struct {
	Handles  []TxHandle
	Complete bool
	Degraded []uint64
	Failures map[uint64]error
}
