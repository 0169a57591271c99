package types

import (
	"time"
)

// StatusEvent represents a BridgeStatusUpdated log observed on a blockchain. It is a hint
// only, the tracked state is always re-read from the ledger.
//
// Fields:
// - Handle: the transaction the event refers to.
// - StatusCode: the raw status code carried by the log.
// - BlockNumber: the block number where the event was included.
// - TxHash: the hash of the transaction that emitted the event.
// - ObservedAt: the time the event was read.
type StatusEvent struct {
	Handle      TxHandle
	StatusCode  uint8
	BlockNumber uint64
	TxHash      string
	ObservedAt  time.Time
}
