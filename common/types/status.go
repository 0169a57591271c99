package types

import (
	"fmt"

	"github.com/pkg/errors"
)

// BridgeStatus is the lifecycle state of a bridge transaction.
type BridgeStatus string

const (
	StatusPending   BridgeStatus = "PENDING"
	StatusLocked    BridgeStatus = "LOCKED"
	StatusBurned    BridgeStatus = "BURNED"
	StatusReleased  BridgeStatus = "RELEASED"
	StatusCompleted BridgeStatus = "COMPLETED"
	StatusFailed    BridgeStatus = "FAILED"
)

// ErrUnknownStatusCode is returned when a ledger reports a status code outside the known set.
var ErrUnknownStatusCode = errors.New("unknown bridge status code")

// StatusFromCode decodes a ledger status code. Code 1 is reported as Burned for
// burn-and-mint transfers.
func StatusFromCode(code uint8, kind TransferKind) (BridgeStatus, error) {
	switch code {
	case 0:
		return StatusPending, nil
	case 1:
		if kind == BurnAndMint {
			return StatusBurned, nil
		}
		return StatusLocked, nil
	case 2:
		return StatusReleased, nil
	case 3:
		return StatusCompleted, nil
	case 4:
		return StatusFailed, nil
	default:
		return "", errors.Wrap(ErrUnknownStatusCode, fmt.Sprintf("code %d", code))
	}
}

// Rank orders statuses along the lifecycle. Locked and Burned share a rank.
func (s BridgeStatus) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusLocked, StatusBurned:
		return 1
	case StatusReleased:
		return 2
	case StatusCompleted:
		return 3
	case StatusFailed:
		return 4
	default:
		return -1
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s BridgeStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s BridgeStatus) Valid() bool {
	return s.Rank() >= 0
}

// CanAdvanceTo reports whether moving from s to next respects the lifecycle. Failed is
// reachable from every non-terminal state, nothing leaves a terminal state and ranks never
// decrease. Re-applying the same status is allowed.
func (s BridgeStatus) CanAdvanceTo(next BridgeStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	return next.Rank() >= s.Rank()
}
