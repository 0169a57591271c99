package errors

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrInvalidRequest        = errors.New("invalid transfer request")
	ErrFeeRequirementsUnmet  = errors.New("fee requirements not met")
	ErrGateway               = errors.New("ledger gateway failure")
	ErrTimeout               = errors.New("ledger call timed out")
	ErrNotFound              = errors.New("transaction not found")
	ErrFeeUnavailable        = errors.New("fee unavailable from ledger")
	ErrAlreadyRecorded       = errors.New("transaction already recorded")
	ErrCapabilityUnsupported = errors.New("capability not supported by bridge version")
	ErrApprovalFailed        = errors.New("token approval not confirmed")
	ErrTransactionReverted   = errors.New("transaction reverted")
	ErrTransferUnconfirmed   = errors.New("transfer sent but not confirmed")
	ErrChainNotFound         = errors.New("chain not found")
	ErrTokenNotFound         = errors.New("token not found")
	ErrInvalidChainID        = errors.New("invalid chain id")
	ErrDatabaseConnect       = errors.New("failed to connect to database")
	ErrInvalidConfig         = errors.New("invalid chain configuration")
	ErrChainExists           = errors.New("chain already exists in registry")
	ErrFactoryNotProvided    = errors.New("chain factory not provided")
	ErrInvalidChainType      = errors.New("invalid chain type")
	ErrNotImplemented        = errors.New("functionality not implemented")
)

// GatewayError is a failed call to a chain's ledger. It matches ErrGateway, and ErrTimeout
// as well when the call ran out of time.
type GatewayError struct {
	ChainID uint64
	Op      string
	Err     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("ledger %s on chain %d: %v", e.Op, e.ChainID, e.Err)
}

// Is reports ErrGateway for every gateway error.
func (e *GatewayError) Is(target error) bool {
	return target == ErrGateway
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGatewayError wraps err as a gateway failure of op on chainID.
func NewGatewayError(chainID uint64, op string, err error) *GatewayError {
	return &GatewayError{ChainID: chainID, Op: op, Err: err}
}

// IsTimeout reports whether err is a gateway timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// SubmittedError is a failure after the transfer was broadcast. The transfer may have moved
// value, so the caller must look it up by TxHash instead of submitting again. It matches
// ErrTransferUnconfirmed, and ErrTimeout when the wait for inclusion ran out of time.
type SubmittedError struct {
	ChainID uint64
	TxHash  string
	Err     error
}

func (e *SubmittedError) Error() string {
	return fmt.Sprintf("transfer %s on chain %d sent but not confirmed: %v", e.TxHash, e.ChainID, e.Err)
}

// Is reports ErrTransferUnconfirmed, and ErrTimeout for an expired wait.
func (e *SubmittedError) Is(target error) bool {
	if target == ErrTransferUnconfirmed {
		return true
	}
	return target == ErrTimeout && errors.Is(e.Err, context.DeadlineExceeded)
}

func (e *SubmittedError) Unwrap() error {
	return e.Err
}

// FeeRequirementsError reports which of the independent fee checks failed.
type FeeRequirementsError struct {
	HasBalance   bool
	HasAllowance bool
}

func (e *FeeRequirementsError) Error() string {
	return fmt.Sprintf("%s: balance=%t allowance=%t", ErrFeeRequirementsUnmet, e.HasBalance, e.HasAllowance)
}

// Is reports ErrFeeRequirementsUnmet.
func (e *FeeRequirementsError) Is(target error) bool {
	return target == ErrFeeRequirementsUnmet
}

// InvalidRequest wraps ErrInvalidRequest with a formatted reason.
func InvalidRequest(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidRequest, format, args...)
}
