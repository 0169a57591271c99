package types

import (
	"context"
	"math/big"
)

// TransferSubmitter submits value-moving operations to a single chain's bridge contract.
type TransferSubmitter interface {
	// SubmitLock escrows a native token on its home chain.
	//
	// Parameters:
	// - ctx: the context for managing the request.
	// - req: the submission details.
	//
	// Returns:
	// - string: the ledger-assigned transaction id.
	// - error: an error if authorization or submission fails.
	SubmitLock(ctx context.Context, req *SubmitRequest) (string, error)

	// SubmitBurnAndMint burns a wrapped token on a non-home chain.
	//
	// Parameters:
	// - ctx: the context for managing the request.
	// - req: the submission details.
	//
	// Returns:
	// - string: the ledger-assigned transaction id.
	// - error: an error if authorization or submission fails.
	SubmitBurnAndMint(ctx context.Context, req *SubmitRequest) (string, error)
}

// TransactionReader reads bridge transactions recorded by a single chain's bridge contract.
type TransactionReader interface {
	// GetTransaction returns the ledger record for a transaction id, or ErrNotFound.
	GetTransaction(ctx context.Context, id string) (*BridgeTransaction, error)

	// GetUserTransactions returns the transaction ids of a user, most recent first.
	GetUserTransactions(ctx context.Context, user string) ([]string, error)
}

// FeeReader reads fee information from a single chain's bridge contract.
type FeeReader interface {
	// EstimateFee returns the proportional token fee for an amount.
	EstimateFee(ctx context.Context, token string, amount *big.Int) (*big.Int, error)

	// CheckFeeRequirements returns the flat fee pre-funding state of a user.
	CheckFeeRequirements(ctx context.Context, user string) (*FeeRequirements, error)
}

// StatusNotifier streams status hints from a single chain.
type StatusNotifier interface {
	// InitHTTPPolling starts polling status events and writes them to eventChan.
	//
	// Parameters:
	// - ctx: the context for managing the polling lifecycle.
	// - eventChan: the channel to receive status events.
	//
	// Returns:
	// - error: an error if the polling cannot be started.
	InitHTTPPolling(ctx context.Context, eventChan chan StatusEvent) error

	// ShutdownListeners stops all active pollers.
	ShutdownListeners()
}

// HealthChecker reports the connection state of a chain.
type HealthChecker interface {
	Healthy() bool
}

// Ledger combines all chain-specific bridge functionality.
type Ledger interface {
	TransferSubmitter
	TransactionReader
	FeeReader
	StatusNotifier
	HealthChecker
	Capabilities() Capabilities
	Close()
}

// Gateway is the sole point of contact with the chains' contract state. It routes every
// call to the chain owning the token or handle.
type Gateway interface {
	SubmitLock(ctx context.Context, req *SubmitRequest) (TxHandle, error)
	SubmitBurnAndMint(ctx context.Context, req *SubmitRequest) (TxHandle, error)
	GetTransaction(ctx context.Context, handle TxHandle) (*BridgeTransaction, error)
	GetUserTransactions(ctx context.Context, user string) (*UserTransactions, error)
	EstimateFee(ctx context.Context, chainID uint64, token string, amount *big.Int) (*big.Int, error)
	CheckFeeRequirements(ctx context.Context, chainID uint64, user string) (*FeeRequirements, error)
	Capabilities(chainID uint64) (Capabilities, error)
}
