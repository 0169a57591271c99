package types

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// TransferKind is the way value leaves the source chain.
type TransferKind int

const (
	// KindUnknown means the kind has not been derived.
	KindUnknown TransferKind = iota
	// Lock escrows a native token on its home chain.
	Lock
	// BurnAndMint destroys a wrapped token on a non-home chain.
	BurnAndMint
)

func (k TransferKind) String() string {
	switch k {
	case Lock:
		return "LOCK"
	case BurnAndMint:
		return "BURN_AND_MINT"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k TransferKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *TransferKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "LOCK":
		*k = Lock
	case "BURN_AND_MINT":
		*k = BurnAndMint
	default:
		*k = KindUnknown
	}
	return nil
}

// TransferRequest is a user's request to move value between chains.
//
// Fields:
// - Token: the token on the source chain.
// - Amount: the amount, scaled by the token decimals.
// - SourceChain: the chain the value leaves from.
// - DestChain: the chain the value arrives on.
// - DestAddress: the recipient on the destination chain, defaults to Sender.
// - Sender: the address submitting the transfer.
type TransferRequest struct {
	Token       Token
	Amount      *big.Int
	SourceChain uint64
	DestChain   uint64
	DestAddress string
	Sender      string
}

// SubmitRequest is what a ledger needs to submit a transfer on the source chain.
type SubmitRequest struct {
	ChainID     uint64
	Token       string
	Amount      *big.Int
	DestChain   uint64
	DestAddress string
	Sender      string
}

// TxHandle identifies a bridge transaction: the id assigned by a ledger together with the
// chain that issued it.
type TxHandle struct {
	ChainID uint64 `json:"chainId"`
	ID      string `json:"id"`
}

// ErrInvalidHandle is returned when a handle string cannot be parsed.
var ErrInvalidHandle = errors.New("invalid transaction handle")

// String renders the handle as "chainID:id".
func (h TxHandle) String() string {
	return fmt.Sprintf("%d:%s", h.ChainID, h.ID)
}

// IsZero reports whether the handle is empty.
func (h TxHandle) IsZero() bool {
	return h.ChainID == 0 && h.ID == ""
}

// ParseTxHandle parses a handle rendered by TxHandle.String.
func ParseTxHandle(s string) (TxHandle, error) {
	chainPart, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return TxHandle{}, errors.Wrapf(ErrInvalidHandle, "%q", s)
	}
	chainID, err := strconv.ParseUint(chainPart, 10, 64)
	if err != nil || chainID == 0 {
		return TxHandle{}, errors.Wrapf(ErrInvalidHandle, "%q", s)
	}
	return TxHandle{ChainID: chainID, ID: strings.ToLower(id)}, nil
}
