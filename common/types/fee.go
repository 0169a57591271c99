package types

import "math/big"

// FeeSource tells where the token fee of a quote came from.
type FeeSource string

const (
	// FeeSourceLedger means the bridge contract reported the fee.
	FeeSourceLedger FeeSource = "ledger"
	// FeeSourceFallback means the ledger could not report it and the default rate was used.
	FeeSourceFallback FeeSource = "fallback"
)

// BasisPointsDenominator is the number of basis points in a whole.
const BasisPointsDenominator = 10000

// FeeQuote is the fee the user pays for a transfer. The flat fee is pre-funded in a
// stablecoin, the token fee is charged on the transferred amount.
//
// Fields:
// - FlatFee: the flat pre-funding fee, scaled by FlatFeeDecimals.
// - FlatFeeSymbol: the stablecoin the flat fee is paid in.
// - FlatFeeDecimals: the decimals of the flat fee stablecoin.
// - TokenFee: the proportional fee, in the transferred token's base units.
// - RateBps: the rate used for TokenFee when it was computed locally.
// - Source: where TokenFee came from.
// - FallbackReason: the ledger error that caused a fallback, nil otherwise.
type FeeQuote struct {
	FlatFee         *big.Int
	FlatFeeSymbol   string
	FlatFeeDecimals uint8
	TokenFee        *big.Int
	RateBps         uint64
	Source          FeeSource
	FallbackReason  error
}

// IsFallback reports whether the token fee was computed locally.
func (q *FeeQuote) IsFallback() bool {
	return q.Source == FeeSourceFallback
}

// FeeRequirements is the pre-funding state of a user. Balance and allowance are checked
// independently. Enforced is false when the chain's bridge does not charge a flat fee, in
// which case both checks are reported as passing and the raw values are nil.
type FeeRequirements struct {
	HasBalance   bool
	HasAllowance bool
	Balance      *big.Int
	Allowance    *big.Int
	Enforced     bool
}

// Satisfied reports whether both checks pass.
func (r *FeeRequirements) Satisfied() bool {
	return r != nil && r.HasBalance && r.HasAllowance
}
