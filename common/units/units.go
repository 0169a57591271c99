package units

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ToBaseUnits converts a human readable decimal amount into base units scaled by decimals.
// Amounts with more fractional digits than decimals are rejected.
func ToBaseUnits(amount string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse amount %q", amount)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, errors.Errorf("amount %q has more than %d decimals", amount, decimals)
	}
	return scaled.BigInt(), nil
}

// FromBaseUnits renders base units as a decimal string with trailing zeros removed.
func FromBaseUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return ""
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// ApplyBps returns floor(amount * bps / 10000).
func ApplyBps(amount *big.Int, bps uint64) *big.Int {
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return out.Quo(out, big.NewInt(10000))
}
