package types

import (
	"github.com/pkg/errors"
)

// Capabilities lists the bridge contract operations a chain declares. They are derived from
// the configured contract version, never probed at runtime.
type Capabilities struct {
	Version           string `json:"version"`
	Lock              bool   `json:"lock"`
	BurnAndMint       bool   `json:"burnAndMint"`
	TransactionLookup bool   `json:"transactionLookup"`
	UserEnumeration   bool   `json:"userEnumeration"`
	FeeEstimation     bool   `json:"feeEstimation"`
	FeeRequirements   bool   `json:"feeRequirements"`
}

// Bridge contract versions.
const (
	BridgeV1 = "v1"
	BridgeV2 = "v2"
)

// ErrUnknownBridgeVersion is returned for a bridge version without a capability set.
var ErrUnknownBridgeVersion = errors.New("unknown bridge version")

// CapabilitiesForVersion returns the capability set of a bridge contract version. v1
// contracts only transfer and look up single transactions, v2 adds enumeration and fees.
func CapabilitiesForVersion(version string) (Capabilities, error) {
	switch version {
	case BridgeV1:
		return Capabilities{
			Version:           BridgeV1,
			Lock:              true,
			BurnAndMint:       true,
			TransactionLookup: true,
		}, nil
	case BridgeV2:
		return Capabilities{
			Version:           BridgeV2,
			Lock:              true,
			BurnAndMint:       true,
			TransactionLookup: true,
			UserEnumeration:   true,
			FeeEstimation:     true,
			FeeRequirements:   true,
		}, nil
	default:
		return Capabilities{}, errors.Wrapf(ErrUnknownBridgeVersion, "%q", version)
	}
}
