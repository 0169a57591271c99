package types

// ChainType represents the address family and contract runtime of a chain.
type ChainType string

const (
	// EVM represents Ethereum Virtual Machine based chains (e.g. Ethereum, Linea, Base, etc.)
	EVM ChainType = "EVM"
	// SOLANA represents Solana chain. It is supported as a transfer destination only.
	SOLANA ChainType = "SOLANA"
	// UNKNOWN represents unknown or unsupported chain type in the system.
	UNKNOWN ChainType = "UNKNOWN"
)

// String converts ChainType to string representation
func (t ChainType) String() string {
	return string(t)
}

// ParseChainType converts string to ChainType representation.
func ParseChainType(s string) ChainType {
	switch s {
	case EVM.String():
		return EVM
	case SOLANA.String():
		return SOLANA
	default:
		return UNKNOWN
	}
}

// NetworkClass separates production networks from test networks.
type NetworkClass string

const (
	// MainNet is a production network.
	MainNet NetworkClass = "main"
	// TestNet is a test network.
	TestNet NetworkClass = "test"
)

// ParseNetworkClass converts a string into a NetworkClass. The second value is false
// for anything other than "main" or "test".
func ParseNetworkClass(s string) (NetworkClass, bool) {
	switch NetworkClass(s) {
	case MainNet:
		return MainNet, true
	case TestNet:
		return TestNet, true
	default:
		return "", false
	}
}
