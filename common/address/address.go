package address

import (
	"strings"

	ethav "github.com/KOREAN139/ethereum-address-validator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"

	"github.com/ClipFinance/bridge-coordinator/common/types"
)

// ErrMalformedAddress is returned when an address does not belong to the chain's address family.
var ErrMalformedAddress = errors.New("malformed address")

// ValidateForChain checks that addr is well formed for the given chain type.
// EVM addresses must be 0x-prefixed hex. Mixed case input must carry a valid EIP-55 checksum.
func ValidateForChain(chainType types.ChainType, addr string) error {
	switch chainType {
	case types.EVM:
		return validateEVM(addr)
	case types.SOLANA:
		if _, err := solana.PublicKeyFromBase58(addr); err != nil {
			return errors.Wrapf(ErrMalformedAddress, "solana address %q: %v", addr, err)
		}
		return nil
	default:
		return errors.Wrapf(ErrMalformedAddress, "unsupported chain type %s", chainType)
	}
}

func validateEVM(addr string) error {
	if !strings.HasPrefix(addr, "0x") || !common.IsHexAddress(addr) {
		return errors.Wrapf(ErrMalformedAddress, "evm address %q", addr)
	}
	checksummed := common.HexToAddress(addr).Hex()
	body := addr[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && checksummed != addr {
		return errors.Wrapf(ErrMalformedAddress, "evm address %q: bad checksum", addr)
	}
	if err := ethav.Validate(checksummed); err != nil {
		return errors.Wrapf(ErrMalformedAddress, "evm address %q: %v", addr, err)
	}
	return nil
}
