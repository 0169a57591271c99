package utils

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// ZeroAddress represents the zero address.
	ZeroAddress = "0x0000000000000000000000000000000000000000"
)

var (
	// BridgeInitiatedTopic is the signature topic of the BridgeInitiated event.
	BridgeInitiatedTopic = crypto.Keccak256Hash([]byte("BridgeInitiated(bytes32,address,address,uint256,uint256,uint256,string)"))
	// BridgeStatusUpdatedTopic is the signature topic of the BridgeStatusUpdated event.
	BridgeStatusUpdatedTopic = crypto.Keccak256Hash([]byte("BridgeStatusUpdated(bytes32,uint8)"))
	// ApprovalTopic is the signature topic of the ERC20 Approval event.
	ApprovalTopic = crypto.Keccak256Hash([]byte("Approval(address,address,uint256)"))
)

// IsZeroAddress reports whether addr is the zero address.
func IsZeroAddress(addr common.Address) bool {
	return addr == common.HexToAddress(ZeroAddress)
}
