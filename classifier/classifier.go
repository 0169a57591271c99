// Package classifier derives how a transfer moves value out of its source chain.
package classifier

import (
	"github.com/ClipFinance/bridge-coordinator/common/types"
)

// Classify returns Lock when the token's home chain is the source chain and BurnAndMint
// otherwise. It does no I/O and is called once per request.
func Classify(token types.Token, sourceChain uint64) types.TransferKind {
	if token.HomeChainID == sourceChain {
		return types.Lock
	}
	return types.BurnAndMint
}
