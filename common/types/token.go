package types

import (
	"strconv"
	"strings"
)

// Token is a token deployment on one chain. HomeChainID is fixed when the token is
// registered and is never inferred from balances.
type Token struct {
	ChainID     uint64 `json:"chainId"`
	Address     string `json:"address"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	HomeChainID uint64 `json:"homeChainId"`
}

// Key returns a case-insensitive lookup key for the token deployment.
func (t Token) Key() string {
	return TokenKey(t.ChainID, t.Address)
}

// TokenKey builds the lookup key for a token address on a chain.
func TokenKey(chainID uint64, address string) string {
	return strconv.FormatUint(chainID, 10) + "/" + strings.ToLower(address)
}
