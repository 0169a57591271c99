package types

import (
	"time"
)

// ChainConfig holds the configuration for a specific chain implementation.
//
// Fields:
// - Name: the name of the chain.
// - ChainType: the type of the chain.
// - ChainID: the unique identifier for the chain.
// - Class: the network class of the chain, main or test.
// - NativeSymbol: the symbol of the native currency.
// - RpcUrl: the URL for the chain's RPC endpoint.
// - TxType: the type of transactions supported by the chain.
// - WaitNBlocks: the number of blocks to wait for transaction confirmation.
// - PrivateKey: the private key for signing transactions.
// - BridgeAddress: the address of the bridge contract.
// - BridgeVersion: the declared bridge contract version, used for capability negotiation.
// - CallTimeout: the timeout applied to a single read against the chain.
// - ConfirmationTimeout: the timeout applied to a submission, including its inclusion wait.
// - EstimatedTime: a user-facing hint of how long cross-chain completion usually takes.
// - PollInterval: the interval between receipt and log polls.
// - MaxRetries: the maximum number of retries for a failed read.
// - RequestsPerSecond: the maximum RPC request rate, zero means unlimited.
type ChainConfig struct {
	Name                string
	ChainType           ChainType
	ChainID             uint64
	Class               NetworkClass
	NativeSymbol        string
	RpcUrl              string
	TxType              uint64
	WaitNBlocks         uint64
	PrivateKey          string
	BridgeAddress       string
	BridgeVersion       string
	CallTimeout         time.Duration
	ConfirmationTimeout time.Duration
	EstimatedTime       time.Duration
	PollInterval        time.Duration
	MaxRetries          uint64
	RequestsPerSecond   float64
}

// Chain returns the immutable chain metadata described by the configuration.
func (c *ChainConfig) Chain() Chain {
	return Chain{
		ChainID:       c.ChainID,
		Name:          c.Name,
		Type:          c.ChainType,
		Class:         c.Class,
		NativeSymbol:  c.NativeSymbol,
		EstimatedTime: c.EstimatedTime,
	}
}

// Chain is the metadata of a registered chain. Every chain id maps to exactly one class.
type Chain struct {
	ChainID       uint64        `json:"chainId"`
	Name          string        `json:"name"`
	Type          ChainType     `json:"type"`
	Class         NetworkClass  `json:"class"`
	NativeSymbol  string        `json:"nativeSymbol"`
	EstimatedTime time.Duration `json:"estimatedTime"`
}
