// Package signer holds the key the EVM ledger submits bridge transactions with.
package signer

import (
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// ErrChainMismatch is returned when a transaction names a chain other than the signer's.
var ErrChainMismatch = errors.New("transaction chain does not match signer chain")

// Signer signs bridge and approval transactions of one account on one chain.
type Signer interface {
	// SignTx signs tx for the signer's chain. Transactions carrying another chain id are
	// rejected with ErrChainMismatch.
	SignTx(tx *ethtypes.Transaction) (*ethtypes.Transaction, error)

	// Address returns the account that submits transfers and owns the escrowed tokens.
	Address() common.Address

	// ChainID returns the chain the signer signs for.
	ChainID() *big.Int
}

type signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	scheme  ethtypes.Signer
}

// New binds privateKey to chainID.
//
// Parameters:
// - privateKey: the account key.
// - chainID: the chain id replay protection is bound to.
//
// Returns:
// - Signer: the signer.
// - error: an error for a missing key or chain id.
func New(privateKey *ecdsa.PrivateKey, chainID *big.Int) (Signer, error) {
	if privateKey == nil {
		return nil, errors.New("private key is nil")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, errors.New("signer needs a positive chain id")
	}

	return &signer{
		key:     privateKey,
		address: crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID: new(big.Int).Set(chainID),
		scheme:  ethtypes.LatestSignerForChainID(chainID),
	}, nil
}

// FromHex parses a hex private key, with or without 0x prefix, and binds it to chainID.
func FromHex(hexKey string, chainID uint64) (Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse private key")
	}
	return New(key, new(big.Int).SetUint64(chainID))
}

func (s *signer) Address() common.Address {
	return s.address
}

func (s *signer) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

func (s *signer) SignTx(tx *ethtypes.Transaction) (*ethtypes.Transaction, error) {
	// Unsigned legacy transactions carry no chain id, signing binds them to ours.
	if id := tx.ChainId(); tx.Type() != ethtypes.LegacyTxType && id.Cmp(s.chainID) != 0 {
		return nil, errors.Wrapf(ErrChainMismatch, "tx chain %s, signer chain %s", id, s.chainID)
	}

	signed, err := ethtypes.SignTx(tx, s.scheme, s.key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}
	return signed, nil
}
