// Package tokens keeps the token deployments the coordinator accepts, keyed by chain and
// address.
package tokens

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/common/types"
)

// Registry resolves (chain, address) pairs to tokens. The home chain of a deployment cannot
// change once registered.
type Registry struct {
	tokensMutex sync.RWMutex
	tokens      map[string]types.Token
}

// NewRegistry creates a registry holding the given tokens.
//
// Parameters:
// - tokens: the initial deployments.
//
// Returns:
// - *Registry: the registry.
// - error: the first deployment that could not be added.
func NewRegistry(tokens ...types.Token) (*Registry, error) {
	r := &Registry{tokens: make(map[string]types.Token)}
	for _, token := range tokens {
		if err := r.Add(token); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers a token deployment. Adding an identical deployment again is a no-op.
//
// Parameters:
// - token: the deployment.
//
// Returns:
// - error: ErrInvalidConfig for incomplete tokens or a changed home chain.
func (r *Registry) Add(token types.Token) error {
	if token.ChainID == 0 || token.Address == "" {
		return errors.Wrap(bridgeerrors.ErrInvalidConfig, "token needs a chain id and an address")
	}
	if token.HomeChainID == 0 {
		return errors.Wrapf(bridgeerrors.ErrInvalidConfig, "token %s has no home chain", token.Key())
	}

	r.tokensMutex.Lock()
	defer r.tokensMutex.Unlock()

	if existing, ok := r.tokens[token.Key()]; ok && existing.HomeChainID != token.HomeChainID {
		return errors.Wrapf(bridgeerrors.ErrInvalidConfig, "token %s home chain is %d, not %d",
			token.Key(), existing.HomeChainID, token.HomeChainID)
	}

	r.tokens[token.Key()] = token
	return nil
}

// Lookup returns the deployment of address on chainID.
func (r *Registry) Lookup(chainID uint64, address string) (types.Token, bool) {
	r.tokensMutex.RLock()
	defer r.tokensMutex.RUnlock()

	token, ok := r.tokens[types.TokenKey(chainID, address)]
	return token, ok
}

// Resolve is Lookup with an ErrTokenNotFound error.
func (r *Registry) Resolve(chainID uint64, address string) (types.Token, error) {
	token, ok := r.Lookup(chainID, address)
	if !ok {
		return types.Token{}, errors.Wrapf(bridgeerrors.ErrTokenNotFound, "%s on chain %d", address, chainID)
	}
	return token, nil
}

// List returns every deployment ordered by chain and address.
func (r *Registry) List() []types.Token {
	r.tokensMutex.RLock()
	defer r.tokensMutex.RUnlock()

	list := make([]types.Token, 0, len(r.tokens))
	for _, token := range r.tokens {
		list = append(list, token)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Key() < list[j].Key() })
	return list
}
