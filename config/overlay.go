package config

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/ClipFinance/bridge-coordinator/common/types"
	"github.com/ClipFinance/bridge-coordinator/dbconfig/models"
)

// Source is the database view of chains, RPC endpoints and tokens.
type Source interface {
	GetChains(ctx context.Context, activeOnly bool) ([]models.Chain, error)
	GetRPCsByChainID(ctx context.Context, chainID uint64, activeOnly bool) ([]models.RPC, error)
	GetTokens(ctx context.Context, activeOnly bool) ([]models.Token, error)
}

// Overlay merges the active chains, RPC endpoints and tokens of src into the configuration.
// Database values win for chain metadata and the RPC URL. Timeouts, limits and keys stay as
// configured. Tokens are added when the file does not already list them.
//
// Parameters:
// - ctx: the context for the queries.
// - src: the database.
//
// Returns:
// - error: a query error, or ErrInvalidConfig if the merged configuration is invalid.
func (c *Configuration) Overlay(ctx context.Context, src Source) error {
	chains, err := src.GetChains(ctx, true)
	if err != nil {
		return errors.Wrap(err, "failed to load chains")
	}

	index := make(map[uint64]int, len(c.Chains))
	for i, chain := range c.Chains {
		index[chain.ChainID] = i
	}

	for _, row := range chains {
		i, ok := index[row.ChainID]
		if !ok {
			c.Chains = append(c.Chains, Chain{ChainID: row.ChainID})
			i = len(c.Chains) - 1
			index[row.ChainID] = i
		}
		chain := &c.Chains[i]

		overlayString(&chain.Name, row.Name)
		overlayString(&chain.Type, strings.ToUpper(row.Type))
		overlayString(&chain.Class, row.Class)
		overlayString(&chain.NativeSymbol, row.NativeSymbol)
		if row.BridgeAddress.Valid {
			overlayString(&chain.BridgeAddress, row.BridgeAddress.String)
		}
		if row.BridgeVersion.Valid {
			overlayString(&chain.BridgeVersion, row.BridgeVersion.String)
		}

		rpcs, err := src.GetRPCsByChainID(ctx, row.ChainID, true)
		if err != nil {
			return errors.Wrapf(err, "failed to load rpcs of chain %d", row.ChainID)
		}
		if len(rpcs) > 0 {
			chain.RPC = rpcs[0].URL
		}
	}

	tokens, err := src.GetTokens(ctx, true)
	if err != nil {
		return errors.Wrap(err, "failed to load tokens")
	}
	known := make(map[string]bool, len(c.Tokens))
	for _, token := range c.Tokens {
		known[types.TokenKey(token.ChainID, token.Address)] = true
	}
	for _, row := range tokens {
		if known[types.TokenKey(row.ChainID, row.Address)] {
			continue
		}
		c.Tokens = append(c.Tokens, Token{
			ChainID:     row.ChainID,
			Address:     row.Address,
			Symbol:      row.Symbol,
			Decimals:    row.Decimals,
			HomeChainID: row.HomeChainID,
		})
	}

	c.applyDefaults()
	return c.Validate()
}

func overlayString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
