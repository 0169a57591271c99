package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/common/types"
)

func TestRegistry(t *testing.T) {
	usdc := types.Token{ChainID: 1, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC", Decimals: 6, HomeChainID: 1}
	wrapped := types.Token{ChainID: 56, Address: "0x00000000000000000000000000000000000000c1", Symbol: "USDC", Decimals: 18, HomeChainID: 1}

	r, err := NewRegistry(usdc, wrapped)
	require.NoError(t, err)

	token, ok := r.Lookup(1, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	require.True(t, ok)
	assert.Equal(t, "USDC", token.Symbol)

	_, err = r.Resolve(1, "0x00000000000000000000000000000000000000c1")
	assert.ErrorIs(t, err, bridgeerrors.ErrTokenNotFound)

	require.NoError(t, r.Add(usdc))

	moved := wrapped
	moved.HomeChainID = 56
	assert.ErrorIs(t, r.Add(moved), bridgeerrors.ErrInvalidConfig)

	assert.ErrorIs(t, r.Add(types.Token{ChainID: 1, Address: "0x01"}), bridgeerrors.ErrInvalidConfig)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, uint64(1), list[0].ChainID)
}
