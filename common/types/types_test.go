package types

import (
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFromCode(t *testing.T) {
	tests := []struct {
		code uint8
		kind TransferKind
		want BridgeStatus
	}{
		{0, Lock, StatusPending},
		{1, Lock, StatusLocked},
		{1, BurnAndMint, StatusBurned},
		{2, BurnAndMint, StatusReleased},
		{3, Lock, StatusCompleted},
		{4, Lock, StatusFailed},
	}
	for _, tt := range tests {
		got, err := StatusFromCode(tt.code, tt.kind)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := StatusFromCode(9, Lock)
	assert.True(t, errors.Is(err, ErrUnknownStatusCode))
}

func TestCanAdvanceTo(t *testing.T) {
	assert.True(t, StatusPending.CanAdvanceTo(StatusLocked))
	assert.True(t, StatusLocked.CanAdvanceTo(StatusReleased))
	assert.True(t, StatusReleased.CanAdvanceTo(StatusFailed))
	assert.True(t, StatusCompleted.CanAdvanceTo(StatusCompleted))

	assert.False(t, StatusReleased.CanAdvanceTo(StatusLocked))
	assert.False(t, StatusFailed.CanAdvanceTo(StatusCompleted))
	assert.False(t, StatusCompleted.CanAdvanceTo(StatusFailed))
	assert.False(t, StatusPending.CanAdvanceTo(BridgeStatus("BOGUS")))
}

func TestTxHandleRoundTrip(t *testing.T) {
	h := TxHandle{ChainID: 11155111, ID: "0xabc"}
	parsed, err := ParseTxHandle(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	for _, bad := range []string{"", "abc", "0:0xabc", "x:0xabc", "1:"} {
		_, err := ParseTxHandle(bad)
		assert.True(t, errors.Is(err, ErrInvalidHandle), bad)
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := &BridgeTransaction{Amount: big.NewInt(10), Fee: big.NewInt(1)}
	c := orig.Clone()
	c.Amount.SetInt64(99)
	assert.Equal(t, int64(10), orig.Amount.Int64())
}

func TestCapabilitiesForVersion(t *testing.T) {
	v1, err := CapabilitiesForVersion(BridgeV1)
	require.NoError(t, err)
	assert.False(t, v1.UserEnumeration)
	assert.True(t, v1.TransactionLookup)

	v2, err := CapabilitiesForVersion(BridgeV2)
	require.NoError(t, err)
	assert.True(t, v2.FeeEstimation)

	_, err = CapabilitiesForVersion("v9")
	assert.True(t, errors.Is(err, ErrUnknownBridgeVersion))
}
