package fee

import (
	"context"
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/common/types"
	"github.com/ClipFinance/bridge-coordinator/common/units"
	"github.com/ClipFinance/bridge-coordinator/metrics"
)

type fakeLedger struct {
	version  string
	fee      *big.Int
	feeErr   error
	req      *types.FeeRequirements
	reqErr   error
	feeCalls int
}

func (f *fakeLedger) EstimateFee(_ context.Context, _ uint64, _ string, _ *big.Int) (*big.Int, error) {
	f.feeCalls++
	return f.fee, f.feeErr
}

func (f *fakeLedger) CheckFeeRequirements(_ context.Context, _ uint64, _ string) (*types.FeeRequirements, error) {
	return f.req, f.reqErr
}

func (f *fakeLedger) Capabilities(chainID uint64) (types.Capabilities, error) {
	if chainID != 1 {
		return types.Capabilities{}, bridgeerrors.ErrChainNotFound
	}
	return types.CapabilitiesForVersion(f.version)
}

func newPolicy(t *testing.T, ledger Ledger) (*Policy, *metrics.Metrics) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	m := metrics.New(prometheus.NewRegistry())
	flat, err := units.ToBaseUnits("3", 6)
	require.NoError(t, err)
	return NewPolicy(ledger, Config{FlatFee: flat, FlatFeeSymbol: "USDT", FlatFeeDecimals: 6}, logger, m), m
}

func tokens(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := units.ToBaseUnits(s, 18)
	require.NoError(t, err)
	return v
}

func TestQuoteFromLedger(t *testing.T) {
	ledger := &fakeLedger{version: types.BridgeV2, fee: tokens(t, "10")}
	p, m := newPolicy(t, ledger)

	q, err := p.Quote(context.Background(), 1, "0x01", tokens(t, "1000.0"))
	require.NoError(t, err)
	assert.Equal(t, types.FeeSourceLedger, q.Source)
	assert.Nil(t, q.FallbackReason)
	assert.Equal(t, "10", units.FromBaseUnits(q.TokenFee, 18))
	assert.Equal(t, "3", units.FromBaseUnits(q.FlatFee, q.FlatFeeDecimals))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeeQuotes.WithLabelValues("ledger")))
}

func TestQuoteFallsBackOnLedgerError(t *testing.T) {
	ledger := &fakeLedger{version: types.BridgeV2, feeErr: bridgeerrors.NewGatewayError(1, "estimateFee", bridgeerrors.ErrTimeout)}
	p, m := newPolicy(t, ledger)

	q, err := p.Quote(context.Background(), 1, "0x01", tokens(t, "1000.0"))
	require.NoError(t, err)
	assert.True(t, q.IsFallback())
	assert.Equal(t, uint64(250), q.RateBps)
	assert.Equal(t, "25", units.FromBaseUnits(q.TokenFee, 18))
	assert.True(t, errors.Is(q.FallbackReason, bridgeerrors.ErrFeeUnavailable))
	// the flat fee is reported on its own, never folded into the token fee
	assert.Equal(t, "3", units.FromBaseUnits(q.FlatFee, 6))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeeQuotes.WithLabelValues("fallback")))
}

func TestQuoteFallbackIsExactRate(t *testing.T) {
	ledger := &fakeLedger{version: types.BridgeV2, feeErr: errors.New("execution reverted")}
	p, _ := newPolicy(t, ledger)

	for _, amount := range []int64{1, 39, 40, 10000, 123456789} {
		q, err := p.Quote(context.Background(), 1, "0x01", big.NewInt(amount))
		require.NoError(t, err)
		assert.Equal(t, amount*250/10000, q.TokenFee.Int64(), "amount %d", amount)
	}
}

func TestQuoteWithoutEstimationCapability(t *testing.T) {
	ledger := &fakeLedger{version: types.BridgeV1, fee: big.NewInt(1)}
	p, _ := newPolicy(t, ledger)

	q, err := p.Quote(context.Background(), 1, "0x01", tokens(t, "1000.0"))
	require.NoError(t, err)
	assert.True(t, q.IsFallback())
	assert.True(t, errors.Is(q.FallbackReason, bridgeerrors.ErrFeeUnavailable))
	assert.Zero(t, ledger.feeCalls)
}

func TestQuoteRejectsBadInput(t *testing.T) {
	p, _ := newPolicy(t, &fakeLedger{version: types.BridgeV2})

	_, err := p.Quote(context.Background(), 1, "0x01", big.NewInt(0))
	assert.True(t, errors.Is(err, bridgeerrors.ErrInvalidRequest))

	_, err = p.Quote(context.Background(), 1, "0x01", nil)
	assert.True(t, errors.Is(err, bridgeerrors.ErrInvalidRequest))

	_, err = p.Quote(context.Background(), 2, "0x01", big.NewInt(10))
	assert.True(t, errors.Is(err, bridgeerrors.ErrInvalidRequest))
}

func TestCheckRequirements(t *testing.T) {
	ledger := &fakeLedger{
		version: types.BridgeV2,
		req:     &types.FeeRequirements{HasBalance: true, HasAllowance: false, Balance: big.NewInt(5_000_000), Allowance: big.NewInt(0)},
	}
	p, _ := newPolicy(t, ledger)

	req, err := p.CheckRequirements(context.Background(), 1, "0xuser")
	require.NoError(t, err)
	assert.True(t, req.HasBalance)
	assert.False(t, req.HasAllowance)
	assert.True(t, req.Enforced)
	assert.False(t, req.Satisfied())

	ledger.req, ledger.reqErr = nil, bridgeerrors.NewGatewayError(1, "checkFeeRequirements", errors.New("rpc down"))
	_, err = p.CheckRequirements(context.Background(), 1, "0xuser")
	assert.True(t, errors.Is(err, bridgeerrors.ErrGateway))
}

func TestCheckRequirementsNotEnforced(t *testing.T) {
	p, _ := newPolicy(t, &fakeLedger{version: types.BridgeV1})

	req, err := p.CheckRequirements(context.Background(), 1, "0xuser")
	require.NoError(t, err)
	assert.True(t, req.Satisfied())
	assert.False(t, req.Enforced)
}
