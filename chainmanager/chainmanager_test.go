package chainmanager

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/common/types"
	"github.com/ClipFinance/bridge-coordinator/metrics"
)

// fakeBackend implements every ledger component with overridable functions.
type fakeBackend struct {
	submitFn  func(ctx context.Context, req *types.SubmitRequest) (string, error)
	getTxFn   func(ctx context.Context, id string) (*types.BridgeTransaction, error)
	userTxsFn func(ctx context.Context, user string) ([]string, error)
	healthy   bool

	submits int32
	reads   int32
	closed  int32
}

func (f *fakeBackend) SubmitLock(ctx context.Context, req *types.SubmitRequest) (string, error) {
	atomic.AddInt32(&f.submits, 1)
	return f.submitFn(ctx, req)
}

func (f *fakeBackend) SubmitBurnAndMint(ctx context.Context, req *types.SubmitRequest) (string, error) {
	atomic.AddInt32(&f.submits, 1)
	return f.submitFn(ctx, req)
}

func (f *fakeBackend) GetTransaction(ctx context.Context, id string) (*types.BridgeTransaction, error) {
	atomic.AddInt32(&f.reads, 1)
	return f.getTxFn(ctx, id)
}

func (f *fakeBackend) GetUserTransactions(ctx context.Context, user string) ([]string, error) {
	atomic.AddInt32(&f.reads, 1)
	return f.userTxsFn(ctx, user)
}

func (f *fakeBackend) EstimateFee(context.Context, string, *big.Int) (*big.Int, error) {
	return big.NewInt(7), nil
}

func (f *fakeBackend) CheckFeeRequirements(context.Context, string) (*types.FeeRequirements, error) {
	return &types.FeeRequirements{HasBalance: true, HasAllowance: true}, nil
}

func (f *fakeBackend) Healthy() bool { return f.healthy }

func newLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func testConfig(chainID uint64, version string) *types.ChainConfig {
	return &types.ChainConfig{
		Name:                "chain-" + version,
		ChainType:           types.EVM,
		ChainID:             chainID,
		Class:               types.TestNet,
		BridgeVersion:       version,
		CallTimeout:         50 * time.Millisecond,
		ConfirmationTimeout: 50 * time.Millisecond,
		MaxRetries:          2,
	}
}

func buildChain(t *testing.T, cfg *types.ChainConfig, backend *fakeBackend) *Chain {
	t.Helper()
	caps, err := types.CapabilitiesForVersion(cfg.BridgeVersion)
	require.NoError(t, err)
	chain := NewChainBuilder(cfg, newLogger()).
		WithCapabilities(caps).
		WithTransferSubmitter(backend).
		WithTransactionReader(backend).
		WithFeeReader(backend).
		WithHealthChecker(backend).
		WithCloser(func() { atomic.AddInt32(&backend.closed, 1) }).
		Build()
	chain.guard.initialBackoff = time.Millisecond
	chain.guard.maxBackoff = 2 * time.Millisecond
	return chain
}

func TestReadRetriesTransientFailures(t *testing.T) {
	var calls int32
	backend := &fakeBackend{getTxFn: func(context.Context, string) (*types.BridgeTransaction, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil, errors.New("connection reset by peer")
		}
		return &types.BridgeTransaction{Status: types.StatusLocked}, nil
	}}
	chain := buildChain(t, testConfig(1, types.BridgeV2), backend)

	tx, err := chain.GetTransaction(context.Background(), "0x01")
	require.NoError(t, err)
	assert.Equal(t, types.StatusLocked, tx.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&backend.reads))
}

func TestReadGivesUpAfterMaxRetries(t *testing.T) {
	backend := &fakeBackend{getTxFn: func(context.Context, string) (*types.BridgeTransaction, error) {
		return nil, errors.New("503 service unavailable")
	}}
	chain := buildChain(t, testConfig(1, types.BridgeV2), backend)

	_, err := chain.GetTransaction(context.Background(), "0x01")
	require.Error(t, err)
	assert.True(t, errors.Is(err, bridgeerrors.ErrGateway))
	assert.False(t, bridgeerrors.IsTimeout(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&backend.reads))
}

func TestNotFoundIsNotRetried(t *testing.T) {
	backend := &fakeBackend{getTxFn: func(context.Context, string) (*types.BridgeTransaction, error) {
		return nil, bridgeerrors.ErrNotFound
	}}
	chain := buildChain(t, testConfig(1, types.BridgeV2), backend)

	_, err := chain.GetTransaction(context.Background(), "0x01")
	assert.True(t, errors.Is(err, bridgeerrors.ErrNotFound))
	assert.False(t, errors.Is(err, bridgeerrors.ErrGateway))
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.reads))
}

func TestReadTimeout(t *testing.T) {
	backend := &fakeBackend{getTxFn: func(ctx context.Context, _ string) (*types.BridgeTransaction, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	chain := buildChain(t, testConfig(1, types.BridgeV2), backend)

	_, err := chain.GetTransaction(context.Background(), "0x01")
	require.Error(t, err)
	assert.True(t, errors.Is(err, bridgeerrors.ErrGateway))
	assert.True(t, bridgeerrors.IsTimeout(err))
}

func TestSubmitIsNeverRetried(t *testing.T) {
	backend := &fakeBackend{submitFn: func(context.Context, *types.SubmitRequest) (string, error) {
		return "", errors.New("nonce too low")
	}}
	chain := buildChain(t, testConfig(1, types.BridgeV2), backend)

	_, err := chain.SubmitLock(context.Background(), &types.SubmitRequest{Amount: big.NewInt(1)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, bridgeerrors.ErrGateway))

	var gwErr *bridgeerrors.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "submitLock", gwErr.Op)
	assert.Equal(t, uint64(1), gwErr.ChainID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.submits))
}

func TestSubmitTimeout(t *testing.T) {
	backend := &fakeBackend{submitFn: func(ctx context.Context, _ *types.SubmitRequest) (string, error) {
		<-ctx.Done()
		return "", errors.Wrap(ctx.Err(), "waiting for receipt")
	}}
	chain := buildChain(t, testConfig(1, types.BridgeV2), backend)

	_, err := chain.SubmitBurnAndMint(context.Background(), &types.SubmitRequest{Amount: big.NewInt(1)})
	assert.True(t, errors.Is(err, bridgeerrors.ErrGateway))
	assert.True(t, bridgeerrors.IsTimeout(err))
}

func TestSubmitTimeoutAfterBroadcastKeepsTxHash(t *testing.T) {
	backend := &fakeBackend{submitFn: func(ctx context.Context, _ *types.SubmitRequest) (string, error) {
		<-ctx.Done()
		return "", &bridgeerrors.SubmittedError{ChainID: 1, TxHash: "0xfeed", Err: errors.Wrap(ctx.Err(), "waiting for receipt")}
	}}
	chain := buildChain(t, testConfig(1, types.BridgeV2), backend)

	_, err := chain.SubmitLock(context.Background(), &types.SubmitRequest{Amount: big.NewInt(1)})
	assert.True(t, errors.Is(err, bridgeerrors.ErrGateway))
	assert.True(t, bridgeerrors.IsTimeout(err))
	assert.True(t, errors.Is(err, bridgeerrors.ErrTransferUnconfirmed))

	var subErr *bridgeerrors.SubmittedError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, "0xfeed", subErr.TxHash)
}

func TestCancellationAfterBroadcastKeepsTxHash(t *testing.T) {
	backend := &fakeBackend{submitFn: func(ctx context.Context, _ *types.SubmitRequest) (string, error) {
		<-ctx.Done()
		return "", &bridgeerrors.SubmittedError{ChainID: 1, TxHash: "0xfeed", Err: ctx.Err()}
	}}
	cfg := testConfig(1, types.BridgeV2)
	cfg.ConfirmationTimeout = time.Minute
	chain := buildChain(t, cfg, backend)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := chain.SubmitLock(ctx, &types.SubmitRequest{Amount: big.NewInt(1)})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, errors.Is(err, bridgeerrors.ErrTransferUnconfirmed))
}

func TestCallerCancellationIsNotAGatewayFailure(t *testing.T) {
	backend := &fakeBackend{submitFn: func(ctx context.Context, _ *types.SubmitRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	cfg := testConfig(1, types.BridgeV2)
	cfg.ConfirmationTimeout = time.Minute
	chain := buildChain(t, cfg, backend)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := chain.SubmitLock(ctx, &types.SubmitRequest{Amount: big.NewInt(1)})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, bridgeerrors.ErrGateway))
}

func TestCapabilityGating(t *testing.T) {
	backend := &fakeBackend{userTxsFn: func(context.Context, string) ([]string, error) {
		return []string{"0x01"}, nil
	}}
	chain := buildChain(t, testConfig(1, types.BridgeV1), backend)

	_, err := chain.GetUserTransactions(context.Background(), "0xuser")
	assert.True(t, errors.Is(err, bridgeerrors.ErrCapabilityUnsupported))
	_, err = chain.EstimateFee(context.Background(), "0xtoken", big.NewInt(1))
	assert.True(t, errors.Is(err, bridgeerrors.ErrCapabilityUnsupported))
	assert.Zero(t, atomic.LoadInt32(&backend.reads))
}

func TestMissingComponent(t *testing.T) {
	cfg := testConfig(1, types.BridgeV2)
	caps, _ := types.CapabilitiesForVersion(types.BridgeV2)
	chain := NewChainBuilder(cfg, newLogger()).WithCapabilities(caps).Build()

	_, err := chain.SubmitLock(context.Background(), &types.SubmitRequest{})
	assert.True(t, errors.Is(err, bridgeerrors.ErrNotImplemented))
	assert.True(t, errors.Is(chain.InitHTTPPolling(context.Background(), nil), bridgeerrors.ErrNotImplemented))
	assert.True(t, chain.Healthy())
}

type fakeFactory struct {
	mu       sync.Mutex
	created  int
	backends []*fakeBackend
	t        *testing.T
}

func (f *fakeFactory) CreateChain(_ context.Context, cfg *types.ChainConfig, _ *logrus.Logger) (types.Ledger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	backend := &fakeBackend{healthy: true}
	f.backends = append(f.backends, backend)
	return buildChain(f.t, cfg, backend), nil
}

func TestRegistryAdd(t *testing.T) {
	factory := &fakeFactory{t: t}
	registry := NewChainRegistry(factory, newLogger())
	ctx := context.Background()

	cfg := testConfig(5, types.BridgeV2)
	require.NoError(t, registry.Add(ctx, cfg))
	require.NoError(t, registry.Add(ctx, testConfig(5, types.BridgeV2)))
	assert.Equal(t, 1, factory.created, "identical config is a no-op")

	changed := testConfig(5, types.BridgeV1)
	require.NoError(t, registry.Add(ctx, changed))
	assert.Equal(t, 2, factory.created)
	assert.Equal(t, int32(1), atomic.LoadInt32(&factory.backends[0].closed), "old ledger is closed on rebuild")
	assert.Equal(t, types.BridgeV1, registry.Get(5).Capabilities().Version)

	mainnet := testConfig(5, types.BridgeV1)
	mainnet.Class = types.MainNet
	err := registry.Add(ctx, mainnet)
	assert.True(t, errors.Is(err, bridgeerrors.ErrInvalidConfig))

	bad := testConfig(6, types.BridgeV2)
	bad.Class = "staging"
	assert.True(t, errors.Is(registry.Add(ctx, bad), bridgeerrors.ErrInvalidConfig))

	assert.Nil(t, registry.Get(99))
	assert.Equal(t, []uint64{5}, registry.IDs())

	registry.Close()
	assert.Equal(t, int32(1), atomic.LoadInt32(&factory.backends[1].closed))
	assert.Empty(t, registry.IDs())
}

func TestRegistryWithoutFactory(t *testing.T) {
	registry := NewChainRegistry(nil, newLogger())
	err := registry.Add(context.Background(), testConfig(1, types.BridgeV2))
	assert.True(t, errors.Is(err, bridgeerrors.ErrFactoryNotProvided))
}

type staticFactory map[uint64]*fakeBackend

func (f staticFactory) CreateChain(_ context.Context, cfg *types.ChainConfig, logger *logrus.Logger) (types.Ledger, error) {
	caps, err := types.CapabilitiesForVersion(cfg.BridgeVersion)
	if err != nil {
		return nil, err
	}
	backend := f[cfg.ChainID]
	chain := NewChainBuilder(cfg, logger).
		WithCapabilities(caps).
		WithTransferSubmitter(backend).
		WithTransactionReader(backend).
		WithFeeReader(backend).
		WithHealthChecker(backend).
		Build()
	chain.guard.initialBackoff = time.Millisecond
	return chain, nil
}

func TestGatewayUserEnumeration(t *testing.T) {
	ok := &fakeBackend{healthy: true, userTxsFn: func(context.Context, string) ([]string, error) {
		return []string{"0xbbb", "0xaaa"}, nil
	}}
	failing := &fakeBackend{healthy: false, userTxsFn: func(context.Context, string) ([]string, error) {
		return nil, errors.New("rpc down")
	}}
	legacy := &fakeBackend{healthy: true}

	registry := NewChainRegistry(staticFactory{1: ok, 2: failing, 3: legacy}, newLogger())
	ctx := context.Background()
	require.NoError(t, registry.Add(ctx, testConfig(1, types.BridgeV2)))
	require.NoError(t, registry.Add(ctx, testConfig(2, types.BridgeV2)))
	require.NoError(t, registry.Add(ctx, testConfig(3, types.BridgeV1)))

	m := metrics.New(prometheus.NewRegistry())
	gw := NewGateway(registry, newLogger(), m)

	res, err := gw.GetUserTransactions(ctx, "0xuser")
	require.NoError(t, err)
	assert.False(t, res.Complete)
	assert.Equal(t, []uint64{2, 3}, res.Degraded)
	assert.True(t, errors.Is(res.Failures[2], bridgeerrors.ErrGateway))
	assert.True(t, errors.Is(res.Failures[3], bridgeerrors.ErrCapabilityUnsupported))
	assert.Equal(t, []types.TxHandle{{ChainID: 1, ID: "0xbbb"}, {ChainID: 1, ID: "0xaaa"}}, res.Handles)

	assert.Equal(t, map[uint64]bool{1: true, 2: false, 3: true}, gw.Health())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayCalls.WithLabelValues("1", "getUserTransactions", "ok")))
}

func TestGatewayRouting(t *testing.T) {
	backend := &fakeBackend{
		submitFn: func(_ context.Context, req *types.SubmitRequest) (string, error) {
			return "0xfeed", nil
		},
		getTxFn: func(_ context.Context, id string) (*types.BridgeTransaction, error) {
			return &types.BridgeTransaction{Status: types.StatusPending}, nil
		},
	}
	registry := NewChainRegistry(staticFactory{10: backend}, newLogger())
	require.NoError(t, registry.Add(context.Background(), testConfig(10, types.BridgeV2)))
	gw := NewGateway(registry, newLogger(), nil)

	handle, err := gw.SubmitLock(context.Background(), &types.SubmitRequest{ChainID: 10, Amount: big.NewInt(1)})
	require.NoError(t, err)
	assert.Equal(t, types.TxHandle{ChainID: 10, ID: "0xfeed"}, handle)

	tx, err := gw.GetTransaction(context.Background(), handle)
	require.NoError(t, err)
	assert.Equal(t, handle, tx.Handle)

	_, err = gw.GetTransaction(context.Background(), types.TxHandle{ChainID: 11, ID: "0x01"})
	assert.True(t, errors.Is(err, bridgeerrors.ErrChainNotFound))

	fee, err := gw.EstimateFee(context.Background(), 10, "0xtoken", big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, int64(7), fee.Int64())

	caps, err := gw.Capabilities(10)
	require.NoError(t, err)
	assert.True(t, caps.FeeRequirements)
}
