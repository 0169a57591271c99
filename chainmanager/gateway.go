package chainmanager

import (
	"context"
	"math/big"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/common/types"
	"github.com/ClipFinance/bridge-coordinator/metrics"
)

// Gateway routes ledger calls to the chain that owns the token or handle. It implements
// types.Gateway on top of a Registry.
type Gateway struct {
	registry *Registry
	logger   *logrus.Logger
	metrics  *metrics.Metrics
}

// NewGateway creates a gateway over the chains of registry.
func NewGateway(registry *Registry, logger *logrus.Logger, m *metrics.Metrics) *Gateway {
	return &Gateway{registry: registry, logger: logger, metrics: m}
}

var _ types.Gateway = (*Gateway)(nil)

func (g *Gateway) ledger(chainID uint64) (types.Ledger, error) {
	ledger := g.registry.Get(chainID)
	if ledger == nil {
		return nil, errors.Wrapf(bridgeerrors.ErrChainNotFound, "chain %d", chainID)
	}
	return ledger, nil
}

func (g *Gateway) observe(chainID uint64, op string, start time.Time, err error) {
	g.metrics.GatewayCall(strconv.FormatUint(chainID, 10), op, err, time.Since(start))
}

// SubmitLock submits a lock on the request's source chain and returns its handle.
func (g *Gateway) SubmitLock(ctx context.Context, req *types.SubmitRequest) (types.TxHandle, error) {
	ledger, err := g.ledger(req.ChainID)
	if err != nil {
		return types.TxHandle{}, err
	}
	start := time.Now()
	id, err := ledger.SubmitLock(ctx, req)
	g.observe(req.ChainID, "submitLock", start, err)
	if err != nil {
		return types.TxHandle{}, err
	}
	return types.TxHandle{ChainID: req.ChainID, ID: id}, nil
}

// SubmitBurnAndMint submits a burn on the request's source chain and returns its handle.
func (g *Gateway) SubmitBurnAndMint(ctx context.Context, req *types.SubmitRequest) (types.TxHandle, error) {
	ledger, err := g.ledger(req.ChainID)
	if err != nil {
		return types.TxHandle{}, err
	}
	start := time.Now()
	id, err := ledger.SubmitBurnAndMint(ctx, req)
	g.observe(req.ChainID, "submitBurnAndMint", start, err)
	if err != nil {
		return types.TxHandle{}, err
	}
	return types.TxHandle{ChainID: req.ChainID, ID: id}, nil
}

// GetTransaction reads a transaction from the chain that issued the handle.
func (g *Gateway) GetTransaction(ctx context.Context, handle types.TxHandle) (*types.BridgeTransaction, error) {
	ledger, err := g.ledger(handle.ChainID)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	tx, err := ledger.GetTransaction(ctx, handle.ID)
	g.observe(handle.ChainID, "getTransaction", start, err)
	if err != nil {
		return nil, err
	}
	tx.Handle = handle
	return tx, nil
}

// GetUserTransactions enumerates a user's handles on every chain that accepts transfers.
// Chains that fail, or whose bridge cannot enumerate, are listed in Degraded and make the
// result incomplete. Destination-only chains are skipped.
func (g *Gateway) GetUserTransactions(ctx context.Context, user string) (*types.UserTransactions, error) {
	type chainResult struct {
		chainID uint64
		ids     []string
		err     error
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []chainResult
	)
	for _, chainID := range g.registry.IDs() {
		ledger := g.registry.Get(chainID)
		if ledger == nil {
			continue
		}
		caps := ledger.Capabilities()
		if !caps.Lock && !caps.BurnAndMint {
			continue
		}

		wg.Add(1)
		go func(chainID uint64, ledger types.Ledger) {
			defer wg.Done()
			start := time.Now()
			ids, err := ledger.GetUserTransactions(ctx, user)
			g.observe(chainID, "getUserTransactions", start, err)

			mu.Lock()
			results = append(results, chainResult{chainID: chainID, ids: ids, err: err})
			mu.Unlock()
		}(chainID, ledger)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "user enumeration cancelled")
	}

	sort.Slice(results, func(i, j int) bool { return results[i].chainID < results[j].chainID })

	out := &types.UserTransactions{Complete: true}
	for _, res := range results {
		if res.err != nil {
			out.Complete = false
			out.Degraded = append(out.Degraded, res.chainID)
			if out.Failures == nil {
				out.Failures = make(map[uint64]error)
			}
			out.Failures[res.chainID] = res.err
			g.logger.WithFields(logrus.Fields{
				"chain": res.chainID,
				"user":  user,
			}).WithError(res.err).Warn("User enumeration degraded")
			continue
		}
		for _, id := range res.ids {
			out.Handles = append(out.Handles, types.TxHandle{ChainID: res.chainID, ID: id})
		}
	}
	return out, nil
}

// EstimateFee reads the token fee from chainID.
func (g *Gateway) EstimateFee(ctx context.Context, chainID uint64, token string, amount *big.Int) (*big.Int, error) {
	ledger, err := g.ledger(chainID)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	fee, err := ledger.EstimateFee(ctx, token, amount)
	g.observe(chainID, "estimateFee", start, err)
	return fee, err
}

// CheckFeeRequirements reads the flat fee pre-funding state of user on chainID.
func (g *Gateway) CheckFeeRequirements(ctx context.Context, chainID uint64, user string) (*types.FeeRequirements, error) {
	ledger, err := g.ledger(chainID)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	req, err := ledger.CheckFeeRequirements(ctx, user)
	g.observe(chainID, "checkFeeRequirements", start, err)
	return req, err
}

// Capabilities returns the declared capabilities of chainID.
func (g *Gateway) Capabilities(chainID uint64) (types.Capabilities, error) {
	ledger, err := g.ledger(chainID)
	if err != nil {
		return types.Capabilities{}, err
	}
	return ledger.Capabilities(), nil
}

// Chain returns the metadata of a registered chain.
func (g *Gateway) Chain(chainID uint64) (types.Chain, bool) {
	return g.registry.Chain(chainID)
}

// Chains returns the metadata of every registered chain in ascending id order.
func (g *Gateway) Chains() []types.Chain {
	ids := g.registry.IDs()
	out := make([]types.Chain, 0, len(ids))
	for _, id := range ids {
		if c, ok := g.registry.Chain(id); ok {
			out = append(out, c)
		}
	}
	return out
}

// Health reports the connection state of every chain.
func (g *Gateway) Health() map[uint64]bool {
	out := make(map[uint64]bool)
	for _, id := range g.registry.IDs() {
		if ledger := g.registry.Get(id); ledger != nil {
			out[id] = ledger.Healthy()
		}
	}
	return out
}

// StartStatusPolling starts status polling on every chain that supports it. Chains without a
// notifier are skipped.
func (g *Gateway) StartStatusPolling(ctx context.Context, events chan types.StatusEvent) error {
	for _, id := range g.registry.IDs() {
		ledger := g.registry.Get(id)
		if ledger == nil {
			continue
		}
		if err := ledger.InitHTTPPolling(ctx, events); err != nil {
			if errors.Is(err, bridgeerrors.ErrNotImplemented) {
				continue
			}
			return errors.Wrapf(err, "failed to start status polling on chain %d", id)
		}
	}
	return nil
}

// StopStatusPolling stops status polling on every chain.
func (g *Gateway) StopStatusPolling() {
	for _, id := range g.registry.IDs() {
		if ledger := g.registry.Get(id); ledger != nil {
			ledger.ShutdownListeners()
		}
	}
}
