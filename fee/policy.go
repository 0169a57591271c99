// Package fee quotes transfer fees and checks the flat fee pre-funding of a user.
package fee

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/common/types"
	"github.com/ClipFinance/bridge-coordinator/common/units"
	"github.com/ClipFinance/bridge-coordinator/metrics"
)

// DefaultBps is the token fee rate used when the ledger cannot report a fee.
const DefaultBps uint64 = 250

// Ledger is the part of the gateway the fee policy reads from.
type Ledger interface {
	EstimateFee(ctx context.Context, chainID uint64, token string, amount *big.Int) (*big.Int, error)
	CheckFeeRequirements(ctx context.Context, chainID uint64, user string) (*types.FeeRequirements, error)
	Capabilities(chainID uint64) (types.Capabilities, error)
}

// Config holds the fee settings.
//
// Fields:
// - FlatFee: the flat pre-funding fee in stablecoin base units.
// - FlatFeeSymbol: the stablecoin symbol.
// - FlatFeeDecimals: the stablecoin decimals.
// - DefaultBps: the fallback token fee rate, DefaultBps when zero.
type Config struct {
	FlatFee         *big.Int
	FlatFeeSymbol   string
	FlatFeeDecimals uint8
	DefaultBps      uint64
}

// Policy computes fee quotes. A ledger failure never fails a quote, it degrades it to the
// default rate and marks it as a fallback.
type Policy struct {
	ledger  Ledger
	cfg     Config
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// NewPolicy creates a fee policy reading from ledger.
func NewPolicy(ledger Ledger, cfg Config, logger *logrus.Logger, m *metrics.Metrics) *Policy {
	if cfg.DefaultBps == 0 {
		cfg.DefaultBps = DefaultBps
	}
	if cfg.FlatFee == nil {
		cfg.FlatFee = new(big.Int)
	}
	return &Policy{ledger: ledger, cfg: cfg, logger: logger, metrics: m}
}

// Quote returns the flat fee and the token fee for transferring amount of token from chainID.
//
// Parameters:
// - ctx: the context for managing the request.
// - chainID: the source chain.
// - token: the token address on the source chain.
// - amount: the amount in token base units, must be positive.
//
// Returns:
// - *types.FeeQuote: the quote, with Source telling whether the token fee is a fallback.
// - error: ErrInvalidRequest for bad input, or the context error when ctx is done.
func (p *Policy) Quote(ctx context.Context, chainID uint64, token string, amount *big.Int) (*types.FeeQuote, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, bridgeerrors.InvalidRequest("amount must be positive")
	}
	caps, err := p.ledger.Capabilities(chainID)
	if err != nil {
		return nil, errors.Wrap(bridgeerrors.ErrInvalidRequest, err.Error())
	}

	quote := &types.FeeQuote{
		FlatFee:         new(big.Int).Set(p.cfg.FlatFee),
		FlatFeeSymbol:   p.cfg.FlatFeeSymbol,
		FlatFeeDecimals: p.cfg.FlatFeeDecimals,
	}

	if !caps.FeeEstimation {
		p.fallback(quote, amount, errors.Wrapf(bridgeerrors.ErrCapabilityUnsupported, "fee estimation on %s", caps.Version))
		return quote, nil
	}

	tokenFee, err := p.ledger.EstimateFee(ctx, chainID, token, amount)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "fee quote cancelled")
		}
		p.fallback(quote, amount, err)
		return quote, nil
	}
	if tokenFee == nil || tokenFee.Sign() < 0 {
		p.fallback(quote, amount, errors.New("ledger returned no fee"))
		return quote, nil
	}

	quote.TokenFee = tokenFee
	quote.Source = types.FeeSourceLedger
	p.metrics.FeeQuoted(string(quote.Source))
	return quote, nil
}

func (p *Policy) fallback(quote *types.FeeQuote, amount *big.Int, cause error) {
	quote.TokenFee = units.ApplyBps(amount, p.cfg.DefaultBps)
	quote.RateBps = p.cfg.DefaultBps
	quote.Source = types.FeeSourceFallback
	quote.FallbackReason = errors.Wrap(bridgeerrors.ErrFeeUnavailable, cause.Error())
	p.metrics.FeeQuoted(string(quote.Source))
	p.logger.WithFields(logrus.Fields{
		"bps":    p.cfg.DefaultBps,
		"reason": cause.Error(),
	}).Warn("Using fallback token fee")
}

// CheckRequirements returns whether user has pre-funded the flat fee on chainID. Balance and
// allowance are reported independently. On chains whose bridge does not charge a flat fee
// both checks pass with Enforced set to false.
func (p *Policy) CheckRequirements(ctx context.Context, chainID uint64, user string) (*types.FeeRequirements, error) {
	caps, err := p.ledger.Capabilities(chainID)
	if err != nil {
		return nil, errors.Wrap(bridgeerrors.ErrInvalidRequest, err.Error())
	}
	if !caps.FeeRequirements {
		return &types.FeeRequirements{HasBalance: true, HasAllowance: true}, nil
	}

	req, err := p.ledger.CheckFeeRequirements(ctx, chainID, user)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check fee requirements")
	}
	req.Enforced = true
	return req, nil
}
