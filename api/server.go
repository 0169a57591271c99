// Package api exposes the coordinator over HTTP.
package api

import (
	"context"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ClipFinance/bridge-coordinator/common/types"
	"github.com/ClipFinance/bridge-coordinator/tracker"
)

const requestTimeout = 60 * time.Second

// Coordinator is the part of the coordinator served over HTTP.
type Coordinator interface {
	InitiateTransfer(ctx context.Context, req *types.TransferRequest) (types.TxHandle, error)
	RefreshStatus(ctx context.Context, handle types.TxHandle) (*types.BridgeTransaction, error)
	Cached(handle types.TxHandle) (*types.BridgeTransaction, bool)
	RefreshAll(ctx context.Context, user string) (*tracker.RefreshResult, error)
	QuoteFee(ctx context.Context, chainID uint64, token string, amount *big.Int) (*types.FeeQuote, error)
	CheckFeeRequirements(ctx context.Context, chainID uint64, user string) (*types.FeeRequirements, error)
}

// Chains lists the registered chains and their health.
type Chains interface {
	Chains() []types.Chain
	Capabilities(chainID uint64) (types.Capabilities, error)
	Health() map[uint64]bool
}

// Tokens resolves token addresses to their metadata.
type Tokens interface {
	Lookup(chainID uint64, address string) (types.Token, bool)
}

// Server serves the bridge API.
type Server struct {
	coordinator   Coordinator
	chains        Chains
	tokens        Tokens
	gatherer      prometheus.Gatherer
	logger        *logrus.Logger
	submitTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithSubmitTimeout bounds POST /transfers. Without it the route has no deadline of its own
// and submissions are bounded by the confirmation timeout of their chain.
func WithSubmitTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.submitTimeout = timeout
	}
}

// NewServer creates an API server. A nil gatherer disables /metrics.
func NewServer(coordinator Coordinator, chains Chains, tokens Tokens, gatherer prometheus.Gatherer, logger *logrus.Logger, opts ...Option) *Server {
	s := &Server{
		coordinator: coordinator,
		chains:      chains,
		tokens:      tokens,
		gatherer:    gatherer,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the HTTP handler of the API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Options("/*", corsHeaders)

	r.Group(func(r chi.Router) {
		if s.submitTimeout > 0 {
			r.Use(middleware.Timeout(s.submitTimeout))
		}
		r.Post("/transfers", s.initiateTransfer)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/transfers/{handle}", s.getTransfer)
		r.Get("/users/{address}/transfers", s.getUserTransfers)
		r.Get("/fees/quote", s.quoteFee)
		r.Get("/fees/requirements", s.feeRequirements)
		r.Get("/chains", s.listChains)
	})

	r.Get("/health", s.health)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.WithFields(logrus.Fields{
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    ww.Status(),
			"took":      time.Since(start).String(),
			"requestId": middleware.GetReqID(r.Context()),
		}).Debug("HTTP request")
	})
}

func corsHeaders(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Origin, X-Requested-With")
	w.WriteHeader(http.StatusNoContent)
}
