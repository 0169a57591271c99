package api

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/pkg/errors"

	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/common/types"
	"github.com/ClipFinance/bridge-coordinator/common/units"
)

// transferBody is the body of POST /transfers. Amount is a decimal string in token units.
type transferBody struct {
	ChainID     uint64 `json:"chainId"`
	Token       string `json:"token"`
	Amount      string `json:"amount"`
	DestChain   uint64 `json:"destChain"`
	DestAddress string `json:"destAddress"`
	Sender      string `json:"sender"`
}

type transactionView struct {
	Handle        string             `json:"handle"`
	User          string             `json:"user"`
	Token         string             `json:"token"`
	Symbol        string             `json:"symbol,omitempty"`
	Amount        string             `json:"amount"`
	Fee           string             `json:"fee"`
	SourceChain   uint64             `json:"sourceChain"`
	TargetChain   uint64             `json:"targetChain"`
	TargetAddress string             `json:"targetAddress"`
	CreatedAt     time.Time          `json:"createdAt"`
	Status        types.BridgeStatus `json:"status"`
	Kind          types.TransferKind `json:"kind"`
	Indexed       bool               `json:"indexed"`
	RefreshError  string             `json:"refreshError,omitempty"`
	TrackError    string             `json:"trackError,omitempty"`
}

type failureView struct {
	Handle string           `json:"handle"`
	Error  string           `json:"error"`
	Cached *transactionView `json:"cached,omitempty"`
}

type userTransfersView struct {
	Transactions     []*transactionView `json:"transactions"`
	Failures         []failureView      `json:"failures"`
	Complete         bool               `json:"complete"`
	Degraded         []uint64           `json:"degraded,omitempty"`
	EnumerationError string             `json:"enumerationError,omitempty"`
}

type quoteView struct {
	FlatFee        string `json:"flatFee"`
	FlatFeeSymbol  string `json:"flatFeeSymbol"`
	TokenFee       string `json:"tokenFee"`
	TokenSymbol    string `json:"tokenSymbol"`
	RateBps        uint64 `json:"rateBps,omitempty"`
	Source         string `json:"source"`
	FallbackReason string `json:"fallbackReason,omitempty"`
}

type requirementsView struct {
	HasBalance   bool   `json:"hasBalance"`
	HasAllowance bool   `json:"hasAllowance"`
	Satisfied    bool   `json:"satisfied"`
	Enforced     bool   `json:"enforced"`
	Balance      string `json:"balance,omitempty"`
	Allowance    string `json:"allowance,omitempty"`
}

type chainView struct {
	types.Chain
	Capabilities types.Capabilities `json:"capabilities"`
	Healthy      bool               `json:"healthy"`
}

type healthView struct {
	Status string          `json:"status"`
	Chains map[uint64]bool `json:"chains"`
}

// view renders a transaction with amounts in token units when the token is known and in
// base units otherwise.
func (s *Server) view(tx *types.BridgeTransaction) *transactionView {
	if tx == nil {
		return nil
	}
	v := &transactionView{
		Handle:        tx.Handle.String(),
		User:          tx.User,
		Token:         tx.Token,
		Amount:        units.FromBaseUnits(tx.Amount, 0),
		Fee:           units.FromBaseUnits(tx.Fee, 0),
		SourceChain:   tx.SourceChain,
		TargetChain:   tx.TargetChain,
		TargetAddress: tx.TargetAddress,
		CreatedAt:     tx.CreatedAt,
		Status:        tx.Status,
		Kind:          tx.Kind,
		Indexed:       true,
	}
	if token, ok := s.tokens.Lookup(tx.SourceChain, tx.Token); ok {
		v.Symbol = token.Symbol
		v.Amount = units.FromBaseUnits(tx.Amount, token.Decimals)
		v.Fee = units.FromBaseUnits(tx.Fee, token.Decimals)
	}
	return v
}

func (s *Server) initiateTransfer(w http.ResponseWriter, r *http.Request) {
	var body transferBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "", "Cannot unmarshal input JSON")
		return
	}

	token, ok := s.tokens.Lookup(body.ChainID, body.Token)
	if !ok {
		badRequest(w, "token", "Unknown token on the source chain")
		return
	}
	amount, err := units.ToBaseUnits(body.Amount, token.Decimals)
	if err != nil {
		badRequest(w, "amount", err.Error())
		return
	}

	handle, err := s.coordinator.InitiateTransfer(r.Context(), &types.TransferRequest{
		Token:       token,
		Amount:      amount,
		SourceChain: body.ChainID,
		DestChain:   body.DestChain,
		DestAddress: body.DestAddress,
		Sender:      body.Sender,
	})
	if err != nil && handle.IsZero() {
		responseError(w, err)
		return
	}

	// A handle means the transfer is on the ledger, even if tracking it failed.
	tx, ok := s.coordinator.Cached(handle)
	if !ok {
		tx = &types.BridgeTransaction{Handle: handle}
	}
	v := s.view(tx)
	if err != nil {
		s.logger.WithField("handle", handle.String()).WithError(err).Warn("Transfer submitted but not tracked")
		v.TrackError = err.Error()
	}
	responseJSON(w, v, http.StatusCreated)
}

func (s *Server) getTransfer(w http.ResponseWriter, r *http.Request) {
	handle, err := types.ParseTxHandle(chi.URLParam(r, "handle"))
	if err != nil {
		badRequest(w, "handle", err.Error())
		return
	}

	tx, err := s.coordinator.RefreshStatus(r.Context(), handle)
	if err == nil {
		responseJSON(w, s.view(tx), http.StatusOK)
		return
	}

	cached, ok := s.coordinator.Cached(handle)
	if !ok {
		responseError(w, err)
		return
	}
	// The last known state is served together with the reason it could not be refreshed.
	v := s.view(cached)
	v.Indexed = !errors.Is(err, bridgeerrors.ErrNotFound)
	v.RefreshError = err.Error()
	responseJSON(w, v, http.StatusOK)
}

func (s *Server) getUserTransfers(w http.ResponseWriter, r *http.Request) {
	result, err := s.coordinator.RefreshAll(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		responseError(w, err)
		return
	}

	out := &userTransfersView{
		Transactions: make([]*transactionView, 0, len(result.Transactions)),
		Failures:     make([]failureView, 0, len(result.Failures)),
		Complete:     result.Complete,
		Degraded:     result.Degraded,
	}
	for _, tx := range result.Transactions {
		out.Transactions = append(out.Transactions, s.view(tx))
	}
	for _, failure := range result.Failures {
		out.Failures = append(out.Failures, failureView{
			Handle: failure.Handle.String(),
			Error:  failure.Err.Error(),
			Cached: s.view(failure.Cached),
		})
	}
	if result.EnumerationErr != nil {
		out.EnumerationError = result.EnumerationErr.Error()
	}
	responseJSON(w, out, http.StatusOK)
}

func (s *Server) quoteFee(w http.ResponseWriter, r *http.Request) {
	chainID, ok := chainParam(w, r)
	if !ok {
		return
	}
	token, ok := s.tokens.Lookup(chainID, r.URL.Query().Get("token"))
	if !ok {
		badRequest(w, "token", "Unknown token on the source chain")
		return
	}
	amount, err := units.ToBaseUnits(r.URL.Query().Get("amount"), token.Decimals)
	if err != nil {
		badRequest(w, "amount", err.Error())
		return
	}

	quote, err := s.coordinator.QuoteFee(r.Context(), chainID, token.Address, amount)
	if err != nil {
		responseError(w, err)
		return
	}

	out := &quoteView{
		FlatFee:       units.FromBaseUnits(quote.FlatFee, quote.FlatFeeDecimals),
		FlatFeeSymbol: quote.FlatFeeSymbol,
		TokenFee:      units.FromBaseUnits(quote.TokenFee, token.Decimals),
		TokenSymbol:   token.Symbol,
		RateBps:       quote.RateBps,
		Source:        string(quote.Source),
	}
	if quote.FallbackReason != nil {
		out.FallbackReason = quote.FallbackReason.Error()
	}
	responseJSON(w, out, http.StatusOK)
}

func (s *Server) feeRequirements(w http.ResponseWriter, r *http.Request) {
	chainID, ok := chainParam(w, r)
	if !ok {
		return
	}

	req, err := s.coordinator.CheckFeeRequirements(r.Context(), chainID, r.URL.Query().Get("user"))
	if err != nil {
		responseError(w, err)
		return
	}
	responseJSON(w, &requirementsView{
		HasBalance:   req.HasBalance,
		HasAllowance: req.HasAllowance,
		Satisfied:    req.Satisfied(),
		Enforced:     req.Enforced,
		Balance:      bigString(req.Balance),
		Allowance:    bigString(req.Allowance),
	}, http.StatusOK)
}

func (s *Server) listChains(w http.ResponseWriter, _ *http.Request) {
	health := s.chains.Health()
	chains := s.chains.Chains()

	out := make([]chainView, 0, len(chains))
	for _, chain := range chains {
		caps, err := s.chains.Capabilities(chain.ChainID)
		if err != nil {
			s.logger.WithField("chain", chain.ChainID).WithError(err).Warn("Chain without capabilities")
		}
		out = append(out, chainView{Chain: chain, Capabilities: caps, Healthy: health[chain.ChainID]})
	}
	responseJSON(w, out, http.StatusOK)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	out := &healthView{Status: "ok", Chains: s.chains.Health()}
	code := http.StatusOK
	for _, healthy := range out.Chains {
		if !healthy {
			out.Status = "degraded"
			code = http.StatusServiceUnavailable
			break
		}
	}
	responseJSON(w, out, code)
}

func chainParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	chainID, err := strconv.ParseUint(r.URL.Query().Get("chainId"), 10, 64)
	if err != nil || chainID == 0 {
		badRequest(w, "chainId", "chainId must be a positive integer")
		return 0, false
	}
	return chainID, true
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}
