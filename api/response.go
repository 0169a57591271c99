package api

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	Field        string `json:"field,omitempty"`
	HasBalance   *bool  `json:"hasBalance,omitempty"`
	HasAllowance *bool  `json:"hasAllowance,omitempty"`
	TxHash       string `json:"txHash,omitempty"`
}

func responseJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func badRequest(w http.ResponseWriter, field, message string) {
	responseJSON(w, &errorResponse{Status: "error", Field: field, Message: message}, http.StatusBadRequest)
}

// responseError maps an error of the coordinator to an HTTP status.
func responseError(w http.ResponseWriter, err error) {
	body := &errorResponse{Status: "error", Message: err.Error()}

	// A broadcast transfer must be looked up by its hash, not sent again.
	var subErr *bridgeerrors.SubmittedError
	if errors.As(err, &subErr) {
		body.TxHash = subErr.TxHash
	}

	var feeErr *bridgeerrors.FeeRequirementsError
	code := http.StatusInternalServerError
	switch {
	case errors.As(err, &feeErr):
		code = http.StatusPaymentRequired
		body.HasBalance = &feeErr.HasBalance
		body.HasAllowance = &feeErr.HasAllowance
	case errors.Is(err, bridgeerrors.ErrInvalidRequest):
		code = http.StatusBadRequest
	case errors.Is(err, bridgeerrors.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, bridgeerrors.ErrCapabilityUnsupported), errors.Is(err, bridgeerrors.ErrNotImplemented):
		code = http.StatusNotImplemented
	case errors.Is(err, bridgeerrors.ErrTimeout):
		code = http.StatusGatewayTimeout
	case errors.Is(err, bridgeerrors.ErrGateway):
		code = http.StatusBadGateway
	}
	responseJSON(w, body, code)
}
