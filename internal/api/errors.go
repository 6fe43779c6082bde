package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/atmx/vault-engine/internal/ledger"
	"github.com/atmx/vault-engine/internal/money"
	"github.com/atmx/vault-engine/internal/registry"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{registry.ErrVaultNotFound, http.StatusNotFound, "vault_not_found"},
	{ledger.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{ledger.ErrInvalidParameters, http.StatusBadRequest, "invalid_parameters"},
	{ledger.ErrBelowMinimumDeposit, http.StatusBadRequest, "below_minimum_deposit"},
	{ledger.ErrZeroSharesMinted, http.StatusBadRequest, "zero_shares_minted"},
	{ledger.ErrVaultNotActive, http.StatusConflict, "vault_not_active"},
	{ledger.ErrVaultClosed, http.StatusConflict, "vault_closed"},
	{ledger.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{ledger.ErrNavDepleted, http.StatusConflict, "nav_depleted"},
	{ledger.ErrInsufficientShares, http.StatusUnprocessableEntity, "insufficient_shares"},
	{ledger.ErrNothingToCollect, http.StatusUnprocessableEntity, "nothing_to_collect"},
	{money.ErrOverflow, http.StatusUnprocessableEntity, "overflow"},
	{money.ErrUnderflow, http.StatusUnprocessableEntity, "underflow"},
}

// writeErr maps a registry error onto an HTTP status. Unknown errors are
// logged and reported as 500 without their message.
func writeErr(w http.ResponseWriter, err error) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			writeError(w, err.Error(), e.code, e.status)
			return
		}
	}
	slog.Error("request failed", "err", err)
	writeError(w, "internal error", "internal", http.StatusInternalServerError)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})
}
