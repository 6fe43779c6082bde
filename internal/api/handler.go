// Package api provides the HTTP handlers for the vault engine: vault
// lifecycle, investor flows, manager operations and read-only views.
//
// Money values travel as integers in smallest units (10^8 per token) and
// fee rates as integer basis points.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atmx/vault-engine/internal/ledger"
	"github.com/atmx/vault-engine/internal/model"
	"github.com/atmx/vault-engine/internal/money"
	"github.com/atmx/vault-engine/internal/registry"
	"github.com/atmx/vault-engine/internal/store"
)

const defaultEventLimit = 100

// Handler serves the vault API on top of a registry.
type Handler struct {
	reg     *registry.Registry
	idem    store.Idempotency // optional
	idemTTL time.Duration
}

// NewHandler creates the API handler. Pass nil idem to disable
// Idempotency-Key support.
func NewHandler(reg *registry.Registry, idem store.Idempotency, idemTTL time.Duration) *Handler {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &Handler{reg: reg, idem: idem, idemTTL: idemTTL}
}

// Mount registers the vault routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/vaults", h.ListVaults)
	r.Post("/vaults", h.idempotent(h.CreateVault))
	r.Route("/vaults/{vaultID}", func(r chi.Router) {
		r.Get("/", h.GetVault)
		r.Post("/deposit", h.idempotent(h.Deposit))
		r.Post("/withdraw", h.idempotent(h.Withdraw))
		r.Post("/trade-results", h.idempotent(h.RecordTradeResult))
		r.Post("/fees/collect", h.idempotent(h.CollectFees))
		r.Post("/status", h.idempotent(h.SetStatus))
		r.Get("/investors", h.GetVaultInvestors)
		r.Get("/investors/{investor}", h.GetInvestorShares)
		r.Get("/performance", h.GetPerformance)
		r.Get("/history", h.GetNavHistory)
		r.Get("/events", h.GetEvents)
	})
	r.Get("/managers/{manager}/vaults", h.GetVaultsByManager)
	r.Get("/investors/{investor}/vaults", h.GetVaultsByInvestor)
	r.Get("/tvl", h.GetTotalValueLocked)
}

// --- Request/Response types ---

// CreateVaultRequest is the JSON body for vault creation. The caller
// becomes the vault manager.
type CreateVaultRequest struct {
	Caller         string      `json:"caller"`
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	ManagementFee  money.Rate  `json:"management_fee_bps"`
	PerformanceFee money.Rate  `json:"performance_fee_bps"`
	MinDeposit     money.Money `json:"min_deposit"`
}

// DepositRequest is the JSON body for POST /vaults/{id}/deposit.
type DepositRequest struct {
	Caller string      `json:"caller"`
	Amount money.Money `json:"amount"`
}

// WithdrawRequest is the JSON body for POST /vaults/{id}/withdraw.
type WithdrawRequest struct {
	Caller string      `json:"caller"`
	Shares money.Money `json:"shares"`
}

// TradeResultRequest is the JSON body for POST /vaults/{id}/trade-results.
// PnL is signed.
type TradeResultRequest struct {
	Caller string      `json:"caller"`
	PnL    money.Money `json:"pnl"`
}

// CollectFeesRequest is the JSON body for POST /vaults/{id}/fees/collect.
type CollectFeesRequest struct {
	Caller string `json:"caller"`
	Force  bool   `json:"force"`
}

// StatusRequest is the JSON body for POST /vaults/{id}/status.
type StatusRequest struct {
	Caller string       `json:"caller"`
	Status model.Status `json:"status"`
}

// DepositResponse reports the shares minted by a deposit.
type DepositResponse struct {
	VaultID      uint64      `json:"vault_id"`
	Investor     string      `json:"investor"`
	Amount       money.Money `json:"amount"`
	SharesMinted money.Money `json:"shares_minted"`
}

// WithdrawResponse reports the amount returned by a withdrawal.
type WithdrawResponse struct {
	VaultID        uint64      `json:"vault_id"`
	Investor       string      `json:"investor"`
	SharesBurned   money.Money `json:"shares_burned"`
	AmountReturned money.Money `json:"amount_returned"`
}

// TradeResultResponse reports the NAV after a trade result.
type TradeResultResponse struct {
	VaultID uint64 `json:"vault_id"`
	ledger.TradeOutcome
}

// CollectFeesResponse reports the fees charged.
type CollectFeesResponse struct {
	VaultID        uint64      `json:"vault_id"`
	ManagementFee  money.Money `json:"management_fee"`
	PerformanceFee money.Money `json:"performance_fee"`
	HighWaterMark  money.Money `json:"high_water_mark"`
}

// VaultIDsResponse lists vault ids for a manager or investor.
type VaultIDsResponse struct {
	Manager  string   `json:"manager,omitempty"`
	Investor string   `json:"investor,omitempty"`
	VaultIDs []uint64 `json:"vault_ids"`
}

// TVLResponse adds a decimal token rendering to the integer total.
type TVLResponse struct {
	model.TotalValueLocked
	TotalValueTokens decimal.Decimal `json:"total_value_tokens"`
}

// --- Mutations ---

// CreateVault handles POST /api/v1/vaults
func (h *Handler) CreateVault(w http.ResponseWriter, r *http.Request) {
	var req CreateVaultRequest
	if !decode(w, r, &req) {
		return
	}
	info, err := h.reg.Create(r.Context(), ledger.CreateParams{
		Manager:        req.Caller,
		Name:           req.Name,
		Description:    req.Description,
		ManagementFee:  req.ManagementFee,
		PerformanceFee: req.PerformanceFee,
		MinDeposit:     req.MinDeposit,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// Deposit handles POST /api/v1/vaults/{vaultID}/deposit
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	var req DepositRequest
	if !decode(w, r, &req) {
		return
	}
	minted, err := h.reg.Deposit(r.Context(), id, req.Caller, req.Amount)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DepositResponse{
		VaultID:      id,
		Investor:     req.Caller,
		Amount:       req.Amount,
		SharesMinted: minted,
	})
}

// Withdraw handles POST /api/v1/vaults/{vaultID}/withdraw
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	var req WithdrawRequest
	if !decode(w, r, &req) {
		return
	}
	amount, err := h.reg.Withdraw(r.Context(), id, req.Caller, req.Shares)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WithdrawResponse{
		VaultID:        id,
		Investor:       req.Caller,
		SharesBurned:   req.Shares,
		AmountReturned: amount,
	})
}

// RecordTradeResult handles POST /api/v1/vaults/{vaultID}/trade-results
func (h *Handler) RecordTradeResult(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	var req TradeResultRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := h.reg.RecordTradeResult(r.Context(), id, req.Caller, req.PnL)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TradeResultResponse{VaultID: id, TradeOutcome: out})
}

// CollectFees handles POST /api/v1/vaults/{vaultID}/fees/collect
func (h *Handler) CollectFees(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	var req CollectFeesRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.reg.CollectFees(r.Context(), id, req.Caller, req.Force)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CollectFeesResponse{
		VaultID:        id,
		ManagementFee:  res.ManagementFee,
		PerformanceFee: res.PerformanceFee,
		HighWaterMark:  res.HighWaterMark,
	})
}

// SetStatus handles POST /api/v1/vaults/{vaultID}/status
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	var req StatusRequest
	if !decode(w, r, &req) {
		return
	}
	info, err := h.reg.SetStatus(r.Context(), id, req.Caller, req.Status)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// --- Views ---

// ListVaults handles GET /api/v1/vaults
// Optionally filtered by ?status=<active|paused|closed>.
func (h *Handler) ListVaults(w http.ResponseWriter, r *http.Request) {
	vaults, err := h.reg.ListVaults()
	if err != nil {
		writeErr(w, err)
		return
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := model.ParseStatus(s)
		if err != nil {
			writeError(w, err.Error(), "invalid_parameters", http.StatusBadRequest)
			return
		}
		filtered := []model.VaultInfo{}
		for _, v := range vaults {
			if v.Status == status {
				filtered = append(filtered, v)
			}
		}
		vaults = filtered
	}
	writeJSON(w, http.StatusOK, vaults)
}

// GetVault handles GET /api/v1/vaults/{vaultID}
func (h *Handler) GetVault(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	info, err := h.reg.GetVaultInfo(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// GetInvestorShares handles GET /api/v1/vaults/{vaultID}/investors/{investor}
func (h *Handler) GetInvestorShares(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	pos, err := h.reg.GetInvestorShares(id, chi.URLParam(r, "investor"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// GetVaultInvestors handles GET /api/v1/vaults/{vaultID}/investors
func (h *Handler) GetVaultInvestors(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	positions, err := h.reg.GetVaultInvestors(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

// GetPerformance handles GET /api/v1/vaults/{vaultID}/performance
func (h *Handler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	p, err := h.reg.GetVaultPerformance(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetNavHistory handles GET /api/v1/vaults/{vaultID}/history
func (h *Handler) GetNavHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	samples, err := h.reg.GetNavHistory(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

// GetEvents handles GET /api/v1/vaults/{vaultID}/events?limit=N
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := vaultID(w, r)
	if !ok {
		return
	}
	limit := defaultEventLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, "limit must be a positive integer", "invalid_parameters", http.StatusBadRequest)
			return
		}
		limit = n
	}
	events, err := h.reg.GetVaultEvents(r.Context(), id, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// GetVaultsByManager handles GET /api/v1/managers/{manager}/vaults
func (h *Handler) GetVaultsByManager(w http.ResponseWriter, r *http.Request) {
	manager := chi.URLParam(r, "manager")
	writeJSON(w, http.StatusOK, VaultIDsResponse{
		Manager:  manager,
		VaultIDs: h.reg.GetVaultsByManager(manager),
	})
}

// GetVaultsByInvestor handles GET /api/v1/investors/{investor}/vaults
func (h *Handler) GetVaultsByInvestor(w http.ResponseWriter, r *http.Request) {
	investor := chi.URLParam(r, "investor")
	writeJSON(w, http.StatusOK, VaultIDsResponse{
		Investor: investor,
		VaultIDs: h.reg.GetVaultsByInvestor(investor),
	})
}

// GetTotalValueLocked handles GET /api/v1/tvl
func (h *Handler) GetTotalValueLocked(w http.ResponseWriter, r *http.Request) {
	tvl, err := h.reg.GetTotalValueLocked()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TVLResponse{
		TotalValueLocked: tvl,
		TotalValueTokens: tvl.TotalValue.Decimal(),
	})
}

// --- Helpers ---

func vaultID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "vaultID"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, "invalid vault id", "invalid_parameters", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, "invalid request body", "invalid_request", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
