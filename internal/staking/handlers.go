// HTTP handlers for the ledger engine. Transport carries a caller
// identity in each request body; verifying that identity (signatures,
// sessions) belongs to the layer in front of this service. The engine
// enforces authorization against it.

package staking

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/port3/staking-engine/internal/amount"
	"github.com/port3/staking-engine/internal/metrics"
	"github.com/port3/staking-engine/internal/model"
	"github.com/port3/staking-engine/internal/token"
)

// MountRoutes registers all engine routes on a chi router.
func (s *Service) MountRoutes(r chi.Router) {
	r.Post("/initialize", s.HandleInitialize)
	r.Get("/config", s.HandleGetConfig)

	r.Post("/pools", s.HandleAddPool)
	r.Get("/pools", s.HandleListPools)
	r.Get("/pools/{poolID}", s.HandleGetPool)
	r.Post("/pools/{poolID}/deposit", s.HandleDeposit)
	r.Post("/pools/{poolID}/withdraw", s.HandleWithdraw)
	r.Post("/pools/{poolID}/emergency-withdraw", s.HandleEmergencyWithdraw)
	r.Get("/pools/{poolID}/positions/{user}", s.HandleGetPosition)
	r.Get("/pools/{poolID}/ledger", s.HandlePoolLedger)
	r.Get("/users/{user}/ledger", s.HandleUserLedger)

	r.Post("/admin/pause", s.HandleSetPaused)
	r.Post("/admin/fee", s.HandleSetFee)
	r.Post("/admin/reward-threshold", s.HandleSetRewardThreshold)
	r.Post("/admin/vault", s.HandleSetVaultContract)
}

// --- Request types ---

// InitializeRequest is the JSON body for POST /initialize.
type InitializeRequest struct {
	Owner string `json:"owner"`
}

// AddPoolRequest is the JSON body for POST /pools.
type AddPoolRequest struct {
	Caller          string        `json:"caller"`
	LPToken         string        `json:"lp_token"`
	RewardPerBlock  amount.Amount `json:"reward_per_block"`
	LockPeriod      int64         `json:"lock_period"`  // seconds
	UnlockPeriod    int64         `json:"unlock_period"` // seconds
	EmergencyEnable bool          `json:"emergency_enable"`
}

// DepositRequest is the JSON body for POST /pools/{poolID}/deposit.
type DepositRequest struct {
	User   string        `json:"user"`
	Amount amount.Amount `json:"amount"`
}

// WithdrawRequest is the JSON body for POST /pools/{poolID}/withdraw.
type WithdrawRequest struct {
	User   string        `json:"user"`
	Amount amount.Amount `json:"amount"`
}

// EmergencyWithdrawRequest is the JSON body for
// POST /pools/{poolID}/emergency-withdraw.
type EmergencyWithdrawRequest struct {
	User string `json:"user"`
}

// PauseRequest is the JSON body for POST /admin/pause.
type PauseRequest struct {
	Caller string `json:"caller"`
	Paused bool   `json:"paused"`
}

// FeeRequest is the JSON body for POST /admin/fee.
type FeeRequest struct {
	Caller         string `json:"caller"`
	FeePerThousand int64  `json:"fee_per_thousand"`
	FeeAccount     string `json:"fee_account"`
}

// ThresholdRequest is the JSON body for POST /admin/reward-threshold.
type ThresholdRequest struct {
	Caller          string        `json:"caller"`
	RewardThreshold amount.Amount `json:"reward_threshold"`
}

// VaultRequest is the JSON body for POST /admin/vault.
type VaultRequest struct {
	Caller        string `json:"caller"`
	VaultContract string `json:"vault_contract"`
}

// --- Handlers ---

// HandleInitialize handles POST /api/v1/initialize.
func (s *Service) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	var req InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "bad_request", "invalid request body", http.StatusBadRequest)
		return
	}

	cfg, err := s.Initialize(r.Context(), req.Owner)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

// HandleGetConfig handles GET /api/v1/config.
func (s *Service) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.Config(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// HandleAddPool handles POST /api/v1/pools.
func (s *Service) HandleAddPool(w http.ResponseWriter, r *http.Request) {
	var req AddPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "bad_request", "invalid request body", http.StatusBadRequest)
		return
	}

	pool, err := s.AddPool(r.Context(), req.Caller, AddPoolParams{
		LPToken:         req.LPToken,
		RewardPerBlock:  req.RewardPerBlock,
		LockPeriod:      req.LockPeriod,
		UnlockPeriod:    req.UnlockPeriod,
		EmergencyEnable: req.EmergencyEnable,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pool)
}

// HandleListPools handles GET /api/v1/pools.
func (s *Service) HandleListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := s.Pools(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if pools == nil {
		pools = []model.Pool{}
	}
	writeJSON(w, http.StatusOK, pools)
}

// HandleGetPool handles GET /api/v1/pools/{poolID}.
func (s *Service) HandleGetPool(w http.ResponseWriter, r *http.Request) {
	id, ok := poolIDParam(w, r)
	if !ok {
		return
	}
	pool, err := s.Pool(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// HandleDeposit handles POST /api/v1/pools/{poolID}/deposit.
func (s *Service) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	id, ok := poolIDParam(w, r)
	if !ok {
		return
	}
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "bad_request", "invalid request body", http.StatusBadRequest)
		return
	}

	pos, err := s.Deposit(r.Context(), req.User, id, req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// HandleWithdraw handles POST /api/v1/pools/{poolID}/withdraw.
func (s *Service) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := poolIDParam(w, r)
	if !ok {
		return
	}
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "bad_request", "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := s.Withdraw(r.Context(), req.User, id, req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleEmergencyWithdraw handles POST /api/v1/pools/{poolID}/emergency-withdraw.
func (s *Service) HandleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := poolIDParam(w, r)
	if !ok {
		return
	}
	var req EmergencyWithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "bad_request", "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := s.EmergencyWithdraw(r.Context(), req.User, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleGetPosition handles GET /api/v1/pools/{poolID}/positions/{user}.
func (s *Service) HandleGetPosition(w http.ResponseWriter, r *http.Request) {
	id, ok := poolIDParam(w, r)
	if !ok {
		return
	}
	pos, err := s.Position(r.Context(), id, chi.URLParam(r, "user"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// HandlePoolLedger handles GET /api/v1/pools/{poolID}/ledger.
func (s *Service) HandlePoolLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := poolIDParam(w, r)
	if !ok {
		return
	}
	entries, err := s.LedgerByPool(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleUserLedger handles GET /api/v1/users/{user}/ledger.
func (s *Service) HandleUserLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := s.LedgerByUser(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleSetPaused handles POST /api/v1/admin/pause.
func (s *Service) HandleSetPaused(w http.ResponseWriter, r *http.Request) {
	var req PauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "bad_request", "invalid request body", http.StatusBadRequest)
		return
	}

	cfg, err := s.SetPaused(r.Context(), req.Caller, req.Paused)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// HandleSetFee handles POST /api/v1/admin/fee.
func (s *Service) HandleSetFee(w http.ResponseWriter, r *http.Request) {
	var req FeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "bad_request", "invalid request body", http.StatusBadRequest)
		return
	}

	cfg, err := s.SetFee(r.Context(), req.Caller, req.FeePerThousand, req.FeeAccount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// HandleSetRewardThreshold handles POST /api/v1/admin/reward-threshold.
func (s *Service) HandleSetRewardThreshold(w http.ResponseWriter, r *http.Request) {
	var req ThresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "bad_request", "invalid request body", http.StatusBadRequest)
		return
	}

	cfg, err := s.SetRewardThreshold(r.Context(), req.Caller, req.RewardThreshold)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// HandleSetVaultContract handles POST /api/v1/admin/vault.
func (s *Service) HandleSetVaultContract(w http.ResponseWriter, r *http.Request) {
	var req VaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "bad_request", "invalid request body", http.StatusBadRequest)
		return
	}

	cfg, err := s.SetVaultContract(r.Context(), req.Caller, req.VaultContract)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// --- Error mapping ---

// engineErrors maps sentinel errors to wire kind and HTTP status, so
// wallet/UI layers always receive the specific refusal reason.
var engineErrors = []struct {
	err    error
	kind   string
	status int
}{
	{ErrUnauthorized, "unauthorized", http.StatusForbidden},
	{ErrAlreadyInitialized, "already_initialized", http.StatusConflict},
	{ErrNotInitialized, "not_initialized", http.StatusConflict},
	{ErrPoolNotFound, "pool_not_found", http.StatusNotFound},
	{ErrPositionNotFound, "position_not_found", http.StatusNotFound},
	{ErrPaused, "paused", http.StatusConflict},
	{ErrInvalidAmount, "invalid_amount", http.StatusBadRequest},
	{ErrInvalidParams, "invalid_parameters", http.StatusBadRequest},
	{ErrInsufficientBalance, "insufficient_balance", http.StatusConflict},
	{ErrStillLocked, "still_locked", http.StatusConflict},
	{ErrWindowExpired, "window_expired", http.StatusConflict},
	{ErrEmergencyDisabled, "emergency_disabled", http.StatusConflict},
	{token.ErrInsufficientFunds, "insufficient_funds", http.StatusConflict},
	{amount.ErrOverflow, "arithmetic_overflow", http.StatusConflict},
	{amount.ErrNegative, "arithmetic_overflow", http.StatusConflict},
	{amount.ErrNotBaseUnits, "invalid_amount", http.StatusBadRequest},
}

func writeEngineError(w http.ResponseWriter, err error) {
	for _, m := range engineErrors {
		if errors.Is(err, m.err) {
			metrics.OperationRejections.WithLabelValues(m.kind).Inc()
			writeError(w, m.kind, err.Error(), m.status)
			return
		}
	}
	writeError(w, "internal", err.Error(), http.StatusInternalServerError)
}

// writeError writes a JSON error response with a machine-readable kind.
func writeError(w http.ResponseWriter, kind, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"kind": kind, "error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func poolIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "poolID"), 10, 64)
	if err != nil {
		writeError(w, "bad_request", "invalid pool id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
