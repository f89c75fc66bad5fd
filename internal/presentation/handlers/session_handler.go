package handlers

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/nexus-orchestrator/internal/application/services"
	"github.com/bimakw/nexus-orchestrator/internal/domain/amount"
	nexuserr "github.com/bimakw/nexus-orchestrator/internal/errors"
)

const maxBodyBytes = 1 << 20

// SessionHandler exposes a connected identity's orchestrator session over HTTP
type SessionHandler struct {
	manager     *services.SessionManager
	engine      *services.IntentEngine
	pipeline    *services.OperationPipeline
	eventBuffer int
	logger      *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(
	manager *services.SessionManager,
	engine *services.IntentEngine,
	pipeline *services.OperationPipeline,
	eventBuffer int,
	logger *zap.Logger,
) *SessionHandler {
	return &SessionHandler{
		manager:     manager,
		engine:      engine,
		pipeline:    pipeline,
		eventBuffer: eventBuffer,
		logger:      logger,
	}
}

// RegisterRoutes registers the session routes on a chi router
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions/{address}", func(r chi.Router) {
		r.Post("/", h.Connect)
		r.Get("/", h.GetStatus)
		r.Delete("/", h.Disconnect)

		r.Get("/balances", h.GetBalances)
		r.Post("/balances/refresh", h.RefreshBalances)

		r.Get("/allowances", h.ListAllowances)
		r.Post("/allowances/query", h.QueryAllowances)
		r.Put("/allowances", h.SetAllowance)
		r.Delete("/allowances/{chainId}/{token}", h.RevokeAllowance)

		r.Post("/intents", h.CreateIntent)
		r.Get("/intents/current", h.GetCurrentIntent)
		r.Get("/intents/history", h.GetIntentHistory)
		r.Get("/intents/archive", h.GetIntentArchive)
		r.Post("/intents/{intentId}/approve", h.ApproveIntent)
		r.Post("/intents/{intentId}/deny", h.DenyIntent)

		r.Post("/bridge", h.Bridge)
		r.Post("/bridge-and-transfer", h.BridgeAndTransfer)
		r.Post("/swap/exact-in", h.SwapExactIn)
		r.Post("/swap/exact-out", h.SwapExactOut)

		r.Get("/events", h.StreamEvents)
	})
}

// Connect handles POST /api/v1/sessions/{address}
func (h *SessionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	session, err := h.manager.Connect(r.Context(), address)
	if err != nil && session == nil {
		h.respondServiceError(w, err, "Failed to connect")
		return
	}
	if err != nil {
		h.logger.Warn("Session initialisation failed",
			zap.String("address", address),
			zap.Error(err),
		)
	}

	h.respondJSON(w, http.StatusOK, services.NewSessionStatusDTO(session.Status()))
}

// Disconnect handles DELETE /api/v1/sessions/{address}
func (h *SessionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Disconnect(r.Context(), chi.URLParam(r, "address")); err != nil {
		h.respondServiceError(w, err, "Failed to disconnect")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetStatus handles GET /api/v1/sessions/{address}
func (h *SessionHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, services.NewSessionStatusDTO(session.Status()))
}

// GetBalances handles GET /api/v1/sessions/{address}/balances
func (h *SessionHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, services.NewBalancesDTO(session.Balances()))
}

// RefreshBalances handles POST /api/v1/sessions/{address}/balances/refresh
func (h *SessionHandler) RefreshBalances(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	snapshot, err := session.Refresh(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "Failed to refresh balances")
		return
	}
	h.respondJSON(w, http.StatusOK, services.NewBalancesDTO(snapshot))
}

// allowanceQueryRequest is the body of POST /allowances/query
type allowanceQueryRequest struct {
	ChainID int64    `json:"chainId"`
	Tokens  []string `json:"tokens"`
}

// allowanceSetRequest is the body of PUT /allowances
type allowanceSetRequest struct {
	ChainID int64  `json:"chainId"`
	Token   string `json:"token"`
	Amount  string `json:"amount"`
}

// ListAllowances handles GET /api/v1/sessions/{address}/allowances
func (h *SessionHandler) ListAllowances(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, services.NewAllowanceDTOs(session.Allowances()))
}

// QueryAllowances handles POST /api/v1/sessions/{address}/allowances/query
func (h *SessionHandler) QueryAllowances(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req allowanceQueryRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ChainID <= 0 || len(req.Tokens) == 0 {
		h.respondError(w, http.StatusBadRequest, "chainId and tokens are required")
		return
	}

	allowances, err := session.GetAllowances(r.Context(), req.ChainID, req.Tokens)
	if err != nil {
		h.respondServiceError(w, err, "Failed to fetch allowances")
		return
	}

	out := make([]services.AllowanceDTO, len(allowances))
	for i, a := range allowances {
		out[i] = services.NewAllowanceDTO(req.ChainID, a)
	}
	h.respondJSON(w, http.StatusOK, out)
}

// SetAllowance handles PUT /api/v1/sessions/{address}/allowances
func (h *SessionHandler) SetAllowance(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req allowanceSetRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ChainID <= 0 || req.Token == "" || req.Amount == "" {
		h.respondError(w, http.StatusBadRequest, "chainId, token and amount are required")
		return
	}

	allowance, err := session.SetAllowance(r.Context(), req.ChainID, req.Token, req.Amount)
	if err != nil {
		h.respondServiceError(w, err, "Failed to set allowance")
		return
	}
	h.respondJSON(w, http.StatusOK, services.NewAllowanceDTO(req.ChainID, allowance))
}

// RevokeAllowance handles DELETE /api/v1/sessions/{address}/allowances/{chainId}/{token}
func (h *SessionHandler) RevokeAllowance(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	chainID, err := strconv.ParseInt(chi.URLParam(r, "chainId"), 10, 64)
	if err != nil || chainID <= 0 {
		h.respondError(w, http.StatusBadRequest, "Invalid chain id")
		return
	}

	allowance, err := session.RevokeAllowance(r.Context(), chainID, chi.URLParam(r, "token"))
	if err != nil {
		h.respondServiceError(w, err, "Failed to revoke allowance")
		return
	}
	h.respondJSON(w, http.StatusOK, services.NewAllowanceDTO(chainID, allowance))
}

// session resolves the connected session named by the address URL param
func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*services.Session, bool) {
	session, err := h.manager.Get(chi.URLParam(r, "address"))
	if err != nil {
		h.respondServiceError(w, err, "Session not found")
		return nil, false
	}
	return session, true
}

func (h *SessionHandler) decode(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// parseAmount parses a required base-unit amount field
func parseAmount(value, field string) (*big.Int, error) {
	if value == "" {
		return nil, nexuserr.New(nexuserr.KindValidation, field+" is required")
	}
	n, err := amount.ParseBaseUnits(value)
	if err != nil {
		return nil, nexuserr.Wrap(nexuserr.KindValidation, "invalid "+field, err)
	}
	return n, nil
}

// statusForError maps an error kind to an HTTP status
func statusForError(err error) int {
	if errors.Is(err, nexuserr.ErrNotConnected) {
		return http.StatusNotFound
	}
	switch nexuserr.KindOf(err) {
	case nexuserr.KindValidation:
		return http.StatusBadRequest
	case nexuserr.KindNotFound:
		return http.StatusNotFound
	case nexuserr.KindConflict, nexuserr.KindInvalidTransition:
		return http.StatusConflict
	case nexuserr.KindRefresh, nexuserr.KindExecution:
		return http.StatusBadGateway
	case nexuserr.KindConnectivity:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *SessionHandler) respondServiceError(w http.ResponseWriter, err error, fallback string) {
	status := statusForError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error(fallback, zap.Error(err))
		message = fallback
	}
	h.respondJSON(w, status, map[string]string{
		"error": message,
		"kind":  string(nexuserr.KindOf(err)),
	})
}

func (h *SessionHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *SessionHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
