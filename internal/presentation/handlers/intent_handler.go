package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bimakw/nexus-orchestrator/internal/application/services"
)

const (
	defaultArchiveLimit = 50
	maxArchiveLimit     = 500
)

// intentRequest is the body of POST /intents and POST /bridge
type intentRequest struct {
	Token              string  `json:"token"`
	Amount             string  `json:"amount"`
	DestinationChainID int64   `json:"destinationChainId"`
	SourceChains       []int64 `json:"sourceChains,omitempty"`
}

func (req intentRequest) toCreate() (services.CreateIntentRequest, error) {
	n, err := parseAmount(req.Amount, "amount")
	if err != nil {
		return services.CreateIntentRequest{}, err
	}
	return services.CreateIntentRequest{
		Token:              req.Token,
		Amount:             n,
		DestinationChainID: req.DestinationChainID,
		SourceChains:       req.SourceChains,
	}, nil
}

// CreateIntent handles POST /api/v1/sessions/{address}/intents
func (h *SessionHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req intentRequest
	if !h.decode(w, r, &req) {
		return
	}
	create, err := req.toCreate()
	if err != nil {
		h.respondServiceError(w, err, "Invalid intent request")
		return
	}

	intent, err := session.CreateIntent(r.Context(), create)
	if err != nil {
		h.respondServiceError(w, err, "Failed to create intent")
		return
	}
	h.respondJSON(w, http.StatusCreated, services.NewIntentDTO(intent))
}

// GetCurrentIntent handles GET /api/v1/sessions/{address}/intents/current
func (h *SessionHandler) GetCurrentIntent(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	intent := session.CurrentIntent()
	if intent == nil {
		h.respondError(w, http.StatusNotFound, "No active intent")
		return
	}
	h.respondJSON(w, http.StatusOK, services.NewIntentDTO(intent))
}

// GetIntentHistory handles GET /api/v1/sessions/{address}/intents/history
func (h *SessionHandler) GetIntentHistory(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, services.NewIntentDTOs(session.IntentHistory()))
}

// GetIntentArchive handles GET /api/v1/sessions/{address}/intents/archive
func (h *SessionHandler) GetIntentArchive(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	limit := defaultArchiveLimit
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= maxArchiveLimit {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil && o >= 0 {
			offset = o
		}
	}

	response, err := h.engine.Archive(r.Context(), session.Identity(), limit, offset)
	if err != nil {
		h.respondServiceError(w, err, "Failed to load intent archive")
		return
	}
	h.respondJSON(w, http.StatusOK, response)
}

// ApproveIntent handles POST /api/v1/sessions/{address}/intents/{intentId}/approve
func (h *SessionHandler) ApproveIntent(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	intent, err := session.ApproveIntent(r.Context(), chi.URLParam(r, "intentId"))
	if err != nil && intent == nil {
		h.respondServiceError(w, err, "Failed to approve intent")
		return
	}
	// a settlement failure still yields the failed intent
	h.respondJSON(w, http.StatusOK, services.NewIntentDTO(intent))
}

// DenyIntent handles POST /api/v1/sessions/{address}/intents/{intentId}/deny
func (h *SessionHandler) DenyIntent(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	intent, err := session.DenyIntent(r.Context(), chi.URLParam(r, "intentId"))
	if err != nil {
		h.respondServiceError(w, err, "Failed to deny intent")
		return
	}
	h.respondJSON(w, http.StatusOK, services.NewIntentDTO(intent))
}
