package handlers

import (
	"net/http"

	"github.com/bimakw/nexus-orchestrator/internal/application/services"
	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
)

// transferRequest is the body of POST /bridge-and-transfer
type transferRequest struct {
	intentRequest
	Recipient string `json:"recipient"`
}

// swapLegRequest names a token on a chain
type swapLegRequest struct {
	Token   string `json:"token"`
	ChainID int64  `json:"chainId"`
}

func (l swapLegRequest) leg() entities.SwapLeg {
	return entities.SwapLeg{Token: l.Token, ChainID: l.ChainID}
}

// swapExactInRequest is the body of POST /swap/exact-in
type swapExactInRequest struct {
	From   swapLegRequest `json:"from"`
	To     swapLegRequest `json:"to"`
	Amount string         `json:"amount"`
}

// swapExactOutRequest is the body of POST /swap/exact-out
type swapExactOutRequest struct {
	From      swapLegRequest `json:"from"`
	To        swapLegRequest `json:"to"`
	MaxAmount string         `json:"maxAmount"`
	ToAmount  string         `json:"toAmount"`
}

// Bridge handles POST /api/v1/sessions/{address}/bridge
func (h *SessionHandler) Bridge(w http.ResponseWriter, r *http.Request) {
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
		h.respondServiceError(w, err, "Invalid bridge request")
		return
	}

	var log services.EventLog
	result := h.pipeline.Bridge(r.Context(), session, services.BridgeRequest{
		Token:              create.Token,
		Amount:             create.Amount,
		DestinationChainID: create.DestinationChainID,
		SourceChains:       create.SourceChains,
	}, log.Handler())

	h.respondJSON(w, http.StatusOK, services.NewOperationResultDTO(result, log.Events()))
}

// BridgeAndTransfer handles POST /api/v1/sessions/{address}/bridge-and-transfer
func (h *SessionHandler) BridgeAndTransfer(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req transferRequest
	if !h.decode(w, r, &req) {
		return
	}
	create, err := req.toCreate()
	if err != nil {
		h.respondServiceError(w, err, "Invalid transfer request")
		return
	}

	var log services.EventLog
	result := h.pipeline.BridgeAndTransfer(r.Context(), session, services.TransferRequest{
		BridgeRequest: services.BridgeRequest{
			Token:              create.Token,
			Amount:             create.Amount,
			DestinationChainID: create.DestinationChainID,
			SourceChains:       create.SourceChains,
		},
		Recipient: req.Recipient,
	}, log.Handler())

	h.respondJSON(w, http.StatusOK, services.NewOperationResultDTO(result, log.Events()))
}

// SwapExactIn handles POST /api/v1/sessions/{address}/swap/exact-in
func (h *SessionHandler) SwapExactIn(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req swapExactInRequest
	if !h.decode(w, r, &req) {
		return
	}
	n, err := parseAmount(req.Amount, "amount")
	if err != nil {
		h.respondServiceError(w, err, "Invalid swap request")
		return
	}

	var log services.EventLog
	result := h.pipeline.SwapExactIn(r.Context(), session, services.SwapExactInRequest{
		From:   req.From.leg(),
		To:     req.To.leg(),
		Amount: n,
	}, log.Handler())

	h.respondJSON(w, http.StatusOK, services.NewOperationResultDTO(result, log.Events()))
}

// SwapExactOut handles POST /api/v1/sessions/{address}/swap/exact-out
func (h *SessionHandler) SwapExactOut(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req swapExactOutRequest
	if !h.decode(w, r, &req) {
		return
	}
	maxAmount, err := parseAmount(req.MaxAmount, "maxAmount")
	if err != nil {
		h.respondServiceError(w, err, "Invalid swap request")
		return
	}
	toAmount, err := parseAmount(req.ToAmount, "toAmount")
	if err != nil {
		h.respondServiceError(w, err, "Invalid swap request")
		return
	}

	var log services.EventLog
	result := h.pipeline.SwapExactOut(r.Context(), session, services.SwapExactOutRequest{
		From:      req.From.leg(),
		To:        req.To.leg(),
		MaxAmount: maxAmount,
		ToAmount:  toAmount,
	}, log.Handler())

	h.respondJSON(w, http.StatusOK, services.NewOperationResultDTO(result, log.Events()))
}
