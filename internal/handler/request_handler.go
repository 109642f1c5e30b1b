package handler

import (
	"context"
	"net/http"

	"linky/internal/lifecycle"
	"linky/internal/model"
	"linky/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestHandler serves the user endpoints under /api/requests.
type RequestHandler struct {
	service service.RequestService
	logger  zerolog.Logger
}

// NewRequestHandler creates a new request handler.
func NewRequestHandler(service service.RequestService, logger zerolog.Logger) *RequestHandler {
	return &RequestHandler{
		service: service,
		logger:  logger.With().Str("handler", "request").Logger(),
	}
}

// Submit handles POST /api/requests.
func (h *RequestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var in model.SubmitRequest
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	req, err := h.service.Submit(r.Context(), actor, in)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// List handles GET /api/requests?status={group}.
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	requests, err := h.service.ListMine(r.Context(), actor, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

// Get handles GET /api/requests/{id}.
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.service.Get)
}

// Pay50 handles POST /api/requests/{id}/pay50.
func (h *RequestHandler) Pay50(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.service.Pay50)
}

// PayRemaining handles POST /api/requests/{id}/pay50-rest.
func (h *RequestHandler) PayRemaining(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.service.PayRemaining)
}

// AcknowledgeNotFound handles POST /api/requests/{id}/ack-not-found.
func (h *RequestHandler) AcknowledgeNotFound(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.service.AcknowledgeNotFound)
}

// Decline handles POST /api/requests/{id}/decline with an optional reason.
func (h *RequestHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.actWithReason(w, r, h.service.Decline)
}

// Cancel handles POST /api/requests/{id}/cancel with an optional reason.
func (h *RequestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.actWithReason(w, r, h.service.Cancel)
}

// RepeatPreview handles POST /api/requests/repeat/preview.
func (h *RequestHandler) RepeatPreview(w http.ResponseWriter, r *http.Request) {
	actor, sourceID, err := h.repeatInput(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	preview, err := h.service.RepeatPreview(r.Context(), actor, sourceID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// RepeatConfirm handles POST /api/requests/repeat/confirm. A deduplicated
// repeat answers 200 with the existing request id, a new one 201.
func (h *RequestHandler) RepeatConfirm(w http.ResponseWriter, r *http.Request) {
	actor, sourceID, err := h.repeatInput(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	res, err := h.service.RepeatConfirm(r.Context(), actor, sourceID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	status := http.StatusCreated
	if res.Mode == model.RepeatModeRequestExists {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func (h *RequestHandler) repeatInput(r *http.Request) (model.Actor, uuid.UUID, error) {
	actor, err := actorOf(r)
	if err != nil {
		return model.Actor{}, uuid.Nil, err
	}
	var in model.RepeatRequest
	if err := decodeJSON(r, &in, false); err != nil {
		return model.Actor{}, uuid.Nil, err
	}
	if in.SourceRequestID == uuid.Nil {
		return model.Actor{}, uuid.Nil, &lifecycle.ValidationError{
			Fields: []model.FieldError{{Field: "sourceRequestId", Reason: "required"}},
		}
	}
	return actor, in.SourceRequestID, nil
}

type requestAction func(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Request, error)

func (h *RequestHandler) act(w http.ResponseWriter, r *http.Request, fn requestAction) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	req, err := fn(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type reasonAction func(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*model.Request, error)

func (h *RequestHandler) actWithReason(w http.ResponseWriter, r *http.Request, fn reasonAction) {
	var in model.ReasonRequest
	if err := decodeJSON(r, &in, true); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	h.act(w, r, func(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Request, error) {
		return fn(ctx, actor, id, in.Reason)
	})
}
