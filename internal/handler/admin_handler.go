package handler

import (
	"net/http"

	"linky/internal/model"
	"linky/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AdminHandler serves the admin endpoints under /api/admin.
type AdminHandler struct {
	service service.AdminService
	logger  zerolog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(service service.AdminService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		logger:  logger.With().Str("handler", "admin").Logger(),
	}
}

// ExpireResponse reports how many offers a sweep expired.
type ExpireResponse struct {
	Expired int `json:"expired"`
}

// List handles GET /api/admin/requests?status={group}.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	requests, err := h.service.List(r.Context(), actor, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

// Scout handles POST /api/admin/requests/{id}/scout.
func (h *AdminHandler) Scout(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	req, err := h.service.Scout(r.Context(), actor, id)
	h.respond(w, r, req, err)
}

// MarkNotFound handles POST /api/admin/requests/{id}/not-found.
func (h *AdminHandler) MarkNotFound(w http.ResponseWriter, r *http.Request) {
	var in model.ReasonRequest
	if err := decodeJSON(r, &in, true); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	req, err := h.service.MarkNotFound(r.Context(), actor, id, in.Reason)
	h.respond(w, r, req, err)
}

// SaveOffer handles PUT /api/admin/requests/{id}/offer.
func (h *AdminHandler) SaveOffer(w http.ResponseWriter, r *http.Request) {
	var form model.OfferForm
	if err := decodeJSON(r, &form, false); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	req, err := h.service.SaveOffer(r.Context(), actor, id, form)
	h.respond(w, r, req, err)
}

// Advance handles POST /api/admin/requests/{id}/advance. The body may pin
// the expected next status.
func (h *AdminHandler) Advance(w http.ResponseWriter, r *http.Request) {
	var in model.AdvanceRequest
	if err := decodeJSON(r, &in, true); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	req, err := h.service.Advance(r.Context(), actor, id, in.Status)
	h.respond(w, r, req, err)
}

// Expire handles POST /api/admin/expire.
func (h *AdminHandler) Expire(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.ExpireStaleOffers(r.Context())
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, ExpireResponse{Expired: n})
}

// Sources handles GET /api/admin/requests/{id}/sources.
func (h *AdminHandler) Sources(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	hints, err := h.service.SourceHints(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, hints)
}

// UpsertUser handles PUT /api/admin/users/{id}.
func (h *AdminHandler) UpsertUser(w http.ResponseWriter, r *http.Request) {
	var in model.UserInput
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	user, err := h.service.UpsertUser(r.Context(), actor, id, in)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) target(w http.ResponseWriter, r *http.Request) (model.Actor, uuid.UUID, bool) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return model.Actor{}, uuid.Nil, false
	}
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return model.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}

func (h *AdminHandler) respond(w http.ResponseWriter, r *http.Request, req *model.Request, err error) {
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
