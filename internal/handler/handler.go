package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"linky/internal/lifecycle"
	"linky/internal/middleware"
	"linky/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

var errInvalidJSON = errors.New("invalid request body")

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError maps err onto the JSON error envelope. Unknown errors are
// logged and reported as 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger zerolog.Logger) {
	status, body := classify(err)
	ev := logger.Debug()
	if status >= http.StatusInternalServerError {
		ev = logger.Error()
	}
	ev.Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("handler error")
	writeJSON(w, status, body)
}

func classify(err error) (int, model.ErrorResponse) {
	var (
		verr *lifecycle.ValidationError
		gv   *lifecycle.GuardViolation
		derr *model.DomainError
	)
	switch {
	case errors.Is(err, errInvalidJSON):
		return http.StatusBadRequest, model.ErrorResponse{Error: model.ErrCodeInvalidJSON, Message: err.Error()}
	case errors.As(err, &verr):
		return http.StatusBadRequest, model.ErrorResponse{Error: model.ErrCodeValidation, Message: verr.Error(), Fields: verr.Fields}
	case errors.As(err, &gv):
		return http.StatusConflict, model.ErrorResponse{Error: model.ErrCodeGuardViolation, Message: gv.Error()}
	case errors.As(err, &derr):
		resp := model.ErrorResponse{Error: derr.Code, Message: derr.Message}
		switch derr.Code {
		case model.ErrCodeInvalidProductURL:
			resp.Fields = []model.FieldError{{Field: "productUrl", Reason: "http_url"}}
			return http.StatusBadRequest, resp
		case model.ErrCodeRequestNotFound, model.ErrCodeSourceNotFound, model.ErrCodeUserNotFound:
			return http.StatusNotFound, resp
		case model.ErrCodeForbidden:
			return http.StatusForbidden, resp
		case model.ErrCodeConcurrencyConflict:
			return http.StatusConflict, resp
		case model.ErrCodeUnauthorised:
			return http.StatusUnauthorized, resp
		}
	}
	return http.StatusInternalServerError, model.ErrorResponse{Error: model.ErrCodeInternalError, Message: "internal server error"}
}

// decodeJSON reads the request body into v. An empty body is accepted when
// optional is set and leaves v untouched.
func decodeJSON(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return nil
	}
	return errInvalidJSON
}

func idParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, &lifecycle.ValidationError{Fields: []model.FieldError{{Field: "id", Reason: "uuid"}}}
	}
	return id, nil
}

var errNoActor = model.NewDomainError(model.ErrCodeUnauthorised, "actor identity required")

func actorOf(r *http.Request) (model.Actor, error) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		return model.Actor{}, errNoActor
	}
	return actor, nil
}
