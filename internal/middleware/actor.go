package middleware

import (
	"context"
	"net/http"

	"linky/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type actorKey struct{}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor resolved for the request, if any.
func ActorFrom(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(model.Actor)
	return actor, ok
}

// Actor resolves the calling account from the X-Actor-ID and X-Actor-Role
// headers set by the trusted front end. Only USER and ADMIN are accepted.
func Actor(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(r.Header.Get(HeaderActorID))
			if err != nil || id == uuid.Nil {
				logger.Warn().Str("path", r.URL.Path).Msg("missing or malformed actor id")
				writeError(w, http.StatusUnauthorized, model.ErrCodeUnauthorised, "actor identity required")
				return
			}

			role := model.Role(r.Header.Get(HeaderActorRole))
			if role != model.RoleUser && role != model.RoleAdmin {
				logger.Warn().Str("path", r.URL.Path).Str("role", string(role)).Msg("unknown actor role")
				writeError(w, http.StatusUnauthorized, model.ErrCodeUnauthorised, "actor role must be USER or ADMIN")
				return
			}

			ctx := WithActor(r.Context(), model.Actor{ID: id, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects actors without role.
func RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, model.ErrCodeUnauthorised, "actor identity required")
				return
			}
			if actor.Role != role {
				writeError(w, http.StatusForbidden, model.ErrCodeForbidden, "role "+string(role)+" required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
