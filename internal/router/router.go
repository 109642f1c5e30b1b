package router

import (
	"net/http"

	"linky/internal/handler"
	"linky/internal/middleware"
	"linky/internal/model"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// New creates a new HTTP router with all routes and middleware configured.
func New(
	requestHandler *handler.RequestHandler,
	adminHandler *handler.AdminHandler,
	apiKey string,
	logger zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Recovery -> RequestID -> Logging -> CORS -> APIKeyAuth
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS)
	r.Use(middleware.APIKeyAuth(apiKey, logger))

	// Health check endpoint (no authentication required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Actor(logger))

		r.Route("/requests", func(r chi.Router) {
			r.Post("/", requestHandler.Submit)
			r.Get("/", requestHandler.List)
			r.Post("/repeat/preview", requestHandler.RepeatPreview)
			r.Post("/repeat/confirm", requestHandler.RepeatConfirm)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", requestHandler.Get)
				r.Post("/pay50", requestHandler.Pay50)
				r.Post("/pay50-rest", requestHandler.PayRemaining)
				r.Post("/decline", requestHandler.Decline)
				r.Post("/cancel", requestHandler.Cancel)
				r.Post("/ack-not-found", requestHandler.AcknowledgeNotFound)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(model.RoleAdmin))

			r.Get("/requests", adminHandler.List)
			r.Post("/expire", adminHandler.Expire)
			r.Put("/users/{id}", adminHandler.UpsertUser)

			r.Route("/requests/{id}", func(r chi.Router) {
				r.Post("/scout", adminHandler.Scout)
				r.Post("/not-found", adminHandler.MarkNotFound)
				r.Put("/offer", adminHandler.SaveOffer)
				r.Post("/advance", adminHandler.Advance)
				r.Get("/sources", adminHandler.Sources)
			})
		})
	})

	return r
}
