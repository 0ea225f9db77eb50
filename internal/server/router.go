package server

import (
	"log/slog"
	"net/http"

	"github.com/cloo-solutions/tubeqa/internal/api"
	"github.com/cloo-solutions/tubeqa/internal/api/handlers"
	"github.com/cloo-solutions/tubeqa/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	SessionHandler *handlers.SessionHandler
	Logger         *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.MaxBodyBytes(middleware.DefaultMaxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/mode", cfg.SessionHandler.Mode)

	r.Route("/session", func(r chi.Router) {
		r.Post("/", cfg.SessionHandler.Process)
		r.Get("/", cfg.SessionHandler.Get)
		r.Delete("/", cfg.SessionHandler.Reset)
		r.Get("/messages", cfg.SessionHandler.Messages)
		r.Post("/questions", cfg.SessionHandler.Ask)
		r.Post("/summary", cfg.SessionHandler.Summary)
	})

	return r
}
