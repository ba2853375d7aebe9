package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/photodiary/server/internal/app"
	"github.com/photodiary/server/internal/observability"
	"github.com/photodiary/server/internal/services"
)

// RouterConfig collects what the HTTP layer needs
type RouterConfig struct {
	App            *app.App
	Hub            *services.WebSocketHub
	Ping           func(ctx context.Context) error
	MaxUploadBytes int64
	// MediaDir serves the filesystem blob store under /media/ when set
	MediaDir    string
	HTTPMetrics *observability.HTTPMetrics
	Logger      *observability.Logger
}

// NewRouter builds the HTTP API
func NewRouter(cfg RouterConfig) http.Handler {
	photoHandler := NewPhotoHandler(cfg.App, cfg.MaxUploadBytes, cfg.Logger)
	threadHandler := NewThreadHandler(cfg.App)
	aiHandler := NewAIHandler(cfg.App, cfg.MaxUploadBytes)
	healthHandler := NewHealthHandler(cfg.Ping, cfg.App.AIAvailable)

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.HTTPMetrics != nil {
		r.Use(observability.Instrument(cfg.HTTPMetrics))
	}

	// Routes
	r.Get("/health", healthHandler.HealthCheck)
	r.Get("/api/health", healthHandler.HealthCheck)
	r.Get("/api/version", VersionHandler)

	r.Route("/api/photos", func(r chi.Router) {
		r.Get("/", photoHandler.List)
		r.Post("/", photoHandler.Upload)
		r.Post("/refresh", photoHandler.Refresh)
		r.Delete("/{id}", photoHandler.Delete)
		r.Post("/{id}/favorite", photoHandler.ToggleFavorite)
		r.Post("/{id}/open", threadHandler.Open)
	})

	r.Route("/api/thread", func(r chi.Router) {
		r.Delete("/", threadHandler.Close)
		r.Get("/comments", threadHandler.Comments)
		r.Post("/comments", threadHandler.Submit)
		r.Delete("/comments/{localId}", threadHandler.Dismiss)
		r.Post("/ai-comment", threadHandler.AIComment)
	})

	r.With(middleware.Timeout(2*time.Minute)).Post("/api/ai/caption", aiHandler.Caption)

	if cfg.Hub != nil {
		r.Get("/ws", NewWebSocketHandler(cfg.Hub, cfg.Logger).HandleConnection)
	}

	if cfg.MediaDir != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.MediaDir))))
	}

	return r
}
