package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/photodiary/server/internal/models"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	ping        func(ctx context.Context) error
	aiAvailable func() bool
}

// NewHealthHandler creates a new HealthHandler. ping checks the document
// store; either argument may be nil.
func NewHealthHandler(ping func(ctx context.Context) error, aiAvailable func() bool) *HealthHandler {
	return &HealthHandler{ping: ping, aiAvailable: aiAvailable}
}

// HealthCheck returns the server health status
// @Summary Health check
// @Description Returns the current health status of the server
// @Tags health
// @Produce json
// @Success 200 {object} models.HealthResponse "Server is healthy"
// @Failure 503 {object} models.HealthResponse "Document store unreachable"
// @Router /api/health [get]
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.HealthResponse{
		Status:    "healthy",
		Database:  "ok",
		Timestamp: time.Now().UTC(),
	}
	if h.aiAvailable != nil {
		response.AI = h.aiAvailable()
	}

	status := http.StatusOK
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			response.Status = "degraded"
			response.Database = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	respondJSON(w, status, response)
}
