package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/cutroom/internal/backend"
)

// HealthResponse reports store connectivity and what the playback side is running
type HealthResponse struct {
	Status   string            `json:"status"`
	Database string            `json:"database"`
	Sessions int               `json:"sessions"`
	Backend  string            `json:"backend"`
	HWAccel  string            `json:"hwaccel"`
	Time     string            `json:"time"`
	Details  map[string]string `json:"details,omitempty"`
}

type pinger interface {
	Health(ctx context.Context) error
}

// playbackStatus is the part of the session manager health reads
type playbackStatus interface {
	Count() int
	Backend() (string, backend.HWAccel)
}

// HealthHandler serves GET /api/health
type HealthHandler struct {
	db       pinger
	sessions playbackStatus
}

// NewHealthHandler creates a new health check handler
func NewHealthHandler(database pinger, sessions playbackStatus) *HealthHandler {
	return &HealthHandler{db: database, sessions: sessions}
}

// Check answers 200 while the store responds and 503 with the ping error otherwise
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	kind, hwaccel := h.sessions.Backend()
	response := HealthResponse{
		Status:   "ok",
		Database: "healthy",
		Sessions: h.sessions.Count(),
		Backend:  kind,
		HWAccel:  hwaccel.String(),
		Time:     time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.db.Health(ctx); err != nil {
		response.Status = "degraded"
		response.Database = "unhealthy"
		response.Details = map[string]string{"database_error": err.Error()}
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}

// SetupHealthRoutes registers GET /health
func SetupHealthRoutes(apiGroup *gin.RouterGroup, database pinger, sessions playbackStatus) {
	apiGroup.GET("/health", NewHealthHandler(database, sessions).Check)
}
