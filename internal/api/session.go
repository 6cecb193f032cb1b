package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stwalsh4118/cutroom/internal/input"
	"github.com/stwalsh4118/cutroom/internal/logger"
	"github.com/stwalsh4118/cutroom/internal/playback"
	"github.com/stwalsh4118/cutroom/internal/presenter"
	"github.com/stwalsh4118/cutroom/internal/session"
)

// PreviewRequest sets or clears the scrub position; a null time clears it
type PreviewRequest struct {
	Time *float64 `json:"time"`
}

// ZoomRequest sets the zoom either by slider position or by visible seconds
type ZoomRequest struct {
	Slider  *float64 `json:"slider"`
	Seconds *float64 `json:"seconds"`
}

// KeyResponse reports whether a key event was consumed
type KeyResponse struct {
	Consumed bool         `json:"consumed"`
	State    session.View `json:"state"`
}

// SessionListResponse represents the open sessions
type SessionListResponse struct {
	Sessions []session.View `json:"sessions"`
}

// sessionManager defines the session operations SessionHandler needs
type sessionManager interface {
	Open(ctx context.Context, projectID uuid.UUID) (*session.Session, error)
	Get(projectID uuid.UUID) (*session.Session, bool)
	Close(ctx context.Context, projectID uuid.UUID) error
	List() []*session.Session
}

// SessionHandler handles editor session requests
type SessionHandler struct {
	sessions sessionManager
}

// NewSessionHandler creates a new session handler instance
func NewSessionHandler(sessions sessionManager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// OpenSession handles POST /sessions/:project_id
func (h *SessionHandler) OpenSession(c *gin.Context) {
	id, ok := parseUUIDParam(c, "project_id", "project")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	sess, err := h.sessions.Open(ctx, id)
	if err != nil {
		writeSessionError(c, err, "Failed to open session")
		return
	}

	c.JSON(http.StatusOK, sess.View())
}

// CloseSession handles DELETE /sessions/:project_id
func (h *SessionHandler) CloseSession(c *gin.Context) {
	id, ok := parseUUIDParam(c, "project_id", "project")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := h.sessions.Close(ctx, id); err != nil {
		writeSessionError(c, err, "Failed to close session")
		return
	}

	c.JSON(http.StatusOK, DeleteResponse{Message: "Session closed successfully"})
}

// ListSessions handles GET /sessions
func (h *SessionHandler) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, SessionListResponse{
		Sessions: lo.Map(h.sessions.List(), func(s *session.Session, _ int) session.View {
			return s.View()
		}),
	})
}

// GetState handles GET /sessions/:project_id/state
func (h *SessionHandler) GetState(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.View())
}

// control wraps a playback action as a handler returning the resulting view
func (h *SessionHandler) control(message string, action func(context.Context, *session.Session) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := h.lookup(c)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		if err := action(ctx, sess); err != nil {
			writeSessionError(c, err, message)
			return
		}
		c.JSON(http.StatusOK, sess.View())
	}
}

// SetPreview handles PUT /sessions/:project_id/preview
func (h *SessionHandler) SetPreview(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}

	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	if req.Time == nil {
		sess.Controller().ClearPreview()
	} else if !sess.Controller().SetPreview(*req.Time) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "playing",
			Message: "Preview time cannot be set while playing",
		})
		return
	}

	c.JSON(http.StatusOK, sess.View())
}

// SetZoom handles PUT /sessions/:project_id/zoom
func (h *SessionHandler) SetZoom(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}

	var req ZoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	switch {
	case req.Slider != nil:
		if *req.Slider < 0 || *req.Slider > 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "slider must be between 0 and 1"})
			return
		}
		sess.Zoom().SetSlider(*req.Slider)
	case req.Seconds != nil:
		sess.Zoom().UpdateZoom(*req.Seconds, sess.Store().Snapshot().PlaybackTime)
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "slider or seconds is required"})
		return
	}

	c.JSON(http.StatusOK, sess.View())
}

// SetViewport handles PUT /sessions/:project_id/viewport
func (h *SessionHandler) SetViewport(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}

	var bounds presenter.Bounds
	if err := c.ShouldBindJSON(&bounds); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if bounds.Width < 0 || bounds.Height < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "bounds must not be negative"})
		return
	}

	sess.SetViewport(bounds)
	c.JSON(http.StatusOK, sess.View())
}

// HandleKey handles POST /sessions/:project_id/keys
func (h *SessionHandler) HandleKey(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}

	var ev input.KeyEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	consumed, err := sess.HandleKey(ctx, ev)
	if err != nil {
		writeSessionError(c, err, "Failed to handle key")
		return
	}

	c.JSON(http.StatusOK, KeyResponse{Consumed: consumed, State: sess.View()})
}

// GetFrame handles GET /sessions/:project_id/frame.png
func (h *SessionHandler) GetFrame(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}

	if _, _, drawn := sess.Surface().Frame(); !drawn {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no_frame", Message: "No frame has been decoded yet"})
		return
	}

	c.Header("Content-Type", "image/png")
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)
	if err := sess.Surface().EncodePNG(c.Writer); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("project_id", sess.ProjectID.String()).
			Msg("Failed to encode frame")
	}
}

// GetDiagnostics handles GET /sessions/:project_id/diagnostics
func (h *SessionHandler) GetDiagnostics(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Diagnostics())
}

// lookup finds the open session named by the path, writing a 404 when there is none
func (h *SessionHandler) lookup(c *gin.Context) (*session.Session, bool) {
	id, ok := parseUUIDParam(c, "project_id", "project")
	if !ok {
		return nil, false
	}

	sess, found := h.sessions.Get(id)
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "session_not_found",
			Message: "No open session for this project",
		})
		return nil, false
	}
	sess.Touch()
	return sess, true
}

// writeSessionError maps session and playback errors to HTTP responses
func writeSessionError(c *gin.Context, err error, message string) {
	var cmdErr *playback.CommandError
	switch {
	case errors.Is(err, session.ErrProjectNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "project_not_found", Message: "Project not found"})
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session_not_found", Message: "No open session for this project"})
	case errors.Is(err, session.ErrManagerStopped):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "shutting_down", Message: err.Error()})
	case errors.Is(err, playback.ErrClosed):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "session_closed", Message: err.Error()})
	case errors.As(err, &cmdErr):
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "backend_failed", Message: cmdErr.Error()})
	default:
		logger.Log.Error().
			Err(err).
			Str("path", c.Request.URL.Path).
			Msg(message)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: message})
	}
}

// SetupSessionRoutes registers session routes
func SetupSessionRoutes(apiGroup *gin.RouterGroup, sessions sessionManager) {
	handler := NewSessionHandler(sessions)
	viewport := NewViewportHandler(sessions)

	group := apiGroup.Group("/sessions")
	group.GET("", handler.ListSessions)
	group.POST("/:project_id", handler.OpenSession)
	group.DELETE("/:project_id", handler.CloseSession)
	group.GET("/:project_id/state", handler.GetState)
	group.GET("/:project_id/frame.png", handler.GetFrame)
	group.GET("/:project_id/diagnostics", handler.GetDiagnostics)
	group.GET("/:project_id/ws", viewport.Serve)

	group.POST("/:project_id/play", handler.control("Failed to play", func(ctx context.Context, s *session.Session) error {
		return s.Controller().Play(ctx)
	}))
	group.POST("/:project_id/toggle", handler.control("Failed to toggle playback", func(ctx context.Context, s *session.Session) error {
		return s.Controller().TogglePlayback(ctx)
	}))
	group.POST("/:project_id/stop", handler.control("Failed to stop playback", func(ctx context.Context, s *session.Session) error {
		return s.Controller().Stop(ctx)
	}))
	group.POST("/:project_id/skip-start", handler.control("Failed to skip to start", func(ctx context.Context, s *session.Session) error {
		return s.Controller().SkipToStart(ctx)
	}))
	group.POST("/:project_id/skip-end", handler.control("Failed to skip to end", func(ctx context.Context, s *session.Session) error {
		return s.Controller().SkipToEnd(ctx)
	}))
	group.POST("/:project_id/zoom-in", handler.control("Failed to zoom", func(_ context.Context, s *session.Session) error {
		s.Zoom().ZoomIn()
		return nil
	}))
	group.POST("/:project_id/zoom-out", handler.control("Failed to zoom", func(_ context.Context, s *session.Session) error {
		s.Zoom().ZoomOut()
		return nil
	}))
	group.POST("/:project_id/zoom-reset", handler.control("Failed to zoom", func(_ context.Context, s *session.Session) error {
		s.Zoom().Reset()
		return nil
	}))

	group.PUT("/:project_id/preview", handler.SetPreview)
	group.PUT("/:project_id/zoom", handler.SetZoom)
	group.PUT("/:project_id/viewport", handler.SetViewport)
	group.POST("/:project_id/keys", handler.HandleKey)
}
