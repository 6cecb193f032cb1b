package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stwalsh4118/cutroom/internal/logger"
	"github.com/stwalsh4118/cutroom/internal/media"
	"github.com/stwalsh4118/cutroom/internal/models"
	"github.com/stwalsh4118/cutroom/internal/project"
	"github.com/stwalsh4118/cutroom/internal/timeline"
)

// Request/Response DTOs

// CreateProjectRequest represents a request to create a new project
type CreateProjectRequest struct {
	Name           string  `json:"name" binding:"required"`
	SourcePath     string  `json:"source_path" binding:"required"`
	SourceWidth    int     `json:"source_width" binding:"gte=0"`
	SourceHeight   int     `json:"source_height" binding:"gte=0"`
	SourceDuration float64 `json:"source_duration" binding:"gte=0"`
}

// ReplaceSegmentsRequest represents a full replacement of a project's segments
type ReplaceSegmentsRequest struct {
	Segments []project.SegmentInput `json:"segments"`
}

// SegmentResponse represents a segment in API responses
type SegmentResponse struct {
	Position  int     `json:"position"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Timescale float64 `json:"timescale"`
	Duration  float64 `json:"duration"`
}

// ProjectResponse represents a project in API responses
type ProjectResponse struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	SourcePath       string             `json:"source_path"`
	SourceWidth      int                `json:"source_width"`
	SourceHeight     int                `json:"source_height"`
	SourceDuration   float64            `json:"source_duration"`
	LastPlaybackTime float64            `json:"last_playback_time"`
	Segments         []*SegmentResponse `json:"segments,omitempty"`
	TotalDuration    *float64           `json:"total_duration,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// ProjectListResponse represents a list of projects
type ProjectListResponse struct {
	Projects []*ProjectResponse `json:"projects"`
}

// projectService defines the project operations ProjectHandler needs
type projectService interface {
	Create(ctx context.Context, in project.CreateInput) (*models.Project, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Project, error)
	List(ctx context.Context) ([]*models.Project, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ReplaceSegments(ctx context.Context, id uuid.UUID, segments []project.SegmentInput) ([]*models.Segment, error)
}

// sessionSync keeps open sessions in step with project changes
type sessionSync interface {
	ReloadTimeline(ctx context.Context, projectID uuid.UUID) error
	Close(ctx context.Context, projectID uuid.UUID) error
}

// ProjectHandler handles project-related API requests
type ProjectHandler struct {
	projects projectService
	sessions sessionSync
}

// NewProjectHandler creates a new project handler instance
func NewProjectHandler(projects projectService, sessions sessionSync) *ProjectHandler {
	return &ProjectHandler{projects: projects, sessions: sessions}
}

func toSegmentResponses(segments []*models.Segment) []*SegmentResponse {
	return lo.Map(segments, func(s *models.Segment, _ int) *SegmentResponse {
		return &SegmentResponse{
			Position:  s.Position,
			Start:     s.Start,
			End:       s.End,
			Timescale: s.Timescale,
			Duration:  timeline.Segment{Start: s.Start, End: s.End, Timescale: s.Timescale}.Duration(),
		}
	})
}

// toProjectResponse converts a project model to API response format
func toProjectResponse(p *models.Project) *ProjectResponse {
	resp := &ProjectResponse{
		ID:               p.ID.String(),
		Name:             p.Name,
		SourcePath:       p.SourcePath,
		SourceWidth:      p.SourceWidth,
		SourceHeight:     p.SourceHeight,
		SourceDuration:   p.SourceDuration,
		LastPlaybackTime: p.LastPlaybackTime,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	if p.Segments != nil {
		resp.Segments = toSegmentResponses(p.Segments)
		total := timeline.TotalDuration(timeline.FromModels(p.Segments))
		resp.TotalDuration = &total
	}
	return resp
}

// CreateProject handles POST /projects
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	// probing may run ffprobe
	ctx, cancel := context.WithTimeout(c.Request.Context(), 35*time.Second)
	defer cancel()

	p, err := h.projects.Create(ctx, project.CreateInput{
		Name:           req.Name,
		SourcePath:     req.SourcePath,
		SourceWidth:    req.SourceWidth,
		SourceHeight:   req.SourceHeight,
		SourceDuration: req.SourceDuration,
	})
	if err != nil {
		h.writeProjectError(c, err, "create_failed", "Failed to create project")
		return
	}

	c.JSON(http.StatusCreated, toProjectResponse(p))
}

// ListProjects handles GET /projects
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	projects, err := h.projects.List(ctx)
	if err != nil {
		h.writeProjectError(c, err, "query_failed", "Failed to retrieve projects")
		return
	}

	c.JSON(http.StatusOK, ProjectListResponse{
		Projects: lo.Map(projects, func(p *models.Project, _ int) *ProjectResponse {
			return toProjectResponse(p)
		}),
	})
}

// GetProject handles GET /projects/:id
func (h *ProjectHandler) GetProject(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id", "project")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	p, err := h.projects.Get(ctx, id)
	if err != nil {
		h.writeProjectError(c, err, "query_failed", "Failed to retrieve project")
		return
	}

	c.JSON(http.StatusOK, toProjectResponse(p))
}

// DeleteProject handles DELETE /projects/:id. An open session is closed first.
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id", "project")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	_ = h.sessions.Close(ctx, id)

	if err := h.projects.Delete(ctx, id); err != nil {
		h.writeProjectError(c, err, "delete_failed", "Failed to delete project")
		return
	}

	c.JSON(http.StatusOK, DeleteResponse{Message: "Project deleted successfully"})
}

// ReplaceSegments handles PUT /projects/:id/segments
func (h *ProjectHandler) ReplaceSegments(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id", "project")
	if !ok {
		return
	}

	var req ReplaceSegmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	segments, err := h.projects.ReplaceSegments(ctx, id, req.Segments)
	if err != nil {
		h.writeProjectError(c, err, "update_failed", "Failed to replace segments")
		return
	}

	if err := h.sessions.ReloadTimeline(ctx, id); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("project_id", id.String()).
			Msg("Segments saved but the open session could not reload them")
	}

	c.JSON(http.StatusOK, gin.H{
		"segments":       toSegmentResponses(segments),
		"total_duration": timeline.TotalDuration(timeline.FromModels(segments)),
	})
}

// writeProjectError maps project service errors to HTTP responses
func (h *ProjectHandler) writeProjectError(c *gin.Context, err error, code, message string) {
	switch {
	case project.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Project not found"})
	case errors.Is(err, project.ErrDuplicateName):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "duplicate_name", Message: err.Error()})
	case project.IsValidation(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Message: err.Error()})
	case errors.Is(err, project.ErrProbeUnavailable),
		errors.Is(err, media.ErrFileNotFound),
		errors.Is(err, media.ErrUnsupportedFormat),
		errors.Is(err, media.ErrInvalidFile),
		errors.Is(err, media.ErrNoVideoStream),
		errors.Is(err, media.ErrFFprobeNotFound):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid_source", Message: err.Error()})
	default:
		logger.Log.Error().
			Err(err).
			Str("path", c.Request.URL.Path).
			Msg(message)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: code, Message: message})
	}
}

// SetupProjectRoutes registers project routes
func SetupProjectRoutes(apiGroup *gin.RouterGroup, projects projectService, sessions sessionSync) {
	handler := NewProjectHandler(projects, sessions)

	group := apiGroup.Group("/projects")
	group.GET("", handler.ListProjects)
	group.POST("", handler.CreateProject)
	group.GET("/:id", handler.GetProject)
	group.DELETE("/:id", handler.DeleteProject)
	group.PUT("/:id/segments", handler.ReplaceSegments)
}
