// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/cutroom/internal/api"
	"github.com/stwalsh4118/cutroom/internal/config"
	"github.com/stwalsh4118/cutroom/internal/db"
	"github.com/stwalsh4118/cutroom/internal/logger"
	"github.com/stwalsh4118/cutroom/internal/media"
	"github.com/stwalsh4118/cutroom/internal/middleware"
	"github.com/stwalsh4118/cutroom/internal/project"
	"github.com/stwalsh4118/cutroom/internal/session"
	"github.com/stwalsh4118/cutroom/internal/timeline"
)

// Server represents the HTTP server
type Server struct {
	config          *config.Config
	db              *db.DB
	repos           *db.Repositories
	projectService  *project.Service
	timelineService *timeline.Service
	sessions        *session.Manager
	router          *gin.Engine
	server          *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, database *db.DB) *Server {
	repos := db.NewRepositories(database)
	prober := media.NewFFprobe(cfg.Backend.FFprobePath)
	if err := prober.CheckInstalled(); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("binary", prober.Binary).
			Msg("FFprobe unavailable, projects must be created with explicit source details")
	}
	timelineService := timeline.NewService(repos)

	return &Server{
		config:          cfg,
		db:              database,
		repos:           repos,
		projectService:  project.NewService(repos, prober),
		timelineService: timelineService,
		sessions:        session.NewManager(repos, timelineService, cfg),
	}
}

// Router builds the router on first use and returns it
func (s *Server) Router() *gin.Engine {
	if s.router == nil {
		s.setupRouter()
	}
	return s.router
}

// Sessions returns the editor session manager
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()

	s.router.Use(middleware.RequestLogger())
	s.router.Use(gin.Recovery())
	s.router.Use(cors.Default())

	apiGroup := s.router.Group("/api")

	api.SetupHealthRoutes(apiGroup, s.db, s.sessions)
	api.SetupProjectRoutes(apiGroup, s.projectService, s.sessions)
	api.SetupSessionRoutes(apiGroup, s.sessions)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.Router()

	if err := s.sessions.Start(); err != nil {
		return fmt.Errorf("failed to start session manager: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Str("backend", s.config.Backend.Kind).
		Msg("Starting HTTP server")

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server. Open sessions are closed and
// their playheads saved.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	if s.sessions != nil {
		s.sessions.Stop()
	}

	logger.Log.Info().Msg("Server stopped")
	return nil
}
