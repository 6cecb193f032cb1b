package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/stwalsh4118/cutroom/internal/config"
	"github.com/stwalsh4118/cutroom/internal/db"
	"github.com/stwalsh4118/cutroom/internal/logger"
	"github.com/stwalsh4118/cutroom/internal/media"
	"github.com/stwalsh4118/cutroom/internal/playback"
	"github.com/stwalsh4118/cutroom/internal/server"
	"github.com/stwalsh4118/cutroom/internal/timeline"
)

const shutdownTimeout = 15 * time.Second

var rootCmd = &cobra.Command{
	Use:          "cutroom",
	Short:        "Video editor preview engine",
	Long:         "Serves editor sessions that decode, pace and present a project's timeline over HTTP and websockets.",
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run migrations and start the HTTP server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, database, err := bootstrap()
		if err != nil {
			return err
		}
		defer database.Close()

		sqlDB, err := database.GetSQLDB()
		if err != nil {
			return err
		}
		if err := db.RunMigrations(sqlDB, cfg.Database.MigrationsPath); err != nil {
			return err
		}

		version, dirty, err := db.MigrationVersion(sqlDB, cfg.Database.MigrationsPath)
		if err != nil {
			return err
		}
		cmd.Printf("schema version %d (dirty: %t)\n", version, dirty)
		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe <file>",
	Short: "Print the source details ffprobe reports for a media file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := media.ValidateSource(args[0]); err != nil {
			return err
		}

		info, err := media.NewFFprobe(cfg.Backend.FFprobePath).Probe(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Resolve a time against a segment list",
	Long:  "Prints the segment, speed label, formatted times and end state for an output time, for example:\n  cutroom inspect --segments 0:30,40:50:2 --at 32",
	RunE: func(cmd *cobra.Command, _ []string) error {
		spec, _ := cmd.Flags().GetString("segments")
		at, _ := cmd.Flags().GetFloat64("at")
		fps, _ := cmd.Flags().GetInt("fps")
		epsilon, _ := cmd.Flags().GetFloat64("epsilon")

		segments, err := timeline.ParseSegments(spec)
		if err != nil {
			return err
		}
		total := timeline.TotalDuration(segments)

		result := inspection{
			Total:      total,
			TotalLabel: timeline.FormatTime(total, fps),
			At:         at,
			AtLabel:    timeline.FormatTime(at, fps),
			AtEnd:      playback.AtEnd(total, at, epsilon),
		}
		if pos, err := timeline.Locate(segments, at); err == nil {
			result.Segment = &pos
		}
		if speed, ok := timeline.CurrentSpeed(timeline.CurrentSegment(segments, at)).Get(); ok {
			result.Speed = &speed
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// inspection is the output of the inspect command
type inspection struct {
	Total      float64            `json:"total"`
	TotalLabel string             `json:"total_label"`
	At         float64            `json:"at"`
	AtLabel    string             `json:"at_label"`
	AtEnd      bool               `json:"at_end"`
	Segment    *timeline.Position `json:"segment,omitempty"`
	Speed      *string            `json:"speed,omitempty"`
}

func init() {
	inspectCmd.Flags().String("segments", "", "segments as start:end[:timescale], comma separated")
	inspectCmd.Flags().Float64("at", 0, "output time in seconds")
	inspectCmd.Flags().Int("fps", 30, "frame rate used for formatting")
	inspectCmd.Flags().Float64("epsilon", 0.1, "end-of-media tolerance in seconds")
	_ = inspectCmd.MarkFlagRequired("segments")

	rootCmd.AddCommand(serveCmd, migrateCmd, probeCmd, inspectCmd)
}

// loadConfig reads configuration and initializes the global logger from it
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)
	return cfg, nil
}

// bootstrap loads configuration and opens the database
func bootstrap() (*config.Config, *db.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	database, err := db.New(cfg.Database.Path, cfg.Database.ConnectionTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return cfg, database, nil
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, database, err := bootstrap()
	if err != nil {
		return err
	}
	defer database.Close()

	sqlDB, err := database.GetSQLDB()
	if err != nil {
		return err
	}
	if err := db.RunMigrations(sqlDB, cfg.Database.MigrationsPath); err != nil {
		return err
	}

	if config.Watch(func(updated *config.Config, err error) {
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Ignoring invalid config change")
			return
		}
		logger.SetLevel(updated.Logging.Level)
		logger.Log.Info().
			Str("level", updated.Logging.Level).
			Msg("Config reloaded")
	}) {
		logger.Log.Info().Msg("Watching config file for changes")
	}

	srv := server.New(cfg, database)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		logger.Log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
