// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerPort                = 8080
	defaultServerHost                = "0.0.0.0"
	defaultReadTimeout               = 30 * time.Second
	defaultWriteTimeout              = 30 * time.Second
	defaultDatabasePath              = "./data/cutroom.db"
	defaultDatabaseConnectionTimeout = 5 * time.Second
	defaultMigrationsPath            = "file://./migrations"
	defaultLogLevel                  = "info"
	defaultLogPretty                 = false
	envPrefix                        = "CUTROOM"
)

// Playback defaults mirror the editor's fixed output settings
const (
	defaultFPS            = 30
	defaultOutputWidth    = 1920
	defaultOutputHeight   = 1080
	defaultEndEpsilon     = 0.1
	defaultCommandTimeout = 5 * time.Second
)

const (
	defaultViewportPadding      = 4
	defaultZoomMinVisible       = 1.0
	defaultZoomStep             = 1.1
	defaultZoomMaxVisible       = 0.0
	defaultBackendKind          = BackendFFmpeg
	defaultFFmpegPath           = "ffmpeg"
	defaultFFprobePath          = "ffprobe"
	defaultBackendHWAccel       = "none"
	defaultBreakerThreshold     = 5
	defaultBreakerResetTimeout  = 10 * time.Second
	defaultSessionIdleTimeout   = 10 * time.Minute
	defaultSessionCleanupPeriod = time.Minute
)

// Backend kinds
const (
	BackendFFmpeg    = "ffmpeg"
	BackendSynthetic = "synthetic"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Playback PlaybackConfig
	Viewport ViewportConfig
	Zoom     ZoomConfig
	Backend  BackendConfig
	Session  SessionConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Path              string
	ConnectionTimeout time.Duration
	MigrationsPath    string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// PlaybackConfig holds the playback controller settings
type PlaybackConfig struct {
	FPS          int
	OutputWidth  int
	OutputHeight int
	// EndEpsilon is the tolerance in seconds for treating "almost at end" as at end
	EndEpsilon     float64
	CommandTimeout time.Duration
}

// ViewportConfig holds frame presentation settings
type ViewportConfig struct {
	Padding float64
}

// ZoomConfig holds timeline zoom settings
type ZoomConfig struct {
	MinVisibleSeconds float64
	Step              float64
	// MaxVisibleSeconds caps the zoom-out limit; 0 means use the total duration
	MaxVisibleSeconds float64
}

// BackendConfig selects and tunes the decode backend
type BackendConfig struct {
	Kind        string
	FFmpegPath  string
	FFprobePath string
	// HWAccel is none, auto or a specific ffmpeg hwaccel method
	HWAccel             string
	BreakerThreshold    int
	BreakerResetTimeout time.Duration
}

// SessionConfig holds editor session lifecycle settings
type SessionConfig struct {
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	// .env files are optional in production and CI where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := newViper()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	return decode(v)
}

// Watch re-decodes the config file whenever it changes and passes the result to onChange.
// It returns false when no config file is present to watch.
func Watch(onChange func(*Config, error)) bool {
	v := newViper()
	if err := v.ReadInConfig(); err != nil {
		return false
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(decode(v))
	})
	v.WatchConfig()

	return true
}

func newViper() *viper.Viper {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cutroom")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)

	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.connectiontimeout", defaultDatabaseConnectionTimeout)
	v.SetDefault("database.migrationspath", defaultMigrationsPath)

	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	v.SetDefault("playback.fps", defaultFPS)
	v.SetDefault("playback.outputwidth", defaultOutputWidth)
	v.SetDefault("playback.outputheight", defaultOutputHeight)
	v.SetDefault("playback.endepsilon", defaultEndEpsilon)
	v.SetDefault("playback.commandtimeout", defaultCommandTimeout)

	v.SetDefault("viewport.padding", defaultViewportPadding)

	v.SetDefault("zoom.minvisibleseconds", defaultZoomMinVisible)
	v.SetDefault("zoom.step", defaultZoomStep)
	v.SetDefault("zoom.maxvisibleseconds", defaultZoomMaxVisible)

	v.SetDefault("backend.kind", defaultBackendKind)
	v.SetDefault("backend.ffmpegpath", defaultFFmpegPath)
	v.SetDefault("backend.ffprobepath", defaultFFprobePath)
	v.SetDefault("backend.hwaccel", defaultBackendHWAccel)
	v.SetDefault("backend.breakerthreshold", defaultBreakerThreshold)
	v.SetDefault("backend.breakerresettimeout", defaultBreakerResetTimeout)

	v.SetDefault("session.idletimeout", defaultSessionIdleTimeout)
	v.SetDefault("session.cleanupinterval", defaultSessionCleanupPeriod)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}
	if c.Database.ConnectionTimeout <= 0 {
		return fmt.Errorf("invalid database connection timeout: %v (must be > 0)", c.Database.ConnectionTimeout)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if err := c.Playback.validate(); err != nil {
		return err
	}

	if c.Viewport.Padding < 0 {
		return fmt.Errorf("invalid viewport padding: %v (must be >= 0)", c.Viewport.Padding)
	}

	if c.Zoom.MinVisibleSeconds <= 0 {
		return fmt.Errorf("invalid zoom minimum: %v (must be > 0)", c.Zoom.MinVisibleSeconds)
	}
	if c.Zoom.Step <= 1 {
		return fmt.Errorf("invalid zoom step: %v (must be > 1)", c.Zoom.Step)
	}
	if c.Zoom.MaxVisibleSeconds < 0 {
		return fmt.Errorf("invalid zoom maximum: %v (must be >= 0)", c.Zoom.MaxVisibleSeconds)
	}

	validBackends := []string{BackendFFmpeg, BackendSynthetic}
	if !contains(validBackends, c.Backend.Kind) {
		return fmt.Errorf("invalid backend kind: %s (must be one of: %s)", c.Backend.Kind, strings.Join(validBackends, ", "))
	}
	validHWAccels := []string{"none", "auto", "cuda", "qsv", "vaapi", "videotoolbox"}
	if !contains(validHWAccels, c.Backend.HWAccel) {
		return fmt.Errorf("invalid hwaccel: %s (must be one of: %s)", c.Backend.HWAccel, strings.Join(validHWAccels, ", "))
	}
	if c.Backend.BreakerThreshold < 1 {
		return fmt.Errorf("invalid breaker threshold: %d (must be >= 1)", c.Backend.BreakerThreshold)
	}
	if c.Backend.BreakerResetTimeout <= 0 {
		return fmt.Errorf("invalid breaker reset timeout: %v (must be > 0)", c.Backend.BreakerResetTimeout)
	}

	if c.Session.IdleTimeout <= 0 || c.Session.CleanupInterval <= 0 {
		return fmt.Errorf("invalid session timing: idle %v, cleanup %v (must be > 0)", c.Session.IdleTimeout, c.Session.CleanupInterval)
	}

	return nil
}

func (p PlaybackConfig) validate() error {
	if p.FPS < 1 || p.FPS > 240 {
		return fmt.Errorf("invalid fps: %d (must be between 1 and 240)", p.FPS)
	}
	if p.OutputWidth < 1 || p.OutputHeight < 1 {
		return fmt.Errorf("invalid output size: %dx%d", p.OutputWidth, p.OutputHeight)
	}
	if p.EndEpsilon < 0 {
		return fmt.Errorf("invalid end epsilon: %v (must be >= 0)", p.EndEpsilon)
	}
	if p.CommandTimeout <= 0 {
		return fmt.Errorf("invalid command timeout: %v (must be > 0)", p.CommandTimeout)
	}
	return nil
}

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	return slices.Contains(slice, item)
}
