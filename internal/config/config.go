// Package config provides configuration management for the cuedeck agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort     = 8840
	DefaultLogLevel = "info"
	DefaultDataDir  = ".cuedeck"
	DefaultEngine   = "mpv"

	// Environment variable names
	EnvPort     = "CUEDECK_PORT"
	EnvLogLevel = "CUEDECK_LOG_LEVEL"
	EnvDataDir  = "CUEDECK_DATA_DIR"
	EnvEngine   = "CUEDECK_ENGINE"
	EnvPlayer   = "CUEDECK_PLAYER_BIN"
	EnvWatch    = "CUEDECK_WATCH"

	// Database filename
	DBFilename = "cuedeck.db"

	// Engine defaults
	DefaultEngineStartTimeout = 10 // seconds
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	Engine() string
	PlayerBin() string
	EngineStartTimeout() time.Duration
	WatchDescriptor() bool
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port      int
	logLevel  string
	dataDir   string
	engine    string
	playerBin string
	watch     bool
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:     DefaultPort,
		logLevel: DefaultLogLevel,
		dataDir:  defaultDataDir(),
		engine:   DefaultEngine,
		watch:    true,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	// Override log level from environment
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	// Override data directory from environment
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if e := os.Getenv(EnvEngine); e != "" {
		if e != "mpv" && e != "stub" {
			return nil, fmt.Errorf("invalid %s: must be mpv or stub", EnvEngine)
		}
		cfg.engine = e
	}

	cfg.playerBin = os.Getenv(EnvPlayer)

	if w := os.Getenv(EnvWatch); w != "" {
		watch, err := strconv.ParseBool(w)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvWatch, err)
		}
		cfg.watch = watch
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// Engine returns the playback engine kind: mpv or stub
func (c *EnvConfig) Engine() string {
	return c.engine
}

// PlayerBin returns the configured player binary path, or empty for
// auto-detection
func (c *EnvConfig) PlayerBin() string {
	return c.playerBin
}

func (c *EnvConfig) EngineStartTimeout() time.Duration {
	return time.Duration(DefaultEngineStartTimeout) * time.Second
}

// WatchDescriptor reports whether the agent watches the open project's
// descriptor file for outside edits
func (c *EnvConfig) WatchDescriptor() bool {
	return c.watch
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
