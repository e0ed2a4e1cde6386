// Package config provides configuration management for reelcut.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/heimdex/reelcut/internal/planner"
)

const (
	// Default values
	DefaultPort     = 8788
	DefaultLogLevel = "info"
	DefaultDataDir  = ".reelcut"

	// Environment variable names
	EnvPort      = "REELCUT_PORT"
	EnvLogLevel  = "REELCUT_LOG_LEVEL"
	EnvDataDir   = "REELCUT_DATA_DIR"
	EnvFFmpeg    = "REELCUT_FFMPEG"
	EnvFFprobe   = "REELCUT_FFPROBE"
	EnvAssetsDir = "REELCUT_ASSETS_DIR"
	EnvHeadless  = "REELCUT_HEADLESS"

	// Database filename
	DBFilename = "reelcut.db"

	// Planner defaults override file, relative to the data directory
	DefaultsFilename = "defaults.toml"

	// Bundled asset filenames, relative to the assets directory
	MusicFilename = "music.m4a"
	BleepFilename = "bleep.wav"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ExportsDir() string
	WorkDir() string
	DefaultsPath() string
	FFmpegPath() string
	FFprobePath() string
	AssetsDir() string
	FallbackMusicPath() string
	BleepPath() string
	Headless() bool
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port      int
	logLevel  string
	dataDir   string
	ffmpeg    string
	ffprobe   string
	assetsDir string
	headless  bool
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:     DefaultPort,
		logLevel: DefaultLogLevel,
		dataDir:  defaultDataDir(),
	}

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

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.ffmpeg = os.Getenv(EnvFFmpeg)
	cfg.ffprobe = os.Getenv(EnvFFprobe)
	cfg.assetsDir = os.Getenv(EnvAssetsDir)

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
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

// ExportsDir is where finished reels are kept.
func (c *EnvConfig) ExportsDir() string {
	return filepath.Join(c.dataDir, "exports")
}

// WorkDir is where renders are written before they join the library.
func (c *EnvConfig) WorkDir() string {
	return filepath.Join(c.dataDir, "work")
}

func (c *EnvConfig) DefaultsPath() string {
	return filepath.Join(c.dataDir, DefaultsFilename)
}

// FFmpegPath returns the configured ffmpeg, or "" to search PATH.
func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpeg
}

func (c *EnvConfig) FFprobePath() string {
	return c.ffprobe
}

// AssetsDir holds the bundled music bed and bleep. It defaults to the assets
// directory next to the data directory.
func (c *EnvConfig) AssetsDir() string {
	if c.assetsDir != "" {
		return c.assetsDir
	}
	return filepath.Join(c.dataDir, "assets")
}

// FallbackMusicPath returns the bundled music bed, or "" when it is not
// installed.
func (c *EnvConfig) FallbackMusicPath() string {
	return existing(filepath.Join(c.AssetsDir(), MusicFilename))
}

// BleepPath returns the bundled bleep, or "" when it is not installed.
func (c *EnvConfig) BleepPath() string {
	return existing(filepath.Join(c.AssetsDir(), BleepFilename))
}

func (c *EnvConfig) Headless() bool {
	return c.headless
}

func existing(path string) string {
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path
	}
	return ""
}

// LoadPlannerDefaults overlays the keys present in a TOML file onto base. A
// missing file leaves base unchanged.
func LoadPlannerDefaults(path string, base planner.Config) (planner.Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return base, nil
		}
		return base, fmt.Errorf("read planner defaults: %w", err)
	}

	cfg := base
	dec := toml.NewDecoder(bytes.NewReader(contents))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return base, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return base, fmt.Errorf("invalid planner defaults in %s: %w", path, err)
	}
	return cfg, nil
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
