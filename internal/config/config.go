// Package config provides configuration management for the render agent.
// Values come from defaults, then an optional TOML file, then environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/studiokit/render-agent/internal/timecode"
)

const (
	DefaultPort              = 8787
	DefaultLogLevel          = "info"
	DefaultDataDir           = ".studio-agent"
	DefaultFrameRate         = 30.0
	DefaultRunnerPollSeconds = 2

	EnvConfigFile        = "STUDIO_CONFIG"
	EnvPort              = "STUDIO_PORT"
	EnvLogLevel          = "STUDIO_LOG_LEVEL"
	EnvDataDir           = "STUDIO_DATA_DIR"
	EnvStorageURL        = "STUDIO_STORAGE_URL"
	EnvStorageToken      = "STUDIO_STORAGE_TOKEN"
	EnvPublicBaseURL     = "STUDIO_PUBLIC_BASE_URL"
	EnvDefaultFrameRate  = "STUDIO_DEFAULT_FRAME_RATE"
	EnvRunnerPollSeconds = "STUDIO_RUNNER_POLL_SECONDS"
	EnvCORSOrigins       = "STUDIO_CORS_ORIGINS"

	DBFilename   = "studio.db"
	LockFilename = "agent.lock"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	LockPath() string
	ExportDir() string
	// StorageURL is the base URL of an HTTP object store. Empty means
	// exports are kept in ExportDir and served by the agent.
	StorageURL() string
	StorageToken() string
	PublicBaseURL() string
	DefaultFrameRate() float64
	RunnerPollInterval() time.Duration
	// CORSOrigins are browser origins allowed in addition to loopback.
	CORSOrigins() []string
}

// fileConfig mirrors the TOML file layout.
type fileConfig struct {
	Port              int      `toml:"port"`
	LogLevel          string   `toml:"log_level"`
	DataDir           string   `toml:"data_dir"`
	StorageURL        string   `toml:"storage_url"`
	StorageToken      string   `toml:"storage_token"`
	PublicBaseURL     string   `toml:"public_base_url"`
	DefaultFrameRate  float64  `toml:"default_frame_rate"`
	RunnerPollSeconds int      `toml:"runner_poll_seconds"`
	CORSOrigins       []string `toml:"cors_origins"`
}

// EnvConfig is the resolved configuration.
type EnvConfig struct {
	values fileConfig
	source string
}

// New loads the file named by STUDIO_CONFIG (if any) and applies env overrides.
func New() (*EnvConfig, error) {
	return Load(os.Getenv(EnvConfigFile))
}

// Load reads path (skipped when empty) and applies env overrides.
func Load(path string) (*EnvConfig, error) {
	cfg := &EnvConfig{values: fileConfig{
		Port:              DefaultPort,
		LogLevel:          DefaultLogLevel,
		DataDir:           defaultDataDir(),
		DefaultFrameRate:  DefaultFrameRate,
		RunnerPollSeconds: DefaultRunnerPollSeconds,
	}}

	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *EnvConfig) readFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&c.values); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("parse config %s: %s", path, strict.String())
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	c.source = path
	return nil
}

func (c *EnvConfig) applyEnv() error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.values.Port = port
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.values.LogLevel = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.values.DataDir = v
	}
	if v := os.Getenv(EnvStorageURL); v != "" {
		c.values.StorageURL = v
	}
	if v := os.Getenv(EnvStorageToken); v != "" {
		c.values.StorageToken = v
	}
	if v := os.Getenv(EnvPublicBaseURL); v != "" {
		c.values.PublicBaseURL = v
	}
	if v := os.Getenv(EnvDefaultFrameRate); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvDefaultFrameRate, err)
		}
		c.values.DefaultFrameRate = rate
	}
	if v := os.Getenv(EnvRunnerPollSeconds); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvRunnerPollSeconds, err)
		}
		c.values.RunnerPollSeconds = secs
	}
	if v := os.Getenv(EnvCORSOrigins); v != "" {
		c.values.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.values.CORSOrigins = append(c.values.CORSOrigins, o)
			}
		}
	}
	return nil
}

func (c *EnvConfig) validate() error {
	if c.values.Port < 1 || c.values.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.values.Port)
	}
	if strings.TrimSpace(c.values.DataDir) == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if _, err := timecode.Timebase(c.values.DefaultFrameRate); err != nil {
		return fmt.Errorf("invalid default_frame_rate %v: %w", c.values.DefaultFrameRate, err)
	}
	if c.values.RunnerPollSeconds < 1 {
		return fmt.Errorf("invalid runner_poll_seconds %d: must be at least 1", c.values.RunnerPollSeconds)
	}
	return nil
}

// Source returns the config file path that was loaded, or "".
func (c *EnvConfig) Source() string {
	return c.source
}

func (c *EnvConfig) Port() int {
	return c.values.Port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.values.LogLevel
}

func (c *EnvConfig) DataDir() string {
	return c.values.DataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.values.DataDir, DBFilename)
}

func (c *EnvConfig) LockPath() string {
	return filepath.Join(c.values.DataDir, LockFilename)
}

func (c *EnvConfig) ExportDir() string {
	return filepath.Join(c.values.DataDir, "exports")
}

func (c *EnvConfig) StorageURL() string {
	return c.values.StorageURL
}

func (c *EnvConfig) StorageToken() string {
	return c.values.StorageToken
}

// PublicBaseURL defaults to the agent's loopback address.
func (c *EnvConfig) PublicBaseURL() string {
	if c.values.PublicBaseURL != "" {
		return strings.TrimRight(c.values.PublicBaseURL, "/")
	}
	return fmt.Sprintf("http://127.0.0.1:%d", c.values.Port)
}

func (c *EnvConfig) DefaultFrameRate() float64 {
	return c.values.DefaultFrameRate
}

func (c *EnvConfig) RunnerPollInterval() time.Duration {
	return time.Duration(c.values.RunnerPollSeconds) * time.Second
}

func (c *EnvConfig) CORSOrigins() []string {
	return c.values.CORSOrigins
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
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
