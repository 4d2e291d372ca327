// Package config loads service settings from a TOML file, a .env file and
// the process environment, in that order of increasing precedence.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/aieou/sceneqc/internal/ai"
	"github.com/aieou/sceneqc/internal/database"
)

//go:embed sample_config.toml
var sampleConfig string

const (
	EnvConfigPath     = "SCENEQC_CONFIG"
	defaultConfigFile = "sceneqc.toml"
)

// Server contains HTTP listener and upload settings.
type Server struct {
	Port          string `toml:"port"`
	UploadDir     string `toml:"upload_dir"`
	MaxUploadSize int64  `toml:"max_upload_size"`
}

type Database struct {
	Type     string `toml:"type"`
	Path     string `toml:"path"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
}

// Classifier selects and configures the zero-shot image classifier.
type Classifier struct {
	Backend            string `toml:"backend"`
	Transport          string `toml:"transport"`
	BaseURL            string `toml:"base_url"`
	Model              string `toml:"model"`
	APIToken           string `toml:"api_token"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	MaxAttempts        int    `toml:"max_attempts"`
	InlineRemoteImages bool   `toml:"inline_remote_images"`
}

// Processing tunes sequence analysis runs.
type Processing struct {
	// FrameTimeoutSeconds bounds the classifier calls made for one frame.
	FrameTimeoutSeconds int `toml:"frame_timeout_seconds"`
	// LockDir holds per-sequence run locks. Empty disables locking.
	LockDir string `toml:"lock_dir"`
	// DefaultFPS is used when extracting frames from video for a sequence
	// without a frame rate.
	DefaultFPS float64 `toml:"default_fps"`
}

type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

type Config struct {
	Server     Server     `toml:"server"`
	Database   Database   `toml:"database"`
	Classifier Classifier `toml:"classifier"`
	Processing Processing `toml:"processing"`
	Logging    Logging    `toml:"logging"`
}

// Load reads the config file (if any), then .env, then environment
// overrides, and validates the result. It returns the resolved file path
// and whether that file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", false, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, "", false, err
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

// Parse decodes TOML text on top of the defaults without consulting the
// environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SampleConfig returns a commented config file with every option.
func SampleConfig() string {
	return sampleConfig
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if path == "" {
		path = defaultConfigFile
	}
	absolute, err := filepath.Abs(path)
	if err != nil {
		return "", false, fmt.Errorf("resolve config path: %w", err)
	}
	info, err := os.Stat(absolute)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return absolute, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %s is a directory", absolute)
	}
	return absolute, true, nil
}

func (c *Config) DatabaseConfig() database.Config {
	return database.Config{
		Type:       c.Database.Type,
		Host:       c.Database.Host,
		Port:       c.Database.Port,
		User:       c.Database.User,
		Password:   c.Database.Password,
		Name:       c.Database.Name,
		SQLitePath: c.Database.Path,
	}
}

func (c *Config) ClassifierConfig() *ai.Config {
	return &ai.Config{
		Backend:            c.Classifier.Backend,
		Transport:          c.Classifier.Transport,
		BaseURL:            c.Classifier.BaseURL,
		Model:              c.Classifier.Model,
		APIToken:           c.Classifier.APIToken,
		TimeoutSeconds:     c.Classifier.TimeoutSeconds,
		MaxAttempts:        c.Classifier.MaxAttempts,
		InlineRemoteImages: c.Classifier.InlineRemoteImages,
	}
}

func (c *Config) FrameTimeout() time.Duration {
	return time.Duration(c.Processing.FrameTimeoutSeconds) * time.Second
}
