package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aieou/sceneqc/internal/ai"
	"github.com/aieou/sceneqc/internal/database"
)

func (c *Config) normalize() {
	c.Server.Port = strings.TrimPrefix(strings.TrimSpace(c.Server.Port), ":")
	c.Database.Type = strings.ToLower(strings.TrimSpace(c.Database.Type))
	c.Classifier.Backend = strings.ToLower(strings.TrimSpace(c.Classifier.Backend))
	c.Classifier.Transport = strings.ToLower(strings.TrimSpace(c.Classifier.Transport))
	c.Classifier.BaseURL = strings.TrimRight(strings.TrimSpace(c.Classifier.BaseURL), "/")
	c.Classifier.APIToken = strings.TrimSpace(c.Classifier.APIToken)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Classifier.Transport == "" {
		c.Classifier.Transport = ai.TransportHuggingFace
	}
	if c.Classifier.MaxAttempts <= 0 {
		c.Classifier.MaxAttempts = 1
	}
	if c.Processing.DefaultFPS <= 0 {
		c.Processing.DefaultFPS = defaultFPS
	}
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	if c.Processing.FrameTimeoutSeconds < 0 {
		return errors.New("processing.frame_timeout_seconds must not be negative")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port == "" {
		return errors.New("server.port must be set")
	}
	if c.Server.MaxUploadSize <= 0 {
		return errors.New("server.max_upload_size must be positive")
	}
	if strings.TrimSpace(c.Server.UploadDir) == "" {
		return errors.New("server.upload_dir must be set")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Type {
	case database.TypeSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database.path is required for sqlite")
		}
	case database.TypePostgres:
		if c.Database.Host == "" || c.Database.Name == "" || c.Database.User == "" {
			return errors.New("database.host, database.name and database.user are required for postgres")
		}
		if c.Database.Port <= 0 {
			return errors.New("database.port must be positive")
		}
	default:
		return fmt.Errorf("database.type must be sqlite or postgres, got %q", c.Database.Type)
	}
	return nil
}

func (c *Config) validateClassifier() error {
	switch c.Classifier.Backend {
	case ai.BackendStub:
		return nil
	case ai.BackendInference:
	default:
		return fmt.Errorf("classifier.backend must be inference or stub, got %q", c.Classifier.Backend)
	}
	if c.Classifier.APIToken == "" {
		return errors.New("classifier.api_token is required for the inference backend. Set HUGGINGFACE_API_KEY or CLASSIFIER_API_TOKEN")
	}
	switch c.Classifier.Transport {
	case ai.TransportHuggingFace:
	case ai.TransportProxy:
		if c.Classifier.BaseURL == "" {
			return errors.New("classifier.base_url is required for the proxy transport")
		}
	default:
		return fmt.Errorf("classifier.transport must be huggingface or proxy, got %q", c.Classifier.Transport)
	}
	if c.Classifier.TimeoutSeconds < 0 {
		return errors.New("classifier.timeout_seconds must not be negative")
	}
	return nil
}
