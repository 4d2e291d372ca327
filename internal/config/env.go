package config

import (
	"fmt"
	"strconv"
	"strings"
)

type lookupFunc func(string) (string, bool)

// applyEnv overrides file values with environment variables. The first name
// that is set wins.
func (c *Config) applyEnv(lookup lookupFunc) error {
	envString(lookup, &c.Server.Port, "PORT")
	envString(lookup, &c.Server.UploadDir, "UPLOAD_DIR")
	if err := envInt64(lookup, &c.Server.MaxUploadSize, "MAX_UPLOAD_SIZE"); err != nil {
		return err
	}

	envString(lookup, &c.Database.Type, "DB_TYPE")
	envString(lookup, &c.Database.Path, "DB_PATH")
	envString(lookup, &c.Database.Host, "DB_HOST")
	if err := envInt(lookup, &c.Database.Port, "DB_PORT"); err != nil {
		return err
	}
	envString(lookup, &c.Database.User, "DB_USER")
	envString(lookup, &c.Database.Password, "DB_PASSWORD")
	envString(lookup, &c.Database.Name, "DB_NAME")

	envString(lookup, &c.Classifier.Backend, "CLASSIFIER_BACKEND")
	envString(lookup, &c.Classifier.Transport, "CLASSIFIER_TRANSPORT")
	envString(lookup, &c.Classifier.BaseURL, "CLASSIFIER_BASE_URL")
	envString(lookup, &c.Classifier.Model, "CLASSIFIER_MODEL")
	envString(lookup, &c.Classifier.APIToken, "CLASSIFIER_API_TOKEN", "HUGGINGFACE_API_KEY")
	if err := envBool(lookup, &c.Classifier.InlineRemoteImages, "CLASSIFIER_INLINE_REMOTE_IMAGES"); err != nil {
		return err
	}

	envString(lookup, &c.Processing.LockDir, "LOCK_DIR")

	envString(lookup, &c.Logging.Level, "LOG_LEVEL")
	envString(lookup, &c.Logging.Format, "LOG_FORMAT")
	return nil
}

func envString(lookup lookupFunc, dst *string, names ...string) {
	for _, name := range names {
		if value, ok := lookup(name); ok && strings.TrimSpace(value) != "" {
			*dst = strings.TrimSpace(value)
			return
		}
	}
}

func envInt(lookup lookupFunc, dst *int, name string) error {
	value, ok := lookup(name)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = n
	return nil
}

func envInt64(lookup lookupFunc, dst *int64, name string) error {
	value, ok := lookup(name)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = n
	return nil
}

func envBool(lookup lookupFunc, dst *bool, name string) error {
	value, ok := lookup(name)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = b
	return nil
}
