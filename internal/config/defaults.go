package config

import (
	"github.com/aieou/sceneqc/internal/ai"
	"github.com/aieou/sceneqc/internal/database"
)

const (
	defaultPort          = "8080"
	defaultUploadDir     = "./uploads"
	defaultMaxUploadSize = 100 << 20
	defaultSQLitePath    = "./sceneqc.db"
	defaultPostgresPort  = 5432
	defaultFrameTimeout  = 120
	defaultFPS           = 1.0
)

// Default returns the configuration used when nothing else is set: SQLite
// next to the binary and the hosted inference classifier, which still needs
// an API token. The stub backend is only used when asked for by name.
func Default() Config {
	return Config{
		Server: Server{
			Port:          defaultPort,
			UploadDir:     defaultUploadDir,
			MaxUploadSize: defaultMaxUploadSize,
		},
		Database: Database{
			Type: database.TypeSQLite,
			Path: defaultSQLitePath,
			Host: "localhost",
			Port: defaultPostgresPort,
			User: "sceneqc",
			Name: "sceneqc",
		},
		Classifier: Classifier{
			Backend:        ai.BackendInference,
			Transport:      ai.TransportHuggingFace,
			BaseURL:        ai.DefaultBaseURL,
			Model:          ai.DefaultModel,
			TimeoutSeconds: 30,
			MaxAttempts:    2,
		},
		Processing: Processing{
			FrameTimeoutSeconds: defaultFrameTimeout,
			DefaultFPS:          defaultFPS,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
