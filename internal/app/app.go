// Package app wires configuration into the services shared by every binary.
package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aieou/sceneqc/internal/ai"
	"github.com/aieou/sceneqc/internal/api"
	"github.com/aieou/sceneqc/internal/attributes"
	"github.com/aieou/sceneqc/internal/config"
	"github.com/aieou/sceneqc/internal/database"
	"github.com/aieou/sceneqc/internal/ingest"
	"github.com/aieou/sceneqc/internal/processing"
	"github.com/aieou/sceneqc/internal/storage"
)

type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	DB           *database.DB
	Storage      *storage.LocalStorage
	Projects     *database.ProjectRepo
	Pipelines    *database.PipelineRepo
	Sequences    *database.SequenceRepo
	Frames       *database.FrameRepo
	Classifier   ai.Classifier
	Orchestrator *processing.Orchestrator
	Ingest       *ingest.Service
	Importer     *attributes.Importer
}

// New opens the database, applies pending migrations and builds the
// services. The caller must Close the returned App.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, err := storage.NewLocalStorage(cfg.Server.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}

	db, err := database.NewDB(cfg.DatabaseConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	classifier, err := ai.NewClassifier(cfg.ClassifierConfig(), logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize classifier: %w", err)
	}
	lock, err := processing.NewRunLock(cfg.Processing.LockDir)
	if err != nil {
		db.Close()
		return nil, err
	}

	extractor, err := ingest.NewExtractor(logger)
	if err != nil {
		logger.Warn("video ingest disabled", "error", err)
		extractor = nil
	}

	a := &App{
		Config:     cfg,
		Logger:     logger,
		DB:         db,
		Storage:    store,
		Projects:   database.NewProjectRepo(db),
		Pipelines:  database.NewPipelineRepo(db),
		Sequences:  database.NewSequenceRepo(db),
		Frames:     database.NewFrameRepo(db),
		Classifier: classifier,
	}
	a.Orchestrator = processing.NewOrchestrator(
		a.Sequences,
		a.Frames,
		processing.NewFrameClassifier(classifier, nil, store),
		logger,
		processing.WithFrameTimeout(cfg.FrameTimeout()),
		processing.WithRunLock(lock),
	)
	a.Ingest = ingest.NewService(a.Sequences, a.Frames, store, extractor, ingest.Config{DefaultFPS: cfg.Processing.DefaultFPS}, logger)
	a.Importer = attributes.NewImporter(a.Sequences, a.Frames, logger)

	logger.Info("services ready",
		"database", db.Type(),
		"upload_dir", cfg.Server.UploadDir,
		"classifier", classifier.Backend(),
		"video_ingest", a.Ingest.VideoEnabled(),
	)
	return a, nil
}

func (a *App) Handler() http.Handler {
	return api.NewRouter(&api.App{
		Projects:      a.Projects,
		Pipelines:     a.Pipelines,
		Sequences:     a.Sequences,
		Frames:        a.Frames,
		Storage:       a.Storage,
		Ingest:        a.Ingest,
		Importer:      a.Importer,
		Analyzer:      a.Orchestrator,
		MaxUploadSize: a.Config.Server.MaxUploadSize,
		Logger:        a.Logger,
	})
}

func (a *App) Close() error {
	return a.DB.Close()
}
