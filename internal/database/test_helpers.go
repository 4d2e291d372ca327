package database

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/aieou/sceneqc/internal/models"
)

// OpenTestDB opens a migrated SQLite database in a temporary directory. It is
// closed when the test ends.
func OpenTestDB(t testing.TB) *DB {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := NewDB(Config{
		Type:       TypeSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "sceneqc_test.db"),
	}, logger)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.MigrateUp(); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// SeedSequence creates a project, a pipeline and a sequence with the given
// number of frames, each with an image key.
func SeedSequence(t testing.TB, db *DB, frameCount int) (*models.Sequence, []*models.Frame) {
	t.Helper()
	ctx := context.Background()

	project := models.NewProject("Test Project", "")
	if err := NewProjectRepo(db).Create(ctx, project); err != nil {
		t.Fatalf("Failed to insert project: %v", err)
	}
	pipeline := models.NewPipeline(project.ID, "Test Pipeline", "")
	if err := NewPipelineRepo(db).Create(ctx, pipeline); err != nil {
		t.Fatalf("Failed to insert pipeline: %v", err)
	}
	seq := models.NewSequence(pipeline.ID, "Test Sequence", nil)
	if err := NewSequenceRepo(db).Create(ctx, seq); err != nil {
		t.Fatalf("Failed to insert sequence: %v", err)
	}

	newFrames := make([]models.NewFrame, 0, frameCount)
	for i := 0; i < frameCount; i++ {
		newFrames = append(newFrames, models.NewFrame{
			SequenceID:  seq.ID,
			TimestampMS: int64(i) * 1000,
			ImageURL:    fmt.Sprintf("https://images.example.com/%s/%04d.jpg", seq.ID, i+1),
		})
	}
	frames, err := NewFrameRepo(db).CreateBatch(ctx, newFrames)
	if err != nil {
		t.Fatalf("Failed to insert frames: %v", err)
	}
	return seq, frames
}
