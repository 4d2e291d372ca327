package database

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aieou/sceneqc/internal/models"
)

func TestMigrateVersion(t *testing.T) {
	db := OpenTestDB(t)
	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Already current.
	require.NoError(t, db.MigrateUp())
}

func TestRebind(t *testing.T) {
	pg := &DB{dbType: TypePostgres}
	assert.Equal(t, "SELECT * FROM frames WHERE id = $1 AND n = $2", pg.rebind("SELECT * FROM frames WHERE id = ? AND n = ?"))
	lite := &DB{dbType: TypeSQLite}
	assert.Equal(t, "id = ?", lite.rebind("id = ?"))
}

func TestHierarchyRepos(t *testing.T) {
	db := OpenTestDB(t)
	ctx := context.Background()
	projects := NewProjectRepo(db)
	pipelines := NewPipelineRepo(db)
	sequences := NewSequenceRepo(db)

	project := models.NewProject("Urban drives", "Q3 capture")
	require.NoError(t, projects.Create(ctx, project))

	got, err := projects.GetByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Urban drives", got.Name)
	assert.Equal(t, models.ProjectActive, got.Status)

	list, err := projects.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	pipeline := models.NewPipeline(project.ID, "Daytime", "")
	require.NoError(t, pipelines.Create(ctx, pipeline))
	updated, err := pipelines.UpdateStatus(ctx, pipeline.ID, models.PipelineActive)
	require.NoError(t, err)
	assert.Equal(t, models.PipelineActive, updated.Status)

	orphan := models.NewPipeline(uuid.NewString(), "Orphan", "")
	assert.ErrorIs(t, pipelines.Create(ctx, orphan), ErrProjectNotFound)

	fps := 10.0
	seq := models.NewSequence(pipeline.ID, "Highway-01", &fps)
	require.NoError(t, sequences.Create(ctx, seq))
	byPipeline, err := sequences.ListByPipeline(ctx, pipeline.ID)
	require.NoError(t, err)
	require.Len(t, byPipeline, 1)
	require.NotNil(t, byPipeline[0].FPS)
	assert.Equal(t, 10.0, *byPipeline[0].FPS)

	_, err = NewFrameRepo(db).Create(ctx, models.NewFrame{SequenceID: seq.ID})
	require.NoError(t, err)
	require.NoError(t, sequences.Finish(ctx, seq.ID, models.SequenceProcessed))
	stored, err := sequences.GetByID(ctx, seq.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SequenceProcessed, stored.Status)
	assert.Equal(t, 1, stored.TotalFrames)

	duration := 12.5
	require.NoError(t, sequences.RefreshTotalFrames(ctx, seq.ID, &duration))
	stored, err = sequences.GetByID(ctx, seq.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Duration)
	assert.Equal(t, 12.5, *stored.Duration)

	// Deleting the project cascades to everything below it.
	require.NoError(t, projects.Delete(ctx, project.ID))
	_, err = sequences.GetByID(ctx, seq.ID)
	assert.ErrorIs(t, err, ErrSequenceNotFound)
	n, err := NewFrameRepo(db).CountBySequence(ctx, seq.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.ErrorIs(t, projects.Delete(ctx, project.ID), ErrProjectNotFound)
	_, err = projects.GetByID(ctx, "bogus")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}
