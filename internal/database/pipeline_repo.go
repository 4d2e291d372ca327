package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/aieou/sceneqc/internal/models"
)

type PipelineRepo struct {
	db *DB
}

func NewPipelineRepo(db *DB) *PipelineRepo {
	return &PipelineRepo{db: db}
}

func (r *PipelineRepo) Create(ctx context.Context, pipeline *models.Pipeline) error {
	err := r.db.GORM().WithContext(ctx).Create(pipeline).Error
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("failed to insert pipeline: %w", err)
	}
	return nil
}

func (r *PipelineRepo) GetByID(ctx context.Context, id string) (*models.Pipeline, error) {
	if !validID(id) {
		return nil, ErrPipelineNotFound
	}
	var pipeline models.Pipeline
	err := r.db.GORM().WithContext(ctx).First(&pipeline, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPipelineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline: %w", err)
	}
	return &pipeline, nil
}

func (r *PipelineRepo) ListByProject(ctx context.Context, projectID string) ([]models.Pipeline, error) {
	pipelines := make([]models.Pipeline, 0)
	if !validID(projectID) {
		return pipelines, nil
	}
	err := r.db.GORM().WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at").
		Find(&pipelines).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pipelines: %w", err)
	}
	return pipelines, nil
}

// UpdateStatus changes only the pipeline; sequence statuses are untouched.
func (r *PipelineRepo) UpdateStatus(ctx context.Context, id string, status models.PipelineStatus) (*models.Pipeline, error) {
	if !validID(id) {
		return nil, ErrPipelineNotFound
	}
	res := r.db.GORM().WithContext(ctx).Model(&models.Pipeline{}).Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update pipeline: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrPipelineNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *PipelineRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrPipelineNotFound
	}
	res := r.db.GORM().WithContext(ctx).Delete(&models.Pipeline{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete pipeline: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrPipelineNotFound
	}
	return nil
}
