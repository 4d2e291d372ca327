package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/aieou/sceneqc/internal/models"
)

type SequenceRepo struct {
	db *DB
}

func NewSequenceRepo(db *DB) *SequenceRepo {
	return &SequenceRepo{db: db}
}

func (r *SequenceRepo) Create(ctx context.Context, seq *models.Sequence) error {
	err := r.db.GORM().WithContext(ctx).Create(seq).Error
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrPipelineNotFound
		}
		return fmt.Errorf("failed to insert sequence: %w", err)
	}
	return nil
}

func (r *SequenceRepo) GetByID(ctx context.Context, id string) (*models.Sequence, error) {
	if !validID(id) {
		return nil, ErrSequenceNotFound
	}
	var seq models.Sequence
	err := r.db.GORM().WithContext(ctx).First(&seq, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSequenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sequence: %w", err)
	}
	return &seq, nil
}

func (r *SequenceRepo) ListByPipeline(ctx context.Context, pipelineID string) ([]models.Sequence, error) {
	sequences := make([]models.Sequence, 0)
	if !validID(pipelineID) {
		return sequences, nil
	}
	err := r.db.GORM().WithContext(ctx).
		Where("pipeline_id = ?", pipelineID).
		Order("created_at").
		Find(&sequences).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sequences: %w", err)
	}
	return sequences, nil
}

func (r *SequenceRepo) UpdateStatus(ctx context.Context, id string, status models.SequenceStatus) error {
	return r.update(ctx, id, map[string]any{"status": status})
}

// Finish records the outcome of a run and resets total_frames to the number
// of frames the sequence owns.
func (r *SequenceRepo) Finish(ctx context.Context, id string, status models.SequenceStatus) error {
	return r.update(ctx, id, map[string]any{
		"status":       status,
		"total_frames": r.frameCount(id),
	})
}

// RefreshTotalFrames resets total_frames after frames were added or removed,
// and optionally records the footage duration in seconds.
func (r *SequenceRepo) RefreshTotalFrames(ctx context.Context, id string, duration *float64) error {
	values := map[string]any{"total_frames": r.frameCount(id)}
	if duration != nil {
		values["duration"] = *duration
	}
	return r.update(ctx, id, values)
}

func (r *SequenceRepo) frameCount(id string) *gorm.DB {
	return r.db.GORM().Table("frames").Select("COUNT(*)").Where("sequence_id = ?", id)
}

func (r *SequenceRepo) update(ctx context.Context, id string, values map[string]any) error {
	if !validID(id) {
		return ErrSequenceNotFound
	}
	values["updated_at"] = time.Now().UTC()
	res := r.db.GORM().WithContext(ctx).Model(&models.Sequence{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("failed to update sequence: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSequenceNotFound
	}
	return nil
}

func (r *SequenceRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrSequenceNotFound
	}
	res := r.db.GORM().WithContext(ctx).Delete(&models.Sequence{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete sequence: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSequenceNotFound
	}
	return nil
}
