package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/aieou/sceneqc/internal/models"
)

type ProjectRepo struct {
	db *DB
}

func NewProjectRepo(db *DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

func (r *ProjectRepo) Create(ctx context.Context, project *models.Project) error {
	if err := r.db.GORM().WithContext(ctx).Create(project).Error; err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

func (r *ProjectRepo) GetByID(ctx context.Context, id string) (*models.Project, error) {
	if !validID(id) {
		return nil, ErrProjectNotFound
	}
	var project models.Project
	err := r.db.GORM().WithContext(ctx).First(&project, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &project, nil
}

func (r *ProjectRepo) List(ctx context.Context) ([]models.Project, error) {
	projects := make([]models.Project, 0)
	if err := r.db.GORM().WithContext(ctx).Order("created_at DESC").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

func (r *ProjectRepo) UpdateStatus(ctx context.Context, id string, status models.ProjectStatus) error {
	if !validID(id) {
		return ErrProjectNotFound
	}
	res := r.db.GORM().WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return fmt.Errorf("failed to update project: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// Delete removes the project; pipelines, sequences and frames go with it.
func (r *ProjectRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrProjectNotFound
	}
	res := r.db.GORM().WithContext(ctx).Delete(&models.Project{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete project: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}
