package models

import (
	"time"

	"github.com/google/uuid"
)

type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectArchived ProjectStatus = "archived"
)

func (s ProjectStatus) Valid() bool {
	return s == ProjectActive || s == ProjectArchived
}

type Project struct {
	ID          string        `gorm:"primaryKey" json:"id"`
	Name        string        `gorm:"not null" json:"name"`
	Description string        `json:"description"`
	Status      ProjectStatus `gorm:"not null" json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (Project) TableName() string {
	return "projects"
}

func NewProject(name, description string) *Project {
	now := time.Now().UTC()
	return &Project{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		Status:      ProjectActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

type PipelineStatus string

const (
	PipelinePending   PipelineStatus = "pending"
	PipelineActive    PipelineStatus = "active"
	PipelineCompleted PipelineStatus = "completed"
	PipelineArchived  PipelineStatus = "archived"
)

func (s PipelineStatus) Valid() bool {
	switch s {
	case PipelinePending, PipelineActive, PipelineCompleted, PipelineArchived:
		return true
	}
	return false
}

// Pipeline groups the sequences recorded for one purpose inside a project.
// Its status is set by people and does not follow its sequences.
type Pipeline struct {
	ID          string         `gorm:"primaryKey" json:"id"`
	ProjectID   string         `gorm:"not null;index" json:"project_id"`
	Name        string         `gorm:"not null" json:"name"`
	Description string         `json:"description"`
	Status      PipelineStatus `gorm:"not null" json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (Pipeline) TableName() string {
	return "pipelines"
}

func NewPipeline(projectID, name, description string) *Pipeline {
	now := time.Now().UTC()
	return &Pipeline{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		Name:        name,
		Description: description,
		Status:      PipelinePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
