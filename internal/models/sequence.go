package models

import (
	"time"

	"github.com/google/uuid"
)

type SequenceStatus string

const (
	SequencePending    SequenceStatus = "pending"
	SequenceProcessing SequenceStatus = "processing"
	SequenceProcessed  SequenceStatus = "processed"
	SequenceFailed     SequenceStatus = "failed"
)

func (s SequenceStatus) Valid() bool {
	switch s {
	case SequencePending, SequenceProcessing, SequenceProcessed, SequenceFailed:
		return true
	}
	return false
}

// Sequence is an ordered run of frames from one recording.
type Sequence struct {
	ID          string         `gorm:"primaryKey" json:"id"`
	PipelineID  string         `gorm:"not null;index" json:"pipeline_id"`
	Name        string         `gorm:"not null" json:"name"`
	FPS         *float64       `gorm:"column:fps" json:"fps,omitempty"`
	Duration    *float64       `gorm:"column:duration" json:"duration,omitempty"`
	TotalFrames int            `gorm:"not null;default:0" json:"total_frames"`
	Status      SequenceStatus `gorm:"not null" json:"status"`
	Notes       *string        `json:"notes,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (Sequence) TableName() string {
	return "sequences"
}

func NewSequence(pipelineID, name string, fps *float64) *Sequence {
	now := time.Now().UTC()
	return &Sequence{
		ID:         uuid.New().String(),
		PipelineID: pipelineID,
		Name:       name,
		FPS:        fps,
		Status:     SequencePending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// FrameInterval is the spacing between frames in milliseconds, or 0 when the
// frame rate is unknown.
func (s *Sequence) FrameInterval() int64 {
	if s.FPS == nil || *s.FPS <= 0 {
		return 0
	}
	return int64(1000 / *s.FPS)
}
