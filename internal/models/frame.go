package models

import (
	"time"
)

// ClassifierManual and ClassifierCSV mark attributes that did not come from
// a model.
const (
	ClassifierManual = "manual"
	ClassifierCSV    = "csv"
)

type Frame struct {
	ID          string      `json:"id"`
	SequenceID  string      `json:"sequence_id"`
	FrameNumber int         `json:"frame_number"`
	TimestampMS int64       `json:"timestamp_ms"`
	ImageURL    string      `json:"image_url,omitempty"`
	Attributes  *Attributes `json:"attributes"`
	Notes       string      `json:"notes,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (f *Frame) Classified() bool {
	return f.Attributes != nil
}

// Attributes is the scene description of a frame. The columns behind it are
// written together, so a frame either has all of them or none.
type Attributes struct {
	Weather    string  `json:"weather"`
	TimeOfDay  string  `json:"time_of_day"`
	RoadType   string  `json:"road_type"`
	Lanes      string  `json:"lanes"`
	LaneCount  int     `json:"lane_count"`
	Confidence float64 `json:"confidence"`
	Classifier string  `json:"classifier"`
}

// NewFrame describes a frame about to be inserted; its number is assigned by
// the store.
type NewFrame struct {
	SequenceID  string
	TimestampMS int64
	ImageURL    string
}

// FrameFilter narrows a frame listing. Zero values match everything.
type FrameFilter struct {
	Weather       string
	TimeOfDay     string
	RoadType      string
	Lanes         string
	Classified    *bool
	MinConfidence *float64
}
