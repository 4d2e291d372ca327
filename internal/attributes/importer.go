// Package attributes imports hand-labelled frame attributes from CSV files.
package attributes

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aieou/sceneqc/internal/models"
	"github.com/aieou/sceneqc/internal/taxonomy"
)

var (
	ErrMissingColumn = errors.New("csv is missing a required column")
	ErrEmptyFile     = errors.New("csv has no header")
)

const (
	colFrameNumber = "frame_number"
	colWeather     = "weather"
	colTimeOfDay   = "time_of_day"
	colRoadType    = "road_type"
	colLanes       = "lanes"
	colConfidence  = "confidence"
	colNotes       = "notes"
)

var requiredColumns = []string{colFrameNumber, colWeather, colTimeOfDay, colRoadType, colLanes}

// Older exports used these names.
var columnAliases = map[string]string{
	"frame_id":         colFrameNumber,
	"frame":            colFrameNumber,
	"confidence_score": colConfidence,
}

type RowError struct {
	Line        int    `json:"line"`
	FrameNumber int    `json:"frame_number,omitempty"`
	Reason      string `json:"reason"`
}

// Report counts what an import did. Skipped rows name a frame the sequence
// does not have; rejected rows are listed in Errors.
type Report struct {
	Updated int        `json:"updated"`
	Skipped int        `json:"skipped"`
	Errors  []RowError `json:"errors"`
}

type SequenceStore interface {
	GetByID(ctx context.Context, id string) (*models.Sequence, error)
}

type FrameStore interface {
	ListBySequence(ctx context.Context, sequenceID string, filter models.FrameFilter) ([]*models.Frame, error)
	UpdateAttributes(ctx context.Context, frameID string, attrs models.Attributes) (*models.Frame, error)
	UpdateAttributesAndNotes(ctx context.Context, frameID string, attrs models.Attributes, notes string) (*models.Frame, error)
}

type Importer struct {
	sequences SequenceStore
	frames    FrameStore
	taxonomy  *taxonomy.Taxonomy
	logger    *slog.Logger
}

func NewImporter(sequences SequenceStore, frames FrameStore, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		sequences: sequences,
		frames:    frames,
		taxonomy:  taxonomy.Default(),
		logger:    logger.With("component", "csv_import"),
	}
}

// Import applies every row of r to the frame with the same number. A bad row
// is reported and does not stop the rest of the file.
func (im *Importer) Import(ctx context.Context, sequenceID string, r io.Reader) (*Report, error) {
	if _, err := im.sequences.GetByID(ctx, sequenceID); err != nil {
		return nil, err
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	columns, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	frames, err := im.frames.ListBySequence(ctx, sequenceID, models.FrameFilter{})
	if err != nil {
		return nil, err
	}
	byNumber := make(map[int]*models.Frame, len(frames))
	for _, f := range frames {
		byNumber[f.FrameNumber] = f
	}

	report := &Report{Errors: []RowError{}}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				report.Errors = append(report.Errors, RowError{Line: parseErr.Line, Reason: parseErr.Err.Error()})
				continue
			}
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		row := rowValues(columns, record)
		if blank(row) {
			continue
		}

		number, err := strconv.Atoi(row[colFrameNumber])
		if err != nil {
			report.Errors = append(report.Errors, RowError{Line: line, Reason: fmt.Sprintf("invalid frame_number %q", row[colFrameNumber])})
			continue
		}
		frame, ok := byNumber[number]
		if !ok {
			report.Skipped++
			continue
		}

		attrs, err := im.attributes(row)
		if err != nil {
			report.Errors = append(report.Errors, RowError{Line: line, FrameNumber: number, Reason: err.Error()})
			continue
		}
		if notes := row[colNotes]; notes != "" {
			_, err = im.frames.UpdateAttributesAndNotes(ctx, frame.ID, attrs, notes)
		} else {
			_, err = im.frames.UpdateAttributes(ctx, frame.ID, attrs)
		}
		if err != nil {
			report.Errors = append(report.Errors, RowError{Line: line, FrameNumber: number, Reason: err.Error()})
			continue
		}
		report.Updated++
	}

	im.logger.Info("csv import finished",
		"sequence_id", sequenceID,
		"updated", report.Updated,
		"skipped", report.Skipped,
		"errors", len(report.Errors),
	)
	return report, nil
}

func (im *Importer) attributes(row map[string]string) (models.Attributes, error) {
	attrs := models.Attributes{Confidence: 1, Classifier: models.ClassifierCSV}
	fields := []struct {
		dim taxonomy.Dimension
		col string
		dst *string
	}{
		{taxonomy.Weather, colWeather, &attrs.Weather},
		{taxonomy.TimeOfDay, colTimeOfDay, &attrs.TimeOfDay},
		{taxonomy.RoadType, colRoadType, &attrs.RoadType},
		{taxonomy.Lanes, colLanes, &attrs.Lanes},
	}
	for _, f := range fields {
		value, ok := im.taxonomy.Canonical(f.dim, row[f.col])
		if !ok {
			return models.Attributes{}, fmt.Errorf("unknown %s %q", f.dim, row[f.col])
		}
		*f.dst = value
	}
	attrs.LaneCount = taxonomy.LaneCount(attrs.Lanes)

	if raw := row[colConfidence]; raw != "" {
		c, err := strconv.ParseFloat(raw, 64)
		if err != nil || c < 0 || c > 1 {
			return models.Attributes{}, fmt.Errorf("confidence %q is not a number between 0 and 1", raw)
		}
		attrs.Confidence = c
	}
	return attrs, nil
}

func indexColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if canonical, ok := columnAliases[name]; ok {
			name = canonical
		}
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return columns, nil
}

func rowValues(columns map[string]int, record []string) map[string]string {
	row := make(map[string]string, len(columns))
	for name, i := range columns {
		if i < len(record) {
			row[name] = strings.TrimSpace(record[i])
		}
	}
	return row
}

func blank(row map[string]string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
