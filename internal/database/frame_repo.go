package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aieou/sceneqc/internal/models"
)

const frameColumns = `id, sequence_id, frame_number, timestamp_ms, image_url,
	weather, time_of_day, road_type, lanes, lane_count, confidence, classifier,
	notes, created_at, updated_at`

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// FrameRepo stores frames with plain SQL. Every statement that touches the
// attribute columns writes all of them at once.
type FrameRepo struct {
	db *DB
}

func NewFrameRepo(db *DB) *FrameRepo {
	return &FrameRepo{db: db}
}

// Create inserts a frame numbered one past the highest number already in its
// sequence.
func (r *FrameRepo) Create(ctx context.Context, nf models.NewFrame) (*models.Frame, error) {
	return r.insert(ctx, r.db.conn, nf)
}

// CreateBatch inserts frames in order inside one transaction, so a failed
// upload leaves no partial numbering behind.
func (r *FrameRepo) CreateBatch(ctx context.Context, frames []models.NewFrame) ([]*models.Frame, error) {
	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	created := make([]*models.Frame, 0, len(frames))
	for _, nf := range frames {
		frame, err := r.insert(ctx, tx, nf)
		if err != nil {
			return nil, err
		}
		created = append(created, frame)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit frames: %w", err)
	}
	return created, nil
}

func (r *FrameRepo) insert(ctx context.Context, q execQuerier, nf models.NewFrame) (*models.Frame, error) {
	if !validID(nf.SequenceID) {
		return nil, ErrSequenceNotFound
	}
	id := uuid.New().String()
	now := time.Now().UTC()
	query := `
		INSERT INTO frames (id, sequence_id, frame_number, timestamp_ms, image_url, created_at, updated_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(frame_number), 0) + 1 FROM frames WHERE sequence_id = ?), ?, ?, ?, ?)`

	_, err := q.ExecContext(ctx, r.db.rebind(query),
		id,
		nf.SequenceID,
		nf.SequenceID,
		nf.TimestampMS,
		nullString(nf.ImageURL),
		now,
		now,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrSequenceNotFound
		}
		return nil, fmt.Errorf("failed to insert frame: %w", err)
	}
	return r.get(ctx, q, id)
}

func (r *FrameRepo) GetByID(ctx context.Context, id string) (*models.Frame, error) {
	if !validID(id) {
		return nil, ErrFrameNotFound
	}
	return r.get(ctx, r.db.conn, id)
}

func (r *FrameRepo) get(ctx context.Context, q execQuerier, id string) (*models.Frame, error) {
	row := q.QueryRowContext(ctx, r.db.rebind(`SELECT `+frameColumns+` FROM frames WHERE id = ?`), id)
	frame, err := scanFrame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFrameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get frame: %w", err)
	}
	return frame, nil
}

func (r *FrameRepo) GetByNumber(ctx context.Context, sequenceID string, frameNumber int) (*models.Frame, error) {
	if !validID(sequenceID) {
		return nil, ErrFrameNotFound
	}
	row := r.db.conn.QueryRowContext(ctx,
		r.db.rebind(`SELECT `+frameColumns+` FROM frames WHERE sequence_id = ? AND frame_number = ?`),
		sequenceID, frameNumber)
	frame, err := scanFrame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFrameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get frame %d: %w", frameNumber, err)
	}
	return frame, nil
}

// ListBySequence returns the sequence's frames in ascending frame number,
// narrowed by filter.
func (r *FrameRepo) ListBySequence(ctx context.Context, sequenceID string, filter models.FrameFilter) ([]*models.Frame, error) {
	if !validID(sequenceID) {
		return []*models.Frame{}, nil
	}
	var where strings.Builder
	args := []any{sequenceID}
	where.WriteString("sequence_id = ?")

	for _, c := range []struct {
		column string
		value  string
	}{
		{"weather", filter.Weather},
		{"time_of_day", filter.TimeOfDay},
		{"road_type", filter.RoadType},
		{"lanes", filter.Lanes},
	} {
		if c.value == "" {
			continue
		}
		where.WriteString(" AND " + c.column + " = ?")
		args = append(args, c.value)
	}
	if filter.Classified != nil {
		if *filter.Classified {
			where.WriteString(" AND weather IS NOT NULL")
		} else {
			where.WriteString(" AND weather IS NULL")
		}
	}
	if filter.MinConfidence != nil {
		where.WriteString(" AND confidence >= ?")
		args = append(args, *filter.MinConfidence)
	}

	query := `SELECT ` + frameColumns + ` FROM frames WHERE ` + where.String() + ` ORDER BY frame_number`
	rows, err := r.db.conn.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	frames := make([]*models.Frame, 0)
	for rows.Next() {
		frame, err := scanFrame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		frames = append(frames, frame)
	}
	return frames, rows.Err()
}

func (r *FrameRepo) CountBySequence(ctx context.Context, sequenceID string) (int, error) {
	if !validID(sequenceID) {
		return 0, nil
	}
	var n int
	err := r.db.conn.QueryRowContext(ctx,
		r.db.rebind(`SELECT COUNT(*) FROM frames WHERE sequence_id = ?`), sequenceID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count frames: %w", err)
	}
	return n, nil
}

// ApplyClassification writes a resolved classification onto the frame and
// returns the stored row. Applying the same result twice leaves the row
// as the first application did, apart from updated_at.
func (r *FrameRepo) ApplyClassification(ctx context.Context, frameID string, result models.ClassificationResult) (*models.Frame, error) {
	return r.UpdateAttributes(ctx, frameID, result.Attributes())
}

// UpdateAttributes replaces the whole attribute group in one statement.
func (r *FrameRepo) UpdateAttributes(ctx context.Context, frameID string, attrs models.Attributes) (*models.Frame, error) {
	return r.updateAttributes(ctx, frameID, attrs, nil)
}

// UpdateAttributesAndNotes writes the attribute group and the notes in one
// statement, so either both change or neither does.
func (r *FrameRepo) UpdateAttributesAndNotes(ctx context.Context, frameID string, attrs models.Attributes, notes string) (*models.Frame, error) {
	return r.updateAttributes(ctx, frameID, attrs, &notes)
}

func (r *FrameRepo) updateAttributes(ctx context.Context, frameID string, attrs models.Attributes, notes *string) (*models.Frame, error) {
	if err := validateAttributes(attrs); err != nil {
		return nil, err
	}
	if !validID(frameID) {
		return nil, ErrFrameNotFound
	}
	set := `weather = ?, time_of_day = ?, road_type = ?, lanes = ?,
			lane_count = ?, confidence = ?, classifier = ?, updated_at = ?`
	args := []any{
		attrs.Weather,
		attrs.TimeOfDay,
		attrs.RoadType,
		attrs.Lanes,
		attrs.LaneCount,
		attrs.Confidence,
		attrs.Classifier,
		time.Now().UTC(),
	}
	if notes != nil {
		set += ", notes = ?"
		args = append(args, nullString(strings.TrimSpace(*notes)))
	}
	args = append(args, frameID)
	if err := r.execOne(ctx, "UPDATE frames SET "+set+" WHERE id = ?", args...); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, frameID)
}

// ClearAttributes sets the whole attribute group back to NULL.
func (r *FrameRepo) ClearAttributes(ctx context.Context, frameID string) (*models.Frame, error) {
	if !validID(frameID) {
		return nil, ErrFrameNotFound
	}
	query := `
		UPDATE frames SET
			weather = NULL, time_of_day = NULL, road_type = NULL, lanes = NULL,
			lane_count = NULL, confidence = NULL, classifier = NULL, updated_at = ?
		WHERE id = ?`
	if err := r.execOne(ctx, query, time.Now().UTC(), frameID); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, frameID)
}

func (r *FrameRepo) UpdateNotes(ctx context.Context, frameID, notes string) (*models.Frame, error) {
	if !validID(frameID) {
		return nil, ErrFrameNotFound
	}
	err := r.execOne(ctx, `UPDATE frames SET notes = ?, updated_at = ? WHERE id = ?`,
		nullString(strings.TrimSpace(notes)), time.Now().UTC(), frameID)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, frameID)
}

func (r *FrameRepo) Delete(ctx context.Context, frameID string) error {
	if !validID(frameID) {
		return ErrFrameNotFound
	}
	return r.execOne(ctx, `DELETE FROM frames WHERE id = ?`, frameID)
}

// execOne runs a statement that must hit exactly one frame.
func (r *FrameRepo) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.conn.ExecContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to update frame: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update frame: %w", err)
	}
	if n == 0 {
		return ErrFrameNotFound
	}
	return nil
}

func validateAttributes(attrs models.Attributes) error {
	switch {
	case attrs.Weather == "", attrs.TimeOfDay == "", attrs.RoadType == "", attrs.Lanes == "":
		return fmt.Errorf("%w: every dimension needs a value", ErrInvalidAttributes)
	case attrs.Classifier == "":
		return fmt.Errorf("%w: classifier is required", ErrInvalidAttributes)
	case math.IsNaN(attrs.Confidence), attrs.Confidence < 0, attrs.Confidence > 1:
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidAttributes, attrs.Confidence)
	}
	return nil
}

func scanFrame(row rowScanner) (*models.Frame, error) {
	var (
		f                                   models.Frame
		imageURL, notes                     sql.NullString
		weather, timeOfDay, roadType, lanes sql.NullString
		classifier                          sql.NullString
		laneCount                           sql.NullInt64
		confidence                          sql.NullFloat64
	)
	err := row.Scan(
		&f.ID,
		&f.SequenceID,
		&f.FrameNumber,
		&f.TimestampMS,
		&imageURL,
		&weather,
		&timeOfDay,
		&roadType,
		&lanes,
		&laneCount,
		&confidence,
		&classifier,
		&notes,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.ImageURL = imageURL.String
	f.Notes = notes.String
	if weather.Valid {
		f.Attributes = &models.Attributes{
			Weather:    weather.String,
			TimeOfDay:  timeOfDay.String,
			RoadType:   roadType.String,
			Lanes:      lanes.String,
			LaneCount:  int(laneCount.Int64),
			Confidence: confidence.Float64,
			Classifier: classifier.String,
		}
	}
	return &f, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isForeignKeyViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "violates foreign key constraint")
}
