// Package processing runs scene classification over every frame of a
// sequence and records the outcome.
package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aieou/sceneqc/internal/database"
	"github.com/aieou/sceneqc/internal/models"
)

const DefaultFrameTimeout = 2 * time.Minute

type State string

const (
	StateIdle            State = "idle"
	StateRunning         State = "running"
	StateCompleted       State = "completed"
	StatePartiallyFailed State = "partially_failed"
	StateFailed          State = "failed"
	StateCancelled       State = "cancelled"
)

type FrameFailure struct {
	FrameID     string      `json:"frame_id"`
	FrameNumber int         `json:"frame_number"`
	Reason      string      `json:"reason"`
	Kind        FailureKind `json:"kind"`
}

// Summary is the result of one analysis run. Success is true when at least
// one frame was classified and the run was not cancelled.
type Summary struct {
	SequenceID string         `json:"sequence_id"`
	State      State          `json:"state"`
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
	Attempted  int            `json:"attempted"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Failures   []FrameFailure `json:"failures"`
	Backend    string         `json:"backend"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

type SequenceStore interface {
	GetByID(ctx context.Context, id string) (*models.Sequence, error)
	UpdateStatus(ctx context.Context, id string, status models.SequenceStatus) error
	Finish(ctx context.Context, id string, status models.SequenceStatus) error
}

type FrameStore interface {
	ListBySequence(ctx context.Context, sequenceID string, filter models.FrameFilter) ([]*models.Frame, error)
	ApplyClassification(ctx context.Context, frameID string, result models.ClassificationResult) (*models.Frame, error)
}

// Classifier turns one frame into scene attributes.
type Classifier interface {
	Classify(ctx context.Context, frame *models.Frame) (models.ClassificationResult, error)
	Backend() string
}

type Orchestrator struct {
	sequences    SequenceStore
	frames       FrameStore
	classifier   Classifier
	lock         *RunLock
	frameTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

type Option func(*Orchestrator)

// WithFrameTimeout bounds the work done for a single frame.
func WithFrameTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.frameTimeout = d
		}
	}
}

func WithRunLock(lock *RunLock) Option {
	return func(o *Orchestrator) {
		o.lock = lock
	}
}

func NewOrchestrator(sequences SequenceStore, frames FrameStore, classifier Classifier, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		sequences:    sequences,
		frames:       frames,
		classifier:   classifier,
		frameTimeout: DefaultFrameTimeout,
		logger:       logger.With("component", "orchestrator"),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Analyze classifies every frame of a sequence in frame order. Precondition
// failures are returned as errors; per-frame failures are reported in the
// summary and never abort the run. Cancelling ctx stops the run after the
// frame in flight and returns the partial summary with a nil error.
func (o *Orchestrator) Analyze(ctx context.Context, sequenceID string) (*Summary, error) {
	sequenceID = strings.TrimSpace(sequenceID)
	if _, err := uuid.Parse(sequenceID); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSequenceID, sequenceID)
	}

	if _, err := o.sequences.GetByID(ctx, sequenceID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSequenceNotFound, sequenceID)
		}
		return nil, fmt.Errorf("loading sequence: %w", err)
	}

	release, err := o.lock.Acquire(sequenceID)
	if err != nil {
		return nil, err
	}
	defer release()

	frames, err := o.frames.ListBySequence(ctx, sequenceID, models.FrameFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing frames: %w", err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySequence, sequenceID)
	}

	if err := o.sequences.UpdateStatus(ctx, sequenceID, models.SequenceProcessing); err != nil {
		return nil, fmt.Errorf("marking sequence processing: %w", err)
	}

	summary := &Summary{
		SequenceID: sequenceID,
		State:      StateRunning,
		Failures:   []FrameFailure{},
		Backend:    o.classifier.Backend(),
		StartedAt:  o.now(),
	}
	log := o.logger.With("sequence_id", sequenceID, "backend", summary.Backend)
	log.Info("analysis started", "frames", len(frames))

	cancelled := false
	for _, frame := range frames {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		summary.Attempted++
		if err := o.processFrame(ctx, frame); err != nil {
			kind := classifyFailure(err)
			log.Warn("frame failed",
				"frame_id", frame.ID,
				"frame_number", frame.FrameNumber,
				"kind", kind,
				"error", err,
			)
			summary.Failed++
			summary.Failures = append(summary.Failures, FrameFailure{
				FrameID:     frame.ID,
				FrameNumber: frame.FrameNumber,
				Reason:      err.Error(),
				Kind:        kind,
			})
			continue
		}
		summary.Succeeded++
		log.Debug("frame classified", "frame_id", frame.ID, "frame_number", frame.FrameNumber)
	}

	o.finish(context.WithoutCancel(ctx), summary, len(frames), cancelled, log)
	return summary, nil
}

// processFrame runs detached from the caller's cancellation so a frame that
// has started is always written or recorded as failed.
func (o *Orchestrator) processFrame(ctx context.Context, frame *models.Frame) error {
	frameCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.frameTimeout)
	defer cancel()

	result, err := o.classifier.Classify(frameCtx, frame)
	if err != nil {
		return err
	}
	if _, err := o.frames.ApplyClassification(frameCtx, frame.ID, result); err != nil {
		return fmt.Errorf("saving attributes: %w", err)
	}
	return nil
}

func (o *Orchestrator) finish(ctx context.Context, summary *Summary, total int, cancelled bool, log *slog.Logger) {
	status := models.SequenceProcessed
	switch {
	case cancelled:
		summary.State = StateCancelled
		status = models.SequencePending
		summary.Message = fmt.Sprintf("cancelled after %d of %d frames (%d classified, %d failed)",
			summary.Attempted, total, summary.Succeeded, summary.Failed)
	case summary.Failed == 0:
		summary.State = StateCompleted
		summary.Message = fmt.Sprintf("classified %d frames", summary.Succeeded)
	case summary.Succeeded == 0:
		summary.State = StateFailed
		status = models.SequenceFailed
		summary.Message = fmt.Sprintf("all %d frames failed", summary.Failed)
	default:
		summary.State = StatePartiallyFailed
		summary.Message = fmt.Sprintf("classified %d frames, %d failed", summary.Succeeded, summary.Failed)
	}
	summary.Success = summary.State == StateCompleted || summary.State == StatePartiallyFailed
	summary.FinishedAt = o.now()

	if err := o.sequences.Finish(ctx, summary.SequenceID, status); err != nil {
		log.Error("failed to record sequence status", "status", status, "error", err)
	}

	log.Info("analysis finished",
		"state", summary.State,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"duration", summary.FinishedAt.Sub(summary.StartedAt),
	)
}
