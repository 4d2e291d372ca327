package processing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aieou/sceneqc/internal/ai"
	"github.com/aieou/sceneqc/internal/database"
	"github.com/aieou/sceneqc/internal/models"
)

type harness struct {
	db        *database.DB
	sequences *database.SequenceRepo
	frames    *database.FrameRepo
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := database.OpenTestDB(t)
	return &harness{
		db:        db,
		sequences: database.NewSequenceRepo(db),
		frames:    database.NewFrameRepo(db),
	}
}

func (h *harness) orchestrator(fake *scriptedClassifier, opts ...Option) *Orchestrator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewOrchestrator(h.sequences, h.frames, NewFrameClassifier(fake, nil, nil), logger, opts...)
}

func TestAnalyze_AllFramesSucceed(t *testing.T) {
	h := newHarness(t)
	seq, frames := database.SeedSequence(t, h.db, 3)
	fake := &scriptedClassifier{scores: highwayScores}

	summary, err := h.orchestrator(fake).Analyze(context.Background(), seq.ID)
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, summary.State)
	assert.True(t, summary.Success)
	assert.Equal(t, 3, summary.Attempted)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.Empty(t, summary.Failures)
	assert.Equal(t, ai.BackendInference, summary.Backend)
	assert.False(t, summary.FinishedAt.Before(summary.StartedAt))

	for _, f := range frames {
		got, err := h.frames.GetByID(context.Background(), f.ID)
		require.NoError(t, err)
		require.NotNil(t, got.Attributes)
		assert.Equal(t, "highway", got.Attributes.RoadType)
		assert.InDelta(t, 0.8375, got.Attributes.Confidence, 1e-9)
		assert.Equal(t, ai.BackendInference, got.Attributes.Classifier)
	}

	stored, err := h.sequences.GetByID(context.Background(), seq.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SequenceProcessed, stored.Status)
	assert.Equal(t, 3, stored.TotalFrames)
}

func TestAnalyze_PartialFailureIsIsolated(t *testing.T) {
	h := newHarness(t)
	seq, frames := database.SeedSequence(t, h.db, 5)
	fake := &scriptedClassifier{
		scores:  highwayScores,
		failFor: map[string]error{frames[2].ImageURL: fmt.Errorf("http 503: %w", ai.ErrUpstreamUnavailable)},
	}

	summary, err := h.orchestrator(fake).Analyze(context.Background(), seq.ID)
	require.NoError(t, err)

	assert.Equal(t, StatePartiallyFailed, summary.State)
	assert.True(t, summary.Success)
	assert.Equal(t, 5, summary.Attempted)
	assert.Equal(t, 4, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, frames[2].ID, summary.Failures[0].FrameID)
	assert.Equal(t, 3, summary.Failures[0].FrameNumber)
	assert.Equal(t, KindUpstreamUnavailable, summary.Failures[0].Kind)

	for i, f := range frames {
		got, err := h.frames.GetByID(context.Background(), f.ID)
		require.NoError(t, err)
		assert.Equal(t, i != 2, got.Classified(), "frame %d", got.FrameNumber)
	}

	stored, err := h.sequences.GetByID(context.Background(), seq.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SequenceProcessed, stored.Status)
}

func TestAnalyze_AllFramesFail(t *testing.T) {
	h := newHarness(t)
	seq, frames := database.SeedSequence(t, h.db, 2)
	failFor := map[string]error{}
	for _, f := range frames {
		failFor[f.ImageURL] = fmt.Errorf("http 401: %w", ai.ErrInvalidCredentials)
	}
	fake := &scriptedClassifier{scores: highwayScores, failFor: failFor}

	summary, err := h.orchestrator(fake).Analyze(context.Background(), seq.ID)
	require.NoError(t, err)

	assert.Equal(t, StateFailed, summary.State)
	assert.False(t, summary.Success)
	assert.Equal(t, 2, summary.Failed)
	for _, f := range summary.Failures {
		assert.Equal(t, KindInvalidCredentials, f.Kind)
	}

	stored, err := h.sequences.GetByID(context.Background(), seq.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SequenceFailed, stored.Status)
}

func TestAnalyze_FrameWithoutImage(t *testing.T) {
	h := newHarness(t)
	seq, _ := database.SeedSequence(t, h.db, 1)
	_, err := h.frames.Create(context.Background(), models.NewFrame{SequenceID: seq.ID})
	require.NoError(t, err)

	summary, err := h.orchestrator(&scriptedClassifier{scores: highwayScores}).Analyze(context.Background(), seq.ID)
	require.NoError(t, err)

	assert.Equal(t, StatePartiallyFailed, summary.State)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, 2, summary.Failures[0].FrameNumber)
	assert.Equal(t, KindNoImage, summary.Failures[0].Kind)
}

func TestAnalyze_Preconditions(t *testing.T) {
	h := newHarness(t)
	empty, _ := database.SeedSequence(t, h.db, 0)
	fake := &scriptedClassifier{scores: highwayScores}
	o := h.orchestrator(fake)

	tests := []struct {
		name       string
		sequenceID string
		wantErr    error
	}{
		{"blank id", "  ", ErrInvalidSequenceID},
		{"malformed id", "sequence-1", ErrInvalidSequenceID},
		{"unknown sequence", uuid.NewString(), ErrSequenceNotFound},
		{"no frames", empty.ID, ErrEmptySequence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := o.Analyze(context.Background(), tt.sequenceID)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, summary)
		})
	}
	assert.Empty(t, fake.calls())

	stored, err := h.sequences.GetByID(context.Background(), empty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SequencePending, stored.Status)
}

func TestAnalyze_RunInProgress(t *testing.T) {
	h := newHarness(t)
	seq, _ := database.SeedSequence(t, h.db, 1)
	lock, err := NewRunLock(t.TempDir())
	require.NoError(t, err)

	release, err := lock.Acquire(seq.ID)
	require.NoError(t, err)

	fake := &scriptedClassifier{scores: highwayScores}
	o := h.orchestrator(fake, WithRunLock(lock))

	_, err = o.Analyze(context.Background(), seq.ID)
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.Empty(t, fake.calls())

	release()
	summary, err := o.Analyze(context.Background(), seq.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, summary.State)
}

func TestAnalyze_CancelFinishesFrameInFlight(t *testing.T) {
	h := newHarness(t)
	seq, frames := database.SeedSequence(t, h.db, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := &scriptedClassifier{scores: highwayScores}
	fake.onCall = func(img ai.Image) {
		if img.URL == frames[1].ImageURL {
			cancel()
		}
	}

	summary, err := h.orchestrator(fake).Analyze(ctx, seq.ID)
	require.NoError(t, err)

	assert.Equal(t, StateCancelled, summary.State)
	assert.False(t, summary.Success)
	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, 2, summary.Succeeded)

	second, err := h.frames.GetByID(context.Background(), frames[1].ID)
	require.NoError(t, err)
	assert.True(t, second.Classified())
	third, err := h.frames.GetByID(context.Background(), frames[2].ID)
	require.NoError(t, err)
	assert.False(t, third.Classified())

	stored, err := h.sequences.GetByID(context.Background(), seq.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SequencePending, stored.Status)
}

func TestAnalyze_FrameTimeout(t *testing.T) {
	h := newHarness(t)
	seq, frames := database.SeedSequence(t, h.db, 2)
	fake := &scriptedClassifier{scores: highwayScores}
	slow := &slowClassifier{scriptedClassifier: fake, slowURL: frames[0].ImageURL}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	o := NewOrchestrator(h.sequences, h.frames, NewFrameClassifier(slow, nil, nil), logger, WithFrameTimeout(10*time.Millisecond))

	summary, err := o.Analyze(context.Background(), seq.ID)
	require.NoError(t, err)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, 1, summary.Failures[0].FrameNumber)
	assert.Equal(t, KindTimeout, summary.Failures[0].Kind)
	assert.Equal(t, 1, summary.Succeeded)
}

// slowClassifier honours the context deadline for one image.
type slowClassifier struct {
	*scriptedClassifier
	slowURL string
}

func (c *slowClassifier) Classify(ctx context.Context, img ai.Image, prompts []string) ([]ai.LabelScore, error) {
	if img.URL == c.slowURL {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return c.scriptedClassifier.Classify(ctx, img, prompts)
}
