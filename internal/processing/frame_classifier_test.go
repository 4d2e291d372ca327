package processing

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aieou/sceneqc/internal/ai"
	"github.com/aieou/sceneqc/internal/models"
	"github.com/aieou/sceneqc/internal/storage"
	"github.com/aieou/sceneqc/internal/taxonomy"
)

func TestFrameClassifier_Highway(t *testing.T) {
	fake := &scriptedClassifier{scores: highwayScores}
	fc := NewFrameClassifier(fake, nil, nil)

	result, err := fc.Classify(context.Background(), &models.Frame{ImageURL: "https://images.example.com/highway-01.jpg"})
	require.NoError(t, err)

	assert.Equal(t, "sunny", result.Weather.Value)
	assert.Equal(t, "day", result.TimeOfDay.Value)
	assert.Equal(t, "highway", result.RoadType.Value)
	assert.Equal(t, "more-than-two-lanes", result.Lanes.Value)
	assert.Equal(t, 3, result.LaneCount)
	assert.InDelta(t, 0.8375, result.Confidence, 1e-9)
	assert.Equal(t, ai.BackendInference, result.Backend)
	assert.Len(t, fake.calls(), len(taxonomy.Default().Dimensions()))
}

func TestFrameClassifier_NoImage(t *testing.T) {
	fake := &scriptedClassifier{scores: highwayScores}
	fc := NewFrameClassifier(fake, nil, nil)

	_, err := fc.Classify(context.Background(), &models.Frame{})
	assert.ErrorIs(t, err, ErrNoImage)

	_, err = fc.Classify(context.Background(), &models.Frame{ImageURL: "frames/a.jpg"})
	assert.ErrorIs(t, err, ErrNoImage)
	assert.Empty(t, fake.calls())
}

func TestFrameClassifier_StoredImageIsInlined(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	key, err := store.SaveFile(bytes.NewReader([]byte("jpeg bytes")), storage.FileInfo{Dir: "frames", Filename: "0001.jpg"})
	require.NoError(t, err)

	fake := &scriptedClassifier{scores: highwayScores}
	fc := NewFrameClassifier(fake, nil, store)

	_, err = fc.Classify(context.Background(), &models.Frame{ImageURL: key})
	require.NoError(t, err)

	for _, img := range fake.calls() {
		assert.Equal(t, key, img.URL)
		assert.Equal(t, []byte("jpeg bytes"), img.Data)
		assert.Equal(t, "image/jpeg", img.ContentType)
	}
}

func TestFrameClassifier_DimensionErrorFailsFrame(t *testing.T) {
	url := "https://images.example.com/broken.jpg"
	fake := &scriptedClassifier{
		scores:  highwayScores,
		failFor: map[string]error{url: fmt.Errorf("http 503: %w", ai.ErrUpstreamUnavailable)},
	}
	fc := NewFrameClassifier(fake, nil, nil)

	_, err := fc.Classify(context.Background(), &models.Frame{ImageURL: url})
	assert.ErrorIs(t, err, ai.ErrUpstreamUnavailable)
}
