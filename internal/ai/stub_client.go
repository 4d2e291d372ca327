package ai

import (
	"context"
	"hash/fnv"
)

// StubClient produces deterministic pseudo-scores without any network call.
// Its output is labelled "stub" wherever it is persisted.
type StubClient struct{}

func NewStubClient() *StubClient {
	return &StubClient{}
}

func (s *StubClient) Backend() string {
	return BackendStub
}

// Classify hashes the image reference with each prompt and normalises the
// results so the scores sum to 1.
func (s *StubClient) Classify(ctx context.Context, img Image, prompts []string) ([]LabelScore, error) {
	if len(prompts) == 0 {
		return nil, ErrNoCandidates
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ref := img.Ref()
	scores := make([]LabelScore, 0, len(prompts))
	total := 0.0
	for _, prompt := range prompts {
		h := fnv.New32a()
		h.Write([]byte(ref))
		h.Write([]byte{0})
		h.Write([]byte(prompt))
		raw := float64(h.Sum32()%1000 + 1)
		total += raw
		scores = append(scores, LabelScore{Label: prompt, Score: raw})
	}
	for i := range scores {
		scores[i].Score /= total
	}
	return rank(scores), nil
}
