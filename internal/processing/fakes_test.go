package processing

import (
	"context"
	"sort"
	"sync"

	"github.com/aieou/sceneqc/internal/ai"
)

var highwayScores = map[string]float64{
	"a photo of sunny weather":                  0.9,
	"a photo taken during day":                  0.95,
	"a photo of a highway road":                 0.8,
	"a photo of a road with more than two lanes": 0.7,
}

// scriptedClassifier scores prompts from a fixed table and fails for chosen
// image references.
type scriptedClassifier struct {
	scores  map[string]float64
	failFor map[string]error
	onCall  func(img ai.Image)

	mu     sync.Mutex
	images []ai.Image
}

func (c *scriptedClassifier) Backend() string {
	return ai.BackendInference
}

func (c *scriptedClassifier) Classify(ctx context.Context, img ai.Image, prompts []string) ([]ai.LabelScore, error) {
	c.mu.Lock()
	c.images = append(c.images, img)
	c.mu.Unlock()
	if c.onCall != nil {
		c.onCall(img)
	}
	if err, ok := c.failFor[img.URL]; ok {
		return nil, err
	}
	out := make([]ai.LabelScore, 0, len(prompts))
	for _, p := range prompts {
		score, ok := c.scores[p]
		if !ok {
			score = 0.01
		}
		out = append(out, ai.LabelScore{Label: p, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (c *scriptedClassifier) calls() []ai.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ai.Image(nil), c.images...)
}
