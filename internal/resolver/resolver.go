// Package resolver turns ranked classifier output into canonical frame
// attributes.
package resolver

import (
	"errors"
	"fmt"
	"math"

	"github.com/aieou/sceneqc/internal/ai"
	"github.com/aieou/sceneqc/internal/models"
	"github.com/aieou/sceneqc/internal/taxonomy"
)

var ErrMissingDimension = errors.New("no scores for dimension")

// dimensions is the fixed set a ClassificationResult carries.
var dimensions = []taxonomy.Dimension{
	taxonomy.Weather,
	taxonomy.TimeOfDay,
	taxonomy.RoadType,
	taxonomy.Lanes,
}

// Resolve picks a winner per dimension and averages the winners' scores into
// the frame confidence. It has no side effects: equal input always gives an
// equal result.
func Resolve(tax *taxonomy.Taxonomy, backend string, scores map[taxonomy.Dimension][]ai.LabelScore) (models.ClassificationResult, error) {
	result := models.ClassificationResult{Backend: backend}
	total := 0.0
	for _, dim := range dimensions {
		set, ok := tax.Set(dim)
		if !ok {
			return models.ClassificationResult{}, fmt.Errorf("resolve: taxonomy has no %s set", dim)
		}
		winner, err := Pick(set, scores[dim])
		if err != nil {
			return models.ClassificationResult{}, err
		}
		total += winner.Score

		switch dim {
		case taxonomy.Weather:
			result.Weather = winner
		case taxonomy.TimeOfDay:
			result.TimeOfDay = winner
		case taxonomy.RoadType:
			result.RoadType = winner
		case taxonomy.Lanes:
			result.Lanes = winner
			result.LaneCount = taxonomy.LaneCount(winner.Value)
		}
	}
	result.Confidence = clamp(total / float64(len(dimensions)))
	return result, nil
}

// Pick selects the best entry for one dimension. Labels that cannot be
// mapped count toward the dimension default. Equal scores go to the value
// declared first in the taxonomy.
func Pick(set taxonomy.Set, entries []ai.LabelScore) (models.AttributeScore, error) {
	if len(entries) == 0 {
		return models.AttributeScore{}, fmt.Errorf("%w: %s", ErrMissingDimension, set.Dimension)
	}

	bestIdx := -1
	var best models.AttributeScore
	for _, entry := range entries {
		idx, ok := set.Match(entry.Label)
		if !ok {
			idx = set.DefaultIndex()
		}
		score := Sanitize(entry.Score)
		if bestIdx >= 0 && (score < best.Score || (score == best.Score && idx >= bestIdx)) {
			continue
		}
		bestIdx = idx
		best = models.AttributeScore{
			Value:    set.Candidates[idx].Value,
			Label:    entry.Label,
			Score:    score,
			Fallback: !ok,
		}
	}
	return best, nil
}

// Sanitize maps NaN to 0 and clamps scores into [0, 1].
func Sanitize(score float64) float64 {
	if math.IsNaN(score) {
		return 0
	}
	return clamp(score)
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
