package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type parallelScores struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
	Error  string    `json:"error"`
}

// decodeScores accepts the reply shapes seen from zero-shot endpoints:
// [{label,score}...], {labels:[],scores:[]}, a flat [score...] aligned with
// the prompts, or any of those wrapped in one extra array.
func decodeScores(body []byte, prompts []string) ([]LabelScore, error) {
	return decodeScoresDepth(bytes.TrimSpace(body), prompts, 0)
}

func decodeScoresDepth(body []byte, prompts []string, depth int) ([]LabelScore, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}
	switch body[0] {
	case '{':
		var obj parallelScores
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if obj.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrUpstreamUnavailable, strings.TrimSpace(obj.Error))
		}
		if len(obj.Labels) != len(obj.Scores) {
			return nil, fmt.Errorf("%w: %d labels but %d scores", ErrMalformedResponse, len(obj.Labels), len(obj.Scores))
		}
		out := make([]LabelScore, 0, len(obj.Labels))
		for i, label := range obj.Labels {
			out = append(out, LabelScore{Label: label, Score: obj.Scores[i]})
		}
		return nonEmpty(out)
	case '[':
	default:
		return nil, fmt.Errorf("%w: unexpected body %q", ErrMalformedResponse, snippet(body))
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty list", ErrMalformedResponse)
	}

	first := bytes.TrimSpace(items[0])
	switch {
	case len(first) > 0 && first[0] == '[':
		if depth > 0 || len(items) != 1 {
			return nil, fmt.Errorf("%w: unexpected nesting", ErrMalformedResponse)
		}
		return decodeScoresDepth(first, prompts, depth+1)
	case len(first) > 0 && first[0] == '{':
		var pairs []LabelScore
		if err := json.Unmarshal(body, &pairs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		for i, p := range pairs {
			if strings.TrimSpace(p.Label) == "" {
				return nil, fmt.Errorf("%w: entry %d has no label", ErrMalformedResponse, i)
			}
		}
		return nonEmpty(pairs)
	default:
		var flat []float64
		if err := json.Unmarshal(body, &flat); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if len(flat) != len(prompts) {
			return nil, fmt.Errorf("%w: %d scores for %d prompts", ErrMalformedResponse, len(flat), len(prompts))
		}
		out := make([]LabelScore, 0, len(flat))
		for i, score := range flat {
			out = append(out, LabelScore{Label: prompts[i], Score: score})
		}
		return nonEmpty(out)
	}
}

func nonEmpty(scores []LabelScore) ([]LabelScore, error) {
	if len(scores) == 0 {
		return nil, fmt.Errorf("%w: no scores", ErrMalformedResponse)
	}
	return scores, nil
}

func snippet(body []byte) string {
	s := string(body)
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}
