package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPrompts(t *testing.T) {
	tests := []struct {
		name       string
		template   string
		candidates []string
		want       []string
	}{
		{
			name:       "placeholder",
			template:   "a photo of {} weather",
			candidates: []string{"sunny", "cloudy"},
			want:       []string{"a photo of sunny weather", "a photo of cloudy weather"},
		},
		{
			name:       "candidates kept as given",
			template:   "a photo taken with an {}",
			candidates: []string{"iPhone", "Sunny"},
			want:       []string{"a photo taken with an iPhone", "a photo taken with an Sunny"},
		},
		{
			name:       "no placeholder appends",
			template:   "a road with",
			candidates: []string{"one lane"},
			want:       []string{"a road with one lane"},
		},
		{
			name:       "only first placeholder substituted",
			template:   "{} and {}",
			candidates: []string{"x"},
			want:       []string{"x and {}"},
		},
		{
			name:       "empty candidates",
			template:   "a photo of {} weather",
			candidates: nil,
			want:       []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildPrompts(tt.template, tt.candidates)
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetPrompts(t *testing.T) {
	set, _ := Default().Set(Lanes)
	assert.Equal(t, []string{
		"a photo of a road with one lane",
		"a photo of a road with two-way traffic",
		"a photo of a road with more than two lanes",
	}, set.Prompts())
}

func TestSetPromptsNormalisePhrases(t *testing.T) {
	set := Set{
		Dimension: Weather,
		Template:  "a photo of {} weather",
		Candidates: []Candidate{
			{Value: "sunny", Phrase: " Sunny "},
			{Value: "cloudy", Phrase: "CLOUDY"},
		},
	}
	assert.Equal(t, []string{"a photo of sunny weather", "a photo of cloudy weather"}, set.Prompts())
	assert.Equal(t, " Sunny ", set.Candidates[0].Phrase)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Sunny", DisplayName("sunny"))
	assert.Equal(t, "City", DisplayName("city"))
}
