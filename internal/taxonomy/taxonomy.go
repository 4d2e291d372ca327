// Package taxonomy holds the closed label sets used to describe a driving
// scene, and the rules that fold free text back onto them.
package taxonomy

import (
	"strings"
	"unicode"
)

type Dimension string

const (
	Weather   Dimension = "weather"
	TimeOfDay Dimension = "time_of_day"
	RoadType  Dimension = "road_type"
	Lanes     Dimension = "lanes"
)

// Candidate is one allowed value of a dimension. Phrase is the wording used
// when the value is put into a classification prompt.
type Candidate struct {
	Value    string   `json:"value"`
	Phrase   string   `json:"phrase"`
	Synonyms []string `json:"synonyms,omitempty"`
}

// Set is the closed vocabulary for one dimension. Candidate order is
// significant: it breaks score ties during resolution.
type Set struct {
	Dimension  Dimension   `json:"dimension"`
	Template   string      `json:"template"`
	Default    string      `json:"default"`
	Candidates []Candidate `json:"candidates"`
}

type Taxonomy struct {
	sets []Set
}

var defaultSets = []Set{
	{
		Dimension: Weather,
		Template:  "a photo of {} weather",
		Default:   "sunny",
		Candidates: []Candidate{
			{Value: "sunny", Phrase: "sunny", Synonyms: []string{"clear", "sun"}},
			{Value: "cloudy", Phrase: "cloudy", Synonyms: []string{"overcast", "foggy", "fog", "mist", "misty"}},
			{Value: "rainfall", Phrase: "rainfall", Synonyms: []string{"rain", "rainy", "wet"}},
			{Value: "snowfall", Phrase: "snowfall", Synonyms: []string{"snow", "snowy"}},
		},
	},
	{
		Dimension: TimeOfDay,
		Template:  "a photo taken during {}",
		Default:   "day",
		Candidates: []Candidate{
			{Value: "day", Phrase: "day", Synonyms: []string{"daytime", "dawn", "morning"}},
			{Value: "night", Phrase: "night", Synonyms: []string{"nighttime", "dusk", "evening"}},
		},
	},
	{
		Dimension: RoadType,
		Template:  "a photo of a {} road",
		Default:   "city",
		Candidates: []Candidate{
			{Value: "highway", Phrase: "highway", Synonyms: []string{"motorway", "freeway", "expressway"}},
			{Value: "city", Phrase: "city", Synonyms: []string{"urban", "street", "downtown"}},
			{Value: "suburb", Phrase: "suburb", Synonyms: []string{"suburban", "residential"}},
			{Value: "rural", Phrase: "rural", Synonyms: []string{"country", "countryside"}},
		},
	},
	{
		Dimension: Lanes,
		Template:  "a photo of a road with {}",
		Default:   "two-way",
		Candidates: []Candidate{
			{Value: "one-lane", Phrase: "one lane", Synonyms: []string{"single lane"}},
			{Value: "two-way", Phrase: "two-way traffic", Synonyms: []string{"two way", "two lane", "two lanes"}},
			{Value: "more-than-two-lanes", Phrase: "more than two lanes", Synonyms: []string{"more than two", "multi lane", "many lanes", "three lanes", "four lanes"}},
		},
	},
}

var defaultTaxonomy = &Taxonomy{sets: defaultSets}

// Default returns the scene taxonomy used for frame attributes.
func Default() *Taxonomy {
	return defaultTaxonomy
}

// Dimensions returns the dimensions in declared order.
func (t *Taxonomy) Dimensions() []Dimension {
	dims := make([]Dimension, 0, len(t.sets))
	for _, s := range t.sets {
		dims = append(dims, s.Dimension)
	}
	return dims
}

// Sets returns copies of every set, so callers cannot mutate the taxonomy.
func (t *Taxonomy) Sets() []Set {
	out := make([]Set, 0, len(t.sets))
	for _, s := range t.sets {
		out = append(out, s.clone())
	}
	return out
}

func (t *Taxonomy) Set(dim Dimension) (Set, bool) {
	for _, s := range t.sets {
		if s.Dimension == dim {
			return s.clone(), true
		}
	}
	return Set{}, false
}

// Canonical maps free text for a dimension onto its canonical value.
func (t *Taxonomy) Canonical(dim Dimension, text string) (string, bool) {
	s, ok := t.Set(dim)
	if !ok {
		return "", false
	}
	return s.Canonical(text)
}

func (s Set) clone() Set {
	c := s
	c.Candidates = make([]Candidate, len(s.Candidates))
	for i, cand := range s.Candidates {
		cand.Synonyms = append([]string(nil), cand.Synonyms...)
		c.Candidates[i] = cand
	}
	return c
}

// Values returns the canonical values in declared order.
func (s Set) Values() []string {
	values := make([]string, 0, len(s.Candidates))
	for _, c := range s.Candidates {
		values = append(values, c.Value)
	}
	return values
}

// Phrases returns the prompt phrases in declared order.
func (s Set) Phrases() []string {
	phrases := make([]string, 0, len(s.Candidates))
	for _, c := range s.Candidates {
		phrases = append(phrases, c.Phrase)
	}
	return phrases
}

func (s Set) Contains(value string) bool {
	return s.Index(value) >= 0
}

// Index returns the declared position of a canonical value, or -1.
func (s Set) Index(value string) int {
	for i, c := range s.Candidates {
		if c.Value == value {
			return i
		}
	}
	return -1
}

// DefaultIndex is the position of the fallback value used for unmappable text.
func (s Set) DefaultIndex() int {
	if idx := s.Index(s.Default); idx >= 0 {
		return idx
	}
	return 0
}

// Canonical maps text onto a canonical value without falling back.
func (s Set) Canonical(text string) (string, bool) {
	idx, ok := s.Match(text)
	if !ok {
		return "", false
	}
	return s.Candidates[idx].Value, true
}

// Match finds the candidate a piece of text refers to. Prompts produced from
// this set and exact values or phrases match directly; anything else matches
// the candidate owning the longest whole-word term found in the text, with
// declared order deciding between equally long terms.
func (s Set) Match(text string) (int, bool) {
	norm := normalize(text)
	if norm == "" {
		return -1, false
	}
	for i, prompt := range s.Prompts() {
		if normalize(prompt) == norm {
			return i, true
		}
	}
	for i, c := range s.Candidates {
		if normalize(c.Value) == norm || normalize(c.Phrase) == norm {
			return i, true
		}
	}

	padded := " " + norm + " "
	best, bestLen := -1, 0
	for i, c := range s.Candidates {
		for _, term := range c.terms() {
			t := normalize(term)
			if t == "" || len(t) <= bestLen {
				continue
			}
			if strings.Contains(padded, " "+t+" ") {
				best, bestLen = i, len(t)
			}
		}
	}
	if best < 0 {
		return -1, false
	}
	return best, true
}

func (c Candidate) terms() []string {
	terms := make([]string, 0, len(c.Synonyms)+2)
	terms = append(terms, c.Value, c.Phrase)
	return append(terms, c.Synonyms...)
}

// normalize lower-cases text and turns every run of non alphanumerics into a
// single space.
func normalize(text string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}

// LaneCount converts a lane bucket into the approximate lane count stored
// alongside it. Unknown buckets return 0.
func LaneCount(value string) int {
	switch value {
	case "one-lane":
		return 1
	case "two-way":
		return 2
	case "more-than-two-lanes":
		return 3
	default:
		return 0
	}
}
