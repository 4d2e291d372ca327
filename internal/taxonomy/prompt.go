package taxonomy

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Placeholder marks where a candidate is substituted into a prompt template.
const Placeholder = "{}"

// BuildPrompts renders one prompt per candidate, in candidate order.
// Candidates are substituted as given. A template without a placeholder gets
// the candidate appended after a space.
func BuildPrompts(template string, candidates []string) []string {
	prompts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if strings.Contains(template, Placeholder) {
			prompts = append(prompts, strings.Replace(template, Placeholder, c, 1))
			continue
		}
		prompts = append(prompts, template+" "+c)
	}
	return prompts
}

// Prompts applies the set's template to its phrases, lower-cased and trimmed
// so that label matching sees one spelling.
func (s Set) Prompts() []string {
	// Casers carry state, so each call gets its own.
	lower := cases.Lower(language.English)
	phrases := s.Phrases()
	for i, p := range phrases {
		phrases[i] = lower.String(strings.TrimSpace(p))
	}
	return BuildPrompts(s.Template, phrases)
}

// DisplayName renders a canonical value for people, e.g. "more-than-two-lanes"
// becomes "More-Than-Two-Lanes".
func DisplayName(value string) string {
	return cases.Title(language.English).String(value)
}
