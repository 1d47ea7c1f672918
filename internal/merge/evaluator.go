package merge

import (
	"strings"

	"github.com/JaimeStill/accord/internal/blocks"
	"github.com/JaimeStill/accord/internal/providers"
	"github.com/JaimeStill/accord/internal/templates"
)

// Evaluate assembles block for rec. Every condition that holds contributes
// its fragment in declaration order, then AlwaysInclude fragments follow.
// Fragments are joined by newlines. Tokens inside fragments are filled from
// rec; unknown tokens render empty.
func Evaluate(block blocks.Block, rec providers.Record, schema providers.Schema) string {
	var parts []string
	for _, c := range block.Conditions {
		if c.Holds(rec) {
			parts = append(parts, interpolate(c.Text, rec, schema))
		}
	}
	for _, text := range block.AlwaysInclude {
		parts = append(parts, interpolate(text, rec, schema))
	}
	return strings.Join(parts, "\n")
}

func interpolate(text string, rec providers.Record, schema providers.Schema) string {
	pattern := templates.TokenPattern()
	return pattern.ReplaceAllStringFunc(text, func(token string) string {
		name := strings.TrimSpace(pattern.FindStringSubmatch(token)[1])
		key, raw, ok := rec.LookupFold(name)
		if !ok {
			return ""
		}
		return render(key, raw, schema).text
	})
}
