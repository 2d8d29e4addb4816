package prompt

import (
	"context"
	"regexp"
	"strings"
)

// Citation syntax: law references wrapped in ** markers, e.g. **Art. 267 CO**
// or **OR Art. 259b**. The composer instructs the model to emit them wrapped;
// MarkCitations catches any the model left bare.

var (
	citationRe     = regexp.MustCompile(`\*\*(?:Art\.\s*\d+[a-z]?\s*CO|OR\s*Art\.\s*\d+[a-z]?)\*\*`)
	bareCitationRe = regexp.MustCompile(`(?:\*\*)?((?:Art\.\s*\d+[a-z]?\s*CO)|(?:OR\s*Art\.\s*\d+[a-z]?))(?:\*\*)?`)
)

// MarkCitations wraps every bare legal-article reference in the recognized
// citation markers. Already-wrapped citations are left untouched, so the
// function is idempotent. A match carrying only one ** marker sits inside an
// enclosing bold span ("**see Art. 267 CO**"); wrapping it would break the
// surrounding emphasis, so it is left alone.
func MarkCitations(text string) string {
	return bareCitationRe.ReplaceAllStringFunc(text, func(m string) string {
		lead := strings.HasPrefix(m, "**")
		trail := strings.HasSuffix(m, "**")
		if lead != trail {
			return m
		}
		if lead && trail {
			return m
		}
		return "**" + m + "**"
	})
}

// FindCitations returns the distinct marked citations in order of first
// appearance, without the surrounding markers.
func FindCitations(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range citationRe.FindAllString(text, -1) {
		ref := m[2 : len(m)-2]
		if seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}

// CitationResolver turns a marked legal-article token into an explanatory
// string. Resolution is the collaborator's concern; report generation only
// guarantees the marking.
type CitationResolver interface {
	Explain(ctx context.Context, article string) (string, error)
}
