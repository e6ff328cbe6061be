package linkguard

import (
	"regexp"

	"greenlist/internal/linkguard/urlcanon"
)

// urlBreak is the character class body of what ends a URL token: ASCII
// whitespace, Unicode separators and the BOM.
const urlBreak = `\s\v\p{Z}\x{FEFF}`

var urlToken = regexp.MustCompile(`(?i)https?://[^` + urlBreak + `]+`)

type span struct {
	start, end int
	raw        string
}

// extractSpans returns every URL token in text, in order, with trailing
// punctuation trimmed from each match.
func extractSpans(text string) []span {
	locs := urlToken.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	spans := make([]span, 0, len(locs))
	for _, loc := range locs {
		raw := urlcanon.TrimTrailing(text[loc[0]:loc[1]])
		spans = append(spans, span{start: loc[0], end: loc[0] + len(raw), raw: raw})
	}
	return spans
}

func uniqueRaws(spans []span) []string {
	seen := make(map[string]struct{}, len(spans))
	out := make([]string, 0, len(spans))
	for _, sp := range spans {
		if _, ok := seen[sp.raw]; ok {
			continue
		}
		seen[sp.raw] = struct{}{}
		out = append(out, sp.raw)
	}
	return out
}

// Extract returns the distinct URL candidates in text in first-occurrence order.
// Candidates are compared by exact string, so case or punctuation variants of
// the same URL are distinct.
func Extract(text string) []string {
	return uniqueRaws(extractSpans(text))
}
