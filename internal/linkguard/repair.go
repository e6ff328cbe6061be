package linkguard

import (
	"regexp"
	"strings"

	"greenlist/internal/linkguard/policy"
)

// linkifiedEmail matches an address whose domain was turned into a link,
// e.g. "help@https://dal.ca/contact".
var linkifiedEmail = regexp.MustCompile(`(?i)\b([A-Za-z0-9._%+-]+)@https?://([A-Za-z0-9.-]+\.[A-Za-z]{2,})(?:/[^\s)\]]*)?`)

// RepairEmails rewrites "<local>@http(s)://<host>[/path]" to "<local>@<host>".
// Text without the pattern is returned unchanged.
func RepairEmails(text string) string {
	if !strings.Contains(text, "@") {
		return text
	}
	return linkifiedEmail.ReplaceAllString(text, "${1}@${2}")
}

type rewriteRule struct {
	pattern *regexp.Regexp
	to      string
}

func compileRewrites(rules []policy.Rewrite) []rewriteRule {
	out := make([]rewriteRule, 0, len(rules))
	for _, r := range rules {
		out = append(out, rewriteRule{
			pattern: regexp.MustCompile(`(?i)https?://[^` + urlBreak + `]*` + regexp.QuoteMeta(r.Keyword) + `[^` + urlBreak + `)]+`),
			to:      r.To,
		})
	}
	return out
}

func applyRewrites(text string, rules []rewriteRule) string {
	for _, r := range rules {
		text = r.pattern.ReplaceAllLiteralString(text, r.to)
	}
	return text
}

// ApplyRewrites replaces every URL that mentions a rule's keyword with the rule's target.
func ApplyRewrites(text string, rules []policy.Rewrite) string {
	return applyRewrites(text, compileRewrites(rules))
}
