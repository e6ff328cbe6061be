package urlcanon

import (
	"net/url"
	"strings"
)

// TrailingPunctuation is the set of characters stripped from the end of a URL
// found in running text: closing brackets, sentence punctuation and quotes.
const TrailingPunctuation = `)].,;:!?"'<>`

// TrimTrailing removes any run of TrailingPunctuation from the end of raw.
func TrimTrailing(raw string) string {
	return strings.TrimRight(raw, TrailingPunctuation)
}

// Normalize canonicalizes a URL candidate for comparison against policy tables.
// It trims whitespace and trailing punctuation, requires an absolute http(s) URL
// with a host, drops the scheme's default port, the fragment and the query,
// lowercases the whole result and strips exactly one trailing slash. The boolean is false when the candidate is
// not a usable URL.
//
// Lowercasing the path means case-sensitive paths compare equal.
func Normalize(raw string) (string, bool) {
	cleaned := TrimTrailing(strings.TrimSpace(raw))
	if cleaned == "" {
		return "", false
	}

	parsed, err := url.Parse(cleaned)
	if err != nil {
		return "", false
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	if parsed.Hostname() == "" || parsed.Opaque != "" {
		return "", false
	}
	port := parsed.Port()
	if port != "" && !validPort(port) {
		return "", false
	}
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		parsed.Host = strings.TrimSuffix(parsed.Host, ":"+port)
	}
	parsed.Host = strings.TrimSuffix(parsed.Host, ":")

	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.RawQuery = ""
	parsed.ForceQuery = false

	out := strings.ToLower(parsed.String())
	out = strings.TrimSuffix(out, "/")
	return out, true
}

// HostOf returns the hostname of u with one leading "www." removed, or "" when
// u cannot be parsed.
func HostOf(u string) string {
	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// Base2 returns the last two labels of host ("sub.example.com" -> "example.com").
func Base2(host string) string {
	return lastLabels(host, 2)
}

// Base3 returns the last three labels of host.
func Base3(host string) string {
	return lastLabels(host, 3)
}

func lastLabels(host string, n int) string {
	labels := strings.Split(host, ".")
	if len(labels) <= n {
		return host
	}
	return strings.Join(labels[len(labels)-n:], ".")
}

func validPort(port string) bool {
	if len(port) > 5 {
		return false
	}
	n := 0
	for _, r := range port {
		if r < '0' || r > '9' {
			return false
		}
		n = n*10 + int(r-'0')
	}
	return n <= 65535
}
