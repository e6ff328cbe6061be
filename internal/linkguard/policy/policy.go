// Package policy holds the link policy tables: exact approved URLs, whitelisted
// hosts, per-host fallback URLs, hosts exempt from liveness probing and keyword
// rewrites. A Policy is built once at startup and is read-only afterwards, so it
// is safe for concurrent use without locking.
package policy

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"greenlist/internal/linkguard/urlcanon"
)

// Tables is the raw, serializable form of a Policy.
type Tables struct {
	Approved     []string          `yaml:"approved" json:"approved"`
	Whitelist    []string          `yaml:"whitelist" json:"whitelist"`
	Fallbacks    map[string]string `yaml:"fallbacks" json:"fallbacks"`
	SkipLiveness []string          `yaml:"skip_liveness" json:"skip_liveness"`
	Rewrites     []Rewrite         `yaml:"rewrites" json:"rewrites"`
}

// Rewrite replaces any URL mentioning Keyword with To before sanitizing.
type Rewrite struct {
	Keyword string `yaml:"keyword" json:"keyword"`
	To      string `yaml:"to" json:"to"`
}

type Policy struct {
	approved  map[string]struct{}
	whitelist map[string]struct{}
	fallbacks map[string]string
	skip      map[string]struct{}
	rewrites  []Rewrite
}

// New builds a Policy from t. Approved URLs are normalized so that lookups
// compare canonical forms; an approved entry that does not normalize is an error.
// Hosts are lowercased and stripped of a leading "www.".
func New(t Tables) (*Policy, error) {
	p := &Policy{
		approved:  make(map[string]struct{}, len(t.Approved)),
		whitelist: hostSet(t.Whitelist),
		fallbacks: make(map[string]string, len(t.Fallbacks)),
		skip:      hostSet(t.SkipLiveness),
	}

	var errs []error
	for _, raw := range t.Approved {
		norm, ok := urlcanon.Normalize(raw)
		if !ok {
			errs = append(errs, fmt.Errorf("approved url %q is not a valid http(s) url", raw))
			continue
		}
		p.approved[norm] = struct{}{}
	}
	for host, target := range t.Fallbacks {
		h := cleanHost(host)
		if h == "" {
			errs = append(errs, fmt.Errorf("fallback host %q is empty", host))
			continue
		}
		p.fallbacks[h] = strings.TrimSpace(target)
	}
	for _, rw := range t.Rewrites {
		kw := strings.ToLower(strings.TrimSpace(rw.Keyword))
		if kw == "" {
			errs = append(errs, errors.New("rewrite keyword is empty"))
			continue
		}
		p.rewrites = append(p.rewrites, Rewrite{Keyword: kw, To: strings.TrimSpace(rw.To)})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return p, nil
}

// MustNew is New for literal tables in tests and defaults.
func MustNew(t Tables) *Policy {
	p, err := New(t)
	if err != nil {
		panic(err)
	}
	return p
}

// IsAllowed reports whether normalized is an approved URL or sits on a
// whitelisted host, matching the host, its last two labels or its last three labels.
func (p *Policy) IsAllowed(normalized string) bool {
	if p == nil || normalized == "" {
		return false
	}
	if _, ok := p.approved[normalized]; ok {
		return true
	}
	h := urlcanon.HostOf(normalized)
	if h == "" {
		return false
	}
	for _, candidate := range tiers(h) {
		if _, ok := p.whitelist[candidate]; ok {
			return true
		}
	}
	return false
}

// IsApproved reports whether normalized is in the exact-match approved set.
func (p *Policy) IsApproved(normalized string) bool {
	if p == nil {
		return false
	}
	_, ok := p.approved[normalized]
	return ok
}

// FallbackFor returns the replacement URL for host, preferring the most specific
// entry (full host, then last two labels, then last three labels). It returns
// "" when no entry exists.
func (p *Policy) FallbackFor(host string) string {
	if p == nil || host == "" {
		return ""
	}
	for _, candidate := range tiers(cleanHost(host)) {
		if fb, ok := p.fallbacks[candidate]; ok && fb != "" {
			return fb
		}
	}
	return ""
}

// SkipsLiveness reports whether host, or its last two labels, is trusted to be
// live without a network probe.
func (p *Policy) SkipsLiveness(host string) bool {
	if p == nil || host == "" {
		return false
	}
	h := cleanHost(host)
	if _, ok := p.skip[h]; ok {
		return true
	}
	_, ok := p.skip[urlcanon.Base2(h)]
	return ok
}

// Rewrites returns the keyword rewrite rules in declaration order.
func (p *Policy) Rewrites() []Rewrite {
	if p == nil {
		return nil
	}
	out := make([]Rewrite, len(p.rewrites))
	copy(out, p.rewrites)
	return out
}

// Validate checks that every fallback target is a valid URL that the policy
// itself allows, so a substituted link survives another sanitize pass. Rewrite
// targets only need to parse: they are checked like any other URL afterwards.
func (p *Policy) Validate() error {
	if p == nil {
		return errors.New("policy is nil")
	}
	var errs []error
	for _, host := range sortedKeys(p.fallbacks) {
		errs = append(errs, p.checkTarget("fallback for "+host, p.fallbacks[host]))
	}
	for _, rw := range p.rewrites {
		if _, ok := urlcanon.Normalize(rw.To); !ok {
			errs = append(errs, fmt.Errorf("rewrite for %s: %q is not a valid http(s) url", rw.Keyword, rw.To))
		}
	}
	return errors.Join(errs...)
}

func (p *Policy) checkTarget(label, target string) error {
	norm, ok := urlcanon.Normalize(target)
	if !ok {
		return fmt.Errorf("%s: %q is not a valid http(s) url", label, target)
	}
	if !p.IsAllowed(norm) {
		return fmt.Errorf("%s: %q is not allowed by the policy", label, target)
	}
	return nil
}

// Stats summarizes table sizes for logging and the config snapshot.
type Stats struct {
	Approved     int `json:"approved"`
	Whitelist    int `json:"whitelist"`
	Fallbacks    int `json:"fallbacks"`
	SkipLiveness int `json:"skip_liveness"`
	Rewrites     int `json:"rewrites"`
}

func (p *Policy) Stats() Stats {
	if p == nil {
		return Stats{}
	}
	return Stats{
		Approved:     len(p.approved),
		Whitelist:    len(p.whitelist),
		Fallbacks:    len(p.fallbacks),
		SkipLiveness: len(p.skip),
		Rewrites:     len(p.rewrites),
	}
}

func tiers(host string) []string {
	return []string{host, urlcanon.Base2(host), urlcanon.Base3(host)}
}

func hostSet(hosts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		if c := cleanHost(h); c != "" {
			set[c] = struct{}{}
		}
	}
	return set
}

func cleanHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.TrimPrefix(h, "www.")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
