// Package linkguard rewrites generated text so that it only links to approved,
// whitelisted and reachable URLs. Disallowed links are replaced with their
// domain's fallback or removed; dead links fall back to a known-good page.
package linkguard

import (
	"context"
	"fmt"
	"strings"

	"greenlist/internal/linkguard/policy"
	"greenlist/internal/linkguard/urlcanon"
	"greenlist/internal/logx"
)

type Action string

const (
	ActionKeep             Action = "keep"
	ActionStripInvalid     Action = "strip-invalid"
	ActionStripDisallowed  Action = "strip-disallowed"
	ActionFallbackDomain   Action = "fallback-domain"
	ActionFallbackLiveness Action = "fallback-liveness"
	ActionStripDead        Action = "strip-dead"
)

// MaxTraceEntries caps the decisions surfaced per sanitize call.
const MaxTraceEntries = 50

// Decision records what happened to one distinct URL candidate.
type Decision struct {
	Raw    string `json:"raw"`
	Action Action `json:"action"`
	To     string `json:"to,omitempty"`
}

// LivenessChecker reports whether a normalized URL resolves.
type LivenessChecker interface {
	IsLive(ctx context.Context, normalized string) bool
}

type Metrics interface {
	ObserveRewrite(action string)
}

type Sanitizer struct {
	policy   *policy.Policy
	live     LivenessChecker
	rewrites []rewriteRule
	metrics  Metrics
	debug    bool
	service  string
}

type Option func(*Sanitizer)

func WithMetrics(m Metrics) Option {
	return func(s *Sanitizer) { s.metrics = m }
}

// WithDebug logs the non-trivial decisions of every call.
func WithDebug(on bool) Option {
	return func(s *Sanitizer) { s.debug = on }
}

func WithService(name string) Option {
	return func(s *Sanitizer) { s.service = name }
}

func New(p *policy.Policy, live LivenessChecker, opts ...Option) *Sanitizer {
	s := &Sanitizer{
		policy:   p,
		live:     live,
		rewrites: compileRewrites(p.Rewrites()),
		service:  "linkguard",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sanitize returns text with disallowed, malformed and dead links rewritten.
// It never fails: on any internal fault the input is returned unchanged.
func (s *Sanitizer) Sanitize(ctx context.Context, text string) string {
	out, _ := s.SanitizeWithTrace(ctx, text)
	return out
}

// SanitizeWithTrace is Sanitize plus the first MaxTraceEntries decisions, one per
// distinct candidate in first-occurrence order.
func (s *Sanitizer) SanitizeWithTrace(ctx context.Context, text string) (out string, trace []Decision) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error(s.service, "sanitize failed, returning input", fmt.Errorf("panic: %v", r), nil)
			out, trace = text, nil
		}
	}()

	working := applyRewrites(text, s.rewrites)
	working = RepairEmails(working)

	spans := extractSpans(working)
	if len(spans) == 0 {
		return working, nil
	}

	replacements := make(map[string]string)
	for _, raw := range uniqueRaws(spans) {
		d := s.decide(ctx, raw)
		if d.Action != ActionKeep {
			replacements[raw] = d.To
		}
		if s.metrics != nil {
			s.metrics.ObserveRewrite(string(d.Action))
		}
		trace = append(trace, d)
	}

	out = rebuild(working, spans, replacements)

	if s.debug {
		s.logFixes(trace)
	}
	if len(trace) > MaxTraceEntries {
		trace = trace[:MaxTraceEntries]
	}
	return out, trace
}

func (s *Sanitizer) decide(ctx context.Context, raw string) Decision {
	norm, ok := urlcanon.Normalize(raw)
	if !ok {
		return Decision{Raw: raw, Action: ActionStripInvalid}
	}

	host := urlcanon.HostOf(norm)
	if !s.policy.IsAllowed(norm) {
		if fb := s.policy.FallbackFor(host); fb != "" {
			return Decision{Raw: raw, Action: ActionFallbackDomain, To: fb}
		}
		return Decision{Raw: raw, Action: ActionStripDisallowed}
	}

	if s.live == nil || s.live.IsLive(ctx, norm) {
		return Decision{Raw: raw, Action: ActionKeep}
	}

	fb := s.policy.FallbackFor(host)
	if fb == "" && host != "" {
		fb = "https://" + host
	}
	if fb == "" {
		return Decision{Raw: raw, Action: ActionStripDead}
	}
	return Decision{Raw: raw, Action: ActionFallbackLiveness, To: fb}
}

// rebuild writes text with each span replaced according to replacements.
// Spans whose raw value has no replacement are copied through unchanged.
func rebuild(text string, spans []span, replacements map[string]string) string {
	if len(replacements) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, sp := range spans {
		to, ok := replacements[sp.raw]
		if !ok {
			continue
		}
		b.WriteString(text[prev:sp.start])
		b.WriteString(to)
		prev = sp.end
	}
	b.WriteString(text[prev:])
	return b.String()
}

// logFixes logs up to MaxTraceEntries decisions that changed the text.
func (s *Sanitizer) logFixes(trace []Decision) {
	fixes := make([]Decision, 0, MaxTraceEntries)
	for _, d := range trace {
		if d.Action == ActionKeep {
			continue
		}
		fixes = append(fixes, d)
		if len(fixes) == MaxTraceEntries {
			break
		}
	}
	if len(fixes) == 0 {
		return
	}
	logx.Debug(s.service, "link-fixes", map[string]any{"fixes": fixes})
}
