// Package liveness decides whether a URL currently resolves. Results are cached
// per normalized URL for a TTL; hosts on the policy skip list are trusted
// without any network call.
package liveness

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"greenlist/internal/linkguard/urlcanon"
)

const (
	DefaultTTL          = 30 * time.Minute
	DefaultTimeout      = 8 * time.Second
	DefaultMaxRedirects = 5

	userAgent    = "LinkHealth/1.1"
	acceptHeader = "text/html,application/pdf;q=0.9,*/*;q=0.8"
	maxDrain     = 64 << 10
)

// softOK statuses mean the resource exists but access or method is restricted.
var softOK = map[int]struct{}{
	http.StatusUnauthorized:     {},
	http.StatusForbidden:        {},
	http.StatusMethodNotAllowed: {},
	http.StatusNotAcceptable:    {},
	http.StatusTooManyRequests:  {},
}

// LiveStatus reports whether status counts as reachable.
func LiveStatus(status int) bool {
	if status >= 200 && status < 400 {
		return true
	}
	_, ok := softOK[status]
	return ok
}

// SkipList is the policy view the prober needs.
type SkipList interface {
	SkipsLiveness(host string) bool
}

// Metrics receives one observation per network request.
type Metrics interface {
	ObserveProbe(method string, live bool, err error, duration time.Duration)
}

type Prober struct {
	client  *http.Client
	store   Store
	skip    SkipList
	metrics Metrics
	now     func() time.Time
	ttl     time.Duration
	timeout time.Duration
}

type Option func(*Prober)

// WithClient replaces the HTTP client. The client's redirect policy is used as is.
func WithClient(c *http.Client) Option {
	return func(p *Prober) { p.client = c }
}

func WithStore(s Store) Option {
	return func(p *Prober) { p.store = s }
}

func WithClock(now func() time.Time) Option {
	return func(p *Prober) { p.now = now }
}

func WithTTL(ttl time.Duration) Option {
	return func(p *Prober) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(p *Prober) { p.metrics = m }
}

// NewClient returns an HTTP client that follows at most maxRedirects redirects.
func NewClient(maxRedirects int) *http.Client {
	if maxRedirects < 0 {
		maxRedirects = DefaultMaxRedirects
	}
	return &http.Client{
		Transport: http.DefaultTransport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if len(via) > 0 {
				req.Header = via[0].Header.Clone()
			}
			return nil
		},
	}
}

func New(skip SkipList, opts ...Option) *Prober {
	p := &Prober{
		skip:    skip,
		now:     time.Now,
		ttl:     DefaultTTL,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = NewClient(DefaultMaxRedirects)
	}
	if p.store == nil {
		p.store = NewMemoryStore(0)
	}
	return p
}

// IsLive reports whether normalized currently resolves. A GET is sent only when
// HEAD got a response that does not count as live. Transport failures and
// timeouts count as not live; they are never returned as errors. Cancellation
// of ctx does not cut a probe short: each request carries its own timeout.
func (p *Prober) IsLive(ctx context.Context, normalized string) bool {
	if p.skip != nil && p.skip.SkipsLiveness(urlcanon.HostOf(normalized)) {
		return true
	}

	now := p.now()
	if e, ok := p.store.Get(normalized); ok && now.Sub(e.CheckedAt) < p.ttl {
		return e.Live
	}

	ctx = context.WithoutCancel(ctx)
	live, err := p.probe(ctx, http.MethodHead, normalized)
	if !live && err == nil {
		live, _ = p.probe(ctx, http.MethodGet, normalized)
	}

	p.store.Put(normalized, Entry{Live: live, CheckedAt: now})
	return live
}

// probe returns a non-nil error only when no response was received.
func (p *Prober) probe(ctx context.Context, method, target string) (live bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if p.metrics != nil {
		defer func(start time.Time) {
			p.metrics.ObserveProbe(method, live, err, time.Since(start))
		}(time.Now())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, http.NoBody)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := p.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if method == http.MethodGet {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	}

	return LiveStatus(resp.StatusCode), nil
}
