package greenlist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/mmcdole/gofeed"

	"greenlist/internal/greenlist/htmlclean"
)

const (
	userAgent    = "GreenlistLoader/1.0"
	maxPageBytes = 2 << 20
)

var ErrTransientFetch = errors.New("transient fetch")

// Fetcher downloads greenlist pages and feeds.
type Fetcher struct {
	client     *http.Client
	parser     *gofeed.Parser
	summaryLen int
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Fetcher{
		client:     &http.Client{Timeout: timeout},
		parser:     gofeed.NewParser(),
		summaryLen: htmlclean.DefaultMaxLength,
	}
}

// Page fetches url and returns its title and summary.
func (f *Fetcher) Page(ctx context.Context, url string) (htmlclean.Page, error) {
	resp, err := f.get(ctx, url, "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return htmlclean.Page{}, err
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(strings.ToLower(ct), "html") {
		return htmlclean.Page{}, nil
	}
	return htmlclean.ParsePage(io.LimitReader(resp.Body, maxPageBytes), f.summaryLen)
}

// FeedLinks returns the item links of an RSS or Atom feed, in feed order.
func (f *Fetcher) FeedLinks(ctx context.Context, url string) ([]string, error) {
	resp, err := f.get(ctx, url, "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	feed, err := f.parser.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, err)
	}
	links := make([]string, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		if link := strings.TrimSpace(it.Link); link != "" {
			links = append(links, link)
		}
	}
	return links, nil
}

func (f *Fetcher) get(ctx context.Context, url, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)

	resp, err := f.client.Do(req)
	if err != nil {
		if isTransientFetchError(err) {
			return nil, fmt.Errorf("%w: %w", ErrTransientFetch, err)
		}
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		if isTransientStatus(resp.StatusCode) {
			return nil, fmt.Errorf("%w: http status %d", ErrTransientFetch, resp.StatusCode)
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

var transientSyscallErrors = []error{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.ECONNABORTED,
	syscall.EPIPE,
	syscall.EHOSTUNREACH,
	syscall.ENETUNREACH,
	syscall.ETIMEDOUT,
}

func isTransientStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func isTransientFetchError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, net.ErrClosed) {
		return true
	}
	for _, target := range transientSyscallErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
