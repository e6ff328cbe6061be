// Package greenlist populates the vector table and search index from the list
// of verified URLs.
package greenlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"greenlist/internal/greenlist/htmlclean"
	"greenlist/internal/linkguard/urlcanon"
	"greenlist/internal/logx"
	"greenlist/internal/search"
)

const indexBatchSize = 100

var ErrEmptyGreenlist = errors.New("greenlist must be a non-empty array of URLs")

// ReadURLs loads a JSON array of URLs from path.
func ReadURLs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read greenlist: %w", err)
	}
	return ParseURLs(data)
}

func ParseURLs(data []byte) ([]string, error) {
	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptyGreenlist, err)
	}
	if len(urls) == 0 {
		return nil, ErrEmptyGreenlist
	}
	return urls, nil
}

type Embedder interface {
	Embed(ctx context.Context, model, input string) ([]float32, error)
}

type EmbeddingStore interface {
	InsertEmbedding(ctx context.Context, content string, embedding []float32) error
}

type Indexer interface {
	UpsertDocuments(ctx context.Context, docs []search.Document) error
}

type Source interface {
	Page(ctx context.Context, url string) (htmlclean.Page, error)
	FeedLinks(ctx context.Context, url string) ([]string, error)
}

type Config struct {
	EmbeddingModel string
	// FetchPages enables title and summary extraction for search documents.
	FetchPages bool
}

type Report struct {
	Total    int `json:"total"`
	Inserted int `json:"inserted"`
	Indexed  int `json:"indexed"`
	Failed   int `json:"failed"`
}

type Loader struct {
	svc      string
	cfg      Config
	embedder Embedder
	store    EmbeddingStore
	indexer  Indexer
	source   Source
	now      func() time.Time
}

// New builds a loader. indexer and source may be nil, which disables search
// indexing and page/feed fetching respectively.
func New(cfg Config, embedder Embedder, store EmbeddingStore, indexer Indexer, source Source) *Loader {
	return &Loader{
		svc:      "greenlist",
		cfg:      cfg,
		embedder: embedder,
		store:    store,
		indexer:  indexer,
		source:   source,
		now:      time.Now,
	}
}

// Collect appends the item links of feeds to urls and drops entries that
// normalize to an already seen URL. A failing feed is logged and skipped.
func (l *Loader) Collect(ctx context.Context, urls, feeds []string) []string {
	all := append([]string(nil), urls...)
	if l.source != nil {
		for _, feed := range feeds {
			feed = strings.TrimSpace(feed)
			if feed == "" {
				continue
			}
			links, err := l.source.FeedLinks(ctx, feed)
			if err != nil {
				logx.Error(l.svc, "feed links", err, map[string]any{"feed": feed})
				continue
			}
			logx.Info(l.svc, "feed links", map[string]any{"feed": feed, "links": len(links)})
			all = append(all, links...)
		}
	}

	seen := make(map[string]struct{}, len(all))
	out := make([]string, 0, len(all))
	for _, u := range all {
		u = strings.TrimSpace(u)
		key := u
		if canon, ok := urlcanon.Normalize(u); ok {
			key = canon
		}
		if _, dup := seen[key]; dup || u == "" {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, u)
	}
	return out
}

// Load embeds and stores every URL and indexes a search document for it.
// Per-URL failures are counted in the report; only context cancellation
// aborts the run.
func (l *Loader) Load(ctx context.Context, urls []string) (Report, error) {
	report := Report{Total: len(urls)}
	docs := make([]search.Document, 0, len(urls))

	for _, raw := range urls {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		raw = strings.TrimSpace(raw)
		canon, ok := urlcanon.Normalize(raw)
		if !ok {
			report.Failed++
			logx.Warn(l.svc, "invalid url", map[string]any{"url": raw})
			continue
		}

		embedding, err := l.embedder.Embed(ctx, l.cfg.EmbeddingModel, raw)
		if err == nil {
			err = l.store.InsertEmbedding(ctx, raw, embedding)
		}
		if err != nil {
			report.Failed++
			logx.Error(l.svc, "process url", err, map[string]any{"url": raw})
			continue
		}
		report.Inserted++
		logx.Debug(l.svc, "inserted", map[string]any{"url": raw})

		if l.indexer != nil {
			docs = append(docs, l.document(ctx, raw, canon))
		}
	}

	for start := 0; start < len(docs); start += indexBatchSize {
		end := start + indexBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		if err := l.indexer.UpsertDocuments(ctx, docs[start:end]); err != nil {
			logx.Error(l.svc, "index documents", err, map[string]any{"batch_size": end - start})
			continue
		}
		report.Indexed += end - start
	}

	logx.Info(l.svc, "load complete", map[string]any{
		"total":    report.Total,
		"inserted": report.Inserted,
		"indexed":  report.Indexed,
		"failed":   report.Failed,
	})
	return report, nil
}

func (l *Loader) document(ctx context.Context, raw, canon string) search.Document {
	loaded := l.now().UTC()
	doc := search.Document{
		ID:       DocumentID(canon),
		URL:      raw,
		Host:     urlcanon.HostOf(canon),
		LoadedAt: &loaded,
	}
	if l.cfg.FetchPages && l.source != nil {
		page, err := l.source.Page(ctx, raw)
		if err != nil {
			extra := map[string]any{"url": raw, "transient": errors.Is(err, ErrTransientFetch)}
			logx.Warn(l.svc, "page fetch failed", extra)
		} else {
			doc.Title = page.Title
			doc.Summary = page.Summary
		}
	}
	if doc.Title == "" {
		doc.Title = doc.Host
	}
	return doc
}

// DocumentID is stable for a canonical URL so reloads overwrite documents.
func DocumentID(canonical string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(canonical)).String()
}
