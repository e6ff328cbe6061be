package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"greenlist/internal/logx"
	meilisearch "github.com/meilisearch/meilisearch-go"
)

const DefaultIndex = "greenlist"

// Document is one greenlist URL as stored in the search index.
type Document struct {
	ID       string     `json:"id"`
	URL      string     `json:"url"`
	Host     string     `json:"host"`
	Title    string     `json:"title"`
	Summary  string     `json:"summary"`
	LoadedAt *time.Time `json:"loaded_at,omitempty"`
}

type Metrics interface {
	ObserveSearch(method string, err error, duration time.Duration)
}

type Client struct {
	svc     string
	client  meilisearch.ServiceManager
	index   string
	metrics Metrics
}

func New(url string, metrics Metrics) *Client {
	return &Client{
		svc:     "search",
		client:  meilisearch.New(url),
		index:   DefaultIndex,
		metrics: metrics,
	}
}

func (c *Client) EnsureIndex(ctx context.Context) (err error) {
	if c.metrics != nil {
		defer func(start time.Time) {
			c.metrics.ObserveSearch("EnsureIndex", err, time.Since(start))
		}(time.Now())
	}

	if _, err = c.client.GetIndexWithContext(ctx, c.index); err != nil {
		var apiErr *meilisearch.Error
		if !errors.As(err, &apiErr) || apiErr.MeilisearchApiError.Code != "index_not_found" {
			return err
		}
		logx.Info(c.svc, "creating index", map[string]any{"index": c.index})
		if _, err = c.client.CreateIndexWithContext(ctx, &meilisearch.IndexConfig{Uid: c.index, PrimaryKey: "id"}); err != nil {
			return err
		}
	}

	settings := &meilisearch.Settings{
		SearchableAttributes: []string{"title", "summary", "url"},
		FilterableAttributes: []string{"host"},
	}
	_, err = c.client.Index(c.index).UpdateSettingsWithContext(ctx, settings)
	return err
}

func (c *Client) Health(ctx context.Context) (err error) {
	if c.metrics != nil {
		defer func(start time.Time) {
			c.metrics.ObserveSearch("Health", err, time.Since(start))
		}(time.Now())
	}

	if !c.client.IsHealthy() {
		err = fmt.Errorf("meili unhealthy")
		return err
	}
	return nil
}

type SearchResponse struct {
	Query          string     `json:"query"`
	Limit          int        `json:"limit"`
	Offset         int        `json:"offset"`
	EstimatedTotal int64      `json:"estimated_total"`
	Hits           []Document `json:"hits"`
}

type SearchFilters struct {
	Host string
}

// Filter renders the meili filter expression, or "" when no filter applies.
func (f SearchFilters) Filter() string {
	host := strings.ToLower(strings.TrimSpace(f.Host))
	if host == "" {
		return ""
	}
	return fmt.Sprintf("host = %q", strings.TrimPrefix(host, "www."))
}

func (c *Client) Search(ctx context.Context, query string, limit, offset int, filters SearchFilters) (resp SearchResponse, err error) {
	if c.metrics != nil {
		defer func(start time.Time) {
			c.metrics.ObserveSearch("Search", err, time.Since(start))
		}(time.Now())
	}

	req := &meilisearch.SearchRequest{
		Offset: int64(offset),
		Limit:  int64(limit),
	}
	if f := filters.Filter(); f != "" {
		req.Filter = f
	}

	var searchRes *meilisearch.SearchResponse
	searchRes, err = c.client.Index(c.index).SearchWithContext(ctx, query, req)
	if err != nil {
		return SearchResponse{}, err
	}
	hits := make([]Document, 0, len(searchRes.Hits))
	for _, hit := range searchRes.Hits {
		m, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		hits = append(hits, documentFromHit(m))
	}
	resp = SearchResponse{Query: query, Limit: limit, Offset: offset, EstimatedTotal: searchRes.EstimatedTotalHits, Hits: hits}
	return resp, nil
}

func documentFromHit(m map[string]interface{}) Document {
	doc := Document{}
	if v, ok := m["id"].(string); ok {
		doc.ID = v
	}
	if v, ok := m["url"].(string); ok {
		doc.URL = v
	}
	if v, ok := m["host"].(string); ok {
		doc.Host = v
	}
	if v, ok := m["title"].(string); ok {
		doc.Title = v
	}
	if v, ok := m["summary"].(string); ok {
		doc.Summary = v
	}
	if v, ok := m["loaded_at"].(string); ok && v != "" {
		if parsed, parseErr := time.Parse(time.RFC3339, v); parseErr == nil {
			doc.LoadedAt = &parsed
		}
	}
	return doc
}

func (c *Client) UpsertDocuments(ctx context.Context, docs []Document) (err error) {
	if c.metrics != nil {
		defer func(start time.Time) {
			c.metrics.ObserveSearch("UpsertDocuments", err, time.Since(start))
		}(time.Now())
	}

	if len(docs) == 0 {
		return nil
	}

	logx.Info(c.svc, "upsert documents", map[string]any{"index": c.index, "batch_size": len(docs)})

	_, err = c.client.Index(c.index).UpdateDocumentsWithContext(ctx, docs)
	return err
}

func (c *Client) IndexName() string {
	return c.index
}
