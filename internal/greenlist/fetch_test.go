package greenlist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcherPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Academic Staff</title></head><body><p>Welcome</p></body></html>`))
	}))
	t.Cleanup(srv.Close)

	page, err := NewFetcher(time.Second).Page(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Academic Staff", page.Title)
	assert.Equal(t, "Welcome", page.Summary)
}

func TestFetcherPageSkipsNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	t.Cleanup(srv.Close)

	page, err := NewFetcher(time.Second).Page(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Empty(t, page.Title)
}

func TestFetcherTransientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	_, err := NewFetcher(time.Second).Page(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrTransientFetch)
}

func TestFetcherPermanentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	t.Cleanup(srv.Close)

	_, err := NewFetcher(time.Second).Page(context.Background(), srv.URL)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTransientFetch)
	assert.Contains(t, err.Error(), "unexpected status 410")
}

func TestFetcherClosedServerIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewFetcher(time.Second).Page(context.Background(), url)
	assert.ErrorIs(t, err, ErrTransientFetch)
}

func TestFetcherFeedLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>News</title>
<item><title>One</title><link>https://dal.ca/news/1</link></item>
<item><title>No link</title></item>
<item><title>Two</title><link> https://dal.ca/news/2 </link></item>
</channel></rss>`))
	}))
	t.Cleanup(srv.Close)

	links, err := NewFetcher(time.Second).FeedLinks(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://dal.ca/news/1", "https://dal.ca/news/2"}, links)
}

func TestFetcherFeedParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("definitely not a feed"))
	}))
	t.Cleanup(srv.Close)

	_, err := NewFetcher(time.Second).FeedLinks(context.Background(), srv.URL)
	assert.Error(t, err)
}
