package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		assert.Equal(t, 2600, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, Message{Role: "user", Content: "hi"}, req.Messages[0])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL+"/v1/", "sk-test", nil)
	reply, err := c.Complete(context.Background(), ChatRequest{
		Model:       "gpt-test",
		Messages:    []Message{{Role: "user", Content: "hi"}},
		MaxTokens:   2600,
		Temperature: 0.6,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", reply)
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	t.Cleanup(srv.Close)

	_, err := New(srv.URL, "", nil).Complete(context.Background(), ChatRequest{Model: "m"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.True(t, IsUpstream(err))
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)

		var body struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "text-embedding-3-large", body.Model)
		assert.Equal(t, []string{"dal"}, body.Input)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.25,-0.5]}]}`))
	}))
	t.Cleanup(srv.Close)

	vec, err := New(srv.URL, "k", nil).Embed(context.Background(), "text-embedding-3-large", "dal")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5}, vec)
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
	}))
	t.Cleanup(srv.Close)

	_, err := New(srv.URL, "k", nil).Embed(context.Background(), "m", "x")
	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, UpstreamStatus(err))
	assert.True(t, IsUpstream(err))
	assert.Contains(t, err.Error(), "rate limited")
}

func TestIsUpstreamIgnoresOtherErrors(t *testing.T) {
	assert.False(t, IsUpstream(errors.New("db down")))
	assert.Zero(t, UpstreamStatus(context.Canceled))
}
