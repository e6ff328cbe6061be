// Package openai wraps the embeddings and chat completions endpoints of the
// OpenAI API behind the narrow types the rest of the service uses.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	sdk "github.com/sashabaranov/go-openai"
)

var ErrEmptyResponse = errors.New("openai: empty response")

type Metrics interface {
	ObserveOpenAI(method string, err error, duration time.Duration)
}

type Client struct {
	api     *sdk.Client
	metrics Metrics
}

// New builds a client. An empty baseURL uses the public API.
func New(baseURL, apiKey string, metrics Metrics) *Client {
	cfg := sdk.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	return &Client{
		api:     sdk.NewClientWithConfig(cfg),
		metrics: metrics,
	}
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

// Complete returns the content of the first choice.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (reply string, err error) {
	if c.metrics != nil {
		defer func(start time.Time) {
			c.metrics.ObserveOpenAI("Complete", err, time.Since(start))
		}(time.Now())
	}

	messages := make([]sdk.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, sdk.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	var res sdk.ChatCompletionResponse
	res, err = c.api.CreateChatCompletion(ctx, sdk.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return res.Choices[0].Message.Content, nil
}

func (c *Client) Embed(ctx context.Context, model, input string) (vec []float32, err error) {
	if c.metrics != nil {
		defer func(start time.Time) {
			c.metrics.ObserveOpenAI("Embed", err, time.Since(start))
		}(time.Now())
	}

	var res sdk.EmbeddingResponse
	res, err = c.api.CreateEmbeddings(ctx, sdk.EmbeddingRequest{
		Input: []string{input},
		Model: sdk.EmbeddingModel(model),
	})
	if err != nil {
		return nil, err
	}
	if len(res.Data) == 0 || len(res.Data[0].Embedding) == 0 {
		return nil, ErrEmptyResponse
	}
	return res.Data[0].Embedding, nil
}

// UpstreamStatus reports the HTTP status of a failed API call, or 0 when err
// did not come from an API response.
func UpstreamStatus(err error) int {
	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *sdk.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// IsUpstream reports whether err is a failure of the model API itself.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrEmptyResponse) || UpstreamStatus(err) != 0
}
