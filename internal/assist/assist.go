// Package assist answers a chat request: it retrieves the greenlist URLs
// nearest to the user's question, asks the language model with those URLs as
// context, and passes the reply through the link guard before returning it.
package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"greenlist/internal/linkguard"
	"greenlist/internal/openai"
	"greenlist/internal/store"
)

const (
	DefaultMaxTokens   = 2600
	DefaultTemperature = 0.6
	DefaultTopN        = 10
	DefaultContextURLs = 8
)

var (
	ErrNoUserMessage      = errors.New("no user message")
	ErrEmbeddingDimension = errors.New("embedding dimension mismatch")
)

type Embedder interface {
	Embed(ctx context.Context, model, input string) ([]float32, error)
}

type Completer interface {
	Complete(ctx context.Context, req openai.ChatRequest) (string, error)
}

type Retriever interface {
	TopMatches(ctx context.Context, embedding []float32, limit int) ([]store.Match, error)
}

type Sanitizer interface {
	SanitizeWithTrace(ctx context.Context, text string) (string, []linkguard.Decision)
}

type Config struct {
	ChatModel           string
	EmbeddingModel      string
	EmbeddingDimensions int
	TopN                int
	ContextURLs         int
	// Trace includes link decisions in answers.
	Trace bool
}

type Service struct {
	cfg       Config
	embedder  Embedder
	completer Completer
	retriever Retriever
	sanitizer Sanitizer
}

func New(cfg Config, embedder Embedder, completer Completer, retriever Retriever, sanitizer Sanitizer) *Service {
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	if cfg.ContextURLs <= 0 {
		cfg.ContextURLs = DefaultContextURLs
	}
	return &Service{
		cfg:       cfg,
		embedder:  embedder,
		completer: completer,
		retriever: retriever,
		sanitizer: sanitizer,
	}
}

// Request is the chat payload accepted by /ask.
type Request struct {
	Messages    []openai.Message `json:"messages"`
	MaxTokens   *int             `json:"max_tokens,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
}

// ParseRequest decodes a JSON chat payload. A body that is not a JSON object
// is treated as the text of a single user message.
func ParseRequest(body []byte) Request {
	var req Request
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") && json.Unmarshal(body, &req) == nil {
		return req
	}
	return Request{Messages: []openai.Message{{Role: "user", Content: string(body)}}}
}

type Answer struct {
	Answer    string               `json:"answer"`
	LinkFixes []linkguard.Decision `json:"link_fixes,omitempty"`
}

func (s *Service) Ask(ctx context.Context, req Request) (Answer, error) {
	question, ok := userMessage(req.Messages)
	if !ok {
		return Answer{}, ErrNoUserMessage
	}

	urls, err := s.contextURLs(ctx, question)
	if err != nil {
		return Answer{}, err
	}

	messages := withSystemContext(req.Messages, urls)
	chat := openai.ChatRequest{
		Model:       s.cfg.ChatModel,
		Messages:    messages,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	}
	if req.MaxTokens != nil {
		chat.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		chat.Temperature = *req.Temperature
	}

	reply, err := s.completer.Complete(ctx, chat)
	if err != nil {
		return Answer{}, fmt.Errorf("complete: %w", err)
	}

	safe, trace := s.sanitizer.SanitizeWithTrace(ctx, reply)
	ans := Answer{Answer: safe}
	if s.cfg.Trace {
		ans.LinkFixes = trace
	}
	return ans, nil
}

func (s *Service) contextURLs(ctx context.Context, question string) ([]string, error) {
	embedding, err := s.embedder.Embed(ctx, s.cfg.EmbeddingModel, question)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if s.cfg.EmbeddingDimensions > 0 && len(embedding) != s.cfg.EmbeddingDimensions {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingDimension, s.cfg.EmbeddingDimensions, len(embedding))
	}

	matches, err := s.retriever.TopMatches(ctx, embedding, s.cfg.TopN)
	if err != nil {
		return nil, fmt.Errorf("top matches: %w", err)
	}

	seen := make(map[string]struct{}, len(matches))
	urls := make([]string, 0, s.cfg.ContextURLs)
	for _, m := range matches {
		u := strings.TrimSpace(m.Content)
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
		if len(urls) == s.cfg.ContextURLs {
			break
		}
	}
	return urls, nil
}

func userMessage(messages []openai.Message) (string, bool) {
	for _, m := range messages {
		if m.Role == "user" {
			return m.Content, true
		}
	}
	return "", false
}

// withSystemContext prepends the retrieved URLs as a system message unless the
// conversation already carries one.
func withSystemContext(messages []openai.Message, urls []string) []openai.Message {
	for _, m := range messages {
		if m.Role == "system" {
			return messages
		}
	}
	lines := make([]string, 0, len(urls))
	for _, u := range urls {
		lines = append(lines, "URL: "+u+"\n")
	}
	system := openai.Message{
		Role:    "system",
		Content: "Use the following verified Greenlist URLs when answering:\n\n" + strings.Join(lines, "\n"),
	}
	out := make([]openai.Message, 0, len(messages)+1)
	out = append(out, system)
	return append(out, messages...)
}
