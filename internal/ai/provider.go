// Package ai implements C4: chat completions (including streaming) and
// embeddings against an OpenAI-compatible endpoint, plus a Gemini variant,
// behind a small provider registry.
package ai

import (
	"context"
	"fmt"
	"strings"
)

// ChatMessage is a single turn in a completion request.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatRequest is what C10 (chat engine) and C4's own summary/narrative
// callers build for a completion call.
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
	Stream      bool
}

// Usage records token accounting surfaced as message metadata (spec §4.4).
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// ChatResponse is the result of a non-streaming completion call.
type ChatResponse struct {
	Content string
	Usage   Usage
}

// StreamDelta is one token-delta event of a streaming completion.
type StreamDelta struct {
	Content string
	Done    bool
	Usage   Usage
}

// Provider is a chat-completion backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req ChatRequest) (ChatResponse, error)
	Stream(ctx context.Context, req ChatRequest) (<-chan StreamDelta, <-chan error)
}

// EmbedProvider is an embeddings backend.
type EmbedProvider interface {
	Name() string
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

type ProviderFactory func(cfg Config) (Provider, error)
type EmbedProviderFactory func(cfg Config) (EmbedProvider, error)

// Config is the subset of internal/config.AIConfig a provider factory needs.
type Config struct {
	APIKey  string
	BaseURL string
}

var (
	registry      = map[string]ProviderFactory{}
	embedRegistry = map[string]EmbedProviderFactory{}
)

func Register(name string, factory ProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func RegisterEmbed(name string, factory EmbedProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func NewProvider(name string, cfg Config) (Provider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	factory, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(cfg)
}

func NewEmbedProvider(name string, cfg Config) (EmbedProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	factory, ok := embedRegistry[key]
	if !ok {
		return nil, fmt.Errorf("unsupported ai embedding provider: %s", name)
	}
	return factory(cfg)
}
