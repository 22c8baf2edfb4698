package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type geminiProvider struct {
	apiKey string
}

type geminiEmbedProvider struct {
	apiKey string
}

func createGeminiProvider(cfg Config) (Provider, error) {
	return &geminiProvider{apiKey: strings.TrimSpace(cfg.APIKey)}, nil
}

func createGeminiEmbedProvider(cfg Config) (EmbedProvider, error) {
	return &geminiEmbedProvider{apiKey: strings.TrimSpace(cfg.APIKey)}, nil
}

func init() {
	Register("gemini", createGeminiProvider)
	RegisterEmbed("gemini", createGeminiEmbedProvider)
}

func (p *geminiProvider) Name() string { return "gemini" }

func (p *geminiProvider) newClient(ctx context.Context) (*genai.Client, error) {
	if p.apiKey == "" {
		return nil, &Error{Kind: KindAuthError, Message: "gemini api key not configured"}
	}
	return genai.NewClient(ctx, &genai.ClientConfig{APIKey: p.apiKey, Backend: genai.BackendGeminiAPI})
}

func toGeminiContents(messages []ChatMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role == "assistant" {
			role = "model"
		}
		if role != "model" {
			role = "user"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Content}}})
	}
	return contents
}

func (p *geminiProvider) Complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	return withRetry(ctx, func() (ChatResponse, error) {
		client, err := p.newClient(ctx)
		if err != nil {
			return ChatResponse{}, err
		}
		caps := CapabilitiesFor(req.Model)
		var cfg *genai.GenerateContentConfig
		if caps.SupportsTemperature {
			temp := float32(req.Temperature)
			cfg = &genai.GenerateContentConfig{Temperature: &temp}
		}
		resp, err := client.Models.GenerateContent(ctx, req.Model, toGeminiContents(req.Messages), cfg)
		if err != nil {
			return ChatResponse{}, wrapGeminiErr(err)
		}
		usage := Usage{}
		if resp.UsageMetadata != nil {
			usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
			usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		}
		return ChatResponse{Content: strings.TrimSpace(resp.Text()), Usage: usage}, nil
	})
}

func (p *geminiProvider) Stream(ctx context.Context, req ChatRequest) (<-chan StreamDelta, <-chan error) {
	deltas := make(chan StreamDelta)
	errs := make(chan error, 1)

	go func() {
		defer close(deltas)
		defer close(errs)

		client, err := p.newClient(ctx)
		if err != nil {
			errs <- err
			return
		}
		caps := CapabilitiesFor(req.Model)
		var cfg *genai.GenerateContentConfig
		if caps.SupportsTemperature {
			temp := float32(req.Temperature)
			cfg = &genai.GenerateContentConfig{Temperature: &temp}
		}
		for resp, err := range client.Models.GenerateContentStream(ctx, req.Model, toGeminiContents(req.Messages), cfg) {
			if err != nil {
				errs <- wrapGeminiErr(err)
				return
			}
			delta := StreamDelta{Content: resp.Text()}
			if resp.UsageMetadata != nil {
				delta.Usage = Usage{
					PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
					CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
				}
			}
			select {
			case deltas <- delta:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		deltas <- StreamDelta{Done: true}
	}()

	return deltas, errs
}

func (p *geminiEmbedProvider) Name() string { return "gemini" }

func (p *geminiEmbedProvider) newClient(ctx context.Context) (*genai.Client, error) {
	if p.apiKey == "" {
		return nil, &Error{Kind: KindAuthError, Message: "gemini api key not configured"}
	}
	return genai.NewClient(ctx, &genai.ClientConfig{APIKey: p.apiKey, Backend: genai.BackendGeminiAPI})
}

// Embed issues one EmbedContent call per input; the Gemini embeddings API
// does not share OpenAI's 96-item batch endpoint shape, so batching here is
// just bounded concurrency-free sequential looping.
func (p *geminiEmbedProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	client, err := p.newClient(ctx)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := withRetry(ctx, func() ([]float32, error) {
			resp, err := client.Models.EmbedContent(ctx, model, []*genai.Content{{Parts: []*genai.Part{{Text: text}}}}, nil)
			if err != nil {
				return nil, wrapGeminiErr(err)
			}
			if len(resp.Embeddings) == 0 {
				return nil, fmt.Errorf("gemini: no embedding values returned")
			}
			return resp.Embeddings[0].Values, nil
		})
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func wrapGeminiErr(err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "429") || strings.Contains(lower, "resource_exhausted"):
		return &Error{Kind: KindRateLimited, Message: msg}
	case strings.Contains(lower, "401") || strings.Contains(lower, "unauthenticated") || strings.Contains(lower, "permission_denied"):
		return &Error{Kind: KindAuthError, Message: msg}
	case strings.Contains(lower, "deadline") || strings.Contains(lower, "timeout"):
		return &Error{Kind: KindUpstreamTimeout, Message: msg}
	case strings.Contains(lower, "500") || strings.Contains(lower, "503") || strings.Contains(lower, "unavailable"):
		return &Error{Kind: KindUpstreamServerError, Message: msg}
	default:
		return &Error{Kind: KindBadRequest, Message: msg}
	}
}
