package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// embedBatchSize is the maximum number of inputs sent per embeddings call
// (spec §4.4: "batches up to 96 inputs per call").
const embedBatchSize = 96

type openAIProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type openAIEmbedProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func createOpenAIProvider(cfg Config) (Provider, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &openAIProvider{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func createOpenAIEmbedProvider(cfg Config) (EmbedProvider, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &openAIEmbedProvider{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func init() {
	Register("openai", createOpenAIProvider)
	RegisterEmbed("openai", createOpenAIEmbedProvider)
}

func (p *openAIProvider) Name() string { return "openai" }

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMsgWire `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatMsgWire struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *openAIProvider) buildRequest(ctx context.Context, req ChatRequest) (*http.Request, error) {
	shaped := ApplyCapabilities(req)
	wire := chatCompletionRequest{
		Model:     shaped.Model,
		MaxTokens: shaped.MaxTokens,
		Stream:    shaped.Stream,
	}
	caps := CapabilitiesFor(shaped.Model)
	if caps.SupportsTemperature {
		temp := shaped.Temperature
		wire.Temperature = &temp
	}
	for _, m := range shaped.Messages {
		wire.Messages = append(wire.Messages, chatMsgWire{Role: m.Role, Content: m.Content})
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(p.baseURL, "/")+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

func (p *openAIProvider) Complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	req.Stream = false
	return withRetry(ctx, func() (ChatResponse, error) {
		httpReq, err := p.buildRequest(ctx, req)
		if err != nil {
			return ChatResponse{}, err
		}
		resp, err := p.client.Do(httpReq)
		if err != nil {
			return ChatResponse{}, &Error{Kind: KindUpstreamTimeout, Message: err.Error()}
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return ChatResponse{}, newError(resp.StatusCode, string(body))
		}
		var out chatCompletionResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return ChatResponse{}, err
		}
		if len(out.Choices) == 0 {
			return ChatResponse{}, fmt.Errorf("openai: completion response has no choices")
		}
		return ChatResponse{
			Content: out.Choices[0].Message.Content,
			Usage:   Usage{PromptTokens: out.Usage.PromptTokens, CompletionTokens: out.Usage.CompletionTokens},
		}, nil
	})
}

// Stream issues an SSE-framed completion request and forwards token deltas
// in order, closing the delta channel once a terminal chunk or error is
// seen (spec §4.4 streaming mode, forwarded by C10 in §6 framing).
func (p *openAIProvider) Stream(ctx context.Context, req ChatRequest) (<-chan StreamDelta, <-chan error) {
	deltas := make(chan StreamDelta)
	errs := make(chan error, 1)
	req.Stream = true

	go func() {
		defer close(deltas)
		defer close(errs)

		httpReq, err := p.buildRequest(ctx, req)
		if err != nil {
			errs <- err
			return
		}
		resp, err := p.client.Do(httpReq)
		if err != nil {
			errs <- &Error{Kind: KindUpstreamTimeout, Message: err.Error()}
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(resp.Body)
			errs <- newError(resp.StatusCode, string(body))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				deltas <- StreamDelta{Done: true}
				return
			}
			var chunk chatCompletionChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := StreamDelta{Content: chunk.Choices[0].Delta.Content}
			if chunk.Usage != nil {
				delta.Usage = Usage{PromptTokens: chunk.Usage.PromptTokens, CompletionTokens: chunk.Usage.CompletionTokens}
			}
			select {
			case deltas <- delta:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
			if chunk.Choices[0].FinishReason != nil {
				deltas <- StreamDelta{Done: true}
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- err
		}
	}()

	return deltas, errs
}

func (p *openAIEmbedProvider) Name() string { return "openai" }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed respects the 96-input batch ceiling from spec §4.4, issuing one HTTP
// call per batch and reassembling results in input order.
func (p *openAIEmbedProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]
		vectors, err := withRetry(ctx, func() ([][]float32, error) {
			return p.embedBatch(ctx, model, batch)
		})
		if err != nil {
			return nil, err
		}
		copy(out[start:end], vectors)
	}
	return out, nil
}

func (p *openAIEmbedProvider) embedBatch(ctx context.Context, model string, batch []string) ([][]float32, error) {
	data, err := json.Marshal(embedRequest{Model: model, Input: batch})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(p.baseURL, "/")+"/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: KindUpstreamTimeout, Message: err.Error()}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newError(resp.StatusCode, string(body))
	}
	var out embedResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if len(out.Data) != len(batch) {
		return nil, fmt.Errorf("openai: embeddings response size mismatch: got %d, want %d", len(out.Data), len(batch))
	}
	vectors := make([][]float32, len(batch))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			continue
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
