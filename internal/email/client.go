// Package email implements the transactional email client used by C13's
// digest dispatcher: a Brevo (Sendinblue) HTTP client with retry, plus
// webhook ingestion into email_events/email_suppressions.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/xxxsen/quill/internal/config"
	"github.com/xxxsen/quill/internal/digest"
)

const defaultBrevoBaseURL = "https://api.brevo.com/v3"

// BrevoClient sends the weekly digest via Brevo's transactional email API.
// It implements digest.EmailSender.
type BrevoClient struct {
	apiKey     string
	baseURL    string
	fromEmail  string
	fromName   string
	client     *http.Client
	maxRetries uint64
}

func NewBrevoClient(cfg config.EmailConfig) *BrevoClient {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBrevoBaseURL
	}
	return &BrevoClient{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		fromEmail:  cfg.FromEmail,
		fromName:   cfg.FromName,
		client:     &http.Client{Timeout: 30 * time.Second},
		maxRetries: 3,
	}
}

type brevoAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoSendRequest struct {
	Sender      brevoAddress           `json:"sender"`
	To          []brevoAddress         `json:"to"`
	Subject     string                 `json:"subject"`
	HTMLContent string                 `json:"htmlContent,omitempty"`
	Params      map[string]interface{} `json:"params,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
}

type brevoSendResponse struct {
	MessageID string `json:"messageId"`
}

// SendDigest renders the digest payload as Brevo template params (per spec
// §4.13 step 4, "call the email provider's transactional template API with
// the payload under params") and sends with exponential-backoff retry on
// transient failures.
func (c *BrevoClient) SendDigest(ctx context.Context, toEmail, toName, subject string, payload digest.Payload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal digest payload: %w", err)
	}
	var params map[string]interface{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return "", fmt.Errorf("flatten digest payload: %w", err)
	}

	wire := brevoSendRequest{
		Sender:      brevoAddress{Email: c.fromEmail, Name: c.fromName},
		To:          []brevoAddress{{Email: toEmail, Name: toName}},
		Subject:     subject,
		HTMLContent: fallbackHTML(subject, toName),
		Params:      params,
		Tags:        []string{"weekly_digest"},
	}

	var messageID string
	operation := func() error {
		id, err := c.send(ctx, wire)
		if err != nil {
			return err
		}
		messageID = id
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}
	return messageID, nil
}

func (c *BrevoClient) send(ctx context.Context, wire brevoSendRequest) (string, error) {
	body, err := json.Marshal(wire)
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/smtp/email", bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err // network errors are retryable
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out brevoSendResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return "", backoff.Permanent(fmt.Errorf("decode brevo response: %w", err))
		}
		return out.MessageID, nil
	case resp.StatusCode == 429 || resp.StatusCode >= 500:
		return "", fmt.Errorf("brevo transient error %d: %s", resp.StatusCode, string(raw))
	default:
		return "", backoff.Permanent(fmt.Errorf("brevo request failed %d: %s", resp.StatusCode, string(raw)))
	}
}

func fallbackHTML(subject, toName string) string {
	return fmt.Sprintf("<p>Hi %s,</p><p>%s</p>", toName, subject)
}
