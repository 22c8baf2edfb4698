package email

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xxxsen/quill/internal/model"
	"github.com/xxxsen/quill/internal/repo"
)

// brevoWebhookEvent is the subset of Brevo's webhook payload this service
// cares about. Brevo posts either a single object or a JSON array depending
// on account configuration; ParseWebhookBody handles both.
type brevoWebhookEvent struct {
	Event     string `json:"event"`
	Email     string `json:"email"`
	MessageID string `json:"message-id"`
	Date      string `json:"date"`
}

func parseWebhookBody(body []byte) ([]brevoWebhookEvent, error) {
	trimmed := len(body) > 0 && body[0] == '['
	if trimmed {
		var events []brevoWebhookEvent
		if err := json.Unmarshal(body, &events); err != nil {
			return nil, err
		}
		return events, nil
	}
	var single brevoWebhookEvent
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, err
	}
	return []brevoWebhookEvent{single}, nil
}

// classifyEvent maps a Brevo event name to the internal taxonomy and
// whether it should add a suppression row (spec §4.13 step 5).
func classifyEvent(name string) (model.EmailEventType, bool, bool) {
	switch name {
	case "delivered":
		return model.EmailEventDelivered, false, true
	case "hard_bounce", "blocked", "invalid_email":
		return model.EmailEventBounced, true, true
	case "spam":
		return model.EmailEventComplaint, true, true
	case "unsubscribe":
		return model.EmailEventUnsubscribed, true, true
	default:
		return "", false, false
	}
}

// WebhookProcessor ingests provider delivery events into email_events and
// escalates bounces/complaints/unsubscribes into email_suppressions.
type WebhookProcessor struct {
	events       *repo.EmailEventRepo
	suppressions *repo.EmailSuppressionRepo
}

func NewWebhookProcessor(events *repo.EmailEventRepo, suppressions *repo.EmailSuppressionRepo) *WebhookProcessor {
	return &WebhookProcessor{events: events, suppressions: suppressions}
}

func (w *WebhookProcessor) Process(ctx context.Context, body []byte) error {
	events, err := parseWebhookBody(body)
	if err != nil {
		return fmt.Errorf("parse webhook body: %w", err)
	}

	now := time.Now().UTC()
	for _, ev := range events {
		eventType, suppress, ok := classifyEvent(ev.Event)
		if !ok {
			continue
		}
		payload, _ := json.Marshal(ev)
		rec := &model.EmailEvent{
			ID:        uuid.NewString(),
			Email:     ev.Email,
			EventType: eventType,
			MessageID: ev.MessageID,
			Payload:   payload,
			CreatedAt: now,
		}
		if err := w.events.Create(ctx, rec); err != nil {
			return fmt.Errorf("persist email event: %w", err)
		}
		if !suppress {
			continue
		}
		if err := w.suppressions.Suppress(ctx, &model.EmailSuppression{
			ID:        uuid.NewString(),
			Email:     ev.Email,
			Reason:    string(eventType),
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("record suppression: %w", err)
		}
	}
	return nil
}
