package model

import (
	"encoding/json"
	"time"
)

type NoActivityPolicy string

const (
	NoActivityPolicySkip        NoActivityPolicy = "skip"
	NoActivityPolicyBrief       NoActivityPolicy = "brief"
	NoActivityPolicySuggestions NoActivityPolicy = "suggestions"
)

// EmailPreferences controls whether and when a user receives the weekly digest.
type EmailPreferences struct {
	UserID             string           `db:"user_id" json:"user_id"`
	WeeklyDigestEnabled bool            `db:"weekly_digest_enabled" json:"weekly_digest_enabled"`
	PreferredDay       int              `db:"preferred_day" json:"preferred_day"` // 0=Sun..6=Sat
	PreferredHour      int              `db:"preferred_hour" json:"preferred_hour"`
	Timezone           string           `db:"timezone" json:"timezone"`
	NoActivityPolicy   NoActivityPolicy `db:"no_activity_policy" json:"no_activity_policy"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}

type DigestStatus string

const (
	DigestStatusQueued DigestStatus = "queued"
	DigestStatusSent   DigestStatus = "sent"
	DigestStatusFailed DigestStatus = "failed"
)

// EmailDigest is the idempotency/audit row for one (user, week_start) send.
type EmailDigest struct {
	ID         string          `db:"id" json:"id"`
	UserID     string          `db:"user_id" json:"user_id"`
	WeekStart  time.Time       `db:"week_start" json:"week_start"`
	Status     DigestStatus    `db:"status" json:"status"`
	Payload    json.RawMessage `db:"payload" json:"payload,omitempty"`
	MessageID  string          `db:"message_id" json:"message_id,omitempty"`
	Error      string          `db:"error" json:"error,omitempty"`
	RetryCount int             `db:"retry_count" json:"retry_count"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// UnsubscribeToken is a stable per-user token linked from digest email bodies.
type UnsubscribeToken struct {
	Token     string    `db:"token" json:"token"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type EmailEventType string

const (
	EmailEventDelivered    EmailEventType = "delivered"
	EmailEventBounced      EmailEventType = "bounced"
	EmailEventComplaint    EmailEventType = "complaint"
	EmailEventUnsubscribed EmailEventType = "unsubscribed"
)

// EmailEvent is a raw ingested webhook event from the transactional provider.
type EmailEvent struct {
	ID        string          `db:"id" json:"id"`
	UserID    string          `db:"user_id" json:"user_id,omitempty"`
	Email     string          `db:"email" json:"email"`
	EventType EmailEventType  `db:"event_type" json:"event_type"`
	MessageID string          `db:"message_id" json:"message_id,omitempty"`
	Payload   json.RawMessage `db:"payload" json:"payload,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// EmailSuppression prevents future sends to an address after bounce/complaint/unsubscribe.
type EmailSuppression struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
