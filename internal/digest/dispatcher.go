package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xxxsen/quill/internal/model"
	"github.com/xxxsen/quill/internal/pkg/logging"
	"github.com/xxxsen/quill/internal/repo"
)

const maxDigestRetries = 3

// EmailSender is the C13 dependency on the transactional email provider,
// kept local (rather than importing internal/email directly) the same way
// chat.MemoryExtractor decouples C10 from C11's concrete type.
type EmailSender interface {
	SendDigest(ctx context.Context, toEmail, toName, subject string, payload Payload) (messageID string, err error)
}

// SweepResult tallies one RunSweep pass, mirroring the donor's per-run
// aggregate counters.
type SweepResult struct {
	Processed int
	Sent      int
	Skipped   int
	Failed    int
	Errors    []SweepFailure
}

type SweepFailure struct {
	UserID string
	Reason string
}

type SkipReason string

const (
	SkipNotSendTime SkipReason = "not_send_time"
	SkipAlreadySent SkipReason = "already_sent"
	SkipInProgress  SkipReason = "in_progress"
	SkipSuppressed  SkipReason = "suppressed"
	SkipNoActivity  SkipReason = "no_activity_skip"
)

// Dispatcher implements C13: per-user decision, idempotent send, and
// suppression enforcement for the weekly digest.
type Dispatcher struct {
	prefs        *repo.EmailPreferencesRepo
	digests      *repo.EmailDigestRepo
	suppressions *repo.EmailSuppressionRepo
	profiles     *repo.ProfileRepo
	insights     *repo.InsightRepo
	builder      *Builder
	sender       EmailSender
}

func NewDispatcher(
	prefs *repo.EmailPreferencesRepo,
	digests *repo.EmailDigestRepo,
	suppressions *repo.EmailSuppressionRepo,
	profiles *repo.ProfileRepo,
	insights *repo.InsightRepo,
	builder *Builder,
	sender EmailSender,
) *Dispatcher {
	return &Dispatcher{
		prefs:        prefs,
		digests:      digests,
		suppressions: suppressions,
		profiles:     profiles,
		insights:     insights,
		builder:      builder,
		sender:       sender,
	}
}

// RunSweep processes every configured user against nowUTC, sending at most
// one digest per (user_id, week_start). force bypasses the day/hour/enabled
// gate but never bypasses suppression (spec §4.13).
func (d *Dispatcher) RunSweep(ctx context.Context, nowUTC time.Time, force bool) (SweepResult, error) {
	logger := logging.From(ctx)
	nowUTC = nowUTC.UTC()

	var users []model.EmailPreferences
	var err error
	if force {
		users, err = d.prefs.ListAll(ctx)
	} else {
		users, err = d.prefs.ListEnabled(ctx)
	}
	if err != nil {
		return SweepResult{}, fmt.Errorf("list digest recipients: %w", err)
	}

	result := SweepResult{}
	for _, p := range users {
		result.Processed++
		status, reason, err := d.processUser(ctx, p, nowUTC, force)
		switch status {
		case outcomeSent:
			result.Sent++
		case outcomeSkipped:
			result.Skipped++
		case outcomeFailed:
			result.Failed++
			result.Errors = append(result.Errors, SweepFailure{UserID: p.UserID, Reason: reason})
		}
		if err != nil {
			logger.Warn("digest processing failed for user", zap.String("user_id", p.UserID), zap.Error(err))
		}
	}
	return result, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSent
	outcomeFailed
)

func (d *Dispatcher) processUser(ctx context.Context, prefs model.EmailPreferences, nowUTC time.Time, force bool) (outcome, string, error) {
	loc, err := time.LoadLocation(prefs.Timezone)
	if err != nil {
		loc = time.UTC
	}
	localNow := nowUTC.In(loc)

	weekStart := weekStartUTC(nowUTC)
	windowStart := weekStart.AddDate(0, 0, -7)

	hasInsights, err := d.insights.CountActiveSince(ctx, prefs.UserID, windowStart)
	if err != nil {
		return outcomeFailed, "count_insights_failed", err
	}

	if !shouldSend(prefs, hasInsights > 0, localNow, force) {
		return outcomeSkipped, string(SkipNotSendTime), nil
	}

	profile, err := d.profiles.GetByID(ctx, prefs.UserID)
	if err != nil {
		return outcomeFailed, "profile_load_failed", err
	}
	if profile.Email == "" {
		return outcomeSkipped, "no_email_on_file", nil
	}

	suppressed, err := d.suppressions.IsSuppressed(ctx, profile.Email)
	if err != nil {
		return outcomeFailed, "suppression_check_failed", err
	}
	if suppressed {
		return outcomeSkipped, string(SkipSuppressed), nil
	}

	existing, err := d.digests.GetByUserAndWeek(ctx, prefs.UserID, weekStart)
	claimed := false
	digestID := ""
	if err == nil {
		digestID = existing.ID
		if existing.Status == model.DigestStatusSent {
			return outcomeSkipped, string(SkipAlreadySent), nil
		}
		if existing.Status == model.DigestStatusQueued {
			return outcomeSkipped, string(SkipInProgress), nil
		}
		if existing.RetryCount >= maxDigestRetries {
			return outcomeSkipped, "max_retries_exceeded", nil
		}
		// existing failed row: fall through and retry the send.
	} else {
		digestID = uuid.NewString()
		claimed, err = d.digests.ClaimSlot(ctx, &model.EmailDigest{
			ID:         digestID,
			UserID:     prefs.UserID,
			WeekStart:  weekStart,
			Status:     model.DigestStatusQueued,
			Payload:    json.RawMessage("{}"),
			RetryCount: 0,
		})
		if err != nil {
			return outcomeFailed, "claim_slot_failed", err
		}
		if !claimed {
			// Lost the race to a concurrent sweep; the winner owns this send.
			return outcomeSkipped, string(SkipInProgress), nil
		}
	}

	payload, err := d.builder.Build(ctx, prefs.UserID, prefs.Timezone, windowStart, weekStart)
	if err != nil {
		_ = d.digests.MarkFailed(ctx, digestID, err.Error())
		return outcomeFailed, "build_failed", err
	}

	if hasInsights == 0 && prefs.NoActivityPolicy == model.NoActivityPolicySkip {
		payloadJSON, _ := json.Marshal(payload)
		_ = d.digests.MarkSentWithPayload(ctx, digestID, "skipped", payloadJSON)
		return outcomeSkipped, string(SkipNoActivity), nil
	}

	subject := digestSubject(payload)
	messageID, err := d.sender.SendDigest(ctx, profile.Email, payload.User.Nickname, subject, payload)
	if err != nil {
		_ = d.digests.MarkFailed(ctx, digestID, err.Error())
		return outcomeFailed, "send_failed", err
	}

	payloadJSON, _ := json.Marshal(payload)
	if err := d.digests.MarkSentWithPayload(ctx, digestID, messageID, payloadJSON); err != nil {
		return outcomeFailed, "mark_sent_failed", err
	}
	return outcomeSent, "", nil
}

func digestSubject(p Payload) string {
	if p.ActivitySummary.InsightsCount > 0 {
		return fmt.Sprintf("Your weekly digest - %d new insights", p.ActivitySummary.InsightsCount)
	}
	return "Your weekly digest"
}

// shouldSend implements spec §4.13's decision table exactly.
func shouldSend(prefs model.EmailPreferences, hasInsights bool, localNow time.Time, force bool) bool {
	if force {
		return true
	}
	if !prefs.WeeklyDigestEnabled {
		return false
	}
	if int(localNow.Weekday()) != prefs.PreferredDay {
		return false
	}
	if localNow.Hour() != prefs.PreferredHour {
		return false
	}
	if !hasInsights && prefs.NoActivityPolicy == model.NoActivityPolicySkip {
		return false
	}
	return true
}

// weekStartUTC returns the Monday 00:00 UTC at or preceding t, per spec
// §4.13 step 1.
func weekStartUTC(t time.Time) time.Time {
	t = t.UTC()
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	d := t.AddDate(0, 0, -daysSinceMonday)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
