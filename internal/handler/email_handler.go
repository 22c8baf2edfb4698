package handler

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/xxxsen/quill/internal/digest"
	"github.com/xxxsen/quill/internal/email"
	"github.com/xxxsen/quill/internal/model"
	appErr "github.com/xxxsen/quill/internal/pkg/errcode"
	"github.com/xxxsen/quill/internal/pkg/response"
	"github.com/xxxsen/quill/internal/repo"
)

// EmailHandler implements spec §6's weekly digest surface: the cron-triggered
// sweep, an owner-authed test send, preference read/write, provider webhook
// ingestion, and the one-click unsubscribe link.
type EmailHandler struct {
	dispatcher   *digest.Dispatcher
	builder      *digest.Builder
	sender       digest.EmailSender
	webhooks     *email.WebhookProcessor
	prefs        *repo.EmailPreferencesRepo
	profiles     *repo.ProfileRepo
	suppressions *repo.EmailSuppressionRepo
	tokens       *repo.UnsubscribeTokenRepo
	cronSecret   string
}

func NewEmailHandler(
	dispatcher *digest.Dispatcher,
	builder *digest.Builder,
	sender digest.EmailSender,
	webhooks *email.WebhookProcessor,
	prefs *repo.EmailPreferencesRepo,
	profiles *repo.ProfileRepo,
	suppressions *repo.EmailSuppressionRepo,
	tokens *repo.UnsubscribeTokenRepo,
	cronSecret string,
) *EmailHandler {
	return &EmailHandler{
		dispatcher: dispatcher, builder: builder, sender: sender, webhooks: webhooks,
		prefs: prefs, profiles: profiles, suppressions: suppressions, tokens: tokens,
		cronSecret: cronSecret,
	}
}

// CronDigest is invoked by an external scheduler (spec §4.13). The shared
// secret is compared in constant time to avoid a timing side channel.
func (h *EmailHandler) CronDigest(c *gin.Context) {
	provided := c.GetHeader("X-Cron-Secret")
	if h.cronSecret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(h.cronSecret)) != 1 {
		response.Error(c, http.StatusUnauthorized, appErr.ErrUnauthorized, "invalid cron secret")
		return
	}
	result, err := h.dispatcher.RunSweep(c.Request.Context(), time.Now().UTC(), false)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

type testSendRequest struct {
	DryRun        bool   `json:"dry_run"`
	Force         bool   `json:"force"`
	EmailOverride string `json:"email_override"`
}

// TestSend lets an authenticated user preview or force-send their own
// digest outside the weekly cron window.
func (h *EmailHandler) TestSend(c *gin.Context) {
	var req testSendRequest
	_ = c.ShouldBindJSON(&req)
	userID := getUserID(c)

	prefs, err := h.prefs.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}

	now := time.Now().UTC()
	weekStart := now.AddDate(0, 0, -int((now.Weekday()+6)%7))
	weekStart = time.Date(weekStart.Year(), weekStart.Month(), weekStart.Day(), 0, 0, 0, 0, time.UTC)
	windowStart := weekStart.AddDate(0, 0, -7)

	payload, err := h.builder.Build(c.Request.Context(), userID, prefs.Timezone, windowStart, weekStart)
	if err != nil {
		handleError(c, err)
		return
	}

	if req.DryRun {
		response.Success(c, gin.H{"payload": payload, "sent": false})
		return
	}

	toEmail := req.EmailOverride
	toName := payload.User.Nickname
	if toEmail == "" {
		profile, err := h.profiles.GetByID(c.Request.Context(), userID)
		if err != nil {
			handleError(c, err)
			return
		}
		toEmail = profile.Email
	}
	if toEmail == "" {
		response.Error(c, http.StatusUnprocessableEntity, appErr.ErrInvalid, "no email address on file")
		return
	}

	if !req.Force {
		suppressed, err := h.suppressions.IsSuppressed(c.Request.Context(), toEmail)
		if err != nil {
			handleError(c, err)
			return
		}
		if suppressed {
			response.Error(c, http.StatusConflict, appErr.ErrConflict, "address is suppressed")
			return
		}
	}

	messageID, err := h.sender.SendDigest(c.Request.Context(), toEmail, toName, "Your weekly digest (test)", payload)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"payload": payload, "sent": true, "message_id": messageID})
}

func (h *EmailHandler) GetPreferences(c *gin.Context) {
	prefs, err := h.prefs.GetByUserID(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, prefs)
}

type updatePreferencesRequest struct {
	WeeklyDigestEnabled bool                   `json:"weekly_digest_enabled"`
	PreferredDay        int                    `json:"preferred_day"`
	PreferredHour       int                    `json:"preferred_hour"`
	Timezone            string                 `json:"timezone"`
	NoActivityPolicy    model.NoActivityPolicy `json:"no_activity_policy"`
}

func (h *EmailHandler) UpdatePreferences(c *gin.Context) {
	var req updatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusUnprocessableEntity, appErr.ErrInvalid, "invalid request body")
		return
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		response.Error(c, http.StatusUnprocessableEntity, appErr.ErrInvalid, "unknown timezone")
		return
	}
	prefs := &model.EmailPreferences{
		UserID:              getUserID(c),
		WeeklyDigestEnabled: req.WeeklyDigestEnabled,
		PreferredDay:        req.PreferredDay,
		PreferredHour:       req.PreferredHour,
		Timezone:            req.Timezone,
		NoActivityPolicy:    req.NoActivityPolicy,
	}
	if prefs.NoActivityPolicy == "" {
		prefs.NoActivityPolicy = model.NoActivityPolicySkip
	}
	if err := h.prefs.Upsert(c.Request.Context(), prefs); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, prefs)
}

// Webhook ingests Brevo delivery events. No auth: Brevo signs nothing by
// default, so this endpoint is unauthenticated. A redelivered event adds
// another email_events row; the suppression upsert leaves suppression state
// unchanged.
func (h *EmailHandler) Webhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.Error(c, http.StatusUnprocessableEntity, appErr.ErrInvalid, "unreadable body")
		return
	}
	if err := h.webhooks.Process(c.Request.Context(), body); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

// Unsubscribe resolves a one-click token from a digest email footer, flips
// the user's weekly_digest_enabled flag, and adds a suppression so a stale
// in-flight sweep can't slip through before the preference write lands.
func (h *EmailHandler) Unsubscribe(c *gin.Context) {
	token := c.Param("token")
	userID, err := h.tokens.ResolveUserID(c.Request.Context(), token)
	if err != nil {
		response.Error(c, http.StatusNotFound, appErr.ErrNotFound, "unknown unsubscribe link")
		return
	}

	prefs, err := h.prefs.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}
	prefs.WeeklyDigestEnabled = false
	if err := h.prefs.Upsert(c.Request.Context(), prefs); err != nil {
		handleError(c, err)
		return
	}

	if profile, err := h.profiles.GetByID(c.Request.Context(), userID); err == nil && profile.Email != "" {
		_ = h.suppressions.Suppress(c.Request.Context(), &model.EmailSuppression{
			ID: uuid.NewString(), Email: profile.Email, Reason: "unsubscribed", CreatedAt: time.Now().UTC(),
		})
	}

	response.Success(c, gin.H{"unsubscribed": true})
}
