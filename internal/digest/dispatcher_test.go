package digest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xxxsen/quill/internal/model"
)

// tokyoPrefs targets 2025-09-10 22:00 Asia/Tokyo, a Wednesday: PreferredDay
// uses the 0=Sunday convention, so Wednesday is 3.
func tokyoPrefs() model.EmailPreferences {
	return model.EmailPreferences{
		WeeklyDigestEnabled: true,
		PreferredDay:        3, // Wednesday
		PreferredHour:       22,
		Timezone:            "Asia/Tokyo",
		NoActivityPolicy:    model.NoActivityPolicySkip,
	}
}

func TestShouldSend_MatchesAtExactLocalWeekdayAndHour(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	assert.NoError(t, err)
	nowUTC, err := time.Parse(time.RFC3339, "2025-09-10T13:00:00Z")
	assert.NoError(t, err)
	localNow := nowUTC.In(loc)

	assert.True(t, shouldSend(tokyoPrefs(), true, localNow, false))
}

func TestShouldSend_FalseOneHourBefore(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	assert.NoError(t, err)
	nowUTC, err := time.Parse(time.RFC3339, "2025-09-10T12:00:00Z")
	assert.NoError(t, err)
	localNow := nowUTC.In(loc)

	assert.False(t, shouldSend(tokyoPrefs(), true, localNow, false))
}

func TestShouldSend_DisabledNeverSendsWithoutForce(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Tokyo")
	nowUTC, _ := time.Parse(time.RFC3339, "2025-09-10T13:00:00Z")
	prefs := tokyoPrefs()
	prefs.WeeklyDigestEnabled = false
	assert.False(t, shouldSend(prefs, true, nowUTC.In(loc), false))
}

func TestShouldSend_ForceBypassesDayHourAndEnabled(t *testing.T) {
	prefs := tokyoPrefs()
	prefs.WeeklyDigestEnabled = false
	assert.True(t, shouldSend(prefs, true, time.Now(), true))
}

func TestShouldSend_NoActivitySkipPolicySuppressesSend(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Tokyo")
	nowUTC, _ := time.Parse(time.RFC3339, "2025-09-10T13:00:00Z")
	assert.False(t, shouldSend(tokyoPrefs(), false, nowUTC.In(loc), false))
}

func TestShouldSend_NoActivityBriefPolicyStillSends(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Tokyo")
	nowUTC, _ := time.Parse(time.RFC3339, "2025-09-10T13:00:00Z")
	prefs := tokyoPrefs()
	prefs.NoActivityPolicy = model.NoActivityPolicyBrief
	assert.True(t, shouldSend(prefs, false, nowUTC.In(loc), false))
}

func TestWeekStartUTC_MondayIsUnchanged(t *testing.T) {
	monday := time.Date(2025, 9, 8, 15, 30, 0, 0, time.UTC)
	got := weekStartUTC(monday)
	assert.Equal(t, time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC), got)
}

func TestWeekStartUTC_SundayRollsBackToPrecedingMonday(t *testing.T) {
	sunday := time.Date(2025, 9, 14, 3, 0, 0, 0, time.UTC)
	got := weekStartUTC(sunday)
	assert.Equal(t, time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC), got)
}

func TestDigestSubject_MentionsCountWhenActive(t *testing.T) {
	p := Payload{ActivitySummary: ActivitySummary{InsightsCount: 4}}
	assert.Contains(t, digestSubject(p), "4")
}

func TestDigestSubject_GenericWhenEmpty(t *testing.T) {
	assert.Equal(t, "Your weekly digest", digestSubject(Payload{}))
}
