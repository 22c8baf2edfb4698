package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/quill/internal/model"
)

func TestParseWebhookBody_SingleObject(t *testing.T) {
	body := []byte(`{"event":"delivered","email":"a@b.com","message-id":"m1","date":"2025-09-10 12:00:00"}`)
	events, err := parseWebhookBody(body)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "delivered", events[0].Event)
	assert.Equal(t, "a@b.com", events[0].Email)
}

func TestParseWebhookBody_Array(t *testing.T) {
	body := []byte(`[{"event":"delivered","email":"a@b.com"},{"event":"hard_bounce","email":"c@d.com"}]`)
	events, err := parseWebhookBody(body)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "hard_bounce", events[1].Event)
}

func TestParseWebhookBody_InvalidJSONErrors(t *testing.T) {
	_, err := parseWebhookBody([]byte(`not json`))
	assert.Error(t, err)
}

func TestClassifyEvent_DeliveredDoesNotSuppress(t *testing.T) {
	eventType, suppress, ok := classifyEvent("delivered")
	require.True(t, ok)
	assert.Equal(t, model.EmailEventDelivered, eventType)
	assert.False(t, suppress)
}

func TestClassifyEvent_BounceVariantsSuppress(t *testing.T) {
	for _, name := range []string{"hard_bounce", "blocked", "invalid_email"} {
		eventType, suppress, ok := classifyEvent(name)
		require.True(t, ok, name)
		assert.Equal(t, model.EmailEventBounced, eventType)
		assert.True(t, suppress, name)
	}
}

func TestClassifyEvent_SpamMapsToComplaint(t *testing.T) {
	eventType, suppress, ok := classifyEvent("spam")
	require.True(t, ok)
	assert.Equal(t, model.EmailEventComplaint, eventType)
	assert.True(t, suppress)
}

func TestClassifyEvent_UnsubscribeSuppresses(t *testing.T) {
	eventType, suppress, ok := classifyEvent("unsubscribe")
	require.True(t, ok)
	assert.Equal(t, model.EmailEventUnsubscribed, eventType)
	assert.True(t, suppress)
}

func TestClassifyEvent_UnknownEventIgnored(t *testing.T) {
	_, _, ok := classifyEvent("opened")
	assert.False(t, ok)
}
