package email

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/quill/internal/config"
	"github.com/xxxsen/quill/internal/digest"
)

func TestSendDigest_SucceedsOnFirstAttempt(t *testing.T) {
	var gotAPIKey string
	var gotBody brevoSendRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(brevoSendResponse{MessageID: "msg-1"})
	}))
	defer server.Close()

	c := NewBrevoClient(config.EmailConfig{APIKey: "key-123", BaseURL: server.URL, FromEmail: "digest@quill.dev", FromName: "Quill"})

	payload := digest.Payload{ActivitySummary: digest.ActivitySummary{InsightsCount: 3}}
	messageID, err := c.SendDigest(t.Context(), "user@example.com", "Alice", "Your weekly digest - 3 new insights", payload)

	require.NoError(t, err)
	assert.Equal(t, "msg-1", messageID)
	assert.Equal(t, "key-123", gotAPIKey)
	assert.Equal(t, "user@example.com", gotBody.To[0].Email)
	assert.Equal(t, "digest@quill.dev", gotBody.Sender.Email)
	assert.Contains(t, gotBody.Tags, "weekly_digest")
}

func TestSendDigest_RetriesOnTransientErrorThenSucceeds(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("try later"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(brevoSendResponse{MessageID: "msg-2"})
	}))
	defer server.Close()

	c := NewBrevoClient(config.EmailConfig{APIKey: "key", BaseURL: server.URL, FromEmail: "a@b.com"})
	messageID, err := c.SendDigest(t.Context(), "user@example.com", "Bob", "subject", digest.Payload{})

	require.NoError(t, err)
	assert.Equal(t, "msg-2", messageID)
	assert.Equal(t, 2, attempts)
}

func TestSendDigest_PermanentErrorDoesNotRetry(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	}))
	defer server.Close()

	c := NewBrevoClient(config.EmailConfig{APIKey: "key", BaseURL: server.URL, FromEmail: "a@b.com"})
	_, err := c.SendDigest(t.Context(), "user@example.com", "Bob", "subject", digest.Payload{})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestNewBrevoClient_DefaultsBaseURLWhenBlank(t *testing.T) {
	c := NewBrevoClient(config.EmailConfig{APIKey: "key"})
	assert.Equal(t, defaultBrevoBaseURL, c.baseURL)
}

func TestFallbackHTML_MentionsRecipientAndSubject(t *testing.T) {
	html := fallbackHTML("Your weekly digest", "Alice")
	assert.Contains(t, html, "Alice")
	assert.Contains(t, html, "Your weekly digest")
}
