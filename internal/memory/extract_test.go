package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/quill/internal/model"
)

func TestParseExtraction_PlainJSON(t *testing.T) {
	items, err := parseExtraction(`{"memories":[{"type":"fact","content":"lives in Tokyo","importance":0.7}]}`)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "fact", items[0].Type)
	assert.Equal(t, "lives in Tokyo", items[0].Content)
	assert.Equal(t, 0.7, items[0].Importance)
}

func TestParseExtraction_StripsMarkdownFence(t *testing.T) {
	raw := "```json\n{\"memories\":[]}\n```"
	items, err := parseExtraction(raw)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestParseExtraction_InvalidJSONReturnsError(t *testing.T) {
	_, err := parseExtraction("not json at all")
	assert.Error(t, err)
}

func TestFormatConversation_JoinsRoleAndContent(t *testing.T) {
	turns := []model.ChatMessage{
		{Role: model.ChatRoleUser, Content: "hi"},
		{Role: model.ChatRoleAssistant, Content: "hello"},
	}
	got := formatConversation(turns)
	assert.Contains(t, got, "user: hi")
	assert.Contains(t, got, "assistant: hello")
}
