package digest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xxxsen/quill/internal/model"
)

func TestDisplayTitle_FallsBackToURLThenUntitled(t *testing.T) {
	assert.Equal(t, "My Title", displayTitle("My Title", "https://x.com"))
	assert.Equal(t, "https://x.com", displayTitle("", "https://x.com"))
	assert.Equal(t, "Untitled", displayTitle("", ""))
}

func TestFirstNonEmpty_SkipsBlankEntries(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "  ", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", "  "))
}

func TestScoreInsights_PrefersSummarizedTaggedRecentOverBare(t *testing.T) {
	now := time.Now().UTC()
	insights := []model.Insight{
		{ID: "bare", Title: "Bare Link", CreatedAt: now.Add(-6 * 24 * time.Hour)},
		{ID: "rich", Title: "Rich Link", URL: "https://x.com", CreatedAt: now},
	}
	summaryByID := map[string]string{"rich": "a solid summary"}
	tagsByInsight := map[string][]string{"rich": {"go"}}

	scored := scoreInsights(insights, summaryByID, tagsByInsight)
	assert.Equal(t, "rich", scored[0].item.InsightID)
	assert.Equal(t, "bare", scored[1].item.InsightID)
}

func TestBuildStacks_OrdersByGroupSizeDescending(t *testing.T) {
	insightsByTag := map[string][]string{
		"go":     {"a", "b", "c"},
		"rust":   {"d"},
		"python": {"e", "f"},
	}
	stacks := buildStacks(insightsByTag)
	assert.Equal(t, "go", stacks[0].Name)
	assert.Equal(t, 3, stacks[0].ItemCount)
	assert.Equal(t, "python", stacks[1].Name)
}

func TestBuildStacks_EmptyWhenNoTags(t *testing.T) {
	assert.Nil(t, buildStacks(map[string][]string{}))
}

func TestBuildTagSummaries_JoinsTitlesForTag(t *testing.T) {
	insightsByTag := map[string][]string{"go": {"1", "2"}}
	titleByID := map[string]string{"1": "First", "2": "Second"}
	summaries := buildTagSummaries(insightsByTag, titleByID)
	assert.Len(t, summaries, 1)
	assert.Equal(t, "go", summaries[0].Name)
	assert.Equal(t, "First, Second", summaries[0].Articles)
}

func TestBuildSuggestions_FlagsManyUntaggedInsights(t *testing.T) {
	insights := make([]model.Insight, 6)
	for i := range insights {
		insights[i] = model.Insight{ID: string(rune('a' + i))}
	}
	suggestions := buildSuggestions(insights, map[string][]string{})
	found := false
	for _, s := range suggestions {
		if s.Type == "organization" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestBuildSuggestions_EncouragesLightActivity(t *testing.T) {
	insights := []model.Insight{{ID: "1"}, {ID: "2"}}
	suggestions := buildSuggestions(insights, map[string][]string{"tag": {"1", "2"}})
	assert.Len(t, suggestions, 1)
	assert.Equal(t, "engagement", suggestions[0].Type)
}
