package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xxxsen/quill/internal/model"
)

func TestSimilarity_IdenticalTextScoresOne(t *testing.T) {
	assert.Equal(t, 1.0, similarity("prefers dark mode", "prefers dark mode"))
}

func TestSimilarity_UnrelatedTextScoresLow(t *testing.T) {
	assert.Less(t, similarity("prefers dark mode", "lives in Tokyo"), 0.3)
}

func TestSimilarity_CaseInsensitive(t *testing.T) {
	assert.Equal(t, similarity("Prefers Go", "prefers go"), similarity("prefers go", "prefers go"))
}

func TestMergeContent_UsesLongerAsBase(t *testing.T) {
	got := mergeContent("likes go", "user likes the go programming language")
	assert.Contains(t, got, "user likes the go programming language")
}

func TestMergeContent_AppendsUniqueDeltaWords(t *testing.T) {
	got := mergeContent("prefers dark mode in the editor", "prefers dark mode always")
	assert.Contains(t, got, "always")
}

func TestMergeContent_NoDeltaReturnsBaseUnchanged(t *testing.T) {
	got := mergeContent("prefers dark mode", "dark mode")
	assert.Equal(t, "prefers dark mode", got)
}

func TestConsolidateBySimilarity_MergesNearDuplicates(t *testing.T) {
	now := time.Now().UTC()
	mems := []model.ChatMemory{
		{Content: "user prefers dark mode", ImportanceScore: 0.6, UpdatedAt: now},
		{Content: "user prefers dark mode strongly", ImportanceScore: 0.8, UpdatedAt: now.Add(time.Minute)},
		{Content: "user lives in Tokyo", ImportanceScore: 0.4, UpdatedAt: now},
	}
	entries := consolidateBySimilarity(mems, 0.8, 50)
	assert.Len(t, entries, 2)
}

func TestConsolidateByImportance_KeepsTopN(t *testing.T) {
	mems := []model.ChatMemory{
		{Content: "a", ImportanceScore: 0.1},
		{Content: "b", ImportanceScore: 0.9},
		{Content: "c", ImportanceScore: 0.5},
	}
	entries := consolidateByImportance(mems, 2)
	assert.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Content)
	assert.Equal(t, "c", entries[1].Content)
}

func TestConsolidateByTime_KeepsMostRecentN(t *testing.T) {
	now := time.Now().UTC()
	mems := []model.ChatMemory{
		{Content: "old", CreatedAt: now.Add(-time.Hour)},
		{Content: "newest", CreatedAt: now},
		{Content: "middle", CreatedAt: now.Add(-time.Minute)},
	}
	entries := consolidateByTime(mems, 2)
	assert.Len(t, entries, 2)
	assert.Equal(t, "newest", entries[0].Content)
	assert.Equal(t, "middle", entries[1].Content)
}
