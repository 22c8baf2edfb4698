package ragcontext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xxxsen/quill/internal/model"
)

func TestBuild_EmptyChunksReturnsEmptyContext(t *testing.T) {
	ctx := Build(nil, DefaultBudget)
	assert.Equal(t, "", ctx.ContextText)
	assert.Equal(t, 0, ctx.TotalContextTokens)
	assert.Empty(t, ctx.Chunks)
}

func TestBuild_IncludesAtLeastOneChunkEvenOverBudget(t *testing.T) {
	huge := strings.Repeat("a", 20000)
	ctx := Build([]model.RAGChunk{{ChunkText: huge, Score: 0.9, InsightTitle: "T", InsightURL: "https://example.com/a"}}, 10)
	assert.Len(t, ctx.Chunks, 1)
	assert.Contains(t, ctx.ContextText, "【1 | 0.90】")
}

func TestBuild_SortsByScoreDescending(t *testing.T) {
	chunks := []model.RAGChunk{
		{ChunkText: "low", Score: 0.3, InsightTitle: "L", InsightURL: "https://a.com"},
		{ChunkText: "high", Score: 0.9, InsightTitle: "H", InsightURL: "https://b.com"},
	}
	ctx := Build(chunks, DefaultBudget)
	assert.Equal(t, "high", ctx.Chunks[0].ChunkText)
	assert.Equal(t, "low", ctx.Chunks[1].ChunkText)
}

func TestBuild_StopsAccumulatingPastBudget(t *testing.T) {
	chunks := []model.RAGChunk{
		{ChunkText: strings.Repeat("x", 200), Score: 0.9, InsightTitle: "A", InsightURL: "https://a.com"},
		{ChunkText: strings.Repeat("y", 200), Score: 0.8, InsightTitle: "B", InsightURL: "https://b.com"},
	}
	ctx := Build(chunks, 60)
	assert.Len(t, ctx.Chunks, 1)
}

func TestBuild_OmitsSummaryLineWhenEmpty(t *testing.T) {
	ctx := Build([]model.RAGChunk{{ChunkText: "text", Score: 0.5, InsightTitle: "T", InsightURL: "https://a.com"}}, DefaultBudget)
	assert.NotContains(t, ctx.ContextText, "内容摘要")
}

func TestBuild_IncludesSummaryLineWhenPresent(t *testing.T) {
	ctx := Build([]model.RAGChunk{{ChunkText: "text", Score: 0.5, InsightTitle: "T", InsightURL: "https://a.com", InsightSummary: "sum"}}, DefaultBudget)
	assert.Contains(t, ctx.ContextText, "内容摘要: sum")
}

func TestBuild_ExtractedKeywordsIncludeHostAndTitleWords(t *testing.T) {
	ctx := Build([]model.RAGChunk{{ChunkText: "text", Score: 0.5, InsightTitle: "Go Concurrency", InsightURL: "https://blog.golang.org/pipelines"}}, DefaultBudget)
	assert.Contains(t, ctx.ExtractedKeywords, "blog.golang.org")
	assert.Contains(t, ctx.ExtractedKeywords, "go")
	assert.Contains(t, ctx.ExtractedKeywords, "concurrency")
}

func TestBuild_ExtractedKeywordsDeduplicated(t *testing.T) {
	chunks := []model.RAGChunk{
		{ChunkText: "a", Score: 0.9, InsightTitle: "Go", InsightURL: "https://example.com/1"},
		{ChunkText: "b", Score: 0.8, InsightTitle: "Go", InsightURL: "https://example.com/2"},
	}
	ctx := Build(chunks, DefaultBudget)
	count := 0
	for _, k := range ctx.ExtractedKeywords {
		if k == "go" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
