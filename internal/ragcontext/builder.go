// Package ragcontext implements C9: turns retrieved chunks into the
// citation-numbered, token-budgeted text block the chat engine folds into
// its prompt.
package ragcontext

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/xxxsen/quill/internal/model"
	"github.com/xxxsen/quill/internal/pkg/textutil"
)

const DefaultBudget = 2000

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Build implements spec §4.9. Chunks are consumed in score order (callers
// pass retriever output, already sorted, but this re-sorts defensively);
// accumulation stops once the running estimated-token total would exceed
// budget, except the very first chunk is always included even if it alone
// exceeds the budget.
func Build(chunks []model.RAGChunk, budget int) model.RAGContext {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if len(chunks) == 0 {
		return model.RAGContext{Chunks: []model.RAGChunk{}}
	}

	sorted := make([]model.RAGChunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	parts := make([]string, 0, len(sorted))
	included := make([]model.RAGChunk, 0, len(sorted))
	totalTokens := 0

	for i, c := range sorted {
		tokens := textutil.EstimateTokens(c.ChunkText)
		if len(included) > 0 && totalTokens+tokens > budget {
			break
		}
		parts = append(parts, formatChunk(i+1, c))
		included = append(included, c)
		totalTokens += tokens
		if totalTokens > budget {
			break
		}
	}

	return model.RAGContext{
		Chunks:             included,
		ContextText:        strings.Join(parts, "\n\n"),
		TotalContextTokens: totalTokens,
		ExtractedKeywords:  extractKeywords(included),
	}
}

func formatChunk(index int, c model.RAGChunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "【%d | %.2f】%s\n", index, c.Score, c.ChunkText)
	fmt.Fprintf(&b, "来源标题: %s\n", c.InsightTitle)
	fmt.Fprintf(&b, "来源链接: %s", c.InsightURL)
	if c.InsightSummary != "" {
		fmt.Fprintf(&b, "\n内容摘要: %s", c.InsightSummary)
	}
	return b.String()
}

// extractKeywords pulls unique domain/title tokens for audit logging, per
// spec §4.9 step 3. Domains come from InsightURL's host; title tokens are
// lowercased word-boundary matches, deduplicated in first-seen order.
func extractKeywords(chunks []model.RAGChunk) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	add := func(w string) {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			return
		}
		if _, ok := seen[w]; ok {
			return
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}

	for _, c := range chunks {
		if u, err := url.Parse(c.InsightURL); err == nil && u.Host != "" {
			add(u.Host)
		}
		for _, w := range wordPattern.FindAllString(c.InsightTitle, -1) {
			add(w)
		}
	}
	return out
}
