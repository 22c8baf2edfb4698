// Package preprocess implements C3: reduce extracted body text to its most
// information-bearing portion before the LLM summary call, bounding input
// tokens without losing semantics (spec §4.3).
package preprocess

import (
	"strings"

	"github.com/xxxsen/quill/internal/pkg/textutil"
)

type Mode string

const (
	ModeStrict   Mode = "strict"
	ModeBalanced Mode = "balanced"
	ModePreserve Mode = "preserve"
)

type Options struct {
	Algorithm      Algorithm
	TopNSentences  int
	TopKParagraphs int
	WindowSize     int
	Mode           Mode
	PreserveRatio  float64
}

func DefaultOptions() Options {
	return Options{
		Algorithm:      AlgorithmPageRank,
		TopNSentences:  8,
		TopKParagraphs: 4,
		WindowSize:     1,
		Mode:           ModeBalanced,
		PreserveRatio:  0.3,
	}
}

// Result is C3's output.
type Result struct {
	ProcessedText    string
	Method           Mode
	Algorithm        Algorithm
	CompressionRatio float64
	ParagraphCount   int
}

type Preprocessor struct{}

func New() *Preprocessor {
	return &Preprocessor{}
}

func (p *Preprocessor) Process(body string, opts Options) Result {
	paragraphs := splitParagraphs(body)
	if len(paragraphs) == 0 {
		return Result{ProcessedText: "", Method: opts.Mode, Algorithm: opts.Algorithm, CompressionRatio: 1, ParagraphCount: 0}
	}

	sentences := splitSentences(body)
	keySentences := rankSentences(sentences, opts.Algorithm, opts.TopNSentences)
	scores := scoreParagraphs(paragraphs, keySentences)

	var processed string
	switch opts.Mode {
	case ModeStrict:
		selected := topKIndices(scores, opts.TopKParagraphs)
		processed = joinSelected(paragraphs, selected)
	case ModePreserve:
		ratio := opts.PreserveRatio
		if ratio <= 0 {
			ratio = 0.3
		}
		if ratio > 1 {
			ratio = 1
		}
		keep := int(float64(len(paragraphs)) * ratio)
		if keep < 1 {
			keep = 1
		}
		selected := topKIndices(scores, keep)
		ordered := make([]int, 0, len(selected))
		selSet := toSet(selected)
		for i := range paragraphs {
			if selSet[i] {
				ordered = append(ordered, i)
			}
		}
		processed = joinSelected(paragraphs, ordered)
	default: // balanced
		selected := topKIndices(scores, opts.TopKParagraphs)
		windowed := expandWindow(selected, opts.WindowSize, len(paragraphs))
		processed = joinSelected(paragraphs, windowed)
	}

	compression := 1.0
	if len(processed) > 0 {
		compression = float64(len(body)) / float64(len(processed))
	}

	return Result{
		ProcessedText:    processed,
		Method:           opts.Mode,
		Algorithm:        opts.Algorithm,
		CompressionRatio: compression,
		ParagraphCount:   len(paragraphs),
	}
}

func splitParagraphs(body string) []string {
	raw := strings.Split(body, "\n\n")
	var out []string
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeForMatch(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// scoreParagraphs implements spec §4.3 step 3: score = 1 per verbatim key
// sentence contained, + 0.5 per key sentence with word-overlap >= 0.6.
func scoreParagraphs(paragraphs []string, keySentences []rankedSentence) []float64 {
	scores := make([]float64, len(paragraphs))
	for i, para := range paragraphs {
		normPara := normalizeForMatch(para)
		paraWords := wordSet(para)
		var score float64
		for _, ks := range keySentences {
			normKey := normalizeForMatch(ks.Text)
			if normKey != "" && strings.Contains(normPara, normKey) {
				score += 1
				continue
			}
			overlap := textutil.WordOverlapRatio(wordSet(ks.Text), paraWords)
			if overlap >= 0.6 {
				score += 0.5
			}
		}
		scores[i] = score
	}
	return scores
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]{}")
		if f != "" {
			set[f] = struct{}{}
		}
	}
	return set
}

func topKIndices(scores []float64, k int) []int {
	type pair struct {
		idx   int
		score float64
	}
	pairs := make([]pair, len(scores))
	for i, s := range scores {
		pairs[i] = pair{idx: i, score: s}
	}
	// stable selection: higher score first, ties keep original order
	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0 && pairs[j].score > pairs[j-1].score; j-- {
			pairs[j], pairs[j-1] = pairs[j-1], pairs[j]
		}
	}
	if k > len(pairs) {
		k = len(pairs)
	}
	out := make([]int, 0, k)
	for i := 0; i < k; i++ {
		out = append(out, pairs[i].idx)
	}
	return out
}

func expandWindow(selected []int, window, total int) []int {
	set := toSet(selected)
	for _, idx := range selected {
		for w := 1; w <= window; w++ {
			if idx-w >= 0 {
				set[idx-w] = true
			}
			if idx+w < total {
				set[idx+w] = true
			}
		}
	}
	out := make([]int, 0, len(set))
	for i := 0; i < total; i++ {
		if set[i] {
			out = append(out, i)
		}
	}
	return out
}

func toSet(indices []int) map[int]bool {
	set := make(map[int]bool, len(indices))
	for _, i := range indices {
		set[i] = true
	}
	return set
}

func joinSelected(paragraphs []string, indices []int) string {
	parts := make([]string, 0, len(indices))
	for _, i := range indices {
		parts = append(parts, paragraphs[i])
	}
	return strings.Join(parts, "\n\n")
}
