package preprocess

import (
	"math"
	"sort"
	"strings"
)

// Algorithm selects the extractive ranking algorithm; all three share the
// same PageRank-style power iteration over a sentence similarity graph.
// LexRank uses damping 0.90 and drops edges below 0.1 similarity; PageRank
// and TextRank run with identical parameters (damping 0.85, all edges kept).
type Algorithm string

const (
	AlgorithmPageRank Algorithm = "pagerank"
	AlgorithmTextRank Algorithm = "textrank"
	AlgorithmLexRank  Algorithm = "lexrank"
)

type rankedSentence struct {
	Index int
	Text  string
	Score float64
}

// rankSentences scores each sentence by its centrality in a word-overlap
// similarity graph, using a fixed 30 PageRank power iterations. No
// pack dependency implements extractive summarization; grounded on the
// algorithm description in spec §4.3.
func rankSentences(sentences []string, algo Algorithm, topN int) []rankedSentence {
	n := len(sentences)
	if n == 0 {
		return nil
	}
	bags := make([]map[string]int, n)
	for i, s := range sentences {
		bags[i] = wordBag(s)
	}

	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
	}
	damping := 0.85
	if algo == AlgorithmLexRank {
		damping = 0.90
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s := similarity(bags[i], bags[j], algo)
			sim[i][j] = s
			sim[j][i] = s
		}
	}

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 1.0 / float64(n)
	}

	rowSums := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < n; j++ {
			sum += sim[i][j]
		}
		rowSums[i] = sum
	}

	const iterations = 30
	for it := 0; it < iterations; it++ {
		next := make([]float64, n)
		for i := 0; i < n; i++ {
			var acc float64
			for j := 0; j < n; j++ {
				if i == j || rowSums[j] == 0 {
					continue
				}
				acc += (sim[j][i] / rowSums[j]) * scores[j]
			}
			next[i] = (1-damping)/float64(n) + damping*acc
		}
		scores = next
	}

	ranked := make([]rankedSentence, n)
	for i, s := range sentences {
		ranked[i] = rankedSentence{Index: i, Text: s, Score: scores[i]}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if topN > 0 && topN < len(ranked) {
		ranked = ranked[:topN]
	}
	return ranked
}

func wordBag(s string) map[string]int {
	words := strings.Fields(strings.ToLower(s))
	bag := make(map[string]int, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'()[]{}，。！？；：“”‘’（）")
		if w == "" {
			continue
		}
		bag[w]++
	}
	return bag
}

func similarity(a, b map[string]int, algo Algorithm) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for w, ca := range a {
		if cb, ok := b[w]; ok {
			dot += float64(ca) * float64(cb)
		}
		normA += float64(ca) * float64(ca)
	}
	for _, cb := range b {
		normB += float64(cb) * float64(cb)
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if algo == AlgorithmLexRank {
		// LexRank conventionally thresholds weak edges away.
		if cos < 0.1 {
			return 0
		}
	}
	return cos
}
