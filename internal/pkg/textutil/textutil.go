// Package textutil holds small text-measurement helpers shared by the
// preprocessor, chunker, and context builder.
package textutil

// EstimateTokens approximates token count for mixed-script content at
// chunk_size / 3.5 characters per token, clamped to [50, 2000] per spec §4.5.
func EstimateTokens(text string) int {
	n := len([]rune(text))
	est := int(float64(n) / 3.5)
	if est < 50 {
		est = 50
	}
	if est > 2000 {
		est = 2000
	}
	return est
}

// WordOverlapRatio returns |A∩B| / |A| over the unique word sets of a and b,
// used by the preprocessor's paragraph scoring (§4.3 step 3).
func WordOverlapRatio(a, bWords map[string]struct{}) float64 {
	if len(a) == 0 {
		return 0
	}
	hit := 0
	for w := range a {
		if _, ok := bWords[w]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(a))
}
