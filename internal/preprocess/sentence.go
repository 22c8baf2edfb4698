package preprocess

import (
	"regexp"
	"strings"
	"unicode"
)

// splitSentences implements spec §4.3 step 1: language-detected sentence
// splitting, CJK using a character-aware splitter, Latin languages using
// punctuation plus an abbreviation table. No pack dependency performs
// sentence segmentation; grounded on the algorithm description only.
func splitSentences(text string) []string {
	if isCJKDominant(text) {
		return splitCJK(text)
	}
	return splitLatin(text)
}

func isCJKDominant(text string) bool {
	var cjk, latin int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r), unicode.Is(unicode.Hiragana, r), unicode.Is(unicode.Katakana, r), unicode.Is(unicode.Hangul, r):
			cjk++
		case unicode.IsLetter(r):
			latin++
		}
	}
	return cjk > latin
}

var cjkTerminators = map[rune]bool{
	'。': true, '！': true, '？': true, '；': true, '\n': true,
}

func splitCJK(text string) []string {
	var out []string
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		if cjkTerminators[r] {
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// abbreviations that do not end a sentence even when followed by a space
// and a capital letter (spec §4.3 "abbreviation table").
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"sr": true, "jr": true, "vs": true, "etc": true, "e.g": true,
	"i.e": true, "fig": true, "no": true, "st": true, "inc": true,
	"ltd": true, "u.s": true, "u.k": true,
}

var latinSentenceSplit = regexp.MustCompile(`([.!?])(\s+)`)

func splitLatin(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	indices := latinSentenceSplit.FindAllStringIndex(text, -1)
	if len(indices) == 0 {
		return []string{text}
	}
	var out []string
	start := 0
	for _, idx := range indices {
		endPunct := idx[1]
		candidate := text[start:endPunct]
		wordBeforePunct := lastWord(text[start:idx[0]])
		if abbreviations[strings.ToLower(strings.TrimSuffix(wordBeforePunct, "."))] {
			continue // don't split here; keep accumulating
		}
		out = append(out, strings.TrimSpace(candidate))
		start = idx[1]
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

func lastWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
