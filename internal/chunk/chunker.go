// Package chunk implements C5: a recursive character splitter that turns a
// preprocessed insight body into ordered, overlapping retrieval units.
package chunk

import (
	"strings"

	"github.com/xxxsen/quill/internal/model"
	"github.com/xxxsen/quill/internal/pkg/textutil"
)

const (
	targetSize = 1200
	overlap    = 200
	hardCapMul = 1.25
)

// separators are tried in order, each level recursing into the next when a
// split still produces an over-size piece (spec §4.5).
var separators = []string{"\n\n", "\n", ". ", "; ", ", ", " ", ""}

// Chunk is one ordered retrieval unit, matching InsightChunk's chunk-level
// fields before persistence and embedding.
type Chunk struct {
	ChunkIndex      int
	ChunkText       string
	ChunkSize       int
	EstimatedTokens int
}

type Chunker struct{}

func New() *Chunker {
	return &Chunker{}
}

// Split runs the recursive splitter and assigns final chunk indexes.
func (c *Chunker) Split(text string) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	pieces := splitRecursive(text, separators)
	pieces = mergeWithOverlap(pieces)

	out := make([]Chunk, 0, len(pieces))
	for i, p := range pieces {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, Chunk{
			ChunkIndex:      i,
			ChunkText:       p,
			ChunkSize:       len(p),
			EstimatedTokens: textutil.EstimateTokens(p),
		})
	}
	return out
}

// ToModel adapts Split's output to persistence rows sharing one insight's
// chunk_method/chunk_overlap, per InsightChunk's invariant (spec §3).
func ToModel(chunks []Chunk, insightID string) []model.InsightChunk {
	rows := make([]model.InsightChunk, 0, len(chunks))
	for _, c := range chunks {
		rows = append(rows, model.InsightChunk{
			InsightID:       insightID,
			ChunkIndex:      c.ChunkIndex,
			ChunkText:       c.ChunkText,
			ChunkSize:       c.ChunkSize,
			EstimatedTokens: c.EstimatedTokens,
			ChunkMethod:     model.ChunkMethodRecursive,
			ChunkOverlap:    overlap,
		})
	}
	return rows
}

// splitRecursive mirrors the original's _custom_recursive_split: try the
// first separator, merge pieces up to targetSize, recurse into the next
// separator for any piece still too large.
func splitRecursive(text string, seps []string) []string {
	if len([]rune(text)) <= targetSize {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	if len(seps) == 0 {
		return splitHardCap(text)
	}

	sep := seps[0]
	if sep == "" {
		return splitHardCap(text)
	}

	parts := strings.Split(text, sep)
	if len(parts) <= 1 {
		return splitRecursive(text, seps[1:])
	}

	var merged []string
	var current strings.Builder
	for i, part := range parts {
		candidate := part
		if current.Len() > 0 {
			candidate = current.String() + sep + part
		}
		if len([]rune(candidate)) <= targetSize {
			current.Reset()
			current.WriteString(candidate)
		} else {
			if current.Len() > 0 {
				merged = append(merged, current.String())
			}
			current.Reset()
			current.WriteString(part)
		}
		if i == len(parts)-1 && current.Len() > 0 {
			merged = append(merged, current.String())
		}
	}

	var final []string
	for _, chunk := range merged {
		if isOversize(chunk) {
			final = append(final, splitRecursive(chunk, seps[1:])...)
		} else {
			final = append(final, chunk)
		}
	}
	return final
}

func isOversize(s string) bool {
	return float64(len([]rune(s))) > targetSize*hardCapMul
}

// splitHardCap is the terminal fallback: no separator applies, so cut at
// the hard cap boundary mid-token (spec §4.5 "split mid-token").
func splitHardCap(text string) []string {
	runes := []rune(text)
	limit := int(targetSize * hardCapMul)
	var out []string
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

// mergeWithOverlap prepends the tail of each preceding chunk to the next,
// implementing the 200-char overlap window (spec §4.5) without re-splitting
// already-sized pieces.
func mergeWithOverlap(pieces []string) []string {
	if len(pieces) <= 1 {
		return pieces
	}
	out := make([]string, len(pieces))
	out[0] = pieces[0]
	for i := 1; i < len(pieces); i++ {
		prev := []rune(strings.TrimSpace(out[i-1]))
		tailLen := overlap
		if tailLen > len(prev) {
			tailLen = len(prev)
		}
		tail := string(prev[len(prev)-tailLen:])
		out[i] = tail + pieces[i]
	}
	return out
}
