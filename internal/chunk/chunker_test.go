package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	c := New()
	chunks := c.Split("a short paragraph that fits in one chunk easily.")
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
}

func TestSplit_Empty(t *testing.T) {
	c := New()
	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n\n  "))
}

func TestSplit_LongTextProducesOrderedChunksWithOverlap(t *testing.T) {
	para := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 80)
	body := para + "\n\n" + para + "\n\n" + para

	c := New()
	chunks := c.Split(body)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.ChunkIndex)
		assert.Greater(t, ch.ChunkSize, 0)
		assert.GreaterOrEqual(t, ch.EstimatedTokens, 50)
	}

	// every chunk after the first should start with the previous chunk's
	// overlap tail.
	for i := 1; i < len(chunks); i++ {
		prevTail := lastRunes(chunks[i-1].ChunkText, overlap)
		assert.True(t, strings.HasPrefix(chunks[i].ChunkText, prevTail))
	}
}

func TestSplit_NeverExceedsHardCap(t *testing.T) {
	body := strings.Repeat("x", 10000)
	c := New()
	chunks := c.Split(body)
	for _, ch := range chunks {
		assert.LessOrEqual(t, float64(len([]rune(ch.ChunkText))), targetSize*hardCapMul+float64(overlap))
	}
}

func lastRunes(s string, n int) string {
	r := []rune(s)
	if n > len(r) {
		n = len(r)
	}
	return string(r[len(r)-n:])
}
