package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaceholderTitle_UsesHost(t *testing.T) {
	assert.Equal(t, "example.com", placeholderTitle("https://example.com/some/article"))
}

func TestPlaceholderTitle_InvalidURLReturnsInput(t *testing.T) {
	assert.Equal(t, "not a url", placeholderTitle("not a url"))
}

func TestTruncate_ShorterThanMaxUnchanged(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 100))
}

func TestTruncate_LongerThanMaxCutsAtRuneBoundary(t *testing.T) {
	s := "héllo wörld"
	out := truncate(s, 3)
	assert.Equal(t, 3, len([]rune(out)))
}
