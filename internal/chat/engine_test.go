package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xxxsen/quill/internal/ai"
	"github.com/xxxsen/quill/internal/model"
	appErr "github.com/xxxsen/quill/internal/pkg/errors"
)

func TestDeriveTitle_KeepsExistingTitle(t *testing.T) {
	assert.Equal(t, "existing", deriveTitle("existing", "a brand new message"))
}

func TestDeriveTitle_TruncatesFirstMessageTo40Runes(t *testing.T) {
	msg := "this is a very long first message that definitely exceeds forty characters"
	got := deriveTitle("", msg)
	assert.Len(t, []rune(got), 40)
}

func TestDeriveTitle_ShortMessageUnchanged(t *testing.T) {
	assert.Equal(t, "hi there", deriveTitle("", "hi there"))
}

func TestSortByImportanceDesc_OrdersDescending(t *testing.T) {
	mems := []model.ChatMemory{
		{Content: "low", ImportanceScore: 0.2},
		{Content: "high", ImportanceScore: 0.9},
		{Content: "mid", ImportanceScore: 0.5},
	}
	sortByImportanceDesc(mems)
	assert.Equal(t, "high", mems[0].Content)
	assert.Equal(t, "mid", mems[1].Content)
	assert.Equal(t, "low", mems[2].Content)
}

func TestRenderSources_EmptyReturnsNil(t *testing.T) {
	assert.Nil(t, renderSources(nil))
}

func TestRenderSources_MapsIndexAndScore(t *testing.T) {
	chunks := []model.RAGChunk{
		{ChunkID: "c1", InsightID: "i1", Score: 0.8, InsightTitle: "T1", InsightURL: "https://a.com"},
		{ChunkID: "c2", InsightID: "i2", Score: 0.5, InsightTitle: "T2", InsightURL: "https://b.com"},
	}
	sources := renderSources(chunks)
	assert.Equal(t, 1, sources[0].Index)
	assert.Equal(t, 2, sources[1].Index)
	assert.Equal(t, "c1", sources[0].ID)
}

func TestErrorEvent_MapsAIErrorKindToCode(t *testing.T) {
	ev := errorEvent(&ai.Error{Kind: ai.KindRateLimited, StatusCode: 429, Message: "slow down"})
	assert.Equal(t, "rate_limited", ev.Code)
	assert.Equal(t, EventError, ev.Type)
}

func TestErrorEvent_MapsAppErrors(t *testing.T) {
	assert.Equal(t, "not_found", errorEvent(appErr.ErrNotFound).Code)
	assert.Equal(t, "rate_limited", errorEvent(appErr.ErrRateLimited).Code)
	assert.Equal(t, "internal", errorEvent(appErr.ErrInternal).Code)
}
