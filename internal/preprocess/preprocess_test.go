package preprocess

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBody() string {
	paras := []string{
		"The city council approved a new transit budget on Tuesday. The plan adds three bus routes downtown.",
		"Weather this week will be mild with occasional rain. Bring an umbrella if you commute by foot.",
		"The transit budget also funds bike lane expansion. Council members called it a historic investment in transit.",
		"Local restaurants reported a slow month. Many blamed rising ingredient costs.",
	}
	return strings.Join(paras, "\n\n")
}

func TestProcess_StrictKeepsFewerParagraphsThanBalanced(t *testing.T) {
	p := New()
	body := sampleBody()

	strict := p.Process(body, Options{Algorithm: AlgorithmPageRank, TopNSentences: 4, TopKParagraphs: 1, WindowSize: 1, Mode: ModeStrict})
	balanced := p.Process(body, Options{Algorithm: AlgorithmPageRank, TopNSentences: 4, TopKParagraphs: 1, WindowSize: 1, Mode: ModeBalanced})

	assert.Equal(t, ModeStrict, strict.Method)
	assert.Equal(t, ModeBalanced, balanced.Method)
	assert.LessOrEqual(t, len(strict.ProcessedText), len(balanced.ProcessedText))
	assert.Equal(t, 4, strict.ParagraphCount)
}

func TestProcess_PreserveRetainsRatioAndOriginalOrder(t *testing.T) {
	p := New()
	body := sampleBody()
	result := p.Process(body, Options{Algorithm: AlgorithmPageRank, TopNSentences: 4, TopKParagraphs: 2, WindowSize: 0, Mode: ModePreserve, PreserveRatio: 0.5})

	paragraphsKept := strings.Split(result.ProcessedText, "\n\n")
	require.LessOrEqual(t, len(paragraphsKept), 4)
	require.GreaterOrEqual(t, len(paragraphsKept), 1)

	// original order preserved: "city council" paragraph must precede
	// "restaurants" paragraph if both are kept.
	councilIdx := strings.Index(result.ProcessedText, "city council")
	restaurantIdx := strings.Index(result.ProcessedText, "restaurants")
	if councilIdx >= 0 && restaurantIdx >= 0 {
		assert.Less(t, councilIdx, restaurantIdx)
	}
}

func TestProcess_EmptyBody(t *testing.T) {
	p := New()
	result := p.Process("", DefaultOptions())
	assert.Equal(t, 0, result.ParagraphCount)
	assert.Equal(t, "", result.ProcessedText)
}

func TestSplitSentences_LatinAbbreviationNotSplit(t *testing.T) {
	sentences := splitSentences("Dr. Smith arrived early. He left late.")
	require.Len(t, sentences, 2)
	assert.Contains(t, sentences[0], "Dr. Smith arrived early.")
}

func TestSplitSentences_CJK(t *testing.T) {
	sentences := splitSentences("今天天气很好。我们去公园散步了！")
	require.Len(t, sentences, 2)
}

func TestRankSentences_TopNRespected(t *testing.T) {
	sentences := splitSentences(sampleBody())
	ranked := rankSentences(sentences, AlgorithmPageRank, 2)
	assert.Len(t, ranked, 2)
	assert.GreaterOrEqual(t, ranked[0].Score, ranked[1].Score)
}
