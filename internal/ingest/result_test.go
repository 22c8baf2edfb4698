package ingest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResult_OK(t *testing.T) {
	assert.True(t, Ok("value").OK())
	assert.True(t, Degraded("value", DegradationFetchFailed).OK())
	assert.False(t, Failed[string](errors.New("boom")).OK())
}

func TestResult_DegradedCarriesValueAndReason(t *testing.T) {
	r := Degraded(42, DegradationEmbeddingPartial)
	assert.Equal(t, 42, r.Value)
	assert.Equal(t, DegradationEmbeddingPartial, r.Degradation)
	assert.NoError(t, r.Err)
}
