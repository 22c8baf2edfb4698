package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapabilitiesFor_ReasoningModelRejectsTemperature(t *testing.T) {
	caps := CapabilitiesFor("o3-mini")
	assert.False(t, caps.SupportsTemperature)
	assert.False(t, caps.SupportsTopP)
	assert.False(t, caps.SupportsResponseFmt)
}

func TestCapabilitiesFor_OrdinaryModelSupportsAll(t *testing.T) {
	caps := CapabilitiesFor("gpt-4o-mini")
	assert.True(t, caps.SupportsTemperature)
	assert.True(t, caps.SupportsTopP)
	assert.True(t, caps.SupportsResponseFmt)
}

func TestApplyCapabilities_StripsTemperatureForReasoningModel(t *testing.T) {
	req := ChatRequest{Model: "o1", Temperature: 0.9}
	shaped := ApplyCapabilities(req)
	assert.Equal(t, 0.0, shaped.Temperature)
}
