package ai

import (
	"regexp"
	"strings"
)

// ModelCapabilities tells a caller building a completion request which
// parameters a given model accepts. Reasoning-tier models (o1/o3/o4-mini
// style) reject temperature/top_p and response_format the way ordinary chat
// models accept them; the original memory_service.py special-cased this by
// pattern-matching the model name before sending a payload.
type ModelCapabilities struct {
	SupportsTemperature bool
	SupportsTopP        bool
	SupportsResponseFmt bool
}

var reasoningModelPattern = regexp.MustCompile(`(?i)^(o1|o3|o4-mini)`)

// CapabilitiesFor returns the capability set for a model name.
func CapabilitiesFor(model string) ModelCapabilities {
	if reasoningModelPattern.MatchString(strings.TrimSpace(model)) {
		return ModelCapabilities{SupportsTemperature: false, SupportsTopP: false, SupportsResponseFmt: false}
	}
	return ModelCapabilities{SupportsTemperature: true, SupportsTopP: true, SupportsResponseFmt: true}
}

// ApplyCapabilities strips parameters a model's capability set rejects
// before the request is marshaled, per spec SPEC_FULL.md §4's C4 supplement.
func ApplyCapabilities(req ChatRequest) ChatRequest {
	caps := CapabilitiesFor(req.Model)
	if !caps.SupportsTemperature {
		req.Temperature = 0
	}
	return req
}
