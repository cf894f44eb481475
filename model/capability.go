// Package model resolves semantic capabilities to concrete LLM endpoints.
// Callers ask for "analysis" or "extraction" rather than a model name, and the
// registry answers with an ordered fallback chain.
package model

// Capability is a semantic capability used for model selection.
type Capability string

const (
	// CapabilityGeneration is for free-form text such as summaries and copy.
	CapabilityGeneration Capability = "generation"

	// CapabilityAnalysis is for reasoning over onboarding answers to find gaps.
	CapabilityAnalysis Capability = "analysis"

	// CapabilityExtraction is for structured JSON extraction.
	CapabilityExtraction Capability = "extraction"

	// CapabilityFast is for quick, cheap responses.
	CapabilityFast Capability = "fast"
)

// TaskCapabilities maps API tasks to their default capability.
var TaskCapabilities = map[string]Capability{
	"generate":         CapabilityGeneration,
	"gap-analysis":     CapabilityAnalysis,
	"extract-entities": CapabilityExtraction,
}

// CapabilityForTask returns the default capability for a task, falling back
// to CapabilityGeneration.
func CapabilityForTask(task string) Capability {
	if c, ok := TaskCapabilities[task]; ok {
		return c
	}
	return CapabilityGeneration
}

// IsValid checks if a capability is known.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityGeneration, CapabilityAnalysis, CapabilityExtraction, CapabilityFast:
		return true
	}
	return false
}

func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for
// unknown values.
func ParseCapability(s string) Capability {
	c := Capability(s)
	if c.IsValid() {
		return c
	}
	return ""
}
