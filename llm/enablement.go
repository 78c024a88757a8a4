package llm

import (
	"slices"
	"strings"
)

// ProviderID is the enablement identifier of an adapter.
type ProviderID string

const (
	ProviderOpenAI     ProviderID = "openai"
	ProviderAnthropic  ProviderID = "anthropic"
	ProviderGemini     ProviderID = "gemini"
	ProviderOpenRouter ProviderID = "openrouter"
)

// AvailableAdapters is the allow-list of adapters known to this module.
var AvailableAdapters = []ProviderID{
	ProviderOpenAI,
	ProviderAnthropic,
	ProviderGemini,
	ProviderOpenRouter,
}

// DefaultAdapters are enabled when no override is configured. OpenRouter
// requires explicit opt-in.
var DefaultAdapters = []ProviderID{
	ProviderOpenAI,
	ProviderAnthropic,
	ProviderGemini,
}

// Enablement is the set of adapters that may be constructed.
type Enablement struct {
	enabled []ProviderID
}

// ParseEnablement builds an Enablement from an override list.
//
// A nil override yields DefaultAdapters. Otherwise the value is split on
// commas, each entry trimmed and lowercased, and the result intersected with
// AvailableAdapters. Unknown entries are dropped.
func ParseEnablement(override *string) Enablement {
	if override == nil {
		return Enablement{enabled: slices.Clone(DefaultAdapters)}
	}

	var enabled []ProviderID
	for _, part := range strings.Split(*override, ",") {
		id := ProviderID(strings.ToLower(strings.TrimSpace(part)))
		if !slices.Contains(AvailableAdapters, id) || slices.Contains(enabled, id) {
			continue
		}
		enabled = append(enabled, id)
	}
	return Enablement{enabled: enabled}
}

// EnableAll returns an Enablement covering every available adapter.
func EnableAll() Enablement {
	return Enablement{enabled: slices.Clone(AvailableAdapters)}
}

// Adapters returns the enabled identifiers.
func (e Enablement) Adapters() []ProviderID {
	return slices.Clone(e.enabled)
}

// Enabled reports whether id may be constructed.
func (e Enablement) Enabled(id ProviderID) bool {
	return slices.Contains(e.enabled, id)
}
