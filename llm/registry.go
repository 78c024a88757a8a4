package llm

import (
	"fmt"
	"sync"
)

// modulePath prefixes the adapter packages shipped with this module.
const modulePath = "github.com/rickchristie/regent/llm/"

// defaultRoutes is the built-in model routing table, in match order.
var defaultRoutes = []struct {
	pattern string
	id      ProviderID
	envKey  string
}{
	{`^gpt-|^text-davinci-|^openai`, ProviderOpenAI, "OPENAI_API_KEY"},
	{`^claude-|^anthropic`, ProviderAnthropic, "ANTHROPIC_API_KEY"},
	{`^gemini`, ProviderGemini, "GEMINI_API_KEY"},
	{`^openrouter`, ProviderOpenRouter, "OPENROUTER_API_KEY"},
}

var (
	registryMu sync.RWMutex
	registry   = make(map[ProviderID]AdapterSpec)
)

// RegisterAdapter makes an adapter available to the default route table.
// Adapter packages call it from init, so importing an adapter package is
// what installs it.
func RegisterAdapter(spec AdapterSpec) {
	if !spec.valid() {
		panic(ErrInvalidAdapter)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[spec.ID] = spec
}

// RegisteredAdapter returns the spec registered under id.
func RegisteredAdapter(id ProviderID) (AdapterSpec, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	spec, ok := registry[id]
	return spec, ok
}

// DefaultRoutes returns the built-in route table. Providers whose adapter
// package was not imported resolve to a spec that reports the missing
// dependency.
func DefaultRoutes() Routes {
	var routes Routes
	for _, r := range defaultRoutes {
		spec, ok := RegisteredAdapter(r.id)
		if !ok {
			spec = unlinkedSpec(r.id, r.envKey)
		}
		routes = routes.Add(r.pattern, spec)
	}
	return routes
}

func unlinkedSpec(id ProviderID, envKey string) AdapterSpec {
	dependency := modulePath + string(id)
	return AdapterSpec{
		ID:         id,
		EnvKey:     envKey,
		Dependency: dependency,
		Available: func() error {
			return fmt.Errorf("package %s is not linked", dependency)
		},
		New: func(AdapterConfig) (Adapter, error) {
			return nil, fmt.Errorf("package %s is not linked", dependency)
		},
	}
}
