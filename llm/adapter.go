package llm

import (
	"context"
	"regexp"
)

// Adapter translates normalized requests into one vendor's API.
type Adapter interface {
	// Invoke sends the conversation and returns the first completion. Errors
	// worth retrying are wrapped with Transient.
	Invoke(ctx context.Context, messages []Message, opts CallOptions) (*Result, error)

	// ParseError turns a failure from Invoke into a human-readable message.
	// It must not fail; the raw error text is the last fallback.
	ParseError(err error) string
}

// AdapterConfig is handed to an adapter constructor.
type AdapterConfig struct {
	Model    string
	Provider ProviderID
	APIKey   string

	// Options holds free-form vendor options such as base_url, max_tokens,
	// site_name or site_url.
	Options map[string]any
}

// StringOption reads a string option, returning fallback when absent.
func (c AdapterConfig) StringOption(key, fallback string) string {
	if v, ok := c.Options[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// AdapterSpec describes how to build one adapter.
type AdapterSpec struct {
	// ID is the enablement identifier.
	ID ProviderID

	// EnvKey names the environment variable holding the API key. It only
	// appears in error messages; keys are passed in explicitly.
	EnvKey string

	// Dependency is the Go package the adapter is built on.
	Dependency string

	// Available reports whether Dependency can be used at runtime. Nil
	// means always available.
	Available func() error

	// New constructs the adapter.
	New func(cfg AdapterConfig) (Adapter, error)
}

func (s AdapterSpec) valid() bool {
	return s.ID != "" && s.New != nil
}

// Route maps a model pattern to an adapter.
type Route struct {
	Pattern *regexp.Regexp
	Spec    AdapterSpec
}

// Routes is an ordered route table. The first matching pattern wins.
type Routes []Route

// Match returns the adapter registered for model.
func (r Routes) Match(model string) (AdapterSpec, bool) {
	for _, route := range r {
		if route.Pattern.MatchString(model) {
			return route.Spec, true
		}
	}
	return AdapterSpec{}, false
}

// Add appends a route, compiling pattern.
func (r Routes) Add(pattern string, spec AdapterSpec) Routes {
	return append(r, Route{Pattern: regexp.MustCompile(pattern), Spec: spec})
}
