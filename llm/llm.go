package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"time"
)

// ErrMissingDependency is returned after the fatal handler when an adapter's
// runtime dependency is unavailable and the handler did not exit.
var ErrMissingDependency = errors.New("adapter dependency unavailable")

// FatalHandler reports a missing runtime dependency. The default logs the
// message and exits the process.
type FatalHandler func(msg string)

func exitFatal(msg string) {
	slog.Error(msg)
	os.Exit(1)
}

// LLM is the provider-independent facade. It resolves the adapter for a
// model, retries transient failures and normalizes errors.
type LLM struct {
	model    string
	spec     AdapterSpec
	adapter  Adapter
	strict   bool
	retry    RetryPolicy
	logger   *slog.Logger
	defaults []CallOption
}

type settings struct {
	adapter    *AdapterSpec
	routes     Routes
	enablement *Enablement
	apiKeys    map[ProviderID]string
	options    map[string]any
	strict     bool
	retry      RetryPolicy
	logger     *slog.Logger
	fatal      FatalHandler
	defaults   []CallOption
}

// Option configures New.
type Option func(*settings)

// WithAdapter bypasses routing and uses spec for any model.
func WithAdapter(spec AdapterSpec) Option {
	return func(s *settings) {
		s.adapter = &spec
	}
}

// WithRoutes replaces the default route table.
func WithRoutes(routes Routes) Option {
	return func(s *settings) {
		s.routes = routes
	}
}

// WithEnablement sets the adapter enablement policy. Without it the
// defaults apply.
func WithEnablement(e Enablement) Option {
	return func(s *settings) {
		s.enablement = &e
	}
}

// WithStrictMode controls whether unrecoverable failures return *APIError
// (true, the default) or a degraded Result.
func WithStrictMode(strict bool) Option {
	return func(s *settings) {
		s.strict = strict
	}
}

// WithAPIKey sets the credential for one provider.
func WithAPIKey(provider ProviderID, key string) Option {
	return func(s *settings) {
		s.apiKeys[provider] = key
	}
}

// WithAPIKeys merges credentials for several providers.
func WithAPIKeys(keys map[ProviderID]string) Option {
	return func(s *settings) {
		maps.Copy(s.apiKeys, keys)
	}
}

// WithVendorOption passes a free-form option to the adapter constructor.
func WithVendorOption(key string, value any) Option {
	return func(s *settings) {
		s.options[key] = value
	}
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *settings) {
		s.retry = p
	}
}

// WithLogger sets the logger used for retry reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithFatalHandler replaces the warn-and-exit handler for missing
// dependencies.
func WithFatalHandler(h FatalHandler) Option {
	return func(s *settings) {
		s.fatal = h
	}
}

// WithDefaultCallOptions applies opts before the per-call options on every
// invocation.
func WithDefaultCallOptions(opts ...CallOption) Option {
	return func(s *settings) {
		s.defaults = append(s.defaults, opts...)
	}
}

// New builds the facade for model. All configuration and credential checks
// happen here, before any network call.
func New(model string, opts ...Option) (*LLM, error) {
	s := settings{
		apiKeys: make(map[ProviderID]string),
		options: make(map[string]any),
		strict:  true,
		retry:   DefaultRetryPolicy(),
		fatal:   exitFatal,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.routes == nil {
		s.routes = DefaultRoutes()
	}
	enablement := ParseEnablement(nil)
	if s.enablement != nil {
		enablement = *s.enablement
	}

	var spec AdapterSpec
	if s.adapter != nil {
		spec = *s.adapter
	} else {
		matched, ok := s.routes.Match(model)
		if !ok {
			return nil, &ProviderNotFoundError{Model: model}
		}
		spec = matched
	}

	if !spec.valid() {
		return nil, ErrInvalidAdapter
	}
	if !enablement.Enabled(spec.ID) {
		return nil, &AdapterDisabledError{Provider: spec.ID}
	}
	if spec.Available != nil {
		if err := spec.Available(); err != nil {
			s.fatal(fmt.Sprintf(
				"In order to use %s model you need to install %s package. Please add %q to your go.mod",
				model, spec.Dependency, spec.Dependency,
			))
			return nil, fmt.Errorf("%w: %s: %w", ErrMissingDependency, spec.Dependency, err)
		}
	}

	key := s.apiKeys[spec.ID]
	if spec.EnvKey != "" && key == "" {
		return nil, &APIKeyNotFoundError{Provider: spec.ID, EnvKey: spec.EnvKey}
	}

	adapter, err := spec.New(AdapterConfig{
		Model:    model,
		Provider: spec.ID,
		APIKey:   key,
		Options:  s.options,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s adapter: %w", spec.ID, err)
	}
	if adapter == nil {
		return nil, ErrInvalidAdapter
	}

	l := &LLM{
		model:    model,
		spec:     spec,
		adapter:  adapter,
		strict:   s.strict,
		retry:    s.retry,
		logger:   s.logger,
		defaults: s.defaults,
	}
	if l.retry.OnRetry == nil {
		l.retry.OnRetry = l.logRetry
	}
	return l, nil
}

// Model returns the model identifier.
func (l *LLM) Model() string {
	return l.model
}

// Provider returns the enablement identifier of the resolved adapter.
func (l *LLM) Provider() ProviderID {
	return l.spec.ID
}

// Adapter returns the underlying adapter.
func (l *LLM) Adapter() Adapter {
	return l.adapter
}

// InvokeText sends text as a single user message.
func (l *LLM) InvokeText(ctx context.Context, text string, opts ...CallOption) (*Result, error) {
	return l.Invoke(ctx, []Message{UserMessage(text)}, opts...)
}

// Invoke sends the conversation to the adapter, retrying transient
// failures. In strict mode an unrecoverable failure returns *APIError;
// otherwise it returns a Result whose Content is the normalized message.
func (l *LLM) Invoke(ctx context.Context, messages []Message, opts ...CallOption) (*Result, error) {
	callOpts := NewCallOptions(append(append([]CallOption(nil), l.defaults...), opts...)...)

	result, err := Retry(ctx, l.retry, func(ctx context.Context) (*Result, error) {
		return l.adapter.Invoke(ctx, messages, callOpts)
	})
	if err == nil {
		if result.Model == "" {
			result.Model = l.model
		}
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return nil, err
	}
	return l.handleError(err)
}

func (l *LLM) handleError(err error) (*Result, error) {
	message := l.adapter.ParseError(err)
	if message == "" {
		message = err.Error()
	}
	if l.strict {
		return nil, &APIError{Provider: l.spec.ID, Message: message, Err: err}
	}
	l.logger.Warn("llm invocation failed", "model", l.model, "provider", l.spec.ID, "error", message)
	return &Result{Model: l.model, Content: message, Degraded: true}, nil
}

func (l *LLM) logRetry(err error, attempt int, delay time.Duration) {
	l.logger.Info("retrying after backoff",
		"model", l.model,
		"attempt", attempt,
		"backoff", delay.String(),
		"error", err,
	)
}

// Close releases resources held by the adapter.
func (l *LLM) Close() error {
	if c, ok := l.adapter.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
