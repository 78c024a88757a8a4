package tt

import (
	"context"
	"sync"
	"time"

	"github.com/rickchristie/regent/llm"
)

// -----------------------------------------------------------------------------
// MockAdapter - implements llm.Adapter with scripted replies
// -----------------------------------------------------------------------------

// MockAdapter is a configurable llm.Adapter. Replies and errors are consumed
// in call order; once exhausted it answers "Answer: done".
type MockAdapter struct {
	mu        sync.Mutex
	contents  []string
	errors    []error
	callCount int

	// ParseErrorFunc overrides ParseError when set.
	ParseErrorFunc func(err error) string

	// CapturedMessages stores the messages passed to each Invoke call.
	CapturedMessages [][]llm.Message

	// CapturedOptions stores the options passed to each Invoke call.
	CapturedOptions []llm.CallOptions
}

// NewMockAdapter creates an empty MockAdapter.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{}
}

// AddResponse queues a successful reply.
func (m *MockAdapter) AddResponse(content string) *MockAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contents = append(m.contents, content)
	m.errors = append(m.errors, nil)
	return m
}

// AddError queues a failure for the next call.
func (m *MockAdapter) AddError(err error) *MockAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contents = append(m.contents, "")
	m.errors = append(m.errors, err)
	return m
}

// CallCount returns the number of Invoke calls.
func (m *MockAdapter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Invoke implements llm.Adapter.
func (m *MockAdapter) Invoke(_ context.Context, messages []llm.Message, opts llm.CallOptions) (*llm.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.callCount
	m.callCount++
	m.CapturedMessages = append(m.CapturedMessages, append([]llm.Message(nil), messages...))
	m.CapturedOptions = append(m.CapturedOptions, opts)

	if idx < len(m.errors) && m.errors[idx] != nil {
		return nil, m.errors[idx]
	}
	content := "Answer: done"
	if idx < len(m.contents) {
		content = m.contents[idx]
	}
	return &llm.Result{
		Content:      content,
		InputTokens:  llm.IntPtr(10),
		OutputTokens: llm.IntPtr(5),
	}, nil
}

// ParseError implements llm.Adapter.
func (m *MockAdapter) ParseError(err error) string {
	if m.ParseErrorFunc != nil {
		return m.ParseErrorFunc(err)
	}
	return llm.NormalizeError(err, "", nil)
}

// Spec wraps adapter in an AdapterSpec registered as OpenAI with no
// credential requirement.
func Spec(adapter llm.Adapter) llm.AdapterSpec {
	return llm.AdapterSpec{
		ID:         llm.ProviderOpenAI,
		Dependency: "github.com/rickchristie/regent/internal/tt",
		New: func(llm.AdapterConfig) (llm.Adapter, error) {
			return adapter, nil
		},
	}
}

// NewLLM builds a facade over adapter that never sleeps between retries.
func NewLLM(adapter llm.Adapter, opts ...llm.Option) (*llm.LLM, error) {
	policy := llm.DefaultRetryPolicy()
	policy.Sleep = NoSleep
	base := []llm.Option{
		llm.WithAdapter(Spec(adapter)),
		llm.WithRetryPolicy(policy),
	}
	return llm.New("mock-model", append(base, opts...)...)
}

// NoSleep is a RetryPolicy.Sleep that returns immediately.
func NoSleep(context.Context, time.Duration) error {
	return nil
}

// -----------------------------------------------------------------------------
// SleepRecorder - records backoff durations
// -----------------------------------------------------------------------------

// SleepRecorder records the durations passed to Sleep.
type SleepRecorder struct {
	mu     sync.Mutex
	Delays []time.Duration
}

// Sleep records d and returns immediately.
func (r *SleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Delays = append(r.Delays, d)
	return nil
}
