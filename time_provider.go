package regent

import (
	"sync"
	"time"
)

// TimeProvider supplies span timestamps.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider reads the system clock.
type DefaultTimeProvider struct{}

// NewDefaultTimeProvider creates a DefaultTimeProvider.
func NewDefaultTimeProvider() *DefaultTimeProvider {
	return &DefaultTimeProvider{}
}

// Now returns the current system time.
func (p *DefaultTimeProvider) Now() time.Time {
	return time.Now()
}

// MockTimeProvider is a deterministic clock for tests. Each call to Now
// returns the current time and then advances it by the step.
type MockTimeProvider struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

// NewMockTimeProvider creates a clock starting at start.
func NewMockTimeProvider(start time.Time) *MockTimeProvider {
	return &MockTimeProvider{current: start}
}

// WithStep makes every Now call advance the clock by d.
func (p *MockTimeProvider) WithStep(d time.Duration) *MockTimeProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.step = d
	return p
}

// Now returns the mock time.
func (p *MockTimeProvider) Now() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.current
	p.current = p.current.Add(p.step)
	return now
}

// Advance moves the clock forward by d.
func (p *MockTimeProvider) Advance(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = p.current.Add(d)
}

// Set moves the clock to t.
func (p *MockTimeProvider) Set(t time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = t
}

var (
	_ TimeProvider = (*DefaultTimeProvider)(nil)
	_ TimeProvider = (*MockTimeProvider)(nil)
)
