package regent

import (
	"maps"
	"time"
)

// SpanType classifies a step of the agent loop.
type SpanType string

const (
	SpanInput         SpanType = "INPUT"
	SpanLLMCall       SpanType = "LLM_CALL"
	SpanToolExecution SpanType = "TOOL_EXECUTION"
	SpanAnswer        SpanType = "ANSWER"
)

// Metadata keys recorded on spans.
const (
	MetaModel        = "model"
	MetaInputTokens  = "input_tokens"
	MetaOutputTokens = "output_tokens"
	MetaTool         = "tool"
	MetaError        = "error"
	MetaDegraded     = "degraded"
	MetaIteration    = "iteration"
)

// Span is one timed step of a run. Spans obtained from a Session are
// copies; a closed span never changes.
type Span struct {
	ID        int            `yaml:"id"`
	Type      SpanType       `yaml:"type"`
	Input     string         `yaml:"input,omitempty"`
	Output    string         `yaml:"output,omitempty"`
	StartedAt time.Time      `yaml:"started_at"`
	EndedAt   time.Time      `yaml:"ended_at,omitempty"`
	Metadata  map[string]any `yaml:"metadata,omitempty"`
}

// Closed reports whether the span has ended.
func (s Span) Closed() bool {
	return !s.EndedAt.IsZero()
}

// Duration is the time between start and end, or zero while open.
func (s Span) Duration() time.Duration {
	if !s.Closed() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

func (s Span) clone() Span {
	s.Metadata = maps.Clone(s.Metadata)
	return s
}
