// Package tracelog renders agent sessions: as structured log lines while
// the agent runs, and as YAML transcripts.
package tracelog

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rickchristie/regent"
	"github.com/rickchristie/regent/llm"
	"github.com/rickchristie/regent/react"
)

// DefaultMaxWidth truncates span text in log lines.
const DefaultMaxWidth = 120

// Logger logs every closed span through slog.
type Logger struct {
	logger   *slog.Logger
	maxWidth int
}

// NewLogger creates a span logger. A maxWidth below one disables
// truncation.
func NewLogger(logger *slog.Logger, maxWidth int) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger, maxWidth: maxWidth}
}

// Title names a span the way it is shown to people, for example
// "LLM ❯ gpt-4o-mini" or "TOOL ❯ price_tool".
func Title(span regent.Span) string {
	switch span.Type {
	case regent.SpanLLMCall:
		if model, ok := span.Metadata[regent.MetaModel].(string); ok {
			return "LLM ❯ " + model
		}
		return "LLM"
	case regent.SpanToolExecution:
		if tool, ok := span.Metadata[regent.MetaTool].(string); ok {
			return "TOOL ❯ " + tool
		}
		return "TOOL"
	}
	return string(span.Type)
}

// OnSpanEnded implements regent.SpanEndedSubscriber.
func (l *Logger) OnSpanEnded(session *regent.Session, span regent.Span) {
	text := span.Output
	if span.Type == regent.SpanLLMCall || span.Type == regent.SpanToolExecution {
		text = span.Input
	}

	attrs := []any{
		"session", session.ID(),
		"span", span.ID,
		"duration", span.Duration().Round(time.Millisecond).String(),
		"text", Truncate(text, l.maxWidth),
	}
	for _, key := range slices.Sorted(maps.Keys(span.Metadata)) {
		if key == regent.MetaModel || key == regent.MetaTool {
			continue
		}
		attrs = append(attrs, key, span.Metadata[key])
	}

	if _, failed := span.Metadata[regent.MetaError]; failed {
		l.logger.Warn("["+Title(span)+"]", attrs...)
		return
	}
	l.logger.Info("["+Title(span)+"]", attrs...)
}

// Truncate shortens s to max runes on one line, marking the cut with "…".
func Truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if max < 1 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

// Transcript is the YAML shape of a session.
type Transcript struct {
	Session  string        `yaml:"session"`
	Grammar  string        `yaml:"grammar"`
	Messages []llm.Message `yaml:"messages"`
	Spans    []regent.Span `yaml:"spans"`
}

// NewTranscript snapshots session.
func NewTranscript(session *regent.Session) Transcript {
	return Transcript{
		Session:  session.ID(),
		Grammar:  react.GrammarVersion,
		Messages: session.Messages(),
		Spans:    session.Spans(),
	}
}

// WriteTranscript writes session to w as YAML. Multi-line content is
// written as block scalars.
func WriteTranscript(w io.Writer, session *regent.Session) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(NewTranscript(session)); err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	return enc.Close()
}

// ReadTranscript decodes a transcript written by WriteTranscript.
func ReadTranscript(r io.Reader) (Transcript, error) {
	var t Transcript
	if err := yaml.NewDecoder(r).Decode(&t); err != nil {
		return Transcript{}, fmt.Errorf("decode transcript: %w", err)
	}
	return t, nil
}

// Stream writes every closed span to w as its own YAML document.
type Stream struct {
	mu  sync.Mutex
	enc *yaml.Encoder
}

// NewStream creates a span stream over w.
func NewStream(w io.Writer) *Stream {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return &Stream{enc: enc}
}

// OnSpanEnded implements regent.SpanEndedSubscriber. Encoding failures
// are dropped; the stream is diagnostic output.
func (s *Stream) OnSpanEnded(_ *regent.Session, span regent.Span) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(span)
}

// Close flushes the stream.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Close()
}

var (
	_ regent.SpanEndedSubscriber = (*Logger)(nil)
	_ regent.SpanEndedSubscriber = (*Stream)(nil)
)
