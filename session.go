package regent

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/rickchristie/regent/llm"
)

// Session owns the message history and spans of one agent. It lives as
// long as the agent; every Run appends to it.
//
// The agent is the only writer. Readers get copies and may read from
// other goroutines.
type Session struct {
	id    string
	clock TimeProvider
	subs  *subscribers

	mu       sync.RWMutex
	messages []llm.Message
	spans    []*Span
}

func newSession(clock TimeProvider, subs *subscribers) *Session {
	return &Session{
		id:    uuid.New().String(),
		clock: clock,
		subs:  subs,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Messages returns a copy of the message history.
func (s *Session) Messages() []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]llm.Message(nil), s.messages...)
}

// Spans returns copies of all spans in creation order.
func (s *Session) Spans() []Span {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Span, len(s.spans))
	for i, sp := range s.spans {
		out[i] = sp.clone()
	}
	return out
}

// LastAnswer returns the output of the most recent ANSWER span.
func (s *Session) LastAnswer() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.spans) - 1; i >= 0; i-- {
		if s.spans[i].Type == SpanAnswer {
			return s.spans[i].Output, true
		}
	}
	return "", false
}

func (s *Session) hasMessages() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages) > 0
}

func (s *Session) appendMessage(role llm.Role, content string) {
	msg := llm.Message{Role: role, Content: content}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.subs.messageAppended(s, msg)
}

func (s *Session) startSpan(typ SpanType, input string, metadata map[string]any) *Span {
	s.mu.Lock()
	sp := &Span{
		ID:        len(s.spans) + 1,
		Type:      typ,
		Input:     input,
		StartedAt: s.clock.Now(),
		Metadata:  metadata,
	}
	s.spans = append(s.spans, sp)
	snapshot := sp.clone()
	s.mu.Unlock()

	s.subs.spanStarted(s, snapshot)
	return sp
}

// endSpan closes sp. Closing twice is a programming error.
func (s *Session) endSpan(sp *Span, output string, metadata map[string]any) {
	s.mu.Lock()
	if sp.Closed() {
		s.mu.Unlock()
		panic(fmt.Sprintf("span %d (%s) closed twice", sp.ID, sp.Type))
	}
	sp.Output = output
	sp.EndedAt = s.clock.Now()
	if len(metadata) > 0 && sp.Metadata == nil {
		sp.Metadata = make(map[string]any, len(metadata))
	}
	for k, v := range metadata {
		sp.Metadata[k] = v
	}
	snapshot := sp.clone()
	s.mu.Unlock()

	s.subs.spanEnded(s, snapshot)
}
