package regent

import "github.com/rickchristie/regent/llm"

// SpanStartedSubscriber is notified when a span opens.
type SpanStartedSubscriber interface {
	OnSpanStarted(session *Session, span Span)
}

// SpanEndedSubscriber is notified when a span closes.
type SpanEndedSubscriber interface {
	OnSpanEnded(session *Session, span Span)
}

// MessageSubscriber is notified when a message joins the history.
type MessageSubscriber interface {
	OnMessage(session *Session, message llm.Message)
}

// subscribers dispatches session changes to registered subscribers.
// A subscriber may implement any combination of the interfaces above and
// receives only what it implements, synchronously and in registration
// order. Subscribers must not call back into the agent.
type subscribers struct {
	list []any
}

func (r *subscribers) add(s any) {
	r.list = append(r.list, s)
}

func (r *subscribers) spanStarted(session *Session, span Span) {
	if r == nil {
		return
	}
	for _, s := range r.list {
		if sub, ok := s.(SpanStartedSubscriber); ok {
			sub.OnSpanStarted(session, span)
		}
	}
}

func (r *subscribers) spanEnded(session *Session, span Span) {
	if r == nil {
		return
	}
	for _, s := range r.list {
		if sub, ok := s.(SpanEndedSubscriber); ok {
			sub.OnSpanEnded(session, span)
		}
	}
}

func (r *subscribers) messageAppended(session *Session, msg llm.Message) {
	if r == nil {
		return
	}
	for _, s := range r.list {
		if sub, ok := s.(MessageSubscriber); ok {
			sub.OnMessage(session, msg)
		}
	}
}
