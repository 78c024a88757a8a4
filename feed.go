package regent

import "sync"

// Feed relays closed spans to a channel without ever blocking the agent.
// Spans queue internally until the consumer reads them.
//
//	feed := regent.NewFeed()
//	agent, _ := regent.NewAgent(instructions, model, regent.WithSubscriber(feed))
//	go func() {
//	    for span := range feed.Spans() {
//	        ...
//	    }
//	}()
//	...
//	feed.Close()
type Feed struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Span
	closed bool
	out    chan Span
}

// NewFeed creates a Feed and starts its delivery goroutine.
func NewFeed() *Feed {
	f := &Feed{
		queue: make([]Span, 0, 16),
		out:   make(chan Span, 1),
	}
	f.cond = sync.NewCond(&f.mu)
	go f.deliver()
	return f
}

func (f *Feed) deliver() {
	for {
		span, ok := f.next()
		if !ok {
			close(f.out)
			return
		}
		f.out <- span
	}
}

// next blocks until a span is queued or the feed is closed and drained.
func (f *Feed) next() (Span, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.queue) == 0 && !f.closed {
		f.cond.Wait()
	}
	if len(f.queue) == 0 {
		return Span{}, false
	}

	span := f.queue[0]
	f.queue = f.queue[1:]
	return span, true
}

// OnSpanEnded implements SpanEndedSubscriber. Spans arriving after Close
// are dropped.
func (f *Feed) OnSpanEnded(_ *Session, span Span) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.queue = append(f.queue, span)
	f.cond.Signal()
}

// Spans returns the delivery channel. It closes once the feed is closed
// and every queued span has been received.
func (f *Feed) Spans() <-chan Span {
	return f.out
}

// Pending reports how many spans are queued but not yet delivered.
func (f *Feed) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Close stops accepting spans. Safe to call more than once.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	f.cond.Signal()
}

var _ SpanEndedSubscriber = (*Feed)(nil)
