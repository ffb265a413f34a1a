package tracer

import (
	"context"
	"sync"
)

// NoopTracer discards everything. It is the default when no tracer is wired.
type NoopTracer struct{}

func NewNoop() *NoopTracer { return &NoopTracer{} }

func (NoopTracer) Start(ctx context.Context, _ string, _ ...Attribute) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error)                     {}
func (noopSpan) SetAttributes(...Attribute)    {}
func (noopSpan) AddEvent(string, ...Attribute) {}

// Recorder keeps every span in memory so tests can assert on what an
// operation traced.
type Recorder struct {
	mu    sync.Mutex
	spans []*RecordedSpan
}

// RecordedSpan is one span captured by a Recorder.
type RecordedSpan struct {
	Name   string
	Attrs  map[string]any
	Events []RecordedEvent
	Err    error
	Ended  bool

	mu *sync.Mutex
}

// RecordedEvent is one AddEvent call.
type RecordedEvent struct {
	Name  string
	Attrs map[string]any
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	span := &RecordedSpan{Name: name, Attrs: toMap(attrs), mu: &r.mu}
	r.mu.Lock()
	r.spans = append(r.spans, span)
	r.mu.Unlock()
	return ContextWithSpan(ctx, span), span
}

// Spans returns copies of the spans recorded so far, in start order.
func (r *Recorder) Spans() []RecordedSpan {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedSpan, len(r.spans))
	for i, s := range r.spans {
		out[i] = *s
		out[i].Events = append([]RecordedEvent(nil), s.Events...)
	}
	return out
}

// Named returns the recorded spans called name.
func (r *Recorder) Named(name string) []RecordedSpan {
	var out []RecordedSpan
	for _, s := range r.Spans() {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

func (s *RecordedSpan) End(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Err = err
	s.Ended = true
}

func (s *RecordedSpan) SetAttributes(attrs ...Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range attrs {
		s.Attrs[a.Key] = a.Value
	}
}

func (s *RecordedSpan) AddEvent(name string, attrs ...Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, RecordedEvent{Name: name, Attrs: toMap(attrs)})
}

func toMap(attrs []Attribute) map[string]any {
	m := make(map[string]any, len(attrs))
	for _, a := range attrs {
		m[a.Key] = a.Value
	}
	return m
}

var (
	_ Tracer = NoopTracer{}
	_ Tracer = (*Recorder)(nil)
	_ Span   = (*RecordedSpan)(nil)
)
