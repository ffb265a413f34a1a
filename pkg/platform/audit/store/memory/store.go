package memory

import (
	"context"
	"sync"

	audit "lockgate/pkg/platform/audit"
)

// InMemoryStore keeps audit events in process memory for tests and local runs.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List walks the log backwards so the newest matches come first.
func (s *InMemoryStore) List(_ context.Context, filter audit.Filter) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := filter.EffectiveLimit()
	var out []audit.Event
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if filter.Matches(s.events[i]) {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}
