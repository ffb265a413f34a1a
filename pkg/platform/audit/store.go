package audit

import (
	"context"
	"strings"
	"time"
)

// MaxListLimit caps a single audit read.
const MaxListLimit = 500

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	List(ctx context.Context, filter Filter) ([]Event, error)
}

// Filter narrows an audit read. Zero fields match everything; results are
// newest first.
type Filter struct {
	Email     string
	SubjectID string
	Origin    string
	Action    string
	Category  EventCategory
	Since     time.Time
	Limit     int
}

// EffectiveLimit clamps Limit into (0, MaxListLimit].
func (f Filter) EffectiveLimit() int {
	if f.Limit <= 0 || f.Limit > MaxListLimit {
		return MaxListLimit
	}
	return f.Limit
}

// Matches reports whether e satisfies every set field of f. Email compares
// case-insensitively.
func (f Filter) Matches(e Event) bool {
	switch {
	case f.Email != "" && !strings.EqualFold(f.Email, e.Email):
		return false
	case f.SubjectID != "" && f.SubjectID != e.SubjectID:
		return false
	case f.Origin != "" && f.Origin != e.Origin:
		return false
	case f.Action != "" && f.Action != e.Action:
		return false
	case f.Category != "" && f.Category != e.Category:
		return false
	case !f.Since.IsZero() && e.Timestamp.Before(f.Since):
		return false
	}
	return true
}
