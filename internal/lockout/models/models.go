package models

import (
	"strings"
	"time"

	dErrors "lockgate/pkg/domain-errors"
	"lockgate/pkg/platform/validation"
)

// EventKind classifies which abusable action an attempt belongs to.
type EventKind string

const (
	KindLoginFailure            EventKind = "LOGIN_FAILURE"
	KindResetRequestUnverified  EventKind = "RESET_REQUEST_UNVERIFIED"
	KindResetTokenInvalid       EventKind = "RESET_TOKEN_INVALID"
	KindPasswordChangeRejected  EventKind = "PASSWORD_CHANGE_REJECTED"
	KindPasswordChangeCompleted EventKind = "PASSWORD_CHANGE_COMPLETED"
)

// AllKinds lists every known event kind.
var AllKinds = []EventKind{
	KindLoginFailure,
	KindResetRequestUnverified,
	KindResetTokenInvalid,
	KindPasswordChangeRejected,
	KindPasswordChangeCompleted,
}

// ParseEventKind accepts the canonical upper-case name case-insensitively.
func ParseEventKind(s string) (EventKind, bool) {
	k := EventKind(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllKinds {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// Axis says what a subject identifies.
type Axis string

const (
	AxisAccount Axis = "account"
	AxisOrigin  Axis = "origin"
)

func (a Axis) IsValid() bool {
	return a == AxisAccount || a == AxisOrigin
}

// Subject is the key an attempt is tracked against: an account identifier
// or a raw network-origin string.
type Subject struct {
	Axis  Axis
	Value string
}

// AccountSubject tracks attempts against an account ID.
func AccountSubject(accountID string) Subject {
	return Subject{Axis: AxisAccount, Value: accountID}
}

// OriginSubject tracks attempts against a network origin.
func OriginSubject(origin string) Subject {
	return Subject{Axis: AxisOrigin, Value: origin}
}

// Validate enforces a known axis and a non-empty value.
func (s Subject) Validate() error {
	if !s.Axis.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "unknown subject axis")
	}
	if strings.TrimSpace(s.Value) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "subject cannot be empty")
	}
	return validation.CheckLength("subject", s.Value, validation.MaxSubjectLength)
}

// ParseSubject reads the "axis:value" form produced by String.
func ParseSubject(raw string) (Subject, error) {
	axis, value, ok := strings.Cut(raw, ":")
	if !ok {
		return Subject{}, dErrors.New(dErrors.CodeBadRequest, "subject must be axis:value")
	}
	s := Subject{Axis: Axis(strings.ToLower(axis)), Value: value}
	if err := s.Validate(); err != nil {
		return Subject{}, dErrors.New(dErrors.CodeBadRequest, "invalid subject")
	}
	return s, nil
}

func (s Subject) String() string {
	return string(s.Axis) + ":" + s.Value
}

// Key identifies one attempt record.
type Key struct {
	Kind    EventKind
	Subject Subject
}

func NewKey(kind EventKind, subject Subject) Key {
	return Key{Kind: kind, Subject: subject}
}

// String renders the key for in-memory maps and lock sharding.
func (k Key) String() string {
	return string(k.Kind) + "|" + string(k.Subject.Axis) + "|" + k.Subject.Value
}

// Rule is the policy record for one (kind, axis) pair.
type Rule struct {
	MaxAttempts     int
	LockoutDuration time.Duration
	ResetOnExpiry   bool
	// Window bounds how long failures accumulate; zero means until success or lock expiry.
	Window time.Duration
}

// AttemptRecord is the durable per-(kind, subject) counter.
type AttemptRecord struct {
	Kind          EventKind
	Subject       Subject
	FailedCount   int
	WindowStart   *time.Time
	LockedUntil   *time.Time
	LastOrigin    string
	LastAttemptAt *time.Time
}

// NewAttemptRecord returns an empty record for key.
func NewAttemptRecord(key Key) *AttemptRecord {
	return &AttemptRecord{Kind: key.Kind, Subject: key.Subject}
}

func (r *AttemptRecord) Key() Key {
	return Key{Kind: r.Kind, Subject: r.Subject}
}

// IsLocked reports an active lock at now.
func (r *AttemptRecord) IsLocked(now time.Time) bool {
	return r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

// LockExpired reports a lock whose expiry has passed but was not yet reset.
func (r *AttemptRecord) LockExpired(now time.Time) bool {
	return r.LockedUntil != nil && !now.Before(*r.LockedUntil)
}

// Reset clears the counter and lock. Origin and last-attempt time stay for audit.
func (r *AttemptRecord) Reset() {
	r.FailedCount = 0
	r.WindowStart = nil
	r.LockedUntil = nil
}

// ExpireIfDue applies lazy expiry. It returns true when an expired lock was cleared.
func (r *AttemptRecord) ExpireIfDue(now time.Time, resetOnExpiry bool) bool {
	if !r.LockExpired(now) {
		return false
	}
	r.LockedUntil = nil
	if resetOnExpiry {
		r.FailedCount = 0
		r.WindowStart = nil
	}
	return true
}

// ApplyFailure counts one failed attempt at now and reports whether this call
// made the transition to locked. Failures while already locked still count but
// never extend the lock or transition again.
func (r *AttemptRecord) ApplyFailure(now time.Time, rule Rule, origin string) bool {
	r.ExpireIfDue(now, rule.ResetOnExpiry)

	if rule.Window > 0 && r.WindowStart != nil && r.LockedUntil == nil && !now.Before(r.WindowStart.Add(rule.Window)) {
		r.FailedCount = 0
		r.WindowStart = nil
	}
	if r.FailedCount == 0 || r.WindowStart == nil {
		start := now
		r.WindowStart = &start
	}

	r.FailedCount++
	r.LastOrigin = origin
	at := now
	r.LastAttemptAt = &at

	if r.LockedUntil == nil && r.FailedCount >= rule.MaxAttempts {
		until := now.Add(rule.LockoutDuration)
		r.LockedUntil = &until
		return true
	}
	return false
}

// View returns the record as a reader at now sees it: an expired lock reads
// as a cleared record.
func (r *AttemptRecord) View(now time.Time, rule Rule) AttemptRecord {
	v := *r
	v.ExpireIfDue(now, rule.ResetOnExpiry)
	return v
}

// Outcome reports the effect of one recorded failure.
type Outcome struct {
	Kind         EventKind
	Subject      Subject
	Count        int
	Locked       bool
	Transitioned bool      // this call moved the subject into a lock
	Until        time.Time // set when Locked
	Remaining    int       // attempts left before a lock; zero when Locked
}

// NewOutcome derives the outcome from the record after ApplyFailure.
func NewOutcome(r *AttemptRecord, rule Rule, now time.Time, transitioned bool) *Outcome {
	o := &Outcome{
		Kind:         r.Kind,
		Subject:      r.Subject,
		Count:        r.FailedCount,
		Transitioned: transitioned,
	}
	if r.IsLocked(now) {
		o.Locked = true
		o.Until = *r.LockedUntil
		return o
	}
	o.Remaining = max(rule.MaxAttempts-r.FailedCount, 0)
	return o
}
