package audit

import (
	"time"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out. The audit log is
// append-only and never read back by the authentication core.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	SubjectID string // account ID when known
	Email     string
	Role      string
	Site      string // service or deployment that produced the event
	Action    string
	Decision  string // granted, denied, locked, ...
	Reason    string
	Origin    string // client network origin
	Device    string // human-readable device label derived from the User-Agent
	RequestID string
	ActorID   string // operator behind an admin action
}

// EventCategory routes events to retention classes.
type EventCategory string

const (
	CategorySecurity   EventCategory = "security"
	CategoryCompliance EventCategory = "compliance"
	CategoryOperations EventCategory = "operations"
)

type AuditEvent string

const (
	EventLoginSucceeded         AuditEvent = "login_succeeded"
	EventLoginFailed            AuditEvent = "login_failed"
	EventUnknownAccount         AuditEvent = "unknown_account"
	EventOriginLocked           AuditEvent = "origin_locked"
	EventAccountLocked          AuditEvent = "account_locked"
	EventLoginRejectedLocked    AuditEvent = "login_rejected_locked"
	EventTokenRefreshed         AuditEvent = "token_refreshed"
	EventTokenRejected          AuditEvent = "token_rejected"
	EventResetRequested         AuditEvent = "reset_requested"
	EventResetRequestDropped    AuditEvent = "reset_request_dropped"
	EventResetTokenInvalid      AuditEvent = "reset_token_invalid"
	EventPasswordReset          AuditEvent = "password_reset"
	EventPasswordChanged        AuditEvent = "password_changed"
	EventPasswordChangeRejected AuditEvent = "password_change_rejected"
	EventLockoutCleared         AuditEvent = "lockout_cleared"
	EventAccountDeleted         AuditEvent = "account_deleted"
)

// Category maps an event to its retention class. Unknown events fall back to
// operations so nothing is dropped for lack of a mapping.
func (e AuditEvent) Category() EventCategory {
	switch e {
	case EventLoginFailed, EventUnknownAccount, EventOriginLocked, EventAccountLocked,
		EventLoginRejectedLocked, EventTokenRejected, EventResetRequestDropped,
		EventResetTokenInvalid, EventPasswordChangeRejected, EventLockoutCleared:
		return CategorySecurity
	case EventPasswordReset, EventPasswordChanged, EventAccountDeleted:
		return CategoryCompliance
	default:
		return CategoryOperations
	}
}
