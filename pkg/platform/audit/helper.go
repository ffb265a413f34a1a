package audit

import (
	"context"
	"log/slog"

	"lockgate/pkg/requestcontext"
)

// Emitter persists audit events. Satisfied by publisher.Publisher.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Logger writes every audit event twice: once as a structured log line with
// log_type=audit, and once to the Emitter. Either side may be nil.
type Logger struct {
	text    *slog.Logger
	emitter Emitter
	site    string
}

func NewLogger(text *slog.Logger, emitter Emitter, site string) *Logger {
	return &Logger{text: text, emitter: emitter, site: site}
}

// Log stamps e with the action and its category, fills request id, origin
// and site from ctx and the logger when e leaves them empty, then records it.
// Emit failures are logged, never returned: auditing must not fail a login.
func (l *Logger) Log(ctx context.Context, event AuditEvent, e Event) {
	if l == nil {
		return
	}
	e.Action = string(event)
	e.Category = event.Category()
	e.RequestID = fallback(e.RequestID, requestcontext.RequestID(ctx))
	e.Origin = fallback(e.Origin, requestcontext.ClientIP(ctx))
	e.Site = fallback(e.Site, l.site)

	l.write(ctx, e)
	if l.emitter == nil {
		return
	}
	if err := l.emitter.Emit(ctx, e); err != nil && l.text != nil {
		l.text.ErrorContext(ctx, "failed to emit audit event",
			"error", err,
			"event", e.Action,
			"request_id", e.RequestID,
		)
	}
}

// write logs security events at warn so lockouts stand out in the stream.
func (l *Logger) write(ctx context.Context, e Event) {
	if l.text == nil {
		return
	}
	level := slog.LevelInfo
	if e.Category == CategorySecurity {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("event", e.Action),
		slog.String("log_type", "audit"),
		slog.String("category", string(e.Category)),
		slog.String("request_id", e.RequestID),
	}
	for _, kv := range [...]struct{ key, value string }{
		{"subject_id", e.SubjectID},
		{"decision", e.Decision},
		{"reason", e.Reason},
		{"origin", e.Origin},
		{"actor_id", e.ActorID},
	} {
		if kv.value != "" {
			attrs = append(attrs, slog.String(kv.key, kv.value))
		}
	}
	l.text.LogAttrs(ctx, level, e.Action, attrs...)
}

func fallback(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
