// Package handler exposes operator controls over the lockout ledger.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"lockgate/internal/lockout/models"
	dErrors "lockgate/pkg/domain-errors"
	"lockgate/pkg/platform/audit"
	"lockgate/pkg/platform/httputil"
	"lockgate/pkg/platform/middleware/admin"
	"lockgate/pkg/requestcontext"
)

// Ledger is the subset of the lockout ledger operators may drive.
type Ledger interface {
	Get(ctx context.Context, subject models.Subject, kind models.EventKind) (*models.AttemptRecord, error)
	Clear(ctx context.Context, subject models.Subject, kind models.EventKind, actorID string) error
}

// History reads the audit trail behind a lockout decision.
type History interface {
	List(ctx context.Context, filter audit.Filter) ([]audit.Event, error)
}

type Handler struct {
	ledger  Ledger
	history History
	logger  *slog.Logger
}

func New(ledger Ledger, history History, logger *slog.Logger) *Handler {
	return &Handler{ledger: ledger, history: history, logger: logger}
}

// RegisterAdmin mounts operator routes. The caller applies the admin middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/lockouts/{kind}/{subject}", h.HandleGet)
	r.Delete("/admin/lockouts/{kind}/{subject}", h.HandleClear)
	r.Get("/admin/audit", h.HandleAudit)
}

// RecordResponse is the operator view of one attempt record.
type RecordResponse struct {
	Kind          string     `json:"kind"`
	Subject       string     `json:"subject"`
	FailedCount   int        `json:"failed_count"`
	WindowStart   *time.Time `json:"window_start,omitempty"`
	LockedUntil   *time.Time `json:"locked_until,omitempty"`
	LastOrigin    string     `json:"last_origin,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
}

func newRecordResponse(r *models.AttemptRecord) *RecordResponse {
	return &RecordResponse{
		Kind:          string(r.Kind),
		Subject:       r.Subject.String(),
		FailedCount:   r.FailedCount,
		WindowStart:   r.WindowStart,
		LockedUntil:   r.LockedUntil,
		LastOrigin:    r.LastOrigin,
		LastAttemptAt: r.LastAttemptAt,
	}
}

// HandleGet implements GET /admin/lockouts/{kind}/{subject}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind, subject, err := parseTarget(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.ledger.Get(ctx, subject, kind)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read lockout record",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	if record == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no attempts recorded"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newRecordResponse(record))
}

// HandleClear implements DELETE /admin/lockouts/{kind}/{subject}.
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind, subject, err := parseTarget(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	actor := admin.GetAdminActorID(ctx)
	if err := h.ledger.Clear(ctx, subject, kind, actor); err != nil {
		h.logger.ErrorContext(ctx, "failed to clear lockout",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "lockout cleared",
		"kind", kind,
		"axis", subject.Axis,
		"actor_id", actor,
		"request_id", requestcontext.RequestID(ctx),
	)
	w.WriteHeader(http.StatusNoContent)
}

// EventResponse is the operator view of one audit event.
type EventResponse struct {
	Action    string    `json:"action"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	SubjectID string    `json:"subject_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	Decision  string    `json:"decision,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Origin    string    `json:"origin,omitempty"`
	Device    string    `json:"device,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
}

// AuditResponse wraps an audit page.
type AuditResponse struct {
	Events []EventResponse `json:"events"`
}

// HandleAudit implements GET /admin/audit. Query parameters narrow the read:
// email, subject_id, origin, action, category, since (RFC 3339) and limit.
func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.history.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read audit trail",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit trail"))
		return
	}

	resp := AuditResponse{Events: make([]EventResponse, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, EventResponse{
			Action:    e.Action,
			Category:  string(e.Category),
			Timestamp: e.Timestamp,
			SubjectID: e.SubjectID,
			Email:     e.Email,
			Decision:  e.Decision,
			Reason:    e.Reason,
			Origin:    e.Origin,
			Device:    e.Device,
			RequestID: e.RequestID,
			ActorID:   e.ActorID,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func parseFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	filter := audit.Filter{
		Email:     q.Get("email"),
		SubjectID: q.Get("subject_id"),
		Origin:    q.Get("origin"),
		Action:    q.Get("action"),
		Category:  audit.EventCategory(q.Get("category")),
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, dErrors.New(dErrors.CodeBadRequest, "since must be an RFC 3339 timestamp")
		}
		filter.Since = since
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > audit.MaxListLimit {
			return audit.Filter{}, dErrors.New(dErrors.CodeBadRequest,
				"limit must be between 1 and "+strconv.Itoa(audit.MaxListLimit))
		}
		filter.Limit = limit
	}
	return filter, nil
}

func parseTarget(r *http.Request) (models.EventKind, models.Subject, error) {
	kind, ok := models.ParseEventKind(chi.URLParam(r, "kind"))
	if !ok {
		return "", models.Subject{}, dErrors.New(dErrors.CodeBadRequest, "unknown event kind")
	}
	subject, err := models.ParseSubject(chi.URLParam(r, "subject"))
	if err != nil {
		return "", models.Subject{}, err
	}
	return kind, subject, nil
}
