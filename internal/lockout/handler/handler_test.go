package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lockgate/internal/lockout/models"
	dErrors "lockgate/pkg/domain-errors"
	"lockgate/pkg/platform/audit"
	auditMemory "lockgate/pkg/platform/audit/store/memory"
	"lockgate/pkg/platform/middleware/admin"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) Get(ctx context.Context, subject models.Subject, kind models.EventKind) (*models.AttemptRecord, error) {
	args := m.Called(ctx, subject, kind)
	record, _ := args.Get(0).(*models.AttemptRecord)
	return record, args.Error(1)
}

func (m *mockLedger) Clear(ctx context.Context, subject models.Subject, kind models.EventKind, actorID string) error {
	args := m.Called(ctx, subject, kind, actorID)
	return args.Error(0)
}

func newRouter(t *testing.T, ledger Ledger) *chi.Mux {
	t.Helper()
	return newRouterWithHistory(t, ledger, auditMemory.NewInMemoryStore())
}

func newRouterWithHistory(t *testing.T, ledger Ledger, history History) *chi.Mux {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken("admin-secret", logger))
		New(ledger, history, logger).RegisterAdmin(r)
	})
	return r
}

func send(r http.Handler, method, path string, withToken bool) *httptest.ResponseRecorder {
	req := httptest.NewRequestWithContext(context.Background(), method, path, nil)
	if withToken {
		req.Header.Set("X-Admin-Token", "admin-secret")
		req.Header.Set("X-Admin-Actor-ID", "ops-7")
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHandleClear(t *testing.T) {
	t.Run("clears account lock with actor", func(t *testing.T) {
		ledger := new(mockLedger)
		ledger.On("Clear", mock.Anything, models.AccountSubject("acct-1"), models.KindLoginFailure, "ops-7").Return(nil)

		rr := send(newRouter(t, ledger), http.MethodDelete, "/admin/lockouts/login_failure/account:acct-1", true)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		ledger.AssertExpectations(t)
	})

	t.Run("clears origin lock", func(t *testing.T) {
		ledger := new(mockLedger)
		ledger.On("Clear", mock.Anything, models.OriginSubject("203.0.113.9"), models.KindResetTokenInvalid, "ops-7").Return(nil)

		rr := send(newRouter(t, ledger), http.MethodDelete, "/admin/lockouts/RESET_TOKEN_INVALID/origin:203.0.113.9", true)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		ledger.AssertExpectations(t)
	})

	t.Run("unknown kind is rejected", func(t *testing.T) {
		ledger := new(mockLedger)

		rr := send(newRouter(t, ledger), http.MethodDelete, "/admin/lockouts/SOMETHING/account:acct-1", true)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		ledger.AssertNotCalled(t, "Clear", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed subject is rejected", func(t *testing.T) {
		ledger := new(mockLedger)

		rr := send(newRouter(t, ledger), http.MethodDelete, "/admin/lockouts/LOGIN_FAILURE/acct-1", true)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		ledger.AssertNotCalled(t, "Clear", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("requires admin token", func(t *testing.T) {
		ledger := new(mockLedger)

		rr := send(newRouter(t, ledger), http.MethodDelete, "/admin/lockouts/LOGIN_FAILURE/account:acct-1", false)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		ledger.AssertNotCalled(t, "Clear", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("store failure is internal", func(t *testing.T) {
		ledger := new(mockLedger)
		ledger.On("Clear", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(dErrors.New(dErrors.CodeInternal, "failed to clear lockout"))

		rr := send(newRouter(t, ledger), http.MethodDelete, "/admin/lockouts/LOGIN_FAILURE/account:acct-1", true)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestHandleGet(t *testing.T) {
	t.Run("returns record", func(t *testing.T) {
		until := time.Date(2026, 5, 4, 10, 15, 0, 0, time.UTC)
		ledger := new(mockLedger)
		ledger.On("Get", mock.Anything, models.AccountSubject("acct-1"), models.KindLoginFailure).Return(&models.AttemptRecord{
			Kind:        models.KindLoginFailure,
			Subject:     models.AccountSubject("acct-1"),
			FailedCount: 5,
			LockedUntil: &until,
			LastOrigin:  "203.0.113.9",
		}, nil)

		rr := send(newRouter(t, ledger), http.MethodGet, "/admin/lockouts/LOGIN_FAILURE/account:acct-1", true)

		require.Equal(t, http.StatusOK, rr.Code)
		var got RecordResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, "LOGIN_FAILURE", got.Kind)
		assert.Equal(t, "account:acct-1", got.Subject)
		assert.Equal(t, 5, got.FailedCount)
		require.NotNil(t, got.LockedUntil)
		assert.True(t, until.Equal(*got.LockedUntil))
	})

	t.Run("missing record is not found", func(t *testing.T) {
		ledger := new(mockLedger)
		ledger.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

		rr := send(newRouter(t, ledger), http.MethodGet, "/admin/lockouts/LOGIN_FAILURE/account:acct-1", true)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

type failingHistory struct{}

func (failingHistory) List(context.Context, audit.Filter) ([]audit.Event, error) {
	return nil, io.ErrUnexpectedEOF
}

func TestHandleAudit(t *testing.T) {
	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	history := auditMemory.NewInMemoryStore()
	for i, e := range []audit.Event{
		{Action: string(audit.EventLoginFailed), Email: "a@x.com", Origin: "203.0.113.9"},
		{Action: string(audit.EventAccountLocked), Email: "a@x.com", Origin: "203.0.113.9"},
		{Action: string(audit.EventLoginFailed), Email: "b@x.com", Origin: "198.51.100.2"},
	} {
		e.Timestamp = base.Add(time.Duration(i) * time.Minute)
		e.Category = audit.AuditEvent(e.Action).Category()
		require.NoError(t, history.Append(context.Background(), e))
	}
	router := newRouterWithHistory(t, new(mockLedger), history)

	decode := func(t *testing.T, rr *httptest.ResponseRecorder) AuditResponse {
		t.Helper()
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var got AuditResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		return got
	}

	t.Run("filters by email newest first", func(t *testing.T) {
		got := decode(t, send(router, http.MethodGet, "/admin/audit?email=A@X.com", true))
		require.Len(t, got.Events, 2)
		assert.Equal(t, string(audit.EventAccountLocked), got.Events[0].Action)
		assert.Equal(t, string(audit.CategorySecurity), got.Events[0].Category)
	})

	t.Run("filters by origin and since", func(t *testing.T) {
		got := decode(t, send(router, http.MethodGet,
			"/admin/audit?origin=203.0.113.9&since=2026-05-04T10:01:00Z", true))
		require.Len(t, got.Events, 1)
		assert.Equal(t, string(audit.EventAccountLocked), got.Events[0].Action)
	})

	t.Run("limit caps the page", func(t *testing.T) {
		got := decode(t, send(router, http.MethodGet, "/admin/audit?limit=1", true))
		require.Len(t, got.Events, 1)
		assert.Equal(t, "b@x.com", got.Events[0].Email)
	})

	t.Run("empty result is an empty list", func(t *testing.T) {
		rr := send(router, http.MethodGet, "/admin/audit?email=nobody@x.com", true)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"events":[]}`, rr.Body.String())
	})

	t.Run("rejects bad parameters", func(t *testing.T) {
		for _, q := range []string{"limit=0", "limit=abc", "limit=501", "since=yesterday"} {
			rr := send(router, http.MethodGet, "/admin/audit?"+q, true)
			assert.Equal(t, http.StatusBadRequest, rr.Code, q)
		}
	})

	t.Run("requires admin token", func(t *testing.T) {
		rr := send(router, http.MethodGet, "/admin/audit", false)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("store failure is internal", func(t *testing.T) {
		rr := send(newRouterWithHistory(t, new(mockLedger), failingHistory{}), http.MethodGet, "/admin/audit", true)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}
