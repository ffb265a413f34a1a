// Package handler exposes the authentication orchestrator over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"lockgate/internal/auth/models"
	dErrors "lockgate/pkg/domain-errors"
	"lockgate/pkg/platform/httputil"
	"lockgate/pkg/platform/middleware/admin"
	"lockgate/pkg/requestcontext"
)

// resetRequestedMessage is returned for every reset request so the response
// never reveals whether the email is registered.
const resetRequestedMessage = "if the account exists, a reset link has been sent"

// Service is the authentication orchestrator.
type Service interface {
	Login(ctx context.Context, email, password string) (*models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken, newPassword string) error
	ChangePassword(ctx context.Context, subjectEmail, currentPassword, newPassword string) error
	CreateAccount(ctx context.Context, email, password, role string) (*models.Account, error)
	DeleteAccount(ctx context.Context, id uuid.UUID, actorID string) error
}

type Handler struct {
	auth   Service
	logger *slog.Logger
}

func New(auth Service, logger *slog.Logger) *Handler {
	return &Handler{auth: auth, logger: logger}
}

// Register mounts the public routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
	r.Post("/auth/refresh", h.HandleRefresh)
	r.Post("/auth/password/reset-request", h.HandleResetRequest)
	r.Post("/auth/password/reset", h.HandleResetPassword)
}

// RegisterAuthenticated mounts routes that need a bearer access token. The
// caller applies the auth middleware.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Post("/auth/password/change", h.HandleChangePassword)
}

// RegisterAdmin mounts operator routes. The caller applies the admin middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/accounts", h.HandleCreateAccount)
	r.Delete("/admin/accounts/{id}", h.HandleDeleteAccount)
}

// HandleLogin implements POST /auth/login.
//
// Input: { "email": "user@example.com", "password": "..." }
// Output: { "access_token": "...", "refresh_token": "...", "token_type": "Bearer", "expires_at": "..." }
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[models.LoginRequest](w, r, h.logger)
	if !ok {
		return
	}

	pair, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.logFailure(ctx, "login failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewTokenResponse(pair))
}

// HandleRefresh implements POST /auth/refresh. The refresh token is echoed
// back unchanged.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[models.RefreshRequest](w, r, h.logger)
	if !ok {
		return
	}

	pair, err := h.auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		h.logFailure(ctx, "refresh failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewTokenResponse(pair))
}

// HandleResetRequest implements POST /auth/password/reset-request. It answers
// 202 with the same body whether or not a link was sent.
func (h *Handler) HandleResetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[models.ResetRequestRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.auth.RequestPasswordReset(ctx, req.Email); err != nil {
		h.logFailure(ctx, "reset request failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, models.MessageResponse{Message: resetRequestedMessage})
}

// HandleResetPassword implements POST /auth/password/reset.
func (h *Handler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[models.ResetPasswordRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.auth.ResetPassword(ctx, req.Token, req.NewPassword); err != nil {
		h.logFailure(ctx, "password reset failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleChangePassword implements POST /auth/password/change for the bearer
// token's subject.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subject, err := httputil.RequireSubject(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.ChangePasswordRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.auth.ChangePassword(ctx, subject, req.CurrentPassword, req.NewPassword); err != nil {
		h.logFailure(ctx, "password change failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCreateAccount implements POST /admin/accounts.
func (h *Handler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[models.CreateAccountRequest](w, r, h.logger)
	if !ok {
		return
	}

	account, err := h.auth.CreateAccount(ctx, req.Email, req.Password, req.Role)
	if err != nil {
		h.logFailure(ctx, "create account failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.NewAccountResponse(account))
}

// HandleDeleteAccount implements DELETE /admin/accounts/{id}.
func (h *Handler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid account id"))
		return
	}

	if err := h.auth.DeleteAccount(ctx, id, admin.GetAdminActorID(ctx)); err != nil {
		h.logFailure(ctx, "delete account failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// logFailure logs expected rejections at warn and everything else at error.
func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}
