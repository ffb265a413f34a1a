// Package service is the authentication orchestrator. It sequences lock
// checks, credential verification, attempt recording, token issuance, reset
// links, audit and operator notifications.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"lockgate/internal/auth/models"
	lmodels "lockgate/internal/lockout/models"
	"lockgate/internal/notify"
	"lockgate/internal/platform/metrics"
	"lockgate/internal/platform/tracer"
	rmodels "lockgate/internal/resettoken/models"
	"lockgate/internal/token"
	"lockgate/pkg/platform/audit"
	"lockgate/pkg/platform/middleware/requesttime"
	"lockgate/pkg/secrets"
)

// UserStore is the User Directory.
// Error Contract: Find and Delete return sentinel.ErrNotFound when the account doesn't exist.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	Save(ctx context.Context, account *models.Account) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Ledger counts failed attempts and reports lock state.
type Ledger interface {
	RecordFailure(ctx context.Context, subject lmodels.Subject, kind lmodels.EventKind, origin string) (*lmodels.Outcome, error)
	RecordSuccess(ctx context.Context, subject lmodels.Subject, kind lmodels.EventKind) error
	IsLocked(ctx context.Context, subject lmodels.Subject, kind lmodels.EventKind) (bool, error)
}

type TokenIssuer interface {
	IssueAccessToken(ctx context.Context, subject, role string) (*token.Issued, error)
	IssueRefreshToken(ctx context.Context, subject string) (*token.Issued, error)
	Verify(ctx context.Context, raw, expectedSubject string, class token.Class) (*token.Claims, error)
}

// ResetTokens issues and redeems reset links. Redeem removes the token, so
// of concurrent redemptions of one token only a single call returns it.
type ResetTokens interface {
	Issue(ctx context.Context, accountID uuid.UUID) (*rmodels.Issued, error)
	Redeem(ctx context.Context, raw string) (*rmodels.ResetToken, error)
	DeleteForAccount(ctx context.Context, accountID uuid.UUID) error
}

// Notifier delivers operator and user notifications. Calls are best-effort
// and must not block the request.
type Notifier interface {
	NotifyAccountLocked(ctx context.Context, n notify.AccountLocked)
	NotifyOriginLocked(ctx context.Context, n notify.OriginLocked)
	NotifyResetRequested(ctx context.Context, n notify.ResetRequested)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	users    UserStore
	ledger   Ledger
	tokens   TokenIssuer
	resets   ResetTokens
	notifier Notifier

	auditPublisher AuditPublisher
	audit          *audit.Logger
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         tracer.Tracer
	clock          requesttime.Clock

	bcryptCost int
	dummyHash  string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithClock(c requesttime.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithBcryptCost sets the cost for new password hashes and the timing dummy.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

func New(users UserStore, ledger Ledger, tokens TokenIssuer, resets ResetTokens, notifier Notifier, opts ...Option) (*Service, error) {
	switch {
	case users == nil:
		return nil, fmt.Errorf("user store is required")
	case ledger == nil:
		return nil, fmt.Errorf("attempt ledger is required")
	case tokens == nil:
		return nil, fmt.Errorf("token issuer is required")
	case resets == nil:
		return nil, fmt.Errorf("reset token service is required")
	case notifier == nil:
		return nil, fmt.Errorf("notifier is required")
	}

	svc := &Service{
		users:      users,
		ledger:     ledger,
		tokens:     tokens,
		resets:     resets,
		notifier:   notifier,
		clock:      requesttime.Now,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.tracer == nil {
		svc.tracer = tracer.NewNoop()
	}
	svc.audit = audit.NewLogger(svc.logger, svc.auditPublisher, "lockgate")

	// Unknown-account logins compare against this hash so they cost the same
	// as a real verification.
	dummy, err := secrets.HashPassword("lockgate-timing-equalizer", svc.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	svc.dummyHash = dummy
	return svc, nil
}
