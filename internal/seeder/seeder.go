// Package seeder provisions accounts at startup: an optional bootstrap
// operator and, in development, a handful of demo users.
package seeder

import (
	"context"
	"fmt"
	"log/slog"

	"lockgate/internal/auth/models"
	dErrors "lockgate/pkg/domain-errors"
)

// AccountCreator is satisfied by the authentication service.
type AccountCreator interface {
	CreateAccount(ctx context.Context, email, password, role string) (*models.Account, error)
}

// Account is one account to provision.
type Account struct {
	Email    string
	Password string
	Role     string
}

// DemoPassword is shared by every demo account.
const DemoPassword = "demo-password-123"

// DemoAccounts returns the development fixtures.
func DemoAccounts() []Account {
	return []Account{
		{Email: "alice@example.com", Password: DemoPassword, Role: models.RoleUser},
		{Email: "bob@example.com", Password: DemoPassword, Role: models.RoleUser},
		{Email: "ops@example.com", Password: DemoPassword, Role: models.RoleAdmin},
	}
}

// Seeder creates accounts through the service so passwords are hashed and
// creation is audited like any other.
type Seeder struct {
	accounts AccountCreator
	logger   *slog.Logger
}

func New(accounts AccountCreator, logger *slog.Logger) *Seeder {
	return &Seeder{accounts: accounts, logger: logger}
}

// Seed creates each account, skipping ones that already exist. It returns
// how many were created.
func (s *Seeder) Seed(ctx context.Context, accounts []Account) (int, error) {
	created := 0
	for _, a := range accounts {
		_, err := s.accounts.CreateAccount(ctx, a.Email, a.Password, a.Role)
		switch {
		case err == nil:
			created++
		case dErrors.HasCode(err, dErrors.CodeConflict):
			s.logger.DebugContext(ctx, "seed account already exists", "role", a.Role)
		default:
			return created, fmt.Errorf("seed account: %w", err)
		}
	}
	if created > 0 {
		s.logger.InfoContext(ctx, "accounts seeded", "created", created)
	}
	return created, nil
}
