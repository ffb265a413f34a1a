package testutil

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	authmodels "lockgate/internal/auth/models"
)

// TestIDs provides fixed IDs for deterministic test data.
var TestIDs = struct {
	Account1 uuid.UUID
	Account2 uuid.UUID
}{
	Account1: uuid.MustParse("11111111-1111-1111-1111-111111111111"),
	Account2: uuid.MustParse("22222222-2222-2222-2222-222222222222"),
}

// AccountBuilder builds User Directory accounts for tests. Passwords are
// hashed at the minimum bcrypt cost.
type AccountBuilder struct {
	account  *authmodels.Account
	password string
}

func NewAccountBuilder() *AccountBuilder {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &AccountBuilder{
		account: &authmodels.Account{
			ID:        uuid.New(),
			Email:     "test@example.com",
			Role:      authmodels.RoleUser,
			CreatedAt: now,
			UpdatedAt: now,
		},
		password: "test-password-123",
	}
}

func (b *AccountBuilder) WithID(id uuid.UUID) *AccountBuilder {
	b.account.ID = id
	return b
}

func (b *AccountBuilder) WithEmail(email string) *AccountBuilder {
	b.account.Email = authmodels.NormalizeEmail(email)
	return b
}

func (b *AccountBuilder) WithPassword(password string) *AccountBuilder {
	b.password = password
	return b
}

func (b *AccountBuilder) Admin() *AccountBuilder {
	b.account.Role = authmodels.RoleAdmin
	return b
}

// Build hashes the password and returns the account. It panics on hashing
// failure, which only happens for passwords over bcrypt's 72-byte limit.
func (b *AccountBuilder) Build() *authmodels.Account {
	hash, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	a := *b.account
	a.PasswordHash = string(hash)
	return &a
}
