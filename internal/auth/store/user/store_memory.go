package user

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"lockgate/internal/auth/models"
	"lockgate/pkg/platform/sentinel"
)

// Error Contract:
// - Find and Delete return sentinel.ErrNotFound when the account does not exist
// - Save returns sentinel.ErrDuplicate when another account holds the email
// - Returned accounts are copies; mutate and Save to persist

// InMemoryUserStore keeps accounts in process.
type InMemoryUserStore struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*models.Account
}

func New() *InMemoryUserStore {
	return &InMemoryUserStore{accounts: make(map[uuid.UUID]*models.Account)}
}

func (s *InMemoryUserStore) Save(_ context.Context, account *models.Account) error {
	if account == nil {
		return fmt.Errorf("account is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	email := models.NormalizeEmail(account.Email)
	for id, existing := range s.accounts {
		if id != account.ID && models.NormalizeEmail(existing.Email) == email {
			return fmt.Errorf("account already exists: %w", sentinel.ErrDuplicate)
		}
	}
	cp := *account
	s.accounts[account.ID] = &cp
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	email = models.NormalizeEmail(email)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if models.NormalizeEmail(a.Email) == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryUserStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}
	delete(s.accounts, id)
	return nil
}
