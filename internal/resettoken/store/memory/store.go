package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"lockgate/internal/resettoken/models"
	"lockgate/pkg/platform/sentinel"
)

// Store keeps reset tokens in process, keyed by digest.
type Store struct {
	mu     sync.Mutex
	tokens map[string]*models.ResetToken
}

func New() *Store {
	return &Store{tokens: make(map[string]*models.ResetToken)}
}

// ReplaceForAccount removes every token of the owning account and stores t,
// as one step.
func (s *Store) ReplaceForAccount(_ context.Context, t *models.ResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteForAccountLocked(t.AccountID)
	cp := *t
	s.tokens[t.Digest] = &cp
	return nil
}

func (s *Store) FindByDigest(_ context.Context, digest string) (*models.ResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[digest]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// TakeByDigest removes the token and returns it.
func (s *Store) TakeByDigest(_ context.Context, digest string) (*models.ResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[digest]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	delete(s.tokens, digest)
	return t, nil
}

func (s *Store) DeleteByDigest(_ context.Context, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, digest)
	return nil
}

func (s *Store) DeleteForAccount(_ context.Context, accountID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteForAccountLocked(accountID), nil
}

func (s *Store) deleteForAccountLocked(accountID uuid.UUID) int {
	n := 0
	for digest, t := range s.tokens {
		if t.AccountID == accountID {
			delete(s.tokens, digest)
			n++
		}
	}
	return n
}

// CountForAccount is used by tests to check token exclusivity.
func (s *Store) CountForAccount(accountID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tokens {
		if t.AccountID == accountID {
			n++
		}
	}
	return n
}
