package models

import (
	"time"

	"github.com/google/uuid"
)

// TTL is how long a reset link stays valid.
const TTL = 15 * time.Minute

// ResetToken is the stored form of a reset link token. Only the digest of the
// opaque value is persisted.
type ResetToken struct {
	Digest    string
	AccountID uuid.UUID
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired reports whether the token is past its expiry at now.
func (t *ResetToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Issued is returned once to the caller; Token is the only copy of the plaintext.
type Issued struct {
	Token     string
	AccountID uuid.UUID
	ExpiresAt time.Time
}
