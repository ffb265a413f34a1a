package notify

import "time"

// AccountLocked is sent when an account crosses a lockout threshold.
type AccountLocked struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Kind      string    `json:"kind"`
	Until     time.Time `json:"until"`
	Origin    string    `json:"origin"`
	At        time.Time `json:"at"`
}

// OriginLocked is sent when a network origin crosses a lockout threshold.
type OriginLocked struct {
	Origin string    `json:"origin"`
	Kind   string    `json:"kind"`
	Until  time.Time `json:"until"`
	At     time.Time `json:"at"`
}

// ResetRequested carries the reset link token to the delivery side. Token is
// the plaintext value and must never be logged.
type ResetRequested struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
