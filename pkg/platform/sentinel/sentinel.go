// Package sentinel holds the errors stores return for expected misses. The
// auth and reset services translate them into domain errors; any other store
// error is an infrastructure fault and fails closed.
package sentinel

import "errors"

var (
	// ErrNotFound: no account, reset token or ledger record for the key.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate: a unique key, such as an account email, is already taken.
	ErrDuplicate = errors.New("duplicate")
)
