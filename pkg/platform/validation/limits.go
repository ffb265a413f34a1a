package validation

import (
	"fmt"
	"unicode/utf8"

	dErrors "lockgate/pkg/domain-errors"
)

const (
	// MaxBodySize caps JSON request bodies.
	MaxBodySize = 64 << 10

	// MaxOriginLength bounds an origin before it becomes a ledger subject.
	MaxOriginLength = 64

	// MaxSubjectLength bounds any ledger subject value.
	MaxSubjectLength = 128
)

// CheckLength rejects values longer than max bytes.
func CheckLength(field, value string, max int) error {
	if len(value) <= max {
		return nil
	}
	return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", field, max))
}

// Truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
