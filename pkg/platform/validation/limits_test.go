package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "lockgate/pkg/domain-errors"
)

func TestCheckLength(t *testing.T) {
	assert.NoError(t, CheckLength("subject", "", MaxSubjectLength))
	assert.NoError(t, CheckLength("subject", strings.Repeat("a", MaxSubjectLength), MaxSubjectLength))

	err := CheckLength("subject", strings.Repeat("a", MaxSubjectLength+1), MaxSubjectLength)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.EqualError(t, err, "subject exceeds max length of 128")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "203.0.113.9", Truncate("203.0.113.9", MaxOriginLength))
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	// "é" is two bytes; a cut through it backs off to the rune start.
	assert.Equal(t, "ab", Truncate("abé", 3))
	assert.Len(t, Truncate(strings.Repeat("x", 200), MaxOriginLength), MaxOriginLength)
}

func TestOriginFitsSubject(t *testing.T) {
	// A truncated origin always passes the subject length check.
	assert.LessOrEqual(t, MaxOriginLength, MaxSubjectLength)
}
