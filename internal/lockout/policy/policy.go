// Package policy maps event kinds to lockout thresholds. Every threshold in the
// service lives in the one table below.
package policy

import (
	"time"

	"lockgate/internal/lockout/models"
)

// AxisAny matches either axis when no axis-specific rule exists.
const AxisAny models.Axis = "*"

type ruleKey struct {
	kind models.EventKind
	axis models.Axis
}

// Table resolves a rule for an (event kind, axis) pair.
type Table struct {
	rules    map[ruleKey]models.Rule
	fallback models.Rule
}

// Default returns the production lockout table.
func Default() *Table {
	login := models.Rule{MaxAttempts: 5, LockoutDuration: 15 * time.Minute, ResetOnExpiry: true}
	return &Table{
		rules: map[ruleKey]models.Rule{
			{models.KindLoginFailure, models.AxisAccount}: login,
			{models.KindLoginFailure, models.AxisOrigin}:  login,
			{models.KindResetRequestUnverified, AxisAny}:  {MaxAttempts: 3, LockoutDuration: 15 * time.Minute, ResetOnExpiry: true},
			{models.KindResetTokenInvalid, AxisAny}:       {MaxAttempts: 5, LockoutDuration: 15 * time.Minute, ResetOnExpiry: true},
			{models.KindPasswordChangeRejected, AxisAny}:  {MaxAttempts: 3, LockoutDuration: 15 * time.Minute, ResetOnExpiry: true},
			{models.KindPasswordChangeCompleted, AxisAny}: {MaxAttempts: 2, LockoutDuration: 24 * time.Hour, ResetOnExpiry: true, Window: 24 * time.Hour},
		},
		fallback: login,
	}
}

// Lookup returns the rule for kind on axis. Axis-specific rules win over
// AxisAny; unknown kinds get the account LOGIN_FAILURE rule.
func (t *Table) Lookup(kind models.EventKind, axis models.Axis) models.Rule {
	if r, ok := t.rules[ruleKey{kind, axis}]; ok {
		return r
	}
	if r, ok := t.rules[ruleKey{kind, AxisAny}]; ok {
		return r
	}
	return t.fallback
}

// With returns a copy of the table with rule set for (kind, axis).
func (t *Table) With(kind models.EventKind, axis models.Axis, rule models.Rule) *Table {
	rules := make(map[ruleKey]models.Rule, len(t.rules)+1)
	for k, v := range t.rules {
		rules[k] = v
	}
	rules[ruleKey{kind, axis}] = rule
	return &Table{rules: rules, fallback: t.fallback}
}
