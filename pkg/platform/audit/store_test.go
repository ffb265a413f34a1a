package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFilterMatches(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := Event{
		Category:  CategorySecurity,
		Timestamp: at,
		SubjectID: "acct-1",
		Email:     "A@x.com",
		Action:    string(EventAccountLocked),
		Origin:    "203.0.113.5",
	}

	cases := map[string]struct {
		filter Filter
		want   bool
	}{
		"zero filter":          {Filter{}, true},
		"email ignores case":   {Filter{Email: "a@X.COM"}, true},
		"other subject":        {Filter{SubjectID: "acct-2"}, false},
		"origin":               {Filter{Origin: "203.0.113.5"}, true},
		"action mismatch":      {Filter{Action: string(EventLoginFailed)}, false},
		"category mismatch":    {Filter{Category: CategoryOperations}, false},
		"since is inclusive":   {Filter{Since: at}, true},
		"since after event":    {Filter{Since: at.Add(time.Second)}, false},
		"all fields must hold": {Filter{Email: "a@x.com", Origin: "198.51.100.1"}, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.filter.Matches(event))
		})
	}
}

func TestFilterEffectiveLimit(t *testing.T) {
	assert.Equal(t, MaxListLimit, Filter{}.EffectiveLimit())
	assert.Equal(t, MaxListLimit, Filter{Limit: -3}.EffectiveLimit())
	assert.Equal(t, MaxListLimit, Filter{Limit: MaxListLimit + 1}.EffectiveLimit())
	assert.Equal(t, 7, Filter{Limit: 7}.EffectiveLimit())
}
