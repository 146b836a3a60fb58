package jobsculpt

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetUsername(t *testing.T) {
	cases := []struct {
		username string
		email    string
		want     string
	}{
		{"", "Alice.Smith@example.com", "alice.smith"},
		{"", "bob+jobs@example.com", "bobjobs"},
		{"  chosen  ", "bob@example.com", "chosen"},
		{"", "+++@example.com", "user"},
		{"", "no-at-sign", "no-at-sign"},
	}

	for _, tc := range cases {
		t.Run(tc.email, func(t *testing.T) {
			assert.Equal(t, tc.want, getUsername(tc.username, tc.email))
		})
	}
}

func TestDefaultUsernameGenerator(t *testing.T) {
	assert.Equal(t, "alice", DefaultUsernameGenerator("alice", 0))

	for attempt := 1; attempt <= MaxUsernameAttempts; attempt++ {
		got := DefaultUsernameGenerator("alice", attempt)
		suffix := strings.TrimPrefix(got, "alice")
		assert.NotEqual(t, got, suffix)

		n, err := strconv.Atoi(suffix)
		assert.NoError(t, err)

		digits := attempt + 1
		if digits > 7 {
			digits = 7
		}
		assert.Len(t, strconv.Itoa(n), digits, "attempt %d", attempt)
	}
}
