package jobsculpt

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"unicode"
)

// MaxUsernameAttempts bounds how many candidates registration tries
const MaxUsernameAttempts = 10

// UsernameGenerator returns the candidate username for attempt. Attempt 0
// should return base unchanged.
type UsernameGenerator func(base string, attempt int) string

// DefaultUsernameGenerator appends a random numeric suffix that widens with
// each attempt.
func DefaultUsernameGenerator(base string, attempt int) string {
	if attempt <= 0 {
		return base
	}
	lo := 1
	for i := 0; i < attempt && i < 6; i++ {
		lo *= 10
	}
	return base + strconv.Itoa(lo+rand.IntN(9*lo))
}

// getUsername returns username, or one derived from the email local part
func getUsername(username, email string) string {
	if username = strings.TrimSpace(username); username != "" {
		return username
	}

	local := email
	if i := strings.Index(email, "@"); i >= 0 {
		local = email[:i]
	}

	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}

	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}
