package jobsculpt

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateSignerExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	signer := NewStateSigner([]byte("state-signing-key"), time.Minute)
	signer.now = func() time.Time { return now }

	state, nonce, err := signer.Issue()
	require.NoError(t, err)

	now = now.Add(59 * time.Second)
	assert.NoError(t, signer.Verify(state, nonce))

	now = now.Add(2 * time.Second)
	err = signer.Verify(state, nonce)
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.True(t, errors.Is(err, ErrStateExpired))
	assert.Equal(t, TextCodeInvalidState, AsError(err).TextCode)
	assert.Nil(t, ErrInvalidState.Metadata)

	assert.False(t, errors.Is(signer.Verify(state, "other"), ErrStateExpired))
}

func TestGoogleClaimsVerified(t *testing.T) {
	assert.True(t, googleClaims{EmailVerified: true}.verified())
	assert.True(t, googleClaims{EmailVerified: "true"}.verified())
	assert.False(t, googleClaims{EmailVerified: "nope"}.verified())
	assert.False(t, googleClaims{}.verified())
}
