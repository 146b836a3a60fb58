package jobsculpt_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"

	"github.com/goliatone/go-jobsculpt"
)

func TestStatusCodeByCategory(t *testing.T) {
	cases := []struct {
		category goerrors.Category
		code     int
	}{
		{goerrors.CategoryValidation, http.StatusBadRequest},
		{goerrors.CategoryBadInput, http.StatusBadRequest},
		{goerrors.CategoryConflict, http.StatusBadRequest},
		{goerrors.CategoryAuth, http.StatusUnauthorized},
		{goerrors.CategoryAuthz, http.StatusForbidden},
		{goerrors.CategoryNotFound, http.StatusNotFound},
		{goerrors.CategoryRateLimit, http.StatusTooManyRequests},
		{goerrors.CategoryExternal, http.StatusInternalServerError},
		{goerrors.CategoryInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(string(tc.category), func(t *testing.T) {
			err := goerrors.New("x", tc.category)
			assert.Equal(t, tc.code, jobsculpt.StatusCode(err))
			assert.Equal(t, tc.code, jobsculpt.AsError(err).Code)
			assert.Zero(t, err.Code, "AsError must not mutate the source")
		})
	}

	assert.Equal(t, http.StatusInternalServerError, jobsculpt.StatusCode(errors.New("plain")))
}

func TestSentinelsKeepIdentityThroughWrapping(t *testing.T) {
	cause := errors.New("tokeninfo: 400 bad request")
	err := fmt.Errorf("%w: %w", jobsculpt.ErrFederationFailed, cause)

	assert.True(t, errors.Is(err, jobsculpt.ErrFederationFailed))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, jobsculpt.ErrInvalidCredentials))
	assert.Nil(t, jobsculpt.ErrFederationFailed.Source)
	assert.Nil(t, jobsculpt.ErrFederationFailed.Metadata)

	wrapped := fmt.Errorf("login: %w", err)
	assert.True(t, errors.Is(wrapped, jobsculpt.ErrFederationFailed))
	assert.True(t, goerrors.IsCategory(wrapped, goerrors.CategoryExternal))
	assert.Equal(t, jobsculpt.TextCodeFederationFailed, jobsculpt.AsError(wrapped).TextCode)
}

func TestAsError(t *testing.T) {
	assert.Nil(t, jobsculpt.AsError(nil))

	plain := errors.New("disk full")
	rich := jobsculpt.AsError(plain)
	assert.Equal(t, goerrors.CategoryInternal, rich.Category)
	assert.Equal(t, http.StatusInternalServerError, rich.Code)
	assert.Equal(t, "Server error", rich.Message)
	assert.True(t, errors.Is(rich, plain))

	assert.False(t, goerrors.IsCategory(plain, goerrors.CategoryInternal))
	assert.True(t, goerrors.IsCategory(jobsculpt.ErrJobNotFound, goerrors.CategoryNotFound))
	assert.Same(t, jobsculpt.ErrJobNotFound, jobsculpt.AsError(fmt.Errorf("load: %w", jobsculpt.ErrJobNotFound)))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "Job not found", jobsculpt.ErrJobNotFound.Message)
	assert.Equal(t, "[not_found:JOB_NOT_FOUND] Job not found", jobsculpt.ErrJobNotFound.Error())

	err := goerrors.Wrap(errors.New("boom"), goerrors.CategoryInternal, "failed to save")
	assert.Equal(t, "failed to save", err.Message)
	assert.Contains(t, err.Error(), "source: boom")
}

func TestSentinelCodes(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, jobsculpt.ErrNotJobOwner.Code)
	assert.Equal(t, http.StatusBadRequest, jobsculpt.ErrAlreadyApplied.Code)
	assert.Equal(t, http.StatusBadRequest, jobsculpt.ErrDuplicateEmail.Code)
	assert.Equal(t, http.StatusForbidden, jobsculpt.ErrEmployerOnly.Code)
	assert.Equal(t, http.StatusTooManyRequests, jobsculpt.ErrTooManyRequests.Code)
	assert.Equal(t, "Invalid Credentials", jobsculpt.ErrInvalidCredentials.Message)
}

func TestTokenErrorHelpers(t *testing.T) {
	assert.True(t, jobsculpt.IsTokenExpiredError(fmt.Errorf("%w: jwt", jobsculpt.ErrTokenExpired)))
	assert.True(t, jobsculpt.IsMalformedError(fmt.Errorf("%w: jwt", jobsculpt.ErrTokenMalformed)))
	assert.False(t, jobsculpt.IsTokenExpiredError(nil))
	assert.False(t, jobsculpt.IsMalformedError(jobsculpt.ErrTokenExpired))
}
