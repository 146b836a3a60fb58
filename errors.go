package jobsculpt

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeDuplicateEmail        = "DUPLICATE_EMAIL"
	TextCodeInvalidCredentials    = goerrors.TextCodeInvalidCredentials
	TextCodeFederationFailed      = "FEDERATION_FAILED"
	TextCodeInvalidOrExpiredToken = "INVALID_OR_EXPIRED_TOKEN"
	TextCodeTokenExpired          = goerrors.TextCodeTokenExpired
	TextCodeTokenMalformed        = goerrors.TextCodeTokenMalformed
	TextCodeTokenAlreadyUsed      = goerrors.TextCodeTokenAlreadyUsed
	TextCodeTokenRevoked          = "TOKEN_REVOKED"
	TextCodeMissingToken          = "MISSING_TOKEN"
	TextCodeDeviceNotFound        = "DEVICE_NOT_FOUND"
	TextCodeUserNotFound          = "USER_NOT_FOUND"
	TextCodeSkillLimit            = "SKILL_LIMIT_REACHED"
	TextCodeSkillExists           = "SKILL_EXISTS"
	TextCodeSkillNotFound         = "SKILL_NOT_FOUND"
	TextCodeJobNotFound           = "JOB_NOT_FOUND"
	TextCodeNotJobOwner           = "NOT_JOB_OWNER"
	TextCodeEmployerOnly          = "EMPLOYER_ONLY"
	TextCodeAlreadyApplied        = "ALREADY_APPLIED"
	TextCodeUsernameExhausted     = "USERNAME_EXHAUSTED"
	TextCodeUsernameTaken         = "USERNAME_TAKEN"
	TextCodeInvalidRole           = "INVALID_ROLE"
	TextCodeEmptyPassword         = goerrors.TextCodeEmptyPassword
	TextCodePasswordMismatch      = "PASSWORD_MISMATCH"
	TextCodeInvalidState          = "INVALID_STATE"
	TextCodeStateExpired          = "STATE_EXPIRED"
)

var (
	ErrDuplicateEmail = goerrors.New("User already exists", goerrors.CategoryConflict).
				WithTextCode(TextCodeDuplicateEmail).
				WithCode(goerrors.CodeBadRequest)

	// ErrInvalidCredentials is returned for unknown accounts and wrong
	// passwords alike.
	ErrInvalidCredentials = goerrors.New("Invalid Credentials", goerrors.CategoryValidation).
				WithTextCode(TextCodeInvalidCredentials).
				WithCode(goerrors.CodeBadRequest)

	ErrFederationFailed = goerrors.New("Identity provider rejected the token", goerrors.CategoryExternal).
				WithTextCode(TextCodeFederationFailed).
				WithCode(goerrors.CodeInternal)

	ErrInvalidOrExpiredToken = goerrors.New("Invalid or expired token", goerrors.CategoryValidation).
					WithTextCode(TextCodeInvalidOrExpiredToken).
					WithCode(goerrors.CodeBadRequest)

	// ErrTokenAlreadyUsed marks a single use token presented a second time
	ErrTokenAlreadyUsed = goerrors.New("Token already used", goerrors.CategoryValidation).
				WithTextCode(TextCodeTokenAlreadyUsed).
				WithCode(goerrors.CodeBadRequest)

	ErrTokenExpired = goerrors.New("Token has expired", goerrors.CategoryAuth).
			WithTextCode(TextCodeTokenExpired).
			WithCode(goerrors.CodeUnauthorized)

	ErrTokenMalformed = goerrors.New("Token is not valid", goerrors.CategoryAuth).
				WithTextCode(TextCodeTokenMalformed).
				WithCode(goerrors.CodeUnauthorized)

	ErrTokenRevoked = goerrors.New("Token has been revoked", goerrors.CategoryAuth).
			WithTextCode(TextCodeTokenRevoked).
			WithCode(goerrors.CodeUnauthorized)

	ErrMissingToken = goerrors.New("No token, authorization denied", goerrors.CategoryAuth).
			WithTextCode(TextCodeMissingToken).
			WithCode(goerrors.CodeUnauthorized)

	ErrDeviceNotFound = goerrors.New("Device not found", goerrors.CategoryNotFound).
				WithTextCode(TextCodeDeviceNotFound).
				WithCode(goerrors.CodeNotFound)

	ErrUserNotFound = goerrors.New("User not found", goerrors.CategoryNotFound).
			WithTextCode(TextCodeUserNotFound).
			WithCode(goerrors.CodeNotFound)

	ErrSkillLimitReached = goerrors.New(fmt.Sprintf("You can add a maximum of %d skills", MaxUserSkills), goerrors.CategoryValidation).
				WithTextCode(TextCodeSkillLimit).
				WithCode(goerrors.CodeBadRequest)

	ErrSkillExists = goerrors.New("Skill already exists", goerrors.CategoryConflict).
			WithTextCode(TextCodeSkillExists).
			WithCode(goerrors.CodeBadRequest)

	ErrSkillNotFound = goerrors.New("Skill not found", goerrors.CategoryNotFound).
				WithTextCode(TextCodeSkillNotFound).
				WithCode(goerrors.CodeNotFound)

	ErrJobNotFound = goerrors.New("Job not found", goerrors.CategoryNotFound).
			WithTextCode(TextCodeJobNotFound).
			WithCode(goerrors.CodeNotFound)

	ErrNotJobOwner = goerrors.New("Not authorized", goerrors.CategoryAuth).
			WithTextCode(TextCodeNotJobOwner).
			WithCode(goerrors.CodeUnauthorized)

	// ErrEmployerOnly is returned when a job seeker tries to post a job
	ErrEmployerOnly = goerrors.New("Only employers can post jobs", goerrors.CategoryAuthz).
			WithTextCode(TextCodeEmployerOnly).
			WithCode(goerrors.CodeForbidden)

	ErrAlreadyApplied = goerrors.New("Already applied", goerrors.CategoryConflict).
				WithTextCode(TextCodeAlreadyApplied).
				WithCode(goerrors.CodeBadRequest)

	ErrUsernameExhausted = goerrors.New("Could not allocate a unique username", goerrors.CategoryInternal).
				WithTextCode(TextCodeUsernameExhausted).
				WithCode(goerrors.CodeInternal)

	ErrUsernameTaken = goerrors.New("Username already exists", goerrors.CategoryConflict).
				WithTextCode(TextCodeUsernameTaken).
				WithCode(goerrors.CodeBadRequest)

	ErrInvalidRole = goerrors.New("Invalid role", goerrors.CategoryValidation).
			WithTextCode(TextCodeInvalidRole).
			WithCode(goerrors.CodeBadRequest)

	ErrNoEmptyString = goerrors.New("Password must not be empty", goerrors.CategoryValidation).
				WithTextCode(TextCodeEmptyPassword).
				WithCode(goerrors.CodeBadRequest)

	ErrMismatchedHashAndPassword = goerrors.New("Password does not match", goerrors.CategoryAuth).
					WithTextCode(TextCodePasswordMismatch).
					WithCode(goerrors.CodeUnauthorized)

	// ErrInvalidState is returned when the OAuth state does not verify
	ErrInvalidState = goerrors.New("Invalid OAuth state", goerrors.CategoryBadInput).
			WithTextCode(TextCodeInvalidState).
			WithCode(goerrors.CodeBadRequest)

	// ErrStateExpired is joined with ErrInvalidState when the state is stale
	ErrStateExpired = goerrors.New("OAuth state expired", goerrors.CategoryBadInput).
			WithTextCode(TextCodeStateExpired).
			WithCode(goerrors.CodeBadRequest)
)

// StatusCode returns the HTTP status for err. Errors without a category
// are internal.
func StatusCode(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return http.StatusInternalServerError
	}
	if richErr.Code != 0 {
		return richErr.Code
	}
	return statusFromCategory(richErr.Category)
}

func statusFromCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput, goerrors.CategoryConflict:
		return goerrors.CodeBadRequest
	case goerrors.CategoryAuth:
		return goerrors.CodeUnauthorized
	case goerrors.CategoryAuthz:
		return goerrors.CodeForbidden
	case goerrors.CategoryNotFound:
		return goerrors.CodeNotFound
	case goerrors.CategoryRateLimit:
		return goerrors.CodeTooManyRequests
	default:
		return goerrors.CodeInternal
	}
}

// AsError returns the first categorized error in err's chain with its HTTP
// status filled in. Uncategorized errors become internal errors.
func AsError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "Server error").
			WithCode(goerrors.CodeInternal)
	}

	if richErr.Code == 0 {
		richErr = richErr.Clone().WithCode(statusFromCategory(richErr.Category))
	}
	return richErr
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed")
}
