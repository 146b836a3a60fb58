package jobsculpt

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

type FinalizePasswordResetMessage struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (m FinalizePasswordResetMessage) Type() string { return "user.password_reset_finalize" }

func (m FinalizePasswordResetMessage) Validate() error {
	err := validation.ValidateStruct(&m,
		validation.Field(&m.Token, validation.Required),
		validation.Field(&m.Password, validation.Required, validation.Length(1, 72)),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, validationMessage(err))
	}
	return nil
}

// FinalizePasswordResetHandler sets a new password for the holder of a
// reset token. Tokens are single use: the token id is revoked before the
// password is stored.
type FinalizePasswordResetHandler struct {
	repo        RepositoryManager
	tokens      TokenService
	revocations RevocationStore
	hasher      PasswordAuthenticator
	activity    ActivitySink
	logger      Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager, tokens TokenService, revocations RevocationStore) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:        repo,
		tokens:      tokens,
		revocations: revocations,
		hasher:      BcryptHasher{},
		activity:    noopActivitySink{},
		logger:      defLogger{},
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) WithPasswordHasher(hasher PasswordAuthenticator) *FinalizePasswordResetHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryInternal, "context cancelled during password reset finalization")
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	claims, err := h.tokens.ValidatePurpose(event.Token, PurposePasswordReset)
	if err != nil {
		h.recordFailure(ctx, "", err)
		return fmt.Errorf("%w: %w", ErrInvalidOrExpiredToken, err)
	}

	id, err := parseUserID(claims.UserID())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOrExpiredToken, err)
	}

	passwordHash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return err
		}
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	// the token id is claimed before the write so concurrent resets with
	// the same token cannot both succeed
	claimed, err := h.revocations.RevokeOnce(ctx, claims.TokenID(), claims.Expires())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to claim password reset token")
	}
	if !claimed {
		h.recordFailure(ctx, claims.UserID(), ErrTokenAlreadyUsed)
		return fmt.Errorf("%w: %w", ErrInvalidOrExpiredToken, ErrTokenAlreadyUsed)
	}

	if err := h.repo.Users().ResetPassword(ctx, id, passwordHash); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %w", ErrInvalidOrExpiredToken, err)
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password in database")
	}

	h.recordActivity(ctx, claims)

	return nil
}

func (h *FinalizePasswordResetHandler) recordActivity(ctx context.Context, claims *JWTClaims) {
	event := ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		Actor: ActorRef{
			ID:   claims.UserID(),
			Type: "user",
		},
		UserID: claims.UserID(),
		Metadata: map[string]any{
			"jti": claims.TokenID(),
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password reset", "error", err)
	}
}

func (h *FinalizePasswordResetHandler) recordFailure(ctx context.Context, userID string, cause error) {
	event := ActivityEvent{
		EventType: ActivityEventPasswordResetFailure,
		Actor:     ActorRef{ID: userID, Type: "user"},
		UserID:    userID,
		Metadata: map[string]any{
			"error": cause.Error(),
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password reset", "error", err)
	}
}

// ResetPassword stores a new password for the holder of a valid reset token
func (s *Auther) ResetPassword(ctx context.Context, token, password string) error {
	return NewFinalizePasswordResetHandler(s.repo, s.tokenService, s.revocations).
		WithPasswordHasher(s.hasher).
		WithActivitySink(s.activitySink).
		WithLogger(s.logger).
		Execute(ctx, FinalizePasswordResetMessage{Token: token, Password: password})
}
