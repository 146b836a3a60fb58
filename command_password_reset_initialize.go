package jobsculpt

import (
	"context"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

type InitializePasswordResetMessage struct {
	Email      string                                      `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse) `json:"-"`
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

func (p InitializePasswordResetMessage) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, validationMessage(err))
	}
	return nil
}

// InitializePasswordResetResponse is the same whether or not the account
// exists. Link is only filled for known accounts and never sent to clients.
type InitializePasswordResetResponse struct {
	Link    string
	Success bool
}

// InitializePasswordResetHandler issues a password reset token and mails
// the reset link
type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	tokens   TokenService
	notifier Notifier
	ttl      time.Duration
	linkBase string
	activity ActivitySink
	logger   Logger
}

// NewInitializePasswordResetHandler returns a handler. linkBase is the
// frontend page that accepts the token.
func NewInitializePasswordResetHandler(repo RepositoryManager, tokens TokenService, notifier Notifier, ttl time.Duration, linkBase string) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		tokens:   tokens,
		notifier: notifier,
		ttl:      ttl,
		linkBase: linkBase,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryInternal, "context cancelled during password reset initialization")
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &InitializePasswordResetResponse{Success: true}
	defer func() {
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
	}()

	user, err := h.repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		if isNotFound(err) {
			h.logger.Debug("password reset requested for unknown email")
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	token, _, err := h.tokens.Generate(user.Identity(), TokenOptions{
		TTL:     h.ttl,
		Purpose: PurposePasswordReset,
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset token")
	}

	resp.Link = h.linkBase + "?token=" + url.QueryEscape(token)

	h.record(ctx, ActivityEventPasswordResetRequest, user, nil)

	if err := h.notifier.SendPasswordReset(ctx, user.Email, resp.Link); err != nil {
		h.logger.Error("password reset notification failed", "user_id", user.ID.String(), "error", err)
		h.record(ctx, ActivityEventNotificationFailure, user, map[string]any{
			"kind":  "password-reset",
			"error": err.Error(),
		})
	}

	return nil
}

func (h *InitializePasswordResetHandler) record(ctx context.Context, eventType ActivityEventType, user *User, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:     user.ID.String(),
		Metadata:   meta,
		OccurredAt: time.Now(),
	}
	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password reset", "error", err)
	}
}

// ForgotPassword sends a reset link when the email belongs to an account.
// The outcome is the same for unknown emails.
func (s *Auther) ForgotPassword(ctx context.Context, email string) error {
	handler := NewInitializePasswordResetHandler(
		s.repo,
		s.tokenService,
		s.notifier,
		s.cfg.GetResetTokenExpiration(),
		s.frontendURL("/reset-password"),
	).WithActivitySink(s.activitySink).WithLogger(s.logger)

	if err := handler.Execute(ctx, InitializePasswordResetMessage{Email: email}); err != nil {
		if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
			s.logger.Error("ForgotPassword error", "error", err)
		}
		return err
	}
	return nil
}
