package jobsculpt

import (
	"context"
	"fmt"
	"net/url"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type AccountVerificationMessage struct {
	UserID     string                               `json:"userId"`
	OnResponse func(a *AccountVerificationResponse) `json:"-"`
}

func (m AccountVerificationMessage) Type() string { return "user.account_verification" }

type AccountVerificationResponse struct {
	Link     string `json:"-"`
	Verified bool   `json:"verified"`
	Sent     bool   `json:"sent"`
}

// AccountVerificationHandler mails an email verification link. Accounts that
// are already verified get nothing.
type AccountVerificationHandler struct {
	repo     RepositoryManager
	tokens   TokenService
	notifier Notifier
	ttl      time.Duration
	linkBase string
	logger   Logger
}

func NewAccountVerificationHandler(repo RepositoryManager, tokens TokenService, notifier Notifier, ttl time.Duration, linkBase string) *AccountVerificationHandler {
	return &AccountVerificationHandler{
		repo:     repo,
		tokens:   tokens,
		notifier: notifier,
		ttl:      ttl,
		linkBase: linkBase,
		logger:   defLogger{},
	}
}

func (h *AccountVerificationHandler) WithLogger(logger Logger) *AccountVerificationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *AccountVerificationHandler) Execute(ctx context.Context, event AccountVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryInternal, "context cancelled during account verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *AccountVerificationHandler) execute(ctx context.Context, event AccountVerificationMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	id, err := parseUserID(event.UserID)
	if err != nil {
		return err
	}

	user, err := h.repo.Users().GetProfile(ctx, id)
	if err != nil {
		return err
	}

	resp := &AccountVerificationResponse{Verified: user.EmailVerified}

	if !user.EmailVerified {
		token, _, err := h.tokens.Generate(user.Identity(), TokenOptions{
			TTL:     h.ttl,
			Purpose: PurposeVerifyEmail,
		})
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create verification token")
		}

		resp.Link = h.linkBase + "?token=" + url.QueryEscape(token)

		if err := h.notifier.SendVerificationLink(ctx, user.Email, resp.Link); err != nil {
			h.logger.Error("verification email failed", "user_id", user.ID.String(), "error", err)
			return goerrors.Wrap(err, goerrors.CategoryExternal, "Failed to send verification email")
		}
		resp.Sent = true
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

// SendVerificationLink mails a verification link to the user
func (s *Auther) SendVerificationLink(ctx context.Context, userID string) error {
	var resp *AccountVerificationResponse
	err := NewAccountVerificationHandler(
		s.repo,
		s.tokenService,
		s.notifier,
		s.cfg.GetVerificationTokenExpiration(),
		s.backendURL("/api/auth/verify-email"),
	).WithLogger(s.logger).Execute(ctx, AccountVerificationMessage{
		UserID:     userID,
		OnResponse: func(r *AccountVerificationResponse) { resp = r },
	})
	if err != nil {
		return err
	}

	if resp.Sent {
		s.emitAuthEvent(ctx, ActivityEventVerificationSent, ActorRef{ID: userID, Type: "user"}, userID, nil)
	}

	return nil
}

// VerifyEmail marks the token holder's email verified and returns the page
// the browser should land on
func (s *Auther) VerifyEmail(ctx context.Context, token string) (string, error) {
	claims, err := s.tokenService.ValidatePurpose(token, PurposeVerifyEmail)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidOrExpiredToken, err)
	}

	id, err := parseUserID(claims.UserID())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidOrExpiredToken, err)
	}

	if err := s.repo.Users().MarkEmailVerified(ctx, id); err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%w: %w", ErrInvalidOrExpiredToken, err)
		}
		return "", err
	}

	s.emitAuthEvent(ctx, ActivityEventEmailVerified, ActorRef{ID: claims.UserID(), Type: "user"}, claims.UserID(), nil)

	return s.frontendURL("/login"), nil
}
