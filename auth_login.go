package jobsculpt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// LoginMessage signs in with an email or username and a password
type LoginMessage struct {
	Email      string `json:"email"`
	Username   string `json:"userName"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

func (m LoginMessage) Type() string { return "user.login" }

// Validate checks the message fields
func (m LoginMessage) Validate() error {
	err := validation.ValidateStruct(&m,
		validation.Field(&m.Password, validation.Required),
	)
	if err == nil && strings.TrimSpace(m.Email) == "" && strings.TrimSpace(m.Username) == "" {
		err = errors.New("email or userName is required")
	}
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "Invalid Credentials")
	}
	return nil
}

// Login verifies the password and issues a session token. Unknown accounts
// and wrong passwords fail with the same ErrInvalidCredentials. A device not
// seen before for this user is recorded and triggers one new device alert.
func (s *Auther) Login(ctx context.Context, msg LoginMessage, device DeviceRequest) (*AuthResult, error) {
	identifier := msg.Email
	if identifier == "" {
		identifier = msg.Username
	}

	if err := msg.Validate(); err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, err
	}

	user, err := s.repo.Users().GetByLogin(ctx, msg.Email, msg.Username)
	if err != nil && !isNotFound(err) {
		s.logger.Error("Login lookup error", "error", err)
		return nil, err
	}

	if err := s.comparePassword(user, msg.Password); err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromUser(user), userIDOf(user), map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, ErrInvalidCredentials
	}

	result, err := s.completeLogin(ctx, user, device, msg.RememberMe)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromUser(user), user.ID.String(), map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, s.actorFromUser(user), user.ID.String(), map[string]any{
		"identifier":  identifier,
		"remember_me": msg.RememberMe,
		"new_device":  result.NewDevice,
	})

	return result, nil
}

// OAuthLoginMessage signs in with an identity provider ID token
type OAuthLoginMessage struct {
	Token      string `json:"token"`
	Role       string `json:"role"`
	RememberMe bool   `json:"rememberMe"`
}

func (m OAuthLoginMessage) Type() string { return "user.oauth_login" }

// OAuthLogin exchanges the provider token for a federated identity. Any
// provider side failure yields ErrFederationFailed and no account is
// touched. Known federated ids log in like Login; unknown ones get a new
// verified account whose first device is recorded without an alert.
func (s *Auther) OAuthLogin(ctx context.Context, msg OAuthLoginMessage, device DeviceRequest) (*AuthResult, error) {
	if s.verifier == nil {
		return nil, fmt.Errorf("%w: provider not configured", ErrFederationFailed)
	}

	role, ok := ParseRole(msg.Role)
	if !ok {
		return nil, ErrInvalidRole
	}

	identity, err := s.verifier.Verify(ctx, msg.Token)
	if err != nil {
		s.logger.Warn("OAuthLogin token verification failed", "error", err)
		s.emitAuthEvent(ctx, ActivityEventSocialLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"provider": "google",
			"error":    err.Error(),
		})
		if errors.Is(err, ErrFederationFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrFederationFailed, err)
	}

	return s.loginFederated(ctx, identity, role, msg.RememberMe, device)
}

// OAuthCallback completes the authorization code flow
func (s *Auther) OAuthCallback(ctx context.Context, code string, device DeviceRequest) (*AuthResult, error) {
	if s.exchanger == nil {
		return nil, fmt.Errorf("%w: provider not configured", ErrFederationFailed)
	}

	identity, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("OAuthCallback exchange failed", "error", err)
		s.emitAuthEvent(ctx, ActivityEventSocialLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"provider": "google",
			"error":    err.Error(),
		})
		if errors.Is(err, ErrFederationFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrFederationFailed, err)
	}

	return s.loginFederated(ctx, identity, RoleJobSeeker, false, device)
}

func (s *Auther) loginFederated(ctx context.Context, identity *FederatedIdentity, role UserRole, rememberMe bool, device DeviceRequest) (*AuthResult, error) {
	user, err := s.repo.Users().GetByGoogleID(ctx, identity.Subject)
	if err == nil {
		result, err := s.completeLogin(ctx, user, device, rememberMe)
		if err != nil {
			return nil, err
		}
		s.emitAuthEvent(ctx, ActivityEventSocialLogin, s.actorFromUser(user), user.ID.String(), map[string]any{
			"provider":   "google",
			"new_device": result.NewDevice,
		})
		return result, nil
	}

	if !isNotFound(err) {
		return nil, err
	}

	var created *User
	handler := NewRegisterUserHandler(s.repo, s.hasher, s.usernames, s.now)
	err = handler.Execute(ctx, RegisterUserMessage{
		Email:         identity.Email,
		Name:          identity.Name,
		Role:          string(role),
		GoogleID:      identity.Subject,
		EmailVerified: true,
		Device:        s.devices.Resolve(ctx, device),
		OnResponse:    func(u *User) { created = u },
	})
	if err != nil {
		s.logger.Warn("OAuthLogin account creation failed", "email", identity.Email, "error", err)
		s.emitAuthEvent(ctx, ActivityEventSocialLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"provider": "google",
			"email":    identity.Email,
			"error":    err.Error(),
		})
		return nil, err
	}

	token, claims, err := s.issueSession(created.Identity(), rememberMe)
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventSocialLogin, s.actorFromUser(created), created.ID.String(), map[string]any{
		"provider": "google",
		"created":  true,
	})

	if reloaded, err := s.repo.Users().GetProfile(ctx, created.ID); err == nil {
		created = reloaded
	}

	return &AuthResult{
		Token:     token,
		Claims:    claims,
		User:      created,
		NewDevice: true,
		Created:   true,
	}, nil
}

func (s *Auther) completeLogin(ctx context.Context, user *User, device DeviceRequest, rememberMe bool) (*AuthResult, error) {
	fp := s.devices.Resolve(ctx, device)

	newDevice, err := s.trackDevice(ctx, user, fp, true)
	if err != nil {
		return nil, err
	}

	token, claims, err := s.issueSession(user.Identity(), rememberMe)
	if err != nil {
		return nil, err
	}

	if reloaded, err := s.repo.Users().GetProfile(ctx, user.ID); err == nil {
		user = reloaded
	}

	return &AuthResult{
		Token:     token,
		Claims:    claims,
		User:      user,
		NewDevice: newDevice,
	}, nil
}

func userIDOf(user *User) string {
	if user == nil {
		return ""
	}
	return user.ID.String()
}
