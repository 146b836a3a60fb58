package jobsculpt

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// RegisterUserMessage creates an account and its first device. Either
// Password or GoogleID must be set.
type RegisterUserMessage struct {
	Username      string           `json:"userName"`
	Email         string           `json:"email"`
	Password      string           `json:"password"`
	Role          string           `json:"role"`
	Theme         string           `json:"theme"`
	Name          string           `json:"name"`
	GoogleID      string           `json:"-"`
	EmailVerified bool             `json:"-"`
	Device        Fingerprint      `json:"-"`
	OnResponse    func(user *User) `json:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate checks the message fields
func (e RegisterUserMessage) Validate() error {
	passwordRules := []validation.Rule{validation.Length(1, 72)}
	if e.GoogleID == "" {
		passwordRules = append(passwordRules, validation.Required)
	}

	err := validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&e.Password, passwordRules...),
		validation.Field(&e.Username, validation.Length(0, 64)),
		validation.Field(&e.Role, validation.In(string(RoleJobSeeker), string(RoleEmployer))),
		validation.Field(&e.Theme, validation.In("light", "dark")),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, validationMessage(err))
	}
	return nil
}

// RegisterUserHandler persists new accounts. Username collisions are
// resolved by retrying with the next candidate when the storage unique
// constraint rejects the insert.
type RegisterUserHandler struct {
	repo      RepositoryManager
	hasher    PasswordAuthenticator
	usernames UsernameGenerator
	now       func() time.Time
}

// NewRegisterUserHandler returns a handler
func NewRegisterUserHandler(repo RepositoryManager, hasher PasswordAuthenticator, usernames UsernameGenerator, now func() time.Time) *RegisterUserHandler {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	if usernames == nil {
		usernames = DefaultUsernameGenerator
	}
	if now == nil {
		now = time.Now
	}
	return &RegisterUserHandler{
		repo:      repo,
		hasher:    hasher,
		usernames: usernames,
		now:       now,
	}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryInternal, "context cancelled during user registration")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var hash string
	if event.Password != "" {
		var err error
		if hash, err = h.hasher.HashPassword(event.Password); err != nil {
			if goerrors.IsCategory(err, goerrors.CategoryValidation) {
				return err
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}
	}

	role, _ := ParseRole(event.Role)
	explicit := strings.TrimSpace(event.Username) != ""
	base := getUsername(event.Username, event.Email)

	for attempt := 0; attempt < MaxUsernameAttempts; attempt++ {
		candidate := h.usernames(base, attempt)
		if explicit && attempt > 0 {
			return ErrUsernameTaken
		}

		// a taken candidate is skipped without opening a transaction; the
		// unique constraint below is what actually guarantees uniqueness
		if !explicit {
			taken, err := h.repo.Users().UsernameExists(ctx, candidate)
			if err != nil {
				return err
			}
			if taken {
				continue
			}
		}

		now := h.now()
		user := &User{
			Username:      candidate,
			Email:         event.Email,
			PasswordHash:  hash,
			GoogleID:      event.GoogleID,
			IsGoogleUser:  event.GoogleID != "",
			EmailVerified: event.EmailVerified,
			Role:          role,
			Theme:         event.Theme,
			Name:          event.Name,
		}

		err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := h.repo.Users().CreateTx(ctx, tx, user); err != nil {
				return err
			}
			_, err := h.repo.Users().RecordDeviceTx(ctx, tx, NewDevice(user.ID, event.Device, now))
			return err
		})

		if err == nil {
			if event.OnResponse != nil {
				event.OnResponse(user)
			}
			return nil
		}

		if errors.Is(err, ErrUsernameTaken) {
			continue
		}

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return err
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	if explicit {
		return ErrUsernameTaken
	}
	return ErrUsernameExhausted
}

// Register creates a local account, records the registering device and
// returns a session token. No verification email is sent here.
func (s *Auther) Register(ctx context.Context, msg RegisterUserMessage, device DeviceRequest) (*AuthResult, error) {
	msg.GoogleID = ""
	msg.EmailVerified = false

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	msg.Device = s.devices.Resolve(ctx, device)

	var created *User
	msg.OnResponse = func(user *User) { created = user }

	handler := NewRegisterUserHandler(s.repo, s.hasher, s.usernames, s.now)
	if err := handler.Execute(ctx, msg); err != nil {
		s.logger.Warn("Register failed", "email", msg.Email, "error", err)
		s.emitAuthEvent(ctx, ActivityEventRegisterFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"email": msg.Email,
			"error": err.Error(),
		})
		return nil, err
	}

	token, claims, err := s.tokenService.Generate(created.Identity(), TokenOptions{
		TTL:     s.cfg.GetTokenExpiration(),
		Purpose: PurposeSession,
	})
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventRegister, s.actorFromUser(created), created.ID.String(), map[string]any{
		"username": created.Username,
	})

	user, err := s.repo.Users().GetProfile(ctx, created.ID)
	if err != nil {
		user = created
	}

	return &AuthResult{
		Token:     token,
		Claims:    claims,
		User:      user,
		NewDevice: true,
		Created:   true,
	}, nil
}

// validationMessage reports the first failing field, in field name order
func validationMessage(err error) string {
	var errs validation.Errors
	if errors.As(err, &errs) {
		fields := make([]string, 0, len(errs))
		for field, fe := range errs {
			if fe != nil {
				fields = append(fields, field)
			}
		}
		if len(fields) > 0 {
			sort.Strings(fields)
			return fields[0] + ": " + errs[fields[0]].Error()
		}
	}
	return err.Error()
}
