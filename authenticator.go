package jobsculpt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-jobsculpt/middleware/tokenware"
	"github.com/google/uuid"
)

// AuthResult is returned by every operation that signs the caller in
type AuthResult struct {
	Token     string
	Claims    *JWTClaims
	User      *User
	NewDevice bool
	Created   bool
}

// Auther runs the account workflow: registration, password and federated
// login, device tracking, verification, password reset and logout.
type Auther struct {
	repo         RepositoryManager
	cfg          Config
	tokenService *TokenServiceImpl
	hasher       PasswordAuthenticator
	revocations  RevocationStore
	devices      DeviceResolver
	notifier     Notifier
	verifier     TokenVerifier
	exchanger    CodeExchanger
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
	usernames    UsernameGenerator

	// set while revocations is the default memory store
	ownsRevocations bool

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, cfg Config) *Auther {
	a := &Auther{
		repo:         repo,
		cfg:          cfg,
		hasher:       BcryptHasher{},
		revocations:  NewMemoryRevocationStore(),
		devices:      NewDeviceResolver(nil),
		notifier:     NewEmailNotifier(NewLogMailer(defLogger{})),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
		usernames:    DefaultUsernameGenerator,
	}
	a.ownsRevocations = true
	a.rebuildTokenService()
	return a
}

func (s *Auther) rebuildTokenService() {
	s.tokenService = NewTokenService(
		[]byte(s.cfg.GetSigningKey()),
		s.cfg.GetTokenExpiration(),
		s.cfg.GetIssuer(),
		WithTokenClock(s.now),
		WithTokenLogger(s.logger),
	)
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger == nil {
		return s
	}
	s.logger = logger
	s.rebuildTokenService()
	return s
}

// WithClock sets the clock used for token issuance and validation
func (s *Auther) WithClock(now func() time.Time) *Auther {
	if now == nil {
		return s
	}
	s.now = now
	if mem, ok := s.revocations.(*MemoryRevocationStore); ok && s.ownsRevocations {
		mem.WithClock(now)
	}
	s.rebuildTokenService()
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

func (s *Auther) WithPasswordHasher(hasher PasswordAuthenticator) *Auther {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

func (s *Auther) WithRevocationStore(store RevocationStore) *Auther {
	if store != nil {
		s.revocations = store
		s.ownsRevocations = false
	}
	return s
}

func (s *Auther) WithDeviceResolver(resolver DeviceResolver) *Auther {
	if resolver != nil {
		s.devices = resolver
	}
	return s
}

func (s *Auther) WithNotifier(notifier Notifier) *Auther {
	if notifier != nil {
		s.notifier = notifier
	}
	return s
}

// WithTokenVerifier sets the identity provider token verifier
func (s *Auther) WithTokenVerifier(verifier TokenVerifier) *Auther {
	s.verifier = verifier
	return s
}

// WithCodeExchanger sets the authorization code flow exchanger
func (s *Auther) WithCodeExchanger(exchanger CodeExchanger) *Auther {
	s.exchanger = exchanger
	return s
}

func (s *Auther) WithUsernameGenerator(gen UsernameGenerator) *Auther {
	if gen != nil {
		s.usernames = gen
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// CodeExchanger returns the configured exchanger, nil when the redirect
// flow is disabled
func (s *Auther) CodeExchanger() CodeExchanger {
	return s.exchanger
}

// Authenticate validates a session token and checks it was not revoked
func (s *Auther) Authenticate(ctx context.Context, token string) (*JWTClaims, error) {
	claims, err := s.tokenService.ValidatePurpose(token, PurposeSession)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.TokenID())
	if err != nil {
		s.logger.Error("revocation lookup failed", "error", err)
		return nil, err
	}

	if revoked {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

// ValidateContext implements tokenware.TokenValidator
func (s *Auther) ValidateContext(ctx context.Context, token string) (tokenware.AuthClaims, error) {
	claims, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// CheckToken reports whether token would authenticate a request
func (s *Auther) CheckToken(ctx context.Context, token string) bool {
	_, err := s.Authenticate(ctx, token)
	return err == nil
}

// Logout revokes the token until it would have expired anyway
func (s *Auther) Logout(ctx context.Context, token string) error {
	claims, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}

	if err := s.revocations.Revoke(ctx, claims.TokenID(), claims.Expires()); err != nil {
		s.logger.Error("Logout revoke error", "error", err)
		return err
	}

	s.emitAuthEvent(ctx, ActivityEventLogout, ActorRef{ID: claims.UserID(), Type: "user"}, claims.UserID(), map[string]any{
		"jti": claims.TokenID(),
	})

	return nil
}

// CurrentUser loads the user with devices and skills
func (s *Auther) CurrentUser(ctx context.Context, userID string) (*User, error) {
	id, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}
	return s.repo.Users().GetProfile(ctx, id)
}

// EmailVerified reports the verification flag of the user
func (s *Auther) EmailVerified(ctx context.Context, userID string) (bool, error) {
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.EmailVerified, nil
}

// CheckUsername reports whether username is still free
func (s *Auther) CheckUsername(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, goerrors.New("Username is required", goerrors.CategoryValidation)
	}
	exists, err := s.repo.Users().UsernameExists(ctx, username)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

func (s *Auther) issueSession(identity Identity, rememberMe bool) (string, *JWTClaims, error) {
	ttl := s.cfg.GetTokenExpiration()
	if rememberMe {
		ttl = s.cfg.GetExtendedTokenExpiration()
	}
	return s.tokenService.Generate(identity, TokenOptions{
		TTL:     ttl,
		Purpose: PurposeSession,
	})
}

// trackDevice records the device and alerts the user when it is new.
// Notification failures are logged and never fail the login.
func (s *Auther) trackDevice(ctx context.Context, user *User, fp Fingerprint, notify bool) (bool, error) {
	device := NewDevice(user.ID, fp, s.now())

	created, err := s.repo.Users().RecordDevice(ctx, device)
	if err != nil {
		return false, err
	}

	if !created {
		return false, nil
	}

	s.emitAuthEvent(ctx, ActivityEventNewDevice, s.actorFromUser(user), user.ID.String(), map[string]any{
		"device":  device.DeviceName,
		"city":    device.Location.City,
		"country": device.Location.Country,
	})

	if notify {
		if err := s.notifier.SendNewDeviceAlert(ctx, user.Email, device); err != nil {
			s.logger.Error("new device notification failed", "user_id", user.ID.String(), "error", err)
			s.emitAuthEvent(ctx, ActivityEventNotificationFailure, ActorRef{Type: "system"}, user.ID.String(), map[string]any{
				"kind":  "new-device",
				"error": err.Error(),
			})
		}
	}

	return true, nil
}

// comparePassword checks password against user. Unknown users still pay
// for one hash comparison so timing does not reveal which emails exist.
func (s *Auther) comparePassword(user *User, password string) error {
	if user == nil || user.PasswordHash == "" {
		_ = s.hasher.ComparePasswordAndHash(password, s.dummyPasswordHash())
		return ErrInvalidCredentials
	}

	if err := s.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	return nil
}

func (s *Auther) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.HashPassword(uuid.NewString())
		if err != nil {
			s.logger.Error("failed to build dummy password hash", "error", err)
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func (s *Auther) frontendURL(path string) string {
	return joinURL(s.cfg.GetFrontendURL(), path)
}

func (s *Auther) backendURL(path string) string {
	return joinURL(s.cfg.GetBackendURL(), path)
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: s.now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error", "error", err)
	}
}

func (s *Auther) actorFromUser(user *User) ActorRef {
	if user == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   user.ID.String(),
		Type: "user",
	}
}

func parseUserID(userID string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrUserNotFound, err)
	}
	return id, nil
}
