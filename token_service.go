package jobsculpt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

const (
	// DefaultTokenExpiration is the lifetime of a standard session
	DefaultTokenExpiration = time.Hour
	// DefaultExtendedTokenExpiration is used when remember me is set
	DefaultExtendedTokenExpiration = 365 * 24 * time.Hour
)

// TokenOptions controls a single Generate call
type TokenOptions struct {
	// TTL zero uses the service default
	TTL     time.Duration
	Purpose TokenPurpose
}

// TokenService signs and validates bearer tokens
type TokenService interface {
	Generate(identity Identity, opts TokenOptions) (string, *JWTClaims, error)
	Validate(tokenString string) (*JWTClaims, error)
	ValidatePurpose(tokenString string, purpose TokenPurpose) (*JWTClaims, error)
}

// TokenServiceImpl implements the TokenService interface with HS256
type TokenServiceImpl struct {
	signingKey []byte
	defaultTTL time.Duration
	issuer     string
	now        func() time.Time
	logger     Logger
}

var _ TokenService = (*TokenServiceImpl)(nil)

// TokenServiceOption configures the token service
type TokenServiceOption func(*TokenServiceImpl)

// WithTokenClock overrides the clock used to issue and validate tokens
func WithTokenClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, defaultTTL time.Duration, issuer string, opts ...TokenServiceOption) *TokenServiceImpl {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTokenExpiration
	}

	ts := &TokenServiceImpl{
		signingKey: signingKey,
		defaultTTL: defaultTTL,
		issuer:     issuer,
		now:        time.Now,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts
}

// Generate signs a token for identity
func (ts *TokenServiceImpl) Generate(identity Identity, opts TokenOptions) (string, *JWTClaims, error) {
	if identity == nil {
		return "", nil, goerrors.New("identity is required", goerrors.CategoryInternal)
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = ts.defaultTTL
	}
	if ttl < 0 {
		return "", nil, goerrors.New("token TTL must be non-negative", goerrors.CategoryInternal)
	}

	purpose := opts.Purpose
	if purpose == "" {
		purpose = PurposeSession
	}

	now := ts.now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:      identity.ID(),
		UserRole: identity.Role(),
		Purpose:  purpose,
	}

	ensureTokenID(&claims.RegisteredClaims)

	signed, err := ts.SignClaims(claims)
	if err != nil {
		return "", nil, err
	}

	return signed, claims, nil
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims
func (ts *TokenServiceImpl) Validate(tokenString string) (*JWTClaims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// ValidatePurpose validates the token and checks it was minted for purpose
func (ts *TokenServiceImpl) ValidatePurpose(tokenString string, purpose TokenPurpose) (*JWTClaims, error) {
	claims, err := ts.Validate(tokenString)
	if err != nil {
		return nil, err
	}

	got := claims.Purpose
	if got == "" {
		got = PurposeSession
	}

	if got != purpose {
		return nil, fmt.Errorf("%w: expected purpose %q, got %q", ErrTokenMalformed, purpose, got)
	}

	return claims, nil
}
