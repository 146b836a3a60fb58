package tokenware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var (
	defaultTokenLookup = "header:x-auth-token"

	// ErrTokenMissing is passed to the error handler when no extractor found a token
	ErrTokenMissing = errors.New("No token, authorization denied")
	// ErrTokenInvalid is reported to clients for any rejected token
	ErrTokenInvalid = errors.New("Token is not valid")
	// ErrRoleRequired is passed to the error handler when RequiredRole does not match
	ErrRoleRequired = errors.New("Not authorized")
)

// TokenValidator validates a raw token. Implementations should reject
// revoked tokens.
type TokenValidator interface {
	ValidateContext(ctx context.Context, token string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a function to TokenValidator
type TokenValidatorFunc func(ctx context.Context, token string) (AuthClaims, error)

func (f TokenValidatorFunc) ValidateContext(ctx context.Context, token string) (AuthClaims, error) {
	return f(ctx, token)
}

// AuthClaims is what handlers can read about the authenticated caller
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() string
}

// ValidationListener runs after a token validated, before the handler
type ValidationListener func(c *fiber.Ctx, claims AuthClaims) error

type Config struct {
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	ErrorHandler   func(*fiber.Ctx, error) error
	ContextKey     string
	// TokenLookup is a comma separated list of source:name pairs, sources
	// are header, query, param and cookie
	TokenLookup string
	// AuthScheme is stripped from header values. Empty reads the raw header.
	AuthScheme     string
	TokenValidator TokenValidator
	RequiredRole   string

	// ContextEnricher propagates the claims to the request user context
	ContextEnricher     func(c context.Context, claims AuthClaims) context.Context
	ValidationListeners []ValidationListener
}

// New returns a fiber middleware guarding the routes it is mounted on
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	extractors := GetExtractors(cfg.TokenLookup, cfg.AuthScheme)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := ExtractRawToken(c, extractors)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		claims, err := cfg.TokenValidator.ValidateContext(c.UserContext(), raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		for _, listener := range cfg.ValidationListeners {
			if listener == nil {
				continue
			}
			if err := listener(c, claims); err != nil {
				return cfg.ErrorHandler(c, err)
			}
		}

		if cfg.RequiredRole != "" && claims.Role() != cfg.RequiredRole {
			return cfg.ErrorHandler(c, ErrRoleRequired)
		}

		c.Locals(cfg.ContextKey, claims)

		if cfg.ContextEnricher != nil {
			c.SetUserContext(cfg.ContextEnricher(c.UserContext(), claims))
		}

		return cfg.SuccessHandler(c)
	}
}

// GetDefaultConfig fills the zero fields of config. It panics when no
// TokenValidator is set.
func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = DefaultErrorHandler
	}

	if cfg.TokenValidator == nil {
		panic("tokenware: TokenValidator is required")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	return cfg
}

// DefaultErrorHandler answers 401 with a {msg} body
func DefaultErrorHandler(c *fiber.Ctx, err error) error {
	msg := ErrTokenInvalid.Error()
	switch {
	case errors.Is(err, ErrTokenMissing):
		msg = ErrTokenMissing.Error()
	case errors.Is(err, ErrRoleRequired):
		msg = ErrRoleRequired.Error()
	}
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"msg": msg})
}

// ClaimsFromContext returns the claims stored by the middleware under key
func ClaimsFromContext(c *fiber.Ctx, key string) (AuthClaims, bool) {
	if key == "" {
		key = "user"
	}
	claims, ok := c.Locals(key).(AuthClaims)
	return claims, ok && claims != nil
}

// ExtractRawToken returns the first token any extractor finds
func ExtractRawToken(c *fiber.Ctx, extractors []Extractor) (string, error) {
	for _, extractor := range extractors {
		if raw, err := extractor(c); raw != "" && err == nil {
			return raw, nil
		}
	}
	return "", ErrTokenMissing
}

// Extractor reads a raw token from the request
type Extractor func(c *fiber.Ctx) (string, error)

// GetExtractors parses lookup, e.g. "header:x-auth-token,cookie:token"
func GetExtractors(tokenLookup, authScheme string) []Extractor {
	extractors := make([]Extractor, 0)

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}
		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

		switch source {
		case "header":
			extractors = append(extractors, fromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, fromQuery(name))
		case "param":
			extractors = append(extractors, fromParam(name))
		case "cookie":
			extractors = append(extractors, fromCookie(name))
		}
	}

	return extractors
}

func fromHeader(header, authScheme string) Extractor {
	authScheme = strings.TrimSpace(authScheme)
	return func(c *fiber.Ctx) (string, error) {
		a := strings.TrimSpace(c.Get(header))
		if a == "" {
			return "", ErrTokenMissing
		}
		if authScheme == "" {
			return a, nil
		}
		l := len(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrTokenMissing
	}
}

func fromQuery(param string) Extractor {
	return func(c *fiber.Ctx) (string, error) {
		if token := c.Query(param); token != "" {
			return token, nil
		}
		return "", ErrTokenMissing
	}
}

func fromParam(param string) Extractor {
	return func(c *fiber.Ctx) (string, error) {
		if token := c.Params(param); token != "" {
			return token, nil
		}
		return "", ErrTokenMissing
	}
}

func fromCookie(name string) Extractor {
	return func(c *fiber.Ctx) (string, error) {
		if token := c.Cookies(name); token != "" {
			return token, nil
		}
		return "", ErrTokenMissing
	}
}
