package jobsculpt

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-jobsculpt/middleware/tokenware"
)

var claimsCtxKey = &contextKey{"claims"}
var rawTokenCtxKey = &contextKey{"raw-token"}

type contextKey struct {
	name string
}

// WithClaimsContext sets the claims in the given context
func WithClaimsContext(ctx context.Context, claims *JWTClaims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// GetClaims extracts the claims from the standard context
func GetClaims(ctx context.Context) (*JWTClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*JWTClaims)
	return raw, ok && raw != nil
}

// GetRouterClaims extracts the claims the token middleware stored under key
func GetRouterClaims(c *fiber.Ctx, key string) (*JWTClaims, bool) {
	raw, ok := tokenware.ClaimsFromContext(c, key)
	if !ok {
		return nil, false
	}
	claims, ok := raw.(*JWTClaims)
	return claims, ok
}

// ContextEnricherAdapter stores the validated claims in the request context
func ContextEnricherAdapter(ctx context.Context, claims tokenware.AuthClaims) context.Context {
	jc, ok := claims.(*JWTClaims)
	if !ok {
		return ctx
	}
	return WithClaimsContext(ctx, jc)
}

func withRawToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, rawTokenCtxKey, token)
}

func rawToken(ctx context.Context) string {
	token, _ := ctx.Value(rawTokenCtxKey).(string)
	return token
}
