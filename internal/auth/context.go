package auth

import "context"

type ctxKey struct{}

// WithClaims stores the caller identity. A nil claims value means anonymous.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Claims)
	return c, ok && c != nil
}

// Resolve turns a raw Authorization value into claims, or nil for anonymous.
func (m *JWTManager) Resolve(header string) *Claims {
	token, err := ParseBearerToken(header)
	if err != nil {
		return nil
	}
	claims, err := m.Verify(token)
	if err != nil {
		return nil
	}
	return claims
}
