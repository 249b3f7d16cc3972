package middleware

import "context"

type identityKey struct{}

// Identity is the caller resolved from a verified access token.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// WithIdentity injects the authenticated identity into the context.
func WithIdentity(ctx context.Context, userID, email, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityKey{}, Identity{UserID: userID, Email: email, Role: role})
}

// IdentityFromContext reports the caller attached by Auth, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func UserIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

// EmailFromContext returns the email carried by the access token. Seller,
// rider and customer operations are keyed by it.
func EmailFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Email
}

func RoleFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Role
}
