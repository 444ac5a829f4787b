package auth

import "context"

// Anonymous is the subject of callers admitted without credentials.
const Anonymous = "anonymous"

// Identity is an authenticated caller. Usage is accounted and streams are
// owned per Subject.
type Identity struct {
	Subject string

	// ServiceTier selects the caller's rate limit.
	ServiceTier string

	Scopes []string
}

type identityKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by WithIdentity, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

// Subject returns the caller's subject, or Anonymous when the context
// carries no identity.
func Subject(ctx context.Context) string {
	if id := IdentityFromContext(ctx); id != nil && id.Subject != "" {
		return id.Subject
	}
	return Anonymous
}
