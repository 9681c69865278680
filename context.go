package authkit

import "context"

type ctxKey string

const (
	ctxKeyIdentity ctxKey = "authkit_identity"
	ctxKeyRole     ctxKey = "authkit_role"
)

// WithIdentity stores the authenticated identity in the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

// IdentityFromContext extracts the authenticated identity from the context,
// or nil when the context carries none.
func IdentityFromContext(ctx context.Context) *Identity {
	v, _ := ctx.Value(ctxKeyIdentity).(*Identity)
	return v
}

// WithRole stores the resolved role in the context.
func WithRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, ctxKeyRole, role)
}

// RoleFromContext extracts the resolved role from the context.
// Returns RoleAnonymous when the context carries none.
func RoleFromContext(ctx context.Context) Role {
	if v, ok := ctx.Value(ctxKeyRole).(Role); ok {
		return v
	}
	return RoleAnonymous
}
