package auth

import "context"

// identityKey is a private type for the identity context key.
type identityKey struct{}

// WithIdentity returns a child context carrying a copy of id.
// The parent context is left untouched. An identity without an id or
// without roles is never bound: ctx is returned as is.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	if !id.complete() {
		return ctx
	}
	return context.WithValue(ctx, identityKey{}, id.clone())
}

// IdentityFromContext retrieves the bound identity. The returned value is a
// copy; modifying it does not affect the bound identity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok {
		return Identity{}, false
	}
	return id.clone(), true
}
