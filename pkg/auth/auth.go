package auth

import (
	"context"
	"slices"
)

// Role is a platform role. A user holds a non-empty set of roles.
type Role string

const (
	RoleUser       Role = "user"
	RoleAuthor     Role = "author"
	RoleTranslator Role = "translator"
	RoleModerator  Role = "moderator"

	// RoleAdmin overrides every ownership check.
	RoleAdmin Role = "admin"
)

// Roles lists every known role, least privileged first.
var Roles = []Role{RoleUser, RoleAuthor, RoleTranslator, RoleModerator, RoleAdmin}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return slices.Contains(Roles, r)
}

// ParseRole converts a stored role name to a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// ParseRoles converts stored role names to Roles, dropping unknown names
// and duplicates while keeping the original order.
func ParseRoles(names []string) []Role {
	roles := make([]Role, 0, len(names))
	for _, name := range names {
		r, ok := ParseRole(name)
		if !ok || slices.Contains(roles, r) {
			continue
		}
		roles = append(roles, r)
	}
	return roles
}

// Identity is the minimal caller record bound to a request: never the
// credential hash or any other profile field.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Roles    []Role `json:"roles"`
}

// HasRole reports whether the identity holds r.
func (id Identity) HasRole(r Role) bool {
	return slices.Contains(id.Roles, r)
}

// HasAnyRole reports whether the identity holds at least one of required.
func (id Identity) HasAnyRole(required []Role) bool {
	for _, r := range required {
		if id.HasRole(r) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the identity holds the admin role.
func (id Identity) IsAdmin() bool {
	return id.HasRole(RoleAdmin)
}

// complete reports whether the identity may be bound to a request.
func (id Identity) complete() bool {
	return id.ID != "" && len(id.Roles) > 0
}

func (id Identity) clone() Identity {
	id.Roles = slices.Clone(id.Roles)
	return id
}

// TokenVerifier validates a bearer token and returns its subject.
// token.Verifier implements it.
type TokenVerifier interface {
	Verify(token string) (subject string, err error)
}

// UserStore looks up the minimal identity projection for a user id.
// Implementations return storage.ErrNotFound when the user does not exist.
type UserStore interface {
	FindUserByID(ctx context.Context, id string) (Identity, error)
}

// OwnershipStore looks up the owner of a resource.
// Implementations return storage.ErrNotFound when the resource does not exist.
type OwnershipStore interface {
	FindResourceOwner(ctx context.Context, resourceID string) (ownerID string, err error)
}
