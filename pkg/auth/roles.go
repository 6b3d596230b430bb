package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
)

var errNoIdentity = errors.New("no identity bound to request; authentication gate must run first")

// CheckRoles grants when the bound identity holds at least one of required.
// An empty required set grants nobody.
func CheckRoles(ctx context.Context, required []Role) *Denial {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return newDenial(KindCallerOrderingDefect, errNoIdentity)
	}
	if !id.HasAnyRole(required) {
		return newDenial(KindRoleMismatch, nil)
	}
	return nil
}

// Gates builds the role and rate-limit gates with a shared logger. The zero
// value logs through slog.Default.
type Gates struct {
	Logger *slog.Logger
}

// RequireRoles returns middleware that lets a request through when the
// caller holds any of roles.
func (g Gates) RequireRoles(roles ...Role) func(http.Handler) http.Handler {
	required := slices.Clone(roles)
	logger := loggerOrDefault(g.Logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d := CheckRoles(r.Context(), required); d != nil {
				var subject string
				if id, ok := IdentityFromContext(r.Context()); ok {
					subject = id.ID
				}
				deny(w, r, logger, gateRole, d,
					"subject", subject,
					"required", required,
				)
				return
			}
			recordDecision(gateRole, nil)
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin is RequireRoles(RoleAdmin).
func (g Gates) RequireAdmin() func(http.Handler) http.Handler {
	return g.RequireRoles(RoleAdmin)
}

// RequireRoles is Gates{}.RequireRoles.
func RequireRoles(roles ...Role) func(http.Handler) http.Handler {
	return Gates{}.RequireRoles(roles...)
}

// RequireAdmin is Gates{}.RequireAdmin.
func RequireAdmin() func(http.Handler) http.Handler {
	return Gates{}.RequireAdmin()
}
