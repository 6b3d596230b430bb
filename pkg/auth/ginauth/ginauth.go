// Package ginauth adapts the tutogate gates to Gin. Decisions, denial
// bodies and metrics are the same as for the net/http middleware; the
// adapters only bridge the request, route parameters and abort semantics.
package ginauth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rhuss/tutogate/pkg/auth"
)

// Wrap runs a net/http gate as Gin middleware. Gin route parameters are
// exposed to the gate as request path values. When the gate does not call
// through, the Gin chain is aborted.
func Wrap(gate func(http.Handler) http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})

		r := c.Request
		if len(c.Params) > 0 {
			r = r.Clone(r.Context())
			for _, p := range c.Params {
				r.SetPathValue(p.Key, p.Value)
			}
		}

		gate(next).ServeHTTP(c.Writer, r)

		if !passed {
			c.Abort()
		}
	}
}

// Authenticate binds the caller's identity or aborts with a denial.
func Authenticate(a *auth.Authenticator) gin.HandlerFunc {
	return Wrap(a.Middleware)
}

// RequireRoles aborts unless the caller holds one of roles.
func RequireRoles(roles ...auth.Role) gin.HandlerFunc {
	return Wrap(auth.RequireRoles(roles...))
}

// RequireAdmin aborts unless the caller is an admin.
func RequireAdmin() gin.HandlerFunc {
	return Wrap(auth.RequireAdmin())
}

// RequireOwnerOrAdmin aborts unless the caller is an admin or owns the
// resource named by the route's id (or tutorialId) parameter.
func RequireOwnerOrAdmin(store auth.OwnershipStore, opts ...auth.OwnershipOption) gin.HandlerFunc {
	return Wrap(auth.RequireOwnerOrAdmin(store, opts...))
}

// RateLimit aborts with 429 when limiter rejects the caller.
func RateLimit(limiter auth.RateLimiter) gin.HandlerFunc {
	return Wrap(auth.RateLimit(limiter))
}

// Identity returns the identity bound by Authenticate.
func Identity(c *gin.Context) (auth.Identity, bool) {
	return auth.IdentityFromContext(c.Request.Context())
}
