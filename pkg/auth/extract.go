package auth

import (
	"net/http"
	"strings"
)

// DefaultCookieName is the cookie that carries the bearer token.
const DefaultCookieName = "token"

// Extractor pulls a bearer token from a request.
type Extractor struct {
	// CookieName overrides DefaultCookieName.
	CookieName string
}

// Extract returns the bearer token carried by r. The cookie wins over the
// Authorization header when both are present. Empty values and
// non-Bearer schemes count as absent.
func (e Extractor) Extract(r *http.Request) (string, bool) {
	name := e.CookieName
	if name == "" {
		name = DefaultCookieName
	}

	if c, err := r.Cookie(name); err == nil && c.Value != "" {
		return c.Value, true
	}

	scheme, tok, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	tok = strings.TrimSpace(tok)
	if tok == "" {
		return "", false
	}
	return tok, true
}
