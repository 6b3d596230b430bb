package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rhuss/tutogate/pkg/auth/token"
)

// Config configures the authentication gate.
type Config struct {
	// Verifier checks the bearer token. Required.
	Verifier TokenVerifier

	// Users resolves the token subject. Required.
	Users UserStore

	// CookieName overrides DefaultCookieName.
	CookieName string

	// LookupTimeout bounds the identity lookup. Zero uses DefaultLookupTimeout.
	LookupTimeout time.Duration

	Logger *slog.Logger
}

// Authenticator runs extraction, verification and identity resolution for
// one request.
type Authenticator struct {
	extractor Extractor
	verifier  TokenVerifier
	resolver  *Resolver
	logger    *slog.Logger
}

// NewAuthenticator validates cfg and builds an Authenticator.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if cfg.Verifier == nil {
		return nil, errors.New("auth: token verifier is required")
	}
	if cfg.Users == nil {
		return nil, errors.New("auth: user store is required")
	}
	return &Authenticator{
		extractor: Extractor{CookieName: cfg.CookieName},
		verifier:  cfg.Verifier,
		resolver:  NewResolver(cfg.Users, cfg.LookupTimeout),
		logger:    loggerOrDefault(cfg.Logger),
	}, nil
}

// Authenticate establishes the caller's identity. It never consults an
// identity already bound to r: every call re-verifies the credential.
func (a *Authenticator) Authenticate(r *http.Request) (Identity, *Denial) {
	_, id, d := a.authenticate(r)
	return id, d
}

// authenticate also returns the verified subject, empty when verification
// did not get that far.
func (a *Authenticator) authenticate(r *http.Request) (string, Identity, *Denial) {
	raw, ok := a.extractor.Extract(r)
	if !ok {
		return "", Identity{}, newDenial(KindNoCredential, nil)
	}

	subject, err := a.verifier.Verify(raw)
	if err != nil {
		return "", Identity{}, newDenial(tokenKind(err), err)
	}

	id, err := a.resolver.Resolve(r.Context(), subject)
	if err != nil {
		return subject, Identity{}, resolveDenial(err)
	}
	return subject, id, nil
}

// Middleware binds the authenticated identity into the request context or
// writes a denial.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, id, d := a.authenticate(r)
		if d != nil {
			deny(w, r, a.logger, gateAuthenticate, d, "subject", subject)
			return
		}

		recordDecision(gateAuthenticate, nil)
		a.logger.Debug("authentication succeeded",
			"subject", id.ID,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// Authenticate returns the authentication gate middleware for cfg.
func Authenticate(cfg Config) (func(http.Handler) http.Handler, error) {
	a, err := NewAuthenticator(cfg)
	if err != nil {
		return nil, fmt.Errorf("building authentication gate: %w", err)
	}
	return a.Middleware, nil
}

// tokenKind maps a verifier error to its denial kind. Errors that are not
// one of the token sentinels count as malformed.
func tokenKind(err error) Kind {
	switch {
	case errors.Is(err, token.ErrExpired):
		return KindExpiredToken
	case errors.Is(err, token.ErrSignatureInvalid):
		return KindInvalidSignature
	default:
		return KindMalformedToken
	}
}
