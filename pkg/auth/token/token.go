// Package token verifies and issues the HMAC-signed bearer tokens that
// carry a caller's subject identifier.
//
// Signature integrity and expiry are checked in a single parse. Failures are
// reported as one of three sentinel errors so that callers can log the cause
// while presenting a single message to the client.
package token

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Sentinel verification failures. Returned errors wrap exactly one of these.
var (
	ErrMalformed        = errors.New("token malformed")
	ErrSignatureInvalid = errors.New("token signature invalid")
	ErrExpired          = errors.New("token expired")
)

// DefaultTTL is the lifetime of issued tokens when Config.TTL is zero.
const DefaultTTL = 24 * time.Hour

// Config holds the signing material and validation settings shared by
// Verifier and Issuer.
type Config struct {
	// Secret is the HMAC signing key. Required. It is copied on construction.
	Secret []byte

	// Issuer is the expected iss claim. If empty, issuer is not validated
	// and issued tokens carry no iss claim.
	Issuer string

	// TTL is the lifetime of issued tokens. Default: 24h.
	TTL time.Duration

	// Leeway tolerates clock skew when validating exp, nbf and iat.
	Leeway time.Duration

	// Now overrides the clock (useful for testing). Default: time.Now.
	Now func() time.Time
}

func (c *Config) applyDefaults() {
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

func (c Config) secret() ([]byte, error) {
	if len(c.Secret) == 0 {
		return nil, errors.New("token: signing secret is required")
	}
	return append([]byte(nil), c.Secret...), nil
}

// Claims is the payload of a platform token.
type Claims struct {
	// UserID is the subject claim written by the previous platform release.
	// It is only consulted when sub is absent.
	UserID string `json:"userId,omitempty"`

	jwtlib.RegisteredClaims
}

// subject returns sub, falling back to the legacy userId claim.
func (c *Claims) subject() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.UserID
}

// Verifier validates tokens against a process-wide secret. It is safe for
// concurrent use; all fields are read-only after construction.
type Verifier struct {
	secret []byte
	parser *jwtlib.Parser
}

// NewVerifier creates a Verifier from the given configuration.
func NewVerifier(cfg Config) (*Verifier, error) {
	cfg.applyDefaults()

	secret, err := cfg.secret()
	if err != nil {
		return nil, err
	}

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(cfg.Now),
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwtlib.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(cfg.Issuer))
	}

	return &Verifier{
		secret: secret,
		parser: jwtlib.NewParser(opts...),
	}, nil
}

// Verify checks the token's signature and expiry and returns its subject.
//
// The returned error wraps ErrMalformed, ErrSignatureInvalid or ErrExpired.
// A token signed with the right key but past its expiry is ErrExpired; a
// token signed with any other key is ErrSignatureInvalid whatever its claims.
func (v *Verifier) Verify(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", fmt.Errorf("%w: empty token", ErrMalformed)
	}

	claims := &Claims{}
	if _, err := v.parser.ParseWithClaims(tokenStr, claims, v.keyFunc); err != nil {
		return "", classify(err)
	}

	subject := claims.subject()
	if subject == "" {
		return "", fmt.Errorf("%w: missing subject claim", ErrMalformed)
	}
	return subject, nil
}

func (v *Verifier) keyFunc(token *jwtlib.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return v.secret, nil
}

// classify maps a jwt library error onto one of the package sentinels.
// The library checks the signature before any claim, so an expiry error
// implies the signature was valid.
func classify(err error) error {
	switch {
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid),
		errors.Is(err, jwtlib.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

// Issuer mints tokens signed with the same secret the Verifier checks.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer from the given configuration.
func NewIssuer(cfg Config) (*Issuer, error) {
	cfg.applyDefaults()

	secret, err := cfg.secret()
	if err != nil {
		return nil, err
	}

	return &Issuer{
		secret: secret,
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		now:    cfg.Now,
	}, nil
}

// Issue returns an HS256 token for subject and its expiry time.
func (i *Issuer) Issue(subject string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("token: subject is required")
	}

	now := i.now()
	expiresAt := now.Add(i.ttl)

	claims := Claims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   subject,
			Issuer:    i.issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}
