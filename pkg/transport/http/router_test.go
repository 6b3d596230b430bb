package http

import (
	"context"
	"encoding/json"
	"errors"
	gohttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/tutogate/pkg/auth"
	"github.com/rhuss/tutogate/pkg/auth/token"
	"github.com/rhuss/tutogate/pkg/storage"
	"github.com/rhuss/tutogate/pkg/storage/memory"
	"github.com/rhuss/tutogate/pkg/transport"
)

type testEnv struct {
	issuer *token.Issuer
	store  *memory.Store
	router gohttp.Handler
}

func newTestEnv(t *testing.T, limiter auth.RateLimiter) *testEnv {
	t.Helper()
	ctx := context.Background()

	cfg := token.Config{Secret: []byte("router-test-secret")}
	issuer, err := token.NewIssuer(cfg)
	if err != nil {
		t.Fatal(err)
	}
	verifier, err := token.NewVerifier(cfg)
	if err != nil {
		t.Fatal(err)
	}

	store := memory.New()
	seed := &memory.Seed{
		Users: []storage.User{
			{ID: "u1", Username: "ana", Roles: []string{"author"}},
			{ID: "u2", Username: "ben", Roles: []string{"author"}},
			{ID: "u3", Username: "cam", Roles: []string{"user"}},
			{ID: "root", Username: "admin", Roles: []string{"admin"}},
		},
		Tutorials: []storage.Tutorial{
			{ID: "t1", Title: "Intro", AuthorID: "u2"},
		},
	}
	if err := seed.Apply(ctx, store); err != nil {
		t.Fatal(err)
	}

	authn, err := auth.NewAuthenticator(auth.Config{Verifier: verifier, Users: store})
	if err != nil {
		t.Fatal(err)
	}

	router, err := NewRouter(RouterConfig{
		Authenticator:  authn,
		Store:          store,
		Limiter:        limiter,
		MetricsEnabled: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	return &testEnv{issuer: issuer, store: store, router: router}
}

func (e *testEnv) do(t *testing.T, method, path, subject, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if subject != "" {
		tok, _, err := e.issuer.Issue(subject)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) transport.ErrorBody {
	t.Helper()
	var body transport.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	if _, err := NewRouter(RouterConfig{Store: memory.New()}); err == nil {
		t.Error("expected error without authenticator")
	}

	verifier, _ := token.NewVerifier(token.Config{Secret: []byte("x")})
	authn, err := auth.NewAuthenticator(auth.Config{Verifier: verifier, Users: memory.New()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewRouter(RouterConfig{Authenticator: authn}); err == nil {
		t.Error("expected error without store")
	}
}

func TestRouterHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := env.do(t, "GET", path, "", "")
		if rec.Code != gohttp.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	env.do(t, "GET", "/v1/me", "", "")
	rec := env.do(t, "GET", "/metrics", "", "")
	if rec.Code != gohttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tutogate_gate_decisions_total") {
		t.Error("metrics output missing tutogate_gate_decisions_total")
	}
}

func TestRouterMeRequiresAuthentication(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "GET", "/v1/me", "", "")
	if rec.Code != gohttp.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Success || body.Error != auth.MsgAuthenticationRequired {
		t.Errorf("body = %+v", body)
	}
	if rec.Header().Get(transport.RequestIDHeader) == "" {
		t.Error("denial response is missing the request id header")
	}
}

func TestRouterMeReturnsIdentity(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "GET", "/v1/me", "u1", "")
	if rec.Code != gohttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Success bool          `json:"success"`
		User    auth.Identity `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !body.Success || body.User.ID != "u1" || !body.User.HasRole(auth.RoleAuthor) {
		t.Errorf("body = %+v", body)
	}
}

func TestRouterCreateTutorialRecordsOwner(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "POST", "/v1/tutorials", "u1", `{"title":"Go basics"}`)
	if rec.Code != gohttp.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Tutorial struct {
			ID       string `json:"id"`
			AuthorID string `json:"author_id"`
		} `json:"tutorial"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	owner, err := env.store.FindResourceOwner(context.Background(), body.Tutorial.ID)
	if err != nil {
		t.Fatal(err)
	}
	if owner != "u1" {
		t.Errorf("owner = %q, want u1", owner)
	}

	// The creator may now modify it.
	rec = env.do(t, "PUT", "/v1/tutorials/"+body.Tutorial.ID, "u1", "")
	if rec.Code != gohttp.StatusOK {
		t.Errorf("owner update status = %d, want 200", rec.Code)
	}
}

func TestRouterCreateTutorialRoleGate(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "POST", "/v1/tutorials", "u3", `{"title":"nope"}`)
	if rec.Code != gohttp.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if body := decodeError(t, rec); body.Error != auth.MsgAccessNotAuthorized {
		t.Errorf("error = %q, want %q", body.Error, auth.MsgAccessNotAuthorized)
	}
}

func TestRouterCreateTutorialValidatesBody(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: "{"},
		{name: "missing title", body: `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "POST", "/v1/tutorials", "u1", tt.body)
			if rec.Code != gohttp.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestRouterOwnershipDecisions(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		path    string
		subject string
		status  int
		message string
	}{
		{name: "owner updates", method: "PUT", path: "/v1/tutorials/t1", subject: "u2", status: 200},
		{name: "other author forbidden", method: "PUT", path: "/v1/tutorials/t1", subject: "u1", status: 403, message: auth.MsgNotResourceOwner},
		{name: "admin updates", method: "PUT", path: "/v1/tutorials/t1", subject: "root", status: 200},
		{name: "missing tutorial", method: "PUT", path: "/v1/tutorials/nope", subject: "u1", status: 404, message: auth.MsgResourceNotFound},
		{name: "step owner", method: "PUT", path: "/v1/tutorials/t1/steps/s1", subject: "u2", status: 200},
		{name: "step non-owner", method: "PUT", path: "/v1/tutorials/t1/steps/s1", subject: "u1", status: 403, message: auth.MsgNotResourceOwner},
		{name: "delete non-owner", method: "DELETE", path: "/v1/tutorials/t1", subject: "u1", status: 403, message: auth.MsgNotResourceOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			rec := env.do(t, tt.method, tt.path, tt.subject, "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			if tt.message != "" {
				if body := decodeError(t, rec); body.Error != tt.message {
					t.Errorf("error = %q, want %q", body.Error, tt.message)
				}
			}
		})
	}
}

func TestRouterDeleteByOwner(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "DELETE", "/v1/tutorials/t1", "u2", "")
	if rec.Code != gohttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if _, err := env.store.FindResourceOwner(context.Background(), "t1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected t1 to be gone, got err=%v", err)
	}
}

func TestRouterAdminPing(t *testing.T) {
	env := newTestEnv(t, nil)

	if rec := env.do(t, "GET", "/v1/admin/ping", "u1", ""); rec.Code != gohttp.StatusForbidden {
		t.Errorf("author status = %d, want 403", rec.Code)
	}
	if rec := env.do(t, "GET", "/v1/admin/ping", "root", ""); rec.Code != gohttp.StatusOK {
		t.Errorf("admin status = %d, want 200", rec.Code)
	}
}

func TestRouterRateLimit(t *testing.T) {
	limiter := auth.NewInProcessLimiter(map[auth.Role]auth.TierConfig{
		auth.RoleAuthor: {RequestsPerMinute: 1},
	}, 0)
	env := newTestEnv(t, limiter)

	if rec := env.do(t, "GET", "/v1/me", "u1", ""); rec.Code != gohttp.StatusOK {
		t.Fatalf("first status = %d, want 200", rec.Code)
	}
	rec := env.do(t, "GET", "/v1/me", "u1", "")
	if rec.Code != gohttp.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", rec.Code)
	}
	if body := decodeError(t, rec); body.Error != auth.MsgRateLimited {
		t.Errorf("error = %q, want %q", body.Error, auth.MsgRateLimited)
	}

	// Limits are per identity.
	if rec := env.do(t, "GET", "/v1/me", "u2", ""); rec.Code != gohttp.StatusOK {
		t.Errorf("other identity status = %d, want 200", rec.Code)
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "GET", "/nope", "", "")
	if rec.Code != gohttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if body := decodeError(t, rec); body.Success {
		t.Error("expected success=false")
	}
}

type unhealthyStore struct {
	*memory.Store
}

func (unhealthyStore) HealthCheck(context.Context) error {
	return errors.New("connection refused")
}

func TestRouterReadyzReportsStoreFailure(t *testing.T) {
	verifier, _ := token.NewVerifier(token.Config{Secret: []byte("x")})
	store := unhealthyStore{memory.New()}
	authn, err := auth.NewAuthenticator(auth.Config{Verifier: verifier, Users: store})
	if err != nil {
		t.Fatal(err)
	}
	router, err := NewRouter(RouterConfig{Authenticator: authn, Store: store})
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != gohttp.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
