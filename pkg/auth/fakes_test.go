package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/rhuss/tutogate/pkg/auth/token"
	"github.com/rhuss/tutogate/pkg/observability"
	"github.com/rhuss/tutogate/pkg/storage"
)

// fakeVerifier maps raw tokens to subjects or errors.
type fakeVerifier struct {
	mu       sync.Mutex
	subjects map[string]string
	errs     map[string]error
	calls    int
}

func (v *fakeVerifier) Verify(raw string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if err, ok := v.errs[raw]; ok {
		return "", err
	}
	if sub, ok := v.subjects[raw]; ok {
		return sub, nil
	}
	return "", token.ErrMalformed
}

// fakeUsers is an in-memory UserStore with a call counter and an optional
// injected failure.
type fakeUsers struct {
	mu    sync.Mutex
	users map[string]Identity
	err   error
	block bool
	calls int
}

func (s *fakeUsers) FindUserByID(ctx context.Context, id string) (Identity, error) {
	s.mu.Lock()
	s.calls++
	err, block := s.err, s.block
	u, ok := s.users[id]
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return Identity{}, ctx.Err()
	}
	if err != nil {
		return Identity{}, err
	}
	if !ok {
		return Identity{}, storage.ErrNotFound
	}
	return u, nil
}

// countingOwners is an OwnershipStore that records every lookup.
type countingOwners struct {
	mu     sync.Mutex
	owners map[string]string
	err    error
	block  bool
	calls  int
	seen   []string
}

func (s *countingOwners) FindResourceOwner(ctx context.Context, resourceID string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.seen = append(s.seen, resourceID)
	err, block := s.err, s.block
	owner, ok := s.owners[resourceID]
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	if !ok {
		return "", storage.ErrNotFound
	}
	return owner, nil
}

func (s *countingOwners) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// okHandler records that it ran and captures the bound identity.
type okHandler struct {
	called   bool
	identity Identity
	bound    bool
}

func (h *okHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.identity, h.bound = IdentityFromContext(r.Context())
	w.WriteHeader(http.StatusOK)
}

// assertDenial checks status and the exact {success,error} body.
func assertDenial(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int, wantMsg string) {
	t.Helper()
	if rec.Code != wantStatus {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, wantStatus, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var raw map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decoding body %q: %v", rec.Body.String(), err)
	}
	if raw["success"] != false {
		t.Errorf("success = %v, want false", raw["success"])
	}
	if raw["error"] != wantMsg {
		t.Errorf("error = %v, want %q", raw["error"], wantMsg)
	}
	if len(raw) != 2 {
		t.Errorf("body has %d fields, want 2: %v", len(raw), raw)
	}
}

// withIdentity returns a request with id already bound.
func withIdentity(r *http.Request, id Identity) *http.Request {
	return r.WithContext(WithIdentity(r.Context(), id))
}

// counterValue reads tutogate_gate_decisions_total for gate and outcome.
func counterValue(t *testing.T, gate, outcome string) float64 {
	t.Helper()
	m := &dto.Metric{}
	c, err := observability.GateDecisionsTotal.GetMetricWithLabelValues(gate, outcome)
	if err != nil {
		t.Fatalf("getting counter metric: %v", err)
	}
	if err := c.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

// bufferLogger returns a debug-level JSON logger writing to the returned buffer.
func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}
