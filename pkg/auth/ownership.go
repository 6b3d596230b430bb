package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rhuss/tutogate/pkg/observability"
	"github.com/rhuss/tutogate/pkg/storage"
)

// DefaultResourceParams are the route parameters searched, in order, for
// the id of the resource being modified.
var DefaultResourceParams = []string{"id", "tutorialId"}

// OwnershipOption configures an OwnershipGate.
type OwnershipOption func(*OwnershipGate)

// WithResourceParam replaces the route parameters searched for the resource id.
func WithResourceParam(names ...string) OwnershipOption {
	return func(g *OwnershipGate) {
		g.params = slices.Clone(names)
	}
}

// WithLookupTimeout bounds the owner lookup.
func WithLookupTimeout(d time.Duration) OwnershipOption {
	return func(g *OwnershipGate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLogger sets the logger used for denials.
func WithLogger(l *slog.Logger) OwnershipOption {
	return func(g *OwnershipGate) {
		if l != nil {
			g.logger = l
		}
	}
}

// OwnershipGate allows a request when the caller is an admin or owns the
// target resource. The owner is fetched on every check.
type OwnershipGate struct {
	store   OwnershipStore
	params  []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewOwnershipGate creates a gate backed by store.
func NewOwnershipGate(store OwnershipStore, opts ...OwnershipOption) *OwnershipGate {
	g := &OwnershipGate{
		store:   store,
		params:  slices.Clone(DefaultResourceParams),
		timeout: DefaultLookupTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize decides whether the identity bound to ctx may modify resourceID.
// Admins are granted without consulting the store.
func (g *OwnershipGate) Authorize(ctx context.Context, resourceID string) *Denial {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return newDenial(KindCallerOrderingDefect, errNoIdentity)
	}
	if id.IsAdmin() {
		return nil
	}
	return g.authorizeOwner(ctx, id, resourceID)
}

// Check is Authorize with the resource id taken from r's route parameters.
// The admin decision is made before the parameters are read.
func (g *OwnershipGate) Check(r *http.Request) *Denial {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		return newDenial(KindCallerOrderingDefect, errNoIdentity)
	}
	if id.IsAdmin() {
		return nil
	}
	return g.authorizeOwner(r.Context(), id, g.resourceID(r))
}

func (g *OwnershipGate) authorizeOwner(ctx context.Context, id Identity, resourceID string) *Denial {
	if resourceID == "" {
		return newDenial(KindResourceNotFound, errors.New("no resource id in route"))
	}

	lctx, cancel := lookupContext(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	owner, err := g.store.FindResourceOwner(lctx, resourceID)
	observability.ObserveLookup("ownership", start)

	switch {
	case errors.Is(err, storage.ErrNotFound):
		return newDenial(KindResourceNotFound, err)
	case err != nil:
		return newDenial(KindLookupFailure, fmt.Errorf("looking up owner of %q: %w", resourceID, err))
	case owner == "":
		return newDenial(KindLookupFailure, fmt.Errorf("resource %q has no owner", resourceID))
	case owner != id.ID:
		return newDenial(KindOwnershipMismatch, nil)
	}
	return nil
}

// resourceID returns the first non-empty configured route parameter,
// checking chi's route context before the standard library's.
func (g *OwnershipGate) resourceID(r *http.Request) string {
	for _, name := range g.params {
		if v := chi.URLParam(r, name); v != "" {
			return v
		}
		if v := r.PathValue(name); v != "" {
			return v
		}
	}
	return ""
}

// Middleware writes a denial unless Check grants.
func (g *OwnershipGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d := g.Check(r); d != nil {
			var subject string
			if id, ok := IdentityFromContext(r.Context()); ok {
				subject = id.ID
			}
			deny(w, r, g.logger, gateOwnership, d,
				"subject", subject,
				"resource_id", g.resourceID(r),
			)
			return
		}
		recordDecision(gateOwnership, nil)
		next.ServeHTTP(w, r)
	})
}

// RequireOwnerOrAdmin returns the ownership gate middleware for store.
func RequireOwnerOrAdmin(store OwnershipStore, opts ...OwnershipOption) func(http.Handler) http.Handler {
	return NewOwnershipGate(store, opts...).Middleware
}
