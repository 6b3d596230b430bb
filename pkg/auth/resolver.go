package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rhuss/tutogate/pkg/observability"
	"github.com/rhuss/tutogate/pkg/storage"
)

// DefaultLookupTimeout bounds each identity or ownership store round trip.
const DefaultLookupTimeout = 5 * time.Second

// ErrIncompleteIdentity is returned when the store yields a record that
// cannot be bound: an id that differs from the subject, or no known role.
var ErrIncompleteIdentity = errors.New("incomplete identity record")

// Resolver maps a verified token subject to the minimal identity projection.
type Resolver struct {
	store   UserStore
	timeout time.Duration
}

// NewResolver creates a Resolver. A zero timeout uses DefaultLookupTimeout.
func NewResolver(store UserStore, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &Resolver{store: store, timeout: timeout}
}

// Resolve looks up subject. It returns an error wrapping storage.ErrNotFound
// when no such user exists, ErrIncompleteIdentity for unusable records, and
// any other error for store faults or timeouts.
func (r *Resolver) Resolve(ctx context.Context, subject string) (Identity, error) {
	ctx, cancel := lookupContext(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	id, err := r.store.FindUserByID(ctx, subject)
	observability.ObserveLookup("identity", start)
	if err != nil {
		return Identity{}, fmt.Errorf("resolving user %q: %w", subject, err)
	}

	id.Roles = knownRoles(id.Roles)
	if id.ID != subject || !id.complete() {
		return Identity{}, fmt.Errorf("resolving user %q: %w", subject, ErrIncompleteIdentity)
	}
	return id, nil
}

// resolveDenial maps a Resolve error to the denial the gate writes.
func resolveDenial(err error) *Denial {
	if errors.Is(err, storage.ErrNotFound) {
		return newDenial(KindIdentityNotFound, err)
	}
	d := newDenial(KindLookupFailure, err)
	d.Message = MsgIdentityCheckFailed
	return d
}

func knownRoles(roles []Role) []Role {
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		if r.Valid() && !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}
