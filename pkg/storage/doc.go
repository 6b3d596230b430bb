// Package storage holds the sentinel errors shared by the user and
// ownership store implementations (memory, postgres).
//
// The store interfaces themselves (auth.UserStore, auth.OwnershipStore) are
// defined by their consumer in pkg/auth. Implementations return ErrNotFound
// for absent records so that gates can tell absence from store failure.
package storage
