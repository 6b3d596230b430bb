// Package memory provides an in-memory user and tutorial store for tests
// and development deployments. Records can be seeded from a YAML file and
// are lost when the process restarts.
package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/tutogate/pkg/auth"
	"github.com/rhuss/tutogate/pkg/storage"
)

// Store is an in-memory UserStore and OwnershipStore.
type Store struct {
	mu        sync.RWMutex
	users     map[string]storage.User
	tutorials map[string]storage.Tutorial
}

var (
	_ auth.UserStore      = (*Store)(nil)
	_ auth.OwnershipStore = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:     make(map[string]storage.User),
		tutorials: make(map[string]storage.Tutorial),
	}
}

// CreateUser adds a user. Returns storage.ErrConflict if the id is taken.
func (s *Store) CreateUser(_ context.Context, u storage.User) error {
	if u.ID == "" {
		return fmt.Errorf("memory: user id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID]; exists {
		return storage.ErrConflict
	}
	u.Roles = slices.Clone(u.Roles)
	s.users[u.ID] = u
	return nil
}

// DeleteUser removes a user. Returns storage.ErrNotFound if absent.
func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[id]; !exists {
		return storage.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

// CreateTutorial adds a tutorial. Returns storage.ErrConflict if the id is taken.
func (s *Store) CreateTutorial(_ context.Context, t storage.Tutorial) error {
	if t.ID == "" {
		return fmt.Errorf("memory: tutorial id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tutorials[t.ID]; exists {
		return storage.ErrConflict
	}
	s.tutorials[t.ID] = t
	return nil
}

// DeleteTutorial removes a tutorial. Returns storage.ErrNotFound if absent.
func (s *Store) DeleteTutorial(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tutorials[id]; !exists {
		return storage.ErrNotFound
	}
	delete(s.tutorials, id)
	return nil
}

// FindUserByID returns the identity projection of a user.
func (s *Store) FindUserByID(ctx context.Context, id string) (auth.Identity, error) {
	if err := ctx.Err(); err != nil {
		return auth.Identity{}, err
	}

	s.mu.RLock()
	u, ok := s.users[id]
	s.mu.RUnlock()

	if !ok {
		return auth.Identity{}, storage.ErrNotFound
	}
	return auth.Identity{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Roles:    auth.ParseRoles(u.Roles),
	}, nil
}

// FindResourceOwner returns the author of a tutorial.
func (s *Store) FindResourceOwner(ctx context.Context, resourceID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	t, ok := s.tutorials[resourceID]
	s.mu.RUnlock()

	if !ok {
		return "", storage.ErrNotFound
	}
	return t.AuthorID, nil
}

// HealthCheck always succeeds for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// Seed is the YAML layout of a seed file.
type Seed struct {
	Users     []storage.User     `yaml:"users"`
	Tutorials []storage.Tutorial `yaml:"tutorials"`
}

// LoadSeed reads a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing seed file %s: %w", path, err)
	}
	return &seed, nil
}

// Apply inserts every record of seed into s. It stops at the first error.
func (seed *Seed) Apply(ctx context.Context, s *Store) error {
	for _, u := range seed.Users {
		if err := s.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("seeding user %q: %w", u.ID, err)
		}
	}
	for _, t := range seed.Tutorials {
		if err := s.CreateTutorial(ctx, t); err != nil {
			return fmt.Errorf("seeding tutorial %q: %w", t.ID, err)
		}
	}
	return nil
}
