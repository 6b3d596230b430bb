// Package postgres provides a PostgreSQL user and tutorial store for the
// tutogate gates. It uses pgx/v5 for connection pooling. Lookups select
// only the columns the gates need; the password hash is never read.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/tutogate/pkg/auth"
	"github.com/rhuss/tutogate/pkg/storage"
)

// Store is a PostgreSQL-backed UserStore and OwnershipStore.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ auth.UserStore      = (*Store)(nil)
	_ auth.OwnershipStore = (*Store)(nil)
)

// Config selects the database and sizes the pool. Zero pool fields keep
// pgxpool's own defaults or whatever the DSN sets (pool_max_conns, ...).
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration

	// MigrateOnStart creates the users and tutorials tables at startup.
	MigrateOnStart bool
}

// poolConfig parses the DSN and applies the non-zero pool settings on top.
func (c Config) poolConfig() (*pgxpool.Config, error) {
	if c.MinConns > 0 && c.MaxConns > 0 && c.MinConns > c.MaxConns {
		return nil, fmt.Errorf("min conns %d exceeds max conns %d", c.MinConns, c.MaxConns)
	}

	poolCfg, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	if c.MaxConns > 0 {
		poolCfg.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 {
		poolCfg.MinConns = c.MinConns
	}
	if c.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = c.MaxConnLifetime
	}
	return poolCfg, nil
}

// New connects, pings and, when cfg.MigrateOnStart is set, migrates.
func New(ctx context.Context, cfg Config) (*Store, error) {
	poolCfg, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// FindUserByID returns the identity projection of a user.
func (s *Store) FindUserByID(ctx context.Context, id string) (auth.Identity, error) {
	var (
		ident auth.Identity
		roles []string
	)
	err := s.pool.QueryRow(ctx,
		"SELECT id, username, email, roles FROM users WHERE id = $1",
		id,
	).Scan(&ident.ID, &ident.Username, &ident.Email, &roles)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.Identity{}, storage.ErrNotFound
	}
	if err != nil {
		return auth.Identity{}, fmt.Errorf("querying user: %w", err)
	}

	ident.Roles = auth.ParseRoles(roles)
	return ident, nil
}

// FindResourceOwner returns the author of a tutorial.
func (s *Store) FindResourceOwner(ctx context.Context, resourceID string) (string, error) {
	var owner string
	err := s.pool.QueryRow(ctx,
		"SELECT author_id FROM tutorials WHERE id = $1",
		resourceID,
	).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying tutorial owner: %w", err)
	}
	return owner, nil
}

// CreateUser inserts a user without a password hash.
func (s *Store) CreateUser(ctx context.Context, u storage.User) error {
	roles := u.Roles
	if len(roles) == 0 {
		roles = []string{string(auth.RoleUser)}
	}
	_, err := s.pool.Exec(ctx,
		"INSERT INTO users (id, username, email, roles) VALUES ($1, $2, $3, $4)",
		u.ID, u.Username, u.Email, roles,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// CreateTutorial inserts a tutorial.
func (s *Store) CreateTutorial(ctx context.Context, t storage.Tutorial) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO tutorials (id, title, author_id) VALUES ($1, $2, $3)",
		t.ID, t.Title, t.AuthorID,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting tutorial: %w", err)
	}
	return nil
}

// DeleteTutorial removes a tutorial. Returns storage.ErrNotFound if absent.
func (s *Store) DeleteTutorial(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM tutorials WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting tutorial: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all pool connections.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// isDuplicateKey reports a unique_violation.
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
