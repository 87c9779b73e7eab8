package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/talentgraph/talentgraph-go/internal/logging"
)

// ErrNotFound is returned for lookups that match no row.
var ErrNotFound = errors.New("not found")

// Store is the single persistent store. All writes are idempotent upserts
// keyed on natural identifiers; conflict arithmetic (COALESCE, GREATEST,
// MIN, array union) commutes, so concurrent writers are safe.
type Store struct {
	db     *sqlx.DB
	logger *logging.Logger
}

// NewStore connects to Postgres and verifies connectivity.
func NewStore(dsn string, logger *logging.Logger) (*Store, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Store{db: db, logger: logger}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
