// Package store implements the Cache Store: a single-table JSON document
// store over an embedded SQLite database, plus the file blob store and the
// idempotent-response cache (SPEC_FULL.md section 4.2).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	// Pure-Go SQLite driver (no CGO), matching the teacher's driver choice.
	_ "modernc.org/sqlite"
)

// Store owns the single SQLite connection shared by the services,
// blob_files, and cached_responses tables. It is the sole writer: all
// three tables live behind one *sql.DB with SetMaxOpenConns(1), so
// concurrent transactions are serialized by the backend rather than the
// application (SPEC_FULL.md section 5, "Shared-resource discipline").
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Options configures Open.
type Options struct {
	// Path is the database file path, or ":memory:" for an in-memory store.
	Path string
	// Logger receives structured logs; a no-op logger is used if nil.
	Logger *slog.Logger
}

// Open creates or migrates the SQLite database at opts.Path and returns a
// ready-to-use Store. DSN pragmas mirror the teacher's crash-safe
// configuration: WAL journaling, a busy timeout so concurrent readers
// don't immediately fail, and foreign keys on.
func Open(ctx context.Context, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		opts.Path,
	)

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("pbsync: store: opening database %s: %w", opts.Path, err)
	}

	// Sole-writer pattern: one connection, all writes serialized.
	sqlDB.SetMaxOpenConns(1)

	if err := runMigrations(ctx, sqlDB, logger); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &Store{db: sqlx.NewDb(sqlDB, "sqlite"), logger: logger}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sqlx.DB for components that need direct query
// access beyond the typed accessors below (the query engine's generated
// SQL, for instance).
func (s *Store) DB() *sqlx.DB { return s.db }

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
