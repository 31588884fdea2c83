package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLStore is a SecretStore backed by a single-table database/sql schema.
// It runs on either Postgres (github.com/lib/pq) or SQLite
// (modernc.org/sqlite); the driver name chosen at Open selects the
// placeholder and upsert dialect.
type SQLStore struct {
	db      *sql.DB
	queries sqlQueries
}

type sqlQueries struct {
	read  string
	write string
}

var dialects = map[string]sqlQueries{
	"postgres": {
		read: `SELECT blob FROM secret_records WHERE name = $1`,
		write: `INSERT INTO secret_records (name, blob, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE SET blob = EXCLUDED.blob, updated_at = EXCLUDED.updated_at`,
	},
	"sqlite": {
		read: `SELECT blob FROM secret_records WHERE name = ?`,
		write: `INSERT INTO secret_records (name, blob, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (name) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
	},
}

const secretSchema = `
	CREATE TABLE IF NOT EXISTS secret_records (
		name TEXT PRIMARY KEY,
		blob BLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`

// OpenSQLStore opens the database, verifies the connection, and ensures the
// schema exists. Supported drivers: "postgres", "sqlite".
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	queries, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported secret store driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open secret store database: %w", err)
	}

	if driver == "sqlite" {
		// SQLite supports a single writer.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("secret store database ping failed: %w", err)
	}

	store := &SQLStore{db: db, queries: queries}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore wraps an already-open database (used in tests with sqlmock).
func NewSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	queries, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported secret store driver %q", driver)
	}
	return &SQLStore{db: db, queries: queries}, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, secretSchema); err != nil {
		return fmt.Errorf("failed to initialize secret store schema: %w", err)
	}
	return nil
}

// Read returns the stored blob, or (nil, nil) when the record is absent.
func (s *SQLStore) Read(ctx context.Context, key string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, s.queries.read, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read secret record %q: %w", key, err)
	}
	return blob, nil
}

// Write upserts the record.
func (s *SQLStore) Write(ctx context.Context, key string, blob []byte) error {
	if _, err := s.db.ExecContext(ctx, s.queries.write, key, blob, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write secret record %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
