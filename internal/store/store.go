package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/taxii/internal/taxii"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Empty database
// 1 - Initial schema
// 2 - Added index on subscriptions(service_id)
// 3 - Times stored as fixed-width UTC text instead of unix nanoseconds
const currentSchemaVersion = 3

// Store is the SQLite implementation of taxii.Repository, plus the
// provisioning and purge operations the CLI needs.
type Store struct {
	db        *sql.DB
	syncLimit int64
}

var _ taxii.Repository = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithSyncLimit defers first-page fetches whose matching block count exceeds
// n: FetchContentBlocks returns taxii.NotReady until the query carries a
// result id. Zero disables deferral.
func WithSyncLimit(n int64) Option {
	return func(s *Store) { s.syncLimit = n }
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 2 {
		if err := migrateToV2(db); err != nil {
			return err
		}
	}
	if version < 3 {
		if err := migrateToV3(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV2 indexes subscriptions by owning service for status listings.
func migrateToV2(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_subscriptions_service
		ON subscriptions(service_id, created_at, id)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	return nil
}

// timeColumns lists every column holding a time, by table.
var timeColumns = []struct {
	table   string
	columns []string
}{
	{"inbox_messages", []string{"exclusive_begin", "inclusive_end", "created_at"}},
	{"content_blocks", []string{"timestamp_label", "created_at"}},
	{"result_sets", []string{"begin_time", "end_time", "created_at"}},
	{"subscriptions", []string{"created_at"}},
}

// migrateToV3 rewrites integer unix-nanosecond times as fixed-width text.
// Values written before v3 always fit in int64 nanoseconds.
func migrateToV3(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate to v3: %w", err)
	}
	defer tx.Rollback()

	for _, tc := range timeColumns {
		for _, col := range tc.columns {
			frac := fmt.Sprintf("((%s %% 1000000000) + 1000000000) %% 1000000000", col)
			expr := fmt.Sprintf(
				"strftime('%%Y-%%m-%%dT%%H:%%M:%%S', (%s - %s) / 1000000000, 'unixepoch') || '.' || printf('%%09d', %s) || 'Z'",
				col, frac, frac)
			stmt := fmt.Sprintf("UPDATE %s SET %s = %s WHERE typeof(%s) = 'integer'", tc.table, col, expr, col)
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("migrate to v3: %s.%s: %w", tc.table, col, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate to v3: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
