package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// ErrStoreUnavailable is returned when the backing database cannot be opened or connected.
var ErrStoreUnavailable = errors.New("record store unavailable")

// Tables that share the record schema. Table names are the only identifiers
// ever formatted into query text, so they are restricted to this list.
var knownTables = map[string]bool{
	"news":   true,
	"heroes": true,
}

// ValidateTable reports whether table is a known catalog table.
func ValidateTable(table string) error {
	if !knownTables[table] {
		return fmt.Errorf("unknown catalog table %q", table)
	}
	return nil
}

// New opens a read-write SQLite database at the given path, creating it if needed.
// driver is "sqlite3" (mattn/go-sqlite3) or "sqlite" (modernc.org/sqlite).
// Used by the importer; the server uses NewReadOnly.
func New(driver, path string) (*sql.DB, error) {
	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, err
	}

	configurePool(db)

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	return db, nil
}

// NewReadOnly opens the database at path in read-only mode without connecting.
// A missing or unreadable file is reported by the first operation that needs a
// connection, as ErrStoreUnavailable, instead of creating an empty database.
func NewReadOnly(driver, path string) (*sql.DB, error) {
	db, err := sql.Open(driver, readOnlyDSN(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	configurePool(db)

	return db, nil
}

// readOnlyDSN builds a SQLite URI filename that opens path with mode=ro.
func readOnlyDSN(path string) string {
	u := url.URL{Scheme: "file", Opaque: path}
	q := url.Values{}
	q.Set("mode", "ro")
	u.RawQuery = q.Encode()
	return u.String()
}

func configurePool(db *sql.DB) {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
}

// Migrate creates the catalog table and its indexes.
// It is idempotent and can be run multiple times safely.
func Migrate(db *sql.DB, table string) error {
	if err := ValidateTable(table); err != nil {
		return err
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS ` + table + ` (
			id INTEGER PRIMARY KEY,
			release_date TEXT NOT NULL,
			title TEXT NOT NULL,
			source TEXT NOT NULL,
			link TEXT NOT NULL,
			tags TEXT NOT NULL,
			description TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_` + table + `_release_date ON ` + table + ` (release_date DESC, id DESC);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", table, err)
		}
	}

	return nil
}
