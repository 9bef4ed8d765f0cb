// Package database opens and migrates the catalog's SQLite store.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// dsnOptions are appended to every connection string: WAL journaling, a busy
// timeout for the writer lock, and enforced foreign keys (member rows
// cascade on band deletion). modernc's driver takes pragmas as
// `_pragma=name(value)` pairs and applies them on every new connection.
const dsnOptions = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// Open opens the catalog database at dbPath, creating the parent directory
// if needed. Pass ":memory:" for an ephemeral database in tests.
func Open(dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// SQLite allows one writer; a single connection avoids lock contention.
	db.SetMaxOpenConns(1)

	return db, nil
}
