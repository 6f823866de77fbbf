// Package store provides read and write access to the two SQLite
// databases rollsync works with: the stats database (attendance bitmaps,
// read-only) and the member database (the directory whose presence column
// gets updated).
//
// Both databases belong to other applications. This package therefore
// never creates files, never migrates schemas, and never touches columns
// other than imports_person.presence.
package store

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps a SQLite connection to an existing database file.
type DB struct {
	conn *sql.DB
	path string
}

// open connects to an existing SQLite database. readOnly opens the file
// with mode=ro so the run cannot modify it, not even journal files.
func open(path string, readOnly bool) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("database %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("database %s: is a directory", path)
	}

	connStr := fmt.Sprintf("file:%s", path)
	if readOnly {
		connStr += "?mode=ro"
	}
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", path, err)
	}

	// Single-threaded batch tool: one connection is all we need, and it
	// keeps prepared statement state predictable.
	conn.SetMaxOpenConns(1)

	if !readOnly {
		if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set busy timeout: %w", err)
		}
	}

	return &DB{conn: conn, path: path}, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database %s: %w", db.path, err)
	}
	db.conn = nil
	return nil
}
