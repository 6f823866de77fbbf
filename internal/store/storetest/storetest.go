// Package storetest creates throwaway stats and member databases for
// tests. It mirrors the schemas of the real upstream applications,
// including columns rollsync itself never touches.
package storetest

import (
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// AttendanceRow seeds one receivers_record row.
type AttendanceRow struct {
	MemberID  int64
	Name      string
	Year      int
	FirstHalf uint32
	LastHalf  uint32
}

// MemberRow seeds one imports_person row. Note stands in for the many
// unrelated columns the real directory carries.
type MemberRow struct {
	ID       int64
	Name     string
	Presence string
	Note     string
}

// CreateStatsDB creates a stats database at path with the given rows.
func CreateStatsDB(t *testing.T, path string, rows []AttendanceRow) {
	t.Helper()

	db := create(t, path, `
	CREATE TABLE receivers_record (
		church_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		year INTEGER NOT NULL,
		first_half INTEGER NOT NULL DEFAULT 0,
		last_half INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (church_id, year)
	)`)
	defer db.Close()

	for _, row := range rows {
		_, err := db.Exec(
			"INSERT INTO receivers_record (church_id, name, year, first_half, last_half) VALUES (?, ?, ?, ?, ?)",
			row.MemberID, row.Name, row.Year, row.FirstHalf, row.LastHalf)
		if err != nil {
			t.Fatalf("seeding stats row: %v", err)
		}
	}
}

// CreateMemberDB creates a member database at path with the given rows.
func CreateMemberDB(t *testing.T, path string, rows []MemberRow) {
	t.Helper()

	db := create(t, path, `
	CREATE TABLE imports_person (
		church_id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		presence TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT ''
	)`)
	defer db.Close()

	for _, row := range rows {
		_, err := db.Exec(
			"INSERT INTO imports_person (church_id, name, presence, note) VALUES (?, ?, ?, ?)",
			row.ID, row.Name, row.Presence, row.Note)
		if err != nil {
			t.Fatalf("seeding member row: %v", err)
		}
	}
}

func create(t *testing.T, path, schema string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		t.Fatalf("creating test database: %v", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		t.Fatalf("creating test schema: %v", err)
	}
	return db
}
