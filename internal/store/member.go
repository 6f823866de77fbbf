package store

import (
	"context"
	"fmt"

	"github.com/knagata/rollsync/internal/status"
)

// Member is one imports_person row as far as rollsync is concerned.
// The table carries many more columns; they are never read or written.
type Member struct {
	ID       int64
	Name     string
	Presence status.Status
}

// MemberDB reads the member directory and, when opened writable,
// updates the presence column.
type MemberDB struct {
	*DB
	writable bool
}

// OpenMembers opens the member database. A dry run opens it read-only so
// the file is guaranteed untouched; a write run needs writable=true.
func OpenMembers(path string, writable bool) (*MemberDB, error) {
	db, err := open(path, !writable)
	if err != nil {
		return nil, err
	}
	return &MemberDB{DB: db, writable: writable}, nil
}

// ReadMembers returns all members keyed by id. memberID restricts to a
// single member (0 = all). A row with an unknown presence code is a
// fatal error: it means the directory holds data this tool does not
// understand, and guessing would corrupt it.
func (m *MemberDB) ReadMembers(ctx context.Context, memberID int64) (map[int64]Member, error) {
	query := `
	SELECT church_id, name, presence
	FROM imports_person
	`
	var args []interface{}
	if memberID != 0 {
		query += " WHERE church_id = ?"
		args = append(args, memberID)
	}
	query += " ORDER BY church_id ASC"

	rows, err := m.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	members := make(map[int64]Member)
	for rows.Next() {
		var (
			id       int64
			name     string
			presence string
		)
		if err := rows.Scan(&id, &name, &presence); err != nil {
			return nil, fmt.Errorf("failed to scan member row: %w", err)
		}
		st, err := status.Parse(presence)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", id, err)
		}
		members[id] = Member{ID: id, Name: name, Presence: st}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member rows: %w", err)
	}

	return members, nil
}

// UpdateStatus sets a single member's presence code. All other columns
// are left untouched. Updating a member that does not exist is an error,
// not a no-op: the reconciler only emits changes for known members, so a
// missing row means the database changed under us.
func (m *MemberDB) UpdateStatus(ctx context.Context, id int64, s status.Status) error {
	if !m.writable {
		return fmt.Errorf("member database %s is open read-only", m.path)
	}
	res, err := m.conn.ExecContext(ctx,
		"UPDATE imports_person SET presence = ? WHERE church_id = ?",
		s.Code(), id)
	if err != nil {
		return fmt.Errorf("failed to update member %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of member %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("member %d not found in directory", id)
	}
	return nil
}
