package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/knagata/rollsync/internal/attendance"
)

// StatsDB reads yearly attendance records from the stats database.
// Always opened read-only; rollsync never writes attendance data.
type StatsDB struct {
	*DB
}

// OpenStats opens the stats database read-only.
func OpenStats(path string) (*StatsDB, error) {
	db, err := open(path, true)
	if err != nil {
		return nil, err
	}
	return &StatsDB{DB: db}, nil
}

// AttendanceFilter narrows a ReadAttendance query.
type AttendanceFilter struct {
	// MemberID restricts to a single member (0 = all members).
	MemberID int64
	// SinceYear drops rows older than this year (0 = all years).
	SinceYear int
}

// ReadAttendance returns yearly attendance rows ordered by member id
// ascending, then year ascending.
func (s *StatsDB) ReadAttendance(ctx context.Context, filter AttendanceFilter) ([]attendance.Record, error) {
	var conditions []string
	var args []interface{}

	if filter.MemberID != 0 {
		conditions = append(conditions, "church_id = ?")
		args = append(args, filter.MemberID)
	}
	if filter.SinceYear != 0 {
		conditions = append(conditions, "year >= ?")
		args = append(args, filter.SinceYear)
	}

	query := `
	SELECT church_id, name, year, first_half, last_half
	FROM receivers_record
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY church_id ASC, year ASC"

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		var rec attendance.Record
		if err := rows.Scan(&rec.MemberID, &rec.Name, &rec.Year, &rec.FirstHalf, &rec.LastHalf); err != nil {
			return nil, fmt.Errorf("failed to scan attendance row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance rows: %w", err)
	}

	return records, nil
}
