package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/knagata/rollsync/internal/status"
	"github.com/knagata/rollsync/internal/store/storetest"
)

func TestOpenMissingFile(t *testing.T) {
	if _, err := OpenStats(filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Error("OpenStats() on missing file succeeded, want error")
	}
	if _, err := OpenMembers(filepath.Join(t.TempDir(), "missing.db"), false); err == nil {
		t.Error("OpenMembers() on missing file succeeded, want error")
	}
	if _, err := OpenStats(t.TempDir()); err == nil {
		t.Error("OpenStats() on a directory succeeded, want error")
	}
}

func TestReadAttendance(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "stats.db")
	storetest.CreateStatsDB(t, path, []storetest.AttendanceRow{
		{MemberID: 2, Name: "Botan", Year: 2024, FirstHalf: 0b11},
		{MemberID: 1, Name: "Asahi", Year: 2023, FirstHalf: 1},
		{MemberID: 1, Name: "Asahi", Year: 2024, LastHalf: 1 << 21},
		{MemberID: 1, Name: "Asahi", Year: 2019, FirstHalf: 0xFF},
	})

	stats, err := OpenStats(path)
	if err != nil {
		t.Fatalf("OpenStats() error = %v", err)
	}
	defer stats.Close()

	t.Run("all rows ordered", func(t *testing.T) {
		records, err := stats.ReadAttendance(ctx, AttendanceFilter{})
		if err != nil {
			t.Fatalf("ReadAttendance() error = %v", err)
		}
		if len(records) != 4 {
			t.Fatalf("got %d records, want 4", len(records))
		}
		// member id ascending, then year ascending
		wantOrder := []struct {
			id   int64
			year int
		}{{1, 2019}, {1, 2023}, {1, 2024}, {2, 2024}}
		for i, w := range wantOrder {
			if records[i].MemberID != w.id || records[i].Year != w.year {
				t.Errorf("record %d = (%d, %d), want (%d, %d)",
					i, records[i].MemberID, records[i].Year, w.id, w.year)
			}
		}
	})

	t.Run("filter by member and year", func(t *testing.T) {
		records, err := stats.ReadAttendance(ctx, AttendanceFilter{MemberID: 1, SinceYear: 2023})
		if err != nil {
			t.Fatalf("ReadAttendance() error = %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("got %d records, want 2", len(records))
		}
		if records[0].Year != 2023 || records[1].Year != 2024 {
			t.Errorf("unexpected years: %d, %d", records[0].Year, records[1].Year)
		}
		if records[1].LastHalf != 1<<21 {
			t.Errorf("LastHalf = %#x, want %#x", records[1].LastHalf, 1<<21)
		}
	})
}

func TestReadMembers(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "members.db")
	storetest.CreateMemberDB(t, path, []storetest.MemberRow{
		{ID: 2, Name: "Botan", Presence: "a", Note: "choir"},
		{ID: 1, Name: "Asahi", Presence: ""},
		{ID: 3, Name: "Chika", Presence: "d"},
	})

	db, err := OpenMembers(path, false)
	if err != nil {
		t.Fatalf("OpenMembers() error = %v", err)
	}
	defer db.Close()

	members, err := db.ReadMembers(ctx, 0)
	if err != nil {
		t.Fatalf("ReadMembers() error = %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("got %d members, want 3", len(members))
	}
	if got := members[1].Presence; got != status.GuestUnset {
		t.Errorf("member 1 presence = %v, want legacy empty code", got)
	}
	if got := members[3].Presence; got != status.Deceased {
		t.Errorf("member 3 presence = %v, want %v", got, status.Deceased)
	}

	single, err := db.ReadMembers(ctx, 2)
	if err != nil {
		t.Fatalf("ReadMembers(2) error = %v", err)
	}
	if len(single) != 1 || single[2].Name != "Botan" {
		t.Errorf("ReadMembers(2) = %+v, want only Botan", single)
	}
}

func TestReadMembersUnknownCode(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "members.db")
	storetest.CreateMemberDB(t, path, []storetest.MemberRow{
		{ID: 1, Name: "Asahi", Presence: "zz"},
	})

	db, err := OpenMembers(path, false)
	if err != nil {
		t.Fatalf("OpenMembers() error = %v", err)
	}
	defer db.Close()

	if _, err := db.ReadMembers(ctx, 0); err == nil {
		t.Error("ReadMembers() with unknown presence code succeeded, want error")
	}
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "members.db")
	storetest.CreateMemberDB(t, path, []storetest.MemberRow{
		{ID: 1, Name: "Asahi", Presence: "g", Note: "new this spring"},
	})

	db, err := OpenMembers(path, true)
	if err != nil {
		t.Fatalf("OpenMembers() error = %v", err)
	}
	defer db.Close()

	if err := db.UpdateStatus(ctx, 1, status.Regular); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	members, err := db.ReadMembers(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := members[1].Presence; got != status.Regular {
		t.Errorf("presence after update = %v, want %v", got, status.Regular)
	}

	// Unrelated columns must survive a status update untouched.
	var note string
	row := db.conn.QueryRow("SELECT note FROM imports_person WHERE church_id = 1")
	if err := row.Scan(&note); err != nil {
		t.Fatal(err)
	}
	if note != "new this spring" {
		t.Errorf("note column = %q, want untouched original", note)
	}

	if err := db.UpdateStatus(ctx, 42, status.Regular); err == nil {
		t.Error("UpdateStatus() for unknown member succeeded, want error")
	}
}

func TestUpdateStatusReadOnly(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "members.db")
	storetest.CreateMemberDB(t, path, []storetest.MemberRow{
		{ID: 1, Name: "Asahi", Presence: "g"},
	})

	db, err := OpenMembers(path, false)
	if err != nil {
		t.Fatalf("OpenMembers() error = %v", err)
	}
	defer db.Close()

	if err := db.UpdateStatus(ctx, 1, status.Regular); err == nil {
		t.Error("UpdateStatus() on read-only database succeeded, want error")
	}
}

// A dry run must leave the member database byte-for-byte unchanged.
func TestReadOnlyLeavesFileUntouched(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "members.db")
	storetest.CreateMemberDB(t, path, []storetest.MemberRow{
		{ID: 1, Name: "Asahi", Presence: "g"},
		{ID: 2, Name: "Botan", Presence: "a"},
	})

	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	db, err := OpenMembers(path, false)
	if err != nil {
		t.Fatalf("OpenMembers() error = %v", err)
	}
	if _, err := db.ReadMembers(ctx, 0); err != nil {
		t.Fatal(err)
	}
	_ = db.UpdateStatus(ctx, 1, status.Regular) // must fail, must not write
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("member database changed during a read-only session")
	}
}

func TestCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")
	storetest.CreateStatsDB(t, path, nil)

	db, err := OpenStats(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
