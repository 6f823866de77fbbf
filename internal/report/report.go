// Package report renders reconciliation results as CSV.
//
// Two reports exist: the diff report (only members whose status changed,
// in the order the reconciler emitted them) and the full report (every
// member's final state, id ascending). Both are UTF-8, comma-delimited,
// with a header row, matching the layout of the upstream system's export.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/knagata/rollsync/internal/attendance"
	"github.com/knagata/rollsync/internal/reconcile"
	"github.com/knagata/rollsync/internal/store"
)

var header = []string{"church_id", "name", "cnt", "curr_status", "new_status", "diff"}

// WriteDiff writes only the changed members, in change order.
func WriteDiff(w io.Writer, changes []reconcile.Change) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write diff header: %w", err)
	}
	for _, c := range changes {
		row := []string{
			strconv.FormatInt(c.MemberID, 10),
			c.Name,
			strconv.Itoa(c.Weeks),
			c.Old.Name(),
			c.New.Name(),
			"true",
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write diff row for member %d: %w", c.MemberID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFull writes every member's final state, id ascending. For
// unchanged members new_status equals curr_status and diff is false.
func WriteFull(w io.Writer, members map[int64]store.Member, stats map[int64]attendance.MemberStats, changes []reconcile.Change) error {
	changed := make(map[int64]reconcile.Change, len(changes))
	for _, c := range changes {
		changed[c.MemberID] = c
	}

	ids := make([]int64, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write full header: %w", err)
	}
	for _, id := range ids {
		m := members[id]
		weeks := stats[id].Weeks
		newStatus := m.Presence
		diff := false
		if c, ok := changed[id]; ok {
			newStatus = c.New
			diff = true
		}
		row := []string{
			strconv.FormatInt(id, 10),
			m.Name,
			strconv.Itoa(weeks),
			m.Presence.Name(),
			newStatus.Name(),
			strconv.FormatBool(diff),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write full row for member %d: %w", id, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDiffFile writes the diff report to path, creating or truncating it.
func WriteDiffFile(path string, changes []reconcile.Change) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteDiff(w, changes)
	})
}

// WriteFullFile writes the full report to path, creating or truncating it.
func WriteFullFile(path string, members map[int64]store.Member, stats map[int64]attendance.MemberStats, changes []reconcile.Change) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteFull(w, members, stats, changes)
	})
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close report %s: %w", path, err)
	}
	return nil
}
