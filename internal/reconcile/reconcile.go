// Package reconcile computes and applies presence status changes:
// given an attendance snapshot and a member snapshot, it decides per
// member whether the presence status should change, and applies the
// resulting diff to the member database in a deterministic order.
package reconcile

import (
	"log"
	"os"
	"sort"
	"time"

	"github.com/knagata/rollsync/internal/attendance"
	"github.com/knagata/rollsync/internal/status"
	"github.com/knagata/rollsync/internal/store"
)

// Change records one member whose presence status should change.
// Old is always the member's status at snapshot time; New is derived
// purely from the attendance snapshot and the policy.
type Change struct {
	MemberID   int64
	Name       string
	Weeks      int
	Old        status.Status
	New        status.Status
	ComputedAt time.Time
}

// Reconciler computes the status diff between the two snapshots.
type Reconciler struct {
	policy status.Policy
	logger *log.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Reconciler with the given classification policy.
// If logger is nil, a default logger writing to stderr is used.
func New(policy status.Policy, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.New(os.Stderr, "[reconcile] ", log.LstdFlags)
	}
	return &Reconciler{
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// Reconcile computes the changes needed to bring the member snapshot in
// line with the attendance snapshot. It never mutates its inputs.
//
// Members are visited in ascending id order, so two calls with identical
// inputs produce identical, identically ordered output. Ids present only
// in the stats snapshot are logged and ignored: rollsync updates the
// directory, it never invents members.
func (r *Reconciler) Reconcile(stats map[int64]attendance.MemberStats, members map[int64]store.Member) []Change {
	computedAt := r.now()

	ids := make([]int64, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var changes []Change
	for _, id := range ids {
		m := members[id]
		st, hasStats := stats[id]
		target := r.policy.Target(st.Weeks, hasStats, m.Presence)
		if target == m.Presence {
			continue
		}
		changes = append(changes, Change{
			MemberID:   id,
			Name:       m.Name,
			Weeks:      st.Weeks,
			Old:        m.Presence,
			New:        target,
			ComputedAt: computedAt,
		})
	}

	r.logOrphans(stats, members)

	return changes
}

// logOrphans warns about ids that exist in the stats database but not in
// the member directory. Sorted so log output is reproducible.
func (r *Reconciler) logOrphans(stats map[int64]attendance.MemberStats, members map[int64]store.Member) {
	var orphans []int64
	for id := range stats {
		if _, ok := members[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i] < orphans[j] })
	for _, id := range orphans {
		r.logger.Printf("WARNING: member %d found in stats database but not in member directory", id)
	}
}
