package reconcile

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/knagata/rollsync/internal/status"
)

// StatusWriter persists a single member's status change.
// *store.MemberDB implements it; tests substitute in-memory fakes.
type StatusWriter interface {
	UpdateStatus(ctx context.Context, id int64, s status.Status) error
}

// ApplyState says how far a batch of changes got.
type ApplyState int

const (
	// ApplySkipped means writes were disabled (dry run).
	ApplySkipped ApplyState = iota
	// ApplyNone means the first write failed; the directory is untouched.
	ApplyNone
	// ApplyPartial means some but not all changes were persisted.
	ApplyPartial
	// ApplyFull means every change was persisted.
	ApplyFull
)

func (s ApplyState) String() string {
	switch s {
	case ApplySkipped:
		return "skipped"
	case ApplyNone:
		return "none"
	case ApplyPartial:
		return "partial"
	case ApplyFull:
		return "full"
	default:
		return fmt.Sprintf("ApplyState(%d)", int(s))
	}
}

// Result reports what Apply did.
type Result struct {
	State ApplyState
	// Applied lists member ids whose status was persisted, in write order.
	Applied []int64
}

// PartialWriteError is returned when some changes persisted before a
// write failed. There is no rollback; the caller gets the exact split so
// the operator can re-run or repair.
type PartialWriteError struct {
	// Applied lists member ids that were persisted before the failure.
	Applied []int64
	// FailedID is the member whose write failed.
	FailedID int64
	// Remaining lists member ids that were never attempted.
	Remaining []int64
	Err       error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write: %d change(s) applied, member %d failed, %d never attempted: %v",
		len(e.Applied), e.FailedID, len(e.Remaining), e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// Apply persists changes through w, in the order the reconciler emitted
// them. With writeEnabled=false nothing is written (the default-safe dry
// run). The first failed write aborts the rest of the batch.
func Apply(ctx context.Context, w StatusWriter, changes []Change, writeEnabled bool, logger *log.Logger) (Result, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[reconcile] ", log.LstdFlags)
	}

	if !writeEnabled {
		logger.Printf("dry run: %d change(s) computed, nothing written", len(changes))
		return Result{State: ApplySkipped}, nil
	}

	if len(changes) == 0 {
		logger.Printf("no records need updates in member directory")
		return Result{State: ApplyFull}, nil
	}

	applied := make([]int64, 0, len(changes))
	for i, c := range changes {
		if err := w.UpdateStatus(ctx, c.MemberID, c.New); err != nil {
			if len(applied) == 0 {
				return Result{State: ApplyNone}, fmt.Errorf("failed before any write: member %d: %w", c.MemberID, err)
			}
			remaining := make([]int64, 0, len(changes)-i-1)
			for _, rest := range changes[i+1:] {
				remaining = append(remaining, rest.MemberID)
			}
			return Result{State: ApplyPartial, Applied: applied}, &PartialWriteError{
				Applied:   applied,
				FailedID:  c.MemberID,
				Remaining: remaining,
				Err:       err,
			}
		}
		applied = append(applied, c.MemberID)
	}

	logger.Printf("%d record(s) updated in member directory", len(applied))
	return Result{State: ApplyFull, Applied: applied}, nil
}
