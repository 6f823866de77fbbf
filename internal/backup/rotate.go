// Package backup copies the member database to a timestamped backup file
// before any mutating run and prunes old backups beyond a retention count.
//
// Backup names are {prefix}_{YYYYMMDD-HHMM}. The timestamp is fixed-width
// and zero-padded, so lexicographic order over backup names IS
// chronological order. Pruning relies on this invariant.
package backup

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// timestampLayout gives minute granularity. Two rotations inside the same
// minute collide on purpose: refusing to overwrite beats losing a backup.
const timestampLayout = "20060102-1504"

// RotateError is a fatal backup failure. The run must not touch the
// member database after one of these.
type RotateError struct {
	Op   string
	Path string
	Err  error
}

func (e *RotateError) Error() string {
	return fmt.Sprintf("backup %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *RotateError) Unwrap() error { return e.Err }

// Rotator copies a source file into a backup directory and keeps only the
// newest Retention backups for its prefix.
type Rotator struct {
	Dir       string
	Prefix    string
	Retention int

	logger *log.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Rotator. If logger is nil, a default logger writing to
// stderr is used.
func New(dir, prefix string, retention int, logger *log.Logger) *Rotator {
	if logger == nil {
		logger = log.New(os.Stderr, "[backup] ", log.LstdFlags)
	}
	return &Rotator{
		Dir:       dir,
		Prefix:    prefix,
		Retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Rotate copies src into the backup directory and prunes old backups.
// It returns the path of the backup it created.
//
// The copy is fsynced before Rotate returns, so a crash after Rotate
// always leaves a recoverable backup. Prune failures are logged and
// ignored; copy failures are fatal.
func (r *Rotator) Rotate(src string) (string, error) {
	if r.Retention < 1 {
		return "", &RotateError{Op: "configure", Path: r.Dir,
			Err: fmt.Errorf("retention must be at least 1 (got %d)", r.Retention)}
	}
	if r.Prefix == "" {
		return "", &RotateError{Op: "configure", Path: r.Dir,
			Err: fmt.Errorf("backup prefix is required")}
	}

	info, err := os.Stat(r.Dir)
	if err != nil {
		return "", &RotateError{Op: "stat", Path: r.Dir, Err: err}
	}
	if !info.IsDir() {
		return "", &RotateError{Op: "stat", Path: r.Dir, Err: fmt.Errorf("not a directory")}
	}

	name := r.Prefix + "_" + r.now().Format(timestampLayout)
	dest := filepath.Join(r.Dir, name)

	if _, err := os.Lstat(dest); err == nil {
		return "", &RotateError{Op: "create", Path: dest, Err: os.ErrExist}
	} else if !os.IsNotExist(err) {
		return "", &RotateError{Op: "create", Path: dest, Err: err}
	}

	if err := copyFile(src, dest); err != nil {
		return "", &RotateError{Op: "copy", Path: dest, Err: err}
	}
	r.logger.Printf("backed up %s to %s", src, dest)

	r.prune(name)

	return dest, nil
}

// copyFile copies src to dest, creating dest exclusively and fsyncing it
// before close. A half-written dest is removed.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dest)
		return err
	}
	return nil
}

// prune deletes backups beyond the retention count, newest first by name.
// Best-effort: failures are logged, never fatal. The just-created backup
// is never deleted.
func (r *Rotator) prune(created string) {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		r.logger.Printf("WARNING: failed to list backup directory %s: %v", r.Dir, err)
		return
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), r.Prefix+"_") {
			names = append(names, entry.Name())
		}
	}

	// Name embeds the timestamp, so reverse name order is
	// reverse-chronological order.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	if len(names) <= r.Retention {
		return
	}
	for _, name := range names[r.Retention:] {
		if name == created {
			continue
		}
		path := filepath.Join(r.Dir, name)
		if err := os.Remove(path); err != nil {
			r.logger.Printf("WARNING: failed to prune backup %s: %v", path, err)
			continue
		}
		r.logger.Printf("pruned backup %s", path)
	}
}
