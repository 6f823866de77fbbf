// Package watch provides the optional daemon mode: it watches the stats
// database file and re-runs a reconciliation pass whenever it changes.
//
// SQLite updates arrive as writes to the database file or its -wal and
// -journal siblings, often in rapid bursts, so events are debounced
// before triggering a run.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config holds configuration for the watcher.
type Config struct {
	// Debounce is how long to wait after the last file event before
	// running. Batches rapid updates together.
	Debounce time.Duration

	// Logger for watcher activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Debounce: 2 * time.Second,
		Logger:   log.New(os.Stderr, "[watch] ", log.LstdFlags),
	}
}

// Watcher re-runs a sync pass whenever the stats database changes.
type Watcher struct {
	statsPath string
	run       func(context.Context) error
	config    *Config

	watcher *fsnotify.Watcher
}

// New creates a Watcher. run is invoked once at startup and then after
// each debounced change to the stats database. If config is nil,
// DefaultConfig is used.
func New(statsPath string, run func(context.Context) error, config *Config) (*Watcher, error) {
	if statsPath == "" {
		return nil, fmt.Errorf("statsPath cannot be empty")
	}
	if run == nil {
		return nil, fmt.Errorf("run cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[watch] ", log.LstdFlags)
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultConfig().Debounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		statsPath: statsPath,
		run:       run,
		config:    config,
		watcher:   watcher,
	}, nil
}

// Start runs the initial pass, then blocks watching for changes until
// ctx is cancelled. Failed passes are logged, not fatal: the next change
// retries naturally.
func (w *Watcher) Start(ctx context.Context) error {
	defer w.watcher.Close()

	// Watch the directory, not the file: SQLite replaces journal files,
	// and some editors replace the file wholesale, which drops
	// file-level watches.
	dir := filepath.Dir(w.statsPath)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.config.Logger.Printf("watching %s", w.statsPath)

	if err := w.run(ctx); err != nil {
		w.config.Logger.Printf("WARNING: initial run failed: %v", err)
	}

	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.config.Logger.Printf("shutting down")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher event channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(w.config.Debounce)
				fire = debounce.C
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(w.config.Debounce)
			}

		case <-fire:
			debounce = nil
			fire = nil
			w.config.Logger.Printf("stats database changed, running sync")
			if err := w.run(ctx); err != nil {
				w.config.Logger.Printf("WARNING: run failed: %v", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			w.config.Logger.Printf("WARNING: watch error: %v", err)
		}
	}
}

// relevant reports whether an event concerns the stats database or one
// of its SQLite sidecar files.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(w.statsPath)
	name := filepath.Base(event.Name)
	return name == base || strings.HasPrefix(name, base+"-")
}
