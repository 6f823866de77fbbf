package watch

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func writeEvent(name string) fsnotify.Event {
	return fsnotify.Event{Name: name, Op: fsnotify.Write}
}

func testConfig() *Config {
	return &Config{
		Debounce: 50 * time.Millisecond,
		Logger:   log.New(io.Discard, "", 0),
	}
}

func TestNewValidation(t *testing.T) {
	run := func(context.Context) error { return nil }

	if _, err := New("", run, nil); err == nil {
		t.Error("New() with empty path succeeded, want error")
	}
	if _, err := New("stats.db", nil, nil); err == nil {
		t.Error("New() with nil run succeeded, want error")
	}
	w, err := New("stats.db", run, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if w.config.Debounce != DefaultConfig().Debounce {
		t.Errorf("default debounce = %v, want %v", w.config.Debounce, DefaultConfig().Debounce)
	}
	_ = w.watcher.Close()
}

func TestWatcherRunsOnChange(t *testing.T) {
	dir := t.TempDir()
	statsPath := filepath.Join(dir, "stats.db")
	if err := os.WriteFile(statsPath, []byte("v1"), 0644); err != nil {
		t.Fatal(err)
	}

	var runs atomic.Int64
	ran := make(chan struct{}, 16)
	run := func(context.Context) error {
		runs.Add(1)
		ran <- struct{}{}
		return nil
	}

	w, err := New(statsPath, run, testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	// Initial run.
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for initial run")
	}

	// A burst of writes should trigger exactly one debounced run.
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(statsPath, []byte("v2"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change-triggered run")
	}

	// Give the debounce window time to prove it fired only once.
	time.Sleep(200 * time.Millisecond)
	if got := runs.Load(); got != 2 {
		t.Errorf("run count = %d, want 2 (initial + one debounced)", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v after cancel, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not shut down")
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	statsPath := filepath.Join(dir, "stats.db")
	if err := os.WriteFile(statsPath, []byte("v1"), 0644); err != nil {
		t.Fatal(err)
	}

	ran := make(chan struct{}, 16)
	run := func(context.Context) error {
		ran <- struct{}{}
		return nil
	}

	w, err := New(statsPath, run, testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	<-ran // initial run

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-ran:
		t.Error("unrelated file change triggered a run")
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	<-done
}

func TestRelevant(t *testing.T) {
	w := &Watcher{statsPath: "/data/stats.db"}

	tests := []struct {
		name  string
		event string
		want  bool
	}{
		{name: "database file", event: "/data/stats.db", want: true},
		{name: "wal sidecar", event: "/data/stats.db-wal", want: true},
		{name: "journal sidecar", event: "/data/stats.db-journal", want: true},
		{name: "other file", event: "/data/members.db", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := writeEvent(tt.event)
			if got := w.relevant(ev); got != tt.want {
				t.Errorf("relevant(%s) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}
