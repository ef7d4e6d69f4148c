package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T) (*PollWatcher, *changeRecorder) {
	t.Helper()
	w := NewPollWatcher(slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.interval = 10 * time.Millisecond
	t.Cleanup(func() { w.Stop() })

	rec := &changeRecorder{}
	w.OnChange(rec.record)
	return w, rec
}

type changeRecorder struct {
	mu     sync.Mutex
	events []EventType
}

func (r *changeRecorder) record(path string, event EventType) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *changeRecorder) last() (EventType, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return 0, false
	}
	return r.events[len(r.events)-1], true
}

func waitForEvent(t *testing.T, rec *changeRecorder, want EventType) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got, ok := rec.last(); ok && got == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %v event", want)
}

func TestPollWatcherModify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "show.cue")
	if err := os.WriteFile(path, []byte("breakpoints: []\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w, rec := newTestWatcher(t)
	if err := w.Watch(context.Background(), path); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	// Backdate so the rewrite is a guaranteed mtime change.
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatal(err)
	}
	waitForEvent(t, rec, EventModify)
}

func TestPollWatcherDeleteAndRecreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "show.cue")
	if err := os.WriteFile(path, []byte("breakpoints: []\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w, rec := newTestWatcher(t)
	if err := w.Watch(context.Background(), path); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitForEvent(t, rec, EventDelete)

	if err := os.WriteFile(path, []byte("breakpoints: []\n"), 0644); err != nil {
		t.Fatal(err)
	}
	waitForEvent(t, rec, EventCreate)
}

func TestPollWatcherStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "show.cue")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	w, rec := newTestWatcher(t)
	if err := w.Watch(context.Background(), path); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	if ev, ok := rec.last(); ok {
		t.Errorf("unexpected event %v after Stop", ev)
	}
}
