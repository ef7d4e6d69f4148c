// Package watcher notices outside edits to the open project's descriptor
// file. It only reports; deciding whether to reload is the operator's call.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

type Watcher interface {
	Watch(ctx context.Context, path string) error
	Stop() error
	OnChange(callback func(path string, event EventType))
}

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	default:
		return "delete"
	}
}

const defaultPollInterval = 2 * time.Second

// PollWatcher checks the descriptor's mtime on a fixed interval. Polling
// keeps it portable across the filesystems projects live on, including
// network shares where inotify is unreliable.
type PollWatcher struct {
	logger   *slog.Logger
	interval time.Duration

	mu       sync.Mutex
	callback func(path string, event EventType)
	cancel   context.CancelFunc
}

func NewPollWatcher(logger *slog.Logger) *PollWatcher {
	return &PollWatcher{logger: logger, interval: defaultPollInterval}
}

func (w *PollWatcher) OnChange(callback func(path string, event EventType)) {
	w.mu.Lock()
	w.callback = callback
	w.mu.Unlock()
}

// Watch polls the path until the context ends or Stop is called. Watching
// a new path cancels the previous watch.
func (w *PollWatcher) Watch(ctx context.Context, path string) error {
	ctx, cancel := context.WithCancel(ctx)

	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	w.cancel = cancel
	w.mu.Unlock()

	var lastMod time.Time
	exists := false
	if info, err := os.Stat(path); err == nil {
		lastMod = info.ModTime()
		exists = true
	}

	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				switch {
				case err != nil && exists:
					exists = false
					w.notify(path, EventDelete)
				case err == nil && !exists:
					exists = true
					lastMod = info.ModTime()
					w.notify(path, EventCreate)
				case err == nil && info.ModTime() != lastMod:
					lastMod = info.ModTime()
					w.notify(path, EventModify)
				}
			}
		}
	}()

	w.logger.Debug("watching descriptor", "path", path)
	return nil
}

func (w *PollWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	return nil
}

func (w *PollWatcher) notify(path string, event EventType) {
	w.mu.Lock()
	cb := w.callback
	w.mu.Unlock()
	if cb != nil {
		cb(path, event)
	}
}

// StubWatcher satisfies the interface for setups that disable watching.
type StubWatcher struct {
	logger *slog.Logger
}

func NewStubWatcher(logger *slog.Logger) *StubWatcher {
	return &StubWatcher{logger: logger}
}

func (w *StubWatcher) Watch(ctx context.Context, path string) error {
	w.logger.Debug("descriptor watching disabled", "path", path)
	return nil
}

func (w *StubWatcher) Stop() error {
	return nil
}

func (w *StubWatcher) OnChange(callback func(path string, event EventType)) {}
