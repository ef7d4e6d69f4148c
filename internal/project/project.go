// Package project owns the loaded cue project: the ordered video list and
// the breakpoint set, with YAML descriptor persistence and a single
// "breakpoints changed" notification for subscribers.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrNotFound reports a removal or replacement referencing a breakpoint
// that is not in the set. It signals displayed state that has drifted from
// the store and is surfaced to the user rather than silently ignored.
var ErrNotFound = errors.New("breakpoint not found")

// descriptor is the on-disk project shape. Both keys are required; pointer
// slices distinguish a missing key from an empty list.
type descriptor struct {
	VideoFiles  *[]string `yaml:"video-files"`
	Breakpoints *[]int64  `yaml:"breakpoints"`
}

// Project is the in-memory store for one loaded descriptor. The video list
// is immutable after load; breakpoints are mutated through the methods
// below, each of which fires the change notification and clears the saved
// flag.
type Project struct {
	mu          sync.Mutex
	path        string
	videoFiles  []string
	breakpoints map[int64]struct{}
	sorted      []int64
	saved       bool

	listeners []func()
}

// Load reads and validates a descriptor file. No partial project is
// returned on failure.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read project file: %w", err)
	}

	var d descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("cannot parse project file %s: %w", filepath.Base(path), err)
	}
	if d.VideoFiles == nil {
		return nil, fmt.Errorf("project file %s: missing required field %q", filepath.Base(path), "video-files")
	}
	if d.Breakpoints == nil {
		return nil, fmt.Errorf("project file %s: missing required field %q", filepath.Base(path), "breakpoints")
	}

	p := &Project{
		path:        path,
		videoFiles:  append([]string(nil), *d.VideoFiles...),
		breakpoints: make(map[int64]struct{}, len(*d.Breakpoints)),
		saved:       true,
	}
	for _, bp := range *d.Breakpoints {
		if bp < 0 {
			return nil, fmt.Errorf("project file %s: negative breakpoint %d", filepath.Base(path), bp)
		}
		p.breakpoints[bp] = struct{}{}
	}
	p.resort()
	return p, nil
}

// Save serialises the current state back to the descriptor file, with
// breakpoints normalised ascending. In-memory state and the saved flag are
// untouched when the write fails.
func (p *Project) Save() error {
	p.mu.Lock()
	d := struct {
		VideoFiles  []string `yaml:"video-files"`
		Breakpoints []int64  `yaml:"breakpoints"`
	}{
		VideoFiles:  append([]string(nil), p.videoFiles...),
		Breakpoints: append([]int64(nil), p.sorted...),
	}
	path := p.path
	p.mu.Unlock()

	data, err := yaml.Marshal(&d)
	if err != nil {
		return fmt.Errorf("cannot serialise project: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cannot write project file: %w", err)
	}

	p.mu.Lock()
	p.saved = true
	p.mu.Unlock()
	return nil
}

// Path returns the descriptor file location.
func (p *Project) Path() string {
	return p.path
}

// Dir returns the descriptor's directory, against which the video file
// paths are resolved.
func (p *Project) Dir() string {
	return filepath.Dir(p.path)
}

// Name returns the descriptor file name without its extension.
func (p *Project) Name() string {
	base := filepath.Base(p.path)
	return base[:len(base)-len(filepath.Ext(base))]
}

// VideoFiles returns the playback-ordered clip list, relative to Dir.
func (p *Project) VideoFiles() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.videoFiles...)
}

// Saved reports whether the project has been mutated since the last
// successful save or since load.
func (p *Project) Saved() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saved
}

// OnBreakpointsChanged registers a callback fired after every breakpoint
// mutation. Callbacks run outside the store lock and may re-read state.
func (p *Project) OnBreakpointsChanged(fn func()) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// SortedBreakpoints returns the ascending view of the breakpoint set. The
// nth displayed row corresponds to the nth entry.
func (p *Project) SortedBreakpoints() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.sorted...)
}

// Contains reports breakpoint membership.
func (p *Project) Contains(ms int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.breakpoints[ms]
	return ok
}

// AddBreakpoint inserts a breakpoint. Inserting an existing value leaves
// the set unchanged but still notifies and marks the project unsaved,
// matching plain set-insert semantics.
func (p *Project) AddBreakpoint(ms int64) {
	p.mu.Lock()
	p.breakpoints[ms] = struct{}{}
	p.dirty()
	p.mu.Unlock()
	p.notify()
}

// AddBreakpoints inserts a batch of breakpoints with a single notification.
func (p *Project) AddBreakpoints(ms []int64) {
	p.mu.Lock()
	for _, bp := range ms {
		p.breakpoints[bp] = struct{}{}
	}
	p.dirty()
	p.mu.Unlock()
	p.notify()
}

// RemoveBreakpoint removes one breakpoint, failing with ErrNotFound if it
// is not in the set.
func (p *Project) RemoveBreakpoint(ms int64) error {
	p.mu.Lock()
	if _, ok := p.breakpoints[ms]; !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNotFound, ms)
	}
	delete(p.breakpoints, ms)
	p.dirty()
	p.mu.Unlock()
	p.notify()
	return nil
}

// RemoveBreakpoints removes a batch all-or-nothing: membership of every
// element is verified before anything is removed, so a stale element never
// leaves the set partially modified.
func (p *Project) RemoveBreakpoints(ms []int64) error {
	p.mu.Lock()
	for _, bp := range ms {
		if _, ok := p.breakpoints[bp]; !ok {
			p.mu.Unlock()
			return fmt.Errorf("%w: %d", ErrNotFound, bp)
		}
	}
	for _, bp := range ms {
		delete(p.breakpoints, bp)
	}
	p.dirty()
	p.mu.Unlock()
	p.notify()
	return nil
}

// ReplaceBreakpoint atomically moves a breakpoint from oldMs to newMs. If
// newMs already exists the two merge; if oldMs is absent the set is left
// unchanged and ErrNotFound returned.
func (p *Project) ReplaceBreakpoint(oldMs, newMs int64) error {
	p.mu.Lock()
	if _, ok := p.breakpoints[oldMs]; !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNotFound, oldMs)
	}
	delete(p.breakpoints, oldMs)
	p.breakpoints[newMs] = struct{}{}
	p.dirty()
	p.mu.Unlock()
	p.notify()
	return nil
}

// Restore replaces the whole breakpoint set, used when stepping through the
// undo/redo history. The saved flag is restored alongside so undoing back
// to the last saved state clears the dirty marker.
func (p *Project) Restore(breakpoints []int64, saved bool) {
	p.mu.Lock()
	p.breakpoints = make(map[int64]struct{}, len(breakpoints))
	for _, bp := range breakpoints {
		p.breakpoints[bp] = struct{}{}
	}
	p.resort()
	p.saved = saved
	p.mu.Unlock()
	p.notify()
}

// dirty recomputes the sorted view and clears the saved flag. Callers hold
// the lock.
func (p *Project) dirty() {
	p.resort()
	p.saved = false
}

func (p *Project) resort() {
	p.sorted = p.sorted[:0]
	for bp := range p.breakpoints {
		p.sorted = append(p.sorted, bp)
	}
	sort.Slice(p.sorted, func(i, j int) bool { return p.sorted[i] < p.sorted[j] })
}

func (p *Project) notify() {
	p.mu.Lock()
	listeners := append(([]func())(nil), p.listeners...)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}
