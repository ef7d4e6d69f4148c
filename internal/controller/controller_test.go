package controller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/cuedeck/cuedeck-agent/internal/project"
	"github.com/cuedeck/cuedeck-agent/internal/session"
	"github.com/cuedeck/cuedeck-agent/internal/timecode"
)

type fakeEngine struct {
	mu     sync.Mutex
	loaded [][]string
	plays  int
	pauses int
	seeks  []int64
	events chan session.Event
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{events: make(chan session.Event)}
}

func (e *fakeEngine) Load(paths []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = append(e.loaded, paths)
	return nil
}

func (e *fakeEngine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.plays++
	return nil
}

func (e *fakeEngine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauses++
	return nil
}

func (e *fakeEngine) Seek(positionMs int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seeks = append(e.seeks, positionMs)
	return nil
}

func (e *fakeEngine) Events() <-chan session.Event { return e.events }
func (e *fakeEngine) Close() error                 { return nil }

func (e *fakeEngine) pauseCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pauses
}

func (e *fakeEngine) lastSeek() (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.seeks) == 0 {
		return 0, false
	}
	return e.seeks[len(e.seeks)-1], true
}

type fakeRecent struct {
	mu        sync.Mutex
	touched   []string
	positions map[string]int64
}

func (r *fakeRecent) TouchRecent(_ context.Context, path, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched = append(r.touched, path)
	return nil
}

func (r *fakeRecent) LastPosition(_ context.Context, path string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.positions[path], nil
}

func (r *fakeRecent) SetLastPosition(_ context.Context, path string, positionMs, _ int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.positions == nil {
		r.positions = make(map[string]int64)
	}
	r.positions[path] = positionMs
	return nil
}

type recordingHub struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHub) Broadcast(event string, _ any) {
	h.mu.Lock()
	h.events = append(h.events, event)
	h.mu.Unlock()
}

func (h *recordingHub) seen(event string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.events {
		if e == event {
			return true
		}
	}
	return false
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeProject(t *testing.T, breakpoints string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "demo.cue.yaml")
	content := "video-files:\n  - intro.mp4\n  - talk.mp4\nbreakpoints: " + breakpoints + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// newController wires a controller over a fake engine with the session
// event pump running.
func newController(t *testing.T, recent RecentStore, hub Broadcaster) (*Controller, *fakeEngine) {
	t.Helper()
	engine := newFakeEngine()
	sess := session.New(engine, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go sess.Run(ctx)
	return New(sess, recent, testLogger(), hub), engine
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestOpenProjectActivates(t *testing.T) {
	hub := &recordingHub{}
	recent := &fakeRecent{}
	c, engine := newController(t, recent, hub)

	path := writeProject(t, "[2000, 1000]")
	if err := c.OpenProject(path); err != nil {
		t.Fatalf("OpenProject() error = %v", err)
	}

	if !c.Active() {
		t.Fatal("controller should be active after open")
	}

	dir := filepath.Dir(path)
	want := []string{filepath.Join(dir, "intro.mp4"), filepath.Join(dir, "talk.mp4")}
	engine.mu.Lock()
	loaded := engine.loaded
	plays := engine.plays
	engine.mu.Unlock()
	if len(loaded) != 1 || !reflect.DeepEqual(loaded[0], want) {
		t.Errorf("engine loaded %v, want %v", loaded, want)
	}
	if plays != 1 {
		t.Errorf("plays = %d, want 1", plays)
	}

	// Existing breakpoints are shown immediately, without a mutation.
	if got := c.BreakpointRows(); !reflect.DeepEqual(got, []string{"00:00:01.000", "00:00:02.000"}) {
		t.Errorf("BreakpointRows() = %v", got)
	}
	if !hub.seen("project") || !hub.seen("breakpoints") {
		t.Error("expected project and breakpoints events to be broadcast")
	}
	if !reflect.DeepEqual(recent.touched, []string{path}) {
		t.Errorf("recent projects recorded %v", recent.touched)
	}
}

func TestOpenProjectLoadFailureKeepsActiveProject(t *testing.T) {
	c, _ := newController(t, nil, nil)

	path := writeProject(t, "[1000]")
	if err := c.OpenProject(path); err != nil {
		t.Fatal(err)
	}

	if err := c.OpenProject(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("OpenProject() should fail for a missing descriptor")
	}
	if got := c.Project().Path(); got != path {
		t.Errorf("active project = %q, want %q", got, path)
	}
}

func TestNoProjectOperationsFail(t *testing.T) {
	c, _ := newController(t, nil, nil)

	ops := map[string]func() error{
		"JumpToTime":        func() error { return c.JumpToTime("00:00:01.000") },
		"AddBreakpointAt":   func() error { return c.AddBreakpointAt("00:00:01.000") },
		"AddBreakpointHere": c.AddBreakpointHere,
		"SaveProject":       c.SaveProject,
		"Undo":              c.Undo,
		"StartPresentation": func() error { return c.StartPresentation(false) },
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, ErrNoProject) {
			t.Errorf("%s error = %v, want ErrNoProject", name, err)
		}
	}
}

func TestJumpToTime(t *testing.T) {
	c, engine := newController(t, nil, nil)
	if err := c.OpenProject(writeProject(t, "[]")); err != nil {
		t.Fatal(err)
	}

	engine.events <- session.Event{Kind: session.EventDuration, Duration: 60_000}
	waitFor(t, "duration mirror", func() bool { return c.Session().Duration() == 60_000 })

	if err := c.JumpToTime("00:00:05.000"); err != nil {
		t.Fatalf("JumpToTime() error = %v", err)
	}
	if pos, ok := engine.lastSeek(); !ok || pos != 5000 {
		t.Errorf("engine seek = %d (ok=%v), want 5000", pos, ok)
	}

	if err := c.JumpToTime("12:3x:00.000"); !errors.Is(err, timecode.ErrFormat) {
		t.Errorf("JumpToTime() with malformed text error = %v, want ErrFormat", err)
	}
}

func TestAddBreakpointWorkflows(t *testing.T) {
	c, engine := newController(t, nil, nil)
	if err := c.OpenProject(writeProject(t, "[]")); err != nil {
		t.Fatal(err)
	}
	engine.events <- session.Event{Kind: session.EventDuration, Duration: 60_000}
	waitFor(t, "duration mirror", func() bool { return c.Session().Duration() == 60_000 })

	if err := c.AddBreakpointAt("00:00:03.000"); err != nil {
		t.Fatal(err)
	}
	if err := c.AddBreakpointAt("bogus"); !errors.Is(err, timecode.ErrFormat) {
		t.Errorf("AddBreakpointAt malformed error = %v", err)
	}

	if err := c.Session().Seek(7000); err != nil {
		t.Fatal(err)
	}
	if err := c.AddBreakpointHere(); err != nil {
		t.Fatal(err)
	}

	got := c.Project().SortedBreakpoints()
	if !reflect.DeepEqual(got, []int64{3000, 7000}) {
		t.Errorf("breakpoints = %v, want [3000 7000]", got)
	}
}

func TestAddBreakpointsRegularly(t *testing.T) {
	c, _ := newController(t, nil, nil)
	if err := c.OpenProject(writeProject(t, "[]")); err != nil {
		t.Fatal(err)
	}

	if err := c.AddBreakpointsRegularly("00:00:01.000", "00:00:04.000", "00:00:01.000"); err != nil {
		t.Fatal(err)
	}
	got := c.Project().SortedBreakpoints()
	if !reflect.DeepEqual(got, []int64{1000, 2000, 3000, 4000}) {
		t.Errorf("breakpoints = %v", got)
	}

	if err := c.AddBreakpointsRegularly("00:00:01.000", "00:00:04.000", "00:00:00.000"); err == nil {
		t.Error("zero interval should be rejected")
	}
}

func TestEditBreakpointRow(t *testing.T) {
	c, _ := newController(t, nil, nil)
	if err := c.OpenProject(writeProject(t, "[1000, 3000]")); err != nil {
		t.Fatal(err)
	}

	// Row 0 is 1000 in the sorted view.
	if err := c.EditBreakpointRow(0, "00:00:02.000"); err != nil {
		t.Fatalf("EditBreakpointRow() error = %v", err)
	}
	if got := c.Project().SortedBreakpoints(); !reflect.DeepEqual(got, []int64{2000, 3000}) {
		t.Errorf("breakpoints = %v, want [2000 3000]", got)
	}

	if err := c.EditBreakpointRow(0, "nonsense"); !errors.Is(err, timecode.ErrFormat) {
		t.Errorf("malformed edit error = %v, want ErrFormat", err)
	}
	if err := c.EditBreakpointRow(5, "00:00:09.000"); !errors.Is(err, project.ErrNotFound) {
		t.Errorf("out-of-range row error = %v, want ErrNotFound", err)
	}
}

func TestRemoveBreakpointRows(t *testing.T) {
	c, _ := newController(t, nil, nil)
	if err := c.OpenProject(writeProject(t, "[1000, 2000, 3000]")); err != nil {
		t.Fatal(err)
	}

	if err := c.RemoveBreakpointRows([]int{0, 2}); err != nil {
		t.Fatalf("RemoveBreakpointRows() error = %v", err)
	}
	if got := c.Project().SortedBreakpoints(); !reflect.DeepEqual(got, []int64{2000}) {
		t.Errorf("breakpoints = %v, want [2000]", got)
	}

	if err := c.RemoveBreakpointRows([]int{0, 9}); !errors.Is(err, project.ErrNotFound) {
		t.Errorf("stale rows error = %v, want ErrNotFound", err)
	}
	if got := c.Project().SortedBreakpoints(); !reflect.DeepEqual(got, []int64{2000}) {
		t.Errorf("failed batch removal modified the set: %v", got)
	}
}

func TestUndoRedoRestoresSavedFlag(t *testing.T) {
	c, _ := newController(t, nil, nil)
	if err := c.OpenProject(writeProject(t, "[1000]")); err != nil {
		t.Fatal(err)
	}

	if err := c.AddBreakpointAt("00:00:02.000"); err != nil {
		t.Fatal(err)
	}
	if c.Project().Saved() {
		t.Fatal("project should be dirty after an edit")
	}

	if err := c.Undo(); err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if got := c.Project().SortedBreakpoints(); !reflect.DeepEqual(got, []int64{1000}) {
		t.Errorf("breakpoints after undo = %v", got)
	}
	if !c.Project().Saved() {
		t.Error("undoing back to the loaded state should restore the saved flag")
	}

	if err := c.Redo(); err != nil {
		t.Fatalf("Redo() error = %v", err)
	}
	if got := c.Project().SortedBreakpoints(); !reflect.DeepEqual(got, []int64{1000, 2000}) {
		t.Errorf("breakpoints after redo = %v", got)
	}
	if c.Project().Saved() {
		t.Error("redo to an unsaved state should mark the project dirty")
	}

	if err := c.Redo(); err == nil {
		t.Error("Redo() past the newest state should fail")
	}
}

func TestBreakpointStepping(t *testing.T) {
	c, engine := newController(t, nil, nil)
	if err := c.OpenProject(writeProject(t, "[1000, 3000, 5000]")); err != nil {
		t.Fatal(err)
	}
	engine.events <- session.Event{Kind: session.EventDuration, Duration: 10_000}
	waitFor(t, "duration mirror", func() bool { return c.Session().Duration() == 10_000 })

	if err := c.Session().Seek(2000); err != nil {
		t.Fatal(err)
	}
	if err := c.NextBreakpoint(); err != nil {
		t.Fatal(err)
	}
	if pos, _ := engine.lastSeek(); pos != 3000 {
		t.Errorf("NextBreakpoint seeked to %d, want 3000", pos)
	}

	if err := c.PreviousBreakpoint(); err != nil {
		t.Fatal(err)
	}
	if pos, _ := engine.lastSeek(); pos != 1000 {
		t.Errorf("PreviousBreakpoint seeked to %d, want 1000", pos)
	}
}

func TestBreakpointAutoPause(t *testing.T) {
	c, engine := newController(t, nil, nil)
	if err := c.OpenProject(writeProject(t, "[3000]")); err != nil {
		t.Fatal(err)
	}

	engine.events <- session.Event{Kind: session.EventDuration, Duration: 10_000}
	engine.events <- session.Event{Kind: session.EventState, State: session.StatePlaying}
	engine.events <- session.Event{Kind: session.EventPosition, Position: 1500}
	engine.events <- session.Event{Kind: session.EventPosition, Position: 2997}

	waitFor(t, "auto pause", func() bool { return engine.pauseCount() == 1 })
}

func TestSaveProject(t *testing.T) {
	hub := &recordingHub{}
	c, _ := newController(t, nil, hub)
	path := writeProject(t, "[1000]")
	if err := c.OpenProject(path); err != nil {
		t.Fatal(err)
	}

	if err := c.AddBreakpointAt("00:00:02.000"); err != nil {
		t.Fatal(err)
	}
	if err := c.SaveProject(); err != nil {
		t.Fatalf("SaveProject() error = %v", err)
	}
	if !c.Project().Saved() {
		t.Error("project should be saved")
	}

	reloaded, err := project.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := reloaded.SortedBreakpoints(); !reflect.DeepEqual(got, []int64{1000, 2000}) {
		t.Errorf("persisted breakpoints = %v", got)
	}
}

// durationOnLoadEngine reports its duration while Load is still running,
// the way a player that already has the file probed does.
type durationOnLoadEngine struct {
	fakeEngine
}

func (e *durationOnLoadEngine) Load(paths []string) error {
	if err := e.fakeEngine.Load(paths); err != nil {
		return err
	}
	e.events <- session.Event{Kind: session.EventDuration, Duration: 60_000}
	return nil
}

func TestResumeSeesDurationEmittedDuringActivation(t *testing.T) {
	path := writeProject(t, "[]")
	recent := &fakeRecent{positions: map[string]int64{path: 18_000}}

	engine := &durationOnLoadEngine{}
	engine.events = make(chan session.Event)
	sess := session.New(engine, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go sess.Run(ctx)
	c := New(sess, recent, testLogger(), nil)

	if err := c.OpenProject(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "resume seek", func() bool {
		pos, ok := engine.lastSeek()
		return ok && pos == 18_000
	})
}

func TestResumeSeeksAfterDurationArrives(t *testing.T) {
	path := writeProject(t, "[]")
	recent := &fakeRecent{positions: map[string]int64{path: 42_000}}
	c, engine := newController(t, recent, nil)

	if err := c.OpenProject(path); err != nil {
		t.Fatal(err)
	}
	if _, ok := engine.lastSeek(); ok {
		t.Fatal("resume must not seek before the engine reports a duration")
	}

	engine.events <- session.Event{Kind: session.EventDuration, Duration: 60_000}
	waitFor(t, "resume seek", func() bool {
		pos, ok := engine.lastSeek()
		return ok && pos == 42_000
	})
}

func TestStartPresentation(t *testing.T) {
	c, engine := newController(t, nil, nil)
	if err := c.OpenProject(writeProject(t, "[]")); err != nil {
		t.Fatal(err)
	}
	engine.events <- session.Event{Kind: session.EventDuration, Duration: 60_000}
	waitFor(t, "duration mirror", func() bool { return c.Session().Duration() == 60_000 })

	if err := c.Session().Seek(9000); err != nil {
		t.Fatal(err)
	}

	if err := c.StartPresentation(true); err != nil {
		t.Fatal(err)
	}
	if pos, _ := engine.lastSeek(); pos != 9000 {
		t.Errorf("start-from-here must not move the position, seek = %d", pos)
	}

	if err := c.StartPresentation(false); err != nil {
		t.Fatal(err)
	}
	if pos, _ := engine.lastSeek(); pos != 0 {
		t.Errorf("start from the top should seek 0, seek = %d", pos)
	}
}
