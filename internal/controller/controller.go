// Package controller mediates between the project store and the playback
// session: it activates a loaded project's media list, runs the editing
// workflows (jump-to-time, breakpoint add/edit/remove), pauses playback on
// breakpoints, and fans state changes out to the notification hub.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/cuedeck/cuedeck-agent/internal/history"
	"github.com/cuedeck/cuedeck-agent/internal/project"
	"github.com/cuedeck/cuedeck-agent/internal/session"
	"github.com/cuedeck/cuedeck-agent/internal/timecode"
)

// ErrNoProject reports an operation that needs an active project while none
// is loaded.
var ErrNoProject = errors.New("no project loaded")

// breakpointPauseWindowMs is how close the playhead must come to a
// breakpoint before the controller pauses playback. Engine position
// notifications are not frame-exact, so an exact match would skip markers.
const breakpointPauseWindowMs = 5

// positionPersistIntervalMs throttles resume-position writes.
const positionPersistIntervalMs = 2000

// Broadcaster pushes state-change events to connected remote UIs.
type Broadcaster interface {
	Broadcast(event string, payload any)
}

// RecentStore records opened projects and their resume positions.
type RecentStore interface {
	TouchRecent(ctx context.Context, path, displayName string) error
	LastPosition(ctx context.Context, path string) (int64, error)
	SetLastPosition(ctx context.Context, path string, positionMs, durationMs int64) error
}

// Controller is the root of the data flow. Its lifecycle has two states:
// no project, then project active after the first successful open. Opening
// another project replaces the store wholesale and re-activates; the
// controller never returns to the no-project state.
type Controller struct {
	session   *session.Session
	recent    RecentStore
	logger    *slog.Logger
	broadcast Broadcaster

	mu            sync.Mutex
	project       *project.Project
	history       *history.History
	lastPersisted int64
	pendingResume int64
}

func New(sess *session.Session, recent RecentStore, logger *slog.Logger, broadcast Broadcaster) *Controller {
	c := &Controller{
		session:   sess,
		recent:    recent,
		logger:    logger,
		broadcast: broadcast,
	}
	sess.Subscribe(session.Events{
		PositionChanged: c.onPosition,
		DurationChanged: c.onDuration,
		StateChanged:    c.onState,
		Error:           c.onPlayerError,
	})
	return c
}

// Active reports whether a project has been loaded.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.project != nil
}

// Project returns the active project store, or nil.
func (c *Controller) Project() *project.Project {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.project
}

// Session returns the playback session adapter.
func (c *Controller) Session() *session.Session {
	return c.session
}

// OpenProject loads a descriptor and activates it: the clip list goes to
// the playback session, the breakpoint subscription is installed, and the
// breakpoint display state is refreshed immediately so existing breakpoints
// show without waiting for a mutation. A load failure leaves any
// already-active project untouched.
func (c *Controller) OpenProject(path string) error {
	p, err := project.Load(path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.project = p
	c.history = history.New(p.SortedBreakpoints())
	c.lastPersisted = -positionPersistIntervalMs
	c.mu.Unlock()

	p.OnBreakpointsChanged(func() { c.breakpointsChanged(p) })

	c.emit("project", map[string]any{
		"path":  p.Path(),
		"name":  p.Name(),
		"files": p.VideoFiles(),
	})
	c.breakpointsChanged(p)

	if c.recent != nil {
		if err := c.recent.TouchRecent(context.Background(), p.Path(), p.Name()); err != nil {
			c.logger.Warn("cannot record recent project", "error", err)
		}
	}

	// Queued before activation so a duration event the engine emits during
	// loading already sees it.
	c.resume(p.Path())

	// Engine trouble is reported, not fatal: the project stays active and
	// the session remains alive in whatever state the engine is in.
	if err := c.session.Activate(p.VideoFiles(), p.Dir()); err != nil {
		c.logger.Warn("project activation reported a media error", "project", p.Path(), "error", err)
		c.emit("player_error", map[string]any{"description": err.Error()})
		return nil
	}

	c.logger.Info("project activated", "project", p.Path(), "clips", len(p.VideoFiles()))
	return nil
}

// resume queues a seek to the recorded last position of a previously
// opened project. The seek is applied once the engine reports a duration;
// seeking earlier would clamp against the empty session. Absence or failure
// of the record is not an error.
func (c *Controller) resume(path string) {
	if c.recent == nil {
		return
	}
	pos, err := c.recent.LastPosition(context.Background(), path)
	if err != nil {
		c.logger.Warn("cannot read resume position", "error", err)
		return
	}
	if pos > 0 {
		c.logger.Info("resuming at recorded position", "position_ms", pos)
		c.mu.Lock()
		c.pendingResume = pos
		c.mu.Unlock()
	}
}

// SaveProject persists the breakpoint set. In-memory state survives a
// failed write and the save can be retried.
func (c *Controller) SaveProject() error {
	p, h, err := c.active()
	if err != nil {
		return err
	}
	if err := p.Save(); err != nil {
		return err
	}
	h.MarkSaved()
	c.emit("saved", map[string]any{"saved": true})
	c.logger.Info("project saved", "project", p.Path())
	return nil
}

// JumpToTime parses a display timestamp and seeks there. Malformed text
// rejects the jump without any state change.
func (c *Controller) JumpToTime(text string) error {
	if _, _, err := c.active(); err != nil {
		return err
	}
	ms, err := timecode.Parse(text)
	if err != nil {
		return err
	}
	return c.session.Seek(ms)
}

// AddBreakpointAt parses a display timestamp and inserts it as a
// breakpoint.
func (c *Controller) AddBreakpointAt(text string) error {
	p, h, err := c.active()
	if err != nil {
		return err
	}
	ms, err := timecode.Parse(text)
	if err != nil {
		return err
	}
	p.AddBreakpoint(ms)
	h.Push(p.SortedBreakpoints())
	return nil
}

// AddBreakpointHere inserts a breakpoint at the current playback position.
func (c *Controller) AddBreakpointHere() error {
	p, h, err := c.active()
	if err != nil {
		return err
	}
	p.AddBreakpoint(c.session.Position())
	h.Push(p.SortedBreakpoints())
	return nil
}

// AddBreakpointsRegularly inserts breakpoints at a fixed interval across
// [from, to], both bounds given as display timestamps.
func (c *Controller) AddBreakpointsRegularly(fromText, toText, everyText string) error {
	p, h, err := c.active()
	if err != nil {
		return err
	}
	from, err := timecode.Parse(fromText)
	if err != nil {
		return err
	}
	to, err := timecode.Parse(toText)
	if err != nil {
		return err
	}
	every, err := timecode.Parse(everyText)
	if err != nil {
		return err
	}
	if every <= 0 {
		return fmt.Errorf("%w: interval must be positive", timecode.ErrFormat)
	}

	var breakpoints []int64
	for bp := from; bp <= to; bp += every {
		breakpoints = append(breakpoints, bp)
	}
	p.AddBreakpoints(breakpoints)
	h.Push(p.SortedBreakpoints())
	return nil
}

// EditBreakpointRow is the inline-edit workflow: the breakpoint that was at
// the given display row before the edit is replaced by the parsed new
// value. Malformed text rejects the edit before anything is looked up.
func (c *Controller) EditBreakpointRow(row int, text string) error {
	p, h, err := c.active()
	if err != nil {
		return err
	}
	newMs, err := timecode.Parse(text)
	if err != nil {
		return err
	}

	sorted := p.SortedBreakpoints()
	if row < 0 || row >= len(sorted) {
		return fmt.Errorf("%w: row %d out of range", project.ErrNotFound, row)
	}
	if err := p.ReplaceBreakpoint(sorted[row], newMs); err != nil {
		return err
	}
	h.Push(p.SortedBreakpoints())
	return nil
}

// RemoveBreakpointRows removes the breakpoints at the given display rows,
// all-or-nothing.
func (c *Controller) RemoveBreakpointRows(rows []int) error {
	p, h, err := c.active()
	if err != nil {
		return err
	}

	sorted := p.SortedBreakpoints()
	values := make([]int64, 0, len(rows))
	for _, row := range rows {
		if row < 0 || row >= len(sorted) {
			return fmt.Errorf("%w: row %d out of range", project.ErrNotFound, row)
		}
		values = append(values, sorted[row])
	}
	if err := p.RemoveBreakpoints(values); err != nil {
		return err
	}
	h.Push(p.SortedBreakpoints())
	return nil
}

// Undo steps the breakpoint set back one edit.
func (c *Controller) Undo() error {
	p, h, err := c.active()
	if err != nil {
		return err
	}
	state, saved, ok := h.Undo()
	if !ok {
		return fmt.Errorf("nothing to undo")
	}
	p.Restore(state, saved)
	return nil
}

// Redo steps the breakpoint set forward one edit.
func (c *Controller) Redo() error {
	p, h, err := c.active()
	if err != nil {
		return err
	}
	state, saved, ok := h.Redo()
	if !ok {
		return fmt.Errorf("nothing to redo")
	}
	p.Restore(state, saved)
	return nil
}

// NextBreakpoint seeks to the first breakpoint after the current position.
// With none ahead, the position is left alone.
func (c *Controller) NextBreakpoint() error {
	p, _, err := c.active()
	if err != nil {
		return err
	}
	pos := c.session.Position()
	for _, bp := range p.SortedBreakpoints() {
		if bp > pos {
			return c.session.Seek(bp)
		}
	}
	return nil
}

// PreviousBreakpoint seeks to the last breakpoint before the current
// position.
func (c *Controller) PreviousBreakpoint() error {
	p, _, err := c.active()
	if err != nil {
		return err
	}
	pos := c.session.Position()
	sorted := p.SortedBreakpoints()
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i] < pos {
			return c.session.Seek(sorted[i])
		}
	}
	return nil
}

// StartPresentation begins the slideshow: from the top, or from the current
// position when fromHere is set.
func (c *Controller) StartPresentation(fromHere bool) error {
	if _, _, err := c.active(); err != nil {
		return err
	}
	if !fromHere {
		if err := c.session.Seek(0); err != nil {
			return err
		}
	}
	return c.session.Play()
}

// ClipPath resolves the clip at the given playlist index against the
// project directory, for media streaming.
func (c *Controller) ClipPath(index int) (string, error) {
	p, _, err := c.active()
	if err != nil {
		return "", err
	}
	files := p.VideoFiles()
	if index < 0 || index >= len(files) {
		return "", fmt.Errorf("clip index %d out of range", index)
	}
	return filepath.Join(p.Dir(), files[index]), nil
}

// BreakpointRows returns the sorted breakpoints formatted for display; the
// nth row corresponds to the nth sorted entry.
func (c *Controller) BreakpointRows() []string {
	p := c.Project()
	if p == nil {
		return nil
	}
	sorted := p.SortedBreakpoints()
	rows := make([]string, len(sorted))
	for i, bp := range sorted {
		rows[i] = timecode.Format(bp)
	}
	return rows
}

// CanUndo reports whether an undo step is available.
func (c *Controller) CanUndo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history != nil && c.history.CanUndo()
}

// CanRedo reports whether a redo step is available.
func (c *Controller) CanRedo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history != nil && c.history.CanRedo()
}

func (c *Controller) active() (*project.Project, *history.History, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.project == nil {
		return nil, nil, ErrNoProject
	}
	return c.project, c.history, nil
}

func (c *Controller) breakpointsChanged(p *project.Project) {
	sorted := p.SortedBreakpoints()
	rows := make([]string, len(sorted))
	for i, bp := range sorted {
		rows[i] = timecode.Format(bp)
	}
	c.emit("breakpoints", map[string]any{
		"rows":  rows,
		"saved": p.Saved(),
	})
}

// onPosition handles an engine position notification: breakpoint
// auto-pause, resume-position persistence, and display fan-out.
func (c *Controller) onPosition(ms int64) {
	c.emit("position", map[string]any{"ms": ms, "display": timecode.Format(ms)})

	p := c.Project()
	if p == nil {
		return
	}

	if c.session.State() == session.StatePlaying && ms != 0 {
		for _, bp := range p.SortedBreakpoints() {
			if abs64(ms-bp) <= breakpointPauseWindowMs {
				if err := c.session.Pause(); err != nil {
					c.logger.Warn("breakpoint pause failed", "error", err)
				}
				break
			}
		}
	}

	c.persistPosition(p.Path(), ms)
}

func (c *Controller) persistPosition(path string, ms int64) {
	if c.recent == nil {
		return
	}
	c.mu.Lock()
	due := abs64(ms-c.lastPersisted) >= positionPersistIntervalMs
	if due {
		c.lastPersisted = ms
	}
	c.mu.Unlock()
	if !due {
		return
	}
	if err := c.recent.SetLastPosition(context.Background(), path, ms, c.session.Duration()); err != nil {
		c.logger.Warn("cannot persist playback position", "error", err)
	}
}

func (c *Controller) onDuration(ms int64) {
	c.emit("duration", map[string]any{"ms": ms, "display": timecode.Format(ms)})

	c.mu.Lock()
	pending := c.pendingResume
	if ms > 0 {
		c.pendingResume = 0
	}
	c.mu.Unlock()
	if pending > 0 && ms > 0 {
		if err := c.session.Seek(pending); err != nil {
			c.logger.Warn("resume seek failed", "error", err)
		}
	}
}

func (c *Controller) onState(state session.State) {
	c.emit("state", map[string]any{"state": state.String()})
}

func (c *Controller) onPlayerError(description string) {
	c.emit("player_error", map[string]any{"description": description})
}

func (c *Controller) emit(event string, payload any) {
	if c.broadcast != nil {
		c.broadcast.Broadcast(event, payload)
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
