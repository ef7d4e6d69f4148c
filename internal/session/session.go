// Package session mirrors the state of an external playback engine and
// exposes the transport operations the presenter needs: play/pause,
// absolute and relative seeking, and a duration-derived seek step.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
)

// State is the engine's transport status.
type State int

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "stopped"
	}
}

// maxSeekStepMs caps a single seek-forward/backward press at one second so
// long clips still seek in fine increments.
const maxSeekStepMs = 1000

// EventKind discriminates engine notifications.
type EventKind int

const (
	EventPosition EventKind = iota
	EventDuration
	EventState
	EventError
)

// Event is one asynchronous engine notification.
type Event struct {
	Kind     EventKind
	Position int64
	Duration int64
	State    State
	Err      string
}

// Engine is the contract the session needs from the external playback
// engine. Load replaces any queued media with a sequential playlist and
// selects the first entry; notifications arrive on the Events channel.
type Engine interface {
	Load(paths []string) error
	Play() error
	Pause() error
	Seek(positionMs int64) error
	Events() <-chan Event
	Close() error
}

// Events holds the subscriber's callbacks. Nil callbacks are skipped; the
// controller is the single subscriber and fans out to displays.
type Events struct {
	PositionChanged func(ms int64)
	DurationChanged func(ms int64)
	StateChanged    func(state State)
	Error           func(description string)
}

// Session wraps an Engine with a consistent local mirror of position,
// duration, transport state and the derived seek step.
type Session struct {
	engine Engine
	logger *slog.Logger

	mu       sync.Mutex
	position int64
	duration int64
	seekStep int64
	state    State
	sub      Events
}

func New(engine Engine, logger *slog.Logger) *Session {
	return &Session{engine: engine, logger: logger}
}

// Subscribe installs the notification callbacks. Callbacks run outside the
// session lock and may call back into the session.
func (s *Session) Subscribe(sub Events) {
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
}

// Run pumps engine notifications until the context ends or the engine's
// event channel closes.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-s.engine.Events():
			if !ok {
				return nil
			}
			s.handleEvent(ev)
		}
	}
}

func (s *Session) handleEvent(ev Event) {
	s.mu.Lock()
	sub := s.sub
	switch ev.Kind {
	case EventPosition:
		s.position = ev.Position
	case EventDuration:
		s.duration = ev.Duration
		s.seekStep = deriveSeekStep(ev.Duration)
	case EventState:
		s.state = ev.State
	}
	s.mu.Unlock()

	switch ev.Kind {
	case EventPosition:
		if sub.PositionChanged != nil {
			sub.PositionChanged(ev.Position)
		}
	case EventDuration:
		if sub.DurationChanged != nil {
			sub.DurationChanged(ev.Duration)
		}
	case EventState:
		if sub.StateChanged != nil {
			sub.StateChanged(ev.State)
		}
	case EventError:
		if s.logger != nil {
			s.logger.Warn("playback engine error", "error", ev.Err)
		}
		if sub.Error != nil {
			sub.Error(ev.Err)
		}
	}
}

// Activate clears the engine queue, resolves the clip list against baseDir,
// loads it as a sequential playlist and starts playback. An engine error is
// reported to the caller; the session stays alive in whatever state the
// engine is left in.
func (s *Session) Activate(videoFiles []string, baseDir string) error {
	if len(videoFiles) == 0 {
		return fmt.Errorf("project has no video files to activate")
	}

	resolved := make([]string, len(videoFiles))
	for i, f := range videoFiles {
		resolved[i] = filepath.Join(baseDir, f)
	}

	if err := s.engine.Load(resolved); err != nil {
		return fmt.Errorf("media error: %w", err)
	}
	if err := s.engine.Play(); err != nil {
		return fmt.Errorf("media error: %w", err)
	}
	return nil
}

func (s *Session) Play() error {
	return s.engine.Play()
}

func (s *Session) Pause() error {
	return s.engine.Pause()
}

// PlayPause toggles the transport based on the mirrored state.
func (s *Session) PlayPause() error {
	if s.State() == StatePlaying {
		return s.engine.Pause()
	}
	return s.engine.Play()
}

// Seek jumps to an absolute position. Out-of-range requests are not errors;
// they saturate to [0, duration]. The mirror is updated immediately so the
// displayed position does not lag behind the command.
func (s *Session) Seek(positionMs int64) error {
	s.mu.Lock()
	if positionMs < 0 {
		positionMs = 0
	}
	if positionMs > s.duration {
		positionMs = s.duration
	}
	s.position = positionMs
	sub := s.sub
	s.mu.Unlock()

	if sub.PositionChanged != nil {
		sub.PositionChanged(positionMs)
	}
	return s.engine.Seek(positionMs)
}

// SeekRelative seeks by a signed delta from the current position.
func (s *Session) SeekRelative(deltaMs int64) error {
	return s.Seek(s.Position() + deltaMs)
}

// SeekForward advances by one seek step.
func (s *Session) SeekForward() error {
	return s.SeekRelative(s.SeekStep())
}

// SeekBackward rewinds by one seek step.
func (s *Session) SeekBackward() error {
	return s.SeekRelative(-s.SeekStep())
}

func (s *Session) Position() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

func (s *Session) Duration() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

func (s *Session) SeekStep() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seekStep
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// deriveSeekStep scales the skip delta with clip length: a tenth of the
// duration, capped at one second.
func deriveSeekStep(durationMs int64) int64 {
	if durationMs <= 0 {
		return 0
	}
	step := durationMs / 10
	if step > maxSeekStepMs {
		step = maxSeekStepMs
	}
	return step
}
