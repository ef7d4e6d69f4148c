package engine

import (
	"sync"

	"github.com/cuedeck/cuedeck-agent/internal/session"
)

// stubClipDurationMs is the fixed duration the stub reports for any clip.
const stubClipDurationMs = 60_000

// Stub is an in-memory engine for development machines without mpv. It
// reports a fixed duration and echoes transport commands back as events;
// nothing is rendered.
type Stub struct {
	mu        sync.Mutex
	playlist  []string
	position  int64
	state     session.State
	events    chan session.Event
	closeOnce sync.Once
}

func NewStub() *Stub {
	return &Stub{events: make(chan session.Event, 64)}
}

func (s *Stub) Events() <-chan session.Event {
	return s.events
}

func (s *Stub) Load(paths []string) error {
	s.mu.Lock()
	s.playlist = append([]string(nil), paths...)
	s.position = 0
	s.state = session.StateStopped
	s.mu.Unlock()

	s.emit(session.Event{Kind: session.EventDuration, Duration: stubClipDurationMs})
	s.emit(session.Event{Kind: session.EventPosition, Position: 0})
	return nil
}

func (s *Stub) Play() error {
	s.mu.Lock()
	s.state = session.StatePlaying
	s.mu.Unlock()
	s.emit(session.Event{Kind: session.EventState, State: session.StatePlaying})
	return nil
}

func (s *Stub) Pause() error {
	s.mu.Lock()
	s.state = session.StatePaused
	s.mu.Unlock()
	s.emit(session.Event{Kind: session.EventState, State: session.StatePaused})
	return nil
}

func (s *Stub) Seek(positionMs int64) error {
	s.mu.Lock()
	s.position = positionMs
	s.mu.Unlock()
	s.emit(session.Event{Kind: session.EventPosition, Position: positionMs})
	return nil
}

func (s *Stub) Close() error {
	s.closeOnce.Do(func() { close(s.events) })
	return nil
}

// Playlist returns the currently loaded paths.
func (s *Stub) Playlist() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.playlist...)
}

func (s *Stub) emit(ev session.Event) {
	select {
	case s.events <- ev:
	default:
	}
}
