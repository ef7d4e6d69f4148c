// Package engine drives an external mpv process over its JSON IPC socket
// and exposes it through the session's engine contract. The agent never
// decodes video itself; mpv owns the window and the clock.
package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/cuedeck/cuedeck-agent/internal/session"
)

const (
	propTimePos  = 1
	propDuration = 2
	propPause    = 3
	propIdle     = 4
)

// Config holds the mpv engine's configuration.
type Config struct {
	BinaryPath   string        // path to mpv binary; empty = auto-detect
	SocketDir    string        // dir for the IPC socket, e.g. ~/.cuedeck
	StartTimeout time.Duration // how long to wait for the IPC socket
	Logger       *slog.Logger
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig(dataDir string, logger *slog.Logger) Config {
	return Config{
		BinaryPath:   "",
		SocketDir:    dataDir,
		StartTimeout: 10 * time.Second,
		Logger:       logger,
	}
}

// MPV is the production engine implementation. One mpv process lives for
// the whole agent run; projects swap playlists, not processes.
type MPV struct {
	cfg    Config
	binary string

	events chan session.Event

	mu     sync.Mutex
	conn   net.Conn
	cmd    *exec.Cmd
	reqID  int64
	closed bool
}

// NewMPV resolves the player binary, spawns mpv idle and connects to its
// IPC socket.
func NewMPV(cfg Config) (*MPV, error) {
	binary, err := resolvePlayer(cfg.BinaryPath)
	if err != nil {
		return nil, fmt.Errorf("cannot locate player: %w", err)
	}
	if err := os.MkdirAll(cfg.SocketDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create socket dir: %w", err)
	}

	socketPath := filepath.Join(cfg.SocketDir, fmt.Sprintf("mpv-%d.sock", os.Getpid()))

	cmd := exec.Command(binary,
		"--idle=yes",
		"--no-terminal",
		"--force-window=yes",
		"--keep-open=yes",
		"--input-ipc-server="+socketPath,
	)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("cannot start player: %w", err)
	}

	conn, err := dialWithRetry(socketPath, cfg.StartTimeout)
	if err != nil {
		cmd.Process.Kill()
		return nil, fmt.Errorf("cannot connect to player IPC: %w", err)
	}

	cfg.Logger.Info("playback engine started",
		"binary", binary,
		"socket", socketPath,
	)

	m := &MPV{
		cfg:    cfg,
		binary: binary,
		events: make(chan session.Event, 64),
		conn:   conn,
		cmd:    cmd,
	}

	for id, name := range map[int]string{
		propTimePos:  "time-pos",
		propDuration: "duration",
		propPause:    "pause",
		propIdle:     "core-idle",
	} {
		if err := m.send("observe_property", id, name); err != nil {
			m.Close()
			return nil, fmt.Errorf("cannot observe %s: %w", name, err)
		}
	}

	go m.readLoop()
	return m, nil
}

func (m *MPV) Events() <-chan session.Event {
	return m.events
}

// Load replaces the playlist with the given absolute paths and selects the
// first entry.
func (m *MPV) Load(paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("empty playlist")
	}
	if err := m.send("loadfile", paths[0], "replace"); err != nil {
		return err
	}
	for _, p := range paths[1:] {
		if err := m.send("loadfile", p, "append"); err != nil {
			return err
		}
	}
	return nil
}

func (m *MPV) Play() error {
	return m.send("set_property", "pause", false)
}

func (m *MPV) Pause() error {
	return m.send("set_property", "pause", true)
}

func (m *MPV) Seek(positionMs int64) error {
	return m.send("set_property", "time-pos", float64(positionMs)/1000.0)
}

// Close quits the player and tears down the IPC connection. The events
// channel closes once the read loop drains.
func (m *MPV) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	conn := m.conn
	cmd := m.cmd
	m.mu.Unlock()

	// Best effort; the player may already be gone.
	m.writeCommand(ipcRequest{Command: []any{"quit"}})

	if conn != nil {
		conn.Close()
	}
	if cmd != nil && cmd.Process != nil {
		done := make(chan struct{})
		go func() {
			cmd.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			cmd.Process.Kill()
		}
	}
	return nil
}

type ipcRequest struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id,omitempty"`
}

type ipcMessage struct {
	Event     string          `json:"event,omitempty"`
	ID        int             `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Error     string          `json:"error,omitempty"`
	RequestID int64           `json:"request_id,omitempty"`
}

func (m *MPV) send(args ...any) error {
	m.mu.Lock()
	m.reqID++
	req := ipcRequest{Command: args, RequestID: m.reqID}
	m.mu.Unlock()
	return m.writeCommand(req)
}

func (m *MPV) writeCommand(req ipcRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return fmt.Errorf("player IPC not connected")
	}
	_, err = m.conn.Write(append(payload, '\n'))
	if err != nil {
		return fmt.Errorf("player IPC write failed: %w", err)
	}
	return nil
}

func (m *MPV) readLoop() {
	defer close(m.events)

	scanner := bufio.NewScanner(m.conn)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	for scanner.Scan() {
		ev, ok := translateMessage(scanner.Bytes())
		if !ok {
			continue
		}
		select {
		case m.events <- ev:
		default:
			// A stalled consumer must not wedge the IPC reader.
			if m.cfg.Logger != nil {
				m.cfg.Logger.Warn("dropping engine event", "kind", ev.Kind)
			}
		}
	}

	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if !closed && m.cfg.Logger != nil {
		m.cfg.Logger.Warn("player IPC connection lost")
	}
}

// translateMessage maps one raw IPC line to a session event. Responses to
// our own requests and uninteresting events return ok=false.
func translateMessage(line []byte) (session.Event, bool) {
	var msg ipcMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return session.Event{}, false
	}

	switch msg.Event {
	case "property-change":
		switch msg.Name {
		case "time-pos":
			seconds, ok := decodeFloat(msg.Data)
			if !ok {
				return session.Event{}, false
			}
			return session.Event{Kind: session.EventPosition, Position: int64(math.Round(seconds * 1000))}, true
		case "duration":
			seconds, ok := decodeFloat(msg.Data)
			if !ok {
				return session.Event{}, false
			}
			return session.Event{Kind: session.EventDuration, Duration: int64(math.Round(seconds * 1000))}, true
		case "pause":
			paused, ok := decodeBool(msg.Data)
			if !ok {
				return session.Event{}, false
			}
			state := session.StatePlaying
			if paused {
				state = session.StatePaused
			}
			return session.Event{Kind: session.EventState, State: state}, true
		case "core-idle":
			idle, ok := decodeBool(msg.Data)
			if !ok || !idle {
				return session.Event{}, false
			}
			return session.Event{Kind: session.EventState, State: session.StateStopped}, true
		}
	case "end-file":
		if msg.Reason == "error" {
			desc := msg.Error
			if desc == "" {
				desc = "playback failed"
			}
			return session.Event{Kind: session.EventError, Err: desc}, true
		}
	}
	return session.Event{}, false
}

// Unmarshalling JSON null into a scalar is a silent no-op, and mpv reports
// null for properties with no value yet, so null is rejected explicitly.
func decodeFloat(data json.RawMessage) (float64, bool) {
	if len(data) == 0 || string(data) == "null" {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, false
	}
	return v, true
}

func decodeBool(data json.RawMessage) (bool, bool) {
	if len(data) == 0 || string(data) == "null" {
		return false, false
	}
	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return false, false
	}
	return v, true
}

func dialWithRetry(socketPath string, timeout time.Duration) (net.Conn, error) {
	deadline := time.Now().Add(timeout)
	for {
		conn, err := net.Dial("unix", socketPath)
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// resolvePlayer finds a usable player binary.
func resolvePlayer(preferred string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured player %q not found", preferred)
	}
	if p, err := exec.LookPath("mpv"); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("no mpv binary found on PATH")
}
