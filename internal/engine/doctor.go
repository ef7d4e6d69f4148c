package engine

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const doctorCacheTTL = 5 * time.Minute

// Capabilities reports whether a usable player binary is installed.
type Capabilities struct {
	Available bool      `json:"available"`
	Path      string    `json:"path,omitempty"`
	Version   string    `json:"version,omitempty"`
	Error     string    `json:"error,omitempty"`
	ProbedAt  time.Time `json:"probed_at"`
}

// Doctor probes the player binary and caches the result so the status
// endpoint does not fork a process per request.
type Doctor struct {
	binary string
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

func NewDoctor(binary string, logger *slog.Logger) *Doctor {
	return &Doctor{binary: binary, ttl: doctorCacheTTL, logger: logger}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *Doctor) Get(ctx context.Context) *Capabilities {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

// Refresh forces a new probe regardless of cache freshness.
func (d *Doctor) Refresh(ctx context.Context) *Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps := &Capabilities{ProbedAt: time.Now()}

	path, err := resolvePlayer(d.binary)
	if err != nil {
		caps.Error = err.Error()
		d.cached = caps
		return caps
	}
	caps.Path = path

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		caps.Error = err.Error()
		d.cached = caps
		return caps
	}

	caps.Available = true
	caps.Version = parsePlayerVersion(string(out))
	d.cached = caps

	if d.logger != nil {
		d.logger.Info("player probe complete", "path", path, "version", caps.Version)
	}
	return caps
}

// parsePlayerVersion extracts the version token from mpv's banner line,
// e.g. "mpv 0.36.0 Copyright ..." yields "0.36.0".
func parsePlayerVersion(banner string) string {
	line, _, _ := strings.Cut(banner, "\n")
	fields := strings.Fields(line)
	if len(fields) >= 2 && fields[0] == "mpv" {
		return fields[1]
	}
	return strings.TrimSpace(line)
}
