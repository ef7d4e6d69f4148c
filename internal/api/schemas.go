package api

import (
	"time"

	"github.com/cuedeck/cuedeck-agent/internal/controller"
	"github.com/cuedeck/cuedeck-agent/internal/state"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State      string                `json:"state"`
	PositionMs int64                 `json:"position_ms"`
	DurationMs int64                 `json:"duration_ms"`
	SeekStepMs int64                 `json:"seek_step_ms"`
	Project    *ProjectResponse      `json:"project,omitempty"`
	Player     *PlayerStatusResponse `json:"player,omitempty"`
	System     *SystemStatusResponse `json:"system,omitempty"`
}

type PlayerStatusResponse struct {
	Available   bool   `json:"available"`
	Version     string `json:"version,omitempty"`
	Error       string `json:"error,omitempty"`
	LastProbeAt string `json:"last_probe_at,omitempty"`
}

type SystemStatusResponse struct {
	Hostname       string  `json:"hostname"`
	Platform       string  `json:"platform"`
	UptimeS        uint64  `json:"uptime_s"`
	MemUsedPercent float64 `json:"mem_used_percent"`
}

type ProjectResponse struct {
	Path        string   `json:"path"`
	Name        string   `json:"name"`
	Files       []string `json:"files"`
	Breakpoints []string `json:"breakpoints"`
	Saved       bool     `json:"saved"`
	CanUndo     bool     `json:"can_undo"`
	CanRedo     bool     `json:"can_redo"`
}

type BreakpointsResponse struct {
	Rows  []string `json:"rows"`
	Saved bool     `json:"saved"`
}

type OpenProjectRequest struct {
	Path string `json:"path"`
}

type AddBreakpointRequest struct {
	// At is a display timestamp; empty means the current playhead.
	At string `json:"at,omitempty"`
}

type EditBreakpointRequest struct {
	At string `json:"at"`
}

type RemoveBreakpointsRequest struct {
	Rows []int `json:"rows"`
}

type RegularBreakpointsRequest struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Every string `json:"every"`
}

type SeekRequest struct {
	// Exactly one of At (display timestamp) or Ms is expected; Ms wins
	// when both are present.
	At string `json:"at,omitempty"`
	Ms *int64 `json:"ms,omitempty"`
}

type StartPresentationRequest struct {
	FromHere bool `json:"from_here"`
}

type RecentProjectResponse struct {
	Path           string `json:"path"`
	DisplayName    string `json:"display_name"`
	LastOpenedAt   string `json:"last_opened_at"`
	LastPositionMs int64  `json:"last_position_ms"`
}

type RecentResponse struct {
	Projects []RecentProjectResponse `json:"projects"`
}

type PairingResponse struct {
	ControlURL string `json:"control_url"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func RecentToResponse(p *state.RecentProject) RecentProjectResponse {
	return RecentProjectResponse{
		Path:           p.Path,
		DisplayName:    p.DisplayName,
		LastOpenedAt:   p.LastOpenedAt.Format(time.RFC3339),
		LastPositionMs: p.LastPositionMs,
	}
}

func ProjectToResponse(c *controller.Controller) *ProjectResponse {
	p := c.Project()
	if p == nil {
		return nil
	}
	return &ProjectResponse{
		Path:        p.Path(),
		Name:        p.Name(),
		Files:       p.VideoFiles(),
		Breakpoints: c.BreakpointRows(),
		Saved:       p.Saved(),
		CanUndo:     c.CanUndo(),
		CanRedo:     c.CanRedo(),
	}
}
