package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/cuedeck/cuedeck-agent/internal/controller"
	"github.com/cuedeck/cuedeck-agent/internal/project"
	"github.com/cuedeck/cuedeck-agent/internal/timecode"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Get("/events", cfg.Hub.ServeWS)

		r.Get("/project", getProjectHandler(cfg))
		r.Post("/project/open", openProjectHandler(cfg))
		r.Post("/project/save", saveProjectHandler(cfg))
		r.Get("/project/recent", listRecentHandler(cfg))

		r.Get("/breakpoints", listBreakpointsHandler(cfg))
		r.Post("/breakpoints", addBreakpointHandler(cfg))
		r.Put("/breakpoints/{row}", editBreakpointHandler(cfg))
		r.Post("/breakpoints/remove", removeBreakpointsHandler(cfg))
		r.Post("/breakpoints/regular", regularBreakpointsHandler(cfg))

		r.Post("/transport/play", transportHandler(cfg, func(c *controller.Controller) error { return c.Session().Play() }))
		r.Post("/transport/pause", transportHandler(cfg, func(c *controller.Controller) error { return c.Session().Pause() }))
		r.Post("/transport/toggle", transportHandler(cfg, func(c *controller.Controller) error { return c.Session().PlayPause() }))
		r.Post("/transport/forward", transportHandler(cfg, func(c *controller.Controller) error { return c.Session().SeekForward() }))
		r.Post("/transport/backward", transportHandler(cfg, func(c *controller.Controller) error { return c.Session().SeekBackward() }))
		r.Post("/transport/next", transportHandler(cfg, func(c *controller.Controller) error { return c.NextBreakpoint() }))
		r.Post("/transport/previous", transportHandler(cfg, func(c *controller.Controller) error { return c.PreviousBreakpoint() }))
		r.Post("/transport/seek", seekHandler(cfg))

		r.Post("/presentation/start", startPresentationHandler(cfg))

		r.Post("/history/undo", transportHandler(cfg, func(c *controller.Controller) error { return c.Undo() }))
		r.Post("/history/redo", transportHandler(cfg, func(c *controller.Controller) error { return c.Redo() }))

		r.Post("/export/cuesheet", exportCueSheetHandler(cfg))

		r.Get("/media/{index}", mediaHandler(cfg))

		r.Get("/pairing", pairingHandler(cfg))
		r.Get("/pairing/qr", pairingQRHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := cfg.Controller.Session()
		resp := StatusResponse{
			State:      sess.State().String(),
			PositionMs: sess.Position(),
			DurationMs: sess.Duration(),
			SeekStepMs: sess.SeekStep(),
			Project:    ProjectToResponse(cfg.Controller),
		}

		if cfg.Doctor != nil {
			caps := cfg.Doctor.Get(r.Context())
			resp.Player = &PlayerStatusResponse{
				Available:   caps.Available,
				Version:     caps.Version,
				Error:       caps.Error,
				LastProbeAt: caps.ProbedAt.Format(time.RFC3339),
			}
		}

		if info, err := host.InfoWithContext(r.Context()); err == nil {
			sys := &SystemStatusResponse{
				Hostname: info.Hostname,
				Platform: info.Platform,
				UptimeS:  info.Uptime,
			}
			if vm, err := mem.VirtualMemoryWithContext(r.Context()); err == nil {
				sys.MemUsedPercent = vm.UsedPercent
			}
			resp.System = sys
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := ProjectToResponse(cfg.Controller)
		if resp == nil {
			WriteError(w, http.StatusConflict, "no project loaded", "NO_PROJECT")
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func openProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OpenProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		if err := cfg.Controller.OpenProject(req.Path); err != nil {
			writeWorkflowError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProjectToResponse(cfg.Controller))
	}
}

func saveProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Controller.SaveProject(); err != nil {
			writeWorkflowError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProjectToResponse(cfg.Controller))
	}
}

func listRecentHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recent, err := cfg.Repository.ListRecent(r.Context(), 10)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list recent projects", "INTERNAL_ERROR")
			return
		}
		resp := RecentResponse{Projects: make([]RecentProjectResponse, len(recent))}
		for i, p := range recent {
			resp.Projects[i] = RecentToResponse(p)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func listBreakpointsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := cfg.Controller.Project()
		if p == nil {
			WriteError(w, http.StatusConflict, "no project loaded", "NO_PROJECT")
			return
		}
		WriteJSON(w, http.StatusOK, BreakpointsResponse{
			Rows:  cfg.Controller.BreakpointRows(),
			Saved: p.Saved(),
		})
	}
}

func addBreakpointHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddBreakpointRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		var err error
		if req.At == "" {
			err = cfg.Controller.AddBreakpointHere()
		} else {
			err = cfg.Controller.AddBreakpointAt(req.At)
		}
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProjectToResponse(cfg.Controller))
	}
}

func editBreakpointHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		row, err := strconv.Atoi(chi.URLParam(r, "row"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "row must be an integer", "BAD_REQUEST")
			return
		}

		var req EditBreakpointRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := cfg.Controller.EditBreakpointRow(row, req.At); err != nil {
			writeWorkflowError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProjectToResponse(cfg.Controller))
	}
}

func removeBreakpointsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RemoveBreakpointsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if len(req.Rows) == 0 {
			WriteError(w, http.StatusBadRequest, "rows is required", "BAD_REQUEST")
			return
		}

		if err := cfg.Controller.RemoveBreakpointRows(req.Rows); err != nil {
			writeWorkflowError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProjectToResponse(cfg.Controller))
	}
}

func regularBreakpointsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegularBreakpointsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := cfg.Controller.AddBreakpointsRegularly(req.From, req.To, req.Every); err != nil {
			writeWorkflowError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProjectToResponse(cfg.Controller))
	}
}

// transportHandler wraps the no-payload transport and history operations.
func transportHandler(cfg ServerConfig, op func(*controller.Controller) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !cfg.Controller.Active() {
			WriteError(w, http.StatusConflict, "no project loaded", "NO_PROJECT")
			return
		}
		if err := op(cfg.Controller); err != nil {
			writeWorkflowError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func seekHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SeekRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		var err error
		switch {
		case req.Ms != nil:
			if !cfg.Controller.Active() {
				WriteError(w, http.StatusConflict, "no project loaded", "NO_PROJECT")
				return
			}
			err = cfg.Controller.Session().Seek(*req.Ms)
		case req.At != "":
			err = cfg.Controller.JumpToTime(req.At)
		default:
			WriteError(w, http.StatusBadRequest, "at or ms is required", "BAD_REQUEST")
			return
		}
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func startPresentationHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartPresentationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := cfg.Controller.StartPresentation(req.FromHere); err != nil {
			writeWorkflowError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func mediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "index must be an integer", "BAD_REQUEST")
			return
		}

		clipPath, err := cfg.Controller.ClipPath(index)
		if err != nil {
			if errors.Is(err, controller.ErrNoProject) {
				WriteError(w, http.StatusConflict, "no project loaded", "NO_PROJECT")
				return
			}
			WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
			return
		}

		if err := cfg.Media.ServeClip(w, r, clipPath); err != nil {
			cfg.Logger.Error("media error", "error", err, "clip", index)
		}
	}
}

func pairingHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, PairingResponse{ControlURL: cfg.ControlURL})
	}
}

func pairingQRHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		png, err := qrcode.Encode(cfg.ControlURL, qrcode.Medium, 256)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "cannot render QR code", "INTERNAL_ERROR")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}
}

// writeWorkflowError maps controller errors onto the API's error taxonomy.
func writeWorkflowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, controller.ErrNoProject):
		WriteError(w, http.StatusConflict, err.Error(), "NO_PROJECT")
	case errors.Is(err, timecode.ErrFormat):
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_TIMECODE")
	case errors.Is(err, project.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	default:
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	}
}
