package api

import (
	"encoding/json"
	"net/http"

	"github.com/cuedeck/cuedeck-agent/internal/export"
)

// exportCueSheetHandler renders the active project's breakpoints as an EDL
// or CSV cue sheet in a caller-chosen directory.
func exportCueSheetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		p := cfg.Controller.Project()
		if p == nil {
			WriteError(w, http.StatusConflict, "no project loaded", "NO_PROJECT")
			return
		}

		duration := cfg.Controller.Session().Duration()
		if duration <= 0 {
			WriteError(w, http.StatusUnprocessableEntity, "duration not yet known", "NO_DURATION")
			return
		}

		if req.FrameRate <= 0 {
			req.FrameRate = 30.0
		}

		mediaPath := ""
		if files := p.VideoFiles(); len(files) > 0 {
			mediaPath = files[0]
		}

		resp, err := export.WriteCueSheet(req, p.Name(), mediaPath, p.SortedBreakpoints(), duration)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}
