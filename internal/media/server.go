// Package media serves the active project's video clips over HTTP with
// byte-range support, so player frontends and phone remotes can stream and
// scrub without the agent loading whole files.
package media

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	return &Server{logger: logger}
}

// ServeClip streams one resolved clip path, honouring a single Range
// request. Unsatisfiable ranges answer 416; syntactically broken ranges
// fall back to the full file, which is what players expect.
func (s *Server) ServeClip(w http.ResponseWriter, r *http.Request, clipPath string) error {
	file, err := os.Open(clipPath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "clip not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("cannot open clip: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("cannot stat clip: %w", err)
	}
	size := stat.Size()

	contentType := mime.TypeByExtension(filepath.Ext(clipPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	span, err := ParseRange(r.Header.Get("Range"), size)
	switch {
	case err == ErrUnsatisfiable:
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case err == ErrInvalidRange:
		span = nil
	case err != nil:
		return err
	}

	if span == nil {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
		w.WriteHeader(http.StatusOK)
		io.Copy(w, file)
		return nil
	}

	w.Header().Set("Content-Length", fmt.Sprintf("%d", span.Length()))
	w.Header().Set("Content-Range", span.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := file.Seek(span.Start, io.SeekStart); err != nil {
		return fmt.Errorf("cannot seek clip: %w", err)
	}
	io.CopyN(w, file, span.Length())
	return nil
}
