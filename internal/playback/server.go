package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned for paths that escape the served directory.
var ErrOutsideRoot = errors.New("path is outside the library")

// Server serves files under a single root directory.
type Server struct {
	root   string
	logger *slog.Logger
}

func NewServer(root string, logger *slog.Logger) *Server {
	return &Server{root: filepath.Clean(root), logger: logger}
}

func (s *Server) contains(path string) bool {
	rel, err := filepath.Rel(s.root, filepath.Clean(path))
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// ServeFile writes the file, or the requested byte range of it. Response
// errors (404, 416) are written here; the returned error is for the caller
// to log or map.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, filePath string) error {
	if !s.contains(filePath) {
		return ErrOutsideRoot
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	size := stat.Size()

	contentType := mime.TypeByExtension(filepath.Ext(filePath))
	if contentType == "" {
		contentType = "video/mp4"
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	parsed, err := ParseRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		// No body: the media type of the file is kept on the response.
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return nil
	case errors.Is(err, ErrInvalidRange):
		// RFC 9110: an invalid Range header is ignored.
		parsed = nil
	case err != nil:
		return err
	}

	if parsed == nil {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			s.copy(w, file, size)
		}
		return nil
	}

	w.Header().Set("Content-Length", fmt.Sprintf("%d", parsed.ContentLength()))
	w.Header().Set("Content-Range", parsed.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := file.Seek(parsed.Start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	s.copy(w, file, parsed.ContentLength())
	return nil
}

func (s *Server) copy(w io.Writer, r io.Reader, n int64) {
	if _, err := io.CopyN(w, r, n); err != nil && s.logger != nil {
		// Clients routinely hang up mid-stream while seeking.
		s.logger.Debug("playback stream ended early", "error", err)
	}
}
