package playback

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, "reel.mp4")
	if err := os.WriteFile(path, []byte("0123456789"), 0644); err != nil {
		t.Fatal(err)
	}
	return NewServer(root, slog.New(slog.NewTextHandler(io.Discard, nil))), path
}

func TestServeFile(t *testing.T) {
	s, path := newTestServer(t)

	tests := []struct {
		name      string
		rangeHdr  string
		method    string
		status    int
		body      string
		contRange string
	}{
		{"full", "", http.MethodGet, http.StatusOK, "0123456789", ""},
		{"range", "bytes=2-5", http.MethodGet, http.StatusPartialContent, "2345", "bytes 2-5/10"},
		{"suffix", "bytes=-3", http.MethodGet, http.StatusPartialContent, "789", "bytes 7-9/10"},
		{"invalid ignored", "items=0-1", http.MethodGet, http.StatusOK, "0123456789", ""},
		{"unsatisfiable", "bytes=20-", http.MethodGet, http.StatusRequestedRangeNotSatisfiable, "", "bytes */10"},
		{"head", "", http.MethodHead, http.StatusOK, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/library/x/file", nil)
			if tt.rangeHdr != "" {
				req.Header.Set("Range", tt.rangeHdr)
			}
			rec := httptest.NewRecorder()
			if err := s.ServeFile(rec, req, path); err != nil {
				t.Fatalf("ServeFile() error = %v", err)
			}
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if rec.Body.String() != tt.body {
				t.Fatalf("body = %q, want %q", rec.Body.String(), tt.body)
			}
			if got := rec.Header().Get("Content-Range"); got != tt.contRange {
				t.Fatalf("Content-Range = %q, want %q", got, tt.contRange)
			}
			if got := rec.Header().Get("Content-Type"); got != "video/mp4" {
				t.Fatalf("Content-Type = %q", got)
			}
		})
	}
}

func TestServeFile_NotFound(t *testing.T) {
	s, path := newTestServer(t)
	rec := httptest.NewRecorder()
	err := s.ServeFile(rec, httptest.NewRequest(http.MethodGet, "/", nil), filepath.Join(filepath.Dir(path), "missing.mp4"))
	if err != nil || rec.Code != http.StatusNotFound {
		t.Fatalf("ServeFile() = %v, status %d", err, rec.Code)
	}
}

func TestServeFile_OutsideRoot(t *testing.T) {
	s, path := newTestServer(t)
	outside := filepath.Join(t.TempDir(), "secret.mp4")
	os.WriteFile(outside, []byte("x"), 0644)

	for _, p := range []string{outside, filepath.Join(filepath.Dir(path), "..", "secret.mp4")} {
		rec := httptest.NewRecorder()
		if err := s.ServeFile(rec, httptest.NewRequest(http.MethodGet, "/", nil), p); !errors.Is(err, ErrOutsideRoot) {
			t.Fatalf("ServeFile(%q) error = %v, want ErrOutsideRoot", p, err)
		}
	}
}
