// Package render is the ffmpeg-backed side of an export: ffprobe for asset
// metadata and durations, and an ffmpeg filter graph built from a compose
// Graph for the final encode.
package render

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
)

// resolveBinary finds a usable executable, preferring the configured one.
func resolveBinary(preferred, fallback string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured %s %q not found", fallback, preferred)
	}
	if p, err := exec.LookPath(fallback); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("no %s binary found on PATH", fallback)
}

// sourcePath turns a source URL into something ffmpeg can open. file://
// URLs become plain paths; anything else is passed through.
func sourcePath(url string) string {
	if rest, ok := strings.CutPrefix(url, "file://"); ok {
		return rest
	}
	return url
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	mu    sync.Mutex
	w     bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}

func (lw *limitedWriter) String() string {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.String()
}
