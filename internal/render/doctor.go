package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const defaultCacheTTL = 5 * time.Minute

// Toolchain describes the ffmpeg and ffprobe binaries an export will use.
type Toolchain struct {
	FFmpeg         string    `json:"ffmpeg"`
	FFmpegVersion  string    `json:"ffmpeg_version"`
	FFprobe        string    `json:"ffprobe"`
	FFprobeVersion string    `json:"ffprobe_version"`
	ProbedAt       time.Time `json:"probed_at"`
}

// Ready reports whether both binaries answered -version.
func (t *Toolchain) Ready() bool {
	return t != nil && t.FFmpegVersion != "" && t.FFprobeVersion != ""
}

// ToolchainProbe inspects the installed binaries.
type ToolchainProbe interface {
	Probe(ctx context.Context) (*Toolchain, error)
}

// BinaryProbe runs `-version` on the configured ffmpeg and ffprobe.
type BinaryProbe struct {
	FFmpegPath  string
	FFprobePath string
	Timeout     time.Duration

	resolve func(preferred, fallback string) (string, error)
	run     func(ctx context.Context, bin string, args ...string) ([]byte, error)
}

func NewBinaryProbe(ffmpegPath, ffprobePath string) *BinaryProbe {
	return &BinaryProbe{
		FFmpegPath:  ffmpegPath,
		FFprobePath: ffprobePath,
		Timeout:     10 * time.Second,
		resolve:     resolveBinary,
		run:         runOutput,
	}
}

func (b *BinaryProbe) Probe(ctx context.Context) (*Toolchain, error) {
	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	tc := &Toolchain{ProbedAt: time.Now()}
	var errs []error
	var err error
	if tc.FFmpeg, tc.FFmpegVersion, err = b.version(ctx, b.FFmpegPath, "ffmpeg"); err != nil {
		errs = append(errs, err)
	}
	if tc.FFprobe, tc.FFprobeVersion, err = b.version(ctx, b.FFprobePath, "ffprobe"); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return tc, nil
}

func (b *BinaryProbe) version(ctx context.Context, preferred, fallback string) (string, string, error) {
	bin, err := b.resolve(preferred, fallback)
	if err != nil {
		return "", "", err
	}
	out, err := b.run(ctx, bin, "-version")
	if err != nil {
		return bin, "", fmt.Errorf("%s -version: %w", fallback, err)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return bin, parseVersionLine(line), nil
}

// parseVersionLine pulls "6.1.1" out of "ffmpeg version 6.1.1 Copyright ...".
func parseVersionLine(line string) string {
	fields := strings.Fields(line)
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return strings.TrimSpace(line)
}

// CachedDoctor caches toolchain probes with a TTL so the health endpoint
// does not spawn two processes per request.
type CachedDoctor struct {
	probe  ToolchainProbe
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Toolchain
}

func NewCachedDoctor(probe ToolchainProbe, logger *slog.Logger) *CachedDoctor {
	return &CachedDoctor{
		probe:  probe,
		ttl:    defaultCacheTTL,
		logger: logger,
	}
}

// Get returns the cached toolchain if fresh, otherwise re-probes.
func (d *CachedDoctor) Get(ctx context.Context) (*Toolchain, error) {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		tc := d.cached
		d.mu.RUnlock()
		return tc, nil
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

// Refresh forces a new probe regardless of cache freshness.
func (d *CachedDoctor) Refresh(ctx context.Context) (*Toolchain, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tc, err := d.probe.Probe(ctx)
	if err != nil {
		d.logger.Warn("toolchain probe failed", "error", err)
		if d.cached != nil {
			d.logger.Info("returning stale toolchain cache")
			return d.cached, nil
		}
		return nil, err
	}

	d.cached = tc
	return tc, nil
}
