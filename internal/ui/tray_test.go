package ui

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/heimdex/reelcut/internal/compose"
	"github.com/heimdex/reelcut/internal/library"
	"github.com/heimdex/reelcut/internal/mediatime"
	"github.com/heimdex/reelcut/internal/timeline"
)

type stubLoader struct{}

func (stubLoader) Load(_ context.Context, url string) (compose.Asset, error) {
	return compose.Asset{URL: url, Duration: mediatime.FromSeconds(10), HasVideo: true, HasAudio: true}, nil
}

// pausingRenderer reports progress once and then blocks until cancelled.
type pausingRenderer struct {
	reported chan struct{}
}

func (pausingRenderer) Validate(compose.Output) error { return nil }

func (p pausingRenderer) Render(ctx context.Context, g *compose.Graph, progress func(float64)) error {
	progress(0.42)
	close(p.reported)
	<-ctx.Done()
	return ctx.Err()
}

type writingRenderer struct{}

func (writingRenderer) Validate(compose.Output) error { return nil }

func (writingRenderer) Render(_ context.Context, g *compose.Graph, _ func(float64)) error {
	return os.WriteFile(g.Output.Path, []byte("reel"), 0644)
}

func testJob(t *testing.T) compose.Job {
	r := mediatime.NewRange(mediatime.Zero, mediatime.FromSeconds(4))
	tl := timeline.Empty()
	tl.VideoClips = []timeline.Clip{timeline.NewClip("main.mov", timeline.MediaVideo, r, mediatime.Zero)}
	tl.TotalDuration = mediatime.FromSeconds(4)
	return compose.Job{
		Timeline: tl,
		Options:  compose.ExportOptions{Output: compose.Output{Path: filepath.Join(t.TempDir(), "out.mp4")}},
	}
}

func newOrchestrator(r compose.Renderer) *compose.Orchestrator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return compose.NewOrchestrator(stubLoader{}, r, logger, compose.WithProgressInterval(0))
}

func wait(t *testing.T, h *compose.Handle) compose.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := h.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	return res
}

func TestStatusTitle_Idle(t *testing.T) {
	if got := StatusTitle(nil, false); got != "Status: Idle" {
		t.Fatalf("StatusTitle(nil) = %q", got)
	}
}

func TestStatusTitle_Exporting(t *testing.T) {
	renderer := pausingRenderer{reported: make(chan struct{})}
	orch := newOrchestrator(renderer)

	h, err := orch.Export(context.Background(), testJob(t))
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	select {
	case <-renderer.reported:
	case <-time.After(5 * time.Second):
		t.Fatal("renderer never reported progress")
	}

	if got := StatusTitle(h, orch.Busy()); got != "Status: Exporting 42%" {
		t.Fatalf("StatusTitle() = %q", got)
	}

	h.Cancel()
	wait(t, h)
	if got := StatusTitle(h, orch.Busy()); got != "Status: Idle (last export cancelled)" {
		t.Fatalf("StatusTitle() after cancel = %q", got)
	}
}

func TestStatusTitle_Completed(t *testing.T) {
	orch := newOrchestrator(writingRenderer{})
	h, err := orch.Export(context.Background(), testJob(t))
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res := wait(t, h); res.State != compose.StateCompleted {
		t.Fatalf("result = %+v", res)
	}
	if got := StatusTitle(h, false); got != "Status: Idle" {
		t.Fatalf("StatusTitle() = %q", got)
	}
}

func TestLastExportTitle(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name  string
		entry *library.Entry
		want  string
	}{
		{"none", nil, "Last export: none"},
		{
			"completed",
			&library.Entry{Title: "reel", Status: library.StatusCompleted, SizeBytes: 2_500_000, CreatedAt: now.Add(-3 * time.Minute)},
			"Last export: reel (2.5 MB, 3 minutes ago)",
		},
		{
			"failed",
			&library.Entry{Title: "reel", Status: library.StatusFailed, CreatedAt: now.Add(-2 * time.Hour)},
			"Last export: reel (failed, 2 hours ago)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LastExportTitle(tt.entry); got != tt.want {
				t.Fatalf("LastExportTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}
