package compose

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/reelcut/internal/allocator"
	"github.com/heimdex/reelcut/internal/logging"
	"github.com/heimdex/reelcut/internal/mix"
	"github.com/heimdex/reelcut/internal/timeline"
)

// DefaultProgressInterval bounds how often progress updates are delivered.
const DefaultProgressInterval = 250 * time.Millisecond

// Renderer produces the output file described by a Graph.
type Renderer interface {
	// Validate checks that output can be produced at all. It runs before any
	// asset is loaded.
	Validate(output Output) error
	// Render writes graph.Output.Path, reporting fractional progress. It
	// must return promptly once ctx is cancelled.
	Render(ctx context.Context, graph *Graph, progress func(float64)) error
}

// ExportOptions configure one export.
type ExportOptions struct {
	Output          Output
	DissolveSeconds float64
	Mix             mix.Options
	// OnUpdate receives state and progress updates. Calls are made from a
	// single goroutine per export, in order, ending with the terminal update.
	OnUpdate func(Update)
}

// Job is one export request. Allocation is computed from the timeline when
// nil.
type Job struct {
	Timeline   *timeline.Timeline
	Allocation *allocator.Result
	Options    ExportOptions
}

type Orchestrator struct {
	loader           AssetLoader
	renderer         Renderer
	logger           *slog.Logger
	progressInterval time.Duration

	mu     sync.Mutex
	active *Handle
	last   *Handle
}

type Option func(*Orchestrator)

// WithProgressInterval sets the minimum spacing of progress updates. Zero
// delivers every sample.
func WithProgressInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.progressInterval = d }
}

func NewOrchestrator(loader AssetLoader, renderer Renderer, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		loader:           loader,
		renderer:         renderer,
		logger:           logging.WithComponent(logger, "compose"),
		progressInterval: DefaultProgressInterval,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Export starts an export and returns its handle. ctx bounds the whole
// export, not just this call. At most one export runs at a time; a second
// request gets ErrExportInProgress. Every other failure is reported through
// the handle's Result.
func (o *Orchestrator) Export(ctx context.Context, job Job) (*Handle, error) {
	if job.Timeline.IsEmpty() {
		return nil, ErrEmptyTimeline
	}

	o.mu.Lock()
	if o.active != nil {
		o.mu.Unlock()
		return nil, ErrExportInProgress
	}
	runCtx, cancel := context.WithCancel(ctx)
	h := newHandle(uuid.NewString(), cancel, o.progressInterval, job.Options.OnUpdate)
	o.active = h
	o.last = h
	o.mu.Unlock()

	job.Options.Output = withDefaults(job.Options.Output)
	go o.run(runCtx, h, job)
	return h, nil
}

// Current returns the running export, or the most recent one when idle.
func (o *Orchestrator) Current() *Handle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// Busy reports whether an export is in flight.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active != nil
}

func (o *Orchestrator) release(h *Handle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == h {
		o.active = nil
	}
}

func (o *Orchestrator) run(ctx context.Context, h *Handle, job Job) {
	logger := logging.WithExportID(o.logger, h.ID())
	start := time.Now()
	out := job.Options.Output

	h.transition(StateBuildingGraph)
	logger.Info("export started", "output", logging.SanitizePath(out.Path))

	graph, err := o.build(ctx, job)
	if err == nil {
		h.transition(StateExporting)
		logger.Info("render graph built",
			"video_tracks", len(graph.VideoTracks),
			"audio_tracks", len(graph.AudioTracks),
			"overlays", len(graph.Overlays),
		)
		err = o.renderer.Render(ctx, graph, h.reportProgress)
		var renderErr *RenderError
		if err != nil && ctx.Err() == nil && !errors.As(err, &renderErr) {
			err = &RenderError{Err: err}
		}
	}

	res := Result{ExportID: h.ID()}
	switch {
	case ctx.Err() != nil:
		res.State = StateCancelled
		res.Err = ErrCancelled
		res.Failure = FailureCancelled
	case err != nil:
		res.State = StateFailed
		res.Err = err
		res.Failure = Classify(err)
		res.Error = err.Error()
	default:
		res.State = StateCompleted
		res.OutputPath = out.Path
		res.Duration = graph.Duration
	}

	// Nothing is written before the renderer starts.
	if res.State != StateCompleted && graph != nil {
		discard(out.Path, logger)
	}
	logger.Info("export finished",
		"state", res.State.String(),
		"failure", string(res.Failure),
		"elapsed", time.Since(start).String(),
	)
	if res.Err != nil && res.State == StateFailed {
		logger.Error("export failed", "error", res.Err)
	}

	o.release(h)
	h.finish(res)
}

// build validates the output, loads every referenced asset in timeline order
// and assembles the graph. Cancellation is checked before each load.
func (o *Orchestrator) build(ctx context.Context, job Job) (*Graph, error) {
	if err := o.renderer.Validate(job.Options.Output); err != nil {
		return nil, &GraphError{Reason: "invalid output", Err: err}
	}
	if err := job.Timeline.Validate(); err != nil {
		return nil, &GraphError{Reason: "invalid timeline", Err: err}
	}

	var alloc allocator.Result
	if job.Allocation != nil {
		alloc = *job.Allocation
	} else {
		alloc = allocator.Allocate(job.Timeline.VideoClips)
	}

	assets := make(map[string]Asset)
	for _, url := range assetURLs(job.Timeline, alloc) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		asset, err := o.loader.Load(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &AssetLoadError{URL: url, Err: err}
		}
		asset.URL = url
		assets[url] = asset
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return Assemble(job.Timeline, alloc, assets, GraphOptions{
		Output:          job.Options.Output,
		DissolveSeconds: job.Options.DissolveSeconds,
		Mix:             job.Options.Mix,
	})
}

// assetURLs lists each distinct source once, in the order the graph uses
// them.
func assetURLs(tl *timeline.Timeline, alloc allocator.Result) []string {
	seen := make(map[string]bool)
	var urls []string
	add := func(url string) {
		if !seen[url] {
			seen[url] = true
			urls = append(urls, url)
		}
	}
	for _, a := range alloc.Allocations {
		add(a.Clip.SourceURL)
	}
	for _, c := range tl.DialogClips {
		add(c.SourceURL)
	}
	if tl.MusicBed != nil {
		add(tl.MusicBed.SourceURL)
	}
	for _, s := range tl.SFX {
		add(s.SourceURL)
	}
	return urls
}

func withDefaults(out Output) Output {
	if out.Width == 0 {
		out.Width = DefaultWidth
	}
	if out.Height == 0 {
		out.Height = DefaultHeight
	}
	if out.FrameRate == 0 {
		out.FrameRate = DefaultFrameRate
	}
	return out
}

func discard(path string, logger *slog.Logger) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to remove partial output", "path", logging.SanitizePath(path), "error", err)
	}
}
