package planner

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/heimdex/reelcut/internal/compose"
	"github.com/heimdex/reelcut/internal/mediatime"
	"github.com/heimdex/reelcut/internal/timeline"
)

// DurationProber reports the playable duration of a source.
type DurationProber interface {
	Duration(ctx context.Context, url string) (mediatime.Time, error)
}

// Request is a planning request as it arrives from a caller.
type Request struct {
	Main      string    `json:"main"`
	Reactions []Source  `json:"reactions"`
	Music     string    `json:"music,omitempty"`
	NoMusic   bool      `json:"no_music,omitempty"`
	Bleeps    []float64 `json:"bleeps,omitempty"`
	Config    *Config   `json:"config,omitempty"`
}

type Planner struct {
	prober   DurationProber
	assets   Assets
	defaults Config
	logger   *slog.Logger
}

func New(prober DurationProber, assets Assets, defaults Config, logger *slog.Logger) *Planner {
	return &Planner{prober: prober, assets: assets, defaults: defaults, logger: logger}
}

// Defaults returns the configuration used when a request carries none.
func (p *Planner) Defaults() Config {
	return p.defaults
}

// Plan probes every source concurrently and builds the timeline.
//
// An unreadable or zero-length primary source is degenerate input and gives
// an empty timeline. A reaction that cannot be probed aborts planning with a
// *compose.AssetLoadError naming it.
func (p *Planner) Plan(ctx context.Context, req Request) (*timeline.Timeline, error) {
	cfg := p.defaults
	if req.Config != nil {
		cfg = *req.Config
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid planner config: %w", err)
	}
	if req.Main == "" || len(req.Reactions) == 0 {
		return timeline.Empty(), nil
	}

	var mainDuration mediatime.Time
	var mainErr error
	reactions := make([]ProbedSource, len(req.Reactions))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		mainDuration, mainErr = p.prober.Duration(gctx, req.Main)
		return nil
	})
	for i, src := range req.Reactions {
		g.Go(func() error {
			d, err := p.prober.Duration(gctx, src.URL)
			if err != nil {
				return &compose.AssetLoadError{URL: src.URL, Err: err}
			}
			reactions[i] = ProbedSource{Source: src, Duration: d}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if mainErr != nil {
		p.logger.Warn("primary source unreadable, planning empty timeline",
			"url", req.Main, "error", mainErr)
		return timeline.Empty(), nil
	}

	tl := Build(Inputs{
		MainURL:      req.Main,
		MainDuration: mainDuration,
		Reactions:    reactions,
		MusicURL:     req.Music,
		NoMusic:      req.NoMusic,
		Bleeps:       req.Bleeps,
		Config:       cfg,
		Assets:       p.assets,
	})

	p.logger.Info("timeline planned",
		"video_clips", len(tl.VideoClips),
		"overlays", len(tl.Overlays),
		"sfx", len(tl.SFX),
		"total_duration", tl.TotalDuration.Seconds(),
	)
	return tl, nil
}
