// Package compose turns a planned timeline into a render graph and drives an
// external renderer through one export at a time.
package compose

import (
	"context"
	"errors"
	"fmt"

	"github.com/heimdex/reelcut/internal/allocator"
	"github.com/heimdex/reelcut/internal/mediatime"
	"github.com/heimdex/reelcut/internal/mix"
	"github.com/heimdex/reelcut/internal/timeline"
)

var (
	errNoVideo    = errors.New("asset has no video stream")
	errNoAudio    = errors.New("asset has no audio stream")
	errNoDuration = errors.New("asset has no duration")
)

// Asset is what the loader learned about one source.
type Asset struct {
	URL      string
	Duration mediatime.Time
	HasVideo bool
	HasAudio bool
	Width    int
	Height   int
	// Preferred is the orientation stored with the source. The zero value is
	// treated as identity.
	Preferred timeline.Transform
}

// AssetLoader opens a source for reading.
type AssetLoader interface {
	Load(ctx context.Context, url string) (Asset, error)
}

// Output describes the file the renderer writes.
type Output struct {
	Path      string `json:"path"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	FrameRate int    `json:"frame_rate"`
}

const (
	DefaultWidth     = 1080
	DefaultHeight    = 1920
	DefaultFrameRate = 30
)

// Insertion places a slice of a source at a position on the output timeline.
type Insertion struct {
	ClipID      string             `json:"clip_id,omitempty"`
	SourceURL   string             `json:"source_url"`
	SourceRange mediatime.Range    `json:"source_range"`
	At          mediatime.Time     `json:"at"`
	Transform   timeline.Transform `json:"transform"`
}

// TimelineRange is where the insertion sits on the output timeline.
func (i Insertion) TimelineRange() mediatime.Range {
	return mediatime.Range{Start: i.At, Duration: i.SourceRange.Duration}
}

// VideoTrack is one physical picture layer. Opacity is 0 outside its clips.
type VideoTrack struct {
	Index      int          `json:"index"`
	Insertions []Insertion  `json:"insertions"`
	Opacity    mix.Envelope `json:"opacity"`
}

type AudioRole string

const (
	RoleDialog AudioRole = "dialog"
	RoleMusic  AudioRole = "music"
	RoleSFX    AudioRole = "sfx"
)

type AudioTrack struct {
	Role       AudioRole    `json:"role"`
	Insertions []Insertion  `json:"insertions"`
	Volume     mix.Envelope `json:"volume"`
}

// Graph is the complete description handed to a Renderer. Video tracks are
// ordered bottom to top.
type Graph struct {
	Duration    mediatime.Time     `json:"duration"`
	VideoTracks []VideoTrack       `json:"video_tracks"`
	AudioTracks []AudioTrack       `json:"audio_tracks"`
	Overlays    []timeline.Overlay `json:"overlays"`
	Output      Output             `json:"output"`
}

// GraphOptions are the knobs of Assemble.
type GraphOptions struct {
	Output          Output
	DissolveSeconds float64
	Mix             mix.Options
}

// Assemble builds the render graph from a timeline, its allocation and the
// loaded assets keyed by URL. Video clips are inserted into their allocated
// track in timeline order. A video clip whose asset lacks a picture stream is
// fatal; a dialog clip whose asset lacks sound is left out.
func Assemble(tl *timeline.Timeline, alloc allocator.Result, assets map[string]Asset, opts GraphOptions) (*Graph, error) {
	g := &Graph{
		Duration:    tl.TotalDuration,
		VideoTracks: make([]VideoTrack, alloc.TrackCount),
		Overlays:    tl.Overlays,
		Output:      opts.Output,
	}

	perTrack := make([][]timeline.Clip, alloc.TrackCount)
	for _, a := range alloc.Allocations {
		asset, err := lookup(assets, a.Clip.SourceURL)
		if err != nil {
			return nil, err
		}
		if !asset.HasVideo {
			return nil, &AssetLoadError{URL: asset.URL, Err: errNoVideo}
		}
		track := &g.VideoTracks[a.TrackIndex]
		track.Index = a.TrackIndex
		track.Insertions = append(track.Insertions, insertionFor(a.Clip, asset))
		perTrack[a.TrackIndex] = append(perTrack[a.TrackIndex], a.Clip)
	}
	dissolve := mediatime.FromSeconds(opts.DissolveSeconds)
	for i := range g.VideoTracks {
		g.VideoTracks[i].Index = i
		g.VideoTracks[i].Opacity = OpacityEnvelope(perTrack[i], dissolve)
	}

	dialog := AudioTrack{Role: RoleDialog}
	for _, c := range tl.DialogClips {
		asset, err := lookup(assets, c.SourceURL)
		if err != nil {
			return nil, err
		}
		if !asset.HasAudio {
			continue
		}
		dialog.Insertions = append(dialog.Insertions, insertionFor(c, asset))
	}

	var windows []mediatime.Range
	var sfxEvents []int
	sfxTracks := make([]AudioTrack, 0, len(tl.SFX))
	for i, sfx := range tl.SFX {
		asset, err := lookup(assets, sfx.SourceURL)
		if err != nil {
			return nil, err
		}
		if !asset.HasAudio {
			return nil, &AssetLoadError{URL: asset.URL, Err: errNoAudio}
		}
		if !asset.Duration.IsPositive() {
			return nil, &AssetLoadError{URL: asset.URL, Err: errNoDuration}
		}
		d := mediatime.Min(asset.Duration, tl.TotalDuration.Sub(sfx.TimelinePosition))
		if !d.IsPositive() {
			continue
		}
		ins := Insertion{
			SourceURL:   asset.URL,
			SourceRange: mediatime.NewRange(mediatime.Zero, d),
			At:          sfx.TimelinePosition,
			Transform:   timeline.Identity,
		}
		windows = append(windows, ins.TimelineRange())
		sfxEvents = append(sfxEvents, i)
		sfxTracks = append(sfxTracks, AudioTrack{Role: RoleSFX, Insertions: []Insertion{ins}})
	}

	plan := mix.Build(tl, windows, opts.Mix)
	dialog.Volume = plan.Dialog
	g.AudioTracks = append(g.AudioTracks, dialog)

	if tl.MusicBed != nil {
		asset, err := lookup(assets, tl.MusicBed.SourceURL)
		if err != nil {
			return nil, err
		}
		if !asset.HasAudio {
			return nil, &AssetLoadError{URL: asset.URL, Err: errNoAudio}
		}
		if !asset.Duration.IsPositive() {
			return nil, &AssetLoadError{URL: asset.URL, Err: errNoDuration}
		}
		g.AudioTracks = append(g.AudioTracks, AudioTrack{
			Role:       RoleMusic,
			Insertions: loop(asset, tl.TotalDuration),
			Volume:     *plan.Music,
		})
	}

	for i, event := range sfxEvents {
		sfxTracks[i].Volume = plan.SFX[event]
	}
	g.AudioTracks = append(g.AudioTracks, sfxTracks...)

	return g, nil
}

func lookup(assets map[string]Asset, url string) (Asset, error) {
	a, ok := assets[url]
	if !ok {
		return Asset{}, &GraphError{Reason: fmt.Sprintf("asset %s was not loaded", url)}
	}
	return a, nil
}

func insertionFor(c timeline.Clip, asset Asset) Insertion {
	preferred := asset.Preferred
	if preferred == (timeline.Transform{}) {
		preferred = timeline.Identity
	}
	return Insertion{
		ClipID:      c.ID,
		SourceURL:   c.SourceURL,
		SourceRange: c.SourceRange,
		At:          c.TimelinePosition,
		Transform:   preferred.Concat(c.EffectiveTransform()),
	}
}

// loop repeats asset back to back until total is filled, truncating the last
// repetition.
func loop(asset Asset, total mediatime.Time) []Insertion {
	var out []Insertion
	at := mediatime.Zero
	for at.Before(total) {
		d := mediatime.Min(asset.Duration, total.Sub(at))
		out = append(out, Insertion{
			SourceURL:   asset.URL,
			SourceRange: mediatime.NewRange(mediatime.Zero, d),
			At:          at,
			Transform:   timeline.Identity,
		})
		at = at.Add(d)
	}
	return out
}

// OpacityEnvelope builds the opacity track for the clips sharing one physical
// track: 0 outside any clip, and for each clip a ramp 0->1 over
// min(dissolve, clip duration) at its start, a hold at 1, and a ramp 1->0 over
// the same window at its end.
func OpacityEnvelope(clips []timeline.Clip, dissolve mediatime.Time) mix.Envelope {
	env := mix.Flat(0)
	for _, c := range clips {
		r := c.TimelineRange()
		w := mediatime.Min(dissolve, r.Duration)
		start, end := r.Start, r.End()

		env.Ramp(mediatime.NewRange(start, w), 0, 1)
		if holdStart, holdEnd := start.Add(w), end.Sub(w); holdStart.Before(holdEnd) {
			env.Hold(mediatime.RangeFromTo(holdStart, holdEnd), 1)
		}
		env.Ramp(mediatime.RangeFromTo(end.Sub(w), end), 1, 0)
	}
	return env
}
