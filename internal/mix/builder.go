package mix

import (
	"sort"

	"github.com/heimdex/reelcut/internal/mediatime"
	"github.com/heimdex/reelcut/internal/timeline"
)

const (
	DefaultDuckDeltaDB = -10.0
	DefaultFadeSeconds = 0.12
)

// Options controls music ducking.
type Options struct {
	Ducking     bool    `json:"ducking" yaml:"ducking"`
	DuckDeltaDB float64 `json:"duck_delta_db" yaml:"duck_db"`
	FadeSeconds float64 `json:"fade_seconds" yaml:"fade_seconds"`
}

// DefaultOptions ducks the music by 10 dB with 120 ms fades.
func DefaultOptions() Options {
	return Options{Ducking: true, DuckDeltaDB: DefaultDuckDeltaDB, FadeSeconds: DefaultFadeSeconds}
}

// Plan holds one envelope per audio role. SFX envelopes are in the same
// order as Timeline.SFX.
type Plan struct {
	Dialog Envelope   `json:"dialog"`
	Music  *Envelope  `json:"music,omitempty"`
	SFX    []Envelope `json:"sfx"`
}

// Build derives the envelopes for a timeline. windows are the spans occupied
// by sound effects on the output timeline; they only matter when ducking is
// enabled and a music bed is present.
func Build(tl *timeline.Timeline, windows []mediatime.Range, opts Options) Plan {
	p := Plan{Dialog: Flat(1), SFX: make([]Envelope, 0, len(tl.SFX))}

	if tl.MusicBed != nil {
		var music Envelope
		if opts.Ducking && len(windows) > 0 {
			music = DuckEnvelope(tl.MusicBed.GainDB, windows, tl.TotalDuration, opts)
		} else {
			music = FlatDB(tl.MusicBed.GainDB)
		}
		p.Music = &music
	}

	for _, sfx := range tl.SFX {
		p.SFX = append(p.SFX, FlatDB(sfx.GainDB))
	}
	return p
}

// DuckEnvelope lowers a bed at baseDB by opts.DuckDeltaDB around each window:
// a linear ramp down over FadeSeconds before the window, a hold across it and
// a ramp back up after it, all clamped to [0, total]. Windows are applied in
// start order and later segments win where they overlap earlier ones.
func DuckEnvelope(baseDB float64, windows []mediatime.Range, total mediatime.Time, opts Options) Envelope {
	base := DBToLinear(baseDB)
	ducked := DBToLinear(baseDB + opts.DuckDeltaDB)
	fade := mediatime.FromSeconds(opts.FadeSeconds)

	ordered := make([]mediatime.Range, len(windows))
	copy(ordered, windows)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start.Before(ordered[j].Start)
	})

	env := Envelope{Base: base}
	for _, w := range ordered {
		s := clamp(w.Start, total)
		e := clamp(w.End(), total)
		if e.Before(s) {
			continue
		}

		if downStart := clamp(s.Sub(fade), total); downStart.Before(s) {
			env.Ramp(mediatime.RangeFromTo(downStart, s), base, ducked)
		}
		env.Hold(mediatime.RangeFromTo(s, e), ducked)
		if upEnd := clamp(e.Add(fade), total); e.Before(upEnd) {
			env.Ramp(mediatime.RangeFromTo(e, upEnd), ducked, base)
		}
	}
	return env
}

func clamp(t, total mediatime.Time) mediatime.Time {
	if t.Before(mediatime.Zero) {
		return mediatime.Zero
	}
	if total.IsPositive() && t.After(total) {
		return total
	}
	return t
}
