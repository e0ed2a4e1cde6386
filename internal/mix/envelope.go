// Package mix builds gain-versus-time envelopes for the audio tracks of a
// timeline: flat gain for dialog, music and sound effects, and duck-and-restore
// shapes that lower the music bed around sound-effect windows.
package mix

import (
	"math"

	"github.com/heimdex/reelcut/internal/mediatime"
)

// DBToLinear converts decibels to a linear amplitude factor.
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// Ramp moves a parameter linearly from From to To across Range. A ramp with
// From == To holds a constant value.
type Ramp struct {
	Range mediatime.Range `json:"range"`
	From  float64         `json:"from"`
	To    float64         `json:"to"`
}

// ValueAt interpolates the ramp at t. t is assumed to lie inside the range.
func (r Ramp) ValueAt(t mediatime.Time) float64 {
	d := r.Range.Duration.Seconds()
	if d <= 0 {
		return r.To
	}
	frac := t.Sub(r.Range.Start).Seconds() / d
	frac = math.Max(0, math.Min(1, frac))
	return r.From + (r.To-r.From)*frac
}

// Envelope is a parameter track: Base everywhere, overridden by Ramps. Ramps
// are applied in order and the last one covering an instant wins, mirroring
// sequential ramp/set calls on one parameter track.
type Envelope struct {
	Base  float64 `json:"base"`
	Ramps []Ramp  `json:"ramps,omitempty"`
}

// Flat returns an envelope with a constant value.
func Flat(value float64) Envelope {
	return Envelope{Base: value}
}

// FlatDB returns a constant envelope at the given decibel gain.
func FlatDB(db float64) Envelope {
	return Flat(DBToLinear(db))
}

// Ramp appends a linear ramp.
func (e *Envelope) Ramp(r mediatime.Range, from, to float64) {
	e.Ramps = append(e.Ramps, Ramp{Range: r, From: from, To: to})
}

// Hold appends a constant segment.
func (e *Envelope) Hold(r mediatime.Range, value float64) {
	e.Ramp(r, value, value)
}

// ValueAt evaluates the envelope at t.
func (e Envelope) ValueAt(t mediatime.Time) float64 {
	for i := len(e.Ramps) - 1; i >= 0; i-- {
		if e.Ramps[i].Range.Contains(t) {
			return e.Ramps[i].ValueAt(t)
		}
	}
	return e.Base
}

// IsFlat reports whether the envelope never departs from Base.
func (e Envelope) IsFlat() bool {
	for _, r := range e.Ramps {
		if r.From != e.Base || r.To != e.Base {
			return false
		}
	}
	return true
}

// Within returns the ramps that intersect window, in application order.
func (e Envelope) Within(window mediatime.Range) []Ramp {
	var out []Ramp
	for _, r := range e.Ramps {
		if r.Range.Overlaps(window) || (r.Range.IsEmpty() && window.Contains(r.Range.Start)) {
			out = append(out, r)
		}
	}
	return out
}
