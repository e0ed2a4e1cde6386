// Package timeline defines the value types of a planned edit: clips sliced
// from source media, transitions, caption overlays, a music bed and one-shot
// sound effects. A Timeline is built once by the planner and treated as
// immutable by everything downstream.
package timeline

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/heimdex/reelcut/internal/mediatime"
)

// MediaKind distinguishes picture clips from sound clips.
type MediaKind int

const (
	MediaVideo MediaKind = iota
	MediaAudio
)

func (k MediaKind) String() string {
	switch k {
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	default:
		return fmt.Sprintf("MediaKind(%d)", int(k))
	}
}

func (k MediaKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *MediaKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "video":
		*k = MediaVideo
	case "audio":
		*k = MediaAudio
	default:
		return fmt.Errorf("unknown media kind %q", string(b))
	}
	return nil
}

// Transform is a 2D affine transform in the row-vector convention:
// [x' y'] = [x*A + y*C + Tx, x*B + y*D + Ty].
type Transform struct {
	A  float64 `json:"a"`
	B  float64 `json:"b"`
	C  float64 `json:"c"`
	D  float64 `json:"d"`
	Tx float64 `json:"tx"`
	Ty float64 `json:"ty"`
}

// Identity is the transform that leaves every point in place.
var Identity = Transform{A: 1, D: 1}

// Rotation returns a transform rotating by the given angle in degrees.
func Rotation(degrees float64) Transform {
	rad := degrees * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return Transform{A: round9(cos), B: round9(sin), C: round9(-sin), D: round9(cos)}
}

// Scale returns a transform scaling by sx, sy.
func Scale(sx, sy float64) Transform {
	return Transform{A: sx, D: sy}
}

// Concat returns the transform that applies t first and then u.
func (t Transform) Concat(u Transform) Transform {
	return Transform{
		A:  t.A*u.A + t.B*u.C,
		B:  t.A*u.B + t.B*u.D,
		C:  t.C*u.A + t.D*u.C,
		D:  t.C*u.B + t.D*u.D,
		Tx: t.Tx*u.A + t.Ty*u.C + u.Tx,
		Ty: t.Tx*u.B + t.Ty*u.D + u.Ty,
	}
}

// RotationDegrees returns the rotation component normalised to [0, 360).
func (t Transform) RotationDegrees() float64 {
	deg := math.Atan2(t.B, t.A) * 180 / math.Pi
	deg = math.Round(deg*1e6) / 1e6
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg -= 360
	}
	return deg
}

func round9(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}

// Clip is a slice of a source asset placed on the output timeline.
type Clip struct {
	ID               string          `json:"id"`
	SourceURL        string          `json:"source_url"`
	Kind             MediaKind       `json:"kind"`
	SourceRange      mediatime.Range `json:"source_range"`
	TimelinePosition mediatime.Time  `json:"timeline_position"`
	Transform        *Transform      `json:"transform,omitempty"`
}

// NewClip creates a clip with a fresh stable identity.
func NewClip(sourceURL string, kind MediaKind, sourceRange mediatime.Range, at mediatime.Time) Clip {
	return Clip{
		ID:               uuid.NewString(),
		SourceURL:        sourceURL,
		Kind:             kind,
		SourceRange:      sourceRange,
		TimelinePosition: at,
	}
}

// TimelineRange is where the clip sits on the output timeline.
func (c Clip) TimelineRange() mediatime.Range {
	return mediatime.Range{Start: c.TimelinePosition, Duration: c.SourceRange.Duration}
}

// WithTransform returns a copy of c carrying the given transform. Transform is
// the only clip field that may change after construction.
func (c Clip) WithTransform(t Transform) Clip {
	c.Transform = &t
	return c
}

// EffectiveTransform returns the clip transform, or Identity when none is set.
func (c Clip) EffectiveTransform() Transform {
	if c.Transform == nil {
		return Identity
	}
	return *c.Transform
}
