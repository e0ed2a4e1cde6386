package timeline

import (
	"encoding/json"
	"fmt"

	"github.com/heimdex/reelcut/internal/mediatime"
)

// TransitionKind names a transition style.
type TransitionKind string

const TransitionCrossDissolve TransitionKind = "crossDissolve"

// Transition marks where a dissolve is intended. It is advisory: the actual
// fade is realised by per-track opacity envelopes when the graph is composed.
type Transition struct {
	Kind  TransitionKind  `json:"kind"`
	Range mediatime.Range `json:"range"`
}

// OverlayPayload is the content drawn by an overlay. New overlay kinds
// implement it without changing the Timeline shape.
type OverlayPayload interface {
	OverlayKind() string
}

const OverlayKindLowerThird = "lowerThird"

// LowerThird is a caption shown in the lower portion of the frame.
type LowerThird struct {
	Text  string `json:"text"`
	Emoji string `json:"emoji,omitempty"`
}

func (LowerThird) OverlayKind() string { return OverlayKindLowerThird }

// Caption joins emoji and text the way the lower-third is rendered.
func (l LowerThird) Caption() string {
	if l.Emoji == "" {
		return l.Text
	}
	return l.Emoji + " " + l.Text
}

// Overlay is a timed graphic drawn above the video tracks.
type Overlay struct {
	Range   mediatime.Range
	Payload OverlayPayload
}

type overlayJSON struct {
	Kind    string          `json:"kind"`
	Range   mediatime.Range `json:"range"`
	Payload json.RawMessage `json:"payload"`
}

func (o Overlay) MarshalJSON() ([]byte, error) {
	if o.Payload == nil {
		return nil, fmt.Errorf("overlay has no payload")
	}
	payload, err := json.Marshal(o.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(overlayJSON{Kind: o.Payload.OverlayKind(), Range: o.Range, Payload: payload})
}

func (o *Overlay) UnmarshalJSON(b []byte) error {
	var raw overlayJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case OverlayKindLowerThird:
		var lt LowerThird
		if err := json.Unmarshal(raw.Payload, &lt); err != nil {
			return fmt.Errorf("invalid lowerThird payload: %w", err)
		}
		o.Payload = lt
	default:
		return fmt.Errorf("unknown overlay kind %q", raw.Kind)
	}
	o.Range = raw.Range
	return nil
}

// AudioBed is background music, looped or truncated to fill the timeline.
type AudioBed struct {
	SourceURL string  `json:"source_url"`
	GainDB    float64 `json:"gain_db"`
}

// AudioSFX is a one-shot sound inserted at a timeline position.
type AudioSFX struct {
	SourceURL        string         `json:"source_url"`
	TimelinePosition mediatime.Time `json:"timeline_position"`
	GainDB           float64        `json:"gain_db"`
}

// Timeline is the aggregate produced by the planner. TotalDuration equals the
// latest clip end; the planner is the only producer and keeps it consistent.
type Timeline struct {
	VideoClips    []Clip         `json:"video_clips"`
	DialogClips   []Clip         `json:"dialog_clips"`
	Transitions   []Transition   `json:"transitions"`
	Overlays      []Overlay      `json:"overlays"`
	MusicBed      *AudioBed      `json:"music_bed,omitempty"`
	SFX           []AudioSFX     `json:"sfx"`
	TotalDuration mediatime.Time `json:"total_duration"`
}

// Empty returns the degenerate timeline: no clips and zero duration.
func Empty() *Timeline {
	return &Timeline{
		VideoClips:    []Clip{},
		DialogClips:   []Clip{},
		Transitions:   []Transition{},
		Overlays:      []Overlay{},
		SFX:           []AudioSFX{},
		TotalDuration: mediatime.Zero,
	}
}

// IsEmpty reports whether there is nothing to render.
func (t *Timeline) IsEmpty() bool {
	return t == nil || len(t.VideoClips) == 0 || !t.TotalDuration.IsPositive()
}

// ClipsEnd returns the latest timeline end over all video and dialog clips.
func (t *Timeline) ClipsEnd() mediatime.Time {
	end := mediatime.Zero
	for _, c := range t.VideoClips {
		end = mediatime.Max(end, c.TimelineRange().End())
	}
	for _, c := range t.DialogClips {
		end = mediatime.Max(end, c.TimelineRange().End())
	}
	return end
}

// Validate checks the structural invariants of a timeline.
func (t *Timeline) Validate() error {
	if t == nil {
		return fmt.Errorf("timeline is nil")
	}
	if !t.TotalDuration.Equal(t.ClipsEnd()) {
		return fmt.Errorf("total duration %s does not match clip end %s", t.TotalDuration, t.ClipsEnd())
	}
	for _, c := range t.VideoClips {
		if c.Kind != MediaVideo {
			return fmt.Errorf("clip %s in video clips has kind %s", c.ID, c.Kind)
		}
		if c.SourceRange.Duration.Value < 0 {
			return fmt.Errorf("clip %s has negative duration", c.ID)
		}
	}
	for _, c := range t.DialogClips {
		if c.Kind != MediaAudio {
			return fmt.Errorf("clip %s in dialog clips has kind %s", c.ID, c.Kind)
		}
	}
	return nil
}
