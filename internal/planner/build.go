// Package planner turns one primary source and a list of reaction sources
// into an alternating Timeline: a chunk of the main clip, then a chunk of the
// next reaction in round-robin order, repeated until the main clip runs out
// or the target duration is reached.
package planner

import (
	"github.com/heimdex/reelcut/internal/mediatime"
	"github.com/heimdex/reelcut/internal/timeline"
)

// Source is a reaction clip and the name shown in its caption.
type Source struct {
	URL         string `json:"url" yaml:"url"`
	DisplayName string `json:"display_name" yaml:"name"`
	Emoji       string `json:"emoji,omitempty" yaml:"emoji,omitempty"`
}

// Assets are the bundled media the planner may fall back on. Empty fields
// mean the asset is not available.
type Assets struct {
	FallbackMusic string
	Bleep         string
}

// ProbedSource is a Source with its known duration.
type ProbedSource struct {
	Source
	Duration mediatime.Time
}

// Inputs is everything Build needs. Durations are already known.
type Inputs struct {
	MainURL      string
	MainDuration mediatime.Time
	Reactions    []ProbedSource
	MusicURL     string
	NoMusic      bool
	Bleeps       []float64
	Config       Config
	Assets       Assets
}

// Build lays out the timeline. It is pure: identical inputs give an identical
// layout (clip IDs aside). A primary source without a positive duration or
// an empty reaction list yields timeline.Empty().
func Build(in Inputs) *timeline.Timeline {
	if !in.MainDuration.IsPositive() || len(in.Reactions) == 0 {
		return timeline.Empty()
	}

	cfg := in.Config
	target := mediatime.FromSeconds(cfg.TargetDuration)
	mainChunk := mediatime.FromSeconds(cfg.MainChunkSeconds)
	reactionChunk := mediatime.FromSeconds(cfg.ReactionChunkSeconds)
	dissolve := mediatime.FromSeconds(cfg.DissolveSeconds)
	lowerThird := mediatime.FromSeconds(cfg.LowerThirdSeconds)
	lowerThirdOffset := mediatime.FromSeconds(cfg.LowerThirdOffset)

	tl := timeline.Empty()
	out := mediatime.Zero
	mainCursor := mediatime.Zero
	next := 0

	place := func(url string, src mediatime.Range) {
		tl.VideoClips = append(tl.VideoClips, timeline.NewClip(url, timeline.MediaVideo, src, out))
		tl.DialogClips = append(tl.DialogClips, timeline.NewClip(url, timeline.MediaAudio, src, out))
		end := out.Add(src.Duration)
		fade := mediatime.Min(dissolve, src.Duration)
		tl.Transitions = append(tl.Transitions, timeline.Transition{
			Kind:  timeline.TransitionCrossDissolve,
			Range: mediatime.RangeFromTo(end.Sub(fade), end),
		})
	}

	for out.Before(target) && mainCursor.Before(in.MainDuration) {
		mainTake := mediatime.Min(mainChunk, in.MainDuration.Sub(mainCursor), target.Sub(out))
		if !mainTake.IsPositive() {
			break
		}
		place(in.MainURL, mediatime.NewRange(mainCursor, mainTake))
		out = out.Add(mainTake)
		mainCursor = mainCursor.Add(mainTake)
		// A reel never ends on a reaction once the primary has run out.
		if out.Compare(target) >= 0 || mainCursor.Compare(in.MainDuration) >= 0 {
			break
		}

		reaction := in.Reactions[next]
		take := mediatime.Min(reactionChunk, reaction.Duration, target.Sub(out))
		if !take.IsPositive() {
			break
		}
		tl.Overlays = append(tl.Overlays, timeline.Overlay{
			Range:   mediatime.NewRange(out.Add(lowerThirdOffset), lowerThird),
			Payload: timeline.LowerThird{Text: reaction.DisplayName, Emoji: reaction.Emoji},
		})
		place(reaction.URL, mediatime.NewRange(mediatime.Zero, take))
		out = out.Add(take)
		next = (next + 1) % len(in.Reactions)
	}

	if len(tl.VideoClips) == 0 {
		return timeline.Empty()
	}
	tl.TotalDuration = out

	if bed := resolveMusic(in); bed != "" {
		tl.MusicBed = &timeline.AudioBed{SourceURL: bed, GainDB: cfg.MusicGainDB}
	}
	if in.Assets.Bleep != "" {
		for _, at := range in.Bleeps {
			pos := mediatime.FromSeconds(at)
			if pos.Before(mediatime.Zero) || pos.Compare(out) >= 0 {
				continue
			}
			tl.SFX = append(tl.SFX, timeline.AudioSFX{
				SourceURL:        in.Assets.Bleep,
				TimelinePosition: pos,
				GainDB:           cfg.BleepGainDB,
			})
		}
	}
	return tl
}

func resolveMusic(in Inputs) string {
	switch {
	case in.NoMusic:
		return ""
	case in.MusicURL != "":
		return in.MusicURL
	default:
		return in.Assets.FallbackMusic
	}
}
