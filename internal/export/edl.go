// Package export holds the interchange side of a planned reel: CMX3600-style
// EDLs for editors that want to finish the cut themselves, and the naming and
// directory checks shared by every writer of output files.
package export

import (
	"fmt"
	"math"
	"path"
	"sort"
	"strings"

	"github.com/heimdex/reelcut/internal/mediatime"
	"github.com/heimdex/reelcut/internal/timeline"
)

// GenerateEDL lists the timeline's video clips as cut events in timeline
// order. Record times come from each clip's own position, so gaps and
// dissolve overlaps survive the round trip. Dissolves are noted as comments
// on the outgoing event.
func GenerateEDL(tl *timeline.Timeline, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	drop := isDropFrameRate(frameRate)
	tc := func(t mediatime.Time) string { return toTimecode(t, fps, drop) }

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if drop {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")
	if tl == nil {
		return strings.Join(append(lines, ""), "\n")
	}

	clips := append([]timeline.Clip(nil), tl.VideoClips...)
	sort.SliceStable(clips, func(i, j int) bool {
		return clips[i].TimelinePosition.Before(clips[j].TimelinePosition)
	})

	for i, clip := range clips {
		src := clip.SourceRange
		rec := clip.TimelineRange()
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V",
				tc(src.Start), tc(src.End()), tc(rec.Start), tc(rec.End())),
			fmt.Sprintf("* FROM CLIP NAME:  %s", clipName(clip.SourceURL)),
			fmt.Sprintf("* MEDIA PATH:  %s", clip.SourceURL),
		)
		for _, tr := range tl.Transitions {
			if tr.Range.End().Equal(rec.End()) && !tr.Range.IsEmpty() {
				lines = append(lines, fmt.Sprintf("* DISSOLVE:  %s %s",
					tc(tr.Range.Start), tc(tr.Range.End())))
			}
		}
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func clipName(url string) string {
	name := path.Base(strings.TrimPrefix(url, "file://"))
	if name == "." || name == "/" {
		return url
	}
	return name
}

func isDropFrameRate(frameRate float64) bool {
	return math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01
}

// toTimecode labels t as HH:MM:SS:FF at the nominal rate fps. Drop-frame
// timecode counts real frames at fps*1000/1001, skips fps/15 frame labels at
// the start of every minute except each tenth, and separates frames with ';'.
func toTimecode(t mediatime.Time, fps int, drop bool) string {
	rate := float64(fps)
	if drop {
		rate = rate * 1000 / 1001
	}
	totalFrames := int(math.Round(t.Seconds() * rate))
	if totalFrames < 0 {
		totalFrames = 0
	}

	sep := ":"
	if drop {
		sep = ";"
		skip := fps / 15
		perMinute := fps*60 - skip
		perTenMinutes := fps*600 - 9*skip
		tens, rem := totalFrames/perTenMinutes, totalFrames%perTenMinutes
		totalFrames += 9 * skip * tens
		if rem > skip {
			totalFrames += skip * ((rem - skip) / perMinute)
		}
	}

	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d%s%02d", hours, minutes, seconds, sep, frames)
}
