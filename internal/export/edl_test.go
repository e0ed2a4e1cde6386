package export

import (
	"strings"
	"testing"

	"github.com/heimdex/reelcut/internal/mediatime"
	"github.com/heimdex/reelcut/internal/timeline"
)

func sec(s float64) mediatime.Time { return mediatime.FromSeconds(s) }

func videoClip(url string, srcStart, at, dur float64) timeline.Clip {
	return timeline.NewClip(url, timeline.MediaVideo, mediatime.NewRange(sec(srcStart), sec(dur)), sec(at))
}

func TestGenerateEDL_SingleClip(t *testing.T) {
	tl := timeline.Empty()
	tl.VideoClips = []timeline.Clip{videoClip("file:///media/intro.mp4", 0, 0, 2)}
	tl.TotalDuration = sec(2)

	edl := GenerateEDL(tl, "Project One", 30.0)

	if !strings.Contains(edl, "TITLE: Project One") {
		t.Fatalf("missing title in EDL: %q", edl)
	}
	if !strings.Contains(edl, "FCM: NON-DROP FRAME") {
		t.Fatalf("missing non-drop-frame FCM: %q", edl)
	}
	if !strings.Contains(edl, "001  AX       V     C        00:00:00:00 00:00:02:00 00:00:00:00 00:00:02:00") {
		t.Fatalf("missing event line: %q", edl)
	}
	if !strings.Contains(edl, "* FROM CLIP NAME:  intro.mp4") {
		t.Fatalf("missing clip name comment: %q", edl)
	}
	if !strings.Contains(edl, "* MEDIA PATH:  file:///media/intro.mp4") {
		t.Fatalf("missing media path comment: %q", edl)
	}
}

func TestGenerateEDL_ReactionReel(t *testing.T) {
	tl := timeline.Empty()
	// Listed out of order to check events are sorted by record time.
	tl.VideoClips = []timeline.Clip{
		videoClip("/main.mov", 8, 14, 8),
		videoClip("/main.mov", 0, 0, 8),
		videoClip("/a.mov", 0, 8, 6),
	}
	tl.Transitions = []timeline.Transition{
		{Kind: timeline.TransitionCrossDissolve, Range: mediatime.NewRange(sec(7.5), sec(0.5))},
	}
	tl.TotalDuration = sec(22)

	edl := GenerateEDL(tl, "Reel", 30.0)

	for _, want := range []string{
		"001  AX       V     C        00:00:00:00 00:00:08:00 00:00:00:00 00:00:08:00",
		"* DISSOLVE:  00:00:07:15 00:00:08:00",
		"002  AX       V     C        00:00:00:00 00:00:06:00 00:00:08:00 00:00:14:00",
		"003  AX       V     C        00:00:08:00 00:00:16:00 00:00:14:00 00:00:22:00",
	} {
		if !strings.Contains(edl, want) {
			t.Fatalf("EDL missing %q:\n%s", want, edl)
		}
	}
	if strings.Index(edl, "001") > strings.Index(edl, "002") {
		t.Fatal("events out of order")
	}
	if strings.Count(edl, "DISSOLVE") != 1 {
		t.Fatalf("dissolve should be noted once:\n%s", edl)
	}
}

func TestGenerateEDL_DropFrame(t *testing.T) {
	tl := timeline.Empty()
	// 1800 frames at 29.97 is 60.06s of real time.
	tl.VideoClips = []timeline.Clip{videoClip("/x.mp4", 0, 0, 60.06)}
	edl := GenerateEDL(tl, "Drop", 29.97)

	if !strings.Contains(edl, "FCM: DROP FRAME") {
		t.Fatalf("expected drop frame FCM, got: %q", edl)
	}
	want := "001  AX       V     C        00:00:00;00 00:01:00;02 00:00:00;00 00:01:00;02"
	if !strings.Contains(edl, want) {
		t.Fatalf("EDL missing %q:\n%s", want, edl)
	}
}

func TestGenerateEDL_EmptyTimeline(t *testing.T) {
	edl := GenerateEDL(timeline.Empty(), "Nothing", 30)
	if strings.Contains(edl, "001") {
		t.Fatalf("empty timeline should have no events: %q", edl)
	}
	if !strings.HasPrefix(GenerateEDL(nil, "Nil", 30), "TITLE: Nil") {
		t.Fatal("nil timeline should still produce a header")
	}
}

func TestToTimecode(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		fps     int
		drop    bool
		want    string
	}{
		{name: "zero", seconds: 0, fps: 30, want: "00:00:00:00"},
		{name: "one second", seconds: 1, fps: 30, want: "00:00:01:00"},
		{name: "fractional second", seconds: 0.5, fps: 30, want: "00:00:00:15"},
		{name: "one minute", seconds: 60, fps: 30, want: "00:01:00:00"},
		{name: "one hour", seconds: 3600, fps: 30, want: "01:00:00:00"},
		{name: "25 fps", seconds: 2.04, fps: 25, want: "00:00:02:01"},
		{name: "drop zero", seconds: 0, fps: 30, drop: true, want: "00:00:00;00"},
		{name: "drop last frame of minute", seconds: 1799 * 1.001 / 30, fps: 30, drop: true, want: "00:00:59;29"},
		{name: "drop skips two labels", seconds: 1800 * 1.001 / 30, fps: 30, drop: true, want: "00:01:00;02"},
		{name: "drop tenth minute keeps labels", seconds: 17982 * 1.001 / 30, fps: 30, drop: true, want: "00:10:00;00"},
		{name: "drop one hour", seconds: 107892 * 1.001 / 30, fps: 30, drop: true, want: "01:00:00;00"},
		{name: "drop 59.94 skips four", seconds: 3600 * 1.001 / 60, fps: 60, drop: true, want: "00:01:00;04"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := toTimecode(sec(tc.seconds), tc.fps, tc.drop)
			if got != tc.want {
				t.Fatalf("toTimecode(%v, %d, %v) = %q, want %q", tc.seconds, tc.fps, tc.drop, got, tc.want)
			}
		})
	}
}
