package render

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/heimdex/reelcut/internal/compose"
	"github.com/heimdex/reelcut/internal/mediatime"
	"github.com/heimdex/reelcut/internal/mix"
	"github.com/heimdex/reelcut/internal/timeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sec(s float64) mediatime.Time { return mediatime.FromSeconds(s) }

const probeJSON = `{
  "streams": [
    {"codec_type": "video", "width": 1920, "height": 1080, "duration": "12.5",
     "side_data_list": [{"rotation": -90}]},
    {"codec_type": "audio", "duration": "12.48"}
  ],
  "format": {"duration": "12.500000"}
}`

func TestParseProbe(t *testing.T) {
	a, err := parseProbe("file:///clips/a.mov", []byte(probeJSON))
	if err != nil {
		t.Fatalf("parseProbe() error = %v", err)
	}
	if !a.HasVideo || !a.HasAudio {
		t.Errorf("streams = video %v audio %v, want both", a.HasVideo, a.HasAudio)
	}
	if a.Width != 1920 || a.Height != 1080 {
		t.Errorf("size = %dx%d", a.Width, a.Height)
	}
	if got := a.Duration.Seconds(); got != 12.5 {
		t.Errorf("duration = %v, want 12.5", got)
	}
	if got := a.Preferred.RotationDegrees(); got != 90 {
		t.Errorf("rotation = %v, want 90", got)
	}
}

func TestParseProbe_DurationFallsBackToStream(t *testing.T) {
	a, err := parseProbe("x", []byte(`{"streams":[{"codec_type":"audio","duration":"3.25"}],"format":{}}`))
	if err != nil {
		t.Fatalf("parseProbe() error = %v", err)
	}
	if a.HasVideo || !a.HasAudio || a.Duration.Seconds() != 3.25 {
		t.Fatalf("asset = %+v", a)
	}
	if a.Preferred != timeline.Identity {
		t.Fatalf("unrotated asset should carry identity, got %+v", a.Preferred)
	}
}

func TestParseProbe_InvalidJSON(t *testing.T) {
	if _, err := parseProbe("x", []byte("not json")); err == nil {
		t.Fatal("expected error")
	}
}

func TestStreamRotation(t *testing.T) {
	tests := []struct {
		name string
		tags map[string]string
		side []sideData
		want float64
	}{
		{"none", nil, nil, 0},
		{"rotate tag", map[string]string{"rotate": "90"}, nil, 90},
		{"negative tag", map[string]string{"rotate": "-90"}, nil, 270},
		{"display matrix", nil, []sideData{{Rotation: -90}}, 90},
		{"display matrix ccw", nil, []sideData{{Rotation: 90}}, 270},
		{"tag wins", map[string]string{"rotate": "180"}, []sideData{{Rotation: 90}}, 180},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := streamRotation(tt.tags, tt.side); got != tt.want {
				t.Errorf("streamRotation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func newTestProber(t *testing.T, run func(ctx context.Context, bin string, args ...string) ([]byte, error)) *Prober {
	t.Helper()
	p, err := NewProber("", 8, testLogger())
	if err != nil {
		t.Fatalf("NewProber() error = %v", err)
	}
	p.resolve = func(string, string) (string, error) { return "ffprobe", nil }
	p.run = run
	return p
}

func TestProber_CachesByURL(t *testing.T) {
	src := filepath.Join(t.TempDir(), "a.mov")
	if err := os.WriteFile(src, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	calls := 0
	p := newTestProber(t, func(_ context.Context, bin string, args ...string) ([]byte, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		if args[len(args)-1] != src {
			t.Errorf("probed %q, want plain path %q", args[len(args)-1], src)
		}
		return []byte(probeJSON), nil
	})

	url := "file://" + src
	for i := 0; i < 3; i++ {
		d, err := p.Duration(context.Background(), url)
		if err != nil {
			t.Fatalf("Duration() error = %v", err)
		}
		if d.Seconds() != 12.5 {
			t.Fatalf("Duration() = %v", d)
		}
	}
	if calls != 1 {
		t.Fatalf("ffprobe ran %d times, want 1", calls)
	}

	p.Forget(url)
	if _, err := p.Load(context.Background(), url); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("ffprobe ran %d times after Forget, want 2", calls)
	}
}

func TestProber_MissingFile(t *testing.T) {
	p := newTestProber(t, func(context.Context, string, ...string) ([]byte, error) {
		t.Fatal("ffprobe should not run for a missing file")
		return nil, nil
	})
	if _, err := p.Load(context.Background(), filepath.Join(t.TempDir(), "gone.mov")); err == nil {
		t.Fatal("expected error")
	}
}

func TestProber_ProbeFailure(t *testing.T) {
	src := filepath.Join(t.TempDir(), "a.mov")
	os.WriteFile(src, []byte("x"), 0644)
	p := newTestProber(t, func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1: moov atom not found")
	})
	_, err := p.Load(context.Background(), src)
	if err == nil || !strings.Contains(err.Error(), "moov atom") {
		t.Fatalf("Load() error = %v", err)
	}
	if p.cache.Len() != 0 {
		t.Fatal("failed probe must not be cached")
	}
}

func TestLimitedWriter_KeepsOnlyTail(t *testing.T) {
	lw := &limitedWriter{limit: 10}
	lw.Write([]byte("hello"))
	if lw.String() != "hello" {
		t.Errorf("after short write got %q", lw.String())
	}
	n, err := lw.Write([]byte(" world of test data"))
	if err != nil || n != 19 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if got := lw.String(); got != " test data" {
		t.Errorf("after overflow got %q, want %q", got, " test data")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("0123456789", 4); got != "...6789" {
		t.Errorf("truncate() = %q", got)
	}
}

func TestSourcePath(t *testing.T) {
	tests := map[string]string{
		"file:///a/b.mov":           "/a/b.mov",
		"/a/b.mov":                  "/a/b.mov",
		"https://cdn.example/x.mp4": "https://cdn.example/x.mp4",
	}
	for in, want := range tests {
		if got := sourcePath(in); got != want {
			t.Errorf("sourcePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReadProgress(t *testing.T) {
	stream := strings.Join([]string{
		"frame=10",
		"out_time_us=1000000",
		"progress=continue",
		"out_time_ms=2000000",
		"out_time_us=N/A",
		"garbage",
		"out_time_us=9000000",
		"progress=end",
	}, "\n")

	var got []float64
	readProgress(strings.NewReader(stream), 4, func(f float64) { got = append(got, f) })

	want := []float64{0.25, 0.5, 1, 1}
	if len(got) != len(want) {
		t.Fatalf("reports = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("reports = %v, want %v", got, want)
		}
	}
}

func TestVolumeExpr(t *testing.T) {
	if got := VolumeExpr(mix.Flat(0.5)); got != "0.5" {
		t.Errorf("flat expr = %q", got)
	}

	env := mix.Flat(1)
	env.Ramp(mediatime.NewRange(sec(1), sec(1)), 1, 0)
	env.Hold(mediatime.NewRange(sec(2), sec(2)), 0)
	want := "if(between(t,2,4),0,if(between(t,1,2),1+(-1)*(t-1)/1,1))"
	if got := VolumeExpr(env); got != want {
		t.Errorf("VolumeExpr() = %q, want %q", got, want)
	}
}

func testGraph(path string) *compose.Graph {
	ins := func(url string, at, dur float64) compose.Insertion {
		return compose.Insertion{
			SourceURL:   url,
			SourceRange: mediatime.NewRange(sec(2), sec(dur)),
			At:          sec(at),
			Transform:   timeline.Identity,
		}
	}
	main := ins("file:///src/main.mov", 0, 4)
	main.Transform = timeline.Rotation(90)

	opacity := mix.Flat(0)
	opacity.Ramp(mediatime.NewRange(sec(0), sec(0.5)), 0, 1)
	opacity.Hold(mediatime.NewRange(sec(0.5), sec(3)), 1)
	opacity.Ramp(mediatime.NewRange(sec(3.5), sec(0.5)), 1, 0)

	return &compose.Graph{
		Duration: sec(4),
		VideoTracks: []compose.VideoTrack{
			{Index: 0, Insertions: []compose.Insertion{main}, Opacity: opacity},
		},
		AudioTracks: []compose.AudioTrack{
			{Role: compose.RoleDialog, Insertions: []compose.Insertion{ins("file:///src/main.mov", 0, 4)}, Volume: mix.Flat(1)},
			{Role: compose.RoleSFX, Insertions: []compose.Insertion{ins("/assets/bleep.wav", 1.5, 0.5)}, Volume: mix.Flat(1)},
		},
		Overlays: []timeline.Overlay{{
			Range:   mediatime.NewRange(sec(1), sec(3)),
			Payload: timeline.LowerThird{Text: "it's 100%: wow", Emoji: "😂"},
		}},
		Output: compose.Output{Path: path, Width: 1080, Height: 1920, FrameRate: 30},
	}
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestBuildArgs(t *testing.T) {
	args, err := BuildArgs(testGraph("/out/reel.mp4"))
	if err != nil {
		t.Fatalf("BuildArgs() error = %v", err)
	}
	if n := countInputs(args); n != 3 {
		t.Fatalf("inputs = %d, want 3", n)
	}
	if args[len(args)-1] != "/out/reel.mp4" {
		t.Errorf("last arg = %q, want output path", args[len(args)-1])
	}
	if got := argAfter(args, "-t"); got != "4" {
		t.Errorf("-t = %q, want 4", got)
	}
	if got := argAfter(args, "-progress"); got != "pipe:1" {
		t.Errorf("-progress = %q", got)
	}

	fc := argAfter(args, "-filter_complex")
	for _, want := range []string{
		"color=c=black:s=1080x1920:r=30:d=4[base]",
		"[0:v]trim=start=2:duration=4,setpts=PTS-STARTPTS+0/TB,transpose=1,",
		"fade=t=in:st=0:d=0.5:alpha=1",
		"fade=t=out:st=3.5:d=0.5:alpha=1",
		"[base][v0]overlay=eof_action=pass:enable='between(t,0,4)'[o0]",
		`drawtext=text='😂 it’s 100\%\: wow'`,
		"[2:a]atrim=start=2:duration=0.5,asetpts=PTS-STARTPTS,adelay=1500:all=1,volume='1':eval=frame[a1]",
		"[a0][a1]amix=inputs=2:normalize=0",
		"format=yuv420p[vout]",
	} {
		if !strings.Contains(fc, want) {
			t.Errorf("filter graph missing %q\n%s", want, fc)
		}
	}
}

func TestBuildArgs_NoAudio(t *testing.T) {
	g := testGraph("/out/reel.mp4")
	g.AudioTracks = nil
	args, err := BuildArgs(g)
	if err != nil {
		t.Fatal(err)
	}
	if argAfter(args, "-map") != "[vout]" || !containsArg(args, "-an") {
		t.Fatalf("silent graph args = %v", args)
	}
	if strings.Contains(argAfter(args, "-filter_complex"), "amix") {
		t.Fatal("silent graph should not mix")
	}
}

func TestBuildArgs_Rejects(t *testing.T) {
	if _, err := BuildArgs(nil); err == nil {
		t.Error("nil graph should fail")
	}
	g := testGraph("/out/reel.mp4")
	g.Duration = mediatime.Zero
	if _, err := BuildArgs(g); err == nil {
		t.Error("zero duration should fail")
	}
}

func containsArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func TestRotationFilter(t *testing.T) {
	tests := map[float64]string{
		0:   "",
		90:  "transpose=1",
		180: "hflip,vflip",
		270: "transpose=2",
		45:  "rotate=45*PI/180",
	}
	for deg, want := range tests {
		if got := rotationFilter(deg); got != want {
			t.Errorf("rotationFilter(%v) = %q, want %q", deg, got, want)
		}
	}
}

func TestFFmpegRenderer_Validate(t *testing.T) {
	dir := t.TempDir()
	r := NewFFmpegRenderer("", testLogger())
	r.resolve = func(string, string) (string, error) { return "ffmpeg", nil }

	good := compose.Output{Path: filepath.Join(dir, "reel.mp4"), Width: 1080, Height: 1920, FrameRate: 30}
	if err := r.Validate(good); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*compose.Output)
	}{
		{"empty path", func(o *compose.Output) { o.Path = "" }},
		{"missing dir", func(o *compose.Output) { o.Path = filepath.Join(dir, "nope", "reel.mp4") }},
		{"odd width", func(o *compose.Output) { o.Width = 1081 }},
		{"zero height", func(o *compose.Output) { o.Height = 0 }},
		{"zero fps", func(o *compose.Output) { o.FrameRate = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := good
			tt.mutate(&out)
			if err := r.Validate(out); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	r.resolve = func(string, string) (string, error) { return "", errors.New("no ffmpeg binary found on PATH") }
	if err := r.Validate(good); err == nil {
		t.Fatal("missing ffmpeg should fail validation")
	}
}

// writeScript installs a fake ffmpeg that runs body with the output path in
// $out.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nfor a; do out=$a; done\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFFmpegRenderer_Render(t *testing.T) {
	bin := writeScript(t, `echo out_time_us=1000000
echo progress=continue
echo out_time_us=3000000
echo progress=end
: > "$out"`)
	out := filepath.Join(t.TempDir(), "reel.mp4")
	r := NewFFmpegRenderer(bin, testLogger())

	var got []float64
	if err := r.Render(context.Background(), testGraph(out), func(f float64) { got = append(got, f) }); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(got) != 3 || got[0] != 0.25 || got[1] != 0.75 || got[2] != 1 {
		t.Fatalf("progress = %v", got)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output not written: %v", err)
	}
}

func TestFFmpegRenderer_RenderFailureCarriesDiagnostic(t *testing.T) {
	bin := writeScript(t, `echo "Invalid data found when processing input" >&2
exit 1`)
	r := NewFFmpegRenderer(bin, testLogger())

	err := r.Render(context.Background(), testGraph(filepath.Join(t.TempDir(), "reel.mp4")), nil)
	var renderErr *compose.RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("Render() error = %v, want RenderError", err)
	}
	if !strings.Contains(renderErr.Diagnostic, "Invalid data") {
		t.Fatalf("diagnostic = %q", renderErr.Diagnostic)
	}
}

func TestFFmpegRenderer_RenderCancelled(t *testing.T) {
	bin := writeScript(t, `exec sleep 30`)
	r := NewFFmpegRenderer(bin, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := r.Render(ctx, testGraph(filepath.Join(t.TempDir(), "reel.mp4")), nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Render() error = %v, want context deadline", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Fatal("cancelled render did not stop promptly")
	}
}
