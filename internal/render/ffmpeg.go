package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/heimdex/reelcut/internal/compose"
	"github.com/heimdex/reelcut/internal/export"
	"github.com/heimdex/reelcut/internal/logging"
	"github.com/heimdex/reelcut/internal/mediatime"
	"github.com/heimdex/reelcut/internal/mix"
	"github.com/heimdex/reelcut/internal/timeline"
)

// FFmpegRenderer implements compose.Renderer by running a single ffmpeg
// process over a filter graph derived from the compose Graph.
type FFmpegRenderer struct {
	ffmpeg  string
	logger  *slog.Logger
	resolve func(preferred, fallback string) (string, error)
}

func NewFFmpegRenderer(ffmpegPath string, logger *slog.Logger) *FFmpegRenderer {
	return &FFmpegRenderer{
		ffmpeg:  ffmpegPath,
		logger:  logging.WithComponent(logger, "render"),
		resolve: resolveBinary,
	}
}

// Validate checks the output configuration and that ffmpeg is available.
func (r *FFmpegRenderer) Validate(out compose.Output) error {
	if err := export.ValidateOutputPath(out.Path); err != nil {
		return err
	}
	if out.Width <= 0 || out.Height <= 0 || out.Width%2 != 0 || out.Height%2 != 0 {
		return fmt.Errorf("output size %dx%d must be positive and even", out.Width, out.Height)
	}
	if out.FrameRate <= 0 {
		return fmt.Errorf("frame rate must be positive, got %d", out.FrameRate)
	}
	if _, err := r.resolve(r.ffmpeg, "ffmpeg"); err != nil {
		return err
	}
	return nil
}

// Render runs ffmpeg to completion, reporting progress from its -progress
// stream. A cancelled ctx kills the process and returns ctx.Err().
func (r *FFmpegRenderer) Render(ctx context.Context, g *compose.Graph, progress func(float64)) error {
	bin, err := r.resolve(r.ffmpeg, "ffmpeg")
	if err != nil {
		return err
	}
	args, err := BuildArgs(g)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("cannot attach to ffmpeg stdout: %w", err)
	}
	stderr := &limitedWriter{limit: maxStderrBytes}
	cmd.Stderr = stderr

	start := time.Now()
	r.logger.Info("executing ffmpeg",
		"inputs", countInputs(args),
		"duration_s", g.Duration.Seconds(),
		"output", logging.SanitizePath(g.Output.Path),
	)
	if err := cmd.Start(); err != nil {
		return &compose.RenderError{Err: err}
	}
	readProgress(stdout, g.Duration.Seconds(), progress)
	err = cmd.Wait()
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		r.logger.Info("ffmpeg cancelled", "duration_ms", elapsed.Milliseconds())
		return ctx.Err()
	}
	if err != nil {
		tail := strings.TrimSpace(stderr.String())
		r.logger.Warn("ffmpeg failed",
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(tail, 512),
		)
		return &compose.RenderError{Err: err, Diagnostic: truncate(tail, 2048)}
	}

	r.logger.Info("ffmpeg succeeded", "duration_ms", elapsed.Milliseconds())
	return nil
}

func countInputs(args []string) int {
	n := 0
	for _, a := range args {
		if a == "-i" {
			n++
		}
	}
	return n
}

// BuildArgs translates a graph into ffmpeg arguments. Every insertion gets
// its own input. Video tracks are overlaid bottom to top on a black canvas,
// each insertion faded by its track's opacity envelope; lower-thirds are
// drawn on top; audio insertions are trimmed, delayed into place, scaled by
// their track's volume envelope and mixed without normalisation.
func BuildArgs(g *compose.Graph) ([]string, error) {
	if g == nil || len(g.VideoTracks) == 0 {
		return nil, errors.New("graph has no video tracks")
	}
	out := g.Output
	total := g.Duration.Seconds()
	if total <= 0 {
		return nil, errors.New("graph has no duration")
	}

	var inputs, filters []string
	addInput := func(url string) int {
		inputs = append(inputs, "-i", sourcePath(url))
		return len(inputs)/2 - 1
	}

	filters = append(filters, fmt.Sprintf("color=c=black:s=%dx%d:r=%d:d=%s[base]",
		out.Width, out.Height, out.FrameRate, num(total)))
	last := "base"
	n := 0
	for _, track := range g.VideoTracks {
		for _, ins := range track.Insertions {
			idx := addInput(ins.SourceURL)
			clip := fmt.Sprintf("v%d", n)
			filters = append(filters, fmt.Sprintf("[%d:v]%s[%s]", idx, videoChain(ins, track.Opacity, out), clip))

			r := ins.TimelineRange()
			next := fmt.Sprintf("o%d", n)
			filters = append(filters, fmt.Sprintf("[%s][%s]overlay=eof_action=pass:enable='between(t,%s,%s)'[%s]",
				last, clip, num(r.Start.Seconds()), num(r.End().Seconds()), next))
			last = next
			n++
		}
	}
	for i, o := range g.Overlays {
		lt, ok := o.Payload.(timeline.LowerThird)
		if !ok {
			continue
		}
		next := fmt.Sprintf("t%d", i)
		filters = append(filters, fmt.Sprintf("[%s]%s[%s]", last, drawText(lt, o.Range, out), next))
		last = next
	}
	filters = append(filters, fmt.Sprintf("[%s]format=yuv420p[vout]", last))

	var mixed []string
	for _, track := range g.AudioTracks {
		for _, ins := range track.Insertions {
			idx := addInput(ins.SourceURL)
			label := fmt.Sprintf("a%d", len(mixed))
			filters = append(filters, fmt.Sprintf("[%d:a]%s[%s]", idx, audioChain(ins, track.Volume), label))
			mixed = append(mixed, "["+label+"]")
		}
	}
	if len(mixed) > 0 {
		filters = append(filters, fmt.Sprintf("%samix=inputs=%d:normalize=0:dropout_transition=0,atrim=duration=%s[aout]",
			strings.Join(mixed, ""), len(mixed), num(total)))
	}

	args := []string{"-y", "-nostdin", "-hide_banner", "-loglevel", "error"}
	args = append(args, inputs...)
	args = append(args, "-filter_complex", strings.Join(filters, ";"), "-map", "[vout]")
	if len(mixed) > 0 {
		args = append(args, "-map", "[aout]", "-c:a", "aac", "-b:a", "192k")
	} else {
		args = append(args, "-an")
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "20",
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(out.FrameRate),
		"-t", num(total),
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-nostats",
		out.Path,
	)
	return args, nil
}

func videoChain(ins compose.Insertion, opacity mix.Envelope, out compose.Output) string {
	src := ins.SourceRange
	parts := []string{
		fmt.Sprintf("trim=start=%s:duration=%s", num(src.Start.Seconds()), num(src.Duration.Seconds())),
		fmt.Sprintf("setpts=PTS-STARTPTS+%s/TB", num(ins.At.Seconds())),
	}
	if rot := rotationFilter(ins.Transform.RotationDegrees()); rot != "" {
		parts = append(parts, rot)
	}
	parts = append(parts,
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", out.Width, out.Height),
		fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black", out.Width, out.Height),
		"setsar=1",
		"format=yuva420p",
	)
	parts = append(parts, fadeFilters(ins.TimelineRange(), opacity)...)
	return strings.Join(parts, ",")
}

func rotationFilter(deg float64) string {
	switch {
	case deg == 0:
		return ""
	case deg == 90:
		return "transpose=1"
	case deg == 180:
		return "hflip,vflip"
	case deg == 270:
		return "transpose=2"
	default:
		return fmt.Sprintf("rotate=%s*PI/180", num(deg))
	}
}

// fadeFilters realises the opacity ramps that fall inside one insertion as
// alpha fades.
func fadeFilters(r mediatime.Range, opacity mix.Envelope) []string {
	var out []string
	for _, ramp := range opacity.Within(r) {
		if ramp.From == ramp.To || ramp.Range.IsEmpty() {
			continue
		}
		kind := "in"
		if ramp.To < ramp.From {
			kind = "out"
		}
		out = append(out, fmt.Sprintf("fade=t=%s:st=%s:d=%s:alpha=1",
			kind, num(ramp.Range.Start.Seconds()), num(ramp.Range.Duration.Seconds())))
	}
	return out
}

func audioChain(ins compose.Insertion, volume mix.Envelope) string {
	src := ins.SourceRange
	delay := int64(math.Round(ins.At.Seconds() * 1000))
	return strings.Join([]string{
		fmt.Sprintf("atrim=start=%s:duration=%s", num(src.Start.Seconds()), num(src.Duration.Seconds())),
		"asetpts=PTS-STARTPTS",
		fmt.Sprintf("adelay=%d:all=1", delay),
		fmt.Sprintf("volume='%s':eval=frame", VolumeExpr(volume)),
	}, ",")
}

// VolumeExpr renders an envelope as an ffmpeg expression in t. Later ramps
// wrap earlier ones so the last applied ramp wins where they overlap.
func VolumeExpr(env mix.Envelope) string {
	expr := num(env.Base)
	for _, r := range env.Ramps {
		s, e := r.Range.Start.Seconds(), r.Range.End().Seconds()
		value := num(r.To)
		if r.From != r.To && e > s {
			value = fmt.Sprintf("%s+(%s)*(t-%s)/%s", num(r.From), num(r.To-r.From), num(s), num(e-s))
		}
		expr = fmt.Sprintf("if(between(t,%s,%s),%s,%s)", num(s), num(e), value, expr)
	}
	return expr
}

func drawText(lt timeline.LowerThird, r mediatime.Range, out compose.Output) string {
	fontSize := out.Height / 24
	if fontSize < 12 {
		fontSize = 12
	}
	return fmt.Sprintf("drawtext=text='%s':fontcolor=white:fontsize=%d:box=1:boxcolor=black@0.55:boxborderw=%d:x=(w-text_w)/2:y=h-h/5:enable='between(t,%s,%s)'",
		escapeText(lt.Caption()), fontSize, fontSize/2, num(r.Start.Seconds()), num(r.End().Seconds()))
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, "’",
	`:`, `\:`,
	`%`, `\%`,
)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
