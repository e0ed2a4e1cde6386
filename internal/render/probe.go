package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/heimdex/reelcut/internal/compose"
	"github.com/heimdex/reelcut/internal/mediatime"
	"github.com/heimdex/reelcut/internal/timeline"
)

const DefaultProbeCacheSize = 256

// probeOutput is the subset of `ffprobe -print_format json -show_format
// -show_streams` that reelcut reads.
type probeOutput struct {
	Streams []struct {
		CodecType string            `json:"codec_type"`
		Width     int               `json:"width"`
		Height    int               `json:"height"`
		Duration  string            `json:"duration"`
		Tags      map[string]string `json:"tags"`
		SideData  []sideData        `json:"side_data_list"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

type sideData struct {
	Rotation float64 `json:"rotation"`
}

// parseProbe converts ffprobe JSON into an Asset. A missing or unreadable
// duration yields a zero duration rather than an error.
func parseProbe(url string, data []byte) (compose.Asset, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return compose.Asset{}, fmt.Errorf("cannot parse ffprobe JSON: %w", err)
	}

	asset := compose.Asset{URL: url, Preferred: timeline.Identity}
	seconds := parseSeconds(out.Format.Duration)
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if asset.HasVideo {
				continue
			}
			asset.HasVideo = true
			asset.Width, asset.Height = s.Width, s.Height
			if rot := streamRotation(s.Tags, s.SideData); rot != 0 {
				asset.Preferred = timeline.Rotation(rot)
			}
		case "audio":
			asset.HasAudio = true
		default:
			continue
		}
		if seconds == 0 {
			seconds = parseSeconds(s.Duration)
		}
	}
	asset.Duration = mediatime.FromSeconds(seconds)
	return asset, nil
}

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// streamRotation returns the clockwise display rotation in degrees. Older
// containers carry a rotate tag; newer ffprobe reports a display matrix whose
// rotation is counter-clockwise.
func streamRotation(tags map[string]string, side []sideData) float64 {
	deg := 0.0
	if v, ok := tags["rotate"]; ok {
		deg = parseSignedDegrees(v)
	} else {
		for _, sd := range side {
			if sd.Rotation != 0 {
				deg = -sd.Rotation
				break
			}
		}
	}
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func parseSignedDegrees(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// Prober reads asset metadata with ffprobe and caches it per URL. It serves
// as both the planner's duration source and the composer's asset loader.
type Prober struct {
	ffprobe string
	cache   *lru.Cache[string, compose.Asset]
	logger  *slog.Logger
	resolve func(preferred, fallback string) (string, error)
	run     func(ctx context.Context, bin string, args ...string) ([]byte, error)
}

func NewProber(ffprobePath string, cacheSize int, logger *slog.Logger) (*Prober, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultProbeCacheSize
	}
	cache, err := lru.New[string, compose.Asset](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("cannot create probe cache: %w", err)
	}
	return &Prober{
		ffprobe: ffprobePath,
		cache:   cache,
		logger:  logger,
		resolve: resolveBinary,
		run:     runOutput,
	}, nil
}

func runOutput(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	stderr := &limitedWriter{limit: maxStderrBytes}
	cmd.Stderr = stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, truncate(strings.TrimSpace(stderr.String()), 512))
	}
	return out, nil
}

// Load implements compose.AssetLoader.
func (p *Prober) Load(ctx context.Context, url string) (compose.Asset, error) {
	if a, ok := p.cache.Get(url); ok {
		return a, nil
	}

	path := sourcePath(url)
	if !strings.Contains(path, "://") {
		if _, err := os.Stat(path); err != nil {
			return compose.Asset{}, fmt.Errorf("cannot open source: %w", err)
		}
	}

	bin, err := p.resolve(p.ffprobe, "ffprobe")
	if err != nil {
		return compose.Asset{}, err
	}
	data, err := p.run(ctx, bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return compose.Asset{}, fmt.Errorf("ffprobe failed: %w", err)
	}

	asset, err := parseProbe(url, bytes.TrimSpace(data))
	if err != nil {
		return compose.Asset{}, err
	}
	p.cache.Add(url, asset)

	p.logger.Debug("asset probed",
		"url", url,
		"duration_s", asset.Duration.Seconds(),
		"video", asset.HasVideo,
		"audio", asset.HasAudio,
	)
	return asset, nil
}

// Duration implements planner.DurationProber.
func (p *Prober) Duration(ctx context.Context, url string) (mediatime.Time, error) {
	a, err := p.Load(ctx, url)
	if err != nil {
		return mediatime.Zero, err
	}
	return a.Duration, nil
}

// Forget drops a cached probe, for sources that changed on disk.
func (p *Prober) Forget(url string) {
	p.cache.Remove(url)
}
