// Package project reads reel projects from YAML: which sources to cut, how
// to cut them and where to write the result.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/heimdex/reelcut/internal/compose"
	"github.com/heimdex/reelcut/internal/export"
	"github.com/heimdex/reelcut/internal/mix"
	"github.com/heimdex/reelcut/internal/planner"
)

// Project is one reel. Relative paths are resolved against the project file.
type Project struct {
	Title     string           `yaml:"title"`
	Main      string           `yaml:"main"`
	Reactions []planner.Source `yaml:"reactions"`
	Music     string           `yaml:"music,omitempty"`
	NoMusic   bool             `yaml:"no_music,omitempty"`
	Bleeps    []float64        `yaml:"bleeps,omitempty"`
	Planner   planner.Config   `yaml:"planner"`
	Output    OutputConfig     `yaml:"output"`
	Mix       mix.Options      `yaml:"mix"`
}

// OutputConfig describes the rendered file.
type OutputConfig struct {
	Path   string `yaml:"path"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	FPS    int    `yaml:"fps"`
}

// Default returns a project carrying the given planner defaults and the
// default output and mix settings, ready to be overlaid by a YAML document.
func Default(defaults planner.Config) Project {
	return Project{
		Planner: defaults,
		Output: OutputConfig{
			Width:  compose.DefaultWidth,
			Height: compose.DefaultHeight,
			FPS:    compose.DefaultFrameRate,
		},
		Mix: mix.DefaultOptions(),
	}
}

// Load reads and validates a project file. Keys missing from the file keep
// the values from defaults.
func Load(path string, defaults planner.Config) (*Project, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project: %w", err)
	}
	p := Default(defaults)
	if err := yaml.Unmarshal(contents, &p); err != nil {
		return nil, fmt.Errorf("unmarshal project: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	p.resolve(filepath.Dir(abs), strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid project %s: %w", path, err)
	}
	return &p, nil
}

func (p *Project) resolve(dir, name string) {
	if p.Title == "" {
		p.Title = name
	}
	p.Main = resolvePath(dir, p.Main)
	for i := range p.Reactions {
		p.Reactions[i].URL = resolvePath(dir, p.Reactions[i].URL)
	}
	p.Music = resolvePath(dir, p.Music)
	if p.Output.Path == "" {
		p.Output.Path = export.FileName(p.Title, "", ".mp4")
	}
	p.Output.Path = resolvePath(dir, p.Output.Path)
}

// resolvePath anchors a relative file path at dir. URLs and absolute paths
// are returned unchanged.
func resolvePath(dir, p string) string {
	if p == "" || strings.Contains(p, "://") || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Validate reports every problem at once.
func (p *Project) Validate() error {
	var errs []error
	if strings.TrimSpace(p.Main) == "" {
		errs = append(errs, errors.New("main is required"))
	}
	if len(p.Reactions) == 0 {
		errs = append(errs, errors.New("at least one reaction is required"))
	}
	for i, r := range p.Reactions {
		if strings.TrimSpace(r.URL) == "" {
			errs = append(errs, fmt.Errorf("reactions[%d]: url is required", i))
		}
	}
	for i, b := range p.Bleeps {
		if b < 0 {
			errs = append(errs, fmt.Errorf("bleeps[%d]: timestamp must not be negative, got %v", i, b))
		}
	}
	if p.NoMusic && p.Music != "" {
		errs = append(errs, errors.New("music and no_music are mutually exclusive"))
	}
	if err := p.Planner.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("planner: %w", err))
	}
	if p.Output.Width <= 0 || p.Output.Height <= 0 || p.Output.FPS <= 0 {
		errs = append(errs, fmt.Errorf("output: width, height and fps must be positive"))
	}
	if p.Mix.FadeSeconds < 0 {
		errs = append(errs, fmt.Errorf("mix: fade_seconds must not be negative"))
	}
	return errors.Join(errs...)
}

// Request is the planning request for this project.
func (p *Project) Request() planner.Request {
	cfg := p.Planner
	return planner.Request{
		Main:      p.Main,
		Reactions: p.Reactions,
		Music:     p.Music,
		NoMusic:   p.NoMusic,
		Bleeps:    p.Bleeps,
		Config:    &cfg,
	}
}

// ExportOptions are the compose options for this project's render.
func (p *Project) ExportOptions() compose.ExportOptions {
	return compose.ExportOptions{
		Output: compose.Output{
			Path:      p.Output.Path,
			Width:     p.Output.Width,
			Height:    p.Output.Height,
			FrameRate: p.Output.FPS,
		},
		DissolveSeconds: p.Planner.DissolveSeconds,
		Mix:             p.Mix,
	}
}
