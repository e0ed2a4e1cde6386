package render

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseVersionLine(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"ffmpeg version 6.1.1 Copyright (c) 2000-2023 the FFmpeg developers", "6.1.1"},
		{"ffprobe version n7.0-static https://johnvansickle.com/ffmpeg/", "n7.0-static"},
		{"something else entirely", "something else entirely"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := parseVersionLine(tt.line); got != tt.want {
			t.Errorf("parseVersionLine(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestBinaryProbe_Probe(t *testing.T) {
	b := NewBinaryProbe("", "")
	b.resolve = func(preferred, fallback string) (string, error) {
		return "/usr/bin/" + fallback, nil
	}
	b.run = func(ctx context.Context, bin string, args ...string) ([]byte, error) {
		name := bin[strings.LastIndex(bin, "/")+1:]
		return []byte(name + " version 6.1.1 Copyright\nbuilt with gcc"), nil
	}

	tc, err := b.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if !tc.Ready() {
		t.Fatalf("toolchain not ready: %+v", tc)
	}
	if tc.FFmpeg != "/usr/bin/ffmpeg" || tc.FFprobeVersion != "6.1.1" {
		t.Fatalf("toolchain = %+v", tc)
	}
}

func TestBinaryProbe_MissingBinary(t *testing.T) {
	b := NewBinaryProbe("", "")
	b.resolve = func(preferred, fallback string) (string, error) {
		if fallback == "ffprobe" {
			return "", errors.New("no ffprobe binary found on PATH")
		}
		return "/usr/bin/ffmpeg", nil
	}
	b.run = func(ctx context.Context, bin string, args ...string) ([]byte, error) {
		return []byte("ffmpeg version 6.1.1"), nil
	}

	if _, err := b.Probe(context.Background()); err == nil || !strings.Contains(err.Error(), "ffprobe") {
		t.Fatalf("Probe() error = %v, want ffprobe failure", err)
	}
}

type countingProbe struct {
	calls int
	err   error
}

func (p *countingProbe) Probe(ctx context.Context) (*Toolchain, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &Toolchain{FFmpegVersion: "6.1", FFprobeVersion: "6.1", ProbedAt: time.Now()}, nil
}

func TestCachedDoctor(t *testing.T) {
	probe := &countingProbe{}
	d := NewCachedDoctor(probe, testLogger())
	ctx := context.Background()

	first, err := d.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	second, _ := d.Get(ctx)
	if probe.calls != 1 || first != second {
		t.Fatalf("fresh cache re-probed: calls = %d", probe.calls)
	}

	probe.err = errors.New("exec: killed")
	stale, err := d.Refresh(ctx)
	if err != nil || stale != first {
		t.Fatalf("Refresh() = %v, %v, want stale cache", stale, err)
	}

	d.ttl = 0
	if _, err := d.Get(ctx); err != nil {
		t.Fatalf("expired Get() error = %v, want stale cache", err)
	}
	if probe.calls != 3 {
		t.Fatalf("calls = %d, want 3", probe.calls)
	}
}

func TestCachedDoctor_NoCacheReturnsError(t *testing.T) {
	d := NewCachedDoctor(&countingProbe{err: errors.New("no ffmpeg")}, testLogger())
	tc, err := d.Get(context.Background())
	if err == nil || tc != nil {
		t.Fatalf("Get() = %v, %v, want error", tc, err)
	}
}
