package api

import (
	"time"

	"github.com/heimdex/reelcut/internal/allocator"
	"github.com/heimdex/reelcut/internal/compose"
	"github.com/heimdex/reelcut/internal/library"
	"github.com/heimdex/reelcut/internal/mix"
	"github.com/heimdex/reelcut/internal/planner"
	"github.com/heimdex/reelcut/internal/render"
	"github.com/heimdex/reelcut/internal/timeline"
)

type HealthResponse struct {
	Status    string             `json:"status"`
	Version   string             `json:"version"`
	UptimeS   int64              `json:"uptime_s"`
	DeviceID  string             `json:"device_id"`
	Exporting bool               `json:"exporting"`
	Toolchain *ToolchainResponse `json:"toolchain,omitempty"`
}

type ToolchainResponse struct {
	Ready          bool   `json:"ready"`
	FFmpegVersion  string `json:"ffmpeg_version,omitempty"`
	FFprobeVersion string `json:"ffprobe_version,omitempty"`
	LastProbeAt    string `json:"last_probe_at,omitempty"`
}

func ToolchainToResponse(tc *render.Toolchain) *ToolchainResponse {
	if tc == nil {
		return &ToolchainResponse{Ready: false}
	}
	return &ToolchainResponse{
		Ready:          tc.Ready(),
		FFmpegVersion:  tc.FFmpegVersion,
		FFprobeVersion: tc.FFprobeVersion,
		LastProbeAt:    tc.ProbedAt.Format(time.RFC3339),
	}
}

// PlanRequest is a planner.Request; its fields are inlined in the body.
type PlanRequest struct {
	planner.Request
}

type PlanResponse struct {
	Timeline   *timeline.Timeline `json:"timeline"`
	Allocation allocator.Result   `json:"allocation"`
	Empty      bool               `json:"empty"`
	DurationS  float64            `json:"duration_s"`
}

type EDLRequest struct {
	planner.Request
	Title     string  `json:"title"`
	FrameRate float64 `json:"frame_rate,omitempty"`
	OutputDir string  `json:"output_dir,omitempty"`
}

type EDLResponse struct {
	Status     string `json:"status"`
	Format     string `json:"format"`
	OutputPath string `json:"output_path"`
	ClipCount  int    `json:"clip_count"`
}

// ExportRequest starts an export either from a timeline the caller already
// planned or by planning the inlined request first.
type ExportRequest struct {
	planner.Request
	Timeline *timeline.Timeline `json:"timeline,omitempty"`
	Title    string             `json:"title"`
	Output   *OutputRequest     `json:"output,omitempty"`
	Mix      *mix.Options       `json:"mix,omitempty"`
}

type OutputRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	FPS    int `json:"fps"`
}

type ExportStartedResponse struct {
	ExportID string        `json:"export_id"`
	State    compose.State `json:"state"`
}

type ExportStatusResponse struct {
	ExportID string          `json:"export_id"`
	State    compose.State   `json:"state"`
	Progress float64         `json:"progress"`
	Result   *compose.Result `json:"result,omitempty"`
}

func HandleToResponse(h *compose.Handle) ExportStatusResponse {
	resp := ExportStatusResponse{
		ExportID: h.ID(),
		State:    h.State(),
		Progress: h.Progress(),
	}
	if res, ok := h.Result(); ok {
		resp.State = res.State
		resp.Result = &res
	}
	return resp
}

type EntryResponse struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Project   string  `json:"project,omitempty"`
	Status    string  `json:"status"`
	DurationS float64 `json:"duration_s"`
	SizeBytes int64   `json:"size_bytes"`
	Size      string  `json:"size"`
	Failure   string  `json:"failure,omitempty"`
	Error     string  `json:"error,omitempty"`
	CreatedAt string  `json:"created_at"`
	Age       string  `json:"age"`
}

type LibraryResponse struct {
	Entries []EntryResponse `json:"entries"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func EntryToResponse(e *library.Entry) EntryResponse {
	return EntryResponse{
		ID:        e.ID,
		Title:     e.Title,
		Project:   e.Project,
		Status:    e.Status,
		DurationS: e.DurationSeconds,
		SizeBytes: e.SizeBytes,
		Size:      e.HumanSize(),
		Failure:   e.Failure,
		Error:     e.Error,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
		Age:       e.Age(),
	}
}
