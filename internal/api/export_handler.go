package api

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/heimdex/reelcut/internal/compose"
	"github.com/heimdex/reelcut/internal/export"
	"github.com/heimdex/reelcut/internal/mix"
)

func startExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if cfg.Exporter.Busy() {
			WriteError(w, http.StatusConflict, compose.ErrExportInProgress.Error(), "EXPORT_IN_PROGRESS")
			return
		}

		tl := req.Timeline
		if tl == nil {
			planned, err := cfg.Planner.Plan(r.Context(), req.Request)
			if err != nil {
				writePlanError(w, err)
				return
			}
			tl = planned
		} else if !tl.IsEmpty() {
			if err := tl.Validate(); err != nil {
				WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_TIMELINE")
				return
			}
		}

		title := export.SanitizeName(req.Title, 120)
		if title == "" {
			title = "reel"
		}

		ctx := cfg.BaseContext
		if ctx == nil {
			ctx = context.Background()
		}
		h, err := cfg.Exporter.Export(ctx, compose.Job{
			Timeline: tl,
			Options:  exportOptions(cfg, req),
		})
		switch {
		case errors.Is(err, compose.ErrEmptyTimeline):
			WriteError(w, http.StatusUnprocessableEntity, err.Error(), "EMPTY_TIMELINE")
			return
		case errors.Is(err, compose.ErrExportInProgress):
			WriteError(w, http.StatusConflict, err.Error(), "EXPORT_IN_PROGRESS")
			return
		case err != nil:
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		if _, err := cfg.Library.Track(r.Context(), h, title, ""); err != nil {
			cfg.Logger.Error("failed to record export", "export_id", h.ID(), "error", err)
		}

		WriteJSON(w, http.StatusAccepted, ExportStartedResponse{
			ExportID: h.ID(),
			State:    h.State(),
		})
	}
}

// exportOptions renders into the work directory; the library moves the
// finished file into the exports directory.
func exportOptions(cfg ServerConfig, req ExportRequest) compose.ExportOptions {
	opts := compose.ExportOptions{
		Output: compose.Output{
			Path: filepath.Join(cfg.WorkDir, uuid.NewString()+".mp4"),
		},
		DissolveSeconds: cfg.Planner.Defaults().DissolveSeconds,
		Mix:             mix.DefaultOptions(),
	}
	if req.Config != nil {
		opts.DissolveSeconds = req.Config.DissolveSeconds
	}
	if req.Output != nil {
		opts.Output.Width = req.Output.Width
		opts.Output.Height = req.Output.Height
		opts.Output.FrameRate = req.Output.FPS
	}
	if req.Mix != nil {
		opts.Mix = *req.Mix
	}
	return opts
}

func currentExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := cfg.Exporter.Current()
		if h == nil {
			WriteError(w, http.StatusNotFound, "no export has run", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, HandleToResponse(h))
	}
}

func cancelExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := cfg.Exporter.Current()
		if h == nil || !cfg.Exporter.Busy() {
			WriteError(w, http.StatusConflict, "no export is running", "NO_ACTIVE_EXPORT")
			return
		}
		h.Cancel()
		WriteJSON(w, http.StatusAccepted, HandleToResponse(h))
	}
}
