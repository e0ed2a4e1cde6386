package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/heimdex/reelcut/internal/allocator"
	"github.com/heimdex/reelcut/internal/compose"
	"github.com/heimdex/reelcut/internal/export"
)

const defaultEDLFrameRate = 30.0

func planHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PlanRequest
		if !decodeBody(w, r, &req) {
			return
		}

		tl, err := cfg.Planner.Plan(r.Context(), req.Request)
		if err != nil {
			writePlanError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, PlanResponse{
			Timeline:   tl,
			Allocation: allocator.Allocate(tl.VideoClips),
			Empty:      tl.IsEmpty(),
			DurationS:  tl.TotalDuration.Seconds(),
		})
	}
}

func planEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EDLRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.OutputDir != "" {
			if err := export.ValidateOutputDir(req.OutputDir); err != nil {
				WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
				return
			}
		}

		tl, err := cfg.Planner.Plan(r.Context(), req.Request)
		if err != nil {
			writePlanError(w, err)
			return
		}
		if tl.IsEmpty() {
			WriteError(w, http.StatusUnprocessableEntity, "timeline is empty", "EMPTY_TIMELINE")
			return
		}

		title := export.SanitizeName(req.Title, 120)
		if title == "" {
			title = "reelcut"
		}
		frameRate := req.FrameRate
		if frameRate <= 0 {
			frameRate = defaultEDLFrameRate
		}
		edl := export.GenerateEDL(tl, title, frameRate)

		if req.OutputDir == "" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, edl)
			return
		}

		outputPath := filepath.Join(req.OutputDir, export.FileName(title, "", ".edl"))
		if err := os.WriteFile(outputPath, []byte(edl), 0o644); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to write export file", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, EDLResponse{
			Status:     "ok",
			Format:     "edl",
			OutputPath: outputPath,
			ClipCount:  len(tl.VideoClips),
		})
	}
}

func writePlanError(w http.ResponseWriter, err error) {
	var assetErr *compose.AssetLoadError
	if errors.As(err, &assetErr) {
		WriteError(w, http.StatusUnprocessableEntity, assetErr.Error(), "ASSET_LOAD")
		return
	}
	WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
}
