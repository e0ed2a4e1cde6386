package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/reelcut/internal/playback"
)

const (
	maxBodyBytes     = 4 << 20
	defaultListLimit = 50
	maxListLimit     = 500
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens, cfg.Logger))

		r.Post("/plans", planHandler(cfg))
		r.Post("/plans/edl", planEDLHandler(cfg))
		r.Post("/exports", startExportHandler(cfg))
		r.Get("/exports/current", currentExportHandler(cfg))
		r.Post("/exports/current/cancel", cancelExportHandler(cfg))
		r.Get("/library", listLibraryHandler(cfg))
		r.Get("/library/{id}", getEntryHandler(cfg))

		r.Group(func(r chi.Router) {
			r.Use(LoopbackGuard())
			r.Get("/library/{id}/file", entryFileHandler(cfg))
			r.Head("/library/{id}/file", entryFileHandler(cfg))
		})
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		version := cfg.Version
		if version == "" {
			version = "dev"
		}
		resp := HealthResponse{
			Status:   "ok",
			Version:  version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		}
		if cfg.Exporter != nil {
			resp.Exporting = cfg.Exporter.Busy()
		}
		if cfg.Doctor != nil {
			tc, err := cfg.Doctor.Get(r.Context())
			if err != nil && tc == nil {
				cfg.Logger.Warn("toolchain probe failed", "error", err)
			}
			resp.Toolchain = ToolchainToResponse(tc)
			if !resp.Toolchain.Ready {
				resp.Status = "degraded"
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func listLibraryHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultListLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			limit = min(n, maxListLimit)
		}

		entries, err := cfg.Library.List(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list library", "INTERNAL_ERROR")
			return
		}

		resp := LibraryResponse{Entries: make([]EntryResponse, len(entries))}
		for i, e := range entries {
			resp.Entries[i] = EntryToResponse(e)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getEntryHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		entry, err := cfg.Library.Get(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if entry == nil {
			WriteError(w, http.StatusNotFound, "export not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, EntryToResponse(entry))
	}
}

func entryFileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		entry, err := cfg.Library.Get(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if entry == nil {
			WriteError(w, http.StatusNotFound, "export not found", "NOT_FOUND")
			return
		}
		if entry.Path == "" {
			WriteError(w, http.StatusNotFound, "export has no file", "NOT_FOUND")
			return
		}

		if err := cfg.PlaybackServer.ServeFile(w, r, entry.Path); err != nil {
			if errors.Is(err, playback.ErrOutsideRoot) {
				WriteError(w, http.StatusForbidden, "file is outside the exports directory", "FORBIDDEN")
				return
			}
			cfg.Logger.Error("playback error", "error", err, "export_id", id)
			WriteError(w, http.StatusInternalServerError, "failed to serve file", "INTERNAL_ERROR")
		}
	}
}

// decodeBody reads a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return false
	}
	return true
}
