package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nik312123/Orbits/internal/preset"
	"github.com/nik312123/Orbits/internal/sim"
)

type presetsResponse struct {
	Source     string             `json:"source"`
	FetchedAt  *time.Time         `json:"fetched_at,omitempty"`
	AgeSeconds float64            `json:"age_seconds"`
	EpochRange *preset.EpochRange `json:"epoch_range,omitempty"`
	Count      int                `json:"count"`
	Presets    []preset.Preset    `json:"presets"`
}

// listPresetsHandler lists satellite presets, optionally filtered by name
// (?q=) and to orbits that fit the viewport (?fits=true).
// GET /api/v1/presets
func listPresetsHandler(catalog *preset.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalog == nil {
			writeError(w, http.StatusServiceUnavailable, "presets are disabled")
			return
		}

		q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
		fitsOnly := false
		if v := r.URL.Query().Get("fits"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid fits parameter, must be a boolean")
				return
			}
			fitsOnly = b
		}

		resp := presetsResponse{AgeSeconds: -1, Presets: []preset.Preset{}}
		if ds := catalog.Get(); ds != nil {
			fetched := ds.FetchedAt.UTC()
			epochs := ds.EpochRange
			resp.Source = ds.Source
			resp.FetchedAt = &fetched
			resp.AgeSeconds = catalog.AgeSeconds()
			resp.EpochRange = &epochs
		}
		for _, p := range catalog.Presets(r.Context()) {
			if fitsOnly && p.Intersects {
				continue
			}
			if q != "" && !strings.Contains(strings.ToLower(p.Name), q) {
				continue
			}
			resp.Presets = append(resp.Presets, p)
		}
		resp.Count = len(resp.Presets)
		writeJSON(w, http.StatusOK, resp)
	}
}

// fetchPresetsHandler refreshes the catalog from the TLE source.
// POST /api/v1/presets/fetch
func fetchPresetsHandler(logger *slog.Logger, refresher *preset.Refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if refresher == nil {
			writeError(w, http.StatusServiceUnavailable, "presets are disabled")
			return
		}
		ds, err := refresher.Refresh(r.Context())
		switch {
		case errors.Is(err, preset.ErrFetchDisabled):
			writeError(w, http.StatusForbidden, err.Error())
			return
		case errors.Is(err, preset.ErrFetchInProgress):
			w.Header().Set("Retry-After", "10")
			writeError(w, http.StatusConflict, err.Error())
			return
		case err != nil:
			logger.Warn("preset fetch via API failed", "error", err)
			writeError(w, http.StatusBadGateway, "fetching TLE data failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"source":      ds.Source,
			"fetched_at":  ds.FetchedAt.UTC(),
			"epoch_range": ds.EpochRange,
			"count":       len(ds.Satellites),
		})
	}
}

type applyPresetResponse struct {
	Preset preset.Preset   `json:"preset"`
	Orbit  sim.Description `json:"orbit"`
}

// applyPresetHandler replaces the live orbit with a satellite's.
// PUT /api/v1/presets/{norad_id}/apply
func applyPresetHandler(logger *slog.Logger, catalog *preset.Catalog, s *sim.Simulation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalog == nil {
			writeError(w, http.StatusServiceUnavailable, "presets are disabled")
			return
		}
		id, err := strconv.Atoi(r.PathValue("norad_id"))
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid NORAD ID")
			return
		}
		p, ok := catalog.Lookup(r.Context(), id)
		if !ok {
			writeError(w, http.StatusNotFound, "no preset for NORAD ID "+strconv.Itoa(id))
			return
		}
		f, err := s.Apply(r.Context(), p.Params)
		if err != nil {
			writeOrbitError(w, err)
			return
		}
		logger.Info("preset applied", "norad_id", id, "name", p.Name, "generation", f.Generation)
		writeJSON(w, http.StatusOK, applyPresetResponse{Preset: p, Orbit: s.Describe(f)})
	}
}
