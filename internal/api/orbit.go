package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/nik312123/Orbits/internal/history"
	"github.com/nik312123/Orbits/internal/orbit"
	"github.com/nik312123/Orbits/internal/passes"
	"github.com/nik312123/Orbits/internal/sim"
)

const (
	defaultProfileSamples = 360
	minProfileSamples     = 8
	maxProfileSamples     = 3600

	defaultPassages = 4

	defaultTrail = 50
	maxTrail     = 1000
)

// orbitHandler returns the live orbit path.
// GET /api/v1/orbit
func orbitHandler(s *sim.Simulation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Describe(s.Latest()))
	}
}

// applyHandler replaces the live orbit.
// PUT /api/v1/orbit
func applyHandler(logger *slog.Logger, s *sim.Simulation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := decodeParams(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f, err := s.Apply(r.Context(), p)
		if err != nil {
			writeOrbitError(w, err)
			return
		}
		logger.Info("orbit replaced via API", "generation", f.Generation, "remote_ip", r.RemoteAddr)
		writeJSON(w, http.StatusOK, s.Describe(f))
	}
}

type stateResponse struct {
	Generation uint64         `json:"generation"`
	Snapshot   orbit.Snapshot `json:"snapshot"`
	Absolute   orbit.Point    `json:"absolute"`
}

// stateHandler returns the latest snapshot.
// GET /api/v1/orbit/state
func stateHandler(s *sim.Simulation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := s.Latest()
		writeJSON(w, http.StatusOK, stateResponse{
			Generation: f.Generation,
			Snapshot:   f.Snapshot,
			Absolute:   f.Snapshot.Absolute(f.Body.Center),
		})
	}
}

type profileResponse struct {
	Generation uint64 `json:"generation"`
	orbit.Profile
}

// profileHandler samples the live orbit over one revolution.
// GET /api/v1/orbit/profile?samples=360
func profileHandler(s *sim.Simulation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := intParam(r, "samples", defaultProfileSamples, minProfileSamples, maxProfileSamples)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f := s.Latest()
		writeJSON(w, http.StatusOK, profileResponse{
			Generation: f.Generation,
			Profile:    orbit.NewProfile(f.Geometry, f.Body, n),
		})
	}
}

type passagesResponse struct {
	Generation uint64           `json:"generation"`
	Period     float64          `json:"period"`
	Passages   []passes.Passage `json:"passages"`
}

// passagesHandler predicts the next apsis passages.
// GET /api/v1/orbit/passages?count=4
func passagesHandler(s *sim.Simulation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := intParam(r, "count", defaultPassages, 1, passes.MaxPassages)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f := s.Latest()
		o := passes.FromSnapshot(f.Geometry, f.Body, f.Snapshot)
		if o.At.IsZero() {
			// Not ticked yet: the orbiter sits at periapsis now.
			o.At = time.Now()
		}
		list, err := passes.Predict(o, count)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, passagesResponse{
			Generation: f.Generation,
			Period:     o.Period().Seconds(),
			Passages:   list,
		})
	}
}

type trailResponse struct {
	Generation uint64           `json:"generation"`
	Stats      history.Stats    `json:"stats"`
	Points     []orbit.Snapshot `json:"points"`
}

// trailHandler returns recent snapshots, oldest first.
// GET /api/v1/orbit/trail?count=50
func trailHandler(s *sim.Simulation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := intParam(r, "count", defaultTrail, 1, maxTrail)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		stats, ok := s.TrailStats()
		if !ok {
			writeError(w, http.StatusNotFound, "trail history is disabled")
			return
		}
		points := s.Recent(count)
		if points == nil {
			points = []orbit.Snapshot{}
		}
		writeJSON(w, http.StatusOK, trailResponse{
			Generation: s.Latest().Generation,
			Stats:      stats,
			Points:     points,
		})
	}
}

// validateHandler reports whether settings would intersect without applying
// them.
// POST /api/v1/orbit/validate
func validateHandler(s *sim.Simulation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := decodeParams(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		intersects, err := s.Validate(p)
		if err != nil {
			writeOrbitError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"intersects": intersects})
	}
}
