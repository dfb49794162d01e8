package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/nik312123/Orbits/internal/orbit"
	"github.com/nik312123/Orbits/internal/sim"
)

// maxBodyBytes bounds request bodies; orbit settings are three numbers.
const maxBodyBytes = 4096

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeOrbitError maps an orbit settings failure to its status: 400 for a
// bad parameter, 409 when the orbit would intersect the central body.
func writeOrbitError(w http.ResponseWriter, err error) {
	var ipe *orbit.InvalidParameterError
	switch {
	case errors.As(err, &ipe):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "field": ipe.Name})
	case errors.Is(err, orbit.ErrInvalidParameter):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, sim.ErrIntersects):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeParams reads orbit settings from a JSON request body.
func decodeParams(w http.ResponseWriter, r *http.Request) (sim.Params, error) {
	var p sim.Params
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("invalid request body: %w", err)
	}
	return p, nil
}

// intParam parses an optional integer query parameter within [lo, hi].
func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s parameter, must be %d-%d", name, lo, hi)
	}
	return n, nil
}
