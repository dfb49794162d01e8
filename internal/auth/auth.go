package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/nik312123/Orbits/internal/httputil"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// readOnlyPosts are POST endpoints that answer a query without changing
// anything.
var readOnlyPosts = map[string]bool{
	"/api/v1/orbit/validate": true,
}

// mutating returns true if the request can change server state.
func mutating(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	case http.MethodPost:
		return !readOnlyPosts[r.URL.Path]
	default:
		return true
	}
}

// Valid reports whether token matches the configured token.
func (c Config) Valid(token string) bool {
	return token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(c.Token)) == 1
}

// Middleware returns an HTTP middleware that enforces Bearer token auth
// on mutating requests when auth is enabled. Reads are always public.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || !mutating(r) {
				next.ServeHTTP(w, r)
				return
			}

			if !cfg.Valid(httputil.BearerToken(r, false)) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="orbits"`)
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
