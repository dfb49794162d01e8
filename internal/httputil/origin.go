package httputil

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginChecker returns a WebSocket CheckOrigin func. Requests without an
// Origin header (non-browser clients), same-origin requests, and localhost
// are allowed, plus any origin listed in allowed ("*" allows all).
func OriginChecker(allowed []string) func(r *http.Request) bool {
	allow := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		allow[strings.TrimRight(strings.ToLower(o), "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if allow["*"] || allow[strings.ToLower(origin)] {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		switch u.Hostname() {
		case "localhost", "127.0.0.1", "::1":
			return true
		}
		return false
	}
}
