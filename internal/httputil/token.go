package httputil

import (
	"net/http"
	"strings"
)

// BearerToken returns the token from an "Authorization: Bearer" header, or
// "" when there is none. With allowQuery, a ?token= parameter is accepted as
// well, for clients such as browser WebSockets that cannot set headers.
func BearerToken(r *http.Request, allowQuery bool) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if allowQuery {
		return r.URL.Query().Get("token")
	}
	return ""
}
