package httputil

import (
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the address connection limits and logs key on. With
// trustProxy set, the leftmost X-Forwarded-For entry and then X-Real-IP are
// consulted before RemoteAddr; only enable it behind a reverse proxy that
// overwrites those headers.
//
// Addresses are normalized so one client maps to one key whichever way it
// arrives: ports and IPv6 zones are dropped and IPv4-mapped IPv6 addresses
// are unmapped. Header values that do not parse as an address are ignored.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		xff := r.Header.Get("X-Forwarded-For")
		if i := strings.IndexByte(xff, ','); i >= 0 {
			xff = xff[:i]
		}
		if ip, ok := parseAddr(xff); ok {
			return ip
		}
		if ip, ok := parseAddr(r.Header.Get("X-Real-IP")); ok {
			return ip
		}
	}
	if ip, ok := parseAddr(r.RemoteAddr); ok {
		return ip
	}
	return r.RemoteAddr
}

// parseAddr accepts "ip", "ip:port" and "[ipv6]:port".
func parseAddr(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	addr, err := netip.ParseAddr(strings.Trim(s, "[]"))
	if err != nil {
		ap, perr := netip.ParseAddrPort(s)
		if perr != nil {
			return "", false
		}
		addr = ap.Addr()
	}
	return addr.Unmap().WithZone("").String(), true
}
