package httputil

import (
	"errors"
	"sync"
)

var (
	// ErrPerIPLimit is returned when one client already holds its share of
	// long-lived connections.
	ErrPerIPLimit = errors.New("too many connections from this address")
	// ErrTotalLimit is returned when the server-wide connection cap is reached.
	ErrTotalLimit = errors.New("too many connections")
)

// ConnLimiter caps concurrent long-lived connections (SSE streams and
// WebSocket sessions) per client address and overall.
type ConnLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

// NewConnLimiter returns a limiter. A limit <= 0 disables that check.
func NewConnLimiter(maxPerIP, maxTotal int) *ConnLimiter {
	return &ConnLimiter{
		perIP:    make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: maxTotal,
	}
}

// Acquire reserves a connection slot for ip. Every successful Acquire must be
// paired with one Release.
func (l *ConnLimiter) Acquire(ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxTotal > 0 && l.total >= l.maxTotal {
		return ErrTotalLimit
	}
	if l.maxPerIP > 0 && l.perIP[ip] >= l.maxPerIP {
		return ErrPerIPLimit
	}
	l.perIP[ip]++
	l.total++
	return nil
}

// Release frees a slot taken by Acquire.
func (l *ConnLimiter) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.perIP[ip] <= 1 {
		delete(l.perIP, ip)
	} else {
		l.perIP[ip]--
	}
	if l.total > 0 {
		l.total--
	}
}

// Count returns the slots held by ip.
func (l *ConnLimiter) Count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[ip]
}

// Active returns the slots held across all addresses.
func (l *ConnLimiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
