// Package stream implements Server-Sent Events (SSE) streaming of the live
// orbit. Clients connect via GET /api/v1/stream/state and receive the
// orbiter's state at a fixed interval.
//
// SSE message format, with the orbit generation as the event id:
//
//	id: 3\ndata: {"type":"state","generation":3,"snapshot":{...},"trail":[...]}\n\n
//
// The first message, and the first message after every orbit swap, describes
// the orbit path:
//
//	id: 3\ndata: {"type":"orbit","generation":3,"ellipse":{...},...}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval to prevent timeout.
// Reconnecting clients receive a fresh orbit message on each connection.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/nik312123/Orbits/internal/httputil"
	"github.com/nik312123/Orbits/internal/metrics"
	"github.com/nik312123/Orbits/internal/orbit"
	"github.com/nik312123/Orbits/internal/sim"
)

const (
	minInterval = 10 * time.Millisecond
	maxInterval = 5 * time.Second
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxConcurrent      int           // Max concurrent streams overall (default: 1000).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	DefaultInterval    time.Duration // State message interval when ?interval is absent (default: 50ms).
	MaxTrail           int           // Upper bound for ?trail (default: 120).
	TrustProxy         bool          // Take the client IP from X-Forwarded-For.
}

// DefaultConfig returns the stream defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentPerIP: 10,
		MaxConcurrent:      1000,
		KeepaliveInterval:  30 * time.Second,
		DefaultInterval:    50 * time.Millisecond,
		MaxTrail:           120,
	}
}

// Source is the live orbit a stream reads from.
type Source interface {
	Latest() *sim.Frame
	Recent(count int) []orbit.Snapshot
	Describe(f *sim.Frame) sim.Description
}

// Handler manages SSE streaming connections.
type Handler struct {
	src     Source
	config  Config
	limiter *httputil.ConnLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(src Source, config Config, logger *slog.Logger) *Handler {
	defaults := DefaultConfig()
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = defaults.KeepaliveInterval
	}
	if config.DefaultInterval <= 0 {
		config.DefaultInterval = defaults.DefaultInterval
	}
	if config.MaxTrail <= 0 {
		config.MaxTrail = defaults.MaxTrail
	}
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = defaults.MaxConcurrentPerIP
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = defaults.MaxConcurrent
	}
	return &Handler{
		src:     src,
		config:  config,
		limiter: httputil.NewConnLimiter(config.MaxConcurrentPerIP, config.MaxConcurrent),
		logger:  logger,
	}
}

// Active returns the number of open streams.
func (h *Handler) Active() int {
	return h.limiter.Active()
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// HandleState serves the SSE state stream.
// GET /api/v1/stream/state?interval=50&trail=20
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	interval := h.config.DefaultInterval
	if v := r.URL.Query().Get("interval"); v != "" {
		n, err := strconv.Atoi(v)
		d := time.Duration(n) * time.Millisecond
		if err != nil || d < minInterval || d > maxInterval {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid interval parameter, must be %d-%d", minInterval.Milliseconds(), maxInterval.Milliseconds()))
			return
		}
		interval = d
	}

	trail := 0
	if v := r.URL.Query().Get("trail"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > h.config.MaxTrail {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid trail parameter, must be 0-%d", h.config.MaxTrail))
			return
		}
		trail = n
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if err := h.limiter.Acquire(ip); err != nil {
		reason := "rate_limit"
		if errors.Is(err, httputil.ErrTotalLimit) {
			reason = "capacity"
		}
		metrics.IncStreamErrors(reason)
		h.logger.Warn("stream limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.Count(ip),
			"active", h.limiter.Active(),
			"error", err,
		)
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.IncStreamConnections()
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"interval_ms", interval.Milliseconds(),
		"trail", trail,
	)

	var ew *eventWriter
	defer func() {
		h.limiter.Release(ip)
		metrics.DecStreamsActive()
		attrs := []any{"remote_ip", ip, "duration_seconds", int(time.Since(startTime).Seconds())}
		if ew != nil {
			attrs = append(attrs, "messages", ew.events, "bytes", ew.bytes)
		}
		h.logger.Info("stream disconnected", attrs...)
	}()

	if _, ok := w.(http.Flusher); !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)

	ew = newEventWriter(w, h.logger)
	// Clear the server's default WriteTimeout; each write sets its own.
	if err := ew.rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	// Jittered retry (3-7s) so a restart does not bring every client back
	// at once.
	if err := ew.retry(time.Duration(3000+rand.Intn(4000)) * time.Millisecond); err != nil {
		metrics.IncStreamErrors("send_error")
		return
	}

	if last := r.Header.Get("Last-Event-ID"); last != "" {
		if seen, err := strconv.ParseUint(last, 10, 64); err == nil && seen != h.src.Latest().Generation {
			h.logger.Info("stream resumed after orbit change", "remote_ip", ip, "last_generation", seen)
		}
	}

	var (
		generation uint64
		lastSent   time.Time
		sentState  bool
	)
	send := func() error {
		f := h.src.Latest()
		if f.Generation != generation {
			if err := ew.send("orbit", f.Generation, orbitMessage{Type: "orbit", Description: h.src.Describe(f)}); err != nil {
				return err
			}
			generation = f.Generation
			sentState = false
		}
		// Nothing new since the last message.
		if sentState && f.Snapshot.Time.Equal(lastSent) {
			return nil
		}
		var recent []orbit.Snapshot
		if trail > 0 {
			recent = h.src.Recent(trail)
		}
		if err := ew.send("state", f.Generation, buildStateMessage(f, recent)); err != nil {
			return err
		}
		lastSent = f.Snapshot.Time
		sentState = true
		return nil
	}

	if err := send(); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (orbit)", "remote_ip", ip, "error", err)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			sent := ew.events
			if err := send(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			if ew.events != sent {
				keepaliveTicker.Reset(h.config.KeepaliveInterval)
			}

		case <-keepaliveTicker.C:
			if err := ew.keepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// buildStateMessage formats a frame into the SSE state payload. Trail
// positions are relative to the central body, oldest first.
func buildStateMessage(f *sim.Frame, recent []orbit.Snapshot) stateMessage {
	msg := stateMessage{
		Type:       "state",
		Generation: f.Generation,
		T:          f.Snapshot.Time.UTC().Format(time.RFC3339Nano),
		Snapshot:   f.Snapshot,
	}
	if len(recent) > 0 {
		msg.Trail = make([]orbit.Point, len(recent))
		for i, sn := range recent {
			msg.Trail[i] = sn.Position
		}
	}
	return msg
}

// SSE message payload types.

type orbitMessage struct {
	Type string `json:"type"`
	sim.Description
}

type stateMessage struct {
	Type       string         `json:"type"`
	Generation uint64         `json:"generation"`
	T          string         `json:"t"`
	Snapshot   orbit.Snapshot `json:"snapshot"`
	Trail      []orbit.Point  `json:"trail,omitempty"`
}
