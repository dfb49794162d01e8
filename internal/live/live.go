// Package live serves the orbit over a WebSocket. The server pushes "frame"
// messages at a fixed rate and an "orbit" message whenever the orbit path
// changes; clients may send "apply" and "validate" requests.
package live

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nik312123/Orbits/internal/httputil"
	"github.com/nik312123/Orbits/internal/metrics"
	"github.com/nik312123/Orbits/internal/orbit"
	"github.com/nik312123/Orbits/internal/sim"
)

// Message types
const (
	MsgTypeFrame      = "frame"
	MsgTypeOrbit      = "orbit"
	MsgTypeApply      = "apply"
	MsgTypeValidate   = "validate"
	MsgTypeApplied    = "applied"
	MsgTypeValidation = "validation"
	MsgTypeError      = "error"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ClientMessage represents a message from client to server.
type ClientMessage struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data"`
}

// ServerMessage represents a message from server to client. ID echoes the
// request it answers.
type ServerMessage struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Data any    `json:"data"`
}

// FrameData is the payload of a frame message.
type FrameData struct {
	Generation uint64         `json:"generation"`
	Snapshot   orbit.Snapshot `json:"snapshot"`
}

// ErrorData is the payload of an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Simulation is the live orbit the hub serves.
type Simulation interface {
	Latest() *sim.Frame
	Describe(f *sim.Frame) sim.Description
	Validate(p sim.Params) (bool, error)
	Apply(ctx context.Context, p sim.Params) (*sim.Frame, error)
}

// Config holds WebSocket configuration.
type Config struct {
	FrameInterval  time.Duration // Frame push interval (default: 50ms).
	MaxClients     int           // Concurrent connections (default: 256).
	MaxPerIP       int           // Concurrent connections per client address (default: 16).
	SendBuffer     int           // Per-client queued messages (default: 64).
	ReadLimit      int64         // Max inbound message bytes (default: 4096).
	AllowedOrigins []string      // Extra origins beyond same-origin and localhost.
	TrustProxy     bool          // Take the client IP from X-Forwarded-For.
	// AuthToken, when set, must accompany the upgrade request (Bearer header
	// or ?token=) for the connection to apply settings.
	AuthToken string
}

// DefaultConfig returns the WebSocket defaults.
func DefaultConfig() Config {
	return Config{
		FrameInterval: 50 * time.Millisecond,
		MaxClients:    256,
		MaxPerIP:      16,
		SendBuffer:    64,
		ReadLimit:     4096,
	}
}

// Hub tracks connected clients and broadcasts frames to them.
type Hub struct {
	sim      Simulation
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
	limiter  *httputil.ConnLimiter

	mu      sync.RWMutex
	clients map[uint64]*Client
	nextID  uint64

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// NewHub creates a hub for s. Run must be called to serve clients.
func NewHub(s Simulation, cfg Config, logger *slog.Logger) *Hub {
	defaults := DefaultConfig()
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = defaults.FrameInterval
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = defaults.MaxClients
	}
	if cfg.MaxPerIP <= 0 {
		cfg.MaxPerIP = defaults.MaxPerIP
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaults.SendBuffer
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaults.ReadLimit
	}
	checkOrigin := httputil.OriginChecker(cfg.AllowedOrigins)
	return &Hub{
		sim:    s,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if checkOrigin(r) {
					return true
				}
				metrics.IncLiveErrors("origin")
				logger.Warn("rejected websocket origin", "origin", r.Header.Get("Origin"))
				return false
			},
			EnableCompression: true,
		},
		limiter:    httputil.NewConnLimiter(cfg.MaxPerIP, cfg.MaxClients),
		clients:    make(map[uint64]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Active returns the number of registered clients.
func (h *Hub) Active() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run registers clients and pushes frames until ctx is cancelled, then
// closes every connection.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.FrameInterval)
	defer ticker.Stop()

	var (
		generation uint64
		lastSent   time.Time
	)

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for id, c := range h.clients {
				delete(h.clients, id)
				close(c.send)
				metrics.DecLiveActive()
			}
			h.mu.Unlock()
			h.logger.Info("live hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			h.mu.Unlock()
			metrics.IncLiveActive()
			// New clients always start with the current orbit.
			f := h.sim.Latest()
			c.enqueue(h.orbitMessage(f))
			c.enqueue(frameMessage(f))
			h.logger.Info("live client connected", "client_id", c.id, "remote_ip", c.ip)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
				metrics.DecLiveActive()
				h.logger.Info("live client disconnected", "client_id", c.id, "remote_ip", c.ip)
			}
			h.mu.Unlock()

		case <-ticker.C:
			f := h.sim.Latest()
			if f.Generation != generation {
				h.broadcast(h.orbitMessage(f))
				generation = f.Generation
			} else if f.Snapshot.Time.Equal(lastSent) {
				continue
			}
			h.broadcast(frameMessage(f))
			lastSent = f.Snapshot.Time
		}
	}
}

func (h *Hub) broadcast(msg ServerMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.enqueue(msg)
	}
}

func (h *Hub) orbitMessage(f *sim.Frame) ServerMessage {
	return ServerMessage{Type: MsgTypeOrbit, Data: h.sim.Describe(f)}
}

func frameMessage(f *sim.Frame) ServerMessage {
	return ServerMessage{Type: MsgTypeFrame, Data: FrameData{Generation: f.Generation, Snapshot: f.Snapshot}}
}

// HandleWebSocket upgrades the connection and starts the client's pumps.
// GET /ws
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := httputil.ClientIP(r, h.cfg.TrustProxy)
	if err := h.limiter.Acquire(ip); err != nil {
		status, reason := http.StatusTooManyRequests, "rate_limit"
		if errors.Is(err, httputil.ErrTotalLimit) {
			status, reason = http.StatusServiceUnavailable, "capacity"
		}
		metrics.IncLiveErrors(reason)
		h.logger.Warn("live connection refused", "remote_ip", ip, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	canApply := h.cfg.AuthToken == "" ||
		subtle.ConstantTimeCompare([]byte(httputil.BearerToken(r, true)), []byte(h.cfg.AuthToken)) == 1

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.limiter.Release(ip)
		metrics.IncLiveErrors("upgrade")
		h.logger.Warn("websocket upgrade failed", "remote_ip", ip, "error", err)
		return
	}
	metrics.IncLiveConnections()

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.mu.Unlock()

	c := &Client{
		id:       id,
		ip:       ip,
		hub:      h,
		conn:     conn,
		send:     make(chan ServerMessage, h.cfg.SendBuffer),
		canApply: canApply,
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		h.limiter.Release(ip)
		return
	}

	go c.writePump()
	go c.readPump()
}

// errorMessage maps an apply/validate failure to its wire form.
func errorMessage(id string, err error) ServerMessage {
	code := "internal"
	switch {
	case errors.Is(err, orbit.ErrInvalidParameter):
		code = "invalid"
	case errors.Is(err, sim.ErrIntersects):
		code = "intersects"
	}
	return ServerMessage{Type: MsgTypeError, ID: id, Data: ErrorData{Code: code, Message: err.Error()}}
}
