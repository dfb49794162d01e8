package api

import (
	"bufio"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nik312123/Orbits/internal/auth"
	"github.com/nik312123/Orbits/internal/health"
	"github.com/nik312123/Orbits/internal/live"
	"github.com/nik312123/Orbits/internal/metrics"
	"github.com/nik312123/Orbits/internal/preset"
	"github.com/nik312123/Orbits/internal/sim"
	"github.com/nik312123/Orbits/internal/stream"
)

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server. catalog, refresher,
// streamHandler, hub, and webFS may be nil; their routes are then absent or
// answer 503.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, simulation *sim.Simulation,
	catalog *preset.Catalog, refresher *preset.Refresher, streamHandler *stream.Handler, hub *live.Hub, webFS fs.FS) *Server {
	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(simulation.Ready))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/orbit", orbitHandler(simulation))
	mux.HandleFunc("PUT /api/v1/orbit", applyHandler(logger, simulation))
	mux.HandleFunc("GET /api/v1/orbit/state", stateHandler(simulation))
	mux.HandleFunc("GET /api/v1/orbit/profile", profileHandler(simulation))
	mux.HandleFunc("GET /api/v1/orbit/passages", passagesHandler(simulation))
	mux.HandleFunc("GET /api/v1/orbit/trail", trailHandler(simulation))
	mux.HandleFunc("POST /api/v1/orbit/validate", validateHandler(simulation))

	mux.HandleFunc("GET /api/v1/presets", listPresetsHandler(catalog))
	mux.HandleFunc("POST /api/v1/presets/fetch", fetchPresetsHandler(logger, refresher))
	mux.HandleFunc("PUT /api/v1/presets/{norad_id}/apply", applyPresetHandler(logger, catalog, simulation))

	if streamHandler != nil {
		mux.HandleFunc("GET /api/v1/stream/state", streamHandler.HandleState)
	}
	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWebSocket)
	}
	if webFS != nil {
		mux.Handle("GET /", http.FileServerFS(webFS))
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

// statusRecorder keeps Flush and Hijack reachable for SSE and WebSocket
// handlers behind the logging middleware.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	sr.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
