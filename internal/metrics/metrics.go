// Package metrics defines the Prometheus collectors for the orbit service and
// small helpers the other packages call to update them.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbits_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orbits_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	// Simulation.
	simTicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbits_sim_ticks_total",
		Help: "Total number of simulation ticks.",
	})
	simTickDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orbits_sim_tick_duration_seconds",
		Help:    "Wall time spent advancing the orbit per tick.",
		Buckets: prometheus.ExponentialBuckets(1e-7, 4, 10),
	})
	simTickStepSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orbits_sim_tick_step_seconds",
		Help:    "Simulated time step applied per tick.",
		Buckets: []float64{0.001, 0.002, 0.003, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1},
	})
	simRadialClampsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbits_sim_radial_clamps_total",
		Help: "Ticks where rounding forced the radial velocity to zero.",
	})
	simSwapsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbits_sim_swaps_total",
		Help: "Total number of applied orbit parameter changes.",
	})
	simRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orbits_sim_rejected_total",
		Help: "Rejected orbit parameter changes by reason.",
	}, []string{"reason"})
	simPeriodSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orbits_sim_period_seconds",
		Help: "Orbital period of the live orbit.",
	})
	simEccentricity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orbits_sim_eccentricity",
		Help: "Eccentricity of the live orbit.",
	})

	// Trail history.
	historyHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbits_history_hits_total",
		Help: "Trail history lookups that found a sample.",
	})
	historyMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbits_history_misses_total",
		Help: "Trail history lookups that found nothing.",
	})
	historyEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbits_history_evictions_total",
		Help: "Trail samples evicted from the window.",
	})
	historyEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orbits_history_entries",
		Help: "Samples currently held in the trail history.",
	})
	historySizeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orbits_history_size_bytes",
		Help: "Estimated trail history memory footprint.",
	})

	// SSE streams.
	streamConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbits_stream_connections_total",
		Help: "Total SSE connections accepted.",
	})
	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orbits_streams_active",
		Help: "Currently open SSE streams.",
	})
	streamMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orbits_stream_messages_total",
		Help: "SSE messages sent by type.",
	}, []string{"type"})
	streamBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbits_stream_bytes_total",
		Help: "Bytes written to SSE clients.",
	})
	streamErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orbits_stream_errors_total",
		Help: "SSE errors by kind.",
	}, []string{"kind"})

	// WebSocket sessions.
	liveConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbits_live_connections_total",
		Help: "Total WebSocket sessions accepted.",
	})
	liveActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orbits_live_active",
		Help: "Currently open WebSocket sessions.",
	})
	liveMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orbits_live_messages_total",
		Help: "WebSocket messages by direction and type.",
	}, []string{"direction", "type"})
	liveErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orbits_live_errors_total",
		Help: "WebSocket errors by kind.",
	}, []string{"kind"})

	// Presets.
	presetDatasetCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orbits_preset_dataset_count",
		Help: "Satellites in the current TLE dataset.",
	})
	presetDatasetAgeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orbits_preset_dataset_age_seconds",
		Help: "Age of the current TLE dataset.",
	})
	presetFetchErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbits_preset_fetch_errors_total",
		Help: "Failed TLE catalog fetches.",
	})
	presetConversionErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbits_preset_conversion_errors_total",
		Help: "TLE entries that could not be turned into an orbit preset.",
	})
	presetBuildDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orbits_preset_build_duration_seconds",
		Help:    "Time to convert a TLE dataset into presets.",
		Buckets: prometheus.DefBuckets,
	})
	presetWorkersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orbits_preset_workers_active",
		Help: "Preset conversion workers currently busy.",
	})
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)

	prometheus.MustRegister(simTicksTotal, simTickDurationSeconds, simTickStepSeconds,
		simRadialClampsTotal, simSwapsTotal, simRejectedTotal, simPeriodSeconds, simEccentricity)
	prometheus.MustRegister(historyHitsTotal, historyMissesTotal, historyEvictionsTotal,
		historyEntries, historySizeBytes)
	prometheus.MustRegister(streamConnectionsTotal, streamsActive, streamMessagesTotal,
		streamBytesTotal, streamErrorsTotal)
	prometheus.MustRegister(liveConnectionsTotal, liveActive, liveMessagesTotal, liveErrorsTotal)
	prometheus.MustRegister(presetDatasetCount, presetDatasetAgeSeconds, presetFetchErrorsTotal,
		presetConversionErrorsTotal, presetBuildDurationSeconds, presetWorkersActive)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Simulation helpers.

// RecordTick counts one simulation tick with its cost and applied step.
func RecordTick(took, step time.Duration, clamped bool) {
	simTicksTotal.Inc()
	simTickDurationSeconds.Observe(took.Seconds())
	simTickStepSeconds.Observe(step.Seconds())
	if clamped {
		simRadialClampsTotal.Inc()
	}
}

func IncOrbitSwaps()                 { simSwapsTotal.Inc() }
func IncSettingsRejected(r string)   { simRejectedTotal.WithLabelValues(r).Inc() }
func SetOrbitPeriod(seconds float64) { simPeriodSeconds.Set(seconds) }
func SetOrbitEccentricity(e float64) { simEccentricity.Set(e) }

// Trail history helpers.

func IncHistoryHits()             { historyHitsTotal.Inc() }
func IncHistoryMisses()           { historyMissesTotal.Inc() }
func AddHistoryEvictions(n int)   { historyEvictionsTotal.Add(float64(n)) }
func SetHistoryEntries(n int)     { historyEntries.Set(float64(n)) }
func SetHistorySizeBytes(n int64) { historySizeBytes.Set(float64(n)) }

// Stream helpers.

func IncStreamConnections()        { streamConnectionsTotal.Inc() }
func IncStreamsActive()            { streamsActive.Inc() }
func DecStreamsActive()            { streamsActive.Dec() }
func IncStreamMessages(typ string) { streamMessagesTotal.WithLabelValues(typ).Inc() }
func AddStreamBytes(n int)         { streamBytesTotal.Add(float64(n)) }
func IncStreamErrors(kind string)  { streamErrorsTotal.WithLabelValues(kind).Inc() }

// WebSocket helpers.

func IncLiveConnections()                   { liveConnectionsTotal.Inc() }
func IncLiveActive()                        { liveActive.Inc() }
func DecLiveActive()                        { liveActive.Dec() }
func IncLiveMessages(direction, typ string) { liveMessagesTotal.WithLabelValues(direction, typ).Inc() }
func IncLiveErrors(kind string)             { liveErrorsTotal.WithLabelValues(kind).Inc() }

// Preset helpers.

func SetPresetDatasetCount(n int)         { presetDatasetCount.Set(float64(n)) }
func SetPresetDatasetAge(d time.Duration) { presetDatasetAgeSeconds.Set(d.Seconds()) }
func IncPresetFetchErrors()               { presetFetchErrorsTotal.Inc() }
func IncPresetConversionErrors()          { presetConversionErrorsTotal.Inc() }
func SetPresetWorkersActive(n int)        { presetWorkersActive.Set(float64(n)) }
func ObservePresetBuildDuration(d time.Duration) {
	presetBuildDurationSeconds.Observe(d.Seconds())
}

// exactRoutes are the registered paths that map to themselves.
var exactRoutes = map[string]bool{
	"/":                      true,
	"/healthz":               true,
	"/readyz":                true,
	"/metrics":               true,
	"/ws":                    true,
	"/app.js":                true,
	"/styles.css":            true,
	"/api/v1/orbit":          true,
	"/api/v1/orbit/state":    true,
	"/api/v1/orbit/profile":  true,
	"/api/v1/orbit/passages": true,
	"/api/v1/orbit/validate": true,
	"/api/v1/orbit/trail":    true,
	"/api/v1/presets":        true,
	"/api/v1/presets/fetch":  true,
	"/api/v1/stream/state":   true,
}

// normalizeRoute maps a request path to a bounded label set so bots and
// parameterized routes cannot blow up label cardinality.
func normalizeRoute(path string) string {
	if exactRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/presets/"); ok {
		if id, ok := strings.CutSuffix(rest, "/apply"); ok && isDigits(id) {
			return "/api/v1/presets/{norad_id}/apply"
		}
	}
	return "other"
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 32)
	return err == nil
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack supports WebSocket upgrades. A hijacked connection reports 101.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: underlying ResponseWriter does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
