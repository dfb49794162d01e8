// Package history keeps a rolling window of orbit snapshots for drawing
// trails behind the orbiter.
//
// Snapshots are keyed by their time rounded down to a step, so a host that
// records every tick keeps one sample per step. Entries older than the window
// (measured from the newest sample) are evicted on each Record. Reset drops
// everything; hosts call it whenever the orbit is swapped so a trail never
// mixes two orbits.
package history

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/nik312123/Orbits/internal/metrics"
	"github.com/nik312123/Orbits/internal/orbit"
)

// Config holds trail window configuration.
type Config struct {
	Step   time.Duration // Sample interval (default: 50ms)
	Window time.Duration // How far back to keep samples (default: 30s)
}

// Entry wraps a snapshot with recording metadata.
type Entry struct {
	Snapshot   orbit.Snapshot
	RecordedAt time.Time
}

// Trail is an in-memory rolling window of snapshots.
// Safe for concurrent use by multiple goroutines.
type Trail struct {
	mu      sync.RWMutex
	entries map[time.Time]*Entry
	newest  time.Time

	config Config
	logger *slog.Logger

	// Counters (lock-free).
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	resets    atomic.Int64
}

// New creates an empty trail.
func New(config Config, logger *slog.Logger) *Trail {
	logger.Info("trail history initialized",
		"step_ms", config.Step.Milliseconds(),
		"window_seconds", config.Window.Seconds(),
	)

	return &Trail{
		entries: make(map[time.Time]*Entry),
		config:  config,
		logger:  logger,
	}
}

// RoundToStep rounds a timestamp down to the nearest step boundary.
func (t *Trail) RoundToStep(ts time.Time) time.Time {
	return ts.UTC().Truncate(t.config.Step)
}

// Record stores a snapshot under its rounded time, replacing any sample
// already recorded for that step, and evicts samples that fell out of the
// window. Snapshots with a zero time (never advanced) are ignored.
func (t *Trail) Record(sn orbit.Snapshot) {
	if sn.Time.IsZero() {
		return
	}
	key := t.RoundToStep(sn.Time)
	entry := &Entry{Snapshot: sn, RecordedAt: time.Now()}

	t.mu.Lock()
	t.entries[key] = entry
	if key.After(t.newest) {
		t.newest = key
	}
	t.mu.Unlock()

	t.evictExpired()
}

// Get returns the snapshot recorded for the step containing ts.
func (t *Trail) Get(ts time.Time) (orbit.Snapshot, bool) {
	key := t.RoundToStep(ts)

	t.mu.RLock()
	entry, ok := t.entries[key]
	t.mu.RUnlock()

	if ok {
		t.hits.Add(1)
		metrics.IncHistoryHits()
		return entry.Snapshot, true
	}

	t.misses.Add(1)
	metrics.IncHistoryMisses()
	return orbit.Snapshot{}, false
}

// Recent returns up to count snapshots at or before ts, ordered oldest-first.
// Steps with no sample are skipped.
func (t *Trail) Recent(ts time.Time, count int) []orbit.Snapshot {
	if count <= 0 {
		return nil
	}

	key := t.RoundToStep(ts)

	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]orbit.Snapshot, 0, min(count, len(t.entries)))
	for i := count - 1; i >= 0; i-- {
		step := key.Add(-time.Duration(i) * t.config.Step)
		if entry, ok := t.entries[step]; ok {
			result = append(result, entry.Snapshot)
		}
	}
	return result
}

// Latest returns the most recently recorded snapshot.
func (t *Trail) Latest() (orbit.Snapshot, bool) {
	t.mu.RLock()
	entry, ok := t.entries[t.newest]
	t.mu.RUnlock()

	if ok {
		t.hits.Add(1)
		metrics.IncHistoryHits()
		return entry.Snapshot, true
	}

	t.misses.Add(1)
	metrics.IncHistoryMisses()
	return orbit.Snapshot{}, false
}

// Reset drops every sample.
func (t *Trail) Reset() {
	t.mu.Lock()
	dropped := len(t.entries)
	t.entries = make(map[time.Time]*Entry)
	t.newest = time.Time{}
	t.mu.Unlock()

	t.resets.Add(1)
	t.updateMetrics()
	t.logger.Debug("trail history reset", "entries_dropped", dropped)
}

// evictExpired removes entries older than newest - window.
func (t *Trail) evictExpired() int {
	var removed int

	t.mu.Lock()
	cutoff := t.newest.Add(-t.config.Window)
	for ts := range t.entries {
		if ts.Before(cutoff) {
			delete(t.entries, ts)
			removed++
		}
	}
	t.mu.Unlock()

	if removed > 0 {
		t.evictions.Add(int64(removed))
		metrics.AddHistoryEvictions(removed)
	}
	t.updateMetrics()

	return removed
}

// Stats returns current trail statistics.
func (t *Trail) Stats() Stats {
	t.mu.RLock()
	count := len(t.entries)

	var oldest time.Time
	for ts := range t.entries {
		if oldest.IsZero() || ts.Before(oldest) {
			oldest = ts
		}
	}
	newest := t.newest
	t.mu.RUnlock()

	return Stats{
		Entries:         count,
		SizeBytes:       estimateSizeBytes(count),
		OldestTimestamp: oldest,
		NewestTimestamp: newest,
		Hits:            t.hits.Load(),
		Misses:          t.misses.Load(),
		Evictions:       t.evictions.Load(),
		Resets:          t.resets.Load(),
	}
}

// Stats holds trail statistics for the stats endpoint.
type Stats struct {
	Entries         int       `json:"entries"`
	SizeBytes       int64     `json:"size_bytes"`
	OldestTimestamp time.Time `json:"oldest_timestamp"`
	NewestTimestamp time.Time `json:"newest_timestamp"`
	Hits            int64     `json:"hits"`
	Misses          int64     `json:"misses"`
	Evictions       int64     `json:"evictions"`
	Resets          int64     `json:"resets"`
}

// estimateSizeBytes returns a rough estimate of the trail memory footprint.
func estimateSizeBytes(entries int) int64 {
	// Entry: snapshot plus RecordedAt(24); map key(24) + pointer(8).
	perEntry := int64(unsafe.Sizeof(Entry{})) + 32
	return int64(entries) * perEntry
}

// updateMetrics publishes current trail size to Prometheus.
func (t *Trail) updateMetrics() {
	t.mu.RLock()
	count := len(t.entries)
	t.mu.RUnlock()

	metrics.SetHistoryEntries(count)
	metrics.SetHistorySizeBytes(estimateSizeBytes(count))
}
