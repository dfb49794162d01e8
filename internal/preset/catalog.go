package preset

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nik312123/Orbits/internal/metrics"
	"github.com/nik312123/Orbits/internal/tracing"
)

// presetCache holds the presets built from one dataset.
// Immutable after construction; safe for concurrent reads.
type presetCache struct {
	list      []Preset
	byID      map[int]int
	fetchedAt time.Time
}

// Catalog provides thread-safe access to the current TLE dataset and the
// presets derived from it.
type Catalog struct {
	dataset atomic.Pointer[Dataset]
	mu      sync.Mutex // serializes fetch operations

	pool      *WorkerPool
	check     CheckFunc
	logger    *slog.Logger
	presets   atomic.Pointer[presetCache]
	presetsMu sync.Mutex // serializes preset rebuilds
}

// NewCatalog creates an empty catalog. check may be nil.
func NewCatalog(pool *WorkerPool, check CheckFunc, logger *slog.Logger) *Catalog {
	return &Catalog{pool: pool, check: check, logger: logger}
}

// Get returns the current dataset, or nil if none has been loaded.
func (c *Catalog) Get() *Dataset {
	return c.dataset.Load()
}

// Set atomically replaces the current dataset. Presets are rebuilt lazily on
// the next read.
func (c *Catalog) Set(ds *Dataset) {
	c.dataset.Store(ds)
	metrics.SetPresetDatasetCount(len(ds.Satellites))
}

// AgeSeconds returns the age of the current dataset in seconds.
// Returns -1 if no dataset is loaded.
func (c *Catalog) AgeSeconds() float64 {
	ds := c.dataset.Load()
	if ds == nil {
		return -1
	}
	return time.Since(ds.FetchedAt).Seconds()
}

// Lock acquires the fetch mutex for serializing fetch operations.
func (c *Catalog) Lock() {
	c.mu.Lock()
}

// TryLock acquires the fetch mutex if no fetch is running.
func (c *Catalog) TryLock() bool {
	return c.mu.TryLock()
}

// Unlock releases the fetch mutex.
func (c *Catalog) Unlock() {
	c.mu.Unlock()
}

// Presets returns the presets for the current dataset, sorted by NORAD ID.
// Nil when no dataset is loaded.
func (c *Catalog) Presets(ctx context.Context) []Preset {
	pc := c.cached(ctx)
	if pc == nil {
		return nil
	}
	return pc.list
}

// Lookup returns the preset for a NORAD ID.
func (c *Catalog) Lookup(ctx context.Context, noradID int) (Preset, bool) {
	pc := c.cached(ctx)
	if pc == nil {
		return Preset{}, false
	}
	i, ok := pc.byID[noradID]
	if !ok {
		return Preset{}, false
	}
	return pc.list[i], true
}

// cached returns presets for the current dataset, rebuilding them if the
// dataset has changed (double-checked locking).
func (c *Catalog) cached(ctx context.Context) *presetCache {
	ds := c.dataset.Load()
	if ds == nil {
		return nil
	}
	if pc := c.presets.Load(); pc != nil && pc.fetchedAt.Equal(ds.FetchedAt) {
		return pc
	}

	c.presetsMu.Lock()
	defer c.presetsMu.Unlock()

	if pc := c.presets.Load(); pc != nil && pc.fetchedAt.Equal(ds.FetchedAt) {
		return pc
	}

	ctx, span := tracing.Tracer().Start(ctx, "preset.build")
	defer span.End()

	start := time.Now()
	list, ok, failed := c.pool.BuildBatch(ctx, ds.Satellites, c.check)
	duration := time.Since(start)
	metrics.ObservePresetBuildDuration(duration)
	span.SetAttributes(
		attribute.Int("preset.built", ok),
		attribute.Int("preset.failed", failed),
	)

	byID := make(map[int]int, len(list))
	for i, p := range list {
		byID[p.NORADID] = i
	}
	pc := &presetCache{list: list, byID: byID, fetchedAt: ds.FetchedAt}

	// A cancelled build is partial; serve it but let the next read retry.
	if ctx.Err() == nil {
		c.presets.Store(pc)
	}

	c.logger.Info("preset cache rebuilt",
		"built", ok,
		"skipped", failed,
		"duration_ms", duration.Milliseconds(),
		"dataset_fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
	)
	return pc
}
