package preset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nik312123/Orbits/internal/metrics"
	"github.com/nik312123/Orbits/internal/tracing"
)

var (
	// ErrFetchDisabled is returned by Refresh when remote fetching is off.
	ErrFetchDisabled = errors.New("TLE fetching is disabled")
	// ErrFetchInProgress is returned by Refresh when another fetch holds the lock.
	ErrFetchInProgress = errors.New("a TLE fetch is already in progress")
)

// Config holds preset catalog configuration.
type Config struct {
	EnableFetch     bool
	SourceURL       string
	ExtraSourceURLs []string
	MaxAge          time.Duration // Refetch when the dataset is older (0 = never)
	Workers         int

	CacheBackend    string // "disk" or "memcache"
	CacheDir        string
	MaxFiles        int
	MemcacheServers []string
}

// NewCache builds the configured cache backend.
func NewCache(cfg Config) (Cache, error) {
	switch cfg.CacheBackend {
	case "", "disk":
		return NewDiskCache(cfg.CacheDir, cfg.MaxFiles), nil
	case "memcache":
		if len(cfg.MemcacheServers) == 0 {
			return nil, errors.New("memcache cache backend needs at least one server")
		}
		return NewMemcacheCache(cfg.MemcacheServers, "", cfg.MaxAge*2), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// Refresher keeps the catalog loaded: from the cache at startup and from the
// remote source when the dataset goes stale or on demand.
type Refresher struct {
	cfg     Config
	fetcher *Fetcher
	catalog *Catalog
	cache   Cache
	logger  *slog.Logger
}

// NewRefresher wires a fetcher, catalog, and cache. cache may be nil.
func NewRefresher(cfg Config, fetcher *Fetcher, catalog *Catalog, cache Cache, logger *slog.Logger) *Refresher {
	return &Refresher{cfg: cfg, fetcher: fetcher, catalog: catalog, cache: cache, logger: logger}
}

// LoadCached loads the newest cached dataset into the catalog.
func (r *Refresher) LoadCached() error {
	if r.cache == nil {
		return ErrCacheEmpty
	}
	data, ts, err := r.cache.LoadLatest()
	if err != nil {
		return err
	}
	entries, err := Parse(bytes.NewReader(data), r.logger)
	if err != nil {
		return fmt.Errorf("parsing cached TLE data: %w", err)
	}
	if len(entries) == 0 {
		return ErrCacheEmpty
	}

	r.catalog.Set(NewDataset("cache", ts, entries))
	r.logger.Info("loaded TLE data from cache", "count", len(entries), "cached_at", ts.Format(time.RFC3339))
	return nil
}

// Refresh fetches, parses, and installs a new dataset, then writes it to the
// cache. Cache failures are logged, not returned.
func (r *Refresher) Refresh(ctx context.Context) (*Dataset, error) {
	if !r.cfg.EnableFetch {
		return nil, ErrFetchDisabled
	}
	if !r.catalog.TryLock() {
		return nil, ErrFetchInProgress
	}
	defer r.catalog.Unlock()

	ctx, span := tracing.Tracer().Start(ctx, "preset.refresh")
	defer span.End()
	span.SetAttributes(attribute.String("preset.source_url", r.fetcher.SourceURL()))

	ds, err := r.fetch(ctx)
	if err != nil {
		metrics.IncPresetFetchErrors()
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		r.logger.Warn("TLE fetch failed", "source_url", r.fetcher.SourceURL(), "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("preset.count", len(ds.Satellites)))

	r.catalog.Set(ds)
	metrics.SetPresetDatasetAge(0)

	if r.cache != nil {
		raw := encode(ds.Satellites)
		if err := r.cache.Write(raw, ds.FetchedAt); err != nil {
			r.logger.Warn("failed to write TLE cache", "error", err)
		}
	}

	r.logger.Info("TLE data fetched",
		"count", len(ds.Satellites),
		"source_url", r.fetcher.SourceURL(),
		"epoch_min", ds.EpochRange.Min.Format(time.RFC3339),
		"epoch_max", ds.EpochRange.Max.Format(time.RFC3339),
	)
	return ds, nil
}

func (r *Refresher) fetch(ctx context.Context) (*Dataset, error) {
	data, err := r.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := Parse(bytes.NewReader(data), r.logger)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.New("TLE source returned no valid entries")
	}
	return NewDataset(r.fetcher.SourceURL(), time.Now(), entries), nil
}

// encode writes entries back to 3-line TLE text.
func encode(entries []Entry) []byte {
	var buf bytes.Buffer
	for _, e := range entries {
		fmt.Fprintf(&buf, "%s\n%s\n%s\n", e.Name, e.Line1, e.Line2)
	}
	return buf.Bytes()
}

// stale reports whether the catalog should be refetched.
func (r *Refresher) stale() bool {
	if r.catalog.Get() == nil {
		return true
	}
	return r.cfg.MaxAge > 0 && r.catalog.AgeSeconds() > r.cfg.MaxAge.Seconds()
}

// Run refreshes stale data and publishes the dataset age every interval
// until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) {
	if r.cfg.EnableFetch && r.stale() {
		r.Refresh(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("preset refresher stopped")
			return
		case <-ticker.C:
			if age := r.catalog.AgeSeconds(); age >= 0 {
				metrics.SetPresetDatasetAge(time.Duration(age * float64(time.Second)))
			}
			if r.cfg.EnableFetch && r.stale() {
				r.Refresh(ctx)
			}
		}
	}
}
