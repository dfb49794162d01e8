package preset

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/nik312123/Orbits/internal/metrics"
	"github.com/nik312123/Orbits/internal/sim"
)

// CheckFunc reports whether params would put the orbiter through the central
// body. sim.Simulation.Validate satisfies it.
type CheckFunc func(sim.Params) (bool, error)

// convertJob is a unit of work for the worker pool.
type convertJob struct {
	entry Entry
}

// convertResult is the output of a single conversion.
type convertResult struct {
	preset  Preset
	err     error
	noradID int
}

// WorkerPool manages a fixed number of goroutines for parallel SGP4 conversion.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
	busy    atomic.Int64
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// BuildBatch converts every entry into a preset and runs check on each one.
// Entries that fail conversion are logged and skipped. The result is sorted by
// NORAD ID; duplicates keep the first entry seen. Returns the presets, the
// success count, and the error count.
func (wp *WorkerPool) BuildBatch(ctx context.Context, entries []Entry, check CheckFunc) ([]Preset, int, int) {
	if len(entries) == 0 {
		return nil, 0, 0
	}

	jobs := make(chan convertJob, wp.workers*2)
	results := make(chan convertResult, wp.workers*2)

	// Start workers.
	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				metrics.SetPresetWorkersActive(int(wp.busy.Add(1)))
				result := convertSingle(job, check)
				metrics.SetPresetWorkersActive(int(wp.busy.Add(-1)))
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Feed jobs in a goroutine.
	go func() {
		defer close(jobs)
		seen := make(map[int]bool, len(entries))
		for _, entry := range entries {
			if seen[entry.NORADID] {
				continue
			}
			seen[entry.NORADID] = true
			select {
			case jobs <- convertJob{entry: entry}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Close results when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	presets := make([]Preset, 0, len(entries))
	var successCount, errorCount int

	for result := range results {
		if result.err != nil {
			errorCount++
			metrics.IncPresetConversionErrors()
			wp.logger.Warn("preset conversion failed",
				"norad_id", result.noradID,
				"error", result.err,
			)
			continue
		}
		successCount++
		presets = append(presets, result.preset)
	}

	sort.Slice(presets, func(i, j int) bool { return presets[i].NORADID < presets[j].NORADID })
	return presets, successCount, errorCount
}

// convertSingle performs SGP4 conversion and the intersection check for one entry.
func convertSingle(job convertJob, check CheckFunc) convertResult {
	p, err := FromEntry(job.entry)
	if err != nil {
		return convertResult{noradID: job.entry.NORADID, err: err}
	}
	if check != nil {
		hit, err := check(p.Params)
		if err != nil {
			return convertResult{noradID: job.entry.NORADID, err: err}
		}
		p.Intersects = hit
	}
	return convertResult{noradID: job.entry.NORADID, preset: p}
}
