package preset

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nik312123/Orbits/internal/sim"
)

func TestWorkerPoolBatch(t *testing.T) {
	pool := NewWorkerPool(2, testLogger())
	entries := append(testEntries(), Entry{NORADID: 1, Name: "BROKEN", Line1: "1 00001U", Line2: "2 00001"})
	// Duplicate IDs convert once.
	entries = append(entries, testEntries()[0])

	presets, ok, failed := pool.BuildBatch(context.Background(), entries, nil)
	if ok != 3 || failed != 1 {
		t.Errorf("ok/failed = %d/%d, want 3/1", ok, failed)
	}
	if len(presets) != 3 {
		t.Fatalf("len = %d, want 3", len(presets))
	}
	for i := 1; i < len(presets); i++ {
		if presets[i].NORADID <= presets[i-1].NORADID {
			t.Errorf("presets not sorted by NORAD ID: %d then %d", presets[i-1].NORADID, presets[i].NORADID)
		}
	}
}

func TestWorkerPoolCheck(t *testing.T) {
	pool := NewWorkerPool(3, testLogger())
	check := func(p sim.Params) (bool, error) {
		// Flag anything eccentric.
		return p.RadiusTwo < 0.9*p.RadiusOne, nil
	}

	presets, _, _ := pool.BuildBatch(context.Background(), testEntries(), check)
	for _, p := range presets {
		want := p.NORADID == 99999
		if p.Intersects != want {
			t.Errorf("NORAD %d Intersects = %v, want %v", p.NORADID, p.Intersects, want)
		}
	}

	failing := func(sim.Params) (bool, error) { return false, errors.New("boom") }
	if _, ok, failed := pool.BuildBatch(context.Background(), testEntries(), failing); ok != 0 || failed != 3 {
		t.Errorf("failing check ok/failed = %d/%d, want 0/3", ok, failed)
	}
}

func TestWorkerPoolCancellation(t *testing.T) {
	pool := NewWorkerPool(2, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		pool.BuildBatch(ctx, testEntries(), nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("BuildBatch did not return after cancellation")
	}
}

func TestCatalogPresetsRebuildOnDatasetChange(t *testing.T) {
	var checks atomic.Int64
	check := func(sim.Params) (bool, error) {
		checks.Add(1)
		return false, nil
	}
	c := NewCatalog(NewWorkerPool(2, testLogger()), check, testLogger())

	if got := c.Presets(context.Background()); got != nil {
		t.Errorf("Presets with no dataset = %v, want nil", got)
	}
	if c.AgeSeconds() != -1 {
		t.Errorf("AgeSeconds with no dataset = %g, want -1", c.AgeSeconds())
	}

	c.Set(NewDataset("test", time.Now(), testEntries()[:2]))
	if got := c.Presets(context.Background()); len(got) != 2 {
		t.Fatalf("len(Presets) = %d, want 2", len(got))
	}
	// Second read hits the cache.
	c.Presets(context.Background())
	if n := checks.Load(); n != 2 {
		t.Errorf("check ran %d times, want 2", n)
	}

	c.Set(NewDataset("test", time.Now().Add(time.Second), testEntries()))
	if got := c.Presets(context.Background()); len(got) != 3 {
		t.Errorf("len(Presets) after new dataset = %d, want 3", len(got))
	}
}

func TestCatalogLookup(t *testing.T) {
	c := NewCatalog(NewWorkerPool(2, testLogger()), nil, testLogger())
	c.Set(NewDataset("test", time.Now(), testEntries()))

	p, ok := c.Lookup(context.Background(), 44713)
	if !ok {
		t.Fatal("Lookup(44713) missed")
	}
	if p.Name != "STARLINK-1007" {
		t.Errorf("Name = %q", p.Name)
	}
	if _, ok := c.Lookup(context.Background(), 12345); ok {
		t.Error("Lookup(12345) hit")
	}
}

// TestCatalogConcurrentReads races readers against a dataset swap; the race
// detector flags unsafe access.
func TestCatalogConcurrentReads(t *testing.T) {
	c := NewCatalog(NewWorkerPool(2, testLogger()), nil, testLogger())
	c.Set(NewDataset("test", time.Now(), testEntries()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if len(c.Presets(context.Background())) == 0 {
					t.Error("empty preset list")
					return
				}
			}
		}()
	}
	c.Set(NewDataset("test", time.Now().Add(time.Minute), testEntries()))
	wg.Wait()
}

func TestCatalogTryLock(t *testing.T) {
	c := NewCatalog(NewWorkerPool(1, testLogger()), nil, testLogger())
	if !c.TryLock() {
		t.Fatal("TryLock on an idle catalog failed")
	}
	if c.TryLock() {
		t.Error("TryLock succeeded while held")
	}
	c.Unlock()
}
