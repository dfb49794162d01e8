package preset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// ErrCacheEmpty is returned by LoadLatest when nothing has been cached yet.
var ErrCacheEmpty = errors.New("no cached TLE data")

// Cache persists raw TLE data between restarts.
type Cache interface {
	Write(data []byte, ts time.Time) error
	LoadLatest() ([]byte, time.Time, error)
}

// DiskCache manages TLE data files on disk.
type DiskCache struct {
	dir      string
	maxFiles int
}

// NewDiskCache creates a DiskCache that stores files in dir and keeps at most
// maxFiles.
func NewDiskCache(dir string, maxFiles int) *DiskCache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &DiskCache{
		dir:      dir,
		maxFiles: maxFiles,
	}
}

// Write saves data to a timestamped file and prunes old files beyond maxFiles.
func (c *DiskCache) Write(data []byte, ts time.Time) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	path := filepath.Join(c.dir, fmt.Sprintf("tle_%d.txt", ts.Unix()))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return c.prune()
}

// LoadLatest reads the newest cache file by timestamp in the filename.
func (c *DiskCache) LoadLatest() ([]byte, time.Time, error) {
	files, err := c.listFiles()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(files) == 0 {
		return nil, time.Time{}, ErrCacheEmpty
	}

	// Sorted oldest first.
	latest := files[len(files)-1]
	data, err := os.ReadFile(filepath.Join(c.dir, latest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}

	return data, latest.ts, nil
}

type cacheFile struct {
	name string
	ts   time.Time
}

func (c *DiskCache) listFiles() ([]cacheFile, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var files []cacheFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		tsStr, ok := strings.CutPrefix(name, "tle_")
		if !ok {
			continue
		}
		tsStr, ok = strings.CutSuffix(tsStr, ".txt")
		if !ok {
			continue
		}
		unix, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, cacheFile{name: name, ts: time.Unix(unix, 0)})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts.Before(files[j].ts)
	})

	return files, nil
}

func (c *DiskCache) prune() error {
	files, err := c.listFiles()
	if err != nil {
		return err
	}
	if len(files) <= c.maxFiles {
		return nil
	}

	for _, f := range files[:len(files)-c.maxFiles] {
		if err := os.Remove(filepath.Join(c.dir, f.name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", f.name, err)
		}
	}
	return nil
}

// MemcacheCache keeps the latest TLE data in memcached so several service
// instances can share one fetch.
type MemcacheCache struct {
	client     *memcache.Client
	prefix     string
	expiration time.Duration
}

// NewMemcacheCache creates a cache backed by the given memcached servers.
func NewMemcacheCache(servers []string, prefix string, expiration time.Duration) *MemcacheCache {
	client := memcache.New(servers...)
	client.Timeout = 2 * time.Second
	if prefix == "" {
		prefix = "orbits:tle:"
	}
	return &MemcacheCache{client: client, prefix: prefix, expiration: expiration}
}

func (c *MemcacheCache) dataKey() string { return c.prefix + "data" }
func (c *MemcacheCache) tsKey() string   { return c.prefix + "fetched_at" }

// Write stores data and its timestamp. Memcached's default 1 MB item limit
// applies.
func (c *MemcacheCache) Write(data []byte, ts time.Time) error {
	exp := int32(c.expiration / time.Second)
	if err := c.client.Set(&memcache.Item{Key: c.dataKey(), Value: data, Expiration: exp}); err != nil {
		return fmt.Errorf("memcache set %s: %w", c.dataKey(), err)
	}
	stamp := []byte(strconv.FormatInt(ts.Unix(), 10))
	if err := c.client.Set(&memcache.Item{Key: c.tsKey(), Value: stamp, Expiration: exp}); err != nil {
		return fmt.Errorf("memcache set %s: %w", c.tsKey(), err)
	}
	return nil
}

// LoadLatest reads the cached data and timestamp.
func (c *MemcacheCache) LoadLatest() ([]byte, time.Time, error) {
	stamp, err := c.client.Get(c.tsKey())
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, time.Time{}, ErrCacheEmpty
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("memcache get %s: %w", c.tsKey(), err)
	}
	unix, err := strconv.ParseInt(string(stamp.Value), 10, 64)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("memcache %s holds %q: %w", c.tsKey(), stamp.Value, err)
	}

	item, err := c.client.Get(c.dataKey())
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, time.Time{}, ErrCacheEmpty
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("memcache get %s: %w", c.dataKey(), err)
	}
	return item.Value, time.Unix(unix, 0), nil
}
