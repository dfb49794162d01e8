// Package config loads service configuration through viper: built-in
// defaults, an optional config file named by ORBITS_CONFIG, and ORBITS_*
// environment variables (key "stream.max_trail" reads ORBITS_STREAM_MAX_TRAIL).
// Invalid values log a warning and fall back to the default.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nik312123/Orbits/internal/auth"
	"github.com/nik312123/Orbits/internal/history"
	"github.com/nik312123/Orbits/internal/live"
	"github.com/nik312123/Orbits/internal/orbit"
	"github.com/nik312123/Orbits/internal/preset"
	"github.com/nik312123/Orbits/internal/sim"
	"github.com/nik312123/Orbits/internal/stream"
	"github.com/nik312123/Orbits/internal/tracing"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "ORBITS"

// Config is the full service configuration.
type Config struct {
	HTTPAddr   string
	LogLevel   slog.Level
	TrustProxy bool

	Auth    auth.Config
	Sim     sim.Config
	History history.Config
	Stream  stream.Config
	Live    live.Config
	Tracing tracing.Config

	Preset                preset.Config
	PresetRefreshInterval time.Duration
}

func setDefaults(v *viper.Viper) {
	simDefaults := sim.DefaultConfig()
	streamDefaults := stream.DefaultConfig()
	liveDefaults := live.DefaultConfig()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.trust_proxy", false)
	v.SetDefault("log.level", "info")

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token", "")

	v.SetDefault("sim.tick_interval", simDefaults.TickInterval.String())
	v.SetDefault("sim.width", 2*simDefaults.Bounds.HalfWidth)
	v.SetDefault("sim.height", 2*simDefaults.Bounds.HalfHeight)
	v.SetDefault("sim.clearance", simDefaults.Bounds.Clearance)
	v.SetDefault("sim.body_radius", simDefaults.BodyDisk.Radius)
	v.SetDefault("sim.orbiter_radius", simDefaults.OrbiterDisk.Radius)
	v.SetDefault("sim.radius_one", simDefaults.Defaults.RadiusOne)
	v.SetDefault("sim.radius_two", simDefaults.Defaults.RadiusTwo)
	v.SetDefault("sim.mass", simDefaults.Defaults.Mass)

	v.SetDefault("history.step", "10ms")
	v.SetDefault("history.window", "5s")

	v.SetDefault("stream.max_concurrent_per_ip", streamDefaults.MaxConcurrentPerIP)
	v.SetDefault("stream.max_concurrent", streamDefaults.MaxConcurrent)
	v.SetDefault("stream.keepalive_interval", streamDefaults.KeepaliveInterval.String())
	v.SetDefault("stream.default_interval", streamDefaults.DefaultInterval.String())
	v.SetDefault("stream.max_trail", streamDefaults.MaxTrail)

	v.SetDefault("live.frame_interval", liveDefaults.FrameInterval.String())
	v.SetDefault("live.max_clients", liveDefaults.MaxClients)
	v.SetDefault("live.max_per_ip", liveDefaults.MaxPerIP)
	v.SetDefault("live.send_buffer", liveDefaults.SendBuffer)
	v.SetDefault("live.allowed_origins", "")

	v.SetDefault("preset.enable_fetch", true)
	v.SetDefault("preset.source_url", preset.DefaultSourceURL)
	v.SetDefault("preset.extra_urls", "")
	v.SetDefault("preset.max_age", "24h")
	v.SetDefault("preset.refresh_interval", "10m")
	v.SetDefault("preset.workers", runtime.NumCPU())
	v.SetDefault("preset.cache_backend", "disk")
	v.SetDefault("preset.cache_dir", "/tmp/orbits/tle")
	v.SetDefault("preset.max_files", 5)
	v.SetDefault("preset.memcache_servers", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "orbits")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.pretty", false)
}

// Load reads configuration from defaults, the file named by ORBITS_CONFIG
// (if set), and the environment.
func Load(logger *slog.Logger) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
		logger.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return fromViper(v, logger)
}

func fromViper(v *viper.Viper, logger *slog.Logger) (Config, error) {
	l := loader{v: v, logger: logger}
	var cfg Config

	cfg.HTTPAddr = v.GetString("http.addr")
	cfg.TrustProxy = l.boolean("http.trust_proxy")
	cfg.LogLevel = l.level("log.level")

	authCfg, err := l.auth()
	if err != nil {
		return cfg, err
	}
	cfg.Auth = authCfg

	cfg.Sim = sim.Config{
		TickInterval: l.duration("sim.tick_interval", time.Millisecond),
		Bounds: orbit.Bounds{
			HalfWidth:  l.positive("sim.width") / 2,
			HalfHeight: l.positive("sim.height") / 2,
			Clearance:  l.nonNegative("sim.clearance"),
		},
		BodyDisk:    orbit.Disk{Radius: l.nonNegative("sim.body_radius")},
		OrbiterDisk: orbit.Disk{Radius: l.nonNegative("sim.orbiter_radius")},
		Defaults: sim.Params{
			RadiusOne: l.positive("sim.radius_one"),
			RadiusTwo: l.positive("sim.radius_two"),
			Mass:      l.positive("sim.mass"),
		},
	}

	cfg.History = history.Config{
		Step:   l.duration("history.step", time.Millisecond),
		Window: l.duration("history.window", time.Millisecond),
	}

	cfg.Stream = stream.Config{
		MaxConcurrentPerIP: l.integer("stream.max_concurrent_per_ip", 1),
		MaxConcurrent:      l.integer("stream.max_concurrent", 1),
		KeepaliveInterval:  l.duration("stream.keepalive_interval", time.Second),
		DefaultInterval:    l.duration("stream.default_interval", 10*time.Millisecond),
		MaxTrail:           l.integer("stream.max_trail", 1),
		TrustProxy:         cfg.TrustProxy,
	}

	cfg.Live = live.Config{
		FrameInterval:  l.duration("live.frame_interval", 10*time.Millisecond),
		MaxClients:     l.integer("live.max_clients", 1),
		MaxPerIP:       l.integer("live.max_per_ip", 1),
		SendBuffer:     l.integer("live.send_buffer", 1),
		AllowedOrigins: l.list("live.allowed_origins"),
		TrustProxy:     cfg.TrustProxy,
	}
	if cfg.Auth.Enabled {
		cfg.Live.AuthToken = cfg.Auth.Token
	}

	cfg.Preset = preset.Config{
		EnableFetch:     l.boolean("preset.enable_fetch"),
		SourceURL:       v.GetString("preset.source_url"),
		ExtraSourceURLs: l.list("preset.extra_urls"),
		MaxAge:          l.duration("preset.max_age", 0),
		Workers:         l.integer("preset.workers", 1),
		CacheBackend:    strings.ToLower(v.GetString("preset.cache_backend")),
		CacheDir:        v.GetString("preset.cache_dir"),
		MaxFiles:        l.integer("preset.max_files", 1),
		MemcacheServers: l.list("preset.memcache_servers"),
	}
	cfg.PresetRefreshInterval = l.duration("preset.refresh_interval", time.Second)
	if b := cfg.Preset.CacheBackend; b != "disk" && b != "memcache" {
		logger.Warn("invalid preset.cache_backend value, using default", "value", b, "default", "disk")
		cfg.Preset.CacheBackend = "disk"
	}

	cfg.Tracing = tracing.Config{
		Enabled:     l.boolean("tracing.enabled"),
		ServiceName: v.GetString("tracing.service_name"),
		SampleRatio: l.ratio("tracing.sample_ratio"),
		Pretty:      l.boolean("tracing.pretty"),
	}

	return cfg, nil
}

// loader reads typed values, warning and falling back to the registered
// default when a value does not parse or is out of range.
type loader struct {
	v      *viper.Viper
	logger *slog.Logger
}

func (l loader) raw(key string) string {
	return strings.TrimSpace(fmt.Sprint(l.v.Get(key)))
}

func (l loader) fallback(key string) any {
	d := viper.New()
	setDefaults(d)
	return d.Get(key)
}

func (l loader) warn(key, value string) {
	l.logger.Warn("invalid "+key+" value, using default", "value", value, "default", l.fallback(key))
}

func (l loader) auth() (auth.Config, error) {
	var cfg auth.Config
	enabled, err := strconv.ParseBool(l.raw("auth.enabled"))
	if err != nil {
		return cfg, errors.New("auth.enabled must be a boolean value (true/false/1/0)")
	}
	cfg.Enabled = enabled
	if cfg.Enabled {
		cfg.Token = l.v.GetString("auth.token")
		if cfg.Token == "" {
			return cfg, errors.New("auth.token is required when auth is enabled")
		}
		l.logger.Info("auth enabled")
	}
	return cfg, nil
}

func (l loader) boolean(key string) bool {
	s := l.raw(key)
	b, err := strconv.ParseBool(s)
	if err != nil {
		l.warn(key, s)
		b, _ = strconv.ParseBool(fmt.Sprint(l.fallback(key)))
	}
	return b
}

func (l loader) integer(key string, min int) int {
	s := l.raw(key)
	n, err := strconv.Atoi(s)
	if err != nil || n < min {
		l.warn(key, s)
		n, _ = strconv.Atoi(fmt.Sprint(l.fallback(key)))
	}
	return n
}

func (l loader) float(key string, ok func(float64) bool) float64 {
	s := l.raw(key)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !ok(f) {
		l.warn(key, s)
		f, _ = strconv.ParseFloat(fmt.Sprint(l.fallback(key)), 64)
	}
	return f
}

func (l loader) positive(key string) float64 {
	return l.float(key, func(f float64) bool { return f > 0 && !math.IsInf(f, 0) })
}

func (l loader) nonNegative(key string) float64 {
	return l.float(key, func(f float64) bool { return f >= 0 && !math.IsInf(f, 0) })
}

func (l loader) ratio(key string) float64 {
	return l.float(key, func(f float64) bool { return f >= 0 && f <= 1 })
}

// duration accepts Go duration strings ("30s") or bare integers in seconds.
func (l loader) duration(key string, min time.Duration) time.Duration {
	s := l.raw(key)
	d, err := parseDuration(s)
	if err != nil || d < min {
		l.warn(key, s)
		d, _ = parseDuration(fmt.Sprint(l.fallback(key)))
	}
	return d
}

func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

func (l loader) level(key string) slog.Level {
	s := l.raw(key)
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		l.warn(key, s)
		return slog.LevelInfo
	}
	return lvl
}

// list accepts a comma-separated string (environment) or a list (file).
func (l loader) list(key string) []string {
	var items []string
	switch val := l.v.Get(key).(type) {
	case []string:
		items = val
	case []any:
		for _, it := range val {
			items = append(items, fmt.Sprint(it))
		}
	default:
		items = strings.Split(fmt.Sprint(val), ",")
	}

	var out []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}
