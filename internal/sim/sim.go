// Package sim owns the live orbit and advances it in real time.
//
// A Simulation holds one (Geometry, CentralBody, State) tuple behind a mutex.
// Tick advances it and publishes an immutable Frame through an atomic
// pointer; HTTP, SSE, and WebSocket readers only ever see Frames. Apply
// builds a complete replacement tuple outside the lock and swaps it in with
// one assignment, so a reader never observes a new geometry with an old
// state.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nik312123/Orbits/internal/history"
	"github.com/nik312123/Orbits/internal/metrics"
	"github.com/nik312123/Orbits/internal/orbit"
	"github.com/nik312123/Orbits/internal/tracing"
)

// ErrIntersects is returned when candidate parameters would carry the
// orbiter's disk into the central body's disk.
var ErrIntersects = errors.New("orbit would intersect the central body")

// Params are the user-facing orbit settings.
type Params struct {
	RadiusOne float64 `json:"radius_one"` // meters
	RadiusTwo float64 `json:"radius_two"` // meters
	Mass      float64 `json:"mass"`       // kilograms
}

// Validate checks every field is finite and positive.
func (p Params) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"radius_one", p.RadiusOne},
		{"radius_two", p.RadiusTwo},
		{"mass", p.Mass},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return &orbit.InvalidParameterError{Name: f.name, Value: f.v, Reason: "must be finite"}
		}
		if f.v <= 0 {
			return &orbit.InvalidParameterError{Name: f.name, Value: f.v, Reason: "must be > 0"}
		}
	}
	return nil
}

// Config holds simulation configuration.
type Config struct {
	TickInterval time.Duration // Advance cadence (default: 2ms)
	Bounds       orbit.Bounds
	BodyDisk     orbit.Disk
	OrbiterDisk  orbit.Disk
	Defaults     Params
}

// DefaultConfig returns a 1366x690 viewport with a 30 px orbiter sprite.
func DefaultConfig() Config {
	return Config{
		TickInterval: orbit.BootstrapStep,
		Bounds:       orbit.Bounds{HalfWidth: 683, HalfHeight: 345, Clearance: 65},
		BodyDisk:     orbit.Disk{Radius: 25},
		OrbiterDisk:  orbit.Disk{Radius: 15},
		Defaults:     Params{RadiusOne: 20, RadiusTwo: 30, Mass: 5e14},
	}
}

// Clock supplies monotonic timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock (with its monotonic reading).
var SystemClock Clock = systemClock{}

// Frame is an immutable view of the orbit after one tick.
type Frame struct {
	// Generation increases on every Apply.
	Generation uint64            `json:"generation"`
	Params     Params            `json:"params"`
	Body       orbit.CentralBody `json:"body"`
	Snapshot   orbit.Snapshot    `json:"snapshot"`
	Geometry   *orbit.Geometry   `json:"-"`
}

// Simulation is the live orbit. Safe for concurrent use.
type Simulation struct {
	cfg    Config
	clock  Clock
	trail  *history.Trail
	logger *slog.Logger

	mu         sync.Mutex
	state      *orbit.State
	params     Params
	generation uint64

	frame  atomic.Pointer[Frame]
	ticked atomic.Bool
}

// New builds a simulation from cfg.Defaults. trail may be nil.
func New(cfg Config, clock Clock, trail *history.Trail, logger *slog.Logger) (*Simulation, error) {
	if clock == nil {
		clock = SystemClock
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = orbit.BootstrapStep
	}

	s := &Simulation{cfg: cfg, clock: clock, trail: trail, logger: logger}
	state, err := s.build(cfg.Defaults)
	if err != nil {
		return nil, fmt.Errorf("default orbit: %w", err)
	}

	s.mu.Lock()
	s.install(state, cfg.Defaults)
	s.mu.Unlock()

	logger.Info("simulation initialized",
		"tick_interval_ms", float64(cfg.TickInterval.Microseconds())/1000,
		"radius_one", cfg.Defaults.RadiusOne,
		"radius_two", cfg.Defaults.RadiusTwo,
		"mass", cfg.Defaults.Mass,
	)
	return s, nil
}

// Config returns the configuration the simulation was built with.
func (s *Simulation) Config() Config { return s.cfg }

// build validates p and constructs a fresh state. It does not touch live data.
func (s *Simulation) build(p Params) (*orbit.State, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	g, err := orbit.NewGeometry(p.RadiusOne, p.RadiusTwo, s.cfg.Bounds)
	if err != nil {
		return nil, err
	}
	body, err := orbit.NewCentralBody(p.Mass, g)
	if err != nil {
		return nil, err
	}
	if g.DisksOverlap(s.cfg.BodyDisk, s.cfg.OrbiterDisk) {
		return nil, fmt.Errorf("radii %g/%g: %w", p.RadiusOne, p.RadiusTwo, ErrIntersects)
	}
	return orbit.NewState(g, body), nil
}

// install swaps in a new tuple and publishes its first frame. Caller holds mu.
func (s *Simulation) install(state *orbit.State, p Params) *Frame {
	s.state = state
	s.params = p
	s.generation++
	if s.trail != nil {
		s.trail.Reset()
	}

	metrics.SetOrbitPeriod(state.Snapshot().Period)
	metrics.SetOrbitEccentricity(state.Geometry().Eccentricity())
	return s.publish()
}

// publish stores a frame for the current state. Caller holds mu.
func (s *Simulation) publish() *Frame {
	f := &Frame{
		Generation: s.generation,
		Params:     s.params,
		Body:       s.state.Body(),
		Snapshot:   s.state.Snapshot(),
		Geometry:   s.state.Geometry(),
	}
	s.frame.Store(f)
	return f
}

// Tick advances the orbit to now and publishes the resulting frame.
func (s *Simulation) Tick(now time.Time) *Frame {
	start := time.Now()

	s.mu.Lock()
	dt := s.state.Advance(now)
	f := s.publish()
	if s.trail != nil {
		s.trail.Record(f.Snapshot)
	}
	s.mu.Unlock()

	s.ticked.Store(true)
	metrics.RecordTick(time.Since(start), dt, f.Snapshot.Clamped)
	return f
}

// Run ticks every TickInterval until ctx is cancelled.
func (s *Simulation) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.logger.Info("simulation loop started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("simulation loop stopped")
			return
		case <-ticker.C:
			s.Tick(s.clock.Now())
		}
	}
}

// Validate reports whether p would put the orbiter through the central body,
// without modifying the live orbit.
func (s *Simulation) Validate(p Params) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	return orbit.WouldIntersect(p.RadiusOne, p.RadiusTwo, s.cfg.BodyDisk, s.cfg.OrbiterDisk, s.cfg.Bounds)
}

// Apply replaces the live orbit with one built from p. The previous orbit is
// kept when p is invalid or would intersect. The next Tick after a swap takes
// the bootstrap step.
func (s *Simulation) Apply(ctx context.Context, p Params) (*Frame, error) {
	_, span := tracing.Tracer().Start(ctx, "sim.apply")
	defer span.End()
	span.SetAttributes(
		attribute.Float64("orbit.radius_one", p.RadiusOne),
		attribute.Float64("orbit.radius_two", p.RadiusTwo),
		attribute.Float64("orbit.mass", p.Mass),
	)

	state, err := s.build(p)
	if err != nil {
		reason := "invalid"
		if errors.Is(err, ErrIntersects) {
			reason = "intersects"
		}
		metrics.IncSettingsRejected(reason)
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		s.logger.Info("orbit change rejected", "reason", reason, "error", err)
		return nil, err
	}

	s.mu.Lock()
	f := s.install(state, p)
	s.mu.Unlock()

	metrics.IncOrbitSwaps()
	span.SetAttributes(attribute.Int64("orbit.generation", int64(f.Generation)))
	s.logger.Info("orbit applied",
		"generation", f.Generation,
		"radius_one", p.RadiusOne,
		"radius_two", p.RadiusTwo,
		"mass", p.Mass,
		"period_seconds", f.Snapshot.Period,
	)
	return f, nil
}

// Latest returns the most recently published frame. Never nil.
func (s *Simulation) Latest() *Frame {
	return s.frame.Load()
}

// Ready reports whether the loop has ticked at least once.
func (s *Simulation) Ready() bool {
	return s.ticked.Load()
}

// Recent returns up to count trail samples ending at the latest frame,
// oldest first. Nil when no trail is configured.
func (s *Simulation) Recent(count int) []orbit.Snapshot {
	if s.trail == nil {
		return nil
	}
	return s.trail.Recent(s.Latest().Snapshot.Time, count)
}

// Profile samples the live orbit at n angles.
func (s *Simulation) Profile(n int) orbit.Profile {
	f := s.Latest()
	return orbit.NewProfile(f.Geometry, f.Body, n)
}

// TrailStats reports the trail's statistics. ok is false when no trail is
// configured.
func (s *Simulation) TrailStats() (stats history.Stats, ok bool) {
	if s.trail == nil {
		return history.Stats{}, false
	}
	return s.trail.Stats(), true
}
