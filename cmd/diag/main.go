// Command diag prints an orbit's geometry, a table of the model sampled by
// angle, and a tick-by-tick dump of the orbiter's state, comparing the
// integrated angle with the closed-form Kepler solution.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/nik312123/Orbits/internal/orbit"
	"github.com/nik312123/Orbits/internal/passes"
	"github.com/nik312123/Orbits/internal/sim"
)

func main() {
	defaults := sim.DefaultConfig()

	r1 := flag.Float64("r1", defaults.Defaults.RadiusOne, "first orbit radius (m)")
	r2 := flag.Float64("r2", defaults.Defaults.RadiusTwo, "second orbit radius (m)")
	mass := flag.Float64("mass", defaults.Defaults.Mass, "central body mass (kg)")
	width := flag.Float64("width", 2*defaults.Bounds.HalfWidth, "viewport width (px)")
	height := flag.Float64("height", 2*defaults.Bounds.HalfHeight, "viewport height (px)")
	clearance := flag.Float64("clearance", defaults.Bounds.Clearance, "edge clearance (px)")
	samples := flag.Int("samples", 12, "angles in the profile table")
	ticks := flag.Int("ticks", 10, "ticks to simulate")
	dt := flag.Duration("dt", defaults.TickInterval, "time between ticks")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	bounds := orbit.Bounds{HalfWidth: *width / 2, HalfHeight: *height / 2, Clearance: *clearance}
	g, err := orbit.NewGeometry(*r1, *r2, bounds)
	if err != nil {
		fmt.Println("ERROR building geometry:", err)
		os.Exit(1)
	}
	body, err := orbit.NewCentralBody(*mass, g)
	if err != nil {
		fmt.Println("ERROR building central body:", err)
		os.Exit(1)
	}

	intersects, err := orbit.WouldIntersect(*r1, *r2, defaults.BodyDisk, defaults.OrbiterDisk, bounds)
	if err != nil {
		fmt.Println("ERROR checking intersection:", err)
		os.Exit(1)
	}

	fmt.Printf("Geometry\n")
	fmt.Printf("  axes:          a=%g m  b=%g m  e=%.6f\n", g.RadiusMajor(), g.RadiusMinor(), g.Eccentricity())
	fmt.Printf("  visual axes:   a=%.3f px  b=%.3f px  focus offset=%.3f px\n", g.RadiusMajorVisual(), g.RadiusMinorVisual(), g.FocusOffset())
	fmt.Printf("  ellipse rect:  %+v\n", g.Ellipse())
	fmt.Printf("  focus center:  %+v\n", g.FocusCenter())
	fmt.Printf("  mu:            %g m³/s²\n", body.Mu())
	fmt.Printf("  intersects:    %v (body disk %g px, orbiter disk %g px)\n\n", intersects, defaults.BodyDisk.Radius, defaults.OrbiterDisk.Radius)

	profile := orbit.NewProfile(g, body, *samples)
	fmt.Printf("Profile (%d samples, r in [%g, %g] m)\n", len(profile.Points), profile.MinRadius, profile.MaxRadius)
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "θ (deg)\tvisual r (px)\tr (m)\tv (m/s)\tvt (m/s)\tvr (m/s)\tω (rad/s)\t")
	for _, p := range profile.Points {
		fmt.Fprintf(tw, "%.2f\t%.3f\t%.6g\t%.6g\t%.6g\t%.6g\t%.6g\t\n",
			p.Angle*180/math.Pi, p.VisualRadius, p.Radius, p.Velocity, p.TransverseVelocity, p.RadialVelocity, p.AngularVelocity)
	}
	tw.Flush()
	fmt.Println()

	cfg := defaults
	cfg.Bounds = bounds
	cfg.Defaults = sim.Params{RadiusOne: *r1, RadiusTwo: *r2, Mass: *mass}
	clock := &stepClock{now: time.Unix(0, 0).UTC(), step: *dt}
	s, err := sim.New(cfg, clock, nil, logger)
	if err != nil {
		fmt.Println("ERROR building simulation:", err)
		os.Exit(1)
	}

	fmt.Printf("Ticks (%d × %v)\n", *ticks, *dt)
	tw = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "tick\tθ (rad)\tr (m)\tv (m/s)\tvt (m/s)\tvr (m/s)\tperiapsis (m)\tapoapsis (m)\tperiod (s)\tkepler θ\tdrift (rad)\t")
	var start passes.Orbit
	for i := 0; i < *ticks; i++ {
		f := s.Tick(clock.Now())
		sn := f.Snapshot
		if i == 0 {
			start = passes.FromSnapshot(f.Geometry, f.Body, sn)
		}
		kepler, err := passes.AngleAt(start, sn.Time)
		if err != nil {
			fmt.Println("ERROR solving Kepler:", err)
			os.Exit(1)
		}
		note := ""
		if sn.Clamped {
			note = " (clamped)"
		}
		fmt.Fprintf(tw, "%d\t%.9f\t%.6g\t%.6g\t%.6g\t%.6g%s\t%.6g\t%.6g\t%.6g\t%.9f\t%.3e\t\n",
			i, sn.Angle, sn.Radius, sn.Velocity, sn.TransverseVelocity, sn.RadialVelocity, note,
			sn.Periapsis, sn.Apoapsis, sn.Period, kepler, angleDiff(sn.Angle, kepler))
		clock.advance()
	}
	tw.Flush()
}

// stepClock is a clock that moves only when told to.
type stepClock struct {
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time { return c.now }
func (c *stepClock) advance()       { c.now = c.now.Add(c.step) }

// angleDiff returns a-b wrapped into (-π, π].
func angleDiff(a, b float64) float64 {
	d := math.Mod(a-b, 2*math.Pi)
	if d > math.Pi {
		d -= 2 * math.Pi
	} else if d <= -math.Pi {
		d += 2 * math.Pi
	}
	return d
}
