package orbit

import (
	"math"
	"time"
)

const twoPi = 2 * math.Pi

// BootstrapStep is the time step taken by the first Advance after
// construction, when no earlier sample exists to measure against. It matches
// the nominal tick cadence of the host loop.
const BootstrapStep = 2 * time.Millisecond

// State is the orbiting body's position and derived quantities. Angles are
// measured from +x at the right focus (the central body), counterclockwise on
// screen. A State is mutated only by Advance and is not safe for concurrent
// use; hosts publish Snapshots instead.
type State struct {
	geometry *Geometry
	body     CentralBody

	angle        float64
	visualRadius float64
	radius       float64

	velocity           float64
	transverseVelocity float64
	radialVelocity     float64
	periapsis          float64
	apoapsis           float64
	period             float64
	clamped            bool

	// nil until the first Advance.
	lastSample *time.Time
}

// NewState creates the orbiter at angle 0 (periapsis) with its derived
// quantities computed. It panics if g does not satisfy the Geometry
// invariants or the body has no mass: both are rejected earlier by
// NewGeometry and NewCentralBody.
func NewState(g *Geometry, body CentralBody) *State {
	if !g.valid() {
		panic("orbit: NewState called with invalid geometry")
	}
	if !(body.Mass > 0) || math.IsInf(body.Mass, 0) {
		panic("orbit: NewState called with invalid central body mass")
	}
	s := &State{geometry: g, body: body}
	s.recompute()
	return s
}

// Geometry returns the ellipse the state moves on.
func (s *State) Geometry() *Geometry { return s.geometry }

// Body returns the central body.
func (s *State) Body() CentralBody { return s.body }

// Angle returns the current angle in [0, 2π).
func (s *State) Angle() float64 { return s.angle }

// Radius returns the current focus distance in meters.
func (s *State) Radius() float64 { return s.radius }

// VisualRadiusAt returns the pixel distance from the right focus to the
// ellipse at angle theta. This is the polar ellipse ab/√(a²sin²θ+b²cos²θ)
// re-derived with its origin moved from the geometric center to the focus:
//
//	r = [2hb²cosθ + √2ab√(a²(1−cos2θ) + b²(1+cos2θ) + h²(cos2θ−1))] / [2(a²sin²θ + b²cos²θ)]
//
// with h = −c the x offset of the center seen from the focus. Since
// a² − c² = b² the radicand is 2b² and the expression reduces to
// b²/(a + c·cosθ), which is what is evaluated. For cosθ < 0 the denominator
// is rewritten as a(1+cosθ) + (a−c)(−cosθ) with a−c = b²/(a+c), so neither
// form subtracts nearly equal terms when c approaches a.
func (s *State) VisualRadiusAt(theta float64) float64 {
	g := s.geometry
	a, b, c := g.radiusMajorVisual, g.radiusMinorVisual, g.focusOffset

	cos := math.Cos(theta)
	var den float64
	if cos >= 0 {
		den = a + c*cos
	} else {
		half := math.Cos(theta / 2)
		den = a*2*half*half - b*b/(a+c)*cos
	}
	return b * b / den
}

// AngularVelocity returns dθ/dt in rad/s at the current radius, from the
// conserved specific angular momentum b·√(GM/a).
func (s *State) AngularVelocity() float64 {
	g := s.geometry
	return g.radiusMinor / (s.radius * s.radius) * math.Sqrt(s.body.Mu()/g.radiusMajor)
}

// Advance moves the orbiter forward to now and returns the step it applied.
// The first call after construction applies BootstrapStep; later calls apply
// the monotonic time elapsed since the previous call, so the orbit tracks the
// wall clock regardless of tick jitter. A clock that goes backwards yields a
// zero step.
func (s *State) Advance(now time.Time) time.Duration {
	var dt time.Duration
	if s.lastSample == nil {
		dt = BootstrapStep
	} else {
		dt = now.Sub(*s.lastSample)
		if dt < 0 {
			dt = 0
		}
	}

	s.angle = wrapAngle(s.angle + dt.Seconds()*s.AngularVelocity())
	s.recompute()

	s.lastSample = &now
	return dt
}

// wrapAngle brings an angle that grew by less than a turn back into [0, 2π)
// with one subtraction. Steps larger than a full turn (a stalled host, a
// debugger pause) fall back to a true modulo.
func wrapAngle(a float64) float64 {
	if a >= twoPi {
		a -= twoPi
		if a >= twoPi {
			a = math.Mod(a, twoPi)
		}
	}
	return a
}

func (s *State) recompute() {
	g := s.geometry
	mu := s.body.Mu()

	s.visualRadius = s.VisualRadiusAt(s.angle)
	s.radius = g.ToMeters(s.visualRadius)

	// Vis-viva.
	vSq := mu * (2/s.radius - 1/g.radiusMajor)
	s.velocity = math.Sqrt(math.Max(0, vSq))
	s.transverseVelocity = s.AngularVelocity() * s.radius

	radialSq := s.velocity*s.velocity - s.transverseVelocity*s.transverseVelocity
	s.clamped = radialSq < 0
	if s.clamped {
		radialSq = 0
	}
	s.radialVelocity = math.Sqrt(radialSq)

	s.periapsis = g.ToMeters(g.PeriapsisVisual())
	s.apoapsis = g.ToMeters(s.VisualRadiusAt(math.Pi))
	s.period = twoPi * math.Sqrt(g.radiusMajor*g.radiusMajor*g.radiusMajor/mu)
}

// Snapshot is an immutable copy of a State at one instant.
type Snapshot struct {
	Time         time.Time `json:"time"`
	Angle        float64   `json:"angle"`
	VisualRadius float64   `json:"visual_radius"`
	// Position is the orbiter's pixel offset from the central body's center.
	Position Point `json:"position"`

	Radius             float64 `json:"radius"`
	Velocity           float64 `json:"velocity"`
	TransverseVelocity float64 `json:"transverse_velocity"`
	RadialVelocity     float64 `json:"radial_velocity"`
	AngularVelocity    float64 `json:"angular_velocity"`
	Periapsis          float64 `json:"periapsis"`
	Apoapsis           float64 `json:"apoapsis"`
	Period             float64 `json:"period"`

	// Clamped is set when rounding made v² - vt² negative and the radial
	// velocity was forced to zero.
	Clamped bool `json:"clamped,omitempty"`
}

// Snapshot returns the current state. Time is zero before the first Advance.
func (s *State) Snapshot() Snapshot {
	var ts time.Time
	if s.lastSample != nil {
		ts = *s.lastSample
	}
	sin, cos := math.Sincos(s.angle)
	return Snapshot{
		Time:               ts,
		Angle:              s.angle,
		VisualRadius:       s.visualRadius,
		Position:           Point{X: s.visualRadius * cos, Y: -s.visualRadius * sin},
		Radius:             s.radius,
		Velocity:           s.velocity,
		TransverseVelocity: s.transverseVelocity,
		RadialVelocity:     s.radialVelocity,
		AngularVelocity:    s.AngularVelocity(),
		Periapsis:          s.periapsis,
		Apoapsis:           s.apoapsis,
		Period:             s.period,
		Clamped:            s.clamped,
	}
}

// Absolute returns the orbiter's display position given the body center.
func (sn Snapshot) Absolute(center Point) Point {
	return Point{X: center.X + sn.Position.X, Y: center.Y + sn.Position.Y}
}
