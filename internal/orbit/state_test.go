package orbit

import (
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

const testMass = 5e14

func testState(t *testing.T, r1, r2 float64) *State {
	t.Helper()
	g, err := NewGeometry(r1, r2, testBounds())
	if err != nil {
		t.Fatalf("NewGeometry(%g, %g) failed: %v", r1, r2, err)
	}
	body, err := NewCentralBody(testMass, g)
	if err != nil {
		t.Fatalf("NewCentralBody failed: %v", err)
	}
	return NewState(g, body)
}

// angleDistance returns the shortest distance between two angles.
func angleDistance(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), twoPi)
	return math.Min(d, twoPi-d)
}

func sampleAngles(n int) []float64 {
	return floats.Span(make([]float64, n+1), 0, twoPi)[:n]
}

// TestVisualRadiusApsides checks θ=0 and θ=π land on a-c and a+c.
func TestVisualRadiusApsides(t *testing.T) {
	s := testState(t, 30, 20)
	g := s.Geometry()

	peri := s.VisualRadiusAt(0)
	apo := s.VisualRadiusAt(math.Pi)
	if !scalar.EqualWithinAbsOrRel(peri, g.RadiusMajorVisual()-g.FocusOffset(), 1e-9, 1e-12) {
		t.Errorf("VisualRadiusAt(0) = %g, want a-c = %g", peri, g.RadiusMajorVisual()-g.FocusOffset())
	}
	if !scalar.EqualWithinAbsOrRel(apo, g.RadiusMajorVisual()+g.FocusOffset(), 1e-9, 1e-12) {
		t.Errorf("VisualRadiusAt(π) = %g, want a+c = %g", apo, g.RadiusMajorVisual()+g.FocusOffset())
	}
}

// TestVisualRadiusOnEllipse verifies every sampled point lies on the ellipse
// centered c to the left of the focus.
func TestVisualRadiusOnEllipse(t *testing.T) {
	for _, radii := range [][2]float64{{30, 20}, {20, 20}, {100, 3}, {6.8e6, 6.7e6}} {
		s := testState(t, radii[0], radii[1])
		g := s.Geometry()
		a, b, c := g.RadiusMajorVisual(), g.RadiusMinorVisual(), g.FocusOffset()

		for _, theta := range sampleAngles(720) {
			r := s.VisualRadiusAt(theta)
			x := r*math.Cos(theta) + c
			y := r * math.Sin(theta)
			got := x*x/(a*a) + y*y/(b*b)
			if math.Abs(got-1) > 1e-9 {
				t.Fatalf("radii %v θ=%g: point (%g, %g) off ellipse, x²/a²+y²/b² = %g", radii, theta, x, y, got)
			}
		}
	}
}

// TestRadiusBetweenApsides checks periapsis <= radius(θ) <= apoapsis.
func TestRadiusBetweenApsides(t *testing.T) {
	s := testState(t, 30, 20)
	snap := s.Snapshot()
	tol := 1e-9 * snap.Apoapsis

	for _, theta := range sampleAngles(3600) {
		r := s.Geometry().ToMeters(s.VisualRadiusAt(theta))
		if r < snap.Periapsis-tol || r > snap.Apoapsis+tol {
			t.Fatalf("θ=%g: radius %g outside [%g, %g]", theta, r, snap.Periapsis, snap.Apoapsis)
		}
	}
	if snap.Periapsis >= snap.Apoapsis {
		t.Errorf("periapsis %g >= apoapsis %g on an eccentric orbit", snap.Periapsis, snap.Apoapsis)
	}
}

// TestConservationLaws checks angular momentum, vis-viva, and the velocity
// decomposition at sampled angles.
func TestConservationLaws(t *testing.T) {
	s := testState(t, 30, 20)
	g := s.Geometry()
	mu := s.Body().Mu()
	wantH := g.RadiusMinor() * math.Sqrt(mu/g.RadiusMajor())

	profile := NewProfile(g, s.Body(), 1000)
	for _, p := range profile.Points {
		h := p.TransverseVelocity * p.Radius
		if !scalar.EqualWithinAbsOrRel(h, wantH, 1e-9, 1e-9) {
			t.Fatalf("θ=%g: vt·r = %g, want %g", p.Angle, h, wantH)
		}

		vSq := mu * (2/p.Radius - 1/g.RadiusMajor())
		if !scalar.EqualWithinAbsOrRel(p.Velocity*p.Velocity, vSq, 1e-9, 1e-9) {
			t.Fatalf("θ=%g: v² = %g, vis-viva gives %g", p.Angle, p.Velocity*p.Velocity, vSq)
		}

		sum := p.RadialVelocity*p.RadialVelocity + p.TransverseVelocity*p.TransverseVelocity
		if !scalar.EqualWithinAbsOrRel(sum, vSq, 1e-6, 1e-9) {
			t.Fatalf("θ=%g: vr²+vt² = %g, want %g", p.Angle, sum, vSq)
		}
	}
}

// TestRadialVelocityNeverNaN verifies the rounding guard at the apsides.
func TestRadialVelocityNeverNaN(t *testing.T) {
	for _, radii := range [][2]float64{{30, 20}, {1, 1000}, {7, 7}, {4.2e7, 4.19e7}} {
		s := testState(t, radii[0], radii[1])
		for _, theta := range []float64{0, math.Pi, math.Pi / 2, 3 * math.Pi / 2} {
			s.angle = theta
			s.recompute()
			snap := s.Snapshot()
			if math.IsNaN(snap.RadialVelocity) || snap.RadialVelocity < 0 {
				t.Errorf("radii %v θ=%g: radial velocity %g", radii, theta, snap.RadialVelocity)
			}
		}
	}
}

// TestAdvanceBootstrap checks the first step uses BootstrapStep rather than
// a measured difference.
func TestAdvanceBootstrap(t *testing.T) {
	s := testState(t, 30, 20)
	omega := s.AngularVelocity()

	now := time.Now()
	dt := s.Advance(now)
	if dt != BootstrapStep {
		t.Fatalf("first step = %v, want %v", dt, BootstrapStep)
	}
	want := BootstrapStep.Seconds() * omega
	if !scalar.EqualWithinAbsOrRel(s.Angle(), want, 1e-15, 1e-12) {
		t.Errorf("angle after bootstrap = %g, want %g", s.Angle(), want)
	}
	if !s.Snapshot().Time.Equal(now) {
		t.Errorf("snapshot time = %v, want %v", s.Snapshot().Time, now)
	}

	dt = s.Advance(now.Add(5 * time.Millisecond))
	if dt != 5*time.Millisecond {
		t.Errorf("second step = %v, want 5ms", dt)
	}
}

// TestAdvanceCircular advances a circular orbit twice, one second apart.
func TestAdvanceCircular(t *testing.T) {
	s := testState(t, 25, 25)
	start := time.Now()

	s.Advance(start)
	omega1 := s.AngularVelocity()
	radius1 := s.Radius()
	angle1 := s.Angle()

	s.Advance(start.Add(time.Second))
	omega2 := s.AngularVelocity()
	radius2 := s.Radius()

	if !scalar.EqualWithinAbsOrRel(omega1, omega2, 1e-12, 1e-12) {
		t.Errorf("angular velocity changed on a circle: %g -> %g", omega1, omega2)
	}
	if !scalar.EqualWithinAbsOrRel(radius1, radius2, 1e-12, 1e-12) {
		t.Errorf("radius changed on a circle: %g -> %g", radius1, radius2)
	}
	if got := angleDistance(s.Angle(), angle1+omega1); got > 1e-9 {
		t.Errorf("angle after 1s off by %g rad", got)
	}
}

// TestAdvanceOnePeriod steps through exactly one period and expects the
// angle to come back around.
func TestAdvanceOnePeriod(t *testing.T) {
	tests := []struct {
		name   string
		r1, r2 float64
		steps  int
		tol    float64
	}{
		{"circle", 20, 20, 1000, 1e-6},
		{"mild", 30, 28, 10000, 1e-4},
		{"eccentric", 30, 20, 20000, 1e-3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testState(t, tt.r1, tt.r2)
			period := s.Snapshot().Period

			base := time.Now()
			s.Advance(base)
			start := s.Angle()

			for i := 1; i <= tt.steps; i++ {
				offset := time.Duration(float64(i) / float64(tt.steps) * period * float64(time.Second))
				s.Advance(base.Add(offset))
				if a := s.Angle(); a < 0 || a >= twoPi {
					t.Fatalf("step %d: angle %g outside [0, 2π)", i, a)
				}
			}

			if d := angleDistance(s.Angle(), start); d > tt.tol {
				t.Errorf("after one period angle = %g, started at %g (off by %g)", s.Angle(), start, d)
			}
		})
	}
}

// TestAdvanceLargeStep verifies a step spanning many turns still wraps into
// [0, 2π).
func TestAdvanceLargeStep(t *testing.T) {
	s := testState(t, 25, 25)
	base := time.Now()
	s.Advance(base)
	before := s.Angle()
	omega := s.AngularVelocity()

	period := s.Snapshot().Period
	gap := time.Duration(7.25 * period * float64(time.Second))
	s.Advance(base.Add(gap))

	if a := s.Angle(); a < 0 || a >= twoPi {
		t.Fatalf("angle %g outside [0, 2π)", a)
	}
	want := math.Mod(before+gap.Seconds()*omega, twoPi)
	if d := angleDistance(s.Angle(), want); d > 1e-6 {
		t.Errorf("angle = %g, want %g", s.Angle(), want)
	}
}

// TestAdvanceClockBackwards treats a regressing clock as a zero step.
func TestAdvanceClockBackwards(t *testing.T) {
	s := testState(t, 30, 20)
	base := time.Now()
	s.Advance(base)
	before := s.Angle()

	if dt := s.Advance(base.Add(-time.Second)); dt != 0 {
		t.Errorf("step = %v, want 0", dt)
	}
	if s.Angle() != before {
		t.Errorf("angle moved from %g to %g on a backwards clock", before, s.Angle())
	}
}

func TestWrapAngle(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{1, 1},
		{twoPi, 0},
		{twoPi + 0.5, 0.5},
		{3*twoPi + 0.25, 0.25},
	}
	for _, tt := range tests {
		if got := wrapAngle(tt.in); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("wrapAngle(%g) = %g, want %g", tt.in, got, tt.want)
		}
	}
}

// TestPeriodKeplerThird checks the period against 2π√(a³/GM).
func TestPeriodKeplerThird(t *testing.T) {
	s := testState(t, 30, 20)
	want := 2 * math.Pi * math.Sqrt(30*30*30/(GravitationalConstant*testMass))
	if got := s.Snapshot().Period; !scalar.EqualWithinAbsOrRel(got, want, 1e-12, 1e-12) {
		t.Errorf("Period = %g, want %g", got, want)
	}
}

// TestSnapshotPosition checks the pixel offset convention (y up on screen).
func TestSnapshotPosition(t *testing.T) {
	s := testState(t, 30, 20)
	s.angle = math.Pi / 2
	s.recompute()
	snap := s.Snapshot()

	if math.Abs(snap.Position.X) > 1e-9 {
		t.Errorf("Position.X = %g at θ=π/2, want 0", snap.Position.X)
	}
	if !scalar.EqualWithinAbsOrRel(snap.Position.Y, -snap.VisualRadius, 1e-9, 1e-12) {
		t.Errorf("Position.Y = %g at θ=π/2, want %g", snap.Position.Y, -snap.VisualRadius)
	}

	abs := snap.Absolute(s.Body().Center)
	if abs.X != s.Body().Center.X+snap.Position.X || abs.Y != s.Body().Center.Y+snap.Position.Y {
		t.Errorf("Absolute = %+v, body %+v, offset %+v", abs, s.Body().Center, snap.Position)
	}
}

func TestNewStatePanicsOnInvalidGeometry(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil geometry")
		}
	}()
	NewState(nil, CentralBody{Mass: testMass})
}

// TestVisualRadiusMatchesShiftedPolarForm compares the reduced radius with
// the focus-shifted polar expression written out in full.
func TestVisualRadiusMatchesShiftedPolarForm(t *testing.T) {
	for _, radii := range [][2]float64{{30, 20}, {20, 20}, {100, 3}, {6.8e6, 6.7e6}} {
		s := testState(t, radii[0], radii[1])
		g := s.Geometry()
		a, b, h := g.RadiusMajorVisual(), g.RadiusMinorVisual(), -g.FocusOffset()

		for _, theta := range sampleAngles(360) {
			sin, cos := math.Sincos(theta)
			cos2 := math.Cos(2 * theta)
			radicand := a*a*(1-cos2) + b*b*(1+cos2) + h*h*(cos2-1)
			num := 2*h*b*b*cos + math.Sqrt2*a*b*math.Sqrt(math.Max(0, radicand))
			want := num / (2 * (a*a*sin*sin + b*b*cos*cos))

			if got := s.VisualRadiusAt(theta); !scalar.EqualWithinAbsOrRel(got, want, 1e-9, 1e-9) {
				t.Fatalf("radii %v θ=%g: VisualRadiusAt = %g, expanded form = %g", radii, theta, got, want)
			}
		}
	}
}

// TestNearParabolicOrbitKeepsPrecision builds an ellipse whose minor axis is
// a billionth of its major axis and checks the apsides stay positive and
// accurate.
func TestNearParabolicOrbitKeepsPrecision(t *testing.T) {
	const major, minor = 1e12, 1e3
	s := testState(t, major, minor)
	g := s.Geometry()

	c := math.Sqrt((major - minor) * (major + minor))
	wantPeri := minor * minor / (major + c)
	wantApo := major + c

	snap := s.Snapshot()
	if !(snap.Periapsis > 0) {
		t.Fatalf("Periapsis = %g, want > 0", snap.Periapsis)
	}
	if !scalar.EqualWithinAbsOrRel(snap.Periapsis, wantPeri, 0, 1e-9) {
		t.Errorf("Periapsis = %g, want %g", snap.Periapsis, wantPeri)
	}
	if !scalar.EqualWithinAbsOrRel(snap.Apoapsis, wantApo, 0, 1e-9) {
		t.Errorf("Apoapsis = %g, want %g", snap.Apoapsis, wantApo)
	}
	if !(g.PeriapsisVisual() > 0) {
		t.Errorf("PeriapsisVisual = %g, want > 0", g.PeriapsisVisual())
	}
	if !scalar.EqualWithinAbsOrRel(g.ToMeters(s.VisualRadiusAt(0)), wantPeri, 0, 1e-9) {
		t.Errorf("VisualRadiusAt(0) = %g m, want %g", g.ToMeters(s.VisualRadiusAt(0)), wantPeri)
	}

	for _, theta := range sampleAngles(720) {
		r := g.ToMeters(s.VisualRadiusAt(theta))
		if !(r >= wantPeri*(1-1e-9)) || !(r <= wantApo*(1+1e-9)) {
			t.Fatalf("θ=%g: radius %g outside [%g, %g]", theta, r, wantPeri, wantApo)
		}
	}

	start := time.Unix(0, 0)
	s.Advance(start)
	s.Advance(start.Add(time.Second))
	after := s.Snapshot()
	for name, v := range map[string]float64{
		"radius":              after.Radius,
		"velocity":            after.Velocity,
		"transverse_velocity": after.TransverseVelocity,
		"radial_velocity":     after.RadialVelocity,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			t.Errorf("%s = %g after advancing, want finite and >= 0", name, v)
		}
	}
	if after.Angle < 0 || after.Angle >= twoPi {
		t.Errorf("Angle = %g, want in [0, 2π)", after.Angle)
	}
}
