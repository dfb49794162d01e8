package passes

import (
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/nik312123/Orbits/internal/orbit"
)

var epoch = time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)

func testOrbit(angle float64) Orbit {
	// a=30 m, b=20 m around 5e14 kg.
	return Orbit{
		Eccentricity: math.Sqrt(1 - 4.0/9.0),
		SemiMajor:    30,
		Mu:           orbit.GravitationalConstant * 5e14,
		Angle:        angle,
		At:           epoch,
	}
}

func TestKeplerRoundTrip(t *testing.T) {
	for _, e := range []float64{0, 0.1, 0.5, 0.745, 0.95} {
		for _, theta := range []float64{0, 0.3, 1.5, math.Pi, 4, 6.2} {
			E := eccentricFromTrue(theta, e)
			M := meanFromEccentric(E, e)
			back := trueFromEccentric(eccentricFromMean(M, e), e)
			d := math.Abs(back - theta)
			d = math.Min(d, twoPi-d)
			if d > 1e-9 {
				t.Errorf("e=%g θ=%g: round trip gave %g", e, theta, back)
			}
		}
	}
}

func TestPredictFromPeriapsis(t *testing.T) {
	o := testOrbit(0)
	got, err := Predict(o, 4)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}

	period := twoPi / o.MeanMotion()
	want := []struct {
		kind Kind
		in   float64
	}{
		{Periapsis, 0},
		{Apoapsis, period / 2},
		{Periapsis, period},
		{Apoapsis, 1.5 * period},
	}
	for i, w := range want {
		if got[i].Kind != w.kind {
			t.Errorf("[%d] kind = %s, want %s", i, got[i].Kind, w.kind)
		}
		if !scalar.EqualWithinAbsOrRel(got[i].InSeconds, w.in, 1e-9, 1e-12) {
			t.Errorf("[%d] in = %g s, want %g s", i, got[i].InSeconds, w.in)
		}
	}

	a, e := o.SemiMajor, o.Eccentricity
	if !scalar.EqualWithinAbsOrRel(got[0].Radius, a*(1-e), 1e-12, 1e-12) {
		t.Errorf("periapsis radius = %g, want %g", got[0].Radius, a*(1-e))
	}
	if got[0].Velocity <= got[1].Velocity {
		t.Errorf("periapsis speed %g <= apoapsis speed %g", got[0].Velocity, got[1].Velocity)
	}
}

func TestPredictMidOrbitOrdering(t *testing.T) {
	// Just past apoapsis the next event is periapsis.
	got, err := Predict(testOrbit(math.Pi+0.1), 3)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if got[0].Kind != Periapsis || got[1].Kind != Apoapsis || got[2].Kind != Periapsis {
		t.Errorf("kinds = %s, %s, %s", got[0].Kind, got[1].Kind, got[2].Kind)
	}
	for i := 1; i < len(got); i++ {
		if !got[i].Time.After(got[i-1].Time) {
			t.Errorf("passages out of order at %d", i)
		}
	}
	// Far side of the ellipse is slow: the remaining arc to periapsis takes
	// under half a period.
	if half := (twoPi / testOrbit(0).MeanMotion()) / 2; got[0].InSeconds >= half {
		t.Errorf("time to periapsis %g >= half period %g", got[0].InSeconds, half)
	}
}

func TestPredictCircleHasNoApsides(t *testing.T) {
	o := testOrbit(1)
	o.Eccentricity = 0
	got, err := Predict(o, 5)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("circle produced %d passages", len(got))
	}
}

func TestPredictInvalid(t *testing.T) {
	bad := []Orbit{
		{Eccentricity: 1, SemiMajor: 30, Mu: 1, At: epoch},
		{Eccentricity: 0.5, SemiMajor: 0, Mu: 1, At: epoch},
		{Eccentricity: 0.5, SemiMajor: 30, Mu: 0, At: epoch},
		{Eccentricity: 0.5, SemiMajor: 30, Mu: 1, Angle: math.NaN(), At: epoch},
	}
	for _, o := range bad {
		if _, err := Predict(o, 1); err == nil {
			t.Errorf("Predict(%+v) succeeded, want error", o)
		}
	}
	for _, n := range []int{0, MaxPassages + 1} {
		if _, err := Predict(testOrbit(0), n); err == nil {
			t.Errorf("Predict(count=%d) succeeded, want error", n)
		}
	}
}

func TestAngleAt(t *testing.T) {
	o := testOrbit(0)
	period := o.Period()

	half, err := AngleAt(o, epoch.Add(period/2))
	if err != nil {
		t.Fatalf("AngleAt failed: %v", err)
	}
	if math.Abs(half-math.Pi) > 1e-6 {
		t.Errorf("angle after half a period = %g, want π", half)
	}

	full, _ := AngleAt(o, epoch.Add(period))
	if d := math.Min(full, twoPi-full); d > 1e-6 {
		t.Errorf("angle after a full period = %g, want 0", full)
	}
}

// TestAngleAtMatchesIntegration compares the closed form against the
// tick-by-tick integrator over a quarter period.
func TestAngleAtMatchesIntegration(t *testing.T) {
	g, err := orbit.NewGeometry(30, 20, orbit.Bounds{HalfWidth: 683, HalfHeight: 345, Clearance: 65})
	if err != nil {
		t.Fatalf("NewGeometry failed: %v", err)
	}
	body, err := orbit.NewCentralBody(5e14, g)
	if err != nil {
		t.Fatalf("NewCentralBody failed: %v", err)
	}
	s := orbit.NewState(g, body)

	s.Advance(epoch)
	o := FromSnapshot(g, body, s.Snapshot())

	quarter := o.Period() / 4
	const steps = 5000
	for i := 1; i <= steps; i++ {
		s.Advance(epoch.Add(quarter * time.Duration(i) / steps))
	}

	want, err := AngleAt(o, s.Snapshot().Time)
	if err != nil {
		t.Fatalf("AngleAt failed: %v", err)
	}
	d := math.Abs(s.Angle() - want)
	d = math.Min(d, twoPi-d)
	if d > 1e-2 {
		t.Errorf("integrated angle %g vs Kepler %g (off by %g)", s.Angle(), want, d)
	}
}
