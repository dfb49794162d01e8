package orbit

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestNewProfile(t *testing.T) {
	s := testState(t, 30, 20)
	p := NewProfile(s.Geometry(), s.Body(), 360)

	if len(p.Points) != 360 {
		t.Fatalf("len(Points) = %d, want 360", len(p.Points))
	}
	if p.Points[0].Angle != 0 {
		t.Errorf("first angle = %g, want 0", p.Points[0].Angle)
	}
	if last := p.Points[len(p.Points)-1].Angle; last >= twoPi {
		t.Errorf("last angle = %g, want < 2π", last)
	}

	snap := s.Snapshot()
	if !scalar.EqualWithinAbsOrRel(p.MinRadius, snap.Periapsis, 1e-9, 1e-12) {
		t.Errorf("MinRadius = %g, want periapsis %g", p.MinRadius, snap.Periapsis)
	}
	// 360 samples include θ=π exactly.
	if !scalar.EqualWithinAbsOrRel(p.MaxRadius, snap.Apoapsis, 1e-9, 1e-12) {
		t.Errorf("MaxRadius = %g, want apoapsis %g", p.MaxRadius, snap.Apoapsis)
	}

	// Fastest at periapsis, slowest at apoapsis.
	if p.Points[0].AngularVelocity <= p.Points[180].AngularVelocity {
		t.Errorf("ω at periapsis %g <= ω at apoapsis %g", p.Points[0].AngularVelocity, p.Points[180].AngularVelocity)
	}
}

func TestNewProfileMinimumSamples(t *testing.T) {
	s := testState(t, 30, 20)
	p := NewProfile(s.Geometry(), s.Body(), 0)
	if len(p.Points) != 1 {
		t.Fatalf("len(Points) = %d, want 1", len(p.Points))
	}
	if p.MinRadius != p.MaxRadius {
		t.Errorf("single sample has MinRadius %g != MaxRadius %g", p.MinRadius, p.MaxRadius)
	}
}

func TestNewProfileCircle(t *testing.T) {
	s := testState(t, 20, 20)
	p := NewProfile(s.Geometry(), s.Body(), 64)
	if math.Abs(p.MaxRadius-p.MinRadius) > 1e-12*p.MaxRadius {
		t.Errorf("circle radii spread [%g, %g]", p.MinRadius, p.MaxRadius)
	}
	for _, pt := range p.Points {
		if pt.RadialVelocity > 1e-6*pt.Velocity {
			t.Errorf("θ=%g: radial velocity %g on a circle", pt.Angle, pt.RadialVelocity)
		}
	}
}
