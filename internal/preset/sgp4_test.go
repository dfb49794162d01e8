package preset

import (
	"math"
	"testing"

	"github.com/nik312123/Orbits/internal/orbit"
)

func TestFromEntryNearCircular(t *testing.T) {
	p, err := FromEntry(testEntries()[0])
	if err != nil {
		t.Fatalf("FromEntry failed: %v", err)
	}

	if p.SemiMajorAxis < 6.6e6 || p.SemiMajorAxis > 6.95e6 {
		t.Errorf("ISS semi-major axis = %.0f m, want ~6.78e6", p.SemiMajorAxis)
	}
	if p.Eccentricity > 0.01 {
		t.Errorf("ISS eccentricity = %g, want near 0", p.Eccentricity)
	}
	// 15.5 revs/day ≈ 92.9 minutes.
	if minutes := p.Period / 60; math.Abs(minutes-92.9) > 2 {
		t.Errorf("ISS period = %.1f min, want ~92.9", minutes)
	}
	if p.Params.RadiusOne != p.SemiMajorAxis || p.Params.RadiusTwo > p.Params.RadiusOne {
		t.Errorf("params = %+v for a = %g", p.Params, p.SemiMajorAxis)
	}
	if p.Params.Mass != EarthMass {
		t.Errorf("mass = %g, want %g", p.Params.Mass, EarthMass)
	}
}

func TestFromEntryEccentric(t *testing.T) {
	p, err := FromEntry(testEntries()[2])
	if err != nil {
		t.Fatalf("FromEntry failed: %v", err)
	}
	if math.Abs(p.Eccentricity-0.7) > 0.02 {
		t.Errorf("eccentricity = %g, want ~0.7", p.Eccentricity)
	}
	if math.Abs(p.SemiMajorAxis-2.656e7) > 3e5 {
		t.Errorf("semi-major axis = %.0f m, want ~2.656e7", p.SemiMajorAxis)
	}

	wantB := p.SemiMajorAxis * math.Sqrt(1-p.Eccentricity*p.Eccentricity)
	if math.Abs(p.Params.RadiusTwo-wantB) > 1e-6*wantB {
		t.Errorf("RadiusTwo = %g, want b = %g", p.Params.RadiusTwo, wantB)
	}
}

// TestPresetPeriodMatchesOrbitModel checks that the chosen central mass makes
// the orbit model's Kepler period agree with the satellite's.
func TestPresetPeriodMatchesOrbitModel(t *testing.T) {
	p, err := FromEntry(testEntries()[0])
	if err != nil {
		t.Fatalf("FromEntry failed: %v", err)
	}
	g, err := orbit.NewGeometry(p.Params.RadiusOne, p.Params.RadiusTwo, orbit.Bounds{HalfWidth: 683, HalfHeight: 345, Clearance: 65})
	if err != nil {
		t.Fatalf("NewGeometry failed: %v", err)
	}
	body, err := orbit.NewCentralBody(p.Params.Mass, g)
	if err != nil {
		t.Fatalf("NewCentralBody failed: %v", err)
	}
	got := orbit.NewState(g, body).Snapshot().Period
	if math.Abs(got-p.Period) > 1e-6*p.Period {
		t.Errorf("orbit model period = %g s, preset period = %g s", got, p.Period)
	}
}

func TestFromEntryInvalid(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
	}{
		{"short line1", Entry{NORADID: 1, Line1: "1 25544U", Line2: issLine2}},
		{"short line2", Entry{NORADID: 1, Line1: issLine1, Line2: "2 25544"}},
		{"swapped lines", Entry{NORADID: 1, Line1: issLine2, Line2: issLine1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromEntry(tt.entry); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestElementsUnbound(t *testing.T) {
	// Escape speed at 7000 km is ~10.7 km/s.
	r := [3]float64{7e6, 0, 0}
	v := [3]float64{0, 12e3, 0}
	if _, _, err := elements(r, v, MuWGS84); err == nil {
		t.Error("expected error for hyperbolic state")
	}

	// Circular speed gives e ≈ 0 and a ≈ r.
	vc := math.Sqrt(MuWGS84 / 7e6)
	a, e, err := elements(r, [3]float64{0, vc, 0}, MuWGS84)
	if err != nil {
		t.Fatalf("elements failed: %v", err)
	}
	if math.Abs(a-7e6) > 1e-3 || e > 1e-6 {
		t.Errorf("circular state gave a=%g e=%g", a, e)
	}
}
