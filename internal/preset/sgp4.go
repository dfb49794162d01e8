package preset

import (
	"errors"
	"fmt"
	"math"
	"strings"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/nik312123/Orbits/internal/orbit"
	"github.com/nik312123/Orbits/internal/sim"
)

// MuWGS84 is Earth's gravitational parameter under the WGS84 constants the
// SGP4 model is initialized with, in m³/s².
const MuWGS84 = 398600.8e9

// EarthMass is the central mass that reproduces MuWGS84 under
// orbit.GravitationalConstant, so preset periods match the real satellite.
const EarthMass = MuWGS84 / orbit.GravitationalConstant

var errUnbound = errors.New("state vector is not on a bound orbit")

// FromEntry runs SGP4 at the TLE epoch and converts the osculating state
// vector into orbit settings: the semi-major axis from vis-viva and the
// eccentricity from the specific angular momentum.
//
// The TLE lines are checked before reaching go-satellite, which calls
// log.Fatal on malformed input.
func FromEntry(e Entry) (Preset, error) {
	if err := validateTLELines(e.Line1, e.Line2); err != nil {
		return Preset{}, fmt.Errorf("invalid TLE for NORAD %d: %w", e.NORADID, err)
	}

	sat := satellite.TLEToSat(e.Line1, e.Line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return Preset{}, fmt.Errorf("sgp4 init failed for NORAD %d: code=%d %s", e.NORADID, sat.Error, sat.ErrorStr)
	}

	t := e.Epoch.UTC()
	pos, vel := satellite.Propagate(sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	r := [3]float64{pos.X * 1000, pos.Y * 1000, pos.Z * 1000}
	v := [3]float64{vel.X * 1000, vel.Y * 1000, vel.Z * 1000}

	for _, c := range append(r[:], v[:]...) {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return Preset{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: output is NaN/Inf", e.NORADID)
		}
	}

	// Sanity check: position magnitude should be between ~6200km and ~50000km.
	rMag := norm(r)
	if rMag < 6.2e6 || rMag > 5e7 {
		return Preset{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: unreasonable position magnitude %.1f km", e.NORADID, rMag/1000)
	}

	a, ecc, err := elements(r, v, MuWGS84)
	if err != nil {
		return Preset{}, fmt.Errorf("NORAD %d: %w", e.NORADID, err)
	}

	b := a * math.Sqrt(1-ecc*ecc)
	return Preset{
		NORADID:       e.NORADID,
		Name:          e.Name,
		Epoch:         e.Epoch,
		SemiMajorAxis: a,
		Eccentricity:  ecc,
		Period:        2 * math.Pi * math.Sqrt(a*a*a/MuWGS84),
		Params:        sim.Params{RadiusOne: a, RadiusTwo: b, Mass: EarthMass},
	}, nil
}

// elements returns the semi-major axis and eccentricity of the orbit through
// state (r, v).
func elements(r, v [3]float64, mu float64) (a, e float64, err error) {
	rMag, vMag := norm(r), norm(v)

	inv := 2/rMag - vMag*vMag/mu
	if !(inv > 0) {
		return 0, 0, errUnbound
	}
	a = 1 / inv

	h := norm(cross(r, v))
	eSq := 1 - h*h/(mu*a)
	e = math.Sqrt(math.Max(0, eSq))
	if e >= 1 || math.IsNaN(e) {
		return 0, 0, errUnbound
	}
	return a, e, nil
}

func norm(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// validateTLELines performs basic format validation on TLE lines.
func validateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	return nil
}
