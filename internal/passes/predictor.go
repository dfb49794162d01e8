// Package passes predicts when the orbiter next passes periapsis and
// apoapsis, and where it will be at a given time, from the closed-form
// Kepler solution rather than the tick-by-tick integration.
package passes

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/nik312123/Orbits/internal/orbit"
)

// Kind names an apsis.
type Kind string

const (
	Periapsis Kind = "periapsis"
	Apoapsis  Kind = "apoapsis"
)

// Passage is one predicted apsis crossing.
type Passage struct {
	Kind      Kind      `json:"kind"`
	Time      time.Time `json:"time"`
	InSeconds float64   `json:"in_seconds"`
	Radius    float64   `json:"radius"`   // meters
	Velocity  float64   `json:"velocity"` // m/s
}

// Orbit is the part of the live orbit the predictor needs.
type Orbit struct {
	Eccentricity float64
	SemiMajor    float64 // meters
	Mu           float64 // m³/s²
	Angle        float64 // true anomaly, radians from periapsis
	At           time.Time
}

// FromSnapshot builds an Orbit from a geometry, its central body, and a
// snapshot of the orbiter on it.
func FromSnapshot(g *orbit.Geometry, body orbit.CentralBody, sn orbit.Snapshot) Orbit {
	return Orbit{
		Eccentricity: g.Eccentricity(),
		SemiMajor:    g.RadiusMajor(),
		Mu:           body.Mu(),
		Angle:        sn.Angle,
		At:           sn.Time,
	}
}

// MaxPassages bounds a single Predict call.
const MaxPassages = 20

var errBadOrbit = errors.New("passes: orbit must be a bound ellipse with positive size and mass")

func (o Orbit) validate() error {
	if !(o.Eccentricity >= 0 && o.Eccentricity < 1) || !(o.SemiMajor > 0) || !(o.Mu > 0) ||
		math.IsInf(o.SemiMajor, 0) || math.IsInf(o.Mu, 0) || math.IsNaN(o.Angle) {
		return errBadOrbit
	}
	return nil
}

// MeanMotion returns the mean angular rate in rad/s.
func (o Orbit) MeanMotion() float64 {
	return math.Sqrt(o.Mu / (o.SemiMajor * o.SemiMajor * o.SemiMajor))
}

// Period returns the orbital period.
func (o Orbit) Period() time.Duration {
	return time.Duration(twoPi / o.MeanMotion() * float64(time.Second))
}

func (o Orbit) meanAnomaly() float64 {
	return meanFromEccentric(eccentricFromTrue(o.Angle, o.Eccentricity), o.Eccentricity)
}

// Predict returns the next count apsis passages at or after o.At, in time
// order. A circular orbit has no distinct apsides and yields none.
func Predict(o Orbit, count int) ([]Passage, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	if count < 1 || count > MaxPassages {
		return nil, fmt.Errorf("passes: count %d outside [1, %d]", count, MaxPassages)
	}
	if o.Eccentricity == 0 {
		return []Passage{}, nil
	}

	n := o.MeanMotion()
	period := twoPi / n
	M := o.meanAnomaly()

	// Seconds until each apsis, within the next period.
	toPeri := normalizeAngle(twoPi-M) / n
	toApo := normalizeAngle(math.Pi-M) / n

	a, e := o.SemiMajor, o.Eccentricity
	rp, ra := a*(1-e), a*(1+e)
	peri := Passage{Kind: Periapsis, Radius: rp, Velocity: visViva(o.Mu, rp, a)}
	apo := Passage{Kind: Apoapsis, Radius: ra, Velocity: visViva(o.Mu, ra, a)}

	first, second := peri, apo
	firstIn, secondIn := toPeri, toApo
	if toApo < toPeri {
		first, second = apo, peri
		firstIn, secondIn = toApo, toPeri
	}

	out := make([]Passage, 0, count)
	for i := 0; len(out) < count; i++ {
		turn := float64(i/2) * period
		p, in := first, firstIn
		if i%2 == 1 {
			p, in = second, secondIn
		}
		p.InSeconds = turn + in
		p.Time = o.At.Add(time.Duration(p.InSeconds * float64(time.Second)))
		out = append(out, p)
	}
	return out, nil
}

// AngleAt returns the true anomaly the orbiter reaches at t by solving
// Kepler's equation. t may be before o.At.
func AngleAt(o Orbit, t time.Time) (float64, error) {
	if err := o.validate(); err != nil {
		return 0, err
	}
	M := o.meanAnomaly() + o.MeanMotion()*t.Sub(o.At).Seconds()
	if o.Eccentricity == 0 {
		return normalizeAngle(M), nil
	}
	return trueFromEccentric(eccentricFromMean(M, o.Eccentricity), o.Eccentricity), nil
}

func visViva(mu, r, a float64) float64 {
	return math.Sqrt(math.Max(0, mu*(2/r-1/a)))
}
