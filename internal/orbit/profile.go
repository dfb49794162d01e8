package orbit

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// ProfilePoint is the model evaluated at one angle, independent of time.
type ProfilePoint struct {
	Angle              float64 `json:"angle"`
	VisualRadius       float64 `json:"visual_radius"`
	Position           Point   `json:"position"`
	Radius             float64 `json:"radius"`
	Velocity           float64 `json:"velocity"`
	TransverseVelocity float64 `json:"transverse_velocity"`
	RadialVelocity     float64 `json:"radial_velocity"`
	AngularVelocity    float64 `json:"angular_velocity"`
}

// Profile is a table of the orbit sampled at evenly spaced angles.
type Profile struct {
	Points    []ProfilePoint `json:"points"`
	MinRadius float64        `json:"min_radius"`
	MaxRadius float64        `json:"max_radius"`
}

// NewProfile samples the orbit at n angles spread evenly over [0, 2π).
func NewProfile(g *Geometry, body CentralBody, n int) Profile {
	if n < 1 {
		n = 1
	}
	s := NewState(g, body)

	// Span includes both ends; drop 2π, it repeats 0.
	angles := floats.Span(make([]float64, n+1), 0, twoPi)[:n]

	points := make([]ProfilePoint, n)
	radii := make([]float64, n)
	for i, theta := range angles {
		s.angle = theta
		s.recompute()
		sin, cos := math.Sincos(theta)
		points[i] = ProfilePoint{
			Angle:              theta,
			VisualRadius:       s.visualRadius,
			Position:           Point{X: s.visualRadius * cos, Y: -s.visualRadius * sin},
			Radius:             s.radius,
			Velocity:           s.velocity,
			TransverseVelocity: s.transverseVelocity,
			RadialVelocity:     s.radialVelocity,
			AngularVelocity:    s.AngularVelocity(),
		}
		radii[i] = s.radius
	}

	return Profile{
		Points:    points,
		MinRadius: floats.Min(radii),
		MaxRadius: floats.Max(radii),
	}
}
