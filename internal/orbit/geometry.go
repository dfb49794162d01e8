// Package orbit implements a two-body Keplerian orbit: ellipse geometry fitted
// to a display box, the focus-relative radius model, and the real-time angular
// integration of the orbiting body.
//
// Physical quantities are SI (meters, kilograms, seconds). Visual quantities
// are display pixels with y growing downward.
package orbit

import (
	"math"
)

// Point is a position in display space (pixels).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle in display space.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bounds describes the usable display area. HalfWidth and HalfHeight are the
// half-extents of the viewport; Clearance is the pixel margin kept free for
// the orbiter sprite and padding.
type Bounds struct {
	HalfWidth  float64 `json:"half_width"`
	HalfHeight float64 `json:"half_height"`
	Clearance  float64 `json:"clearance"`
}

// Center returns the center of the viewport, taking the top-left corner as origin.
func (b Bounds) Center() Point {
	return Point{X: b.HalfWidth, Y: b.HalfHeight}
}

func (b Bounds) usable() (w, h float64) {
	return b.HalfWidth - b.Clearance, b.HalfHeight - b.Clearance
}

// Geometry holds the shape of an orbit ellipse, both physical and scaled to
// the display. It is immutable; build a new one whenever the radii change.
type Geometry struct {
	radiusMajor, radiusMinor             float64
	radiusMajorVisual, radiusMinorVisual float64
	focusOffset                          float64
	bounds                               Bounds
}

// NewGeometry derives the ellipse from two radii in meters. The larger radius
// becomes the semi-major axis. The visual axes keep the physical ratio and the
// binding dimension of bounds is filled exactly.
func NewGeometry(radiusOne, radiusTwo float64, bounds Bounds) (*Geometry, error) {
	if err := requirePositive("radius_one", radiusOne); err != nil {
		return nil, err
	}
	if err := requirePositive("radius_two", radiusTwo); err != nil {
		return nil, err
	}
	usableW, usableH := bounds.usable()
	if err := requirePositive("usable_width", usableW); err != nil {
		return nil, err
	}
	if err := requirePositive("usable_height", usableH); err != nil {
		return nil, err
	}

	major := math.Max(radiusOne, radiusTwo)
	minor := radiusOne + radiusTwo - major
	if minor <= 0 {
		// Only reachable when the smaller radius vanishes against the larger in float64.
		return nil, &InvalidParameterError{Name: "radius_minor", Value: minor, Reason: "must be > 0"}
	}

	ratio := minor / major
	var majorVisual, minorVisual float64
	if ratio*usableW <= usableH {
		majorVisual = usableW
		minorVisual = ratio * majorVisual
	} else {
		minorVisual = usableH
		majorVisual = minorVisual / ratio
	}

	return &Geometry{
		radiusMajor:       major,
		radiusMinor:       minor,
		radiusMajorVisual: majorVisual,
		radiusMinorVisual: minorVisual,
		focusOffset:       math.Sqrt(math.Max(0, (majorVisual-minorVisual)*(majorVisual+minorVisual))),
		bounds:            bounds,
	}, nil
}

// RadiusMajor returns the semi-major axis in meters.
func (g *Geometry) RadiusMajor() float64 { return g.radiusMajor }

// RadiusMinor returns the semi-minor axis in meters.
func (g *Geometry) RadiusMinor() float64 { return g.radiusMinor }

// RadiusMajorVisual returns the semi-major axis in pixels.
func (g *Geometry) RadiusMajorVisual() float64 { return g.radiusMajorVisual }

// RadiusMinorVisual returns the semi-minor axis in pixels.
func (g *Geometry) RadiusMinorVisual() float64 { return g.radiusMinorVisual }

// FocusOffset returns the pixel distance from the ellipse center to its right focus.
func (g *Geometry) FocusOffset() float64 { return g.focusOffset }

// Bounds returns the display bounds the geometry was fitted to.
func (g *Geometry) Bounds() Bounds { return g.bounds }

// Eccentricity returns sqrt(1 - b²/a²).
func (g *Geometry) Eccentricity() float64 {
	r := g.radiusMinor / g.radiusMajor
	return math.Sqrt(math.Max(0, (1-r)*(1+r)))
}

// ToMeters converts a pixel distance along the orbit into meters.
func (g *Geometry) ToMeters(px float64) float64 {
	return px * g.radiusMajor / g.radiusMajorVisual
}

// FocusCenter returns the display position of the right focus, where the
// central body sits.
func (g *Geometry) FocusCenter() Point {
	c := g.bounds.Center()
	return Point{X: c.X + g.focusOffset, Y: c.Y}
}

// Ellipse returns the bounding rectangle of the orbit path, centered in the
// viewport.
func (g *Geometry) Ellipse() Rect {
	c := g.bounds.Center()
	return Rect{
		X:      c.X - g.radiusMajorVisual,
		Y:      c.Y - g.radiusMinorVisual,
		Width:  2 * g.radiusMajorVisual,
		Height: 2 * g.radiusMinorVisual,
	}
}

// valid reports whether the geometry satisfies its construction invariants.
func (g *Geometry) valid() bool {
	return g != nil &&
		g.radiusMajor >= g.radiusMinor && g.radiusMinor > 0 &&
		g.radiusMajorVisual > 0 && g.radiusMinorVisual > 0
}
