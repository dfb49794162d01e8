package orbit

// Disk is a circular sprite footprint in pixels.
type Disk struct {
	Radius float64 `json:"radius"`
}

// WouldIntersect reports whether an orbit built from radiusOne and radiusTwo
// would carry the orbiter's disk into the central body's disk. Both disks are
// placed where they are closest: the body at the right focus and the orbiter
// at periapsis. Disks that only touch do not intersect. Nothing live is
// modified; hosts call this to vet settings before applying them.
func WouldIntersect(radiusOne, radiusTwo float64, body, orbiter Disk, bounds Bounds) (bool, error) {
	g, err := NewGeometry(radiusOne, radiusTwo, bounds)
	if err != nil {
		return false, err
	}
	return g.DisksOverlap(body, orbiter), nil
}

// DisksOverlap reports whether the body disk at the focus and the orbiter
// disk at periapsis share any area.
func (g *Geometry) DisksOverlap(body, orbiter Disk) bool {
	focus := g.FocusCenter()
	orbiterAt := Point{X: focus.X + g.PeriapsisVisual(), Y: focus.Y}

	dx := orbiterAt.X - focus.X
	dy := orbiterAt.Y - focus.Y
	reach := body.Radius + orbiter.Radius
	return dx*dx+dy*dy < reach*reach
}

// PeriapsisVisual returns the closest focus distance in pixels, a - c,
// evaluated as b²/(a + c) so near-parabolic ellipses keep their precision.
func (g *Geometry) PeriapsisVisual() float64 {
	b := g.radiusMinorVisual
	return b * b / (g.radiusMajorVisual + g.focusOffset)
}
