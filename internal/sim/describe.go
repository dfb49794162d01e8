package sim

import "github.com/nik312123/Orbits/internal/orbit"

// Description is everything a client needs to draw the static orbit path.
type Description struct {
	Generation uint64            `json:"generation"`
	Params     Params            `json:"params"`
	Body       orbit.CentralBody `json:"body"`
	Bounds     orbit.Bounds      `json:"bounds"`
	Ellipse    orbit.Rect        `json:"ellipse"`

	RadiusMajor       float64 `json:"radius_major"`
	RadiusMinor       float64 `json:"radius_minor"`
	RadiusMajorVisual float64 `json:"radius_major_visual"`
	RadiusMinorVisual float64 `json:"radius_minor_visual"`
	FocusOffset       float64 `json:"focus_offset"`
	Eccentricity      float64 `json:"eccentricity"`
	Period            float64 `json:"period"`

	BodyDisk    orbit.Disk `json:"body_disk"`
	OrbiterDisk orbit.Disk `json:"orbiter_disk"`
}

// Describe returns the geometry of the orbit in f.
func (s *Simulation) Describe(f *Frame) Description {
	g := f.Geometry
	return Description{
		Generation:        f.Generation,
		Params:            f.Params,
		Body:              f.Body,
		Bounds:            g.Bounds(),
		Ellipse:           g.Ellipse(),
		RadiusMajor:       g.RadiusMajor(),
		RadiusMinor:       g.RadiusMinor(),
		RadiusMajorVisual: g.RadiusMajorVisual(),
		RadiusMinorVisual: g.RadiusMinorVisual(),
		FocusOffset:       g.FocusOffset(),
		Eccentricity:      g.Eccentricity(),
		Period:            f.Snapshot.Period,
		BodyDisk:          s.cfg.BodyDisk,
		OrbiterDisk:       s.cfg.OrbiterDisk,
	}
}
