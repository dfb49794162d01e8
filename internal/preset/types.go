package preset

import (
	"time"

	"github.com/nik312123/Orbits/internal/sim"
)

// Entry represents a single satellite's two-line element set.
type Entry struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// EpochRange represents the minimum and maximum epoch times in a dataset.
type EpochRange struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// Dataset represents a complete set of TLE data from a source.
type Dataset struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Satellites []Entry
}

// NewDataset builds a dataset and computes its epoch range.
func NewDataset(source string, fetchedAt time.Time, entries []Entry) *Dataset {
	ds := &Dataset{Source: source, FetchedAt: fetchedAt, Satellites: entries}
	if len(entries) == 0 {
		return ds
	}
	ds.EpochRange = EpochRange{Min: entries[0].Epoch, Max: entries[0].Epoch}
	for _, e := range entries[1:] {
		if e.Epoch.Before(ds.EpochRange.Min) {
			ds.EpochRange.Min = e.Epoch
		}
		if e.Epoch.After(ds.EpochRange.Max) {
			ds.EpochRange.Max = e.Epoch
		}
	}
	return ds
}

// Preset is a real satellite's orbit expressed as orbit settings.
type Preset struct {
	NORADID int       `json:"norad_id"`
	Name    string    `json:"name"`
	Epoch   time.Time `json:"epoch"`

	SemiMajorAxis float64 `json:"semi_major_axis"` // meters
	Eccentricity  float64 `json:"eccentricity"`
	Period        float64 `json:"period"` // seconds

	Params sim.Params `json:"params"`

	// Intersects is set when the orbit, drawn in the current viewport,
	// would carry the orbiter through the central body.
	Intersects bool `json:"intersects"`
}
