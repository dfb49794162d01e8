package orbit

import (
	"errors"
	"math"
	"testing"
)

var (
	testBodyDisk    = Disk{Radius: 25}
	testOrbiterDisk = Disk{Radius: 15}
)

func TestWouldIntersect(t *testing.T) {
	tests := []struct {
		name   string
		r1, r2 float64
		bounds Bounds
		want   bool
	}{
		{"very eccentric", 1, 100, testBounds(), true},
		{"eccentric reversed order", 100, 1, testBounds(), true},
		{"circle", 20, 20, testBounds(), false},
		{"moderate", 30, 20, testBounds(), false},
		// Circle of visual radius 40 against disks 25+15: touching only.
		{"tangent", 5, 5, Bounds{HalfWidth: 500, HalfHeight: 105, Clearance: 65}, false},
		{"one pixel inside", 5, 5, Bounds{HalfWidth: 500, HalfHeight: 104, Clearance: 65}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WouldIntersect(tt.r1, tt.r2, testBodyDisk, testOrbiterDisk, tt.bounds)
			if err != nil {
				t.Fatalf("WouldIntersect failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("WouldIntersect(%g, %g) = %v, want %v", tt.r1, tt.r2, got, tt.want)
			}
		})
	}
}

// TestWouldIntersectDoesNotTouchLiveState builds a live state, queries
// different radii, and checks the live state is unchanged.
func TestWouldIntersectDoesNotTouchLiveState(t *testing.T) {
	s := testState(t, 30, 20)
	before := s.Snapshot()
	geomBefore := *s.Geometry()

	if _, err := WouldIntersect(1, 100, testBodyDisk, testOrbiterDisk, testBounds()); err != nil {
		t.Fatalf("WouldIntersect failed: %v", err)
	}

	if s.Snapshot() != before {
		t.Errorf("snapshot changed: %+v -> %+v", before, s.Snapshot())
	}
	if *s.Geometry() != geomBefore {
		t.Error("live geometry changed")
	}
}

func TestWouldIntersectInvalidRadii(t *testing.T) {
	for _, radii := range [][2]float64{{0, 10}, {10, -3}, {math.NaN(), 1}} {
		_, err := WouldIntersect(radii[0], radii[1], testBodyDisk, testOrbiterDisk, testBounds())
		if !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("WouldIntersect(%v) error = %v, want ErrInvalidParameter", radii, err)
		}
	}
}

func TestPeriapsisVisualMatchesRadiusModel(t *testing.T) {
	s := testState(t, 30, 20)
	if got, want := s.Geometry().PeriapsisVisual(), s.VisualRadiusAt(0); math.Abs(got-want) > 1e-9 {
		t.Errorf("PeriapsisVisual = %g, VisualRadiusAt(0) = %g", got, want)
	}
}
