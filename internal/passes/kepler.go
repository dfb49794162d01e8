package passes

import "math"

const twoPi = 2 * math.Pi

// eccentricFromTrue converts a true anomaly to the eccentric anomaly.
func eccentricFromTrue(theta, e float64) float64 {
	half := theta / 2
	return normalizeAngle(2 * math.Atan2(math.Sqrt(1-e)*math.Sin(half), math.Sqrt(1+e)*math.Cos(half)))
}

// meanFromEccentric is Kepler's equation, M = E - e·sin E.
func meanFromEccentric(E, e float64) float64 {
	return normalizeAngle(E - e*math.Sin(E))
}

// eccentricFromMean solves Kepler's equation by Newton-Raphson.
func eccentricFromMean(M, e float64) float64 {
	if e == 0 {
		return normalizeAngle(M)
	}

	M = normalizeAngle(M)
	E := M
	if e >= 0.8 {
		// Newton from M stalls near periapsis on very eccentric orbits.
		E = math.Pi
	}
	for i := 0; i < 50; i++ {
		delta := (E - e*math.Sin(E) - M) / (1 - e*math.Cos(E))
		E -= delta
		if math.Abs(delta) < 1e-13 {
			break
		}
	}
	return normalizeAngle(E)
}

// trueFromEccentric converts an eccentric anomaly back to the true anomaly.
func trueFromEccentric(E, e float64) float64 {
	sinE, cosE := math.Sincos(E)
	return normalizeAngle(math.Atan2(math.Sqrt(1-e*e)*sinE, cosE-e))
}

func normalizeAngle(a float64) float64 {
	a = math.Mod(a, twoPi)
	if a < 0 {
		a += twoPi
	}
	return a
}
