package orbit

// GravitationalConstant is G in m³·kg⁻¹·s⁻².
const GravitationalConstant = 6.67128190396304e-11

// CentralBody is the fixed body at the right focus of the orbit.
type CentralBody struct {
	Mass   float64 `json:"mass"`
	Center Point   `json:"center"`
}

// NewCentralBody validates mass and places the body at the right focus of g.
func NewCentralBody(mass float64, g *Geometry) (CentralBody, error) {
	if err := requirePositive("mass", mass); err != nil {
		return CentralBody{}, err
	}
	return CentralBody{Mass: mass, Center: g.FocusCenter()}, nil
}

// Mu returns the standard gravitational parameter G·M.
func (b CentralBody) Mu() float64 {
	return GravitationalConstant * b.Mass
}
