package orbit

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParameter is matched by every InvalidParameterError via errors.Is.
var ErrInvalidParameter = errors.New("invalid orbit parameter")

// InvalidParameterError reports a radius, mass, or bound that cannot describe
// an orbit. Hosts surface it as a validation message.
type InvalidParameterError struct {
	Name   string
	Value  float64
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid orbit parameter %s=%g: %s", e.Name, e.Value, e.Reason)
}

// Is reports whether target is ErrInvalidParameter.
func (e *InvalidParameterError) Is(target error) bool {
	return target == ErrInvalidParameter
}

// requirePositive rejects NaN, ±Inf, zero, and negative values.
func requirePositive(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &InvalidParameterError{Name: name, Value: v, Reason: "must be finite"}
	}
	if v <= 0 {
		return &InvalidParameterError{Name: name, Value: v, Reason: "must be > 0"}
	}
	return nil
}
