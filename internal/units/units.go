// Package units provides shared constants and conversions for angle units
package units

import "math"

// Unit constants
const (
	Degrees = "deg"
	Radians = "rad"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Degrees, Radians}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "deg, rad"
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// ConvertAngle converts an angle from degrees to the target units.
// Joint angles are produced in degrees throughout the pipeline.
func ConvertAngle(angleDeg float64, targetUnits string) float64 {
	switch targetUnits {
	case Radians:
		return DegToRad(angleDeg)
	case Degrees:
		return angleDeg
	default:
		return angleDeg
	}
}

// ConvertSeries converts a slice of degree values into a new slice in the
// target units. The input is not modified.
func ConvertSeries(anglesDeg []float64, targetUnits string) []float64 {
	out := make([]float64, len(anglesDeg))
	for i, v := range anglesDeg {
		out[i] = ConvertAngle(v, targetUnits)
	}
	return out
}
