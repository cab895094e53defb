package rotation

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// UnitOK returns v scaled to unit length and true, or the zero vector and
// false when |v| is below eps or not finite.
func UnitOK(v r3.Vec, eps float64) (r3.Vec, bool) {
	n := r3.Norm(v)
	if n < eps || math.IsNaN(n) || math.IsInf(n, 0) {
		return r3.Vec{}, false
	}
	return r3.Scale(1/n, v), true
}

// MeanVec returns the arithmetic mean of vs.
func MeanVec(vs []r3.Vec) (r3.Vec, error) {
	if len(vs) == 0 {
		return r3.Vec{}, ErrEmpty
	}
	var sum r3.Vec
	for _, v := range vs {
		sum = r3.Add(sum, v)
	}
	return r3.Scale(1/float64(len(vs)), sum), nil
}

// RejectFrom removes the component of v along the unit vector u.
func RejectFrom(v, u r3.Vec) r3.Vec {
	return r3.Sub(v, r3.Scale(r3.Dot(v, u), u))
}
