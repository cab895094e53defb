package l2orientation

import (
	"gonum.org/v1/gonum/num/quat"

	"github.com/banshee-data/imu-kinematics/internal/kinematics/rotation"
)

// Series is one orientation per sample (scalar-first unit quaternions,
// sensor frame relative to the global frame).
type Series []quat.Number

// Normalize returns a copy of s with every sample rescaled to unit norm.
func (s Series) Normalize() Series {
	out := make(Series, len(s))
	for i, q := range s {
		out[i] = rotation.Normalize(q)
	}
	return out
}

// IsUnit reports whether every sample has unit norm within tol.
func (s Series) IsUnit(tol float64) bool {
	for _, q := range s {
		if !rotation.IsUnit(q, tol) {
			return false
		}
	}
	return true
}

// Identity returns n identity orientations.
func Identity(n int) Series {
	out := make(Series, n)
	for i := range out {
		out[i] = rotation.IdentityQuat()
	}
	return out
}
