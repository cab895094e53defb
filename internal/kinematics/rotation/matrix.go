package rotation

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// OrthonormalTolerance is the tolerance used when checking that a matrix is
// a proper rotation (orthonormal rows, det ≈ +1).
const OrthonormalTolerance = 1e-6

// ErrEmpty is returned by aggregate operations given no input.
var ErrEmpty = errors.New("rotation: empty input")

// Mat3 is a row-major 3x3 matrix.
type Mat3 [3][3]float64

// Identity returns the 3x3 identity matrix.
func Identity() Mat3 {
	return Mat3{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
}

// FromRows stacks three vectors as matrix rows.
func FromRows(x, y, z r3.Vec) Mat3 {
	return Mat3{
		{x.X, x.Y, x.Z},
		{y.X, y.Y, y.Z},
		{z.X, z.Y, z.Z},
	}
}

// Row returns row i as a vector.
func (m Mat3) Row(i int) r3.Vec {
	return r3.Vec{X: m[i][0], Y: m[i][1], Z: m[i][2]}
}

// T returns the transpose.
func (m Mat3) T() Mat3 {
	var t Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i][j] = m[j][i]
		}
	}
	return t
}

// Mul returns m·n.
func (m Mat3) Mul(n Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[i][0]*n[0][j] + m[i][1]*n[1][j] + m[i][2]*n[2][j]
		}
	}
	return out
}

// Apply returns m·v.
func (m Mat3) Apply(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Det returns the determinant.
func (m Mat3) Det() float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// IsFinite reports whether every element is neither NaN nor Inf.
func (m Mat3) IsFinite() bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.IsNaN(m[i][j]) || math.IsInf(m[i][j], 0) {
				return false
			}
		}
	}
	return true
}

// Equal reports whether every element of m is within tol of n.
func (m Mat3) Equal(n Mat3, tol float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(m[i][j]-n[i][j]) > tol {
				return false
			}
		}
	}
	return true
}

// IsRotation checks that m is a proper rotation:
//  1. rows are unit length and mutually orthogonal
//  2. det ≈ +1 (not a reflection)
func (m Mat3) IsRotation(tol float64) bool {
	if !m.IsFinite() {
		return false
	}
	for i := 0; i < 3; i++ {
		ri := m.Row(i)
		if math.Abs(r3.Norm(ri)-1) > tol {
			return false
		}
		for j := i + 1; j < 3; j++ {
			if math.Abs(r3.Dot(ri, m.Row(j))) > tol {
				return false
			}
		}
	}
	return math.Abs(m.Det()-1) <= tol
}

// NearestRotation projects m onto SO(3) in the Frobenius sense using the
// SVD m = U·S·Vᵀ, returning U·diag(1, 1, det(U·Vᵀ))·Vᵀ. A rank-deficient
// input still yields a proper rotation.
func NearestRotation(m Mat3) (Mat3, error) {
	a := mat.NewDense(3, 3, []float64{
		m[0][0], m[0][1], m[0][2],
		m[1][0], m[1][1], m[1][2],
		m[2][0], m[2][1], m[2][2],
	})

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return Identity(), errors.New("rotation: SVD factorization failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var uvt mat.Dense
	uvt.Mul(&u, v.T())
	d := mat.NewDiagDense(3, []float64{1, 1, 1})
	if mat.Det(&uvt) < 0 {
		d.SetDiag(2, -1)
	}

	var ud, r mat.Dense
	ud.Mul(&u, d)
	r.Mul(&ud, v.T())

	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = r.At(i, j)
		}
	}
	return out, nil
}

// MeanRotation returns the rotation closest to the element-wise mean of
// ms (the chordal L2 mean). Right-multiplying every input by a fixed
// rotation right-multiplies the result by the same rotation.
func MeanRotation(ms []Mat3) (Mat3, error) {
	if len(ms) == 0 {
		return Identity(), ErrEmpty
	}
	var sum Mat3
	for _, m := range ms {
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				sum[i][j] += m[i][j]
			}
		}
	}
	n := float64(len(ms))
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			sum[i][j] /= n
		}
	}
	return NearestRotation(sum)
}
