package rotation

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// unitEpsilon is the norm below which a quaternion is treated as zero.
const unitEpsilon = 1e-12

// IdentityQuat returns the identity rotation.
func IdentityQuat() quat.Number {
	return quat.Number{Real: 1}
}

// Normalize returns q scaled to unit norm. A zero (or non-finite)
// quaternion normalizes to the identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n < unitEpsilon || math.IsNaN(n) || math.IsInf(n, 0) {
		return IdentityQuat()
	}
	return quat.Scale(1/n, q)
}

// IsUnit reports whether |q| is within tol of 1.
func IsUnit(q quat.Number, tol float64) bool {
	return math.Abs(quat.Abs(q)-1) <= tol
}

// FromMatrix returns the unit quaternion whose rotation matrix is m.
// Shepperd's method: branch on the largest of the trace and diagonal
// elements so the square root argument stays well away from zero.
func FromMatrix(m Mat3) quat.Number {
	tr := m[0][0] + m[1][1] + m[2][2]
	var w, x, y, z float64
	switch {
	case tr > 0:
		s := math.Sqrt(tr+1) * 2
		w = 0.25 * s
		x = (m[2][1] - m[1][2]) / s
		y = (m[0][2] - m[2][0]) / s
		z = (m[1][0] - m[0][1]) / s
	case m[0][0] > m[1][1] && m[0][0] > m[2][2]:
		s := math.Sqrt(1+m[0][0]-m[1][1]-m[2][2]) * 2
		w = (m[2][1] - m[1][2]) / s
		x = 0.25 * s
		y = (m[0][1] + m[1][0]) / s
		z = (m[0][2] + m[2][0]) / s
	case m[1][1] > m[2][2]:
		s := math.Sqrt(1+m[1][1]-m[0][0]-m[2][2]) * 2
		w = (m[0][2] - m[2][0]) / s
		x = (m[0][1] + m[1][0]) / s
		y = 0.25 * s
		z = (m[1][2] + m[2][1]) / s
	default:
		s := math.Sqrt(1+m[2][2]-m[0][0]-m[1][1]) * 2
		w = (m[1][0] - m[0][1]) / s
		x = (m[0][2] + m[2][0]) / s
		y = (m[1][2] + m[2][1]) / s
		z = 0.25 * s
	}
	q := quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}
	if w < 0 {
		q = quat.Scale(-1, q)
	}
	return Normalize(q)
}

// ToMatrix returns the rotation matrix of the unit quaternion q.
func ToMatrix(q quat.Number) Mat3 {
	q = Normalize(q)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return Mat3{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
}

// Compose returns a·b (apply b first, then a).
func Compose(a, b quat.Number) quat.Number {
	return quat.Mul(a, b)
}

// Relative returns conj(a)·b, the rotation taking frame a to frame b.
func Relative(a, b quat.Number) quat.Number {
	return quat.Mul(quat.Conj(a), b)
}

// ElementwiseMean returns the normalized component-wise mean of qs.
// Every sample is first flipped into the hemisphere of qs[0] so that q
// and -q do not cancel. This is only a good approximation of the
// rotational mean when the angular spread is small (a few degrees).
func ElementwiseMean(qs []quat.Number) (quat.Number, error) {
	if len(qs) == 0 {
		return IdentityQuat(), ErrEmpty
	}
	ref := qs[0]
	var sum quat.Number
	for _, q := range qs {
		if dot(q, ref) < 0 {
			q = quat.Scale(-1, q)
		}
		sum = quat.Add(sum, q)
	}
	return Normalize(quat.Scale(1/float64(len(qs)), sum)), nil
}

func dot(a, b quat.Number) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}

// AngleBetween returns the rotation angle (radians) of conj(a)·b.
func AngleBetween(a, b quat.Number) float64 {
	r := Normalize(Relative(a, b))
	w := math.Min(1, math.Abs(r.Real))
	return 2 * math.Acos(w)
}
