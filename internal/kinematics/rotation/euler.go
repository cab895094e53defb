package rotation

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// gimbalLockSin is the |sin| of the middle angle beyond which the
// Z-X-Y decomposition treats the outer angles as coupled.
const gimbalLockSin = 1 - 1e-9

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

// XsensEuler decomposes q into the Xsens-style (x, y, z) Euler triple in
// radians. The asin argument is clamped to [-1, 1] so rounding never
// yields NaN.
func XsensEuler(q quat.Number) [3]float64 {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	ax := math.Atan2(2*y*z+2*w*x, 2*w*w+2*z*z-1)
	ay := math.Asin(clampUnit(2*x*z - 2*w*y))
	az := math.Atan2(2*x*y+2*w*z, 2*w*w+2*x*x-1)
	return [3]float64{ax, ay, az}
}

// RotX returns the rotation about x by a radians.
func RotX(a float64) Mat3 {
	s, c := math.Sincos(a)
	return Mat3{
		{1, 0, 0},
		{0, c, -s},
		{0, s, c},
	}
}

// RotY returns the rotation about y by a radians.
func RotY(a float64) Mat3 {
	s, c := math.Sincos(a)
	return Mat3{
		{c, 0, s},
		{0, 1, 0},
		{-s, 0, c},
	}
}

// RotZ returns the rotation about z by a radians.
func RotZ(a float64) Mat3 {
	s, c := math.Sincos(a)
	return Mat3{
		{c, -s, 0},
		{s, c, 0},
		{0, 0, 1},
	}
}

// ZXYMatrix builds the intrinsic Z-X-Y rotation Rz(z)·Rx(x)·Ry(y).
// Angles are radians.
func ZXYMatrix(z, x, y float64) Mat3 {
	return RotZ(z).Mul(RotX(x)).Mul(RotY(y))
}

// ZXYAngles is the inverse of ZXYMatrix, returning (z, x, y) in radians
// with x in [-π/2, π/2]. At gimbal lock y is reported as zero and the
// full coupled rotation is folded into z.
func ZXYAngles(m Mat3) (z, x, y float64) {
	sx := clampUnit(m[2][1])
	x = math.Asin(sx)
	if math.Abs(sx) < gimbalLockSin {
		z = math.Atan2(-m[0][1], m[1][1])
		y = math.Atan2(-m[2][0], m[2][2])
		return z, x, y
	}
	z = math.Atan2(m[1][0], m[0][0])
	return z, x, 0
}
