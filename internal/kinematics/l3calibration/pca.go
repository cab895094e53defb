package l3calibration

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// minVariance is the leading-component variance below which the signal is
// treated as having no dominant axis.
const minVariance = 1e-12

// FirstPrincipalAxis returns the unit direction of largest variance of
// samples (mean-centred). ok is false when there are fewer than
// minSamples samples or the signal has no variance. The sign of the axis
// is arbitrary; callers apply their own sign convention.
func FirstPrincipalAxis(samples []r3.Vec, minSamples int) (axis r3.Vec, ok bool) {
	if len(samples) < minSamples || len(samples) < 2 {
		return r3.Vec{}, false
	}
	data := mat.NewDense(len(samples), 3, nil)
	for i, v := range samples {
		data.Set(i, 0, v.X)
		data.Set(i, 1, v.Y)
		data.Set(i, 2, v.Z)
	}

	var pc stat.PC
	if !pc.PrincipalComponents(data, nil) {
		return r3.Vec{}, false
	}
	vars := pc.VarsTo(nil)
	if len(vars) == 0 || !(vars[0] > minVariance) {
		return r3.Vec{}, false
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	axis = r3.Vec{X: vecs.At(0, 0), Y: vecs.At(1, 0), Z: vecs.At(2, 0)}
	return r3.Unit(axis), true
}
