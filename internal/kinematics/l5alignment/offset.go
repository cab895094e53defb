package l5alignment

import (
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/imu-kinematics/internal/kinematics/l4joints"
)

// Offset is the static-pose mean of each DOF, in degrees.
type Offset map[string]float64

// StaticOffset returns the mean of every non-empty DOF of static.
func StaticOffset(static l4joints.AngleSeries) Offset {
	out := make(Offset, len(static))
	for dof, v := range static {
		if len(v) == 0 {
			continue
		}
		out[dof] = stat.Mean(v, nil)
	}
	return out
}

// RemoveOffset returns ja with offset[dof] subtracted from every DOF that
// has an offset. DOFs without an offset are copied unchanged.
func RemoveOffset(ja l4joints.AngleSeries, offset Offset) l4joints.AngleSeries {
	out := make(l4joints.AngleSeries, len(ja))
	for dof, v := range ja {
		off, ok := offset[dof]
		c := make([]float64, len(v))
		for i, x := range v {
			if ok {
				x -= off
			}
			c[i] = x
		}
		out[dof] = c
	}
	return out
}
