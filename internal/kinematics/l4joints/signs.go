package l4joints

import "github.com/banshee-data/imu-kinematics/internal/kinematics/l1samples"

// SignTable holds the per-DOF sign (+1 or -1) that expresses mirrored
// anatomy between the left and right legs. It is a value type: With
// returns a modified copy and the zero value treats every DOF as +1.
type SignTable struct {
	signs map[string]float64
}

// DefaultSignTable negates left adduction and rotation at every joint
// and knee flexion on both sides.
func DefaultSignTable() SignTable {
	signs := make(map[string]float64)
	for _, j := range Joints {
		signs[DOFName(j, Adduction, l1samples.SideLeft)] = -1
		signs[DOFName(j, Rotation, l1samples.SideLeft)] = -1
	}
	signs[DOFName(Knee, Flexion, l1samples.SideLeft)] = -1
	signs[DOFName(Knee, Flexion, l1samples.SideRight)] = -1
	return SignTable{signs: signs}
}

// Sign returns the sign for dof, +1 when unset.
func (t SignTable) Sign(dof string) float64 {
	if s, ok := t.signs[dof]; ok {
		return s
	}
	return 1
}

// With returns a copy of t with dof set to sign (normalised to ±1).
func (t SignTable) With(dof string, sign float64) SignTable {
	out := make(map[string]float64, len(t.signs)+1)
	for k, v := range t.signs {
		out[k] = v
	}
	if sign < 0 {
		out[dof] = -1
	} else {
		out[dof] = 1
	}
	return SignTable{signs: out}
}
