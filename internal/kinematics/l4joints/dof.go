package l4joints

import (
	"math"
	"sort"

	"github.com/banshee-data/imu-kinematics/internal/kinematics/l1samples"
)

// Joint names a joint of the lower-limb chain.
type Joint string

const (
	Pelvis Joint = "pelvis"
	Hip    Joint = "hip"
	Knee   Joint = "knee"
	Ankle  Joint = "ankle"
)

// Joints lists the bilateral joints in chain order.
var Joints = []Joint{Hip, Knee, Ankle}

// Axis names one rotational DOF of a joint.
type Axis string

const (
	Flexion   Axis = "flexion"
	Adduction Axis = "adduction"
	Rotation  Axis = "rotation"
	// Pelvis axes.
	Tilt Axis = "tilt"
	List Axis = "list"
	Rot  Axis = "rot"
)

// JointAxes is the Z-X-Y component order of a bilateral joint.
var JointAxes = []Axis{Flexion, Adduction, Rotation}

// PelvisAxes is the Z-X-Y component order of the pelvis.
var PelvisAxes = []Axis{Tilt, List, Rot}

// DOFName returns e.g. "hip_flexion_l" or "pelvis_tilt".
func DOFName(j Joint, a Axis, side l1samples.Side) string {
	name := string(j) + "_" + string(a)
	if side != l1samples.SideNone {
		name += "_" + string(side)
	}
	return name
}

// AnkleAngleAlias returns the legacy name for ankle flexion on side.
func AnkleAngleAlias(side l1samples.Side) string {
	return "ankle_angle_" + string(side)
}

// DOFOrder returns the stable column order for motion files: pelvis, then
// the right leg, then the left leg.
func DOFOrder() []string {
	out := make([]string, 0, 3+2*len(Joints)*len(JointAxes))
	for _, a := range PelvisAxes {
		out = append(out, DOFName(Pelvis, a, l1samples.SideNone))
	}
	for _, side := range []l1samples.Side{l1samples.SideRight, l1samples.SideLeft} {
		for _, j := range Joints {
			for _, a := range JointAxes {
				out = append(out, DOFName(j, a, side))
			}
		}
	}
	return out
}

// AngleSeries maps DOF name to one angle per sample, in degrees.
type AngleSeries map[string][]float64

// Clone returns a deep copy.
func (s AngleSeries) Clone() AngleSeries {
	out := make(AngleSeries, len(s))
	for k, v := range s {
		c := make([]float64, len(v))
		copy(c, v)
		out[k] = c
	}
	return out
}

// Len returns the sample count of the longest DOF.
func (s AngleSeries) Len() int {
	n := 0
	for _, v := range s {
		n = max(n, len(v))
	}
	return n
}

// Names returns the DOFs present, in DOFOrder first and any other keys
// sorted after them.
func (s AngleSeries) Names() []string {
	out := make([]string, 0, len(s))
	seen := make(map[string]bool, len(s))
	for _, name := range DOFOrder() {
		if _, ok := s[name]; ok {
			out = append(out, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range s {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// WithAliases returns a copy that also carries ankle_angle_{l,r} for
// every ankle flexion DOF present.
func (s AngleSeries) WithAliases() AngleSeries {
	out := s.Clone()
	for _, side := range l1samples.Sides {
		if v, ok := out[DOFName(Ankle, Flexion, side)]; ok {
			c := make([]float64, len(v))
			copy(c, v)
			out[AnkleAngleAlias(side)] = c
		}
	}
	return out
}

// OrderWithAliases returns order followed by the ankle aliases that
// WithAliases would add for the DOFs in order.
func OrderWithAliases(order []string) []string {
	out := append([]string(nil), order...)
	for _, side := range l1samples.Sides {
		flex := DOFName(Ankle, Flexion, side)
		for _, name := range order {
			if name == flex {
				out = append(out, AnkleAngleAlias(side))
				break
			}
		}
	}
	return out
}

// AllZero reports whether s has samples and every one is within tol of 0.
// An all-zero result usually means the orientation input was a placeholder.
func AllZero(s AngleSeries, tol float64) bool {
	found := false
	for _, v := range s {
		for _, x := range v {
			if math.IsNaN(x) || math.Abs(x) > tol {
				return false
			}
			found = true
		}
	}
	return found
}
