package report

import (
	"fmt"

	"github.com/banshee-data/imu-kinematics/internal/kinematics/l1samples"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/l4joints"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/pipeline"
)

// Group is a joint and the DOFs of it present in a result, in Z-X-Y order.
type Group struct {
	Name string
	DOFs []string
}

// Groups returns the joint groups of res: pelvis, then the right leg, then
// the left leg. Joints with no DOF in the result are left out.
func Groups(res *pipeline.Result) []Group {
	if res == nil {
		return nil
	}
	var out []Group
	add := func(name string, j l4joints.Joint, axes []l4joints.Axis, side l1samples.Side) {
		g := Group{Name: name}
		for _, a := range axes {
			dof := l4joints.DOFName(j, a, side)
			if _, ok := res.JointAngles[dof]; ok {
				g.DOFs = append(g.DOFs, dof)
			}
		}
		if len(g.DOFs) > 0 {
			out = append(out, g)
		}
	}
	add(string(l4joints.Pelvis), l4joints.Pelvis, l4joints.PelvisAxes, l1samples.SideNone)
	for _, side := range []l1samples.Side{l1samples.SideRight, l1samples.SideLeft} {
		for _, j := range l4joints.Joints {
			add(fmt.Sprintf("%s_%s", j, side), j, l4joints.JointAxes, side)
		}
	}
	return out
}

// sampleTime returns the time of sample i in seconds, or i itself when the
// sampling rate is unknown.
func sampleTime(i int, fs float64) float64 {
	if fs <= 0 {
		return float64(i)
	}
	return float64(i) / fs
}

func timeLabel(fs float64) string {
	if fs <= 0 {
		return "sample"
	}
	return "time (s)"
}
