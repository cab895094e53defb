package l4joints

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/num/quat"

	"github.com/banshee-data/imu-kinematics/internal/kinematics/l1samples"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/l2orientation"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/rotation"
	"github.com/banshee-data/imu-kinematics/internal/units"
)

var (
	// ErrLengthMismatch is returned when two orientation series that must
	// be aligned sample-by-sample differ in length.
	ErrLengthMismatch = errors.New("l4joints: orientation series length mismatch")
	// ErrNoJoints is returned when no joint could be computed.
	ErrNoJoints = errors.New("l4joints: no joint angles could be computed")
)

// JointAngles returns the Xsens Euler angles (degrees) of the distal
// segment relative to the proximal one at every sample. With calibrate
// set, each sensor orientation is first mapped to its segment frame by
// q·conj(q(seg2sens)).
func JointAngles(proximal, distal l2orientation.Series, s2sProximal, s2sDistal rotation.Mat3, calibrate bool) ([][3]float64, error) {
	if len(proximal) != len(distal) {
		return nil, fmt.Errorf("%w: proximal %d, distal %d", ErrLengthMismatch, len(proximal), len(distal))
	}
	qp := rotation.FromMatrix(s2sProximal)
	qd := rotation.FromMatrix(s2sDistal)

	out := make([][3]float64, len(proximal))
	for i := range proximal {
		p, d := proximal[i], distal[i]
		if calibrate {
			p = quat.Mul(p, quat.Conj(qp))
			d = quat.Mul(d, quat.Conj(qd))
		}
		e := rotation.XsensEuler(rotation.Relative(p, d))
		out[i] = [3]float64{units.RadToDeg(e[0]), units.RadToDeg(e[1]), units.RadToDeg(e[2])}
	}
	return out, nil
}

// SegmentAngles decomposes one segment's orientation relative to the
// global frame into Xsens Euler angles in degrees.
func SegmentAngles(orient l2orientation.Series, s2s rotation.Mat3, calibrate bool) [][3]float64 {
	out, _ := JointAngles(l2orientation.Identity(len(orient)), orient, rotation.Identity(), s2s, calibrate)
	return out
}

// MissingJoint names a joint that could not be computed.
type MissingJoint struct {
	Joint    Joint               `json:"joint"`
	Side     l1samples.Side      `json:"side,omitempty"`
	Segments []l1samples.Segment `json:"missing_segments"`
}

// DOFs returns the names this joint would have produced.
func (m MissingJoint) DOFs() []string {
	axes := JointAxes
	if m.Joint == Pelvis {
		axes = PelvisAxes
	}
	out := make([]string, len(axes))
	for i, a := range axes {
		out[i] = DOFName(m.Joint, a, m.Side)
	}
	return out
}

// Angles is the result of AllJointAngles.
type Angles struct {
	Series  AngleSeries
	Missing []MissingJoint
}

type chainLink struct {
	joint            Joint
	proximal, distal l1samples.Segment
}

func chain(side l1samples.Side) []chainLink {
	return []chainLink{
		{Hip, l1samples.Pelvis, l1samples.Thigh(side)},
		{Knee, l1samples.Thigh(side), l1samples.Shank(side)},
		{Ankle, l1samples.Shank(side), l1samples.Foot(side)},
	}
}

// AllJointAngles computes pelvis, hip, knee and ankle angles for both
// sides. Euler components map to DOFs as adduction = s·c0,
// rotation = -s·c1, flexion = s·c2 (pelvis: list, rot, tilt), with s
// taken from signs. A joint with a missing sensor (or, when calibrating,
// a missing transform) is skipped and listed in Missing.
func AllJointAngles(
	seg2sens map[l1samples.Segment]rotation.Mat3,
	orientations map[l1samples.Segment]l2orientation.Series,
	signs SignTable, calibrate bool,
) (Angles, error) {
	res := Angles{Series: make(AngleSeries)}

	available := func(segs ...l1samples.Segment) []l1samples.Segment {
		var missing []l1samples.Segment
		for _, s := range segs {
			if _, ok := orientations[s]; !ok {
				missing = append(missing, s)
				continue
			}
			if _, ok := seg2sens[s]; calibrate && !ok {
				missing = append(missing, s)
			}
		}
		return missing
	}
	emit := func(j Joint, side l1samples.Side, axes []Axis, e [][3]float64) {
		names := make([]string, 3)
		for k, a := range axes {
			names[k] = DOFName(j, a, side)
		}
		// axes are in flexion, adduction, rotation order.
		sFlex, sAdd, sRot := signs.Sign(names[0]), signs.Sign(names[1]), signs.Sign(names[2])
		flex := make([]float64, len(e))
		add := make([]float64, len(e))
		rot := make([]float64, len(e))
		for i, c := range e {
			add[i] = sAdd * c[0]
			rot[i] = -sRot * c[1]
			flex[i] = sFlex * c[2]
		}
		res.Series[names[0]] = flex
		res.Series[names[1]] = add
		res.Series[names[2]] = rot
	}

	if missing := available(l1samples.Pelvis); len(missing) > 0 {
		res.Missing = append(res.Missing, MissingJoint{Joint: Pelvis, Segments: missing})
	} else {
		e := SegmentAngles(orientations[l1samples.Pelvis], seg2sens[l1samples.Pelvis], calibrate)
		emit(Pelvis, l1samples.SideNone, PelvisAxes, e)
	}

	for _, side := range []l1samples.Side{l1samples.SideLeft, l1samples.SideRight} {
		for _, link := range chain(side) {
			if missing := available(link.proximal, link.distal); len(missing) > 0 {
				res.Missing = append(res.Missing, MissingJoint{Joint: link.joint, Side: side, Segments: missing})
				continue
			}
			e, err := JointAngles(
				orientations[link.proximal], orientations[link.distal],
				seg2sens[link.proximal], seg2sens[link.distal], calibrate,
			)
			if err != nil {
				return Angles{}, fmt.Errorf("%s %s: %w", link.joint, side, err)
			}
			emit(link.joint, side, JointAxes, e)
		}
	}

	if len(res.Series) == 0 {
		return res, ErrNoJoints
	}
	return res, nil
}
