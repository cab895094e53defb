package l5alignment

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/imu-kinematics/internal/kinematics/l1samples"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/l4joints"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/rotation"
	"github.com/banshee-data/imu-kinematics/internal/units"
)

// Alignment window defaults: the first 10% of samples, at least 10.
const (
	DefaultAlignmentFraction   = 0.1
	DefaultAlignmentMinSamples = 10
)

var (
	// ErrMissingDOF is returned when a joint has some but not all of its
	// three DOFs.
	ErrMissingDOF = errors.New("l5alignment: joint is missing a DOF")
	// ErrEmptyPeriod is returned when the alignment period holds no samples.
	ErrEmptyPeriod = errors.New("l5alignment: empty alignment period")
)

// DefaultAlignmentPeriod returns [0, min(max(10, ⌊0.1·n⌋), n-1)), never
// empty for n ≥ 1.
func DefaultAlignmentPeriod(n int) l1samples.Period {
	return AlignmentPeriod(n, DefaultAlignmentFraction, DefaultAlignmentMinSamples)
}

// AlignmentPeriod returns [0, min(max(minSamples, ⌊fraction·n⌋), n-1)).
func AlignmentPeriod(n int, fraction float64, minSamples int) l1samples.Period {
	if n <= 0 {
		return l1samples.Period{}
	}
	end := min(max(minSamples, int(math.Floor(fraction*float64(n)))), n-1)
	if end < 1 {
		end = 1
	}
	return l1samples.Period{Start: 0, End: end}
}

// Options configures Align.
type Options struct {
	// PelvisOffsets are added to the aligned pelvis tilt, list and rot
	// (degrees) to match the target model's reference pose.
	PelvisOffsets [3]float64
}

// DefaultOptions returns the pelvis offsets of the standard gait model
// (+90, -90, +90).
func DefaultOptions() Options {
	return Options{PelvisOffsets: [3]float64{90, -90, 90}}
}

// Aligned is the result of Align.
type Aligned struct {
	Series l4joints.AngleSeries
	// Skipped lists joints (e.g. "ankle_l", "pelvis") absent from the input.
	Skipped []string
}

type jointGroup struct {
	name string
	dofs [3]string // z, x, y
}

func groups() []jointGroup {
	var out []jointGroup
	for _, side := range []l1samples.Side{l1samples.SideRight, l1samples.SideLeft} {
		for _, j := range l4joints.Joints {
			var g jointGroup
			g.name = string(j) + "_" + string(side)
			for k, a := range l4joints.JointAxes {
				g.dofs[k] = l4joints.DOFName(j, a, side)
			}
			out = append(out, g)
		}
	}
	pelvis := jointGroup{name: string(l4joints.Pelvis)}
	for k, a := range l4joints.PelvisAxes {
		pelvis.dofs[k] = l4joints.DOFName(l4joints.Pelvis, a, l1samples.SideNone)
	}
	return append(out, pelvis)
}

// Align re-expresses each joint so that its mean orientation over period
// becomes the identity. Per sample the (flexion, adduction, rotation)
// triple (pelvis: tilt, list, rot) is read as intrinsic Z-X-Y angles,
// right-multiplied by meanᵀ and decomposed again. The pelvis then gets
// opts.PelvisOffsets. Keys that are not joint DOFs pass through.
func Align(ja l4joints.AngleSeries, period l1samples.Period, opts Options) (Aligned, error) {
	out := Aligned{Series: make(l4joints.AngleSeries, len(ja))}
	used := make(map[string]bool)

	for _, g := range groups() {
		present := 0
		for _, d := range g.dofs {
			if _, ok := ja[d]; ok {
				present++
			}
		}
		switch present {
		case 0:
			out.Skipped = append(out.Skipped, g.name)
			continue
		case 1, 2:
			return Aligned{}, fmt.Errorf("%w: %s has %d of 3 DOFs", ErrMissingDOF, g.name, present)
		}

		z, x, y := ja[g.dofs[0]], ja[g.dofs[1]], ja[g.dofs[2]]
		if len(z) != len(x) || len(z) != len(y) {
			return Aligned{}, fmt.Errorf("%s: %w", g.name, l4joints.ErrLengthMismatch)
		}
		aligned, err := alignJoint(z, x, y, period)
		if err != nil {
			return Aligned{}, fmt.Errorf("%s: %w", g.name, err)
		}
		if g.name == string(l4joints.Pelvis) {
			for k := range aligned {
				for i := range aligned[k] {
					aligned[k][i] += opts.PelvisOffsets[k]
				}
			}
		}
		for k, d := range g.dofs {
			out.Series[d] = aligned[k]
			used[d] = true
		}
	}

	for dof, v := range ja {
		if used[dof] {
			continue
		}
		c := make([]float64, len(v))
		copy(c, v)
		out.Series[dof] = c
	}
	return out, nil
}

func alignJoint(z, x, y []float64, period l1samples.Period) ([3][]float64, error) {
	n := len(z)
	ms := make([]rotation.Mat3, n)
	for i := range ms {
		ms[i] = rotation.ZXYMatrix(units.DegToRad(z[i]), units.DegToRad(x[i]), units.DegToRad(y[i]))
	}

	p := period.Clamp(n)
	if p.Empty() {
		return [3][]float64{}, fmt.Errorf("%w: %s over %d samples", ErrEmptyPeriod, period, n)
	}
	mean, err := rotation.MeanRotation(ms[p.Start:p.End])
	if err != nil {
		return [3][]float64{}, err
	}
	correction := mean.T().Mul(rotation.Identity())

	out := [3][]float64{make([]float64, n), make([]float64, n), make([]float64, n)}
	for i, m := range ms {
		az, ax, ay := rotation.ZXYAngles(m.Mul(correction))
		out[0][i] = units.RadToDeg(az)
		out[1][i] = units.RadToDeg(ax)
		out[2][i] = units.RadToDeg(ay)
	}
	return out, nil
}
