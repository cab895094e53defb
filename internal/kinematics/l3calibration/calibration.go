package l3calibration

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/imu-kinematics/internal/kinematics/l1samples"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/rotation"
	"github.com/banshee-data/imu-kinematics/internal/monitoring"
)

// Default tolerances.
const (
	DefaultDegenerateEpsilon = 1e-6
	DefaultMinPCASamples     = 4
)

// Setup is the two-character attachment code: the first character
// describes the shank sensors, the second the thigh sensors. 'F' means
// the sensor is worn on the front of the segment; anything else (e.g.
// 'M' medial, 'L' lateral, 'H') uses the side-mounted convention.
type Setup string

// DefaultSetupChar is used for a missing setup character.
const DefaultSetupChar = 'M'

func (s Setup) char(i int) byte {
	if i >= len(s) {
		return DefaultSetupChar
	}
	c := strings.ToUpper(string(s[i]))
	return c[0]
}

// ShankFront reports whether shank sensors are front-mounted.
func (s Setup) ShankFront() bool { return s.char(0) == 'F' }

// ThighFront reports whether thigh sensors are front-mounted.
func (s Setup) ThighFront() bool { return s.char(1) == 'F' }

// Normalized returns the two-character upper-case form of s.
func (s Setup) Normalized() Setup {
	return Setup([]byte{s.char(0), s.char(1)})
}

// ShankGyroChannel returns the shank gyroscope channel that carries the
// sagittal angular velocity for this setup.
func ShankGyroChannel(setup Setup) string {
	if setup.ShankFront() {
		return l1samples.GyrY
	}
	return l1samples.GyrZ
}

// FallbackKind names a substitution made during calibration.
type FallbackKind string

const (
	// FallbackVertical: static accelerometer missing or zero; fy = [0,1,0].
	FallbackVertical FallbackKind = "default_vertical_axis"
	// FallbackRotationAxis: PCA unavailable; default rotation axis used.
	FallbackRotationAxis FallbackKind = "default_rotation_axis"
	// FallbackForward: fy and the rotation axis were parallel; fx taken
	// from a fixed axis orthogonalised against fy.
	FallbackForward FallbackKind = "degenerate_forward_axis"
	// FallbackWalkingPeriod: too few gait events; fractional window used.
	FallbackWalkingPeriod FallbackKind = "walking_period"
	// FallbackPlaceholder: segment not used for joints (chest).
	FallbackPlaceholder FallbackKind = "placeholder"
)

// Fallback records one substitution for one segment.
type Fallback struct {
	Kind   FallbackKind `json:"kind"`
	Detail string       `json:"detail"`
}

func (f Fallback) String() string {
	return string(f.Kind) + ": " + f.Detail
}

// Options tunes numerical thresholds. Zero values take the defaults.
type Options struct {
	DegenerateEpsilon float64
	MinPCASamples     int
}

func (o Options) withDefaults() Options {
	if o.DegenerateEpsilon <= 0 {
		o.DegenerateEpsilon = DefaultDegenerateEpsilon
	}
	if o.MinPCASamples <= 0 {
		o.MinPCASamples = DefaultMinPCASamples
	}
	return o
}

// Calibration holds one session's sensor-to-segment transforms. Each
// matrix has rows fx, fy, fz (segment axes expressed in the sensor frame).
type Calibration struct {
	Seg2Sens  map[l1samples.Segment]rotation.Mat3
	Fallbacks map[l1samples.Segment][]Fallback
}

// UsedFallback reports whether any segment needed a substitution.
func (c Calibration) UsedFallback() bool {
	for _, fs := range c.Fallbacks {
		if len(fs) > 0 {
			return true
		}
	}
	return false
}

var (
	defaultVertical = r3.Vec{Y: 1}
	defaultAxisLimb = r3.Vec{Z: 1}
	defaultAxisFoot = r3.Vec{Y: 1}
)

// SensorToSegment computes the transform of every segment in static.
// Missing or unusable data never aborts the run: the affected segment
// gets documented default axes and a Fallback entry.
//
// squat is used for the pelvis axis (squat or jump trial); walking for
// thighs, shanks and feet. Both periods are clamped to the data.
func SensorToSegment(
	static, walking l1samples.Recording, walkingPeriod l1samples.Period,
	squat l1samples.Recording, squatPeriod l1samples.Period,
	setup Setup, opts Options,
) Calibration {
	opts = opts.withDefaults()
	cal := Calibration{
		Seg2Sens:  make(map[l1samples.Segment]rotation.Mat3, len(static)),
		Fallbacks: make(map[l1samples.Segment][]Fallback),
	}

	for _, seg := range static.Segments() {
		if !seg.Known() {
			monitoring.Logf("calibration: skipping unknown sensor %q", seg)
			continue
		}
		if seg == l1samples.Chest {
			cal.Seg2Sens[seg] = rotation.Identity()
			cal.Fallbacks[seg] = []Fallback{{Kind: FallbackPlaceholder, Detail: "chest is not used for joint angles"}}
			continue
		}

		var fallbacks []Fallback
		fy, fb := verticalAxis(static[seg], opts)
		if fb != nil {
			fallbacks = append(fallbacks, *fb)
		}

		pc1, fb := rotationAxis(seg, walking, walkingPeriod, squat, squatPeriod, setup, opts)
		if fb != nil {
			fallbacks = append(fallbacks, *fb)
		}

		var v r3.Vec
		switch {
		case seg == l1samples.Pelvis || seg == l1samples.FootL || seg == l1samples.FootR:
			v = r3.Cross(fy, pc1)
		case isThigh(seg) && setup.ThighFront(), isShank(seg) && setup.ShankFront():
			v = r3.Cross(fy, pc1)
		case seg.Side() == l1samples.SideRight:
			v = r3.Cross(fy, pc1)
		default:
			v = r3.Cross(pc1, fy)
		}

		fx, ok := rotation.UnitOK(v, opts.DegenerateEpsilon)
		if !ok {
			fx = forwardFallback(fy)
			fallbacks = append(fallbacks, Fallback{
				Kind:   FallbackForward,
				Detail: fmt.Sprintf("vertical and rotation axes are parallel (|fy x pc1| = %.2e)", r3.Norm(v)),
			})
		}
		fz := r3.Unit(r3.Cross(fx, fy))

		cal.Seg2Sens[seg] = rotation.FromRows(fx, fy, fz)
		if len(fallbacks) > 0 {
			cal.Fallbacks[seg] = fallbacks
			for _, f := range fallbacks {
				monitoring.Logf("calibration: %s fallback %s", seg, f)
			}
		}
	}
	return cal
}

func isThigh(s l1samples.Segment) bool { return s == l1samples.ThighL || s == l1samples.ThighR }
func isShank(s l1samples.Segment) bool { return s == l1samples.ShankL || s == l1samples.ShankR }

// verticalAxis returns the normalized mean static acceleration.
func verticalAxis(t *l1samples.SensorTable, opts Options) (r3.Vec, *Fallback) {
	acc, ok := t.Acc()
	if !ok || len(acc) == 0 {
		return defaultVertical, &Fallback{Kind: FallbackVertical, Detail: "static accelerometer channels missing"}
	}
	mean, err := rotation.MeanVec(acc)
	if err != nil {
		return defaultVertical, &Fallback{Kind: FallbackVertical, Detail: err.Error()}
	}
	fy, ok := rotation.UnitOK(mean, opts.DegenerateEpsilon)
	if !ok {
		return defaultVertical, &Fallback{Kind: FallbackVertical, Detail: "static acceleration has zero mean"}
	}
	return fy, nil
}

// rotationAxis returns the sign-normalised first principal axis of the
// segment's gyroscope signal during its functional movement.
func rotationAxis(
	seg l1samples.Segment,
	walking l1samples.Recording, walkingPeriod l1samples.Period,
	squat l1samples.Recording, squatPeriod l1samples.Period,
	setup Setup, opts Options,
) (r3.Vec, *Fallback) {
	src, period, trial := walking, walkingPeriod, "walking"
	def := defaultAxisLimb
	if seg == l1samples.Pelvis {
		src, period, trial = squat, squatPeriod, "squat"
	}
	if seg == l1samples.FootL || seg == l1samples.FootR {
		def = defaultAxisFoot
	}

	t, ok := src[seg]
	if !ok || t == nil {
		return def, &Fallback{Kind: FallbackRotationAxis, Detail: fmt.Sprintf("no %s data", trial)}
	}
	gyr, ok := t.Gyr()
	if !ok {
		return def, &Fallback{Kind: FallbackRotationAxis, Detail: fmt.Sprintf("%s gyroscope channels missing", trial)}
	}
	p := period.Clamp(len(gyr))
	if p.Len() < opts.MinPCASamples {
		return def, &Fallback{
			Kind:   FallbackRotationAxis,
			Detail: fmt.Sprintf("%s period %s has %d samples, need %d", trial, p, p.Len(), opts.MinPCASamples),
		}
	}
	pc1, ok := FirstPrincipalAxis(gyr[p.Start:p.End], opts.MinPCASamples)
	if !ok {
		return def, &Fallback{Kind: FallbackRotationAxis, Detail: fmt.Sprintf("%s gyroscope has no variance", trial)}
	}

	switch {
	case seg == l1samples.Pelvis:
		if pc1.Y > 0 {
			pc1 = r3.Scale(-1, pc1)
		}
	case seg == l1samples.FootL || seg == l1samples.FootR,
		isThigh(seg) && setup.ThighFront(),
		isShank(seg) && setup.ShankFront():
		if pc1.Y < 0 {
			pc1 = r3.Scale(-1, pc1)
		}
	default:
		if pc1.Z < 0 {
			pc1 = r3.Scale(-1, pc1)
		}
	}
	return pc1, nil
}

// forwardFallback returns x with its fy component removed, or z when x is
// itself near-parallel to fy.
func forwardFallback(fy r3.Vec) r3.Vec {
	if v, ok := rotation.UnitOK(rotation.RejectFrom(r3.Vec{X: 1}, fy), 1e-3); ok {
		return v
	}
	return r3.Unit(rotation.RejectFrom(r3.Vec{Z: 1}, fy))
}
