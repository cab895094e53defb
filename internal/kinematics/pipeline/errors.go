package pipeline

import (
	"errors"
	"fmt"

	"github.com/banshee-data/imu-kinematics/internal/kinematics/l1samples"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/l2orientation"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/l4joints"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/l5alignment"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindShapeMismatch       Kind = "shape_mismatch"
	KindInsufficientSensors Kind = "insufficient_sensors"
	KindMissingDOF          Kind = "missing_dof"
	KindEstimator           Kind = "estimator"
)

// Stage names the step that failed.
type Stage string

const (
	StageSetup       Stage = "setup"
	StageCalibration Stage = "calibration"
	StageOrientation Stage = "orientation"
	StageCorrection  Stage = "correction"
	StageJointAngles Stage = "joint_angles"
	StageOffset      Stage = "offset"
	StageAlignment   Stage = "alignment"
)

// Error is returned by New, Calibrate and Process. errors.Is and
// errors.As see through it to the layer sentinel in Err.
type Error struct {
	Kind  Kind
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("pipeline %s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

func newError(stage Stage, kind Kind, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// wrap classifies err by the layer sentinel it carries.
func wrap(stage Stage, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	kind := KindInvalidInput
	switch {
	case errors.Is(err, l4joints.ErrLengthMismatch), errors.Is(err, l1samples.ErrRaggedColumns):
		kind = KindShapeMismatch
	case errors.Is(err, l4joints.ErrNoJoints):
		kind = KindInsufficientSensors
	case errors.Is(err, l5alignment.ErrMissingDOF):
		kind = KindMissingDOF
	case errors.Is(err, l2orientation.ErrUnsupportedFilter), errors.Is(err, l2orientation.ErrNoEstimator):
		kind = KindEstimator
	}
	return newError(stage, kind, err)
}
