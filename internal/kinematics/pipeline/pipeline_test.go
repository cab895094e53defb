package pipeline

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/imu-kinematics/internal/config"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/l1samples"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/l2orientation"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/l3calibration"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/l4joints"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/rotation"
	"github.com/banshee-data/imu-kinematics/internal/monitoring"
	"github.com/banshee-data/imu-kinematics/internal/testutil"
	"github.com/banshee-data/imu-kinematics/internal/timeutil"
)

const (
	n    = 200
	rate = 40.0
)

func init() {
	monitoring.SetLogger(nil)
	SetLogWriters(nil, nil, nil)
}

type stubDetector struct {
	events []int
	err    error
}

func (s stubDetector) Detect([]float64, float64) ([]int, error) { return s.events, s.err }

func settings(t *testing.T, js string) *config.PipelineConfig {
	t.Helper()
	cfg, err := config.ParsePipelineConfig([]byte(js))
	require.NoError(t, err)
	return cfg
}

func calibrationInputs(t *testing.T) CalibrationInputs {
	static := testutil.Recording(l1samples.LowerBody, func(l1samples.Segment) *l1samples.SensorTable {
		return testutil.StaticTable(t, n, testutil.Upright)
	})
	walking := testutil.Recording(l1samples.LowerBody, func(l1samples.Segment) *l1samples.SensorTable {
		return testutil.SwingTable(t, n, rate, 1, 3, r3.Vec{Z: 1}, testutil.Upright)
	})
	squat := testutil.Recording([]l1samples.Segment{l1samples.Pelvis}, func(l1samples.Segment) *l1samples.SensorTable {
		return testutil.SwingTable(t, n, rate, 0.5, 2, r3.Vec{Z: 1}, testutil.Upright)
	})
	return CalibrationInputs{Static: static, Walking: walking, Squat: squat}
}

func quatTable(t *testing.T, q quat.Number) *l1samples.SensorTable {
	cols := map[string][]float64{
		"Quat_q0": make([]float64, n),
		"Quat_q1": make([]float64, n),
		"Quat_q2": make([]float64, n),
		"Quat_q3": make([]float64, n),
	}
	for i := 0; i < n; i++ {
		cols["Quat_q0"][i] = q.Real
		cols["Quat_q1"][i] = q.Imag
		cols["Quat_q2"][i] = q.Jmag
		cols["Quat_q3"][i] = q.Kmag
	}
	return testutil.Table(t, cols)
}

func taskRecording(t *testing.T, segs []l1samples.Segment, q quat.Number) l1samples.Recording {
	return testutil.Recording(segs, func(l1samples.Segment) *l1samples.SensorTable {
		return quatTable(t, q)
	})
}

func heading(deg float64) quat.Number {
	return rotation.FromMatrix(rotation.RotY(deg * math.Pi / 180))
}

func rightSideAndPelvis() []l1samples.Segment {
	return []l1samples.Segment{l1samples.Pelvis, l1samples.ThighR, l1samples.ShankR, l1samples.FootR}
}

func TestNew(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, l2orientation.FilterXsens, p.filter)
	assert.Equal(t, l2orientation.Dim9D, p.dim)
	assert.Equal(t, l3calibration.Setup("MM"), p.setup)
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name     string
		settings *config.PipelineConfig
		kind     Kind
		sentinel error
	}{
		{
			name:     "filter not registered",
			settings: &config.PipelineConfig{FilterType: strPtr("VQF")},
			kind:     KindEstimator,
			sentinel: l2orientation.ErrNoEstimator,
		},
		{
			name:     "filter does not support dim",
			settings: &config.PipelineConfig{FilterType: strPtr("Xsens"), Dim: strPtr("6D")},
			kind:     KindEstimator,
			sentinel: l2orientation.ErrUnsupportedFilter,
		},
		{
			name:     "invalid setting",
			settings: &config.PipelineConfig{Setup: strPtr("MMM")},
			kind:     KindInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Config{Settings: tt.settings})
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
			var pe *Error
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, StageSetup, pe.Stage)
		})
	}
}

func strPtr(s string) *string { return &s }

func TestCalibrate(t *testing.T) {
	events := make([]int, 21)
	for i := range events {
		events[i] = 10 * i
	}
	p, err := New(Config{Detector: stubDetector{events: events}})
	require.NoError(t, err)

	sess, err := p.Calibrate(context.Background(), calibrationInputs(t))
	require.NoError(t, err)

	assert.Equal(t, l1samples.Period{Start: 100, End: 180}, sess.WalkingWindow().Period)
	assert.Nil(t, sess.WalkingWindow().Fallback)
	assert.Equal(t, l1samples.Period{Start: 0, End: n}, sess.SquatPeriod())

	s2s := sess.Seg2Sens()
	require.Len(t, s2s, len(l1samples.LowerBody))
	for seg, m := range s2s {
		assert.True(t, m.IsRotation(1e-6), "%s: %v", seg, m)
	}
	// Side-mounted right limbs rotating about the sensor z axis are
	// already aligned with their segments.
	assert.True(t, s2s[l1samples.ThighR].Equal(rotation.Identity(), 1e-9), "thigh_r: %v", s2s[l1samples.ThighR])

	assert.NotEmpty(t, sess.Offset())
	off := sess.Offset()
	off["hip_flexion_r"] = 99
	assert.NotEqual(t, 99.0, sess.Offset()["hip_flexion_r"], "Offset must return a copy")
}

func TestCalibrate_WalkingFallback(t *testing.T) {
	p, err := New(Config{Detector: stubDetector{err: errors.New("no peaks")}})
	require.NoError(t, err)

	in := calibrationInputs(t)
	sess, err := p.Calibrate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, l1samples.FallbackPeriod(n, 0.25, 0.75), sess.WalkingWindow().Period)

	fbs := sess.Fallbacks()
	require.NotEmpty(t, fbs)
	assert.Equal(t, l3calibration.FallbackWalkingPeriod, fbs[0].Kind)
	assert.Empty(t, fbs[0].Segment)

	// Without shank_r data the window still falls back.
	delete(in.Walking, l1samples.ShankR)
	sess, err = p.Calibrate(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, sess.WalkingWindow().Fallback)
	assert.Contains(t, sess.WalkingWindow().Fallback.Detail, "shank_r")
}

func TestCalibrate_SquatFallsBackToStatic(t *testing.T) {
	p, err := New(Config{Detector: stubDetector{}})
	require.NoError(t, err)

	in := calibrationInputs(t)
	in.Squat = nil
	sess, err := p.Calibrate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, l1samples.Period{Start: 0, End: n}, sess.SquatPeriod())

	var pelvis []l3calibration.FallbackKind
	for _, f := range sess.Fallbacks() {
		if f.Segment == l1samples.Pelvis {
			pelvis = append(pelvis, f.Kind)
		}
	}
	assert.Contains(t, pelvis, l3calibration.FallbackRotationAxis, "static pelvis has no rotation to analyse")
}

func TestCalibrate_Errors(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)

	_, err = p.Calibrate(context.Background(), CalibrationInputs{})
	assert.Equal(t, KindInsufficientSensors, KindOf(err))

	empty, err := l1samples.NewSensorTable(nil, nil)
	require.NoError(t, err)
	_, err = p.Calibrate(context.Background(), CalibrationInputs{Static: l1samples.Recording{l1samples.Pelvis: empty}})
	assert.Equal(t, KindInvalidInput, KindOf(err))

	unknown := l1samples.Recording{"wrist": testutil.StaticTable(t, n, testutil.Upright)}
	_, err = p.Calibrate(context.Background(), CalibrationInputs{Static: unknown})
	assert.Equal(t, KindInsufficientSensors, KindOf(err))
}

func TestProcess_EndToEnd(t *testing.T) {
	clock := timeutil.NewSteppingMockClock(time.Unix(0, 0), 20*time.Millisecond)
	p, err := New(Config{Detector: stubDetector{}, Clock: clock})
	require.NoError(t, err)
	sess, err := p.Calibrate(context.Background(), calibrationInputs(t))
	require.NoError(t, err)

	task := taskRecording(t, l1samples.LowerBody, rotation.IdentityQuat())
	task[l1samples.Chest] = quatTable(t, rotation.IdentityQuat())
	res, err := sess.Process(context.Background(), task)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, res.RunID)
	assert.Equal(t, l4joints.DOFOrder(), res.DOFOrder)
	assert.Equal(t, n, res.Samples)
	assert.Empty(t, res.Missing)
	assert.Empty(t, res.Skipped)
	for _, dof := range res.DOFOrder {
		assert.Len(t, res.JointAngles[dof], n, dof)
	}

	// Same orientations as the static trial: every joint is at its
	// reference pose and only the pelvis offsets remain.
	for _, dof := range res.DOFOrder {
		want := 0.0
		switch dof {
		case "pelvis_tilt", "pelvis_rot":
			want = 90
		case "pelvis_list":
			want = -90
		}
		assert.InDelta(t, want, res.JointAngles[dof][n/2], 1e-6, dof)
	}

	assert.Len(t, res.Timing, len(l1samples.LowerBody), "chest is not estimated")
	for _, seg := range res.SortedTiming() {
		assert.GreaterOrEqual(t, res.Timing[seg], (20*time.Millisecond).Seconds()/n, seg)
	}

	rad := res.InUnits("rad")
	assert.InDelta(t, math.Pi/2, rad["pelvis_tilt"][0], 1e-9)
	assert.InDelta(t, 90, res.JointAngles["pelvis_tilt"][0], 1e-6, "InUnits must not modify the result")
}

func TestProcess_SessionIsReusable(t *testing.T) {
	p, err := New(Config{Detector: stubDetector{}})
	require.NoError(t, err)
	sess, err := p.Calibrate(context.Background(), calibrationInputs(t))
	require.NoError(t, err)

	task := taskRecording(t, l1samples.LowerBody, rotation.IdentityQuat())
	first, err := sess.Process(context.Background(), task)
	require.NoError(t, err)
	second, err := sess.Process(context.Background(), task)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.JointAngles, second.JointAngles)
}

func TestProcess_MissingFoot(t *testing.T) {
	p, err := New(Config{Detector: stubDetector{}})
	require.NoError(t, err)
	sess, err := p.Calibrate(context.Background(), calibrationInputs(t))
	require.NoError(t, err)

	task := taskRecording(t, l1samples.LowerBody, rotation.IdentityQuat())
	delete(task, l1samples.FootL)
	res, err := sess.Process(context.Background(), task)
	require.NoError(t, err)

	require.Len(t, res.Missing, 1)
	assert.Equal(t, l4joints.Ankle, res.Missing[0].Joint)
	assert.Equal(t, l1samples.SideLeft, res.Missing[0].Side)
	assert.Contains(t, res.Skipped, "ankle_l")
	assert.NotContains(t, res.DOFOrder, "ankle_flexion_l")
	assert.Contains(t, res.DOFOrder, "ankle_flexion_r")
	assert.Len(t, res.DOFOrder, len(l4joints.DOFOrder())-3)

	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "foot_l") {
			found = true
		}
	}
	assert.True(t, found, "warnings: %v", res.Warnings)
}

func TestProcess_6DCorrectionRemovesHeading(t *testing.T) {
	reg := l2orientation.NewRegistry()
	q := heading(30)
	reg.Register(l2orientation.FilterVQF, l2orientation.EstimatorFunc(
		func(table *l1samples.SensorTable, fs float64, dim l2orientation.Dim, params []float64) (l2orientation.Series, l2orientation.EstimateInfo, error) {
			assert.Equal(t, l2orientation.Dim6D, dim)
			assert.Equal(t, []float64{2, 10}, params)
			out := make(l2orientation.Series, table.Len())
			for i := range out {
				out[i] = q
			}
			return out, l2orientation.EstimateInfo{}, nil
		}))

	cfg := settings(t, `{"filter_type": "VQF", "dim": "6D", "remove_offset": false, "align": false}`)
	p, err := New(Config{Settings: cfg, Registry: reg, Detector: stubDetector{}})
	require.NoError(t, err)
	sess, err := p.Calibrate(context.Background(), calibrationInputs(t))
	require.NoError(t, err)
	assert.Nil(t, sess.Offset())

	res, err := sess.Process(context.Background(), taskRecording(t, rightSideAndPelvis(), q))
	require.NoError(t, err)
	for _, dof := range res.DOFOrder {
		assert.InDelta(t, 0, res.JointAngles[dof][n-1], 1e-6, dof)
	}
	assert.Contains(t, strings.Join(res.Warnings, "\n"), "all joint angles are zero")
}

func TestProcess_9DKeepsHeading(t *testing.T) {
	cfg := settings(t, `{"remove_offset": false, "align": false}`)
	p, err := New(Config{Settings: cfg, Detector: stubDetector{}})
	require.NoError(t, err)
	sess, err := p.Calibrate(context.Background(), calibrationInputs(t))
	require.NoError(t, err)

	res, err := sess.Process(context.Background(), taskRecording(t, rightSideAndPelvis(), heading(30)))
	require.NoError(t, err)
	assert.InDelta(t, 30, math.Abs(res.JointAngles["pelvis_rot"][0]), 1e-6)
	assert.NotContains(t, strings.Join(res.Warnings, "\n"), "all joint angles are zero")
}

func TestProcess_EstimatorFailures(t *testing.T) {
	boom := errors.New("filter diverged")
	tests := []struct {
		name string
		est  l2orientation.EstimatorFunc
		kind Kind
	}{
		{
			name: "error",
			est: func(*l1samples.SensorTable, float64, l2orientation.Dim, []float64) (l2orientation.Series, l2orientation.EstimateInfo, error) {
				return nil, l2orientation.EstimateInfo{}, boom
			},
			kind: KindEstimator,
		},
		{
			name: "wrong length",
			est: func(table *l1samples.SensorTable, _ float64, _ l2orientation.Dim, _ []float64) (l2orientation.Series, l2orientation.EstimateInfo, error) {
				return l2orientation.Identity(table.Len() - 1), l2orientation.EstimateInfo{}, nil
			},
			kind: KindShapeMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := l2orientation.NewRegistry()
			reg.Register(l2orientation.FilterMAD, tt.est)
			cfg := settings(t, `{"filter_type": "MAD", "remove_offset": false}`)
			p, err := New(Config{Settings: cfg, Registry: reg, Detector: stubDetector{}})
			require.NoError(t, err)
			sess, err := p.Calibrate(context.Background(), calibrationInputs(t))
			require.NoError(t, err)

			_, err = sess.Process(context.Background(), taskRecording(t, l1samples.LowerBody, rotation.IdentityQuat()))
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			if tt.kind == KindEstimator {
				assert.ErrorIs(t, err, boom)
			}
		})
	}
}

func TestProcess_InputErrors(t *testing.T) {
	p, err := New(Config{Detector: stubDetector{}})
	require.NoError(t, err)
	sess, err := p.Calibrate(context.Background(), calibrationInputs(t))
	require.NoError(t, err)

	_, err = sess.Process(context.Background(), nil)
	assert.Equal(t, KindInvalidInput, KindOf(err))

	// Only the chest: nothing to compute.
	_, err = sess.Process(context.Background(), taskRecording(t, []l1samples.Segment{l1samples.Chest}, rotation.IdentityQuat()))
	assert.Equal(t, KindInsufficientSensors, KindOf(err))
	assert.ErrorIs(t, err, l4joints.ErrNoJoints)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sess.Process(ctx, taskRecording(t, l1samples.LowerBody, rotation.IdentityQuat()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLogStreams(t *testing.T) {
	defer SetLogWriters(nil, nil, nil)

	var ops, diag, trace bytes.Buffer
	SetLogWriters(&ops, &diag, &trace)

	p, err := New(Config{Detector: stubDetector{err: errors.New("no peaks")}})
	require.NoError(t, err)
	sess, err := p.Calibrate(context.Background(), calibrationInputs(t))
	require.NoError(t, err)
	_, err = sess.Process(context.Background(), taskRecording(t, l1samples.LowerBody, rotation.IdentityQuat()))
	require.NoError(t, err)

	assert.Contains(t, ops.String(), "[pipeline] ")
	assert.Contains(t, ops.String(), "walking_period")
	assert.Contains(t, diag.String(), "[pipeline] diag: ")
	assert.Contains(t, diag.String(), "filter=Xsens")
	assert.NotContains(t, diag.String(), "trace: ")
	assert.Contains(t, trace.String(), "samples in")

	var all bytes.Buffer
	SetLegacyLogger(&all)
	diagf("one stream")
	assert.Contains(t, all.String(), "diag: one stream")

	SetLogWriters(nil, nil, nil)
	tracef("dropped")
	assert.NotContains(t, all.String(), "dropped")
}

func TestError(t *testing.T) {
	err := wrap(StageAlignment, errors.New("plain"))
	assert.Equal(t, KindInvalidInput, err.Kind)
	assert.Contains(t, err.Error(), "pipeline alignment: invalid_input: plain")

	again := wrap(StageJointAngles, err)
	assert.Same(t, err, again, "already classified errors are returned as is")
	assert.Equal(t, Kind(""), KindOf(errors.New("other")))
}
