package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/imu-kinematics/internal/config"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/l1samples"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/l2orientation"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/l3calibration"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/l4joints"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/l5alignment"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/rotation"
	"github.com/banshee-data/imu-kinematics/internal/timeutil"
	"github.com/banshee-data/imu-kinematics/internal/units"
)

// Config holds dependencies and settings for a Pipeline.
type Config struct {
	Settings *config.PipelineConfig          // nil uses config.DefaultPipelineConfig()
	Registry *l2orientation.Registry         // nil uses l2orientation.NewRegistry()
	Detector l3calibration.GaitEventDetector // nil uses the mid-swing peak detector
	Clock    timeutil.Clock                  // nil uses timeutil.RealClock
	Signs    *l4joints.SignTable             // nil uses l4joints.DefaultSignTable()
}

// Pipeline runs calibration and task processing with one resolved
// orientation estimator. It is safe for concurrent use.
type Pipeline struct {
	settings  *config.PipelineConfig
	filter    l2orientation.FilterType
	dim       l2orientation.Dim
	params    []float64
	estimator l2orientation.Estimator
	detector  l3calibration.GaitEventDetector
	clock     timeutil.Clock
	signs     l4joints.SignTable
	setup     l3calibration.Setup
	fs        float64
}

// New validates cfg and resolves the estimator for the configured
// filter and dimension.
func New(cfg Config) (*Pipeline, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.DefaultPipelineConfig()
	}
	if err := settings.Validate(); err != nil {
		return nil, wrap(StageSetup, err)
	}

	ft, err := l2orientation.ParseFilterType(settings.GetFilterType())
	if err != nil {
		return nil, wrap(StageSetup, err)
	}
	dim, err := l2orientation.ParseDim(settings.GetDim())
	if err != nil {
		return nil, wrap(StageSetup, err)
	}
	reg := cfg.Registry
	if reg == nil {
		reg = l2orientation.NewRegistry()
	}
	est, err := reg.Lookup(ft, dim)
	if err != nil {
		return nil, wrap(StageSetup, err)
	}

	p := &Pipeline{
		settings:  settings,
		filter:    ft,
		dim:       dim,
		params:    settings.GetFilterParams(ft),
		estimator: est,
		detector:  cfg.Detector,
		clock:     cfg.Clock,
		signs:     l4joints.DefaultSignTable(),
		setup:     l3calibration.Setup(settings.GetSetup()).Normalized(),
		fs:        settings.GetSamplingRateHz(),
	}
	if p.detector == nil {
		p.detector = l3calibration.DefaultMidSwingDetector()
	}
	if p.clock == nil {
		p.clock = timeutil.RealClock{}
	}
	if cfg.Signs != nil {
		p.signs = *cfg.Signs
	}
	diagf("filter=%s dim=%s setup=%s fs=%.1fHz params=%v", ft, dim, p.setup, p.fs, p.params)
	return p, nil
}

// CalibrationInputs are the calibration trials of one subject. Walking
// and Squat may be empty; calibration then falls back per segment.
type CalibrationInputs struct {
	Static  l1samples.Recording
	Walking l1samples.Recording
	Squat   l1samples.Recording
}

// FallbackReport is one calibration substitution. Segment is empty for
// session-wide fallbacks such as the walking period.
type FallbackReport struct {
	Segment l1samples.Segment `json:"segment,omitempty"`
	l3calibration.Fallback
}

// Session holds the immutable calibration artifacts of one subject.
// Process may be called concurrently.
type Session struct {
	p           *Pipeline
	calibration l3calibration.Calibration
	walking     l3calibration.WalkingWindow
	squatPeriod l1samples.Period
	offset      l5alignment.Offset
}

// Calibrate computes sensor-to-segment transforms and, when offset
// removal is enabled, the static-pose joint angle offset.
func (p *Pipeline) Calibrate(ctx context.Context, in CalibrationInputs) (*Session, error) {
	if len(in.Static) == 0 {
		return nil, newError(StageCalibration, KindInsufficientSensors, errors.New("static recording has no sensors"))
	}
	for _, seg := range in.Static.Segments() {
		if in.Static[seg].Len() == 0 {
			return nil, newError(StageCalibration, KindInvalidInput, fmt.Errorf("static %s has no samples", seg))
		}
	}

	walking := p.walkingWindow(in.Walking)
	squat, squatPeriod := squatTrial(in.Static, in.Squat)
	cal := l3calibration.SensorToSegment(
		in.Static, in.Walking, walking.Period, squat, squatPeriod, p.setup,
		l3calibration.Options{
			DegenerateEpsilon: p.settings.GetDegenerateEpsilon(),
			MinPCASamples:     p.settings.GetMinPCASamples(),
		},
	)
	if len(cal.Seg2Sens) == 0 {
		return nil, newError(StageCalibration, KindInsufficientSensors, errors.New("no known segments in static recording"))
	}
	diagf("calibrated %d segments, walking %s (%d events), squat %s",
		len(cal.Seg2Sens), walking.Period, walking.Events, squatPeriod)

	s := &Session{p: p, calibration: cal, walking: walking, squatPeriod: squatPeriod}
	for _, f := range s.Fallbacks() {
		opsf("calibration fallback %s %s", f.Segment, f.Fallback)
	}

	if p.settings.GetRemoveOffset() {
		angles, err := p.jointAngles(ctx, cal.Seg2Sens, in.Static, nil)
		if err != nil {
			var pe *Error
			if errors.As(err, &pe) {
				return nil, newError(StageOffset, pe.Kind, err)
			}
			return nil, err
		}
		s.offset = l5alignment.StaticOffset(angles.Series)
		diagf("static offset over %d DOFs", len(s.offset))
	}
	return s, nil
}

func (p *Pipeline) walkingWindow(walking l1samples.Recording) l3calibration.WalkingWindow {
	wcfg := l3calibration.WalkingPeriodConfig{
		StartEvent:    p.settings.GetGaitEventStartIndex(),
		EndEvent:      p.settings.GetGaitEventEndIndex(),
		FallbackStart: p.settings.GetWalkingFallbackStart(),
		FallbackEnd:   p.settings.GetWalkingFallbackEnd(),
	}
	channel := l3calibration.ShankGyroChannel(p.setup)
	if gyr, ok := walking[l1samples.ShankR].Column(channel); ok {
		return l3calibration.WalkingPeriod(gyr, p.fs, p.detector, wcfg)
	}

	n := 0
	for _, t := range walking {
		n = max(n, t.Len())
	}
	return l3calibration.WalkingWindow{
		Period: l1samples.FallbackPeriod(n, wcfg.FallbackStart, wcfg.FallbackEnd),
		Fallback: &l3calibration.Fallback{
			Kind:   l3calibration.FallbackWalkingPeriod,
			Detail: fmt.Sprintf("%s %s unavailable", l1samples.ShankR, channel),
		},
	}
}

// squatTrial uses the whole pelvis squat recording, or the static trial
// when no squat pelvis data exists.
func squatTrial(static, squat l1samples.Recording) (l1samples.Recording, l1samples.Period) {
	if n := squat[l1samples.Pelvis].Len(); n > 0 {
		return squat, l1samples.Period{Start: 0, End: n}
	}
	return static, l1samples.Period{Start: 0, End: static[l1samples.Pelvis].Len()}
}

// Seg2Sens returns a copy of the calibrated transforms.
func (s *Session) Seg2Sens() map[l1samples.Segment]rotation.Mat3 {
	out := make(map[l1samples.Segment]rotation.Mat3, len(s.calibration.Seg2Sens))
	for k, v := range s.calibration.Seg2Sens {
		out[k] = v
	}
	return out
}

// WalkingWindow returns the walking calibration window.
func (s *Session) WalkingWindow() l3calibration.WalkingWindow { return s.walking }

// SquatPeriod returns the pelvis calibration window.
func (s *Session) SquatPeriod() l1samples.Period { return s.squatPeriod }

// Offset returns a copy of the static offset, or nil when offset removal
// is disabled.
func (s *Session) Offset() l5alignment.Offset {
	if s.offset == nil {
		return nil
	}
	out := make(l5alignment.Offset, len(s.offset))
	for k, v := range s.offset {
		out[k] = v
	}
	return out
}

// Fallbacks lists every calibration substitution, walking period first,
// then segments in name order.
func (s *Session) Fallbacks() []FallbackReport {
	var out []FallbackReport
	if s.walking.Fallback != nil {
		out = append(out, FallbackReport{Fallback: *s.walking.Fallback})
	}
	for _, seg := range l1samples.SortedSegments(s.calibration.Fallbacks) {
		for _, f := range s.calibration.Fallbacks[seg] {
			out = append(out, FallbackReport{Segment: seg, Fallback: f})
		}
	}
	return out
}

// Result is the output of one task.
type Result struct {
	RunID       uuid.UUID                `json:"run_id"`
	Filter      l2orientation.FilterType `json:"filter_type"`
	Dim         l2orientation.Dim        `json:"dim"`
	Samples     int                      `json:"samples"`
	DOFOrder    []string                 `json:"dof_order"`
	JointAngles l4joints.AngleSeries     `json:"joint_angles"`
	Missing     []l4joints.MissingJoint  `json:"missing_joints,omitempty"`
	Skipped     []string                 `json:"alignment_skipped,omitempty"`
	Warnings    []string                 `json:"warnings,omitempty"`
	Fallbacks   []FallbackReport         `json:"fallbacks,omitempty"`
	// Timing is the orientation estimation time per sensor, in seconds
	// per sample.
	Timing map[l1samples.Segment]float64 `json:"seconds_per_sample"`
}

func (r *Result) warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	opsf("%s", msg)
	if r != nil {
		r.Warnings = append(r.Warnings, msg)
	}
}

// InUnits returns the joint angles converted to u ("deg" or "rad").
func (r *Result) InUnits(u string) l4joints.AngleSeries {
	out := make(l4joints.AngleSeries, len(r.JointAngles))
	for dof, v := range r.JointAngles {
		out[dof] = units.ConvertSeries(v, u)
	}
	return out
}

// Process runs one task recording through the session.
func (s *Session) Process(ctx context.Context, task l1samples.Recording) (*Result, error) {
	if len(task) == 0 {
		return nil, newError(StageOrientation, KindInvalidInput, errors.New("task recording has no sensors"))
	}
	p := s.p
	res := &Result{
		RunID:     uuid.New(),
		Filter:    p.filter,
		Dim:       p.dim,
		Fallbacks: s.Fallbacks(),
		Timing:    make(map[l1samples.Segment]float64),
	}

	angles, err := p.jointAngles(ctx, s.calibration.Seg2Sens, task, res)
	if err != nil {
		return nil, err
	}
	res.Missing = angles.Missing
	for _, m := range angles.Missing {
		res.warnf("%s %s skipped: missing %v", m.Joint, m.Side, m.Segments)
	}

	series := angles.Series
	if s.offset != nil {
		series = l5alignment.RemoveOffset(series, s.offset)
	}
	if p.settings.GetAlign() {
		period := l5alignment.AlignmentPeriod(series.Len(), p.settings.GetAlignmentFraction(), p.settings.GetAlignmentMinSamples())
		aligned, err := l5alignment.Align(series, period, l5alignment.Options{PelvisOffsets: p.settings.GetPelvisOffsetsDeg()})
		if err != nil {
			return nil, wrap(StageAlignment, err)
		}
		series = aligned.Series
		res.Skipped = aligned.Skipped
		diagf("aligned over %s, skipped %v", period, aligned.Skipped)
	}

	if l4joints.AllZero(series, p.settings.GetZeroAngleTolerance()) {
		res.warnf("all joint angles are zero; check the orientation input")
	}

	res.JointAngles = series
	res.DOFOrder = series.Names()
	res.Samples = series.Len()
	diagf("run %s: %d DOFs x %d samples, %d warnings", res.RunID, len(res.DOFOrder), res.Samples, len(res.Warnings))
	return res, nil
}

// jointAngles estimates orientations for rec, applies 6D correction when
// configured and computes calibrated joint angles. res may be nil.
func (p *Pipeline) jointAngles(ctx context.Context, seg2sens map[l1samples.Segment]rotation.Mat3, rec l1samples.Recording, res *Result) (l4joints.Angles, error) {
	orient, err := p.estimateAll(ctx, rec, res)
	if err != nil {
		return l4joints.Angles{}, err
	}

	if p.dim == l2orientation.Dim6D {
		corr, err := l2orientation.CorrectRandom6D(
			l2orientation.InitialOrientation(seg2sens), orient, p.fs, p.settings.GetStaticStandingPeriodS(),
		)
		if err != nil {
			return l4joints.Angles{}, wrap(StageCorrection, err)
		}
		for _, seg := range corr.Uncorrected {
			res.warnf("%s heading not corrected: no calibration", seg)
		}
		orient = corr.Series
	}

	angles, err := l4joints.AllJointAngles(seg2sens, orient, p.signs, true)
	if err != nil {
		return l4joints.Angles{}, wrap(StageJointAngles, err)
	}
	return angles, nil
}

type estimate struct {
	series           l2orientation.Series
	info             l2orientation.EstimateInfo
	secondsPerSample float64
}

// estimateAll runs the estimator for every lower-body sensor
// concurrently. Each goroutine writes only its own slot.
func (p *Pipeline) estimateAll(ctx context.Context, rec l1samples.Recording, res *Result) (map[l1samples.Segment]l2orientation.Series, error) {
	var segs []l1samples.Segment
	for _, seg := range rec.Segments() {
		if !seg.Known() || seg == l1samples.Chest {
			tracef("skipping %s: not a lower-body segment", seg)
			continue
		}
		segs = append(segs, seg)
	}

	results := make([]estimate, len(segs))
	g, gctx := errgroup.WithContext(ctx)
	for i, seg := range segs {
		i, seg := i, seg
		table := rec[seg]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := p.clock.Now()
			series, info, err := p.estimator.Estimate(table, p.fs, p.dim, p.params)
			elapsed := p.clock.Since(start)
			if err != nil {
				return newError(StageOrientation, KindEstimator, fmt.Errorf("%s: %w", seg, err))
			}
			if len(series) != table.Len() {
				return newError(StageOrientation, KindShapeMismatch,
					fmt.Errorf("%s: estimator returned %d samples for %d", seg, len(series), table.Len()))
			}
			results[i] = estimate{
				series:           series.Normalize(),
				info:             info,
				secondsPerSample: timeutil.SecondsPerSample(elapsed, table.Len()),
			}
			tracef("%s: %d samples in %v", seg, table.Len(), elapsed)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	out := make(map[l1samples.Segment]l2orientation.Series, len(segs))
	for i, seg := range segs {
		r := results[i]
		out[seg] = r.series
		if r.info.Fallback {
			res.warnf("%s orientation fallback: %s", seg, r.info.Note)
		}
		if res != nil {
			res.Timing[seg] = r.secondsPerSample
		}
	}
	return out, nil
}

// SortedTiming returns the timing entries in segment order, for display.
func (r *Result) SortedTiming() []l1samples.Segment {
	return l1samples.SortedSegments(r.Timing)
}
