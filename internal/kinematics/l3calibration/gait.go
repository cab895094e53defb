package l3calibration

import (
	"fmt"
	"math"

	"github.com/banshee-data/imu-kinematics/internal/kinematics/l1samples"
	"github.com/banshee-data/imu-kinematics/internal/monitoring"
)

// GaitEventDetector finds mid-swing sample indices in a shank sagittal
// gyroscope signal. Indices must be ascending.
type GaitEventDetector interface {
	Detect(signal []float64, fs float64) ([]int, error)
}

// MidSwingDetector marks mid-swing at the positive peaks of the shank
// sagittal angular velocity.
type MidSwingDetector struct {
	// MinPeakFraction is the minimum peak height as a fraction of the
	// signal maximum.
	MinPeakFraction float64
	// MinSeparationS is the minimum time between two events in seconds.
	MinSeparationS float64
}

// DefaultMidSwingDetector returns a detector tuned for normal walking
// cadence (at most ~1.7 strides per second).
func DefaultMidSwingDetector() MidSwingDetector {
	return MidSwingDetector{MinPeakFraction: 0.5, MinSeparationS: 0.6}
}

// Detect implements GaitEventDetector.
func (d MidSwingDetector) Detect(signal []float64, fs float64) ([]int, error) {
	if fs <= 0 {
		return nil, fmt.Errorf("l3calibration: sampling rate must be positive, got %v", fs)
	}
	if len(signal) < 3 {
		return nil, nil
	}
	peak := math.Inf(-1)
	for _, v := range signal {
		peak = math.Max(peak, v)
	}
	if !(peak > 0) {
		return nil, nil
	}
	threshold := d.MinPeakFraction * peak
	minSep := int(math.Round(d.MinSeparationS * fs))

	var events []int
	for i := 1; i < len(signal)-1; i++ {
		v := signal[i]
		if v < threshold || v < signal[i-1] || v <= signal[i+1] {
			continue
		}
		if n := len(events); n > 0 && i-events[n-1] < minSep {
			// Keep the higher of two close peaks.
			if v > signal[events[n-1]] {
				events[n-1] = i
			}
			continue
		}
		events = append(events, i)
	}
	return events, nil
}

// WalkingPeriodConfig picks which mid-swing events bound the walking
// calibration window and the fallback used without enough events.
type WalkingPeriodConfig struct {
	StartEvent    int
	EndEvent      int
	FallbackStart float64
	FallbackEnd   float64
}

// DefaultWalkingPeriodConfig skips the first ten strides (treadmill
// acceleration) and uses the next eight.
func DefaultWalkingPeriodConfig() WalkingPeriodConfig {
	return WalkingPeriodConfig{
		StartEvent:    10,
		EndEvent:      18,
		FallbackStart: l1samples.DefaultFallbackStart,
		FallbackEnd:   l1samples.DefaultFallbackEnd,
	}
}

// WalkingWindow is the selected walking calibration period.
type WalkingWindow struct {
	Period   l1samples.Period
	Events   int
	Fallback *Fallback
}

// WalkingPeriod selects [ev[StartEvent], ev[EndEvent]) from the detected
// mid-swing events, or the fractional fallback window when detection
// fails or finds too few events.
func WalkingPeriod(shankGyr []float64, fs float64, detector GaitEventDetector, cfg WalkingPeriodConfig) WalkingWindow {
	n := len(shankGyr)
	fallback := func(reason string) WalkingWindow {
		p := l1samples.FallbackPeriod(n, cfg.FallbackStart, cfg.FallbackEnd)
		monitoring.Logf("calibration: walking period fallback %s: %s", p, reason)
		return WalkingWindow{
			Period:   p,
			Fallback: &Fallback{Kind: FallbackWalkingPeriod, Detail: reason},
		}
	}

	if detector == nil {
		return fallback("no gait event detector")
	}
	if cfg.StartEvent < 0 || cfg.EndEvent <= cfg.StartEvent {
		return fallback(fmt.Sprintf("invalid event indices %d..%d", cfg.StartEvent, cfg.EndEvent))
	}
	events, err := detector.Detect(shankGyr, fs)
	if err != nil {
		return fallback(err.Error())
	}
	if len(events) <= cfg.EndEvent {
		w := fallback(fmt.Sprintf("%d mid-swing events, need %d", len(events), cfg.EndEvent+1))
		w.Events = len(events)
		return w
	}
	p := l1samples.Period{Start: events[cfg.StartEvent], End: events[cfg.EndEvent]}.Clamp(n)
	if p.Empty() {
		w := fallback(fmt.Sprintf("event window %s is empty", p))
		w.Events = len(events)
		return w
	}
	return WalkingWindow{Period: p, Events: len(events)}
}
