package l2orientation

import (
	"fmt"

	"gonum.org/v1/gonum/num/quat"

	"github.com/banshee-data/imu-kinematics/internal/kinematics/l1samples"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/rotation"
)

// DefaultStaticSeconds is the standing period at the start of each task
// used to anchor 6D heading.
const DefaultStaticSeconds = 3.0

// InitialOrientation returns, for each calibrated sensor, the sensor
// orientation at which its segment frame coincides with the global
// frame: q(I)·q(seg2sens).
func InitialOrientation(seg2sens map[l1samples.Segment]rotation.Mat3) map[l1samples.Segment]quat.Number {
	out := make(map[l1samples.Segment]quat.Number, len(seg2sens))
	identity := rotation.IdentityQuat()
	for seg, m := range seg2sens {
		out[seg] = rotation.Compose(identity, rotation.FromMatrix(m))
	}
	return out
}

// Correction is the result of CorrectRandom6D.
type Correction struct {
	Series map[l1samples.Segment]Series
	// Uncorrected lists sensors passed through unchanged because they
	// had no initial orientation or no samples.
	Uncorrected []l1samples.Segment
}

// CorrectRandom6D removes the arbitrary heading of magnetometer-free
// estimates. The first staticSeconds·fs samples of each series are
// assumed to be the standing pose; their element-wise mean q̄ gives
// correction = initial·conj(q̄), applied as correction·q[t].
func CorrectRandom6D(initial map[l1samples.Segment]quat.Number, main map[l1samples.Segment]Series, fs, staticSeconds float64) (Correction, error) {
	if fs <= 0 {
		return Correction{}, fmt.Errorf("l2orientation: sampling rate must be positive, got %v", fs)
	}
	if staticSeconds <= 0 {
		staticSeconds = DefaultStaticSeconds
	}

	out := Correction{Series: make(map[l1samples.Segment]Series, len(main))}
	for _, seg := range l1samples.SortedSegments(main) {
		s := main[seg]
		q0, ok := initial[seg]
		if !ok || len(s) == 0 {
			cp := make(Series, len(s))
			copy(cp, s)
			out.Series[seg] = cp
			out.Uncorrected = append(out.Uncorrected, seg)
			continue
		}

		n := min(max(int(staticSeconds*fs), 1), len(s))
		mean, err := rotation.ElementwiseMean(s[:n])
		if err != nil {
			return Correction{}, fmt.Errorf("l2orientation: %s static mean: %w", seg, err)
		}
		correction := quat.Mul(rotation.Normalize(q0), quat.Conj(mean))

		corrected := make(Series, len(s))
		for i, q := range s {
			corrected[i] = rotation.Normalize(quat.Mul(correction, q))
		}
		out.Series[seg] = corrected
	}
	return out, nil
}
