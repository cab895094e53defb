// Package testutil provides shared test utilities and synthetic IMU
// fixtures.
//
// Fixtures are deterministic: the same arguments always produce the same
// samples, so tests never depend on random seeds.
package testutil

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/imu-kinematics/internal/kinematics/l1samples"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/rotation"
)

// Gravity is standard gravity in m/s².
const Gravity = 9.81

// Upright is the static accelerometer reading of a sensor whose y axis
// points up.
var Upright = r3.Vec{Y: Gravity}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertRotation fails the test unless m is a proper rotation within tol.
func AssertRotation(t testing.TB, m rotation.Mat3, tol float64) {
	t.Helper()
	if !m.IsRotation(tol) {
		t.Errorf("not a proper rotation (det=%.9f): %v", m.Det(), m)
	}
}

// AssertSeriesNear fails the test if want and got differ in length or any
// element differs by more than tol.
func AssertSeriesNear(t testing.TB, want, got []float64, tol float64) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(want[i]-got[i]) > tol {
			t.Fatalf("sample %d = %v, want %v (tol %v)", i, got[i], want[i], tol)
		}
	}
}

// Table builds a sensor table from named columns, failing the test on error.
func Table(t testing.TB, cols map[string][]float64) *l1samples.SensorTable {
	t.Helper()
	tbl, err := l1samples.NewSensorTableFromMap(cols)
	if err != nil {
		t.Fatalf("build sensor table: %v", err)
	}
	return tbl
}

func vecColumns(prefix string, vs []r3.Vec, cols map[string][]float64) {
	x := make([]float64, len(vs))
	y := make([]float64, len(vs))
	z := make([]float64, len(vs))
	for i, v := range vs {
		x[i], y[i], z[i] = v.X, v.Y, v.Z
	}
	cols[prefix+"_X"] = x
	cols[prefix+"_Y"] = y
	cols[prefix+"_Z"] = z
}

// IMUTable builds a table with Acc_* and Gyr_* columns.
func IMUTable(t testing.TB, acc, gyr []r3.Vec) *l1samples.SensorTable {
	t.Helper()
	cols := make(map[string][]float64, 6)
	vecColumns("Acc", acc, cols)
	vecColumns("Gyr", gyr, cols)
	return Table(t, cols)
}

// Constant returns n copies of v.
func Constant(n int, v r3.Vec) []r3.Vec {
	out := make([]r3.Vec, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Sinusoid returns n samples of amp·sin(2π·freq·i/fs) along axis.
func Sinusoid(n int, fs, freq, amp float64, axis r3.Vec) []r3.Vec {
	axis = r3.Unit(axis)
	out := make([]r3.Vec, n)
	for i := range out {
		out[i] = r3.Scale(amp*math.Sin(2*math.Pi*freq*float64(i)/fs), axis)
	}
	return out
}

// StaticTable is n samples of a motionless sensor reading acc.
func StaticTable(t testing.TB, n int, acc r3.Vec) *l1samples.SensorTable {
	t.Helper()
	return IMUTable(t, Constant(n, acc), Constant(n, r3.Vec{}))
}

// SwingTable is n samples of a sensor reading acc and rotating back and
// forth about axis.
func SwingTable(t testing.TB, n int, fs, freq, amp float64, axis, acc r3.Vec) *l1samples.SensorTable {
	t.Helper()
	return IMUTable(t, Constant(n, acc), Sinusoid(n, fs, freq, amp, axis))
}

// Recording builds a recording of the given segments with one table
// factory.
func Recording(segments []l1samples.Segment, table func(l1samples.Segment) *l1samples.SensorTable) l1samples.Recording {
	rec := make(l1samples.Recording, len(segments))
	for _, s := range segments {
		rec[s] = table(s)
	}
	return rec
}
