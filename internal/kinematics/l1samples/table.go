package l1samples

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Channel names used by the sensor vendor export.
const (
	AccX = "Acc_X"
	AccY = "Acc_Y"
	AccZ = "Acc_Z"
	GyrX = "Gyr_X"
	GyrY = "Gyr_Y"
	GyrZ = "Gyr_Z"
	MagX = "Mag_X"
	MagY = "Mag_Y"
	MagZ = "Mag_Z"
)

// Quaternion column sets, tried in order.
var quatColumnSets = [][4]string{
	{"Quat_q0", "Quat_q1", "Quat_q2", "Quat_q3"},
	{"Quat_W", "Quat_X", "Quat_Y", "Quat_Z"},
}

var (
	// ErrRaggedColumns is returned when table columns differ in length.
	ErrRaggedColumns = errors.New("l1samples: columns have different lengths")
	// ErrDuplicateColumn is returned when a column name appears twice.
	ErrDuplicateColumn = errors.New("l1samples: duplicate column name")
)

// SensorTable is an immutable set of equal-length named numeric columns
// from one sensor. Slices returned by accessors must not be modified.
type SensorTable struct {
	names []string
	cols  map[string][]float64
	n     int
}

// NewSensorTable copies names/columns into a table. names[i] labels
// columns[i]; every column must have the same length.
func NewSensorTable(names []string, columns [][]float64) (*SensorTable, error) {
	if len(names) != len(columns) {
		return nil, fmt.Errorf("l1samples: %d names for %d columns", len(names), len(columns))
	}
	t := &SensorTable{
		names: make([]string, 0, len(names)),
		cols:  make(map[string][]float64, len(names)),
	}
	for i, name := range names {
		if _, dup := t.cols[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
		}
		if i == 0 {
			t.n = len(columns[i])
		} else if len(columns[i]) != t.n {
			return nil, fmt.Errorf("%w: %q has %d samples, want %d", ErrRaggedColumns, name, len(columns[i]), t.n)
		}
		c := make([]float64, len(columns[i]))
		copy(c, columns[i])
		t.names = append(t.names, name)
		t.cols[name] = c
	}
	return t, nil
}

// NewSensorTableFromMap builds a table from a column map. Names are
// sorted since map order is not stable.
func NewSensorTableFromMap(cols map[string][]float64) (*SensorTable, error) {
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	columns := make([][]float64, len(names))
	for i, name := range names {
		columns[i] = cols[name]
	}
	return NewSensorTable(names, columns)
}

// Len returns the number of samples.
func (t *SensorTable) Len() int {
	if t == nil {
		return 0
	}
	return t.n
}

// Names returns the column names in their original order.
func (t *SensorTable) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Column returns the named column.
func (t *SensorTable) Column(name string) ([]float64, bool) {
	if t == nil {
		return nil, false
	}
	c, ok := t.cols[name]
	return c, ok
}

// Has reports whether every named column is present.
func (t *SensorTable) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := t.Column(n); !ok {
			return false
		}
	}
	return true
}

func (t *SensorTable) vec3(x, y, z string) ([]r3.Vec, bool) {
	cx, okx := t.Column(x)
	cy, oky := t.Column(y)
	cz, okz := t.Column(z)
	if !okx || !oky || !okz {
		return nil, false
	}
	out := make([]r3.Vec, t.n)
	for i := range out {
		out[i] = r3.Vec{X: cx[i], Y: cy[i], Z: cz[i]}
	}
	return out, true
}

// Acc returns the accelerometer samples.
func (t *SensorTable) Acc() ([]r3.Vec, bool) { return t.vec3(AccX, AccY, AccZ) }

// Gyr returns the gyroscope samples.
func (t *SensorTable) Gyr() ([]r3.Vec, bool) { return t.vec3(GyrX, GyrY, GyrZ) }

// Mag returns the magnetometer samples.
func (t *SensorTable) Mag() ([]r3.Vec, bool) { return t.vec3(MagX, MagY, MagZ) }

// Quat returns the vendor orientation quaternions (scalar first) from
// either the Quat_q0..q3 or the Quat_W/X/Y/Z columns.
func (t *SensorTable) Quat() ([]quat.Number, bool) {
	for _, set := range quatColumnSets {
		if !t.Has(set[:]...) {
			continue
		}
		w, _ := t.Column(set[0])
		x, _ := t.Column(set[1])
		y, _ := t.Column(set[2])
		z, _ := t.Column(set[3])
		out := make([]quat.Number, t.n)
		for i := range out {
			out[i] = quat.Number{Real: w[i], Imag: x[i], Jmag: y[i], Kmag: z[i]}
		}
		return out, true
	}
	return nil, false
}

// Slice returns a new table holding samples in p, clamped to the table.
func (t *SensorTable) Slice(p Period) *SensorTable {
	p = p.Clamp(t.n)
	out := &SensorTable{
		names: t.Names(),
		cols:  make(map[string][]float64, len(t.cols)),
		n:     p.Len(),
	}
	for name, c := range t.cols {
		s := make([]float64, p.Len())
		copy(s, c[p.Start:p.End])
		out.cols[name] = s
	}
	return out
}

// Recording holds one task's sensor tables keyed by segment.
type Recording map[Segment]*SensorTable

// Segments returns the recorded segments in sorted order.
func (r Recording) Segments() []Segment {
	return SortedSegments(r)
}
