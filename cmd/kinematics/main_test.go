package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/imu-kinematics/internal/fsutil"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/l1samples"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/pipeline"
	"github.com/banshee-data/imu-kinematics/internal/monitoring"
	"github.com/banshee-data/imu-kinematics/internal/testutil"
)

const (
	samples = 200
	rate    = 40.0
)

func init() {
	monitoring.SetLogger(nil)
	pipeline.SetLogWriters(nil, nil, nil)
}

// tableText renders tbl the way the sensor software exports it: a comment
// block, a tab-separated header and one row per sample.
func tableText(tbl *l1samples.SensorTable) string {
	var b strings.Builder
	b.WriteString("// Update Rate: 40.00Hz\n")
	names := tbl.Names()
	b.WriteString(strings.Join(names, "\t"))
	b.WriteString("\n")
	for i := 0; i < tbl.Len(); i++ {
		for j, name := range names {
			col, _ := tbl.Column(name)
			if j > 0 {
				b.WriteString("\t")
			}
			fmt.Fprintf(&b, "%g", col[i])
		}
		b.WriteString("\n")
	}
	return b.String()
}

func withQuat(t *testing.T, tbl *l1samples.SensorTable) *l1samples.SensorTable {
	cols := make(map[string][]float64)
	for _, name := range tbl.Names() {
		cols[name], _ = tbl.Column(name)
	}
	for i, name := range []string{"Quat_q0", "Quat_q1", "Quat_q2", "Quat_q3"} {
		v := make([]float64, tbl.Len())
		if i == 0 {
			for k := range v {
				v[k] = 1
			}
		}
		cols[name] = v
	}
	return testutil.Table(t, cols)
}

func writeTrial(t *testing.T, mfs *fsutil.MemoryFileSystem, dir string, segs []l1samples.Segment, table func() *l1samples.SensorTable) {
	t.Helper()
	for _, seg := range segs {
		name := string(seg) + ".txt"
		if seg == l1samples.Pelvis {
			name = "MT_012005D6_009-000_00B4D7D4.txt"
		}
		require.NoError(t, mfs.WriteFile(dir+"/"+name, []byte(tableText(table())), 0644))
	}
}

func session(t *testing.T, static []l1samples.Segment) *fsutil.MemoryFileSystem {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("/s1/mapping.txt", []byte("00B4D7D4: pelvis\n"), 0644))
	writeTrial(t, mfs, "/s1/t0_static_pose_001", static, func() *l1samples.SensorTable {
		return testutil.StaticTable(t, samples, testutil.Upright)
	})
	writeTrial(t, mfs, "/s1/t2_treadmill_walking_001", l1samples.LowerBody, func() *l1samples.SensorTable {
		return testutil.SwingTable(t, samples, rate, 1, 3, r3.Vec{Z: 1}, testutil.Upright)
	})
	writeTrial(t, mfs, "/s1/t9_stairs_001", l1samples.LowerBody, func() *l1samples.SensorTable {
		return withQuat(t, testutil.StaticTable(t, samples, testutil.Upright))
	})
	return mfs
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
		check   func(t *testing.T, o Options)
	}{
		{
			name:    "no trials",
			args:    nil,
			wantErr: "-session or -static is required",
		},
		{
			name:    "bad units",
			args:    []string{"-session", "/s1", "-units", "grad"},
			wantErr: "invalid -units",
		},
		{
			name: "version only",
			args: []string{"-version"},
			check: func(t *testing.T, o Options) {
				assert.True(t, o.ShowVersion)
			},
		},
		{
			name: "tasks and zip",
			args: []string{"-static", "/s1/static", "-task", "/s1/a, /s1/b,", "-zip", "-units", "rad"},
			check: func(t *testing.T, o Options) {
				assert.Equal(t, []string{"/s1/a", "/s1/b"}, o.TaskDirs)
				assert.True(t, o.Plots, "-zip implies -plots")
				assert.Equal(t, "rad", o.Units)
				assert.Equal(t, "out", o.OutputDir)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("kinematics", flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			o, err := parseFlags(fs, tt.args)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, o)
		})
	}
}

func TestLoadSettings(t *testing.T) {
	s, err := loadSettings(Options{FilterType: "VQF", Dim: "6D", SamplingRate: 100})
	require.NoError(t, err)
	assert.Equal(t, "VQF", s.GetFilterType())
	assert.Equal(t, "6D", s.GetDim())
	assert.Equal(t, 100.0, s.GetSamplingRateHz())

	_, err = loadSettings(Options{FilterType: "Xsens", Dim: "6D"})
	assert.ErrorContains(t, err, "does not support")

	_, err = loadSettings(Options{ConfigPath: "missing.json"})
	assert.Error(t, err)
}

func TestResolveTrials(t *testing.T) {
	mfs := session(t, l1samples.LowerBody)
	o := Options{SessionDir: "/s1", TaskDirs: nil}
	require.NoError(t, resolveTrials(mfs, &o))
	assert.Equal(t, "/s1/t0_static_pose_001", o.StaticDir)
	assert.Equal(t, "/s1/t2_treadmill_walking_001", o.WalkingDir)
	assert.Empty(t, o.SquatDir)
	assert.Equal(t, []string{"/s1/t2_treadmill_walking_001", "/s1/t9_stairs_001"}, o.TaskDirs)
	assert.Equal(t, "/s1/mapping.txt", o.MappingPath)

	empty := fsutil.NewMemoryFileSystem()
	require.NoError(t, empty.MkdirAll("/s2/t9_stairs", 0755))
	o = Options{SessionDir: "/s2"}
	assert.ErrorContains(t, resolveTrials(empty, &o), "no static trial")
}

func TestRun_Session(t *testing.T) {
	mfs := session(t, l1samples.LowerBody)
	var stdout bytes.Buffer
	o := Options{SessionDir: "/s1", OutputDir: "/out", Units: "deg", Plots: true, Zip: true, HTML: true}

	require.NoError(t, run(context.Background(), o, mfs, &stdout))

	assert.Contains(t, stdout.String(), "t9_stairs_001")
	assert.Contains(t, stdout.String(), "t2_treadmill_walking_001")
	for _, p := range []string{
		"/out/t9_stairs_001/joint_angles.json",
		"/out/t9_stairs_001/plots/pelvis_tilt.png",
		"/out/t9_stairs_001/plots/overview_hip_l.png",
		"/out/t9_stairs_001/t9_stairs_001_graphs.zip",
		"/out/t9_stairs_001/dashboard.html",
		"/out/t2_treadmill_walking_001/joint_angles.json",
	} {
		assert.True(t, mfs.Exists(p), "missing %s", p)
	}

	data, err := mfs.ReadFile("/out/t9_stairs_001/joint_angles.json")
	require.NoError(t, err)
	var doc struct {
		Task        string               `json:"task"`
		Units       string               `json:"units"`
		Samples     int                  `json:"samples"`
		DOFOrder    []string             `json:"dof_order"`
		JointAngles map[string][]float64 `json:"joint_angles"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "t9_stairs_001", doc.Task)
	assert.Equal(t, samples, doc.Samples)
	require.Len(t, doc.DOFOrder, 23)
	assert.Equal(t, []string{"ankle_angle_l", "ankle_angle_r"}, doc.DOFOrder[21:])
	for _, name := range doc.DOFOrder {
		assert.Contains(t, doc.JointAngles, name)
	}
	require.Contains(t, doc.JointAngles, "ankle_angle_l")
	assert.InDelta(t, 90, doc.JointAngles["pelvis_tilt"][0], 1e-6)
	assert.InDelta(t, 0, doc.JointAngles["knee_flexion_r"][samples-1], 1e-6)
}

func TestRun_Radians(t *testing.T) {
	mfs := session(t, l1samples.LowerBody)
	o := Options{StaticDir: "/s1/t0_static_pose_001", TaskDirs: []string{"/s1/t9_stairs_001"}, MappingPath: "/s1/mapping.txt", OutputDir: "/out", Units: "rad"}
	require.NoError(t, run(context.Background(), o, mfs, io.Discard))

	data, err := mfs.ReadFile("/out/t9_stairs_001/joint_angles.json")
	require.NoError(t, err)
	var doc struct {
		JointAngles map[string][]float64 `json:"joint_angles"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.InDelta(t, math.Pi/2, doc.JointAngles["pelvis_tilt"][0], 1e-9)
	assert.False(t, mfs.Exists("/out/t9_stairs_001/plots"), "plots are opt-in")
}

func TestRun_MissingRequiredSensor(t *testing.T) {
	partial := []l1samples.Segment{l1samples.Pelvis, l1samples.ThighL, l1samples.ShankL, l1samples.ThighR, l1samples.ShankR, l1samples.FootR}
	mfs := session(t, partial)
	o := Options{SessionDir: "/s1", OutputDir: "/out", Units: "deg", Strict: true}
	err := run(context.Background(), o, mfs, io.Discard)
	assert.ErrorContains(t, err, "missing required sensors [foot_l]")

	o.Strict = false
	require.NoError(t, run(context.Background(), o, mfs, io.Discard))

	data, err := mfs.ReadFile("/out/t9_stairs_001/joint_angles.json")
	require.NoError(t, err)
	var doc struct {
		Missing []struct {
			Joint    string   `json:"joint"`
			Side     string   `json:"side"`
			Segments []string `json:"missing_segments"`
		} `json:"missing_joints"`
		DOFOrder []string `json:"dof_order"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Missing, 1)
	assert.Equal(t, "ankle", doc.Missing[0].Joint)
	assert.Equal(t, "l", doc.Missing[0].Side)
	assert.Equal(t, []string{"foot_l"}, doc.Missing[0].Segments)
	assert.NotContains(t, doc.DOFOrder, "ankle_angle_l")
	assert.Contains(t, doc.DOFOrder, "ankle_angle_r")
}

func TestRun_BadMapping(t *testing.T) {
	mfs := session(t, l1samples.LowerBody)
	require.NoError(t, mfs.WriteFile("/s1/bad.txt", []byte("00B4D7D4: elbow\n"), 0644))
	o := Options{SessionDir: "/s1", MappingPath: "/s1/bad.txt", OutputDir: "/out", Units: "deg"}
	assert.Error(t, run(context.Background(), o, mfs, io.Discard))
}
