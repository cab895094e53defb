package ingest

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/imu-kinematics/internal/fsutil"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/l1samples"
	"github.com/banshee-data/imu-kinematics/internal/monitoring"
)

// TaskRole is what a recorded trial is used for.
type TaskRole string

const (
	RoleStatic  TaskRole = "static"
	RoleWalking TaskRole = "walking"
	RoleSquat   TaskRole = "squat"
	RoleTask    TaskRole = "task"
)

var roleKeywords = []struct {
	role  TaskRole
	words []string
}{
	{RoleStatic, []string{"static", "standing", "pose"}},
	{RoleSquat, []string{"jump", "squat", "cmj"}},
	{RoleWalking, []string{"walking", "treadmill", "gait"}},
}

// ClassifyTask assigns a calibration role by keywords in a trial name.
// Names matching none are RoleTask.
func ClassifyTask(name string) TaskRole {
	lower := strings.ToLower(name)
	for _, rk := range roleKeywords {
		for _, w := range rk.words {
			if strings.Contains(lower, w) {
				return rk.role
			}
		}
	}
	return RoleTask
}

// RequiredSegments are the sensors a full lower-body run expects.
var RequiredSegments = []l1samples.Segment{l1samples.Pelvis, l1samples.ThighL, l1samples.ShankL, l1samples.FootL}

// MissingRequired lists the RequiredSegments absent from rec.
func MissingRequired(rec l1samples.Recording) []l1samples.Segment {
	var out []l1samples.Segment
	for _, s := range RequiredSegments {
		if _, ok := rec[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

// UnmappedFile is a sensor export that no mapping entry claimed.
type UnmappedFile struct {
	File     string `json:"file"`
	SensorID string `json:"sensor_id,omitempty"`
}

// TaskData is one loaded trial directory.
type TaskData struct {
	Name      string
	Recording l1samples.Recording
	Unmapped  []UnmappedFile
}

func isTableFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".csv", ".tsv":
		return true
	}
	return false
}

// LoadSensorMapping reads and parses a mapping file.
func LoadSensorMapping(fsys fsutil.FileSystem, path string) (SensorMapping, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: read sensor mapping: %w", err)
	}
	return ParseSensorMapping(data)
}

// LoadTaskDir reads every table file in dir. A file is assigned to a
// segment through its sensor ID and m, or, failing that, when its base
// name is a segment name ("pelvis.txt"). Other files are reported in
// Unmapped. Two files for one segment are an error.
func LoadTaskDir(fsys fsutil.FileSystem, dir string, m SensorMapping) (TaskData, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return TaskData{}, fmt.Errorf("ingest: list %s: %w", dir, err)
	}

	td := TaskData{Name: filepath.Base(dir), Recording: make(l1samples.Recording)}
	sources := make(map[l1samples.Segment]string)
	for _, e := range entries {
		if e.IsDir() || !isTableFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())

		id, seg, ok := m.Resolve(e.Name())
		if !ok {
			base := l1samples.Segment(strings.ToLower(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))))
			if base.Known() {
				seg, ok = base, true
			}
		}
		if !ok {
			monitoring.Logf("ingest: skipping unmapped sensor %s (ID: %s)", path, id)
			td.Unmapped = append(td.Unmapped, UnmappedFile{File: path, SensorID: id})
			continue
		}
		if prev, dup := sources[seg]; dup {
			return TaskData{}, fmt.Errorf("ingest: %s and %s both map to %s", prev, path, seg)
		}

		t, err := readTableFile(fsys, path)
		if err != nil {
			return TaskData{}, err
		}
		td.Recording[seg] = t
		sources[seg] = path
	}
	monitoring.Logf("ingest: %s: %d sensors, %d unmapped", dir, len(td.Recording), len(td.Unmapped))
	return td, nil
}

func readTableFile(fsys fsutil.FileSystem, path string) (*l1samples.SensorTable, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer f.Close()
	t, err := ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// DiscoverTrials classifies the subdirectories of root by name. Each
// role's directories are sorted.
func DiscoverTrials(fsys fsutil.FileSystem, root string) (map[TaskRole][]string, error) {
	entries, err := fsys.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("ingest: list %s: %w", root, err)
	}
	out := make(map[TaskRole][]string)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		role := ClassifyTask(e.Name())
		out[role] = append(out[role], filepath.Join(root, e.Name()))
	}
	for _, dirs := range out {
		sort.Strings(dirs)
	}
	return out, nil
}
