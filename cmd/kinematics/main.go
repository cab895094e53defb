// Command kinematics computes lower-limb joint angles from IMU sensor
// exports. It calibrates on a static trial (plus optional walking and
// squat trials) and processes every task trial of a session.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/banshee-data/imu-kinematics/internal/config"
	"github.com/banshee-data/imu-kinematics/internal/fsutil"
	"github.com/banshee-data/imu-kinematics/internal/ingest"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/l1samples"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/l4joints"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/pipeline"
	"github.com/banshee-data/imu-kinematics/internal/report"
	"github.com/banshee-data/imu-kinematics/internal/security"
	"github.com/banshee-data/imu-kinematics/internal/units"
	"github.com/banshee-data/imu-kinematics/internal/version"
)

// Options holds the command-line configuration.
type Options struct {
	ConfigPath  string
	SessionDir  string
	StaticDir   string
	WalkingDir  string
	SquatDir    string
	TaskDirs    []string
	MappingPath string
	OutputDir   string

	// Overrides applied on top of the config file.
	FilterType   string
	Dim          string
	SamplingRate float64

	Units       string
	Plots       bool
	Zip         bool
	HTML        bool
	Strict      bool
	ShowVersion bool
}

// TaskOutput is the JSON document written per task.
type TaskOutput struct {
	Task        string                `json:"task"`
	Units       string                `json:"units"`
	Unmapped    []ingest.UnmappedFile `json:"unmapped_files,omitempty"`
	JointAngles l4joints.AngleSeries  `json:"joint_angles"`
	// DOFOrder lists the computed DOFs, then the ankle_angle aliases.
	DOFOrder    []string              `json:"dof_order"`
	*pipeline.Result
}

var errUsage = errors.New("usage")

func parseFlags(fs *flag.FlagSet, args []string) (Options, error) {
	var o Options
	var tasks string

	fs.StringVar(&o.ConfigPath, "config", "", "Pipeline config JSON (default: built-in defaults)")
	fs.StringVar(&o.SessionDir, "session", "", "Session directory; trials are classified by name")
	fs.StringVar(&o.StaticDir, "static", "", "Static calibration trial directory")
	fs.StringVar(&o.WalkingDir, "walking", "", "Walking calibration trial directory")
	fs.StringVar(&o.SquatDir, "squat", "", "Squat or jump calibration trial directory")
	fs.StringVar(&tasks, "task", "", "Comma-separated task trial directories")
	fs.StringVar(&o.MappingPath, "mapping", "", "Sensor ID to segment mapping file")
	fs.StringVar(&o.OutputDir, "output", "out", "Output directory")
	fs.StringVar(&o.FilterType, "filter", "", "Orientation filter override (Xsens, VQF, MAD, MAH, EKF, RIANN)")
	fs.StringVar(&o.Dim, "dim", "", "Dimension override (6D or 9D)")
	fs.Float64Var(&o.SamplingRate, "fs", 0, "Sampling rate override in Hz")
	fs.StringVar(&o.Units, "units", units.Degrees, "Output angle units ("+units.GetValidUnitsString()+")")
	fs.BoolVar(&o.Plots, "plots", false, "Write one PNG per DOF and per joint")
	fs.BoolVar(&o.Zip, "zip", false, "Archive the DOF plots (implies -plots)")
	fs.BoolVar(&o.HTML, "html", false, "Write an HTML dashboard per task")
	fs.BoolVar(&o.Strict, "strict", false, "Fail when a required sensor is missing")
	fs.BoolVar(&o.ShowVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	for _, t := range strings.Split(tasks, ",") {
		if t = strings.TrimSpace(t); t != "" {
			o.TaskDirs = append(o.TaskDirs, t)
		}
	}
	if o.Zip {
		o.Plots = true
	}
	if o.ShowVersion {
		return o, nil
	}
	if !units.IsValid(o.Units) {
		return o, fmt.Errorf("invalid -units %q (valid: %s)", o.Units, units.GetValidUnitsString())
	}
	if o.SessionDir == "" && o.StaticDir == "" {
		return o, fmt.Errorf("%w: one of -session or -static is required", errUsage)
	}
	return o, nil
}

// loadSettings reads the config file, if any, and applies flag overrides.
func loadSettings(o Options) (*config.PipelineConfig, error) {
	settings := config.DefaultPipelineConfig()
	if o.ConfigPath != "" {
		var err error
		if settings, err = config.LoadPipelineConfig(o.ConfigPath); err != nil {
			return nil, err
		}
	}
	if o.FilterType != "" {
		settings.FilterType = &o.FilterType
	}
	if o.Dim != "" {
		settings.Dim = &o.Dim
	}
	if o.SamplingRate > 0 {
		settings.SamplingRateHz = &o.SamplingRate
	}
	return settings, settings.Validate()
}

// resolveTrials fills the trial directories from the session directory.
// Explicit flags win. Without -task every non-static trial is processed.
func resolveTrials(fsys fsutil.FileSystem, o *Options) error {
	if o.SessionDir == "" {
		return nil
	}
	trials, err := ingest.DiscoverTrials(fsys, o.SessionDir)
	if err != nil {
		return err
	}
	first := func(role ingest.TaskRole) string {
		if dirs := trials[role]; len(dirs) > 0 {
			return dirs[0]
		}
		return ""
	}
	if o.StaticDir == "" {
		o.StaticDir = first(ingest.RoleStatic)
	}
	if o.WalkingDir == "" {
		o.WalkingDir = first(ingest.RoleWalking)
	}
	if o.SquatDir == "" {
		o.SquatDir = first(ingest.RoleSquat)
	}
	if len(o.TaskDirs) == 0 {
		for _, role := range []ingest.TaskRole{ingest.RoleWalking, ingest.RoleSquat, ingest.RoleTask} {
			o.TaskDirs = append(o.TaskDirs, trials[role]...)
		}
	}
	if o.StaticDir == "" {
		return fmt.Errorf("no static trial found in %s", o.SessionDir)
	}
	if o.MappingPath == "" {
		for _, name := range []string{"mapping.json", "mapping.txt", "sensor_mapping.txt"} {
			if p := filepath.Join(o.SessionDir, name); fsys.Exists(p) {
				o.MappingPath = p
				break
			}
		}
	}
	return nil
}

func loadOptional(fsys fsutil.FileSystem, dir string, m ingest.SensorMapping) (l1samples.Recording, error) {
	if dir == "" {
		return nil, nil
	}
	td, err := ingest.LoadTaskDir(fsys, dir, m)
	if err != nil {
		return nil, err
	}
	return td.Recording, nil
}

func run(ctx context.Context, o Options, fsys fsutil.FileSystem, stdout io.Writer) error {
	settings, err := loadSettings(o)
	if err != nil {
		return err
	}
	if err := resolveTrials(fsys, &o); err != nil {
		return err
	}

	var mapping ingest.SensorMapping
	if o.MappingPath != "" {
		if mapping, err = ingest.LoadSensorMapping(fsys, o.MappingPath); err != nil {
			return err
		}
	}

	static, err := ingest.LoadTaskDir(fsys, o.StaticDir, mapping)
	if err != nil {
		return err
	}
	if missing := ingest.MissingRequired(static.Recording); len(missing) > 0 {
		if o.Strict {
			return fmt.Errorf("static trial %s is missing required sensors %v", static.Name, missing)
		}
		log.Printf("Warning: static trial %s is missing required sensors %v", static.Name, missing)
	}
	walking, err := loadOptional(fsys, o.WalkingDir, mapping)
	if err != nil {
		return err
	}
	squat, err := loadOptional(fsys, o.SquatDir, mapping)
	if err != nil {
		return err
	}

	p, err := pipeline.New(pipeline.Config{Settings: settings})
	if err != nil {
		return err
	}
	session, err := p.Calibrate(ctx, pipeline.CalibrationInputs{Static: static.Recording, Walking: walking, Squat: squat})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tSAMPLES\tDOFS\tWARNINGS\tOUTPUT")
	for _, dir := range o.TaskDirs {
		td, err := ingest.LoadTaskDir(fsys, dir, mapping)
		if err != nil {
			return err
		}
		res, err := session.Process(ctx, td.Recording)
		if err != nil {
			return fmt.Errorf("task %s: %w", td.Name, err)
		}
		outDir, err := security.ContainedPath(o.OutputDir, security.SanitizeFilename(td.Name))
		if err != nil {
			return err
		}
		if err := writeTask(fsys, outDir, o, td, res, settings.GetSamplingRateHz()); err != nil {
			return fmt.Errorf("task %s: %w", td.Name, err)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", td.Name, res.Samples, len(res.DOFOrder), len(res.Warnings), outDir)
	}
	return tw.Flush()
}

func writeTask(fsys fsutil.FileSystem, outDir string, o Options, td ingest.TaskData, res *pipeline.Result, fs float64) error {
	if err := fsys.MkdirAll(outDir, 0755); err != nil {
		return err
	}
	doc := TaskOutput{
		Task:        td.Name,
		Units:       o.Units,
		Unmapped:    td.Unmapped,
		JointAngles: res.InUnits(o.Units).WithAliases(),
		DOFOrder:    l4joints.OrderWithAliases(res.DOFOrder),
		Result:      res,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := fsys.WriteFile(filepath.Join(outDir, "joint_angles.json"), data, 0644); err != nil {
		return err
	}

	if o.Plots {
		plotDir := filepath.Join(outDir, "plots")
		paths, err := report.WritePlots(fsys, plotDir, res, fs)
		if err != nil {
			return err
		}
		if _, err := report.WriteOverviews(fsys, plotDir, res, fs); err != nil {
			return err
		}
		if o.Zip && len(paths) > 0 {
			if err := report.ArchivePlots(fsys, paths, filepath.Join(outDir, security.SanitizeFilename(td.Name)+"_graphs.zip")); err != nil {
				return err
			}
		}
	}

	if o.HTML {
		f, err := fsys.Create(filepath.Join(outDir, "dashboard.html"))
		if err != nil {
			return err
		}
		if err := report.RenderDashboard(f, res, fs); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	o, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}
	if o.ShowVersion {
		fmt.Println(version.String())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, fsutil.OSFileSystem{}, os.Stdout); err != nil {
		log.Fatalf("kinematics: %v", err)
	}
}
