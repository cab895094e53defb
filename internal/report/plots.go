package report

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/imu-kinematics/internal/fsutil"
	"github.com/banshee-data/imu-kinematics/internal/kinematics/pipeline"
	"github.com/banshee-data/imu-kinematics/internal/monitoring"
	"github.com/banshee-data/imu-kinematics/internal/security"
)

const (
	plotWidth  = 14 * vg.Inch
	plotHeight = 6 * vg.Inch
)

// ErrNoResult is returned when a report is requested for a nil result.
var ErrNoResult = errors.New("no result to report")

// angleXYs converts a DOF trace to plot points. NaN samples are dropped
// because plotter.NewLine rejects them.
func angleXYs(v []float64, fs float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(v))
	for i, y := range v {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: sampleTime(i, fs), Y: y})
	}
	return pts
}

// WritePlots writes one PNG per DOF of res into dir, named <dof>.png, and
// returns the written paths in DOF order. DOFs with no finite sample are
// skipped.
func WritePlots(fsys fsutil.FileSystem, dir string, res *pipeline.Result, fs float64) ([]string, error) {
	if res == nil {
		return nil, ErrNoResult
	}
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create plot directory: %w", err)
	}

	colors := generateColors(len(res.DOFOrder))
	var paths []string
	for i, dof := range res.DOFOrder {
		pts := angleXYs(res.JointAngles[dof], fs)
		if len(pts) == 0 {
			monitoring.Logf("report: %s has no finite samples, plot skipped", dof)
			continue
		}

		p := plot.New()
		p.Title.Text = dof
		p.X.Label.Text = timeLabel(fs)
		p.Y.Label.Text = "angle (deg)"

		line, err := plotter.NewLine(pts)
		if err != nil {
			return paths, fmt.Errorf("failed to create line for %s: %w", dof, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)

		path := filepath.Join(dir, security.SanitizeFilename(dof)+".png")
		if err := savePlot(fsys, p, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	monitoring.Logf("report: wrote %d DOF plots to %s", len(paths), dir)
	return paths, nil
}

// WriteOverviews writes one PNG per joint group with its DOFs overlaid,
// named overview_<group>.png.
func WriteOverviews(fsys fsutil.FileSystem, dir string, res *pipeline.Result, fs float64) ([]string, error) {
	if res == nil {
		return nil, ErrNoResult
	}
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create plot directory: %w", err)
	}

	var paths []string
	for _, g := range Groups(res) {
		p := plot.New()
		p.Title.Text = g.Name
		p.X.Label.Text = timeLabel(fs)
		p.Y.Label.Text = "angle (deg)"

		colors := generateColors(len(g.DOFs))
		lines := 0
		for i, dof := range g.DOFs {
			pts := angleXYs(res.JointAngles[dof], fs)
			if len(pts) == 0 {
				continue
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return paths, fmt.Errorf("failed to create line for %s: %w", dof, err)
			}
			line.Color = colors[i]
			line.Width = vg.Points(1)
			p.Add(line)
			p.Legend.Add(dof, line)
			lines++
		}
		if lines == 0 {
			continue
		}
		p.Legend.Top = true
		p.Legend.Left = false
		p.Legend.XOffs = -10
		p.Legend.YOffs = -10

		path := filepath.Join(dir, "overview_"+security.SanitizeFilename(g.Name)+".png")
		if err := savePlot(fsys, p, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func savePlot(fsys fsutil.FileSystem, p *plot.Plot, path string) error {
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", path, err)
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// generateColors creates a palette of distinct colors, one per line.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255),
		uint8(hueToRGB(p, q, h) * 255),
		uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	switch {
	case t < 0:
		t++
	case t > 1:
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
