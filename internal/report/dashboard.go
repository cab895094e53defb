package report

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/imu-kinematics/internal/kinematics/pipeline"
)

// echartsAssetsPrefix is the public asset host. The dashboard is a static
// file so there is no local handler to serve the scripts from.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// lineData converts a DOF trace to chart points. ECharts treats "-" as a
// gap; NaN would break the JSON encoding.
func lineData(v []float64) []opts.LineData {
	out := make([]opts.LineData, len(v))
	for i, y := range v {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			out[i] = opts.LineData{Value: "-"}
			continue
		}
		out[i] = opts.LineData{Value: y}
	}
	return out
}

func timeLabels(n int, fs float64) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.FormatFloat(sampleTime(i, fs), 'f', 3, 64)
	}
	return out
}

// RenderDashboard writes an HTML page to w with one line chart per joint
// group and a bar chart of per-sensor estimation time.
func RenderDashboard(w io.Writer, res *pipeline.Result, fs float64) error {
	if res == nil {
		return ErrNoResult
	}

	page := components.NewPage()
	page.SetPageTitle(fmt.Sprintf("Joint angles %s", res.RunID))
	page.SetAssetsHost(echartsAssetsPrefix)

	x := timeLabels(res.Samples, fs)
	subtitle := fmt.Sprintf("run=%s filter=%s dim=%s samples=%d", res.RunID, res.Filter, res.Dim, res.Samples)
	for _, g := range Groups(res) {
		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{PageTitle: "Joint angles", Theme: "dark", Width: "1200px", Height: "420px", AssetsHost: echartsAssetsPrefix}),
			charts.WithTitleOpts(opts.Title{Title: g.Name, Subtitle: subtitle}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
			charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
			charts.WithXAxisOpts(opts.XAxis{Name: timeLabel(fs), NameLocation: "middle", NameGap: 25}),
			charts.WithYAxisOpts(opts.YAxis{Name: "angle (deg)", NameLocation: "middle", NameGap: 40}),
			charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
		)
		line.SetXAxis(x)
		for _, dof := range g.DOFs {
			line.AddSeries(dof, lineData(res.JointAngles[dof]),
				charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			)
		}
		page.AddCharts(line)
	}

	if len(res.Timing) > 0 {
		segs := res.SortedTiming()
		names := make([]string, len(segs))
		data := make([]opts.BarData, len(segs))
		for i, seg := range segs {
			names[i] = string(seg)
			data[i] = opts.BarData{Value: res.Timing[seg] * 1e6}
		}
		bar := charts.NewBar()
		bar.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "360px", AssetsHost: echartsAssetsPrefix}),
			charts.WithTitleOpts(opts.Title{Title: "Orientation estimation", Subtitle: "microseconds per sample"}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		)
		bar.SetXAxis(names).
			AddSeries("us/sample", data,
				charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
			)
		page.AddCharts(bar)
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}
