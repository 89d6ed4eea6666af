package render

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ChartOptions controls the interactive velocity chart.
type ChartOptions struct {
	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`

	// AssetsHost overrides where the page loads echarts.min.js from.
	AssetsHost string `json:"assets_host,omitempty"`
}

// VelocityChart builds an HTML line chart of velocity against time with a
// zoom slider. NaN samples are left out.
func VelocityChart(times, velocity []float64, o ChartOptions) (*charts.Line, error) {
	if len(times) != len(velocity) {
		return nil, fmt.Errorf("time and velocity lengths differ: %d != %d", len(times), len(velocity))
	}

	data := make([]opts.LineData, 0, len(velocity))
	for i, v := range velocity {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		data = append(data, opts.LineData{Value: []interface{}{times[i], v}})
	}
	if len(data) == 0 {
		return nil, ErrNoData
	}

	title := o.Title
	if title == "" {
		title = "Velocity"
	}
	initOpts := opts.Initialization{PageTitle: title, Width: "1000px", Height: "450px"}
	if o.AssetsHost != "" {
		initOpts.AssetsHost = o.AssetsHost
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: o.Subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Velocity (mm/s)", NameLocation: "middle", NameGap: 40}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	line.AddSeries("velocity", data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line, nil
}

// WriteVelocityChart renders the chart page to w.
func WriteVelocityChart(w io.Writer, times, velocity []float64, o ChartOptions) error {
	line, err := VelocityChart(times, velocity, o)
	if err != nil {
		return err
	}
	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
