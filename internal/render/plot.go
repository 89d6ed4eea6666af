package render

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoData is returned when a series has no finite samples to draw.
var ErrNoData = errors.New("no finite samples")

// PlotOptions controls the static velocity plot.
type PlotOptions struct {
	Title string `json:"title,omitempty"`

	// WidthIn and HeightIn are the figure size in inches; 0 means 10x4.
	WidthIn  float64 `json:"width_in,omitempty"`
	HeightIn float64 `json:"height_in,omitempty"`

	// YLabel defaults to "Velocity (mm/s)".
	YLabel string `json:"y_label,omitempty"`
}

func (o PlotOptions) size() (vg.Length, vg.Length) {
	w, h := o.WidthIn, o.HeightIn
	if w <= 0 {
		w = 10
	}
	if h <= 0 {
		h = 4
	}
	return vg.Length(w) * vg.Inch, vg.Length(h) * vg.Inch
}

var velocityColor = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 255}

// PlotVelocity builds a plot of velocity against time. NaN samples leave
// gaps in the line.
func PlotVelocity(times, velocity []float64, opts PlotOptions) (*plot.Plot, error) {
	if len(times) != len(velocity) {
		return nil, fmt.Errorf("time and velocity lengths differ: %d != %d", len(times), len(velocity))
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = opts.YLabel
	if p.Y.Label.Text == "" {
		p.Y.Label.Text = "Velocity (mm/s)"
	}
	p.Add(plotter.NewGrid())

	n := 0
	for _, seg := range finiteSegments(times, velocity) {
		n += len(seg)
		if len(seg) == 1 {
			dot, err := plotter.NewScatter(seg)
			if err != nil {
				return nil, fmt.Errorf("failed to create point: %w", err)
			}
			dot.Color = velocityColor
			dot.Radius = vg.Points(1.5)
			p.Add(dot)
			continue
		}
		line, err := plotter.NewLine(seg)
		if err != nil {
			return nil, fmt.Errorf("failed to create line: %w", err)
		}
		line.Color = velocityColor
		line.Width = vg.Points(1)
		p.Add(line)
	}
	if n == 0 {
		return nil, ErrNoData
	}
	return p, nil
}

// finiteSegments splits the series into runs without NaN or Inf.
func finiteSegments(times, velocity []float64) []plotter.XYs {
	var segs []plotter.XYs
	var cur plotter.XYs
	for i, v := range velocity {
		t := times[i]
		if math.IsNaN(v) || math.IsInf(v, 0) || math.IsNaN(t) {
			if len(cur) > 0 {
				segs = append(segs, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: t, Y: v})
	}
	if len(cur) > 0 {
		segs = append(segs, cur)
	}
	return segs
}

// VelocityPNG renders the velocity plot as PNG bytes.
func VelocityPNG(times, velocity []float64, opts PlotOptions) ([]byte, error) {
	p, err := PlotVelocity(times, velocity, opts)
	if err != nil {
		return nil, err
	}
	w, h := opts.size()
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to render plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to render plot: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveVelocityPlot writes the velocity plot to path. The format follows
// the extension (png, svg, pdf, ...).
func SaveVelocityPlot(path string, times, velocity []float64, opts PlotOptions) error {
	p, err := PlotVelocity(times, velocity, opts)
	if err != nil {
		return err
	}
	w, h := opts.size()
	if err := p.Save(w, h, path); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}
