package flow

import (
	"context"
	"time"

	"github.com/ironsheep/kymflow-mcp/internal/kymograph"
	"github.com/ironsheep/kymflow-mcp/internal/monitoring"
)

// DefaultWindowSize is the number of scan lines per window.
const DefaultWindowSize = 16

// Params selects how a kymograph is analyzed.
type Params struct {
	// WindowSize is the number of lines per window; a positive multiple of 4.
	WindowSize int `json:"window_size"`

	// Pixels restricts the columns analyzed.
	Pixels PixelRange `json:"pixels"`

	// Workers is the pool size; 0 uses DefaultWorkers.
	Workers int `json:"workers,omitempty"`
}

// DefaultParams returns the window size 16, full-width analysis.
func DefaultParams() Params {
	return Params{WindowSize: DefaultWindowSize}
}

// SameAnalysis reports whether p and o produce the same series. The
// worker count does not change results.
func (p Params) SameAnalysis(o Params) bool {
	return p.WindowSize == o.WindowSize && p.Pixels == o.Pixels
}

// Result is a complete analysis of one kymograph.
type Result struct {
	Params   Params         `json:"params"`
	Windows  []Window       `json:"-"`
	Results  []WindowResult `json:"-"`
	Series   *Series        `json:"series"`
	Workers  int            `json:"workers"`
	Duration time.Duration  `json:"duration"`
}

// Analyze plans windows over kym, estimates each window's angle in
// parallel and converts the angles to velocities.
//
// # Errors
//
//   - ErrInvalidParameter for a bad calibration, window size or pixel range
//   - ErrInsufficientData if kym has too few lines for one window
//   - ErrWorkerFailure if an estimate fails
//   - ctx.Err() on cancellation
func Analyze(ctx context.Context, kym *kymograph.Kymograph, cal Calibration, params Params) (*Result, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	windows, err := Plan(kym.NumLines(), kym.PixelsPerLine(), params.WindowSize, params.Pixels)
	if err != nil {
		return nil, err
	}
	params.Pixels = PixelRange{Start: windows[0].StartPixel, Stop: windows[0].StopPixel}

	workers := params.Workers
	if workers < 1 {
		workers = DefaultWorkers()
	}
	monitoring.Debugf("analyzing (%d, %d) window=%d pixels=[%d, %d) windows=%d workers=%d",
		kym.NumLines(), kym.PixelsPerLine(), params.WindowSize,
		params.Pixels.Start, params.Pixels.Stop, len(windows), workers)

	start := time.Now()
	results, err := NewDispatcher(workers).RunAll(ctx, kym, windows)
	if err != nil {
		return nil, err
	}
	series, err := Convert(results, windows, cal)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	monitoring.Logf("analyzed %d windows in %s (%d NaN)", len(windows), elapsed.Round(time.Millisecond), series.CountNaN())

	return &Result{
		Params:   params,
		Windows:  windows,
		Results:  results,
		Series:   series,
		Workers:  workers,
		Duration: elapsed,
	}, nil
}
