// Package kymfile ties a kymograph image to its calibration and its
// velocity analysis.
//
// A File is the unit most callers work with: open an image, analyze it
// once, then ask for velocities, reports and plots with different cleanup
// options. The analysis is cached on the File and recomputed only when the
// window size, pixel range or calibration changes.
package kymfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ironsheep/kymflow-mcp/internal/export"
	"github.com/ironsheep/kymflow-mcp/internal/flow"
	"github.com/ironsheep/kymflow-mcp/internal/kymograph"
	"github.com/ironsheep/kymflow-mcp/internal/monitoring"
	"github.com/ironsheep/kymflow-mcp/internal/postprocess"
	"github.com/ironsheep/kymflow-mcp/internal/report"
)

var (
	// ErrNoAnalysis is returned when a File has not been analyzed yet.
	ErrNoAnalysis = errors.New("no analysis")

	// ErrCalibrationMismatch is returned when a saved analysis was computed
	// with a calibration other than the one set explicitly on the File.
	ErrCalibrationMismatch = errors.New("saved analysis calibration differs")
)

// OpenOptions controls how a File is opened.
type OpenOptions struct {
	// Calibration overrides the Olympus sidecar header when set.
	Calibration *flow.Calibration

	// LoadSaved loads a previously saved analysis CSV if one exists.
	LoadSaved bool
}

// File is a kymograph with its calibration and cached analysis. A File is
// safe for concurrent use.
type File struct {
	path   string
	kym    *kymograph.Kymograph
	header *kymograph.Header

	mu     sync.Mutex
	cal    flow.Calibration
	calSet bool // cal was given explicitly rather than read from the header
	params flow.Params
	series *flow.Series
	result *flow.Result
}

// Open loads the image at path and its calibration.
//
// The calibration comes from opts.Calibration when set, otherwise from the
// Olympus sidecar. A missing sidecar is not an error, but analysis will
// fail until SetCalibration is called.
//
// # Errors
//
//   - Returns error if the image cannot be decoded
//   - Returns error if the sidecar exists but cannot be parsed
func Open(path string, opts OpenOptions) (*File, error) {
	kym, err := kymograph.Load(path)
	if err != nil {
		return nil, err
	}

	f := &File{path: path, kym: kym}

	h, err := kymograph.ReadOlympusHeader(path)
	switch {
	case err == nil:
		f.header = h
		f.cal = flow.Calibration{SecondsPerLine: h.SecondsPerLine, MicronsPerPixel: h.UmPerPixel}
		if h.NumLines != kym.NumLines() || h.PixelsPerLine != kym.PixelsPerLine() {
			monitoring.Logf("%s: header size (%d, %d) differs from image (%d, %d)",
				filepath.Base(path), h.NumLines, h.PixelsPerLine, kym.NumLines(), kym.PixelsPerLine())
		}
	case errors.Is(err, os.ErrNotExist):
		monitoring.Debugf("%s: no Olympus header", filepath.Base(path))
	default:
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	if opts.Calibration != nil {
		f.cal = *opts.Calibration
		f.calSet = true
	}

	if opts.LoadSaved {
		if err := f.LoadAnalysis(); err != nil && !errors.Is(err, os.ErrNotExist) {
			monitoring.Logf("%s: ignoring saved analysis: %v", filepath.Base(path), err)
		}
	}
	return f, nil
}

// Path returns the image path.
func (f *File) Path() string { return f.path }

// FileName returns the image file name.
func (f *File) FileName() string { return filepath.Base(f.path) }

// Kymograph returns the image samples.
func (f *File) Kymograph() *kymograph.Kymograph { return f.kym }

// Header returns the sidecar header, or nil if there was none.
func (f *File) Header() *kymograph.Header { return f.header }

// NumLines returns the number of scan lines.
func (f *File) NumLines() int { return f.kym.NumLines() }

// PixelsPerLine returns the number of pixels per scan line.
func (f *File) PixelsPerLine() int { return f.kym.PixelsPerLine() }

// Calibration returns the current calibration.
func (f *File) Calibration() flow.Calibration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cal
}

// SetCalibration replaces the calibration and drops any cached analysis.
// The calibration then takes precedence over the one stored with a saved
// analysis.
func (f *File) SetCalibration(cal flow.Calibration) error {
	if err := cal.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calSet = true
	if cal != f.cal {
		f.cal = cal
		f.invalidateLocked()
	}
	return nil
}

// Invalidate drops the cached analysis.
func (f *File) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidateLocked()
}

func (f *File) invalidateLocked() {
	f.series = nil
	f.result = nil
	f.params = flow.Params{}
}

// Analyze runs the velocity analysis, reusing the cached series when the
// window size and pixel range match the previous run.
func (f *File) Analyze(ctx context.Context, params flow.Params) (*flow.Series, error) {
	px, err := params.Pixels.Resolve(f.kym.PixelsPerLine())
	if err != nil {
		return nil, err
	}
	params.Pixels = px

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.series != nil && f.params.SameAnalysis(params) {
		monitoring.Debugf("%s: reusing cached analysis", f.FileName())
		return f.series, nil
	}

	res, err := flow.Analyze(ctx, f.kym, f.cal, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.FileName(), err)
	}
	f.result = res
	f.series = res.Series
	f.params = res.Params
	return f.series, nil
}

// Result returns the full result of the last Analyze call, or nil if the
// series came from a saved file.
func (f *File) Result() *flow.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

// Params returns the parameters of the cached analysis.
func (f *File) Params() flow.Params {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params
}

// HasAnalysis reports whether a series is cached.
func (f *File) HasAnalysis() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.series != nil
}

// Series returns the cached raw series.
func (f *File) Series() (*flow.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.series == nil {
		return nil, fmt.Errorf("%s: %w", f.FileName(), ErrNoAnalysis)
	}
	return f.series, nil
}

// Install replaces the cached analysis with a saved one, loaded from disk
// or a database.
//
// A valid saved calibration replaces the header calibration so the series
// and the reported delx/delt agree. If the File's calibration was set
// explicitly and differs, the saved series is not installed and
// ErrCalibrationMismatch is returned; the current cache is kept.
func (f *File) Install(a *export.Analysis) error {
	if a == nil || a.Series == nil {
		return fmt.Errorf("%s: %w", f.FileName(), ErrNoAnalysis)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if a.Calibration.Validate() == nil && a.Calibration != f.cal {
		if f.calSet {
			return fmt.Errorf("%s: %w: saved %+v, current %+v",
				f.FileName(), ErrCalibrationMismatch, a.Calibration, f.cal)
		}
		f.cal = a.Calibration
	}
	f.series = a.Series
	f.params = a.Params
	f.result = nil
	return nil
}

// Velocity returns a cleaned copy of the velocity series.
func (f *File) Velocity(opts postprocess.Options) ([]float64, error) {
	s, err := f.Series()
	if err != nil {
		return nil, err
	}
	return postprocess.Apply(s.Velocity, opts)
}

// Time returns a copy of the sample times in seconds.
func (f *File) Time() ([]float64, error) {
	s, err := f.Series()
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), s.Time...), nil
}

// Report summarizes the image and the cached series.
func (f *File) Report(opts report.Options) (*report.Report, error) {
	s, err := f.Series()
	if err != nil {
		return nil, err
	}
	return report.Summarize(f.kym, s, f.source(), opts)
}

func (f *File) source() report.Source {
	return report.Source{
		Path:          f.path,
		NumLines:      f.kym.NumLines(),
		PixelsPerLine: f.kym.PixelsPerLine(),
		Calibration:   f.Calibration(),
	}
}

// CheckPosNeg reports whether the series has both positive and negative
// velocities after outlier removal, logging a warning when it does.
func (f *File) CheckPosNeg() (bool, error) {
	v, err := f.Velocity(postprocess.Options{RemoveOutliers: true})
	if err != nil {
		return false, err
	}
	if !report.BothSigns(v) {
		return false, nil
	}
	monitoring.Logf("%s: velocity has both positive and negative values", f.FileName())
	return true, nil
}

// Export returns the cached analysis in the form saved to disk.
func (f *File) Export() (*export.Analysis, error) {
	s, err := f.Series()
	if err != nil {
		return nil, err
	}
	return &export.Analysis{
		ImagePath:     f.path,
		NumLines:      f.kym.NumLines(),
		PixelsPerLine: f.kym.PixelsPerLine(),
		Calibration:   f.Calibration(),
		Params:        f.Params(),
		Series:        s,
	}, nil
}

// SaveAnalysis writes the cached analysis next to the image and returns
// the CSV path.
func (f *File) SaveAnalysis() (string, error) {
	a, err := f.Export()
	if err != nil {
		return "", err
	}
	path, err := export.SaveAnalysis(a)
	if err != nil {
		return "", err
	}
	monitoring.Logf("saved %s", path)
	return path, nil
}

// LoadAnalysis replaces the cached series with the saved CSV, if any. See
// Install for how the saved calibration is handled.
func (f *File) LoadAnalysis() error {
	a, err := export.LoadAnalysis(f.path)
	if err != nil {
		return err
	}
	return f.Install(a)
}
