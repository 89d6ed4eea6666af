// Package report summarizes a kymograph and its velocity series.
//
// A Report is a flat record with the same keys used by the lab's summary
// tables, so reports from many files can be stacked into one CSV. Velocity
// statistics ignore NaN; an all-NaN series yields NaN statistics rather
// than an error.
package report

import (
	"math"
	"path/filepath"

	"github.com/ironsheep/kymflow-mcp/internal/flow"
	"github.com/ironsheep/kymflow-mcp/internal/kymograph"
	"github.com/ironsheep/kymflow-mcp/internal/postprocess"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Options controls how the velocity series is cleaned before summarizing.
type Options struct {
	RemoveOutliers bool                    `json:"remove_outliers"`
	OutlierRule    postprocess.OutlierRule `json:"outlier_rule,omitempty"`
	MedianFilter   int                     `json:"median_filter"`

	// StartSec and StopSec limit the samples to a time range. nil is open.
	StartSec *float64 `json:"start_sec,omitempty"`
	StopSec  *float64 `json:"stop_sec,omitempty"`
}

// DefaultOptions removes outliers and does not median filter.
func DefaultOptions() Options {
	return Options{RemoveOutliers: true}
}

// Source identifies the kymograph a report describes.
type Source struct {
	Path          string
	NumLines      int
	PixelsPerLine int
	Calibration   flow.Calibration
}

// Report is the summary of one analyzed kymograph.
type Report struct {
	ParentFolder string `json:"parentFolder" csv:"parentFolder"`
	File         string `json:"file" csv:"file"`
	UniqueFile   string `json:"uniqueFile" csv:"uniqueFile"`

	PntsPerLine  int   `json:"pntsPerLine" csv:"pntsPerLine"`
	NumLines     int   `json:"numLines" csv:"numLines"`
	Delx         Float `json:"delx" csv:"delx"`
	Delt         Float `json:"delt" csv:"delt"`
	TotalDurSec  Float `json:"Total Dur (s)" csv:"Total Dur (s)"`
	LineLengthUm Float `json:"Line Length (um)" csv:"Line Length (um)"`

	MeanInt  Float `json:"meanInt" csv:"meanInt"`
	MinInt   Float `json:"minInt" csv:"minInt"`
	MaxInt   Float `json:"maxInt" csv:"maxInt"`
	RangeInt Float `json:"rangeInt" csv:"rangeInt"`

	SignMeanVel   Float `json:"signMeanVel" csv:"signMeanVel"`
	PosNegVel     bool  `json:"posNegVel" csv:"posNegVel"`
	MinVel        Float `json:"minVel" csv:"minVel"`
	MaxVel        Float `json:"maxVel" csv:"maxVel"`
	RangeVel      Float `json:"rangeVel" csv:"rangeVel"`
	MeanVel       Float `json:"meanVel" csv:"meanVel"`
	MedianVel     Float `json:"medianVel" csv:"medianVel"`
	StdVel        Float `json:"stdVel" csv:"stdVel"`
	MeanVelNoZero Float `json:"meanVelNoZero" csv:"meanVelNoZero"`

	NTotal           int   `json:"nTotal" csv:"nTotal"`
	NNonNan          int   `json:"nNonNan" csv:"nNonNan"`
	NNanTan          int   `json:"nNanTan" csv:"nNanTan"`
	NNanOutliers     int   `json:"nNanOutliers" csv:"nNanOutliers"`
	NNanFinal        int   `json:"nNanFinal" csv:"nNanFinal"`
	PercentNanFinal  Float `json:"percentNanFinal" csv:"percentNanFinal"`
	PercentGoodFinal Float `json:"percentGoodFinal" csv:"percentGoodFinal"`
	NZero            int   `json:"nZero" csv:"nZero"`
}

// Summarize builds a report for series. kym may be nil when only a saved
// analysis is available; the intensity fields are then NaN.
//
// Velocity statistics use the series cleaned with opts and reduced to
// magnitudes. nNanTan counts NaN in the uncleaned series (degenerate
// angles) and nNanOutliers the NaN added by cleaning. signMeanVel and
// posNegVel come from the cleaned series before taking magnitudes.
func Summarize(kym *kymograph.Kymograph, series *flow.Series, src Source, opts Options) (*Report, error) {
	s := series
	if opts.StartSec != nil || opts.StopSec != nil {
		s = series.Between(boundOrNaN(opts.StartSec), boundOrNaN(opts.StopSec))
	}

	clean := postprocess.Options{
		RemoveOutliers: opts.RemoveOutliers,
		OutlierRule:    opts.OutlierRule,
		MedianFilter:   opts.MedianFilter,
	}
	signed, err := postprocess.Apply(s.Velocity, clean)
	if err != nil {
		return nil, err
	}
	vel := postprocess.AbsValue(signed)

	noZero, err := postprocess.Apply(s.Velocity, postprocess.Options{
		RemoveZero:     true,
		RemoveOutliers: true,
		OutlierRule:    opts.OutlierRule,
		MedianFilter:   opts.MedianFilter,
		AbsValue:       true,
	})
	if err != nil {
		return nil, err
	}

	parent := kymograph.FolderName(src.Path)
	file := baseName(src.Path)
	r := &Report{
		ParentFolder: parent,
		File:         file,
		UniqueFile:   parent + "/" + file,
		PntsPerLine:  src.PixelsPerLine,
		NumLines:     src.NumLines,
		Delx:         Float(src.Calibration.MicronsPerPixel),
		Delt:         Float(src.Calibration.SecondsPerLine),
		TotalDurSec:  Float(float64(src.NumLines) * src.Calibration.SecondsPerLine),
		LineLengthUm: Float(float64(src.PixelsPerLine) * src.Calibration.MicronsPerPixel),
		MeanInt:      NaN(),
		MinInt:       NaN(),
		MaxInt:       NaN(),
		RangeInt:     NaN(),
	}

	if kym != nil {
		in := kym.Intensity()
		r.MeanInt, r.MinInt, r.MaxInt, r.RangeInt = Float(in.Mean), Float(in.Min), Float(in.Max), Float(in.Range)
	}

	signedFinite := finite(signed)
	r.SignMeanVel = Float(sign(nanMean(signedFinite)))
	r.PosNegVel = bothSigns(signedFinite)

	velFinite := finite(vel)
	r.MinVel, r.MaxVel, r.RangeVel = NaN(), NaN(), NaN()
	r.MedianVel, r.MeanVel, r.StdVel = NaN(), NaN(), NaN()
	if len(velFinite) > 0 {
		lo, hi := floats.Min(velFinite), floats.Max(velFinite)
		mean, std := stat.PopMeanStdDev(velFinite, nil)
		median, _ := stats.Median(velFinite)
		r.MinVel, r.MaxVel, r.RangeVel = Float(lo), Float(hi), Float(hi-lo)
		r.MeanVel, r.MedianVel, r.StdVel = Float(mean), Float(median), Float(std)
	}
	r.MeanVelNoZero = Float(nanMean(finite(noZero)))

	r.NTotal = len(vel)
	r.NNonNan = len(velFinite)
	r.NNanTan = s.CountNaN()
	r.NNanFinal = r.NTotal - r.NNonNan
	r.NNanOutliers = r.NNanFinal - r.NNanTan
	r.PercentNanFinal, r.PercentGoodFinal = NaN(), NaN()
	if r.NTotal > 0 {
		r.PercentNanFinal = Float(round2(float64(r.NNanFinal) / float64(r.NTotal) * 100))
		r.PercentGoodFinal = Float(round2(float64(r.NNonNan) / float64(r.NTotal) * 100))
	}
	for _, v := range vel {
		if v == 0 {
			r.NZero++
		}
	}
	return r, nil
}

// BothSigns reports whether the cleaned series holds both positive and
// negative velocities. NaN is ignored.
func BothSigns(v []float64) bool {
	return bothSigns(finite(v))
}

func bothSigns(v []float64) bool {
	if len(v) == 0 {
		return false
	}
	lo, hi := sign(floats.Min(v)), sign(floats.Max(v))
	if lo == 0 || hi == 0 {
		return false
	}
	return lo != hi
}

func boundOrNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

func baseName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

func finite(v []float64) []float64 {
	out := make([]float64, 0, len(v))
	for _, x := range v {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

func nanMean(finite []float64) float64 {
	if len(finite) == 0 {
		return math.NaN()
	}
	return stat.Mean(finite, nil)
}

func sign(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return x
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
