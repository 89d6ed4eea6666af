// Package postprocess cleans velocity series on demand.
//
// Stages always run in the order RemoveZero, RemoveOutliers, MedianFilter,
// AbsValue. Every function returns a new slice; inputs are never modified,
// so a stored series can be cleaned with different options per request.
package postprocess

import (
	"fmt"
	"math"

	"github.com/ironsheep/kymflow-mcp/internal/flow"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// OutlierRule selects how RemoveOutliers decides a value is an outlier.
type OutlierRule string

const (
	// OutlierSigma rejects values more than 2 standard deviations from the
	// mean in a single pass.
	OutlierSigma OutlierRule = "sigma"

	// OutlierMAD rejects values more than 3 scaled median absolute
	// deviations from the median.
	OutlierMAD OutlierRule = "mad"
)

const (
	sigmaClip = 2.0
	madClip   = 3.0
	madScale  = 1.4826
)

// Options selects the cleanup stages.
type Options struct {
	RemoveZero     bool        `json:"remove_zero"`
	RemoveOutliers bool        `json:"remove_outliers"`
	OutlierRule    OutlierRule `json:"outlier_rule,omitempty"`
	MedianFilter   int         `json:"median_filter"`
	AbsValue       bool        `json:"abs_value"`
}

// Validate checks the median filter length and outlier rule.
func (o Options) Validate() error {
	if o.MedianFilter < 0 || (o.MedianFilter > 0 && o.MedianFilter%2 == 0) {
		return fmt.Errorf("%w: median filter must be 0 or odd, got %d", flow.ErrInvalidParameter, o.MedianFilter)
	}
	switch o.OutlierRule {
	case "", OutlierSigma, OutlierMAD:
	default:
		return fmt.Errorf("%w: unknown outlier rule %q", flow.ErrInvalidParameter, o.OutlierRule)
	}
	return nil
}

// Apply runs the enabled stages over a copy of v.
func Apply(v []float64, o Options) ([]float64, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	out := clone(v)
	if o.RemoveZero {
		out = RemoveZero(out)
	}
	if o.RemoveOutliers {
		if o.OutlierRule == OutlierMAD {
			out = RemoveOutliersMAD(out)
		} else {
			out = RemoveOutliers(out)
		}
	}
	if o.MedianFilter > 0 {
		var err error
		if out, err = MedianFilter(out, o.MedianFilter); err != nil {
			return nil, err
		}
	}
	if o.AbsValue {
		out = AbsValue(out)
	}
	return out, nil
}

// RemoveZero replaces exact zeros with NaN.
func RemoveZero(v []float64) []float64 {
	out := clone(v)
	for i, x := range out {
		if x == 0 {
			out[i] = math.NaN()
		}
	}
	return out
}

// RemoveOutliers replaces values outside mean +/- 2 standard deviations
// with NaN. Mean and population standard deviation ignore NaN. One pass
// only: a few extreme values widen the band and can hide milder outliers.
func RemoveOutliers(v []float64) []float64 {
	out := clone(v)
	finite := finiteValues(v)
	if len(finite) == 0 {
		return out
	}
	mean, std := stat.PopMeanStdDev(finite, nil)
	lo, hi := mean-sigmaClip*std, mean+sigmaClip*std
	for i, x := range out {
		if x < lo || x > hi {
			out[i] = math.NaN()
		}
	}
	return out
}

// RemoveOutliersMAD replaces values further than 3*1.4826*MAD from the
// median with NaN, ignoring NaN when computing median and MAD.
func RemoveOutliersMAD(v []float64) []float64 {
	out := clone(v)
	finite := finiteValues(v)
	if len(finite) == 0 {
		return out
	}
	median, _ := stats.Median(finite)
	mad, _ := stats.MedianAbsoluteDeviationPopulation(finite)
	limit := madClip * madScale * mad
	for i, x := range out {
		if math.Abs(x-median) > limit {
			out[i] = math.NaN()
		}
	}
	return out
}

// MedianFilter applies a sliding median of odd length k. The series is
// padded with zeros at both ends and any window containing NaN yields NaN.
// k == 0 returns a copy.
func MedianFilter(v []float64, k int) ([]float64, error) {
	if k < 0 || (k > 0 && k%2 == 0) {
		return nil, fmt.Errorf("%w: median filter must be 0 or odd, got %d", flow.ErrInvalidParameter, k)
	}
	out := clone(v)
	if k <= 1 {
		return out, nil
	}

	half := k / 2
	window := make([]float64, k)
	for i := range v {
		hasNaN := false
		for j := 0; j < k; j++ {
			idx := i - half + j
			if idx < 0 || idx >= len(v) {
				window[j] = 0
				continue
			}
			if math.IsNaN(v[idx]) {
				hasNaN = true
				break
			}
			window[j] = v[idx]
		}
		if hasNaN {
			out[i] = math.NaN()
			continue
		}
		out[i], _ = stats.Median(window)
	}
	return out, nil
}

// AbsValue replaces each value with its magnitude. NaN stays NaN.
func AbsValue(v []float64) []float64 {
	out := clone(v)
	for i, x := range out {
		out[i] = math.Abs(x)
	}
	return out
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

func finiteValues(v []float64) []float64 {
	out := make([]float64, 0, len(v))
	for _, x := range v {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}
