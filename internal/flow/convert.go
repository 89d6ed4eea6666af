package flow

import (
	"fmt"
	"math"
)

// MaxVelocity bounds |v| in mm/s; larger values come from angles near 90
// degrees where tan has no useful precision.
const MaxVelocity = 1e6

// Velocity converts a streak angle in degrees to mm/s.
//
// v = (delx/delt) * tan(angle) / 1000. A result of exactly 0 (no motion)
// or with |v| > MaxVelocity is NaN.
func Velocity(angle float64, cal Calibration) float64 {
	v := (cal.MicronsPerPixel / cal.SecondsPerLine) * math.Tan(angle*math.Pi/180) / 1000
	if v == 0 || math.Abs(v) > MaxVelocity {
		return math.NaN()
	}
	return v
}

// Convert builds the velocity series for a set of window results.
//
// Sample i takes its time from windows[i].CenterLine * delt and its
// velocity from results[i].Angle.
//
// # Errors
//
//   - ErrInvalidParameter if the calibration is invalid
//   - ErrInvalidParameter if results and windows differ in length
func Convert(results []WindowResult, windows []Window, cal Calibration) (*Series, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	if len(results) != len(windows) {
		return nil, fmt.Errorf("%w: %d results for %d windows", ErrInvalidParameter, len(results), len(windows))
	}

	s := newSeries(len(results))
	for i, r := range results {
		s.Time[i] = float64(windows[i].CenterLine) * cal.SecondsPerLine
		s.Angle[i] = r.Angle
		s.Velocity[i] = Velocity(r.Angle, cal)
	}
	return s, nil
}
