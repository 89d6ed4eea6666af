package flow

import "math"

// Series is a velocity time series, one sample per analysis window, in
// window order. Velocity is NaN where the angle was degenerate.
type Series struct {
	Time     []float64 `json:"time"`
	Velocity []float64 `json:"velocity"`
	Angle    []float64 `json:"angle"`
}

func newSeries(n int) *Series {
	return &Series{
		Time:     make([]float64, n),
		Velocity: make([]float64, n),
		Angle:    make([]float64, n),
	}
}

// Len returns the number of samples.
func (s *Series) Len() int { return len(s.Time) }

// Clone returns a deep copy.
func (s *Series) Clone() *Series {
	c := newSeries(s.Len())
	copy(c.Time, s.Time)
	copy(c.Velocity, s.Velocity)
	copy(c.Angle, s.Angle)
	return c
}

// Between returns the samples with start <= time <= stop. NaN bounds are
// treated as open.
func (s *Series) Between(start, stop float64) *Series {
	out := newSeries(0)
	for i, t := range s.Time {
		if !math.IsNaN(start) && t < start {
			continue
		}
		if !math.IsNaN(stop) && t > stop {
			continue
		}
		out.Time = append(out.Time, t)
		out.Velocity = append(out.Velocity, s.Velocity[i])
		out.Angle = append(out.Angle, s.Angle[i])
	}
	return out
}

// CountNaN returns the number of NaN velocities.
func (s *Series) CountNaN() int {
	n := 0
	for _, v := range s.Velocity {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}
