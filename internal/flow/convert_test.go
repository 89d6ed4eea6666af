package flow

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCal = Calibration{SecondsPerLine: 0.00117, MicronsPerPixel: 0.284}

func TestCalibration_Validate(t *testing.T) {
	tests := []struct {
		name string
		cal  Calibration
		ok   bool
	}{
		{"valid", testCal, true},
		{"zero delt", Calibration{SecondsPerLine: 0, MicronsPerPixel: 1}, false},
		{"negative delx", Calibration{SecondsPerLine: 1, MicronsPerPixel: -1}, false},
		{"nan delt", Calibration{SecondsPerLine: math.NaN(), MicronsPerPixel: 1}, false},
		{"inf delx", Calibration{SecondsPerLine: 1, MicronsPerPixel: math.Inf(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cal.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrInvalidParameter))
			}
		})
	}
}

func TestVelocity(t *testing.T) {
	scale := testCal.MicronsPerPixel / testCal.SecondsPerLine / 1000

	tests := []struct {
		name  string
		angle float64
		want  float64
	}{
		{"forty five", 45, scale},
		{"fifteen", 15, scale * math.Tan(15*math.Pi/180)},
		{"negative", -30, scale * math.Tan(-30*math.Pi/180)},
		{"obtuse", 135, -scale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Velocity(tt.angle, testCal), 1e-12)
		})
	}
}

func TestVelocity_Degenerate(t *testing.T) {
	assert.True(t, math.IsNaN(Velocity(0, testCal)), "zero angle")
	assert.True(t, math.IsNaN(Velocity(90, testCal)), "vertical tan")

	// Large but finite slope still converts.
	steep := Calibration{SecondsPerLine: 1, MicronsPerPixel: 1}
	assert.False(t, math.IsNaN(Velocity(89.75, steep)))

	// Same angle on a fast scanner overflows the bound, in either sign.
	fast := Calibration{SecondsPerLine: 1e-9, MicronsPerPixel: 1}
	assert.True(t, math.IsNaN(Velocity(89.75, fast)))
	assert.True(t, math.IsNaN(Velocity(-89.75, fast)))
}

func TestVelocity_RoundTrip(t *testing.T) {
	for _, angle := range []float64{-60, -10.25, 3.5, 15, 44.75, 80} {
		v := Velocity(angle, testCal)
		back := math.Atan(v*1000*testCal.SecondsPerLine/testCal.MicronsPerPixel) * 180 / math.Pi
		assert.InDelta(t, angle, back, 1e-9)
	}
}

func TestConvert(t *testing.T) {
	windows, err := Plan(40, 8, 16, PixelRange{})
	require.NoError(t, err)
	require.Len(t, windows, 7)

	results := make([]WindowResult, len(windows))
	for i := range results {
		results[i].Index = i
		results[i].Angle = float64(i * 10)
	}

	s, err := Convert(results, windows, testCal)
	require.NoError(t, err)
	require.Equal(t, 7, s.Len())

	for i := range results {
		assert.InDelta(t, float64(1+4*i+8)*testCal.SecondsPerLine, s.Time[i], 1e-15)
		assert.Equal(t, float64(i*10), s.Angle[i])
	}
	assert.True(t, math.IsNaN(s.Velocity[0]))
	assert.InDelta(t, Velocity(30, testCal), s.Velocity[3], 1e-15)
	assert.Equal(t, 1, s.CountNaN())
}

func TestConvert_Errors(t *testing.T) {
	windows, err := Plan(40, 8, 16, PixelRange{})
	require.NoError(t, err)

	_, err = Convert(make([]WindowResult, 2), windows, testCal)
	assert.True(t, errors.Is(err, ErrInvalidParameter))

	_, err = Convert(make([]WindowResult, len(windows)), windows, Calibration{})
	assert.True(t, errors.Is(err, ErrInvalidParameter))
}

func TestSeries_CloneAndBetween(t *testing.T) {
	s := &Series{
		Time:     []float64{0.1, 0.2, 0.3, 0.4},
		Velocity: []float64{1, math.NaN(), 3, 4},
		Angle:    []float64{10, 0, 30, 40},
	}

	c := s.Clone()
	c.Velocity[0] = 99
	assert.Equal(t, 1.0, s.Velocity[0])

	b := s.Between(0.2, 0.3)
	assert.Equal(t, []float64{0.2, 0.3}, b.Time)
	assert.Equal(t, 3.0, b.Velocity[1])

	all := s.Between(math.NaN(), math.NaN())
	assert.Equal(t, 4, all.Len())
}

func TestWindowCopiesAreIndependent(t *testing.T) {
	kym := constantKymograph(t, 32, 4, 7)
	a := kym.Window(0, 16, 0, 4)
	b := kym.Window(0, 16, 0, 4)
	a.Set(0, 0, 1000)
	assert.Equal(t, 7.0, b.At(0, 0))
}
