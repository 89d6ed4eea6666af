package report

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/ironsheep/kymflow-mcp/internal/flow"
	"github.com/ironsheep/kymflow-mcp/internal/kymograph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

func testSource() Source {
	return Source{
		Path:          "/data/20221102/Capillary1_0001.tif",
		NumLines:      100,
		PixelsPerLine: 38,
		Calibration:   flow.Calibration{SecondsPerLine: 0.001, MicronsPerPixel: 0.5},
	}
}

func series(v ...float64) *flow.Series {
	s := &flow.Series{Velocity: v}
	for i := range v {
		s.Time = append(s.Time, float64(i)*0.1)
		s.Angle = append(s.Angle, 0)
	}
	return s
}

func testKymograph(t *testing.T) *kymograph.Kymograph {
	t.Helper()
	k, err := kymograph.New(2, 2, []uint16{10, 20, 30, 40})
	require.NoError(t, err)
	return k
}

func TestSummarize_Identity(t *testing.T) {
	r, err := Summarize(testKymograph(t), series(1, 2, 3), testSource(), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "20221102", r.ParentFolder)
	assert.Equal(t, "Capillary1_0001.tif", r.File)
	assert.Equal(t, "20221102/Capillary1_0001.tif", r.UniqueFile)
	assert.Equal(t, 38, r.PntsPerLine)
	assert.Equal(t, 100, r.NumLines)
	assert.InDelta(t, 0.1, float64(r.TotalDurSec), 1e-12)
	assert.InDelta(t, 19.0, float64(r.LineLengthUm), 1e-12)

	assert.Equal(t, Float(25), r.MeanInt)
	assert.Equal(t, Float(10), r.MinInt)
	assert.Equal(t, Float(40), r.MaxInt)
	assert.Equal(t, Float(30), r.RangeInt)
}

func TestSummarize_Statistics(t *testing.T) {
	// One degenerate NaN, one outlier, the rest negative flow.
	v := []float64{-1, -1, -1, -1, -1, -1, -1, -1, -1, -50, nan, -2}
	r, err := Summarize(nil, series(v...), testSource(), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 12, r.NTotal)
	assert.Equal(t, 1, r.NNanTan)
	assert.Equal(t, 2, r.NNanFinal)
	assert.Equal(t, 1, r.NNanOutliers)
	assert.Equal(t, 10, r.NNonNan)
	assert.Equal(t, Float(16.67), r.PercentNanFinal)
	assert.Equal(t, Float(83.33), r.PercentGoodFinal)

	assert.Equal(t, Float(1), r.MinVel)
	assert.Equal(t, Float(2), r.MaxVel)
	assert.Equal(t, Float(1), r.RangeVel)
	assert.InDelta(t, 1.1, float64(r.MeanVel), 1e-12)
	assert.Equal(t, Float(1), r.MedianVel)
	assert.InDelta(t, 0.3, float64(r.StdVel), 1e-12)
	assert.Equal(t, Float(-1), r.SignMeanVel)
	assert.False(t, r.PosNegVel)
	assert.Equal(t, 0, r.NZero)

	assert.True(t, r.MeanInt.IsNaN())
}

func TestSummarize_PosNeg(t *testing.T) {
	r, err := Summarize(nil, series(1, 1.2, -1, 0.9, -1.1), testSource(), Options{})
	require.NoError(t, err)
	assert.True(t, r.PosNegVel)
	assert.Equal(t, Float(1), r.SignMeanVel)
}

func TestSummarize_ZeroDoesNotCountAsSign(t *testing.T) {
	r, err := Summarize(nil, series(0, 1, 2), testSource(), Options{})
	require.NoError(t, err)
	assert.False(t, r.PosNegVel)
	assert.Equal(t, 1, r.NZero)
	assert.InDelta(t, 1.5, float64(r.MeanVelNoZero), 1e-12)
	assert.InDelta(t, 1.0, float64(r.MeanVel), 1e-12)
}

func TestSummarize_AllNaN(t *testing.T) {
	r, err := Summarize(nil, series(nan, nan, nan), testSource(), Options{RemoveOutliers: true, MedianFilter: 3})
	require.NoError(t, err)

	assert.Equal(t, 3, r.NTotal)
	assert.Equal(t, 0, r.NNonNan)
	assert.Equal(t, 3, r.NNanTan)
	assert.Equal(t, 0, r.NNanOutliers)
	assert.Equal(t, Float(100), r.PercentNanFinal)
	for _, f := range []Float{r.MinVel, r.MaxVel, r.MeanVel, r.MedianVel, r.StdVel, r.MeanVelNoZero, r.SignMeanVel} {
		assert.True(t, f.IsNaN())
	}
	assert.False(t, r.PosNegVel)

	_, err = json.Marshal(r)
	assert.NoError(t, err)
}

func TestSummarize_Empty(t *testing.T) {
	r, err := Summarize(nil, series(), testSource(), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, r.NTotal)
	assert.True(t, r.PercentNanFinal.IsNaN())
}

func TestSummarize_TimeLimit(t *testing.T) {
	start, stop := 0.2, 0.4
	opts := Options{StartSec: &start, StopSec: &stop}
	r, err := Summarize(nil, series(5, 5, 1, 2, 3, 5, 5), testSource(), opts)
	require.NoError(t, err)
	assert.Equal(t, 3, r.NTotal)
	assert.Equal(t, Float(1), r.MinVel)
	assert.Equal(t, Float(3), r.MaxVel)
}

func TestSummarize_InvalidMedian(t *testing.T) {
	_, err := Summarize(nil, series(1, 2), testSource(), Options{MedianFilter: 2})
	assert.ErrorIs(t, err, flow.ErrInvalidParameter)
}

func TestSummarize_DoesNotModifySeries(t *testing.T) {
	s := series(-1, 0, -1, -100, -1, -1, -1, -1)
	_, err := Summarize(nil, s, testSource(), Options{RemoveOutliers: true, MedianFilter: 3})
	require.NoError(t, err)
	assert.Equal(t, -100.0, s.Velocity[3])
	assert.Equal(t, 0.0, s.Velocity[1])
}

func TestBothSigns(t *testing.T) {
	assert.True(t, BothSigns([]float64{-1, nan, 2}))
	assert.False(t, BothSigns([]float64{nan, nan}))
	assert.False(t, BothSigns([]float64{-1, -2}))
}
