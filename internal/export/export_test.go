package export

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/ironsheep/kymflow-mcp/internal/flow"
	"github.com/ironsheep/kymflow-mcp/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAnalysis(imagePath string) *Analysis {
	return &Analysis{
		ImagePath:     imagePath,
		NumLines:      30000,
		PixelsPerLine: 38,
		Calibration:   flow.Calibration{SecondsPerLine: 0.00117, MicronsPerPixel: 0.284},
		Params:        flow.Params{WindowSize: 16, Pixels: flow.PixelRange{Start: 2, Stop: 36}},
		Series: &flow.Series{
			Time:     []float64{0.0105, 0.0152, 0.0199, 0.0246},
			Velocity: []float64{-0.065, math.NaN(), -0.07, -0.06},
			Angle:    []float64{165, 0, 164, 166},
		},
	}
}

func TestAnalysisPath(t *testing.T) {
	p := "/data/20221102/Capillary1_0001.tif"
	assert.Equal(t, "/data/20221102/20221102-analysis", AnalysisDir(p))
	assert.Equal(t, "/data/20221102/20221102-analysis/Capillary1_0001.csv", AnalysisPath(p))
}

func TestWriteAnalysis_Columns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAnalysis(&buf, testAnalysis("/data/20221102/k.tif")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t,
		"time,velocity,parentFolder,file,algorithm,delx,delt,numLines,pntsPerLine,cleanVelocity,absVelocity,angle,windowSize,startPixel,stopPixel",
		lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "0.0105,-0.065,20221102,k.tif,mpRadon,0.284,0.00117,30000,38,"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "0.0152,,20221102,k.tif,mpRadon,"), lines[2])
}

func TestSaveAndLoadAnalysis(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "20221102")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	imagePath := filepath.Join(dir, "Capillary1_0001.tif")
	want := testAnalysis(imagePath)

	path, err := SaveAnalysis(want)
	require.NoError(t, err)
	assert.Equal(t, AnalysisPath(imagePath), path)

	got, err := LoadAnalysis(imagePath)
	require.NoError(t, err)
	assert.Equal(t, want.NumLines, got.NumLines)
	assert.Equal(t, want.PixelsPerLine, got.PixelsPerLine)
	assert.Equal(t, want.Calibration, got.Calibration)
	assert.Equal(t, want.Params, got.Params)
	if diff := cmp.Diff(want.Series, got.Series, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("series mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadAnalysis_Missing(t *testing.T) {
	_, err := LoadAnalysis(filepath.Join(t.TempDir(), "x", "none.tif"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReadAnalysis_PandasExport(t *testing.T) {
	// Older exports carry an unnamed index column, empty NaN cells and no
	// angle or window columns.
	csv := `,time,velocity,parentFolder,file,algorithm,delx,delt,numLines,pntsPerLine,cleanVelocity,absVelocity
0,0.0105,0.5,20221102,k.tif,mpRadon,0.284,0.00117,30000,38,0.5,0.5
1,0.0152,,20221102,k.tif,mpRadon,0.284,0.00117,30000,38,,
2,0.0199,0.7,20221102,k.tif,other,0.284,0.00117,30000,38,0.7,0.7
`
	a, err := ReadAnalysis(strings.NewReader(csv), "k.tif")
	require.NoError(t, err)
	require.Equal(t, 2, a.Series.Len())
	assert.Equal(t, 0.5, a.Series.Velocity[0])
	assert.True(t, math.IsNaN(a.Series.Velocity[1]))
	assert.Equal(t, 30000, a.NumLines)
	assert.Equal(t, 0, a.Params.WindowSize)
}

func TestReadAnalysis_NoRows(t *testing.T) {
	csv := "time,velocity,algorithm\n0.1,1,other\n"
	_, err := ReadAnalysis(strings.NewReader(csv), "k.tif")
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestRows_CleanVelocity(t *testing.T) {
	a := testAnalysis("/d/f/k.tif")
	a.Series = &flow.Series{
		Time:     make([]float64, 8),
		Velocity: []float64{-1, -1, -1, -1, -1, -1, -1, -1},
		Angle:    make([]float64, 8),
	}
	rows, err := Rows(a)
	require.NoError(t, err)
	for _, r := range rows {
		assert.Equal(t, report.Float(1), r.CleanVelocity)
		assert.Equal(t, report.Float(1), r.AbsVelocity)
		assert.Equal(t, report.Float(-1), r.Velocity)
	}
}

func TestWriteSummary(t *testing.T) {
	reports := []*report.Report{
		{File: "a.tif", UniqueFile: "d/a.tif", MeanVel: 1.5, MinVel: report.NaN()},
		{File: "b.tif", UniqueFile: "d/b.tif", MeanVel: 2, PosNegVel: true},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, reports))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "dateIndex,parentFolder,file,uniqueFile,"), lines[0])
	assert.Contains(t, lines[0], "Total Dur (s)")
	assert.True(t, strings.HasPrefix(lines[1], "0,,a.tif,d/a.tif,"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "1,,b.tif,d/b.tif,"), lines[2])
	assert.Contains(t, lines[2], "true")
}

func TestReadTimeLimits(t *testing.T) {
	csv := `uniqueFile,startSec,stopSec,Genotype
20221102/a.tif,1.5,10,wt
20221102/b.tif,,,ko
`
	limits, err := ReadTimeLimits(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, limits, 2)

	opts := limits["20221102/a.tif"].Apply(report.DefaultOptions())
	require.NotNil(t, opts.StartSec)
	require.NotNil(t, opts.StopSec)
	assert.Equal(t, 1.5, *opts.StartSec)
	assert.Equal(t, 10.0, *opts.StopSec)
	assert.True(t, opts.RemoveOutliers)

	open := limits["20221102/b.tif"].Apply(report.DefaultOptions())
	assert.Nil(t, open.StartSec)
	assert.Nil(t, open.StopSec)
}
