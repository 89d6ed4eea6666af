package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/ironsheep/kymflow-mcp/internal/flow"
	"github.com/ironsheep/kymflow-mcp/internal/kymograph"
	"github.com/ironsheep/kymflow-mcp/internal/postprocess"
	"github.com/ironsheep/kymflow-mcp/internal/report"
)

// Algorithm tags rows produced by the windowed Radon analysis.
const Algorithm = "mpRadon"

// CleanOptions is the cleanup stored in the cleanVelocity column.
var CleanOptions = postprocess.Options{RemoveOutliers: true, MedianFilter: 5, AbsValue: true}

// ErrNoRows is returned when a CSV holds no rows for this algorithm.
var ErrNoRows = errors.New("no analysis rows")

// AnalysisRow is one line of a saved analysis.
type AnalysisRow struct {
	Time          report.Float `csv:"time"`
	Velocity      report.Float `csv:"velocity"`
	ParentFolder  string       `csv:"parentFolder"`
	File          string       `csv:"file"`
	Algorithm     string       `csv:"algorithm"`
	Delx          report.Float `csv:"delx"`
	Delt          report.Float `csv:"delt"`
	NumLines      int          `csv:"numLines"`
	PntsPerLine   int          `csv:"pntsPerLine"`
	CleanVelocity report.Float `csv:"cleanVelocity"`
	AbsVelocity   report.Float `csv:"absVelocity"`
	Angle         report.Float `csv:"angle"`
	WindowSize    int          `csv:"windowSize"`
	StartPixel    int          `csv:"startPixel"`
	StopPixel     int          `csv:"stopPixel"`
}

// Analysis is a velocity series with the metadata needed to interpret it.
type Analysis struct {
	ImagePath     string
	NumLines      int
	PixelsPerLine int
	Calibration   flow.Calibration
	Params        flow.Params
	Series        *flow.Series
}

// AnalysisDir returns the folder analyses for imagePath are saved in.
func AnalysisDir(imagePath string) string {
	dir := filepath.Dir(imagePath)
	return filepath.Join(dir, filepath.Base(dir)+"-analysis")
}

// AnalysisPath returns the CSV path for imagePath's analysis.
func AnalysisPath(imagePath string) string {
	return filepath.Join(AnalysisDir(imagePath), kymograph.BaseName(imagePath)+".csv")
}

// Rows converts an analysis to CSV rows.
func Rows(a *Analysis) ([]*AnalysisRow, error) {
	clean, err := postprocess.Apply(a.Series.Velocity, CleanOptions)
	if err != nil {
		return nil, err
	}
	abs := postprocess.AbsValue(clean)

	parent := kymograph.FolderName(a.ImagePath)
	file := filepath.Base(a.ImagePath)
	rows := make([]*AnalysisRow, a.Series.Len())
	for i := range rows {
		rows[i] = &AnalysisRow{
			Time:          report.Float(a.Series.Time[i]),
			Velocity:      report.Float(a.Series.Velocity[i]),
			ParentFolder:  parent,
			File:          file,
			Algorithm:     Algorithm,
			Delx:          report.Float(a.Calibration.MicronsPerPixel),
			Delt:          report.Float(a.Calibration.SecondsPerLine),
			NumLines:      a.NumLines,
			PntsPerLine:   a.PixelsPerLine,
			CleanVelocity: report.Float(clean[i]),
			AbsVelocity:   report.Float(abs[i]),
			Angle:         report.Float(a.Series.Angle[i]),
			WindowSize:    a.Params.WindowSize,
			StartPixel:    a.Params.Pixels.Start,
			StopPixel:     a.Params.Pixels.Stop,
		}
	}
	return rows, nil
}

// WriteAnalysis writes a as CSV to w.
func WriteAnalysis(w io.Writer, a *Analysis) error {
	rows, err := Rows(a)
	if err != nil {
		return err
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to write analysis CSV: %w", err)
	}
	return nil
}

// SaveAnalysis writes a to AnalysisPath(a.ImagePath), creating the folder
// if needed, and returns the path written.
func SaveAnalysis(a *Analysis) (string, error) {
	path := AnalysisPath(a.ImagePath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create analysis folder: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create analysis file: %w", err)
	}
	if err := WriteAnalysis(f, a); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close analysis file: %w", err)
	}
	return path, nil
}

// ReadAnalysis parses an analysis CSV. Only rows tagged with Algorithm are
// used. imagePath is recorded in the result as given.
//
// # Errors
//
//   - Returns error if the CSV cannot be parsed
//   - Returns ErrNoRows if no row has the expected algorithm
func ReadAnalysis(r io.Reader, imagePath string) (*Analysis, error) {
	var rows []*AnalysisRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse analysis CSV: %w", err)
	}

	a := &Analysis{ImagePath: imagePath, Series: &flow.Series{}}
	found := false
	for _, row := range rows {
		if row.Algorithm != Algorithm {
			continue
		}
		if !found {
			a.NumLines = row.NumLines
			a.PixelsPerLine = row.PntsPerLine
			a.Calibration = flow.Calibration{
				SecondsPerLine:  float64(row.Delt),
				MicronsPerPixel: float64(row.Delx),
			}
			a.Params = flow.Params{
				WindowSize: row.WindowSize,
				Pixels:     flow.PixelRange{Start: row.StartPixel, Stop: row.StopPixel},
			}
			found = true
		}
		a.Series.Time = append(a.Series.Time, float64(row.Time))
		a.Series.Velocity = append(a.Series.Velocity, float64(row.Velocity))
		a.Series.Angle = append(a.Series.Angle, float64(row.Angle))
	}
	if !found {
		return nil, ErrNoRows
	}
	return a, nil
}

// LoadAnalysis reads the saved analysis for imagePath. A missing file
// returns an error wrapping os.ErrNotExist.
func LoadAnalysis(imagePath string) (*Analysis, error) {
	f, err := os.Open(AnalysisPath(imagePath))
	if err != nil {
		return nil, fmt.Errorf("failed to open analysis: %w", err)
	}
	defer f.Close()
	return ReadAnalysis(f, imagePath)
}
