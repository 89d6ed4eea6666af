package export

import (
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/ironsheep/kymflow-mcp/internal/report"
)

// SummaryRow is one file in a summary table.
type SummaryRow struct {
	DateIndex int `csv:"dateIndex"`
	report.Report
}

// WriteSummary writes one row per report, numbering them from 0.
func WriteSummary(w io.Writer, reports []*report.Report) error {
	rows := make([]*SummaryRow, len(reports))
	for i, r := range reports {
		rows[i] = &SummaryRow{DateIndex: i, Report: *r}
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to write summary CSV: %w", err)
	}
	return nil
}

// SaveSummary writes a summary table to path.
func SaveSummary(path string, reports []*report.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	if err := WriteSummary(f, reports); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// TimeLimit restricts the report for one file to [StartSec, StopSec].
// Empty cells mean no limit.
type TimeLimit struct {
	UniqueFile string       `csv:"uniqueFile"`
	StartSec   report.Float `csv:"startSec"`
	StopSec    report.Float `csv:"stopSec"`
}

// Apply sets the time range of opts from the limit.
func (l TimeLimit) Apply(opts report.Options) report.Options {
	if !l.StartSec.IsNaN() {
		v := float64(l.StartSec)
		opts.StartSec = &v
	}
	if !l.StopSec.IsNaN() {
		v := float64(l.StopSec)
		opts.StopSec = &v
	}
	return opts
}

// ReadTimeLimits parses a CSV with uniqueFile, startSec and stopSec columns
// into a map keyed by uniqueFile ("folder/file.tif"). Other columns are
// ignored.
func ReadTimeLimits(r io.Reader) (map[string]TimeLimit, error) {
	var rows []*TimeLimit
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse time limits: %w", err)
	}
	out := make(map[string]TimeLimit, len(rows))
	for _, row := range rows {
		out[row.UniqueFile] = *row
	}
	return out, nil
}

// LoadTimeLimits reads time limits from a CSV file.
func LoadTimeLimits(path string) (map[string]TimeLimit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open time limits: %w", err)
	}
	defer f.Close()
	return ReadTimeLimits(f)
}
