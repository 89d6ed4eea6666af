// Package store keeps velocity analyses in a SQLite database so runs can
// be listed and compared across sessions.
//
// Each analysis gets a UUID. Its metadata lives in the analyses table and
// its samples in velocity_samples; NaN velocities are stored as NULL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ironsheep/kymflow-mcp/internal/export"
	"github.com/ironsheep/kymflow-mcp/internal/flow"
	"github.com/ironsheep/kymflow-mcp/internal/kymograph"
	"github.com/ironsheep/kymflow-mcp/internal/report"
)

// ErrNotFound is returned when no analysis matches a lookup.
var ErrNotFound = errors.New("analysis not found")

// Store is a SQLite-backed analysis store.
type Store struct {
	db *sql.DB
}

// Summary describes one stored analysis without its samples.
type Summary struct {
	ID            string           `json:"analysis_id"`
	ImagePath     string           `json:"image_path"`
	ParentFolder  string           `json:"parent_folder"`
	File          string           `json:"file"`
	Algorithm     string           `json:"algorithm"`
	NumLines      int              `json:"num_lines"`
	PixelsPerLine int              `json:"pixels_per_line"`
	Calibration   flow.Calibration `json:"calibration"`
	Params        flow.Params      `json:"params"`
	NumSamples    int              `json:"num_samples"`
	NumNaN        int              `json:"num_nan"`
	HasReport     bool             `json:"has_report"`
	CreatedAtNs   int64            `json:"created_at_ns"`
}

// CreatedAt returns the insert time.
func (s Summary) CreatedAt() time.Time { return time.Unix(0, s.CreatedAtNs) }

// Open opens or creates the database at path and migrates it to the
// latest schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveAnalysis inserts a and its samples and returns the new analysis ID.
func (s *Store) SaveAnalysis(ctx context.Context, a *export.Analysis) (string, error) {
	if a == nil || a.Series == nil {
		return "", fmt.Errorf("%w: nil analysis", flow.ErrInvalidParameter)
	}

	id := uuid.New().String()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analyses (
			analysis_id, image_path, parent_folder, file, algorithm,
			num_lines, pixels_per_line, seconds_per_line, microns_per_pixel,
			window_size, start_pixel, stop_pixel, num_samples, num_nan,
			created_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		a.ImagePath,
		kymograph.FolderName(a.ImagePath),
		filepath.Base(a.ImagePath),
		export.Algorithm,
		a.NumLines,
		a.PixelsPerLine,
		a.Calibration.SecondsPerLine,
		a.Calibration.MicronsPerPixel,
		a.Params.WindowSize,
		a.Params.Pixels.Start,
		a.Params.Pixels.Stop,
		a.Series.Len(),
		a.Series.CountNaN(),
		time.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("insert analysis: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO velocity_samples (analysis_id, sample, time_s, velocity, angle)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("prepare samples: %w", err)
	}
	defer stmt.Close()

	for i := range a.Series.Time {
		if _, err := stmt.ExecContext(ctx, id, i, a.Series.Time[i], nullNaN(a.Series.Velocity[i]), a.Series.Angle[i]); err != nil {
			return "", fmt.Errorf("insert sample %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// LoadSeries returns the samples of analysis id in sample order.
func (s *Store) LoadSeries(ctx context.Context, id string) (*flow.Series, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT time_s, velocity, angle
		FROM velocity_samples
		WHERE analysis_id = ?
		ORDER BY sample
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	series := &flow.Series{}
	for rows.Next() {
		var t, angle float64
		var v sql.NullFloat64
		if err := rows.Scan(&t, &v, &angle); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		vel := math.NaN()
		if v.Valid {
			vel = v.Float64
		}
		series.Time = append(series.Time, t)
		series.Velocity = append(series.Velocity, vel)
		series.Angle = append(series.Angle, angle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return series, nil
}

// Load returns analysis id with its samples.
func (s *Store) Load(ctx context.Context, id string) (*export.Analysis, error) {
	sum, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	series, err := s.LoadSeries(ctx, id)
	if err != nil {
		return nil, err
	}
	return &export.Analysis{
		ImagePath:     sum.ImagePath,
		NumLines:      sum.NumLines,
		PixelsPerLine: sum.PixelsPerLine,
		Calibration:   sum.Calibration,
		Params:        sum.Params,
		Series:        series,
	}, nil
}

const summaryColumns = `
	analysis_id, image_path, parent_folder, file, algorithm,
	num_lines, pixels_per_line, seconds_per_line, microns_per_pixel,
	window_size, start_pixel, stop_pixel, num_samples, num_nan,
	report_json IS NOT NULL, created_at_ns
`

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (*Summary, error) {
	var sum Summary
	err := row.Scan(
		&sum.ID,
		&sum.ImagePath,
		&sum.ParentFolder,
		&sum.File,
		&sum.Algorithm,
		&sum.NumLines,
		&sum.PixelsPerLine,
		&sum.Calibration.SecondsPerLine,
		&sum.Calibration.MicronsPerPixel,
		&sum.Params.WindowSize,
		&sum.Params.Pixels.Start,
		&sum.Params.Pixels.Stop,
		&sum.NumSamples,
		&sum.NumNaN,
		&sum.HasReport,
		&sum.CreatedAtNs,
	)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// Get returns the summary of analysis id.
func (s *Store) Get(ctx context.Context, id string) (*Summary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+summaryColumns+` FROM analyses WHERE analysis_id = ?`, id)
	sum, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return sum, nil
}

// LatestForFile returns the most recent analysis of imagePath.
func (s *Store) LatestForFile(ctx context.Context, imagePath string) (*Summary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+summaryColumns+`
		FROM analyses
		WHERE image_path = ?
		ORDER BY created_at_ns DESC, rowid DESC
		LIMIT 1
	`, imagePath)
	sum, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, imagePath)
	}
	if err != nil {
		return nil, fmt.Errorf("latest analysis: %w", err)
	}
	return sum, nil
}

// ListAnalyses returns stored analyses newest first, optionally limited
// to one parent folder.
func (s *Store) ListAnalyses(ctx context.Context, parentFolder string) ([]*Summary, error) {
	query := `SELECT ` + summaryColumns + ` FROM analyses`
	var args []any
	if parentFolder != "" {
		query += ` WHERE parent_folder = ?`
		args = append(args, parentFolder)
	}
	query += ` ORDER BY created_at_ns DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var out []*Summary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return out, nil
}

// SaveReport attaches r to analysis id, replacing any earlier report.
func (s *Store) SaveReport(ctx context.Context, id string, r *report.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE analyses SET report_json = ? WHERE analysis_id = ?`, string(data), id)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// LoadReport returns the report attached to analysis id.
func (s *Store) LoadReport(ctx context.Context, id string) (*report.Report, error) {
	var data sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT report_json FROM analyses WHERE analysis_id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !data.Valid) {
		return nil, fmt.Errorf("%w: no report for %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	var r report.Report
	if err := json.Unmarshal([]byte(data.String), &r); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &r, nil
}

// Delete removes analysis id and its samples.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM velocity_samples WHERE analysis_id = ?`, id); err != nil {
		return fmt.Errorf("delete samples: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM analyses WHERE analysis_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx.Commit()
}

func nullNaN(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
