package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/ironsheep/kymflow-mcp/internal/config"
	"github.com/ironsheep/kymflow-mcp/internal/export"
	"github.com/ironsheep/kymflow-mcp/internal/flow"
	"github.com/ironsheep/kymflow-mcp/internal/kymfile"
	"github.com/ironsheep/kymflow-mcp/internal/kymograph"
	"github.com/ironsheep/kymflow-mcp/internal/monitoring"
	"github.com/ironsheep/kymflow-mcp/internal/postprocess"
	"github.com/ironsheep/kymflow-mcp/internal/render"
	"github.com/ironsheep/kymflow-mcp/internal/report"
	"github.com/ironsheep/kymflow-mcp/internal/store"
)

// errNoStore is returned by database tools when no database is configured.
var errNoStore = errors.New("no database configured (set database_path)")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "kym_load", "kym_analyze").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		monitoring.Debugf("%s failed: %v", params.Name, err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Loading
	case "kym_load":
		return s.handleKymLoad(args)
	case "kym_header":
		return s.handleKymHeader(args)

	// Analysis
	case "kym_analyze":
		return s.handleKymAnalyze(ctx, args)
	case "kym_velocity":
		return s.handleKymVelocity(args)
	case "kym_report":
		return s.handleKymReport(args)

	// Persistence
	case "kym_save_analysis":
		return s.handleKymSaveAnalysis(ctx, args)
	case "kym_load_analysis":
		return s.handleKymLoadAnalysis(ctx, args)
	case "kym_summary_table":
		return s.handleKymSummaryTable(ctx, args)

	// Rendering
	case "kym_preview":
		return s.handleKymPreview(args)
	case "kym_plot_velocity":
		return s.handleKymPlotVelocity(args)

	// Database
	case "kym_store_list":
		return s.handleKymStoreList(ctx, args)
	case "kym_store_get":
		return s.handleKymStoreGet(ctx, args)
	case "kym_store_delete":
		return s.handleKymStoreDelete(ctx, args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		monitoring.Logf("Failed to marshal result: %v", err)
	}
	return string(b)
}

// decodeArgs unmarshals tool arguments. Missing arguments decode as {}.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	return json.Unmarshal(args, v)
}

// open returns the cached File for path.
func (s *Server) open(path string) (*kymfile.File, error) {
	if path == "" {
		return nil, errors.New("path is required")
	}
	return s.files.Load(path)
}

// === Loading Handlers ===

type pathArgs struct {
	Path string `json:"path"`
}

type kymLoadArgs struct {
	Path            string   `json:"path"`
	SecondsPerLine  *float64 `json:"seconds_per_line"`
	MicronsPerPixel *float64 `json:"microns_per_pixel"`
	Reload          bool     `json:"reload"`
}

type kymLoadResult struct {
	Path          string                   `json:"path"`
	File          string                   `json:"file"`
	NumLines      int                      `json:"num_lines"`
	PixelsPerLine int                      `json:"pixels_per_line"`
	Calibration   flow.Calibration         `json:"calibration"`
	DurationSec   float64                  `json:"duration_sec"`
	LineLengthUm  float64                  `json:"line_length_um"`
	Header        *kymograph.Header        `json:"header,omitempty"`
	Intensity     kymograph.IntensityStats `json:"intensity"`
	HasAnalysis   bool                     `json:"has_analysis"`
}

func (s *Server) handleKymLoad(args json.RawMessage) (interface{}, error) {
	var a kymLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Reload {
		s.files.Evict(a.Path)
	}
	f, err := s.open(a.Path)
	if err != nil {
		return nil, err
	}

	if a.SecondsPerLine != nil || a.MicronsPerPixel != nil {
		cal := f.Calibration()
		if a.SecondsPerLine != nil {
			cal.SecondsPerLine = *a.SecondsPerLine
		}
		if a.MicronsPerPixel != nil {
			cal.MicronsPerPixel = *a.MicronsPerPixel
		}
		if err := f.SetCalibration(cal); err != nil {
			return nil, err
		}
	}

	cal := f.Calibration()
	return &kymLoadResult{
		Path:          f.Path(),
		File:          f.FileName(),
		NumLines:      f.NumLines(),
		PixelsPerLine: f.PixelsPerLine(),
		Calibration:   cal,
		DurationSec:   float64(f.NumLines()) * cal.SecondsPerLine,
		LineLengthUm:  float64(f.PixelsPerLine()) * cal.MicronsPerPixel,
		Header:        f.Header(),
		Intensity:     f.Kymograph().Intensity(),
		HasAnalysis:   f.HasAnalysis(),
	}, nil
}

func (s *Server) handleKymHeader(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	return kymograph.ReadOlympusHeader(a.Path)
}

// === Analysis Handlers ===

type kymAnalyzeArgs struct {
	Path       string `json:"path"`
	WindowSize *int   `json:"window_size"`
	StartPixel *int   `json:"start_pixel"`
	StopPixel  *int   `json:"stop_pixel"`
	Workers    *int   `json:"workers"`
	Save       bool   `json:"save"`
	Store      bool   `json:"store"`
}

func (a kymAnalyzeArgs) params(cfg *config.Config) flow.Params {
	p := cfg.Params()
	if a.WindowSize != nil {
		p.WindowSize = *a.WindowSize
	}
	if a.StartPixel != nil {
		p.Pixels.Start = *a.StartPixel
	}
	if a.StopPixel != nil {
		p.Pixels.Stop = *a.StopPixel
	}
	if a.Workers != nil {
		p.Workers = *a.Workers
	}
	return p
}

type kymAnalyzeResult struct {
	File       string      `json:"file"`
	Params     flow.Params `json:"params"`
	NumSamples int         `json:"num_samples"`
	NumNaN     int         `json:"num_nan"`
	Workers    int         `json:"workers,omitempty"`
	DurationMs int64       `json:"duration_ms,omitempty"`
	CSVPath    string      `json:"csv_path,omitempty"`
	AnalysisID string      `json:"analysis_id,omitempty"`
}

func (s *Server) handleKymAnalyze(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a kymAnalyzeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	f, err := s.open(a.Path)
	if err != nil {
		return nil, err
	}
	if a.Store && s.store == nil {
		return nil, errNoStore
	}

	series, err := f.Analyze(ctx, a.params(s.cfg))
	if err != nil {
		return nil, err
	}

	res := &kymAnalyzeResult{
		File:       f.FileName(),
		Params:     f.Params(),
		NumSamples: series.Len(),
		NumNaN:     series.CountNaN(),
	}
	if r := f.Result(); r != nil && r.Series == series {
		res.Workers = r.Workers
		res.DurationMs = r.Duration.Milliseconds()
	}
	if a.Save {
		if res.CSVPath, err = f.SaveAnalysis(); err != nil {
			return nil, err
		}
	}
	if a.Store {
		if res.AnalysisID, err = s.saveToStore(ctx, f); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// cleanupArgs are the optional cleanup overrides shared by several tools.
type cleanupArgs struct {
	RemoveZero     *bool    `json:"remove_zero"`
	RemoveOutliers *bool    `json:"remove_outliers"`
	OutlierRule    *string  `json:"outlier_rule"`
	MedianFilter   *int     `json:"median_filter"`
	StartSec       *float64 `json:"start_sec"`
	StopSec        *float64 `json:"stop_sec"`
}

func (a cleanupArgs) cleanOptions(cfg *config.Config) postprocess.Options {
	o := cfg.CleanOptions()
	if a.RemoveZero != nil {
		o.RemoveZero = *a.RemoveZero
	}
	if a.RemoveOutliers != nil {
		o.RemoveOutliers = *a.RemoveOutliers
	}
	if a.OutlierRule != nil {
		o.OutlierRule = postprocess.OutlierRule(*a.OutlierRule)
	}
	if a.MedianFilter != nil {
		o.MedianFilter = *a.MedianFilter
	}
	return o
}

func (a cleanupArgs) reportOptions(cfg *config.Config) report.Options {
	o := cfg.ReportOptions()
	if a.RemoveOutliers != nil {
		o.RemoveOutliers = *a.RemoveOutliers
	}
	if a.OutlierRule != nil {
		o.OutlierRule = postprocess.OutlierRule(*a.OutlierRule)
	}
	if a.MedianFilter != nil {
		o.MedianFilter = *a.MedianFilter
	}
	o.StartSec = a.StartSec
	o.StopSec = a.StopSec
	return o
}

// cleanedSeries returns the time-limited series of f with cleanup applied
// to its velocity.
func (a cleanupArgs) cleanedSeries(f *kymfile.File, opts postprocess.Options) (times, velocity []float64, err error) {
	series, err := f.Series()
	if err != nil {
		return nil, nil, err
	}
	if a.StartSec != nil || a.StopSec != nil {
		series = series.Between(orNaN(a.StartSec), orNaN(a.StopSec))
	}
	velocity, err = postprocess.Apply(series.Velocity, opts)
	if err != nil {
		return nil, nil, err
	}
	return series.Time, velocity, nil
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

type kymVelocityArgs struct {
	Path string `json:"path"`
	cleanupArgs
	AbsValue *bool `json:"abs_value"`
}

type kymVelocityResult struct {
	File       string              `json:"file"`
	Options    postprocess.Options `json:"options"`
	NumSamples int                 `json:"num_samples"`
	NumNaN     int                 `json:"num_nan"`
	Time       []report.Float      `json:"time"`
	Velocity   []report.Float      `json:"velocity"`
}

func (s *Server) handleKymVelocity(args json.RawMessage) (interface{}, error) {
	var a kymVelocityArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	f, err := s.open(a.Path)
	if err != nil {
		return nil, err
	}

	opts := a.cleanOptions(s.cfg)
	if a.AbsValue != nil {
		opts.AbsValue = *a.AbsValue
	}
	times, vel, err := a.cleanedSeries(f, opts)
	if err != nil {
		return nil, err
	}

	nan := 0
	for _, v := range vel {
		if math.IsNaN(v) {
			nan++
		}
	}
	return &kymVelocityResult{
		File:       f.FileName(),
		Options:    opts,
		NumSamples: len(vel),
		NumNaN:     nan,
		Time:       report.Floats(times),
		Velocity:   report.Floats(vel),
	}, nil
}

type kymReportArgs struct {
	Path string `json:"path"`
	cleanupArgs
}

func (s *Server) handleKymReport(args json.RawMessage) (interface{}, error) {
	var a kymReportArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	f, err := s.open(a.Path)
	if err != nil {
		return nil, err
	}
	return f.Report(a.reportOptions(s.cfg))
}

// === Persistence Handlers ===

// saveToStore writes the cached analysis of f and its default report to
// the database.
func (s *Server) saveToStore(ctx context.Context, f *kymfile.File) (string, error) {
	a, err := f.Export()
	if err != nil {
		return "", err
	}
	id, err := s.store.SaveAnalysis(ctx, a)
	if err != nil {
		return "", err
	}
	r, err := f.Report(s.cfg.ReportOptions())
	if err != nil {
		return "", err
	}
	if err := s.store.SaveReport(ctx, id, r); err != nil {
		return "", err
	}
	monitoring.Logf("stored %s as %s", f.FileName(), id)
	return id, nil
}

type kymSaveResult struct {
	File       string `json:"file"`
	CSVPath    string `json:"csv_path"`
	AnalysisID string `json:"analysis_id,omitempty"`
}

func (s *Server) handleKymSaveAnalysis(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	f, err := s.open(a.Path)
	if err != nil {
		return nil, err
	}

	res := &kymSaveResult{File: f.FileName()}
	if res.CSVPath, err = f.SaveAnalysis(); err != nil {
		return nil, err
	}
	if s.store != nil {
		if res.AnalysisID, err = s.saveToStore(ctx, f); err != nil {
			return nil, err
		}
	}
	return res, nil
}

type kymLoadAnalysisArgs struct {
	Path       string `json:"path"`
	AnalysisID string `json:"analysis_id"`
	Latest     bool   `json:"latest"`
}

type kymLoadAnalysisResult struct {
	File       string      `json:"file"`
	Source     string      `json:"source"`
	Params     flow.Params `json:"params"`
	NumSamples int         `json:"num_samples"`
	NumNaN     int         `json:"num_nan"`
}

func (s *Server) handleKymLoadAnalysis(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a kymLoadAnalysisArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	f, err := s.open(a.Path)
	if err != nil {
		return nil, err
	}

	source := export.AnalysisPath(f.Path())
	if a.AnalysisID != "" || a.Latest {
		if s.store == nil {
			return nil, errNoStore
		}
		id := a.AnalysisID
		if id == "" {
			latest, err := s.store.LatestForFile(ctx, f.Path())
			if err != nil {
				return nil, err
			}
			id = latest.ID
		}
		saved, err := s.store.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if saved.ImagePath != f.Path() {
			monitoring.Logf("analysis %s was made from %s, loading into %s", id, saved.ImagePath, f.Path())
		}
		if err := f.Install(saved); err != nil {
			return nil, err
		}
		source = "database:" + id
	} else if err := f.LoadAnalysis(); err != nil {
		return nil, err
	}

	series, err := f.Series()
	if err != nil {
		return nil, err
	}
	return &kymLoadAnalysisResult{
		File:       f.FileName(),
		Source:     source,
		Params:     f.Params(),
		NumSamples: series.Len(),
		NumNaN:     series.CountNaN(),
	}, nil
}

type kymSummaryArgs struct {
	Folder     string `json:"folder"`
	Output     string `json:"output"`
	Reanalyze  bool   `json:"reanalyze"`
	Save       bool   `json:"save"`
	TimeLimits string `json:"time_limits"`
	cleanupArgs
}

type kymSummaryResult struct {
	Folder   string           `json:"folder"`
	NumFiles int              `json:"num_files"`
	Output   string           `json:"output,omitempty"`
	Reports  []*report.Report `json:"reports"`
}

func (s *Server) handleKymSummaryTable(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a kymSummaryArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Folder == "" {
		return nil, errors.New("folder is required")
	}

	opts := kymfile.FolderOptions{
		Params:    s.cfg.Params(),
		Report:    a.reportOptions(s.cfg),
		Reanalyze: a.Reanalyze,
		Save:      a.Save,
	}
	if a.TimeLimits != "" {
		limits, err := export.LoadTimeLimits(a.TimeLimits)
		if err != nil {
			return nil, err
		}
		opts.TimeLimits = limits
	}

	reports, err := kymfile.SummarizeFolder(ctx, s.files, a.Folder, opts)
	if err != nil {
		return nil, err
	}
	if a.Output != "" {
		if err := export.SaveSummary(a.Output, reports); err != nil {
			return nil, err
		}
	}
	return &kymSummaryResult{
		Folder:   a.Folder,
		NumFiles: len(reports),
		Output:   a.Output,
		Reports:  reports,
	}, nil
}

// === Rendering Handlers ===

type kymPreviewArgs struct {
	Path      string   `json:"path"`
	StartLine int      `json:"start_line"`
	StopLine  int      `json:"stop_line"`
	Gamma     *float64 `json:"gamma"`
	Colormap  *string  `json:"colormap"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
}

func (s *Server) handleKymPreview(args json.RawMessage) (interface{}, error) {
	var a kymPreviewArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	f, err := s.open(a.Path)
	if err != nil {
		return nil, err
	}

	opts := s.cfg.PreviewOptions()
	opts.StartLine, opts.StopLine = a.StartLine, a.StopLine
	opts.Width, opts.Height = a.Width, a.Height
	if a.Gamma != nil {
		opts.Gamma = *a.Gamma
	}
	if a.Colormap != nil {
		opts.Colormap = *a.Colormap
	}

	img, err := render.Preview(f.Kymograph(), opts)
	if err != nil {
		return nil, err
	}
	return render.EncodePNG(img)
}

type kymPlotArgs struct {
	Path   string `json:"path"`
	Format string `json:"format"`
	Output string `json:"output"`
	cleanupArgs
}

type kymPlotResult struct {
	Format      string `json:"format"`
	Output      string `json:"output,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
}

func (s *Server) handleKymPlotVelocity(args json.RawMessage) (interface{}, error) {
	var a kymPlotArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	f, err := s.open(a.Path)
	if err != nil {
		return nil, err
	}
	times, vel, err := a.cleanedSeries(f, a.cleanOptions(s.cfg))
	if err != nil {
		return nil, err
	}
	title := f.FileName()

	switch a.Format {
	case "", "png":
		if a.Output != "" {
			if err := render.SaveVelocityPlot(a.Output, times, vel, render.PlotOptions{Title: title}); err != nil {
				return nil, err
			}
			return &kymPlotResult{Format: "png", Output: a.Output}, nil
		}
		data, err := render.VelocityPNG(times, vel, render.PlotOptions{Title: title})
		if err != nil {
			return nil, err
		}
		return &kymPlotResult{
			Format:      "png",
			ImageBase64: base64.StdEncoding.EncodeToString(data),
			MimeType:    "image/png",
		}, nil

	case "html":
		if a.Output == "" {
			return nil, errors.New("output is required for html")
		}
		out, err := os.Create(filepath.Clean(a.Output))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", a.Output, err)
		}
		err = render.WriteVelocityChart(out, times, vel, render.ChartOptions{Title: title, Subtitle: filepath.Dir(f.Path())})
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, err
		}
		return &kymPlotResult{Format: "html", Output: a.Output}, nil

	default:
		return nil, fmt.Errorf("unknown format %q (want png or html)", a.Format)
	}
}

// === Database Handlers ===

type kymStoreListArgs struct {
	Folder string `json:"folder"`
}

type kymStoreListResult struct {
	SchemaVersion uint             `json:"schema_version"`
	Count         int              `json:"count"`
	Analyses      []*store.Summary `json:"analyses"`
}

func (s *Server) handleKymStoreList(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a kymStoreListArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, errNoStore
	}
	version, dirty, err := s.store.MigrateVersion()
	if err != nil {
		return nil, err
	}
	if dirty {
		monitoring.Logf("database schema version %d is dirty", version)
	}
	list, err := s.store.ListAnalyses(ctx, a.Folder)
	if err != nil {
		return nil, err
	}
	return &kymStoreListResult{SchemaVersion: version, Count: len(list), Analyses: list}, nil
}

type kymStoreGetArgs struct {
	AnalysisID string `json:"analysis_id"`
	Path       string `json:"path"`
}

type kymStoreGetResult struct {
	Analysis *store.Summary `json:"analysis"`
	Report   *report.Report `json:"report,omitempty"`
}

func (s *Server) handleKymStoreGet(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a kymStoreGetArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, errNoStore
	}

	var sum *store.Summary
	var err error
	switch {
	case a.AnalysisID != "":
		sum, err = s.store.Get(ctx, a.AnalysisID)
	case a.Path != "":
		sum, err = s.store.LatestForFile(ctx, a.Path)
	default:
		return nil, errors.New("analysis_id or path is required")
	}
	if err != nil {
		return nil, err
	}

	res := &kymStoreGetResult{Analysis: sum}
	if sum.HasReport {
		if res.Report, err = s.store.LoadReport(ctx, sum.ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

type kymStoreDeleteArgs struct {
	AnalysisID string `json:"analysis_id"`
}

func (s *Server) handleKymStoreDelete(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a kymStoreDeleteArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, errNoStore
	}
	if a.AnalysisID == "" {
		return nil, errors.New("analysis_id is required")
	}
	if err := s.store.Delete(ctx, a.AnalysisID); err != nil {
		return nil, err
	}
	return map[string]interface{}{"deleted": a.AnalysisID}, nil
}
