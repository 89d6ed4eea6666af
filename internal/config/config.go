// Package config loads analysis defaults from a JSON file.
//
// Every field is optional. Unset fields fall back to the defaults returned
// by the Get* methods, so an empty file or no file at all is valid.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ironsheep/kymflow-mcp/internal/flow"
	"github.com/ironsheep/kymflow-mcp/internal/postprocess"
	"github.com/ironsheep/kymflow-mcp/internal/render"
	"github.com/ironsheep/kymflow-mcp/internal/report"
)

// EnvPath names the environment variable holding the config file path.
const EnvPath = "KYMFLOW_CONFIG"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config holds analysis, cleanup and output defaults.
type Config struct {
	// Analysis
	WindowSize *int `json:"window_size,omitempty"`
	StartPixel *int `json:"start_pixel,omitempty"`
	StopPixel  *int `json:"stop_pixel,omitempty"`
	Workers    *int `json:"workers,omitempty"`

	// Cleanup
	RemoveZero     *bool   `json:"remove_zero,omitempty"`
	RemoveOutliers *bool   `json:"remove_outliers,omitempty"`
	OutlierRule    *string `json:"outlier_rule,omitempty"` // "sigma" or "mad"
	MedianFilter   *int    `json:"median_filter,omitempty"`

	// Output
	DatabasePath *string  `json:"database_path,omitempty"`
	Colormap     *string  `json:"colormap,omitempty"`
	PreviewGamma *float64 `json:"preview_gamma,omitempty"`
}

func ptrInt(v int) *int             { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrFloat64(v float64) *float64 { return &v }

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. The file must have a .json
// extension and be at most 1MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv loads the file named by KYMFLOW_CONFIG, or returns an empty
// Config when the variable is unset.
func LoadFromEnv() (*Config, error) {
	path := os.Getenv(EnvPath)
	if path == "" {
		return Empty(), nil
	}
	return Load(path)
}

// Validate checks the values that are set.
func (c *Config) Validate() error {
	if c.WindowSize != nil && (*c.WindowSize <= 0 || *c.WindowSize%4 != 0) {
		return fmt.Errorf("window_size must be a positive multiple of 4, got %d", *c.WindowSize)
	}
	if c.StartPixel != nil && *c.StartPixel < 0 {
		return fmt.Errorf("start_pixel must be non-negative, got %d", *c.StartPixel)
	}
	if c.StopPixel != nil && *c.StopPixel < 0 {
		return fmt.Errorf("stop_pixel must be non-negative, got %d", *c.StopPixel)
	}
	if c.StartPixel != nil && c.StopPixel != nil && *c.StopPixel != 0 && *c.StartPixel >= *c.StopPixel {
		return fmt.Errorf("start_pixel %d must be below stop_pixel %d", *c.StartPixel, *c.StopPixel)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.MedianFilter != nil && *c.MedianFilter != 0 && (*c.MedianFilter < 0 || *c.MedianFilter%2 == 0) {
		return fmt.Errorf("median_filter must be 0 or a positive odd number, got %d", *c.MedianFilter)
	}
	if c.OutlierRule != nil {
		switch postprocess.OutlierRule(*c.OutlierRule) {
		case postprocess.OutlierSigma, postprocess.OutlierMAD:
		default:
			return fmt.Errorf("outlier_rule must be %q or %q, got %q", postprocess.OutlierSigma, postprocess.OutlierMAD, *c.OutlierRule)
		}
	}
	if c.Colormap != nil {
		if _, err := render.NewColormap(*c.Colormap); err != nil {
			return err
		}
	}
	if c.PreviewGamma != nil && *c.PreviewGamma <= 0 {
		return fmt.Errorf("preview_gamma must be positive, got %g", *c.PreviewGamma)
	}
	return nil
}

// GetWindowSize returns window_size or the default 16.
func (c *Config) GetWindowSize() int {
	if c.WindowSize == nil {
		return flow.DefaultWindowSize
	}
	return *c.WindowSize
}

// GetPixels returns the pixel range; unset means the full line.
func (c *Config) GetPixels() flow.PixelRange {
	var p flow.PixelRange
	if c.StartPixel != nil {
		p.Start = *c.StartPixel
	}
	if c.StopPixel != nil {
		p.Stop = *c.StopPixel
	}
	return p
}

// GetWorkers returns workers; 0 means one fewer than the CPU count.
func (c *Config) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetRemoveZero returns remove_zero or the default false.
func (c *Config) GetRemoveZero() bool {
	if c.RemoveZero == nil {
		return false
	}
	return *c.RemoveZero
}

// GetRemoveOutliers returns remove_outliers or the default true.
func (c *Config) GetRemoveOutliers() bool {
	if c.RemoveOutliers == nil {
		return true
	}
	return *c.RemoveOutliers
}

// GetOutlierRule returns outlier_rule or the default "sigma".
func (c *Config) GetOutlierRule() postprocess.OutlierRule {
	if c.OutlierRule == nil || *c.OutlierRule == "" {
		return postprocess.OutlierSigma
	}
	return postprocess.OutlierRule(*c.OutlierRule)
}

// GetMedianFilter returns median_filter or the default 0 (off).
func (c *Config) GetMedianFilter() int {
	if c.MedianFilter == nil {
		return 0
	}
	return *c.MedianFilter
}

// GetDatabasePath returns database_path; empty disables the store.
func (c *Config) GetDatabasePath() string {
	if c.DatabasePath == nil {
		return ""
	}
	return *c.DatabasePath
}

// GetColormap returns colormap or the default "gray".
func (c *Config) GetColormap() string {
	if c.Colormap == nil || *c.Colormap == "" {
		return "gray"
	}
	return *c.Colormap
}

// GetPreviewGamma returns preview_gamma or the default 1.
func (c *Config) GetPreviewGamma() float64 {
	if c.PreviewGamma == nil {
		return 1
	}
	return *c.PreviewGamma
}

// Params returns the analysis parameters.
func (c *Config) Params() flow.Params {
	return flow.Params{
		WindowSize: c.GetWindowSize(),
		Pixels:     c.GetPixels(),
		Workers:    c.GetWorkers(),
	}
}

// CleanOptions returns the velocity cleanup with magnitudes taken.
func (c *Config) CleanOptions() postprocess.Options {
	return postprocess.Options{
		RemoveZero:     c.GetRemoveZero(),
		RemoveOutliers: c.GetRemoveOutliers(),
		OutlierRule:    c.GetOutlierRule(),
		MedianFilter:   c.GetMedianFilter(),
		AbsValue:       true,
	}
}

// ReportOptions returns the cleanup used for reports.
func (c *Config) ReportOptions() report.Options {
	return report.Options{
		RemoveOutliers: c.GetRemoveOutliers(),
		OutlierRule:    c.GetOutlierRule(),
		MedianFilter:   c.GetMedianFilter(),
	}
}

// PreviewOptions returns the preview defaults.
func (c *Config) PreviewOptions() render.PreviewOptions {
	return render.PreviewOptions{
		Colormap: c.GetColormap(),
		Gamma:    c.GetPreviewGamma(),
	}
}
