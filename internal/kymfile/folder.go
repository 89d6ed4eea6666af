package kymfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ironsheep/kymflow-mcp/internal/export"
	"github.com/ironsheep/kymflow-mcp/internal/flow"
	"github.com/ironsheep/kymflow-mcp/internal/monitoring"
	"github.com/ironsheep/kymflow-mcp/internal/report"
)

// FolderOptions controls a whole-folder run.
type FolderOptions struct {
	Params flow.Params
	Report report.Options

	// Reanalyze ignores saved analyses and recomputes every file.
	Reanalyze bool

	// Save writes each analysis CSV after computing it.
	Save bool

	// TimeLimits restricts individual reports, keyed by uniqueFile.
	TimeLimits map[string]export.TimeLimit
}

// ListImages returns the .tif files in folder, sorted by name.
func ListImages(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".tif", ".tiff":
			paths = append(paths, filepath.Join(folder, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// SummarizeFolder analyzes every kymograph in folder and returns one
// report per file in name order. Files are opened through cache so the
// results stay available to later calls.
//
// A saved analysis is reused unless opts.Reanalyze is set. Files that fail
// to open or analyze are logged and skipped.
func SummarizeFolder(ctx context.Context, cache *Cache, folder string, opts FolderOptions) ([]*report.Report, error) {
	paths, err := ListImages(folder)
	if err != nil {
		return nil, err
	}

	var reports []*report.Report
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f, err := cache.Load(path)
		if err != nil {
			monitoring.Logf("skipping %s: %v", filepath.Base(path), err)
			continue
		}

		if !opts.Reanalyze && !f.HasAnalysis() {
			if err := f.LoadAnalysis(); err != nil {
				monitoring.Debugf("%s: no saved analysis: %v", f.FileName(), err)
			}
		}
		if opts.Reanalyze || !f.HasAnalysis() {
			if opts.Reanalyze {
				f.Invalidate()
			}
			if _, err := f.Analyze(ctx, opts.Params); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				monitoring.Logf("skipping %s: %v", f.FileName(), err)
				continue
			}
			if opts.Save {
				if _, err := f.SaveAnalysis(); err != nil {
					monitoring.Logf("%s: %v", f.FileName(), err)
				}
			}
		}

		ro := opts.Report
		unique := filepath.Base(folder) + "/" + f.FileName()
		if limit, ok := opts.TimeLimits[unique]; ok {
			ro = limit.Apply(ro)
		}
		r, err := f.Report(ro)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}
