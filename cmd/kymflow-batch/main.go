// Command kymflow-batch analyzes every kymograph in a folder and writes a
// summary CSV with one row per file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ironsheep/kymflow-mcp/internal/config"
	"github.com/ironsheep/kymflow-mcp/internal/export"
	"github.com/ironsheep/kymflow-mcp/internal/kymfile"
	"github.com/ironsheep/kymflow-mcp/internal/monitoring"
	"github.com/ironsheep/kymflow-mcp/internal/postprocess"
	"github.com/ironsheep/kymflow-mcp/internal/render"
	"github.com/ironsheep/kymflow-mcp/internal/store"
)

type options struct {
	folder     string
	configPath string
	output     string
	timeLimits string
	dbPath     string
	reanalyze  bool
	save       bool
	plots      bool
	verbose    bool
}

func main() {
	var o options
	flag.StringVar(&o.folder, "folder", "", "Folder of kymograph .tif files")
	flag.StringVar(&o.configPath, "config", "", "JSON config with analysis defaults (falls back to $KYMFLOW_CONFIG)")
	flag.StringVar(&o.output, "output", "", "Summary CSV path. Defaults to <folder>/<folder name>-summary.csv")
	flag.StringVar(&o.timeLimits, "time-limits", "", "Optional CSV of per-file time limits (uniqueFile,startSec,stopSec)")
	flag.StringVar(&o.dbPath, "db", "", "Optional SQLite database to record each analysis in. Overrides database_path from config.")
	flag.BoolVar(&o.reanalyze, "reanalyze", false, "Ignore saved analyses and recompute every file")
	flag.BoolVar(&o.save, "save", true, "Write each new analysis to its -analysis folder")
	flag.BoolVar(&o.plots, "plots", false, "Write a velocity plot PNG next to each saved analysis")
	flag.BoolVar(&o.verbose, "v", false, "Verbose logging")
	flag.Parse()

	if o.folder == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	monitoring.EnableDebug(o.verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context, o options) error {
	var cfg *config.Config
	var err error
	if o.configPath != "" {
		cfg, err = config.Load(o.configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return err
	}

	folder := filepath.Clean(o.folder)
	fo := kymfile.FolderOptions{
		Params:    cfg.Params(),
		Report:    cfg.ReportOptions(),
		Reanalyze: o.reanalyze,
		Save:      o.save,
	}
	if o.timeLimits != "" {
		fo.TimeLimits, err = export.LoadTimeLimits(o.timeLimits)
		if err != nil {
			return err
		}
		log.Printf("Loaded %d time limits from %s\n", len(fo.TimeLimits), o.timeLimits)
	}

	cache := kymfile.NewCache(kymfile.OpenOptions{LoadSaved: !o.reanalyze})
	reports, err := kymfile.SummarizeFolder(ctx, cache, folder, fo)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		return fmt.Errorf("no kymographs analyzed in %s", folder)
	}

	output := o.output
	if output == "" {
		output = filepath.Join(folder, filepath.Base(folder)+"-summary.csv")
	}
	if err := export.SaveSummary(output, reports); err != nil {
		return err
	}
	log.Printf("Wrote %d rows to %s\n", len(reports), output)

	dbPath := o.dbPath
	if dbPath == "" {
		dbPath = cfg.GetDatabasePath()
	}
	var st *store.Store
	if dbPath != "" {
		st, err = store.Open(dbPath)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	if st == nil && !o.plots {
		return nil
	}

	clean := cfg.CleanOptions()
	for _, path := range cache.Paths() {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, ok := cache.Get(path)
		if !ok || !f.HasAnalysis() {
			continue
		}

		if st != nil {
			a, err := f.Export()
			if err != nil {
				return err
			}
			id, err := st.SaveAnalysis(ctx, a)
			if err != nil {
				return err
			}
			r, err := f.Report(cfg.ReportOptions())
			if err != nil {
				return err
			}
			if err := st.SaveReport(ctx, id, r); err != nil {
				return err
			}
			monitoring.Debugf("%s stored as %s", f.FileName(), id)
		}

		if o.plots {
			if err := savePlot(f, clean); err != nil {
				log.Printf("%s: %v\n", f.FileName(), err)
			}
		}
	}
	return nil
}

func savePlot(f *kymfile.File, clean postprocess.Options) error {
	times, err := f.Time()
	if err != nil {
		return err
	}
	velocity, err := f.Velocity(clean)
	if err != nil {
		return err
	}

	dir := export.AnalysisDir(f.Path())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	name := strings.TrimSuffix(f.FileName(), filepath.Ext(f.FileName())) + "-velocity.png"
	return render.SaveVelocityPlot(filepath.Join(dir, name), times, velocity, render.PlotOptions{
		Title: f.FileName(),
	})
}
