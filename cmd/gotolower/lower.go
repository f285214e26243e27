package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gotolower/internal/diag"
	"gotolower/internal/driver"
	"gotolower/internal/layout"
	"gotolower/internal/version"
)

var lowerCmd = &cobra.Command{
	Use:   "lower [flags] <unit.toml|directory>...",
	Short: "Lower unit descriptions into goto-C symbol tables",
	Long: `Lower every *.unit.toml given (directories are searched recursively),
report diagnostics, and optionally write each unit's symbol table as text
or as a msgpack archive.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLower,
}

func init() {
	lowerCmd.Flags().String("target", "", "target triple for units that name none")
	lowerCmd.Flags().Int("jobs", 0, "max parallel units (0=auto)")
	lowerCmd.Flags().String("emit", "", "write symbol tables (none|text|archive|all)")
	lowerCmd.Flags().String("out-dir", "", "directory for emitted tables")
	lowerCmd.Flags().String("format", "pretty", "diagnostic format (pretty|short|json)")
	lowerCmd.Flags().Bool("with-notes", true, "include diagnostic notes")
	lowerCmd.Flags().Bool("fullpath", false, "emit absolute file paths in diagnostics")
	lowerCmd.Flags().String("min-severity", "info", "hide diagnostics below this severity (info|warning|error)")
	lowerCmd.Flags().Bool("merge", false, "also build one table from every successful unit")
	lowerCmd.Flags().Bool("cache", false, "reuse tables from the disk cache")
	lowerCmd.Flags().Bool("drop-cache", false, "empty the disk cache before lowering")
	lowerCmd.Flags().Bool("watch", false, "re-lower units whenever their files change")
	lowerCmd.Flags().String("ui", "auto", "progress view (auto|on|off)")
}

// lowerSettings merges flags over gotolower.toml.
func lowerSettings(cmd *cobra.Command) (driver.Options, error) {
	flags := cmd.Flags()
	var cfg lowerConfig
	var triple string
	if app.manifest != nil {
		cfg = app.manifest.Config.Lower
		cfg.OutDir = app.manifest.resolve(cfg.OutDir)
		triple = app.manifest.Config.Target.Triple
	}
	if flags.Changed("target") {
		triple, _ = flags.GetString("target")
	}
	if triple != "" {
		if _, err := layout.TargetByTriple(triple); err != nil {
			return driver.Options{}, err
		}
	}
	if flags.Changed("jobs") {
		cfg.Jobs, _ = flags.GetInt("jobs")
	}
	if flags.Changed("emit") {
		cfg.Emit, _ = flags.GetString("emit")
	}
	if flags.Changed("out-dir") {
		cfg.OutDir, _ = flags.GetString("out-dir")
	}
	if flags.Changed("merge") {
		cfg.Merge, _ = flags.GetBool("merge")
	}
	if flags.Changed("cache") {
		cfg.Cache, _ = flags.GetBool("cache")
	}
	emit, err := driver.ParseEmit(cfg.Emit)
	if err != nil {
		return driver.Options{}, err
	}

	opts := driver.Options{
		Target:         triple,
		Jobs:           cfg.Jobs,
		MaxDiagnostics: app.maxDiagnostics,
		Emit:           emit,
		OutDir:         cfg.OutDir,
		Merge:          cfg.Merge,
		Timings:        app.timings,
		Producer:       version.Producer(),
		Logger:         app.logger,
	}
	if wd, err := os.Getwd(); err == nil {
		opts.BaseDir = wd
	}
	if cfg.Cache {
		cache, err := driver.OpenDiskCache("gotolower")
		if err != nil {
			return driver.Options{}, fmt.Errorf("failed to open disk cache: %w", err)
		}
		if drop, _ := flags.GetBool("drop-cache"); drop {
			if err := cache.DropAll(); err != nil {
				return driver.Options{}, fmt.Errorf("failed to drop disk cache: %w", err)
			}
		}
		opts.Cache = cache
		app.logger.Debug("disk cache", zap.String("dir", cache.Dir()))
	}
	return opts, nil
}

func runLower(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	// Ensure trace is dumped on panic
	defer dumpTraceOnPanic(ctx)

	formatStr, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format, err := readOutputFormat(formatStr)
	if err != nil {
		return err
	}
	withNotes, _ := cmd.Flags().GetBool("with-notes")
	fullPath, _ := cmd.Flags().GetBool("fullpath")
	minSev, _ := cmd.Flags().GetString("min-severity")
	sev, err := diag.ParseSeverity(minSev)
	if err != nil {
		return err
	}
	report := reportOpts{format: format, withNotes: withNotes, fullPath: fullPath, minSeverity: sev}

	uiStr, _ := cmd.Flags().GetString("ui")
	mode, err := readUIMode(uiStr)
	if err != nil {
		return err
	}
	watch, _ := cmd.Flags().GetBool("watch")

	opts, err := lowerSettings(cmd)
	if err != nil {
		return err
	}
	paths, err := driver.ExpandInputs(args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if watch {
		printInfo("watching %d unit(s), interrupt to stop\n", len(paths))
		return driver.Watch(ctx, paths, opts, driver.WatchOptions{}, func(batch *driver.Batch, err error) {
			if err != nil {
				app.logger.Warn("lowering interrupted", zap.Error(err))
			}
			if batch == nil {
				return
			}
			if perr := printDiagnostics(out, batch.Diagnostics(), batch.Files, report); perr != nil {
				app.logger.Error("printing diagnostics failed", zap.Error(perr))
			}
			printSummary(cmd.ErrOrStderr(), batch)
		})
	}

	var batch *driver.Batch
	if shouldUseTUI(mode, len(paths)) {
		batch, err = runWithUI(ctx, "lowering", paths, opts)
	} else {
		batch, err = driver.Run(ctx, paths, opts)
	}
	if err != nil {
		return err
	}
	if err := printDiagnostics(out, batch.Diagnostics(), batch.Files, report); err != nil {
		return fmt.Errorf("failed to format diagnostics: %w", err)
	}
	printSummary(cmd.ErrOrStderr(), batch)
	if opts.Emit != driver.EmitNone {
		for i := range batch.Results {
			for _, p := range batch.Results[i].Outputs {
				if rel, err := filepath.Rel(opts.BaseDir, p); err == nil {
					p = rel
				}
				printInfo("wrote %s\n", p)
			}
		}
	}
	if batch.Failed() > 0 {
		app.exitCode = 1
	}
	return nil
}
