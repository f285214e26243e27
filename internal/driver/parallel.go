package driver

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gotolower/internal/diag"
	"gotolower/internal/observ"
	"gotolower/internal/source"
	"gotolower/internal/trace"
	"gotolower/internal/unit"
)

// UnitSuffix is the extension of unit description files.
const UnitSuffix = ".unit.toml"

// listUnitFiles возвращает отсортированный список всех *.unit.toml в директории
func listUnitFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, UnitSuffix) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Сортируем для детерминированного порядка
	sort.Strings(files)
	return files, nil
}

// ExpandInputs replaces directories by the unit files below them. Plain
// file arguments are kept whatever their extension.
func ExpandInputs(args []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, arg := range args {
		st, err := os.Stat(arg)
		if err != nil || !st.IsDir() {
			if !seen[arg] {
				seen[arg] = true
				out = append(out, arg)
			}
			continue
		}
		files, err := listUnitFiles(arg)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no %s files under %s", UnitSuffix, arg)
		}
		for _, f := range files {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out, nil
}

// Run lowers every unit file in paths, at most Options.Jobs at a time.
// Per-unit failures land in the results; the error is reserved for
// cancellation.
func Run(ctx context.Context, paths []string, opts Options) (*Batch, error) {
	opts = opts.withDefaults()
	pr := progress{ctx: ctx, ch: opts.Events}
	if opts.Events != nil {
		defer close(opts.Events)
	}
	ctx, span := trace.StartSpan(ctx, trace.ScopeDriver, "run")
	span.WithExtra("units", fmt.Sprint(len(paths)))
	defer span.End("")

	// Файлы читаем заранее: FileSet не потокобезопасен на запись
	fileSet := source.NewFileSet()
	if opts.BaseDir != "" {
		fileSet.SetBaseDir(opts.BaseDir)
	}
	batch := &Batch{Files: fileSet, Results: make([]Result, len(paths))}
	loaded := make([]bool, len(paths))
	for i, path := range paths {
		r := &batch.Results[i]
		*r = Result{Path: path, Name: unit.DefaultName(path), File: source.NoFile, Bag: diag.NewBag(opts.MaxDiagnostics)}
		id, err := fileSet.Load(path)
		if err != nil {
			diag.ReportError(&diag.BagReporter{Bag: r.Bag}, diag.IOLoadFileError, source.Detached(),
				fmt.Sprintf("failed to load %s: %v", path, err)).Emit()
			r.Err = err
			pr.send(Event{Path: path, Stage: StageLoad, Status: StatusError})
			continue
		}
		r.File, loaded[i] = id, true
		pr.send(Event{Path: path, Stage: StageQueued, Status: StatusQueued})
	}

	// Настраиваем параллелизм
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	// индексы уникальны для каждой горутины, мьютекс не нужен
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(paths))))
	for i := range paths {
		if !loaded[i] {
			continue
		}
		i := i
		g.Go(func() error {
			// Проверка отмены
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			uctx, uspan := trace.StartSpan(gctx, trace.ScopeUnit, "unit")
			uspan.WithExtra("path", paths[i])
			r := &batch.Results[i]
			lowerOne(uctx, fileSet, r, opts, pr)
			status := "ok"
			if r.Err != nil {
				status = r.Err.Error()
			}
			uspan.End(status)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		opts.Logger.Info("run cancelled", zap.Error(err))
		return batch, fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	if err := ctx.Err(); err != nil {
		return batch, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	reports := make([]observ.Report, 0, len(batch.Results))
	for i := range batch.Results {
		reports = append(reports, batch.Results[i].Timing)
	}
	batch.Timing = observ.Aggregate(reports...)

	if opts.Merge {
		batch.Merged = mergeTables(ctx, batch.Results, opts.Logger)
		if batch.Merged != nil && opts.Emit != EmitNone {
			if _, err := emitTable(opts.OutDir, "merged", batch.Merged, opts.Producer, opts.Emit); err != nil {
				opts.Logger.Error("writing merged table failed", zap.Error(err))
			}
		}
	}
	opts.Logger.Debug("run finished",
		zap.Int("units", len(paths)),
		zap.Int("failed", batch.Failed()),
		zap.Float64("total_ms", batch.Timing.TotalMS))
	return batch, nil
}
