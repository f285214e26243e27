// Package driver runs unit files through loading, layout and lowering,
// several units at a time, and collects one symbol table per unit.
package driver

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"gotolower/internal/diag"
	"gotolower/internal/gotoc"
	"gotolower/internal/observ"
	"gotolower/internal/source"
	"gotolower/internal/trace"
	"gotolower/internal/unit"
)

// DefaultMaxDiagnostics bounds each unit's bag when Options leave it zero.
const DefaultMaxDiagnostics = 100

// Options control a Run.
type Options struct {
	// Target is the triple for units that name none.
	Target         string
	Jobs           int
	MaxDiagnostics int
	Emit           EmitKind
	OutDir         string
	// Cache, when set, stores and replays successfully lowered units.
	Cache *DiskCache
	// Merge builds Batch.Merged from every successful unit.
	Merge bool
	// Timings appends an OBS6001 diagnostic to every unit.
	Timings bool
	// Producer is written into archives and keys the cache.
	Producer string
	BaseDir  string
	Logger   *zap.Logger
	// Events receives progress; Run closes it before returning.
	Events chan<- Event
}

// Result is the outcome of one unit file.
type Result struct {
	Path string
	Name string
	File source.FileID
	// Unit is nil when the file could not be read or came from the cache.
	Unit    *unit.Unit
	Symtab  *gotoc.SymbolTable
	Bag     *diag.Bag
	Err     error
	Cached  bool
	Outputs []string
	Timing  observ.Report
}

// OK reports whether the unit produced a table.
func (r *Result) OK() bool { return r.Err == nil && r.Symtab != nil }

// Batch is the outcome of a Run, results in input order.
type Batch struct {
	Files   *source.FileSet
	Results []Result
	// Merged is set with Options.Merge when at least one unit succeeded.
	Merged *gotoc.SymbolTable
	Timing observ.Report
}

// Failed counts units that produced no table.
func (b *Batch) Failed() int {
	n := 0
	for i := range b.Results {
		if !b.Results[i].OK() {
			n++
		}
	}
	return n
}

// Diagnostics merges every unit's bag in input order, sorted.
func (b *Batch) Diagnostics() *diag.Bag {
	all := diag.NewBag(0)
	for i := range b.Results {
		all.Merge(b.Results[i].Bag)
	}
	all.Sort()
	return all
}

// ErrCancelled reports a Run stopped by its context.
var ErrCancelled = errors.New("lowering cancelled")

func (o Options) withDefaults() Options {
	if o.MaxDiagnostics <= 0 {
		o.MaxDiagnostics = DefaultMaxDiagnostics
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.OutDir == "" {
		o.OutDir = "."
	}
	if o.Producer == "" {
		o.Producer = "gotolower"
	}
	return o
}

// lowerOne takes a read file through every stage.
func lowerOne(ctx context.Context, fs *source.FileSet, r *Result, opts Options, pr progress) {
	timer := observ.NewTimer()
	log := opts.Logger.With(zap.String("unit", r.Path))
	defer func() {
		r.Timing = timer.Report()
		if opts.Timings {
			appendTimingDiagnostic(r.Bag, timingPayload{Path: r.Path, Cached: r.Cached, TotalMS: r.Timing.TotalMS, Stages: r.Timing.Stages})
		}
	}()
	fail := func(stage Stage, err error) {
		r.Err = err
		pr.send(Event{Path: r.Path, Stage: stage, Status: StatusError})
	}

	file := fs.Get(r.File)
	key := unitKey(file.Hash, opts.Target, opts.Producer)
	if opts.Cache != nil {
		var payload DiskPayload
		hit, err := opts.Cache.Get(key, &payload)
		if err != nil {
			log.Warn("cache read failed", zap.Error(err))
		}
		if hit {
			idx := timer.Begin("cache")
			st, err := payload.restore(r.File, r.Bag)
			if err == nil {
				timer.End(idx, st.Len(), "")
				r.Symtab, r.Cached = st, true
				if payload.Name != "" {
					r.Name = payload.Name
				}
				log.Debug("cache hit")
				r.Outputs, err = emitTable(opts.OutDir, r.Name, st, opts.Producer, opts.Emit)
				if err != nil {
					reportWriteError(r, err)
					fail(StageEmit, err)
					return
				}
				pr.send(Event{Path: r.Path, Stage: StageEmit, Status: StatusCached, Items: st.Len()})
				return
			}
			log.Warn("cache entry unreadable", zap.Error(err))
		}
	}

	rep := diag.NewDedupReporter(&diag.BagReporter{Bag: r.Bag})

	pr.send(Event{Path: r.Path, Stage: StageLoad, Status: StatusWorking})
	var u *unit.Unit
	err := timer.Measure("load", func() (int, error) {
		var err error
		u, err = unit.Load(fs, r.File, unit.Options{Target: opts.Target, Reporter: rep})
		if u == nil {
			return 0, err
		}
		return len(u.Decls), err
	})
	if err != nil {
		fail(StageLoad, err)
		return
	}
	r.Unit, r.Name = u, u.Name
	if ctx.Err() != nil {
		fail(StageLoad, ErrCancelled)
		return
	}

	ul := newUnitLowering(u, rep, log)
	pr.send(Event{Path: r.Path, Stage: StageLayout, Status: StatusWorking, Items: len(u.Lower)})
	_ = timer.Measure("layout", func() (int, error) { return ul.layouts(), nil })

	pr.send(Event{Path: r.Path, Stage: StageLower, Status: StatusWorking, Items: len(u.Lower) + len(u.Calls)})
	err = timer.Measure("lower", func() (int, error) {
		n := ul.lowerTypes(ctx)
		n += ul.lowerCalls(ctx)
		return n, ul.lc.Finish()
	})
	if err != nil {
		fail(StageLower, err)
		return
	}
	r.Symtab = ul.lc.Symtab()
	if n := rep.Suppressed(); n > 0 {
		log.Debug("duplicate diagnostics suppressed", zap.Int("count", n))
	}

	pr.send(Event{Path: r.Path, Stage: StageEmit, Status: StatusWorking})
	err = timer.Measure("emit", func() (int, error) {
		var err error
		r.Outputs, err = emitTable(opts.OutDir, r.Name, r.Symtab, opts.Producer, opts.Emit)
		return len(r.Outputs), err
	})
	if err != nil {
		reportWriteError(r, err)
		fail(StageEmit, err)
		return
	}

	if opts.Cache != nil {
		payload, err := newPayload(r.Name, r.Path, r.Symtab, opts.Producer, r.Bag)
		if err == nil {
			err = opts.Cache.Put(key, payload)
		}
		if err != nil {
			log.Warn("cache write failed", zap.Error(err))
		}
	}
	pr.send(Event{Path: r.Path, Stage: StageEmit, Status: StatusDone, Items: r.Symtab.Len()})
}

func reportWriteError(r *Result, err error) {
	diag.ReportError(&diag.BagReporter{Bag: r.Bag}, diag.IOWriteFileError, source.Detached(),
		fmt.Sprintf("cannot write output of %s: %v", r.Path, err)).Emit()
}

// mergeTables folds successful tables into one. Units lowered for another
// machine than the first are skipped with a warning.
func mergeTables(ctx context.Context, results []Result, log *zap.Logger) *gotoc.SymbolTable {
	var merged *gotoc.SymbolTable
	for i := range results {
		r := &results[i]
		if !r.OK() {
			continue
		}
		if merged == nil {
			merged = gotoc.NewSymbolTable(r.Symtab.MachineModel())
		}
		if r.Symtab.MachineModel() != merged.MachineModel() {
			log.Warn("skipping unit for another machine model in merge",
				zap.String("unit", r.Path), zap.String("arch", r.Symtab.MachineModel().Architecture))
			trace.Point(trace.FromContext(ctx), trace.ScopeDriver, "merge-skip", r.Path, trace.ParentID(ctx))
			continue
		}
		for _, name := range merged.Merge(r.Symtab) {
			log.Warn("conflicting declaration in merge", zap.String("unit", r.Path), zap.String("symbol", name))
		}
	}
	return merged
}
