package driver

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"gotolower/internal/trace"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 150 * time.Millisecond

// WatchOptions configure Watch.
type WatchOptions struct {
	Debounce time.Duration
	// Heartbeat, when positive, emits trace heartbeats while waiting.
	Heartbeat time.Duration
}

// Watch lowers paths once, then again for every unit whose file changes,
// until ctx ends. onBatch sees every run; paths of a rerun are the changed
// units only. Options.Events is ignored.
func Watch(ctx context.Context, paths []string, opts Options, wopts WatchOptions, onBatch func(*Batch, error)) error {
	opts = opts.withDefaults()
	opts.Events = nil
	if wopts.Debounce <= 0 {
		wopts.Debounce = DefaultDebounce
	}
	if wopts.Heartbeat > 0 {
		hb := trace.StartHeartbeat(trace.FromContext(ctx), wopts.Heartbeat)
		defer hb.Stop()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	// редакторы заменяют файл целиком, поэтому следим за каталогами
	watched := make(map[string]string, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		watched[abs] = p
		dir := filepath.Dir(abs)
		if !dirs[dir] {
			if err := w.Add(dir); err != nil {
				return err
			}
			dirs[dir] = true
		}
	}

	onBatch(Run(ctx, paths, opts))

	pending := make(map[string]bool)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			orig, ok := watched[abs]
			if !ok {
				continue
			}
			pending[orig] = true
			timer.Reset(wopts.Debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			opts.Logger.Warn("watch error", zap.Error(err))
		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			clear(pending)
			sort.Strings(changed)
			opts.Logger.Info("units changed", zap.Strings("paths", changed))
			onBatch(Run(ctx, changed, opts))
		}
	}
}
