package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gotolower/internal/trace"
)

// setupTracing inspects trace-related flags and gotolower.toml and
// attaches a tracer to the command context. Flags win over the file.
func setupTracing(cmd *cobra.Command, manifest *projectManifest) (func(), error) {
	root := cmd.Root()

	traceOutput, err := root.PersistentFlags().GetString("trace")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace flag: %w", err)
	}
	levelStr, err := root.PersistentFlags().GetString("trace-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-level flag: %w", err)
	}
	modeStr, err := root.PersistentFlags().GetString("trace-mode")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-mode flag: %w", err)
	}
	ringSize, err := root.PersistentFlags().GetInt("trace-ring-size")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}
	heartbeatInterval, err := root.PersistentFlags().GetDuration("trace-heartbeat")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}

	if manifest != nil {
		if !root.PersistentFlags().Changed("trace-level") && manifest.Config.Trace.Level != "" {
			levelStr = manifest.Config.Trace.Level
		}
		if !root.PersistentFlags().Changed("trace") && manifest.Config.Trace.Output != "" {
			traceOutput = manifest.resolve(manifest.Config.Trace.Output)
		}
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace level: %w", err)
	}
	// вывод без уровня включает трассировку фаз
	if level == trace.LevelOff && traceOutput != "" {
		level = trace.LevelPhase
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(ctx, trace.Nop))
		return func() {}, nil
	}

	var mode trace.StorageMode
	if modeStr != "" {
		if mode, err = trace.ParseMode(modeStr); err != nil {
			return nil, fmt.Errorf("invalid trace mode: %w", err)
		}
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		OutputPath: traceOutput,
		RingSize:   ringSize,
		Heartbeat:  heartbeatInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	ctx = trace.WithTracer(ctx, tracer)
	cmd.SetContext(ctx)
	root.SetContext(ctx)

	var heartbeat *trace.Heartbeat
	if heartbeatInterval > 0 {
		heartbeat = trace.StartHeartbeat(tracer, heartbeatInterval)
	}

	cleanup := func() {
		// Stop heartbeat first
		if heartbeat != nil {
			heartbeat.Stop()
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(os.Stderr, "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "trace: close error: %v\n", err)
		}
	}
	return cleanup, nil
}

// dumpTraceOnPanic writes the trace ring to stderr and re-panics.
func dumpTraceOnPanic(ctx context.Context) {
	r := recover()
	if r == nil {
		return
	}
	if ring := trace.RingOf(trace.FromContext(ctx)); ring != nil {
		fmt.Fprintln(os.Stderr, "== trace (most recent events) ==")
		_ = ring.Dump(os.Stderr, trace.FormatText)
	}
	panic(r)
}
