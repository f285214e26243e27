package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gotolower/internal/prof"
)

// appState is what the persistent flags and gotolower.toml resolve to,
// shared by every subcommand.
type appState struct {
	manifest       *projectManifest
	logger         *zap.Logger
	color          bool
	quiet          bool
	timings        bool
	maxDiagnostics int
	cleanupTrace   func()
	profile        *prof.Session
	exitCode       int
}

var app = appState{logger: zap.NewNop()}

func setupApp(cmd *cobra.Command, args []string) error {
	flags := cmd.Root().PersistentFlags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	manifest, err := loadManifest(configPath, ".")
	if err != nil {
		return err
	}
	app.manifest = manifest

	colorFlag, err := flags.GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch colorFlag {
	case "on":
		app.color = true
	case "off":
		app.color = false
	case "auto":
		app.color = isTerminal(os.Stdout) && os.Getenv("NO_COLOR") == ""
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", colorFlag)
	}
	color.NoColor = !app.color

	if app.quiet, err = flags.GetBool("quiet"); err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	if app.timings, err = flags.GetBool("timings"); err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	if app.maxDiagnostics, err = flags.GetInt("max-diagnostics"); err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	if !flags.Changed("max-diagnostics") && manifest != nil && manifest.Config.Lower.MaxDiagnostics > 0 {
		app.maxDiagnostics = manifest.Config.Lower.MaxDiagnostics
	}

	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return fmt.Errorf("failed to get log-level flag: %w", err)
	}
	if !flags.Changed("log-level") && manifest != nil && manifest.Config.Log.Level != "" {
		logLevel = manifest.Config.Log.Level
	}
	if app.logger, err = newLogger(logLevel); err != nil {
		return err
	}
	if manifest != nil {
		app.logger.Debug("using project file", zap.String("path", manifest.Path))
	}

	cleanup, err := setupTracing(cmd, manifest)
	if err != nil {
		return err
	}
	app.cleanupTrace = cleanup
	return setupProfiling(cmd)
}

func setupProfiling(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()
	var opts prof.Options
	var err error
	if opts.CPU, err = flags.GetString("cpu-profile"); err != nil {
		return fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	if opts.Mem, err = flags.GetString("mem-profile"); err != nil {
		return fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	if opts.Trace, err = flags.GetString("runtime-trace"); err != nil {
		return fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}
	if !opts.Enabled() {
		return nil
	}
	if app.profile, err = prof.Start(opts); err != nil {
		return fmt.Errorf("failed to start profiling: %w", err)
	}
	return nil
}

// close flushes the tracer and the logger once the command finished.
func (a *appState) close() {
	if a.cleanupTrace != nil {
		a.cleanupTrace()
		a.cleanupTrace = nil
	}
	if err := a.profile.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "profiling: %v\n", err)
	}
	// Sync на stderr возвращает EINVAL на части систем
	_ = a.logger.Sync()
}

// newLogger builds a console logger on stderr; "off" disables logging.
func newLogger(level string) (*zap.Logger, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "off" || level == "none" {
		return zap.NewNop(), nil
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q (expected debug|info|warn|error|off)", level)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	cfg.DisableCaller = lvl > zapcore.DebugLevel
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

func printInfo(format string, args ...any) {
	if app.quiet {
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
}
