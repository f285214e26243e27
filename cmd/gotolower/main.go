package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"gotolower/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "gotolower",
	Short: "Type layout and intrinsic lowering to goto-C declaration tables",
	Long: `gotolower reads unit descriptions (*.unit.toml), computes the ABI layout
of the types they declare and lowers them, together with intrinsic calls,
into goto-C symbol tables for a bounded model checker.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupApp,
}

// main registers subcommands and persistent flags and executes the root
// command. Execution errors exit with status 1, failed units with exitCode.
func main() {
	// Устанавливаем версию для автоматического флага --version
	rootCmd.Version = version.Version

	cobra.OnFinalize(app.close)

	rootCmd.AddCommand(lowerCmd)
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().Int("max-diagnostics", 100, "maximum number of diagnostics per unit")
	rootCmd.PersistentFlags().String("config", "", "project file (default: nearest gotolower.toml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "engine log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("trace", "", "trace output file (- for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	rootCmd.PersistentFlags().String("trace-mode", "", "trace storage (stream|ring|both)")
	rootCmd.PersistentFlags().Int("trace-ring-size", 4096, "events kept in the trace ring")
	rootCmd.PersistentFlags().Duration("trace-heartbeat", 0, "trace heartbeat interval (0 disables)")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to file on exit")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a Go runtime execution trace to file")

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
	os.Exit(app.exitCode)
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
