package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"gotolower/internal/diag"
	"gotolower/internal/driver"
	"gotolower/internal/layout"
	"gotolower/internal/source"
	"gotolower/internal/ui"
	"gotolower/internal/unit"
)

var layoutCmd = &cobra.Command{
	Use:   "layout [flags] <unit.toml|directory>...",
	Short: "Print the computed layout of each unit's types",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLayout,
}

func init() {
	layoutCmd.Flags().String("target", "", "target triple for units that name none")
	layoutCmd.Flags().Bool("all", false, "show every declared type, not only the lowered ones")
	layoutCmd.Flags().String("format", "pretty", "diagnostic format (pretty|short|json)")
}

func runLayout(cmd *cobra.Command, args []string) error {
	formatStr, _ := cmd.Flags().GetString("format")
	format, err := readOutputFormat(formatStr)
	if err != nil {
		return err
	}
	all, _ := cmd.Flags().GetBool("all")
	target, _ := cmd.Flags().GetString("target")
	if target == "" && app.manifest != nil {
		target = app.manifest.Config.Target.Triple
	}
	paths, err := driver.ExpandInputs(args)
	if err != nil {
		return err
	}

	fs := source.NewFileSet()
	bag := diag.NewBag(app.maxDiagnostics)
	out := cmd.OutOrStdout()
	failed := false
	for _, path := range paths {
		u, err := unit.LoadFile(fs, path, unit.Options{
			Target:   target,
			Reporter: diag.NewDedupReporter(&diag.BagReporter{Bag: bag}),
		})
		if err != nil {
			failed = true
			// частично разобранный юнит всё ещё можно показать
			if u == nil || !errors.Is(err, unit.ErrInvalidUnit) {
				continue
			}
		}
		refs := u.Lower
		if all {
			refs = u.Decls
		}
		eng := layout.New(u.Target, u.Types)
		rows := make([]ui.LayoutRow, 0, len(refs))
		for _, ref := range refs {
			l, lerr := eng.LayoutOf(ref.Type)
			if lerr != nil {
				rows = append(rows, ui.LayoutRow{Type: ref.Expr, Err: lerr.Error()})
				continue
			}
			rows = append(rows, ui.DescribeLayout(u.Types, ref.Type, l))
		}
		if !app.quiet {
			fmt.Fprintf(out, "%s (%s)\n", path, u.Target.Triple)
		}
		fmt.Fprint(out, ui.RenderLayouts(rows, app.color))
	}

	if err := printDiagnostics(cmd.ErrOrStderr(), bag, fs, reportOpts{format: format, withNotes: true}); err != nil {
		return fmt.Errorf("failed to format diagnostics: %w", err)
	}
	if failed {
		app.exitCode = 1
	}
	return nil
}
