package main

import (
	"fmt"
	"io"
	"strings"

	"gotolower/internal/diag"
	"gotolower/internal/diagfmt"
	"gotolower/internal/driver"
	"gotolower/internal/observ"
	"gotolower/internal/source"
)

type outputFormat string

const (
	formatPretty outputFormat = "pretty"
	formatShort  outputFormat = "short"
	formatJSON   outputFormat = "json"
)

func readOutputFormat(value string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(strings.TrimSpace(value))); f {
	case formatPretty, formatShort, formatJSON:
		return f, nil
	case "":
		return formatPretty, nil
	}
	return "", fmt.Errorf("unknown format %q (expected pretty|short|json)", value)
}

type reportOpts struct {
	format      outputFormat
	withNotes   bool
	fullPath    bool
	minSeverity diag.Severity
}

// printDiagnostics writes bag to w in the chosen format.
func printDiagnostics(w io.Writer, bag *diag.Bag, files *source.FileSet, opts reportOpts) error {
	if !app.timings {
		bag = withoutTimings(bag)
	}
	if opts.minSeverity > diag.SevInfo {
		bag = bag.Filter(opts.minSeverity)
	}
	pathMode := diagfmt.PathModeAuto
	if opts.fullPath {
		pathMode = diagfmt.PathModeAbsolute
	}
	switch opts.format {
	case formatJSON:
		return diagfmt.JSON(w, bag, files, diagfmt.JSONOpts{
			IncludePositions: true,
			PathMode:         pathMode,
			IncludeNotes:     opts.withNotes,
		})
	case formatShort:
		if out := diag.FormatGoldenDiagnostics(bag.Items(), files, opts.withNotes); out != "" {
			_, err := fmt.Fprintln(w, out)
			return err
		}
		return nil
	default:
		return diagfmt.Pretty(w, bag, files, diagfmt.PrettyOpts{
			Color:     app.color,
			Context:   1,
			PathMode:  pathMode,
			ShowNotes: opts.withNotes,
		})
	}
}

func withoutTimings(bag *diag.Bag) *diag.Bag {
	out := diag.NewBag(0)
	for _, d := range bag.Items() {
		if d.Code != diag.ObsTimings {
			out.Add(d)
		}
	}
	return out
}

// printSummary writes the one-line outcome and, with --timings, the
// aggregated stage table.
func printSummary(w io.Writer, batch *driver.Batch) {
	if app.quiet {
		return
	}
	var cached, symbols int
	for i := range batch.Results {
		r := &batch.Results[i]
		if r.Cached {
			cached++
		}
		if r.Symtab != nil {
			symbols += r.Symtab.Len()
		}
	}
	ok := len(batch.Results) - batch.Failed()
	fmt.Fprintf(w, "lowered %d/%d unit(s), %d symbol(s)", ok, len(batch.Results), symbols)
	if cached > 0 {
		fmt.Fprintf(w, ", %d from cache", cached)
	}
	fmt.Fprintln(w)
	if app.timings {
		printStageTimings(w, batch.Timing)
	}
}

func printStageTimings(w io.Writer, r observ.Report) {
	if len(r.Stages) == 0 {
		return
	}
	fmt.Fprint(w, r.Summary())
}
