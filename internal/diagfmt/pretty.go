package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"gotolower/internal/diag"
	"gotolower/internal/source"
)

type palette struct {
	sev   map[diag.Severity]*color.Color
	code  *color.Color
	gut   *color.Color
	note  *color.Color
	extra *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		sev: map[diag.Severity]*color.Color{
			diag.SevError:   color.New(color.FgRed, color.Bold),
			diag.SevWarning: color.New(color.FgYellow, color.Bold),
			diag.SevInfo:    color.New(color.FgCyan, color.Bold),
		},
		code:  color.New(color.Bold),
		gut:   color.New(color.FgBlue),
		note:  color.New(color.FgGreen),
		extra: color.New(color.Faint),
	}
	all := []*color.Color{p.code, p.gut, p.note, p.extra}
	for _, c := range p.sev {
		all = append(all, c)
	}
	// opts.Color wins over the package-wide NO_COLOR/TTY detection
	for _, c := range all {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Pretty форматирует диагностики в человекочитаемый вид.
// Ожидается bag.Sort() заранее. Для каждой диагностики печатается
//
//	<path>:<line>:<col>: <sev> <CODE>: <message>
//
// затем строка с подчёркиванием ^~~~ по Span и, при ShowNotes, заметки.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) error {
	p := newPalette(opts.Color)
	items := bag.Items()
	if opts.Max > 0 && opts.Max < len(items) {
		items = items[:opts.Max]
	}
	var sb strings.Builder
	for i := range items {
		writeDiagnostic(&sb, &items[i], fs, opts, p)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeDiagnostic(sb *strings.Builder, d *diag.Diagnostic, fs *source.FileSet, opts PrettyOpts, p palette) {
	sev := p.sev[d.Severity]
	if sev == nil {
		sev = p.sev[diag.SevInfo]
	}
	f := spanFile(fs, d.Primary)
	if f != nil {
		start, _ := fs.Resolve(d.Primary)
		fmt.Fprintf(sb, "%s:%d:%d: ", formatPath(f, fs, opts.PathMode), start.Line, start.Col)
	}
	fmt.Fprintf(sb, "%s %s: %s\n", sev.Sprint(sevLabel(d.Severity)), p.code.Sprint(d.Code.ID()), d.Message)
	if f != nil && len(f.Content) > 0 {
		writeSnippet(sb, f, fs, d.Primary, int(opts.Context), sev, p)
	}

	if !opts.ShowNotes && d.Code != diag.ObsTimings {
		return
	}
	for _, n := range d.Notes {
		sb.WriteString("  ")
		sb.WriteString(p.note.Sprint("note"))
		sb.WriteString(": ")
		if nf := spanFile(fs, n.Span); nf != nil && !n.Span.Empty() {
			start, _ := fs.Resolve(n.Span)
			fmt.Fprintf(sb, "%s:%d:%d: ", formatPath(nf, fs, opts.PathMode), start.Line, start.Col)
		}
		sb.WriteString(n.Msg)
		sb.WriteByte('\n')
	}
}

const tabWidth = 4

// writeSnippet prints the primary line with context and a caret underline
// measured in terminal cells.
func writeSnippet(sb *strings.Builder, f *source.File, fs *source.FileSet, span source.Span, context int, sev *color.Color, p palette) {
	start, end := fs.Resolve(span)
	first := int(start.Line) - context
	if first < 1 {
		first = 1
	}
	last := int(start.Line) + context
	if max := len(f.LineIdx) + 1; last > max {
		last = max
	}
	gutter := len(fmt.Sprint(last))

	for ln := first; ln <= last; ln++ {
		text := f.GetLine(uint32(ln))
		fmt.Fprintf(sb, "%s %s\n", p.gut.Sprint(fmt.Sprintf("%*d |", gutter, ln)), expandTabs(text))
		if ln != int(start.Line) {
			continue
		}
		runes := []rune(text)
		from := byteColToRune(text, int(start.Col)-1)
		to := len(runes)
		if end.Line == start.Line {
			to = byteColToRune(text, int(end.Col)-1)
		}
		if to <= from {
			to = from + 1
		}
		pad := runewidth.StringWidth(expandTabs(string(runes[:from])))
		width := 1
		if to <= len(runes) {
			width = max(1, runewidth.StringWidth(expandTabs(string(runes[from:to]))))
		}
		mark := "^" + strings.Repeat("~", width-1)
		fmt.Fprintf(sb, "%s %s%s\n", p.gut.Sprint(strings.Repeat(" ", gutter)+" |"), strings.Repeat(" ", pad), sev.Sprint(mark))
	}
}

// byteColToRune converts a 0-based byte column into a rune index.
func byteColToRune(line string, col int) int {
	if col <= 0 {
		return 0
	}
	if col >= len(line) {
		return len([]rune(line))
	}
	return len([]rune(line[:col]))
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", strings.Repeat(" ", tabWidth))
}
