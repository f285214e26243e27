package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"gotolower/internal/layout"
	"gotolower/internal/types"
)

// LayoutRow is the printable summary of one type's layout.
type LayoutRow struct {
	Type   string
	Size   int
	Align  int
	Sized  bool
	Shape  string
	Fields []FieldRow
	Niche  string
	Err    string
}

// FieldRow is one field in increasing offset order.
type FieldRow struct {
	Name   string
	Offset int
}

// DescribeLayout summarizes l, the layout of t.
func DescribeLayout(in *types.Interner, t types.TypeID, l *layout.Layout) LayoutRow {
	row := LayoutRow{Type: types.Label(in, t), Size: l.Size, Align: l.Align, Sized: l.Sized, Shape: l.Fields.Kind.String()}
	if l.Variants.Kind == layout.VariantsMultiple {
		row.Shape = fmt.Sprintf("enum/%s, %d variants", l.Variants.Encoding, len(l.Variants.Layouts))
	}
	if l.Uninhabited {
		row.Shape += ", uninhabited"
	}
	if l.Niche != nil {
		row.Niche = fmt.Sprintf("@%d", l.Niche.Offset)
	}
	if l.Fields.Kind != layout.FieldsArbitrary {
		return row
	}
	names := fieldNames(in, t)
	for _, i := range l.Fields.IndexByIncreasingOffset() {
		name := strconv.Itoa(i)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		row.Fields = append(row.Fields, FieldRow{Name: name, Offset: l.Fields.Offset(i)})
	}
	return row
}

func fieldNames(in *types.Interner, t types.TypeID) []string {
	if info, ok := in.AdtInfo(t); ok && len(info.Variants) == 1 {
		out := make([]string, len(info.Variants[0].Fields))
		for i, f := range info.Variants[0].Fields {
			out[i] = f.Name
		}
		return out
	}
	return nil
}

var (
	layoutHeader = lipgloss.NewStyle().Bold(true)
	layoutType   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	layoutFaint  = lipgloss.NewStyle().Faint(true)
	layoutErr    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// RenderLayouts prints rows as an aligned table; styles apply only when
// color is set.
func RenderLayouts(rows []LayoutRow, color bool) string {
	style := func(s lipgloss.Style, text string) string {
		if !color {
			return text
		}
		return s.Render(text)
	}
	typeWidth := len("type")
	for _, r := range rows {
		typeWidth = max(typeWidth, runewidth.StringWidth(r.Type))
	}

	var b strings.Builder
	b.WriteString(style(layoutHeader, fmt.Sprintf("%s  %6s  %5s  %s", pad("type", typeWidth), "size", "align", "shape")))
	b.WriteByte('\n')
	for _, r := range rows {
		name := style(layoutType, pad(r.Type, typeWidth))
		if r.Err != "" {
			fmt.Fprintf(&b, "%s  %s\n", name, style(layoutErr, "error: "+r.Err))
			continue
		}
		size := strconv.Itoa(r.Size)
		if !r.Sized {
			size = "?"
		}
		shape := r.Shape
		if r.Niche != "" {
			shape += ", niche " + r.Niche
		}
		fmt.Fprintf(&b, "%s  %6s  %5d  %s\n", name, size, r.Align, shape)
		for _, f := range r.Fields {
			b.WriteString(style(layoutFaint, fmt.Sprintf("  %s+%-5d %s", strings.Repeat(" ", typeWidth), f.Offset, f.Name)))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func pad(s string, width int) string {
	return s + strings.Repeat(" ", max(0, width-runewidth.StringWidth(s)))
}
