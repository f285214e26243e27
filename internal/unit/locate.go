package unit

import (
	"strings"

	"gotolower/internal/source"
)

// locator maps decoded string values back to byte ranges of the unit file.
// TOML decoding drops positions, so values are searched in the text; the
// n-th lookup of a value finds its n-th occurrence.
type locator struct {
	file *source.File
	text string
	seen map[string]int // value -> offset to search from
}

func newLocator(f *source.File) *locator {
	return &locator{file: f, text: string(f.Content), seen: make(map[string]int)}
}

// find returns the span of the next occurrence of value as a quoted TOML
// string, falling back to the bare text and then to the first line of the
// file (escaped strings do not appear literally).
func (l *locator) find(value string) source.Span {
	if value == "" {
		return l.head()
	}
	for _, q := range []string{`"`, `'`, ""} {
		if start, ok := l.search(value, q+value+q); ok {
			start += len(q)
			l.seen[value] = start + len(value)
			return source.Span{File: l.file.ID, Start: uint32(start), End: uint32(start + len(value))}
		}
	}
	return l.head()
}

func (l *locator) search(value, needle string) (int, bool) {
	from := l.seen[value]
	if idx := strings.Index(l.text[from:], needle); idx >= 0 {
		return from + idx, true
	}
	if idx := strings.Index(l.text, needle); idx >= 0 {
		return idx, true
	}
	return 0, false
}

// sub narrows span to [start, end) within the located value.
func (l *locator) sub(span source.Span, start, end int) source.Span {
	if span.Len() == 0 {
		return span
	}
	s := min(span.Start+uint32(start), span.End)
	e := min(span.Start+uint32(end), span.End)
	if e < s {
		e = s
	}
	return source.Span{File: span.File, Start: s, End: e}
}

func (l *locator) head() source.Span {
	end := strings.IndexByte(l.text, '\n')
	if end < 0 {
		end = len(l.text)
	}
	return source.Span{File: l.file.ID, Start: 0, End: uint32(end)}
}

// at clamps a raw byte range from the TOML decoder to the file.
func (l *locator) at(start, length int) source.Span {
	n := len(l.text)
	start = max(0, min(start, n))
	end := max(start, min(start+length, n))
	return source.Span{File: l.file.ID, Start: uint32(start), End: uint32(end)}
}
