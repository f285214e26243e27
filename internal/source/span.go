package source

import "fmt"

// Span is a byte range inside one file of a FileSet. The zero Span
// carries no position; a Span in NoFile belongs to no loaded file.
type Span struct {
	File  FileID
	Start uint32 // в байтах включительно
	End   uint32 // в байтах не включительно
}

// At builds a span of file.
func At(file FileID, start, end uint32) Span {
	return Span{File: file, Start: start, End: end}
}

// Detached returns a span that points into no file.
func Detached() Span {
	return Span{File: NoFile}
}

func (s Span) IsZero() bool { return s == Span{} }

func (s Span) IsDetached() bool { return s.File == NoFile }

func (s Span) Empty() bool { return s.Start == s.End }

func (s Span) Len() uint32 { return s.End - s.Start }

func (s Span) String() string {
	if s.IsDetached() {
		return "-"
	}
	return fmt.Sprintf("%d:%d-%d", s.File, s.Start, s.End)
}
