package diag

import (
	"fmt"

	"gotolower/internal/source"
)

// New builds a diagnostic without notes; use a Reporter to deliver it.
func New(sev Severity, code Code, primary source.Span, msg string) Diagnostic {
	return Diagnostic{Severity: sev, Code: code, Primary: primary, Message: msg}
}

// Newf is New with a formatted message.
func Newf(sev Severity, code Code, primary source.Span, format string, args ...any) Diagnostic {
	return New(sev, code, primary, fmt.Sprintf(format, args...))
}

func (d Diagnostic) WithNote(sp source.Span, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Span: sp, Msg: msg})
	return d
}
