package diagfmt

import (
	"path/filepath"
	"strings"

	"gotolower/internal/diag"
	"gotolower/internal/source"
)

// spanFile returns the span's file, or nil for spans that point nowhere
// (diagnostics raised before any file was loaded).
func spanFile(fs *source.FileSet, span source.Span) *source.File {
	if fs == nil || span.IsDetached() || int(span.File) >= fs.Len() {
		return nil
	}
	return fs.Get(span.File)
}

func formatPath(f *source.File, fs *source.FileSet, mode PathMode) string {
	switch mode {
	case PathModeAbsolute:
		if f.Flags&source.FileVirtual == 0 {
			if abs, err := filepath.Abs(f.Path); err == nil {
				return filepath.ToSlash(abs)
			}
		}
		return f.Path
	case PathModeBasename:
		return filepath.Base(f.Path)
	case PathModeRelative, PathModeAuto:
		return strings.TrimPrefix(f.RelPath(fs.BaseDir()), "./")
	default:
		return f.Path
	}
}

func sevLabel(sev diag.Severity) string {
	return diag.SeverityLabel(sev)
}
