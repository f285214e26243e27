package driver

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gotolower/internal/gotoc"
)

// EmitKind selects the files written per unit.
type EmitKind uint8

const (
	EmitText EmitKind = 1 << iota
	EmitArchive

	EmitNone EmitKind = 0
	EmitAll           = EmitText | EmitArchive
)

// ParseEmit accepts none, text, archive and all.
func ParseEmit(s string) (EmitKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return EmitNone, nil
	case "text", "txt":
		return EmitText, nil
	case "archive", "mp":
		return EmitArchive, nil
	case "all", "both":
		return EmitAll, nil
	}
	return EmitNone, fmt.Errorf("unknown emit kind %q (want none|text|archive|all)", s)
}

func (k EmitKind) String() string {
	switch k {
	case EmitNone:
		return "none"
	case EmitText:
		return "text"
	case EmitArchive:
		return "archive"
	case EmitAll:
		return "all"
	}
	return "emit?"
}

const (
	textSuffix    = ".symtab.txt"
	archiveSuffix = ".symtab.mp"
)

// emitTable writes st under dir and returns the written paths.
func emitTable(dir, name string, st *gotoc.SymbolTable, producer string, kind EmitKind) ([]string, error) {
	if kind == EmitNone {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	base := filepath.Join(dir, fileStem(name))
	var written []string
	if kind&EmitText != 0 {
		p := base + textSuffix
		if err := writeAtomic(p, func(w io.Writer) error { return gotoc.WriteText(w, st) }); err != nil {
			return written, err
		}
		written = append(written, p)
	}
	if kind&EmitArchive != 0 {
		p := base + archiveSuffix
		if err := writeAtomic(p, func(w io.Writer) error { return gotoc.WriteArchive(w, st, producer) }); err != nil {
			return written, err
		}
		written = append(written, p)
	}
	return written, nil
}

// fileStem keeps unit names usable as file names.
func fileStem(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "::", ".", ":", "_")
	if s := r.Replace(name); s != "" {
		return s
	}
	return "unit"
}

func writeAtomic(path string, write func(io.Writer) error) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
