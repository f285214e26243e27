package source

import (
	"os"
	"testing"
)

func TestFileSetResolve(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("demo.unit.toml", []byte("[[type]]\nname = \"A\"\n\n[[call]]\n"))

	start, end := fs.Resolve(Span{File: id, Start: 9, End: 13})
	if start.Line != 2 || start.Col != 1 {
		t.Fatalf("start = %+v, want 2:1", start)
	}
	if end.Line != 2 || end.Col != 5 {
		t.Fatalf("end = %+v, want 2:5", end)
	}
}

func TestLineSpan(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("demo.unit.toml", []byte("first\nsecond\nthird"))

	cases := []struct {
		line uint32
		want string
	}{
		{1, "first"},
		{2, "second"},
		{3, "third"},
		{4, ""},
		{0, ""},
	}
	for _, tc := range cases {
		sp := fs.LineSpan(id, tc.line)
		got := string(fs.Get(id).Content[sp.Start:sp.End])
		if got != tc.want {
			t.Fatalf("line %d: got %q, want %q", tc.line, got, tc.want)
		}
		if g := fs.Get(id).GetLine(tc.line); g != tc.want {
			t.Fatalf("GetLine(%d) = %q, want %q", tc.line, g, tc.want)
		}
	}
}

func TestLoadNormalizesCRLF(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/crlf.unit.toml"
	if err := writeFile(path, "\xEF\xBB\xBFa\r\nb\r\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	fs := NewFileSet()
	id, err := fs.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	f := fs.Get(id)
	if string(f.Content) != "a\nb\n" {
		t.Fatalf("content = %q", f.Content)
	}
	if f.Flags&FileHadBOM == 0 || f.Flags&FileNormalizedCRLF == 0 {
		t.Fatalf("flags = %b", f.Flags)
	}
	if got, ok := fs.GetLatest(path); !ok || got != id {
		t.Fatalf("GetLatest = %d, %v", got, ok)
	}
	if rel := f.RelPath(dir); rel != "crlf.unit.toml" {
		t.Fatalf("RelPath = %q", rel)
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}

func TestSpan_ZeroAndDetached(t *testing.T) {
	if !(Span{}).IsZero() || At(0, 1, 3).IsZero() {
		t.Fatalf("IsZero mismatch")
	}
	d := Detached()
	if !d.IsDetached() || d.IsZero() || d.String() != "-" {
		t.Fatalf("detached span = %+v (%s)", d, d)
	}
	if s := At(2, 4, 9); s.Len() != 5 || s.Empty() || s.String() != "2:4-9" {
		t.Fatalf("span = %+v", s)
	}
}
