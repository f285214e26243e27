package diag

import (
	"testing"

	"gotolower/internal/source"
)

func TestFormatGoldenDiagnostics(t *testing.T) {
	fs := source.NewFileSet()
	fs.SetBaseDir("/workspace")

	unit := fs.Add("/workspace/units/simd.unit.toml", []byte("a\nb\n"), 0)

	diags := []Diagnostic{
		{
			Severity: SevWarning,
			Code:     LowUnsupported,
			Message:  "another",
			Primary:  source.Span{File: unit, Start: 2, End: 3},
		},
		{
			Severity: SevError,
			Code:     LowIntrinsicTypeError,
			Message:  "first line\nsecond",
			Primary:  source.Span{File: unit, Start: 0, End: 1},
			Notes: []Note{
				{Span: source.Span{File: unit, Start: 2, End: 3}, Msg: "note line"},
				{Span: source.Span{File: 42}, Msg: "unknown file"},
			},
		},
	}

	expected := "error LOW5001 units/simd.unit.toml:1:1 first line second\n" +
		"note LOW5001 units/simd.unit.toml:2:1 note line\n" +
		"warning LOW4001 units/simd.unit.toml:2:1 another"

	if got := FormatGoldenDiagnostics(diags, fs, true); got != expected {
		t.Fatalf("unexpected golden diagnostics:\nwant:\n%s\n\ngot:\n%s", expected, got)
	}
}

func TestBagLimitCountsDroppedErrors(t *testing.T) {
	bag := NewBag(1)
	r := &BagReporter{Bag: bag}
	ReportWarning(r, LowUnsupported, source.Span{}, "kept").Emit()
	ReportError(r, LowSimdLaneMismatch, source.Span{}, "dropped").Emit()

	if bag.Len() != 1 {
		t.Fatalf("len = %d, want 1", bag.Len())
	}
	if bag.ErrorCount() != 1 || !bag.HasErrors() {
		t.Fatalf("dropped error not counted: %d", bag.ErrorCount())
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(0)
	r := NewDedupReporter(&BagReporter{Bag: bag})
	sp := source.Span{Start: 1, End: 4}
	for i := 0; i < 3; i++ {
		ReportError(r, LowSimdLaneMismatch, sp, "lanes").Emit()
	}
	ReportError(r, LowSimdLaneMismatch, sp, "other").Emit()
	if bag.Len() != 2 {
		t.Fatalf("len = %d, want 2", bag.Len())
	}
}

func TestCodeID(t *testing.T) {
	cases := map[Code]string{
		CfgBadUnitFile:        "CFG1003",
		IOLoadFileError:       "IO2001",
		LayRecursiveType:      "LAY3001",
		LowUnsupported:        "LOW4001",
		LowIntrinsicTypeError: "LOW5001",
		ObsTimings:            "OBS6001",
		UnknownCode:           "E0000",
	}
	for code, want := range cases {
		if got := code.ID(); got != want {
			t.Fatalf("%d.ID() = %s, want %s", code, got, want)
		}
	}
}
