package unit

import (
	"errors"
	"testing"

	"gotolower/internal/types"
)

func TestParseType_Canonical(t *testing.T) {
	cases := []struct{ in, want string }{
		{"u32", "u32"},
		{"&mut [ demo::Rec ;4 ]", "&mut [demo::Rec; 4]"},
		{"*const ( )", "*const ()"},
		{"(u8,)", "(u8,)"},
		{"(u8)", "u8"},
		{"(u8, &str , !)", "(u8, &str, !)"},
		{"core::option::Option< &u8 >", "core::option::Option<&u8>"},
		{"Result<Option<u8>,()>", "Result<Option<u8>, ()>"},
		{"&dyn demo::Area", "&dyn demo::Area"},
		{"fn(u32, ...) -> i32", "fn(u32, ...) -> i32"},
		{`extern "C" fn()`, `extern "C" fn()`},
		{"demo::main::{closure#0}", "demo::main::{closure#0}"},
		{"[u8]", "[u8]"},
		{"[u8; 1_000]", "[u8; 1000]"},
	}
	for _, tc := range cases {
		e, err := ParseType(tc.in)
		if err != nil {
			t.Fatalf("ParseType(%q): %v", tc.in, err)
		}
		if got := e.String(); got != tc.want {
			t.Fatalf("ParseType(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseType_Offsets(t *testing.T) {
	e, err := ParseType("&[demo::Rec; 2]")
	if err != nil {
		t.Fatal(err)
	}
	inner := e.Elem.Elem
	if inner.Kind != ExprName || inner.Start != 2 || inner.End != 11 {
		t.Fatalf("inner = %+v", inner)
	}
	if e.Start != 0 || e.End != 15 {
		t.Fatalf("outer = %d..%d", e.Start, e.End)
	}
}

func TestParseType_FnABI(t *testing.T) {
	e, err := ParseType(`extern "rust-call" fn(&u8, (u32, u32))`)
	if err != nil {
		t.Fatal(err)
	}
	if e.Kind != ExprFn || e.ABI != types.ABIRustCall || len(e.Args) != 2 || e.Elem != nil {
		t.Fatalf("fn = %+v", e)
	}
}

func TestParseType_Errors(t *testing.T) {
	cases := []struct {
		in    string
		start int
	}{
		{"*u8", 1},
		{"[u8; n]", 5},
		{"Option<u8", 9},
		{"u8 u16", 3},
		{"fn(..., u8)", 8},
		{`extern "stdcall" fn()`, 7},
		{"demo::", 6},
		{"{closure", 0},
	}
	for _, tc := range cases {
		_, err := ParseType(tc.in)
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Fatalf("ParseType(%q) = %v, want SyntaxError", tc.in, err)
		}
		if se.Start != tc.start {
			t.Fatalf("ParseType(%q) error at %d, want %d (%s)", tc.in, se.Start, tc.start, se.Msg)
		}
	}
}

func TestParseFieldAndArg(t *testing.T) {
	name, e, err := ParseField("0: &mut u8")
	if err != nil || name != "0" || e.String() != "&mut u8" {
		t.Fatalf("ParseField = %q, %v, %v", name, e, err)
	}
	if _, _, err := ParseField("a u8"); err == nil {
		t.Fatalf("field without colon accepted")
	}

	ty, c, err := ParseArg("[u32; 3] = [1, -2, 3,]")
	if err != nil || ty.String() != "[u32; 3]" {
		t.Fatalf("ParseArg = %v, %v", ty, err)
	}
	if c == nil || c.Kind != ConstArray || c.String() != "[1, -2, 3]" {
		t.Fatalf("const = %+v", c)
	}
	if _, c, _ := ParseArg("bool = true"); c == nil || !c.Bool {
		t.Fatalf("bool const = %+v", c)
	}
	if _, c, _ := ParseArg("u8"); c != nil {
		t.Fatalf("plain arg has const %+v", c)
	}
}
