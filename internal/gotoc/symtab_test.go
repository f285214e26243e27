package gotoc

import (
	"strings"
	"testing"

	"gotolower/internal/source"
)

func lp64() MachineModel {
	return MachineModel{Architecture: "x86_64", PointerWidth: 64, IntWidth: 32, CharWidth: 8, BoolWidth: 8, LittleEndian: true}
}

func declare(st *SymbolTable, t Type) {
	st.Replace(Symbol{Name: TagName(t.Tag), PrettyName: t.Tag, Kind: SymType, Type: t})
}

func TestSymbolTable_InsertKeepsFirst(t *testing.T) {
	st := NewSymbolTable(lp64())
	st.Insert(Symbol{Name: "x", Kind: SymVariable, Type: Signed(32)})
	got := st.Insert(Symbol{Name: "x", Kind: SymVariable, Type: Unsigned(8)})
	if !got.Type.Equal(Signed(32)) || st.Len() != 1 {
		t.Fatalf("second insert replaced the symbol: %s, len %d", got.Type, st.Len())
	}
	st.Replace(Symbol{Name: "x", Kind: SymVariable, Type: Unsigned(8)})
	if sym, _ := st.Lookup("x"); !sym.Type.Equal(Unsigned(8)) || st.Len() != 1 {
		t.Fatalf("replace: %s, len %d", sym.Type, st.Len())
	}
}

func TestSymbolTable_OrderAndMerge(t *testing.T) {
	a := NewSymbolTable(lp64())
	a.Insert(Symbol{Name: "b", Kind: SymVariable, Type: Bool()})
	a.Insert(Symbol{Name: "a", Kind: SymVariable, Type: Bool()})

	b := NewSymbolTable(lp64())
	b.Insert(Symbol{Name: "a", Kind: SymVariable, Type: Double()})
	b.Insert(Symbol{Name: "c", Kind: SymVariable, Type: Double()})
	if conflicts := a.Merge(b); strings.Join(conflicts, ",") != "a" {
		t.Fatalf("conflicts = %v, want [a]", conflicts)
	}

	var order []string
	for _, s := range a.Symbols() {
		order = append(order, s.Name)
	}
	if strings.Join(order, ",") != "b,a,c" {
		t.Fatalf("insertion order = %v", order)
	}
	if got := strings.Join(a.SortedNames(), ","); got != "a,b,c" {
		t.Fatalf("sorted = %s", got)
	}
	if sym, _ := a.Lookup("a"); !sym.Type.Equal(Bool()) {
		t.Fatalf("merge overwrote a: %s", sym.Type)
	}
}

func TestSymbolTable_MergeSharedTagsAgree(t *testing.T) {
	pair := StructType("Pair", []Component{Field("0", Unsigned(8)), Field("1", CBoolT())})
	a := NewSymbolTable(lp64())
	declare(a, pair)
	a.Insert(Symbol{Name: "f::temp_1", Kind: SymVariable, Type: Unsigned(8)})
	b := NewSymbolTable(lp64())
	declare(b, pair)
	b.Insert(Symbol{Name: "g::temp_1", Kind: SymVariable, Type: Unsigned(64)})

	if conflicts := a.Merge(b); len(conflicts) != 0 {
		t.Fatalf("conflicts = %v", conflicts)
	}
	if a.Len() != 3 {
		t.Fatalf("merged %d symbols, want 3", a.Len())
	}
	for _, name := range b.SortedNames() {
		got, _ := a.Lookup(name)
		want, _ := b.Lookup(name)
		if got.Kind != want.Kind || !got.Type.Equal(want.Type) {
			t.Fatalf("%s: merged %s, unit has %s", name, got.Type, want.Type)
		}
	}
}

func TestSizeOfBits_ExplicitPadding(t *testing.T) {
	st := NewSymbolTable(lp64())
	rec := StructType("Rec", []Component{
		Field("a", Signed(32)),
		Field("b", CBoolT()),
		Padding("$pad2", 24),
	})
	declare(st, rec)
	u := UnionType("U", []Component{
		Field("x", Unsigned(16)),
		Field("y", StructTag("Rec")),
	})
	declare(st, u)

	cases := []struct {
		t    Type
		bits int
	}{
		{StructTag("Rec"), 64},
		{UnionTag("U"), 64},
		{Unsigned(8).ArrayOf(3), 24},
		{Float().VectorOf(4), 128},
		{SizeTT(), 64},
		{CIntT(), 32},
		{VoidPointer(), 64},
		{Signed(8).FlexibleArrayOf(), 0},
		{Empty(), 0},
	}
	for _, tc := range cases {
		got, err := st.SizeOfBits(tc.t)
		if err != nil || got != tc.bits {
			t.Fatalf("SizeOfBits(%s) = %d, %v; want %d", tc.t, got, err, tc.bits)
		}
	}
	if a := st.AlignOf(StructTag("Rec")); a != 4 {
		t.Fatalf("AlignOf(Rec) = %d, want 4", a)
	}
}

func TestSizeOfBits_Errors(t *testing.T) {
	st := NewSymbolTable(lp64())
	declare(st, IncompleteStruct("Opaque"))
	for _, ty := range []Type{StructTag("Missing"), IncompleteStruct("Opaque"), Code(nil, Empty())} {
		if _, err := st.SizeOfBits(ty); err == nil {
			t.Fatalf("SizeOfBits(%s) succeeded", ty)
		}
	}
}

func TestStructExpr_CountsNonPaddingFields(t *testing.T) {
	st := NewSymbolTable(lp64())
	declare(st, StructType("P", []Component{
		Field("x", Signed(32)),
		Padding("$pad1", 32),
		Field("y", Signed(64)),
	}))
	e := StructExpr(StructTag("P"), []Expr{IntConstant(1, Signed(32)), IntConstant(2, Signed(64))}, st)
	if e.Kind != ExprStruct || len(e.Operands) != 2 {
		t.Fatalf("StructExpr = %s", FormatExpr(e))
	}
	if m := SymbolExpr("p", StructTag("P")).Member("y", st); !m.Type.Equal(Signed(64)) {
		t.Fatalf("member y has type %s", m.Type)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("StructExpr with a padding value did not panic")
		}
	}()
	StructExpr(StructTag("P"), []Expr{IntConstant(1, Signed(32))}, st)
}

func TestCast_ElidesSameType(t *testing.T) {
	x := SymbolExpr("x", Unsigned(8))
	if c := x.Cast(Unsigned(8)); c.Kind != ExprSymbol {
		t.Fatalf("cast to same type kept: %s", FormatExpr(c))
	}
	if c := x.Cast(Unsigned(16)); c.Kind != ExprTypecast {
		t.Fatalf("widening cast dropped: %s", FormatExpr(c))
	}
	if cmp := x.Lt(IntConstant(3, Unsigned(8))); !cmp.Type.Equal(Bool()) {
		t.Fatalf("comparison type %s", cmp.Type)
	}
}

func TestAssertAssume(t *testing.T) {
	cond := SymbolExpr("ok", Bool())
	s := AssertAssume(cond, PropSafetyCheck, "must hold", source.Span{})
	flat := s.Flatten()
	if len(flat) != 2 || flat[0].Kind != StmtAssert || flat[1].Kind != StmtAssume {
		t.Fatalf("flattened = %d statements", len(flat))
	}
	if flat[0].Property != PropSafetyCheck || flat[0].Message != "must hold" {
		t.Fatalf("assert = %+v", flat[0])
	}
}

func TestBuiltins(t *testing.T) {
	names := BuiltinNames()
	if len(names) == 0 {
		t.Fatalf("no builtins")
	}
	for _, want := range []string{"memcpy", "memmove", "memset", "sqrtf", "powi"} {
		fn, ok := LookupBuiltin(want)
		if !ok {
			t.Fatalf("builtin %s missing", want)
		}
		if !fn.Type().IsCode() {
			t.Fatalf("%s has type %s", want, fn.Type())
		}
	}
	st := NewSymbolTable(lp64())
	fn, _ := LookupBuiltin("memcpy")
	fn.Declare(st)
	fn.Declare(st)
	if st.Len() != 1 {
		t.Fatalf("declared twice: %d symbols", st.Len())
	}
	call := fn.Call(SymbolExpr("d", VoidPointer()), SymbolExpr("s", VoidPointer()), SymbolExpr("n", SizeTT()))
	if call.Kind != ExprCall || !call.Type.Equal(VoidPointer()) {
		t.Fatalf("call = %s : %s", FormatExpr(call), call.Type)
	}
}
