package lower

import (
	"errors"
	"math/big"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"gotolower/internal/diag"
	"gotolower/internal/gotoc"
	"gotolower/internal/types"
)

func (f *fixture) call(name string, ret types.TypeID, args ...types.TypeID) IntrinsicCall {
	call := IntrinsicCall{Name: name, Ret: ret, ArgTypes: args}
	for i, a := range args {
		call.Args = append(call.Args, gotoc.SymbolExpr(string(rune('a'+i)), f.ctx.LowerType(a)))
	}
	if ret != types.NoTypeID && !f.in.IsUnit(ret) {
		call.Dest = gotoc.SymbolExpr("dest", f.ctx.LowerType(ret))
	}
	return call
}

func TestLowerIntrinsic_AddWithOverflow(t *testing.T) {
	f := newFixture()
	pair := f.in.RegisterTuple([]types.TypeID{f.b.I32, f.b.Bool})
	st := f.ctx.LowerIntrinsic(f.call("add_with_overflow", pair, f.b.I32, f.b.I32))

	if st.Kind != gotoc.StmtAssign || st.LHS.Name != "dest" {
		t.Fatalf("stmt = %s, want assignment to dest", gotoc.FormatStmt(st))
	}
	rhs := *st.RHS
	if rhs.Kind != gotoc.ExprStruct || len(rhs.Operands) != 2 {
		t.Fatalf("rhs = %s, want a two-value struct", gotoc.FormatExpr(rhs))
	}
	if rhs.Operands[0].BinOp != gotoc.OpPlus {
		t.Fatalf("result = %s", gotoc.FormatExpr(rhs.Operands[0]))
	}
	flag := rhs.Operands[1]
	if flag.Kind != gotoc.ExprTypecast || flag.Operands[0].BinOp != gotoc.OpOverflowPlus {
		t.Fatalf("flag = %s", gotoc.FormatExpr(flag))
	}
}

func TestLowerIntrinsic_UncheckedDivOrder(t *testing.T) {
	f := newFixture()
	st := f.ctx.LowerIntrinsic(f.call("unchecked_div", f.b.I64, f.b.I64, f.b.I64))
	flat := st.Flatten()
	if len(flat) != 3 {
		t.Fatalf("got %d statements, want 3", len(flat))
	}
	if flat[0].Kind != gotoc.StmtAssert || flat[0].Property != gotoc.PropDivisionByZero {
		t.Fatalf("first = %s, want divisor check", gotoc.FormatStmt(flat[0]))
	}
	if flat[1].Kind != gotoc.StmtAssert || flat[1].Property != gotoc.PropArithmeticOverflow {
		t.Fatalf("second = %s, want overflow check", gotoc.FormatStmt(flat[1]))
	}
	if flat[2].Kind != gotoc.StmtAssign || flat[2].RHS.BinOp != gotoc.OpDiv {
		t.Fatalf("third = %s, want the division", gotoc.FormatStmt(flat[2]))
	}
}

func TestLowerIntrinsic_UnsignedDivSkipsOverflowCheck(t *testing.T) {
	f := newFixture()
	st := f.ctx.LowerIntrinsic(f.call("unchecked_rem", f.b.U32, f.b.U32, f.b.U32))
	if asserts := st.Asserts(); len(asserts) != 1 || asserts[0].Property != gotoc.PropDivisionByZero {
		t.Fatalf("asserts = %d, want only the divisor check", len(asserts))
	}
}

func TestLowerIntrinsic_ExactDiv(t *testing.T) {
	f := newFixture()
	st := f.ctx.LowerIntrinsic(f.call("exact_div", f.b.I32, f.b.I32, f.b.I32))
	asserts := st.Asserts()
	if len(asserts) != 3 {
		t.Fatalf("asserts = %d, want 3", len(asserts))
	}
	for _, a := range asserts {
		if a.Property != gotoc.PropExactDiv {
			t.Fatalf("property %s, want %s", a.Property, gotoc.PropExactDiv)
		}
	}
}

func TestLowerIntrinsic_UncheckedAddAssertsFirst(t *testing.T) {
	f := newFixture()
	flat := f.ctx.LowerIntrinsic(f.call("unchecked_add", f.b.U8, f.b.U8, f.b.U8)).Flatten()
	if len(flat) != 2 || flat[0].Kind != gotoc.StmtAssert || flat[1].Kind != gotoc.StmtAssign {
		t.Fatalf("got %d statements, want assert then assign", len(flat))
	}
}

func TestLowerIntrinsic_ShiftAssumesRange(t *testing.T) {
	f := newFixture()
	flat := f.ctx.LowerIntrinsic(f.call("unchecked_shl", f.b.I32, f.b.I32, f.b.I32)).Flatten()
	var asserts, assumes int
	for _, s := range flat {
		switch s.Kind {
		case gotoc.StmtAssert:
			asserts++
		case gotoc.StmtAssume:
			assumes++
		}
	}
	if asserts != 2 || assumes != 2 {
		t.Fatalf("asserts=%d assumes=%d, want 2 and 2", asserts, assumes)
	}
}

func TestLowerIntrinsic_DirectFloatCall(t *testing.T) {
	f := newFixture()
	st := f.ctx.LowerIntrinsic(f.call("sqrtf32", f.b.F32, f.b.F32))
	if st.Kind != gotoc.StmtAssign || st.RHS.Kind != gotoc.ExprCall {
		t.Fatalf("stmt = %s", gotoc.FormatStmt(st))
	}
	if fn := st.RHS.Operands[0]; fn.Name != "sqrtf" {
		t.Fatalf("callee = %q, want sqrtf", fn.Name)
	}
	if !f.ctx.Symtab().Contains("sqrtf") {
		t.Fatalf("sqrtf not declared")
	}
}

func TestLowerIntrinsic_UnsupportedPlaceholder(t *testing.T) {
	f := newFixture()
	st := f.ctx.LowerIntrinsic(f.call("frobnicate", f.b.U32, f.b.U32))
	asserts := st.Asserts()
	if len(asserts) != 1 || asserts[0].Property != gotoc.PropUnsupportedConstruct {
		t.Fatalf("asserts = %+v", asserts)
	}
	flat := st.Flatten()
	last := flat[len(flat)-1]
	if last.Kind != gotoc.StmtAssign || last.RHS.Kind != gotoc.ExprNondet {
		t.Fatalf("last = %s, want nondet assignment", gotoc.FormatStmt(last))
	}
	codes := diagCodes(f.bag)
	if len(codes) != 1 || codes[0] != diag.LowUnsupported {
		t.Fatalf("diagnostics = %v", codes)
	}
	if err := f.ctx.Finish(); err != nil {
		t.Fatalf("Finish = %v, warnings must not abort", err)
	}

	f.ctx.LowerIntrinsic(f.call("caller_location", f.b.U32))
	if codes := diagCodes(f.bag); codes[len(codes)-1] != diag.LowUnsupportedIntrinsic {
		t.Fatalf("caller_location reported %v", codes)
	}
}

func TestLowerIntrinsic_ArityError(t *testing.T) {
	f := newFixture()
	f.ctx.LowerIntrinsic(f.call("unchecked_div", f.b.I32, f.b.I32))
	if codes := diagCodes(f.bag); len(codes) != 1 || codes[0] != diag.LowIntrinsicArity {
		t.Fatalf("diagnostics = %v", codes)
	}
	if err := f.ctx.Finish(); !errors.Is(err, ErrUnitAborted) {
		t.Fatalf("Finish = %v", err)
	}
}

func (f *fixture) simd(name string, elem types.TypeID, lanes int) types.TypeID {
	fields := make([]types.Field, lanes)
	for i := range fields {
		fields[i] = fld(string(rune('0'+i)), elem)
	}
	return f.structOf(name, types.Repr{Simd: true}, fields...)
}

func TestLowerIntrinsic_SimdMismatchAbortsUnit(t *testing.T) {
	f := newFixture()
	f32x4 := f.simd("demo::f32x4", f.b.F32, 4)
	f32x2 := f.simd("demo::f32x2", f.b.F32, 2)
	u32x4 := f.simd("demo::u32x4", f.b.U32, 4)

	f.ctx.LowerIntrinsic(f.call("simd_add", f32x2, f32x4, f32x4))
	f.ctx.LowerIntrinsic(f.call("simd_add", u32x4, f32x4, f32x4))
	codes := diagCodes(f.bag)
	if len(codes) != 2 || codes[0] != diag.LowSimdLaneMismatch || codes[1] != diag.LowSimdElementMismatch {
		t.Fatalf("diagnostics = %v", codes)
	}
	if err := f.ctx.Finish(); !errors.Is(err, ErrUnitAborted) {
		t.Fatalf("Finish = %v, want ErrUnitAborted", err)
	}
}

func TestLowerIntrinsic_SimdCompareReturnsMask(t *testing.T) {
	f := newFixture()
	f32x4 := f.simd("demo::f32x4", f.b.F32, 4)
	i32x4 := f.simd("demo::i32x4", f.b.I32, 4)
	st := f.ctx.LowerIntrinsic(f.call("simd_lt", i32x4, f32x4, f32x4))
	if st.Kind != gotoc.StmtAssign || !st.RHS.Type.Equal(f.ctx.LowerType(i32x4)) {
		t.Fatalf("stmt = %s", gotoc.FormatStmt(st))
	}
	if f.bag.Len() != 0 {
		t.Fatalf("diagnostics = %v", diagCodes(f.bag))
	}
}

func TestLowerIntrinsic_SimdIntegerAddChecksOverflow(t *testing.T) {
	f := newFixture()
	u32x4 := f.simd("demo::u32x4", f.b.U32, 4)
	st := f.ctx.LowerIntrinsic(f.call("simd_add", u32x4, u32x4, u32x4))
	if asserts := st.Asserts(); len(asserts) != 1 || asserts[0].Property != gotoc.PropArithmeticOverflow {
		t.Fatalf("asserts = %+v", asserts)
	}
}

func TestLowerIntrinsic_SimdShuffleIndexOutOfBounds(t *testing.T) {
	f := newFixture()
	u8x2 := f.simd("demo::u8x2", f.b.U8, 2)
	u32 := gotoc.Unsigned(32)
	call := f.call("simd_shuffle2", u8x2, u8x2, u8x2)
	call.Args = append(call.Args, gotoc.ArrayExpr(u32.ArrayOf(2), []gotoc.Expr{
		gotoc.IntConstant(3, u32), gotoc.IntConstant(4, u32),
	}))
	f.ctx.LowerIntrinsic(call)
	if codes := diagCodes(f.bag); len(codes) != 1 || codes[0] != diag.LowSimdShuffleIndex {
		t.Fatalf("diagnostics = %v", codes)
	}
}

func TestLowerIntrinsic_SimdShuffle(t *testing.T) {
	f := newFixture()
	u8x2 := f.simd("demo::u8x2", f.b.U8, 2)
	u32 := gotoc.Unsigned(32)
	call := f.call("simd_shuffle", u8x2, u8x2, u8x2)
	call.Args = append(call.Args, gotoc.ArrayExpr(u32.ArrayOf(2), []gotoc.Expr{
		gotoc.IntConstant(3, u32), gotoc.IntConstant(0, u32),
	}))
	st := f.ctx.LowerIntrinsic(call)
	rhs := *st.RHS
	if rhs.Kind != gotoc.ExprVector || len(rhs.Operands) != 2 {
		t.Fatalf("rhs = %s", gotoc.FormatExpr(rhs))
	}
	if src := rhs.Operands[0].Operands[0]; src.Name != "b" {
		t.Fatalf("lane 0 reads %s, want the second vector", src.Name)
	}
	if src := rhs.Operands[1].Operands[0]; src.Name != "a" {
		t.Fatalf("lane 1 reads %s, want the first vector", src.Name)
	}
}

func TestLowerIntrinsic_AtomicWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := newFixture(WithLogger(zap.New(core)))
	ptr := f.in.Intern(types.MakeRawPtr(f.b.U32, true))
	st := f.ctx.LowerIntrinsic(f.call("atomic_xadd_seqcst", f.b.U32, ptr, f.b.U32))

	if st.Kind != gotoc.StmtAtomicBlock {
		t.Fatalf("stmt kind = %d, want atomic block", st.Kind)
	}
	if n := logs.FilterMessage("atomic operation lowered sequentially").Len(); n != 1 {
		t.Fatalf("warn logs = %d, want 1", n)
	}
	if codes := diagCodes(f.bag); len(codes) != 1 || codes[0] != diag.LowConcurrencyReduced {
		t.Fatalf("diagnostics = %v", codes)
	}
}

func TestLowerIntrinsic_AtomicCompareExchange(t *testing.T) {
	f := newFixture()
	ptr := f.in.Intern(types.MakeRawPtr(f.b.U64, true))
	pair := f.in.RegisterTuple([]types.TypeID{f.b.U64, f.b.Bool})
	st := f.ctx.LowerIntrinsic(f.call("atomic_cxchg_acqrel_failacq", pair, ptr, f.b.U64, f.b.U64))
	var sawIf bool
	for _, s := range st.Flatten() {
		if s.Kind == gotoc.StmtIfThenElse {
			sawIf = true
		}
	}
	if !sawIf {
		t.Fatalf("no conditional store in %s", gotoc.FormatStmt(st))
	}

	f.ctx.LowerIntrinsic(f.call("atomic_load_bogus", f.b.U64, ptr))
	codes := diagCodes(f.bag)
	if codes[len(codes)-1] != diag.LowUnsupported {
		t.Fatalf("bad ordering reported %v", codes)
	}
}

func TestLowerIntrinsic_TypeConstants(t *testing.T) {
	f := newFixture()
	rec := f.structOf("demo::Rec", types.Repr{C: true}, fld("a", f.b.U64), fld("b", f.b.U8))
	call := f.call("size_of", f.b.Usize)
	call.Generic = []types.TypeID{rec}
	st := f.ctx.LowerIntrinsic(call)
	if v, ok := constIndex(*st.RHS); !ok || v != 16 {
		t.Fatalf("size_of = %s", gotoc.FormatExpr(*st.RHS))
	}

	call = f.call("size_of", f.b.Usize)
	f.ctx.LowerIntrinsic(call)
	if codes := diagCodes(f.bag); len(codes) != 1 || codes[0] != diag.LowIntrinsicTypeError {
		t.Fatalf("missing type argument reported %v", codes)
	}
}

func TestLowerIntrinsic_AssertZeroValid(t *testing.T) {
	f := newFixture()
	r := f.ref(f.b.U8)

	call := f.call("assert_zero_valid", f.b.Unit)
	call.Generic = []types.TypeID{f.b.U32}
	if st := f.ctx.LowerIntrinsic(call); st.Kind != gotoc.StmtSkip {
		t.Fatalf("u32: %s", gotoc.FormatStmt(st))
	}
	call.Generic = []types.TypeID{r}
	st := f.ctx.LowerIntrinsic(call)
	if asserts := st.Asserts(); len(asserts) != 1 || asserts[0].Property != gotoc.PropSafetyCheck {
		t.Fatalf("&u8: %s", gotoc.FormatStmt(st))
	}
}

func TestLowerIntrinsic_TransmuteToUninhabited(t *testing.T) {
	f := newFixture()
	never := f.enumOf("demo::Void", types.Repr{})
	st := f.ctx.LowerIntrinsic(f.call("transmute", never, f.b.U8))
	asserts := st.Asserts()
	if len(asserts) != 1 || asserts[0].Cond.Kind != gotoc.ExprBoolConstant {
		t.Fatalf("stmt = %s", gotoc.FormatStmt(st))
	}
}

func TestLowerIntrinsic_DiscriminantOfDirectEnum(t *testing.T) {
	f := newFixture()
	e := f.enumOf("demo::E", types.Repr{},
		types.Variant{Name: "A", Fields: []types.Field{fld("0", f.b.U32)}},
		types.Variant{Name: "B", Fields: []types.Field{fld("0", f.b.U16)}},
	)
	st := f.ctx.LowerIntrinsic(f.call("discriminant_value", f.b.Isize, f.ref(e)))
	cast := *st.RHS
	if cast.Kind != gotoc.ExprTypecast || cast.Operands[0].Kind != gotoc.ExprMember || cast.Operands[0].Name != "case" {
		t.Fatalf("rhs = %s", gotoc.FormatExpr(cast))
	}
}

func TestLowerIntrinsic_CopyNonoverlapping(t *testing.T) {
	f := newFixture()
	src := f.in.Intern(types.MakeRawPtr(f.b.U32, false))
	dst := f.in.Intern(types.MakeRawPtr(f.b.U32, true))
	st := f.ctx.LowerIntrinsic(f.call("copy_nonoverlapping", f.b.Unit, src, dst, f.b.Usize))
	asserts := st.Asserts()
	if len(asserts) != 3 {
		t.Fatalf("asserts = %d, want two alignment checks and the byte count check", len(asserts))
	}
	if !f.ctx.Symtab().Contains("memcpy") {
		t.Fatalf("memcpy not declared")
	}
}

func TestLowerIntrinsic_PtrOffsetFromZeroSized(t *testing.T) {
	f := newFixture()
	p := f.in.Intern(types.MakeRawPtr(f.b.Unit, false))
	st := f.ctx.LowerIntrinsic(f.call("ptr_offset_from", f.b.Isize, p, p))
	if asserts := st.Asserts(); len(asserts) != 1 || asserts[0].Property != gotoc.PropSafetyCheck {
		t.Fatalf("stmt = %s", gotoc.FormatStmt(st))
	}
}

func TestLowerIntrinsic_SimdShuffleMalformedIndices(t *testing.T) {
	u32 := gotoc.Unsigned(32)
	consts := func(vs ...int64) []gotoc.Expr {
		out := make([]gotoc.Expr, len(vs))
		for i, v := range vs {
			out[i] = gotoc.IntConstant(v, u32)
		}
		return out
	}
	cases := map[string]gotoc.Expr{
		"short":         gotoc.ArrayExpr(u32.ArrayOf(2), consts(3, 0)),
		"long":          gotoc.ArrayExpr(u32.ArrayOf(5), consts(0, 1, 2, 3, 4)),
		"not constant":  gotoc.SymbolExpr("idx", u32.ArrayOf(4)),
		"variable lane": gotoc.ArrayExpr(u32.ArrayOf(4), append(consts(0, 1, 2), gotoc.SymbolExpr("i", u32))),
	}
	for name, idx := range cases {
		f := newFixture()
		u8x4 := f.simd("demo::u8x4", f.b.U8, 4)
		call := f.call("simd_shuffle4", u8x4, u8x4, u8x4)
		call.Args = append(call.Args, idx)
		st := f.ctx.LowerIntrinsic(call)
		if st.Kind != gotoc.StmtAssign || st.RHS.Kind != gotoc.ExprNondet {
			t.Fatalf("%s: stmt = %s, want a nondet placeholder", name, gotoc.FormatStmt(st))
		}
		if codes := diagCodes(f.bag); len(codes) != 1 || codes[0] != diag.LowSimdShuffleIndex {
			t.Fatalf("%s: diagnostics = %v", name, codes)
		}
		if err := f.ctx.Finish(); !errors.Is(err, ErrUnitAborted) {
			t.Fatalf("%s: Finish = %v", name, err)
		}
	}
}

// A return type that is not the expected struct is a type error, not a
// crash of the whole batch.
func TestLowerIntrinsic_StructResultShape(t *testing.T) {
	cases := map[string]func(f *fixture) IntrinsicCall{
		"add_with_overflow to u32": func(f *fixture) IntrinsicCall {
			return f.call("add_with_overflow", f.b.U32, f.b.U32, f.b.U32)
		},
		"mul_with_overflow to a triple": func(f *fixture) IntrinsicCall {
			triple := f.in.RegisterTuple([]types.TypeID{f.b.U32, f.b.Bool, f.b.U8})
			return f.call("mul_with_overflow", triple, f.b.U32, f.b.U32)
		},
		"cxchg to u64": func(f *fixture) IntrinsicCall {
			ptr := f.in.Intern(types.MakeRawPtr(f.b.U64, true))
			return f.call("atomic_cxchg_seqcst_seqcst", f.b.U64, ptr, f.b.U64, f.b.U64)
		},
		"type_name to usize": func(f *fixture) IntrinsicCall {
			call := f.call("type_name", f.b.Usize)
			call.Generic = []types.TypeID{f.b.U8}
			return call
		},
	}
	for name, build := range cases {
		f := newFixture()
		f.ctx.LowerIntrinsic(build(f))
		codes := diagCodes(f.bag)
		if len(codes) == 0 || codes[len(codes)-1] != diag.LowIntrinsicTypeError {
			t.Fatalf("%s: diagnostics = %v", name, codes)
		}
		if err := f.ctx.Finish(); !errors.Is(err, ErrUnitAborted) {
			t.Fatalf("%s: Finish = %v", name, err)
		}
	}
}

func TestLowerIntrinsic_TypeNameIsStrSlice(t *testing.T) {
	f := newFixture()
	call := f.call("type_name", f.ref(f.b.Str))
	call.Generic = []types.TypeID{f.b.U16}
	st := f.ctx.LowerIntrinsic(call)
	rhs := *st.RHS
	if rhs.Kind != gotoc.ExprStruct || len(rhs.Operands) != 2 || rhs.Operands[0].Name != "u16" {
		t.Fatalf("rhs = %s", gotoc.FormatExpr(rhs))
	}
	if v, ok := constIndex(rhs.Operands[1]); !ok || v != 3 {
		t.Fatalf("len = %s", gotoc.FormatExpr(rhs.Operands[1]))
	}
}

func TestLowerIntrinsic_CopyOfZeroBytesIsNoop(t *testing.T) {
	f := newFixture()
	ev := evaluator{t: t, mm: f.ctx.MachineModel()}
	src := f.in.Intern(types.MakeRawPtr(f.b.U32, false))
	dst := f.in.Intern(types.MakeRawPtr(f.b.U32, true))
	for _, n := range []int64{0, 3} {
		call := f.call("copy", f.b.Unit, src, dst, f.b.Usize)
		call.Args[2] = gotoc.IntConstant(n, gotoc.SizeTT())
		flat := f.ctx.LowerIntrinsic(call).Flatten()
		last := flat[len(flat)-1]
		if last.Kind != gotoc.StmtExpression || last.RHS.Kind != gotoc.ExprIf {
			t.Fatalf("last = %s, want a conditional copy", gotoc.FormatStmt(last))
		}
		copied := *last.RHS
		empty := ev.eval(copied.Operands[0]).Sign() != 0
		if empty != (n == 0) {
			t.Fatalf("count %d: empty = %v", n, empty)
		}
		if then := copied.Operands[1]; then.Kind != gotoc.ExprTypecast || then.Operands[0].Name != "b" {
			t.Fatalf("empty branch = %s, want dst", gotoc.FormatExpr(then))
		}
		if els := copied.Operands[2]; els.Kind != gotoc.ExprCall || els.Operands[0].Name != "memmove" {
			t.Fatalf("copy branch = %s, want memmove", gotoc.FormatExpr(els))
		}
	}
}

func TestLowerIntrinsic_WriteBytes(t *testing.T) {
	f := newFixture()
	ev := evaluator{t: t, mm: f.ctx.MachineModel()}
	dst := f.in.Intern(types.MakeRawPtr(f.b.U32, true))
	call := f.call("write_bytes", f.b.Unit, dst, f.b.U8, f.b.Usize)
	call.Args[2] = gotoc.IntConstant(5, gotoc.SizeTT())
	st := f.ctx.LowerIntrinsic(call)

	asserts := st.Asserts()
	if len(asserts) != 2 || asserts[0].Property != gotoc.PropSafetyCheck || asserts[1].Property != gotoc.PropArithmeticOverflow {
		t.Fatalf("asserts = %+v, want alignment then byte count", asserts)
	}
	flat := st.Flatten()
	set := *flat[len(flat)-1].RHS
	if set.Kind != gotoc.ExprCall || set.Operands[0].Name != "memset" || len(set.Operands) != 4 {
		t.Fatalf("call = %s", gotoc.FormatExpr(set))
	}
	if !set.Operands[2].Type.Equal(gotoc.CIntT()) {
		t.Fatalf("fill value has type %s, want int", set.Operands[2].Type)
	}
	if bytes := ev.eval(set.Operands[3]); bytes.Int64() != 20 {
		t.Fatalf("bytes = %s, want 20", bytes)
	}
	if !f.ctx.Symtab().Contains("memset") {
		t.Fatalf("memset not declared")
	}
}

func TestLowerIntrinsic_SizeOfValUnsized(t *testing.T) {
	f := newFixture()
	dyn := f.in.RegisterDyn("demo::Shape")
	slice := f.in.Intern(types.MakeSlice(f.b.U16))
	packet := f.structOf("demo::Packet", types.Repr{}, fld("len", f.b.U32), fld("data", slice))
	wrap := f.structOf("demo::Wrap", types.Repr{}, fld("x", f.b.U32), fld("tail", dyn))
	roundUp := func(n, a int64) int64 { return (n + a - 1) / a * a }
	wrapLayout, err := f.eng.LayoutOf(wrap)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	packetLayout, err := f.eng.LayoutOf(packet)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	wrapTail := int64(wrapLayout.Fields.Offset(1))
	packetTail := int64(packetLayout.Fields.Offset(1))

	cases := []struct {
		name      string
		pointee   types.TypeID
		members   map[string]int64
		size, aln int64
	}{
		{"dyn", dyn, map[string]int64{"size": 12, "align": 4}, 12, 4},
		{"slice", slice, map[string]int64{"len": 5}, 10, 2},
		{"str", f.b.Str, map[string]int64{"len": 7}, 7, 1},
		{"slice tail", packet, map[string]int64{"len": 3}, roundUp(packetTail+6, 4), 4},
		{"dyn tail", wrap, map[string]int64{"size": 13, "align": 8}, roundUp(wrapTail+13, 8), 8},
	}
	for _, tc := range cases {
		ev := evaluator{t: t, mm: f.ctx.MachineModel(), members: tc.members}
		for _, name := range []string{"size_of_val", "min_align_of_val"} {
			st := f.ctx.LowerIntrinsic(f.call(name, f.b.Usize, f.ref(tc.pointee)))
			want := tc.size
			if name == "min_align_of_val" {
				want = tc.aln
			}
			if got := ev.eval(*st.RHS); got.Int64() != want {
				t.Fatalf("%s of %s = %s, want %d", name, tc.name, got, want)
			}
		}
	}
	if f.bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", diagCodes(f.bag))
	}
}

func TestLowerIntrinsic_DiscriminantOfNicheEnum(t *testing.T) {
	f := newFixture()
	e := f.enumOf("demo::N", types.Repr{},
		types.Variant{Name: "A", Fields: []types.Field{fld("0", f.b.Bool)}},
		types.Variant{Name: "B"},
		types.Variant{Name: "C"},
	)
	if enc := f.ctx.EnumEncodingOf(e); enc == nil || enc.Kind != EncNiche || enc.Variant != 0 {
		t.Fatalf("encoding = %+v, want niche with A dataful", enc)
	}
	call := f.call("discriminant_value", f.b.Isize, f.ref(e))
	rhs := *f.ctx.LowerIntrinsic(call).RHS
	// bool leaves 2 and 3 free for B and C
	for tag, want := range map[int64]int64{0: 0, 1: 0, 2: 1, 3: 2, 200: 0} {
		ev := evaluator{t: t, mm: f.ctx.MachineModel(), deref: big.NewInt(tag)}
		if got := ev.eval(rhs); got.Int64() != want {
			t.Fatalf("tag byte %d: discriminant %s, want %d", tag, got, want)
		}
	}
}

// A niche in a signed tag: values below the niche start wrap to large
// unsigned offsets and must decode as the dataful variant.
func TestLowerIntrinsic_DiscriminantOfSignedNiche(t *testing.T) {
	f := newFixture()
	sign := f.enumOf("demo::Sign", types.Repr{},
		types.Variant{Name: "Neg", Discr: -1, HasDiscr: true},
		types.Variant{Name: "Zero", Discr: 0, HasDiscr: true},
		types.Variant{Name: "Pos", Discr: 1, HasDiscr: true},
	)
	opt := f.enumOf("core::option::Option<demo::Sign>", types.Repr{},
		types.Variant{Name: "None"},
		types.Variant{Name: "Some", Fields: []types.Field{fld("0", sign)}},
	)
	enc := f.ctx.EnumEncodingOf(opt)
	if enc == nil || enc.Kind != EncNiche || !enc.TagType.IsSigned() {
		t.Fatalf("encoding = %+v, want a signed niche", enc)
	}
	rhs := *f.ctx.LowerIntrinsic(f.call("discriminant_value", f.b.Isize, f.ref(opt))).RHS
	for tag, want := range map[int64]int64{-1: 1, 0: 1, 1: 1, 2: 0, -128: 1} {
		ev := evaluator{t: t, mm: f.ctx.MachineModel(), deref: big.NewInt(tag)}
		if got := ev.eval(rhs); got.Int64() != want {
			t.Fatalf("tag %d: discriminant %s, want %d", tag, got, want)
		}
	}
}

func TestLowerIntrinsic_AtomicRMWReturnsOldValue(t *testing.T) {
	f := newFixture()
	ptr := f.in.Intern(types.MakeRawPtr(f.b.U32, true))
	call := f.call("atomic_xsub_relaxed", f.b.U32, ptr, f.b.U32)
	call.Fn = "demo::f"
	st := f.ctx.LowerIntrinsic(call)
	if st.Kind != gotoc.StmtAtomicBlock {
		t.Fatalf("stmt = %s, want an atomic block", gotoc.FormatStmt(st))
	}
	flat := st.Flatten()
	if len(flat) != 4 {
		t.Fatalf("got %d statements, want decl, load, store, result", len(flat))
	}
	old := flat[0].LHS.Name
	if old != "demo::f::temp_1" {
		t.Fatalf("temporary = %q, want it scoped by the function", old)
	}
	if sym, ok := f.ctx.Symtab().Lookup(old); !ok || !sym.Type.Equal(gotoc.Unsigned(32)) || sym.PrettyName != "temp_1" {
		t.Fatalf("temporary symbol = %+v", sym)
	}
	if load := flat[1]; load.LHS.Name != old || load.RHS.Kind != gotoc.ExprDereference {
		t.Fatalf("load = %s", gotoc.FormatStmt(load))
	}
	store := flat[2]
	if store.LHS.Kind != gotoc.ExprDereference || store.RHS.BinOp != gotoc.OpMinus || store.RHS.Operands[0].Name != old {
		t.Fatalf("store = %s", gotoc.FormatStmt(store))
	}
	if res := flat[3]; res.LHS.Name != "dest" || res.RHS.Name != old {
		t.Fatalf("result = %s, want the old value", gotoc.FormatStmt(res))
	}
}
