package lower

import (
	"errors"
	"strings"
	"testing"

	"gotolower/internal/diag"
	"gotolower/internal/gotoc"
	"gotolower/internal/layout"
	"gotolower/internal/types"
)

func TestLowerType_RecordGetsTrailingPadding(t *testing.T) {
	f := newFixture()
	rec := f.structOf("demo::Rec", types.Repr{C: true}, fld("a", f.b.I32), fld("b", f.b.Bool))

	got := f.ctx.LowerType(rec)
	if got.Kind != gotoc.TypeStructTag || got.Tag != "demo::Rec" {
		t.Fatalf("LowerType = %s, want struct tag demo::Rec", got)
	}
	body := f.body(t, got)
	names := componentNames(body.Components)
	if strings.Join(names, ",") != "a,b,$pad2" {
		t.Fatalf("components = %v", names)
	}
	if pad := body.Components[2]; !pad.Padding || pad.Bits != 24 {
		t.Fatalf("trailing padding = %+v, want 24 bits", pad)
	}
}

func TestLowerType_OptionOfReferenceMatchesBarePointer(t *testing.T) {
	f := newFixture()
	r := f.ref(f.b.U8)
	opt := f.enumOf("core::option::Option<&u8>", types.Repr{},
		types.Variant{Name: "None"},
		types.Variant{Name: "Some", Fields: []types.Field{fld("0", r)}},
	)
	got := f.ctx.LowerType(opt)
	enc := f.ctx.EnumEncodingOf(opt)
	if enc == nil || enc.Kind != EncNiche || enc.Variant != 1 {
		t.Fatalf("encoding = %+v, want niche on variant 1", enc)
	}
	body := f.body(t, got)
	if len(body.Components) != 1 || !body.Components[0].Type.Equal(f.ctx.LowerType(r)) {
		t.Fatalf("option body = %+v, want the bare pointer", body.Components)
	}
	st := f.ctx.Symtab()
	optBits, _ := st.SizeOfBits(got)
	ptrBits, _ := st.SizeOfBits(f.ctx.LowerType(r))
	if optBits != ptrBits {
		t.Fatalf("size %d, want %d", optBits, ptrBits)
	}
}

func TestLowerType_DirectEnum(t *testing.T) {
	f := newFixture()
	e := f.enumOf("demo::E", types.Repr{},
		types.Variant{Name: "A", Fields: []types.Field{fld("0", f.b.U32)}},
		types.Variant{Name: "B", Fields: []types.Field{fld("0", f.b.U16)}},
		types.Variant{Name: "C", Fields: []types.Field{fld("0", f.b.U8)}},
	)
	got := f.ctx.LowerType(e)
	enc := f.ctx.EnumEncodingOf(e)
	if enc == nil || enc.Kind != EncDirect {
		t.Fatalf("encoding = %+v, want direct", enc)
	}
	body := f.body(t, got)
	if names := componentNames(body.Components); strings.Join(names, ",") != "case,cases" {
		t.Fatalf("components = %v", names)
	}
	if tag := body.Components[0].Type; !tag.Equal(gotoc.Unsigned(8)) {
		t.Fatalf("tag type = %s, want u8", tag)
	}
	cases := f.body(t, body.Components[1].Type)
	if cases.Kind != gotoc.TypeUnion || len(cases.Components) != 3 {
		t.Fatalf("cases = %+v, want union of 3", cases)
	}
	for i, want := range []string{"A", "B", "C"} {
		if cases.Components[i].Name != want {
			t.Fatalf("member %d = %q, want %q", i, cases.Components[i].Name, want)
		}
	}
	if bits, err := f.ctx.Symtab().SizeOfBits(got); err != nil || bits != 64 {
		t.Fatalf("SizeOfBits = %d, %v; want 64", bits, err)
	}
}

// The payload union starts at the smallest first-field offset of any
// variant, even when that leaves a gap after the tag.
func TestLowerType_DirectEnumPayloadStartsAtMinimumOffset(t *testing.T) {
	f := newFixture()
	e := f.enumOf("demo::Gap", types.Repr{},
		types.Variant{Name: "A", Fields: []types.Field{fld("0", f.b.U32)}},
		types.Variant{Name: "B"},
		types.Variant{Name: "C", Fields: []types.Field{fld("0", f.b.U32)}},
	)
	body := f.body(t, f.ctx.LowerType(e))
	if len(body.Components) != 3 {
		t.Fatalf("components = %v", componentNames(body.Components))
	}
	if pad := body.Components[1]; !pad.Padding || pad.Bits != 24 {
		t.Fatalf("gap = %+v, want 24 bits of padding", pad)
	}
	cases := f.body(t, body.Components[2].Type)
	a := f.body(t, cases.Components[0].Type)
	if len(a.Components) != 1 || a.Components[0].Padding {
		t.Fatalf("variant A = %+v, want its field first", a.Components)
	}
	b := f.body(t, cases.Components[1].Type)
	if len(b.Components) != 0 {
		t.Fatalf("variant B = %+v, want no fields", b.Components)
	}
}

func TestLowerType_LayoutFidelity(t *testing.T) {
	f := newFixture()
	b := f.b
	node := f.in.RegisterAdt("demo::Node", types.AdtStruct, types.Repr{}, nil)
	f.in.SetAdtVariants(node, []types.Variant{{Fields: []types.Field{
		fld("next", f.in.Intern(types.MakeRawPtr(node, true))),
		fld("v", b.U8),
	}}})
	un := f.in.RegisterAdt("demo::U", types.AdtUnion, types.Repr{}, nil)
	f.in.SetAdtVariants(un, []types.Variant{{Fields: []types.Field{
		fld("a", b.U16),
		fld("b", f.in.Intern(types.MakeArray(b.U8, 3))),
	}}})
	vec := f.structOf("demo::f32x4", types.Repr{Simd: true},
		fld("0", b.F32), fld("1", b.F32), fld("2", b.F32), fld("3", b.F32))
	dyn := f.in.RegisterDyn("demo::Shape")
	cl := f.in.RegisterClosure("demo::main::{closure#0}", []types.TypeID{b.U8, b.U64}, types.FnSig{Output: b.Unit})

	cases := map[string]types.TypeID{
		"u128":    b.U128,
		"char":    b.Char,
		"usize":   b.Usize,
		"f16":     b.F16,
		"tuple":   f.in.RegisterTuple([]types.TypeID{b.U8, b.U32, b.U16}),
		"array":   f.in.Intern(types.MakeArray(b.U16, 3)),
		"node":    node,
		"union":   un,
		"simd":    vec,
		"slice":   f.ref(f.in.Intern(types.MakeSlice(b.U32))),
		"str":     f.ref(b.Str),
		"dyn":     f.ref(dyn),
		"closure": cl,
		"never":   b.Never,
		"unit":    b.Unit,
	}
	st := f.ctx.Symtab()
	for name, id := range cases {
		l, err := f.eng.LayoutOf(id)
		if err != nil {
			t.Fatalf("%s: layout: %v", name, err)
		}
		bits, err := st.SizeOfBits(f.ctx.LowerType(id))
		if err != nil {
			t.Fatalf("%s: SizeOfBits: %v", name, err)
		}
		if bits != l.Size*8 {
			t.Fatalf("%s: lowered size %d bits, layout %d bytes", name, bits, l.Size)
		}
	}
	if f.bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", diagCodes(f.bag))
	}
}

func TestLowerType_Idempotent(t *testing.T) {
	f := newFixture()
	r := f.ref(f.b.U8)
	opt := f.enumOf("core::option::Option<&u8>", types.Repr{},
		types.Variant{Name: "None"},
		types.Variant{Name: "Some", Fields: []types.Field{fld("0", r)}},
	)
	first := f.ctx.LowerType(opt)
	n := f.ctx.Symtab().Len()
	second := f.ctx.LowerType(opt)
	if !first.Equal(second) || f.ctx.Symtab().Len() != n {
		t.Fatalf("second lowering changed the result: %s vs %s, %d vs %d symbols", first, second, n, f.ctx.Symtab().Len())
	}
	src, ok := f.ctx.SourceOf(first.Tag)
	if !ok || src != opt {
		t.Fatalf("SourceOf(%q) = %d, %v", first.Tag, src, ok)
	}
}

func TestLowerType_MangledNames(t *testing.T) {
	f := newFixture()
	c := f.structOf("demo::C", types.Repr{C: true}, fld("a", f.b.U8))
	rust := f.structOf("demo::R", types.Repr{}, fld("a", f.b.U8))
	if got := f.ctx.MangledName(c); got != "demo::C" {
		t.Fatalf("repr(C) name = %q", got)
	}
	if got := f.ctx.MangledName(rust); !strings.HasPrefix(got, "_") {
		t.Fatalf("rust name = %q, want hashed", got)
	}
	arr := f.ctx.LowerType(f.in.Intern(types.MakeArray(c, 4)))
	if arr.Tag != "[demo::C; 4]" {
		t.Fatalf("array tag = %q", arr.Tag)
	}
	unitArr := f.body(t, f.ctx.LowerType(f.in.Intern(types.MakeArray(f.b.Unit, 4))))
	if len(unitArr.Components) != 0 {
		t.Fatalf("array of unit has fields %v", componentNames(unitArr.Components))
	}
}

type metaOracle struct {
	layout.Oracle
	meta layout.Metadata
}

func (o metaOracle) PointerMetadata(types.TypeID) layout.Metadata { return o.meta }

func TestClassifyPointee(t *testing.T) {
	f := newFixture()
	dyn := f.in.RegisterDyn("demo::Shape")
	cases := []struct {
		meta layout.Metadata
		want PointerKind
	}{
		{layout.Metadata{Kind: layout.MetaWord}, SliceFatPointer},
		{layout.Metadata{Kind: layout.MetaUnit}, ThinPointer},
		{layout.Metadata{Kind: layout.MetaError}, ThinPointer},
		{layout.Metadata{Kind: layout.MetaOther, Tail: dyn}, VtableFatPointer},
	}
	for _, tc := range cases {
		ctx := NewCtx(f.in, metaOracle{Oracle: f.eng, meta: tc.meta})
		if got := ctx.ClassifyPointee(f.b.U8); got != tc.want {
			t.Fatalf("%s metadata: got %s, want %s", tc.meta.Kind, got, tc.want)
		}
	}
}

func TestClassifyPointee_ImpossibleMetadataPanics(t *testing.T) {
	f := newFixture()
	ctx := NewCtx(f.in, metaOracle{Oracle: f.eng, meta: layout.Metadata{Kind: layout.MetaOther, Tail: f.b.U8}})
	defer func() {
		var ie *InternalError
		err, _ := recover().(error)
		if !errors.As(err, &ie) {
			t.Fatalf("recovered %v, want *InternalError", err)
		}
	}()
	ctx.ClassifyPointee(f.b.U8)
}

func TestLowerType_VtableFatPointer(t *testing.T) {
	f := newFixture()
	self := f.ref(f.b.U8)
	dyn := f.in.RegisterDyn("demo::Shape")
	f.in.SetDynMethods(dyn, []types.DynMethod{
		{Name: "area", Sig: types.FnSig{Inputs: []types.TypeID{self}, Output: f.b.F64}},
		{Name: "new", Vacant: true},
		{Name: "scale", Sig: types.FnSig{Inputs: []types.TypeID{self, f.b.F64}, Output: f.b.Unit}},
	}, nil)

	fat := f.body(t, f.ctx.LowerType(f.ref(dyn)))
	if names := componentNames(fat.Components); strings.Join(names, ",") != "data,vtable" {
		t.Fatalf("fat pointer = %v", names)
	}
	vt := f.body(t, fat.Components[1].Type.Pointee())
	if vt.Tag != "demo::Shape::vtable" {
		t.Fatalf("vtable tag = %q", vt.Tag)
	}
	if names := componentNames(vt.Components); strings.Join(names, ",") != "drop,size,align,3_area,5_scale" {
		t.Fatalf("vtable fields = %v", names)
	}
	area := vt.Components[3].Type.Pointee()
	if len(area.Params) != 1 || !area.Params[0].Type.Equal(gotoc.VoidPointer()) {
		t.Fatalf("method receiver = %+v, want void*", area.Params)
	}
}

// A trait object value is zero-sized trait data, not a fat pointer, so a
// struct with a dyn tail keeps the size of its sized prefix.
func TestLowerType_DynTailedStruct(t *testing.T) {
	f := newFixture()
	dyn := f.in.RegisterDyn("demo::Shape")
	wrap := f.structOf("demo::Wrap", types.Repr{}, fld("x", f.b.U32), fld("tail", dyn))

	l, err := f.eng.LayoutOf(wrap)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	st := f.ctx.Symtab()
	bits, err := st.SizeOfBits(f.ctx.LowerType(wrap))
	if err != nil || bits != l.Size*8 {
		t.Fatalf("SizeOfBits = %d, %v; layout %d bytes", bits, err, l.Size)
	}
	data := f.ctx.LowerType(dyn)
	if body := f.body(t, data); len(body.Components) != 0 {
		t.Fatalf("trait data has fields %v", componentNames(body.Components))
	}
	if bits, err := st.SizeOfBits(data); err != nil || bits != 0 {
		t.Fatalf("trait data size = %d, %v", bits, err)
	}

	fat := f.body(t, f.ctx.LowerType(f.ref(dyn)))
	if !fat.Components[0].Type.Equal(data.ToPointer()) {
		t.Fatalf("data field = %s, want pointer to trait data", fat.Components[0].Type)
	}
	vt := f.body(t, fat.Components[1].Type.Pointee())
	drop := vt.Components[0].Type.Pointee()
	if len(drop.Params) != 1 || !drop.Params[0].Type.Equal(data.ToPointer()) {
		t.Fatalf("drop = %s, want it to take the trait data", vt.Components[0].Type)
	}
	if f.bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", diagCodes(f.bag))
	}
}

// methodsFirstOracle lists the vtable methods ahead of drop, size and align.
type methodsFirstOracle struct {
	layout.Oracle
}

func (o methodsFirstOracle) VtableEntries(dyn types.TypeID) []layout.VtableEntry {
	var methods, rest []layout.VtableEntry
	for _, e := range o.Oracle.VtableEntries(dyn) {
		if e.Kind == layout.EntryMethod {
			methods = append(methods, e)
		} else {
			rest = append(rest, e)
		}
	}
	return append(methods, rest...)
}

func TestLowerType_VtablePrefixIsFixed(t *testing.T) {
	f := newFixture()
	dyn := f.in.RegisterDyn("demo::Shape")
	f.in.SetDynMethods(dyn, []types.DynMethod{
		{Name: "area", Sig: types.FnSig{Inputs: []types.TypeID{f.ref(f.b.U8)}, Output: f.b.F64}},
	}, nil)
	ctx := NewCtx(f.in, methodsFirstOracle{Oracle: f.eng})
	fat, ok := ctx.Symtab().AggregateBody(ctx.LowerType(f.ref(dyn)))
	if !ok {
		t.Fatalf("fat pointer not declared")
	}
	vt, ok := ctx.Symtab().AggregateBody(fat.Components[1].Type.Pointee())
	if !ok {
		t.Fatalf("vtable not declared")
	}
	if names := componentNames(vt.Components); strings.Join(names, ",") != "drop,size,align,0_area" {
		t.Fatalf("vtable fields = %v", names)
	}
	if !vt.Components[1].Type.Equal(gotoc.SizeTT()) || !vt.Components[2].Type.Equal(gotoc.SizeTT()) {
		t.Fatalf("size/align = %s, %s", vt.Components[1].Type, vt.Components[2].Type)
	}
}

func TestLowerType_SliceFatPointerNames(t *testing.T) {
	f := newFixture()
	str := f.ctx.LowerType(f.ref(f.b.Str))
	if str.Tag != "str" {
		t.Fatalf("&str tag = %q", str.Tag)
	}
	slice := f.in.Intern(types.MakeSlice(f.b.U16))
	body := f.body(t, f.ctx.LowerType(f.ref(slice)))
	if !body.Components[0].Type.Equal(gotoc.Unsigned(16).ToPointer()) || !body.Components[1].Type.Equal(gotoc.SizeTT()) {
		t.Fatalf("&[u16] = %+v", body.Components)
	}
	tail := f.structOf("demo::Packet", types.Repr{}, fld("len", f.b.U32), fld("data", slice))
	got := f.ctx.LowerType(f.ref(tail))
	if got.Tag != "&"+f.ctx.MangledName(tail) {
		t.Fatalf("&Packet tag = %q", got.Tag)
	}
}

func TestLowerFnSig_ClosureUntupling(t *testing.T) {
	f := newFixture()
	cl := f.in.RegisterClosure("demo::main::{closure#0}", []types.TypeID{f.b.U32},
		types.FnSig{Inputs: []types.TypeID{f.b.U8, f.b.U16}, Output: f.b.U32})
	code := f.ctx.LowerFnSig(f.ctx.ClosureSig(cl))
	if len(code.Params) != 3 {
		t.Fatalf("params = %+v, want env + 2", code.Params)
	}
	if !code.Params[0].Type.Equal(f.ctx.LowerType(cl).ToPointer()) {
		t.Fatalf("env param = %s", code.Params[0].Type)
	}
	if !code.Params[1].Type.Equal(gotoc.Unsigned(8)) || !code.Params[2].Type.Equal(gotoc.Unsigned(16)) {
		t.Fatalf("args = %s, %s", code.Params[1].Type, code.Params[2].Type)
	}
	if !code.ReturnType().Equal(gotoc.Unsigned(32)) {
		t.Fatalf("return = %s", code.ReturnType())
	}
}

func TestLowerFnType_SpreadAndShim(t *testing.T) {
	f := newFixture()
	fnItem := f.in.RegisterFnDef("demo::callback", types.FnSig{Output: f.b.Unit})
	args := f.in.RegisterTuple([]types.TypeID{f.b.U8, f.b.I64})
	decl := FnDecl{
		Name:       "demo::call",
		Sig:        types.FnSig{Inputs: []types.TypeID{f.b.U32, fnItem, args}, Output: f.b.Bool},
		Params:     []string{"self", "f", "args"},
		SpreadArg:  3,
		VtableShim: true,
	}
	code := f.ctx.LowerFnType(decl)
	var idents []string
	for _, p := range code.Params {
		idents = append(idents, p.Identifier)
	}
	if strings.Join(idents, ",") != "demo::call::self,demo::call::spread0,demo::call::spread1" {
		t.Fatalf("params = %v", idents)
	}
	if !code.Params[0].Type.Equal(gotoc.Unsigned(32).ToPointer()) {
		t.Fatalf("shim receiver = %s", code.Params[0].Type)
	}
	if !code.ReturnType().Equal(gotoc.CBoolT()) {
		t.Fatalf("return = %s", code.ReturnType())
	}
}

func TestLowerType_IncompleteAdtReportsOnce(t *testing.T) {
	f := newFixture()
	id := f.in.RegisterAdt("demo::Later", types.AdtStruct, types.Repr{}, nil)
	f.ctx.LowerType(id)
	f.ctx.LowerType(f.ref(id))
	codes := diagCodes(f.bag)
	if len(codes) != 1 || codes[0] != diag.LayIncompleteType {
		t.Fatalf("diagnostics = %v, want one %s", codes, diag.LayIncompleteType)
	}
	if err := f.ctx.Finish(); !errors.Is(err, ErrUnitAborted) {
		t.Fatalf("Finish = %v", err)
	}
}

func TestLowerType_ForeignIsIncomplete(t *testing.T) {
	f := newFixture()
	ext := f.in.RegisterForeign("ffi::Opaque")
	got := f.ctx.LowerType(ext)
	sym, ok := f.ctx.Symtab().Lookup(gotoc.TagName(got.Tag))
	if !ok || sym.Type.Kind != gotoc.TypeIncompleteStruct {
		t.Fatalf("foreign symbol = %+v", sym)
	}
	if kind := f.ctx.ClassifyPointee(ext); kind != ThinPointer {
		t.Fatalf("pointer to foreign = %s", kind)
	}
}
