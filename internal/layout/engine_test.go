package layout_test

import (
	"errors"
	"testing"

	"gotolower/internal/layout"
	"gotolower/internal/types"
)

func newEngine() (*layout.LayoutEngine, *types.Interner) {
	in := types.NewInterner()
	return layout.New(layout.X86_64LinuxGNU(), in), in
}

func mustLayout(t *testing.T, e *layout.LayoutEngine, id types.TypeID) *layout.Layout {
	t.Helper()
	l, err := e.LayoutOf(id)
	if err != nil {
		t.Fatalf("LayoutOf(%s): %v", types.Label(e.Types, id), err)
	}
	return l
}

func structOf(in *types.Interner, path string, repr types.Repr, fields ...types.Field) types.TypeID {
	id := in.RegisterAdt(path, types.AdtStruct, repr, nil)
	in.SetAdtVariants(id, []types.Variant{{Fields: fields}})
	return id
}

func TestLayoutEngine_ReordersFieldsByAlignment(t *testing.T) {
	e, in := newEngine()
	b := in.Builtins()
	s := structOf(in, "demo::S", types.Repr{},
		types.Field{Name: "a", Type: b.U8},
		types.Field{Name: "b", Type: b.U32},
		types.Field{Name: "c", Type: b.U16},
	)
	l := mustLayout(t, e, s)
	if l.Size != 8 || l.Align != 4 {
		t.Fatalf("size/align = %d/%d, want 8/4", l.Size, l.Align)
	}
	want := []int{6, 0, 4}
	for i, off := range want {
		if l.Fields.Offsets[i] != off {
			t.Fatalf("field %d offset = %d, want %d", i, l.Fields.Offsets[i], off)
		}
	}
	order := l.Fields.IndexByIncreasingOffset()
	if order[0] != 1 || order[1] != 2 || order[2] != 0 {
		t.Fatalf("unexpected offset order %v", order)
	}
}

func TestLayoutEngine_ReprCKeepsDeclarationOrder(t *testing.T) {
	e, in := newEngine()
	b := in.Builtins()
	s := structOf(in, "demo::C", types.Repr{C: true},
		types.Field{Name: "a", Type: b.U8},
		types.Field{Name: "b", Type: b.U32},
		types.Field{Name: "c", Type: b.U16},
	)
	l := mustLayout(t, e, s)
	if l.Size != 12 || l.Fields.Offsets[0] != 0 || l.Fields.Offsets[1] != 4 || l.Fields.Offsets[2] != 8 {
		t.Fatalf("unexpected repr(C) layout: size=%d offsets=%v", l.Size, l.Fields.Offsets)
	}
}

func TestLayoutEngine_PackedHasNoPadding(t *testing.T) {
	e, in := newEngine()
	b := in.Builtins()
	s := structOf(in, "demo::P", types.Repr{Packed: true},
		types.Field{Name: "a", Type: b.U8},
		types.Field{Name: "b", Type: b.U32},
	)
	l := mustLayout(t, e, s)
	if l.Size != 5 || l.Align != 1 || l.Fields.Offsets[1] != 1 {
		t.Fatalf("unexpected packed layout: %+v", l)
	}
}

func TestLayoutEngine_RecursiveStructReportsCycle(t *testing.T) {
	e, in := newEngine()
	node := in.RegisterAdt("demo::Node", types.AdtStruct, types.Repr{}, nil)
	in.SetAdtVariants(node, []types.Variant{{Fields: []types.Field{{Name: "next", Type: node}}}})

	_, err := e.LayoutOf(node)
	if err == nil {
		t.Fatal("expected recursive layout error, got nil")
	}
	var lerr *layout.LayoutError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected *layout.LayoutError, got %T (%v)", err, err)
	}
	if lerr.Kind != layout.LayoutErrRecursiveUnsized {
		t.Fatalf("expected LayoutErrRecursiveUnsized, got kind=%d (%v)", lerr.Kind, lerr)
	}
	if len(lerr.Cycle) == 0 {
		t.Fatalf("expected non-empty cycle path, got %+v", lerr)
	}
}

func TestLayoutEngine_RecursionThroughPointerIsFine(t *testing.T) {
	e, in := newEngine()
	node := in.RegisterAdt("demo::List", types.AdtStruct, types.Repr{}, nil)
	ptr := in.Intern(types.MakeRawPtr(node, false))
	in.SetAdtVariants(node, []types.Variant{{Fields: []types.Field{
		{Name: "value", Type: in.Builtins().I32},
		{Name: "next", Type: ptr},
	}}})
	l := mustLayout(t, e, node)
	if l.Size != 16 {
		t.Fatalf("size = %d, want 16", l.Size)
	}
}

func TestLayoutEngine_OptionOfReferenceUsesNiche(t *testing.T) {
	e, in := newEngine()
	ref := in.Intern(types.MakeRef(in.Builtins().U8, false))
	opt := in.RegisterAdt("core::option::Option<&u8>", types.AdtEnum, types.Repr{}, []types.TypeID{ref})
	in.SetAdtVariants(opt, []types.Variant{
		{Name: "None"},
		{Name: "Some", Fields: []types.Field{{Name: "0", Type: ref}}},
	})
	l := mustLayout(t, e, opt)
	if l.Variants.Kind != layout.VariantsMultiple || l.Variants.Encoding != layout.EncodingNiche {
		t.Fatalf("expected niche encoding, got %+v", l.Variants)
	}
	if l.Variants.Dataful != 1 || l.Variants.NicheValue != 0 || l.Size != 8 {
		t.Fatalf("unexpected niche layout: dataful=%d value=%d size=%d", l.Variants.Dataful, l.Variants.NicheValue, l.Size)
	}
}

func TestLayoutEngine_OptionOfBoolReservesValueTwo(t *testing.T) {
	e, in := newEngine()
	b := in.Builtins()
	opt := in.RegisterAdt("core::option::Option<bool>", types.AdtEnum, types.Repr{}, []types.TypeID{b.Bool})
	in.SetAdtVariants(opt, []types.Variant{
		{Name: "None"},
		{Name: "Some", Fields: []types.Field{{Name: "0", Type: b.Bool}}},
	})
	l := mustLayout(t, e, opt)
	if l.Variants.Encoding != layout.EncodingNiche || l.Variants.NicheValue != 2 || l.Size != 1 {
		t.Fatalf("unexpected layout: %+v size=%d", l.Variants, l.Size)
	}
	if l.Niche == nil || l.Niche.Available() != 253 {
		t.Fatalf("expected 253 remaining niche values, got %v", l.Niche)
	}
}

func TestLayoutEngine_ThreeDataVariantsUseDirectTag(t *testing.T) {
	e, in := newEngine()
	b := in.Builtins()
	en := in.RegisterAdt("demo::Shape", types.AdtEnum, types.Repr{}, nil)
	in.SetAdtVariants(en, []types.Variant{
		{Name: "A", Fields: []types.Field{{Name: "0", Type: b.U8}}},
		{Name: "B", Fields: []types.Field{{Name: "0", Type: b.U32}}},
		{Name: "C", Fields: []types.Field{{Name: "0", Type: b.U16}}},
	})
	l := mustLayout(t, e, en)
	if l.Variants.Encoding != layout.EncodingDirect || l.Variants.Tag.Prim.Size != 1 || l.Variants.Tag.Prim.Signed {
		t.Fatalf("expected u8 direct tag, got %+v", l.Variants.Tag)
	}
	if l.Size != 8 || l.Align != 4 {
		t.Fatalf("size/align = %d/%d, want 8/4", l.Size, l.Align)
	}
	if got := l.Variants.Layouts[1].Fields.Offsets[0]; got != 4 {
		t.Fatalf("variant B payload offset = %d, want 4", got)
	}
	if got := l.Variants.Layouts[0].Fields.Offsets[0]; got != 1 {
		t.Fatalf("variant A payload offset = %d, want 1", got)
	}
}

func TestLayoutEngine_ReprCEnumUsesCInt(t *testing.T) {
	e, in := newEngine()
	en := in.RegisterAdt("demo::Color", types.AdtEnum, types.Repr{C: true}, nil)
	in.SetAdtVariants(en, []types.Variant{{Name: "Red"}, {Name: "Green"}})
	l := mustLayout(t, e, en)
	if l.Variants.Tag.Prim.Size != 4 || l.Size != 4 {
		t.Fatalf("expected c_int tag, got %+v size=%d", l.Variants.Tag.Prim, l.Size)
	}
}

func TestLayoutEngine_UninhabitedVariantCollapsesToSingle(t *testing.T) {
	e, in := newEngine()
	b := in.Builtins()
	res := in.RegisterAdt("core::result::Result<u32, !>", types.AdtEnum, types.Repr{}, nil)
	in.SetAdtVariants(res, []types.Variant{
		{Name: "Ok", Fields: []types.Field{{Name: "0", Type: b.U32}}},
		{Name: "Err", Fields: []types.Field{{Name: "0", Type: b.Never}}},
	})
	l := mustLayout(t, e, res)
	if l.Variants.Kind != layout.VariantsSingle || l.Variants.Index != 0 || l.Size != 4 {
		t.Fatalf("unexpected layout %+v size=%d", l.Variants, l.Size)
	}
}

func TestLayoutEngine_PointerMetadata(t *testing.T) {
	e, in := newEngine()
	b := in.Builtins()
	slice := in.Intern(types.MakeSlice(b.U8))
	dyn := in.RegisterDyn("core::fmt::Debug")
	tailed := structOf(in, "demo::Tailed", types.Repr{},
		types.Field{Name: "len", Type: b.Usize},
		types.Field{Name: "data", Type: slice},
	)
	cases := []struct {
		pointee types.TypeID
		want    layout.MetadataKind
	}{
		{b.U8, layout.MetaUnit},
		{slice, layout.MetaWord},
		{b.Str, layout.MetaWord},
		{dyn, layout.MetaOther},
		{tailed, layout.MetaWord},
		{in.RegisterForeign("ffi::Opaque"), layout.MetaUnit},
	}
	for _, tc := range cases {
		got := e.PointerMetadata(tc.pointee)
		if got.Kind != tc.want {
			t.Fatalf("PointerMetadata(%s) = %v, want %v", types.Label(in, tc.pointee), got.Kind, tc.want)
		}
	}
	fat := mustLayout(t, e, in.Intern(types.MakeRef(tailed, false)))
	if fat.Size != 16 {
		t.Fatalf("fat pointer size = %d, want 16", fat.Size)
	}
	if e.IsSized(tailed) {
		t.Fatalf("struct with slice tail must be unsized")
	}
}

func TestLayoutEngine_VtableEntries(t *testing.T) {
	e, in := newEngine()
	b := in.Builtins()
	self := in.Intern(types.MakeRef(b.U8, false))
	base := in.RegisterDyn("demo::Base")
	in.SetDynMethods(base, []types.DynMethod{{Name: "id", Sig: types.FnSig{Inputs: []types.TypeID{self}, Output: b.U32}}}, nil)
	other := in.RegisterDyn("demo::Other")
	in.SetDynMethods(other, []types.DynMethod{{Name: "other", Sig: types.FnSig{Inputs: []types.TypeID{self}, Output: b.Unit}}}, nil)
	dyn := in.RegisterDyn("demo::Shape")
	in.SetDynMethods(dyn, []types.DynMethod{
		{Name: "area", Sig: types.FnSig{Inputs: []types.TypeID{self}, Output: b.F64}},
		{Name: "new", Vacant: true},
	}, []types.TypeID{base, other})

	got := e.VtableEntries(dyn)
	want := []layout.VtableEntryKind{
		layout.EntryDropInPlace, layout.EntrySize, layout.EntryAlign,
		layout.EntryMethod, layout.EntryVacant,
		layout.EntryMethod,
		layout.EntryTraitVPtr, layout.EntryMethod,
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Kind != want[i] {
			t.Fatalf("entry %d = %v, want %v", i, got[i].Kind, want[i])
		}
	}
	if got[3].Name != "area" || got[5].Name != "id" || got[7].Name != "other" {
		t.Fatalf("unexpected method order: %+v", got)
	}
}

func TestLayoutEngine_ArraySizeOverflow(t *testing.T) {
	e, in := newEngine()
	arr := in.Intern(types.MakeArray(in.Builtins().U64, 1<<62))
	_, err := e.LayoutOf(arr)
	var lerr *layout.LayoutError
	if !errors.As(err, &lerr) || lerr.Kind != layout.LayoutErrSizeOverflow {
		t.Fatalf("expected size overflow, got %v", err)
	}
}

func TestLayoutEngine_SimdVector(t *testing.T) {
	e, in := newEngine()
	b := in.Builtins()
	v := structOf(in, "demo::f32x4", types.Repr{Simd: true},
		types.Field{Name: "0", Type: b.F32},
		types.Field{Name: "1", Type: b.F32},
		types.Field{Name: "2", Type: b.F32},
		types.Field{Name: "3", Type: b.F32},
	)
	l := mustLayout(t, e, v)
	if l.Vector == nil || l.Vector.Count != 4 || l.Vector.Elem != b.F32 || l.Size != 16 || l.Align != 16 {
		t.Fatalf("unexpected simd layout: %+v", l)
	}
}
