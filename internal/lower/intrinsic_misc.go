package lower

import (
	"fmt"

	"gotolower/internal/gotoc"
	"gotolower/internal/types"
)

func (c *Ctx) transmute(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 1) {
		return c.placeholder(call)
	}
	if c.layoutOf(call.Ret).Uninhabited {
		return gotoc.FatalError(gotoc.PropSafetyCheck, "transmuting to uninhabited type has undefined behavior", call.Span)
	}
	return c.toPlace(call, call.Args[0].Transmute(c.retType(call)))
}

// typeConstant folds intrinsics whose value only depends on the type.
func (c *Ctx) typeConstant(call IntrinsicCall) gotoc.Stmt {
	t, ok := c.genericArg(call, -1)
	if !ok {
		return c.placeholder(call)
	}
	retT := c.retType(call)
	var v gotoc.Expr
	switch call.Name {
	case "size_of":
		v = gotoc.IntConstant(int64(c.layoutOf(t).Size), retT)
	case "min_align_of", "pref_align_of":
		v = gotoc.IntConstant(int64(c.layoutOf(t).Align), retT)
	case "needs_drop":
		// drop glue is not modelled
		v = gotoc.False().Cast(retT)
	case "type_id":
		v = gotoc.UintConstant(c.Types.Fingerprint(t), retT)
	default: // type_name
		name := c.label(t)
		return c.storeStruct(call, gotoc.StringConstant(name), gotoc.IntConstant(int64(len(name)), gotoc.SizeTT()))
	}
	return c.toPlace(call, v)
}

func (c *Ctx) sizeOfVal(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 1) {
		return c.placeholder(call)
	}
	t, ok := c.genericArg(call, 0)
	if !ok {
		return c.placeholder(call)
	}
	size, align := c.sizeAndAlignOfDst(t, call.Args[0])
	if call.Name == "size_of_val" {
		return c.toPlace(call, size.Cast(c.retType(call)))
	}
	return c.toPlace(call, align.Cast(c.retType(call)))
}

// sizeAndAlignOfDst computes the size and alignment of the value ptr
// points to. Sized types are constants; unsized ones read the metadata of
// the fat pointer.
func (c *Ctx) sizeAndAlignOfDst(t types.TypeID, ptr gotoc.Expr) (gotoc.Expr, gotoc.Expr) {
	usize := gotoc.SizeTT()
	l := c.layoutOf(t)
	if l.Sized {
		return gotoc.IntConstant(int64(l.Size), usize), gotoc.IntConstant(int64(l.Align), usize)
	}
	tt, _ := c.Types.Lookup(t)
	switch tt.Kind {
	case types.KindDynamic:
		vtable := ptr.Member("vtable", c.symtab).Dereference()
		return vtable.Member("size", c.symtab), vtable.Member("align", c.symtab)
	case types.KindSlice, types.KindStr:
		elemSize := 1
		if tt.Kind == types.KindSlice {
			elemSize = c.layoutOf(tt.Elem).Size
		}
		n := ptr.Member("len", c.symtab)
		return n.Mul(gotoc.IntConstant(int64(elemSize), usize)), gotoc.IntConstant(int64(l.Align), usize)
	case types.KindAdt:
		info, _ := c.Types.AdtInfo(t)
		_, tys := variantFields(info, 0)
		if len(tys) == 0 {
			break
		}
		last := len(tys) - 1
		tailSize, tailAlign := c.sizeAndAlignOfDst(tys[last], ptr)
		sizedAlign := gotoc.IntConstant(int64(l.Align), usize)
		size := gotoc.IntConstant(int64(l.Fields.Offset(last)), usize).Plus(tailSize)
		align := sizedAlign
		if !info.Repr.Packed {
			align = sizedAlign.Gt(tailAlign).Ternary(sizedAlign, tailAlign)
		}
		// round size up to align
		one := gotoc.IntConstant(1, usize)
		rounded := size.Plus(align.Minus(one)).BitAnd(align.Minus(one).BitNot())
		return rounded, align
	}
	c.internalf("size of value", t, "unsized type without metadata")
	return gotoc.Expr{}, gotoc.Expr{}
}

// assertValid checks that values of T may be created without
// initialization. Zero bits are valid unless a niche excludes them; any
// restricted scalar forbids leaving the value uninitialized.
func (c *Ctx) assertValid(call IntrinsicCall) gotoc.Stmt {
	t, ok := c.genericArg(call, -1)
	if !ok {
		return c.placeholder(call)
	}
	l := c.layoutOf(t)
	name := c.label(t)
	if l.Uninhabited {
		return gotoc.FatalError(gotoc.PropSafetyCheck, fmt.Sprintf("attempted to instantiate uninhabited type `%s`", name), call.Span)
	}
	switch call.Name {
	case "assert_zero_valid":
		if l.Niche != nil && !l.Niche.Scalar.Contains(0) {
			return gotoc.FatalError(gotoc.PropSafetyCheck,
				fmt.Sprintf("attempted to zero-initialize type `%s`, which is invalid", name), call.Span)
		}
	case "assert_mem_uninitialized_valid", "assert_uninit_valid":
		if l.Niche != nil {
			return gotoc.FatalError(gotoc.PropSafetyCheck,
				fmt.Sprintf("attempted to leave type `%s` uninitialized, which is invalid", name), call.Span)
		}
	}
	return gotoc.Skip(call.Span)
}

// discriminantValue reads the discriminant of *ptr according to the
// enum's encoding. Niche-encoded variants are numbered by their index.
func (c *Ctx) discriminantValue(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 1) {
		return c.placeholder(call)
	}
	t, ok := c.genericArg(call, 0)
	if !ok {
		return c.placeholder(call)
	}
	retT := c.retType(call)
	enc := c.EnumEncodingOf(t)
	info, _ := c.Types.AdtInfo(t)
	if enc == nil || info == nil {
		return c.toPlace(call, gotoc.IntConstant(0, retT))
	}
	value := call.Args[0].Dereference()
	discr := func(v int) gotoc.Expr {
		if v >= 0 && v < len(info.Variants) {
			return gotoc.IntConstant(info.Variants[v].Discr, retT)
		}
		return gotoc.IntConstant(int64(v), retT)
	}
	switch enc.Kind {
	case EncSingle:
		return c.toPlace(call, discr(enc.Variant))
	case EncDirect:
		return c.toPlace(call, value.Member("case", c.symtab).Cast(retT))
	}

	l := c.layoutOf(t)
	v := l.Variants
	bytePtr := value.AddressOf().Cast(gotoc.Unsigned(8).ToPointer())
	niche := bytePtr.Plus(gotoc.IntConstant(int64(v.TagOffset), gotoc.SizeTT())).
		Cast(enc.TagType.ToPointer()).Dereference()
	// relative is compared unsigned: below NicheValue it wraps past the range
	relType := gotoc.Unsigned(c.mm.Width(enc.TagType))
	relative := niche.Minus(gotoc.UintConstant(v.NicheValue, enc.TagType)).Cast(relType)
	isNiche := relative.Le(gotoc.UintConstant(uint64(v.NicheEnd-v.NicheStart), relType))
	return c.toPlace(call, isNiche.Ternary(
		relative.Cast(retT).Plus(gotoc.IntConstant(int64(v.NicheStart), retT)),
		discr(v.Dataful),
	))
}

func (c *Ctx) ptrGuaranteedCmp(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 2) {
		return c.placeholder(call)
	}
	a, b := call.Args[0], call.Args[1]
	retT := c.retType(call)
	switch call.Name {
	case "ptr_guaranteed_eq":
		return c.toPlace(call, a.Eq(b).Cast(retT))
	case "ptr_guaranteed_ne":
		return c.toPlace(call, a.Neq(b).Cast(retT))
	}
	return c.toPlace(call, a.Eq(b).Ternary(gotoc.IntConstant(1, retT), gotoc.IntConstant(0, retT)))
}

// ptrOffsetFrom is the distance between two pointers in elements.
func (c *Ctx) ptrOffsetFrom(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 2) {
		return c.placeholder(call)
	}
	t, ok := c.genericArg(call, 0)
	if !ok {
		return c.placeholder(call)
	}
	size := c.layoutOf(t).Size
	if size == 0 {
		return gotoc.FatalError(gotoc.PropSafetyCheck, fmt.Sprintf("%s of a zero-sized type", call.Name), call.Span)
	}
	ssize := gotoc.SSizeTT()
	diff := call.Args[0].Cast(ssize).SubOverflow(call.Args[1].Cast(ssize))
	stmts := []gotoc.Stmt{
		gotoc.Assert(diff.Overflowed.Not(), gotoc.PropArithmeticOverflow,
			"attempt to compute offset in bytes which would overflow an `isize`", call.Span),
	}
	if call.Name == "ptr_offset_from_unsigned" {
		stmts = append(stmts, gotoc.AssertAssume(diff.Result.Ge(gotoc.IntConstant(0, ssize)), gotoc.PropSafetyCheck,
			"attempt to compute unsigned offset with negative distance", call.Span))
	}
	elems := diff.Result.Div(gotoc.IntConstant(int64(size), ssize))
	stmts = append(stmts, c.toPlace(call, elems.Cast(c.retType(call))))
	return gotoc.Block(stmts, call.Span)
}

// vtableField reads size or align from a vtable pointer: the slots after
// drop_in_place.
func (c *Ctx) vtableField(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 1) {
		return c.placeholder(call)
	}
	slot := int64(1)
	if call.Name == "vtable_align" {
		slot = 2
	}
	words := call.Args[0].Cast(gotoc.SizeTT().ToPointer())
	return c.toPlace(call, words.Index(gotoc.IntConstant(slot, gotoc.SizeTT())).Cast(c.retType(call)))
}
