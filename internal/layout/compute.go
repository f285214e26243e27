package layout

import (
	"fmt"
	"math"
	"math/bits"
	"sort"

	"fortio.org/safecast"

	"gotolower/internal/types"
)

func (e *LayoutEngine) computeLayout(id types.TypeID, state *layoutState) (*Layout, *LayoutError) {
	tt, ok := e.Types.Lookup(id)
	if !ok {
		return zeroLayout(), &LayoutError{Kind: LayoutErrUnknownType, Type: id}
	}

	switch tt.Kind {
	case types.KindNever:
		l := zeroLayout()
		l.Uninhabited = true
		return l, nil

	case types.KindBool:
		return scalarLayout(Scalar{Prim: Primitive{Kind: PrimInt, Size: 1}, ValidStart: 0, ValidEnd: 1}, 1), nil

	case types.KindChar:
		return scalarLayout(Scalar{Prim: Primitive{Kind: PrimInt, Size: 4}, ValidStart: 0, ValidEnd: 0x10FFFF}, 4), nil

	case types.KindInt, types.KindUint:
		size := e.intSize(tt.Width)
		p := Primitive{Kind: PrimInt, Size: size, Signed: tt.Kind == types.KindInt}
		return scalarLayout(fullScalar(p), e.intAlign(size)), nil

	case types.KindFloat:
		size := int(tt.Width) / 8
		align := size
		if size == 16 {
			align = e.target.F128Align
		}
		return scalarLayout(fullScalar(Primitive{Kind: PrimFloat, Size: size}), align), nil

	case types.KindStr:
		return &Layout{Size: 0, Align: 1, Fields: FieldsShape{Kind: FieldsArray, Stride: 1}}, nil

	case types.KindSlice:
		el, err := e.layoutOf(tt.Elem, state)
		if err != nil {
			return zeroLayout(), err
		}
		return &Layout{Size: 0, Align: el.Align, Fields: FieldsShape{Kind: FieldsArray, Stride: el.Size}}, nil

	case types.KindArray:
		return e.arrayLayout(id, tt, state)

	case types.KindTuple:
		info, _ := e.Types.TupleInfo(id)
		if info == nil {
			return zeroLayout(), nil
		}
		return e.univariantOf(id, info.Elems, types.Repr{}, state)

	case types.KindClosure:
		info, _ := e.Types.ClosureInfo(id)
		if info == nil {
			return zeroLayout(), nil
		}
		return e.univariantOf(id, info.Upvars, types.Repr{}, state)

	case types.KindCoroutine:
		info, _ := e.Types.CoroutineInfo(id)
		if info == nil {
			return zeroLayout(), nil
		}
		return e.univariantOf(id, info.Upvars, types.Repr{}, state)

	case types.KindFnDef:
		return zeroLayout(), nil

	case types.KindFnPtr:
		return e.pointerLayout(true, MetaUnit), nil

	case types.KindRef, types.KindRawPtr:
		meta := e.PointerMetadata(tt.Elem)
		return e.pointerLayout(tt.Kind == types.KindRef, meta.Kind), nil

	case types.KindDynamic, types.KindForeign:
		return &Layout{Size: 0, Align: 1, Fields: FieldsShape{Kind: FieldsArbitrary}}, nil

	case types.KindAdt:
		info, _ := e.Types.AdtInfo(id)
		if info == nil {
			return zeroLayout(), &LayoutError{Kind: LayoutErrUnknownType, Type: id}
		}
		if !info.Complete {
			return zeroLayout(), &LayoutError{Kind: LayoutErrIncomplete, Type: id, Label: info.Path}
		}
		switch info.Kind {
		case types.AdtUnion:
			return e.unionLayout(id, info, state)
		case types.AdtEnum:
			return e.enumLayout(id, info, state)
		default:
			if info.Repr.Simd {
				return e.simdLayout(id, info, state)
			}
			var fields []types.TypeID
			if len(info.Variants) > 0 {
				for _, f := range info.Variants[0].Fields {
					fields = append(fields, f.Type)
				}
			}
			return e.univariantOf(id, fields, info.Repr, state)
		}

	default:
		return zeroLayout(), &LayoutError{Kind: LayoutErrUnknownType, Type: id}
	}
}

func (e *LayoutEngine) intSize(w types.Width) int {
	if w == types.WidthPtr {
		return e.target.PtrSize
	}
	return int(w) / 8
}

func (e *LayoutEngine) intAlign(size int) int {
	if size == 16 {
		return e.target.I128Align
	}
	return size
}

func scalarLayout(s Scalar, align int) *Layout {
	l := &Layout{
		Size:   s.Prim.Size,
		Align:  align,
		Sized:  true,
		Fields: FieldsShape{Kind: FieldsPrimitive},
		Scalar: &s,
	}
	if s.Available() > 0 {
		l.Niche = &Niche{Offset: 0, Scalar: s}
	}
	return l
}

func (e *LayoutEngine) pointerLayout(nonNull bool, meta MetadataKind) *Layout {
	ptr := Primitive{Kind: PrimPointer, Size: e.target.PtrSize}
	s := fullScalar(ptr)
	if nonNull {
		s.ValidStart = 1
	}
	if meta == MetaWord || meta == MetaOther {
		l := &Layout{
			Size:  2 * e.target.PtrSize,
			Align: e.target.PtrAlign,
			Sized: true,
			Fields: FieldsShape{
				Kind:        FieldsArbitrary,
				Offsets:     []int{0, e.target.PtrSize},
				MemoryIndex: []int{0, 1},
			},
		}
		if nonNull {
			l.Niche = &Niche{Offset: 0, Scalar: s}
		}
		return l
	}
	return scalarLayout(s, e.target.PtrAlign)
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	r := n % align
	if r == 0 {
		return n
	}
	return n + (align - r)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (e *LayoutEngine) maxObjectSize() int {
	b := e.target.PtrBits()
	if b >= 64 || b <= 0 {
		return math.MaxInt
	}
	return 1<<(uint(b)-1) - 1
}

func (e *LayoutEngine) arrayLayout(id types.TypeID, tt types.Type, state *layoutState) (*Layout, *LayoutError) {
	el, err := e.layoutOf(tt.Elem, state)
	if err != nil {
		return zeroLayout(), err
	}
	stride := roundUp(el.Size, el.Align)
	stride64, convErr := safecast.Conv[uint64](stride)
	if convErr != nil {
		return zeroLayout(), &LayoutError{Kind: LayoutErrSizeOverflow, Type: id, Err: convErr}
	}
	hi, lo := bits.Mul64(stride64, tt.Count)
	size, convErr := safecast.Conv[int](lo)
	if hi != 0 || convErr != nil || size > e.maxObjectSize() {
		if convErr == nil {
			convErr = fmt.Errorf("%d x %d bytes", tt.Count, stride)
		}
		return zeroLayout(), &LayoutError{Kind: LayoutErrSizeOverflow, Type: id, Label: types.Label(e.Types, id), Err: convErr}
	}
	l := &Layout{
		Size:   size,
		Align:  el.Align,
		Sized:  true,
		Fields: FieldsShape{Kind: FieldsArray, Stride: stride, Count: tt.Count},
	}
	if tt.Count > 0 {
		l.Uninhabited = el.Uninhabited
		l.Niche = el.Niche
	}
	return l, nil
}

type structKind struct {
	prefixSize  int
	prefixAlign int
	prefixed    bool
}

func (e *LayoutEngine) univariantOf(id types.TypeID, fields []types.TypeID, repr types.Repr, state *layoutState) (*Layout, *LayoutError) {
	fls := make([]*Layout, len(fields))
	for i, f := range fields {
		fl, err := e.layoutOf(f, state)
		if err != nil {
			return zeroLayout(), err
		}
		fls[i] = fl
	}
	return e.univariant(id, fls, repr, structKind{})
}

// univariant lays out one struct-like variant. Unless repr(C) or packed, the
// sized fields are reordered: by descending alignment, or ascending when a
// tag prefix precedes them. An unsized last field is never moved.
func (e *LayoutEngine) univariant(id types.TypeID, fields []*Layout, repr types.Repr, kind structKind) (*Layout, *LayoutError) {
	n := len(fields)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if !repr.C && !repr.Packed {
		end := n
		if n > 0 && !fields[n-1].Sized {
			end = n - 1
		}
		sub := order[:end]
		if kind.prefixed {
			sort.SliceStable(sub, func(a, b int) bool { return fields[sub[a]].Align < fields[sub[b]].Align })
		} else {
			sort.SliceStable(sub, func(a, b int) bool { return fields[sub[a]].Align > fields[sub[b]].Align })
		}
	}

	align := 1
	if kind.prefixed {
		align = kind.prefixAlign
	}
	offset := kind.prefixSize
	offsets := make([]int, n)
	memIdx := make([]int, n)
	sized := true
	uninhabited := false
	var niche *Niche
	for pos, i := range order {
		f := fields[i]
		if !sized {
			return zeroLayout(), &LayoutError{Kind: LayoutErrUnknownType, Type: id, Label: "unsized field before the tail of " + types.Label(e.Types, id)}
		}
		fa := f.Align
		if repr.Packed {
			fa = 1
		}
		offset = roundUp(offset, fa)
		offsets[i] = offset
		memIdx[i] = pos
		align = maxInt(align, fa)
		if !f.Sized {
			sized = false
		}
		if f.Uninhabited {
			uninhabited = true
		}
		niche = largerNiche(niche, f.Niche.shifted(offset))
		offset += f.Size
		if offset > e.maxObjectSize() {
			return zeroLayout(), &LayoutError{Kind: LayoutErrSizeOverflow, Type: id, Label: types.Label(e.Types, id)}
		}
	}
	if repr.Align > align {
		align = repr.Align
	}
	size := offset
	if sized {
		size = roundUp(offset, align)
	}
	return &Layout{
		Size:        size,
		Align:       align,
		Sized:       sized,
		Uninhabited: uninhabited,
		Fields:      FieldsShape{Kind: FieldsArbitrary, Offsets: offsets, MemoryIndex: memIdx},
		Variants:    Variants{Kind: VariantsSingle},
		Niche:       niche,
	}, nil
}

func (e *LayoutEngine) unionLayout(id types.TypeID, info *types.AdtInfo, state *layoutState) (*Layout, *LayoutError) {
	var fields []types.Field
	if len(info.Variants) > 0 {
		fields = info.Variants[0].Fields
	}
	size := 0
	align := 1
	for _, f := range fields {
		fl, err := e.layoutOf(f.Type, state)
		if err != nil {
			return zeroLayout(), err
		}
		size = maxInt(size, fl.Size)
		if !info.Repr.Packed {
			align = maxInt(align, fl.Align)
		}
	}
	if info.Repr.Align > align {
		align = info.Repr.Align
	}
	count, err := safecast.Conv[uint64](len(fields))
	if err != nil {
		return zeroLayout(), &LayoutError{Kind: LayoutErrSizeOverflow, Type: id, Err: err}
	}
	return &Layout{
		Size:   roundUp(size, align),
		Align:  align,
		Sized:  true,
		Fields: FieldsShape{Kind: FieldsUnion, Count: count},
	}, nil
}

// simdLayout accepts either N fields of one scalar type or a single array field.
func (e *LayoutEngine) simdLayout(id types.TypeID, info *types.AdtInfo, state *layoutState) (*Layout, *LayoutError) {
	var fields []types.Field
	if len(info.Variants) > 0 {
		fields = info.Variants[0].Fields
	}
	if len(fields) == 0 {
		return zeroLayout(), &LayoutError{Kind: LayoutErrIncomplete, Type: id, Label: info.Path}
	}
	elem := fields[0].Type
	count := uint64(len(fields))
	if len(fields) == 1 {
		if tt, ok := e.Types.Lookup(elem); ok && tt.Kind == types.KindArray {
			elem, count = tt.Elem, tt.Count
		}
	}
	el, err := e.layoutOf(elem, state)
	if err != nil {
		return zeroLayout(), err
	}
	n, convErr := safecast.Conv[int](count)
	if convErr != nil {
		return zeroLayout(), &LayoutError{Kind: LayoutErrSizeOverflow, Type: id, Err: convErr}
	}
	raw := el.Size * n
	align := 1
	for align < raw {
		align <<= 1
	}
	align = maxInt(align, el.Align)
	return &Layout{
		Size:   roundUp(raw, align),
		Align:  align,
		Sized:  true,
		Fields: FieldsShape{Kind: FieldsArray, Stride: el.Size, Count: count},
		Vector: &Vector{Elem: elem, Count: count},
	}, nil
}
