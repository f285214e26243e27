package layout

import (
	"gotolower/internal/types"
)

// enumLayout picks among three strategies:
//   - Single: at most one variant can hold a value;
//   - Niche: exactly one variant carries data and its largest niche has room
//     for the others;
//   - Direct: an integer tag followed by the variant payloads.
//
// repr(C) and repr(<int>) always get a Direct tag.
func (e *LayoutEngine) enumLayout(id types.TypeID, info *types.AdtInfo, state *layoutState) (*Layout, *LayoutError) {
	nv := len(info.Variants)
	fields := make([][]*Layout, nv)
	for v, variant := range info.Variants {
		fields[v] = make([]*Layout, len(variant.Fields))
		for i, f := range variant.Fields {
			fl, err := e.layoutOf(f.Type, state)
			if err != nil {
				return zeroLayout(), err
			}
			fields[v][i] = fl
		}
	}

	present := make([]int, 0, nv)
	for v := range info.Variants {
		if !variantAbsent(fields[v]) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		l := zeroLayout()
		l.Uninhabited = true
		return l, nil
	}

	inhibit := info.Repr.C || info.Repr.Int != types.NoTypeID
	if !inhibit && len(present) == 1 {
		l, err := e.univariant(id, fields[present[0]], info.Repr, structKind{})
		if err != nil {
			return zeroLayout(), err
		}
		l.Variants = Variants{Kind: VariantsSingle, Index: present[0]}
		return l, nil
	}

	if !inhibit {
		l, err := e.nicheLayout(id, info, fields, present)
		if err != nil {
			return zeroLayout(), err
		}
		if l != nil {
			return l, nil
		}
	}
	return e.directLayout(id, info, fields, present)
}

// variantAbsent reports variants that can never be constructed and take no space.
func variantAbsent(fields []*Layout) bool {
	uninhabited := false
	for _, f := range fields {
		if f.Uninhabited {
			uninhabited = true
		}
		if f.Size != 0 {
			return false
		}
	}
	return uninhabited
}

func (e *LayoutEngine) nicheLayout(id types.TypeID, info *types.AdtInfo, fields [][]*Layout, present []int) (*Layout, *LayoutError) {
	dataful := -1
	for v, fls := range fields {
		for _, f := range fls {
			if f.Size == 0 {
				continue
			}
			if dataful != -1 && dataful != v {
				return nil, nil
			}
			dataful = v
		}
	}
	if dataful < 0 {
		return nil, nil
	}
	start, end := -1, -1
	for _, v := range present {
		if v == dataful {
			continue
		}
		if start < 0 {
			start = v
		}
		end = v
	}
	if start < 0 {
		return nil, nil
	}

	dl, err := e.univariant(id, fields[dataful], info.Repr, structKind{})
	if err != nil {
		return nil, err
	}
	count := uint64(end - start + 1)
	value, tag, ok := dl.Niche.reserve(count)
	if !ok {
		return nil, nil
	}

	layouts := make([]*Layout, len(fields))
	for v, fls := range fields {
		if v == dataful {
			layouts[v] = dl
			continue
		}
		vl, err := e.univariant(id, fls, info.Repr, structKind{})
		if err != nil {
			return nil, err
		}
		layouts[v] = vl
	}

	l := &Layout{
		Size:  dl.Size,
		Align: dl.Align,
		Sized: true,
		Fields: FieldsShape{
			Kind:        FieldsArbitrary,
			Offsets:     []int{dl.Niche.Offset},
			MemoryIndex: []int{0},
		},
		Variants: Variants{
			Kind:       VariantsMultiple,
			Tag:        tag,
			Encoding:   EncodingNiche,
			TagOffset:  dl.Niche.Offset,
			Dataful:    dataful,
			NicheStart: start,
			NicheEnd:   end,
			NicheValue: value,
			Layouts:    layouts,
		},
	}
	if tag.Available() > 0 {
		l.Niche = &Niche{Offset: dl.Niche.Offset, Scalar: tag}
	}
	return l, nil
}

func (e *LayoutEngine) directLayout(id types.TypeID, info *types.AdtInfo, fields [][]*Layout, present []int) (*Layout, *LayoutError) {
	minD, maxD := info.Variants[present[0]].Discr, info.Variants[present[0]].Discr
	for _, v := range present {
		d := info.Variants[v].Discr
		minD = min(minD, d)
		maxD = max(maxD, d)
	}
	prim := e.tagPrimitive(info.Repr, minD, maxD)
	tagAlign := e.intAlign(prim.Size)

	tag := Scalar{Prim: prim}
	m := tag.mask()
	tag.ValidStart = uint64(minD) & m
	tag.ValidEnd = uint64(maxD) & m

	layouts := make([]*Layout, len(fields))
	align := tagAlign
	size := prim.Size
	for v, fls := range fields {
		vl, err := e.univariant(id, fls, info.Repr, structKind{prefixed: true, prefixSize: prim.Size, prefixAlign: tagAlign})
		if err != nil {
			return zeroLayout(), err
		}
		layouts[v] = vl
		align = maxInt(align, vl.Align)
		size = maxInt(size, vl.Size)
	}
	if info.Repr.Align > align {
		align = info.Repr.Align
	}
	l := &Layout{
		Size:  roundUp(size, align),
		Align: align,
		Sized: true,
		Fields: FieldsShape{
			Kind:        FieldsArbitrary,
			Offsets:     []int{0},
			MemoryIndex: []int{0},
		},
		Variants: Variants{
			Kind:      VariantsMultiple,
			Tag:       tag,
			Encoding:  EncodingDirect,
			TagOffset: 0,
			Layouts:   layouts,
		},
	}
	if tag.Available() > 0 {
		l.Niche = &Niche{Offset: 0, Scalar: tag}
	}
	return l, nil
}

// tagPrimitive returns the smallest integer holding [minD, maxD]. repr(C)
// starts at C int; an explicit repr(<int>) is used as is.
func (e *LayoutEngine) tagPrimitive(repr types.Repr, minD, maxD int64) Primitive {
	if repr.Int != types.NoTypeID {
		if tt, ok := e.Types.Lookup(repr.Int); ok && tt.IsInteger() {
			return Primitive{Kind: PrimInt, Size: e.intSize(tt.Width), Signed: tt.Kind == types.KindInt}
		}
	}
	signed := minD < 0
	start := 1
	if repr.C {
		start = e.target.IntSize
		signed = true
	}
	for size := start; size < 8; size *= 2 {
		if fitsIn(size, signed, minD, maxD) {
			return Primitive{Kind: PrimInt, Size: size, Signed: signed}
		}
	}
	return Primitive{Kind: PrimInt, Size: 8, Signed: signed}
}

func fitsIn(size int, signed bool, minD, maxD int64) bool {
	b := uint(size * 8)
	if signed {
		lo := -(int64(1) << (b - 1))
		hi := int64(1)<<(b-1) - 1
		return minD >= lo && maxD <= hi
	}
	return minD >= 0 && uint64(maxD) < uint64(1)<<b
}
