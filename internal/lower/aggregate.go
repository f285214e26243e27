package lower

import (
	"fmt"
	"strconv"

	"gotolower/internal/diag"
	"gotolower/internal/gotoc"
	"gotolower/internal/layout"
	"gotolower/internal/source"
	"gotolower/internal/types"
)

// structFields encodes the fields of l in increasing offset order, starting
// at initialBits. Gaps become explicit padding and the struct is padded
// up to the layout size.
func (c *Ctx) structFields(owner types.TypeID, names []string, fieldTypes []types.TypeID, l *layout.Layout, initialBits int) []gotoc.Component {
	if c.layoutFailed[owner] {
		return nil
	}
	switch l.Fields.Kind {
	case layout.FieldsPrimitive:
		return nil
	case layout.FieldsArbitrary:
	default:
		c.internalf("struct fields", owner, "cannot encode %s field shape as a struct", l.Fields.Kind)
	}
	if l.Fields.Len() != len(fieldTypes) {
		c.internalf("struct fields", owner, "layout has %d fields, type has %d", l.Fields.Len(), len(fieldTypes))
	}
	comps := make([]gotoc.Component, 0, len(fieldTypes))
	offset := initialBits
	for _, i := range l.Fields.IndexByIncreasingOffset() {
		fieldOffset := l.Fields.Offset(i) * 8
		if fieldOffset > offset {
			comps = append(comps, padding(len(comps), fieldOffset-offset))
		}
		fl := c.layoutOf(fieldTypes[i])
		comps = append(comps, gotoc.Field(names[i], c.LowerType(fieldTypes[i])))
		offset = fieldOffset + fl.Size*8
	}
	if end := l.Size * 8; end > offset {
		comps = append(comps, padding(len(comps), end-offset))
	}
	return comps
}

func padding(idx, bits int) gotoc.Component {
	return gotoc.Padding(fmt.Sprintf("$pad%d", idx), bits)
}

// variantFields returns the field names and types of variant v.
func variantFields(info *types.AdtInfo, v int) ([]string, []types.TypeID) {
	if v < 0 || v >= len(info.Variants) {
		return nil, nil
	}
	fields := info.Variants[v].Fields
	names := make([]string, len(fields))
	tys := make([]types.TypeID, len(fields))
	for i, f := range fields {
		names[i] = f.Name
		tys[i] = f.Type
	}
	return names, tys
}

func indexNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = strconv.Itoa(i)
	}
	return names
}

func (c *Ctx) adtType(t types.TypeID) gotoc.Type {
	info, ok := c.Types.AdtInfo(t)
	if !ok {
		c.internalf("lower adt", t, "missing ADT info")
	}
	name := c.MangledName(t)
	switch {
	case info.IsUnion():
		return c.ensureUnion(name, info.Path, t, func() []gotoc.Component {
			return c.unionFields(t, info)
		})
	case info.IsEnum():
		return c.enumType(t, info, name)
	case info.Repr.Simd:
		return c.simdType(t, name, info.Path)
	default:
		return c.ensureStruct(name, info.Path, t, func() []gotoc.Component {
			names, tys := variantFields(info, 0)
			return c.structFields(t, names, tys, c.layoutOf(t), 0)
		})
	}
}

// unionFields declares one member per union field. A union narrower than
// its layout gets a trailing padding member.
func (c *Ctx) unionFields(t types.TypeID, info *types.AdtInfo) []gotoc.Component {
	l := c.layoutOf(t)
	names, tys := variantFields(info, 0)
	comps := make([]gotoc.Component, 0, len(tys)+1)
	widest := 0
	for i, ft := range tys {
		comps = append(comps, gotoc.Field(names[i], c.LowerType(ft)))
		widest = max(widest, c.layoutOf(ft).Size*8)
	}
	if end := l.Size * 8; end > widest {
		comps = append(comps, padding(len(comps), end))
	}
	return comps
}

func (c *Ctx) simdType(t types.TypeID, name, pretty string) gotoc.Type {
	l := c.layoutOf(t)
	if l.Vector == nil {
		// layout already failed and was reported
		return c.ensureStruct(name, pretty, t, nil)
	}
	return c.LowerType(l.Vector.Elem).VectorOf(l.Vector.Count)
}

func (c *Ctx) arrayType(t types.TypeID, tt types.Type) gotoc.Type {
	name := fmt.Sprintf("[%s; %d]", c.MangledName(tt.Elem), tt.Count)
	return c.ensureStruct(name, c.label(t), t, func() []gotoc.Component {
		if c.Types.IsUnit(tt.Elem) {
			return nil
		}
		return []gotoc.Component{gotoc.Field("0", c.LowerType(tt.Elem).ArrayOf(tt.Count))}
	})
}

func (c *Ctx) tupleType(t types.TypeID) gotoc.Type {
	info, _ := c.Types.TupleInfo(t)
	return c.ensureStruct(c.MangledName(t), c.label(t), t, func() []gotoc.Component {
		return c.structFields(t, indexNames(len(info.Elems)), info.Elems, c.layoutOf(t), 0)
	})
}

// closureType is the tuple of the captured upvars.
func (c *Ctx) closureType(t types.TypeID) gotoc.Type {
	info, _ := c.Types.ClosureInfo(t)
	return c.ensureStruct(c.MangledName(t), info.Path, t, func() []gotoc.Component {
		return c.structFields(t, indexNames(len(info.Upvars)), info.Upvars, c.layoutOf(t), 0)
	})
}

// coroutineType keeps only the captured state; resumption is not modelled.
func (c *Ctx) coroutineType(t types.TypeID) gotoc.Type {
	info, _ := c.Types.CoroutineInfo(t)
	c.reportWarning(diag.LowUnsupportedType, source.Span{},
		fmt.Sprintf("coroutine `%s` is not supported; only its captured state is lowered", info.Path))
	return c.ensureStruct(c.MangledName(t), info.Path, t, func() []gotoc.Component {
		return c.structFields(t, indexNames(len(info.Upvars)), info.Upvars, c.layoutOf(t), 0)
	})
}
