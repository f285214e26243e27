package lower

import (
	"gotolower/internal/gotoc"
	"gotolower/internal/layout"
	"gotolower/internal/types"
)

// PointerKind is the representation of a pointer to some pointee.
type PointerKind uint8

const (
	ThinPointer PointerKind = iota
	// SliceFatPointer carries an element count next to the data pointer.
	SliceFatPointer
	// VtableFatPointer carries a vtable pointer next to the data pointer.
	VtableFatPointer
)

func (k PointerKind) String() string {
	switch k {
	case ThinPointer:
		return "thin"
	case SliceFatPointer:
		return "slice"
	case VtableFatPointer:
		return "vtable"
	default:
		return "pointer?"
	}
}

// ClassifyPointee decides how a pointer to t is represented. A pointee the
// oracle cannot classify gets a thin pointer.
func (c *Ctx) ClassifyPointee(t types.TypeID) PointerKind {
	meta := c.Oracle.PointerMetadata(t)
	switch meta.Kind {
	case layout.MetaUnit, layout.MetaError:
		return ThinPointer
	case layout.MetaWord:
		return SliceFatPointer
	case layout.MetaOther:
		if tt, ok := c.Types.Lookup(meta.Tail); ok && tt.Kind == types.KindDynamic {
			return VtableFatPointer
		}
		c.internalf("classify pointee", t, "metadata of unsized tail %s is not a vtable", c.label(meta.Tail))
	default:
		c.internalf("classify pointee", t, "unknown metadata kind %s", meta.Kind)
	}
	return ThinPointer
}

func (c *Ctx) pointerType(pointee types.TypeID) gotoc.Type {
	switch c.ClassifyPointee(pointee) {
	case SliceFatPointer:
		return c.sliceFatPointer(pointee)
	case VtableFatPointer:
		return c.vtableFatPointer(c.Oracle.PointerMetadata(pointee).Tail)
	default:
		return c.LowerType(pointee).ToPointer()
	}
}

// sliceFatPointer is {data, len}. For a slice the data points at elements,
// for str at chars, and for a struct with a slice tail at the struct itself.
func (c *Ctx) sliceFatPointer(pointee types.TypeID) gotoc.Type {
	tt, _ := c.Types.Lookup(pointee)
	var name string
	var elem func() gotoc.Type
	switch tt.Kind {
	case types.KindSlice:
		name = c.MangledName(pointee)
		elem = func() gotoc.Type { return c.LowerType(tt.Elem) }
	case types.KindStr:
		name = "str"
		elem = gotoc.CCharT
	default:
		name = "&" + c.MangledName(pointee)
		elem = func() gotoc.Type { return c.LowerType(pointee) }
	}
	return c.ensureStruct(name, "&"+c.label(pointee), pointee, func() []gotoc.Component {
		return []gotoc.Component{
			gotoc.Field("data", elem().ToPointer()),
			gotoc.Field("len", gotoc.SizeTT()),
		}
	})
}

// vtableFatPointer is {data, vtable} for the trait object type dyn. Data
// points at the trait data; the vtable struct is declared first.
func (c *Ctx) vtableFatPointer(dyn types.TypeID) gotoc.Type {
	name := c.MangledName(dyn)
	if c.symtab.Contains(gotoc.TagName(name)) {
		return gotoc.StructTag(name)
	}
	vtable := c.vtableType(dyn)
	return c.ensureStruct(name, "dyn "+c.traitName(dyn), dyn, func() []gotoc.Component {
		return []gotoc.Component{
			gotoc.Field("data", c.LowerType(dyn).ToPointer()),
			gotoc.Field("vtable", vtable.ToPointer()),
		}
	})
}

// traitData is the unsized value behind a trait object. It has no fields,
// so a struct with a dyn tail ends where its sized prefix ends.
func (c *Ctx) traitData(dyn types.TypeID) gotoc.Type {
	name := c.MangledName(dyn) + "Inner"
	return c.ensureStruct(name, c.traitName(dyn)+"Inner", dyn, nil)
}

func (c *Ctx) traitName(dyn types.TypeID) string {
	if info, ok := c.Types.DynInfo(dyn); ok {
		return info.Trait
	}
	return c.label(dyn)
}
