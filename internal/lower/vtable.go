package lower

import (
	"fmt"

	"gotolower/internal/gotoc"
	"gotolower/internal/layout"
	"gotolower/internal/types"
)

// vtableType declares struct `<trait>::vtable`: drop, size and align, then
// one function pointer per callable method named `<slot>_<method>`.
// Vacant and upcasting slots keep their index but get no field. The
// metadata prefix is fixed whatever order the oracle lists it in.
func (c *Ctx) vtableType(dyn types.TypeID) gotoc.Type {
	trait := c.traitName(dyn)
	return c.ensureStruct(trait+"::vtable", trait+"::vtable", types.NoTypeID, func() []gotoc.Component {
		entries := c.Oracle.VtableEntries(dyn)
		drop := gotoc.Code([]gotoc.Parameter{c.LowerType(dyn).ToPointer().AsParameter("", "")}, gotoc.Empty())
		comps := make([]gotoc.Component, 0, len(entries)+3)
		comps = append(comps,
			gotoc.Field("drop", drop.ToPointer()),
			gotoc.Field("size", gotoc.SizeTT()),
			gotoc.Field("align", gotoc.SizeTT()),
		)
		for idx, e := range entries {
			if e.Kind != layout.EntryMethod {
				continue
			}
			fn := c.dynamicFnSig(e.Sig).ToPointer()
			comps = append(comps, gotoc.Field(fmt.Sprintf("%d_%s", idx, e.Name), fn))
		}
		return comps
	})
}
