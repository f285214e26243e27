package lower

import (
	"go.uber.org/zap"

	"gotolower/internal/gotoc"
	"gotolower/internal/types"
)

// LowerType returns the target type of t, declaring every struct and union
// it needs in the unit's table. The result is memoized: lowering the same
// type twice yields an equal type and leaves the table unchanged.
func (c *Ctx) LowerType(t types.TypeID) gotoc.Type {
	if got, ok := c.typeCache[t]; ok {
		return got
	}
	out := c.lowerType(t)
	c.typeCache[t] = out
	c.log.Debug("lowered type", zap.String("type", c.label(t)), zap.Stringer("goto", out))
	return out
}

func (c *Ctx) lowerType(t types.TypeID) gotoc.Type {
	if t == types.NoTypeID {
		return c.unitType()
	}
	tt, ok := c.Types.Lookup(t)
	if !ok {
		c.internalf("lower type", t, "unknown type id %d", t)
	}
	switch tt.Kind {
	case types.KindBool, types.KindChar, types.KindInt, types.KindUint, types.KindFloat:
		return scalarType(tt)
	case types.KindStr:
		return gotoc.CCharT().ArrayOf(0)
	case types.KindSlice:
		return c.LowerType(tt.Elem).FlexibleArrayOf()
	case types.KindArray:
		return c.arrayType(t, tt)
	case types.KindTuple:
		if c.Types.IsUnit(t) {
			return c.unitType()
		}
		return c.tupleType(t)
	case types.KindNever:
		return c.ensureStruct("Never", "!", t, nil)
	case types.KindAdt:
		return c.adtType(t)
	case types.KindRef, types.KindRawPtr:
		return c.pointerType(tt.Elem)
	case types.KindFnPtr:
		sig, _ := c.Types.FnPtrSig(t)
		return c.LowerFnSig(sig).ToPointer()
	case types.KindFnDef:
		return c.ensureStruct(c.MangledName(t), c.label(t), t, nil)
	case types.KindClosure:
		return c.closureType(t)
	case types.KindCoroutine:
		return c.coroutineType(t)
	case types.KindDynamic:
		return c.traitData(t)
	case types.KindForeign:
		return c.ensureIncomplete(c.MangledName(t), c.label(t), t)
	default:
		c.internalf("lower type", t, "unexpected kind %s", tt.Kind)
		return gotoc.Type{}
	}
}

func (c *Ctx) unitType() gotoc.Type {
	return c.ensureStruct("Unit", "()", c.b.Unit, nil)
}

// ensureStruct declares struct name once. The declaration is registered
// incomplete before fields runs, so fields may refer back to the struct
// through pointers; afterwards the complete body replaces it in place.
func (c *Ctx) ensureStruct(name, pretty string, src types.TypeID, fields func() []gotoc.Component) gotoc.Type {
	return c.ensureAggregate(name, pretty, src, fields, false)
}

// ensureUnion is ensureStruct for unions.
func (c *Ctx) ensureUnion(name, pretty string, src types.TypeID, fields func() []gotoc.Component) gotoc.Type {
	return c.ensureAggregate(name, pretty, src, fields, true)
}

func (c *Ctx) ensureAggregate(name, pretty string, src types.TypeID, fields func() []gotoc.Component, union bool) gotoc.Type {
	tag := gotoc.StructTag(name)
	if union {
		tag = gotoc.UnionTag(name)
	}
	symName := gotoc.TagName(name)
	if c.symtab.Contains(symName) {
		return tag
	}
	c.symtab.Insert(gotoc.Symbol{Name: symName, PrettyName: pretty, Kind: gotoc.SymType, Type: gotoc.IncompleteStruct(name)})
	if src != types.NoTypeID {
		c.sourceOf[name] = src
	}
	var comps []gotoc.Component
	if fields != nil {
		comps = fields()
	}
	body := gotoc.StructType(name, comps)
	if union {
		body = gotoc.UnionType(name, comps)
	}
	c.symtab.Replace(gotoc.Symbol{Name: symName, PrettyName: pretty, Kind: gotoc.SymType, Type: body})
	return tag
}

// ensureIncomplete declares a struct whose body is never known.
func (c *Ctx) ensureIncomplete(name, pretty string, src types.TypeID) gotoc.Type {
	symName := gotoc.TagName(name)
	if !c.symtab.Contains(symName) {
		c.symtab.Insert(gotoc.Symbol{Name: symName, PrettyName: pretty, Kind: gotoc.SymType, Type: gotoc.IncompleteStruct(name)})
		c.sourceOf[name] = src
	}
	return gotoc.StructTag(name)
}
