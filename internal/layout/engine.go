package layout

import (
	"gotolower/internal/types"
)

// LayoutEngine computes memory layout for types. It is the reference Oracle:
// rustc-like field reordering, smallest-integer tags and niche filling.
// A LayoutEngine is not safe for concurrent use.
type LayoutEngine struct {
	target Target
	Types  *types.Interner

	cache *cache
}

var _ Oracle = (*LayoutEngine)(nil)

// New creates a new LayoutEngine for the specified target.
func New(target Target, typesIn *types.Interner) *LayoutEngine {
	return &LayoutEngine{
		target: target,
		Types:  typesIn,
		cache:  newCache(),
	}
}

// Target returns the target the engine computes layouts for.
func (e *LayoutEngine) Target() Target {
	return e.target
}

type layoutState struct {
	stack []types.TypeID
	index map[types.TypeID]int
}

func newLayoutState() *layoutState {
	return &layoutState{
		stack: nil,
		index: make(map[types.TypeID]int, 32),
	}
}

// LayoutOf computes and caches the layout of a type.
func (e *LayoutEngine) LayoutOf(t types.TypeID) (*Layout, error) {
	if e.cache == nil {
		e.cache = newCache()
	}
	l, err := e.layoutOf(t, newLayoutState())
	if err != nil {
		return l, err
	}
	return l, nil
}

func (e *LayoutEngine) layoutOf(t types.TypeID, state *layoutState) (*Layout, *LayoutError) {
	if cached, ok := e.cache.get(t); ok {
		return cached.Layout, cached.Err
	}

	if idx, ok := state.index[t]; ok {
		cycle := append([]types.TypeID(nil), state.stack[idx:]...)
		cycle = append(cycle, t)
		err := &LayoutError{
			Kind:  LayoutErrRecursiveUnsized,
			Type:  t,
			Label: types.Label(e.Types, t),
			Cycle: cycle,
		}
		e.cache.put(t, &cacheEntry{Layout: zeroLayout(), Err: err})
		return zeroLayout(), err
	}

	state.index[t] = len(state.stack)
	state.stack = append(state.stack, t)
	l, err := e.computeLayout(t, state)
	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, t)

	e.cache.put(t, &cacheEntry{Layout: l, Err: err})
	return l, err
}

// SizeOf returns the size of a type in bytes.
func (e *LayoutEngine) SizeOf(t types.TypeID) (int, error) {
	l, err := e.LayoutOf(t)
	if err != nil {
		return 0, err
	}
	return l.Size, nil
}

// AlignOf returns the alignment requirement of a type in bytes.
func (e *LayoutEngine) AlignOf(t types.TypeID) (int, error) {
	l, err := e.LayoutOf(t)
	if err != nil {
		return 1, err
	}
	return l.Align, nil
}

// IsSized reports whether values of t have a statically known size.
func (e *LayoutEngine) IsSized(t types.TypeID) bool {
	tail, ok := e.unsizedTail(t)
	if !ok {
		return true
	}
	tt, _ := e.Types.Lookup(tail)
	switch tt.Kind {
	case types.KindStr, types.KindSlice, types.KindDynamic, types.KindForeign:
		return false
	default:
		return true
	}
}

// unsizedTail walks the last field of structs and tuples.
func (e *LayoutEngine) unsizedTail(t types.TypeID) (types.TypeID, bool) {
	for depth := 0; depth < 64; depth++ {
		tt, ok := e.Types.Lookup(t)
		if !ok {
			return t, false
		}
		switch tt.Kind {
		case types.KindAdt:
			info, _ := e.Types.AdtInfo(t)
			if !info.IsStruct() || len(info.Variants) == 0 || len(info.Variants[0].Fields) == 0 {
				return t, true
			}
			fields := info.Variants[0].Fields
			t = fields[len(fields)-1].Type
		case types.KindTuple:
			info, _ := e.Types.TupleInfo(t)
			if info == nil || len(info.Elems) == 0 {
				return t, true
			}
			t = info.Elems[len(info.Elems)-1]
		default:
			return t, true
		}
	}
	return t, true
}

// PointerMetadata classifies what a pointer to pointee must carry.
func (e *LayoutEngine) PointerMetadata(pointee types.TypeID) Metadata {
	tail, ok := e.unsizedTail(pointee)
	if !ok {
		return Metadata{Kind: MetaError, Tail: pointee}
	}
	tt, _ := e.Types.Lookup(tail)
	switch tt.Kind {
	case types.KindStr, types.KindSlice:
		return Metadata{Kind: MetaWord, Tail: tail}
	case types.KindDynamic:
		return Metadata{Kind: MetaOther, Tail: tail}
	default:
		return Metadata{Kind: MetaUnit}
	}
}

// VtableEntries enumerates the slots of the vtable for dyn: drop, size and
// align first, then the trait's methods and those of its supertraits.
func (e *LayoutEngine) VtableEntries(dyn types.TypeID) []VtableEntry {
	out := []VtableEntry{{Kind: EntryDropInPlace}, {Kind: EntrySize}, {Kind: EntryAlign}}
	seen := make(map[types.TypeID]struct{}, 4)
	var walk func(id types.TypeID, first bool)
	walk = func(id types.TypeID, first bool) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		info, ok := e.Types.DynInfo(id)
		if !ok {
			return
		}
		if !first && len(info.Methods) > 0 {
			out = append(out, VtableEntry{Kind: EntryTraitVPtr})
		}
		for _, m := range info.Methods {
			if m.Vacant {
				out = append(out, VtableEntry{Kind: EntryVacant})
				continue
			}
			out = append(out, VtableEntry{Kind: EntryMethod, Name: m.Name, Sig: m.Sig})
		}
		for i, s := range info.Supertraits {
			walk(s, first && i == 0)
		}
	}
	walk(dyn, true)
	return out
}

func zeroLayout() *Layout {
	return &Layout{Size: 0, Align: 1, Sized: true, Fields: FieldsShape{Kind: FieldsArbitrary}}
}
