package types

// DynMethod is one object-safe method of a trait as it appears in a vtable.
// Sig.Inputs[0] is the receiver.
type DynMethod struct {
	Name string
	Sig  FnSig
	// Vacant marks methods that cannot be called through the object
	// (e.g. bounded by Self: Sized); their vtable slot stays empty.
	Vacant bool
}

// DynInfo describes a trait object type `dyn Trait`.
type DynInfo struct {
	Trait   string
	Methods []DynMethod
	// Supertraits contribute their methods after this trait's own ones; each
	// supertrait after the first also occupies an upcasting slot.
	Supertraits []TypeID
}

// RegisterDyn allocates a trait object type keyed by the trait path.
func (in *Interner) RegisterDyn(trait string) TypeID {
	trait = normalizePath(trait)
	if id, ok := in.byPath[pathKey{Kind: KindDynamic, Path: trait}]; ok {
		return id
	}
	in.dyns = append(in.dyns, DynInfo{Trait: trait})
	slot := slotOf(len(in.dyns), "dyn")
	id := in.internRaw(Type{Kind: KindDynamic, Payload: slot})
	in.rememberPath(KindDynamic, trait, id)
	return id
}

// SetDynMethods stores the methods and supertraits of a trait object.
func (in *Interner) SetDynMethods(id TypeID, methods []DynMethod, supers []TypeID) {
	info, ok := in.DynInfo(id)
	if !ok {
		return
	}
	info.Methods = make([]DynMethod, len(methods))
	for i, m := range methods {
		m.Sig = cloneSig(m.Sig)
		info.Methods[i] = m
	}
	info.Supertraits = cloneTypeArgs(supers)
}

// DynInfo returns metadata of a trait object type.
func (in *Interner) DynInfo(id TypeID) (*DynInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindDynamic || tt.Payload == 0 || int(tt.Payload) >= len(in.dyns) {
		return nil, false
	}
	return &in.dyns[tt.Payload], true
}
