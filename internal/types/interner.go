package types

import (
	"fmt"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for common primitive types.
type Builtins struct {
	Invalid TypeID
	Unit    TypeID
	Never   TypeID
	Bool    TypeID
	Char    TypeID
	Str     TypeID
	I8      TypeID
	I16     TypeID
	I32     TypeID
	I64     TypeID
	I128    TypeID
	Isize   TypeID
	U8      TypeID
	U16     TypeID
	U32     TypeID
	U64     TypeID
	U128    TypeID
	Usize   TypeID
	F16     TypeID
	F32     TypeID
	F64     TypeID
	F128    TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
// Nominal kinds (ADTs, closures, coroutines, trait objects, foreign types)
// get a fresh slot on registration and are never deduplicated structurally.
type Interner struct {
	types      []Type
	index      map[typeKey]TypeID
	builtins   Builtins
	tuples     []TupleInfo
	adts       []AdtInfo
	sigs       []FnSig
	fndefs     []FnDefInfo
	closures   []ClosureInfo
	coroutines []CoroutineInfo
	dyns       []DynInfo
	foreigns   []ForeignInfo
	byPath     map[pathKey]TypeID
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		index:  make(map[typeKey]TypeID, 64),
		byPath: make(map[pathKey]TypeID, 16),
	}
	// reserve slot 0 of every side table as invalid sentinel
	in.tuples = append(in.tuples, TupleInfo{})
	in.adts = append(in.adts, AdtInfo{})
	in.sigs = append(in.sigs, FnSig{})
	in.fndefs = append(in.fndefs, FnDefInfo{})
	in.closures = append(in.closures, ClosureInfo{})
	in.coroutines = append(in.coroutines, CoroutineInfo{})
	in.dyns = append(in.dyns, DynInfo{})
	in.foreigns = append(in.foreigns, ForeignInfo{})

	in.builtins.Invalid = in.internRaw(Type{Kind: KindInvalid})
	in.builtins.Unit = in.RegisterTuple(nil)
	in.builtins.Never = in.Intern(Type{Kind: KindNever})
	in.builtins.Bool = in.Intern(Type{Kind: KindBool})
	in.builtins.Char = in.Intern(Type{Kind: KindChar})
	in.builtins.Str = in.Intern(Type{Kind: KindStr})
	in.builtins.I8 = in.Intern(MakeInt(Width8))
	in.builtins.I16 = in.Intern(MakeInt(Width16))
	in.builtins.I32 = in.Intern(MakeInt(Width32))
	in.builtins.I64 = in.Intern(MakeInt(Width64))
	in.builtins.I128 = in.Intern(MakeInt(Width128))
	in.builtins.Isize = in.Intern(MakeInt(WidthPtr))
	in.builtins.U8 = in.Intern(MakeUint(Width8))
	in.builtins.U16 = in.Intern(MakeUint(Width16))
	in.builtins.U32 = in.Intern(MakeUint(Width32))
	in.builtins.U64 = in.Intern(MakeUint(Width64))
	in.builtins.U128 = in.Intern(MakeUint(Width128))
	in.builtins.Usize = in.Intern(MakeUint(WidthPtr))
	in.builtins.F16 = in.Intern(MakeFloat(Width16))
	in.builtins.F32 = in.Intern(MakeFloat(Width32))
	in.builtins.F64 = in.Intern(MakeFloat(Width64))
	in.builtins.F128 = in.Intern(MakeFloat(Width128))
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Len reports the number of interned types, the invalid sentinel included.
func (in *Interner) Len() int {
	return len(in.types)
}

// Intern ensures the provided descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	key := typeKey(t)
	if id, ok := in.index[key]; ok {
		return id
	}
	return in.internRaw(t)
}

// internRaw adds the descriptor to the storage without consulting the map.
func (in *Interner) internRaw(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	key := typeKey(t)
	in.index[key] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if in == nil || id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// ByPath returns the nominal type registered under path for the given kind.
func (in *Interner) ByPath(kind Kind, path string) (TypeID, bool) {
	id, ok := in.byPath[pathKey{Kind: kind, Path: normalizePath(path)}]
	return id, ok
}

func (in *Interner) rememberPath(kind Kind, path string, id TypeID) {
	in.byPath[pathKey{Kind: kind, Path: path}] = id
}

func slotOf(n int, what string) uint32 {
	slot, err := safecast.Conv[uint32](n - 1)
	if err != nil {
		panic(fmt.Errorf("%s info overflow: %w", what, err))
	}
	return slot
}

type typeKey Type

type pathKey struct {
	Kind Kind
	Path string
}
