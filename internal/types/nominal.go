package types

import (
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// AdtKind distinguishes the three user-defined aggregate shapes.
type AdtKind uint8

const (
	AdtStruct AdtKind = iota
	AdtEnum
	AdtUnion
)

func (k AdtKind) String() string {
	switch k {
	case AdtStruct:
		return "struct"
	case AdtEnum:
		return "enum"
	case AdtUnion:
		return "union"
	default:
		return "adt?"
	}
}

// Field describes a single named field of a variant.
type Field struct {
	Name string
	Type TypeID
}

// Variant is one constructor of an ADT. Structs and unions have exactly one.
type Variant struct {
	Name     string
	Fields   []Field
	Discr    int64
	HasDiscr bool // Discr was written explicitly
}

// Repr captures layout-affecting attributes of an ADT declaration.
type Repr struct {
	C      bool
	Simd   bool
	Packed bool
	Align  int    // 0 when no explicit alignment is requested
	Int    TypeID // explicit discriminant integer, NoTypeID when inferred
}

// AdtInfo stores metadata for a struct, enum or union type.
type AdtInfo struct {
	Path     string   // pretty path, e.g. "core::option::Option<&u8>"
	Kind     AdtKind
	Repr     Repr
	Args     []TypeID // generic arguments the path was instantiated with
	Variants []Variant
	Complete bool
}

// IsStruct reports AdtStruct.
func (a *AdtInfo) IsStruct() bool { return a != nil && a.Kind == AdtStruct }

// IsEnum reports AdtEnum.
func (a *AdtInfo) IsEnum() bool { return a != nil && a.Kind == AdtEnum }

// IsUnion reports AdtUnion.
func (a *AdtInfo) IsUnion() bool { return a != nil && a.Kind == AdtUnion }

// Generic reports whether the ADT was instantiated with generic arguments.
func (a *AdtInfo) Generic() bool { return a != nil && len(a.Args) > 0 }

// RegisterAdt allocates a nominal ADT slot. Variants are filled later with
// SetAdtVariants so that recursive ADTs can refer to their own TypeID.
func (in *Interner) RegisterAdt(path string, kind AdtKind, repr Repr, args []TypeID) TypeID {
	path = normalizePath(path)
	if id, ok := in.byPath[pathKey{Kind: KindAdt, Path: path}]; ok {
		return id
	}
	in.adts = append(in.adts, AdtInfo{
		Path: path,
		Kind: kind,
		Repr: repr,
		Args: cloneTypeArgs(args),
	})
	slot := slotOf(len(in.adts), "adt")
	id := in.internRaw(Type{Kind: KindAdt, Payload: slot})
	in.rememberPath(KindAdt, path, id)
	return id
}

// SetAdtVariants stores the resolved variants. Implicit discriminants follow
// the previous discriminant plus one, starting from zero.
func (in *Interner) SetAdtVariants(id TypeID, variants []Variant) {
	info := in.adtInfo(id)
	if info == nil {
		return
	}
	out := make([]Variant, len(variants))
	next := int64(0)
	for i, v := range variants {
		v.Fields = slices.Clone(v.Fields)
		if !v.HasDiscr {
			v.Discr = next
		}
		next = v.Discr + 1
		out[i] = v
	}
	info.Variants = out
	info.Complete = true
}

// AdtInfo returns metadata for the provided ADT TypeID.
func (in *Interner) AdtInfo(id TypeID) (*AdtInfo, bool) {
	info := in.adtInfo(id)
	if info == nil {
		return nil, false
	}
	return info, true
}

func (in *Interner) adtInfo(id TypeID) *AdtInfo {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindAdt {
		return nil
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.adts) {
		return nil
	}
	return &in.adts[tt.Payload]
}

// ForeignInfo names an opaque extern type.
type ForeignInfo struct {
	Path string
}

// RegisterForeign allocates an extern type.
func (in *Interner) RegisterForeign(path string) TypeID {
	path = normalizePath(path)
	if id, ok := in.byPath[pathKey{Kind: KindForeign, Path: path}]; ok {
		return id
	}
	in.foreigns = append(in.foreigns, ForeignInfo{Path: path})
	slot := slotOf(len(in.foreigns), "foreign")
	id := in.internRaw(Type{Kind: KindForeign, Payload: slot})
	in.rememberPath(KindForeign, path, id)
	return id
}

// ForeignInfo returns metadata of an extern type.
func (in *Interner) ForeignInfo(id TypeID) (*ForeignInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindForeign || tt.Payload == 0 || int(tt.Payload) >= len(in.foreigns) {
		return nil, false
	}
	return &in.foreigns[tt.Payload], true
}

// normalizePath applies NFC so that visually identical paths share one identity.
func normalizePath(path string) string {
	return norm.NFC.String(strings.TrimSpace(path))
}
