package layout

import (
	"sort"

	"gotolower/internal/types"
)

// Oracle answers layout questions about source types. The lowering engine
// never re-derives layout; it encodes whatever the oracle reports.
type Oracle interface {
	LayoutOf(t types.TypeID) (*Layout, error)
	// PointerMetadata classifies what a pointer to pointee must carry.
	PointerMetadata(pointee types.TypeID) Metadata
	// VtableEntries enumerates the slots of the vtable of a trait object type.
	VtableEntries(dyn types.TypeID) []VtableEntry
	Target() Target
}

// Layout is the ABI layout of a type for a specific Target.
// Sizes and offsets are in bytes.
type Layout struct {
	Size        int
	Align       int
	Sized       bool
	Uninhabited bool

	Fields   FieldsShape
	Variants Variants

	// Scalar is set for layouts that are a single primitive value.
	Scalar *Scalar
	// Vector is set for repr(simd) types.
	Vector *Vector
	// Niche is the largest niche available in the value, if any.
	Niche *Niche
}

// FieldsKind enumerates field placement shapes.
type FieldsKind uint8

const (
	FieldsPrimitive FieldsKind = iota
	FieldsUnion
	FieldsArray
	FieldsArbitrary
)

func (k FieldsKind) String() string {
	switch k {
	case FieldsPrimitive:
		return "primitive"
	case FieldsUnion:
		return "union"
	case FieldsArray:
		return "array"
	case FieldsArbitrary:
		return "arbitrary"
	default:
		return "fields?"
	}
}

// FieldsShape describes where the fields of a value live.
type FieldsShape struct {
	Kind FieldsKind
	// Count is the number of union members or array elements.
	Count uint64
	// Stride is the array element stride.
	Stride int
	// Offsets is indexed by source field index (Arbitrary).
	Offsets []int
	// MemoryIndex maps a source field index to its position in memory order.
	MemoryIndex []int
}

// Len returns the number of fields.
func (f FieldsShape) Len() int {
	switch f.Kind {
	case FieldsUnion, FieldsArray:
		return int(f.Count)
	case FieldsArbitrary:
		return len(f.Offsets)
	default:
		return 0
	}
}

// Offset returns the byte offset of field i.
func (f FieldsShape) Offset(i int) int {
	switch f.Kind {
	case FieldsArray:
		return f.Stride * i
	case FieldsArbitrary:
		if i >= 0 && i < len(f.Offsets) {
			return f.Offsets[i]
		}
	}
	return 0
}

// IndexByIncreasingOffset returns source field indices sorted by offset.
// Ties keep memory order.
func (f FieldsShape) IndexByIncreasingOffset() []int {
	n := f.Len()
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	if f.Kind != FieldsArbitrary {
		return out
	}
	sort.SliceStable(out, func(a, b int) bool {
		oa, ob := f.Offsets[out[a]], f.Offsets[out[b]]
		if oa != ob {
			return oa < ob
		}
		if len(f.MemoryIndex) == n {
			return f.MemoryIndex[out[a]] < f.MemoryIndex[out[b]]
		}
		return out[a] < out[b]
	})
	return out
}

// VariantsKind says whether a layout carries one variant or many.
type VariantsKind uint8

const (
	VariantsSingle VariantsKind = iota
	VariantsMultiple
)

// EncodingKind is how a multi-variant layout stores its discriminant.
type EncodingKind uint8

const (
	EncodingDirect EncodingKind = iota
	EncodingNiche
)

func (k EncodingKind) String() string {
	if k == EncodingNiche {
		return "niche"
	}
	return "direct"
}

// Variants describes the enum strategy of a layout.
type Variants struct {
	Kind VariantsKind
	// Index is the only representable variant (Single).
	Index int

	// Multiple:
	Tag      Scalar
	Encoding EncodingKind
	// TagOffset is the byte offset of the tag (Direct) or niche (Niche).
	TagOffset int
	// Dataful is the untagged variant of a Niche encoding.
	Dataful int
	// NicheVariants is the inclusive variant index range encoded in the niche.
	NicheStart int
	NicheEnd   int
	NicheValue uint64 // tag value of variant NicheStart
	Layouts    []*Layout
}

// VariantLayout returns the layout of variant idx, or the receiver layout
// when it is single-variant.
func (l *Layout) VariantLayout(idx int) *Layout {
	if l == nil {
		return nil
	}
	if l.Variants.Kind == VariantsMultiple {
		if idx >= 0 && idx < len(l.Variants.Layouts) {
			return l.Variants.Layouts[idx]
		}
		return nil
	}
	return l
}

// Vector describes a repr(simd) type.
type Vector struct {
	Elem  types.TypeID
	Count uint64
}

// MetadataKind classifies pointer metadata.
type MetadataKind uint8

const (
	// MetaUnit: the pointer is thin.
	MetaUnit MetadataKind = iota
	// MetaWord: the pointer carries an element count.
	MetaWord
	// MetaOther: the pointer carries something else (a vtable).
	MetaOther
	// MetaError: the oracle could not classify the pointee.
	MetaError
)

func (k MetadataKind) String() string {
	switch k {
	case MetaUnit:
		return "unit"
	case MetaWord:
		return "word"
	case MetaOther:
		return "other"
	case MetaError:
		return "error"
	default:
		return "meta?"
	}
}

// Metadata is the answer to a pointer metadata query.
type Metadata struct {
	Kind MetadataKind
	// Tail is the unsized type that determines the metadata, if any.
	Tail types.TypeID
}

// VtableEntryKind enumerates vtable slot kinds.
type VtableEntryKind uint8

const (
	EntryDropInPlace VtableEntryKind = iota
	EntrySize
	EntryAlign
	EntryVacant
	EntryMethod
	EntryTraitVPtr
)

func (k VtableEntryKind) String() string {
	switch k {
	case EntryDropInPlace:
		return "drop"
	case EntrySize:
		return "size"
	case EntryAlign:
		return "align"
	case EntryVacant:
		return "vacant"
	case EntryMethod:
		return "method"
	case EntryTraitVPtr:
		return "trait-vptr"
	default:
		return "entry?"
	}
}

// VtableEntry is one slot of a vtable.
type VtableEntry struct {
	Kind VtableEntryKind
	Name string      // Method only
	Sig  types.FnSig // Method only
}
