package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates all supported kinds of source types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindChar
	KindInt
	KindUint
	KindFloat
	KindStr
	KindSlice
	KindArray
	KindTuple
	KindAdt
	KindRef
	KindRawPtr
	KindFnDef
	KindFnPtr
	KindClosure
	KindCoroutine
	KindDynamic
	KindForeign
	KindNever
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindStr:
		return "str"
	case KindSlice:
		return "slice"
	case KindArray:
		return "array"
	case KindTuple:
		return "tuple"
	case KindAdt:
		return "adt"
	case KindRef:
		return "ref"
	case KindRawPtr:
		return "rawptr"
	case KindFnDef:
		return "fndef"
	case KindFnPtr:
		return "fnptr"
	case KindClosure:
		return "closure"
	case KindCoroutine:
		return "coroutine"
	case KindDynamic:
		return "dynamic"
	case KindForeign:
		return "foreign"
	case KindNever:
		return "never"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Width captures the precision of integers/floats.
type Width uint8

const (
	// WidthPtr is the target word: isize/usize.
	WidthPtr Width = 0
	Width8   Width = 8
	Width16  Width = 16
	Width32  Width = 32
	Width64  Width = 64
	Width128 Width = 128
)

// Type is a compact descriptor for any supported type.
type Type struct {
	Kind    Kind
	Elem    TypeID
	Count   uint64 // for arrays
	Width   Width  // for numeric primitives
	Mutable bool   // for references and raw pointers
	Payload uint32 // side-table slot for nominal/structural kinds
}

// Descriptor helpers ---------------------------------------------------------

// MakeInt describes a signed integer of the given width (WidthPtr for isize).
func MakeInt(width Width) Type {
	return Type{Kind: KindInt, Width: width}
}

// MakeUint describes an unsigned integer type.
func MakeUint(width Width) Type {
	return Type{Kind: KindUint, Width: width}
}

// MakeFloat describes a floating-point type.
func MakeFloat(width Width) Type {
	return Type{Kind: KindFloat, Width: width}
}

// MakeArray describes [elem; count].
func MakeArray(elem TypeID, count uint64) Type {
	return Type{Kind: KindArray, Elem: elem, Count: count}
}

// MakeSlice describes the unsized [elem].
func MakeSlice(elem TypeID) Type {
	return Type{Kind: KindSlice, Elem: elem}
}

// MakeRef describes &T or &mut T depending on the mutable flag.
func MakeRef(elem TypeID, mutable bool) Type {
	return Type{Kind: KindRef, Elem: elem, Mutable: mutable}
}

// MakeRawPtr describes *const T or *mut T.
func MakeRawPtr(elem TypeID, mutable bool) Type {
	return Type{Kind: KindRawPtr, Elem: elem, Mutable: mutable}
}

// IsInteger reports whether the kind is a signed or unsigned integer.
func (t Type) IsInteger() bool {
	return t.Kind == KindInt || t.Kind == KindUint
}

// IsPointerLike reports references and raw pointers.
func (t Type) IsPointerLike() bool {
	return t.Kind == KindRef || t.Kind == KindRawPtr
}
