package gotoc

import (
	"fmt"
	"strings"
)

// TypeKind enumerates target type shapes.
type TypeKind uint8

const (
	TypeEmpty TypeKind = iota // void
	TypeBool
	TypeCInteger
	TypeSignedbv
	TypeUnsignedbv
	TypeFloat
	TypeDouble
	TypeFloat16
	TypeFloat128
	TypePointer
	TypeArray
	TypeFlexibleArray
	TypeVector
	TypeStruct
	TypeUnion
	TypeStructTag
	TypeUnionTag
	TypeIncompleteStruct
	TypeCode
	TypeVariadicCode
)

// CIntKind names the C integer types whose width comes from the machine model.
type CIntKind uint8

const (
	CBool CIntKind = iota
	CChar
	CInt
	SizeT
	SSizeT
)

func (k CIntKind) String() string {
	switch k {
	case CBool:
		return "_Bool"
	case CChar:
		return "char"
	case CInt:
		return "int"
	case SizeT:
		return "size_t"
	case SSizeT:
		return "ssize_t"
	default:
		return "cint?"
	}
}

// Type is a target type. Struct and union bodies live in the symbol table
// and are referenced by tag; inline bodies only appear on type symbols.
type Type struct {
	Kind       TypeKind
	CInt       CIntKind
	Width      int         // bit-vectors, bits
	Elem       *Type       // pointer, array, flexible array, vector
	Size       uint64      // array length, vector lanes
	Tag        string      // struct, union, tags, incomplete struct
	Components []Component // struct, union
	Params     []Parameter // code
	Return     *Type       // code
}

// Component is a struct/union member. Padding components only carry a width.
type Component struct {
	Name    string
	Type    Type
	Padding bool
	Bits    int // padding width
}

// Parameter is a formal parameter of a code type.
type Parameter struct {
	Identifier string
	BaseName   string
	Type       Type
}

// Constructors ---------------------------------------------------------------

func Empty() Type    { return Type{Kind: TypeEmpty} }
func Bool() Type     { return Type{Kind: TypeBool} }
func CBoolT() Type   { return Type{Kind: TypeCInteger, CInt: CBool} }
func CCharT() Type   { return Type{Kind: TypeCInteger, CInt: CChar} }
func CIntT() Type    { return Type{Kind: TypeCInteger, CInt: CInt} }
func SizeTT() Type   { return Type{Kind: TypeCInteger, CInt: SizeT} }
func SSizeTT() Type  { return Type{Kind: TypeCInteger, CInt: SSizeT} }
func Float() Type    { return Type{Kind: TypeFloat} }
func Double() Type   { return Type{Kind: TypeDouble} }
func Float16() Type  { return Type{Kind: TypeFloat16} }
func Float128() Type { return Type{Kind: TypeFloat128} }

// Signed returns a two's complement bit-vector of width bits.
func Signed(width int) Type { return Type{Kind: TypeSignedbv, Width: width} }

// Unsigned returns an unsigned bit-vector of width bits.
func Unsigned(width int) Type { return Type{Kind: TypeUnsignedbv, Width: width} }

// VoidPointer returns void*.
func VoidPointer() Type { return Empty().ToPointer() }

// ToPointer returns a pointer to t.
func (t Type) ToPointer() Type {
	elem := t
	return Type{Kind: TypePointer, Elem: &elem}
}

// ArrayOf returns t[n].
func (t Type) ArrayOf(n uint64) Type {
	elem := t
	return Type{Kind: TypeArray, Elem: &elem, Size: n}
}

// FlexibleArrayOf returns t[].
func (t Type) FlexibleArrayOf() Type {
	elem := t
	return Type{Kind: TypeFlexibleArray, Elem: &elem}
}

// VectorOf returns a vector of n lanes of t.
func (t Type) VectorOf(n uint64) Type {
	elem := t
	return Type{Kind: TypeVector, Elem: &elem, Size: n}
}

// StructTag references the struct declared under name.
func StructTag(name string) Type { return Type{Kind: TypeStructTag, Tag: name} }

// UnionTag references the union declared under name.
func UnionTag(name string) Type { return Type{Kind: TypeUnionTag, Tag: name} }

// IncompleteStruct is a struct whose body is not (yet) known.
func IncompleteStruct(name string) Type { return Type{Kind: TypeIncompleteStruct, Tag: name} }

// StructType is an inline struct body.
func StructType(name string, components []Component) Type {
	return Type{Kind: TypeStruct, Tag: name, Components: components}
}

// UnionType is an inline union body.
func UnionType(name string, components []Component) Type {
	return Type{Kind: TypeUnion, Tag: name, Components: components}
}

// Code is a function type.
func Code(params []Parameter, ret Type) Type {
	r := ret
	return Type{Kind: TypeCode, Params: params, Return: &r}
}

// VariadicCode is a C-variadic function type.
func VariadicCode(params []Parameter, ret Type) Type {
	r := ret
	return Type{Kind: TypeVariadicCode, Params: params, Return: &r}
}

// Field builds a data member.
func Field(name string, t Type) Component {
	return Component{Name: name, Type: t}
}

// Padding builds an anonymous gap of bits width.
func Padding(name string, bits int) Component {
	return Component{Name: name, Padding: true, Bits: bits, Type: Unsigned(bits)}
}

// AsParameter wraps t as an unnamed parameter.
func (t Type) AsParameter(identifier, baseName string) Parameter {
	return Parameter{Identifier: identifier, BaseName: baseName, Type: t}
}

// Predicates -----------------------------------------------------------------

func (t Type) IsEmpty() bool   { return t.Kind == TypeEmpty }
func (t Type) IsPointer() bool { return t.Kind == TypePointer }
func (t Type) IsCode() bool    { return t.Kind == TypeCode || t.Kind == TypeVariadicCode }
func (t Type) IsStructLike() bool {
	return t.Kind == TypeStruct || t.Kind == TypeStructTag || t.Kind == TypeIncompleteStruct
}
func (t Type) IsUnionLike() bool { return t.Kind == TypeUnion || t.Kind == TypeUnionTag }

// IsFloat reports float, double, half and quad types.
func (t Type) IsFloat() bool {
	switch t.Kind {
	case TypeFloat, TypeDouble, TypeFloat16, TypeFloat128:
		return true
	default:
		return false
	}
}

// IsInteger reports bit-vectors and C integers, _Bool included.
func (t Type) IsInteger() bool {
	return t.Kind == TypeSignedbv || t.Kind == TypeUnsignedbv || t.Kind == TypeCInteger
}

// IsSigned reports signed integer types.
func (t Type) IsSigned() bool {
	switch t.Kind {
	case TypeSignedbv:
		return true
	case TypeCInteger:
		return t.CInt == CInt || t.CInt == SSizeT || t.CInt == CChar
	default:
		return false
	}
}

// IsUnsigned reports unsigned integer types.
func (t Type) IsUnsigned() bool {
	return t.IsInteger() && !t.IsSigned()
}

// IsScalar reports types that fit in a register.
func (t Type) IsScalar() bool {
	return t.IsInteger() || t.IsFloat() || t.IsPointer() || t.Kind == TypeBool
}

// Pointee returns the element of a pointer, array or vector.
func (t Type) Pointee() Type {
	if t.Elem == nil {
		return Empty()
	}
	return *t.Elem
}

// Lanes returns the lane count of a vector type.
func (t Type) Lanes() uint64 {
	if t.Kind != TypeVector {
		return 0
	}
	return t.Size
}

// ReturnType returns the result of a code type.
func (t Type) ReturnType() Type {
	if t.Return == nil {
		return Empty()
	}
	return *t.Return
}

// Equal compares two types structurally.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind || t.CInt != o.CInt || t.Width != o.Width || t.Size != o.Size || t.Tag != o.Tag {
		return false
	}
	if (t.Elem == nil) != (o.Elem == nil) || (t.Elem != nil && !t.Elem.Equal(*o.Elem)) {
		return false
	}
	if (t.Return == nil) != (o.Return == nil) || (t.Return != nil && !t.Return.Equal(*o.Return)) {
		return false
	}
	if len(t.Components) != len(o.Components) || len(t.Params) != len(o.Params) {
		return false
	}
	for i := range t.Components {
		a, b := t.Components[i], o.Components[i]
		if a.Name != b.Name || a.Padding != b.Padding || a.Bits != b.Bits || !a.Type.Equal(b.Type) {
			return false
		}
	}
	for i := range t.Params {
		if !t.Params[i].Type.Equal(o.Params[i].Type) {
			return false
		}
	}
	return true
}

// String renders t in C-like syntax.
func (t Type) String() string {
	switch t.Kind {
	case TypeEmpty:
		return "void"
	case TypeBool:
		return "bool"
	case TypeCInteger:
		return t.CInt.String()
	case TypeSignedbv:
		return fmt.Sprintf("signed __CPROVER_bitvector[%d]", t.Width)
	case TypeUnsignedbv:
		return fmt.Sprintf("unsigned __CPROVER_bitvector[%d]", t.Width)
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeFloat16:
		return "_Float16"
	case TypeFloat128:
		return "_Float128"
	case TypePointer:
		return t.Pointee().String() + "*"
	case TypeArray:
		return fmt.Sprintf("%s[%d]", t.Pointee(), t.Size)
	case TypeFlexibleArray:
		return t.Pointee().String() + "[]"
	case TypeVector:
		return fmt.Sprintf("%s __attribute__((vector_size(%d lanes)))", t.Pointee(), t.Size)
	case TypeStruct, TypeStructTag:
		return "struct " + t.Tag
	case TypeUnion, TypeUnionTag:
		return "union " + t.Tag
	case TypeIncompleteStruct:
		return "struct " + t.Tag + " /* incomplete */"
	case TypeCode, TypeVariadicCode:
		params := make([]string, 0, len(t.Params)+1)
		for _, p := range t.Params {
			params = append(params, p.Type.String())
		}
		if t.Kind == TypeVariadicCode {
			params = append(params, "...")
		}
		return fmt.Sprintf("%s (*)(%s)", t.ReturnType(), strings.Join(params, ", "))
	default:
		return fmt.Sprintf("type(%d)", t.Kind)
	}
}
