package gotoc

import "fmt"

// MachineModel fixes the widths of C integer types and pointers, in bits.
type MachineModel struct {
	Architecture string
	PointerWidth int
	IntWidth     int
	CharWidth    int
	BoolWidth    int
	LittleEndian bool
}

// Width returns the bit width of a scalar type.
func (mm MachineModel) Width(t Type) int {
	switch t.Kind {
	case TypeBool:
		return 1
	case TypeCInteger:
		switch t.CInt {
		case CBool:
			return mm.BoolWidth
		case CChar:
			return mm.CharWidth
		case CInt:
			return mm.IntWidth
		default:
			return mm.PointerWidth
		}
	case TypeSignedbv, TypeUnsignedbv:
		return t.Width
	case TypeFloat:
		return 32
	case TypeDouble:
		return 64
	case TypeFloat16:
		return 16
	case TypeFloat128:
		return 128
	case TypePointer:
		return mm.PointerWidth
	default:
		return 0
	}
}

// SizeOfBits returns the storage size of t. Struct components are laid out
// back to back: all padding in a lowered aggregate is explicit.
func (st *SymbolTable) SizeOfBits(t Type) (int, error) {
	return st.sizeOfBits(t, 0)
}

func (st *SymbolTable) sizeOfBits(t Type, depth int) (int, error) {
	if depth > 256 {
		return 0, fmt.Errorf("type nesting too deep at %s", t)
	}
	mm := st.mm
	switch t.Kind {
	case TypeEmpty:
		return 0, nil
	case TypeBool:
		return 8, nil
	case TypeCInteger, TypeSignedbv, TypeUnsignedbv, TypeFloat, TypeDouble, TypeFloat16, TypeFloat128, TypePointer:
		return mm.Width(t), nil
	case TypeArray, TypeVector:
		elem, err := st.sizeOfBits(t.Pointee(), depth+1)
		if err != nil {
			return 0, err
		}
		return elem * int(t.Size), nil
	case TypeFlexibleArray:
		return 0, nil
	case TypeStructTag, TypeUnionTag:
		body, ok := st.LookupAggregate(t.Tag)
		if !ok {
			return 0, fmt.Errorf("unknown tag %q", t.Tag)
		}
		return st.sizeOfBits(body, depth+1)
	case TypeIncompleteStruct:
		return 0, fmt.Errorf("size of incomplete struct %q", t.Tag)
	case TypeStruct:
		total := 0
		for _, c := range t.Components {
			n, err := st.componentBits(c, depth)
			if err != nil {
				return 0, err
			}
			total += n
		}
		return total, nil
	case TypeUnion:
		widest := 0
		for _, c := range t.Components {
			n, err := st.componentBits(c, depth)
			if err != nil {
				return 0, err
			}
			widest = max(widest, n)
		}
		return widest, nil
	case TypeCode, TypeVariadicCode:
		return 0, fmt.Errorf("size of code type %s", t)
	default:
		return 0, fmt.Errorf("size of unknown type kind %d", t.Kind)
	}
}

func (st *SymbolTable) componentBits(c Component, depth int) (int, error) {
	if c.Padding {
		return c.Bits, nil
	}
	return st.sizeOfBits(c.Type, depth+1)
}

// AlignOf returns the natural alignment of t in bytes.
func (st *SymbolTable) AlignOf(t Type) int {
	return st.alignOf(t, 0)
}

func (st *SymbolTable) alignOf(t Type, depth int) int {
	if depth > 256 {
		return 1
	}
	switch t.Kind {
	case TypeStructTag, TypeUnionTag:
		body, ok := st.LookupAggregate(t.Tag)
		if !ok {
			return 1
		}
		return st.alignOf(body, depth+1)
	case TypeStruct, TypeUnion:
		a := 1
		for _, c := range t.Components {
			if c.Padding {
				continue
			}
			a = max(a, st.alignOf(c.Type, depth+1))
		}
		return a
	case TypeArray, TypeFlexibleArray:
		return st.alignOf(t.Pointee(), depth+1)
	case TypeVector:
		bits, err := st.sizeOfBits(t, depth+1)
		if err != nil || bits < 8 {
			return 1
		}
		a := 1
		for a < bits/8 {
			a <<= 1
		}
		return a
	case TypeBool:
		return 1
	default:
		w := st.mm.Width(t)
		if w < 8 {
			return 1
		}
		return w / 8
	}
}
