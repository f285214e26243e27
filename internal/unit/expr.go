package unit

import (
	"fmt"
	"strconv"
	"strings"

	"gotolower/internal/types"
)

// ExprKind tags a parsed type expression.
type ExprKind uint8

const (
	ExprName  ExprKind = iota + 1 // scalar or declared path, optional <args>
	ExprRef                       // &T, &mut T
	ExprPtr                       // *const T, *mut T
	ExprSlice                     // [T]
	ExprArray                     // [T; N]
	ExprTuple                     // (), (T,), (T, U)
	ExprDyn                       // dyn Trait
	ExprFn                        // fn(T, U) -> R
	ExprNever                     // !
)

// TypeExpr is a type as written in a unit file. Start and End are byte
// offsets into the string it was parsed from.
type TypeExpr struct {
	Kind     ExprKind
	Path     string      // ExprName, ExprDyn
	Args     []*TypeExpr // generic arguments, tuple elements, fn inputs
	Elem     *TypeExpr   // ExprRef, ExprPtr, ExprSlice, ExprArray; fn output
	Mut      bool
	Len      uint64
	Variadic bool
	ABI      types.ABI
	Start    int
	End      int
}

// String renders the canonical spelling used as a lookup key: single
// spaces after commas, none inside brackets.
func (e *TypeExpr) String() string {
	var sb strings.Builder
	e.write(&sb)
	return sb.String()
}

func (e *TypeExpr) write(sb *strings.Builder) {
	switch e.Kind {
	case ExprName:
		sb.WriteString(e.Path)
		if len(e.Args) > 0 {
			sb.WriteByte('<')
			writeList(sb, e.Args)
			sb.WriteByte('>')
		}
	case ExprRef:
		sb.WriteByte('&')
		if e.Mut {
			sb.WriteString("mut ")
		}
		e.Elem.write(sb)
	case ExprPtr:
		if e.Mut {
			sb.WriteString("*mut ")
		} else {
			sb.WriteString("*const ")
		}
		e.Elem.write(sb)
	case ExprSlice:
		sb.WriteByte('[')
		e.Elem.write(sb)
		sb.WriteByte(']')
	case ExprArray:
		sb.WriteByte('[')
		e.Elem.write(sb)
		fmt.Fprintf(sb, "; %d]", e.Len)
	case ExprTuple:
		sb.WriteByte('(')
		writeList(sb, e.Args)
		if len(e.Args) == 1 {
			sb.WriteByte(',')
		}
		sb.WriteByte(')')
	case ExprDyn:
		sb.WriteString("dyn ")
		sb.WriteString(e.Path)
	case ExprFn:
		switch e.ABI {
		case types.ABIC:
			sb.WriteString(`extern "C" `)
		case types.ABIRustCall:
			sb.WriteString(`extern "rust-call" `)
		}
		sb.WriteString("fn(")
		writeList(sb, e.Args)
		if e.Variadic {
			if len(e.Args) > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("...")
		}
		sb.WriteByte(')')
		if e.Elem != nil {
			sb.WriteString(" -> ")
			e.Elem.write(sb)
		}
	case ExprNever:
		sb.WriteByte('!')
	}
}

func writeList(sb *strings.Builder, list []*TypeExpr) {
	for i, a := range list {
		if i > 0 {
			sb.WriteString(", ")
		}
		a.write(sb)
	}
}

// ConstKind tags a constant argument value.
type ConstKind uint8

const (
	ConstInt ConstKind = iota + 1
	ConstBool
	ConstArray
)

// Const is a literal argument of an intrinsic call, e.g. shuffle indices.
type Const struct {
	Kind  ConstKind
	Int   int64
	Bool  bool
	Elems []Const
}

func (c Const) String() string {
	switch c.Kind {
	case ConstInt:
		return strconv.FormatInt(c.Int, 10)
	case ConstBool:
		return strconv.FormatBool(c.Bool)
	case ConstArray:
		parts := make([]string, len(c.Elems))
		for i, e := range c.Elems {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "?"
}
