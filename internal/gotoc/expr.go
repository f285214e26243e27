package gotoc

import (
	"fmt"
	"math/big"

	"github.com/vmihailenco/msgpack/v5"

	"gotolower/internal/source"
)

// ExprKind enumerates expression shapes.
type ExprKind uint8

const (
	ExprSymbol ExprKind = iota
	ExprIntConstant
	ExprBoolConstant
	ExprStringConstant
	ExprAddressOf
	ExprDereference
	ExprMember
	ExprIndex
	ExprTypecast
	ExprBinary
	ExprUnary
	ExprIf
	ExprCall
	ExprStruct
	ExprArray
	ExprVector
	ExprNondet
	ExprByteExtract
)

// BinaryOp enumerates binary operators.
type BinaryOp uint8

const (
	OpAnd BinaryOp = iota
	OpOr
	OpPlus
	OpMinus
	OpMult
	OpDiv
	OpMod
	OpShl
	OpAshr
	OpLshr
	OpRol
	OpRor
	OpBitand
	OpBitor
	OpBitxor
	OpEqual
	OpNotequal
	OpLt
	OpLe
	OpGt
	OpGe
	OpOverflowPlus
	OpOverflowMinus
	OpOverflowMult
)

var binaryOpNames = [...]string{
	OpAnd: "&&", OpOr: "||", OpPlus: "+", OpMinus: "-", OpMult: "*", OpDiv: "/", OpMod: "%",
	OpShl: "<<", OpAshr: ">>a", OpLshr: ">>l", OpRol: "rol", OpRor: "ror",
	OpBitand: "&", OpBitor: "|", OpBitxor: "^",
	OpEqual: "==", OpNotequal: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpOverflowPlus: "overflow-+", OpOverflowMinus: "overflow--", OpOverflowMult: "overflow-*",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOpNames) {
		return binaryOpNames[op]
	}
	return fmt.Sprintf("binop(%d)", op)
}

// UnaryOp enumerates unary operators.
type UnaryOp uint8

const (
	OpNot UnaryOp = iota
	OpBitnot
	OpUnaryMinus
	OpBswap
	OpBitReverse
	OpPopcount
	OpCountLeadingZeros
	OpCountTrailingZeros
	OpIsFinite
	OpIsNan
	OpObjectSize
	OpPointerObject
	OpPointerOffset
)

var unaryOpNames = [...]string{
	OpNot: "!", OpBitnot: "~", OpUnaryMinus: "-", OpBswap: "bswap", OpBitReverse: "bitreverse",
	OpPopcount: "popcount", OpCountLeadingZeros: "count_leading_zeros", OpCountTrailingZeros: "count_trailing_zeros",
	OpIsFinite: "isfinite", OpIsNan: "isnan", OpObjectSize: "OBJECT_SIZE",
	OpPointerObject: "POINTER_OBJECT", OpPointerOffset: "POINTER_OFFSET",
}

func (op UnaryOp) String() string {
	if int(op) < len(unaryOpNames) {
		return unaryOpNames[op]
	}
	return fmt.Sprintf("unop(%d)", op)
}

// Int is an arbitrary-precision integer constant.
type Int struct {
	big.Int
}

// EncodeMsgpack stores the constant as its decimal text.
func (i *Int) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(i.String())
}

// DecodeMsgpack restores a constant written by EncodeMsgpack.
func (i *Int) DecodeMsgpack(dec *msgpack.Decoder) error {
	s, err := dec.DecodeString()
	if err != nil {
		return err
	}
	if _, ok := i.SetString(s, 10); !ok {
		return fmt.Errorf("gotoc: bad integer constant %q", s)
	}
	return nil
}

// Expr is a typed target expression.
type Expr struct {
	Kind     ExprKind
	Type     Type
	Name     string // symbol identifier, member name, string constant
	Value    *Int   // integer constant
	Bool     bool   // bool constant; allow-zero flag of count_*_zeros
	BinOp    BinaryOp
	UnOp     UnaryOp
	Operands []Expr
	Loc      source.Span
}

// ArithOverflow pairs a wrapping result with its overflow predicate.
type ArithOverflow struct {
	Result     Expr
	Overflowed Expr
}

// Leaves ---------------------------------------------------------------------

// SymbolExpr references a declared symbol.
func SymbolExpr(name string, t Type) Expr {
	return Expr{Kind: ExprSymbol, Name: name, Type: t}
}

// IntConstant builds an integer literal of type t.
func IntConstant(v int64, t Type) Expr {
	return Expr{Kind: ExprIntConstant, Type: t, Value: &Int{Int: *big.NewInt(v)}}
}

// UintConstant builds an unsigned literal of type t.
func UintConstant(v uint64, t Type) Expr {
	n := new(big.Int).SetUint64(v)
	return Expr{Kind: ExprIntConstant, Type: t, Value: &Int{Int: *n}}
}

// BigIntConstant builds a literal from an arbitrary-precision value.
func BigIntConstant(v *big.Int, t Type) Expr {
	n := new(big.Int).Set(v)
	return Expr{Kind: ExprIntConstant, Type: t, Value: &Int{Int: *n}}
}

// BoolConstant builds true or false.
func BoolConstant(b bool) Expr {
	return Expr{Kind: ExprBoolConstant, Type: Bool(), Bool: b}
}

func True() Expr  { return BoolConstant(true) }
func False() Expr { return BoolConstant(false) }

// StringConstant is a pointer to a NUL-terminated char array.
func StringConstant(s string) Expr {
	return Expr{Kind: ExprStringConstant, Name: s, Type: CCharT().ToPointer()}
}

// Nondet is an unconstrained value of type t.
func Nondet(t Type) Expr {
	return Expr{Kind: ExprNondet, Type: t}
}

// MinValue is the smallest value of an integer type.
func MinValue(t Type, mm MachineModel) Expr {
	if !t.IsSigned() {
		return IntConstant(0, t)
	}
	w := mm.Width(t)
	v := new(big.Int).Lsh(big.NewInt(1), uint(w-1))
	return BigIntConstant(v.Neg(v), t)
}

// MaxValue is the largest value of an integer type.
func MaxValue(t Type, mm MachineModel) Expr {
	w := mm.Width(t)
	if t.IsSigned() {
		w--
	}
	v := new(big.Int).Lsh(big.NewInt(1), uint(w))
	return BigIntConstant(v.Sub(v, big.NewInt(1)), t)
}

// IsIntConstant reports whether e is the integer literal v.
func (e Expr) IsIntConstant(v int64) bool {
	return e.Kind == ExprIntConstant && e.Value != nil && e.Value.IsInt64() && e.Value.Int64() == v
}

// WithLoc attaches a source location.
func (e Expr) WithLoc(loc source.Span) Expr {
	e.Loc = loc
	return e
}

// Access ---------------------------------------------------------------------

// AddressOf returns &e.
func (e Expr) AddressOf() Expr {
	return Expr{Kind: ExprAddressOf, Type: e.Type.ToPointer(), Operands: []Expr{e}, Loc: e.Loc}
}

// Dereference returns *e.
func (e Expr) Dereference() Expr {
	return Expr{Kind: ExprDereference, Type: e.Type.Pointee(), Operands: []Expr{e}, Loc: e.Loc}
}

// Member returns e.name; the component type is resolved through st.
// A missing component is an internal error.
func (e Expr) Member(name string, st *SymbolTable) Expr {
	c, ok := st.Component(e.Type, name)
	if !ok {
		panic(fmt.Sprintf("gotoc: %s has no member %q", e.Type, name))
	}
	return Expr{Kind: ExprMember, Type: c.Type, Name: name, Operands: []Expr{e}, Loc: e.Loc}
}

// Index returns e[i] for arrays, vectors and pointers.
func (e Expr) Index(i Expr) Expr {
	return Expr{Kind: ExprIndex, Type: e.Type.Pointee(), Operands: []Expr{e, i}, Loc: e.Loc}
}

// Cast converts e to t; a cast to the same type is elided.
func (e Expr) Cast(t Type) Expr {
	if e.Type.Equal(t) {
		return e
	}
	return Expr{Kind: ExprTypecast, Type: t, Operands: []Expr{e}, Loc: e.Loc}
}

// Transmute reinterprets the bytes of e as t.
func (e Expr) Transmute(t Type) Expr {
	return Expr{Kind: ExprByteExtract, Type: t, Operands: []Expr{e}, Loc: e.Loc}
}

// Operators ------------------------------------------------------------------

// Binary builds a binary operation; comparisons and logic produce bool.
func Binary(op BinaryOp, l, r Expr) Expr {
	t := l.Type
	switch op {
	case OpAnd, OpOr, OpEqual, OpNotequal, OpLt, OpLe, OpGt, OpGe, OpOverflowPlus, OpOverflowMinus, OpOverflowMult:
		t = Bool()
	}
	return Expr{Kind: ExprBinary, Type: t, BinOp: op, Operands: []Expr{l, r}, Loc: l.Loc}
}

func (e Expr) Plus(o Expr) Expr   { return Binary(OpPlus, e, o) }
func (e Expr) Minus(o Expr) Expr  { return Binary(OpMinus, e, o) }
func (e Expr) Mul(o Expr) Expr    { return Binary(OpMult, e, o) }
func (e Expr) Div(o Expr) Expr    { return Binary(OpDiv, e, o) }
func (e Expr) Rem(o Expr) Expr    { return Binary(OpMod, e, o) }
func (e Expr) Shl(o Expr) Expr    { return Binary(OpShl, e, o) }
func (e Expr) Ashr(o Expr) Expr   { return Binary(OpAshr, e, o) }
func (e Expr) Lshr(o Expr) Expr   { return Binary(OpLshr, e, o) }
func (e Expr) Rol(o Expr) Expr    { return Binary(OpRol, e, o) }
func (e Expr) Ror(o Expr) Expr    { return Binary(OpRor, e, o) }
func (e Expr) BitAnd(o Expr) Expr { return Binary(OpBitand, e, o) }
func (e Expr) BitOr(o Expr) Expr  { return Binary(OpBitor, e, o) }
func (e Expr) BitXor(o Expr) Expr { return Binary(OpBitxor, e, o) }
func (e Expr) And(o Expr) Expr    { return Binary(OpAnd, e, o) }
func (e Expr) Or(o Expr) Expr     { return Binary(OpOr, e, o) }
func (e Expr) Eq(o Expr) Expr     { return Binary(OpEqual, e, o) }
func (e Expr) Neq(o Expr) Expr    { return Binary(OpNotequal, e, o) }
func (e Expr) Lt(o Expr) Expr     { return Binary(OpLt, e, o) }
func (e Expr) Le(o Expr) Expr     { return Binary(OpLe, e, o) }
func (e Expr) Gt(o Expr) Expr     { return Binary(OpGt, e, o) }
func (e Expr) Ge(o Expr) Expr     { return Binary(OpGe, e, o) }

// Shr shifts arithmetically for signed operands and logically otherwise.
func (e Expr) Shr(o Expr) Expr {
	if e.Type.IsSigned() {
		return e.Ashr(o)
	}
	return e.Lshr(o)
}

// AddOverflow computes e + o together with its overflow predicate.
func (e Expr) AddOverflow(o Expr) ArithOverflow {
	return ArithOverflow{Result: e.Plus(o), Overflowed: Binary(OpOverflowPlus, e, o)}
}

// SubOverflow computes e - o together with its overflow predicate.
func (e Expr) SubOverflow(o Expr) ArithOverflow {
	return ArithOverflow{Result: e.Minus(o), Overflowed: Binary(OpOverflowMinus, e, o)}
}

// MulOverflow computes e * o together with its overflow predicate.
func (e Expr) MulOverflow(o Expr) ArithOverflow {
	return ArithOverflow{Result: e.Mul(o), Overflowed: Binary(OpOverflowMult, e, o)}
}

// Unary builds a unary operation.
func Unary(op UnaryOp, e Expr) Expr {
	t := e.Type
	switch op {
	case OpNot, OpIsFinite, OpIsNan:
		t = Bool()
	case OpObjectSize, OpPointerOffset, OpPointerObject:
		t = SizeTT()
	}
	return Expr{Kind: ExprUnary, Type: t, UnOp: op, Operands: []Expr{e}, Loc: e.Loc}
}

func (e Expr) Not() Expr        { return Unary(OpNot, e) }
func (e Expr) BitNot() Expr     { return Unary(OpBitnot, e) }
func (e Expr) Neg() Expr        { return Unary(OpUnaryMinus, e) }
func (e Expr) Bswap() Expr      { return Unary(OpBswap, e) }
func (e Expr) BitReverse() Expr { return Unary(OpBitReverse, e) }
func (e Expr) Popcount() Expr   { return Unary(OpPopcount, e) }
func (e Expr) IsFinite() Expr   { return Unary(OpIsFinite, e) }
func (e Expr) IsNan() Expr      { return Unary(OpIsNan, e) }

// PointerObject identifies the object a pointer points into.
func (e Expr) PointerObject() Expr { return Unary(OpPointerObject, e) }

// PointerOffset is the byte offset of a pointer inside its object.
func (e Expr) PointerOffset() Expr { return Unary(OpPointerOffset, e) }

// ObjectSize is the byte size of the object a pointer points into.
func (e Expr) ObjectSize() Expr { return Unary(OpObjectSize, e) }

// CountLeadingZeros counts from the most significant bit. When allowZero is
// false, a zero operand is undefined.
func (e Expr) CountLeadingZeros(allowZero bool) Expr {
	out := Unary(OpCountLeadingZeros, e)
	out.Bool = allowZero
	return out
}

// CountTrailingZeros counts from the least significant bit.
func (e Expr) CountTrailingZeros(allowZero bool) Expr {
	out := Unary(OpCountTrailingZeros, e)
	out.Bool = allowZero
	return out
}

// Ternary returns e ? t : f.
func (e Expr) Ternary(t, f Expr) Expr {
	return Expr{Kind: ExprIf, Type: t.Type, Operands: []Expr{e, t, f}, Loc: e.Loc}
}

// Call invokes fn with args.
func Call(fn Expr, args []Expr) Expr {
	ops := make([]Expr, 0, len(args)+1)
	ops = append(ops, fn)
	ops = append(ops, args...)
	return Expr{Kind: ExprCall, Type: fn.Type.ReturnType(), Operands: ops, Loc: fn.Loc}
}

// Aggregates -----------------------------------------------------------------

// StructExpr builds a value of struct type t from its non-padding fields in
// declaration order.
func StructExpr(t Type, values []Expr, st *SymbolTable) Expr {
	body, ok := st.AggregateBody(t)
	if !ok {
		panic(fmt.Sprintf("gotoc: struct expression of unknown type %s", t))
	}
	n := 0
	for _, c := range body.Components {
		if !c.Padding {
			n++
		}
	}
	if n != len(values) {
		panic(fmt.Sprintf("gotoc: struct %s has %d fields, got %d values", t, n, len(values)))
	}
	return Expr{Kind: ExprStruct, Type: t, Operands: append([]Expr(nil), values...)}
}

// ArrayExpr builds an array literal.
func ArrayExpr(t Type, elems []Expr) Expr {
	return Expr{Kind: ExprArray, Type: t, Operands: append([]Expr(nil), elems...)}
}

// VectorExpr builds a vector literal.
func VectorExpr(t Type, elems []Expr) Expr {
	return Expr{Kind: ExprVector, Type: t, Operands: append([]Expr(nil), elems...)}
}
