package lower

import (
	"fmt"
	"strings"

	"gotolower/internal/gotoc"
)

func overflowOp(name string, a, b gotoc.Expr) gotoc.ArithOverflow {
	switch {
	case strings.Contains(name, "add"):
		return a.AddOverflow(b)
	case strings.Contains(name, "sub"):
		return a.SubOverflow(b)
	default:
		return a.MulOverflow(b)
	}
}

// withOverflow returns the (wrapped result, overflowed) pair.
func (c *Ctx) withOverflow(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 2) {
		return c.placeholder(call)
	}
	res := overflowOp(call.Name, call.Args[0], call.Args[1])
	return c.storeStruct(call, res.Result, res.Overflowed.Cast(gotoc.CBoolT()))
}

func (c *Ctx) uncheckedArith(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 2) {
		return c.placeholder(call)
	}
	res := overflowOp(call.Name, call.Args[0], call.Args[1])
	return gotoc.Block([]gotoc.Stmt{
		gotoc.Assert(res.Overflowed.Not(), gotoc.PropArithmeticOverflow,
			fmt.Sprintf("attempt to compute %s which would overflow", call.Name), call.Span),
		c.toPlace(call, res.Result),
	}, call.Span)
}

func (c *Ctx) wrappingArith(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 2) {
		return c.placeholder(call)
	}
	return c.toPlace(call, overflowOp(call.Name, call.Args[0], call.Args[1]).Result)
}

// saturatingArith clamps to the bound the operation ran past: for signed
// operands the sign of the second operand tells which one.
func (c *Ctx) saturatingArith(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 2) {
		return c.placeholder(call)
	}
	a, b := call.Args[0], call.Args[1]
	t := a.Type
	lo, hi := gotoc.MinValue(t, c.mm), gotoc.MaxValue(t, c.mm)
	res := overflowOp(call.Name, a, b)
	add := strings.HasSuffix(call.Name, "add")
	var bound gotoc.Expr
	switch {
	case t.IsSigned() && add:
		bound = b.Lt(gotoc.IntConstant(0, t)).Ternary(lo, hi)
	case t.IsSigned():
		bound = b.Lt(gotoc.IntConstant(0, t)).Ternary(hi, lo)
	case add:
		bound = hi
	default:
		bound = lo
	}
	return c.toPlace(call, res.Overflowed.Ternary(bound, res.Result))
}

// divChecks asserts a nonzero divisor and, for signed operands, that the
// division is not MIN / -1.
func (c *Ctx) divChecks(a, b gotoc.Expr, zeroMsg, ovfMsg string, prop gotoc.PropertyClass, call IntrinsicCall) []gotoc.Stmt {
	t := a.Type
	zeroProp, ovfProp := gotoc.PropDivisionByZero, gotoc.PropArithmeticOverflow
	if prop != "" {
		zeroProp, ovfProp = prop, prop
	}
	out := []gotoc.Stmt{
		gotoc.Assert(b.Neq(gotoc.IntConstant(0, b.Type)), zeroProp, zeroMsg, call.Span),
	}
	if t.IsSigned() {
		minOverNeg := a.Eq(gotoc.MinValue(t, c.mm)).And(b.Eq(gotoc.IntConstant(-1, b.Type)))
		out = append(out, gotoc.Assert(minOverNeg.Not(), ovfProp, ovfMsg, call.Span))
	}
	return out
}

func (c *Ctx) uncheckedDiv(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 2) {
		return c.placeholder(call)
	}
	a, b := call.Args[0], call.Args[1]
	var stmts []gotoc.Stmt
	var res gotoc.Expr
	if call.Name == "unchecked_div" {
		stmts = c.divChecks(a, b, "attempt to divide by zero", "attempt to divide with overflow", "", call)
		res = a.Div(b)
	} else {
		stmts = c.divChecks(a, b, "attempt to calculate the remainder with a divisor of zero",
			"attempt to calculate the remainder with overflow", "", call)
		res = a.Rem(b)
	}
	stmts = append(stmts, c.toPlace(call, res))
	return gotoc.Block(stmts, call.Span)
}

func (c *Ctx) exactDiv(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 2) {
		return c.placeholder(call)
	}
	a, b := call.Args[0], call.Args[1]
	stmts := c.divChecks(a, b, "exact_div divisor is nonzero", "exact_div division does not overflow", gotoc.PropExactDiv, call)
	stmts = append(stmts,
		gotoc.Assert(a.Rem(b).Eq(gotoc.IntConstant(0, a.Type)), gotoc.PropExactDiv, "exact_div arguments divide exactly", call.Span),
		c.toPlace(call, a.Div(b)),
	)
	return gotoc.Block(stmts, call.Span)
}

// shiftChecks asserts 0 <= dist < bits. Both are assumed afterwards.
func (c *Ctx) shiftChecks(dist gotoc.Expr, bits int, call IntrinsicCall) []gotoc.Stmt {
	var out []gotoc.Stmt
	if dist.Type.IsSigned() {
		out = append(out, gotoc.AssertAssume(dist.Ge(gotoc.IntConstant(0, dist.Type)),
			gotoc.PropArithmeticOverflow, "attempt to shift by negative distance", call.Span))
	}
	out = append(out, gotoc.AssertAssume(dist.Lt(gotoc.IntConstant(int64(bits), dist.Type)),
		gotoc.PropArithmeticOverflow, "attempt to shift by excessive shift distance", call.Span))
	return out
}

func (c *Ctx) uncheckedShift(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 2) {
		return c.placeholder(call)
	}
	a, dist := call.Args[0], call.Args[1]
	stmts := c.shiftChecks(dist, c.mm.Width(a.Type), call)
	res := a.Shl(dist)
	if call.Name == "unchecked_shr" {
		res = a.Shr(dist)
	}
	stmts = append(stmts, c.toPlace(call, res))
	return gotoc.Block(stmts, call.Span)
}

func (c *Ctx) rotate(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 2) {
		return c.placeholder(call)
	}
	a, n := call.Args[0], call.Args[1]
	if call.Name == "rotate_left" {
		return c.toPlace(call, a.Rol(n))
	}
	return c.toPlace(call, a.Ror(n))
}

// fastFloat requires finite operands; the result is then ordinary float
// arithmetic.
func (c *Ctx) fastFloat(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 2) {
		return c.placeholder(call)
	}
	a, b := call.Args[0], call.Args[1]
	var res gotoc.Expr
	switch call.Name {
	case "fadd_fast":
		res = a.Plus(b)
	case "fsub_fast":
		res = a.Minus(b)
	case "fmul_fast":
		res = a.Mul(b)
	case "fdiv_fast":
		res = a.Div(b)
	default:
		res = a.Rem(b)
	}
	return gotoc.Block([]gotoc.Stmt{
		gotoc.Assert(a.IsFinite(), gotoc.PropFiniteCheck, fmt.Sprintf("first argument for %s is finite", call.Name), call.Span),
		gotoc.Assert(b.IsFinite(), gotoc.PropFiniteCheck, fmt.Sprintf("second argument for %s is finite", call.Name), call.Span),
		c.toPlace(call, res),
	}, call.Span)
}

// countInBytes multiplies count by the size of elem in type t and asserts
// the product does not overflow.
func (c *Ctx) countInBytes(call IntrinsicCall, count gotoc.Expr, elemSize int, t gotoc.Type) (gotoc.Expr, gotoc.Stmt) {
	res := count.Cast(t).MulOverflow(gotoc.IntConstant(int64(elemSize), t))
	check := gotoc.Assert(res.Overflowed.Not(), gotoc.PropArithmeticOverflow,
		fmt.Sprintf("%s: attempt to compute number in bytes which would overflow", call.Name), call.Span)
	return res.Result, check
}

// offset moves a pointer by count elements; the byte distance and the
// resulting address must not overflow.
func (c *Ctx) offset(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 2) {
		return c.placeholder(call)
	}
	elem, ok := c.genericArg(call, 0)
	if !ok {
		return c.placeholder(call)
	}
	src, count := call.Args[0], call.Args[1]
	bytes, bytesCheck := c.countInBytes(call, count, c.layoutOf(elem).Size, gotoc.SSizeTT())
	addr := src.Cast(gotoc.SSizeTT()).AddOverflow(bytes)
	return gotoc.Block([]gotoc.Stmt{
		bytesCheck,
		gotoc.Assert(addr.Overflowed.Not(), gotoc.PropArithmeticOverflow, "attempt to compute offset which would overflow", call.Span),
		c.toPlace(call, src.Plus(count)),
	}, call.Span)
}

// arithOffset wraps around instead of checking.
func (c *Ctx) arithOffset(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 2) {
		return c.placeholder(call)
	}
	return c.toPlace(call, call.Args[0].Plus(call.Args[1]))
}
