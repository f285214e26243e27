package lower

import (
	"fmt"
	"strconv"
	"strings"

	"gotolower/internal/diag"
	"gotolower/internal/gotoc"
)

var simdCompare = map[string]gotoc.BinaryOp{
	"simd_eq": gotoc.OpEqual,
	"simd_ne": gotoc.OpNotequal,
	"simd_lt": gotoc.OpLt,
	"simd_le": gotoc.OpLe,
	"simd_gt": gotoc.OpGt,
	"simd_ge": gotoc.OpGe,
}

var simdArith = map[string]gotoc.BinaryOp{
	"simd_add": gotoc.OpPlus,
	"simd_sub": gotoc.OpMinus,
	"simd_mul": gotoc.OpMult,
	"simd_div": gotoc.OpDiv,
	"simd_rem": gotoc.OpMod,
	"simd_and": gotoc.OpBitand,
	"simd_or":  gotoc.OpBitor,
	"simd_xor": gotoc.OpBitxor,
}

// checkSimdReturn validates the return vector against the input vector.
// Comparisons may return any integer lanes; everything else must return
// the input's element type.
func (c *Ctx) checkSimdReturn(call IntrinsicCall, in, ret gotoc.Type, compare bool) bool {
	if in.Lanes() != ret.Lanes() {
		c.reportError(diag.LowSimdLaneMismatch, call.Span, fmt.Sprintf(
			"invalid monomorphization of `%s` intrinsic: expected return type with length %d (same as input type `%s`), found `%s` with length %d",
			call.Name, in.Lanes(), c.argLabel(call, 0), c.label(call.Ret), ret.Lanes()))
		return false
	}
	if compare {
		if !ret.Pointee().IsInteger() {
			c.reportError(diag.LowSimdElementMismatch, call.Span, fmt.Sprintf(
				"invalid monomorphization of `%s` intrinsic: expected return type with integer elements, found `%s` with non-integer `%s`",
				call.Name, c.label(call.Ret), ret.Pointee()))
			return false
		}
		return true
	}
	if !in.Pointee().Equal(ret.Pointee()) {
		c.reportError(diag.LowSimdElementMismatch, call.Span, fmt.Sprintf(
			"invalid monomorphization of `%s` intrinsic: expected return element type `%s` (element of input `%s`), found `%s` with element type `%s`",
			call.Name, in.Pointee(), c.argLabel(call, 0), c.label(call.Ret), ret.Pointee()))
		return false
	}
	return true
}

func lane(v gotoc.Expr, i uint64) gotoc.Expr {
	return v.Index(gotoc.UintConstant(i, gotoc.SizeTT()))
}

// anyLane ORs pred over every lane pair.
func anyLane(a, b gotoc.Expr, pred func(x, y gotoc.Expr) gotoc.Expr) gotoc.Expr {
	out := gotoc.False()
	for i := uint64(0); i < a.Type.Lanes(); i++ {
		p := pred(lane(a, i), lane(b, i))
		if i == 0 {
			out = p
		} else {
			out = out.Or(p)
		}
	}
	return out
}

func (c *Ctx) lowerSimd(call IntrinsicCall) gotoc.Stmt {
	switch call.Name {
	case "simd_insert":
		return c.simdInsert(call)
	case "simd_extract":
		return c.simdExtract(call)
	case "simd_shl", "simd_shr":
		return c.simdShift(call)
	}
	op, isCmp := simdCompare[call.Name]
	if !isCmp {
		var ok bool
		if op, ok = simdArith[call.Name]; !ok {
			return c.unsupported(call, diag.LowUnsupported)
		}
	}
	if !c.arity(call, 2) {
		return c.placeholder(call)
	}
	a, b := call.Args[0], call.Args[1]
	retT := c.retType(call)
	if !c.checkSimdReturn(call, a.Type, retT, isCmp) {
		return c.placeholder(call)
	}
	res := gotoc.Binary(op, a, b)
	if isCmp {
		res.Type = retT
		return c.toPlace(call, res)
	}

	var checks []gotoc.Stmt
	if a.Type.Pointee().IsInteger() {
		switch call.Name {
		case "simd_add", "simd_sub", "simd_mul":
			ovf := anyLane(a, b, func(x, y gotoc.Expr) gotoc.Expr {
				return overflowOp(call.Name, x, y).Overflowed
			})
			checks = append(checks, gotoc.Assert(ovf.Not(), gotoc.PropArithmeticOverflow,
				fmt.Sprintf("attempt to compute %s which would overflow", call.Name), call.Span))
		case "simd_div", "simd_rem":
			zero := anyLane(a, b, func(_, y gotoc.Expr) gotoc.Expr {
				return y.Eq(gotoc.IntConstant(0, y.Type))
			})
			checks = append(checks, gotoc.Assert(zero.Not(), gotoc.PropDivisionByZero,
				fmt.Sprintf("attempt to compute %s with a zero divisor", call.Name), call.Span))
		}
	}
	if len(checks) == 0 {
		return c.toPlace(call, res)
	}
	return gotoc.Block(append(checks, c.toPlace(call, res)), call.Span)
}

// simdShift checks every lane's distance against the element width.
func (c *Ctx) simdShift(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 2) {
		return c.placeholder(call)
	}
	a, dist := call.Args[0], call.Args[1]
	retT := c.retType(call)
	if !c.checkSimdReturn(call, a.Type, retT, false) {
		return c.placeholder(call)
	}
	elem := dist.Type.Pointee()
	bits := int64(c.mm.Width(a.Type.Pointee()))
	var checks []gotoc.Stmt
	if elem.IsSigned() {
		neg := anyLane(dist, dist, func(x, _ gotoc.Expr) gotoc.Expr { return x.Lt(gotoc.IntConstant(0, elem)) })
		checks = append(checks, gotoc.AssertAssume(neg.Not(), gotoc.PropArithmeticOverflow,
			"attempt to shift by negative distance", call.Span))
	}
	big := anyLane(dist, dist, func(x, _ gotoc.Expr) gotoc.Expr { return x.Ge(gotoc.IntConstant(bits, elem)) })
	checks = append(checks, gotoc.AssertAssume(big.Not(), gotoc.PropArithmeticOverflow,
		"attempt to shift by excessive shift distance", call.Span))
	res := a.Shl(dist)
	if call.Name == "simd_shr" {
		res = a.Shr(dist)
	}
	return gotoc.Block(append(checks, c.toPlace(call, res)), call.Span)
}

func constIndex(e gotoc.Expr) (int64, bool) {
	if e.Kind != gotoc.ExprIntConstant || e.Value == nil || !e.Value.IsInt64() {
		return 0, false
	}
	return e.Value.Int64(), true
}

func (c *Ctx) simdInsert(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 3) {
		return c.placeholder(call)
	}
	vec, idx, val := call.Args[0], call.Args[1], call.Args[2]
	retT := c.retType(call)
	if !c.checkSimdReturn(call, vec.Type, retT, false) {
		return c.placeholder(call)
	}
	if i, ok := constIndex(idx); ok && (i < 0 || uint64(i) >= vec.Type.Lanes()) {
		return c.typeError(call, diag.LowSimdShuffleIndex,
			fmt.Sprintf("index %d is out of bounds for a vector of length %d", i, vec.Type.Lanes()))
	}
	tmp, decl := c.newTemp(call.Fn, vec.Type, call.Span)
	return gotoc.Block([]gotoc.Stmt{
		decl,
		gotoc.Assign(tmp, vec, call.Span),
		gotoc.Assign(tmp.Index(idx), val.Cast(vec.Type.Pointee()), call.Span),
		c.toPlace(call, tmp),
	}, call.Span)
}

func (c *Ctx) simdExtract(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 2) {
		return c.placeholder(call)
	}
	vec, idx := call.Args[0], call.Args[1]
	retT := c.retType(call)
	if !vec.Type.Pointee().Equal(retT) {
		return c.typeError(call, diag.LowSimdElementMismatch,
			fmt.Sprintf("expected return type `%s` (element of input `%s`), found `%s`", vec.Type.Pointee(), c.argLabel(call, 0), c.label(call.Ret)))
	}
	if i, ok := constIndex(idx); ok && (i < 0 || uint64(i) >= vec.Type.Lanes()) {
		return c.typeError(call, diag.LowSimdShuffleIndex,
			fmt.Sprintf("index %d is out of bounds for a vector of length %d", i, vec.Type.Lanes()))
	}
	return c.toPlace(call, vec.Index(idx))
}

// shuffleIndices returns the N constant lane indices of a shuffle. The
// index operand is an array constant, possibly inside its wrapper struct.
func (c *Ctx) shuffleIndices(call IntrinsicCall, n uint64) ([]int64, bool) {
	idx := call.Args[2]
	if idx.Kind == gotoc.ExprStruct && len(idx.Operands) == 1 {
		idx = idx.Operands[0]
	}
	if idx.Kind != gotoc.ExprArray && idx.Kind != gotoc.ExprVector {
		c.typeError(call, diag.LowSimdShuffleIndex, "shuffle indices must be a constant array")
		return nil, false
	}
	if uint64(len(idx.Operands)) != n {
		c.typeError(call, diag.LowSimdShuffleIndex,
			fmt.Sprintf("expected %d shuffle indices, found %d", n, len(idx.Operands)))
		return nil, false
	}
	out := make([]int64, n)
	for i, e := range idx.Operands {
		v, ok := constIndex(e)
		if !ok {
			c.typeError(call, diag.LowSimdShuffleIndex, fmt.Sprintf("shuffle index #%d is not a constant", i))
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// simdShuffle picks each result lane from the concatenation of the two
// inputs. simd_shuffleN fixes N in the name; plain simd_shuffle takes it
// from the return type.
func (c *Ctx) simdShuffle(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 3) {
		return c.placeholder(call)
	}
	v1, v2 := call.Args[0], call.Args[1]
	retT := c.retType(call)
	n := retT.Lanes()
	if suffix := strings.TrimPrefix(call.Name, "simd_shuffle"); suffix != "" {
		parsed, err := strconv.ParseUint(suffix, 10, 64)
		if err != nil {
			return c.unsupported(call, diag.LowUnsupported)
		}
		n = parsed
	}
	if retT.Lanes() != n {
		return c.typeError(call, diag.LowSimdLaneMismatch,
			fmt.Sprintf("expected return type of length %d, found `%s` with length %d", n, c.label(call.Ret), retT.Lanes()))
	}
	if !v1.Type.Pointee().Equal(retT.Pointee()) {
		return c.typeError(call, diag.LowSimdElementMismatch,
			fmt.Sprintf("expected return element type `%s` (element of input `%s`), found `%s` with element type `%s`",
				v1.Type.Pointee(), c.argLabel(call, 0), c.label(call.Ret), retT.Pointee()))
	}
	indices, ok := c.shuffleIndices(call, n)
	if !ok {
		return c.placeholder(call)
	}
	inLanes := v1.Type.Lanes()
	limit := 2 * inLanes
	elems := make([]gotoc.Expr, 0, n)
	for i, v := range indices {
		if v < 0 || uint64(v) >= limit {
			return c.typeError(call, diag.LowSimdShuffleIndex,
				fmt.Sprintf("shuffle index #%d is out of bounds (limit %d)", i, limit))
		}
		if uint64(v) < inLanes {
			elems = append(elems, lane(v1, uint64(v)))
		} else {
			elems = append(elems, lane(v2, uint64(v)-inLanes))
		}
	}
	return c.toPlace(call, gotoc.VectorExpr(retT, elems))
}
