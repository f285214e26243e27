package lower

import (
	"gotolower/internal/gotoc"
	"gotolower/internal/types"
)

// alignCheck asserts that ptr is aligned for elem and assumes it after.
func (c *Ctx) alignCheck(ptr gotoc.Expr, elem types.TypeID, msg string, call IntrinsicCall) gotoc.Stmt {
	align := c.layoutOf(elem).Align
	size := gotoc.SizeTT()
	aligned := ptr.Cast(size).Rem(gotoc.IntConstant(int64(align), size)).Eq(gotoc.IntConstant(0, size))
	return gotoc.AssertAssume(aligned, gotoc.PropSafetyCheck, msg, call.Span)
}

func (c *Ctx) builtin(name string) gotoc.BuiltinFn {
	fn, ok := gotoc.LookupBuiltin(name)
	if !ok {
		panic(&InternalError{Op: "builtin", Type: name, Msg: "not modelled"})
	}
	fn.Declare(c.symtab)
	return fn
}

// copyMemory lowers copy, copy_nonoverlapping and their volatile forms.
// The volatile forms take the destination first.
func (c *Ctx) copyMemory(call IntrinsicCall, dstFirst bool) gotoc.Stmt {
	if !c.arity(call, 3) {
		return c.placeholder(call)
	}
	src, dst := call.Args[0], call.Args[1]
	srcArg := 0
	if dstFirst {
		src, dst = dst, src
		srcArg = 1
	}
	elem, ok := c.genericArg(call, srcArg)
	if !ok {
		return c.placeholder(call)
	}
	fnName := "memmove"
	if call.Name == "copy_nonoverlapping" || call.Name == "volatile_copy_nonoverlapping_memory" {
		fnName = "memcpy"
	}
	fn := c.builtin(fnName)
	bytes, bytesCheck := c.countInBytes(call, call.Args[2], c.layoutOf(elem).Size, gotoc.SizeTT())

	voidp := gotoc.VoidPointer()
	copied := bytes.Eq(gotoc.IntConstant(0, gotoc.SizeTT())).Ternary(
		dst.Cast(voidp),
		fn.Call(dst.Cast(voidp), src.Cast(voidp), bytes),
	)
	return gotoc.Block([]gotoc.Stmt{
		c.alignCheck(src, elem, "`src` must be properly aligned", call),
		c.alignCheck(dst, elem, "`dst` must be properly aligned", call),
		bytesCheck,
		gotoc.ExprStmt(copied.WithLoc(call.Span), call.Span),
	}, call.Span)
}

// writeBytes lowers write_bytes and volatile_set_memory (dst, val, count).
func (c *Ctx) writeBytes(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 3) {
		return c.placeholder(call)
	}
	elem, ok := c.genericArg(call, 0)
	if !ok {
		return c.placeholder(call)
	}
	dst, val := call.Args[0], call.Args[1]
	bytes, bytesCheck := c.countInBytes(call, call.Args[2], c.layoutOf(elem).Size, gotoc.SizeTT())
	set := c.builtin("memset").Call(dst.Cast(gotoc.VoidPointer()), val.Cast(gotoc.CIntT()), bytes)
	return gotoc.Block([]gotoc.Stmt{
		c.alignCheck(dst, elem, "`dst` must be properly aligned", call),
		bytesCheck,
		gotoc.ExprStmt(set.WithLoc(call.Span), call.Span),
	}, call.Span)
}

// compareBytes is memcmp with an empty comparison defined as equal.
func (c *Ctx) compareBytes(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 3) {
		return c.placeholder(call)
	}
	left, right, n := call.Args[0], call.Args[1], call.Args[2]
	voidp := gotoc.VoidPointer()
	cmp := c.builtin("memcmp").Call(left.Cast(voidp), right.Cast(voidp), n.Cast(gotoc.SizeTT()))
	res := n.Eq(gotoc.IntConstant(0, n.Type)).Ternary(gotoc.IntConstant(0, gotoc.CIntT()), cmp)
	return c.toPlace(call, res.Cast(c.retType(call)))
}

// rawEq compares the bytes of two values of the same type.
func (c *Ctx) rawEq(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 2) {
		return c.placeholder(call)
	}
	elem, ok := c.genericArg(call, 0)
	if !ok {
		return c.placeholder(call)
	}
	retT := c.retType(call)
	size := c.layoutOf(elem).Size
	if size == 0 {
		return c.toPlace(call, gotoc.True().Cast(retT))
	}
	voidp := gotoc.VoidPointer()
	cmp := c.builtin("memcmp").Call(call.Args[0].Cast(voidp), call.Args[1].Cast(voidp), gotoc.IntConstant(int64(size), gotoc.SizeTT()))
	return c.toPlace(call, cmp.Eq(gotoc.IntConstant(0, gotoc.CIntT())).Cast(retT))
}

// volatileStore writes through dst; the aligned form checks dst first.
func (c *Ctx) volatileStore(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 2) {
		return c.placeholder(call)
	}
	dst, val := call.Args[0], call.Args[1]
	store := gotoc.Assign(dst.Dereference(), val, call.Span)
	if call.Name == "unaligned_volatile_store" {
		return store
	}
	elem, ok := c.genericArg(call, 0)
	if !ok {
		return c.placeholder(call)
	}
	return gotoc.Block([]gotoc.Stmt{
		c.alignCheck(dst, elem, "`dst` must be properly aligned", call),
		store,
	}, call.Span)
}
