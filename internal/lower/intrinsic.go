package lower

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"gotolower/internal/diag"
	"gotolower/internal/gotoc"
	"gotolower/internal/source"
	"gotolower/internal/types"
)

// IntrinsicCall is one call of a compiler intrinsic. Args are already
// lowered; ArgTypes and Ret are their source types, Generic the explicit
// type arguments. The result goes to Dest unless Ret is unit or never.
// Fn names the enclosing function and scopes the temporaries of the call.
type IntrinsicCall struct {
	Fn       string
	Name     string
	Args     []gotoc.Expr
	ArgTypes []types.TypeID
	Generic  []types.TypeID
	Ret      types.TypeID
	Dest     gotoc.Expr
	Span     source.Span
}

// directMapping calls a C library builtin in place of the intrinsic.
type directMapping struct {
	builtin  string
	castArgs bool
}

// directIntrinsics maps float intrinsics onto their libm builtins.
var directIntrinsics = map[string]directMapping{}

func init() {
	libm := map[string]string{
		"sqrt": "sqrt", "pow": "pow", "sin": "sin", "cos": "cos",
		"exp": "exp", "exp2": "exp2", "log": "log", "log2": "log2",
		"log10": "log10", "fabs": "fabs", "copysign": "copysign", "fma": "fma",
		"maxnum": "fmax", "minnum": "fmin", "floor": "floor", "ceil": "ceil",
		"trunc": "trunc", "round": "round", "rint": "rint", "nearbyint": "nearbyint",
	}
	for intr, fn := range libm {
		directIntrinsics[intr+"f32"] = directMapping{builtin: fn + "f"}
		directIntrinsics[intr+"f64"] = directMapping{builtin: fn}
	}
	// the exponent is an i32 and needs a cast to C int
	directIntrinsics["powif32"] = directMapping{builtin: "powif", castArgs: true}
	directIntrinsics["powif64"] = directMapping{builtin: "powi", castArgs: true}
}

// LowerIntrinsic lowers one intrinsic call to a statement. Unsupported
// intrinsics produce a warning and a nondeterministic placeholder;
// ill-typed calls produce an error that fails the unit in Finish.
func (c *Ctx) LowerIntrinsic(call IntrinsicCall) gotoc.Stmt {
	c.log.Debug("lowering intrinsic", zap.String("name", call.Name), zap.Int("args", len(call.Args)))
	name := call.Name
	switch {
	case strings.HasPrefix(name, "atomic_"):
		return c.lowerAtomic(call)
	case strings.HasPrefix(name, "simd_shuffle"):
		return c.simdShuffle(call)
	case strings.HasPrefix(name, "simd_"):
		return c.lowerSimd(call)
	}
	if d, ok := directIntrinsics[name]; ok {
		return c.directCall(call, d)
	}

	switch name {
	case "bitreverse", "bswap", "ctpop", "ctlz", "ctlz_nonzero", "cttz", "cttz_nonzero":
		return c.unaryBuiltin(call)

	case "add_with_overflow", "sub_with_overflow", "mul_with_overflow":
		return c.withOverflow(call)
	case "unchecked_add", "unchecked_sub", "unchecked_mul":
		return c.uncheckedArith(call)
	case "unchecked_div", "unchecked_rem":
		return c.uncheckedDiv(call)
	case "unchecked_shl", "unchecked_shr":
		return c.uncheckedShift(call)
	case "exact_div":
		return c.exactDiv(call)
	case "offset":
		return c.offset(call)
	case "arith_offset":
		return c.arithOffset(call)
	case "wrapping_add", "wrapping_sub", "wrapping_mul":
		return c.wrappingArith(call)
	case "saturating_add", "saturating_sub":
		return c.saturatingArith(call)
	case "rotate_left", "rotate_right":
		return c.rotate(call)
	case "fadd_fast", "fsub_fast", "fmul_fast", "fdiv_fast", "frem_fast":
		return c.fastFloat(call)

	case "copy", "copy_nonoverlapping":
		return c.copyMemory(call, false)
	case "volatile_copy_memory", "volatile_copy_nonoverlapping_memory":
		return c.copyMemory(call, true)
	case "write_bytes", "volatile_set_memory":
		return c.writeBytes(call)
	case "compare_bytes":
		return c.compareBytes(call)
	case "raw_eq":
		return c.rawEq(call)
	case "volatile_store", "unaligned_volatile_store":
		return c.volatileStore(call)

	case "black_box", "likely", "unlikely":
		return c.passThrough(call, false)
	case "volatile_load", "unaligned_volatile_load", "read_via_copy":
		return c.passThrough(call, true)
	case "breakpoint", "forget":
		return gotoc.Skip(call.Span)
	case "assume":
		return c.assume(call)
	case "unreachable":
		return gotoc.FatalError(gotoc.PropUnreachable, "unreachable code", call.Span)
	case "abort":
		return gotoc.FatalError(gotoc.PropDefault, "reached intrinsic::abort", call.Span)
	case "transmute":
		return c.transmute(call)

	case "size_of", "min_align_of", "pref_align_of", "needs_drop", "type_id", "type_name":
		return c.typeConstant(call)
	case "size_of_val", "min_align_of_val":
		return c.sizeOfVal(call)
	case "assert_inhabited", "assert_zero_valid", "assert_mem_uninitialized_valid", "assert_uninit_valid":
		return c.assertValid(call)
	case "discriminant_value":
		return c.discriminantValue(call)
	case "ptr_guaranteed_cmp", "ptr_guaranteed_eq", "ptr_guaranteed_ne":
		return c.ptrGuaranteedCmp(call)
	case "ptr_offset_from", "ptr_offset_from_unsigned":
		return c.ptrOffsetFrom(call)
	case "vtable_size", "vtable_align":
		return c.vtableField(call)

	case "caller_location", "try", "const_eval_select":
		return c.unsupported(call, diag.LowUnsupportedIntrinsic)
	default:
		return c.unsupported(call, diag.LowUnsupported)
	}
}

// Call helpers ---------------------------------------------------------------

func (c *Ctx) retType(call IntrinsicCall) gotoc.Type {
	return c.LowerType(call.Ret)
}

func (c *Ctx) returnsNothing(call IntrinsicCall) bool {
	if call.Ret == types.NoTypeID || c.Types.IsUnit(call.Ret) {
		return true
	}
	tt, ok := c.Types.Lookup(call.Ret)
	return ok && tt.Kind == types.KindNever
}

// toPlace stores e in the call destination.
func (c *Ctx) toPlace(call IntrinsicCall, e gotoc.Expr) gotoc.Stmt {
	if c.returnsNothing(call) {
		return gotoc.ExprStmt(e, call.Span)
	}
	return gotoc.Assign(call.Dest, e.WithLoc(call.Span), call.Span)
}

func (c *Ctx) placeholder(call IntrinsicCall) gotoc.Stmt {
	if c.returnsNothing(call) {
		return gotoc.Skip(call.Span)
	}
	return gotoc.Assign(call.Dest, gotoc.Nondet(c.retType(call)), call.Span)
}

// unsupported warns and stands in a failing check plus a nondeterministic
// result, so verification of the rest of the unit goes on.
func (c *Ctx) unsupported(call IntrinsicCall, code diag.Code) gotoc.Stmt {
	msg := fmt.Sprintf("%s is not currently supported", call.Name)
	c.reportWarning(code, call.Span, msg)
	return gotoc.Block([]gotoc.Stmt{
		gotoc.AssertAssume(gotoc.False(), gotoc.PropUnsupportedConstruct, msg, call.Span),
		c.placeholder(call),
	}, call.Span)
}

// storeStruct stores a value of the struct return type built from values.
// A return type that is not a struct of len(values) fields is a type error.
func (c *Ctx) storeStruct(call IntrinsicCall, values ...gotoc.Expr) gotoc.Stmt {
	retT := c.retType(call)
	body, ok := c.symtab.AggregateBody(retT)
	if !ok || body.Kind != gotoc.TypeStruct {
		return c.typeError(call, diag.LowIntrinsicTypeError,
			fmt.Sprintf("expected a struct of %d fields as return type, found `%s`", len(values), c.label(call.Ret)))
	}
	n := 0
	for _, comp := range body.Components {
		if !comp.Padding {
			n++
		}
	}
	if n != len(values) {
		return c.typeError(call, diag.LowIntrinsicTypeError,
			fmt.Sprintf("expected a struct of %d fields as return type, found `%s` with %d", len(values), c.label(call.Ret), n))
	}
	return c.toPlace(call, gotoc.StructExpr(retT, values, c.symtab))
}

// typeError reports an ill-typed call and returns its placeholder.
func (c *Ctx) typeError(call IntrinsicCall, code diag.Code, msg string) gotoc.Stmt {
	c.reportError(code, call.Span, fmt.Sprintf("invalid monomorphization of `%s` intrinsic: %s", call.Name, msg))
	return c.placeholder(call)
}

// arity checks the argument count.
func (c *Ctx) arity(call IntrinsicCall, n int) bool {
	if len(call.Args) == n {
		return true
	}
	c.reportError(diag.LowIntrinsicArity, call.Span,
		fmt.Sprintf("intrinsic `%s` takes %d argument(s), found %d", call.Name, n, len(call.Args)))
	return false
}

// genericArg returns the first type argument, falling back to the pointee
// of argument ptrArg when the call names no type arguments.
func (c *Ctx) genericArg(call IntrinsicCall, ptrArg int) (types.TypeID, bool) {
	if len(call.Generic) > 0 {
		return call.Generic[0], true
	}
	if ptrArg >= 0 && ptrArg < len(call.ArgTypes) {
		if tt, ok := c.Types.Lookup(call.ArgTypes[ptrArg]); ok && tt.IsPointerLike() {
			return tt.Elem, true
		}
	}
	c.reportError(diag.LowIntrinsicTypeError, call.Span,
		fmt.Sprintf("intrinsic `%s` needs a type argument", call.Name))
	return types.NoTypeID, false
}

func (c *Ctx) argLabel(call IntrinsicCall, i int) string {
	if i < len(call.ArgTypes) {
		return c.label(call.ArgTypes[i])
	}
	if i < len(call.Args) {
		return call.Args[i].Type.String()
	}
	return "?"
}

func (c *Ctx) directCall(call IntrinsicCall, d directMapping) gotoc.Stmt {
	fn, ok := gotoc.LookupBuiltin(d.builtin)
	if !ok {
		panic(&InternalError{Op: "direct intrinsic", Type: call.Name, Msg: "no builtin " + d.builtin})
	}
	if !c.arity(call, len(fn.ParamTypes)) {
		return c.placeholder(call)
	}
	fn.Declare(c.symtab)
	args := make([]gotoc.Expr, len(call.Args))
	for i, a := range call.Args {
		if d.castArgs {
			a = a.Cast(fn.ParamTypes[i])
		}
		args[i] = a
	}
	return c.toPlace(call, fn.Call(args...).WithLoc(call.Span).Cast(c.retType(call)))
}

func (c *Ctx) unaryBuiltin(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 1) {
		return c.placeholder(call)
	}
	x := call.Args[0]
	var e gotoc.Expr
	switch call.Name {
	case "bitreverse":
		e = x.BitReverse()
	case "bswap":
		e = x.Bswap()
	case "ctpop":
		e = x.Popcount()
	case "ctlz":
		e = x.CountLeadingZeros(true)
	case "ctlz_nonzero":
		e = x.CountLeadingZeros(false)
	case "cttz":
		e = x.CountTrailingZeros(true)
	default:
		e = x.CountTrailingZeros(false)
	}
	return c.toPlace(call, e.Cast(c.retType(call)))
}

// cond turns a C boolean into a condition.
func cond(e gotoc.Expr) gotoc.Expr {
	if e.Type.Kind == gotoc.TypeBool {
		return e
	}
	return e.Cast(gotoc.Bool())
}

func (c *Ctx) assume(call IntrinsicCall) gotoc.Stmt {
	if !c.arity(call, 1) {
		return c.placeholder(call)
	}
	return gotoc.AssertAssume(cond(call.Args[0]), gotoc.PropAssume, "assumption failed", call.Span)
}

func (c *Ctx) passThrough(call IntrinsicCall, deref bool) gotoc.Stmt {
	if !c.arity(call, 1) {
		return c.placeholder(call)
	}
	x := call.Args[0]
	if deref {
		x = x.Dereference()
	}
	return c.toPlace(call, x)
}
