package lower

import (
	"fmt"

	"gotolower/internal/gotoc"
	"gotolower/internal/source"
	"gotolower/internal/types"
)

// LowerFnSig lowers a function signature to a code type. Fn item and
// coroutine parameters carry no data and are dropped; "rust-call"
// signatures have their trailing tuple spread into separate parameters.
func (c *Ctx) LowerFnSig(sig types.FnSig) gotoc.Type {
	inputs := c.untupled(sig)
	params := make([]gotoc.Parameter, 0, len(inputs))
	for _, in := range inputs {
		if c.ignorableParam(in) {
			continue
		}
		params = append(params, c.LowerType(in).AsParameter("", ""))
	}
	ret := c.LowerType(sig.Output)
	if sig.Variadic {
		return gotoc.VariadicCode(params, ret)
	}
	return gotoc.Code(params, ret)
}

// ClosureSig is the signature a closure is called with: the environment
// reference first, then the arguments as one tuple.
func (c *Ctx) ClosureSig(closure types.TypeID) types.FnSig {
	info, ok := c.Types.ClosureInfo(closure)
	if !ok {
		c.internalf("closure signature", closure, "not a closure")
	}
	env := c.Types.Intern(types.MakeRef(closure, false))
	args := c.Types.RegisterTuple(info.Sig.Inputs)
	return types.FnSig{Inputs: []types.TypeID{env, args}, Output: info.Sig.Output, ABI: types.ABIRustCall}
}

func (c *Ctx) untupled(sig types.FnSig) []types.TypeID {
	n := len(sig.Inputs)
	if sig.ABI != types.ABIRustCall || n == 0 {
		return sig.Inputs
	}
	info, ok := c.Types.TupleInfo(sig.Inputs[n-1])
	if !ok {
		return sig.Inputs
	}
	out := make([]types.TypeID, 0, n-1+len(info.Elems))
	out = append(out, sig.Inputs[:n-1]...)
	return append(out, info.Elems...)
}

func (c *Ctx) ignorableParam(t types.TypeID) bool {
	tt, ok := c.Types.Lookup(t)
	return ok && (tt.Kind == types.KindFnDef || tt.Kind == types.KindCoroutine)
}

// FnDecl describes a function whose parameters are named.
type FnDecl struct {
	Name   string
	Sig    types.FnSig
	Params []string // one per Sig.Inputs entry
	// SpreadArg is the 1-based position of the parameter whose tuple is
	// passed as separate arguments; 0 when there is none.
	SpreadArg int
	// VtableShim marks a shim called through a vtable: its receiver
	// arrives by pointer.
	VtableShim bool
}

// LowerFnType lowers decl with parameter identifiers `<fn>::<param>`.
// Spread tuple elements are named `<fn>::spread<i>`.
func (c *Ctx) LowerFnType(decl FnDecl) gotoc.Type {
	if len(decl.Params) != len(decl.Sig.Inputs) {
		panic(&InternalError{Op: "fn type", Type: decl.Name,
			Msg: fmt.Sprintf("%d parameter names for %d inputs", len(decl.Params), len(decl.Sig.Inputs))})
	}
	params := make([]gotoc.Parameter, 0, len(decl.Sig.Inputs))
	for i, in := range decl.Sig.Inputs {
		if c.ignorableParam(in) {
			continue
		}
		if i+1 == decl.SpreadArg {
			if info, ok := c.Types.TupleInfo(in); ok {
				for j, elem := range info.Elems {
					base := fmt.Sprintf("spread%d", j)
					params = append(params, c.LowerType(elem).AsParameter(decl.Name+"::"+base, base))
				}
				continue
			}
		}
		t := c.LowerType(in)
		if decl.VtableShim && i == 0 {
			t = t.ToPointer()
		}
		params = append(params, t.AsParameter(decl.Name+"::"+decl.Params[i], decl.Params[i]))
	}
	ret := c.LowerType(decl.Sig.Output)
	if decl.Sig.Variadic {
		return gotoc.VariadicCode(params, ret)
	}
	return gotoc.Code(params, ret)
}

// DeclareFunction adds decl and its parameters to the table with body.
func (c *Ctx) DeclareFunction(decl FnDecl, body *gotoc.Stmt, loc source.Span) *gotoc.Symbol {
	code := c.LowerFnType(decl)
	for _, p := range code.Params {
		c.symtab.Insert(gotoc.Symbol{Name: p.Identifier, PrettyName: p.BaseName, Kind: gotoc.SymVariable, Type: p.Type, Loc: loc})
	}
	return c.symtab.Replace(gotoc.Symbol{Name: decl.Name, PrettyName: decl.Name, Kind: gotoc.SymFunction, Type: code, Body: body, Loc: loc})
}

// dynamicFnSig is a method signature as stored in a vtable: the receiver
// is an opaque data pointer.
func (c *Ctx) dynamicFnSig(sig types.FnSig) gotoc.Type {
	params := make([]gotoc.Parameter, 0, len(sig.Inputs))
	for i, in := range c.untupled(sig) {
		if i == 0 {
			params = append(params, gotoc.VoidPointer().AsParameter("", ""))
			continue
		}
		if c.ignorableParam(in) {
			continue
		}
		params = append(params, c.LowerType(in).AsParameter("", ""))
	}
	ret := c.LowerType(sig.Output)
	if sig.Variadic {
		return gotoc.VariadicCode(params, ret)
	}
	return gotoc.Code(params, ret)
}
