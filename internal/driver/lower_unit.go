package driver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gotolower/internal/diag"
	"gotolower/internal/gotoc"
	"gotolower/internal/layout"
	"gotolower/internal/lower"
	"gotolower/internal/source"
	"gotolower/internal/trace"
	"gotolower/internal/types"
	"gotolower/internal/unit"
)

// itemReporter anchors span-less diagnostics (layout failures found deep
// inside a type) at the unit entry being lowered.
type itemReporter struct {
	next diag.Reporter
	at   source.Span
}

func (r *itemReporter) Report(code diag.Code, sev diag.Severity, primary source.Span, msg string, notes []diag.Note) {
	if primary.IsZero() {
		primary = r.at
	}
	r.next.Report(code, sev, primary, msg, notes)
}

// unitLowering carries one loaded unit through layout and lowering.
type unitLowering struct {
	u   *unit.Unit
	eng *layout.LayoutEngine
	lc  *lower.Ctx
	rep *itemReporter
	log *zap.Logger
}

func newUnitLowering(u *unit.Unit, next diag.Reporter, log *zap.Logger) *unitLowering {
	rep := &itemReporter{next: next, at: source.Span{File: u.File}}
	eng := layout.New(u.Target, u.Types)
	return &unitLowering{
		u:   u,
		eng: eng,
		lc:  lower.NewCtx(u.Types, eng, lower.WithReporter(rep), lower.WithLogger(log)),
		rep: rep,
		log: log,
	}
}

// layouts computes the layout of every requested type and returns how
// many succeeded. Failures surface as diagnostics once the type is lowered.
func (l *unitLowering) layouts() int {
	ok := 0
	for _, ref := range l.u.Lower {
		if _, err := l.eng.LayoutOf(ref.Type); err == nil {
			ok++
		} else {
			l.log.Debug("layout failed", zap.String("type", ref.Expr), zap.Error(err))
		}
	}
	return ok
}

func (l *unitLowering) lowerTypes(ctx context.Context) int {
	for _, ref := range l.u.Lower {
		_, span := trace.StartSpan(ctx, trace.ScopeItem, "type")
		span.WithExtra("type", ref.Expr)
		l.rep.at = ref.Span
		l.lc.LowerType(ref.Type)
		span.End("")
	}
	return len(l.u.Lower)
}

func (l *unitLowering) lowerCalls(ctx context.Context) int {
	for i, call := range l.u.Calls {
		_, span := trace.StartSpan(ctx, trace.ScopeItem, "intrinsic")
		span.WithExtra("name", call.Intrinsic)
		l.rep.at = call.Span
		l.lowerCall(i, call)
		span.End("")
	}
	return len(l.u.Calls)
}

// CallFunctionName names the function wrapping the i-th call of a unit.
func CallFunctionName(unitName string, i int, intrinsic string) string {
	return fmt.Sprintf("%s::call%d::%s", unitName, i, intrinsic)
}

// lowerCall wraps one intrinsic call in a function whose parameters are
// the call's non-constant operands:
//
//	ret <unit>::call<i>::<intrinsic>(arg0, arg1, ...) {
//	    ret dest;
//	    <lowered intrinsic>
//	    return dest;
//	}
func (l *unitLowering) lowerCall(i int, call unit.Call) {
	name := CallFunctionName(l.u.Name, i, call.Intrinsic)
	decl := lower.FnDecl{Name: name, Sig: types.FnSig{Output: call.Ret, ABI: types.ABIRust}}

	args := make([]gotoc.Expr, 0, len(call.Args))
	argTypes := make([]types.TypeID, 0, len(call.Args))
	for j, a := range call.Args {
		argTypes = append(argTypes, a.Type)
		if a.Value != nil {
			args = append(args, l.constExpr(a.Type, *a.Value).WithLoc(a.Span))
			continue
		}
		param := fmt.Sprintf("arg%d", j)
		decl.Sig.Inputs = append(decl.Sig.Inputs, a.Type)
		decl.Params = append(decl.Params, param)
		args = append(args, gotoc.SymbolExpr(name+"::"+param, l.lc.LowerType(a.Type)).WithLoc(a.Span))
	}

	var body []gotoc.Stmt
	var dest gotoc.Expr
	returns := !l.returnsNothing(call.Ret)
	if returns {
		t := l.lc.LowerType(call.Ret)
		local := name + "::dest"
		l.lc.Symtab().Insert(gotoc.Symbol{Name: local, PrettyName: "dest", Kind: gotoc.SymVariable, Type: t, Loc: call.Span})
		dest = gotoc.SymbolExpr(local, t).WithLoc(call.Span)
		body = append(body, gotoc.Decl(dest, nil, call.Span))
	}

	body = append(body, l.lc.LowerIntrinsic(lower.IntrinsicCall{
		Fn:       name,
		Name:     call.Intrinsic,
		Args:     args,
		ArgTypes: argTypes,
		Generic:  call.Generic,
		Ret:      call.Ret,
		Dest:     dest,
		Span:     call.Span,
	}))
	if returns {
		body = append(body, gotoc.Return(&dest, call.Span))
	} else {
		body = append(body, gotoc.Return(nil, call.Span))
	}
	block := gotoc.Block(body, call.Span)
	l.lc.DeclareFunction(decl, &block, call.Span)
}

func (l *unitLowering) returnsNothing(t types.TypeID) bool {
	if l.u.Types.IsUnit(t) {
		return true
	}
	tt, ok := l.u.Types.Lookup(t)
	return ok && tt.Kind == types.KindNever
}

// constExpr lowers a constant operand; the loader has checked that it
// fits t.
func (l *unitLowering) constExpr(t types.TypeID, c unit.Const) gotoc.Expr {
	ct := l.lc.LowerType(t)
	switch c.Kind {
	case unit.ConstBool:
		return gotoc.BoolConstant(c.Bool).Cast(ct)
	case unit.ConstArray:
		elem := l.u.Types.MustLookup(t).Elem
		elems := make([]gotoc.Expr, len(c.Elems))
		for i, e := range c.Elems {
			elems[i] = l.constExpr(elem, e)
		}
		return gotoc.ArrayExpr(ct, elems)
	default:
		return gotoc.IntConstant(c.Int, ct)
	}
}
