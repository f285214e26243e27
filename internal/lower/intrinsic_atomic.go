package lower

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"gotolower/internal/diag"
	"gotolower/internal/gotoc"
)

var atomicOps = []string{
	"cxchgweak", "cxchg", "singlethreadfence", "fence", "xchg",
	"xadd", "xsub", "nand", "umax", "umin", "load", "store",
	"and", "max", "min", "xor", "or",
}

var atomicOrderings = map[string]bool{
	"relaxed": true, "acquire": true, "release": true, "acqrel": true,
	"seqcst": true, "acq": true, "rel": true, "unordered": true,
	"failrelaxed": true, "failacq": true,
}

// parseAtomic splits atomic_<op>[_<ordering>...] and validates orderings.
func parseAtomic(name string) (string, bool) {
	rest := strings.TrimPrefix(name, "atomic_")
	for _, op := range atomicOps {
		if rest == op {
			return op, true
		}
		if !strings.HasPrefix(rest, op+"_") {
			continue
		}
		for _, part := range strings.Split(rest[len(op)+1:], "_") {
			if !atomicOrderings[part] {
				return "", false
			}
		}
		return op, true
	}
	return "", false
}

// lowerAtomic runs the operation sequentially inside an atomic block. The
// old value of the location is the result where the operation has one.
func (c *Ctx) lowerAtomic(call IntrinsicCall) gotoc.Stmt {
	op, ok := parseAtomic(call.Name)
	if !ok {
		return c.unsupported(call, diag.LowUnsupported)
	}
	c.log.Warn("atomic operation lowered sequentially", zap.String("intrinsic", call.Name))
	c.reportWarning(diag.LowConcurrencyReduced, call.Span,
		fmt.Sprintf("`%s` is lowered as a sequential operation; concurrent interleavings are not checked", call.Name))

	loc := call.Span
	if op == "fence" || op == "singlethreadfence" {
		return gotoc.AtomicBlock([]gotoc.Stmt{gotoc.Skip(loc)}, loc)
	}
	want := 2
	switch op {
	case "load":
		want = 1
	case "cxchg", "cxchgweak":
		want = 3
	}
	if !c.arity(call, want) {
		return c.placeholder(call)
	}
	ptr := call.Args[0]
	place := ptr.Dereference()
	if op == "load" {
		return gotoc.AtomicBlock([]gotoc.Stmt{c.toPlace(call, place)}, loc)
	}
	val := call.Args[1].Cast(place.Type)
	if op == "store" {
		return gotoc.AtomicBlock([]gotoc.Stmt{gotoc.Assign(place, val, loc)}, loc)
	}

	old, decl := c.newTemp(call.Fn, place.Type, loc)
	body := []gotoc.Stmt{decl, gotoc.Assign(old, place, loc)}
	switch op {
	case "xchg":
		body = append(body, gotoc.Assign(place, val, loc), c.toPlace(call, old))
	case "cxchg", "cxchgweak":
		newVal := call.Args[2].Cast(place.Type)
		matched := old.Eq(val)
		body = append(body,
			gotoc.IfThenElse(matched, gotoc.Assign(place, newVal, loc), nil, loc),
			c.storeStruct(call, old, matched.Cast(gotoc.CBoolT())),
		)
	default:
		body = append(body, gotoc.Assign(place, atomicBinop(op, old, val), loc), c.toPlace(call, old))
	}
	return gotoc.AtomicBlock(body, loc)
}

func atomicBinop(op string, old, val gotoc.Expr) gotoc.Expr {
	switch op {
	case "and":
		return old.BitAnd(val)
	case "nand":
		return old.BitAnd(val).BitNot()
	case "or":
		return old.BitOr(val)
	case "xor":
		return old.BitXor(val)
	case "xadd":
		return old.Plus(val)
	case "xsub":
		return old.Minus(val)
	case "max", "umax":
		return old.Gt(val).Ternary(old, val)
	default: // min, umin
		return old.Lt(val).Ternary(old, val)
	}
}
