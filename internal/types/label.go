package types

import (
	"fmt"
	"strings"
)

// Label returns a user-friendly label for a TypeID.
func Label(typesIn *Interner, id TypeID) string {
	return labelDepth(typesIn, id, 0)
}

func labelDepth(typesIn *Interner, id TypeID, depth int) string {
	if id == NoTypeID {
		return "?"
	}
	if depth > 8 {
		return "..."
	}
	if typesIn == nil {
		return "?"
	}
	tt, ok := typesIn.Lookup(id)
	if !ok {
		return "?"
	}
	switch tt.Kind {
	case KindNever:
		return "!"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindStr:
		return "str"
	case KindInt:
		return formatIntType(tt.Width, true)
	case KindUint:
		return formatIntType(tt.Width, false)
	case KindFloat:
		return fmt.Sprintf("f%d", tt.Width)
	case KindRawPtr:
		if tt.Mutable {
			return "*mut " + labelDepth(typesIn, tt.Elem, depth+1)
		}
		return "*const " + labelDepth(typesIn, tt.Elem, depth+1)
	case KindRef:
		if tt.Mutable {
			return "&mut " + labelDepth(typesIn, tt.Elem, depth+1)
		}
		return "&" + labelDepth(typesIn, tt.Elem, depth+1)
	case KindSlice:
		return "[" + labelDepth(typesIn, tt.Elem, depth+1) + "]"
	case KindArray:
		return fmt.Sprintf("[%s; %d]", labelDepth(typesIn, tt.Elem, depth+1), tt.Count)
	case KindTuple:
		info, ok := typesIn.TupleInfo(id)
		if !ok || info == nil {
			return "(?)"
		}
		parts := make([]string, len(info.Elems))
		for i, elem := range info.Elems {
			parts[i] = labelDepth(typesIn, elem, depth+1)
		}
		if len(parts) == 1 {
			return "(" + parts[0] + ",)"
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindAdt:
		if info, ok := typesIn.AdtInfo(id); ok {
			return info.Path
		}
		return "?"
	case KindFnPtr:
		sig, ok := typesIn.FnPtrSig(id)
		if !ok {
			return "fn(?)"
		}
		return formatSig(typesIn, sig, depth)
	case KindFnDef:
		if info, ok := typesIn.FnDefInfo(id); ok {
			return "fn " + info.Path
		}
		return "fn ?"
	case KindClosure:
		if info, ok := typesIn.ClosureInfo(id); ok {
			return "{closure " + info.Path + "}"
		}
		return "{closure}"
	case KindCoroutine:
		if info, ok := typesIn.CoroutineInfo(id); ok {
			return "{coroutine " + info.Path + "}"
		}
		return "{coroutine}"
	case KindDynamic:
		if info, ok := typesIn.DynInfo(id); ok {
			return "dyn " + info.Trait
		}
		return "dyn ?"
	case KindForeign:
		if info, ok := typesIn.ForeignInfo(id); ok {
			return info.Path
		}
		return "extern ?"
	default:
		return "?"
	}
}

func formatSig(typesIn *Interner, sig FnSig, depth int) string {
	params := make([]string, 0, len(sig.Inputs)+1)
	for _, p := range sig.Inputs {
		params = append(params, labelDepth(typesIn, p, depth+1))
	}
	if sig.Variadic {
		params = append(params, "...")
	}
	prefix := "fn("
	if sig.ABI != ABIRust {
		prefix = fmt.Sprintf("extern %q fn(", sig.ABI.String())
	}
	out := prefix + strings.Join(params, ", ") + ")"
	if sig.Output != NoTypeID && !typesIn.IsUnit(sig.Output) {
		out += " -> " + labelDepth(typesIn, sig.Output, depth+1)
	}
	return out
}

func formatIntType(width Width, signed bool) string {
	prefix := "i"
	if !signed {
		prefix = "u"
	}
	if width == WidthPtr {
		return prefix + "size"
	}
	return fmt.Sprintf("%s%d", prefix, width)
}
