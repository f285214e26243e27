package types

import "fortio.org/safecast"

// Fingerprint returns a stable 64-bit content hash of the type. Nominal types
// hash their kind and path, so recursive ADTs terminate. The value depends
// only on the structure, never on TypeID allocation order.
func (in *Interner) Fingerprint(id TypeID) uint64 {
	const (
		fnvOffset64 = 1469598103934665603
		fnvPrime64  = 1099511628211
	)
	hash := uint64(fnvOffset64)
	mix := func(x uint64) {
		hash ^= x
		hash *= fnvPrime64
	}
	mixString := func(s string) {
		mix(uint64(len(s)))
		for i := 0; i < len(s); i++ {
			mix(uint64(s[i]))
		}
	}
	mixInt := func(n int) {
		if v, err := safecast.Conv[uint64](n); err == nil {
			mix(v)
		} else {
			mix(0)
		}
	}

	var walk func(id TypeID, depth int)
	walkSig := func(sig FnSig, depth int) {
		mix(uint64(sig.ABI))
		if sig.Variadic {
			mix(1)
		} else {
			mix(0)
		}
		mixInt(len(sig.Inputs))
		for _, p := range sig.Inputs {
			walk(p, depth+1)
		}
		walk(sig.Output, depth+1)
	}
	walk = func(id TypeID, depth int) {
		tt, ok := in.Lookup(id)
		if !ok || depth > 64 {
			mix(0)
			return
		}
		mix(uint64(tt.Kind) + 1)
		switch tt.Kind {
		case KindInt, KindUint, KindFloat:
			mix(uint64(tt.Width))
		case KindSlice:
			walk(tt.Elem, depth+1)
		case KindArray:
			mix(tt.Count)
			walk(tt.Elem, depth+1)
		case KindRef, KindRawPtr:
			if tt.Mutable {
				mix(1)
			} else {
				mix(0)
			}
			walk(tt.Elem, depth+1)
		case KindTuple:
			info, _ := in.TupleInfo(id)
			if info == nil {
				return
			}
			mixInt(len(info.Elems))
			for _, e := range info.Elems {
				walk(e, depth+1)
			}
		case KindAdt:
			if info, ok := in.AdtInfo(id); ok {
				mix(uint64(info.Kind))
				mixString(info.Path)
			}
		case KindFnPtr:
			if sig, ok := in.FnPtrSig(id); ok {
				walkSig(sig, depth)
			}
		case KindFnDef:
			if info, ok := in.FnDefInfo(id); ok {
				mixString(info.Path)
			}
		case KindClosure:
			if info, ok := in.ClosureInfo(id); ok {
				mixString(info.Path)
			}
		case KindCoroutine:
			if info, ok := in.CoroutineInfo(id); ok {
				mixString(info.Path)
			}
		case KindDynamic:
			if info, ok := in.DynInfo(id); ok {
				mixString(info.Trait)
			}
		case KindForeign:
			if info, ok := in.ForeignInfo(id); ok {
				mixString(info.Path)
			}
		}
	}
	walk(id, 0)
	return hash
}
