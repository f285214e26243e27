package types //nolint:revive

import "slices"

// ABI is the calling convention of a function signature.
type ABI uint8

const (
	ABIRust ABI = iota
	// ABIRustCall passes the trailing arguments as one tuple.
	ABIRustCall
	ABIC
)

func (a ABI) String() string {
	switch a {
	case ABIRust:
		return "Rust"
	case ABIRustCall:
		return "rust-call"
	case ABIC:
		return "C"
	default:
		return "abi?"
	}
}

// FnSig is a monomorphic function signature.
type FnSig struct {
	Inputs   []TypeID
	Output   TypeID
	Variadic bool
	ABI      ABI
}

func (s FnSig) equal(o FnSig) bool {
	return s.Output == o.Output && s.Variadic == o.Variadic && s.ABI == o.ABI && slices.Equal(s.Inputs, o.Inputs)
}

func cloneSig(s FnSig) FnSig {
	s.Inputs = cloneTypeArgs(s.Inputs)
	return s
}

// FnDefInfo describes a zero-sized function item type.
type FnDefInfo struct {
	Path string
	Sig  FnSig
}

// ClosureInfo describes a closure: its captured upvars and its call signature.
// Sig.Inputs holds the untupled argument list as the closure body sees it,
// without the environment parameter.
type ClosureInfo struct {
	Path   string
	Upvars []TypeID
	Sig    FnSig
}

// CoroutineInfo describes a coroutine (generator).
type CoroutineInfo struct {
	Path   string
	Upvars []TypeID
	Output TypeID
}

// RegisterFnPtr creates or finds a function pointer type.
func (in *Interner) RegisterFnPtr(sig FnSig) TypeID {
	for id := TypeID(1); int(id) < len(in.types); id++ {
		tt := in.types[id]
		if tt.Kind != KindFnPtr || int(tt.Payload) >= len(in.sigs) {
			continue
		}
		if in.sigs[tt.Payload].equal(sig) {
			return id
		}
	}
	in.sigs = append(in.sigs, cloneSig(sig))
	slot := slotOf(len(in.sigs), "fn sig")
	return in.internRaw(Type{Kind: KindFnPtr, Payload: slot})
}

// FnPtrSig returns the signature of a function pointer type.
func (in *Interner) FnPtrSig(id TypeID) (FnSig, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindFnPtr || tt.Payload == 0 || int(tt.Payload) >= len(in.sigs) {
		return FnSig{}, false
	}
	return in.sigs[tt.Payload], true
}

// RegisterFnDef allocates a function item type, keyed by its path.
func (in *Interner) RegisterFnDef(path string, sig FnSig) TypeID {
	path = normalizePath(path)
	if id, ok := in.byPath[pathKey{Kind: KindFnDef, Path: path}]; ok {
		return id
	}
	in.fndefs = append(in.fndefs, FnDefInfo{Path: path, Sig: cloneSig(sig)})
	slot := slotOf(len(in.fndefs), "fn def")
	id := in.internRaw(Type{Kind: KindFnDef, Payload: slot})
	in.rememberPath(KindFnDef, path, id)
	return id
}

// FnDefInfo returns metadata of a function item type.
func (in *Interner) FnDefInfo(id TypeID) (*FnDefInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindFnDef || tt.Payload == 0 || int(tt.Payload) >= len(in.fndefs) {
		return nil, false
	}
	return &in.fndefs[tt.Payload], true
}

// RegisterClosure allocates a closure type.
func (in *Interner) RegisterClosure(path string, upvars []TypeID, sig FnSig) TypeID {
	path = normalizePath(path)
	if id, ok := in.byPath[pathKey{Kind: KindClosure, Path: path}]; ok {
		return id
	}
	in.closures = append(in.closures, ClosureInfo{Path: path, Upvars: cloneTypeArgs(upvars), Sig: cloneSig(sig)})
	slot := slotOf(len(in.closures), "closure")
	id := in.internRaw(Type{Kind: KindClosure, Payload: slot})
	in.rememberPath(KindClosure, path, id)
	return id
}

// ClosureInfo returns metadata of a closure type.
func (in *Interner) ClosureInfo(id TypeID) (*ClosureInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindClosure || tt.Payload == 0 || int(tt.Payload) >= len(in.closures) {
		return nil, false
	}
	return &in.closures[tt.Payload], true
}

// RegisterCoroutine allocates a coroutine type.
func (in *Interner) RegisterCoroutine(path string, upvars []TypeID, output TypeID) TypeID {
	path = normalizePath(path)
	if id, ok := in.byPath[pathKey{Kind: KindCoroutine, Path: path}]; ok {
		return id
	}
	in.coroutines = append(in.coroutines, CoroutineInfo{Path: path, Upvars: cloneTypeArgs(upvars), Output: output})
	slot := slotOf(len(in.coroutines), "coroutine")
	id := in.internRaw(Type{Kind: KindCoroutine, Payload: slot})
	in.rememberPath(KindCoroutine, path, id)
	return id
}

// CoroutineInfo returns metadata of a coroutine type.
func (in *Interner) CoroutineInfo(id TypeID) (*CoroutineInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindCoroutine || tt.Payload == 0 || int(tt.Payload) >= len(in.coroutines) {
		return nil, false
	}
	return &in.coroutines[tt.Payload], true
}
