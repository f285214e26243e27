package unit

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"gotolower/internal/diag"
	"gotolower/internal/layout"
	"gotolower/internal/source"
	"gotolower/internal/types"
)

// Options configures Load.
type Options struct {
	// Target is the triple used when the file names none.
	Target   string
	Reporter diag.Reporter
}

// LoadFile reads path into fs and loads it.
func LoadFile(fs *source.FileSet, path string, opts Options) (*Unit, error) {
	id, err := fs.Load(path)
	if err != nil {
		reporter(opts).Report(diag.IOLoadFileError, diag.SevError, source.Span{}, err.Error(), nil)
		return nil, fmt.Errorf("load unit %s: %w", path, err)
	}
	return Load(fs, id, opts)
}

// Load decodes and resolves the unit file id. Problems are reported as
// CFG diagnostics; when any of them is an error the partially resolved
// unit is returned together with ErrInvalidUnit.
func Load(fs *source.FileSet, id source.FileID, opts Options) (*Unit, error) {
	f := fs.Get(id)
	l := &loader{
		rep:      reporter(opts),
		loc:      newLocator(f),
		file:     f,
		in:       types.NewInterner(),
		named:    make(map[string]types.TypeID),
		declared: make(map[string]source.Span),
	}
	l.b = l.in.Builtins()
	u := &Unit{Path: f.Path, File: id, Hash: f.Hash, Types: l.in}

	var doc fileSchema
	meta, err := toml.Decode(string(f.Content), &doc)
	if err != nil {
		span := l.loc.head()
		var pe toml.ParseError
		if errors.As(err, &pe) {
			span = l.loc.at(pe.Position.Start, pe.Position.Len)
			err = errors.New(pe.Message)
		}
		l.errorf(diag.CfgBadUnitFile, span, "malformed unit file: %v", err)
		return u, fmt.Errorf("%s: %w", f.Path, ErrInvalidUnit)
	}
	for _, key := range meta.Undecoded() {
		parts := []string(key)
		l.warnf(diag.CfgBadUnitFile, l.loc.find(parts[len(parts)-1]), "unknown key `%s` ignored", key.String())
	}

	u.Name = strings.TrimSpace(doc.Name)
	if u.Name == "" {
		u.Name = DefaultName(f.Path)
	}
	triple := doc.Target
	if triple == "" {
		triple = opts.Target
	}
	target, err := layout.TargetByTriple(triple)
	if err != nil {
		l.errorf(diag.CfgUnknownTarget, l.loc.find(triple), "%v", err)
		target = layout.X86_64LinuxGNU()
	}
	u.Target = target

	l.declare(&doc, u)
	l.define(&doc)
	l.requests(&doc, u)

	if l.errors > 0 {
		return u, fmt.Errorf("%s: %w (%d error(s))", f.Path, ErrInvalidUnit, l.errors)
	}
	return u, nil
}

func reporter(opts Options) diag.Reporter {
	if opts.Reporter == nil {
		return diag.NopReporter{}
	}
	return opts.Reporter
}

type loader struct {
	rep  diag.Reporter
	loc  *locator
	file *source.File
	in   *types.Interner
	b    types.Builtins

	named    map[string]types.TypeID // canonical path -> nominal type
	declared map[string]source.Span
	adts     []pendingAdt
	traits   []pendingTrait
	errors   int
}

type pendingAdt struct {
	id   types.TypeID
	decl typeDecl
	span source.Span
}

type pendingTrait struct {
	id   types.TypeID
	decl traitDecl
	span source.Span
}

// declare registers every nominal name first so bodies can refer to types
// declared further down, including themselves.
func (l *loader) declare(doc *fileSchema, u *Unit) {
	for _, td := range doc.Types {
		name, span, ok := l.declName(td.Name)
		if !ok {
			continue
		}
		key := name.String()
		var args []types.TypeID
		for _, a := range name.Args {
			if id, ok := l.resolve(a, span); ok {
				args = append(args, id)
			}
		}
		kind, ok := adtKind(td.Kind)
		if !ok {
			l.errorf(diag.CfgBadUnitFile, l.loc.find(td.Kind), "unknown type kind %q (expected struct, enum or union)", td.Kind)
			continue
		}
		repr := l.parseRepr(td.Repr)
		id := l.in.RegisterAdt(key, kind, repr, args)
		l.named[key] = id
		l.adts = append(l.adts, pendingAdt{id: id, decl: td, span: span})
		u.Decls = append(u.Decls, TypeRef{Expr: key, Type: id, Span: span})
	}
	for _, path := range doc.Foreign {
		name, span, ok := l.declName(path)
		if !ok {
			continue
		}
		id := l.in.RegisterForeign(name.String())
		l.named[name.String()] = id
		u.Decls = append(u.Decls, TypeRef{Expr: name.String(), Type: id, Span: span})
	}
	for _, td := range doc.Traits {
		span := l.loc.find(td.Name)
		e, ok := l.parseExpr("dyn "+td.Name, span)
		if !ok || e.Kind != ExprDyn {
			continue
		}
		key := e.String()
		if !l.claim(key, span) {
			continue
		}
		id := l.in.RegisterDyn(e.Path)
		l.traits = append(l.traits, pendingTrait{id: id, decl: td, span: span})
		u.Decls = append(u.Decls, TypeRef{Expr: key, Type: id, Span: span})
	}
	// closures and friends are registered in one step with their
	// signatures, after every ADT name exists
	for _, cd := range doc.Closures {
		name, span, ok := l.declName(cd.Name)
		if !ok {
			continue
		}
		key := name.String()
		upvars := l.resolveList(cd.Upvars)
		sig, ok := l.parseSig(cd.Sig)
		if !ok {
			continue
		}
		id := l.in.RegisterClosure(key, upvars, sig)
		l.named[key] = id
		u.Decls = append(u.Decls, TypeRef{Expr: key, Type: id, Span: span})
	}
	for _, cd := range doc.Coroutines {
		name, span, ok := l.declName(cd.Name)
		if !ok {
			continue
		}
		key := name.String()
		upvars := l.resolveList(cd.Upvars)
		out := l.b.Unit
		if cd.Output != "" {
			out, _ = l.resolveString(cd.Output)
		}
		id := l.in.RegisterCoroutine(key, upvars, out)
		l.named[key] = id
		u.Decls = append(u.Decls, TypeRef{Expr: key, Type: id, Span: span})
	}
	for _, fd := range doc.Fns {
		name, span, ok := l.declName(fd.Name)
		if !ok {
			continue
		}
		key := name.String()
		sig, ok := l.parseSig(fd.Sig)
		if !ok {
			continue
		}
		id := l.in.RegisterFnDef(key, sig)
		l.named[key] = id
		u.Decls = append(u.Decls, TypeRef{Expr: key, Type: id, Span: span})
	}
}

// define fills ADT variants and trait methods.
func (l *loader) define(doc *fileSchema) {
	for _, p := range l.adts {
		info, _ := l.in.AdtInfo(p.id)
		switch info.Kind {
		case types.AdtEnum:
			if len(p.decl.Fields) > 0 {
				l.errorf(diag.CfgBadUnitFile, p.span, "enum `%s` declares fields; use [[type.variant]]", p.decl.Name)
			}
			variants := make([]types.Variant, 0, len(p.decl.Variants))
			for _, vd := range p.decl.Variants {
				v := types.Variant{Name: vd.Name, Fields: l.fields(vd.Fields)}
				if vd.Discr != nil {
					v.Discr, v.HasDiscr = *vd.Discr, true
				}
				variants = append(variants, v)
			}
			l.in.SetAdtVariants(p.id, variants)
		default:
			if len(p.decl.Variants) > 0 {
				l.errorf(diag.CfgBadUnitFile, p.span, "%s `%s` cannot have variants", info.Kind, p.decl.Name)
			}
			l.in.SetAdtVariants(p.id, []types.Variant{{Fields: l.fields(p.decl.Fields)}})
		}
	}
	for _, p := range l.traits {
		methods := make([]types.DynMethod, 0, len(p.decl.Methods))
		for _, md := range p.decl.Methods {
			sig, ok := l.parseSig(md.Sig)
			if !ok {
				continue
			}
			if len(sig.Inputs) == 0 && !md.Vacant {
				l.errorf(diag.CfgBadTypeExpr, l.loc.find(md.Sig), "method `%s` needs a receiver parameter", md.Name)
				continue
			}
			methods = append(methods, types.DynMethod{Name: md.Name, Sig: sig, Vacant: md.Vacant})
		}
		var supers []types.TypeID
		for _, s := range p.decl.Supertraits {
			span := l.loc.find(s)
			name, ok := l.parseExpr(s, span)
			if !ok {
				continue
			}
			id, found := l.in.ByPath(types.KindDynamic, name.String())
			if !found {
				l.errorf(diag.CfgUnknownType, span, "unknown supertrait `%s`", s)
				continue
			}
			supers = append(supers, id)
		}
		l.in.SetDynMethods(p.id, methods, supers)
	}
}

// requests resolves the lower list and the intrinsic calls.
func (l *loader) requests(doc *fileSchema, u *Unit) {
	if doc.Lower == nil {
		u.Lower = append([]TypeRef(nil), u.Decls...)
	}
	for _, src := range doc.Lower {
		span := l.loc.find(src)
		e, ok := l.parseExpr(src, span)
		if !ok {
			continue
		}
		if id, ok := l.resolve(e, span); ok {
			u.Lower = append(u.Lower, TypeRef{Expr: e.String(), Type: id, Span: span})
		}
	}
	for _, cd := range doc.Calls {
		span := l.loc.find(cd.Intrinsic)
		if strings.TrimSpace(cd.Intrinsic) == "" {
			l.errorf(diag.CfgBadUnitFile, span, "[[call]] without an intrinsic name")
			continue
		}
		call := Call{Intrinsic: cd.Intrinsic, Span: span, Ret: l.b.Unit}
		ok := true
		for _, g := range cd.Generic {
			id, good := l.resolveString(g)
			ok = ok && good
			call.Generic = append(call.Generic, id)
		}
		for _, a := range cd.Args {
			aspan := l.loc.find(a)
			t, c, err := ParseArg(a)
			if err != nil {
				l.syntaxError(err, a, aspan, diag.CfgBadCallArgument)
				ok = false
				continue
			}
			id, good := l.resolve(t, aspan)
			ok = ok && good
			if c != nil && !l.constFits(id, *c) {
				l.errorf(diag.CfgBadCallArgument, aspan, "constant `%s` does not fit `%s`", c, t)
				ok = false
			}
			call.Args = append(call.Args, Arg{Type: id, Value: c, Span: aspan})
		}
		if cd.Ret != "" {
			id, good := l.resolveString(cd.Ret)
			ok = ok && good
			call.Ret = id
		}
		if ok {
			u.Calls = append(u.Calls, call)
		}
	}
}

// declName parses a declared name, which must be a path, and claims it.
func (l *loader) declName(src string) (*TypeExpr, source.Span, bool) {
	span := l.loc.find(src)
	if strings.TrimSpace(src) == "" {
		l.errorf(diag.CfgBadUnitFile, span, "declaration without a name")
		return nil, span, false
	}
	e, ok := l.parseExpr(src, span)
	if !ok {
		return nil, span, false
	}
	if e.Kind != ExprName {
		l.errorf(diag.CfgBadTypeExpr, span, "declared name `%s` must be a path", src)
		return nil, span, false
	}
	return e, span, l.claim(e.String(), span)
}

// claim records a declaration; duplicates are reported against the first.
func (l *loader) claim(key string, span source.Span) bool {
	if first, dup := l.declared[key]; dup {
		diag.ReportError(l.rep, diag.CfgDuplicateType, span, fmt.Sprintf("`%s` is declared twice", key)).
			WithNote(first, "first declared here").
			Emit()
		l.errors++
		return false
	}
	l.declared[key] = span
	return true
}

func (l *loader) fields(list []string) []types.Field {
	out := make([]types.Field, 0, len(list))
	seen := make(map[string]bool, len(list))
	for _, src := range list {
		span := l.loc.find(src)
		name, e, err := ParseField(src)
		if err != nil {
			l.syntaxError(err, src, span, diag.CfgBadTypeExpr)
			continue
		}
		if seen[name] {
			l.errorf(diag.CfgDuplicateType, span, "field `%s` is declared twice", name)
			continue
		}
		seen[name] = true
		id, ok := l.resolve(e, span)
		if !ok {
			id = l.b.Invalid
		}
		out = append(out, types.Field{Name: name, Type: id})
	}
	return out
}

func (l *loader) parseSig(src string) (types.FnSig, bool) {
	span := l.loc.find(src)
	e, ok := l.parseExpr(src, span)
	if !ok {
		return types.FnSig{}, false
	}
	if e.Kind != ExprFn {
		l.errorf(diag.CfgBadTypeExpr, span, "expected a signature `fn(..) -> T`, found `%s`", src)
		return types.FnSig{}, false
	}
	return l.fnSig(e, span)
}

func (l *loader) fnSig(e *TypeExpr, span source.Span) (types.FnSig, bool) {
	sig := types.FnSig{Output: l.b.Unit, Variadic: e.Variadic, ABI: e.ABI}
	ok := true
	for _, a := range e.Args {
		id, good := l.resolve(a, span)
		ok = ok && good
		sig.Inputs = append(sig.Inputs, id)
	}
	if e.Elem != nil {
		id, good := l.resolve(e.Elem, span)
		ok = ok && good
		sig.Output = id
	}
	return sig, ok
}

func (l *loader) parseExpr(src string, span source.Span) (*TypeExpr, bool) {
	e, err := ParseType(src)
	if err != nil {
		l.syntaxError(err, src, span, diag.CfgBadTypeExpr)
		return nil, false
	}
	return e, true
}

func (l *loader) resolveString(src string) (types.TypeID, bool) {
	span := l.loc.find(src)
	e, ok := l.parseExpr(src, span)
	if !ok {
		return l.b.Invalid, false
	}
	return l.resolve(e, span)
}

func (l *loader) resolveList(list []string) []types.TypeID {
	out := make([]types.TypeID, 0, len(list))
	for _, src := range list {
		id, _ := l.resolveString(src)
		out = append(out, id)
	}
	return out
}

// resolve interns e; span is where the whole string was written.
func (l *loader) resolve(e *TypeExpr, span source.Span) (types.TypeID, bool) {
	switch e.Kind {
	case ExprNever:
		return l.b.Never, true
	case ExprRef, ExprPtr:
		elem, ok := l.resolve(e.Elem, span)
		if e.Kind == ExprRef {
			return l.in.Intern(types.MakeRef(elem, e.Mut)), ok
		}
		return l.in.Intern(types.MakeRawPtr(elem, e.Mut)), ok
	case ExprSlice:
		elem, ok := l.resolve(e.Elem, span)
		return l.in.Intern(types.MakeSlice(elem)), ok
	case ExprArray:
		elem, ok := l.resolve(e.Elem, span)
		return l.in.Intern(types.MakeArray(elem, e.Len)), ok
	case ExprTuple:
		if len(e.Args) == 0 {
			return l.b.Unit, true
		}
		elems := make([]types.TypeID, 0, len(e.Args))
		ok := true
		for _, a := range e.Args {
			id, good := l.resolve(a, span)
			ok = ok && good
			elems = append(elems, id)
		}
		return l.in.RegisterTuple(elems), ok
	case ExprDyn:
		// traits without a [[trait]] table are marker traits
		return l.in.RegisterDyn(e.Path), true
	case ExprFn:
		sig, ok := l.fnSig(e, span)
		return l.in.RegisterFnPtr(sig), ok
	case ExprName:
		if len(e.Args) == 0 {
			if id, ok := l.scalar(e.Path); ok {
				return id, true
			}
		}
		if id, ok := l.named[e.String()]; ok {
			return id, true
		}
		l.errorf(diag.CfgUnknownType, l.loc.sub(span, e.Start, e.End), "unknown type `%s`", e)
		return l.b.Invalid, false
	}
	return l.b.Invalid, false
}

func (l *loader) scalar(name string) (types.TypeID, bool) {
	b := l.b
	switch name {
	case "bool":
		return b.Bool, true
	case "char":
		return b.Char, true
	case "str":
		return b.Str, true
	case "i8":
		return b.I8, true
	case "i16":
		return b.I16, true
	case "i32":
		return b.I32, true
	case "i64":
		return b.I64, true
	case "i128":
		return b.I128, true
	case "isize":
		return b.Isize, true
	case "u8":
		return b.U8, true
	case "u16":
		return b.U16, true
	case "u32":
		return b.U32, true
	case "u64":
		return b.U64, true
	case "u128":
		return b.U128, true
	case "usize":
		return b.Usize, true
	case "f16":
		return b.F16, true
	case "f32":
		return b.F32, true
	case "f64":
		return b.F64, true
	case "f128":
		return b.F128, true
	}
	return types.NoTypeID, false
}

func adtKind(s string) (types.AdtKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "struct":
		return types.AdtStruct, true
	case "enum":
		return types.AdtEnum, true
	case "union":
		return types.AdtUnion, true
	}
	return 0, false
}

// parseRepr understands C, simd, packed, transparent, align(N) and an
// integer type for the discriminant.
func (l *loader) parseRepr(list []string) types.Repr {
	var r types.Repr
	for _, item := range list {
		s := strings.TrimSpace(item)
		switch {
		case s == "C":
			r.C = true
		case s == "simd":
			r.Simd = true
		case s == "packed":
			r.Packed = true
		case s == "transparent", s == "Rust":
		case strings.HasPrefix(s, "align(") && strings.HasSuffix(s, ")"):
			n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(s, "align("), ")"))
			if err != nil || n <= 0 || bits.OnesCount(uint(n)) != 1 {
				l.errorf(diag.CfgBadRepr, l.loc.find(item), "alignment must be a power of two, found `%s`", s)
				continue
			}
			r.Align = n
		default:
			id, ok := l.scalar(s)
			if !ok || !l.in.MustLookup(id).IsInteger() {
				l.errorf(diag.CfgBadRepr, l.loc.find(item), "unknown repr `%s`", s)
				continue
			}
			r.Int = id
		}
	}
	return r
}

// constFits checks a constant operand against its declared type.
func (l *loader) constFits(t types.TypeID, c Const) bool {
	tt, ok := l.in.Lookup(t)
	if !ok {
		return false
	}
	switch c.Kind {
	case ConstBool:
		return tt.Kind == types.KindBool
	case ConstInt:
		return tt.IsInteger()
	case ConstArray:
		if tt.Kind != types.KindArray || tt.Count != uint64(len(c.Elems)) {
			return false
		}
		for _, e := range c.Elems {
			if !l.constFits(tt.Elem, e) {
				return false
			}
		}
		return true
	}
	return false
}

func (l *loader) syntaxError(err error, src string, span source.Span, code diag.Code) {
	var se *SyntaxError
	if errors.As(err, &se) {
		l.errorf(code, l.loc.sub(span, se.Start, se.End), "malformed `%s`: %s", src, se.Msg)
		return
	}
	l.errorf(code, span, "malformed `%s`: %v", src, err)
}

func (l *loader) errorf(code diag.Code, span source.Span, format string, args ...any) {
	l.errors++
	l.rep.Report(code, diag.SevError, span, fmt.Sprintf(format, args...), nil)
}

func (l *loader) warnf(code diag.Code, span source.Span, format string, args ...any) {
	l.rep.Report(code, diag.SevWarning, span, fmt.Sprintf(format, args...), nil)
}
