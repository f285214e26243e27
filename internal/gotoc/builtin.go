package gotoc

import "sort"

// BuiltinFn is a C library function the verifier models natively.
type BuiltinFn struct {
	Name       string
	ParamTypes []Type
	ReturnType Type
}

var builtins = map[string]BuiltinFn{}

func init() {
	voidp := VoidPointer()
	size := SizeTT()
	def := func(name string, ret Type, params ...Type) {
		builtins[name] = BuiltinFn{Name: name, ParamTypes: params, ReturnType: ret}
	}
	def("memcpy", voidp, voidp, voidp, size)
	def("memmove", voidp, voidp, voidp, size)
	def("memset", voidp, voidp, CIntT(), size)
	def("memcmp", CIntT(), voidp, voidp, size)
	def("malloc", voidp, size)
	def("free", Empty(), voidp)
	def("abort", Empty())

	unary := []string{
		"sqrt", "sin", "cos", "exp", "exp2", "log", "log10", "log2",
		"fabs", "floor", "ceil", "trunc", "round", "rint", "nearbyint",
	}
	binary := []string{"pow", "fmax", "fmin", "copysign", "fmod"}
	for _, base := range unary {
		def(base, Double(), Double())
		def(base+"f", Float(), Float())
	}
	for _, base := range binary {
		def(base, Double(), Double(), Double())
		def(base+"f", Float(), Float(), Float())
	}
	def("fma", Double(), Double(), Double(), Double())
	def("fmaf", Float(), Float(), Float(), Float())
	def("powi", Double(), Double(), CIntT())
	def("powif", Float(), Float(), CIntT())
}

// LookupBuiltin returns the builtin named name.
func LookupBuiltin(name string) (BuiltinFn, bool) {
	b, ok := builtins[name]
	return b, ok
}

// BuiltinNames lists the modelled builtins in lexical order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Type returns the code type of the builtin.
func (b BuiltinFn) Type() Type {
	params := make([]Parameter, len(b.ParamTypes))
	for i, p := range b.ParamTypes {
		params[i] = p.AsParameter("", "")
	}
	return Code(params, b.ReturnType)
}

// Expr references the builtin as a function symbol.
func (b BuiltinFn) Expr() Expr {
	return SymbolExpr(b.Name, b.Type())
}

// Call invokes the builtin.
func (b BuiltinFn) Call(args ...Expr) Expr {
	return Call(b.Expr(), args)
}

// Declare adds the builtin's function symbol to st.
func (b BuiltinFn) Declare(st *SymbolTable) {
	st.Insert(Symbol{Name: b.Name, PrettyName: b.Name, Kind: SymFunction, Type: b.Type()})
}
