package gotoc

import (
	"slices"
	"sort"

	"gotolower/internal/source"
)

// SymbolKind distinguishes type, variable and function symbols.
type SymbolKind uint8

const (
	SymType SymbolKind = iota
	SymVariable
	SymFunction
)

func (k SymbolKind) String() string {
	switch k {
	case SymType:
		return "type"
	case SymVariable:
		return "variable"
	case SymFunction:
		return "function"
	default:
		return "symbol?"
	}
}

// Symbol is one entry of the declaration table.
type Symbol struct {
	Name       string
	PrettyName string
	Kind       SymbolKind
	Type       Type
	Body       *Stmt // function body
	Loc        source.Span
}

// TagName returns the symbol name under which an aggregate tag is stored.
func TagName(tag string) string {
	return "tag-" + tag
}

// SymbolTable is the declaration table of one compilation unit. Inserting
// a name that is already present is a no-op; only Replace overwrites.
// A SymbolTable is not safe for concurrent use.
type SymbolTable struct {
	mm      MachineModel
	symbols map[string]*Symbol
	order   []string
}

// NewSymbolTable creates an empty table for the machine model.
func NewSymbolTable(mm MachineModel) *SymbolTable {
	return &SymbolTable{
		mm:      mm,
		symbols: make(map[string]*Symbol, 256),
	}
}

// MachineModel returns the table's machine model.
func (st *SymbolTable) MachineModel() MachineModel {
	return st.mm
}

// Insert adds sym unless its name is taken and returns the stored symbol.
func (st *SymbolTable) Insert(sym Symbol) *Symbol {
	if existing, ok := st.symbols[sym.Name]; ok {
		return existing
	}
	s := sym
	st.symbols[sym.Name] = &s
	st.order = append(st.order, sym.Name)
	return &s
}

// Replace stores sym, overwriting any previous entry of the same name.
func (st *SymbolTable) Replace(sym Symbol) *Symbol {
	if _, ok := st.symbols[sym.Name]; !ok {
		st.order = append(st.order, sym.Name)
	}
	s := sym
	st.symbols[sym.Name] = &s
	return &s
}

// Lookup returns the symbol named name.
func (st *SymbolTable) Lookup(name string) (*Symbol, bool) {
	s, ok := st.symbols[name]
	return s, ok
}

// Contains reports whether name is declared.
func (st *SymbolTable) Contains(name string) bool {
	_, ok := st.symbols[name]
	return ok
}

// Len returns the number of symbols.
func (st *SymbolTable) Len() int {
	return len(st.symbols)
}

// Symbols returns all symbols in insertion order.
func (st *SymbolTable) Symbols() []*Symbol {
	out := make([]*Symbol, 0, len(st.order))
	for _, name := range st.order {
		out = append(out, st.symbols[name])
	}
	return out
}

// SortedNames returns all symbol names in lexical order.
func (st *SymbolTable) SortedNames() []string {
	names := slices.Clone(st.order)
	sort.Strings(names)
	return names
}

// LookupAggregate returns the body registered for a struct or union tag.
func (st *SymbolTable) LookupAggregate(tag string) (Type, bool) {
	s, ok := st.symbols[TagName(tag)]
	if !ok || s.Kind != SymType {
		return Type{}, false
	}
	return s.Type, true
}

// AggregateBody resolves t to an inline struct or union body.
func (st *SymbolTable) AggregateBody(t Type) (Type, bool) {
	switch t.Kind {
	case TypeStruct, TypeUnion:
		return t, true
	case TypeStructTag, TypeUnionTag:
		body, ok := st.LookupAggregate(t.Tag)
		if !ok || (body.Kind != TypeStruct && body.Kind != TypeUnion) {
			return Type{}, false
		}
		return body, true
	default:
		return Type{}, false
	}
}

// Component finds the named member of an aggregate type.
func (st *SymbolTable) Component(t Type, name string) (Component, bool) {
	body, ok := st.AggregateBody(t)
	if !ok {
		return Component{}, false
	}
	for _, c := range body.Components {
		if c.Name == name && !c.Padding {
			return c, true
		}
	}
	return Component{}, false
}

// Merge inserts every symbol of other that st does not have yet. A name
// both tables declare keeps st's symbol; when the two disagree in kind or
// type the name is returned as a conflict.
func (st *SymbolTable) Merge(other *SymbolTable) []string {
	if other == nil {
		return nil
	}
	var conflicts []string
	for _, name := range other.order {
		sym := other.symbols[name]
		if existing, ok := st.symbols[name]; ok {
			if existing.Kind != sym.Kind || !existing.Type.Equal(sym.Type) {
				conflicts = append(conflicts, name)
			}
			continue
		}
		st.Insert(*sym)
	}
	return conflicts
}
