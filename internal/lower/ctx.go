package lower

import (
	"fmt"

	"go.uber.org/zap"

	"gotolower/internal/diag"
	"gotolower/internal/gotoc"
	"gotolower/internal/layout"
	"gotolower/internal/source"
	"gotolower/internal/types"
)

// Ctx lowers the source types and intrinsic calls of one compilation unit
// into a single declaration table. A Ctx is not safe for concurrent use:
// the driver gives every unit its own.
type Ctx struct {
	Types  *types.Interner
	Oracle layout.Oracle

	symtab   *gotoc.SymbolTable
	reporter diag.Reporter
	log      *zap.Logger
	mm       gotoc.MachineModel
	b        types.Builtins

	typeCache    map[types.TypeID]gotoc.Type
	sourceOf     map[string]types.TypeID
	encodings    map[types.TypeID]*EnumEncoding
	layoutFailed map[types.TypeID]bool

	tmpCount int
	errCount int
}

// Option configures a Ctx.
type Option func(*Ctx)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(c *Ctx) {
		if log != nil {
			c.log = log
		}
	}
}

// WithReporter sets where diagnostics go.
func WithReporter(r diag.Reporter) Option {
	return func(c *Ctx) {
		if r != nil {
			c.reporter = r
		}
	}
}

// NewCtx creates a lowering context over the interner and its layout oracle.
func NewCtx(in *types.Interner, oracle layout.Oracle, opts ...Option) *Ctx {
	mm := MachineModelFor(oracle.Target())
	c := &Ctx{
		Types:        in,
		Oracle:       oracle,
		symtab:       gotoc.NewSymbolTable(mm),
		reporter:     diag.NopReporter{},
		log:          zap.NewNop(),
		mm:           mm,
		b:            in.Builtins(),
		typeCache:    make(map[types.TypeID]gotoc.Type, 64),
		sourceOf:     make(map[string]types.TypeID, 32),
		encodings:    make(map[types.TypeID]*EnumEncoding, 8),
		layoutFailed: make(map[types.TypeID]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MachineModelFor derives the target machine model from the oracle target.
func MachineModelFor(t layout.Target) gotoc.MachineModel {
	return gotoc.MachineModel{
		Architecture: t.Triple,
		PointerWidth: t.PtrSize * 8,
		IntWidth:     t.IntSize * 8,
		CharWidth:    8,
		BoolWidth:    8,
		LittleEndian: t.LittleEndian,
	}
}

// Symtab returns the declaration table built so far.
func (c *Ctx) Symtab() *gotoc.SymbolTable { return c.symtab }

// MachineModel returns the machine model of the unit.
func (c *Ctx) MachineModel() gotoc.MachineModel { return c.mm }

// SourceOf returns the source type that produced the struct or union tag.
func (c *Ctx) SourceOf(tag string) (types.TypeID, bool) {
	id, ok := c.sourceOf[tag]
	return id, ok
}

// ErrorCount returns the number of error diagnostics reported so far.
func (c *Ctx) ErrorCount() int { return c.errCount }

// Finish closes the unit. It fails when any error diagnostic was reported.
func (c *Ctx) Finish() error {
	if c.errCount > 0 {
		return fmt.Errorf("%w: %d error(s)", ErrUnitAborted, c.errCount)
	}
	return nil
}

// newTemp declares a fresh local of type t inside function fn.
func (c *Ctx) newTemp(fn string, t gotoc.Type, loc source.Span) (gotoc.Expr, gotoc.Stmt) {
	c.tmpCount++
	pretty := fmt.Sprintf("temp_%d", c.tmpCount)
	name := pretty
	if fn != "" {
		name = fn + "::" + pretty
	}
	c.symtab.Insert(gotoc.Symbol{Name: name, PrettyName: pretty, Kind: gotoc.SymVariable, Type: t, Loc: loc})
	sym := gotoc.SymbolExpr(name, t).WithLoc(loc)
	return sym, gotoc.Decl(sym, nil, loc)
}

func (c *Ctx) label(t types.TypeID) string {
	return types.Label(c.Types, t)
}
