package lower

import (
	"testing"

	"gotolower/internal/diag"
	"gotolower/internal/gotoc"
	"gotolower/internal/layout"
	"gotolower/internal/types"
)

type fixture struct {
	in  *types.Interner
	b   types.Builtins
	eng *layout.LayoutEngine
	ctx *Ctx
	bag *diag.Bag
}

func newFixture(opts ...Option) *fixture {
	in := types.NewInterner()
	eng := layout.New(layout.X86_64LinuxGNU(), in)
	bag := diag.NewBag(100)
	opts = append([]Option{WithReporter(&diag.BagReporter{Bag: bag})}, opts...)
	return &fixture{in: in, b: in.Builtins(), eng: eng, ctx: NewCtx(in, eng, opts...), bag: bag}
}

func (f *fixture) structOf(path string, repr types.Repr, fields ...types.Field) types.TypeID {
	id := f.in.RegisterAdt(path, types.AdtStruct, repr, nil)
	f.in.SetAdtVariants(id, []types.Variant{{Fields: fields}})
	return id
}

func (f *fixture) enumOf(path string, repr types.Repr, variants ...types.Variant) types.TypeID {
	id := f.in.RegisterAdt(path, types.AdtEnum, repr, nil)
	f.in.SetAdtVariants(id, variants)
	return id
}

func (f *fixture) ref(t types.TypeID) types.TypeID {
	return f.in.Intern(types.MakeRef(t, false))
}

func (f *fixture) body(t *testing.T, ty gotoc.Type) gotoc.Type {
	t.Helper()
	body, ok := f.ctx.Symtab().AggregateBody(ty)
	if !ok {
		t.Fatalf("no body for %s", ty)
	}
	return body
}

func fld(name string, t types.TypeID) types.Field {
	return types.Field{Name: name, Type: t}
}

func componentNames(comps []gotoc.Component) []string {
	out := make([]string, len(comps))
	for i, c := range comps {
		out[i] = c.Name
	}
	return out
}

func diagCodes(bag *diag.Bag) []diag.Code {
	var out []diag.Code
	for _, d := range bag.Items() {
		out = append(out, d.Code)
	}
	return out
}
