package unit

// fileSchema mirrors a *.unit.toml document:
//
//	name   = "demo"
//	target = "x86_64-linux-gnu"
//	lower  = ["demo::Rec", "&dyn demo::Area"]
//
//	[[type]]
//	name   = "demo::Rec"
//	repr   = ["C"]
//	fields = ["a: u32", "b: bool"]
//
//	[[call]]
//	intrinsic = "simd_shuffle"
//	generic   = ["demo::f32x4", "[u32; 2]", "demo::f32x2"]
//	args      = ["demo::f32x4", "demo::f32x4", "[u32; 2] = [1, 4]"]
//	ret       = "demo::f32x2"
type fileSchema struct {
	Name       string          `toml:"name"`
	Target     string          `toml:"target"`
	Types      []typeDecl      `toml:"type"`
	Traits     []traitDecl     `toml:"trait"`
	Foreign    []string        `toml:"foreign"`
	Closures   []closureDecl   `toml:"closure"`
	Coroutines []coroutineDecl `toml:"coroutine"`
	Fns        []fnDecl        `toml:"fn"`
	Lower      []string        `toml:"lower"`
	Calls      []callDecl      `toml:"call"`
}

type typeDecl struct {
	Name     string        `toml:"name"`
	Kind     string        `toml:"kind"` // struct | enum | union
	Repr     []string      `toml:"repr"`
	Fields   []string      `toml:"fields"`
	Variants []variantDecl `toml:"variant"`
}

type variantDecl struct {
	Name   string   `toml:"name"`
	Fields []string `toml:"fields"`
	Discr  *int64   `toml:"discr"`
}

type traitDecl struct {
	Name        string       `toml:"name"`
	Supertraits []string     `toml:"supertraits"`
	Methods     []methodDecl `toml:"method"`
}

type methodDecl struct {
	Name   string `toml:"name"`
	Sig    string `toml:"sig"`
	Vacant bool   `toml:"vacant"`
}

type closureDecl struct {
	Name   string   `toml:"name"`
	Upvars []string `toml:"upvars"`
	Sig    string   `toml:"sig"`
}

type coroutineDecl struct {
	Name   string   `toml:"name"`
	Upvars []string `toml:"upvars"`
	Output string   `toml:"output"`
}

type fnDecl struct {
	Name string `toml:"name"`
	Sig  string `toml:"sig"`
}

type callDecl struct {
	Intrinsic string   `toml:"intrinsic"`
	Generic   []string `toml:"generic"`
	Args      []string `toml:"args"`
	Ret       string   `toml:"ret"`
}
