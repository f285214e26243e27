// Package unit loads compilation units: TOML files that declare source
// types (structs, enums, unions, trait objects, closures) and list the
// types and intrinsic calls to lower.
package unit

import (
	"errors"
	"path/filepath"
	"strings"

	"gotolower/internal/layout"
	"gotolower/internal/source"
	"gotolower/internal/types"
)

// ErrInvalidUnit is returned when a unit file had error diagnostics.
var ErrInvalidUnit = errors.New("invalid unit description")

// Unit is a loaded, fully resolved unit description.
type Unit struct {
	Name   string
	Path   string
	File   source.FileID
	Hash   [32]byte
	Target layout.Target
	Types  *types.Interner
	// Decls lists the declared nominal types in file order.
	Decls []TypeRef
	// Lower lists the types to lower; all of Decls when the file has no
	// `lower` key.
	Lower []TypeRef
	Calls []Call
}

// TypeRef is a resolved type together with where it was written.
type TypeRef struct {
	Expr string
	Type types.TypeID
	Span source.Span
}

// Call is one intrinsic call to lower.
type Call struct {
	Intrinsic string
	Generic   []types.TypeID
	Args      []Arg
	Ret       types.TypeID
	Span      source.Span
}

// Arg is an operand of a call: a typed parameter, or a constant when
// Value is set.
type Arg struct {
	Type  types.TypeID
	Value *Const
	Span  source.Span
}

// DefaultName derives a unit name from its file name.
func DefaultName(path string) string {
	base := filepath.Base(path)
	for _, suffix := range []string{".unit.toml", ".toml"} {
		if strings.HasSuffix(base, suffix) {
			return strings.TrimSuffix(base, suffix)
		}
	}
	return base
}
