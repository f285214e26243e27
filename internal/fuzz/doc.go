// Package fuzztests houses Go fuzz harnesses for the unit front end
// (type expressions and whole *.unit.toml files). They guard against
// panics and hangs on arbitrary inputs.
//
// Зависимости: internal/source, internal/unit, internal/layout,
// internal/diag.

package fuzztests
