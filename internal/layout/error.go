package layout

import (
	"fmt"
	"strings"

	"gotolower/internal/types"
)

// LayoutErrorKind enumerates types of layout calculation errors.
type LayoutErrorKind uint8

const (
	// LayoutErrRecursiveUnsized indicates a recursive type with no fixed size.
	LayoutErrRecursiveUnsized LayoutErrorKind = iota + 1
	LayoutErrSizeOverflow
	LayoutErrUnknownType
	LayoutErrIncomplete
)

// LayoutError represents an error during memory layout calculation.
type LayoutError struct {
	Kind  LayoutErrorKind
	Type  types.TypeID
	Label string
	Cycle []types.TypeID // for LayoutErrRecursiveUnsized
	Err   error          // for LayoutErrSizeOverflow
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	what := fmt.Sprintf("type#%d", e.Type)
	if e.Label != "" {
		what = e.Label
	}
	switch e.Kind {
	case LayoutErrRecursiveUnsized:
		if len(e.Cycle) == 0 {
			return fmt.Sprintf("recursive value type has infinite size (%s)", what)
		}
		parts := make([]string, 0, len(e.Cycle))
		for _, id := range e.Cycle {
			parts = append(parts, fmt.Sprintf("type#%d", id))
		}
		return fmt.Sprintf("recursive value type has infinite size (cycle: %s)", strings.Join(parts, " -> "))
	case LayoutErrSizeOverflow:
		if e.Err != nil {
			return fmt.Sprintf("values of type %s are too big for the target: %v", what, e.Err)
		}
		return fmt.Sprintf("values of type %s are too big for the target", what)
	case LayoutErrUnknownType:
		return fmt.Sprintf("no layout for unknown %s", what)
	case LayoutErrIncomplete:
		return fmt.Sprintf("%s has no variants registered", what)
	default:
		return fmt.Sprintf("layout error kind=%d %s", e.Kind, what)
	}
}

func (e *LayoutError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
