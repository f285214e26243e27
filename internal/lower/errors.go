package lower

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"gotolower/internal/diag"
	"gotolower/internal/layout"
	"gotolower/internal/source"
	"gotolower/internal/types"
)

// ErrUnitAborted is returned by Finish when the unit reported errors.
var ErrUnitAborted = errors.New("lowering aborted")

// InternalError is the panic value for broken engine invariants: a layout
// shape the encoder does not know, an impossible pointer classification.
// It is never recovered.
type InternalError struct {
	Op   string
	Type string
	Msg  string
}

func (e *InternalError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("lower: %s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("lower: %s %s: %s", e.Op, e.Type, e.Msg)
}

func (c *Ctx) internalf(op string, t types.TypeID, format string, args ...any) {
	panic(&InternalError{Op: op, Type: c.label(t), Msg: fmt.Sprintf(format, args...)})
}

func (c *Ctx) reportError(code diag.Code, sp source.Span, msg string) {
	c.errCount++
	diag.ReportError(c.reporter, code, sp, msg).Emit()
}

func (c *Ctx) reportWarning(code diag.Code, sp source.Span, msg string) {
	diag.ReportWarning(c.reporter, code, sp, msg).Emit()
}

// layoutOf asks the oracle for the layout of t. A failing type is reported
// once; lowering continues with whatever layout the oracle gave back.
func (c *Ctx) layoutOf(t types.TypeID) *layout.Layout {
	l, err := c.Oracle.LayoutOf(t)
	if err == nil {
		return l
	}
	if !c.layoutFailed[t] {
		c.layoutFailed[t] = true
		code := diag.LayUnsupportedType
		var le *layout.LayoutError
		if errors.As(err, &le) {
			switch le.Kind {
			case layout.LayoutErrRecursiveUnsized:
				code = diag.LayRecursiveType
			case layout.LayoutErrSizeOverflow:
				code = diag.LaySizeOverflow
			case layout.LayoutErrIncomplete:
				code = diag.LayIncompleteType
			}
		}
		c.log.Debug("layout failed", zap.String("type", c.label(t)), zap.Error(err))
		c.reportError(code, source.Span{}, err.Error())
	}
	if l == nil {
		l = &layout.Layout{Align: 1, Sized: true, Fields: layout.FieldsShape{Kind: layout.FieldsArbitrary}}
	}
	return l
}
