package gotoc

import "gotolower/internal/source"

// StmtKind enumerates statement shapes.
type StmtKind uint8

const (
	StmtSkip StmtKind = iota
	StmtAssign
	StmtAssert
	StmtAssume
	StmtAtomicBlock
	StmtBlock
	StmtDecl
	StmtExpression
	StmtIfThenElse
	StmtReturn
)

func (k StmtKind) String() string {
	switch k {
	case StmtSkip:
		return "skip"
	case StmtAssign:
		return "assign"
	case StmtAssert:
		return "assert"
	case StmtAssume:
		return "assume"
	case StmtAtomicBlock:
		return "atomic"
	case StmtBlock:
		return "block"
	case StmtDecl:
		return "decl"
	case StmtExpression:
		return "expression"
	case StmtIfThenElse:
		return "ifthenelse"
	case StmtReturn:
		return "return"
	default:
		return "stmt?"
	}
}

// PropertyClass tags an assertion with the kind of property it checks.
type PropertyClass string

const (
	PropArithmeticOverflow   PropertyClass = "arithmetic_overflow"
	PropAssertion            PropertyClass = "assertion"
	PropAssume               PropertyClass = "assume"
	PropDefault              PropertyClass = "default"
	PropDivisionByZero       PropertyClass = "division_by_zero"
	PropExactDiv             PropertyClass = "exact_div"
	PropFiniteCheck          PropertyClass = "finite_check"
	PropPointerOffset        PropertyClass = "pointer_offset"
	PropSafetyCheck          PropertyClass = "safety_check"
	PropUnreachable          PropertyClass = "unreachable"
	PropUnsupportedConstruct PropertyClass = "unsupported_construct"
)

// Stmt is a target statement.
type Stmt struct {
	Kind     StmtKind
	LHS      *Expr // assign, decl
	RHS      *Expr // assign, decl initializer, expression, return value
	Cond     *Expr // assert, assume, if
	Then     *Stmt
	Else     *Stmt
	Body     []Stmt // block, atomic block
	Property PropertyClass
	Message  string
	Loc      source.Span
}

func exprPtr(e Expr) *Expr { return &e }

// Skip does nothing.
func Skip(loc source.Span) Stmt {
	return Stmt{Kind: StmtSkip, Loc: loc}
}

// Assign stores rhs into lhs.
func Assign(lhs, rhs Expr, loc source.Span) Stmt {
	return Stmt{Kind: StmtAssign, LHS: exprPtr(lhs), RHS: exprPtr(rhs), Loc: loc}
}

// Assert checks cond, reporting msg under property when it fails.
func Assert(cond Expr, property PropertyClass, msg string, loc source.Span) Stmt {
	return Stmt{Kind: StmtAssert, Cond: exprPtr(cond), Property: property, Message: msg, Loc: loc}
}

// Assume restricts executions to those where cond holds.
func Assume(cond Expr, loc source.Span) Stmt {
	return Stmt{Kind: StmtAssume, Cond: exprPtr(cond), Loc: loc}
}

// AssertAssume asserts cond and then assumes it, so later checks are not
// reported for paths that already failed.
func AssertAssume(cond Expr, property PropertyClass, msg string, loc source.Span) Stmt {
	return Block([]Stmt{Assert(cond, property, msg, loc), Assume(cond, loc)}, loc)
}

// AssertFalse is an assertion that always fails when reached.
func AssertFalse(property PropertyClass, msg string, loc source.Span) Stmt {
	return Assert(False(), property, msg, loc)
}

// FatalError fails when reached and cuts the path: nothing after it is
// checked.
func FatalError(property PropertyClass, msg string, loc source.Span) Stmt {
	return AssertAssume(False(), property, msg, loc)
}

// AtomicBlock marks body as one indivisible step.
func AtomicBlock(body []Stmt, loc source.Span) Stmt {
	return Stmt{Kind: StmtAtomicBlock, Body: body, Loc: loc}
}

// Block groups statements.
func Block(body []Stmt, loc source.Span) Stmt {
	return Stmt{Kind: StmtBlock, Body: body, Loc: loc}
}

// Decl declares a local symbol with an optional initializer.
func Decl(sym Expr, init *Expr, loc source.Span) Stmt {
	s := Stmt{Kind: StmtDecl, LHS: exprPtr(sym), Loc: loc}
	if init != nil {
		s.RHS = exprPtr(*init)
	}
	return s
}

// ExprStmt evaluates e for its side effects.
func ExprStmt(e Expr, loc source.Span) Stmt {
	return Stmt{Kind: StmtExpression, RHS: exprPtr(e), Loc: loc}
}

// IfThenElse branches on cond; els may be nil.
func IfThenElse(cond Expr, then Stmt, els *Stmt, loc source.Span) Stmt {
	s := Stmt{Kind: StmtIfThenElse, Cond: exprPtr(cond), Then: &then, Loc: loc}
	if els != nil {
		e := *els
		s.Else = &e
	}
	return s
}

// Return leaves the current function.
func Return(value *Expr, loc source.Span) Stmt {
	s := Stmt{Kind: StmtReturn, Loc: loc}
	if value != nil {
		s.RHS = exprPtr(*value)
	}
	return s
}

// Walk visits s and its nested statements in order. Returning false from
// fn skips the children of the visited statement.
func (s Stmt) Walk(fn func(Stmt) bool) {
	if !fn(s) {
		return
	}
	for _, b := range s.Body {
		b.Walk(fn)
	}
	if s.Then != nil {
		s.Then.Walk(fn)
	}
	if s.Else != nil {
		s.Else.Walk(fn)
	}
}

// Flatten returns every non-block statement in execution order.
func (s Stmt) Flatten() []Stmt {
	var out []Stmt
	s.Walk(func(n Stmt) bool {
		if n.Kind != StmtBlock && n.Kind != StmtAtomicBlock {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Asserts returns the assertions in s in execution order.
func (s Stmt) Asserts() []Stmt {
	var out []Stmt
	for _, n := range s.Flatten() {
		if n.Kind == StmtAssert {
			out = append(out, n)
		}
	}
	return out
}
