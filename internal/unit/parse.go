package unit

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"gotolower/internal/types"
)

// SyntaxError is a malformed type expression; offsets are relative to the
// parsed string.
type SyntaxError struct {
	Msg   string
	Start int
	End   int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Start, e.End, e.Msg)
}

type parser struct {
	lx   *lexer
	last int // end of the last accepted punctuation
}

// ParseType parses a complete type expression such as
// `&mut [core::option::Option<&u8>; 4]`.
func ParseType(src string) (*TypeExpr, error) {
	p := &parser{lx: newLexer(src)}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseField parses `name: Type`. Tuple-struct fields use numeric names.
func ParseField(src string) (name string, t *TypeExpr, err error) {
	p := &parser{lx: newLexer(src)}
	tok := p.lx.next()
	if tok.kind != tokIdent && tok.kind != tokInt {
		return "", nil, p.errAt(tok, "expected field name")
	}
	if err := p.expect(":"); err != nil {
		return "", nil, err
	}
	if t, err = p.parseType(); err != nil {
		return "", nil, err
	}
	if err := p.expectEOF(); err != nil {
		return "", nil, err
	}
	return tok.text, t, nil
}

// ParseArg parses an intrinsic argument: a type, optionally followed by
// `= value` for constant operands.
func ParseArg(src string) (*TypeExpr, *Const, error) {
	p := &parser{lx: newLexer(src)}
	t, err := p.parseType()
	if err != nil {
		return nil, nil, err
	}
	if !p.accept("=") {
		return t, nil, p.expectEOF()
	}
	c, err := p.parseConst()
	if err != nil {
		return nil, nil, err
	}
	return t, &c, p.expectEOF()
}

func (p *parser) parseType() (*TypeExpr, error) {
	tok := p.lx.next()
	switch {
	case tok.kind == tokPunct && tok.text == "!":
		return &TypeExpr{Kind: ExprNever, Start: tok.start, End: tok.end}, nil
	case tok.kind == tokPunct && tok.text == "&":
		mut := p.acceptWord("mut")
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &TypeExpr{Kind: ExprRef, Elem: elem, Mut: mut, Start: tok.start, End: elem.End}, nil
	case tok.kind == tokPunct && tok.text == "*":
		var mut bool
		switch {
		case p.acceptWord("mut"):
			mut = true
		case p.acceptWord("const"):
		default:
			return nil, p.errAt(p.lx.peek(), "expected `const` or `mut` after `*`")
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &TypeExpr{Kind: ExprPtr, Elem: elem, Mut: mut, Start: tok.start, End: elem.End}, nil
	case tok.kind == tokPunct && tok.text == "[":
		return p.parseSliceOrArray(tok)
	case tok.kind == tokPunct && tok.text == "(":
		return p.parseTuple(tok)
	case tok.kind == tokIdent && tok.text == "dyn":
		path, _, end, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		return &TypeExpr{Kind: ExprDyn, Path: path, Start: tok.start, End: end}, nil
	case tok.kind == tokIdent && (tok.text == "fn" || tok.text == "extern"):
		return p.parseFn(tok)
	case tok.kind == tokIdent:
		p.lx.look = &tok
		return p.parseNamed()
	}
	return nil, p.errAt(tok, "expected a type")
}

func (p *parser) parseSliceOrArray(open token) (*TypeExpr, error) {
	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if p.accept("]") {
		return &TypeExpr{Kind: ExprSlice, Elem: elem, Start: open.start, End: p.lastEnd()}, nil
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	n := p.lx.next()
	if n.kind != tokInt {
		return nil, p.errAt(n, "expected array length")
	}
	count, err := strconv.ParseUint(strings.ReplaceAll(n.text, "_", ""), 10, 64)
	if err != nil {
		return nil, p.errAt(n, "array length out of range")
	}
	if err := p.expect("]"); err != nil {
		return nil, err
	}
	return &TypeExpr{Kind: ExprArray, Elem: elem, Len: count, Start: open.start, End: p.lastEnd()}, nil
}

func (p *parser) parseTuple(open token) (*TypeExpr, error) {
	var elems []*TypeExpr
	trailingComma := false
	for !p.accept(")") {
		if len(elems) > 0 && !trailingComma {
			return nil, p.errAt(p.lx.peek(), "expected `,` or `)`")
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
		trailingComma = p.accept(",")
	}
	if len(elems) == 1 && !trailingComma {
		// (T) is just T in parentheses
		return elems[0], nil
	}
	return &TypeExpr{Kind: ExprTuple, Args: elems, Start: open.start, End: p.lastEnd()}, nil
}

func (p *parser) parseFn(first token) (*TypeExpr, error) {
	fn := &TypeExpr{Kind: ExprFn, ABI: types.ABIRust, Start: first.start}
	if first.text == "extern" {
		abi := p.lx.next()
		if abi.kind != tokString {
			return nil, p.errAt(abi, "expected ABI string after `extern`")
		}
		switch abi.text {
		case "C":
			fn.ABI = types.ABIC
		case "rust-call":
			fn.ABI = types.ABIRustCall
		case "Rust":
		default:
			return nil, p.errAt(abi, fmt.Sprintf("unknown ABI %q", abi.text))
		}
		if !p.acceptWord("fn") {
			return nil, p.errAt(p.lx.peek(), "expected `fn`")
		}
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	for !p.accept(")") {
		if len(fn.Args) > 0 || fn.Variadic {
			if err := p.expect(","); err != nil {
				return nil, err
			}
			if p.accept(")") {
				break
			}
		}
		if fn.Variadic {
			return nil, p.errAt(p.lx.peek(), "`...` must be the last parameter")
		}
		if p.accept("...") {
			fn.Variadic = true
			continue
		}
		in, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fn.Args = append(fn.Args, in)
	}
	fn.End = p.lastEnd()
	if p.accept("->") {
		out, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fn.Elem = out
		fn.End = out.End
	}
	return fn, nil
}

func (p *parser) parseNamed() (*TypeExpr, error) {
	path, start, end, err := p.parsePath()
	if err != nil {
		return nil, err
	}
	named := &TypeExpr{Kind: ExprName, Path: path, Start: start, End: end}
	if !p.accept("<") {
		return named, nil
	}
	for {
		arg, err := p.parseType()
		if err != nil {
			return nil, err
		}
		named.Args = append(named.Args, arg)
		if p.accept(">") {
			break
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
	}
	named.End = p.lastEnd()
	return named, nil
}

// parsePath reads IDENT {:: IDENT} and returns it NFC-normalized.
func (p *parser) parsePath() (path string, start, end int, err error) {
	tok := p.lx.next()
	if tok.kind != tokIdent {
		return "", 0, 0, p.errAt(tok, "expected a path")
	}
	var sb strings.Builder
	sb.WriteString(tok.text)
	start, end = tok.start, tok.end
	for p.accept("::") {
		seg := p.lx.next()
		if seg.kind != tokIdent {
			return "", 0, 0, p.errAt(seg, "expected a path segment after `::`")
		}
		sb.WriteString("::")
		sb.WriteString(seg.text)
		end = seg.end
	}
	return norm.NFC.String(sb.String()), start, end, nil
}

func (p *parser) parseConst() (Const, error) {
	tok := p.lx.next()
	switch {
	case tok.kind == tokIdent && (tok.text == "true" || tok.text == "false"):
		return Const{Kind: ConstBool, Bool: tok.text == "true"}, nil
	case tok.kind == tokPunct && tok.text == "-":
		n := p.lx.next()
		if n.kind != tokInt {
			return Const{}, p.errAt(n, "expected an integer after `-`")
		}
		v, err := strconv.ParseInt("-"+strings.ReplaceAll(n.text, "_", ""), 10, 64)
		if err != nil {
			return Const{}, p.errAt(n, "integer out of range")
		}
		return Const{Kind: ConstInt, Int: v}, nil
	case tok.kind == tokInt:
		v, err := strconv.ParseInt(strings.ReplaceAll(tok.text, "_", ""), 10, 64)
		if err != nil {
			return Const{}, p.errAt(tok, "integer out of range")
		}
		return Const{Kind: ConstInt, Int: v}, nil
	case tok.kind == tokPunct && tok.text == "[":
		arr := Const{Kind: ConstArray}
		for !p.accept("]") {
			if len(arr.Elems) > 0 {
				if err := p.expect(","); err != nil {
					return Const{}, err
				}
				if p.accept("]") {
					break
				}
			}
			elem, err := p.parseConst()
			if err != nil {
				return Const{}, err
			}
			arr.Elems = append(arr.Elems, elem)
		}
		return arr, nil
	}
	return Const{}, p.errAt(tok, "expected a constant")
}

// helpers -------------------------------------------------------------------

func (p *parser) accept(punct string) bool {
	if tok := p.lx.peek(); tok.kind == tokPunct && tok.text == punct {
		p.lx.next()
		p.last = tok.end
		return true
	}
	return false
}

func (p *parser) acceptWord(word string) bool {
	if tok := p.lx.peek(); tok.kind == tokIdent && tok.text == word {
		p.lx.next()
		p.last = tok.end
		return true
	}
	return false
}

func (p *parser) expect(punct string) error {
	if p.accept(punct) {
		return nil
	}
	return p.errAt(p.lx.peek(), fmt.Sprintf("expected `%s`", punct))
}

func (p *parser) expectEOF() error {
	if tok := p.lx.peek(); tok.kind != tokEOF {
		return p.errAt(tok, fmt.Sprintf("unexpected `%s`", tok.text))
	}
	return nil
}

func (p *parser) lastEnd() int { return p.last }

func (p *parser) errAt(tok token, msg string) error {
	if tok.kind == tokEOF {
		msg += ", found end of input"
	}
	end := tok.end
	if end == tok.start {
		end++
	}
	return &SyntaxError{Msg: msg, Start: tok.start, End: end}
}
