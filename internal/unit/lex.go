package unit

import (
	"unicode"
	"unicode/utf8"
)

type tokKind uint8

const (
	tokEOF tokKind = iota
	tokIdent
	tokInt
	tokString
	tokPunct
	tokBad
)

type token struct {
	kind  tokKind
	text  string
	start int
	end   int
}

// lexer режет строку типа на токены; один токен в буфере look.
type lexer struct {
	src  string
	pos  int
	look *token
}

func newLexer(src string) *lexer { return &lexer{src: src} }

func (lx *lexer) peek() token {
	if lx.look == nil {
		tok := lx.scan()
		lx.look = &tok
	}
	return *lx.look
}

func (lx *lexer) next() token {
	tok := lx.peek()
	lx.look = nil
	return tok
}

func (lx *lexer) scan() token {
	for lx.pos < len(lx.src) && (lx.src[lx.pos] == ' ' || lx.src[lx.pos] == '\t') {
		lx.pos++
	}
	start := lx.pos
	if start >= len(lx.src) {
		return token{kind: tokEOF, start: start, end: start}
	}
	ch := lx.src[start]
	switch {
	case ch == '{':
		// сегмент вида {closure#0} целиком считается идентификатором
		for lx.pos < len(lx.src) && lx.src[lx.pos] != '}' {
			lx.pos++
		}
		if lx.pos == len(lx.src) {
			return token{kind: tokBad, text: lx.src[start:], start: start, end: lx.pos}
		}
		lx.pos++
		return lx.tok(tokIdent, start)
	case isIdentStart(lx.src[start:]):
		for lx.pos < len(lx.src) {
			r, size := utf8.DecodeRuneInString(lx.src[lx.pos:])
			if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				break
			}
			lx.pos += size
		}
		return lx.tok(tokIdent, start)
	case ch >= '0' && ch <= '9':
		for lx.pos < len(lx.src) && (isDigit(lx.src[lx.pos]) || lx.src[lx.pos] == '_') {
			lx.pos++
		}
		return lx.tok(tokInt, start)
	case ch == '"':
		lx.pos++
		for lx.pos < len(lx.src) && lx.src[lx.pos] != '"' {
			lx.pos++
		}
		if lx.pos == len(lx.src) {
			return token{kind: tokBad, text: lx.src[start:], start: start, end: lx.pos}
		}
		lx.pos++
		return token{kind: tokString, text: lx.src[start+1 : lx.pos-1], start: start, end: lx.pos}
	}
	for _, p := range []string{"::", "->", "..."} {
		if len(lx.src)-start >= len(p) && lx.src[start:start+len(p)] == p {
			lx.pos += len(p)
			return lx.tok(tokPunct, start)
		}
	}
	switch ch {
	case '(', ')', '[', ']', '<', '>', ',', ';', ':', '&', '*', '!', '=', '-':
		lx.pos++
		return lx.tok(tokPunct, start)
	}
	_, size := utf8.DecodeRuneInString(lx.src[start:])
	lx.pos += size
	return lx.tok(tokBad, start)
}

func (lx *lexer) tok(kind tokKind, start int) token {
	return token{kind: kind, text: lx.src[start:lx.pos], start: start, end: lx.pos}
}

func isIdentStart(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r == '_' || unicode.IsLetter(r)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
