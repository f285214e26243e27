package gotoc

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// WriteText renders the symbol table as readable C-like declarations in
// lexical symbol order. Struct members are aligned in columns.
func WriteText(w io.Writer, st *SymbolTable) error {
	bw := bufio.NewWriter(w)
	for _, name := range st.SortedNames() {
		sym, _ := st.Lookup(name)
		writeSymbol(bw, sym)
	}
	return bw.Flush()
}

func writeSymbol(w *bufio.Writer, sym *Symbol) {
	switch sym.Kind {
	case SymType:
		writeAggregate(w, sym.Type)
	case SymFunction:
		fmt.Fprintf(w, "// %s\n%s;\n", sym.PrettyName, FormatType(sym.Type, sym.Name))
		if sym.Body != nil {
			fmt.Fprintf(w, "%s\n", FormatStmt(*sym.Body))
		}
		w.WriteByte('\n')
	default:
		fmt.Fprintf(w, "%s;\n\n", FormatType(sym.Type, sym.Name))
	}
}

func writeAggregate(w *bufio.Writer, t Type) {
	kw := "struct"
	if t.Kind == TypeUnion {
		kw = "union"
	}
	if t.Kind == TypeIncompleteStruct {
		fmt.Fprintf(w, "struct %s;\n\n", quoteTag(t.Tag))
		return
	}
	fmt.Fprintf(w, "%s %s {\n", kw, quoteTag(t.Tag))
	types := make([]string, len(t.Components))
	widest := 0
	for i, c := range t.Components {
		if c.Padding {
			types[i] = fmt.Sprintf("/* padding %d bits */", c.Bits)
		} else {
			types[i] = c.Type.String()
		}
		widest = max(widest, runewidth.StringWidth(types[i]))
	}
	for i, c := range t.Components {
		fmt.Fprintf(w, "    %s %s;\n", runewidth.FillRight(types[i], widest), c.Name)
	}
	w.WriteString("};\n\n")
}

// quoteTag wraps tags that are not plain C identifiers.
func quoteTag(tag string) string {
	for _, r := range tag {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return fmt.Sprintf("%q", tag)
		}
	}
	return tag
}

// FormatType renders a declaration of name with type t.
func FormatType(t Type, name string) string {
	if t.IsCode() {
		params := make([]string, 0, len(t.Params)+1)
		for _, p := range t.Params {
			s := p.Type.String()
			if p.BaseName != "" {
				s += " " + p.BaseName
			}
			params = append(params, s)
		}
		if t.Kind == TypeVariadicCode {
			params = append(params, "...")
		}
		return fmt.Sprintf("%s %s(%s)", t.ReturnType(), quoteTag(name), strings.Join(params, ", "))
	}
	return fmt.Sprintf("%s %s", t, quoteTag(name))
}

// FormatExpr renders e in C-like syntax.
func FormatExpr(e Expr) string {
	var b strings.Builder
	formatExpr(&b, e)
	return b.String()
}

func formatExpr(b *strings.Builder, e Expr) {
	switch e.Kind {
	case ExprSymbol:
		b.WriteString(e.Name)
	case ExprIntConstant:
		b.WriteString(e.Value.String())
	case ExprBoolConstant:
		if e.Bool {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case ExprStringConstant:
		fmt.Fprintf(b, "%q", e.Name)
	case ExprNondet:
		fmt.Fprintf(b, "nondet<%s>()", e.Type)
	case ExprAddressOf:
		b.WriteString("&")
		formatExpr(b, e.Operands[0])
	case ExprDereference:
		b.WriteString("*")
		formatExpr(b, e.Operands[0])
	case ExprMember:
		formatExpr(b, e.Operands[0])
		b.WriteString(".")
		b.WriteString(e.Name)
	case ExprIndex:
		formatExpr(b, e.Operands[0])
		b.WriteString("[")
		formatExpr(b, e.Operands[1])
		b.WriteString("]")
	case ExprTypecast:
		fmt.Fprintf(b, "(%s)", e.Type)
		formatExpr(b, e.Operands[0])
	case ExprByteExtract:
		fmt.Fprintf(b, "transmute<%s>(", e.Type)
		formatExpr(b, e.Operands[0])
		b.WriteString(")")
	case ExprBinary:
		b.WriteString("(")
		formatExpr(b, e.Operands[0])
		fmt.Fprintf(b, " %s ", e.BinOp)
		formatExpr(b, e.Operands[1])
		b.WriteString(")")
	case ExprUnary:
		fmt.Fprintf(b, "%s(", e.UnOp)
		formatExpr(b, e.Operands[0])
		b.WriteString(")")
	case ExprIf:
		b.WriteString("(")
		formatExpr(b, e.Operands[0])
		b.WriteString(" ? ")
		formatExpr(b, e.Operands[1])
		b.WriteString(" : ")
		formatExpr(b, e.Operands[2])
		b.WriteString(")")
	case ExprCall:
		formatExpr(b, e.Operands[0])
		formatList(b, "(", e.Operands[1:], ")")
	case ExprStruct, ExprArray, ExprVector:
		fmt.Fprintf(b, "(%s)", e.Type)
		formatList(b, "{", e.Operands, "}")
	default:
		fmt.Fprintf(b, "expr(%d)", e.Kind)
	}
}

func formatList(b *strings.Builder, open string, es []Expr, close string) {
	b.WriteString(open)
	for i, e := range es {
		if i > 0 {
			b.WriteString(", ")
		}
		formatExpr(b, e)
	}
	b.WriteString(close)
}

// FormatStmt renders s as an indented C-like block.
func FormatStmt(s Stmt) string {
	var b strings.Builder
	formatStmt(&b, s, 0)
	return strings.TrimRight(b.String(), "\n")
}

func formatStmt(b *strings.Builder, s Stmt, depth int) {
	indent := strings.Repeat("    ", depth)
	switch s.Kind {
	case StmtSkip:
		fmt.Fprintf(b, "%s;\n", indent)
	case StmtAssign:
		fmt.Fprintf(b, "%s%s = %s;\n", indent, FormatExpr(*s.LHS), FormatExpr(*s.RHS))
	case StmtAssert:
		fmt.Fprintf(b, "%sassert(%s); // %s: %s\n", indent, FormatExpr(*s.Cond), s.Property, s.Message)
	case StmtAssume:
		fmt.Fprintf(b, "%sassume(%s);\n", indent, FormatExpr(*s.Cond))
	case StmtDecl:
		if s.RHS != nil {
			fmt.Fprintf(b, "%s%s = %s;\n", indent, FormatType(s.LHS.Type, s.LHS.Name), FormatExpr(*s.RHS))
		} else {
			fmt.Fprintf(b, "%s%s;\n", indent, FormatType(s.LHS.Type, s.LHS.Name))
		}
	case StmtExpression:
		fmt.Fprintf(b, "%s%s;\n", indent, FormatExpr(*s.RHS))
	case StmtReturn:
		if s.RHS != nil {
			fmt.Fprintf(b, "%sreturn %s;\n", indent, FormatExpr(*s.RHS))
		} else {
			fmt.Fprintf(b, "%sreturn;\n", indent)
		}
	case StmtIfThenElse:
		fmt.Fprintf(b, "%sif (%s) {\n", indent, FormatExpr(*s.Cond))
		formatStmt(b, *s.Then, depth+1)
		if s.Else != nil {
			fmt.Fprintf(b, "%s} else {\n", indent)
			formatStmt(b, *s.Else, depth+1)
		}
		fmt.Fprintf(b, "%s}\n", indent)
	case StmtBlock, StmtAtomicBlock:
		open := "{"
		if s.Kind == StmtAtomicBlock {
			open = "ATOMIC_BEGIN {"
		}
		fmt.Fprintf(b, "%s%s\n", indent, open)
		for _, inner := range s.Body {
			formatStmt(b, inner, depth+1)
		}
		fmt.Fprintf(b, "%s}\n", indent)
	}
}
