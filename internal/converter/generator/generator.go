// Package generator renders a syntax tree back to script text.
package generator

import (
	"fmt"
	"strings"

	"github.com/quant-king299/stratconv/converr"
	"github.com/quant-king299/stratconv/internal/syntax"
)

const (
	// RemovedMarker prefixes the comment a deleted statement is rendered as.
	RemovedMarker = "# [removed]"
	// ReviewMarker prefixes review notes appended to a statement line.
	ReviewMarker = "# [review]"
)

// ScriptGenerator renders modules with a fixed block unit.
type ScriptGenerator struct {
	indent string
}

// NewScriptGenerator creates a generator using 4-space block units.
func NewScriptGenerator() *ScriptGenerator {
	return &ScriptGenerator{indent: "    "}
}

// Generate renders mod. The output always ends with a single newline.
func (g *ScriptGenerator) Generate(mod *syntax.Module) (out string, err error) {
	if mod == nil {
		return "", converr.NewInternalError("generate", "nil module")
	}
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*converr.InternalError); ok {
				out, err = "", e
				return
			}
			panic(r)
		}
	}()
	w := &writer{unit: g.indent}
	w.topLevel(mod.Body)
	text := strings.TrimRight(w.b.String(), "\n")
	if text == "" {
		return "", nil
	}
	return text + "\n", nil
}

// Generate renders mod with the default generator.
func Generate(mod *syntax.Module) (string, error) {
	return NewScriptGenerator().Generate(mod)
}

type writer struct {
	b     strings.Builder
	unit  string
	depth int
}

func (w *writer) line(meta *syntax.StmtMeta, text string) {
	w.lineTrailing(text, meta.Trailing, meta.Marks)
}

func (w *writer) lineTrailing(text, trailing string, marks []string) {
	w.b.WriteString(strings.Repeat(w.unit, w.depth))
	w.b.WriteString(text)
	if trailing != "" {
		w.b.WriteString("  ")
		w.b.WriteString(trailing)
	}
	if len(marks) > 0 {
		w.b.WriteString("  " + ReviewMarker + " ")
		w.b.WriteString(strings.Join(marks, "; "))
	}
	w.b.WriteByte('\n')
}

func isDef(s syntax.Stmt) bool {
	switch s.(type) {
	case *syntax.FuncDef, *syntax.ClassDef:
		return true
	}
	return false
}

func isImport(s syntax.Stmt) bool {
	switch s.(type) {
	case *syntax.Import, *syntax.FromImport:
		return true
	}
	return false
}

func isComment(s syntax.Stmt) bool {
	_, ok := s.(*syntax.Comment)
	return ok
}

// topLevel separates definitions by two blank lines. Comments directly above a
// definition stay attached to it.
func (w *writer) topLevel(body []syntax.Stmt) {
	gapBefore := make([]bool, len(body))
	for i, s := range body {
		if !isDef(s) {
			continue
		}
		j := i
		for j > 0 {
			if _, ok := body[j-1].(*syntax.Comment); !ok {
				break
			}
			j--
		}
		gapBefore[j] = true
		if i+1 < len(body) {
			gapBefore[i+1] = true
		}
	}
	for i, s := range body {
		switch {
		case i == 0:
		case gapBefore[i]:
			w.b.WriteString("\n\n")
		case isImport(body[i-1]) && !isImport(s):
			w.b.WriteString("\n")
		case isImport(s) && isComment(body[i-1]):
			w.b.WriteString("\n")
		}
		w.stmt(s)
	}
}

func (w *writer) block(body []syntax.Stmt) {
	w.depth++
	defer func() { w.depth-- }()
	for i, s := range body {
		if i > 0 && isDef(s) && isDef(body[i-1]) {
			w.b.WriteString("\n")
		}
		w.stmt(s)
	}
	if !syntax.HasCode(body) {
		w.lineTrailing("pass", "", nil)
	}
}

func (w *writer) clause(text, trailing string, body []syntax.Stmt) {
	w.lineTrailing(text, trailing, nil)
	w.block(body)
}

func (w *writer) stmt(s syntax.Stmt) {
	switch x := s.(type) {
	case *syntax.Comment:
		w.lineTrailing(x.Text, "", nil)
	case *syntax.Tombstone:
		w.lineTrailing(RemovedMarker+" "+x.Original, "", x.Marks)
	case *syntax.FuncDef:
		for _, d := range x.Decorators {
			w.lineTrailing("@"+Expr(d), "", nil)
		}
		head := "def " + x.Name + "(" + Params(x.Params) + ")"
		if x.Async {
			head = "async " + head
		}
		if x.Returns != nil {
			head += " -> " + Expr(x.Returns)
		}
		w.line(x.Meta(), head+":")
		w.block(x.Body)
	case *syntax.ClassDef:
		for _, d := range x.Decorators {
			w.lineTrailing("@"+Expr(d), "", nil)
		}
		head := "class " + x.Name
		if len(x.Bases) > 0 {
			head += "(" + exprList(x.Bases) + ")"
		}
		w.line(x.Meta(), head+":")
		w.block(x.Body)
	case *syntax.If:
		w.ifChain(x, "if ")
	case *syntax.For:
		head := "for " + Expr(x.Target) + " in " + Expr(x.Iter) + ":"
		if x.Async {
			head = "async " + head
		}
		w.line(x.Meta(), head)
		w.block(x.Body)
		if x.Else != nil {
			w.clause("else:", x.ElseTrailing, x.Else)
		}
	case *syntax.While:
		w.line(x.Meta(), "while "+Expr(x.Test)+":")
		w.block(x.Body)
		if x.Else != nil {
			w.clause("else:", x.ElseTrailing, x.Else)
		}
	case *syntax.Try:
		w.line(x.Meta(), "try:")
		w.block(x.Body)
		for _, h := range x.Handlers {
			head := "except"
			if h.Type != nil {
				head += " " + Expr(h.Type)
				if h.Name != "" {
					head += " as " + h.Name
				}
			}
			w.clause(head+":", h.Trailing, h.Body)
		}
		if x.Else != nil {
			w.clause("else:", x.ElseTrailing, x.Else)
		}
		if x.Finally != nil {
			w.clause("finally:", x.FinallyTrailing, x.Finally)
		}
	case *syntax.With:
		items := make([]string, len(x.Items))
		for i, it := range x.Items {
			items[i] = Expr(it.Context)
			if it.As != nil {
				items[i] += " as " + Expr(it.As)
			}
		}
		head := "with " + strings.Join(items, ", ") + ":"
		if x.Async {
			head = "async " + head
		}
		w.line(x.Meta(), head)
		w.block(x.Body)
	default:
		w.line(s.Meta(), Simple(s))
	}
}

func (w *writer) ifChain(x *syntax.If, kw string) {
	w.line(x.Meta(), kw+Expr(x.Test)+":")
	w.block(x.Body)
	if len(x.Else) == 1 {
		if elif, ok := x.Else[0].(*syntax.If); ok && elif.IsElif {
			w.ifChain(elif, "elif ")
			return
		}
	}
	if x.Else != nil {
		w.clause("else:", x.ElseTrailing, x.Else)
	}
}

// Simple renders a simple (single-line) statement without indentation, trailing
// comment or marks.
func Simple(s syntax.Stmt) string {
	switch x := s.(type) {
	case *syntax.ExprStmt:
		return Expr(x.X)
	case *syntax.Assign:
		return exprJoin(x.Targets, " = ") + " = " + Expr(x.Value)
	case *syntax.AugAssign:
		return Expr(x.Target) + " " + x.Op + " " + Expr(x.Value)
	case *syntax.AnnAssign:
		out := Expr(x.Target) + ": " + Expr(x.Annotation)
		if x.Value != nil {
			out += " = " + Expr(x.Value)
		}
		return out
	case *syntax.Return:
		if x.Value == nil {
			return "return"
		}
		return "return " + Expr(x.Value)
	case *syntax.Pass:
		return "pass"
	case *syntax.Break:
		return "break"
	case *syntax.Continue:
		return "continue"
	case *syntax.Global:
		return "global " + strings.Join(x.Names, ", ")
	case *syntax.Nonlocal:
		return "nonlocal " + strings.Join(x.Names, ", ")
	case *syntax.Import:
		return "import " + aliases(x.Names)
	case *syntax.FromImport:
		return "from " + x.Module + " import " + aliases(x.Names)
	case *syntax.Raise:
		out := "raise"
		if x.Exc != nil {
			out += " " + Expr(x.Exc)
			if x.Cause != nil {
				out += " from " + Expr(x.Cause)
			}
		}
		return out
	case *syntax.Assert:
		out := "assert " + Expr(x.Test)
		if x.Msg != nil {
			out += ", " + Expr(x.Msg)
		}
		return out
	case *syntax.Del:
		return "del " + exprList(x.Targets)
	case *syntax.Comment:
		return x.Text
	case *syntax.Tombstone:
		return RemovedMarker + " " + x.Original
	}
	panic(converr.NewInternalError("generate", fmt.Sprintf("%s is not a simple statement", s.Kind())))
}

func aliases(names []*syntax.Alias) string {
	parts := make([]string, len(names))
	for i, a := range names {
		parts[i] = a.Name
		if a.AsName != "" {
			parts[i] += " as " + a.AsName
		}
	}
	return strings.Join(parts, ", ")
}

// Params renders a parameter list without the surrounding parentheses.
func Params(params []*syntax.Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		s := p.Star + p.Name
		if p.Annotation != nil {
			s += ": " + Expr(p.Annotation)
		}
		if p.Default != nil {
			if p.Annotation != nil {
				s += " = " + Expr(p.Default)
			} else {
				s += "=" + Expr(p.Default)
			}
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}

func exprList(es []syntax.Expr) string { return exprJoin(es, ", ") }

func exprJoin(es []syntax.Expr, sep string) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = Expr(e)
	}
	return strings.Join(parts, sep)
}

// Expr renders an expression on a single line.
func Expr(e syntax.Expr) string {
	var b strings.Builder
	expr(&b, e)
	return b.String()
}

func expr(b *strings.Builder, e syntax.Expr) {
	switch x := e.(type) {
	case *syntax.Name:
		b.WriteString(x.Id)
	case *syntax.Attribute:
		expr(b, x.X)
		b.WriteByte('.')
		b.WriteString(x.Attr)
	case *syntax.Call:
		expr(b, x.Func)
		b.WriteByte('(')
		for i, a := range x.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			// a bare generator needs its own parentheses once it has company
			if c, ok := a.(*syntax.Comprehension); ok && c.Bare && len(x.Args) > 1 {
				b.WriteByte('(')
				expr(b, a)
				b.WriteByte(')')
				continue
			}
			expr(b, a)
		}
		b.WriteByte(')')
	case *syntax.Keyword:
		b.WriteString(x.Name)
		b.WriteByte('=')
		expr(b, x.Value)
	case *syntax.Starred:
		if x.Double {
			b.WriteString("**")
		} else {
			b.WriteByte('*')
		}
		expr(b, x.X)
	case *syntax.Subscript:
		expr(b, x.X)
		b.WriteByte('[')
		expr(b, x.Index)
		b.WriteByte(']')
	case *syntax.Slice:
		if x.Lo != nil {
			expr(b, x.Lo)
		}
		b.WriteByte(':')
		if x.Hi != nil {
			expr(b, x.Hi)
		}
		if x.HasStep {
			b.WriteByte(':')
			if x.Step != nil {
				expr(b, x.Step)
			}
		}
	case *syntax.Literal:
		b.WriteString(x.Raw)
	case *syntax.List:
		b.WriteByte('[')
		b.WriteString(exprList(x.Elts))
		b.WriteByte(']')
	case *syntax.Tuple:
		b.WriteString(exprList(x.Elts))
		if len(x.Elts) == 1 {
			b.WriteByte(',')
		}
	case *syntax.Set:
		b.WriteByte('{')
		b.WriteString(exprList(x.Elts))
		b.WriteByte('}')
	case *syntax.Dict:
		b.WriteByte('{')
		for i := range x.Values {
			if i > 0 {
				b.WriteString(", ")
			}
			if x.Keys[i] == nil {
				b.WriteString("**")
			} else {
				expr(b, x.Keys[i])
				b.WriteString(": ")
			}
			expr(b, x.Values[i])
		}
		b.WriteByte('}')
	case *syntax.BinOp:
		expr(b, x.X)
		b.WriteString(" " + x.Op + " ")
		expr(b, x.Y)
	case *syntax.UnaryOp:
		b.WriteString(x.Op)
		if x.Op == "not" {
			b.WriteByte(' ')
		}
		expr(b, x.X)
	case *syntax.Compare:
		expr(b, x.X)
		for i, op := range x.Ops {
			b.WriteString(" " + op + " ")
			expr(b, x.Comparators[i])
		}
	case *syntax.IfExp:
		expr(b, x.Body)
		b.WriteString(" if ")
		expr(b, x.Test)
		b.WriteString(" else ")
		expr(b, x.Else)
	case *syntax.Lambda:
		b.WriteString("lambda")
		if len(x.Params) > 0 {
			b.WriteString(" " + Params(x.Params))
		}
		b.WriteString(": ")
		expr(b, x.Body)
	case *syntax.Comprehension:
		comprehension(b, x)
	case *syntax.Paren:
		b.WriteByte('(')
		expr(b, x.X)
		b.WriteByte(')')
	case *syntax.Await:
		b.WriteString("await ")
		expr(b, x.X)
	case *syntax.Yield:
		b.WriteString("yield")
		if x.From {
			b.WriteString(" from")
		}
		if x.X != nil {
			b.WriteByte(' ')
			expr(b, x.X)
		}
	case nil:
		panic(converr.NewInternalError("generate", "missing expression"))
	default:
		panic(converr.NewInternalError("generate", fmt.Sprintf("cannot render %s", e.Kind())))
	}
}

func comprehension(b *strings.Builder, c *syntax.Comprehension) {
	open, close := "", ""
	switch c.Comp {
	case syntax.CompList:
		open, close = "[", "]"
	case syntax.CompSet, syntax.CompDict:
		open, close = "{", "}"
	case syntax.CompGen:
		if !c.Bare {
			open, close = "(", ")"
		}
	}
	b.WriteString(open)
	if c.Comp == syntax.CompDict {
		expr(b, c.Key)
		b.WriteString(": ")
	}
	expr(b, c.Elt)
	for _, cl := range c.Clauses {
		if cl.Async {
			b.WriteString(" async")
		}
		b.WriteString(" for ")
		expr(b, cl.Target)
		b.WriteString(" in ")
		expr(b, cl.Iter)
		for _, cond := range cl.Ifs {
			b.WriteString(" if ")
			expr(b, cond)
		}
	}
	b.WriteString(close)
}
