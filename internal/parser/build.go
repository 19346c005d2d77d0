package parser

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/quant-king299/stratconv/converr"
	"github.com/quant-king299/stratconv/internal/syntax"
)

// clause is one header-plus-suite part of a compound statement.
type clause struct {
	line      int
	colonLine int
	colonEnd  uint32
	body      *[]syntax.Stmt
	trailing  *string
	// nested marks an elif slot: the body holds the elif statement itself.
	nested bool
}

// span records where a statement sits in the source.
type span struct {
	first, last int
	col         int
	end         uint32
	clauses     []clause
}

// builder lowers a tree-sitter concrete tree to syntax nodes.
type builder struct {
	src      []byte
	errs     []error
	spans    map[syntax.Stmt]*span
	comments []*sitter.Node
}

func newBuilder(src []byte) *builder {
	return &builder{src: src, spans: map[syntax.Stmt]*span{}}
}

func (b *builder) text(n *sitter.Node) string {
	return n.Content(b.src)
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func column(n *sitter.Node) int {
	return int(n.StartPoint().Column)
}

func isExtra(n *sitter.Node) bool {
	switch n.Type() {
	case "comment", "line_continuation":
		return true
	}
	return false
}

// kids returns the children of n without comments and line continuations.
func kids(n *sitter.Node) []*sitter.Node {
	out := make([]*sitter.Node, 0, n.ChildCount())
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); !isExtra(c) {
			out = append(out, c)
		}
	}
	return out
}

// named returns the named children of n without comments and line continuations.
func named(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, c := range kids(n) {
		if c.IsNamed() {
			out = append(out, c)
		}
	}
	return out
}

func childOfType(n *sitter.Node, typ string) *sitter.Node {
	for _, c := range kids(n) {
		if c.Type() == typ {
			return c
		}
	}
	return nil
}

func hasToken(n *sitter.Node, typ string) bool {
	for _, c := range kids(n) {
		if !c.IsNamed() && c.Type() == typ {
			return true
		}
	}
	return false
}

func same(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

func (b *builder) errorAt(n *sitter.Node, format string, args ...any) {
	pt := n.StartPoint()
	b.errs = append(b.errs, converr.NewParseError(int(pt.Row)+1, int(pt.Column)+1, fmt.Sprintf(format, args...)))
}

func (b *builder) collectComments(n *sitter.Node) {
	if n.Type() == "comment" {
		b.comments = append(b.comments, n)
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		b.collectComments(n.Child(i))
	}
}

// ---- statements ----

func (b *builder) module(root *sitter.Node) *syntax.Module {
	b.collectComments(root)
	return &syntax.Module{Body: b.stmts(named(root), 0)}
}

// stmts converts a statement sequence whose lines must start at col.
func (b *builder) stmts(nodes []*sitter.Node, col int) []syntax.Stmt {
	var out []syntax.Stmt
	prevEnd := -1
	for _, n := range nodes {
		pt := n.StartPoint()
		if int(pt.Row) > prevEnd {
			switch {
			case int(pt.Column) > col:
				b.errorAt(n, "unexpected indent")
			case int(pt.Column) < col:
				b.errorAt(n, "unindent does not match any outer indentation level")
			}
		}
		prevEnd = int(n.EndPoint().Row)
		out = append(out, b.stmt(n))
	}
	return out
}

// block converts the suite of a clause node.
func (b *builder) block(clauseNode *sitter.Node) []syntax.Stmt {
	suite := childOfType(clauseNode, "block")
	var nodes []*sitter.Node
	if suite != nil {
		nodes = named(suite)
	}
	if len(nodes) == 0 {
		at := clauseNode
		if colon := childOfType(clauseNode, ":"); colon != nil {
			at = colon
		}
		b.errorAt(at, "expected an indented block")
		return nil
	}
	return b.stmts(nodes, column(nodes[0]))
}

func (b *builder) clause(n *sitter.Node, body *[]syntax.Stmt, trailing *string) clause {
	c := clause{line: line(n), colonLine: line(n), body: body, trailing: trailing}
	if colon := childOfType(n, ":"); colon != nil {
		c.colonLine = line(colon)
		c.colonEnd = colon.EndByte()
	}
	return c
}

// compound records the span of a compound statement once its suites are built.
// outer is the decorated definition wrapping n, if any.
func (b *builder) compound(s syntax.Stmt, n, outer *sitter.Node, clauses ...clause) {
	if outer == nil {
		outer = n
	}
	sp := &span{first: line(outer), last: line(n), col: column(outer), clauses: clauses}
	if body := *clauses[len(clauses)-1].body; len(body) > 0 {
		if inner := b.spans[body[len(body)-1]]; inner != nil {
			sp.last = inner.last
		}
	}
	b.spans[s] = sp
}

func meta(n *sitter.Node) syntax.StmtMeta {
	return syntax.StmtMeta{Pos: line(n)}
}

func (b *builder) stmt(n *sitter.Node) syntax.Stmt {
	s := b.statement(n)
	if _, ok := b.spans[s]; !ok {
		b.spans[s] = &span{first: line(n), last: int(n.EndPoint().Row) + 1, col: column(n), end: n.EndByte()}
	}
	return s
}

func (b *builder) statement(n *sitter.Node) syntax.Stmt {
	switch n.Type() {
	case "expression_statement":
		return b.exprStmt(n)
	case "return_statement":
		st := &syntax.Return{StmtMeta: meta(n)}
		if v := named(n); len(v) > 0 {
			st.Value = b.expr(v[0])
		}
		return st
	case "pass_statement":
		return &syntax.Pass{StmtMeta: meta(n)}
	case "break_statement":
		return &syntax.Break{StmtMeta: meta(n)}
	case "continue_statement":
		return &syntax.Continue{StmtMeta: meta(n)}
	case "delete_statement":
		st := &syntax.Del{StmtMeta: meta(n)}
		for _, v := range named(n) {
			if v.Type() == "expression_list" {
				st.Targets = append(st.Targets, b.exprs(named(v))...)
				continue
			}
			st.Targets = append(st.Targets, b.expr(v))
		}
		return st
	case "raise_statement":
		st := &syntax.Raise{StmtMeta: meta(n)}
		cause := n.ChildByFieldName("cause")
		for _, v := range named(n) {
			if same(v, cause) {
				st.Cause = b.expr(v)
				continue
			}
			st.Exc = b.expr(v)
		}
		return st
	case "global_statement", "nonlocal_statement":
		var names []string
		for _, v := range named(n) {
			names = append(names, b.text(v))
		}
		if n.Type() == "global_statement" {
			return &syntax.Global{StmtMeta: meta(n), Names: names}
		}
		return &syntax.Nonlocal{StmtMeta: meta(n), Names: names}
	case "import_statement":
		return &syntax.Import{StmtMeta: meta(n), Names: b.aliases(named(n))}
	case "import_from_statement", "future_import_statement":
		return b.fromImport(n)
	case "assert_statement":
		v := named(n)
		st := &syntax.Assert{StmtMeta: meta(n), Test: b.expr(v[0])}
		if len(v) > 1 {
			st.Msg = b.expr(v[1])
		}
		return st
	case "function_definition":
		return b.funcDef(n, nil, nil)
	case "class_definition":
		return b.classDef(n, nil, nil)
	case "decorated_definition":
		return b.decorated(n)
	case "if_statement":
		return b.ifStmt(n)
	case "for_statement":
		return b.forStmt(n)
	case "while_statement":
		return b.whileStmt(n)
	case "try_statement":
		return b.tryStmt(n)
	case "with_statement":
		return b.withStmt(n)
	case "print_statement":
		b.errorAt(n, "Python 2 print statement is not supported")
	case "exec_statement":
		b.errorAt(n, "Python 2 exec statement is not supported")
	default:
		b.errorAt(n, "unsupported statement %s", n.Type())
	}
	return &syntax.Pass{StmtMeta: meta(n)}
}

func (b *builder) exprStmt(n *sitter.Node) syntax.Stmt {
	parts := named(n)
	if len(parts) == 1 && !hasToken(n, ",") {
		switch x := parts[0]; x.Type() {
		case "assignment":
			return b.assign(n, x)
		case "augmented_assignment":
			st := &syntax.AugAssign{StmtMeta: meta(n)}
			for _, c := range kids(x) {
				switch {
				case !c.IsNamed():
					st.Op = c.Type()
				case st.Target == nil:
					st.Target = b.expr(c)
				default:
					st.Value = b.rhs(c)
				}
			}
			return st
		}
		return &syntax.ExprStmt{StmtMeta: meta(n), X: b.expr(parts[0])}
	}
	return &syntax.ExprStmt{StmtMeta: meta(n), X: &syntax.Tuple{ExprPos: pos(n), Elts: b.exprs(parts)}}
}

func (b *builder) assign(stmt, n *sitter.Node) syntax.Stmt {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if typ := n.ChildByFieldName("type"); typ != nil {
		st := &syntax.AnnAssign{StmtMeta: meta(stmt), Target: b.expr(left), Annotation: b.annotation(typ)}
		if right != nil {
			st.Value = b.rhs(right)
		}
		return st
	}
	st := &syntax.Assign{StmtMeta: meta(stmt), Targets: []syntax.Expr{b.expr(left)}}
	for right != nil && right.Type() == "assignment" && right.ChildByFieldName("type") == nil {
		st.Targets = append(st.Targets, b.expr(right.ChildByFieldName("left")))
		right = right.ChildByFieldName("right")
	}
	if right == nil {
		b.errorAt(n, "expected a value after '='")
		return st
	}
	st.Value = b.rhs(right)
	return st
}

func (b *builder) rhs(n *sitter.Node) syntax.Expr {
	if n.Type() == "augmented_assignment" || n.Type() == "assignment" {
		b.errorAt(n, "unsupported assignment form")
		return &syntax.Name{ExprPos: pos(n), Id: b.text(n)}
	}
	return b.expr(n)
}

func (b *builder) dotted(n *sitter.Node) string {
	if n.Type() != "dotted_name" {
		return strings.ReplaceAll(b.text(n), " ", "")
	}
	var parts []string
	for _, c := range named(n) {
		parts = append(parts, b.text(c))
	}
	return strings.Join(parts, ".")
}

func (b *builder) aliases(nodes []*sitter.Node) []*syntax.Alias {
	var out []*syntax.Alias
	for _, c := range nodes {
		switch c.Type() {
		case "aliased_import":
			out = append(out, &syntax.Alias{
				Name:   b.dotted(c.ChildByFieldName("name")),
				AsName: b.text(c.ChildByFieldName("alias")),
			})
		case "wildcard_import":
			out = append(out, &syntax.Alias{Name: "*"})
		default:
			out = append(out, &syntax.Alias{Name: b.dotted(c)})
		}
	}
	return out
}

func (b *builder) fromImport(n *sitter.Node) syntax.Stmt {
	st := &syntax.FromImport{StmtMeta: meta(n), Module: "__future__"}
	module := n.ChildByFieldName("module_name")
	var names []*sitter.Node
	for _, c := range named(n) {
		if same(c, module) {
			continue
		}
		names = append(names, c)
	}
	if module != nil {
		if module.Type() == "relative_import" {
			var sb strings.Builder
			for _, c := range named(module) {
				if c.Type() == "import_prefix" {
					sb.WriteString(strings.ReplaceAll(b.text(c), " ", ""))
					continue
				}
				sb.WriteString(b.dotted(c))
			}
			st.Module = sb.String()
		} else {
			st.Module = b.dotted(module)
		}
	}
	st.Names = b.aliases(names)
	return st
}

func (b *builder) decorated(n *sitter.Node) syntax.Stmt {
	var decorators []syntax.Expr
	for _, c := range named(n) {
		if c.Type() == "decorator" {
			if inner := named(c); len(inner) > 0 {
				decorators = append(decorators, b.expr(inner[0]))
			}
		}
	}
	def := n.ChildByFieldName("definition")
	if def == nil {
		b.errorAt(n, "expected function or class definition after decorator")
		return &syntax.Pass{StmtMeta: meta(n)}
	}
	if def.Type() == "class_definition" {
		return b.classDef(def, decorators, n)
	}
	return b.funcDef(def, decorators, n)
}

func (b *builder) funcDef(n *sitter.Node, decorators []syntax.Expr, outer *sitter.Node) syntax.Stmt {
	fn := &syntax.FuncDef{
		StmtMeta:   meta(n),
		Decorators: decorators,
		Async:      hasToken(n, "async"),
		Name:       b.text(n.ChildByFieldName("name")),
		Params:     b.params(n.ChildByFieldName("parameters")),
	}
	if rt := n.ChildByFieldName("return_type"); rt != nil {
		fn.Returns = b.annotation(rt)
	}
	fn.Body = b.block(n)
	b.compound(fn, n, outer, b.clause(n, &fn.Body, &fn.Trailing))
	return fn
}

func (b *builder) classDef(n *sitter.Node, decorators []syntax.Expr, outer *sitter.Node) syntax.Stmt {
	cls := &syntax.ClassDef{
		StmtMeta:   meta(n),
		Decorators: decorators,
		Name:       b.text(n.ChildByFieldName("name")),
	}
	if bases := n.ChildByFieldName("superclasses"); bases != nil {
		cls.Bases = b.args(bases)
	}
	cls.Body = b.block(n)
	b.compound(cls, n, outer, b.clause(n, &cls.Body, &cls.Trailing))
	return cls
}

func (b *builder) params(n *sitter.Node) []*syntax.Param {
	if n == nil {
		return nil
	}
	var out []*syntax.Param
	for _, c := range named(n) {
		p := &syntax.Param{}
		switch c.Type() {
		case "identifier":
			p.Name = b.text(c)
		case "typed_parameter":
			if inner := named(c); len(inner) > 0 {
				b.paramName(p, inner[0])
			}
			p.Annotation = b.annotation(c.ChildByFieldName("type"))
		case "default_parameter":
			p.Name = b.text(c.ChildByFieldName("name"))
			p.Default = b.expr(c.ChildByFieldName("value"))
		case "typed_default_parameter":
			p.Name = b.text(c.ChildByFieldName("name"))
			p.Annotation = b.annotation(c.ChildByFieldName("type"))
			p.Default = b.expr(c.ChildByFieldName("value"))
		case "list_splat_pattern", "dictionary_splat_pattern":
			b.paramName(p, c)
		case "keyword_separator":
			p.Star = "*"
		case "positional_separator":
			p.Star = "/"
		default:
			b.errorAt(c, "unsupported parameter %s", c.Type())
			continue
		}
		out = append(out, p)
	}
	return out
}

func (b *builder) paramName(p *syntax.Param, n *sitter.Node) {
	switch n.Type() {
	case "list_splat_pattern":
		p.Star = "*"
	case "dictionary_splat_pattern":
		p.Star = "**"
	default:
		p.Name = b.text(n)
		return
	}
	if inner := named(n); len(inner) > 0 {
		p.Name = b.text(inner[0])
	}
}

// ifStmt folds an elif chain into nested If statements held in Else.
func (b *builder) ifStmt(n *sitter.Node) syntax.Stmt {
	chain := []*syntax.If{{StmtMeta: meta(n), Test: b.expr(n.ChildByFieldName("condition"))}}
	headers := []*sitter.Node{n}
	chain[0].Body = b.block(n)
	var elseNode *sitter.Node
	for _, c := range kids(n) {
		switch c.Type() {
		case "elif_clause":
			elif := &syntax.If{StmtMeta: meta(c), IsElif: true, Test: b.expr(c.ChildByFieldName("condition"))}
			elif.Body = b.block(c)
			chain[len(chain)-1].Else = []syntax.Stmt{elif}
			chain = append(chain, elif)
			headers = append(headers, c)
		case "else_clause":
			elseNode = c
			last := chain[len(chain)-1]
			last.Else = b.block(c)
		}
	}
	for i := len(chain) - 1; i >= 0; i-- {
		st := chain[i]
		clauses := []clause{b.clause(headers[i], &st.Body, &st.Trailing)}
		switch {
		case i+1 < len(chain):
			clauses = append(clauses, clause{line: line(headers[i+1]), body: &st.Else, nested: true})
		case elseNode != nil:
			clauses = append(clauses, b.clause(elseNode, &st.Else, &st.ElseTrailing))
		}
		b.compound(st, headers[i], nil, clauses...)
	}
	return chain[0]
}

func (b *builder) forStmt(n *sitter.Node) syntax.Stmt {
	st := &syntax.For{
		StmtMeta: meta(n),
		Async:    hasToken(n, "async"),
		Target:   b.expr(n.ChildByFieldName("left")),
		Iter:     b.expr(n.ChildByFieldName("right")),
	}
	st.Body = b.block(n)
	clauses := []clause{b.clause(n, &st.Body, &st.Trailing)}
	if el := childOfType(n, "else_clause"); el != nil {
		st.Else = b.block(el)
		clauses = append(clauses, b.clause(el, &st.Else, &st.ElseTrailing))
	}
	b.compound(st, n, nil, clauses...)
	return st
}

func (b *builder) whileStmt(n *sitter.Node) syntax.Stmt {
	st := &syntax.While{StmtMeta: meta(n), Test: b.expr(n.ChildByFieldName("condition"))}
	st.Body = b.block(n)
	clauses := []clause{b.clause(n, &st.Body, &st.Trailing)}
	if el := childOfType(n, "else_clause"); el != nil {
		st.Else = b.block(el)
		clauses = append(clauses, b.clause(el, &st.Else, &st.ElseTrailing))
	}
	b.compound(st, n, nil, clauses...)
	return st
}

func (b *builder) tryStmt(n *sitter.Node) syntax.Stmt {
	st := &syntax.Try{StmtMeta: meta(n)}
	st.Body = b.block(n)
	clauses := []clause{b.clause(n, &st.Body, &st.Trailing)}
	for _, c := range kids(n) {
		switch c.Type() {
		case "except_clause":
			h := b.handler(c)
			st.Handlers = append(st.Handlers, h)
			clauses = append(clauses, b.clause(c, &h.Body, &h.Trailing))
		case "except_group_clause":
			b.errorAt(c, "except* is not supported")
		case "else_clause":
			st.Else = b.block(c)
			clauses = append(clauses, b.clause(c, &st.Else, &st.ElseTrailing))
		case "finally_clause":
			st.Finally = b.block(c)
			clauses = append(clauses, b.clause(c, &st.Finally, &st.FinallyTrailing))
		}
	}
	b.compound(st, n, nil, clauses...)
	return st
}

func (b *builder) handler(n *sitter.Node) *syntax.ExceptHandler {
	h := &syntax.ExceptHandler{Pos: line(n)}
	var parts []*sitter.Node
	for _, c := range named(n) {
		if c.Type() != "block" {
			parts = append(parts, c)
		}
	}
	if len(parts) > 0 && parts[0].Type() == "as_pattern" {
		parts = named(parts[0])
	}
	if len(parts) > 0 {
		h.Type = b.expr(parts[0])
	}
	if len(parts) > 1 {
		h.Name = b.text(parts[len(parts)-1])
	}
	h.Body = b.block(n)
	return h
}

func (b *builder) withStmt(n *sitter.Node) syntax.Stmt {
	st := &syntax.With{StmtMeta: meta(n), Async: hasToken(n, "async")}
	if wc := childOfType(n, "with_clause"); wc != nil {
		for _, item := range named(wc) {
			v := named(item)
			if len(v) == 0 {
				continue
			}
			wi := &syntax.WithItem{}
			if v[0].Type() == "as_pattern" {
				parts := named(v[0])
				wi.Context = b.expr(parts[0])
				wi.As = b.asTarget(parts[len(parts)-1])
			} else {
				wi.Context = b.expr(v[0])
			}
			st.Items = append(st.Items, wi)
		}
	}
	st.Body = b.block(n)
	b.compound(st, n, nil, b.clause(n, &st.Body, &st.Trailing))
	return st
}

// asTarget unwraps the target of an `as` clause.
func (b *builder) asTarget(n *sitter.Node) syntax.Expr {
	if n.Type() != "as_pattern_target" {
		return b.expr(n)
	}
	if inner := named(n); len(inner) == 1 && same(inner[0], n) {
		return b.expr(inner[0])
	}
	return &syntax.Name{ExprPos: pos(n), Id: b.text(n)}
}
