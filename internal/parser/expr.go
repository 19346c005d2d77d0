package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/quant-king299/stratconv/internal/syntax"
)

func pos(n *sitter.Node) syntax.ExprPos {
	return syntax.ExprPos{Pos: line(n)}
}

func (b *builder) exprs(nodes []*sitter.Node) []syntax.Expr {
	out := make([]syntax.Expr, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, b.expr(n))
	}
	return out
}

// typeSyntax lists annotation forms that have no expression equivalent; they
// are kept as raw text.
var typeSyntax = map[string]bool{
	"generic_type": true, "union_type": true, "constrained_type": true,
	"member_type": true, "splat_type": true,
}

func (b *builder) annotation(n *sitter.Node) syntax.Expr {
	if n == nil {
		return nil
	}
	if n.Type() != "type" {
		return b.expr(n)
	}
	if inner := named(n); len(inner) == 1 && !typeSyntax[inner[0].Type()] {
		return b.expr(inner[0])
	}
	return &syntax.Name{ExprPos: pos(n), Id: b.text(n)}
}

func (b *builder) expr(n *sitter.Node) syntax.Expr {
	if n == nil {
		return nil
	}
	p := pos(n)
	switch n.Type() {
	case "identifier", "keyword_identifier":
		return &syntax.Name{ExprPos: p, Id: b.text(n)}
	case "integer", "float":
		return &syntax.Literal{ExprPos: p, Lit: syntax.LitNumber, Raw: b.text(n)}
	case "string":
		return &syntax.Literal{ExprPos: p, Lit: syntax.LitString, Raw: b.text(n)}
	case "concatenated_string":
		var parts []string
		for _, c := range named(n) {
			parts = append(parts, b.text(c))
		}
		return &syntax.Literal{ExprPos: p, Lit: syntax.LitString, Raw: strings.Join(parts, " ")}
	case "true":
		return &syntax.Literal{ExprPos: p, Lit: syntax.LitTrue, Raw: "True"}
	case "false":
		return &syntax.Literal{ExprPos: p, Lit: syntax.LitFalse, Raw: "False"}
	case "none":
		return &syntax.Literal{ExprPos: p, Lit: syntax.LitNone, Raw: "None"}
	case "ellipsis":
		return &syntax.Literal{ExprPos: p, Lit: syntax.LitEllipsis, Raw: "..."}
	case "attribute":
		parts := named(n)
		return &syntax.Attribute{ExprPos: p, X: b.expr(parts[0]), Attr: b.text(parts[len(parts)-1])}
	case "subscript":
		return b.subscript(n)
	case "slice":
		return b.slice(n)
	case "call":
		return b.call(n)
	case "list", "list_pattern":
		return &syntax.List{ExprPos: p, Elts: b.exprs(named(n))}
	case "set":
		return &syntax.Set{ExprPos: p, Elts: b.exprs(named(n))}
	case "tuple", "tuple_pattern":
		return &syntax.Paren{ExprPos: p, X: &syntax.Tuple{ExprPos: p, Elts: b.exprs(named(n))}}
	case "expression_list", "pattern_list":
		return &syntax.Tuple{ExprPos: p, Elts: b.exprs(named(n))}
	case "dictionary":
		return b.dict(n)
	case "parenthesized_expression", "parenthesized_list_splat":
		return &syntax.Paren{ExprPos: p, X: b.expr(named(n)[0])}
	case "list_comprehension":
		return b.comprehension(n, syntax.CompList)
	case "set_comprehension":
		return b.comprehension(n, syntax.CompSet)
	case "dictionary_comprehension":
		return b.comprehension(n, syntax.CompDict)
	case "generator_expression":
		return b.comprehension(n, syntax.CompGen)
	case "binary_operator", "boolean_operator":
		parts := named(n)
		return &syntax.BinOp{ExprPos: p, X: b.expr(parts[0]), Op: operator(n), Y: b.expr(parts[1])}
	case "unary_operator":
		parts := named(n)
		return &syntax.UnaryOp{ExprPos: p, Op: operator(n), X: b.expr(parts[len(parts)-1])}
	case "not_operator":
		parts := named(n)
		return &syntax.UnaryOp{ExprPos: p, Op: "not", X: b.expr(parts[len(parts)-1])}
	case "comparison_operator":
		return b.compare(n)
	case "conditional_expression":
		parts := named(n)
		return &syntax.IfExp{ExprPos: p, Body: b.expr(parts[0]), Test: b.expr(parts[1]), Else: b.expr(parts[2])}
	case "lambda":
		lam := &syntax.Lambda{ExprPos: p, Params: b.params(n.ChildByFieldName("parameters"))}
		if body := n.ChildByFieldName("body"); body != nil {
			lam.Body = b.expr(body)
		} else if parts := named(n); len(parts) > 0 {
			lam.Body = b.expr(parts[len(parts)-1])
		}
		return lam
	case "await":
		return &syntax.Await{ExprPos: p, X: b.expr(named(n)[0])}
	case "yield":
		y := &syntax.Yield{ExprPos: p, From: hasToken(n, "from")}
		if parts := named(n); len(parts) > 0 {
			y.X = b.expr(parts[0])
		}
		return y
	case "list_splat", "list_splat_pattern":
		return &syntax.Starred{ExprPos: p, X: b.expr(named(n)[0])}
	case "dictionary_splat", "dictionary_splat_pattern":
		return &syntax.Starred{ExprPos: p, Double: true, X: b.expr(named(n)[0])}
	case "as_pattern_target":
		return b.asTarget(n)
	case "named_expression":
		b.errorAt(n, "assignment expressions are not supported")
	default:
		b.errorAt(n, "unsupported expression %s", n.Type())
	}
	return &syntax.Name{ExprPos: p, Id: b.text(n)}
}

// operator returns the operator token of a unary or binary node.
func operator(n *sitter.Node) string {
	if op := n.ChildByFieldName("operator"); op != nil {
		return op.Type()
	}
	for _, c := range kids(n) {
		if !c.IsNamed() {
			return c.Type()
		}
	}
	return ""
}

func (b *builder) compare(n *sitter.Node) syntax.Expr {
	cmp := &syntax.Compare{ExprPos: pos(n)}
	var op string
	for _, c := range kids(n) {
		switch {
		case !c.IsNamed():
			op = c.Type()
		case cmp.X == nil:
			cmp.X = b.expr(c)
		default:
			cmp.Ops = append(cmp.Ops, op)
			cmp.Comparators = append(cmp.Comparators, b.expr(c))
		}
	}
	return cmp
}

func (b *builder) subscript(n *sitter.Node) syntax.Expr {
	parts := named(n)
	sub := &syntax.Subscript{ExprPos: pos(n), X: b.expr(parts[0])}
	index := parts[1:]
	if len(index) == 1 && !hasToken(n, ",") {
		sub.Index = b.expr(index[0])
		return sub
	}
	sub.Index = &syntax.Tuple{ExprPos: pos(index[0]), Elts: b.exprs(index)}
	return sub
}

func (b *builder) slice(n *sitter.Node) syntax.Expr {
	sl := &syntax.Slice{ExprPos: pos(n)}
	part := 0
	for _, c := range kids(n) {
		if c.Type() == ":" {
			part++
			sl.HasStep = part == 2
			continue
		}
		switch part {
		case 0:
			sl.Lo = b.expr(c)
		case 1:
			sl.Hi = b.expr(c)
		default:
			sl.Step = b.expr(c)
		}
	}
	return sl
}

func (b *builder) call(n *sitter.Node) syntax.Expr {
	c := &syntax.Call{ExprPos: pos(n), Func: b.expr(n.ChildByFieldName("function"))}
	args := n.ChildByFieldName("arguments")
	if args == nil {
		return c
	}
	if args.Type() == "generator_expression" {
		gen := b.comprehension(args, syntax.CompGen).(*syntax.Comprehension)
		gen.Bare = true
		c.Args = []syntax.Expr{gen}
		return c
	}
	c.Args = b.args(args)
	return c
}

// args converts an argument list; keyword arguments become *syntax.Keyword.
func (b *builder) args(n *sitter.Node) []syntax.Expr {
	var out []syntax.Expr
	for _, c := range named(n) {
		if c.Type() == "keyword_argument" {
			parts := named(c)
			out = append(out, &syntax.Keyword{ExprPos: pos(c), Name: b.text(parts[0]), Value: b.expr(parts[len(parts)-1])})
			continue
		}
		out = append(out, b.expr(c))
	}
	return out
}

func (b *builder) dict(n *sitter.Node) syntax.Expr {
	d := &syntax.Dict{ExprPos: pos(n)}
	for _, c := range named(n) {
		parts := named(c)
		switch c.Type() {
		case "pair":
			d.Keys = append(d.Keys, b.expr(parts[0]))
			d.Values = append(d.Values, b.expr(parts[len(parts)-1]))
		case "dictionary_splat":
			d.Keys = append(d.Keys, nil)
			d.Values = append(d.Values, b.expr(parts[0]))
		default:
			b.errorAt(c, "unsupported dictionary entry %s", c.Type())
		}
	}
	return d
}

func (b *builder) comprehension(n *sitter.Node, kind syntax.CompKind) syntax.Expr {
	comp := &syntax.Comprehension{ExprPos: pos(n), Comp: kind}
	parts := named(n)
	if kind == syntax.CompDict && parts[0].Type() == "pair" {
		kv := named(parts[0])
		comp.Key = b.expr(kv[0])
		comp.Elt = b.expr(kv[len(kv)-1])
	} else {
		comp.Elt = b.expr(parts[0])
	}
	for _, c := range parts[1:] {
		switch c.Type() {
		case "for_in_clause":
			sides := named(c)
			cl := &syntax.CompClause{Async: hasToken(c, "async"), Target: b.expr(sides[0])}
			if iters := sides[1:]; len(iters) == 1 {
				cl.Iter = b.expr(iters[0])
			} else {
				cl.Iter = &syntax.Tuple{ExprPos: pos(iters[0]), Elts: b.exprs(iters)}
			}
			comp.Clauses = append(comp.Clauses, cl)
		case "if_clause":
			if len(comp.Clauses) == 0 {
				b.errorAt(c, "comprehension condition before any for clause")
				continue
			}
			last := comp.Clauses[len(comp.Clauses)-1]
			last.Ifs = append(last.Ifs, b.expr(named(c)[0]))
		}
	}
	return comp
}
