package parser

import (
	"math"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/quant-king299/stratconv/internal/syntax"
)

type comment struct {
	text  string
	line  int
	col   int
	start uint32
	// alone is set when only whitespace precedes the comment on its line.
	alone bool
}

func (b *builder) comment(n *sitter.Node) comment {
	start := n.StartByte()
	col := column(n)
	lead := b.src[int(start)-col : int(start)]
	return comment{
		text:  strings.TrimRight(b.text(n), " \t"),
		line:  line(n),
		col:   col,
		start: start,
		alone: strings.Trim(string(lead), " \t\f") == "",
	}
}

// placeComments turns the collected comments into statements and trailing
// comments. A comment-only line belongs to the innermost block whose
// indentation it reaches; a comment inside brackets is hoisted in front of
// its statement; a comment ending a code line trails that line.
func (b *builder) placeComments(mod *syntax.Module) {
	for _, n := range b.comments {
		c := b.comment(n)
		if c.alone {
			b.place(&mod.Body, c)
			continue
		}
		b.attach(&mod.Body, c)
	}
}

func insertComment(body *[]syntax.Stmt, at int, c comment) {
	st := &syntax.Comment{StmtMeta: syntax.StmtMeta{Pos: c.line}, Text: c.text}
	*body = append(*body, nil)
	copy((*body)[at+1:], (*body)[at:])
	(*body)[at] = st
}

func (b *builder) firstLine(s syntax.Stmt) int {
	if sp := b.spans[s]; sp != nil {
		return sp.first
	}
	return s.Line()
}

// clauseAt returns the index of the last clause starting at or before line.
func clauseAt(sp *span, line int) int {
	at := 0
	for i, cl := range sp.clauses {
		if cl.line <= line {
			at = i
		}
	}
	return at
}

// innerCol is the indentation of the last suite of a compound statement.
func (b *builder) innerCol(s syntax.Stmt) int {
	sp := b.spans[s]
	last := sp.clauses[len(sp.clauses)-1]
	for _, st := range *last.body {
		inner := b.spans[st]
		if inner == nil {
			continue
		}
		if last.nested {
			return b.innerCol(st)
		}
		return inner.col
	}
	return math.MaxInt
}

func (b *builder) place(body *[]syntax.Stmt, c comment) {
	stmts := *body
	i := 0
	for i < len(stmts) && b.firstLine(stmts[i]) <= c.line {
		i++
	}
	if i > 0 {
		prev := stmts[i-1]
		sp := b.spans[prev]
		switch {
		case sp == nil:
		case c.line <= sp.last:
			if len(sp.clauses) == 0 || c.line <= sp.clauses[0].colonLine {
				insertComment(body, i-1, c)
				return
			}
			b.place(sp.clauses[clauseAt(sp, c.line)].body, c)
			return
		case len(sp.clauses) > 0 && c.col >= b.innerCol(prev):
			b.place(sp.clauses[len(sp.clauses)-1].body, c)
			return
		}
	}
	insertComment(body, i, c)
}

func (b *builder) attach(body *[]syntax.Stmt, c comment) {
	k := -1
	for i, s := range *body {
		if sp := b.spans[s]; sp != nil && sp.first <= c.line && c.line <= sp.last {
			k = i
		}
	}
	if k < 0 {
		b.place(body, c)
		return
	}
	s := (*body)[k]
	sp := b.spans[s]
	if len(sp.clauses) == 0 {
		if c.line == sp.last && c.start >= sp.end && s.Meta().Trailing == "" {
			s.Meta().Trailing = c.text
			return
		}
		insertComment(body, k, c)
		return
	}
	if c.line < sp.clauses[0].line {
		insertComment(body, k, c)
		return
	}
	at := clauseAt(sp, c.line)
	cl := sp.clauses[at]
	switch {
	case cl.nested:
		b.attach(cl.body, c)
	case c.start < cl.colonEnd:
		if at == 0 {
			insertComment(body, k, c)
			return
		}
		insertComment(cl.body, 0, c)
	case c.line == cl.colonLine && !b.startsOn(*cl.body, c.line) && *cl.trailing == "":
		*cl.trailing = c.text
	default:
		b.attach(cl.body, c)
	}
}

func (b *builder) startsOn(body []syntax.Stmt, line int) bool {
	return len(body) > 0 && b.firstLine(body[0]) == line
}
