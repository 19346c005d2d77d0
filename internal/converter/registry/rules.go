package registry

import (
	"fmt"
	"strings"

	"github.com/quant-king299/stratconv/internal/syntax"
)

// ArgFix is one declared argument-shape change applied to a rewritten call.
// Apply mutates the call's argument list and returns the arity change it made.
type ArgFix interface {
	Apply(call *syntax.Call) int
	String() string
}

// positional returns the slice indexes of positional arguments: everything that
// is neither a keyword nor a ** unpacking.
func positional(args []syntax.Expr) []int {
	var idx []int
	for i, a := range args {
		switch x := a.(type) {
		case *syntax.Keyword:
			continue
		case *syntax.Starred:
			if x.Double {
				continue
			}
		}
		idx = append(idx, i)
	}
	return idx
}

func keywordIndex(args []syntax.Expr, name string) int {
	for i, a := range args {
		if kw, ok := a.(*syntax.Keyword); ok && kw.Name == name {
			return i
		}
	}
	return -1
}

func removeAt(args []syntax.Expr, i int) []syntax.Expr {
	return append(args[:i:i], args[i+1:]...)
}

func insertAt(args []syntax.Expr, i int, e syntax.Expr) []syntax.Expr {
	out := make([]syntax.Expr, 0, len(args)+1)
	out = append(out, args[:i]...)
	out = append(out, e)
	return append(out, args[i:]...)
}

// DropKeyword removes the keyword argument Name.
type DropKeyword struct {
	Name string
}

func (f DropKeyword) Apply(call *syntax.Call) int {
	i := keywordIndex(call.Args, f.Name)
	if i < 0 {
		return 0
	}
	call.Args = removeAt(call.Args, i)
	return -1
}

func (f DropKeyword) String() string { return "drop " + f.Name + "=" }

// DropPositional removes the positional argument at Index.
type DropPositional struct {
	Index int
}

func (f DropPositional) Apply(call *syntax.Call) int {
	pos := positional(call.Args)
	if f.Index >= len(pos) {
		return 0
	}
	call.Args = removeAt(call.Args, pos[f.Index])
	return -1
}

func (f DropPositional) String() string { return fmt.Sprintf("drop arg %d", f.Index) }

// InsertPositional inserts the dotted name Expr as positional argument Index.
// Nothing is inserted when that position already holds the same name.
type InsertPositional struct {
	Index int
	Expr  string
}

func (f InsertPositional) Apply(call *syntax.Call) int {
	pos := positional(call.Args)
	if f.Index > len(pos) {
		return 0
	}
	at := 0
	switch {
	case f.Index < len(pos):
		if syntax.DottedName(call.Args[pos[f.Index]]) == f.Expr {
			return 0
		}
		at = pos[f.Index]
	case len(pos) > 0:
		at = pos[len(pos)-1] + 1
	}
	call.Args = insertAt(call.Args, at, syntax.DottedExpr(f.Expr, call.Line()))
	return 1
}

func (f InsertPositional) String() string { return fmt.Sprintf("insert %s at %d", f.Expr, f.Index) }

// PositionalToKeyword moves the positional argument at Index to a trailing
// keyword argument, placed before any ** unpacking.
type PositionalToKeyword struct {
	Index   int
	Keyword string
}

func (f PositionalToKeyword) Apply(call *syntax.Call) int {
	pos := positional(call.Args)
	if f.Index >= len(pos) || keywordIndex(call.Args, f.Keyword) >= 0 {
		return 0
	}
	i := pos[f.Index]
	if st, ok := call.Args[i].(*syntax.Starred); ok && !st.Double {
		return 0
	}
	value := call.Args[i]
	args := removeAt(call.Args, i)
	at := len(args)
	for j, a := range args {
		if st, ok := a.(*syntax.Starred); ok && st.Double {
			at = j
			break
		}
	}
	call.Args = insertAt(args, at, &syntax.Keyword{ExprPos: syntax.ExprPos{Pos: value.Line()}, Name: f.Keyword, Value: value})
	return 0
}

func (f PositionalToKeyword) String() string {
	return fmt.Sprintf("arg %d -> %s=", f.Index, f.Keyword)
}

// RenameKeyword renames keyword argument From to To.
type RenameKeyword struct {
	From string
	To   string
}

func (f RenameKeyword) Apply(call *syntax.Call) int {
	if i := keywordIndex(call.Args, f.From); i >= 0 && keywordIndex(call.Args, f.To) < 0 {
		call.Args[i].(*syntax.Keyword).Name = f.To
	}
	return 0
}

func (f RenameKeyword) String() string { return "rename " + f.From + "= -> " + f.To + "=" }

// UnwrapPositional replaces positional argument Index of the form Callee(x) by x.
type UnwrapPositional struct {
	Index  int
	Callee string
}

func (f UnwrapPositional) Apply(call *syntax.Call) int {
	pos := positional(call.Args)
	if f.Index >= len(pos) {
		return 0
	}
	inner, ok := call.Args[pos[f.Index]].(*syntax.Call)
	if !ok || syntax.DottedName(inner.Func) != f.Callee || len(inner.Args) != 1 {
		return 0
	}
	if _, isKw := inner.Args[0].(*syntax.Keyword); isKw {
		return 0
	}
	call.Args[pos[f.Index]] = inner.Args[0]
	return 0
}

func (f UnwrapPositional) String() string { return fmt.Sprintf("unwrap %s() at %d", f.Callee, f.Index) }

// MapKeywordValue rewrites the string value of keyword Name through Values.
// The original quote character is kept.
type MapKeywordValue struct {
	Name   string
	Values map[string]string
}

func (f MapKeywordValue) Apply(call *syntax.Call) int {
	i := keywordIndex(call.Args, f.Name)
	if i < 0 {
		return 0
	}
	lit, ok := call.Args[i].(*syntax.Keyword).Value.(*syntax.Literal)
	if !ok || lit.Lit != syntax.LitString || len(lit.Raw) < 2 {
		return 0
	}
	q := lit.Raw[0]
	if (q != '\'' && q != '"') || lit.Raw[len(lit.Raw)-1] != q {
		return 0
	}
	if to, ok := f.Values[lit.Raw[1:len(lit.Raw)-1]]; ok {
		lit.Raw = string(q) + to + string(q)
	}
	return 0
}

func (f MapKeywordValue) String() string { return "map " + f.Name + "= values" }

// CallRule retargets one source call.
type CallRule struct {
	Target string
	Fixes  []ArgFix
}

func (r CallRule) String() string {
	if len(r.Fixes) == 0 {
		return r.Target
	}
	parts := make([]string, len(r.Fixes))
	for i, f := range r.Fixes {
		parts[i] = f.String()
	}
	return r.Target + " (" + strings.Join(parts, "; ") + ")"
}

// Apply applies every fix in declaration order and returns the total arity change.
func (r CallRule) Apply(call *syntax.Call) int {
	delta := 0
	for _, f := range r.Fixes {
		delta += f.Apply(call)
	}
	return delta
}

// CallMapping maps a source call name or dotted path to its rule.
type CallMapping map[string]CallRule

// Removal describes a call with no target equivalent.
type Removal struct {
	// Sentinel is the placeholder expression text used when the call's value is needed.
	Sentinel string
}

// RemovedSet maps removed call names to their removal policy.
type RemovedSet map[string]Removal

// FlaggedSet maps calls that must stay in place for manual review to the reason.
type FlaggedSet map[string]string
