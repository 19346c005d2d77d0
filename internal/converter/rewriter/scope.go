package rewriter

import (
	"slices"
	"strings"

	"github.com/quant-king299/stratconv/internal/syntax"
)

type scopeKind int

const (
	moduleScope scopeKind = iota
	funcScope
	classScope
)

// scope describes where a statement sits with respect to the global object.
type scope struct {
	kind scopeKind
	// threadable is set where a context parameter can reach: top-level
	// functions and everything nested in them.
	threadable bool
	// shadowed is set where the global object's name is bound locally, in
	// this scope or an enclosing function.
	shadowed bool
	// outer is the shadowing seen by functions defined in a class body; class
	// scopes are not visible to their methods.
	outer bool
	// fn names the innermost enclosing function.
	fn string
}

func moduleScopeOf(body []syntax.Stmt, name string) scope {
	return scope{kind: moduleScope, shadowed: binds(nil, body, name)}
}

// inner returns the scope the blocks of s are rewritten in.
func (sc scope) inner(s syntax.Stmt, name string) scope {
	enclosing := sc.shadowed
	if sc.kind == classScope {
		enclosing = sc.outer
	}
	switch x := s.(type) {
	case *syntax.FuncDef:
		return scope{
			kind:       funcScope,
			threadable: sc.kind == moduleScope || sc.threadable,
			shadowed:   enclosing || binds(x.Params, x.Body, name),
			fn:         x.Name,
		}
	case *syntax.ClassDef:
		return scope{
			kind:       classScope,
			threadable: sc.threadable,
			shadowed:   enclosing || binds(nil, x.Body, name),
			outer:      enclosing,
		}
	}
	return sc
}

// retargets reports whether a reference to the global object is rewritten to
// the context parameter.
func (sc scope) retargets() bool {
	return sc.threadable && !sc.shadowed
}

// binds reports whether a function with params and body binds name in its own
// scope. A `global name` declaration cancels any binding.
func binds(params []*syntax.Param, body []syntax.Stmt, name string) bool {
	for _, p := range params {
		if p.Name == name {
			return true
		}
	}
	bound, global := false, false
	var walk func([]syntax.Stmt)
	walk = func(body []syntax.Stmt) {
		for _, s := range body {
			switch x := s.(type) {
			case *syntax.Global:
				global = global || slices.Contains(x.Names, name)
			case *syntax.FuncDef:
				bound = bound || x.Name == name
				continue
			case *syntax.ClassDef:
				bound = bound || x.Name == name
				continue
			case *syntax.Assign:
				for _, t := range x.Targets {
					bound = bound || bindsTarget(t, name)
				}
			case *syntax.AugAssign:
				bound = bound || bindsTarget(x.Target, name)
			case *syntax.AnnAssign:
				bound = bound || bindsTarget(x.Target, name)
			case *syntax.For:
				bound = bound || bindsTarget(x.Target, name)
			case *syntax.Del:
				for _, t := range x.Targets {
					bound = bound || bindsTarget(t, name)
				}
			case *syntax.With:
				for _, item := range x.Items {
					bound = bound || bindsTarget(item.As, name)
				}
			case *syntax.Try:
				for _, h := range x.Handlers {
					bound = bound || h.Name == name
				}
			case *syntax.Import:
				for _, a := range x.Names {
					bound = bound || importedAs(a, true) == name
				}
			case *syntax.FromImport:
				for _, a := range x.Names {
					bound = bound || importedAs(a, false) == name
				}
			}
			for _, b := range syntax.Blocks(s) {
				walk(*b)
			}
		}
	}
	walk(body)
	return bound && !global
}

func bindsTarget(e syntax.Expr, name string) bool {
	switch x := e.(type) {
	case *syntax.Name:
		return x.Id == name
	case *syntax.Tuple:
		return anyBinds(x.Elts, name)
	case *syntax.List:
		return anyBinds(x.Elts, name)
	case *syntax.Paren:
		return bindsTarget(x.X, name)
	case *syntax.Starred:
		return bindsTarget(x.X, name)
	}
	return false
}

func anyBinds(list []syntax.Expr, name string) bool {
	for _, e := range list {
		if bindsTarget(e, name) {
			return true
		}
	}
	return false
}

// importedAs returns the local name an import alias binds. A plain dotted
// import binds its first component.
func importedAs(a *syntax.Alias, dotted bool) string {
	if a.AsName != "" {
		return a.AsName
	}
	if dotted {
		first, _, _ := strings.Cut(a.Name, ".")
		return first
	}
	return a.Name
}
