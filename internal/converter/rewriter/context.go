package rewriter

import (
	"github.com/quant-king299/stratconv/internal/converter/diag"
	"github.com/quant-king299/stratconv/internal/converter/registry"
	"github.com/quant-king299/stratconv/internal/syntax"
)

// threadContext gives every top-level function that uses the context object
// a context parameter, and passes context at every call site of those
// functions. Callers of threaded functions need context too, so the set is
// grown to a fixpoint.
func threadContext(mod *syntax.Module, v *registry.Variant, diags *diag.Collector) {
	ctx := v.ContextName

	var funcs []*syntax.FuncDef
	for _, s := range mod.Body {
		if fd, ok := s.(*syntax.FuncDef); ok {
			funcs = append(funcs, fd)
		}
	}

	threaded := map[string]bool{}
	for changed := true; changed; {
		changed = false
		for _, fd := range funcs {
			if threaded[fd.Name] || !needsParam(fd, v) {
				continue
			}
			if referencesName(fd.Body, ctx) || callsAny(fd.Body, threaded) {
				threaded[fd.Name] = true
				changed = true
			}
		}
	}
	if len(threaded) == 0 {
		return
	}

	reported := map[string]bool{}
	for _, fd := range funcs {
		if !threaded[fd.Name] || hasParam(fd, ctx) {
			continue
		}
		fd.Params = append([]*syntax.Param{{Name: ctx}}, fd.Params...)
		if !reported[fd.Name] {
			reported[fd.Name] = true
			diags.Info(fd.Line(), diag.ContextThreaded, "%s now takes %s as its first parameter", fd.Name, ctx)
		}
	}

	pass := registry.InsertPositional{Index: 0, Expr: ctx}
	syntax.InspectBody(mod.Body, func(n syntax.Node) bool {
		if call, ok := n.(*syntax.Call); ok {
			if name, ok := call.Func.(*syntax.Name); ok && threaded[name.Id] {
				pass.Apply(call)
			}
		}
		return true
	})
}

// needsParam reports whether fd could be threaded at all: it has no context
// parameter and is not bound to a template slot that supplies one.
func needsParam(fd *syntax.FuncDef, v *registry.Variant) bool {
	if hasParam(fd, v.ContextName) {
		return false
	}
	if slot := v.Template.SlotFor(fd.Name); slot != nil {
		for _, p := range slot.Params {
			if p == v.ContextName {
				return false
			}
		}
	}
	return true
}

func hasParam(fd *syntax.FuncDef, name string) bool {
	for _, p := range fd.Params {
		if p.Name == name {
			return true
		}
	}
	return false
}

func referencesName(body []syntax.Stmt, name string) bool {
	found := false
	syntax.InspectBody(body, func(n syntax.Node) bool {
		if found {
			return false
		}
		switch x := n.(type) {
		case *syntax.Name:
			found = x.Id == name
		case *syntax.Literal:
			found = referencesIn(x, name)
		}
		return !found
	})
	return found
}

func callsAny(body []syntax.Stmt, funcs map[string]bool) bool {
	if len(funcs) == 0 {
		return false
	}
	found := false
	syntax.InspectBody(body, func(n syntax.Node) bool {
		if found {
			return false
		}
		if call, ok := n.(*syntax.Call); ok {
			if name, ok := call.Func.(*syntax.Name); ok && funcs[name.Id] {
				found = true
			}
		}
		return !found
	})
	return found
}
