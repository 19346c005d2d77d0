// Package rewriter retargets source-platform calls in a syntax tree to their
// target-platform equivalents.
package rewriter

import (
	"fmt"
	"slices"
	"strings"

	"github.com/quant-king299/stratconv/internal/converter/diag"
	"github.com/quant-king299/stratconv/internal/converter/generator"
	"github.com/quant-king299/stratconv/internal/converter/registry"
	"github.com/quant-king299/stratconv/internal/syntax"
)

// CallRewriter rewrites call sites, global-state references and security codes.
type CallRewriter struct{}

// NewCallRewriter creates a new CallRewriter.
func NewCallRewriter() *CallRewriter {
	return &CallRewriter{}
}

// Rewrite returns a rewritten copy of mod; mod itself is not modified.
func (r *CallRewriter) Rewrite(mod *syntax.Module, v *registry.Variant, diags *diag.Collector) *syntax.Module {
	out := syntax.CloneModule(mod)
	rw := &run{v: v, diags: diags, strs: newLiteralFixer(v), scope: moduleScopeOf(out.Body, v.GlobalObject)}
	out.Body = rw.body(out.Body)
	threadContext(out, v, diags)
	return out
}

// Rewrite rewrites mod with a default CallRewriter.
func Rewrite(mod *syntax.Module, v *registry.Variant, diags *diag.Collector) *syntax.Module {
	return NewCallRewriter().Rewrite(mod, v, diags)
}

type run struct {
	v     *registry.Variant
	diags *diag.Collector
	strs  *literalFixer
	cur   syntax.Stmt
	scope scope
}

func (rw *run) body(body []syntax.Stmt) []syntax.Stmt {
	out := body[:0]
	for _, s := range body {
		if s = rw.stmt(s); s != nil {
			out = append(out, s)
		}
	}
	return out
}

// stmt rewrites s in place. It returns a replacement statement, or nil when s
// is dropped.
func (rw *run) stmt(s syntax.Stmt) syntax.Stmt {
	switch x := s.(type) {
	case *syntax.Import:
		return rw.importStmt(x)
	case *syntax.FromImport:
		if rw.v.IsRemovedImport(x.Module) {
			rw.diags.Info(x.Line(), diag.ImportRemoved, "import from %s removed", x.Module)
			return nil
		}
	case *syntax.Global:
		return rw.global(x)
	case *syntax.ExprStmt:
		if name, ok := rw.removedRoot(x.X); ok {
			rw.diags.Info(x.Line(), diag.RemovedCall, "%s removed: no equivalent on the target platform", name)
			return &syntax.Tombstone{
				StmtMeta: syntax.StmtMeta{Pos: x.Pos},
				Original: generator.Simple(x),
				Reason:   name + " has no target equivalent",
			}
		}
	}

	rw.cur = s
	for _, p := range syntax.StmtExprs(s) {
		*p = rw.expr(*p)
	}
	outer := rw.scope
	rw.scope = outer.inner(s, rw.v.GlobalObject)
	for _, b := range syntax.Blocks(s) {
		*b = rw.body(*b)
	}
	rw.scope = outer
	return s
}

func (rw *run) importStmt(x *syntax.Import) syntax.Stmt {
	kept := x.Names[:0]
	for _, a := range x.Names {
		if rw.v.IsRemovedImport(a.Name) {
			rw.diags.Info(x.Line(), diag.ImportRemoved, "import of %s removed", a.Name)
			continue
		}
		kept = append(kept, a)
	}
	if len(kept) == 0 {
		return nil
	}
	x.Names = kept
	return x
}

// global drops the global object from `global` declarations; it is a
// parameter after retargeting.
func (rw *run) global(x *syntax.Global) syntax.Stmt {
	kept := x.Names[:0]
	for _, n := range x.Names {
		if n != rw.v.GlobalObject {
			kept = append(kept, n)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	x.Names = kept
	return x
}

// removedRoot reports whether e is a call, or a method chain on a call, whose
// innermost callee is a removed call.
func (rw *run) removedRoot(e syntax.Expr) (string, bool) {
	for {
		call, ok := e.(*syntax.Call)
		if !ok {
			return "", false
		}
		name := syntax.DottedName(call.Func)
		if _, removed := rw.v.Removed[name]; removed && name != "" {
			return name, true
		}
		attr, ok := call.Func.(*syntax.Attribute)
		if !ok {
			return "", false
		}
		e = attr.X
	}
}

// expr rewrites e. Removed calls are handled top-down so a removed call
// nested in another yields a single substitution; everything else bottom-up.
func (rw *run) expr(e syntax.Expr) syntax.Expr {
	if call, ok := e.(*syntax.Call); ok {
		if name, removed := rw.removedRoot(call); removed {
			sentinel := rw.v.Sentinel(name)
			rw.diags.Warn(call.Line(), diag.PlaceholderSubstituted, "%s removed: its value is replaced by %s", name, generator.Expr(sentinel))
			return sentinel
		}
	}
	for _, p := range syntax.ExprChildren(e) {
		*p = rw.expr(*p)
	}

	switch x := e.(type) {
	case *syntax.Name:
		if x.Id == rw.v.GlobalObject {
			return rw.globalRef(x)
		}
	case *syntax.Call:
		rw.call(x)
	case *syntax.Literal:
		if rw.strs.fix(x, rw.scope.retargets()) && !rw.scope.shadowed && !rw.scope.threadable {
			rw.unreachable(x.Line())
		}
	}
	return e
}

// globalRef retargets a reference to the global object onto the context
// parameter. Names bound locally are left alone.
func (rw *run) globalRef(n *syntax.Name) syntax.Expr {
	switch {
	case rw.scope.shadowed:
		return n
	case !rw.scope.threadable:
		rw.unreachable(n.Line())
		return n
	}
	return &syntax.Name{ExprPos: n.ExprPos, Id: rw.v.ContextName}
}

// unreachable marks a statement using the global object where no context
// parameter can be threaded: module level and methods of top-level classes.
func (rw *run) unreachable(line int) {
	note := fmt.Sprintf("%s is not available here; pass %s explicitly", rw.v.GlobalObject, rw.v.ContextName)
	meta := rw.cur.Meta()
	if slices.Contains(meta.Marks, note) || strings.Contains(meta.Trailing, note) {
		return
	}
	rw.diags.Warn(line, diag.GlobalWithoutContext, "%s used outside any function that can receive %s", rw.v.GlobalObject, rw.v.ContextName)
	meta.Mark(note)
}

func (rw *run) call(call *syntax.Call) {
	name := syntax.DottedName(call.Func)
	if name == "" {
		return
	}
	if reason, ok := rw.v.Flagged[name]; ok {
		meta := rw.cur.Meta()
		// already flagged by an earlier conversion
		if strings.Contains(meta.Trailing, generator.ReviewMarker) {
			return
		}
		rw.diags.Block(call.Line(), diag.UnsupportedCall, "%s: %s", name, reason)
		meta.Mark(reason)
		return
	}
	if rule, ok := rw.v.Mapping[name]; ok {
		// a wrapper keeps calling the call it wraps
		if rule.Target != name && rule.Target == rw.scope.fn {
			return
		}
		rw.apply(call, name, rule)
		return
	}
	if rw.v.Schedule == registry.ScheduleCollapse && rw.v.IsScheduleCall(name) {
		rw.collapse(call, name)
	}
}

func (rw *run) apply(call *syntax.Call, name string, rule registry.CallRule) {
	rule.Apply(call)
	if rule.Target != name {
		call.Func = syntax.DottedExpr(rule.Target, call.Line())
	}
}

// collapse retargets a weekly or monthly registration onto the daily trigger,
// dropping its periodicity arguments.
func (rw *run) collapse(call *syntax.Call, name string) {
	for _, kw := range rw.v.ScheduleArgs {
		registry.DropKeyword{Name: kw}.Apply(call)
	}
	// the periodicity argument follows the callback
	period := 1
	if len(call.Args) > 0 && syntax.DottedName(call.Args[0]) == rw.v.ContextName {
		period = 2
	}
	registry.DropPositional{Index: period}.Apply(call)

	daily := rw.v.DailyTrigger
	if rule, ok := rw.v.Mapping[daily]; ok {
		rw.apply(call, daily, rule)
	}
	call.Func = syntax.DottedExpr(daily, call.Line())
	rw.diags.Warn(call.Line(), diag.ScheduleCollapsed, "%s collapsed onto %s: the task now runs every trading day", name, daily)
}
