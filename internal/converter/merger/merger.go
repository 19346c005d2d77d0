// Package merger splices the functions of a rewritten script into a variant's
// structural template.
package merger

import (
	"strings"

	"github.com/quant-king299/stratconv/internal/converter/diag"
	"github.com/quant-king299/stratconv/internal/converter/generator"
	"github.com/quant-king299/stratconv/internal/converter/registry"
	"github.com/quant-king299/stratconv/internal/syntax"
)

// FunctionMerger assembles output modules from extracted functions.
type FunctionMerger struct{}

// NewFunctionMerger creates a new FunctionMerger.
func NewFunctionMerger() *FunctionMerger {
	return &FunctionMerger{}
}

// Extract splits mod for merging.
func (m *FunctionMerger) Extract(mod *syntax.Module) *Functions {
	return Extract(mod)
}

// Merge builds the output module. The functions in fns are modified and
// become part of the result.
func (m *FunctionMerger) Merge(fns *Functions, v *registry.Variant, diags *diag.Collector) *syntax.Module {
	st := &merge{
		tpl:   v.Template,
		v:     v,
		diags: diags,
		fns:   fns,
		bound: map[string]*Function{},
	}
	st.reportDuplicates()
	st.replace()
	st.bind()
	st.dropLifecycleRegistrations()
	st.promote()
	st.register()
	st.addNotes()
	return st.assemble()
}

// Merge runs a default FunctionMerger.
func Merge(fns *Functions, v *registry.Variant, diags *diag.Collector) *syntax.Module {
	return NewFunctionMerger().Merge(fns, v, diags)
}

type merge struct {
	tpl   *registry.Template
	v     *registry.Variant
	diags *diag.Collector
	fns   *Functions

	// bound maps slot names to the function filling them
	bound map[string]*Function
	// helpers are source functions not bound to a slot, in source order
	helpers []*Function
}

func (st *merge) reportDuplicates() {
	for _, d := range st.fns.Duplicates {
		st.diags.Warn(d.Earlier.Def.Line(), diag.DuplicateDefinition,
			"%s is defined again at line %d; the later definition is kept", d.Earlier.Name(), d.Later.Def.Line())
	}
}

// bind fills lifecycle and periodic slots from source functions. Direct names
// win over aliases.
func (st *merge) bind() {
	for _, fn := range st.fns.Defs {
		if slot := st.tpl.Slot(fn.Name()); slot != nil && fills(slot) {
			st.bound[slot.Name] = fn
		}
	}
	for _, fn := range st.fns.Defs {
		if st.bound[fn.Name()] == fn {
			continue
		}
		slot := st.tpl.SlotFor(fn.Name())
		if slot == nil || !fills(slot) {
			st.helpers = append(st.helpers, fn)
			continue
		}
		if _, taken := st.bound[slot.Name]; taken {
			st.diags.Warn(fn.Def.Line(), diag.DuplicateDefinition, "%s also fills %s; kept as a helper", fn.Name(), slot.Name)
			st.helpers = append(st.helpers, fn)
			continue
		}
		old := fn.Name()
		st.bound[slot.Name] = fn
		st.renameAll(old, slot.Name)
		fn.Def.Name = slot.Name
	}
	for _, slot := range st.tpl.Slots {
		if fn := st.bound[slot.Name]; fn != nil {
			st.adapt(fn, slot)
		}
	}
}

// fills reports whether a source function takes the slot's place.
func fills(slot *registry.Slot) bool {
	return slot.Mandatory || slot.Periodic
}

// replace swaps source helpers for the template's versions of the same name
// and arity. Decorators and leading comments are kept.
func (st *merge) replace() {
	for _, fn := range st.fns.Defs {
		slot := st.tpl.Slot(fn.Name())
		if slot == nil || !slot.Replaces || len(fn.Def.Params) != len(slot.Params) {
			continue
		}
		def := syntax.CloneStmt(slot.Placeholder).(*syntax.FuncDef)
		def.Decorators = fn.Def.Decorators
		if sameText(def, fn.Def) {
			continue
		}
		def.Pos = fn.Def.Pos
		st.diags.Info(fn.Def.Line(), diag.FunctionReplaced, "%s replaced by the %s version", fn.Name(), st.v.Name)
		fn.Def = def
	}
}

func sameText(a, b syntax.Stmt) bool {
	x, err := generator.Generate(&syntax.Module{Body: []syntax.Stmt{a}})
	if err != nil {
		return false
	}
	y, err := generator.Generate(&syntax.Module{Body: []syntax.Stmt{b}})
	return err == nil && x == y
}

// addNotes appends the template's notes to initialize unless they are
// already there.
func (st *merge) addNotes() {
	notes := st.tpl.InitNotes
	if len(notes) == 0 {
		return
	}
	init := st.lifecycle(st.tpl.Slot("initialize"))
	present := false
	syntax.WalkStmts(init.Def.Body, func(s syntax.Stmt) {
		if c, ok := s.(*syntax.Comment); ok && c.Text == notes[0].Text {
			present = true
		}
	})
	if present {
		return
	}
	for _, n := range notes {
		c := *n
		c.Pos = init.Def.Line()
		init.Def.Body = append(init.Def.Body, &c)
	}
}

// adapt gives fn the slot's parameter list. Source parameters are renamed in
// place, missing ones are inserted and extra required ones get a None default.
// When the body already uses the slot's name, the source name is kept as a
// local bound from the parameter instead.
func (st *merge) adapt(fn *Function, slot *registry.Slot) {
	def := fn.Def
	changed := false
	var aliases []syntax.Stmt
	for i, want := range slot.Params {
		if i < len(def.Params) && def.Params[i].Star == "" {
			p := def.Params[i]
			if p.Name == want {
				continue
			}
			// the context name in a body is the retargeted global object
			if want != st.v.ContextName && references(def.Body, want) && !hasParam(def, want) {
				st.diags.Warn(def.Line(), diag.SignatureAdapted,
					"%s already uses %s; parameter %s is bound from it on entry", def.Name, want, p.Name)
				aliases = append(aliases, &syntax.Assign{
					StmtMeta: syntax.StmtMeta{Pos: def.Line()},
					Targets:  []syntax.Expr{&syntax.Name{ExprPos: syntax.ExprPos{Pos: def.Line()}, Id: p.Name}},
					Value:    &syntax.Name{ExprPos: syntax.ExprPos{Pos: def.Line()}, Id: want},
				})
			} else {
				renameNames(def.Body, p.Name, want)
			}
			p.Name = want
			changed = true
			continue
		}
		params := make([]*syntax.Param, 0, len(def.Params)+1)
		params = append(params, def.Params[:i]...)
		params = append(params, &syntax.Param{Name: want})
		def.Params = append(params, def.Params[i:]...)
		changed = true
	}
	for _, p := range def.Params[len(slot.Params):] {
		if p.Star == "" && p.Default == nil {
			p.Default = &syntax.Literal{ExprPos: syntax.ExprPos{Pos: def.Line()}, Lit: syntax.LitNone, Raw: "None"}
			changed = true
		}
	}
	if len(aliases) > 0 {
		at := docstringEnd(def.Body)
		body := make([]syntax.Stmt, 0, len(def.Body)+len(aliases))
		body = append(body, def.Body[:at]...)
		body = append(body, aliases...)
		def.Body = append(body, def.Body[at:]...)
	}
	if changed {
		st.diags.Info(def.Line(), diag.SignatureAdapted, "%s signature adapted to (%s)", def.Name, generator.Params(def.Params))
	}
}

func hasParam(def *syntax.FuncDef, name string) bool {
	for _, p := range def.Params {
		if p.Name == name {
			return true
		}
	}
	return false
}

// docstringEnd returns the index after a leading docstring, or 0.
func docstringEnd(body []syntax.Stmt) int {
	if len(body) == 0 {
		return 0
	}
	if es, ok := body[0].(*syntax.ExprStmt); ok {
		if lit, ok := es.X.(*syntax.Literal); ok && lit.Lit == syntax.LitString {
			return 1
		}
	}
	return 0
}

func (st *merge) isRegistration(call *syntax.Call) bool {
	name := syntax.DottedName(call.Func)
	return name != "" && (name == st.v.DailyTrigger || st.v.IsScheduleCall(name))
}

// callback returns the function name a registration call schedules.
func (st *merge) callback(call *syntax.Call) string {
	for _, a := range call.Args {
		switch x := a.(type) {
		case *syntax.Keyword, *syntax.Starred:
			continue
		case *syntax.Name:
			if x.Id != st.v.ContextName {
				return x.Id
			}
			continue
		}
		return ""
	}
	return ""
}

// dropLifecycleRegistrations removes registrations of lifecycle functions from
// initialize; the target platform calls them on its own.
func (st *merge) dropLifecycleRegistrations() {
	init := st.bound["initialize"]
	if init == nil {
		return
	}
	for i, s := range init.Def.Body {
		es, ok := s.(*syntax.ExprStmt)
		if !ok {
			continue
		}
		call, ok := es.X.(*syntax.Call)
		if !ok || !st.isRegistration(call) {
			continue
		}
		target := st.tpl.Slot(st.callback(call))
		if target == nil || !target.Mandatory {
			continue
		}
		st.diags.Info(es.Line(), diag.RemovedCall, "registration of %s removed: the platform calls it automatically", target.Name)
		init.Def.Body[i] = &syntax.Tombstone{
			StmtMeta: syntax.StmtMeta{Pos: es.Pos},
			Original: generator.Simple(es),
			Reason:   "lifecycle functions are not scheduled",
		}
	}
}

func (st *merge) helper(name string) *Function {
	for _, fn := range st.helpers {
		if fn.Name() == name {
			return fn
		}
	}
	return nil
}

// candidates lists helpers that look like the periodic task: scheduled
// callbacks in registration order, then functions with a known task name.
func (st *merge) candidates() []*Function {
	var out []*Function
	seen := map[*Function]bool{}
	add := func(name string) {
		if fn := st.helper(name); fn != nil && !seen[fn] {
			seen[fn] = true
			out = append(out, fn)
		}
	}
	if init := st.bound["initialize"]; init != nil {
		syntax.InspectBody(init.Def.Body, func(n syntax.Node) bool {
			if call, ok := n.(*syntax.Call); ok && st.isRegistration(call) {
				add(st.callback(call))
			}
			return true
		})
	}
	for _, p := range st.v.PromotionPatterns {
		add(p)
	}
	return out
}

func (st *merge) promote() {
	slot := st.tpl.PeriodicSlot()
	if slot == nil {
		return
	}
	if _, ok := st.bound[slot.Name]; ok {
		return
	}
	cands := st.candidates()
	if len(cands) == 0 {
		return
	}

	first := cands[0]
	old := first.Name()
	st.renameAll(old, slot.Name)
	first.Def.Name = slot.Name
	st.helpers = removeFunction(st.helpers, first)
	st.bound[slot.Name] = first
	st.diags.Info(first.Def.Line(), diag.Promoted, "%s promoted to %s", old, slot.Name)
	st.adapt(first, slot)

	for _, c := range cands[1:] {
		st.diags.Warn(c.Def.Line(), diag.AmbiguousPromotion,
			"%s also looks like a periodic task; only %s was promoted to %s", c.Name(), old, slot.Name)
	}
}

// register schedules a filled periodic slot from initialize unless the
// source already does.
func (st *merge) register() {
	slot := st.tpl.PeriodicSlot()
	if slot == nil || st.bound[slot.Name] == nil || st.tpl.Registration == nil {
		return
	}
	init := st.lifecycle(st.tpl.Slot("initialize"))
	if schedules(init.Def.Body, slot.Name) {
		return
	}
	body := init.Def.Body
	if !hasStatements(body) {
		body = withoutPass(body)
	}
	init.Def.Body = append(body, syntax.CloneStmt(st.tpl.Registration))
}

// lifecycle returns the function filling a mandatory slot, instantiating the
// template placeholder when the source has none.
func (st *merge) lifecycle(slot *registry.Slot) *Function {
	if fn := st.bound[slot.Name]; fn != nil {
		return fn
	}
	def := syntax.CloneStmt(slot.Placeholder).(*syntax.FuncDef)
	fn := &Function{Def: def}
	st.bound[slot.Name] = fn
	return fn
}

func (st *merge) assemble() *syntax.Module {
	out := &syntax.Module{}
	add := func(stmts ...syntax.Stmt) { out.Body = append(out.Body, stmts...) }

	header := map[string]bool{}
	for _, s := range st.tpl.Header {
		add(syntax.CloneStmt(s))
		if c, ok := s.(*syntax.Comment); ok {
			header[strings.TrimSpace(c.Text)] = true
		}
	}

	seen := map[string]bool{}
	imports := syntax.CloneBody(st.tpl.Imports)
	for _, s := range append(imports, st.fns.Imports...) {
		key := generator.Simple(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		add(s)
	}

	var funcs []*Function
	for _, slot := range st.tpl.Slots {
		if slot.Mandatory {
			funcs = append(funcs, st.lifecycle(slot))
		}
	}
	if slot := st.tpl.PeriodicSlot(); slot != nil {
		if fn := st.bound[slot.Name]; fn != nil {
			funcs = append(funcs, fn)
		}
	}
	funcs = append(funcs, st.helpers...)

	var module []syntax.Stmt
	for _, s := range st.fns.Module {
		if c, ok := s.(*syntax.Comment); ok && header[strings.TrimSpace(c.Text)] {
			continue
		}
		module = append(module, s)
	}
	after := anchors(module, funcs)
	k := 0
	for ; k < len(module) && after[k] < 0; k++ {
		add(module[k])
	}
	for i, fn := range funcs {
		add(fn.stmts()...)
		for ; k < len(module) && after[k] == i; k++ {
			add(module[k])
		}
	}
	add(st.templateHelpers(out.Body)...)
	return out
}

// anchors returns for each module-level statement the index of the function in
// funcs it has to follow, or -1 when it references none. Statements keep their
// source order and comments move with the statement below them.
func anchors(module []syntax.Stmt, funcs []*Function) []int {
	index := map[string]int{}
	for i, fn := range funcs {
		index[fn.Name()] = i
	}
	after := make([]int, len(module))
	last := -1
	for i, s := range module {
		syntax.Inspect(s, func(n syntax.Node) bool {
			if x, ok := n.(*syntax.Name); ok {
				if j, ok := index[x.Id]; ok && j > last {
					last = j
				}
			}
			return true
		})
		after[i] = last
	}
	for i := len(module) - 2; i >= 0; i-- {
		if _, ok := module[i].(*syntax.Comment); ok {
			after[i] = after[i+1]
		}
	}
	return after
}

// templateHelpers returns the template's helper functions referenced by body,
// directly or through another picked helper, in template order.
func (st *merge) templateHelpers(body []syntax.Stmt) []syntax.Stmt {
	defined := map[string]bool{}
	for _, s := range body {
		if fd, ok := s.(*syntax.FuncDef); ok {
			defined[fd.Name] = true
		}
	}
	picked := map[string]bool{}
	var scope []syntax.Stmt
	scope = append(scope, body...)
	for changed := true; changed; {
		changed = false
		for _, slot := range st.tpl.Slots {
			if !slot.Helper || picked[slot.Name] || defined[slot.Name] {
				continue
			}
			if references(scope, slot.Name) {
				picked[slot.Name] = true
				scope = append(scope, slot.Placeholder)
				changed = true
			}
		}
	}

	var out []syntax.Stmt
	for _, slot := range st.tpl.Slots {
		if picked[slot.Name] {
			out = append(out, syntax.CloneStmt(slot.Placeholder))
		}
	}
	return out
}

// renameAll renames every reference to a top-level function.
func (st *merge) renameAll(old, name string) {
	renameNames(st.fns.Module, old, name)
	for _, fn := range st.fns.Defs {
		renameNames([]syntax.Stmt{fn.Def}, old, name)
	}
}

func renameNames(body []syntax.Stmt, old, name string) {
	syntax.InspectBody(body, func(n syntax.Node) bool {
		if x, ok := n.(*syntax.Name); ok && x.Id == old {
			x.Id = name
		}
		return true
	})
}

func references(body []syntax.Stmt, name string) bool {
	found := false
	syntax.InspectBody(body, func(n syntax.Node) bool {
		if x, ok := n.(*syntax.Name); ok && x.Id == name {
			found = true
		}
		return !found
	})
	return found
}

// schedules reports whether body passes name as a call argument anywhere.
func schedules(body []syntax.Stmt, name string) bool {
	found := false
	syntax.InspectBody(body, func(n syntax.Node) bool {
		if call, ok := n.(*syntax.Call); ok {
			for _, a := range call.Args {
				if x, ok := a.(*syntax.Name); ok && x.Id == name {
					found = true
				}
			}
		}
		return !found
	})
	return found
}

// hasStatements reports whether body holds anything besides pass, comments
// and tombstones.
func hasStatements(body []syntax.Stmt) bool {
	for _, s := range body {
		switch s.(type) {
		case *syntax.Pass, *syntax.Comment, *syntax.Tombstone:
			continue
		}
		return true
	}
	return false
}

func withoutPass(body []syntax.Stmt) []syntax.Stmt {
	out := make([]syntax.Stmt, 0, len(body))
	for _, s := range body {
		if _, ok := s.(*syntax.Pass); !ok {
			out = append(out, s)
		}
	}
	return out
}
