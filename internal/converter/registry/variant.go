package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quant-king299/stratconv/converr"
	"github.com/quant-king299/stratconv/internal/parser"
	"github.com/quant-king299/stratconv/internal/syntax"
)

// SchedulePolicy decides what happens to weekly and monthly schedule registrations.
type SchedulePolicy int

const (
	// ScheduleFlag leaves the registration in place with a blocked diagnostic.
	ScheduleFlag SchedulePolicy = iota
	// ScheduleCollapse retargets the registration onto the daily trigger.
	ScheduleCollapse
)

func (p SchedulePolicy) String() string {
	if p == ScheduleCollapse {
		return "collapse"
	}
	return "flag"
}

// Variant is the immutable conversion configuration for one target run mode.
type Variant struct {
	Name        string
	Description string

	Mapping CallMapping
	Removed RemovedSet
	Flagged FlaggedSet

	Schedule SchedulePolicy
	// ScheduleCalls are the periodic registrations handled by Schedule.
	ScheduleCalls []string
	// ScheduleArgs are keyword arguments carrying periodicity, stripped on collapse.
	ScheduleArgs []string
	// DailyTrigger is the target's daily scheduling primitive.
	DailyTrigger string

	GlobalObject string
	ContextName  string
	// SuffixMap rewrites security-code suffixes in string literals.
	SuffixMap map[string]string
	// RemovedImports are source-only modules; importing them or a submodule is dropped.
	RemovedImports []string
	// PromotionPatterns are function names considered for the periodic slot, in priority order.
	PromotionPatterns []string

	Template *Template

	sentinels map[string]syntax.Expr
}

// Sentinel returns a fresh copy of the placeholder expression for a removed call.
func (v *Variant) Sentinel(name string) syntax.Expr {
	if e, ok := v.sentinels[name]; ok {
		return syntax.CloneExpr(e)
	}
	return &syntax.Literal{Lit: syntax.LitNone, Raw: "None"}
}

// IsScheduleCall reports whether name is a weekly/monthly registration.
func (v *Variant) IsScheduleCall(name string) bool {
	for _, s := range v.ScheduleCalls {
		if s == name {
			return true
		}
	}
	return false
}

// IsRemovedImport reports whether module is source-only.
func (v *Variant) IsRemovedImport(module string) bool {
	for _, m := range v.RemovedImports {
		if module == m || strings.HasPrefix(module, m+".") {
			return true
		}
	}
	return false
}

// RemovedNames returns the removed call names, sorted.
func (v *Variant) RemovedNames() []string {
	return sortedKeys(v.Removed)
}

// FlaggedNames returns the flagged call names, sorted.
func (v *Variant) FlaggedNames() []string {
	return sortedKeys(v.Flagged)
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// finalize checks the variant's invariants and prepares derived data.
func (v *Variant) finalize() error {
	var errs []error
	for name := range v.Mapping {
		if _, ok := v.Removed[name]; ok {
			errs = append(errs, converr.NewConfigErrorFor(name, fmt.Sprintf("variant %s both maps and removes this call", v.Name)))
		}
		if _, ok := v.Flagged[name]; ok {
			errs = append(errs, converr.NewConfigErrorFor(name, fmt.Sprintf("variant %s both maps and flags this call", v.Name)))
		}
	}
	for name := range v.Removed {
		if _, ok := v.Flagged[name]; ok {
			errs = append(errs, converr.NewConfigErrorFor(name, fmt.Sprintf("variant %s both removes and flags this call", v.Name)))
		}
	}
	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
		return &converr.MultiError{Errors: errs}
	}

	v.sentinels = make(map[string]syntax.Expr, len(v.Removed))
	for name, r := range v.Removed {
		e, err := parseExpr(r.Sentinel)
		if err != nil {
			return converr.NewConfigErrorFor(name, fmt.Sprintf("invalid sentinel %q: %v", r.Sentinel, err))
		}
		v.sentinels[name] = e
	}
	return nil
}

func parseExpr(text string) (syntax.Expr, error) {
	mod, err := parser.Parse(text)
	if err != nil {
		return nil, err
	}
	if len(mod.Body) != 1 {
		return nil, fmt.Errorf("expected a single expression")
	}
	es, ok := mod.Body[0].(*syntax.ExprStmt)
	if !ok {
		return nil, fmt.Errorf("expected an expression, got %s", mod.Body[0].Kind())
	}
	return es.X, nil
}

// clone copies the tables so the copy can be changed without touching v.
// The template is shared; it is never mutated after construction.
func (v *Variant) clone() *Variant {
	nv := *v
	nv.Mapping = make(CallMapping, len(v.Mapping))
	for k, r := range v.Mapping {
		nv.Mapping[k] = r
	}
	nv.Removed = make(RemovedSet, len(v.Removed))
	for k, r := range v.Removed {
		nv.Removed[k] = r
	}
	nv.Flagged = make(FlaggedSet, len(v.Flagged))
	for k, r := range v.Flagged {
		nv.Flagged[k] = r
	}
	return &nv
}

// RemoveTarget is the override value that moves a call into the removed set.
const RemoveTarget = "REMOVE"

// WithOverride returns a new variant with the override entries applied on top of
// the built-in tables. Entries retargeted to a different call lose the built-in
// argument fixes; v is not modified.
func (v *Variant) WithOverride(o Override) (*Variant, error) {
	nv := v.clone()
	for _, name := range sortedKeys(o) {
		target := o[name]
		delete(nv.Flagged, name)
		if target == RemoveTarget {
			delete(nv.Mapping, name)
			nv.Removed[name] = Removal{Sentinel: "None"}
			continue
		}
		delete(nv.Removed, name)
		if rule, ok := v.Mapping[name]; ok && rule.Target == target {
			continue
		}
		nv.Mapping[name] = CallRule{Target: target}
	}
	if err := nv.finalize(); err != nil {
		return nil, err
	}
	return nv, nil
}

// Info summarizes a variant for listings.
type Info struct {
	Name        string
	Description string
	Snapshot    string
	Schedule    string
	Periodic    string
	Mapped      int
	Removed     int
}

func (v *Variant) Info() Info {
	info := Info{
		Name:        v.Name,
		Description: v.Description,
		Schedule:    v.Schedule.String(),
		Mapped:      len(v.Mapping),
		Removed:     len(v.Removed),
		Snapshot:    "unchanged",
	}
	if r, ok := v.Mapping["get_current_data"]; ok {
		info.Snapshot = r.Target
	} else if _, ok := v.Removed["get_current_data"]; ok {
		info.Snapshot = "removed"
	}
	if s := v.Template.PeriodicSlot(); s != nil {
		info.Periodic = s.Name
	}
	return info
}
