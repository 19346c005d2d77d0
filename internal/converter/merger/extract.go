package merger

import (
	"github.com/quant-king299/stratconv/internal/syntax"
)

// Function is a top-level definition together with the comment lines directly
// above it.
type Function struct {
	Def     *syntax.FuncDef
	Leading []syntax.Stmt
}

func (f *Function) Name() string { return f.Def.Name }

func (f *Function) stmts() []syntax.Stmt {
	return append(append([]syntax.Stmt(nil), f.Leading...), f.Def)
}

// Duplicate records a definition shadowed by a later one of the same name.
type Duplicate struct {
	Earlier *Function
	Later   *Function
}

// Functions is the content of a script split for merging.
type Functions struct {
	// Defs holds the effective top-level definitions in source order.
	Defs       []*Function
	Duplicates []Duplicate
	Imports    []syntax.Stmt
	// Module holds every other top-level statement in source order.
	Module []syntax.Stmt

	byName map[string]*Function
}

// Lookup returns the effective definition of name, or nil.
func (f *Functions) Lookup(name string) *Function {
	return f.byName[name]
}

// Extract splits mod into functions, imports and module-level statements.
// A later definition of a name replaces the earlier one.
func Extract(mod *syntax.Module) *Functions {
	fns := &Functions{byName: map[string]*Function{}}

	var pending []syntax.Stmt
	flush := func() {
		fns.Module = append(fns.Module, pending...)
		pending = nil
	}
	for _, s := range mod.Body {
		switch x := s.(type) {
		case *syntax.Comment:
			pending = append(pending, x)
		case *syntax.FuncDef:
			fn := &Function{Def: x, Leading: pending}
			pending = nil
			if prev, ok := fns.byName[x.Name]; ok {
				fns.Duplicates = append(fns.Duplicates, Duplicate{Earlier: prev, Later: fn})
				fns.Defs = removeFunction(fns.Defs, prev)
			}
			fns.byName[x.Name] = fn
			fns.Defs = append(fns.Defs, fn)
		case *syntax.Import, *syntax.FromImport:
			flush()
			fns.Imports = append(fns.Imports, x)
		default:
			flush()
			fns.Module = append(fns.Module, x)
		}
	}
	flush()
	return fns
}

func removeFunction(list []*Function, fn *Function) []*Function {
	for i, f := range list {
		if f == fn {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
