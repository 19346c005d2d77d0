package converter

import (
	"github.com/quant-king299/stratconv/internal/converter/diag"
	"github.com/quant-king299/stratconv/internal/converter/merger"
	"github.com/quant-king299/stratconv/internal/converter/registry"
	"github.com/quant-king299/stratconv/internal/syntax"
)

// ScriptParser builds a syntax tree from script text.
type ScriptParser interface {
	Parse(input string) (*syntax.Module, error)
}

// CallRewriter rewrites call sites of a tree for a variant. It returns a new
// tree and leaves its input untouched.
type CallRewriter interface {
	Rewrite(mod *syntax.Module, v *registry.Variant, diags *diag.Collector) *syntax.Module
}

// FunctionMerger extracts function bodies and assembles them into the
// variant's template.
type FunctionMerger interface {
	Extract(mod *syntax.Module) *merger.Functions
	Merge(fns *merger.Functions, v *registry.Variant, diags *diag.Collector) *syntax.Module
}

// CodeGenerator renders a tree as script text.
type CodeGenerator interface {
	Generate(mod *syntax.Module) (string, error)
}

// TextFixer repairs generated text.
type TextFixer interface {
	Fix(text string) (string, error)
}

// Diagnostic is a line-addressable note about a point needing review.
type Diagnostic = diag.Diagnostic

// Severity grades a Diagnostic.
type Severity = diag.Severity

const (
	Info    = diag.Info
	Warning = diag.Warning
	Blocked = diag.Blocked
)
