// Package converter drives a script through the conversion stages.
package converter

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/quant-king299/stratconv/internal/converter/diag"
	"github.com/quant-king299/stratconv/internal/converter/fixer"
	"github.com/quant-king299/stratconv/internal/converter/generator"
	"github.com/quant-king299/stratconv/internal/converter/merger"
	"github.com/quant-king299/stratconv/internal/converter/registry"
	"github.com/quant-king299/stratconv/internal/converter/rewriter"
	"github.com/quant-king299/stratconv/internal/parser"
)

// Pipeline orchestrates one variant's conversion. Stages hold no run state,
// so a Pipeline may be shared by goroutines.
type Pipeline struct {
	variant   *registry.Variant
	parser    ScriptParser
	rewriter  CallRewriter
	merger    FunctionMerger
	generator CodeGenerator
	fixer     TextFixer
	log       *zap.Logger

	registry *registry.Registry
	override registry.Override
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger stage boundaries are reported to.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithRegistry resolves the variant from r instead of the built-in registry.
func WithRegistry(r *registry.Registry) Option {
	return func(p *Pipeline) { p.registry = r }
}

// WithOverride applies mapping entries on top of the variant, after any
// override file.
func WithOverride(o registry.Override) Option {
	return func(p *Pipeline) { p.override = o }
}

// WithFixer replaces the variant's default text fixer.
func WithFixer(f TextFixer) Option {
	return func(p *Pipeline) { p.fixer = f }
}

// New resolves variant, applies the mapping override file when overridePath
// is set, and wires the stages. Failures are *converr.ConfigError.
func New(variant, overridePath string, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		parser:    parser.NewScriptParser(),
		rewriter:  rewriter.NewCallRewriter(),
		merger:    merger.NewFunctionMerger(),
		generator: generator.NewScriptGenerator(),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	reg := p.registry
	if reg == nil {
		var err error
		if reg, err = registry.Default(); err != nil {
			return nil, err
		}
	}
	v, err := reg.Resolve(variant)
	if err != nil {
		return nil, err
	}
	if overridePath != "" {
		o, err := registry.LoadOverride(overridePath)
		if err != nil {
			return nil, err
		}
		if v, err = v.WithOverride(o); err != nil {
			return nil, err
		}
		p.log.Debug("Applied mapping override", zap.String("path", overridePath), zap.Int("entries", len(o)))
	}
	if len(p.override) > 0 {
		if v, err = v.WithOverride(p.override); err != nil {
			return nil, err
		}
	}
	p.variant = v
	if p.fixer == nil {
		p.fixer = fixer.NewForVariant(v)
	}
	return p, nil
}

// Variant returns the resolved variant.
func (p *Pipeline) Variant() *registry.Variant {
	return p.variant
}

// Convert runs every stage over src. On error no output is returned; the
// error is a *converr.ParseError for unparseable input and a
// *converr.InternalError for a broken stage invariant.
func (p *Pipeline) Convert(src string) (string, []Diagnostic, error) {
	log := p.log.With(zap.String("variant", p.variant.Name))
	diags := diag.NewCollector()

	mod, err := p.parser.Parse(src)
	if err != nil {
		return "", nil, fmt.Errorf("parse: %w", err)
	}
	log.Debug("Parsed script", zap.Int("statements", len(mod.Body)))

	mod = p.rewriter.Rewrite(mod, p.variant, diags)
	log.Debug("Rewrote call sites", zap.Int("diagnostics", diags.Len()))

	fns := p.merger.Extract(mod)
	mod = p.merger.Merge(fns, p.variant, diags)
	log.Debug("Merged functions",
		zap.Int("functions", len(fns.Defs)),
		zap.Int("diagnostics", diags.Len()))

	text, err := p.generator.Generate(mod)
	if err != nil {
		return "", nil, fmt.Errorf("generate: %w", err)
	}

	out, err := p.fixer.Fix(text)
	if err != nil {
		return "", nil, err
	}
	log.Debug("Conversion finished",
		zap.Int("bytes", len(out)),
		zap.Int("blocked", diags.Count(diag.Blocked)),
		zap.Int("warnings", diags.Count(diag.Warning)))
	return out, diags.List(), nil
}

// Convert converts source with a fresh pipeline for variant. An empty
// overridePath means no mapping override.
func Convert(source, variant, overridePath string) (string, []Diagnostic, error) {
	p, err := New(variant, overridePath)
	if err != nil {
		return "", nil, err
	}
	return p.Convert(source)
}
