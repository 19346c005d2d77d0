// Package fixer holds the ordered text passes run over generated scripts.
//
// Every pass is text-in/text-out, aware of string literals and comments, and
// idempotent: running it on its own output changes nothing.
package fixer

import (
	"fmt"

	"github.com/quant-king299/stratconv/internal/converter/registry"
)

// Pass is one text repair step.
type Pass interface {
	Name() string
	Apply(text string) (string, error)
}

// Signature names a function the output must define and its parameters.
type Signature struct {
	Name   string
	Params []string
}

// Config is the variant data the passes need.
type Config struct {
	Lifecycle []Signature
	Removed   []string
	Flagged   map[string]string
}

// ConfigFor derives the pass configuration from a variant.
func ConfigFor(v *registry.Variant) Config {
	cfg := Config{
		Removed: v.RemovedNames(),
		Flagged: map[string]string{},
	}
	for _, slot := range v.Template.Slots {
		if slot.Mandatory {
			cfg.Lifecycle = append(cfg.Lifecycle, Signature{Name: slot.Name, Params: slot.Params})
		}
	}
	for name, reason := range v.Flagged {
		cfg.Flagged[name] = reason
	}
	return cfg
}

// DefaultPasses returns the passes in their fixed order.
func DefaultPasses(cfg Config) []Pass {
	return []Pass{
		Dedupe{},
		Delimiters{},
		Indent{},
		Lifecycle{Functions: cfg.Lifecycle},
		NewAnnotate(cfg.Removed, cfg.Flagged),
	}
}

// TextFixer runs passes in order.
type TextFixer struct {
	passes []Pass
}

// New creates a TextFixer running passes in the given order.
func New(passes ...Pass) *TextFixer {
	return &TextFixer{passes: passes}
}

// NewForVariant creates a TextFixer with the default passes for v.
func NewForVariant(v *registry.Variant) *TextFixer {
	return New(DefaultPasses(ConfigFor(v))...)
}

// Passes returns the configured passes.
func (f *TextFixer) Passes() []Pass {
	return append([]Pass(nil), f.passes...)
}

// maxRounds bounds how often Fix reruns the passes. A later pass can expose
// work for an earlier one: a repaired comma or a normalized indent can turn
// two lines into duplicates.
const maxRounds = 5

// Fix runs every pass in order, repeating the sequence until the text stops
// changing. It stops at the first pass reporting an error; passes only fail
// on internal invariant violations.
func (f *TextFixer) Fix(text string) (string, error) {
	for round := 0; round < maxRounds; round++ {
		out, err := f.fixOnce(text)
		if err != nil {
			return "", err
		}
		if out == text {
			break
		}
		text = out
	}
	return text, nil
}

func (f *TextFixer) fixOnce(text string) (string, error) {
	for _, p := range f.passes {
		out, err := p.Apply(text)
		if err != nil {
			return "", fmt.Errorf("fix %s: %w", p.Name(), err)
		}
		text = out
	}
	return text, nil
}
