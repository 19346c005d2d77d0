// Package parser builds a syntax tree from strategy script text.
package parser

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/quant-king299/stratconv/converr"
	"github.com/quant-king299/stratconv/internal/syntax"
)

// ScriptParser parses scripts with the tree-sitter Python grammar and lowers
// the concrete tree to the statement and expression subset used by trading
// scripts.
type ScriptParser struct {
}

func NewScriptParser() *ScriptParser {
	return &ScriptParser{}
}

// Parse turns input into a tree. Syntax errors and constructs outside the
// supported subset are reported as *converr.ParseError values inside a
// *converr.MultiError.
func (sp *ScriptParser) Parse(input string) (*syntax.Module, error) {
	return sp.ParseContext(context.Background(), input)
}

// ParseContext is Parse with cancellation.
func (sp *ScriptParser) ParseContext(ctx context.Context, input string) (*syntax.Module, error) {
	// Normalize line endings so comment text and columns only deal with '\n'.
	input = strings.ReplaceAll(input, "\r\n", "\n")
	input = strings.ReplaceAll(input, "\r", "\n")
	src := []byte(input)

	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(python.GetLanguage())

	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	defer tree.Close()
	root := tree.RootNode()

	listener := &errorListener{src: src}
	listener.collect(root)
	if len(listener.Errors) > 0 {
		return nil, &converr.MultiError{Errors: listener.Errors}
	}

	b := newBuilder(src)
	mod := b.module(root)
	if len(b.errs) > 0 {
		return nil, &converr.MultiError{Errors: b.errs}
	}
	b.placeComments(mod)
	return mod, nil
}

// Parse is a shorthand for NewScriptParser().Parse(input).
func Parse(input string) (*syntax.Module, error) {
	return NewScriptParser().Parse(input)
}

// errorListener gathers the ERROR and MISSING nodes of a tree as parse errors.
type errorListener struct {
	src    []byte
	Errors []error
}

func (l *errorListener) collect(n *sitter.Node) {
	switch {
	case n.IsMissing():
		l.syntaxError(n, fmt.Sprintf("missing %q", n.Type()))
		return
	case n.IsError():
		l.syntaxError(n, fmt.Sprintf("unexpected %s", describe(n, l.src)))
		return
	case !n.HasError():
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		l.collect(n.Child(i))
	}
}

func (l *errorListener) syntaxError(n *sitter.Node, msg string) {
	pt := n.StartPoint()
	l.Errors = append(l.Errors, converr.NewParseError(int(pt.Row)+1, int(pt.Column)+1, msg))
}

// describe quotes the first line of a node's text, or names end of input.
func describe(n *sitter.Node, src []byte) string {
	text := n.Content(src)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "end of input"
	}
	if len(text) > 32 {
		text = text[:32] + "..."
	}
	return fmt.Sprintf("%q", text)
}
