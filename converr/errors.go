// Package converr defines the fatal error types reported by the strategy converter.
package converr

import (
	"fmt"
	"strings"
)

// ErrorType defines the category of the error.
type ErrorType string

const (
	TypeParse    ErrorType = "ParseError"
	TypeConfig   ErrorType = "ConfigError"
	TypeInternal ErrorType = "InternalError"
)

// ConvError is the interface for all converter errors.
type ConvError interface {
	error
	Type() ErrorType
}

// BaseError provides common fields for converter errors.
type BaseError struct {
	Msg     string
	ErrType ErrorType
}

func (e *BaseError) Error() string {
	return fmt.Sprintf("[%s] %s", e.ErrType, e.Msg)
}

func (e *BaseError) Type() ErrorType {
	return e.ErrType
}

// ParseError reports input outside the supported script syntax.
// Line and Column are 1-based estimates.
type ParseError struct {
	BaseError
	Line   int
	Column int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("[%s] line %d:%d %s", e.ErrType, e.Line, e.Column, e.Msg)
}

// ConfigError reports an unknown variant or a malformed mapping override.
type ConfigError struct {
	BaseError
	// Key names the offending variant or override entry, if any.
	Key string
	// Path is the override file, if the error came from one.
	Path string
}

func (e *ConfigError) Error() string {
	switch {
	case e.Path != "" && e.Key != "":
		return fmt.Sprintf("[%s] %s: %q: %s", e.ErrType, e.Path, e.Key, e.Msg)
	case e.Path != "":
		return fmt.Sprintf("[%s] %s: %s", e.ErrType, e.Path, e.Msg)
	case e.Key != "":
		return fmt.Sprintf("[%s] %q: %s", e.ErrType, e.Key, e.Msg)
	}
	return fmt.Sprintf("[%s] %s", e.ErrType, e.Msg)
}

// InternalError reports a broken pipeline invariant. It never results from user input.
type InternalError struct {
	BaseError
	Stage string
}

func (e *InternalError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("[%s] %s: %s", e.ErrType, e.Stage, e.Msg)
	}
	return fmt.Sprintf("[%s] %s", e.ErrType, e.Msg)
}

// MultiError collects multiple converter errors.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d error(s) occurred:", len(m.Errors))
	for _, err := range m.Errors {
		fmt.Fprintf(&sb, "\n- %v", err)
	}
	return sb.String()
}

func (m *MultiError) Type() ErrorType {
	if len(m.Errors) > 0 {
		if ce, ok := m.Errors[0].(ConvError); ok {
			return ce.Type()
		}
	}
	return "MultiError"
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

func base(t ErrorType, msg string) BaseError {
	return BaseError{Msg: msg, ErrType: t}
}

func NewParseError(line, column int, msg string) *ParseError {
	return &ParseError{BaseError: base(TypeParse, msg), Line: line, Column: column}
}

func NewConfigError(msg string) *ConfigError {
	return &ConfigError{BaseError: base(TypeConfig, msg)}
}

// NewConfigErrorFor creates a ConfigError about a specific key.
func NewConfigErrorFor(key, msg string) *ConfigError {
	return &ConfigError{BaseError: base(TypeConfig, msg), Key: key}
}

// NewConfigErrorInFile creates a ConfigError located in a file. key may be empty.
func NewConfigErrorInFile(path, key, msg string) *ConfigError {
	return &ConfigError{BaseError: base(TypeConfig, msg), Key: key, Path: path}
}

// NewInternalError creates an InternalError raised by the named stage.
func NewInternalError(stage, msg string) *InternalError {
	return &InternalError{BaseError: base(TypeInternal, msg), Stage: stage}
}
