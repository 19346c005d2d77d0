package converr_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/quant-king299/stratconv/converr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseError(t *testing.T) {
	err := converr.NewParseError(10, 5, "unexpected token")
	assert.Equal(t, converr.TypeParse, err.Type())
	assert.Equal(t, 10, err.Line)
	assert.Equal(t, 5, err.Column)
	assert.Equal(t, "[ParseError] line 10:5 unexpected token", err.Error())
}

func TestConfigError(t *testing.T) {
	err := converr.NewConfigError("no variant selected")
	assert.Equal(t, converr.TypeConfig, err.Type())
	assert.Equal(t, "[ConfigError] no variant selected", err.Error())
}

func TestConfigErrorFor(t *testing.T) {
	err := converr.NewConfigErrorFor("paper", "unknown variant")
	assert.Equal(t, `[ConfigError] "paper": unknown variant`, err.Error())
}

func TestConfigErrorInFile(t *testing.T) {
	err := converr.NewConfigErrorInFile("map.yaml", "get_bars", "empty target")
	assert.Equal(t, `[ConfigError] map.yaml: "get_bars": empty target`, err.Error())

	noKey := converr.NewConfigErrorInFile("map.yaml", "", "not a table")
	assert.Equal(t, "[ConfigError] map.yaml: not a table", noKey.Error())
}

func TestInternalError(t *testing.T) {
	err := converr.NewInternalError("lifecycle", "initialize still missing")
	assert.Equal(t, converr.TypeInternal, err.Type())
	assert.Equal(t, "[InternalError] lifecycle: initialize still missing", err.Error())
}

func TestMultiError(t *testing.T) {
	e1 := converr.NewConfigErrorFor("a", "bad 1")
	e2 := converr.NewConfigErrorFor("b", "bad 2")
	multi := &converr.MultiError{Errors: []error{e1, e2}}

	assert.Equal(t, converr.TypeConfig, multi.Type())
	msg := multi.Error()
	assert.Contains(t, msg, "2 error(s) occurred:")
	assert.Contains(t, msg, `- [ConfigError] "a": bad 1`)
	assert.Contains(t, msg, `- [ConfigError] "b": bad 2`)
}

func TestMultiErrorEmpty(t *testing.T) {
	multi := &converr.MultiError{Errors: []error{}}
	assert.Equal(t, converr.ErrorType("MultiError"), multi.Type())
	assert.True(t, strings.HasPrefix(multi.Error(), "0 error(s) occurred:"))
}

func TestErrorsAsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("parsing strategy: %w", converr.NewParseError(3, 1, "bad indent"))

	var pe *converr.ParseError
	require.True(t, errors.As(wrapped, &pe))
	assert.Equal(t, 3, pe.Line)

	multi := &converr.MultiError{Errors: []error{converr.NewConfigErrorFor("x", "bad")}}
	var ce *converr.ConfigError
	require.True(t, errors.As(multi, &ce))
	assert.Equal(t, "x", ce.Key)
}
