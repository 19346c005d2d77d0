package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quant-king299/stratconv/converr"
	"github.com/quant-king299/stratconv/internal/syntax"
)

func TestParseOverride(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected Override
		errCount int
	}{
		{
			name:     "YAML table",
			content:  "get_current_data: get_snapshot\nset_benchmark: REMOVE\n",
			expected: Override{"get_current_data": "get_snapshot", "set_benchmark": "REMOVE"},
		},
		{
			name:     "JSON table",
			content:  `{"get_price": "get_history", "log.warn": "log.warning"}`,
			expected: Override{"get_price": "get_history", "log.warn": "log.warning"},
		},
		{
			name:     "Empty file",
			content:  "",
			expected: Override{},
		},
		{
			name:     "Syntax error",
			content:  "a: [",
			errCount: 1,
		},
		{
			name:     "Not a table",
			content:  "- get_price\n- get_history\n",
			errCount: 1,
		},
		{
			name:     "Every bad entry reported",
			content:  "foo: 3\nbar: \"\"\n1bad: x\nbaz: \"a b\"\nok: fine\n",
			errCount: 4,
		},
		{
			name:     "Nested value",
			content:  "foo:\n  bar: baz\n",
			errCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOverride("map.yaml", []byte(tt.content))
			if tt.errCount == 0 {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, got)
				return
			}
			require.Error(t, err)
			assert.Nil(t, got)

			var ce *converr.ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, "map.yaml", ce.Path)

			var multi *converr.MultiError
			if errors.As(err, &multi) {
				assert.Len(t, multi.Errors, tt.errCount)
			} else {
				assert.Equal(t, 1, tt.errCount)
			}
		})
	}
}

func TestLoadOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mapping.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"get_current_data": "get_snapshot"}`), 0o644))

	o, err := LoadOverride(path)
	require.NoError(t, err)
	assert.Equal(t, "get_snapshot", o["get_current_data"])

	_, err = LoadOverride(filepath.Join(dir, "missing.yaml"))
	var ce *converr.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Error(), "cannot read")
}

func TestWithOverride(t *testing.T) {
	r, err := Builtin()
	require.NoError(t, err)

	t.Run("Removed call mapped", func(t *testing.T) {
		generic, err := r.Resolve("generic")
		require.NoError(t, err)
		v, err := generic.WithOverride(Override{"get_current_data": "get_snapshot"})
		require.NoError(t, err)

		assert.Equal(t, "get_snapshot", v.Mapping["get_current_data"].Target)
		assert.NotContains(t, v.Removed, "get_current_data")
		// the built-in variant is untouched
		assert.Contains(t, generic.Removed, "get_current_data")
		assert.NotContains(t, generic.Mapping, "get_current_data")
	})

	t.Run("Same target keeps fixes", func(t *testing.T) {
		sim, err := r.Resolve("simulation")
		require.NoError(t, err)
		v, err := sim.WithOverride(Override{"get_current_data": "lookback_snapshot"})
		require.NoError(t, err)
		assert.Len(t, v.Mapping["get_current_data"].Fixes, 1)
	})

	t.Run("New target drops fixes", func(t *testing.T) {
		sim, err := r.Resolve("simulation")
		require.NoError(t, err)
		v, err := sim.WithOverride(Override{"attribute_history": "my_history"})
		require.NoError(t, err)
		assert.Equal(t, "my_history", v.Mapping["attribute_history"].Target)
		assert.Empty(t, v.Mapping["attribute_history"].Fixes)
		assert.NotEmpty(t, sim.Mapping["attribute_history"].Fixes)
	})

	t.Run("Flagged call removed", func(t *testing.T) {
		generic, err := r.Resolve("generic")
		require.NoError(t, err)
		v, err := generic.WithOverride(Override{"run_weekly": RemoveTarget})
		require.NoError(t, err)
		assert.NotContains(t, v.Flagged, "run_weekly")
		assert.Contains(t, v.Removed, "run_weekly")
		assert.Contains(t, generic.Flagged, "run_weekly")

		lit, ok := v.Sentinel("run_weekly").(*syntax.Literal)
		require.True(t, ok)
		assert.Equal(t, "None", lit.Raw)
	})
}
