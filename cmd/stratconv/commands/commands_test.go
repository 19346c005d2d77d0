package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/quant-king299/stratconv/converr"
	"github.com/quant-king299/stratconv/internal/converter/diag"
)

const scenarioA = "def initialize(context):\n    info = get_security_info('000001.XSHE')\n"

const scenarioB = "def handle_data(context, data):\n    q = query(valuation.code)\n"

type result struct {
	stdout, stderr string
	err            error
}

// run executes the command tree from a fresh working directory so no
// stratconv.yaml on the host is picked up.
func run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

func writeScript(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestRootHelp(t *testing.T) {
	t.Chdir(t.TempDir())
	res := run(t, "")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, rootLongDescription)
}

func TestRootUnknownArgument(t *testing.T) {
	t.Chdir(t.TempDir())
	res := run(t, "", "strategy.txt")
	assert.ErrorContains(t, res.err, `unknown command "strategy.txt"`)
}

func TestShorthandConvert(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeScript(t, dir, "alpha.py", scenarioA)

	res := run(t, "", path)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "get_stock_info('000001.SZ')")
	assert.NotContains(t, res.stdout, "get_security_info")
	assert.Empty(t, res.stderr)
}

func TestConvertToFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeScript(t, dir, "beta.py", scenarioB)
	out := filepath.Join(dir, "ptrade", "beta.py")

	res := run(t, "", "convert", path, "-o", out, "--report", "json")
	require.NoError(t, res.err)
	assert.Empty(t, res.stdout)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "q = None")

	var report struct {
		Script      string `json:"script"`
		Variant     string `json:"variant"`
		Diagnostics []struct {
			Line     int    `json:"line"`
			Severity string `json:"severity"`
			Code     string `json:"code"`
		} `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stderr), &report))
	assert.Equal(t, path, report.Script)
	assert.Equal(t, "generic", report.Variant)
	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, 2, report.Diagnostics[0].Line)
	assert.Equal(t, "warning", report.Diagnostics[0].Severity)
	assert.Equal(t, string(diag.PlaceholderSubstituted), report.Diagnostics[0].Code)
}

func TestConvertStdinTable(t *testing.T) {
	t.Chdir(t.TempDir())
	res := run(t, scenarioB, "convert")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "q = None")
	assert.Contains(t, res.stderr, "SEVERITY")
	assert.Contains(t, res.stderr, "warning")
	assert.Contains(t, res.stderr, string(diag.PlaceholderSubstituted))
}

func TestConvertErrors(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	good := writeScript(t, dir, "good.py", scenarioA)
	bad := writeScript(t, dir, "bad.py", "def f(:\n    pass\n")

	t.Run("parse error", func(t *testing.T) {
		res := run(t, "", "convert", bad)
		var pe *converr.ParseError
		require.True(t, errors.As(res.err, &pe), "got %v", res.err)
		assert.ErrorContains(t, res.err, "convert "+bad)
	})

	t.Run("unknown variant", func(t *testing.T) {
		res := run(t, "", "convert", good, "--variant", "paper")
		var ce *converr.ConfigError
		require.True(t, errors.As(res.err, &ce), "got %v", res.err)
	})

	t.Run("missing input", func(t *testing.T) {
		res := run(t, "", "convert", filepath.Join(dir, "absent.py"))
		assert.ErrorContains(t, res.err, "failed to read input")
	})
}

func TestConvertConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeScript(t, dir, "beta.py", scenarioB)
	writeScript(t, dir, "stratconv.yaml", "variant: live\nreport: yaml\n")

	res := run(t, "", path)
	require.NoError(t, res.err)

	var report struct {
		Variant string `yaml:"variant"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(res.stderr), &report))
	assert.Equal(t, "live", report.Variant)

	// flags win over the file
	res = run(t, "", path, "--variant", "simulation", "--report", "json")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, `"variant": "simulation"`)
}

func TestBatch(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	in := filepath.Join(dir, "strategies")
	writeScript(t, in, "a.py", scenarioA)
	writeScript(t, in, "nested/b.py", scenarioB)
	out := filepath.Join(dir, "out")

	res := run(t, "", "batch", in, "-o", out, "--no-progress", "-p", "2")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "nested/b.py")
	assert.Contains(t, res.stdout, "generic")

	data, err := os.ReadFile(filepath.Join(out, "nested", "b.py"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "q = None")
	_, err = os.Stat(filepath.Join(out, "a.py"))
	assert.NoError(t, err)
}

func TestBatchFailure(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	in := filepath.Join(dir, "strategies")
	writeScript(t, in, "a.py", scenarioA)
	writeScript(t, in, "broken.py", "def f(:\n    pass\n")
	out := filepath.Join(dir, "out")

	res := run(t, "", "batch", in, "-o", out, "--no-progress", "--report", "json")
	assert.EqualError(t, res.err, "1 of 2 scripts failed")

	var report struct {
		RunID   string `json:"run_id"`
		Results []struct {
			Path  string `json:"path"`
			Error string `json:"error"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &report))
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "broken.py", report.Results[1].Path)
	assert.NotEmpty(t, report.Results[1].Error)

	_, err := os.Stat(filepath.Join(out, "broken.py"))
	assert.True(t, os.IsNotExist(err))
}

func TestLoggerClosed(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	good := writeScript(t, dir, "good.py", scenarioA)
	bad := writeScript(t, dir, "bad.py", "def f(:\n    pass\n")
	logFile := filepath.Join(dir, "stratconv.log")

	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"Successful convert", []string{"convert", good}, false},
		{"Failed convert", []string{"convert", bad}, true},
		{"Failed shorthand convert", []string{bad}, true},
		{"Failed batch", []string{"batch", dir, "-o", filepath.Join(dir, "out"), "--no-progress"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &app{}
			cmd := newRootCommand(a)
			cmd.SetArgs(append(tt.args, "--log-file", logFile))
			cmd.SetIn(strings.NewReader(""))
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})

			err := cmd.Execute()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Nil(t, a.log)
		})
	}
}

func TestBatchRequiresOutput(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	res := run(t, "", "batch", dir)
	var ce *converr.ConfigError
	require.True(t, errors.As(res.err, &ce), "got %v", res.err)
	assert.Equal(t, "output_dir", ce.Key)
}

func TestVariants(t *testing.T) {
	res := run(t, "", "variants")
	require.NoError(t, res.err)
	for _, name := range []string{"generic", "simulation", "live", "factor-only", "realtime-data-only"} {
		assert.Contains(t, res.stdout, name)
	}
}

func TestVersion(t *testing.T) {
	res := run(t, "", "version")
	require.NoError(t, res.err)
	assert.Equal(t, "stratconv version dev\n", res.stdout)
}
