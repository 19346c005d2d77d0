package converter_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bazelbuild/rules_go/go/tools/bazel"
	"github.com/stretchr/testify/require"
)

// readTestdata loads a script from testdata. Under Bazel the file comes from
// the runfiles tree; otherwise it is read relative to the package directory.
func readTestdata(t *testing.T, name string) string {
	t.Helper()
	path, err := bazel.Runfile(filepath.Join("internal", "converter", "testdata", name))
	if err != nil {
		path = filepath.Join("testdata", name)
	} else if _, statErr := os.Stat(path); statErr != nil {
		path = filepath.Join("testdata", name)
	}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
