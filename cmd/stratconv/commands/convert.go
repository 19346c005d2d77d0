package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quant-king299/stratconv/internal/batch"
	"github.com/quant-king299/stratconv/internal/converter"
)

const stdinName = "<stdin>"

func newConvertCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert [file.py]",
		Short: "Convert one strategy script",
		Long: `Convert one strategy script for the selected variant.

The script is read from the argument, or from stdin when it is absent or "-".
The result goes to stdout unless -o is given; diagnostics are reported on
stderr in the --report format.

Examples:
  stratconv convert alpha.py                       # Output to stdout
  stratconv convert alpha.py -o ptrade/alpha.py    # Output to file
  stratconv convert alpha.py --variant simulation  # Pick a target variant
  stratconv alpha.py                               # Shorthand (same as convert)`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.runConvert,
	}
	cmd.Flags().StringVarP(&a.output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (a *app) runConvert(cmd *cobra.Command, args []string) error {
	name := stdinName
	var (
		text []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		text, err = io.ReadAll(cmd.InOrStdin())
	} else {
		name = args[0]
		text, err = os.ReadFile(name)
	}
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	p, err := converter.New(a.cfg.Variant, a.cfg.MappingOverride,
		converter.WithLogger(a.log.With(zap.String("script", name))))
	if err != nil {
		return err
	}
	out, diags, err := p.Convert(string(text))
	if err != nil {
		return fmt.Errorf("convert %s: %w", name, err)
	}

	if a.output == "" {
		if _, err := io.WriteString(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	} else {
		w := batch.NewDirWriter(filepath.Dir(a.output))
		if err := w.Write(filepath.Base(a.output), []byte(out)); err != nil {
			return err
		}
	}
	return renderDiagnostics(cmd.ErrOrStderr(), name, p.Variant().Name, diags, a.cfg.Report)
}
