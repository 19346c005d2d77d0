package commands

import (
	"fmt"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/quant-king299/stratconv/converr"
	"github.com/quant-king299/stratconv/internal/batch"
	"github.com/quant-king299/stratconv/internal/config"
	"github.com/quant-king299/stratconv/internal/converter"
	"github.com/quant-king299/stratconv/internal/source"
)

type batchOptions struct {
	gitRev     string
	subdir     string
	noProgress bool
}

func newBatchCmd(a *app) *cobra.Command {
	opts := &batchOptions{}
	cmd := &cobra.Command{
		Use:   "batch <dir|repo> -o <outdir>",
		Short: "Convert every script under a directory or git revision",
		Long: `Convert every *.py script under a directory, or in a git repository at a
revision, writing each result to the same relative path under the output
directory. A script that fails is reported and leaves no output; the command
then exits with status 1.

Examples:
  stratconv batch strategies -o out
  stratconv batch . --git-rev v1.2.0 --subdir strategies -o out
  stratconv batch https://github.com/org/strategies.git --git-rev main -o out`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd, args[0], opts)
		},
	}
	f := cmd.Flags()
	bindable(f, "output", "o", "", "output directory", config.OutputDirKey)
	f.IntP("parallel", "p", config.DefaultParallel, "scripts converted concurrently")
	annotate(f, "parallel", config.ParallelKey)
	f.StringVar(&opts.gitRev, "git-rev", "", "read scripts from this tag, branch or commit")
	f.StringVar(&opts.subdir, "subdir", "", "only convert scripts under this subdirectory")
	f.BoolVar(&opts.noProgress, "no-progress", false, "do not draw a progress bar")
	return cmd
}

func (a *app) runBatch(cmd *cobra.Command, target string, opts *batchOptions) error {
	if a.cfg.OutputDir == "" {
		return converr.NewConfigErrorFor(config.OutputDirKey, "an output directory is required (-o)")
	}

	var src source.Source
	if opts.gitRev != "" {
		src = source.NewGitRevision(target, opts.gitRev, opts.subdir)
	} else {
		src = source.NewDir(filepath.Join(target, filepath.FromSlash(opts.subdir)))
	}

	p, err := converter.New(a.cfg.Variant, a.cfg.MappingOverride, converter.WithLogger(a.log.Logger))
	if err != nil {
		return err
	}

	runOpts := []batch.Option{
		batch.WithSink(batch.NewDirWriter(a.cfg.OutputDir)),
		batch.WithParallel(a.cfg.Parallel),
		batch.WithVariant(p.Variant().Name),
		batch.WithLogger(a.log.Logger),
	}
	var bar *progressbar.ProgressBar
	if !opts.noProgress {
		runOpts = append(runOpts, batch.WithProgress(func(_ batch.Result, done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionSetDescription("Converting"),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish())
			}
			_ = bar.Set(done)
		}))
	}

	report, err := batch.New(p, runOpts...).Run(cmd.Context(), src)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}
	if err := renderBatch(cmd.OutOrStdout(), report, a.cfg.Report); err != nil {
		return err
	}
	if n := report.Failed(); n > 0 {
		return fmt.Errorf("%d of %d scripts failed", n, len(report.Results))
	}
	return nil
}
