// Package commands provides the CLI commands for the stratconv tool.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/quant-king299/stratconv/internal/config"
	"github.com/quant-king299/stratconv/internal/logging"
	"github.com/quant-king299/stratconv/internal/source"
)

// configKeyAnnotation ties a flag to the config key it overrides.
const configKeyAnnotation = "stratconv_config_key"

const rootLongDescription = `stratconv converts JoinQuant-style strategy scripts into PTrade-style
scripts for one of several target platform variants.

Usage:
  stratconv [file.py]                 Convert a script (shorthand)
  stratconv convert file.py -o out.py Convert with explicit output
  stratconv batch strategies -o out   Convert every script under a directory
  stratconv variants                  List target variants
  stratconv version                   Print version

Settings are read from ./stratconv.yaml (or --config), STRATCONV_* environment
variables and flags, in increasing priority.`

// app carries state shared by the commands of one invocation.
type app struct {
	cfgFile string
	output  string

	v   *viper.Viper
	cfg *config.Config
	log *logging.Logger
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "stratconv [file.py]",
		Short:         "JoinQuant to PTrade strategy converter",
		Long:          rootLongDescription,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
		// Convert by default if a script is given as argument
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			if strings.HasSuffix(args[0], source.ScriptExt) || args[0] == "-" {
				return a.runConvert(cmd, args)
			}
			return fmt.Errorf("unknown command %q for \"stratconv\"\nRun 'stratconv --help' for usage", args[0])
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ./stratconv.yaml)")
	bindable(pf, "variant", "", config.DefaultVariant, "target variant", config.VariantKey)
	bindable(pf, "mapping", "m", "", "call-mapping override file (YAML or JSON)", config.MappingKey)
	bindable(pf, "report", "", config.DefaultReport, "diagnostics format: table, json or yaml", config.ReportKey)
	bindable(pf, "log-level", "", "warn", "log level: debug, info, warn or error", config.LogLevelKey)
	bindable(pf, "log-file", "", "", "also write JSON logs to this rotated file", config.LogFileKey)

	root.Flags().StringVarP(&a.output, "output", "o", "", "output file (default stdout)")

	root.AddCommand(newConvertCmd(a))
	root.AddCommand(newBatchCmd(a))
	root.AddCommand(newVariantsCmd())
	root.AddCommand(newVersionCmd())

	a.closeOnError(root)
	for _, c := range root.Commands() {
		a.closeOnError(c)
	}
	return root
}

// Execute runs the root command. It is called by main.main.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// bindable declares a string flag that overrides config key.
func bindable(fs *pflag.FlagSet, name, short, value, usage, key string) {
	fs.StringP(name, short, value, usage)
	annotate(fs, name, key)
}

func annotate(fs *pflag.FlagSet, name, key string) {
	cobra.CheckErr(fs.SetAnnotation(name, configKeyAnnotation, []string{key}))
}

// setup loads the configuration with the invoked command's flags bound over
// it and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.v = config.New(a.cfgFile)

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys, ok := f.Annotations[configKeyAnnotation]
		if !ok || bindErr != nil {
			return
		}
		bindErr = a.v.BindPFlag(keys[0], f)
	})
	if bindErr != nil {
		return bindErr
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log
	return nil
}

func (a *app) teardown(*cobra.Command, []string) error {
	if a.log == nil {
		return nil
	}
	log := a.log
	a.log = nil
	return log.Close()
}

// closeOnError closes the logger when c fails. Cobra skips the post-run hooks
// once RunE has returned an error.
func (a *app) closeOnError(c *cobra.Command) {
	run := c.RunE
	if run == nil {
		return
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		err := run(cmd, args)
		if err != nil {
			// the command's own error is the one reported
			_ = a.teardown(cmd, args)
		}
		return err
	}
}

// noSetup replaces setup for commands that need no configuration.
func noSetup(*cobra.Command, []string) error { return nil }
