package cmd

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"bisection/internal/config"
	"bisection/internal/logging"
	"bisection/internal/store"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// app holds state shared by all subcommands once flags are parsed
type app struct {
	cfgPath   string
	logLevel  string
	evaluator string
	noColor   bool

	cfg *config.Config
}

// NewRootCommand creates and returns the root cobra command for bisect
func NewRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "bisect",
		Short: "Bisection root finder for f(x) = 0",
		Long: `bisect finds a root of a single-variable function with the bisection method.

Give it f(x), a bracket [xl, xr] where f changes sign, and a relative
tolerance; it prints the root estimate, the iteration count and the
per-iteration trace. It can also run as an HTTP service with live
iteration streaming.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgPath, "config", "bisect.yaml", "path to YAML config (missing file means defaults)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	flags.StringVar(&a.evaluator, "evaluator", "", "expression engine: govaluate or expr (overrides config)")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(newSolveCommand(a))
	cmd.AddCommand(newServeCommand(a))
	cmd.AddCommand(newBatchCommand(a))
	cmd.AddCommand(newHistoryCommand(a))

	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.cfgPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.evaluator != "" {
		cfg.Evaluator = a.evaluator
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg

	logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())

	if a.noColor || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
	return nil
}

// openHistory opens the run history, or returns nil when it is disabled
func (a *app) openHistory() (*store.Store, error) {
	if a.cfg.DBPath == "" {
		return nil, nil
	}
	return store.NewStore(a.cfg.DBPath)
}
