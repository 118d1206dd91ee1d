// Package cli defines the cobra command trees of trashtrim and trashtrim-query.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trashtrim/internal/config"
	"trashtrim/internal/exitcodes"
	"trashtrim/internal/history"
	"trashtrim/internal/logging"
	"trashtrim/internal/runner"
	"trashtrim/internal/safety"
)

// ConfigError marks bad flags or arguments
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

// runtimeError marks failures after the options were accepted
type runtimeError struct {
	err error
}

func (e *runtimeError) Error() string { return e.err.Error() }
func (e *runtimeError) Unwrap() error { return e.err }

// Execute runs trashtrim with args and returns the process exit code
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitcodes.Success
	}
	fmt.Fprintf(stderr, "trashtrim: %s\n", err)
	return exitCode(err)
}

func exitCode(err error) int {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return exitcodes.InvalidConfig
	}
	for _, target := range []error{
		safety.ErrProtectedPath,
		safety.ErrSymlinkEscape,
		safety.ErrOutsideRoot,
		safety.ErrTraversal,
	} {
		if errors.Is(err, target) {
			return exitcodes.SafetyViolation
		}
	}
	var rtErr *runtimeError
	if errors.As(err, &rtErr) {
		return exitcodes.RuntimeError
	}
	// cobra usage errors: unknown command, bad flag
	return exitcodes.InvalidConfig
}

type app struct {
	opts   config.Options
	stdout io.Writer
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	a := &app{stdout: stdout}

	root := &cobra.Command{
		Use:   "trashtrim",
		Short: "Quarantine duplicate downloads and strip advert markers from file names",
		Long: `trashtrim walks a directory tree with a pool of workers.

  del   moves files ending in the duplicate marker into <path>/trash
  trim  renames files whose names contain a known advert marker

Hidden entries, symlinks and anything under a trash directory are never touched.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ConfigError{Err: err}
	})

	flags := root.PersistentFlags()
	flags.StringVarP(&a.opts.Root, "path", "p", "", "Directory tree to process (required)")
	flags.IntVarP(&a.opts.Workers, "workers", "w", 0, "Worker pool size (default: number of CPUs)")
	flags.BoolVar(&a.opts.DryRun, "dry-run", false, "Report what would happen without touching files")
	flags.BoolVar(&a.opts.Strict, "strict", false, "Stop the run at the first failed move or rename")
	flags.StringVar(&a.opts.HistoryPath, "history", "", "Record every action in this sqlite database")
	flags.StringVar(&a.opts.MetricsFile, "metrics-file", "", "Write prometheus metrics to this textfile after the run")
	flags.StringVar(&a.opts.Logging.File, "log-file", "", "Also write JSON logs to this file")
	flags.Float64Var(&a.opts.RateLimit, "rate", 0, "Max file moves or renames per second (0 = unlimited)")
	flags.BoolVarP(&a.opts.Logging.Debug, "debug", "v", false, "Verbose diagnostics on stderr")

	root.AddCommand(a.newDelCmd(), a.newTrimCmd())
	return root
}

func (a *app) newDelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "del",
		Short: "Move duplicate downloads into the trash directory",
		Args:  configArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), config.ModeDelete)
		},
	}
	cmd.Flags().StringVar(&a.opts.Suffix, "suffix", config.DefaultDeleteSuffix, "Name suffix that marks a duplicate")
	return cmd
}

func (a *app) newTrimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trim [VCHAR]",
		Short: "Strip advert markers from file names",
		Long: `Strip advert markers from file names.

VCHAR, when given, is tried before the built-in markers.`,
		Args: configArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				a.opts.Override = args[0]
			}
			return a.run(cmd.Context(), config.ModeTrim)
		},
	}
}

func configArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &ConfigError{Err: err}
		}
		return nil
	}
}

func (a *app) run(ctx context.Context, mode config.Mode) error {
	opts := a.opts
	opts.Mode = mode
	if err := opts.Validate(); err != nil {
		return &ConfigError{Err: err}
	}

	logger, err := logging.New(opts.Logging)
	if err != nil {
		return &runtimeError{err: fmt.Errorf("init logging: %w", err)}
	}
	defer func() { _ = logger.Sync() }()

	sink := &textSink{w: a.stdout, dryRun: opts.DryRun}
	r := runner.New(opts, logger, sink)

	if opts.HistoryPath != "" {
		db, err := history.Open(opts.HistoryPath)
		if err != nil {
			return &runtimeError{err: err}
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("failed to close history", zap.Error(err))
			}
		}()
		r.History = db
	}

	sum, runErr := r.Run(ctx)
	if sum.Started {
		sink.Summary(sum)
	}

	if opts.MetricsFile != "" && sum.Started {
		if err := r.Metrics.WriteTextfile(opts.MetricsFile); err != nil {
			logger.Warn("failed to write metrics", zap.String("path", opts.MetricsFile), zap.Error(err))
		}
	}

	if runErr != nil {
		return &runtimeError{err: runErr}
	}
	return nil
}
