package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errThresholdsFailed makes the process exit non-zero after the summary has
// already reported which thresholds failed.
var errThresholdsFailed = errors.New("one or more thresholds failed")

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	logLevel  string
	logFormat string
	noColor   bool

	logger *zap.Logger
}

// newRootCmd builds the command tree. Each call returns an independent tree
// so flag state never leaks between invocations.
func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:     "kvlunge",
		Short:   "Load and correctness testing for key-value HTTP services",
		Version: version,
		Long: `kvlunge drives a key-value HTTP service with concurrent virtual users and
verifies every response while the service is under load. Each iteration
writes a key, reads it back, optionally batch-reads it next to a missing key,
deletes it and checks that the delete took effect.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(opts.logLevel, opts.logFormat, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "console", "Log format (console, json)")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newKVCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return execute(newRootCmd(), os.Args[1:], os.Stderr)
}

func execute(cmd *cobra.Command, args []string, stderr io.Writer) error {
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err != nil && !errors.Is(err, errThresholdsFailed) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return err
}
