package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/sharedlog/internal/config"
	"github.com/roach88/sharedlog/internal/eventlog"
)

// DotEnvFile is loaded from the working directory before the config.
const DotEnvFile = ".env"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "text" | "json" | "yaml"
	ConfigFile string
	Path       string // overrides the configured log path when set

	cfg *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the sharedlog CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sharedlog",
		Short: "Shared JSON event log for cooperating agents",
		Long: `sharedlog manages an append-only JSON event log that several processes
publish to and read from, with an integrity monitor that snapshots the log
while it is valid and restores it from the backup when it is corrupted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default ./sharedlog.yaml if present)")
	cmd.PersistentFlags().StringVar(&opts.Path, "path", "", "event log path (overrides config)")

	cmd.AddCommand(NewPublishCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))
	cmd.AddCommand(NewRestoreCommand(opts))
	cmd.AddCommand(NewMonitorCommand(opts))
	cmd.AddCommand(NewRepairCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// config loads the configuration once per invocation, applying flag overrides.
// Failures are reported with ErrCodeConfig.
func (o *RootOptions) config(cmd *cobra.Command) (*config.Config, error) {
	if o.cfg != nil {
		return o.cfg, nil
	}
	f := o.formatter(cmd)
	if err := config.LoadDotEnv(DotEnvFile); err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "failed to load environment file", err)
	}
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	if o.Path != "" {
		cfg.Path = o.Path
	}
	if err := cfg.Validate(); err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	o.cfg = cfg
	return cfg, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	format := o.Format
	if !isValidFormat(format) {
		format = "text"
	}
	return &OutputFormatter{
		Format:    format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// logger writes text logs to the command's stderr, at Debug level with --verbose.
func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) openStore(cmd *cobra.Command) (*eventlog.Store, error) {
	cfg, err := o.config(cmd)
	if err != nil {
		return nil, err
	}
	st, err := eventlog.Open(cfg.Path,
		eventlog.WithLockTimeout(cfg.Lock.Timeout),
		eventlog.WithLogger(o.logger(cmd)),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open event log", err)
	}
	return st, nil
}

// storeFailure maps a store error to an exit code: corruption is a failure of
// the log itself, anything else is an operational error.
func storeFailure(f *OutputFormatter, message string, err error) error {
	if eventlog.IsCorruption(err) {
		return f.Fail(ExitFailure, ErrCodeInvalidLog,
			message+": event log is corrupt (run restore or repair)", err)
	}
	return f.Fail(ExitCommandError, ErrCodeIO, message, err)
}
