package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/sharedlog/internal/integrity"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Check that a file is a well-formed event log",
		Long: `Check that a file parses as an event log document.

Defaults to the configured log. Any file can be checked, e.g. the backup or
a repair output. Exits 1 when the file is missing or invalid.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := rootOpts.config(cmd)
				if err != nil {
					return err
				}
				path = cfg.Path
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	report := integrity.Check(path)
	formatter.VerboseLog("checked %s (%d bytes)", path, report.Size)

	if err := formatter.Render(report, func(w io.Writer) { printReport(w, report) }); err != nil {
		return err
	}

	if !report.Valid {
		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%s is not a valid event log: %s", path, report.Reason))
	}
	return nil
}

func printReport(w io.Writer, r integrity.Report) {
	if r.Valid {
		fmt.Fprintf(w, "✓ %s is valid (%d events)\n", r.Path, r.Events)
		return
	}
	fmt.Fprintf(w, "✗ %s is invalid\n", r.Path)
	fmt.Fprintf(w, "  %s\n", r.Reason)
}
