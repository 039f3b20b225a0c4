package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/sharedlog/internal/repair"
)

// RepairOptions holds flags for the repair command.
type RepairOptions struct {
	*RootOptions
	Input  string
	Output string
	Tail   int
}

// RepairReport is the structured output of repair.
type RepairReport struct {
	Result *repair.Result `json:"result" yaml:"result"`
	Tail   []string       `json:"tail,omitempty" yaml:"tail,omitempty"`
}

// RepairFailure is the error detail of a failed repair: the cause and the
// input's last lines.
type RepairFailure struct {
	Cause string   `json:"cause" yaml:"cause"`
	Tail  []string `json:"tail,omitempty" yaml:"tail,omitempty"`
}

// NewRepairCommand creates the repair command.
func NewRepairCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RepairOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Recover the intact records of a damaged log",
		Long: `Recover every complete record from a truncated or corrupted log.

The recovered log is written to --output (default <input>.recovered) and
validated. The input is never modified; inspect the output and move it into
place by hand. The last lines of the input are printed for diagnosis.

Example:
  sharedlog repair
  sharedlog repair --input shared/shared_context.json.backup --output /tmp/fixed.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.config(cmd)
			if err != nil {
				return err
			}
			if opts.Input == "" {
				opts.Input = cfg.Path
			}
			if !cmd.Flags().Changed("tail") {
				opts.Tail = cfg.Repair.TailLines
			}
			return runRepair(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "damaged log (default: the configured log)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "recovered log (default: <input>.recovered)")
	cmd.Flags().IntVar(&opts.Tail, "tail", 20, "print this many trailing lines of the input")

	return cmd
}

func runRepair(opts *RepairOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	tail, err := repair.Tail(opts.Input, opts.Tail)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeIO, "cannot read input", err)
	}

	res, err := repair.RepairFile(opts.Input, opts.Output)
	switch {
	case errors.Is(err, repair.ErrSameFile):
		return f.Fail(ExitCommandError, ErrCodeBadInput, "output must differ from input", err)
	case errors.Is(err, repair.ErrNotEventLog), errors.Is(err, repair.ErrNoEventsArray):
		return failWithTail(f, ExitFailure, ErrCodeRepairFailed, "nothing recoverable", err, opts.Input, tail)
	case errors.Is(err, repair.ErrInvalidOutput):
		return failWithTail(f, ExitFailure, ErrCodeRepairFailed, "recovered log is not usable", err, opts.Input, tail)
	case err != nil:
		return failWithTail(f, ExitCommandError, ErrCodeIO, "repair failed", err, opts.Input, tail)
	}

	report := RepairReport{Result: res, Tail: tail}
	return f.Render(report, func(w io.Writer) {
		writeTail(w, res.Source, tail)
		if res.Complete {
			fmt.Fprintf(w, "%s was intact: %d record(s) copied\n", res.Source, res.Kept)
		} else {
			fmt.Fprintf(w, "Recovered %d record(s); dropped the rest after byte %d\n", res.Kept, res.Offset)
			fmt.Fprintf(w, "  %s\n", res.Reason)
		}
		fmt.Fprintf(w, "✓ wrote %s\n", res.Output)
		fmt.Fprintln(w, "Review it, then move it over the log to apply.")
	})
}

// failWithTail reports a failed repair along with the input's last lines,
// which are the operator's starting point for fixing the file by hand.
func failWithTail(f *OutputFormatter, exitCode int, code, message string, err error, input string, tail []string) error {
	if !f.structured() {
		writeTail(f.Writer, input, tail)
		return f.Fail(exitCode, code, message, err)
	}
	_ = f.Error(code, message, RepairFailure{Cause: err.Error(), Tail: tail})
	return WrapExitError(exitCode, message, err)
}

func writeTail(w io.Writer, input string, tail []string) {
	if len(tail) == 0 {
		return
	}
	fmt.Fprintf(w, "Last %d line(s) of %s:\n", len(tail), input)
	for _, line := range tail {
		fmt.Fprintf(w, "  | %s\n", line)
	}
	fmt.Fprintln(w)
}
