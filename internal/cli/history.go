package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sharedlog/internal/history"
	"github.com/roach88/sharedlog/internal/monitor"
)

// HistoryReport is the structured output of history.
type HistoryReport struct {
	Counts   map[string]int    `json:"counts" yaml:"counts"`
	Outcomes []monitor.Outcome `json:"outcomes" yaml:"outcomes"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dbPath string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded monitor checks",
		Long: `Show the checks recorded by "sharedlog monitor --history-db", newest first,
with a count per outcome.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				cfg, err := rootOpts.config(cmd)
				if err != nil {
					return err
				}
				dbPath = cfg.Monitor.HistoryDB
			}
			if dbPath == "" {
				return NewExitError(ExitCommandError, "no history database: pass --history-db or set monitor.history_db")
			}
			return runHistory(rootOpts, dbPath, limit, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "history-db", "", "SQLite database written by the monitor")
	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultLimit, "number of checks to show")

	return cmd
}

func runHistory(opts *RootOptions, dbPath string, limit int, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	st, err := history.Open(dbPath)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeIO, "failed to open history database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	counts, err := st.Counts(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeIO, "failed to read history", err)
	}
	outcomes, err := st.Recent(ctx, limit)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeIO, "failed to read history", err)
	}

	report := HistoryReport{Counts: counts, Outcomes: outcomes}
	return f.Render(report, func(w io.Writer) {
		states := make([]string, 0, len(counts))
		for s := range counts {
			states = append(states, s)
		}
		sort.Strings(states)
		for _, s := range states {
			fmt.Fprintf(w, "%-22s %d\n", s, counts[s])
		}
		if len(outcomes) > 0 {
			fmt.Fprintln(w)
		}
		for _, out := range outcomes {
			fmt.Fprintf(w, "%s  %-22s events=%d", out.Started.UTC().Format(time.RFC3339), out.State, out.Events)
			if out.Restored {
				fmt.Fprint(w, " restored")
			}
			if out.ConsecutiveFailures > 0 {
				fmt.Fprintf(w, " failures=%d", out.ConsecutiveFailures)
			}
			if out.Reason != "" {
				fmt.Fprintf(w, " reason=%q", out.Reason)
			}
			fmt.Fprintln(w)
		}
	})
}
