package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "stats",
		Short:         "Summarize the log",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)

			st, err := rootOpts.openStore(cmd)
			if err != nil {
				return err
			}
			stats, err := st.Stats(cmd.Context())
			if err != nil {
				return storeFailure(f, "failed to read events", err)
			}

			return f.Render(stats, func(w io.Writer) {
				fmt.Fprintf(w, "events: %d\n", stats.Count)
				if stats.Count == 0 {
					return
				}
				fmt.Fprintf(w, "first:  %s\n", stats.First)
				fmt.Fprintf(w, "last:   %s\n", stats.Last)
				for _, typ := range stats.Types {
					fmt.Fprintf(w, "  %-24s %d\n", typ, stats.ByType[typ])
				}
			})
		},
	}
}
