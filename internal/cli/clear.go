package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all events from the log",
		Long: `Replace the log with an empty one.

Clearing works on a corrupt log too. The backup is left alone.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)

			st, err := rootOpts.openStore(cmd)
			if err != nil {
				return err
			}
			if err := st.ClearEvents(cmd.Context()); err != nil {
				return storeFailure(f, "failed to clear events", err)
			}

			return f.Render(map[string]string{"path": st.Path()}, func(w io.Writer) {
				fmt.Fprintf(w, "cleared %s\n", st.Path())
			})
		},
	}
}
