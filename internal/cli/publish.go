package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// PublishResult is the structured output of publish.
type PublishResult struct {
	Event string `json:"event" yaml:"event"`
	Path  string `json:"path" yaml:"path"`
}

// NewPublishCommand creates the publish command.
func NewPublishCommand(rootOpts *RootOptions) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "publish <event>",
		Short: "Append an event to the log",
		Long: `Append a timestamped event to the shared log.

The payload is any JSON value and is stored as given. Without --data the
payload is null.

Example:
  sharedlog publish workflow_started --data '{"id": 1}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(rootOpts, args[0], data, cmd)
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON payload")

	return cmd
}

func runPublish(opts *RootOptions, event, data string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	var payload any
	if data != "" {
		if !json.Valid([]byte(data)) {
			return f.Fail(ExitCommandError, ErrCodeBadInput, "--data is not valid JSON", nil)
		}
		payload = json.RawMessage(data)
	}

	st, err := opts.openStore(cmd)
	if err != nil {
		return err
	}

	if err := st.Publish(cmd.Context(), event, payload); err != nil {
		return storeFailure(f, "failed to publish", err)
	}

	return f.Render(PublishResult{Event: event, Path: st.Path()}, func(w io.Writer) {
		fmt.Fprintf(w, "published %s to %s\n", event, st.Path())
	})
}
