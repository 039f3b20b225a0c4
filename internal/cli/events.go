package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/sharedlog/internal/eventlog"
)

// EventView is a record with its payload decoded, so every output format
// renders it as a value rather than raw bytes.
type EventView struct {
	Timestamp string `json:"timestamp" yaml:"timestamp"`
	Event     string `json:"event" yaml:"event"`
	Data      any    `json:"data" yaml:"data"`
}

func newEventView(rec eventlog.EventRecord) EventView {
	v := EventView{Timestamp: rec.Timestamp, Event: rec.Event}
	if len(rec.Data) == 0 {
		return v
	}
	dec := json.NewDecoder(bytes.NewReader(rec.Data))
	dec.UseNumber()
	var data any
	if err := dec.Decode(&data); err != nil {
		v.Data = string(rec.Data)
		return v
	}
	v.Data = plainNumbers(data)
	return v
}

// plainNumbers replaces json.Number values with int64 or float64 so that YAML
// renders them as numbers rather than quoted strings. Integers that overflow
// int64 fall back to float64.
func plainNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, e := range x {
			x[k] = plainNumbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = plainNumbers(e)
		}
		return x
	default:
		return v
	}
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	var filter eventlog.Filter

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List events in the log",
		Long: `List events in publication order.

--type keeps events of exactly that type. --since keeps events strictly
newer than the given timestamp.

Example:
  sharedlog events --type workflow_started --since 2026-01-02T15:04:05Z`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(rootOpts, filter, cmd)
		},
	}

	cmd.Flags().StringVarP(&filter.EventType, "type", "t", "", "only events of this type")
	cmd.Flags().StringVar(&filter.Since, "since", "", "only events newer than this timestamp")

	return cmd
}

func runEvents(opts *RootOptions, filter eventlog.Filter, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	st, err := opts.openStore(cmd)
	if err != nil {
		return err
	}

	records, err := st.GetEvents(cmd.Context(), filter)
	if err != nil {
		return storeFailure(f, "failed to read events", err)
	}

	views := make([]EventView, 0, len(records))
	for _, rec := range records {
		views = append(views, newEventView(rec))
	}

	return f.Render(views, func(w io.Writer) {
		for _, rec := range records {
			fmt.Fprintf(w, "%s  %s  %s\n", rec.Timestamp, rec.Event, payloadText(rec.Data))
		}
		f.VerboseLog("%d event(s)", len(records))
	})
}

func payloadText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}
