package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/watch-progress/internal/syncclient"
	"github.com/example/watch-progress/internal/watch"
)

func newGetCommand(opts *cliOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "get <content-id>",
		Short: "Show the stored progress record for a content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := opts.tokenSource()
			if err != nil {
				return err
			}
			log, err := opts.logger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			client := syncclient.New(syncclient.Options{
				BaseURL:   opts.server,
				ContentID: args[0],
				Tokens:    tokens,
				Logger:    log,
			})
			defer client.Close(cmd.Context())

			rec, err := client.Load(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, rec)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderRecord(rec))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Write the record as JSON")
	return cmd
}

func renderRecord(rec watch.Record) string {
	spans := make([]string, 0, len(rec.MergedIntervals))
	for _, iv := range rec.MergedIntervals {
		spans = append(spans, watch.FormatTime(iv.Start)+"-"+watch.FormatTime(iv.End))
	}
	updated := "-"
	if !rec.UpdatedAt.IsZero() {
		updated = rec.UpdatedAt.Format("2006-01-02 15:04:05")
	}
	rows := [][]string{
		{"Content", rec.ContentID},
		{"Watched", strings.Join(spans, ", ")},
		{"Unique seconds", strconv.FormatFloat(rec.TotalUniqueWatchedSeconds, 'f', 1, 64)},
		{"Progress", strconv.FormatFloat(rec.ProgressPercentage, 'f', 1, 64) + "%"},
		{"Last position", watch.FormatTime(rec.LastKnownPosition)},
		{"Duration", watch.FormatTime(rec.ContentDuration)},
		{"Updated", updated},
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}
