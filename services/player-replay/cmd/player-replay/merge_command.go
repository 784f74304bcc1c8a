package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/example/watch-progress/internal/watch"
)

func newMergeCommand() *cobra.Command {
	var (
		duration float64
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "merge [intervals.json|-]",
		Short: "Merge a JSON array of intervals and report coverage",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			in, closeIn, err := openInput(cmd, path)
			if err != nil {
				return err
			}
			defer closeIn()

			data, err := io.ReadAll(in)
			if err != nil {
				return err
			}
			var intervals []watch.Interval
			if err := json.Unmarshal(data, &intervals); err != nil {
				return fmt.Errorf("decode intervals: %w", err)
			}

			s := watch.Summarize(intervals, duration)
			if asJSON {
				return writeJSON(cmd, s)
			}
			rows := make([][]string, 0, len(s.Merged)+1)
			for _, iv := range s.Merged {
				rows = append(rows, []string{
					watch.FormatTime(iv.Start),
					watch.FormatTime(iv.End),
					strconv.FormatFloat(iv.Len(), 'f', 1, 64),
				})
			}
			rows = append(rows, []string{"", "total", strconv.FormatFloat(s.TotalUniqueWatchedSeconds, 'f', 1, 64)})
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Start", "End", "Seconds"}, rows,
				[]columnAlignment{alignRight, alignRight, alignRight}))
			fmt.Fprintf(cmd.OutOrStdout(), "progress: %s%%\n", strconv.FormatFloat(s.ProgressPercentage, 'f', 1, 64))
			return nil
		},
	}

	cmd.Flags().Float64Var(&duration, "duration", 0, "Content duration in seconds")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write the summary as JSON")
	return cmd
}
