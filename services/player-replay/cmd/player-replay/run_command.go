package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/watch-progress/internal/notice"
	"github.com/example/watch-progress/internal/platform/config"
	"github.com/example/watch-progress/internal/player"
	"github.com/example/watch-progress/internal/syncclient"
	"github.com/example/watch-progress/internal/tracker"
	"github.com/example/watch-progress/internal/watch"
)

type replaySummary struct {
	ContentID                 string           `json:"contentId,omitempty"`
	Events                    int              `json:"events"`
	Ignored                   int              `json:"ignored"`
	Unknown                   int              `json:"unknown"`
	Segments                  []watch.Interval `json:"segments"`
	MergedIntervals           []watch.Interval `json:"mergedIntervals"`
	TotalUniqueWatchedSeconds float64          `json:"totalUniqueWatchedSeconds"`
	ProgressPercentage        float64          `json:"progressPercentage"`
	LastContinuousPosition    float64          `json:"lastContinuousPosition"`
	PlayerSeeks               []float64        `json:"playerSeeks"`
	Notices                   []notice.Notice  `json:"notices"`
}

func newRunCommand(opts *cliOptions) *cobra.Command {
	var (
		vendor    string
		contentID string
		tolerance float64
		strict    bool
		offline   bool
		asJSON    bool
		debounce  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run <events.jsonl|->",
		Short: "Replay a player callback log and report watched segments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, closeIn, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeIn()

			adapter, err := player.NewAdapter(vendor)
			if err != nil {
				return err
			}
			log, err := opts.logger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			rec := &notice.Recorder{}
			rp := &recordingPlayer{}
			var summary replaySummary
			if offline {
				summary, err = runOffline(in, adapter, rp, rec, tolerance, strict, log)
			} else {
				if strings.TrimSpace(contentID) == "" {
					return fmt.Errorf("--content is required unless --offline is set")
				}
				summary, err = runOnline(cmd, opts, in, adapter, rp, rec, onlineSettings{
					contentID: contentID,
					tolerance: tolerance,
					strict:    strict,
					debounce:  debounce,
				}, log)
			}
			if err != nil {
				return err
			}
			summary.PlayerSeeks = rp.Seeks()
			summary.Notices = rec.Notices()

			if asJSON {
				return writeJSON(cmd, summary)
			}
			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&vendor, "vendor", player.VendorHTML5, "Callback vocabulary: html5, react-player or youtube")
	cmd.Flags().StringVar(&contentID, "content", "", "Content id to save progress under")
	cmd.Flags().Float64Var(&tolerance, "tolerance", config.Float("PROGRESS_SEEK_TOLERANCE", tracker.DefaultForwardTolerance), "Forward seek tolerance in seconds")
	cmd.Flags().BoolVar(&strict, "strict", false, "Also hold play jumps, ticks and pauses to the seek ceiling")
	cmd.Flags().BoolVar(&offline, "offline", false, "Track locally without contacting the progress service")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write the summary as JSON")
	cmd.Flags().DurationVar(&debounce, "debounce", syncclient.DefaultDebounce, "Save debounce window")
	return cmd
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func runOffline(in io.Reader, adapter player.Adapter, rp *recordingPlayer, rec *notice.Recorder, tolerance float64, strict bool, log *zap.Logger) (replaySummary, error) {
	tr := tracker.New(tracker.Options{
		ForwardTolerance: tolerance,
		Strict:           strict,
		Commander:        rp,
		Notifier:         rec,
		Logger:           log,
	})
	stats, err := replay(in, adapter, tr.Handle)
	if err != nil {
		return replaySummary{}, err
	}
	stats.Segments = append(stats.Segments, tr.Teardown()...)

	st := tr.State()
	s := watch.Summarize(stats.Segments, st.Duration)
	return replaySummary{
		Events:                    stats.Events,
		Ignored:                   stats.Ignored,
		Unknown:                   stats.Unknown,
		Segments:                  nonNil(stats.Segments),
		MergedIntervals:           s.Merged,
		TotalUniqueWatchedSeconds: s.TotalUniqueWatchedSeconds,
		ProgressPercentage:        s.ProgressPercentage,
		LastContinuousPosition:    st.LastContinuousPosition,
	}, nil
}

type onlineSettings struct {
	contentID string
	tolerance float64
	strict    bool
	debounce  time.Duration
}

func runOnline(cmd *cobra.Command, opts *cliOptions, in io.Reader, adapter player.Adapter, rp *recordingPlayer, rec *notice.Recorder, set onlineSettings, log *zap.Logger) (replaySummary, error) {
	tokens, err := opts.tokenSource()
	if err != nil {
		return replaySummary{}, err
	}
	ctx := cmd.Context()
	client := syncclient.New(syncclient.Options{
		BaseURL:   opts.server,
		ContentID: set.contentID,
		Tokens:    tokens,
		Notifier:  rec,
		Logger:    log,
		Debounce:  set.debounce,
	})
	sess := syncclient.NewSession(syncclient.SessionOptions{
		Client:           client,
		Player:           rp,
		Notifier:         rec,
		Logger:           log,
		ForwardTolerance: set.tolerance,
		StrictSequential: set.strict,
	})
	if _, err := sess.Start(ctx); err != nil {
		log.Warn("starting without stored progress", zap.Error(err))
	}

	stats, err := replay(in, adapter, sess.Handle)
	if err != nil {
		return replaySummary{}, err
	}
	stats.Segments = append(stats.Segments, sess.Close(ctx)...)

	local := sess.Local()
	return replaySummary{
		ContentID:                 set.contentID,
		Events:                    stats.Events,
		Ignored:                   stats.Ignored,
		Unknown:                   stats.Unknown,
		Segments:                  nonNil(stats.Segments),
		MergedIntervals:           local.Merged,
		TotalUniqueWatchedSeconds: watch.TotalWatched(local.Merged),
		ProgressPercentage:        local.Percentage,
		LastContinuousPosition:    sess.Tracker().LastContinuousPosition,
	}, nil
}

func printSummary(w io.Writer, s replaySummary) {
	colorize := shouldColorize(w)
	rows := make([][]string, 0, len(s.Segments))
	for i, iv := range s.Segments {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			watch.FormatTime(iv.Start),
			watch.FormatTime(iv.End),
			strconv.FormatFloat(iv.Len(), 'f', 1, 64),
		})
	}
	if len(rows) > 0 {
		fmt.Fprintln(w, renderTable([]string{"#", "Start", "End", "Seconds"}, rows,
			[]columnAlignment{alignRight, alignRight, alignRight, alignRight}))
	}

	merged := make([]string, 0, len(s.MergedIntervals))
	for _, iv := range s.MergedIntervals {
		merged = append(merged, watch.FormatTime(iv.Start)+"-"+watch.FormatTime(iv.End))
	}
	summary := [][]string{
		{"Events", fmt.Sprintf("%d (%d ignored, %d unknown)", s.Events, s.Ignored, s.Unknown)},
		{"Watched", strings.Join(merged, ", ")},
		{"Unique seconds", strconv.FormatFloat(s.TotalUniqueWatchedSeconds, 'f', 1, 64)},
		{"Progress", strconv.FormatFloat(s.ProgressPercentage, 'f', 1, 64) + "%"},
		{"Contiguous to", watch.FormatTime(s.LastContinuousPosition)},
		{"Player seeks", strconv.Itoa(len(s.PlayerSeeks))},
	}
	fmt.Fprintln(w, renderTable([]string{"Field", "Value"}, summary, nil))

	for _, n := range s.Notices {
		fmt.Fprintf(w, "%s %s\n", noticeLabel(string(n.Kind), colorize), n.Message)
	}
}

func nonNil(in []watch.Interval) []watch.Interval {
	if in == nil {
		return []watch.Interval{}
	}
	return in
}
