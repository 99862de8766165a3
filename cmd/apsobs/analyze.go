package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/aps-observer/internal/session"
)

var (
	analyzePattern  string
	analyzePrefix   string
	analyzeTopic    string
	analyzeModule   string
	analyzeLabel    string
	analyzeTimeline bool
	analyzeLimit    int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Query a recorded session database",
	Long: `Runs read-only queries against a session database: total and
per-topic counts, first occurrence per topic, and an optional filtered
timeline. The session file is never modified and may still be
recording.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		analyzer, err := session.NewAnalyzer(args[0])
		if err != nil {
			return fmt.Errorf("opening session: %w", err)
		}
		defer analyzer.Close() //nolint:errcheck // Read-only handle

		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		total, err := analyzer.MessageCount(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "messages: %d\n", total)

		if analyzePrefix != "" {
			n, err := analyzer.CountByPrefix(ctx, analyzePrefix)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "matching prefix %q: %d\n", analyzePrefix, n)
		}
		if analyzePattern != "" {
			n, err := analyzer.CountByPattern(ctx, analyzePattern)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "matching filter %q: %d\n", analyzePattern, n)
		}

		counts, err := analyzer.TopicCounts(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\ntopics (%d distinct):\n", len(counts))
		for _, tc := range counts {
			fmt.Fprintf(out, "  %8d  %s\n", tc.Count, tc.Topic)
		}

		first, err := analyzer.FirstOccurrences(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nfirst seen:\n")
		for _, fs := range first {
			fmt.Fprintf(out, "  %s  %s\n", fs.Timestamp.UTC().Format(time.RFC3339), fs.Topic)
		}

		if analyzeTimeline {
			rows, err := analyzer.Timeline(ctx, session.TimelineFilter{
				Label:      analyzeLabel,
				Topic:      analyzeTopic,
				ModuleLike: analyzeModule,
				Limit:      analyzeLimit,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\ntimeline (%d rows):\n", len(rows))
			for _, row := range rows {
				fmt.Fprintf(out, "  %s  q%d  %-40s  %s\n",
					row.Timestamp.UTC().Format(time.RFC3339), row.QoS, row.Topic, row.Payload)
			}
		}

		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzePrefix, "prefix", "", "count messages whose topic starts with this prefix")
	analyzeCmd.Flags().StringVar(&analyzePattern, "pattern", "", "count messages matching this MQTT filter")
	analyzeCmd.Flags().BoolVar(&analyzeTimeline, "timeline", false, "print the filtered message timeline")
	analyzeCmd.Flags().StringVar(&analyzeTopic, "topic", "", "timeline: restrict to an exact topic")
	analyzeCmd.Flags().StringVar(&analyzeModule, "module", "", "timeline: restrict to topics containing this substring")
	analyzeCmd.Flags().StringVar(&analyzeLabel, "label", "", "timeline: restrict to one session label")
	analyzeCmd.Flags().IntVar(&analyzeLimit, "limit", 100, "timeline: maximum rows to print")
}
