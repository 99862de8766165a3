package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/aps-observer/internal/infrastructure/mqtt"
	"github.com/nerrad567/aps-observer/internal/session"
)

var (
	replaySpeed        float64
	replayKeepRetained bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Replay a recorded session onto the broker",
	Long: `Republishes every message from a session database in ascending
timestamp order, preserving original topics, payloads and QoS.
Inter-message timing is scaled by --speed; 0 replays as fast as
possible. Retain flags are stripped unless --keep-retained is given,
so a replay cannot overwrite the broker's live retained state.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}

		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to broker: %w", err)
		}
		defer client.Close() //nolint:errcheck // Shutdown path

		client.SetLogger(logger)

		replayer, err := session.NewReplayer(args[0], client, session.ReplayOptions{
			Speed:        replaySpeed,
			KeepRetained: replayKeepRetained,
		}, logger)
		if err != nil {
			return fmt.Errorf("opening session: %w", err)
		}
		defer replayer.Close() //nolint:errcheck // Shutdown path

		stats, err := replayer.Replay(cmd.Context())
		if err != nil {
			return fmt.Errorf("replaying session: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "replayed %d messages (%d skipped, %d retried)\n",
			stats.Published, stats.Skipped, stats.Retried)
		return nil
	},
}

func init() {
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0,
		"time compression factor; 0 replays flat out")
	replayCmd.Flags().BoolVar(&replayKeepRetained, "keep-retained", false,
		"preserve recorded retain flags on republish")
}
