package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/aps-observer/internal/gateway"
	"github.com/nerrad567/aps-observer/internal/infrastructure/mqtt"
	"github.com/nerrad567/aps-observer/internal/session"
	"github.com/nerrad567/aps-observer/internal/topics"
)

var recordTier int

var recordCmd = &cobra.Command{
	Use:   "record <label>",
	Short: "Record factory traffic into a session database",
	Long: `Connects to the broker, subscribes at the requested priority tier and
appends every received message to sessions/<label>.db until
interrupted. Stopping drains the write queue, so everything received
before the interrupt is on disk when the command exits.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := args[0]

		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}

		registry, err := topics.NewRegistry()
		if err != nil {
			return fmt.Errorf("building topic registry: %w", err)
		}

		recorder := session.NewRecorder(cfg.Sessions, logger)
		if err := recorder.Start(label); err != nil {
			return fmt.Errorf("starting recording: %w", err)
		}

		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			_ = recorder.StopAll()
			return fmt.Errorf("connecting to broker: %w", err)
		}
		defer client.Close() //nolint:errcheck // Shutdown path

		client.SetLogger(logger)
		client.AddMessageHook(func(msg mqtt.Message) {
			_ = recorder.Record(msg)
		})

		gw := gateway.New(registry, client, byte(cfg.MQTT.QoS), logger)
		handle, err := gw.Register("recorder", recordTier)
		if err != nil {
			_ = recorder.StopAll()
			return fmt.Errorf("subscribing: %w", err)
		}
		defer handle.Close() //nolint:errcheck // Shutdown path

		logger.Info("recording", "label", label, "tier", recordTier)
		<-cmd.Context().Done()

		for _, stats := range recorder.Stats() {
			logger.Info("session summary",
				"label", stats.Label, "recorded", stats.Recorded, "dropped", stats.Dropped)
		}
		if err := recorder.Stop(label); err != nil {
			return fmt.Errorf("stopping recording: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "session %q recorded\n", label)
		return nil
	},
}

func init() {
	recordCmd.Flags().IntVar(&recordTier, "tier", topics.TierAll,
		"priority tier to record (1 critical control .. 6 everything)")
}
