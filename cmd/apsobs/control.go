package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/aps-observer/internal/infrastructure/mqtt"
	"github.com/nerrad567/aps-observer/internal/template"
	"github.com/nerrad567/aps-observer/internal/topics"
)

// controlQoS is used for factory control publishes. Exactly-once
// matters for resets and charger toggles.
const controlQoS = 2

var resetWithStorage bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Send a factory reset command",
	Long: `Publishes a reset command to the central control unit. With
--with-storage the high-bay storage content is cleared as well.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		payload := map[string]any{
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"withStorage": resetWithStorage,
		}
		return publishControl(cmd, topics.TopicSetReset, payload)
	},
}

var chargeOn bool

var chargeCmd = &cobra.Command{
	Use:   "charge",
	Short: "Toggle the FTS charger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		payload := map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"charge":    chargeOn,
		}
		return publishControl(cmd, topics.TopicSetCharge, payload)
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetWithStorage, "with-storage", false,
		"also clear high-bay storage content")
	chargeCmd.Flags().BoolVar(&chargeOn, "on", true, "true starts charging, false stops")
}

// publishControl validates a control payload against its template and
// publishes it at QoS 2.
func publishControl(cmd *cobra.Command, topic string, payload map[string]any) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}

	templates := template.NewManager(cfg.Templates.Dir)
	templates.SetLogger(logger)
	result, err := templates.Validate(topic, payload)
	switch {
	case errors.Is(err, template.ErrUnknownTopic):
		// No template for a control topic is a catalog gap, not a
		// reason to refuse the command.
		logger.Warn("no template for control topic", "topic", topic)
	case err != nil:
		return fmt.Errorf("validating payload: %w", err)
	case !result.Valid:
		return fmt.Errorf("payload rejected by template: %s", strings.Join(result.Errors, "; "))
	}

	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	defer client.Close() //nolint:errcheck // Shutdown path

	client.SetLogger(logger)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	if err := client.Publish(topic, body, controlQoS, false); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "published %s\n", topic)
	return nil
}
