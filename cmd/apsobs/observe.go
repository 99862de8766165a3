package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/aps-observer/internal/api"
	"github.com/nerrad567/aps-observer/internal/gateway"
	"github.com/nerrad567/aps-observer/internal/infrastructure/config"
	"github.com/nerrad567/aps-observer/internal/infrastructure/logging"
	"github.com/nerrad567/aps-observer/internal/infrastructure/mqtt"
	"github.com/nerrad567/aps-observer/internal/infrastructure/tsdb"
	"github.com/nerrad567/aps-observer/internal/orders"
	"github.com/nerrad567/aps-observer/internal/refresh"
	"github.com/nerrad567/aps-observer/internal/session"
	"github.com/nerrad567/aps-observer/internal/template"
	"github.com/nerrad567/aps-observer/internal/topics"
)

var observeTier int

var observeCmd = &cobra.Command{
	Use:   "observe",
	Short: "Watch live factory traffic",
	Long: `Connects to the broker, subscribes at the requested priority tier and
watches traffic until interrupted. Payloads are validated against the
template catalog, order lifecycles are tracked, and the optional
status API and telemetry mirror run when enabled in configuration.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}

		registry, err := topics.NewRegistry()
		if err != nil {
			return fmt.Errorf("building topic registry: %w", err)
		}

		templates := template.NewManager(cfg.Templates.Dir)
		templates.SetLogger(logger)
		if err := templates.Load(); err != nil {
			return fmt.Errorf("loading templates: %w", err)
		}

		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to broker: %w", err)
		}
		defer client.Close() //nolint:errcheck // Shutdown path

		client.SetLogger(logger)

		tracker := orders.NewTracker(logger)
		notifier := refresh.New(client, "apsobs", logger)
		mon := newMonitor(templates, tracker, notifier, logger)

		if cfg.InfluxDB.Enabled {
			ts, err := tsdb.Connect(cfg.InfluxDB)
			if err != nil {
				return fmt.Errorf("connecting telemetry mirror: %w", err)
			}
			defer ts.Close() //nolint:errcheck // Shutdown path
			ts.SetOnError(func(err error) {
				logger.Warn("telemetry write failed", "error", err)
			})
			mon.mirror = tsdb.NewMirror(ts, logger)
		}

		// The hook only enqueues; validation, tracking, mirroring and
		// refresh publishing all happen on the monitor's worker.
		client.AddMessageHook(mon.enqueue)
		go mon.run(cmd.Context())

		gw := gateway.New(registry, client, byte(cfg.MQTT.QoS), logger)
		handle, err := gw.Register("observer", observeTier)
		if err != nil {
			return fmt.Errorf("subscribing: %w", err)
		}
		defer handle.Close() //nolint:errcheck // Shutdown path

		recorder := session.NewRecorder(cfg.Sessions, logger)
		if err := startStatusAPI(cmd, cfg, logger, client, recorder); err != nil {
			return err
		}

		logger.Info("observing", "tier", observeTier, "filters", len(handle.Filters()))
		<-cmd.Context().Done()
		if d := mon.dropped.Load(); d > 0 {
			logger.Warn("monitor queue overflowed", "dropped", d)
		}
		logger.Info("shutting down")
		return nil
	},
}

func init() {
	observeCmd.Flags().IntVar(&observeTier, "tier", topics.TierState,
		"priority tier to subscribe to (1 critical control .. 6 everything)")
}

// validatePayload checks a JSON object payload against its template and
// logs violations. Non-JSON payloads and unknown topics are not errors.
func validatePayload(templates *template.Manager, logger *logging.Logger, msg mqtt.Message) {
	var payload map[string]any
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return
	}

	result, err := templates.Validate(msg.Topic, payload)
	if err != nil {
		if !errors.Is(err, template.ErrUnknownTopic) {
			logger.Warn("template validation unavailable", "topic", msg.Topic, "error", err)
		}
		return
	}

	if !result.Valid {
		logger.Warn("payload violates template",
			"topic", msg.Topic, "errors", strings.Join(result.Errors, "; "))
	}
	for _, warning := range result.Warnings {
		logger.Debug("payload warning", "topic", msg.Topic, "warning", warning)
	}
}

// startStatusAPI launches the read-only HTTP surface when enabled.
func startStatusAPI(cmd *cobra.Command, cfg *config.Config, logger *logging.Logger, client *mqtt.Client, recorder *session.Recorder) error {
	if !cfg.StatusAPI.Enabled {
		return nil
	}

	srv, err := api.New(api.Deps{
		Config:       cfg.StatusAPI,
		Logger:       logger,
		Broker:       client,
		Recorder:     recorder,
		SessionsRoot: cfg.Sessions.Root,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("building status API: %w", err)
	}
	if err := srv.Start(cmd.Context()); err != nil {
		return fmt.Errorf("starting status API: %w", err)
	}
	go func() {
		<-cmd.Context().Done()
		_ = srv.Close()
	}()
	return nil
}
