package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/aps-observer/internal/infrastructure/config"
	"github.com/nerrad567/aps-observer/internal/infrastructure/logging"
)

// defaultConfigPath is used when --config is not given.
const defaultConfigPath = "configs/config.yaml"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "apsobs",
	Short:         "Observer for the APS model factory MQTT estate",
	Long:          "apsobs watches, records, replays and analyses MQTT traffic from the APS model factory.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to the YAML configuration file")

	rootCmd.AddCommand(observeCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(chargeCmd)
}

// loadRuntime loads configuration and builds the logger every command
// starts from. Configuration errors are fatal before any broker or
// file I/O happens.
func loadRuntime() (*config.Config, *logging.Logger, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger := logging.New(cfg.Logging, version)
	return cfg, logger, nil
}

// loadConfig reads the configuration file. When the user never pointed
// --config anywhere and the default file is absent, the built-in
// defaults apply so the CLI works against a local broker out of the box.
// An explicitly given path must exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == defaultConfigPath && errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, err
}
