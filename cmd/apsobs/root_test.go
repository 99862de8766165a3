package main

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadConfigFallsBackToDefaults covers running the CLI from a
// directory with no configs/config.yaml: the built-in defaults apply
// instead of a fatal error.
func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skipf("%s exists in the test working directory", defaultConfigPath)
	}

	cfg, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatalf("loadConfig() error = %v, want default fallback", err)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("Broker.Port = %d, want default 1883", cfg.MQTT.Broker.Port)
	}
}

// An explicitly given --config path must exist; no silent fallback.
func TestLoadConfigExplicitPathMustExist(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("loadConfig() expected error for an explicit missing path")
	}
}

func TestLoadConfigReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "mqtt:\n  broker:\n    host: broker.local\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("Broker.Host = %q, want broker.local", cfg.MQTT.Broker.Host)
	}
}
