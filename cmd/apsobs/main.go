// APS Observer - monitoring, recording and replay for the APS model
// factory MQTT estate.
//
// The observer attaches to the factory broker, watches traffic through
// a tiered subscription model, validates payloads against per-topic
// templates, records sessions to SQLite and can replay or analyse them
// later.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0"
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
