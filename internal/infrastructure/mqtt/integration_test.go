//go:build integration

package mqtt

import (
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/aps-observer/internal/infrastructure/config"
)

// Integration tests for live broker behaviour.
// These tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...
//
// Note: Some tests may be flaky in CI due to timing dependencies.
// Consider running with: go test -tags=integration -count=1 -v ...

func integrationConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "aps-observer-integration-test",
			TLS:      false,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
		Buffers: config.MQTTBufferConfig{
			SubscriberSize:   64,
			OfflineQueueSize: 16,
		},
	}
}

// TestIntegration_ConnectAndState verifies the happy-path lifecycle.
func TestIntegration_ConnectAndState(t *testing.T) {
	cfg := integrationConfig()
	cfg.Broker.ClientID = "aps-int-lifecycle"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if got := client.ConnectionState(); got != StateConnected {
		t.Errorf("ConnectionState() = %v, want %v", got, StateConnected)
	}
}

// TestIntegration_SubscribeBuffer verifies a published message lands in
// the matching filter's ring buffer.
func TestIntegration_SubscribeBuffer(t *testing.T) {
	cfg := integrationConfig()

	cfg.Broker.ClientID = "aps-int-sub"
	subClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer subClient.Close()

	cfg.Broker.ClientID = "aps-int-pub"
	pubClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pubClient.Close()

	filter := "aps/int/buffer/+"
	if err := subClient.SubscribeMany([]string{filter}, 1); err != nil {
		t.Fatalf("SubscribeMany() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := pubClient.PublishString("aps/int/buffer/x", "hello", 1, false); err != nil {
		t.Fatalf("PublishString() error = %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		if msgs := subClient.Buffer(filter); len(msgs) > 0 {
			if string(msgs[0].Payload) != "hello" {
				t.Errorf("Payload = %q, want %q", msgs[0].Payload, "hello")
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("Timeout waiting for buffered message")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// TestIntegration_MessageHookFanOut verifies hooks see live traffic.
func TestIntegration_MessageHookFanOut(t *testing.T) {
	cfg := integrationConfig()

	cfg.Broker.ClientID = "aps-int-hook-sub"
	subClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer subClient.Close()

	cfg.Broker.ClientID = "aps-int-hook-pub"
	pubClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pubClient.Close()

	received := make(chan Message, 1)
	var once sync.Once
	subClient.AddMessageHook(func(msg Message) {
		if msg.Topic == "aps/int/hook" {
			once.Do(func() {
				received <- msg
			})
		}
	})

	if err := subClient.SubscribeMany([]string{"aps/int/hook"}, 1); err != nil {
		t.Fatalf("SubscribeMany() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := pubClient.PublishString("aps/int/hook", "ping", 1, false); err != nil {
		t.Fatalf("PublishString() error = %v", err)
	}

	select {
	case msg := <-received:
		if string(msg.Payload) != "ping" {
			t.Errorf("Payload = %q, want %q", msg.Payload, "ping")
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for hook delivery")
	}
}

// TestIntegration_AuditLog verifies live publishes land in the outbound
// audit log and Drain consumes them.
func TestIntegration_AuditLog(t *testing.T) {
	cfg := integrationConfig()
	cfg.Broker.ClientID = "aps-int-audit"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.PublishString("aps/int/audit", "one", 1, false); err != nil {
		t.Fatalf("PublishString() error = %v", err)
	}

	entries := client.Drain()
	if len(entries) != 1 {
		t.Fatalf("Drain() returned %d entries, want 1", len(entries))
	}
	if entries[0].Topic != "aps/int/audit" {
		t.Errorf("Topic = %q, want %q", entries[0].Topic, "aps/int/audit")
	}
	if again := client.Drain(); len(again) != 0 {
		t.Errorf("second Drain() returned %d entries, want 0", len(again))
	}
}
