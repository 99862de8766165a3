package main

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/aps-observer/internal/infrastructure/config"
	"github.com/nerrad567/aps-observer/internal/infrastructure/logging"
	"github.com/nerrad567/aps-observer/internal/infrastructure/mqtt"
	"github.com/nerrad567/aps-observer/internal/orders"
	"github.com/nerrad567/aps-observer/internal/refresh"
	"github.com/nerrad567/aps-observer/internal/template"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()

	return logging.New(config.LoggingConfig{
		Level:  "error",
		Format: "text",
		Output: "stderr",
	}, "test")
}

// recordingPublisher captures refresh publishes for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) PublishJSON(topic string, _ any, _ byte, _ bool) error {
	p.mu.Lock()
	p.topics = append(p.topics, topic)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

func newTestMonitor(t *testing.T) (*monitor, *recordingPublisher) {
	t.Helper()

	logger := testLogger(t)
	templates := template.NewManager(filepath.Join("..", "..", "configs", "templates"))
	templates.SetLogger(logger)
	if err := templates.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	pub := &recordingPublisher{}
	return newMonitor(templates, orders.NewTracker(logger), refresh.New(pub, "test", logger), logger), pub
}

// TestMonitorProcessesOrderTraffic drives an order request through the
// enqueue/worker path and checks the downstream effects: the tracker
// holds the pending order and a UI refresh went out.
func TestMonitorProcessesOrderTraffic(t *testing.T) {
	mon, pub := newTestMonitor(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mon.run(ctx)

	mon.enqueue(mqtt.Message{
		Topic:      "ccu/order/request",
		Payload:    []byte(`{"requestId":"req-1","orderType":"STORAGE","timestamp":"2025-09-08T10:00:00Z"}`),
		QoS:        1,
		ReceivedAt: time.Now(),
	})

	deadline := time.After(2 * time.Second)
	for {
		if len(pub.published()) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timeout waiting for the worker to process the message")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if got := pub.published()[0]; got != refresh.TopicPrefix+"/orders" {
		t.Errorf("refresh topic = %q, want %q", got, refresh.TopicPrefix+"/orders")
	}
	active := mon.tracker.Active()
	if len(active) != 1 || active[0].RequestID != "req-1" {
		t.Errorf("tracker.Active() = %v, want the pending req-1 order", active)
	}
}

// TestMonitorEnqueueNeverBlocks fills the queue with no worker running;
// enqueue must return immediately, evicting the oldest waiting message.
func TestMonitorEnqueueNeverBlocks(t *testing.T) {
	mon, _ := newTestMonitor(t)
	mon.queue = make(chan mqtt.Message, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			mon.enqueue(mqtt.Message{Topic: "ccu/pairing/state", Payload: []byte("{}")})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}

	if got := mon.dropped.Load(); got != 2 {
		t.Errorf("dropped = %d, want 2 (oldest evicted per overflow)", got)
	}
	if len(mon.queue) != 1 {
		t.Errorf("queue length = %d, want 1", len(mon.queue))
	}
}
