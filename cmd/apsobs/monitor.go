package main

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/nerrad567/aps-observer/internal/infrastructure/logging"
	"github.com/nerrad567/aps-observer/internal/infrastructure/mqtt"
	"github.com/nerrad567/aps-observer/internal/infrastructure/tsdb"
	"github.com/nerrad567/aps-observer/internal/orders"
	"github.com/nerrad567/aps-observer/internal/refresh"
	"github.com/nerrad567/aps-observer/internal/template"
)

// monitorQueueSize bounds messages waiting for validation and tracking.
const monitorQueueSize = 1024

// monitor runs the observe pipeline (template validation, order
// tracking, UI refresh, optional telemetry mirroring) on its own worker
// goroutine. The MQTT hook only enqueues: validation and the refresh
// publish both do real work, and the refresh publish waits on a broker
// acknowledgement, none of which belongs on the network loop thread.
type monitor struct {
	templates *template.Manager
	tracker   *orders.Tracker
	notifier  *refresh.Notifier
	mirror    *tsdb.Mirror
	logger    *logging.Logger

	queue   chan mqtt.Message
	dropped atomic.Uint64
}

func newMonitor(templates *template.Manager, tracker *orders.Tracker, notifier *refresh.Notifier, logger *logging.Logger) *monitor {
	return &monitor{
		templates: templates,
		tracker:   tracker,
		notifier:  notifier,
		logger:    logger,
		queue:     make(chan mqtt.Message, monitorQueueSize),
	}
}

// enqueue hands one inbound message to the worker. Never blocks: on a
// full queue the oldest waiting message is evicted, matching the
// recorder's drop-oldest policy.
func (m *monitor) enqueue(msg mqtt.Message) {
	select {
	case m.queue <- msg:
		return
	default:
	}

	select {
	case <-m.queue:
		m.dropped.Add(1)
	default:
	}

	select {
	case m.queue <- msg:
	default:
		m.dropped.Add(1)
	}
}

// run processes queued messages until the context is cancelled.
func (m *monitor) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-m.queue:
			m.process(msg)
		}
	}
}

func (m *monitor) process(msg mqtt.Message) {
	validatePayload(m.templates, m.logger, msg)
	m.tracker.HandleMessage(msg)
	if m.mirror != nil {
		m.mirror.HandleMessage(msg)
	}
	if strings.HasPrefix(msg.Topic, "ccu/order/") {
		_ = m.notifier.Notify("orders")
	}
}
