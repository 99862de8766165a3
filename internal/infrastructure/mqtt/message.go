package mqtt

import (
	"time"
)

// Message is an immutable record of one MQTT message.
//
// Payloads are opaque bytes (usually JSON text); nothing in this package
// interprets them. ReceivedAt is wall-clock time at millisecond resolution,
// taken on the network loop thread when the broker delivered the message.
type Message struct {
	Topic      string
	Payload    []byte
	QoS        byte
	Retained   bool
	ReceivedAt time.Time
}

// ring is a bounded FIFO buffer of recent messages for one subscription
// filter. Eviction is oldest-first; overflow is counted, never fatal.
//
// Not safe for concurrent use on its own; the owning client serialises
// access under its mutex.
type ring struct {
	limit   int
	msgs    []Message
	dropped uint64
}

func newRing(limit int) *ring {
	return &ring{limit: limit}
}

// append adds a message, evicting the oldest when full.
func (r *ring) append(msg Message) {
	if len(r.msgs) >= r.limit {
		// Shift rather than reslice so the backing array doesn't grow
		// without bound over a long session.
		copy(r.msgs, r.msgs[1:])
		r.msgs[len(r.msgs)-1] = msg
		r.dropped++
		return
	}
	r.msgs = append(r.msgs, msg)
}

// snapshot returns a copy of the buffered messages in delivery order.
// The buffer itself is left untouched.
func (r *ring) snapshot() []Message {
	out := make([]Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}

func (r *ring) len() int {
	return len(r.msgs)
}
