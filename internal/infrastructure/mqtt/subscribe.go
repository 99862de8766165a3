package mqtt

import (
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/aps-observer/internal/topics"
)

// SubscribeMany subscribes to a set of filters, sharing broker-level
// subscriptions by reference count.
//
// The call is idempotent at the broker: a filter already held by another
// component only has its refcount incremented; the broker sees one
// subscription per distinct filter. Messages arriving on a filter land in
// that filter's ring buffer, drained via Buffer().
//
// Filters may include MQTT wildcards:
//   - "+" (single level): "module/v1/ff/+/state"
//   - "#" (trailing levels): "ccu/#"
//
// Parameters:
//   - filters: Topic filters to subscribe to
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
//
// Returns:
//   - error: nil on success; the first failure aborts (already-counted
//     filters keep their increments, so Unsubscribe remains balanced)
func (c *Client) SubscribeMany(filters []string, qos byte) error {
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	for _, filter := range filters {
		if err := topics.ValidateFilter(filter); err != nil {
			return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
		}
	}

	for _, filter := range filters {
		if err := c.subscribeOne(filter, qos); err != nil {
			return err
		}
	}
	return nil
}

// subscribeOne adds one refcount, issuing the broker subscribe only on
// the first reference.
func (c *Client) subscribeOne(filter string, qos byte) error {
	c.mu.Lock()
	if sub, held := c.subscriptions[filter]; held {
		sub.refs++
		c.mu.Unlock()
		return nil
	}
	c.subscriptions[filter] = &subscription{filter: filter, qos: qos, refs: 1}
	if _, ok := c.buffers[filter]; !ok {
		c.buffers[filter] = newRing(c.bufferSize)
	}
	c.mu.Unlock()

	// Broker I/O outside the lock.
	if c.client == nil || !c.IsConnected() {
		// Not connected yet: the subscription is tracked and will be
		// issued by restoreSubscriptions on (re)connect.
		return nil
	}

	// No per-filter callback: paho invokes every matching route for one
	// inbound message, so overlapping filters (ccu/pairing/state vs
	// ccu/pairing/# vs #) would deliver the same message several times.
	// All delivery goes through the single default handler instead.
	token := c.client.Subscribe(filter, qos, nil)
	if !token.WaitTimeout(defaultPublishTimeout) {
		c.dropSubscription(filter)
		return fmt.Errorf("%w: timeout subscribing %q", ErrSubscribeFailed, filter)
	}
	if err := token.Error(); err != nil {
		c.dropSubscription(filter)
		return fmt.Errorf("%w: %q: %w", ErrSubscribeFailed, filter, err)
	}

	return nil
}

// Unsubscribe releases one reference on a filter. When the last reference
// is released the broker subscription is removed and the buffer freed.
//
// Parameters:
//   - filter: The exact filter string passed to SubscribeMany
//
// Returns:
//   - error: ErrNotSubscribed if the filter has no live references
func (c *Client) Unsubscribe(filter string) error {
	c.mu.Lock()
	sub, held := c.subscriptions[filter]
	if !held {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotSubscribed, filter)
	}
	sub.refs--
	last := sub.refs <= 0
	if last {
		delete(c.subscriptions, filter)
		delete(c.buffers, filter)
	}
	c.mu.Unlock()

	if !last {
		return nil
	}

	if c.client == nil || !c.IsConnected() {
		return nil
	}

	token := c.client.Unsubscribe(filter)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout unsubscribing %q", ErrUnsubscribeFailed, filter)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrUnsubscribeFailed, filter, err)
	}

	return nil
}

// Buffer returns a snapshot of the messages currently buffered for a
// filter, in broker-delivery order. The read is non-destructive.
func (c *Client) Buffer(filter string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf, ok := c.buffers[filter]
	if !ok {
		return nil
	}
	return buf.snapshot()
}

// SubscriptionCount returns the number of distinct broker subscriptions.
func (c *Client) SubscriptionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscriptions)
}

// HasSubscription checks whether a filter currently holds references.
//
// Note: This checks only the exact filter string, not pattern overlap.
func (c *Client) HasSubscription(filter string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, held := c.subscriptions[filter]
	return held
}

// dropSubscription removes tracking after a failed broker subscribe.
func (c *Client) dropSubscription(filter string) {
	c.mu.Lock()
	delete(c.subscriptions, filter)
	delete(c.buffers, filter)
	c.mu.Unlock()
}

// inboundHandler builds the paho default handler. Every inbound message
// arrives here exactly once, whatever set of held filters it matches.
// Panic recovery keeps a bad hook from killing the network loop.
func (c *Client) inboundHandler() pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, m pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.logError("message handler panic recovered",
					"topic", m.Topic(),
					"panic", r,
				)
			}
		}()

		c.dispatch(Message{
			Topic:      m.Topic(),
			Payload:    m.Payload(),
			QoS:        m.Qos(),
			Retained:   m.Retained(),
			ReceivedAt: time.Now(),
		})
	}
}

// dispatch routes one inbound message: append to every matching filter's
// buffer under the lock, then hand it to each registered hook exactly
// once. Runs on the network loop thread; nothing here may block.
func (c *Client) dispatch(msg Message) {
	var overflowed []string
	c.mu.Lock()
	for filter, buf := range c.buffers {
		if !topics.Match(msg.Topic, filter) {
			continue
		}
		before := buf.dropped
		buf.append(msg)
		if buf.dropped > before {
			overflowed = append(overflowed, filter)
		}
	}
	hooks := c.hooks
	c.mu.Unlock()

	for _, filter := range overflowed {
		// Overflow is a warning, never fatal; the counter feeds GetStats.
		c.logWarn("subscriber buffer full, oldest message evicted", "filter", filter)
	}

	for _, hook := range hooks {
		hook(msg)
	}
}
