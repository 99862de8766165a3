package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// Publish sends a message to the specified MQTT topic.
//
// While disconnected, the outcome depends on QoS:
//   - QoS 0 (telemetry): fail fast with ErrNotConnected
//   - QoS >= 1 (control): queue in the bounded offline queue and deliver
//     on reconnect; ErrQueueFull if the queue is at capacity
//
// For QoS >= 1, success means the client accepted the message for
// delivery, not end-to-end acknowledgment.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "ccu/set/reset")
//   - payload: The message payload (typically JSON, max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return fmt.Errorf("%w: topic is empty", ErrInvalidTopic)
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		if qos == 0 {
			return ErrNotConnected
		}
		return c.enqueueOffline(topic, payload, qos, retained)
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	c.recordOutbound(topic, payload, qos, retained)
	return nil
}

// PublishJSON serialises a value to UTF-8 JSON and publishes it.
//
// Parameters:
//   - topic: The topic to publish to
//   - value: Any JSON-serialisable value
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message
func (c *Client) PublishJSON(topic string, value any, qos byte, retained bool) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %w", ErrPublishFailed, err)
	}
	return c.Publish(topic, payload, qos, retained)
}

// PublishString is a convenience method that publishes a string payload.
func (c *Client) PublishString(topic string, payload string, qos byte, retained bool) error {
	return c.Publish(topic, []byte(payload), qos, retained)
}

// enqueueOffline defers a QoS >= 1 publish until the connection returns.
func (c *Client) enqueueOffline(topic string, payload []byte, qos byte, retained bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.offlineLimit <= 0 || len(c.offline) >= c.offlineLimit {
		return ErrQueueFull
	}

	c.offline = append(c.offline, queuedPublish{
		topic:    topic,
		payload:  payload,
		qos:      qos,
		retained: retained,
	})
	return nil
}

// flushOfflineQueue delivers publishes deferred while disconnected.
// Called from handleConnect; failures are logged and the message dropped,
// matching the "failure token, never a crash" contract.
func (c *Client) flushOfflineQueue() {
	c.mu.Lock()
	queued := c.offline
	c.offline = nil
	c.mu.Unlock()

	for _, q := range queued {
		token := c.client.Publish(q.topic, q.qos, q.retained, q.payload)
		if !token.WaitTimeout(defaultPublishTimeout) || token.Error() != nil {
			c.logWarn("deferred publish failed", "topic", q.topic)
			continue
		}
		c.recordOutbound(q.topic, q.payload, q.qos, q.retained)
	}
}

// recordOutbound appends a successful publish to the audit log.
func (c *Client) recordOutbound(topic string, payload []byte, qos byte, retained bool) {
	c.mu.Lock()
	c.audit = append(c.audit, Message{
		Topic:      topic,
		Payload:    payload,
		QoS:        qos,
		Retained:   retained,
		ReceivedAt: time.Now(),
	})
	c.mu.Unlock()
}

// Drain returns and clears the outbound audit log.
//
// Tests use this to assert exactly what a component published; production
// callers may use it to implement periodic publish accounting.
func (c *Client) Drain() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.audit
	c.audit = nil
	return out
}
