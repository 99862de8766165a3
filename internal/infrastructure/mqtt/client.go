package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/aps-observer/internal/infrastructure/config"
)

// State is the client's position in the connection lifecycle.
type State int

// Connection lifecycle states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateBackoff
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Client is the persistent MQTT client shared by every component in a
// process: exactly one live broker connection, thread-safe publish and
// subscribe, reconnect with exponential backoff, and pull-based message
// buffers keyed by subscription filter.
//
// Components must receive the already-built Client from the runtime that
// owns it; constructing a second Client against the same broker is the
// "connection loop" failure this design exists to prevent.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
//   - One mutex guards connection state, subscription refcounts, buffers,
//     the offline queue, and the audit log. Critical sections only touch
//     memory; broker I/O happens outside the lock.
//   - paho callbacks run on the network loop; they append to buffers and
//     invoke registered hooks, nothing heavier.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	mu    sync.Mutex
	state State

	// subscriptions tracks refcounted broker subscriptions by filter.
	subscriptions map[string]*subscription

	// buffers holds the per-filter ring buffers subscribers drain.
	buffers    map[string]*ring
	bufferSize int

	// offline queues QoS >= 1 publishes made while disconnected.
	offline      []queuedPublish
	offlineLimit int

	// audit is the outbound log returned and cleared by Drain.
	audit []Message

	// hooks receive every inbound message, on the network loop thread.
	hooks []MessageHook

	// Callbacks for connection events (optional).
	onConnect    func()
	onDisconnect func(err error)

	logger Logger
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHook receives every inbound message regardless of which filter
// delivered it. Hooks run on the network loop thread and must only hand
// the message off (enqueue, lock-guarded append) and return.
type MessageHook func(msg Message)

// subscription holds refcount and QoS for one broker-level subscription.
type subscription struct {
	filter string
	qos    byte
	refs   int
}

// queuedPublish is a publish deferred until the connection returns.
type queuedPublish struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// Connect establishes the process-wide connection to the MQTT broker.
//
// It performs the following setup:
//  1. Builds connection options from config (broker URL, auth, TLS)
//  2. Sets up auto-reconnect with exponential backoff
//  3. Attempts the initial connection with a bounded timeout
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: If initial connection fails within timeout
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := newClient(cfg)

	opts := buildClientOptions(cfg)
	// All inbound delivery funnels through the default handler so a
	// message matching several held filters is dispatched exactly once.
	opts.SetDefaultPublishHandler(c.inboundHandler())
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		c.setState(StateConnecting)
	})

	if err := c.establish(pahomqtt.NewClient(opts)); err != nil {
		return nil, err
	}
	return c, nil
}

// establish runs the initial connection attempt against a built paho
// client. On failure the paho client is force-disconnected so its
// connect-retry loop does not keep running behind an abandoned Client.
func (c *Client) establish(pc pahomqtt.Client) error {
	c.client = pc

	c.setState(StateConnecting)
	token := pc.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		pc.Disconnect(0)
		c.setState(StateDisconnected)
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		pc.Disconnect(0)
		c.setState(StateDisconnected)
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// Set connected state immediately after successful connection.
	// The OnConnectHandler callback runs asynchronously and may not have
	// executed yet.
	c.setState(StateConnected)

	return nil
}

// newClient builds the in-memory client without touching the network.
// Split out so buffer and refcount behaviour is testable broker-free.
func newClient(cfg config.MQTTConfig) *Client {
	bufferSize := cfg.Buffers.SubscriberSize
	if bufferSize < 1 {
		bufferSize = 1000
	}

	return &Client{
		cfg:           cfg,
		state:         StateDisconnected,
		subscriptions: make(map[string]*subscription),
		buffers:       make(map[string]*ring),
		bufferSize:    bufferSize,
		offlineLimit:  cfg.Buffers.OfflineQueueSize,
	}
}

// handleConnect is called when a connection is established (or restored).
func (c *Client) handleConnect() {
	c.setState(StateConnected)

	c.restoreSubscriptions()
	c.flushOfflineQueue()

	c.mu.Lock()
	callback := c.onConnect
	c.mu.Unlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect is called when the connection is lost. paho retries in
// the background with exponential backoff; the client reports BACKOFF
// until the reconnecting handler fires.
func (c *Client) handleDisconnect(err error) {
	c.setState(StateBackoff)

	c.mu.Lock()
	callback := c.onDisconnect
	c.mu.Unlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions re-subscribes every tracked filter after reconnect.
func (c *Client) restoreSubscriptions() {
	c.mu.Lock()
	filters := make([]*subscription, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		filters = append(filters, sub)
	}
	c.mu.Unlock()

	for _, sub := range filters {
		// Errors during restoration are logged, not fatal; paho will
		// call handleConnect again after the next reconnect.
		token := c.client.Subscribe(sub.filter, sub.qos, nil)
		if token.WaitTimeout(defaultPublishTimeout) && token.Error() != nil {
			c.logWarn("re-subscribe failed", "filter", sub.filter, "error", token.Error())
		}
	}
}

// setState updates the lifecycle state under the lock.
func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// ConnectionState returns the current lifecycle state.
func (c *Client) ConnectionState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected returns whether the client currently holds a live connection.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	return state == StateConnected && c.client != nil && c.client.IsConnected()
}

// Close gracefully disconnects from the MQTT broker.
//
// Pending publish operations get a quiesce period; queued offline
// publishes are discarded (they are observer conveniences, not durable
// state - the session recorder owns durability).
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.client.Disconnect(defaultDisconnectQuiesce)
	c.setState(StateDisconnected)

	return nil
}

// HealthCheck verifies the MQTT connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// SetOnConnect sets a callback invoked on initial connect and every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onConnect = callback
	c.mu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	c.onDisconnect = callback
	c.mu.Unlock()
}

// SetLogger sets a logger for callback errors and dropped-message warnings.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

// AddMessageHook registers a hook that receives every inbound message.
// Hooks must be registered before subscriptions start delivering; they
// run on the network loop thread and must not block.
func (c *Client) AddMessageHook(hook MessageHook) {
	c.mu.Lock()
	c.hooks = append(c.hooks, hook)
	c.mu.Unlock()
}

// Stats is a point-in-time snapshot of client health counters.
type Stats struct {
	State          string
	Subscriptions  int
	BufferedTotal  int
	BufferDropped  uint64
	OfflineQueued  int
	AuditLogLength int
}

// GetStats returns current client health counters.
func (c *Client) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		State:          c.state.String(),
		Subscriptions:  len(c.subscriptions),
		OfflineQueued:  len(c.offline),
		AuditLogLength: len(c.audit),
	}
	for _, buf := range c.buffers {
		stats.BufferedTotal += buf.len()
		stats.BufferDropped += buf.dropped
	}
	return stats
}

func (c *Client) logWarn(msg string, args ...any) {
	c.mu.Lock()
	logger := c.logger
	c.mu.Unlock()
	if logger != nil {
		logger.Warn(msg, args...)
	}
}

func (c *Client) logError(msg string, args ...any) {
	c.mu.Lock()
	logger := c.logger
	c.mu.Unlock()
	if logger != nil {
		logger.Error(msg, args...)
	}
}
