package gateway

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/aps-observer/internal/infrastructure/logging"
	"github.com/nerrad567/aps-observer/internal/infrastructure/mqtt"
	"github.com/nerrad567/aps-observer/internal/topics"
)

// Gateway errors.
var (
	// ErrAlreadyRegistered is returned when a component name is reused
	// while its registration is still live.
	ErrAlreadyRegistered = errors.New("gateway: component already registered")

	// ErrNotRegistered is returned when unregistering an unknown component.
	ErrNotRegistered = errors.New("gateway: component not registered")

	// ErrRegistrationFailed wraps tier expansion and subscribe failures.
	ErrRegistrationFailed = errors.New("gateway: registration failed")
)

// Subscriber is the client surface the gateway drives. *mqtt.Client
// satisfies it.
type Subscriber interface {
	SubscribeMany(filters []string, qos byte) error
	Unsubscribe(filter string) error
	Buffer(filter string) []mqtt.Message
}

// Gateway mediates component access to broker subscriptions.
//
// Components declare a priority tier plus optional extra filters; the
// gateway expands the tier through the registry, deduplicates, and
// holds the per-component filter list so Unregister can release
// exactly what Register acquired. Broker-level refcounting lives in
// the client; the gateway guarantees each component counts once per
// filter regardless of overlap between components.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Gateway struct {
	registry *topics.Registry
	client   Subscriber
	qos      byte
	logger   *logging.Logger

	mu         sync.Mutex
	components map[string][]string
}

// Handle is a component's view of its subscriptions.
type Handle struct {
	gw      *Gateway
	name    string
	filters []string
}

// New creates a Gateway over the shared client.
//
// Parameters:
//   - registry: Topic registry for tier expansion
//   - client: Shared MQTT client
//   - qos: QoS level requested for gateway subscriptions
//   - logger: Structured logger
func New(registry *topics.Registry, client Subscriber, qos byte, logger *logging.Logger) *Gateway {
	return &Gateway{
		registry:   registry,
		client:     client,
		qos:        qos,
		logger:     logger.With("component", "gateway"),
		components: make(map[string][]string),
	}
}

// Register subscribes a named component at the given tier.
//
// The tier is expanded to the union of tiers 1..tier; extra filters
// are appended and the whole list deduplicated preserving first
// occurrence. Filters the component already holds through an earlier
// partial registration are never double-counted.
//
// Parameters:
//   - name: Component name, unique among live registrations
//   - tier: Priority tier (1 expands to critical control only, 6 to everything)
//   - extra: Additional explicit filters beyond the tier set
//
// Returns:
//   - *Handle: Buffer access for the component's filters
//   - error: ErrAlreadyRegistered, or wrapped ErrRegistrationFailed
func (g *Gateway) Register(name string, tier int, extra ...string) (*Handle, error) {
	g.mu.Lock()
	if _, live := g.components[name]; live {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrAlreadyRegistered, name)
	}
	// Reserve the name before broker I/O so a concurrent Register of
	// the same component fails fast.
	g.components[name] = nil
	g.mu.Unlock()

	filters, err := g.expand(tier, extra)
	if err != nil {
		g.release(name)
		return nil, fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}

	if err := g.client.SubscribeMany(filters, g.qos); err != nil {
		g.release(name)
		return nil, fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}

	g.mu.Lock()
	g.components[name] = filters
	g.mu.Unlock()

	g.logger.Info("component registered",
		"name", name, "tier", tier, "filters", len(filters))

	return &Handle{gw: g, name: name, filters: filters}, nil
}

// Unregister releases a component's subscriptions.
//
// Each held filter has its client refcount decremented once; filters
// still referenced by other components stay live on the broker.
//
// Parameters:
//   - name: Component name passed to Register
//
// Returns:
//   - error: ErrNotRegistered if the name is unknown
func (g *Gateway) Unregister(name string) error {
	g.mu.Lock()
	filters, live := g.components[name]
	if !live {
		g.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	delete(g.components, name)
	g.mu.Unlock()

	for _, filter := range filters {
		if err := g.client.Unsubscribe(filter); err != nil {
			// Refcount drift would leak a subscription; log loudly.
			g.logger.Error("failed to release filter",
				"name", name, "filter", filter, "error", err)
		}
	}

	g.logger.Info("component unregistered", "name", name, "filters", len(filters))
	return nil
}

// Registered returns the number of live component registrations.
func (g *Gateway) Registered() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.components)
}

// expand builds the deduplicated filter list for a tier plus extras.
func (g *Gateway) expand(tier int, extra []string) ([]string, error) {
	filters, err := g.registry.FiltersFor(tier)
	if err != nil {
		return nil, err
	}

	for _, f := range extra {
		if err := topics.ValidateFilter(f); err != nil {
			return nil, err
		}
	}

	seen := make(map[string]struct{}, len(filters)+len(extra))
	out := make([]string, 0, len(filters)+len(extra))
	for _, f := range append(filters, extra...) {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out, nil
}

// release drops a name reservation after a failed registration.
func (g *Gateway) release(name string) {
	g.mu.Lock()
	delete(g.components, name)
	g.mu.Unlock()
}

// Filters returns the filters this handle holds, in subscription order.
func (h *Handle) Filters() []string {
	out := make([]string, len(h.filters))
	copy(out, h.filters)
	return out
}

// Buffer returns a snapshot of buffered messages for one held filter.
// Unknown filters return nil.
func (h *Handle) Buffer(filter string) []mqtt.Message {
	for _, f := range h.filters {
		if f == filter {
			return h.gw.client.Buffer(filter)
		}
	}
	return nil
}

// Close unregisters the handle's component.
func (h *Handle) Close() error {
	return h.gw.Unregister(h.name)
}
