package topics

import (
	"fmt"
)

// Priority tiers. Requesting tier k subscribes to the union of tiers 1..k.
const (
	// TierControl covers order lifecycle, resets, charge commands and the
	// retained pairing state - the messages a monitor can least afford to miss.
	TierControl = 1

	// TierState covers module and FTS state and connection topics.
	TierState = 2

	// TierInfo covers pairing detail and factsheets.
	TierInfo = 3

	// TierNodeRED covers the Node-RED orchestrator side channel.
	TierNodeRED = 4

	// TierTelemetry covers the high-frequency TXT controller streams.
	TierTelemetry = 5

	// TierAll is the catch-all wildcard.
	TierAll = 6

	// MinTier and MaxTier bound valid tier requests.
	MinTier = TierControl
	MaxTier = TierAll
)

// Well-known control topics, bit-exact per the CCU topic taxonomy.
const (
	TopicOrderRequest  = "ccu/order/request"
	TopicOrderResponse = "ccu/order/response"
	TopicOrderActive   = "ccu/order/active"
	TopicSetReset      = "ccu/set/reset"
	TopicSetCharge     = "ccu/set/charge"
	TopicPairingState  = "ccu/pairing/state"
)

// tierFilters is the static subscription catalog, declared in priority
// order within each tier. Order matters: FiltersFor preserves it.
var tierFilters = map[int][]string{
	TierControl: {
		TopicOrderRequest,
		TopicOrderResponse,
		TopicOrderActive,
		TopicSetReset,
		TopicSetCharge,
		TopicPairingState,
		"module/v1/ff/+/order",
		"module/v1/ff/+/instantAction",
		"fts/v1/ff/+/order",
		"fts/v1/ff/+/instantAction",
	},
	TierState: {
		"module/v1/ff/+/state",
		"module/v1/ff/+/connection",
		"fts/v1/ff/+/state",
		"fts/v1/ff/+/connection",
	},
	TierInfo: {
		"ccu/pairing/#",
		"module/v1/ff/+/factsheet",
		"fts/v1/ff/+/factsheet",
	},
	TierNodeRED: {
		"module/v1/ff/NodeRed/#",
	},
	TierTelemetry: {
		"/j1/txt/1/#",
	},
	TierAll: {
		"#",
	},
}

// Registry is the static authority for which topics exist and which
// priority tier each belongs to. It is built once at startup and
// immutable thereafter.
type Registry struct {
	tiers map[int][]string
}

// NewRegistry builds the registry from the built-in APS catalog.
//
// Returns:
//   - *Registry: Ready registry
//   - error: If the catalog itself is malformed (a programming error,
//     surfaced at startup rather than at subscription time)
func NewRegistry() (*Registry, error) {
	r := &Registry{tiers: tierFilters}

	// Fail at startup on catalog mistakes, never at subscribe time.
	seen := make(map[string]int)
	for tier := MinTier; tier <= MaxTier; tier++ {
		for _, filter := range r.tiers[tier] {
			if err := ValidateFilter(filter); err != nil {
				return nil, fmt.Errorf("tier %d: %w", tier, err)
			}
			if prev, dup := seen[filter]; dup {
				return nil, fmt.Errorf("%w: %q declared in tiers %d and %d",
					ErrDuplicateTopic, filter, prev, tier)
			}
			seen[filter] = tier
		}
	}

	return r, nil
}

// FiltersFor returns the ordered, de-duplicated subscription filters
// covering tiers 1 up to and including k.
//
// Ordering rule: ascending tier, then declared order within the tier,
// duplicates suppressed by first occurrence. For any k1 <= k2,
// FiltersFor(k1) is a prefix-closed subset of FiltersFor(k2).
//
// Parameters:
//   - tier: Requested priority tier (1..6)
//
// Returns:
//   - []string: Subscription filters
//   - error: If tier is out of range
func (r *Registry) FiltersFor(tier int) ([]string, error) {
	if tier < MinTier || tier > MaxTier {
		return nil, fmt.Errorf("%w: %d (must be %d..%d)", ErrInvalidTier, tier, MinTier, MaxTier)
	}

	var filters []string
	seen := make(map[string]struct{})
	for t := MinTier; t <= tier; t++ {
		for _, filter := range r.tiers[t] {
			if _, dup := seen[filter]; dup {
				continue
			}
			seen[filter] = struct{}{}
			filters = append(filters, filter)
		}
	}

	return filters, nil
}

// TierOf returns the priority tier of a concrete topic: the lowest tier
// containing a filter that matches it. Every topic matches TierAll's "#",
// so the result is always in range.
func (r *Registry) TierOf(topic string) int {
	for tier := MinTier; tier <= MaxTier; tier++ {
		for _, filter := range r.tiers[tier] {
			if Match(topic, filter) {
				return tier
			}
		}
	}
	return TierAll
}

// Covers reports whether a concrete topic is within tiers 1..k,
// ignoring the catch-all tier unless k is TierAll.
func (r *Registry) Covers(topic string, tier int) bool {
	return r.TierOf(topic) <= tier
}
