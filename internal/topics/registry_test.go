package topics

import (
	"errors"
	"testing"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return r
}

func TestFiltersForTierOne(t *testing.T) {
	r := newTestRegistry(t)

	filters, err := r.FiltersFor(TierControl)
	if err != nil {
		t.Fatalf("FiltersFor(1) error = %v", err)
	}

	if len(filters) == 0 {
		t.Fatal("FiltersFor(1) returned no filters")
	}
	if filters[0] != TopicOrderRequest {
		t.Errorf("first tier-1 filter = %q, want %q", filters[0], TopicOrderRequest)
	}
	for _, f := range filters {
		if f == "#" {
			t.Error("FiltersFor(1) must not include the catch-all")
		}
	}
}

// Tier monotonicity: FiltersFor(k1) is a prefix of FiltersFor(k2) for k1 <= k2.
func TestFiltersForMonotonic(t *testing.T) {
	r := newTestRegistry(t)

	var prev []string
	for tier := MinTier; tier <= MaxTier; tier++ {
		filters, err := r.FiltersFor(tier)
		if err != nil {
			t.Fatalf("FiltersFor(%d) error = %v", tier, err)
		}
		if len(filters) < len(prev) {
			t.Fatalf("FiltersFor(%d) shrank: %d < %d", tier, len(filters), len(prev))
		}
		for i, f := range prev {
			if filters[i] != f {
				t.Errorf("FiltersFor(%d)[%d] = %q, want %q (prefix of lower tier)", tier, i, filters[i], f)
			}
		}
		prev = filters
	}
}

func TestFiltersForDeduplicates(t *testing.T) {
	r := newTestRegistry(t)

	filters, err := r.FiltersFor(MaxTier)
	if err != nil {
		t.Fatalf("FiltersFor(max) error = %v", err)
	}

	seen := make(map[string]bool)
	for _, f := range filters {
		if seen[f] {
			t.Errorf("FiltersFor returned duplicate filter %q", f)
		}
		seen[f] = true
	}
}

func TestFiltersForInvalidTier(t *testing.T) {
	r := newTestRegistry(t)

	for _, tier := range []int{0, -1, 7} {
		_, err := r.FiltersFor(tier)
		if !errors.Is(err, ErrInvalidTier) {
			t.Errorf("FiltersFor(%d) error = %v, want ErrInvalidTier", tier, err)
		}
	}
}

func TestTierOf(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		topic string
		want  int
	}{
		{"ccu/order/request", TierControl},
		{"ccu/set/reset", TierControl},
		{"ccu/pairing/state", TierControl},
		{"module/v1/ff/SVR4H76449/order", TierControl},
		{"module/v1/ff/SVR4H76449/state", TierState},
		{"fts/v1/ff/5iO4/connection", TierState},
		{"module/v1/ff/SVR4H76449/factsheet", TierInfo},
		{"module/v1/ff/NodeRed/SVR4H76449/status", TierNodeRED},
		{"/j1/txt/1/i1", TierTelemetry},
		{"ccu/status/health", TierAll},
		{"something/else", TierAll},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			if got := r.TierOf(tt.topic); got != tt.want {
				t.Errorf("TierOf(%q) = %d, want %d", tt.topic, got, tt.want)
			}
		})
	}
}

// Tier-2 visibility covers module state and order but not CCU health,
// which only the catch-all tier picks up.
func TestCovers(t *testing.T) {
	r := newTestRegistry(t)

	if !r.Covers("module/v1/ff/X/state", TierState) {
		t.Error("Covers(module state, 2) = false, want true")
	}
	if !r.Covers("module/v1/ff/X/order", TierState) {
		t.Error("Covers(module order, 2) = false, want true")
	}
	if r.Covers("ccu/status/health", TierState) {
		t.Error("Covers(ccu/status/health, 2) = true, want false")
	}
}
