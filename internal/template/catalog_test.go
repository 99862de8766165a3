package template

import (
	"path/filepath"
	"strings"
	"testing"
)

// shippedCatalog loads the real template tree the binary ships with,
// so these tests break when the YAML drifts, not just the fixtures.
func shippedCatalog(t *testing.T) *Manager {
	t.Helper()

	m := NewManager(filepath.Join("..", "..", "configs", "templates"))
	if err := m.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return m
}

func TestCatalogOrderRequestMinimalPayload(t *testing.T) {
	m := shippedCatalog(t)

	// A bare storage order carries no requestId, colour or workpiece.
	res, err := m.Validate("ccu/order/request", map[string]any{
		"timestamp": "2025-09-08T10:00:00Z",
		"orderType": "STORAGE",
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !res.Valid {
		t.Errorf("Valid = false, want true; errors = %v", res.Errors)
	}
}

func TestCatalogOrderRequestEnumViolation(t *testing.T) {
	m := shippedCatalog(t)

	res, err := m.Validate("ccu/order/request", map[string]any{
		"timestamp": "2025-09-08T10:00:00Z",
		"orderType": "FLY",
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if res.Valid {
		t.Error("Valid = true for orderType outside the enum")
	}
	if !strings.Contains(strings.Join(res.Errors, "; "), "enum") {
		t.Errorf("errors = %v, want an enum mention", res.Errors)
	}
}

func TestCatalogOrderRequestFullPayload(t *testing.T) {
	m := shippedCatalog(t)

	res, err := m.Validate("ccu/order/request", map[string]any{
		"type":      "BLUE",
		"timestamp": "2026-02-24T10:15:00.000Z",
		"orderType": "PRODUCTION",
		"requestId": "order-test-request-001",
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !res.Valid {
		t.Errorf("Valid = false, want true; errors = %v", res.Errors)
	}
}

func TestCatalogControlTopicsDeclared(t *testing.T) {
	m := shippedCatalog(t)

	for _, topic := range []string{"ccu/set/reset", "ccu/set/charge", "ccu/order/response"} {
		if _, ok := m.Get(topic); !ok {
			t.Errorf("Get(%q) = false, want a declared template", topic)
		}
	}
}
