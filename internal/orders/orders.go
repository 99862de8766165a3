// Package orders tracks factory order lifecycles from CCU traffic.
//
// The tracker consumes `ccu/order/request`, `ccu/order/response` and
// `ccu/order/active` and maintains a map of live orders plus an
// append-only history of finished ones. The authoritative "order has
// started" signal is the response carrying the matching requestId;
// requests without a response stay in WAITING_FOR_ORDER_ID.
package orders

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/aps-observer/internal/infrastructure/logging"
	"github.com/nerrad567/aps-observer/internal/infrastructure/mqtt"
	"github.com/nerrad567/aps-observer/internal/topics"
)

// Status is an order lifecycle state.
type Status string

// Order lifecycle states.
const (
	StatusWaiting   Status = "WAITING_FOR_ORDER_ID"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusError     Status = "ERROR"
	StatusCancelled Status = "CANCELLED"
)

// terminal reports whether a status ends the order's life.
func (s Status) terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusCancelled:
		return true
	}
	return false
}

// Order is one tracked factory order.
type Order struct {
	OrderID     string
	RequestID   string
	WorkpieceID string
	Color       string
	OrderType   string
	StartTime   time.Time
	EndTime     time.Time
	Status      Status

	// Messages holds the raw payloads that touched this order, in
	// arrival order.
	Messages []string
}

// orderRequest is the shape of a ccu/order/request payload.
type orderRequest struct {
	RequestID   string `json:"requestId"`
	OrderType   string `json:"orderType"`
	WorkpieceID string `json:"workpieceId"`
	Color       string `json:"type"`
	Timestamp   string `json:"timestamp"`
}

// orderResponse is the shape of a ccu/order/response payload.
type orderResponse struct {
	RequestID string `json:"requestId"`
	OrderID   string `json:"orderId"`
}

// activeEntry is one element of a ccu/order/active payload.
type activeEntry struct {
	OrderID string `json:"orderId"`
	State   string `json:"state"`
}

// Tracker maintains order state from CCU order traffic.
//
// Thread Safety:
//   - All methods are safe for concurrent use. HandleMessage is
//     designed to run as an mqtt message hook.
type Tracker struct {
	logger *logging.Logger

	mu      sync.Mutex
	pending map[string]*Order // keyed by requestId, awaiting response
	active  map[string]*Order // keyed by orderId
	history []Order
}

// NewTracker creates an empty Tracker.
func NewTracker(logger *logging.Logger) *Tracker {
	return &Tracker{
		logger:  logger.With("component", "orders"),
		pending: make(map[string]*Order),
		active:  make(map[string]*Order),
	}
}

// HandleMessage feeds one captured message into the tracker.
// Non-order topics are ignored, so the tracker can sit on a broad
// subscription. Malformed payloads are logged and dropped.
func (t *Tracker) HandleMessage(msg mqtt.Message) {
	switch msg.Topic {
	case topics.TopicOrderRequest:
		t.handleRequest(msg)
	case topics.TopicOrderResponse:
		t.handleResponse(msg)
	case topics.TopicOrderActive:
		t.handleActive(msg)
	}
}

func (t *Tracker) handleRequest(msg mqtt.Message) {
	var req orderRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		t.logger.Warn("unreadable order request", "error", err)
		return
	}
	if req.RequestID == "" {
		t.logger.Warn("order request without requestId")
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	order, live := t.pending[req.RequestID]
	if !live {
		order = &Order{
			RequestID: req.RequestID,
			Status:    StatusWaiting,
		}
		t.pending[req.RequestID] = order
	}
	order.OrderType = req.OrderType
	order.WorkpieceID = req.WorkpieceID
	order.Color = req.Color
	order.Messages = append(order.Messages, string(msg.Payload))
}

// handleResponse promotes a waiting order to ACTIVE. The response with
// the matching requestId is the authoritative start signal.
func (t *Tracker) handleResponse(msg mqtt.Message) {
	var resp orderResponse
	if err := json.Unmarshal(msg.Payload, &resp); err != nil {
		t.logger.Warn("unreadable order response", "error", err)
		return
	}
	if resp.OrderID == "" {
		t.logger.Warn("order response without orderId")
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	order, waiting := t.pending[resp.RequestID]
	if !waiting {
		// Response for a request this process never saw. Track it
		// anyway so the active list stays complete.
		order = &Order{RequestID: resp.RequestID}
	} else {
		delete(t.pending, resp.RequestID)
	}

	order.OrderID = resp.OrderID
	order.Status = StatusActive
	order.StartTime = msg.ReceivedAt
	order.Messages = append(order.Messages, string(msg.Payload))
	t.active[resp.OrderID] = order

	t.logger.Info("order started",
		"orderId", resp.OrderID, "requestId", resp.RequestID)
}

// handleActive reconciles tracked orders against the CCU's active
// list. Orders reported in a terminal state, or previously active but
// absent from the list, are retired to history.
func (t *Tracker) handleActive(msg mqtt.Message) {
	var entries []activeEntry
	if err := json.Unmarshal(msg.Payload, &entries); err != nil {
		t.logger.Warn("unreadable active order list", "error", err)
		return
	}

	reported := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.OrderID != "" {
			reported[e.OrderID] = e.State
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for orderID, order := range t.active {
		state, present := reported[orderID]
		if !present {
			// Dropped from the active list without a terminal state:
			// the CCU considers it done.
			t.retire(order, StatusCompleted, msg)
			continue
		}
		if final := terminalStatus(state); final != "" {
			t.retire(order, final, msg)
		}
	}
}

// retire moves an order to history. Caller holds the lock.
func (t *Tracker) retire(order *Order, status Status, msg mqtt.Message) {
	order.Status = status
	order.EndTime = msg.ReceivedAt
	order.Messages = append(order.Messages, string(msg.Payload))
	delete(t.active, order.OrderID)
	t.history = append(t.history, *order)

	t.logger.Info("order finished", "orderId", order.OrderID, "status", string(status))
}

// terminalStatus maps a CCU state string to a terminal Status, or ""
// for non-terminal states.
func terminalStatus(state string) Status {
	switch state {
	case "FINISHED", "COMPLETED":
		return StatusCompleted
	case "ERROR", "FAILED":
		return StatusError
	case "CANCELLED":
		return StatusCancelled
	}
	return ""
}

// Get returns a live order by orderId.
func (t *Tracker) Get(orderID string) (Order, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	order, live := t.active[orderID]
	if !live {
		return Order{}, false
	}
	return cloneOrder(order), true
}

// Active returns all live orders, including those still waiting for an
// orderId, sorted by requestId.
func (t *Tracker) Active() []Order {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Order, 0, len(t.pending)+len(t.active))
	for _, order := range t.pending {
		out = append(out, cloneOrder(order))
	}
	for _, order := range t.active {
		out = append(out, cloneOrder(order))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestID < out[j].RequestID })
	return out
}

// History returns finished orders in completion order.
func (t *Tracker) History() []Order {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Order, len(t.history))
	for i := range t.history {
		out[i] = t.history[i]
		out[i].Messages = append([]string(nil), t.history[i].Messages...)
	}
	return out
}

func cloneOrder(order *Order) Order {
	clone := *order
	clone.Messages = append([]string(nil), order.Messages...)
	return clone
}
