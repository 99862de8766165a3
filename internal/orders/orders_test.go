package orders

import (
	"testing"
	"time"

	"github.com/nerrad567/aps-observer/internal/infrastructure/config"
	"github.com/nerrad567/aps-observer/internal/infrastructure/logging"
	"github.com/nerrad567/aps-observer/internal/infrastructure/mqtt"
	"github.com/nerrad567/aps-observer/internal/topics"
)

func testTracker(t *testing.T) *Tracker {
	t.Helper()
	logger := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
	return NewTracker(logger)
}

func orderMsg(topic, payload string) mqtt.Message {
	return mqtt.Message{
		Topic:      topic,
		Payload:    []byte(payload),
		QoS:        2,
		ReceivedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestRequestCreatesWaitingOrder(t *testing.T) {
	tr := testTracker(t)

	tr.HandleMessage(orderMsg(topics.TopicOrderRequest,
		`{"requestId":"req-1","orderType":"PRODUCTION","workpieceId":"wp-9","type":"RED"}`))

	active := tr.Active()
	if len(active) != 1 {
		t.Fatalf("Active() length = %d, want 1", len(active))
	}
	o := active[0]
	if o.Status != StatusWaiting {
		t.Errorf("Status = %s, want WAITING_FOR_ORDER_ID", o.Status)
	}
	if o.OrderType != "PRODUCTION" || o.WorkpieceID != "wp-9" || o.Color != "RED" {
		t.Errorf("order fields = %+v, want request fields carried over", o)
	}
	if o.OrderID != "" {
		t.Errorf("OrderID = %q before response, want empty", o.OrderID)
	}
}

func TestResponseStartsOrder(t *testing.T) {
	tr := testTracker(t)

	tr.HandleMessage(orderMsg(topics.TopicOrderRequest,
		`{"requestId":"req-1","orderType":"STORAGE"}`))
	tr.HandleMessage(orderMsg(topics.TopicOrderResponse,
		`{"requestId":"req-1","orderId":"ord-7"}`))

	o, ok := tr.Get("ord-7")
	if !ok {
		t.Fatal("Get() after response = not found")
	}
	if o.Status != StatusActive {
		t.Errorf("Status = %s, want ACTIVE", o.Status)
	}
	if o.StartTime.IsZero() {
		t.Error("StartTime not set by the start signal")
	}
	if o.OrderType != "STORAGE" {
		t.Errorf("OrderType = %q, want carried over from request", o.OrderType)
	}
	if len(o.Messages) != 2 {
		t.Errorf("Messages length = %d, want request and response", len(o.Messages))
	}
}

func TestResponseWithoutRequest(t *testing.T) {
	tr := testTracker(t)

	// A response for a request captured before this process started
	// still yields a tracked active order.
	tr.HandleMessage(orderMsg(topics.TopicOrderResponse,
		`{"requestId":"req-0","orderId":"ord-0"}`))

	if _, ok := tr.Get("ord-0"); !ok {
		t.Error("Get() = not found for orphan response")
	}
}

func TestActiveListRetiresTerminalOrders(t *testing.T) {
	tr := testTracker(t)

	tr.HandleMessage(orderMsg(topics.TopicOrderResponse, `{"requestId":"r1","orderId":"o1"}`))
	tr.HandleMessage(orderMsg(topics.TopicOrderResponse, `{"requestId":"r2","orderId":"o2"}`))
	tr.HandleMessage(orderMsg(topics.TopicOrderResponse, `{"requestId":"r3","orderId":"o3"}`))

	tr.HandleMessage(orderMsg(topics.TopicOrderActive,
		`[{"orderId":"o1","state":"RUNNING"},{"orderId":"o2","state":"ERROR"},{"orderId":"o3","state":"CANCELLED"}]`))

	if _, ok := tr.Get("o1"); !ok {
		t.Error("running order retired prematurely")
	}
	history := tr.History()
	if len(history) != 2 {
		t.Fatalf("History() length = %d, want 2", len(history))
	}
	byID := map[string]Status{}
	for _, o := range history {
		byID[o.OrderID] = o.Status
		if o.EndTime.IsZero() {
			t.Errorf("order %s retired without EndTime", o.OrderID)
		}
	}
	if byID["o2"] != StatusError || byID["o3"] != StatusCancelled {
		t.Errorf("terminal statuses = %v, want o2 ERROR, o3 CANCELLED", byID)
	}
}

func TestActiveListCompletesVanishedOrders(t *testing.T) {
	tr := testTracker(t)

	tr.HandleMessage(orderMsg(topics.TopicOrderResponse, `{"requestId":"r1","orderId":"o1"}`))
	tr.HandleMessage(orderMsg(topics.TopicOrderActive, `[]`))

	if _, ok := tr.Get("o1"); ok {
		t.Error("vanished order still active")
	}
	history := tr.History()
	if len(history) != 1 || history[0].Status != StatusCompleted {
		t.Errorf("History() = %+v, want one COMPLETED order", history)
	}
}

func TestHistoryIsAppendOnly(t *testing.T) {
	tr := testTracker(t)

	tr.HandleMessage(orderMsg(topics.TopicOrderResponse, `{"requestId":"r1","orderId":"o1"}`))
	tr.HandleMessage(orderMsg(topics.TopicOrderActive, `[]`))
	tr.HandleMessage(orderMsg(topics.TopicOrderResponse, `{"requestId":"r2","orderId":"o2"}`))
	tr.HandleMessage(orderMsg(topics.TopicOrderActive, `[]`))

	history := tr.History()
	if len(history) != 2 {
		t.Fatalf("History() length = %d, want 2", len(history))
	}
	if history[0].OrderID != "o1" || history[1].OrderID != "o2" {
		t.Errorf("History() order = %v, want completion order", history)
	}
}

func TestIgnoresUnrelatedAndMalformed(t *testing.T) {
	tr := testTracker(t)

	tr.HandleMessage(orderMsg("module/v1/ff/SVR4H73275/state", `{"actionState":"RUNNING"}`))
	tr.HandleMessage(orderMsg(topics.TopicOrderRequest, `not json`))
	tr.HandleMessage(orderMsg(topics.TopicOrderRequest, `{"orderType":"MISSING_ID"}`))
	tr.HandleMessage(orderMsg(topics.TopicOrderResponse, `{"requestId":"r1"}`))
	tr.HandleMessage(orderMsg(topics.TopicOrderActive, `{"not":"a list"}`))

	if got := len(tr.Active()); got != 0 {
		t.Errorf("Active() length = %d after junk input, want 0", got)
	}
	if got := len(tr.History()); got != 0 {
		t.Errorf("History() length = %d after junk input, want 0", got)
	}
}
