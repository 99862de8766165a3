package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakePublisher records publishes and can fail a configurable number
// of times per topic.
type fakePublisher struct {
	mu       sync.Mutex
	calls    []publishCall
	failures map[string]int
}

type publishCall struct {
	topic    string
	payload  string
	qos      byte
	retained bool
}

func (p *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures[topic] > 0 {
		p.failures[topic]--
		return errors.New("broker unreachable")
	}
	p.calls = append(p.calls, publishCall{topic, string(payload), qos, retained})
	return nil
}

func seedReplaySession(t *testing.T) string {
	t.Helper()
	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	return seedSession(t, []seedRow{
		{base, "ccu/order/request", `{"orderType":"STORAGE"}`, 2, false, "rep"},
		{base.Add(50 * time.Millisecond), "module/v1/ff/SVR4H73275/state", `{"actionState":"RUNNING"}`, 1, true, "rep"},
		{base.Add(100 * time.Millisecond), "ccu/order/response", `{"orderId":"o-1"}`, 2, false, "rep"},
	})
}

func TestReplayFlatOut(t *testing.T) {
	path := seedReplaySession(t)
	pub := &fakePublisher{}

	r, err := NewReplayer(path, pub, ReplayOptions{Speed: 0}, testLogger(t))
	if err != nil {
		t.Fatalf("NewReplayer() error = %v", err)
	}
	defer r.Close() //nolint:errcheck // Test cleanup

	start := time.Now()
	stats, err := r.Replay(context.Background())
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("speed 0 replay took %v, want no pacing sleeps", elapsed)
	}

	if stats.Published != 3 {
		t.Errorf("Published = %d, want 3", stats.Published)
	}
	if len(pub.calls) != 3 {
		t.Fatalf("publish calls = %d, want 3", len(pub.calls))
	}
	if pub.calls[0].topic != "ccu/order/request" || pub.calls[2].topic != "ccu/order/response" {
		t.Errorf("publish order = %v, want ascending timestamp order", pub.calls)
	}
	if pub.calls[1].qos != 1 || pub.calls[0].qos != 2 {
		t.Error("original QoS not preserved")
	}
}

// TestReplayPacing checks the delta/speed arithmetic: recorded gaps of
// 500ms and 1s at double speed must request 250ms and 500ms sleeps. The
// sleep is captured rather than slept so the test runs instantly.
func TestReplayPacing(t *testing.T) {
	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	path := seedSession(t, []seedRow{
		{base, "ccu/order/request", `{}`, 1, false, "paced"},
		{base.Add(500 * time.Millisecond), "ccu/order/response", `{}`, 1, false, "paced"},
		{base.Add(1500 * time.Millisecond), "ccu/order/active", `[]`, 1, false, "paced"},
	})
	pub := &fakePublisher{}

	r, err := NewReplayer(path, pub, ReplayOptions{Speed: 2.0}, testLogger(t))
	if err != nil {
		t.Fatalf("NewReplayer() error = %v", err)
	}
	defer r.Close() //nolint:errcheck // Test cleanup

	var slept []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	stats, err := r.Replay(context.Background())
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if stats.Published != 3 {
		t.Errorf("Published = %d, want 3", stats.Published)
	}

	want := []time.Duration{250 * time.Millisecond, 500 * time.Millisecond}
	if len(slept) != len(want) {
		t.Fatalf("sleep calls = %d (%v), want %d", len(slept), slept, len(want))
	}
	for i, d := range want {
		if slept[i] != d {
			t.Errorf("sleep[%d] = %v, want %v", i, slept[i], d)
		}
	}
}

func TestReplayStripsRetainByDefault(t *testing.T) {
	path := seedReplaySession(t)
	pub := &fakePublisher{}

	r, err := NewReplayer(path, pub, ReplayOptions{Speed: 0}, testLogger(t))
	if err != nil {
		t.Fatalf("NewReplayer() error = %v", err)
	}
	defer r.Close() //nolint:errcheck // Test cleanup

	if _, err := r.Replay(context.Background()); err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	for _, call := range pub.calls {
		if call.retained {
			t.Errorf("retain flag kept on %s without KeepRetained", call.topic)
		}
	}
}

func TestReplayKeepRetained(t *testing.T) {
	path := seedReplaySession(t)
	pub := &fakePublisher{}

	r, err := NewReplayer(path, pub, ReplayOptions{Speed: 0, KeepRetained: true}, testLogger(t))
	if err != nil {
		t.Fatalf("NewReplayer() error = %v", err)
	}
	defer r.Close() //nolint:errcheck // Test cleanup

	if _, err := r.Replay(context.Background()); err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if !pub.calls[1].retained {
		t.Error("recorded retain flag not preserved with KeepRetained")
	}
}

func TestReplayRetriesOnce(t *testing.T) {
	path := seedReplaySession(t)
	pub := &fakePublisher{failures: map[string]int{"ccu/order/request": 1}}

	r, err := NewReplayer(path, pub, ReplayOptions{Speed: 0}, testLogger(t))
	if err != nil {
		t.Fatalf("NewReplayer() error = %v", err)
	}
	defer r.Close() //nolint:errcheck // Test cleanup

	stats, err := r.Replay(context.Background())
	if err != nil {
		t.Fatalf("Replay() error = %v, want recovery after one retry", err)
	}
	if stats.Retried != 1 {
		t.Errorf("Retried = %d, want 1", stats.Retried)
	}
	if stats.Published != 3 {
		t.Errorf("Published = %d, want 3", stats.Published)
	}
}

func TestReplayAbortsOnSecondFailure(t *testing.T) {
	path := seedReplaySession(t)
	pub := &fakePublisher{failures: map[string]int{"ccu/order/request": 2}}

	r, err := NewReplayer(path, pub, ReplayOptions{Speed: 0}, testLogger(t))
	if err != nil {
		t.Fatalf("NewReplayer() error = %v", err)
	}
	defer r.Close() //nolint:errcheck // Test cleanup

	stats, err := r.Replay(context.Background())
	if !errors.Is(err, ErrReplayAborted) {
		t.Errorf("Replay() error = %v, want ErrReplayAborted", err)
	}
	if stats.Published != 0 {
		t.Errorf("Published = %d after abort on first message, want 0", stats.Published)
	}
}

func TestReplayCancelled(t *testing.T) {
	path := seedReplaySession(t)
	pub := &fakePublisher{}

	r, err := NewReplayer(path, pub, ReplayOptions{Speed: 0}, testLogger(t))
	if err != nil {
		t.Fatalf("NewReplayer() error = %v", err)
	}
	defer r.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Replay(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Replay() error = %v, want context.Canceled", err)
	}
	if len(pub.calls) != 0 {
		t.Errorf("publish calls = %d after pre-cancelled context, want 0", len(pub.calls))
	}
}

func TestReplayInvalidSpeed(t *testing.T) {
	path := seedReplaySession(t)

	_, err := NewReplayer(path, &fakePublisher{}, ReplayOptions{Speed: -1}, testLogger(t))
	if !errors.Is(err, ErrInvalidSpeed) {
		t.Errorf("NewReplayer() error = %v, want ErrInvalidSpeed", err)
	}
}

func TestReplayMissingFile(t *testing.T) {
	_, err := NewReplayer(t.TempDir()+"/nope.db", &fakePublisher{}, ReplayOptions{}, testLogger(t))
	if err == nil {
		t.Error("NewReplayer() error = nil for missing file")
	}
}
