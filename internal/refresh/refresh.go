// Package refresh publishes UI invalidation notifications.
//
// A notification tells dashboard consumers that cached views for a
// group are stale. Delivery is fire-and-forget at QoS 0: a lost
// notification is recovered by the next one. This is the only
// sanctioned redraw channel; components must never reconnect or
// resubscribe to force a refresh.
package refresh

import (
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/aps-observer/internal/infrastructure/logging"
)

// TopicPrefix is the root of the refresh notification namespace. The
// group name becomes the final topic segment.
const TopicPrefix = "aps/ui/refresh"

// ErrInvalidGroup is returned for empty groups or groups containing
// topic separators or wildcards.
var ErrInvalidGroup = errors.New("refresh: invalid group name")

// Publisher is the outbound surface the notifier needs. *mqtt.Client
// satisfies it through PublishJSON.
type Publisher interface {
	PublishJSON(topic string, value any, qos byte, retained bool) error
}

// Notification is the refresh payload.
type Notification struct {
	// TsMs is the notification time in Unix milliseconds.
	TsMs int64 `json:"ts_ms"`

	// Source identifies the component that triggered the refresh.
	Source string `json:"source,omitempty"`
}

// Notifier publishes refresh notifications for named groups.
type Notifier struct {
	pub    Publisher
	source string
	logger *logging.Logger
	now    func() time.Time
}

// New creates a Notifier.
//
// Parameters:
//   - pub: Shared client
//   - source: Identifier stamped into every notification; may be empty
//   - logger: Structured logger
func New(pub Publisher, source string, logger *logging.Logger) *Notifier {
	return &Notifier{
		pub:    pub,
		source: source,
		logger: logger.With("component", "refresh"),
		now:    time.Now,
	}
}

// Notify publishes a refresh notification for group.
//
// The publish is QoS 0 fire-and-forget; a broker-side failure is
// logged at debug level and not returned, since the next event
// recovers the consumer anyway. Only the group name itself is
// validated.
//
// Parameters:
//   - group: Consumer group to invalidate (single topic segment)
//
// Returns:
//   - error: ErrInvalidGroup only; delivery failures are swallowed
func (n *Notifier) Notify(group string) error {
	if err := validateGroup(group); err != nil {
		return err
	}

	payload := Notification{
		TsMs:   n.now().UnixMilli(),
		Source: n.source,
	}
	topic := TopicPrefix + "/" + group

	if err := n.pub.PublishJSON(topic, payload, 0, false); err != nil {
		n.logger.Debug("refresh notification dropped", "group", group, "error", err)
	}
	return nil
}

func validateGroup(group string) error {
	if group == "" {
		return fmt.Errorf("%w: empty", ErrInvalidGroup)
	}
	for _, r := range group {
		switch r {
		case '/', '+', '#':
			return fmt.Errorf("%w: %q", ErrInvalidGroup, group)
		}
	}
	return nil
}
