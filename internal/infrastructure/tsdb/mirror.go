package tsdb

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/aps-observer/internal/infrastructure/logging"
	"github.com/nerrad567/aps-observer/internal/infrastructure/mqtt"
)

// txtPrefix is the TXT controller telemetry namespace. Topics look
// like /j1/txt/<controller>/<channel...>.
const txtPrefix = "/j1/txt/"

// ReadingWriter is the storage surface the mirror needs. *Client
// satisfies it.
type ReadingWriter interface {
	WriteReading(controller, channel string, value float64, ts time.Time)
}

// Mirror forwards numeric TXT controller readings into time-series
// storage. Non-telemetry topics and non-numeric payloads are ignored;
// the mirror never blocks or errors on the hook path.
type Mirror struct {
	writer ReadingWriter
	logger *logging.Logger
}

// NewMirror creates a Mirror writing through the given writer.
func NewMirror(writer ReadingWriter, logger *logging.Logger) *Mirror {
	return &Mirror{
		writer: writer,
		logger: logger.With("component", "tsdb-mirror"),
	}
}

// HandleMessage inspects one captured message and mirrors it if it is
// a numeric TXT reading. Intended to run as an mqtt message hook.
func (m *Mirror) HandleMessage(msg mqtt.Message) {
	controller, channel, ok := splitTXTTopic(msg.Topic)
	if !ok {
		return
	}

	for field, value := range numericFields(msg.Payload) {
		name := channel
		if field != "" {
			name = channel + "/" + field
		}
		m.writer.WriteReading(controller, name, value, msg.ReceivedAt)
	}
}

// splitTXTTopic extracts controller and channel from a TXT topic.
func splitTXTTopic(topic string) (controller, channel string, ok bool) {
	if !strings.HasPrefix(topic, txtPrefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(topic, txtPrefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// numericFields extracts the mirrorable values from a payload: either
// a bare number (keyed by "") or the top-level numeric members of a
// JSON object. Non-numeric members are skipped, not errors.
func numericFields(payload []byte) map[string]float64 {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return nil
	}

	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return map[string]float64{"": v}
	}

	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil
	}
	out := make(map[string]float64)
	for field, raw := range obj {
		if v, isNum := raw.(float64); isNum {
			out[field] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
