package session

import (
	"fmt"
	"time"
)

// timestampLayout is the storage format for message timestamps.
// Timestamps are always stored in UTC so sessions recorded on machines
// in different timezones sort identically.
const timestampLayout = time.RFC3339Nano

// Record is one captured MQTT message as stored in a session database.
type Record struct {
	ID           int64
	Timestamp    time.Time
	Topic        string
	Payload      string
	QoS          int
	Retain       bool
	SessionLabel string
}

// TopicCount is a per-topic message count from a recorded session.
type TopicCount struct {
	Topic string
	Count int64
}

// FirstSeen is the first captured message on a topic.
type FirstSeen struct {
	Topic     string
	Timestamp time.Time
	Payload   string
}

// formatTimestamp renders a timestamp for storage.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// parseTimestamp reads a stored timestamp. Accepts RFC 3339 with or
// without fractional seconds.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
